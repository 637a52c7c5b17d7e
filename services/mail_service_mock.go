package services

import "sync"

// SentMail records one delivered message in the mock
type SentMail struct {
	To      string
	Subject string
	Body    string
}

// MockMailSender records outgoing mail for test assertions
type MockMailSender struct {
	mails []SentMail
	mu    sync.Mutex

	// FailWith, when set, is returned from Send to simulate delivery failure
	FailWith error
}

// NewMockMailSender creates a new mock mail sender
func NewMockMailSender() *MockMailSender {
	return &MockMailSender{}
}

// SetAsMockForTesting sets this mock as the global mail sender instance
func (m *MockMailSender) SetAsMockForTesting() {
	SetMailSender(m)
}

// Send records the message instead of delivering it
func (m *MockMailSender) Send(to, subject, htmlBody string) error {
	if m.FailWith != nil {
		return m.FailWith
	}

	m.mu.Lock()
	m.mails = append(m.mails, SentMail{To: to, Subject: subject, Body: htmlBody})
	m.mu.Unlock()
	return nil
}

// Sent returns a copy of the recorded messages
func (m *MockMailSender) Sent() []SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SentMail, len(m.mails))
	copy(out, m.mails)
	return out
}
