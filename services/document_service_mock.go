package services

import (
	"fmt"
	"sync"
)

// MockDocumentStore is an in-memory DocumentStore for testing
type MockDocumentStore struct {
	documents map[string][]byte
	mu        sync.RWMutex
}

// NewMockDocumentStore creates a new mock document store
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{
		documents: make(map[string][]byte),
	}
}

// SetAsMockForTesting sets this mock as the global document store instance
func (m *MockDocumentStore) SetAsMockForTesting() {
	SetDocumentStore(m)
}

// Upload stores the document in memory
func (m *MockDocumentStore) Upload(key string, body []byte, contentType string) error {
	m.mu.Lock()
	m.documents[key] = body
	m.mu.Unlock()
	return nil
}

// PresignedURL returns a deterministic fake URL for a stored document
func (m *MockDocumentStore) PresignedURL(key string) (string, error) {
	if key == "" {
		return "", nil
	}

	m.mu.RLock()
	_, exists := m.documents[key]
	m.mu.RUnlock()

	if !exists {
		return "", fmt.Errorf("document not found in mock store: %s", key)
	}

	return fmt.Sprintf("https://test-bucket.s3.eu-central-1.amazonaws.com/%s?mock=true", key), nil
}

// Delete removes the document from memory
func (m *MockDocumentStore) Delete(key string) error {
	m.mu.Lock()
	delete(m.documents, key)
	m.mu.Unlock()
	return nil
}

// HasDocument checks whether a key exists in the mock store (for assertions)
func (m *MockDocumentStore) HasDocument(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.documents[key]
	return exists
}
