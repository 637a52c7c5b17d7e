package services

import (
	"fmt"
	"strings"

	appConfig "github.com/cabby-rentals/cabby-api/config"
	gomail "gopkg.in/gomail.v2"
)

// MailSender delivers a single templated mail. Delivery failures are the
// caller's problem to log; they must never fail a state transition.
type MailSender interface {
	Send(to, subject, htmlBody string) error
}

// SMTPMailService sends mail through the configured SMTP relay
type SMTPMailService struct {
	dialer *gomail.Dialer
	from   string
}

var mailSenderInstance MailSender

// InitMailService initializes the SMTP mail sender
func InitMailService() MailSender {
	cfg := appConfig.GetConfig()

	mailSenderInstance = &SMTPMailService{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass),
		from:   cfg.MailFrom,
	}
	return mailSenderInstance
}

// GetMailSender returns the mail sender instance
func GetMailSender() MailSender {
	return mailSenderInstance
}

// SetMailSender sets the mail sender instance (primarily for testing)
func SetMailSender(sender MailSender) {
	mailSenderInstance = sender
}

// Send delivers one HTML mail
func (s *SMTPMailService) Send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

// SendOrderConfirmedMail mails the renter that the reservation is approved,
// with links to the vehicle's insurance and registration paperwork
func SendOrderConfirmedMail(to, fullName string, documentURLs []string) error {
	links := make([]string, 0, len(documentURLs))
	for _, u := range documentURLs {
		links = append(links, fmt.Sprintf(`<li><a href="%s">Document</a></li>`, u))
	}

	body := fmt.Sprintf(
		`<p>Beste %s,</p>
<p>Je reservering is bevestigd. Bereid je reis voor!</p>
<p>De verzekerings- en registratiedocumenten van het voertuig vind je hieronder:</p>
<ul>%s</ul>
<p>Met vriendelijke groet,<br>Team Cabby</p>`,
		fullName, strings.Join(links, ""))

	return GetMailSender().Send(to, "Reservering bevestigd", body)
}

// SendRentCanceledMail mails the renter that the reservation was canceled
func SendRentCanceledMail(to, fullName string) error {
	body := fmt.Sprintf(
		`<p>Beste %s,</p>
<p>Je reservering is geannuleerd. Neem contact op als dit niet klopt.</p>
<p>Met vriendelijke groet,<br>Team Cabby</p>`,
		fullName)

	return GetMailSender().Send(to, "Reservering geannuleerd", body)
}

// SendRentCanceledAdminMail notifies the operations mailbox of a cancellation
func SendRentCanceledAdminMail(userFullName, vehicleID string) error {
	adminEmail := appConfig.GetConfig().AdminEmail
	if adminEmail == "" {
		return nil
	}

	body := fmt.Sprintf(
		`<p>De reservering van %s voor voertuig %s is geannuleerd.</p>`,
		userFullName, vehicleID)

	return GetMailSender().Send(adminEmail, "Reservering geannuleerd", body)
}

// SendRentCompletedMail mails the renter after the rental is finished
func SendRentCompletedMail(to, fullName string) error {
	body := fmt.Sprintf(
		`<p>Beste %s,</p>
<p>Je reservering is be&euml;indigd. Bedankt voor het huren bij Cabby!</p>
<p>Met vriendelijke groet,<br>Team Cabby</p>`,
		fullName)

	return GetMailSender().Send(to, "Reservering voltooid", body)
}
