// Package outgoing delivers built messages over SMTP. One connection is
// dialed per message; delivery is best-effort and never retried here.
package outgoing

import (
	"crypto/tls"
	"io"
	"strings"

	gomail "gopkg.in/gomail.v2"

	"github.com/mailwarden/mailwarden/internal/message"
	"github.com/mailwarden/mailwarden/internal/rules"
)

// Sender implements rules.Sender over an SMTP account.
type Sender struct {
	dialer *gomail.Dialer
}

// New configures the SMTP dialer. security selects between implicit TLS
// ("ssl") and STARTTLS (anything else).
func New(server string, port int, username, password, security string) *Sender {
	dialer := gomail.NewDialer(server, port, username, password)
	if security == "ssl" {
		dialer.SSL = true
	} else {
		dialer.TLSConfig = &tls.Config{ServerName: server}
	}
	return &Sender{dialer: dialer}
}

// Send dials, transmits one message and closes the connection. Addresses
// may be header-style ("Name <a@b>"); the envelope uses the bare form.
func (s *Sender) Send(from string, to []string, msg io.WriterTo) error {
	envelope := make([]string, len(to))
	for i, addr := range to {
		envelope[i] = message.EnvelopeAddress(addr)
	}

	sc, err := s.dialer.Dial()
	if err != nil {
		return &rules.DeliveryError{To: strings.Join(envelope, ", "), Err: err}
	}
	defer sc.Close()

	if err := sc.Send(message.EnvelopeAddress(from), envelope, msg); err != nil {
		return &rules.DeliveryError{To: strings.Join(envelope, ", "), Err: err}
	}
	return nil
}
