package message

import (
	"crypto/rand"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	gomail "gopkg.in/gomail.v2"
)

// BuildOptions describe one outgoing message. Zero-value fields are
// omitted from the result.
type BuildOptions struct {
	Subject       string
	SubjectPrefix string // "Re:", "Fwd:"
	From          string
	To            string
	Body          string

	ReplyTo   string
	InReplyTo string // Message-ID being replied to or forwarded

	// MessageID is used verbatim when set; otherwise a fresh one is
	// generated, tagged with MessageIDDomain.
	MessageID       string
	MessageIDDomain string

	ContentLanguage string

	AttachBytes       []byte
	AttachContentType string
	AttachFilename    string
}

// Build constructs a complete outgoing message.
func Build(o BuildOptions) *gomail.Message {
	subject := o.Subject
	if o.SubjectPrefix != "" {
		subject = o.SubjectPrefix + " " + subject
	}

	m := gomail.NewMessage()
	m.SetHeader("Subject", subject)
	m.SetHeader("From", o.From)
	m.SetHeader("To", o.To)

	if o.ReplyTo != "" {
		m.SetHeader("Reply-To", o.ReplyTo)
	}

	mid := o.MessageID
	if mid == "" {
		mid = NewMessageID(o.MessageIDDomain)
	}
	m.SetHeader("Message-ID", mid)

	if o.InReplyTo != "" {
		m.SetHeader("In-Reply-To", o.InReplyTo)
		m.SetHeader("References", o.InReplyTo)
	}

	if o.ContentLanguage != "" {
		m.SetHeader("Content-Language", o.ContentLanguage)
	}

	m.SetBody("text/plain", o.Body)

	if o.AttachBytes != nil {
		filename := o.AttachFilename
		if filename == "" {
			filename = "attachment"
		}
		data := o.AttachBytes
		m.Attach(filename,
			gomail.SetHeader(map[string][]string{
				"Content-Type": {o.AttachContentType},
			}),
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		)
	}

	return m
}

// NewMessageID generates a fresh Message-ID, tagged with the given domain.
func NewMessageID(domain string) string {
	if domain == "" {
		domain = "mailwarden"
	}
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("<%d.%x@%s>", time.Now().UnixNano(), buf, domain)
}

// EnvelopeAddress extracts the bare address from a header-style value such
// as "Work <user@workplace.edu>". Values that do not parse are returned
// trimmed as-is.
func EnvelopeAddress(s string) string {
	if addr, err := mail.ParseAddress(s); err == nil {
		return addr.Address
	}
	return strings.TrimSpace(s)
}
