// Package message parses incoming mail and builds outgoing mail. It is the
// only package touching MIME details; the rule engine works with the Mail
// summary and opaque built messages.
package message

import (
	"bytes"
	"io"
	"log/slog"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
)

// Part is one decoded text part of a message body.
type Part struct {
	MediaType string // "text/plain" or "text/html"
	Text      string
}

// Mail is the parsed summary of one incoming message.
type Mail struct {
	MessageID       string
	Subject         string
	From            string
	ReplyTo         string
	SenderHeader    string
	To              string
	ContentLanguage string
	Parts           []Part
	Raw             []byte
}

// Parse reads a raw message into a Mail. Individual body parts that fail to
// decode are skipped; header parsing errors are fatal.
func Parse(raw []byte) (*Mail, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, err
	}

	m := &Mail{
		MessageID:       entity.Header.Get("Message-Id"),
		From:            headerText(entity, "From"),
		ReplyTo:         headerText(entity, "Reply-To"),
		SenderHeader:    headerText(entity, "Sender"),
		To:              headerText(entity, "To"),
		ContentLanguage: entity.Header.Get("Content-Language"),
		Subject:         headerText(entity, "Subject"),
		Raw:             raw,
	}

	m.Parts = textParts(entity)
	return m, nil
}

func headerText(e *message.Entity, key string) string {
	if text, err := e.Header.Text(key); err == nil {
		return text
	}
	return e.Header.Get(key)
}

// textParts walks the MIME structure and collects all inline text parts, in
// order. Attachments are left alone; the handlers that need the original
// content attach the raw message instead.
func textParts(entity *message.Entity) []Part {
	mediaType, _, _ := entity.Header.ContentType()

	if !strings.HasPrefix(mediaType, "multipart/") {
		body, err := io.ReadAll(entity.Body)
		if err != nil {
			slog.Warn("Failed to read message body", "error", err)
			return nil
		}
		switch mediaType {
		case "text/plain", "text/html":
			return []Part{{MediaType: mediaType, Text: string(body)}}
		default:
			// An unlabeled single-part body is treated as plain text.
			if mediaType == "" {
				return []Part{{MediaType: "text/plain", Text: string(body)}}
			}
		}
		return nil
	}

	var parts []Part
	mr := entity.MultipartReader()
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		partType, _, _ := part.Header.ContentType()
		disposition, _, _ := part.Header.ContentDisposition()
		if disposition == "attachment" {
			continue
		}

		if strings.HasPrefix(partType, "multipart/") {
			parts = append(parts, textParts(part)...)
			continue
		}

		if partType != "text/plain" && partType != "text/html" {
			continue
		}

		body, err := io.ReadAll(part.Body)
		if err != nil {
			slog.Warn("Failed to read part body", "error", err)
			continue
		}
		parts = append(parts, Part{MediaType: partType, Text: string(body)})
	}
	return parts
}

// Text returns the first plain-text part, falling back to the first HTML
// part, trimmed.
func (m *Mail) Text() string {
	var html string
	for _, p := range m.Parts {
		switch p.MediaType {
		case "text/plain":
			return strings.TrimSpace(p.Text)
		case "text/html":
			if html == "" {
				html = p.Text
			}
		}
	}
	return strings.TrimSpace(html)
}

// Sender resolves the reply target with the precedence
// Reply-To > From > Sender.
func (m *Mail) Sender() string {
	if m.ReplyTo != "" {
		return m.ReplyTo
	}
	if m.From != "" {
		return m.From
	}
	return m.SenderHeader
}

// Language matches the Content-Language header against the available
// language tags, returning fallback when none matches.
func (m *Mail) Language(available []string, fallback string) string {
	header := strings.ToLower(m.ContentLanguage)
	for _, lang := range available {
		if lang != "" && strings.Contains(header, lang) {
			return lang
		}
	}
	return fallback
}
