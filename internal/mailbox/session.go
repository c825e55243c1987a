// Package mailbox implements the rule engine's mailbox session on top of an
// IMAP connection.
package mailbox

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	idle "github.com/emersion/go-imap-idle"

	"github.com/mailwarden/mailwarden/internal/rules"
)

// Config holds the connection parameters for one account.
type Config struct {
	Server   string
	Port     int
	Username string
	Password string
	Folder   string // mailbox to watch, usually "INBOX"
}

// Session is an authenticated IMAP connection with the watched folder
// selected. It implements rules.Session and is not safe for concurrent use.
type Session struct {
	c     *client.Client
	idler *idle.Client
}

// Dial connects, logs in and selects the watched folder.
func Dial(cfg Config) (*Session, error) {
	address := fmt.Sprintf("%s:%d", cfg.Server, cfg.Port)
	tlsConfig := &tls.Config{ServerName: cfg.Server}

	c, err := client.DialTLS(address, tlsConfig)
	if err != nil {
		return nil, &rules.TransportError{Op: "dial " + address, Err: err}
	}

	if err := c.Login(cfg.Username, cfg.Password); err != nil {
		_ = c.Logout()
		return nil, &rules.TransportError{Op: "login", Err: err}
	}

	folder := cfg.Folder
	if folder == "" {
		folder = "INBOX"
	}
	if _, err := c.Select(folder, false); err != nil {
		_ = c.Logout()
		return nil, &rules.TransportError{Op: "select " + folder, Err: err}
	}

	slog.Info("Mailbox session established", "server", cfg.Server, "folder", folder)
	return &Session{c: c, idler: idle.NewClient(c)}, nil
}

func (s *Session) Search(query string) ([]uint32, error) {
	criteria, err := parseSearch(query)
	if err != nil {
		return nil, &rules.ProtocolError{Op: "search", Err: err}
	}
	uids, err := s.c.UidSearch(criteria)
	if err != nil {
		// A failed search is a connection-level problem: the wake-up
		// is aborted and the supervisor reconnects.
		return nil, &rules.TransportError{Op: "search", Err: err}
	}
	return uids, nil
}

func (s *Session) Fetch(uids []uint32) ([]rules.RawMessage, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	if err := s.c.UidFetch(seqset, items, messages); err != nil {
		return nil, &rules.ProtocolError{Op: "fetch", Err: err}
	}

	results := make([]rules.RawMessage, 0, len(uids))
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			slog.Warn("Fetched message without body section", "uid", msg.Uid)
			continue
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			slog.Warn("Failed to read message body", "uid", msg.Uid, "error", err)
			continue
		}
		results = append(results, rules.RawMessage{UID: msg.Uid, Raw: raw})
	}
	return results, nil
}

func (s *Session) StoreFlags(uids []uint32, flags ...string) error {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	args := make([]interface{}, len(flags))
	for i, f := range flags {
		args[i] = f
	}

	if err := s.c.UidStore(seqset, item, args, nil); err != nil {
		return &rules.ProtocolError{Op: "store", Err: err}
	}
	return nil
}

func (s *Session) Copy(uids []uint32, folder string) error {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	if err := s.c.UidCopy(seqset, folder); err != nil {
		return &rules.ProtocolError{Op: "copy to " + folder, Err: err}
	}
	return nil
}

func (s *Session) Expunge() error {
	if err := s.c.Expunge(nil); err != nil {
		return &rules.ProtocolError{Op: "expunge", Err: err}
	}
	return nil
}

func (s *Session) Append(folder string, flags []string, when time.Time, raw []byte) error {
	if err := s.c.Append(folder, flags, when, bytes.NewBuffer(raw)); err != nil {
		return &rules.ProtocolError{Op: "append to " + folder, Err: err}
	}
	return nil
}

func (s *Session) SupportIdle() (bool, error) {
	return s.idler.SupportIdle()
}

// WaitForChange blocks until the selected folder changes or the timeout
// elapses. The idle command runs in a helper goroutine that is always
// stopped and joined before returning, so the session stays exclusively
// owned by the caller.
func (s *Session) WaitForChange(timeout time.Duration) (bool, error) {
	updates := make(chan client.Update, 64)
	s.c.Updates = updates
	defer func() { s.c.Updates = nil }()

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.idler.IdleWithFallback(stop, 0)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	changed := false
	for {
		select {
		case update := <-updates:
			if _, ok := update.(*client.MailboxUpdate); ok {
				changed = true
				if stop != nil {
					close(stop)
					stop = nil
				}
			}
		case <-timer.C:
			if stop != nil {
				close(stop)
				stop = nil
			}
		case err := <-done:
			if err != nil {
				return changed, &rules.TransportError{Op: "idle", Err: err}
			}
			return changed, nil
		}
	}
}

func (s *Session) Close() error {
	return s.c.Logout()
}
