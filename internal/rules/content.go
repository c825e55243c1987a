package rules

import (
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/mailwarden/mailwarden/internal/message"
)

// runContent fetches the raw content of the matched set and hands it to the
// selected content handler. Delivery failures are contained per item;
// marking an identifier as seen happens before any send is attempted, so a
// failed delivery is never retried on the next wake-up.
func (e *Engine) runContent(s Session, kind ContentKind, uids []uint32) error {
	raws, err := s.Fetch(uids)
	if err != nil {
		return err
	}

	switch kind {
	case ContentAutoForwardReply:
		e.autoForwardReply(raws)
		return nil
	case ContentRejectAndDelete:
		return e.rejectAndDelete(s, uids, raws)
	case ContentFetchProxy:
		return e.fetchProxy(s, raws)
	}
	return nil
}

// parseUnseen parses one raw message and applies the dedup window. It
// returns nil when the item should be skipped.
func (e *Engine) parseUnseen(raw []byte) *message.Mail {
	m, err := message.Parse(raw)
	if err != nil {
		slog.Warn("Failed to parse message", "error", err)
		return nil
	}
	if e.window.Seen(m.MessageID) {
		slog.Debug("Message already handled", "message_id", m.MessageID)
		return nil
	}
	e.window.Mark(m.MessageID)
	return m
}

// autoForwardReply forwards each unseen message internally and replies to
// its resolved sender. The forward goes out first; both sends are
// best-effort and a failed forward does not suppress the reply.
func (e *Engine) autoForwardReply(raws []RawMessage) {
	for _, rm := range raws {
		m := e.parseUnseen(rm.Raw)
		if m == nil {
			continue
		}

		sender := m.Sender()
		lang := m.Language(languages(e.cfg.ReplyBody), e.cfg.DefaultLanguage)
		note := strings.ReplaceAll(e.cfg.template(e.cfg.ForwardNote, lang), "{sender}", sender)

		slog.Info("Auto-forwarding message", "sender", sender, "language", lang, "uid", rm.UID)

		forward := message.Build(message.BuildOptions{
			Subject:           m.Subject,
			SubjectPrefix:     "Fwd:",
			From:              e.cfg.ForwardFrom,
			To:                e.cfg.ForwardTo,
			Body:              note,
			InReplyTo:         m.MessageID,
			ReplyTo:           sender,
			AttachBytes:       m.Raw,
			AttachContentType: "message/rfc822",
			AttachFilename:    "original.eml",
		})

		reply := message.Build(message.BuildOptions{
			Subject:         m.Subject,
			SubjectPrefix:   "Re:",
			From:            e.cfg.ReplyFrom,
			To:              sender,
			Body:            e.cfg.template(e.cfg.ReplyBody, lang),
			InReplyTo:       m.MessageID,
			ReplyTo:         e.cfg.ForwardTo,
			MessageIDDomain: "away",
		})

		e.send(e.cfg.ForwardFrom, e.cfg.ForwardTo, forward)
		e.send(e.cfg.ReplyFrom, sender, reply)
	}
}

// rejectAndDelete removes the entire matched set first, so the mail is gone
// even if reply construction fails, and then sends each unseen sender one
// best-effort rejection.
func (e *Engine) rejectAndDelete(s Session, uids []uint32, raws []RawMessage) error {
	if err := s.StoreFlags(uids, FlagDeleted); err != nil {
		slog.Error("Failed to flag rejected messages", "error", err)
	}
	if err := s.Expunge(); err != nil {
		slog.Error("Failed to expunge rejected messages", "error", err)
	}

	for _, rm := range raws {
		m := e.parseUnseen(rm.Raw)
		if m == nil {
			continue
		}

		sender := m.Sender()
		lang := m.Language(languages(e.cfg.RejectBody), e.cfg.DefaultLanguage)

		slog.Info("Rejecting message", "sender", sender, "language", lang, "uid", rm.UID)
		e.status.rejected()

		reply := message.Build(message.BuildOptions{
			Subject:         m.Subject,
			SubjectPrefix:   "Re:",
			From:            e.cfg.RejectFrom,
			To:              sender,
			Body:            e.cfg.template(e.cfg.RejectBody, lang),
			InReplyTo:       m.MessageID,
			MessageIDDomain: "noteventrashcan",
		})

		e.send(e.cfg.RejectFrom, sender, reply)
	}
	return nil
}

// fetchProxy hands each message to the proxy collaborator. A failing item
// does not stop the batch.
func (e *Engine) fetchProxy(s Session, raws []RawMessage) error {
	if e.proxy == nil {
		return &FatalConfigError{Reason: "fetch-proxy step configured without a proxy"}
	}
	for _, rm := range raws {
		stored, err := e.proxy.Process(s, rm.Raw, e.window)
		e.status.proxied(stored)
		if err != nil {
			slog.Error("Proxy processing failed", "uid", rm.UID, "error", err)
		}
	}
	return nil
}

// send delivers one message, recovering delivery failures locally.
func (e *Engine) send(from, to string, msg io.WriterTo) {
	err := e.sender.Send(message.EnvelopeAddress(from), []string{message.EnvelopeAddress(to)}, msg)
	if err != nil {
		var delivery *DeliveryError
		if !errors.As(err, &delivery) {
			err = &DeliveryError{To: to, Err: err}
		}
		slog.Error("Send failed", "to", to, "error", err)
		return
	}
	e.status.sent()
}
