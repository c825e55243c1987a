package rules

import (
	"io"
	"time"
)

// RawMessage is one fetched message: its store-assigned UID and the full
// unparsed content.
type RawMessage struct {
	UID uint32
	Raw []byte
}

// Session is an authenticated connection to the message store. The engine
// owns exactly one session at a time and never shares it across goroutines.
type Session interface {
	// Search returns the UIDs matching a compiled filter query. A search
	// failure is treated as connection-level and aborts the wake-up.
	Search(query string) ([]uint32, error)
	// Fetch retrieves the raw content of the given UIDs, in server order.
	Fetch(uids []uint32) ([]RawMessage, error)
	// StoreFlags adds the given flags to the messages.
	StoreFlags(uids []uint32, flags ...string) error
	// Copy copies the messages into another folder.
	Copy(uids []uint32, folder string) error
	// Expunge permanently removes all messages flagged for deletion.
	Expunge() error
	// Append stores a complete message into a folder.
	Append(folder string, flags []string, when time.Time, raw []byte) error
	// SupportIdle reports whether the store can signal mailbox changes.
	SupportIdle() (bool, error)
	// WaitForChange blocks until the mailbox changes or the timeout
	// elapses. It reports whether a change was seen.
	WaitForChange(timeout time.Duration) (bool, error)
	// Close logs out and releases the connection.
	Close() error
}

// Dial establishes a new session. The supervisor calls it on every
// (re)connect attempt.
type Dial func() (Session, error)

// Sender delivers one outgoing message with an explicit envelope. Failures
// are never retried by the engine.
type Sender interface {
	Send(from string, to []string, msg io.WriterTo) error
}

// Proxy handles one fetched message for the fetch-proxy content step:
// extract URLs, retrieve and transform each one, store and optionally
// deliver the result. Per-URL failures must be contained inside Process,
// which reports how many URLs were successfully stored.
type Proxy interface {
	Process(s Session, raw []byte, window *Window) (int, error)
}
