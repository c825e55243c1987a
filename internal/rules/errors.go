package rules

import "fmt"

// TransportError is a connection or socket level failure. The supervisor
// retries these with backoff; in single-pass mode they are returned to the
// caller.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport: %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError is a mailbox operation that returned non-OK. It aborts the
// remaining steps of the current rule's pipeline only.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("mailbox %s: %v", e.Op, e.Err) }
func (e *ProtocolError) Unwrap() error { return e.Err }

// DeliveryError is a failed outgoing send. Always recovered locally;
// processing continues with the next item.
type DeliveryError struct {
	To  string
	Err error
}

func (e *DeliveryError) Error() string { return fmt.Sprintf("delivery to %s: %v", e.To, e.Err) }
func (e *DeliveryError) Unwrap() error { return e.Err }

// ContentFetchError is a per-URL failure inside the fetch-proxy handler.
type ContentFetchError struct {
	URL string
	Err error
}

func (e *ContentFetchError) Error() string { return fmt.Sprintf("fetch %s: %v", e.URL, e.Err) }
func (e *ContentFetchError) Unwrap() error { return e.Err }

// FatalConfigError means a required capability or setting is missing.
// Never retried.
type FatalConfigError struct {
	Reason string
}

func (e *FatalConfigError) Error() string { return "fatal configuration error: " + e.Reason }
