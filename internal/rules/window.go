package rules

// Window is the two-generation set of canonical message identifiers that
// prevents duplicate outgoing side effects across wake-ups. An identifier
// counts as handled if it is in either generation. Marking happens
// unconditionally once a content handler has decided to process an item;
// whether the send itself succeeds does not matter.
//
// The window is owned by the event loop and never accessed concurrently.
type Window struct {
	previous map[string]struct{}
	current  map[string]struct{}
}

func NewWindow() *Window {
	return &Window{
		previous: make(map[string]struct{}),
		current:  make(map[string]struct{}),
	}
}

// Rotate starts a new wake-up: the identifiers collected during the last
// wake-up become the previous generation, the current one starts empty.
func (w *Window) Rotate() {
	w.previous = w.current
	w.current = make(map[string]struct{})
}

// Seen reports whether id was handled in this or the previous wake-up.
func (w *Window) Seen(id string) bool {
	if _, ok := w.current[id]; ok {
		return true
	}
	_, ok := w.previous[id]
	return ok
}

// Mark records id as handled in the current wake-up.
func (w *Window) Mark(id string) {
	w.current[id] = struct{}{}
}

// beginRule folds the previous generation into the current one so the
// upcoming rule's handlers see everything handled earlier in this same
// wake-up as well as in the last one.
func (w *Window) beginRule() {
	for id := range w.previous {
		w.current[id] = struct{}{}
	}
}

// endRule undoes beginRule, leaving only identifiers genuinely handled in
// this wake-up. The next Rotate must not carry previous-generation entries
// forward a second time.
func (w *Window) endRule() {
	for id := range w.previous {
		delete(w.current, id)
	}
}
