package rules

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jpillora/backoff"
)

// DefaultIdleTimeout bounds one change-notification wait. Just under the
// 29 minutes RFC 2177 allows before servers may drop an idle connection.
const DefaultIdleTimeout = 29*time.Minute - time.Second

// Options configure Run.
type Options struct {
	// Once runs a single rule-table pass and returns; any error is
	// propagated to the caller instead of retried.
	Once bool
	// InitialDelay is the first reconnect backoff delay.
	InitialDelay time.Duration
	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration
	// IdleTimeout bounds one change-notification wait. Defaults to
	// DefaultIdleTimeout.
	IdleTimeout time.Duration
}

// Engine executes the rule table against a mailbox session. All execution
// is single-threaded: rules, pipeline steps and content-handler items run
// strictly in order, and only one wake-up pass is ever in flight.
type Engine struct {
	table  []Rule
	cfg    *Config
	sender Sender
	proxy  Proxy
	window *Window
	status *Status

	// sleep is replaced in tests to observe backoff delays. It reports
	// false when the context was cancelled before the delay elapsed.
	sleep func(ctx context.Context, d time.Duration) bool
}

// NewEngine builds an engine over an immutable rule table. The proxy may be
// nil when no rule uses the fetch-proxy step.
func NewEngine(table []Rule, cfg *Config, sender Sender, proxy Proxy) *Engine {
	return &Engine{
		table:  table,
		cfg:    cfg,
		sender: sender,
		proxy:  proxy,
		window: NewWindow(),
		status: newStatus(),
		sleep:  sleepCtx,
	}
}

// Status returns the engine's counters for the status page.
func (e *Engine) Status() *Status { return e.status }

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Run drives the engine until shutdown: connect, process, reconnect with
// exponential backoff on transport failures. In once mode it performs a
// single pass and returns its outcome.
func (e *Engine) Run(ctx context.Context, dial Dial, opts Options) error {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	retry := &backoff.Backoff{
		Min:    opts.InitialDelay,
		Max:    opts.MaxDelay,
		Factor: 2,
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		e.status.setState("connecting")
		s, err := dial()
		if err != nil {
			if opts.Once {
				return err
			}
			e.status.setError(err)
			e.status.setState("backoff")
			delay := retry.Duration()
			slog.Error("Connection failed", "error", err, "retry_in", delay)
			if !e.sleep(ctx, delay) {
				return nil
			}
			continue
		}

		if opts.Once {
			err := e.pass(ctx, s)
			_ = s.Close()
			return err
		}

		err = e.serve(ctx, s, opts.IdleTimeout, retry)
		_ = s.Close()

		var fatal *FatalConfigError
		switch {
		case errors.As(err, &fatal):
			return err
		case ctx.Err() != nil:
			e.status.setState("terminal")
			return nil
		case err == nil:
			// Session ended without error: reconnect immediately.
			retry.Reset()
		default:
			e.status.setError(err)
			e.status.setState("backoff")
			delay := retry.Duration()
			slog.Error("Session failed", "error", err, "retry_in", delay)
			if !e.sleep(ctx, delay) {
				return nil
			}
		}
	}
}

// serve runs the event loop inside one established session: one pass
// immediately (unprocessed mail may already be waiting), then one pass per
// mailbox change. The wait is bounded and reissued on its own timeout.
func (e *Engine) serve(ctx context.Context, s Session, idleTimeout time.Duration, retry *backoff.Backoff) error {
	supported, err := s.SupportIdle()
	if err != nil {
		return &TransportError{Op: "capability", Err: err}
	}
	if !supported {
		return &FatalConfigError{Reason: "server does not support the IDLE extension"}
	}

	e.status.setState("active")

	for {
		if err := e.pass(ctx, s); err != nil {
			return err
		}
		// The pass completed: the connection is healthy, so the next
		// failure starts over from the initial delay.
		retry.Reset()

		for {
			if ctx.Err() != nil {
				return nil
			}
			changed, err := s.WaitForChange(idleTimeout)
			if err != nil {
				return err
			}
			if changed {
				break
			}
		}
	}
}

// pass executes one rule-table pass: for every rule in order, search, and
// run the pipeline over any matches. A failed pipeline step aborts only
// that rule's remaining steps; a failed search aborts the whole pass.
func (e *Engine) pass(ctx context.Context, s Session) error {
	e.window.Rotate()
	e.status.wakeup()
	slog.Debug("Wake-up pass started", "rules", len(e.table))

	for _, rule := range e.table {
		if ctx.Err() != nil {
			return nil
		}

		uids, err := s.Search(rule.Query)
		if err != nil {
			return err
		}
		if len(uids) == 0 {
			continue
		}

		slog.Info("Rule matched", "rule", rule.Name, "count", len(uids))
		e.status.matched(rule.Name, len(uids))

		e.window.beginRule()
		for _, step := range rule.Steps {
			if ctx.Err() != nil {
				break
			}
			if err := e.runStep(s, step, uids); err != nil {
				slog.Error("Pipeline step failed", "rule", rule.Name, "error", err)
				break
			}
		}
		e.window.endRule()
	}
	return nil
}

// runStep dispatches one pipeline step over the matched UID set.
func (e *Engine) runStep(s Session, step Step, uids []uint32) error {
	switch step.Kind {
	case StepExpunge:
		return s.Expunge()
	case StepDelete:
		return s.StoreFlags(uids, FlagDeleted)
	case StepCopy:
		return s.Copy(uids, step.Folder)
	case StepMove:
		if err := s.Copy(uids, step.Folder); err != nil {
			return err
		}
		return s.StoreFlags(uids, FlagDeleted)
	case StepSetFlags:
		return s.StoreFlags(uids, step.Flags...)
	case StepSetFlagsAndMove:
		if err := s.StoreFlags(uids, step.Flags...); err != nil {
			return err
		}
		if err := s.Copy(uids, step.Folder); err != nil {
			return err
		}
		return s.StoreFlags(uids, FlagDeleted)
	case StepContent:
		return e.runContent(s, step.Content, uids)
	}
	return nil
}
