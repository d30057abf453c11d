// Package wait provides the bounded polling primitive used to observe the
// remote UI tree: poll a condition with an explicit timeout and interval and
// return an error instead of blocking forever.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devicelab-dev/dash-runner/pkg/core"
)

// Defaults match the introspection library's stock wait_for budget.
const (
	DefaultTimeout  = 10 * time.Second
	DefaultInterval = 100 * time.Millisecond
)

// Options bounds a wait.
type Options struct {
	Timeout  time.Duration // Total budget (0 = DefaultTimeout)
	Interval time.Duration // Pause between polls (0 = DefaultInterval)
}

// WithDefaults fills unset fields.
func (o Options) WithDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	return o
}

// Condition is polled until it reports true. A non-nil error aborts the wait.
type Condition func() (bool, error)

// retryable marks an error the condition wants polled through.
type retryable struct{ err error }

func (r retryable) Error() string { return r.err.Error() }
func (r retryable) Unwrap() error { return r.err }

// Retry wraps err so Until keeps polling instead of aborting. The last
// retryable error becomes the cause of the eventual timeout.
func Retry(err error) error {
	return retryable{err: err}
}

// Until polls cond until it returns true, returns an error, ctx ends or the
// timeout elapses. The first poll happens immediately. When ctx itself ends
// first, the error names the cancellation or the enclosing deadline and
// wraps ctx.Err() instead of reporting the per-wait budget.
func Until(ctx context.Context, opts Options, desc string, cond Condition) error {
	opts = opts.WithDefaults()
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var lastErr error
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		ok, err := cond()
		if err != nil {
			var r retryable
			if !errors.As(err, &r) {
				return err
			}
			lastErr = r.err
		} else if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			if parent.Err() != nil {
				return interrupted(parent, desc, lastErr)
			}
			timeoutErr := core.ErrTimeout.WithMessagef("timed out after %v waiting for %s", opts.Timeout, desc)
			if lastErr != nil {
				return timeoutErr.WithCause(lastErr)
			}
			return timeoutErr
		case <-ticker.C:
		}
	}
}

// interrupted describes a wait cut short by its parent context.
func interrupted(parent context.Context, desc string, lastErr error) error {
	var msg string
	if errors.Is(parent.Err(), context.Canceled) {
		msg = fmt.Sprintf("cancelled while waiting for %s", desc)
	} else {
		msg = fmt.Sprintf("enclosing deadline exceeded while waiting for %s", desc)
		if deadline, ok := parent.Deadline(); ok {
			msg = fmt.Sprintf("enclosing deadline %s exceeded while waiting for %s",
				deadline.Format("15:04:05.000"), desc)
		}
	}
	if lastErr != nil {
		msg = fmt.Sprintf("%s (last error: %v)", msg, lastErr)
	}
	return core.ErrTimeout.WithMessage(msg).WithCause(parent.Err())
}

// ForProperty waits until the node's property equals want.
func ForProperty(ctx context.Context, n core.Node, name string, want interface{}, opts Options) error {
	var last interface{}
	desc := fmt.Sprintf("%s.%s == %v", n.TypeName(), name, want)
	err := Until(ctx, opts, desc, func() (bool, error) {
		v, err := n.Property(name)
		if err != nil {
			return false, err
		}
		last = v
		return core.ValuesEqual(v, want), nil
	})
	var ee *core.ExecutionError
	if errors.As(err, &ee) && ee.Code == core.ErrTimeout.Code {
		return ee.WithMessagef("%s (last value %v)", ee.Message, last)
	}
	return err
}

// SelectSingle waits until exactly one descendant of n matches q.
// A missing element is polled through; an ambiguous match fails at once.
func SelectSingle(ctx context.Context, n core.Node, q core.Query, opts Options) (core.Node, error) {
	var found core.Node
	err := Until(ctx, opts, q.String(), func() (bool, error) {
		node, err := n.SelectSingle(q)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return false, Retry(err)
			}
			return false, err
		}
		found = node
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}
