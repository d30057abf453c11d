package wait

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/devicelab-dev/dash-runner/pkg/core"
)

var fast = Options{Timeout: 200 * time.Millisecond, Interval: time.Millisecond}

// countingNode flips a property after a number of reads and finds a child
// after a number of selections.
type countingNode struct {
	reads       int
	flipAfter   int
	selects     int
	appearAfter int
	ambiguous   bool
	propErr     error
}

func (c *countingNode) ID() string       { return "n1" }
func (c *countingNode) TypeName() string { return "QQuickListView" }
func (c *countingNode) Children() ([]core.Node, error) {
	return nil, nil
}

func (c *countingNode) SelectMany(q core.Query) ([]core.Node, error) {
	return nil, nil
}

func (c *countingNode) SelectSingle(q core.Query) (core.Node, error) {
	c.selects++
	if c.ambiguous {
		return nil, core.ErrAmbiguous
	}
	if c.selects <= c.appearAfter {
		return nil, core.ErrNotFound.WithMessagef("no element matches %s", q)
	}
	return &countingNode{}, nil
}

func (c *countingNode) Property(name string) (interface{}, error) {
	if c.propErr != nil {
		return nil, c.propErr
	}
	c.reads++
	return c.reads <= c.flipAfter, nil
}

func TestUntilImmediate(t *testing.T) {
	calls := 0
	err := Until(context.Background(), fast, "always", func() (bool, error) {
		calls++
		return true, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestUntilTimeout(t *testing.T) {
	start := time.Now()
	err := Until(context.Background(), fast, "never", func() (bool, error) {
		return false, nil
	})
	if !errors.Is(err, core.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !strings.Contains(err.Error(), "never") {
		t.Errorf("error should describe the wait: %v", err)
	}
	if time.Since(start) < fast.Timeout {
		t.Error("returned before the timeout elapsed")
	}
}

func TestUntilConditionErrorAborts(t *testing.T) {
	boom := errors.New("bridge gone")
	calls := 0
	err := Until(context.Background(), fast, "x", func() (bool, error) {
		calls++
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected condition error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("condition error should not be retried, got %d calls", calls)
	}
}

func TestUntilRetryableBecomesCause(t *testing.T) {
	missing := core.ErrNotFound.WithMessage("no dashContent")
	err := Until(context.Background(), fast, "dashContent", func() (bool, error) {
		return false, Retry(missing)
	})
	if !errors.Is(err, core.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("timeout should wrap the last retryable error: %v", err)
	}
}

func TestUntilContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Until(ctx, Options{Timeout: time.Minute, Interval: time.Millisecond}, "x", func() (bool, error) {
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
	if !strings.Contains(err.Error(), "cancelled while waiting for x") {
		t.Errorf("error should name the cancellation: %v", err)
	}
	if strings.Contains(err.Error(), "timed out after") {
		t.Errorf("error should not blame the wait budget: %v", err)
	}
}

func TestUntilEnclosingDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	missing := core.ErrNotFound.WithMessage("no searchTextField")
	start := time.Now()
	err := Until(ctx, Options{Timeout: 10 * time.Second, Interval: time.Millisecond}, "searchTextField", func() (bool, error) {
		return false, Retry(missing)
	})
	if time.Since(start) > 5*time.Second {
		t.Fatalf("enclosing deadline not honoured, took %v", time.Since(start))
	}
	if !errors.Is(err, core.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded in chain, got %v", err)
	}
	msg := err.Error()
	if strings.Contains(msg, "timed out after 10s") {
		t.Errorf("error should not report the per-wait budget: %v", err)
	}
	if !strings.Contains(msg, "enclosing deadline") || !strings.Contains(msg, "searchTextField") {
		t.Errorf("error should name the enclosing deadline: %v", err)
	}
	if !strings.Contains(msg, "no searchTextField") {
		t.Errorf("error should keep the last retryable error: %v", err)
	}
}

func TestForProperty(t *testing.T) {
	n := &countingNode{flipAfter: 3}
	if err := ForProperty(context.Background(), n, core.PropMoving, false, fast); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.reads != 4 {
		t.Errorf("expected 4 reads, got %d", n.reads)
	}
}

func TestForPropertyTimeoutReportsLastValue(t *testing.T) {
	n := &countingNode{flipAfter: 1 << 30}
	err := ForProperty(context.Background(), n, core.PropMoving, false, fast)
	if !errors.Is(err, core.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !strings.Contains(err.Error(), "last value true") {
		t.Errorf("error should carry the last value: %v", err)
	}
}

func TestForPropertyUnknownPropertyFailsFast(t *testing.T) {
	n := &countingNode{propErr: core.ErrUnknownProperty}
	err := ForProperty(context.Background(), n, "bogus", true, fast)
	if !errors.Is(err, core.ErrUnknownProperty) {
		t.Errorf("expected ErrUnknownProperty, got %v", err)
	}
}

func TestSelectSingleWaitsForElement(t *testing.T) {
	n := &countingNode{appearAfter: 2}
	node, err := SelectSingle(context.Background(), n, core.ByObjectName("dashContent"), fast)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node == nil {
		t.Fatal("expected a node")
	}
	if n.selects != 3 {
		t.Errorf("expected 3 selections, got %d", n.selects)
	}
}

func TestSelectSingleTimeout(t *testing.T) {
	n := &countingNode{appearAfter: 1 << 30}
	_, err := SelectSingle(context.Background(), n, core.ByObjectName("dashContent"), fast)
	if !errors.Is(err, core.ErrTimeout) || !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected timeout wrapping not-found, got %v", err)
	}
}

func TestSelectSingleAmbiguousFailsFast(t *testing.T) {
	n := &countingNode{ambiguous: true}
	_, err := SelectSingle(context.Background(), n, core.Select("Tile"), fast)
	if !errors.Is(err, core.ErrAmbiguous) {
		t.Fatalf("expected ErrAmbiguous, got %v", err)
	}
	if n.selects != 1 {
		t.Errorf("expected 1 selection, got %d", n.selects)
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	o := Options{}.WithDefaults()
	if o.Timeout != DefaultTimeout || o.Interval != DefaultInterval {
		t.Errorf("WithDefaults() = %+v", o)
	}
	o = Options{Timeout: time.Second, Interval: time.Millisecond}.WithDefaults()
	if o.Timeout != time.Second || o.Interval != time.Millisecond {
		t.Errorf("WithDefaults() overrode explicit values: %+v", o)
	}
}
