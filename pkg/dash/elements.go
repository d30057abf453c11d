package dash

import (
	"context"

	"github.com/devicelab-dev/dash-runner/pkg/core"
	"github.com/devicelab-dev/dash-runner/pkg/logger"
	"github.com/devicelab-dev/dash-runner/pkg/wait"
)

// WithWait returns a copy of the Dash that waits with o.
func (d *Dash) WithWait(o wait.Options) *Dash {
	c := *d
	c.opts.Wait = o
	return &c
}

// WaitOptions returns the wait budget of the Dash.
func (d *Dash) WaitOptions() wait.Options {
	return d.opts.Wait
}

// WaitFor waits for an element below the Dash. Each query narrows the
// search to the element matched by the one before it; the last one
// selects the result.
func (d *Dash) WaitFor(ctx context.Context, path ...core.Query) (core.Node, error) {
	if len(path) == 0 {
		return nil, core.ErrMissingRequired.WithMessage("no element query given")
	}
	n := d.node
	for _, q := range path {
		next, err := wait.SelectSingle(ctx, n, q, d.opts.Wait)
		if err != nil {
			return nil, err
		}
		n = next
	}
	return n, nil
}

// ClickElement waits for an element and clicks the centre of its globalRect.
// The clicked element is returned.
func (d *Dash) ClickElement(ctx context.Context, path ...core.Query) (core.Node, error) {
	n, err := d.WaitFor(ctx, path...)
	if err != nil {
		return nil, err
	}
	logger.Debug("clicking %s %s", n.TypeName(), n.ID())
	return n, clickObject(d.input, n)
}
