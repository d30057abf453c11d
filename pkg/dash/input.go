package dash

import (
	"github.com/devicelab-dev/dash-runner/pkg/core"
	"github.com/devicelab-dev/dash-runner/pkg/logger"
)

// moveAndClick clicks at absolute coordinates.
func moveAndClick(input core.Pointer, x, y int) error {
	logger.Action("click", x, y)
	if err := input.Move(x, y); err != nil {
		return err
	}
	return input.Click()
}

// clickObject clicks the centre of a node's globalRect.
func clickObject(input core.Pointer, n core.Node) error {
	b, err := core.BoundsProperty(n, core.PropGlobalRect)
	if err != nil {
		return err
	}
	x, y := b.Center()
	return moveAndClick(input, x, y)
}
