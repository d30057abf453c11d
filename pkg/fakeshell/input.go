package fakeshell

import (
	"fmt"

	"github.com/devicelab-dev/dash-runner/pkg/tree"
)

// Move places the pointer.
func (s *Shell) Move(x, y int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pointerX, s.pointerY = x, y
	s.gestures = append(s.gestures, Gesture{Kind: "move", X1: x, Y1: y, FromIndex: s.current, ToIndex: s.current})
	return nil
}

// Click activates the deepest clickable item under the pointer. Clicking
// empty space is not an error.
func (s *Shell) Click() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	x, y := s.pointerX, s.pointerY
	s.gestures = append(s.gestures, Gesture{Kind: "click", X1: x, Y1: y, FromIndex: s.current, ToIndex: s.current})

	hit := tree.DeepestAt(s.root, x, y, s.resolve, s.clickable)
	for e := hit; e != nil; e = e.Parent {
		if action, ok := s.actions[e]; ok {
			action()
			return nil
		}
	}
	return nil
}

func (s *Shell) clickable(e *tree.Element) bool {
	switch e.Type {
	case "AbstractButton", "Tile", "TextField":
		return true
	}
	return false
}

// Drag performs a horizontal flick over the dash content. A drag shorter
// than a sixth of the screen width snaps back. Dragging right to left moves
// to the next scope, left to right to the previous one.
func (s *Shell) Drag(x1, y1, x2, y2 int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := Gesture{Kind: "drag", X1: x1, Y1: y1, X2: x2, Y2: y2, FromIndex: s.current, ToIndex: s.current}

	dx := x2 - x1
	target := s.current
	switch {
	case dx <= -s.opts.Width/6 && s.current < len(s.opts.Scopes)-1:
		target = s.current + 1
	case dx >= s.opts.Width/6 && s.current > 0:
		target = s.current - 1
	}
	g.ToIndex = target
	s.gestures = append(s.gestures, g)

	if target == s.current {
		return nil
	}
	s.moving = true
	s.animate(func() {
		s.current = target
		s.moving = false
	})
	return nil
}

// Write types text into the focused field and starts a search.
func (s *Shell) Write(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gestures = append(s.gestures, Gesture{Kind: "write", Text: text, FromIndex: s.current, ToIndex: s.current})
	if s.focus == nil {
		return fmt.Errorf("no item has keyboard focus")
	}
	s.typed[s.focus] += text
	s.processing = true
	s.animate(func() {
		s.processing = false
	})
	return nil
}

// TypedText returns the text entered into the search field of a scope.
func (s *Shell) TypedText(scopeID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sc := range s.opts.Scopes {
		if sc.ID != scopeID {
			continue
		}
		for e, text := range s.typed {
			if s.owner[e] == i {
				return text
			}
		}
	}
	return ""
}
