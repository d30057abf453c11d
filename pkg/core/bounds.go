package core

import "fmt"

// Bounds represents element position and size in global screen coordinates
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the center point of the bounds
func (b Bounds) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Contains checks if a point is within the bounds
func (b Bounds) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

// CenterInside checks if the center of b lies within outer
func (b Bounds) CenterInside(outer Bounds) bool {
	return outer.Contains(b.Center())
}

// String renders the bounds in the "x,y,w,h" snapshot encoding.
func (b Bounds) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", b.X, b.Y, b.Width, b.Height)
}
