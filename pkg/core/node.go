package core

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Well-known property names exposed by the shell's introspection tree.
const (
	PropObjectName   = "objectName"
	PropGlobalRect   = "globalRect"
	PropIsCurrent    = "isCurrent"
	PropCurrentIndex = "currentIndex"
	PropMoving       = "moving"
	PropScopeID      = "scopeId"
	PropTitle        = "title"
	PropText         = "text"
	PropVisible      = "visible"
	PropWidth        = "width"
	PropHeight       = "height"
	PropContentY     = "contentY"
	PropX            = "x"
	PropSubPageShown = "subPageShown"
)

// Node is a handle to one object in the remote UI tree.
// Implementations: bridge (HTTP introspection bridge), fakeshell (in-memory).
// Selection searches all descendants of the node, never the node itself.
type Node interface {
	// ID returns the backend's stable identifier for the node
	ID() string

	// TypeName returns the object's type, e.g. "QQuickLoader"
	TypeName() string

	// SelectSingle returns the only descendant matching q.
	// Fails with ErrNotFound when none match and ErrAmbiguous when several do.
	SelectSingle(q Query) (Node, error)

	// SelectMany returns every descendant matching q in tree order.
	SelectMany(q Query) ([]Node, error)

	// Children returns the direct children in tree order.
	Children() ([]Node, error)

	// Property reads the current value of an observable property.
	// Fails with ErrUnknownProperty when the node has no such property.
	Property(name string) (interface{}, error)
}

// Pointer injects synthetic pointer events.
type Pointer interface {
	// Move places the pointer at absolute screen coordinates
	Move(x, y int) error

	// Click presses and releases the primary button at the current position
	Click() error

	// Drag presses at (x1,y1), moves to (x2,y2) and releases
	Drag(x1, y1, x2, y2 int) error
}

// Keyboard injects synthetic key events.
type Keyboard interface {
	// Write types text into whatever has keyboard focus
	Write(text string) error
}

// Input combines the pointer and keyboard backends.
type Input interface {
	Pointer
	Keyboard
}

// Query selects nodes by type and property values.
type Query struct {
	Type  string                 // Object type; empty matches any type
	Props map[string]interface{} // Every listed property must be present and equal
}

// Select builds a query from a type and alternating property name/value pairs.
func Select(typeName string, kv ...interface{}) Query {
	q := Query{Type: typeName}
	if len(kv) > 0 {
		q.Props = make(map[string]interface{}, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			name, _ := kv[i].(string)
			q.Props[name] = kv[i+1]
		}
	}
	return q
}

// ByObjectName selects any node with the given objectName.
func ByObjectName(name string) Query {
	return Select("", PropObjectName, name)
}

// String describes the query, e.g. QQuickLoader{scopeId=clickscope}.
func (q Query) String() string {
	typ := q.Type
	if typ == "" {
		typ = "*"
	}
	if len(q.Props) == 0 {
		return typ
	}
	names := make([]string, 0, len(q.Props))
	for name := range q.Props {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%v", name, q.Props[name])
	}
	return typ + "{" + strings.Join(parts, ", ") + "}"
}

// SingleOf applies exactly-one selection semantics to a match list.
func SingleOf(nodes []Node, q Query) (Node, error) {
	switch len(nodes) {
	case 0:
		return nil, ErrNotFound.WithMessagef("no element matches %s", q)
	case 1:
		return nodes[0], nil
	default:
		return nil, ErrAmbiguous.WithMessagef("%d elements match %s", len(nodes), q)
	}
}

// ValuesEqual compares property values across backends. JSON numbers,
// Go integers and the string forms found in XML snapshots compare equal
// when they denote the same value.
func ValuesEqual(a, b interface{}) bool {
	return normalize(a) == normalize(b)
}

func normalize(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case Bounds:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

// BoolProperty reads a boolean property.
func BoolProperty(n Node, name string) (bool, error) {
	v, err := n.Property(name)
	if err != nil {
		return false, err
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return false, fmt.Errorf("property %s: %q is not a boolean", name, t)
		}
		return b, nil
	default:
		return false, fmt.Errorf("property %s: %T is not a boolean", name, v)
	}
}

// IntProperty reads a numeric property, truncating fractional values.
func IntProperty(n Node, name string) (int, error) {
	v, err := n.Property(name)
	if err != nil {
		return 0, err
	}
	return toInt(name, v)
}

// StringProperty reads a property as a string.
func StringProperty(n Node, name string) (string, error) {
	v, err := n.Property(name)
	if err != nil {
		return "", err
	}
	return normalize(v), nil
}

// BoundsProperty reads a rectangle property such as globalRect.
// Accepts [x, y, w, h] arrays, {x, y, width, height} objects and "x,y,w,h" strings.
func BoundsProperty(n Node, name string) (Bounds, error) {
	v, err := n.Property(name)
	if err != nil {
		return Bounds{}, err
	}
	return ParseBounds(v)
}

// ParseBounds converts any of the rectangle encodings to Bounds.
func ParseBounds(v interface{}) (Bounds, error) {
	switch t := v.(type) {
	case Bounds:
		return t, nil
	case []interface{}:
		if len(t) != 4 {
			return Bounds{}, fmt.Errorf("rectangle needs 4 values, got %d", len(t))
		}
		var vals [4]int
		for i, e := range t {
			n, err := toInt("rect", e)
			if err != nil {
				return Bounds{}, err
			}
			vals[i] = n
		}
		return Bounds{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, nil
	case []int:
		if len(t) != 4 {
			return Bounds{}, fmt.Errorf("rectangle needs 4 values, got %d", len(t))
		}
		return Bounds{X: t[0], Y: t[1], Width: t[2], Height: t[3]}, nil
	case map[string]interface{}:
		var b Bounds
		var err error
		if b.X, err = toInt("x", t["x"]); err != nil {
			return Bounds{}, err
		}
		if b.Y, err = toInt("y", t["y"]); err != nil {
			return Bounds{}, err
		}
		if b.Width, err = toInt("width", t["width"]); err != nil {
			return Bounds{}, err
		}
		if b.Height, err = toInt("height", t["height"]); err != nil {
			return Bounds{}, err
		}
		return b, nil
	case string:
		fields := strings.Split(t, ",")
		if len(fields) != 4 {
			return Bounds{}, fmt.Errorf("rectangle %q needs 4 values", t)
		}
		var vals [4]int
		for i, f := range fields {
			n, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil {
				return Bounds{}, fmt.Errorf("rectangle %q: %w", t, err)
			}
			vals[i] = n
		}
		return Bounds{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, nil
	default:
		return Bounds{}, fmt.Errorf("%T is not a rectangle", v)
	}
}

// RectX reads the x origin of a rectangle property. Unlike ParseBounds it
// keeps fractional positions.
func RectX(n Node, name string) (float64, error) {
	v, err := n.Property(name)
	if err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case Bounds:
		return float64(t.X), nil
	case []int:
		if len(t) != 4 {
			return 0, fmt.Errorf("rectangle needs 4 values, got %d", len(t))
		}
		return float64(t[0]), nil
	case []interface{}:
		if len(t) != 4 {
			return 0, fmt.Errorf("rectangle needs 4 values, got %d", len(t))
		}
		return toFloat("x", t[0])
	case map[string]interface{}:
		return toFloat("x", t["x"])
	case string:
		fields := strings.Split(t, ",")
		if len(fields) != 4 {
			return 0, fmt.Errorf("rectangle %q needs 4 values", t)
		}
		return toFloat("x", strings.TrimSpace(fields[0]))
	default:
		return 0, fmt.Errorf("%T is not a rectangle", v)
	}
}

func toFloat(name string, v interface{}) (float64, error) {
	switch t := v.(type) {
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case float64:
		return t, nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("property %s: %q is not a number", name, t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("property %s: %T is not a number", name, v)
	}
}

func toInt(name string, v interface{}) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("property %s: %q is not a number", name, t)
		}
		return int(f), nil
	default:
		return 0, fmt.Errorf("property %s: %T is not a number", name, v)
	}
}
