package core

import (
	"errors"
	"testing"
)

type stubNode struct {
	id    string
	props map[string]interface{}
}

func (s *stubNode) ID() string                         { return s.id }
func (s *stubNode) TypeName() string                   { return "Stub" }
func (s *stubNode) SelectSingle(q Query) (Node, error) { return nil, ErrNotFound }
func (s *stubNode) SelectMany(q Query) ([]Node, error) { return nil, nil }
func (s *stubNode) Children() ([]Node, error)          { return nil, nil }
func (s *stubNode) Property(name string) (interface{}, error) {
	v, ok := s.props[name]
	if !ok {
		return nil, ErrUnknownProperty.WithMessagef("no property %s", name)
	}
	return v, nil
}

func TestQueryString(t *testing.T) {
	q := Select("QQuickLoader", "scopeId", "clickscope", "isCurrent", true)
	if got := q.String(); got != "QQuickLoader{isCurrent=true, scopeId=clickscope}" {
		t.Errorf("String() = %q", got)
	}
	if got := ByObjectName("dashContent").String(); got != "*{objectName=dashContent}" {
		t.Errorf("String() = %q", got)
	}
	if got := (Query{Type: "Tile"}).String(); got != "Tile" {
		t.Errorf("String() = %q", got)
	}
}

func TestSingleOf(t *testing.T) {
	q := Select("Tile")
	a, b := &stubNode{id: "a"}, &stubNode{id: "b"}

	if _, err := SingleOf(nil, q); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if n, err := SingleOf([]Node{a}, q); err != nil || n.ID() != "a" {
		t.Errorf("expected node a, got %v, %v", n, err)
	}
	if _, err := SingleOf([]Node{a, b}, q); !errors.Is(err, ErrAmbiguous) {
		t.Errorf("expected ErrAmbiguous, got %v", err)
	}
}

func TestValuesEqual(t *testing.T) {
	tests := []struct {
		a, b interface{}
		want bool
	}{
		{true, "true", true},
		{false, true, false},
		{3, 3.0, true},
		{3, "3", true},
		{-1, float64(-1), true},
		{2.5, "2.5", true},
		{"clickscope", "clickscope", true},
		{"clickscope", "music", false},
		{Bounds{X: 1, Y: 2, Width: 3, Height: 4}, "1,2,3,4", true},
	}

	for _, tt := range tests {
		if got := ValuesEqual(tt.a, tt.b); got != tt.want {
			t.Errorf("ValuesEqual(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestTypedProperties(t *testing.T) {
	n := &stubNode{props: map[string]interface{}{
		"isCurrent":    "true",
		"moving":       false,
		"currentIndex": float64(2),
		"title":        "Calculator",
		"globalRect":   []interface{}{float64(10), float64(20), float64(300), float64(40)},
		"bad":          map[string]interface{}{},
	}}

	if v, err := BoolProperty(n, "isCurrent"); err != nil || !v {
		t.Errorf("BoolProperty(isCurrent) = %v, %v", v, err)
	}
	if v, err := BoolProperty(n, "moving"); err != nil || v {
		t.Errorf("BoolProperty(moving) = %v, %v", v, err)
	}
	if v, err := IntProperty(n, "currentIndex"); err != nil || v != 2 {
		t.Errorf("IntProperty(currentIndex) = %v, %v", v, err)
	}
	if v, err := StringProperty(n, "title"); err != nil || v != "Calculator" {
		t.Errorf("StringProperty(title) = %v, %v", v, err)
	}
	b, err := BoundsProperty(n, "globalRect")
	if err != nil {
		t.Fatalf("BoundsProperty failed: %v", err)
	}
	if b != (Bounds{X: 10, Y: 20, Width: 300, Height: 40}) {
		t.Errorf("BoundsProperty = %+v", b)
	}
	if _, err := BoolProperty(n, "title"); err == nil {
		t.Error("expected error reading a string as boolean")
	}
	if _, err := BoundsProperty(n, "bad"); err == nil {
		t.Error("expected error for malformed rectangle")
	}
	if _, err := IntProperty(n, "missing"); !errors.Is(err, ErrUnknownProperty) {
		t.Errorf("expected ErrUnknownProperty, got %v", err)
	}
}

func TestParseBounds(t *testing.T) {
	want := Bounds{X: 0, Y: 80, Width: 720, Height: 1200}
	inputs := []interface{}{
		"0,80,720,1200",
		[]int{0, 80, 720, 1200},
		map[string]interface{}{"x": 0.0, "y": 80.0, "width": 720.0, "height": 1200.0},
		want,
	}
	for _, in := range inputs {
		got, err := ParseBounds(in)
		if err != nil {
			t.Errorf("ParseBounds(%v) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseBounds(%v) = %+v", in, got)
		}
	}
	if _, err := ParseBounds("1,2,3"); err == nil {
		t.Error("expected error for short rectangle")
	}
}

func TestRectXKeepsFractions(t *testing.T) {
	n := &stubNode{id: "1", props: map[string]interface{}{
		"object": map[string]interface{}{"x": 0.9, "y": 0.0, "width": 720.0, "height": 1280.0},
		"list":   []interface{}{-0.4, 0.0, 720.0, 1280.0},
		"text":   "12.5, 0, 720, 1280",
		"ints":   []int{3, 0, 720, 1280},
		"bounds": Bounds{X: 7, Width: 1, Height: 1},
		"short":  "1,2,3",
	}}
	want := map[string]float64{"object": 0.9, "list": -0.4, "text": 12.5, "ints": 3, "bounds": 7}
	for name, x := range want {
		got, err := RectX(n, name)
		if err != nil {
			t.Errorf("RectX(%s) failed: %v", name, err)
			continue
		}
		if got != x {
			t.Errorf("RectX(%s) = %v, want %v", name, got, x)
		}
	}
	if _, err := RectX(n, "short"); err == nil {
		t.Error("expected error for short rectangle")
	}
	if _, err := RectX(n, "missing"); !errors.Is(err, ErrUnknownProperty) {
		t.Errorf("expected ErrUnknownProperty, got %v", err)
	}
}

func TestBounds(t *testing.T) {
	b := Bounds{X: 100, Y: 200, Width: 50, Height: 20}
	if x, y := b.Center(); x != 125 || y != 210 {
		t.Errorf("Center() = (%d, %d)", x, y)
	}
	if !b.Contains(100, 200) || b.Contains(150, 200) {
		t.Error("Contains() edge handling is wrong")
	}
	outer := Bounds{X: 0, Y: 0, Width: 130, Height: 300}
	if !b.CenterInside(outer) {
		t.Error("CenterInside() = false, want true")
	}
	if b.String() != "100,200,50,20" {
		t.Errorf("String() = %q", b.String())
	}
}
