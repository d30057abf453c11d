package flow

import (
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/dash-runner/pkg/core"
)

func TestSelector_UnmarshalScalar(t *testing.T) {
	var s Selector
	if err := yaml.Unmarshal([]byte(`dashContentList`), &s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID != "dashContentList" {
		t.Errorf("expected id=dashContentList, got %q", s.ID)
	}
}

func TestSelector_UnmarshalNestedChildOf(t *testing.T) {
	var s Selector
	data := `
type: Tile
text: Clock
childOf: local
`
	if err := yaml.Unmarshal([]byte(data), &s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ChildOf == nil || s.ChildOf.ID != "local" {
		t.Errorf("expected childOf id=local, got %+v", s.ChildOf)
	}
}

func TestSelector_IsEmpty(t *testing.T) {
	tests := []struct {
		name     string
		sel      Selector
		expected bool
	}{
		{"empty", Selector{}, true},
		{"type", Selector{Type: "Tile"}, false},
		{"id", Selector{ID: "seeAll"}, false},
		{"text", Selector{Text: "Clock"}, false},
		{"title", Selector{Title: "Clock"}, false},
		{"properties", Selector{Properties: map[string]string{"visible": "true"}}, false},
		{"only childOf", Selector{ChildOf: &Selector{ID: "x"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sel.IsEmpty(); got != tt.expected {
				t.Errorf("IsEmpty()=%v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSelector_Query(t *testing.T) {
	sel := Selector{
		Type:       "AbstractButton",
		ID:         "delegate2",
		Title:      "Camera",
		Properties: map[string]string{"visible": "true"},
	}
	q := sel.Query()
	if q.Type != "AbstractButton" {
		t.Errorf("expected type AbstractButton, got %q", q.Type)
	}
	want := map[string]interface{}{
		core.PropObjectName: "delegate2",
		core.PropTitle:      "Camera",
		"visible":           "true",
	}
	if len(q.Props) != len(want) {
		t.Fatalf("expected %d props, got %v", len(want), q.Props)
	}
	for k, v := range want {
		if q.Props[k] != v {
			t.Errorf("prop %s=%v, want %v", k, q.Props[k], v)
		}
	}
}

func TestSelector_QueryNamedFieldsWin(t *testing.T) {
	sel := Selector{ID: "a", Properties: map[string]string{core.PropObjectName: "b"}}
	if got := sel.Query().Props[core.PropObjectName]; got != "a" {
		t.Errorf("expected objectName=a, got %v", got)
	}
}

func TestSelector_QueryTypeOnly(t *testing.T) {
	q := (&Selector{Type: "Preview"}).Query()
	if q.Props != nil {
		t.Errorf("expected nil props, got %v", q.Props)
	}
}

func TestSelector_Describe(t *testing.T) {
	sel := Selector{Type: "Tile", Text: "Clock", ChildOf: &Selector{Type: "CardGrid", ID: "local"}}
	want := "Tile{text=Clock} in CardGrid{objectName=local}"
	if got := sel.Describe(); got != want {
		t.Errorf("Describe()=%q, want %q", got, want)
	}
}

func TestSelector_PropertyNames(t *testing.T) {
	sel := Selector{Properties: map[string]string{"x": "0", "moving": "false", "height": "80"}}
	got := sel.PropertyNames()
	want := []string{"height", "moving", "x"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("PropertyNames()[%d]=%q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseProperties(t *testing.T) {
	props, err := ParseProperties([]string{"objectName=seeAll", "text=a=b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if props["objectName"] != "seeAll" {
		t.Errorf("expected objectName=seeAll, got %q", props["objectName"])
	}
	if props["text"] != "a=b" {
		t.Errorf("expected text=a=b, got %q", props["text"])
	}

	for _, bad := range []string{"novalue", "=x"} {
		_, err := ParseProperties([]string{bad})
		if !core.IsCode(err, core.ErrInvalidConfig.Code) {
			t.Errorf("ParseProperties(%q): expected invalid config error, got %v", bad, err)
		}
	}
}
