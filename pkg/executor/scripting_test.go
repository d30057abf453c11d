package executor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/devicelab-dev/dash-runner/pkg/core"
	"github.com/devicelab-dev/dash-runner/pkg/flow"
)

func TestNewScriptEngine(t *testing.T) {
	se := NewScriptEngine()

	if se.js == nil {
		t.Error("js engine not initialized")
	}
	if se.variables == nil {
		t.Error("variables map not initialized")
	}
}

func TestScriptEngine_SetVariable(t *testing.T) {
	se := NewScriptEngine()

	se.SetVariable("USERNAME", "john")
	se.SetVariable("COUNT", "42")

	if got := se.GetVariable("USERNAME"); got != "john" {
		t.Errorf("GetVariable(USERNAME) = %q, want %q", got, "john")
	}
	if got := se.GetVariable("COUNT"); got != "42" {
		t.Errorf("GetVariable(COUNT) = %q, want %q", got, "42")
	}
}

func TestScriptEngine_SetVariables(t *testing.T) {
	se := NewScriptEngine()

	se.SetVariables(map[string]string{
		"A": "1",
		"B": "2",
	})

	if got := se.GetVariable("A"); got != "1" {
		t.Errorf("GetVariable(A) = %q, want %q", got, "1")
	}
	if got := se.GetVariable("B"); got != "2" {
		t.Errorf("GetVariable(B) = %q, want %q", got, "2")
	}
}

func TestScriptEngine_SetList(t *testing.T) {
	se := NewScriptEngine()
	se.SetList("apps", []string{"Clock", "Camera"})

	if got := se.GetVariable("apps"); got != "Clock,Camera" {
		t.Errorf("GetVariable(apps) = %q, want %q", got, "Clock,Camera")
	}
	ok, err := se.EvalCondition("${apps.length == 2 && apps[1] == 'Camera'}")
	if err != nil {
		t.Fatalf("EvalCondition failed: %v", err)
	}
	if !ok {
		t.Error("expected list to be a JS array")
	}
}

func TestScriptEngine_Scope(t *testing.T) {
	se := NewScriptEngine()
	se.SetScope("musicaggregator")

	if got := se.Scope(); got != "musicaggregator" {
		t.Errorf("Scope() = %q", got)
	}
	ok, err := se.EvalCondition("dash.scope === 'musicaggregator'")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("dash.scope not visible to scripts")
	}
}

func TestScriptEngine_ImportSystemEnv(t *testing.T) {
	t.Setenv("DASH_RUNNER_TEST_VAR", "from-env")

	se := NewScriptEngine()
	se.ImportSystemEnv()

	if got := se.GetVariable("DASH_RUNNER_TEST_VAR"); got != "from-env" {
		t.Errorf("GetVariable = %q, want %q", got, "from-env")
	}
}

func TestScriptEngine_ExpandVariables(t *testing.T) {
	se := NewScriptEngine()
	se.SetVariable("NAME", "Clock")
	se.SetVariable("NAME_LONG", "Clock App")
	se.SetVariable("N", "2")

	tests := []struct {
		input string
		want  string
	}{
		{"no vars", "no vars"},
		{"${NAME}", "Clock"},
		{"$NAME", "Clock"},
		{"$NAME_LONG", "Clock App"},
		{"$NAMES", "$NAMES"},
		{"open $NAME now", "open Clock now"},
		{"${N * 2}", "4"},
		{"${missing}", "${missing}"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := se.ExpandVariables(tt.input); got != tt.want {
				t.Errorf("ExpandVariables(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestScriptEngine_RunScript(t *testing.T) {
	se := NewScriptEngine()

	err := se.RunScript("output.greeting = 'hello ' + WHO", map[string]string{"WHO": "dash"})
	if err != nil {
		t.Fatalf("RunScript failed: %v", err)
	}
	if got := se.GetVariable("greeting"); got != "hello dash" {
		t.Errorf("greeting = %q", got)
	}
	if got := se.GetOutput()["greeting"]; got != "hello dash" {
		t.Errorf("output.greeting = %v", got)
	}
}

func TestScriptEngine_RunScriptError(t *testing.T) {
	se := NewScriptEngine()

	err := se.RunScript("throw new Error('boom')", nil)
	if !errors.Is(err, core.ErrScript) {
		t.Fatalf("expected ErrScript, got %v", err)
	}
}

func TestScriptEngine_UndefinedEnvVar(t *testing.T) {
	se := NewScriptEngine()

	ok, err := se.EvalCondition("typeof SOME_UNSET_VAR === 'undefined'")
	if err != nil {
		t.Fatalf("EvalCondition failed: %v", err)
	}
	if !ok {
		t.Error("unset ALL_CAPS variable should be undefined")
	}
}

func TestScriptEngine_ExecuteRunScriptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "set.js"), []byte("output.fromFile = 'yes'"), 0o644); err != nil {
		t.Fatal(err)
	}

	se := NewScriptEngine()
	se.SetFlowDir(dir)

	if _, err := se.ExecuteRunScript(&flow.RunScriptStep{File: "set.js"}); err != nil {
		t.Fatalf("ExecuteRunScript failed: %v", err)
	}
	if got := se.GetVariable("fromFile"); got != "yes" {
		t.Errorf("fromFile = %q", got)
	}

	_, err := se.ExecuteRunScript(&flow.RunScriptStep{File: "missing.js"})
	if !errors.Is(err, core.ErrScript) {
		t.Errorf("expected ErrScript for a missing file, got %v", err)
	}
}

func TestScriptEngine_ExecuteAssertTrue(t *testing.T) {
	se := NewScriptEngine()
	se.SetVariable("COUNT", "3")

	if _, err := se.ExecuteAssertTrue(&flow.AssertTrueStep{Script: "${COUNT == 3}"}); err != nil {
		t.Errorf("expected pass, got %v", err)
	}
	_, err := se.ExecuteAssertTrue(&flow.AssertTrueStep{Script: "${COUNT > 5}"})
	if !errors.Is(err, core.ErrAssertion) {
		t.Errorf("expected ErrAssertion, got %v", err)
	}
}

func TestScriptEngine_ExecuteDefineVariables(t *testing.T) {
	se := NewScriptEngine()
	se.SetVariable("BASE", "click")

	_, err := se.ExecuteDefineVariables(&flow.DefineVariablesStep{Env: map[string]string{"SCOPE": "${BASE}scope"}})
	if err != nil {
		t.Fatal(err)
	}
	if got := se.GetVariable("SCOPE"); got != "clickscope" {
		t.Errorf("SCOPE = %q", got)
	}
}

func TestScriptEngine_WithEnvVars(t *testing.T) {
	se := NewScriptEngine()
	se.SetVariable("X", "outer")

	restore := se.withEnvVars(map[string]string{"X": "inner"})
	if got := se.GetVariable("X"); got != "inner" {
		t.Errorf("X = %q inside, want inner", got)
	}
	restore()
	if got := se.GetVariable("X"); got != "outer" {
		t.Errorf("X = %q after restore, want outer", got)
	}
}

func TestScriptEngine_ParseInt(t *testing.T) {
	se := NewScriptEngine()
	se.SetVariable("TIMES", "3")

	tests := []struct {
		input string
		want  int
	}{
		{"5", 5},
		{"10_000", 10000},
		{"$TIMES", 3},
		{"${TIMES * 2}", 6},
		{"abc", 7},
	}
	for _, tt := range tests {
		if got := se.ParseInt(tt.input, 7); got != tt.want {
			t.Errorf("ParseInt(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestScriptEngine_ExpandStep(t *testing.T) {
	se := NewScriptEngine()
	se.SetVariable("APP", "Clock")
	se.SetVariable("CAT", "local")

	orig := &flow.OpenPreviewStep{Category: "$CAT", App: "${APP}"}
	got, ok := se.ExpandStep(orig).(*flow.OpenPreviewStep)
	if !ok {
		t.Fatal("ExpandStep changed the step type")
	}
	if got.Category != "local" || got.App != "Clock" {
		t.Errorf("expanded step = %+v", got)
	}
	if orig.App != "${APP}" {
		t.Error("ExpandStep modified the parsed step")
	}
}

func TestScriptEngine_ExpandSelector(t *testing.T) {
	se := NewScriptEngine()
	se.SetVariable("APP", "Camera")

	step := &flow.TapOnStep{Selector: flow.Selector{
		Title:   "$APP",
		ChildOf: &flow.Selector{ID: "local", Properties: map[string]string{"scope": "${'click' + 'scope'}"}},
	}}
	got := se.ExpandStep(step).(*flow.TapOnStep)
	if got.Selector.Title != "Camera" {
		t.Errorf("Title = %q", got.Selector.Title)
	}
	if got.Selector.ChildOf.Properties["scope"] != "clickscope" {
		t.Errorf("childOf property = %q", got.Selector.ChildOf.Properties["scope"])
	}
	if step.Selector.ChildOf.Properties["scope"] != "${'click' + 'scope'}" {
		t.Error("ExpandStep modified the parsed selector")
	}
}
