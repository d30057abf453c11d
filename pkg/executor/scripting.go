package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/devicelab-dev/dash-runner/pkg/core"
	"github.com/devicelab-dev/dash-runner/pkg/flow"
	"github.com/devicelab-dev/dash-runner/pkg/jsengine"
)

// envVarPattern matches ALL_CAPS identifiers that look like env variables
var envVarPattern = regexp.MustCompile(`\b([A-Z][A-Z0-9_]{2,})\b`)

// ScriptEngine handles JavaScript execution and variable management.
type ScriptEngine struct {
	js        *jsengine.Engine
	variables map[string]string
	flowDir   string // Directory of current flow (for resolving relative paths)
}

// NewScriptEngine creates a new script engine.
func NewScriptEngine() *ScriptEngine {
	return &ScriptEngine{
		js:        jsengine.New(),
		variables: make(map[string]string),
	}
}

// SetFlowDir sets the current flow directory for relative path resolution.
func (se *ScriptEngine) SetFlowDir(dir string) {
	se.flowDir = dir
}

// SetVariable sets a variable in both Go map and JS engine.
func (se *ScriptEngine) SetVariable(name, value string) {
	se.variables[name] = value
	se.js.SetVariable(name, value)
}

// SetVariables sets multiple variables.
func (se *ScriptEngine) SetVariables(vars map[string]string) {
	for k, v := range vars {
		se.SetVariable(k, v)
	}
}

// SetList exposes a list to scripts as an array. $NAME expands to the
// comma separated items.
func (se *ScriptEngine) SetList(name string, items []string) {
	se.variables[name] = strings.Join(items, ",")
	se.js.SetVariable(name, items)
}

// ImportSystemEnv imports system environment variables into the script engine.
// Only imports variables matching the pattern (uppercase with underscores).
func (se *ScriptEngine) ImportSystemEnv() {
	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if ok && envVarPattern.MatchString(name) {
			se.SetVariable(name, value)
		}
	}
}

// GetVariable returns a variable value.
func (se *ScriptEngine) GetVariable(name string) string {
	return se.variables[name]
}

// SetScope records the current scope for dash.scope.
func (se *ScriptEngine) SetScope(id string) {
	se.js.SetScope(id)
}

// Scope returns the recorded scope id.
func (se *ScriptEngine) Scope() string {
	return se.js.Scope()
}

// GetOutput returns the JS output variables.
func (se *ScriptEngine) GetOutput() map[string]interface{} {
	return se.js.GetOutput()
}

// SyncOutputToVariables copies JS output back to variables.
func (se *ScriptEngine) SyncOutputToVariables() {
	for k, v := range se.js.GetOutput() {
		se.variables[k] = fmt.Sprintf("%v", v)
	}
}

// ExpandVariables expands ${expr} and $VAR syntax in text.
func (se *ScriptEngine) ExpandVariables(text string) string {
	if !strings.Contains(text, "$") {
		return text
	}
	result, err := se.js.ExpandVariables(text)
	if err == nil {
		text = result
	}
	return se.expandDollarVars(text)
}

// expandDollarVars expands $VAR syntax (without braces) using stored variables.
func (se *ScriptEngine) expandDollarVars(text string) string {
	// Longest first to avoid partial matches
	names := make([]string, 0, len(se.variables))
	for name := range se.variables {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return len(names[i]) > len(names[j])
	})

	for _, name := range names {
		text = expandDollarVar(text, name, se.variables[name])
	}
	return text
}

// expandDollarVar replaces $VAR with value, checking word boundaries.
func expandDollarVar(text, name, value string) string {
	pattern := "$" + name
	idx := 0
	for {
		pos := strings.Index(text[idx:], pattern)
		if pos == -1 {
			break
		}
		pos += idx

		// Followed by an identifier character means a different variable
		endPos := pos + len(pattern)
		if endPos < len(text) {
			next := text[endPos]
			if (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z') ||
				(next >= '0' && next <= '9') || next == '_' {
				idx = endPos
				continue
			}
		}

		text = text[:pos] + value + text[endPos:]
		idx = pos + len(value)
	}
	return text
}

// defineEnvLike pre-defines ALL_CAPS names as undefined so scripts can test
// for unset variables without a ReferenceError.
func (se *ScriptEngine) defineEnvLike(script string) {
	for _, name := range envVarPattern.FindAllString(script, -1) {
		se.js.DefineUndefinedIfMissing(name)
	}
}

// RunScript executes a JavaScript script.
func (se *ScriptEngine) RunScript(script string, env map[string]string) error {
	script = se.expandDollarVars(script)

	for k, v := range env {
		se.SetVariable(k, v)
	}

	se.defineEnvLike(script)
	if err := se.js.RunScript(script); err != nil {
		return core.ErrScript.WithMessage(err.Error()).WithCause(err)
	}

	se.SyncOutputToVariables()
	return nil
}

// EvalCondition evaluates a script condition and returns true/false.
func (se *ScriptEngine) EvalCondition(script string) (bool, error) {
	script = se.expandDollarVars(extractJS(script))
	se.defineEnvLike(script)

	ok, err := se.js.EvalBool(script)
	if err != nil {
		return false, core.ErrScript.WithMessage(err.Error()).WithCause(err)
	}
	return ok, nil
}

// ResolvePath resolves a relative path against the flow directory.
func (se *ScriptEngine) ResolvePath(path string) string {
	if filepath.IsAbs(path) || se.flowDir == "" {
		return path
	}
	return filepath.Join(se.flowDir, path)
}

// extractJS extracts JavaScript from a ${...} wrapper if present.
func extractJS(script string) string {
	script = strings.TrimSpace(script)
	if strings.HasPrefix(script, "${") && strings.HasSuffix(script, "}") {
		return script[2 : len(script)-1]
	}
	return script
}

// ============================================
// Step Execution Helpers
// ============================================

// ExecuteDefineVariables handles defineVariables step.
func (se *ScriptEngine) ExecuteDefineVariables(step *flow.DefineVariablesStep) (string, error) {
	for k, v := range step.Env {
		se.SetVariable(k, se.ExpandVariables(v))
	}
	return fmt.Sprintf("Defined %d variable(s)", len(step.Env)), nil
}

// ExecuteRunScript handles runScript step.
func (se *ScriptEngine) ExecuteRunScript(step *flow.RunScriptStep) (string, error) {
	script := step.ScriptPath()

	if strings.HasSuffix(script, ".js") {
		filePath := se.ResolvePath(script)
		content, err := os.ReadFile(filePath) //#nosec G304 -- script path comes from the flow file
		if err != nil {
			return "", core.ErrScript.WithMessagef("cannot read script file: %s", filePath).WithCause(err)
		}
		script = string(content)
	}

	if err := se.RunScript(script, step.Env); err != nil {
		return "", err
	}
	return "Script executed successfully", nil
}

// ExecuteEvalScript handles evalScript step.
func (se *ScriptEngine) ExecuteEvalScript(step *flow.EvalScriptStep) (string, error) {
	script := extractJS(step.Script)
	se.defineEnvLike(script)
	if err := se.js.RunScript(script); err != nil {
		return "", core.ErrScript.WithMessage(err.Error()).WithCause(err)
	}
	se.SyncOutputToVariables()
	return "Eval completed", nil
}

// ExecuteAssertTrue handles assertTrue step.
func (se *ScriptEngine) ExecuteAssertTrue(step *flow.AssertTrueStep) (string, error) {
	ok, err := se.EvalCondition(step.Script)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", core.ErrAssertion.WithMessagef("assertTrue failed: %s", step.Script)
	}
	return "Assertion passed", nil
}

// withEnvVars applies environment variables and returns a restore function.
func (se *ScriptEngine) withEnvVars(env map[string]string) func() {
	oldVars := make(map[string]string)
	for k, v := range env {
		oldVars[k] = se.GetVariable(k)
		se.SetVariable(k, v)
	}
	return func() {
		for k, v := range oldVars {
			se.SetVariable(k, v)
		}
	}
}

// ParseInt parses an integer from string, supporting variable expansion.
func (se *ScriptEngine) ParseInt(s string, defaultVal int) int {
	s = se.ExpandVariables(s)
	s = strings.ReplaceAll(s, "_", "") // Support 10_000 format
	if val, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return val
	}
	return defaultVal
}

// ExpandStep expands variables in the string fields of a step and returns
// the expanded copy. The parsed step is left untouched so repeated steps
// re-expand on every iteration.
func (se *ScriptEngine) ExpandStep(step flow.Step) flow.Step {
	switch s := step.(type) {
	case *flow.OpenScopeStep:
		c := *s
		c.Scope = se.ExpandVariables(c.Scope)
		return &c
	case *flow.EnterSearchQueryStep:
		c := *s
		c.Query = se.ExpandVariables(c.Query)
		return &c
	case *flow.OpenPreviewStep:
		c := *s
		c.Scope = se.ExpandVariables(c.Scope)
		c.Category = se.ExpandVariables(c.Category)
		c.App = se.ExpandVariables(c.App)
		return &c
	case *flow.ClickScopeItemStep:
		c := *s
		c.Scope = se.ExpandVariables(c.Scope)
		c.Category = se.ExpandVariables(c.Category)
		c.Title = se.ExpandVariables(c.Title)
		return &c
	case *flow.ListApplicationsStep:
		c := *s
		c.Scope = se.ExpandVariables(c.Scope)
		c.Category = se.ExpandVariables(c.Category)
		return &c
	case *flow.AssertApplicationsStep:
		c := *s
		c.Scope = se.ExpandVariables(c.Scope)
		c.Category = se.ExpandVariables(c.Category)
		c.Equals = se.expandAll(c.Equals)
		c.Contains = se.expandAll(c.Contains)
		return &c
	case *flow.TapOnStep:
		c := *s
		c.Selector = *se.expandSelector(&s.Selector)
		return &c
	case *flow.AssertVisibleStep:
		c := *s
		c.Selector = *se.expandSelector(&s.Selector)
		return &c
	}
	return step
}

func (se *ScriptEngine) expandAll(items []string) []string {
	if items == nil {
		return nil
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = se.ExpandVariables(item)
	}
	return out
}

// expandSelector expands variables in selector fields and returns a copy.
func (se *ScriptEngine) expandSelector(sel *flow.Selector) *flow.Selector {
	if sel == nil {
		return nil
	}
	expanded := *sel
	expanded.Type = se.ExpandVariables(expanded.Type)
	expanded.ID = se.ExpandVariables(expanded.ID)
	expanded.Text = se.ExpandVariables(expanded.Text)
	expanded.Title = se.ExpandVariables(expanded.Title)
	if len(sel.Properties) > 0 {
		expanded.Properties = make(map[string]string, len(sel.Properties))
		for k, v := range sel.Properties {
			expanded.Properties[k] = se.ExpandVariables(v)
		}
	}
	expanded.ChildOf = se.expandSelector(sel.ChildOf)
	return &expanded
}
