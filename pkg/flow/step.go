package flow

import (
	"fmt"
	"strings"
)

// StepType represents the type of step.
type StepType string

// Step type constants.
const (
	// Dash navigation
	StepOpenScope        StepType = "openScope"
	StepEnterSearchQuery StepType = "enterSearchQuery"
	StepOpenPreview      StepType = "openPreview"
	StepClickScopeItem   StepType = "clickScopeItem"

	// Elements
	StepTapOn         StepType = "tapOn"
	StepAssertVisible StepType = "assertVisible"

	// Applications
	StepListApplications   StepType = "listApplications"
	StepAssertApplications StepType = "assertApplications"

	// Scripting
	StepAssertTrue      StepType = "assertTrue"
	StepRunScript       StepType = "runScript"
	StepEvalScript      StepType = "evalScript"
	StepDefineVariables StepType = "defineVariables"

	// Flow Control
	StepRepeat StepType = "repeat"
)

// Step is the interface for all flow steps.
type Step interface {
	Type() StepType
	IsOptional() bool
	Label() string
	Timeout() int
	Describe() string
}

// BaseStep contains common fields for all steps.
type BaseStep struct {
	StepType  StepType `yaml:"-"`
	Optional  bool     `yaml:"optional"`
	StepLabel string   `yaml:"label"`
	TimeoutMs int      `yaml:"timeout"`
}

// Type returns the step type.
func (b *BaseStep) Type() StepType { return b.StepType }

// IsOptional returns whether the step is optional.
func (b *BaseStep) IsOptional() bool { return b.Optional }

// Label returns the step label.
func (b *BaseStep) Label() string { return b.StepLabel }

// Timeout returns the wait budget override in ms (0 = default).
func (b *BaseStep) Timeout() int { return b.TimeoutMs }

// Describe returns a human-readable description.
func (b *BaseStep) Describe() string { return string(b.StepType) }

// ============================================
// Dash Steps
// ============================================

// OpenScopeStep scrolls the Dash to a scope.
type OpenScopeStep struct {
	BaseStep `yaml:",inline"`
	Scope    string `yaml:"scope"`
}

// EnterSearchQueryStep searches in the current scope.
type EnterSearchQueryStep struct {
	BaseStep `yaml:",inline"`
	Query    string `yaml:"query"`
}

// OpenPreviewStep opens the preview of a scope result.
type OpenPreviewStep struct {
	BaseStep `yaml:",inline"`
	Scope    string `yaml:"scope"`
	Category string `yaml:"category"`
	App      string `yaml:"app"`
	Output   string `yaml:"output"` // Variable receiving the preview title
}

// ClickScopeItemStep clicks a card in a category.
type ClickScopeItemStep struct {
	BaseStep `yaml:",inline"`
	Scope    string `yaml:"scope"`
	Category string `yaml:"category"`
	Title    string `yaml:"title"`
}

// ============================================
// Element Steps
// ============================================

// TapOnStep clicks the centre of an element.
type TapOnStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
}

// AssertVisibleStep waits for an element to exist.
type AssertVisibleStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
}

// ============================================
// Application Steps
// ============================================

// ListApplicationsStep stores the application titles of a category.
type ListApplicationsStep struct {
	BaseStep `yaml:",inline"`
	Scope    string `yaml:"scope"`
	Category string `yaml:"category"`
	Output   string `yaml:"output"` // Variable name (default "applications")
}

// OutputVar returns the variable receiving the titles.
func (s *ListApplicationsStep) OutputVar() string {
	if s.Output == "" {
		return "applications"
	}
	return s.Output
}

// AssertApplicationsStep checks the application titles of a category.
type AssertApplicationsStep struct {
	BaseStep `yaml:",inline"`
	Scope    string   `yaml:"scope"`
	Category string   `yaml:"category"`
	Equals   []string `yaml:"equals"`   // Exact titles in order
	Contains []string `yaml:"contains"` // Titles that must be present
}

// ============================================
// Scripting Steps
// ============================================

// AssertTrueStep asserts a script condition is true.
type AssertTrueStep struct {
	BaseStep `yaml:",inline"`
	Script   string `yaml:"condition"`
}

// RunScriptStep runs a script.
type RunScriptStep struct {
	BaseStep `yaml:",inline"`
	Script   string            `yaml:"script"` // Script content or filename (string form)
	File     string            `yaml:"file"`   // Script filename (map form)
	Env      map[string]string `yaml:"env"`
}

// ScriptPath returns the script path (either Script or File field).
func (s *RunScriptStep) ScriptPath() string {
	if s.File != "" {
		return s.File
	}
	return s.Script
}

// EvalScriptStep evaluates JavaScript.
type EvalScriptStep struct {
	BaseStep `yaml:",inline"`
	Script   string `yaml:"script"`
}

// DefineVariablesStep defines variables.
type DefineVariablesStep struct {
	BaseStep `yaml:",inline"`
	Env      map[string]string `yaml:"env"`
}

// RepeatStep repeats steps.
type RepeatStep struct {
	BaseStep `yaml:",inline"`
	Times    string `yaml:"times"` // String for variable support
	Steps    []Step `yaml:"-"`
}

// ============================================
// Describe() implementations for detailed output
// ============================================

// Describe returns a human-readable description of the open scope step.
func (s *OpenScopeStep) Describe() string {
	return "openScope: " + s.Scope
}

// Describe returns a human-readable description of the search step.
func (s *EnterSearchQueryStep) Describe() string {
	return "enterSearchQuery: \"" + s.Query + "\""
}

// Describe returns a human-readable description of the open preview step.
func (s *OpenPreviewStep) Describe() string {
	return fmt.Sprintf("openPreview: %s/%s", s.Category, s.App)
}

// Describe returns a human-readable description of the click step.
func (s *ClickScopeItemStep) Describe() string {
	return fmt.Sprintf("clickScopeItem: %s/%s", s.Category, s.Title)
}

// Describe returns a human-readable description of the tap step.
func (s *TapOnStep) Describe() string {
	return "tapOn: " + s.Selector.Describe()
}

// Describe returns a human-readable description of the assert visible step.
func (s *AssertVisibleStep) Describe() string {
	return "assertVisible: " + s.Selector.Describe()
}

// Describe returns a human-readable description of the list step.
func (s *ListApplicationsStep) Describe() string {
	return "listApplications: " + s.Category
}

// Describe returns a human-readable description of the assert step.
func (s *AssertApplicationsStep) Describe() string {
	switch {
	case len(s.Equals) > 0:
		return fmt.Sprintf("assertApplications: %s == [%s]", s.Category, strings.Join(s.Equals, ", "))
	case len(s.Contains) > 0:
		return fmt.Sprintf("assertApplications: %s contains [%s]", s.Category, strings.Join(s.Contains, ", "))
	default:
		return "assertApplications: " + s.Category
	}
}

// Describe returns a human-readable description of the assert true step.
func (s *AssertTrueStep) Describe() string {
	return "assertTrue: " + s.Script
}

// Describe returns a human-readable description of the repeat step.
func (s *RepeatStep) Describe() string {
	return fmt.Sprintf("repeat: %s times (%d steps)", s.Times, len(s.Steps))
}
