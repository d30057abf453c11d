package executor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/dash-runner/pkg/core"
	"github.com/devicelab-dev/dash-runner/pkg/dash"
	"github.com/devicelab-dev/dash-runner/pkg/flow"
	"github.com/devicelab-dev/dash-runner/pkg/logger"
	"github.com/devicelab-dev/dash-runner/pkg/report"
)

// maxRepeat bounds repeat steps whose count does not resolve.
const maxRepeat = 1000

// FlowRunner executes a single flow.
type FlowRunner struct {
	ctx         context.Context
	flow        flow.Flow
	detail      *report.FlowDetail
	dash        *dash.Dash
	config      RunnerConfig
	indexWriter *report.IndexWriter
	flowWriter  *report.FlowWriter
	script      *ScriptEngine
	scope       string // Scope steps act on when they name none
	depth       int    // Nesting depth for repeat reporting
	flowIdx     int    // Current flow index (0-based)
	totalFlows  int    // Total number of flows
	// Step counters
	stepsPassed  int
	stepsFailed  int
	stepsSkipped int
	stepsWarned  int
	// Sub-command tracking for compound steps (repeat)
	subCommands []report.Command
}

// stepOutcome is what a dispatched step produced.
type stepOutcome struct {
	element *report.Element
	err     error
}

// Run executes the flow and returns the result.
func (fr *FlowRunner) Run() FlowResult {
	flowStart := time.Now()

	fr.flowWriter = report.NewFlowWriter(fr.detail, fr.config.OutputDir, fr.indexWriter)

	fr.script = NewScriptEngine()
	fr.script.ImportSystemEnv()
	fr.script.SetVariables(fr.config.Env)
	if fr.flow.SourcePath != "" {
		fr.script.SetFlowDir(filepath.Dir(fr.flow.SourcePath))
	}
	fr.script.SetVariables(fr.flow.Config.Env)

	fr.scope = fr.flow.Config.Scope
	if fr.scope == "" {
		fr.scope = fr.config.DefaultScope
	}
	if fr.scope == "" {
		fr.scope = dash.DefaultScope
	}

	// Flow timeout bounds every wait of the flow
	parent := fr.ctx
	if fr.flow.Config.Timeout > 0 {
		var cancel context.CancelFunc
		fr.ctx, cancel = context.WithTimeout(fr.ctx, time.Duration(fr.flow.Config.Timeout)*time.Millisecond)
		defer cancel()
	}

	flowName := fr.detail.Name
	flowFile := filepath.Base(fr.flow.SourcePath)
	if fr.config.OnFlowStart != nil {
		fr.config.OnFlowStart(fr.flowIdx, fr.totalFlows, flowName, flowFile)
	}
	logger.Info("flow %s started (%s)", flowName, fr.flow.SourcePath)

	fr.flowWriter.Start()

	flowStatus := report.StatusPassed
	var flowError string

	// onFlowComplete runs even when the flow failed
	defer func() {
		for _, step := range fr.flow.Config.OnFlowComplete {
			fr.executeNestedStep(step) // Failures in cleanup are ignored
		}
	}()

	for _, step := range fr.flow.Config.OnFlowStart {
		status, err := fr.executeNestedStep(step)
		if status.IsFailure() {
			fr.flowWriter.SkipRemainingCommands(0)
			fr.stepsSkipped += countSteps(fr.flow.Steps)
			return fr.finish(flowStart, status, fmt.Sprintf("onFlowStart failed: %v", err))
		}
	}

	for i, step := range fr.flow.Steps {
		if fr.ctx.Err() != nil {
			fr.flowWriter.SkipRemainingCommands(i)
			fr.stepsSkipped += countSteps(fr.flow.Steps[i:])
			if parent.Err() != nil {
				flowStatus = report.StatusSkipped
				flowError = "execution cancelled"
			} else {
				flowStatus = report.StatusErrored
				flowError = fmt.Sprintf("flow timed out after %dms", fr.flow.Config.Timeout)
			}
			break
		}

		stepStatus, stepError, stepDuration := fr.executeStep(i, step)

		if fr.config.OnStepComplete != nil {
			fr.config.OnStepComplete(i, step.Describe(), stepStatus, stepDuration, stepError)
		}

		// Compound steps count their nested steps instead of themselves
		if !isCompound(step) {
			fr.count(stepStatus)
		}

		if stepStatus.IsFailure() {
			fr.flowWriter.SkipRemainingCommands(i + 1)
			fr.stepsSkipped += countSteps(fr.flow.Steps[i+1:])
			flowStatus = stepStatus
			flowError = stepError
			break
		}
	}

	outputs := fr.script.GetOutput()
	fr.flowWriter.SetOutputs(outputs)

	return fr.finish(flowStart, flowStatus, flowError)
}

// finish closes the flow report and builds the result.
func (fr *FlowRunner) finish(flowStart time.Time, status report.Status, errMsg string) FlowResult {
	fr.flowWriter.End(status, errMsg)
	duration := time.Since(flowStart).Milliseconds()

	if fr.config.OnFlowEnd != nil {
		fr.config.OnFlowEnd(fr.detail.Name, status, duration)
	}
	if status.IsFailure() {
		logger.Error("flow %s %s: %s", fr.detail.Name, status, errMsg)
	} else {
		logger.Info("flow %s %s in %dms", fr.detail.Name, status, duration)
	}

	return FlowResult{
		ID:           fr.detail.ID,
		Name:         fr.detail.Name,
		Status:       status,
		Duration:     duration,
		Error:        errMsg,
		StepsTotal:   fr.stepsPassed + fr.stepsFailed + fr.stepsSkipped + fr.stepsWarned,
		StepsPassed:  fr.stepsPassed,
		StepsFailed:  fr.stepsFailed,
		StepsSkipped: fr.stepsSkipped,
		StepsWarned:  fr.stepsWarned,
	}
}

func (fr *FlowRunner) count(status report.Status) {
	switch status {
	case report.StatusPassed:
		fr.stepsPassed++
	case report.StatusFailed, report.StatusErrored:
		fr.stepsFailed++
	case report.StatusSkipped:
		fr.stepsSkipped++
	case report.StatusWarned:
		fr.stepsWarned++
	}
}

func isCompound(step flow.Step) bool {
	_, ok := step.(*flow.RepeatStep)
	return ok
}

// countSteps counts the steps that would have been reported individually.
func countSteps(steps []flow.Step) int {
	n := 0
	for _, step := range steps {
		if r, ok := step.(*flow.RepeatStep); ok {
			n += countSteps(r.Steps)
			continue
		}
		n++
	}
	return n
}

// executeStep executes a top-level step and updates the report.
// Returns status, error message, and duration in milliseconds.
func (fr *FlowRunner) executeStep(idx int, step flow.Step) (report.Status, string, int64) {
	stepStart := time.Now()

	fr.flowWriter.CommandStart(idx)

	if isCompound(step) {
		fr.subCommands = nil
	}
	out := fr.dispatch(step)
	status := statusOf(step, out.err)

	stepDuration := time.Since(stepStart).Milliseconds()

	var artifacts report.CommandArtifacts
	var errorInfo *report.Error
	var errorMsg string
	if out.err != nil {
		errorInfo = errorToReport(out.err)
		errorMsg = out.err.Error()
		logger.Warn("step %d %s %s: %v", idx, step.Describe(), status, out.err)
		if status.IsFailure() {
			artifacts.ViewHierarchy = fr.captureHierarchy(idx)
		}
	}

	var subs []report.Command
	if isCompound(step) {
		subs = fr.subCommands
		fr.subCommands = nil
	}
	fr.flowWriter.CommandEnd(idx, status, out.element, errorInfo, artifacts, subs)

	return status, errorMsg, stepDuration
}

// executeNestedStep executes a step without its own report entry; the step
// is recorded as a sub-command of the enclosing compound step.
func (fr *FlowRunner) executeNestedStep(step flow.Step) (report.Status, error) {
	start := time.Now()

	var nestedSubCommands []report.Command
	compound := isCompound(step)
	parentSubCommands := fr.subCommands
	if compound {
		fr.subCommands = nil
	}

	out := fr.dispatch(step)

	if compound {
		nestedSubCommands = fr.subCommands
		fr.subCommands = parentSubCommands
	}

	status := statusOf(step, out.err)
	duration := time.Since(start).Milliseconds()

	if !compound {
		fr.count(status)
	}

	errMsg := ""
	if out.err != nil {
		errMsg = out.err.Error()
	}
	if fr.config.OnNestedStep != nil && fr.depth > 0 {
		fr.config.OnNestedStep(fr.depth, step.Describe(), status, duration, errMsg)
	}

	now := time.Now()
	cmd := report.NewCommand(fmt.Sprintf("sub-%d", len(fr.subCommands)), len(fr.subCommands), step)
	cmd.Status = status
	cmd.StartTime = &start
	cmd.EndTime = &now
	cmd.Duration = &duration
	cmd.Element = out.element
	if out.err != nil {
		cmd.Error = errorToReport(out.err)
	}
	if compound {
		cmd.SubCommands = nestedSubCommands
	}
	fr.subCommands = append(fr.subCommands, cmd)

	return status, out.err
}

// statusOf maps a step error to its report status. Failures of optional
// steps only warn.
func statusOf(step flow.Step, err error) report.Status {
	if err == nil {
		return report.StatusPassed
	}
	if step.IsOptional() {
		return report.StatusWarned
	}
	return report.Status(core.StatusForError(err).String())
}

// dashFor returns the Dash to drive a step with, honouring the step's
// timeout override.
func (fr *FlowRunner) dashFor(step flow.Step) *dash.Dash {
	if ms := step.Timeout(); ms > 0 {
		o := fr.dash.WaitOptions()
		o.Timeout = time.Duration(ms) * time.Millisecond
		return fr.dash.WithWait(o)
	}
	return fr.dash
}

// openScope opens the named scope, or the flow's current one.
func (fr *FlowRunner) openScope(d *dash.Dash, id string) (*dash.ScopeView, error) {
	if id == "" {
		id = fr.scope
	}
	return d.OpenScope(fr.ctx, id)
}

// dispatch routes a step to its handler.
func (fr *FlowRunner) dispatch(step flow.Step) stepOutcome {
	switch s := step.(type) {
	// Scripting steps - handled by ScriptEngine
	case *flow.DefineVariablesStep:
		_, err := fr.script.ExecuteDefineVariables(s)
		return stepOutcome{err: err}
	case *flow.RunScriptStep:
		_, err := fr.script.ExecuteRunScript(s)
		return stepOutcome{err: err}
	case *flow.EvalScriptStep:
		_, err := fr.script.ExecuteEvalScript(s)
		return stepOutcome{err: err}
	case *flow.AssertTrueStep:
		_, err := fr.script.ExecuteAssertTrue(s)
		return stepOutcome{err: err}

	// Flow control
	case *flow.RepeatStep:
		return stepOutcome{err: fr.executeRepeat(s)}
	}

	// Dash steps see variables expanded on every execution
	expanded := fr.script.ExpandStep(step)
	d := fr.dashFor(step)

	switch s := expanded.(type) {
	case *flow.OpenScopeStep:
		view, err := d.OpenScope(fr.ctx, s.Scope)
		if err != nil {
			return stepOutcome{err: err}
		}
		fr.scope = s.Scope
		fr.script.SetScope(s.Scope)
		return stepOutcome{element: elementOf(view.Node())}

	case *flow.EnterSearchQueryStep:
		return stepOutcome{err: d.EnterSearchQuery(fr.ctx, s.Query)}

	case *flow.OpenPreviewStep:
		view, err := fr.openScope(d, s.Scope)
		if err != nil {
			return stepOutcome{err: err}
		}
		preview, err := view.OpenPreview(fr.ctx, s.Category, s.App)
		if err != nil {
			return stepOutcome{err: err}
		}
		title, err := preview.Title()
		if err != nil {
			return stepOutcome{err: err}
		}
		if s.Output != "" {
			fr.script.SetVariable(s.Output, title)
		}
		return stepOutcome{element: elementOf(preview.Node())}

	case *flow.ClickScopeItemStep:
		view, err := fr.openScope(d, s.Scope)
		if err != nil {
			return stepOutcome{err: err}
		}
		return stepOutcome{err: view.ClickScopeItem(fr.ctx, s.Category, s.Title)}

	case *flow.ListApplicationsStep:
		apps, err := fr.applications(d, s.Scope, s.Category)
		if err != nil {
			return stepOutcome{err: err}
		}
		fr.script.SetList(s.OutputVar(), apps)
		logger.Info("%s: %s", s.Describe(), strings.Join(apps, ", "))
		return stepOutcome{}

	case *flow.AssertApplicationsStep:
		apps, err := fr.applications(d, s.Scope, s.Category)
		if err != nil {
			return stepOutcome{err: err}
		}
		return stepOutcome{err: checkApplications(s, apps)}

	case *flow.TapOnStep:
		n, err := d.ClickElement(fr.ctx, selectorPath(&s.Selector)...)
		if n == nil {
			return stepOutcome{err: err}
		}
		return stepOutcome{element: elementOf(n), err: err}

	case *flow.AssertVisibleStep:
		n, err := d.WaitFor(fr.ctx, selectorPath(&s.Selector)...)
		if err != nil {
			return stepOutcome{err: err}
		}
		return stepOutcome{element: elementOf(n)}
	}

	return stepOutcome{err: core.ErrInvalidConfig.WithMessagef("unsupported step type: %s", step.Type())}
}

func (fr *FlowRunner) applications(d *dash.Dash, scope, category string) ([]string, error) {
	view, err := fr.openScope(d, scope)
	if err != nil {
		return nil, err
	}
	return view.Applications(fr.ctx, category)
}

// checkApplications compares listed titles against an assertApplications step.
func checkApplications(s *flow.AssertApplicationsStep, apps []string) error {
	details := map[string]interface{}{"category": s.Category, "actual": apps}

	if s.Equals != nil && !equalStrings(s.Equals, apps) {
		details["expected"] = s.Equals
		return core.ErrAssertion.
			WithMessagef("applications in %s are [%s], expected [%s]", s.Category, strings.Join(apps, ", "), strings.Join(s.Equals, ", ")).
			WithDetails(details)
	}

	present := make(map[string]bool, len(apps))
	for _, a := range apps {
		present[a] = true
	}
	var missing []string
	for _, want := range s.Contains {
		if !present[want] {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		details["missing"] = missing
		return core.ErrAssertion.
			WithMessagef("applications in %s lack [%s]", s.Category, strings.Join(missing, ", ")).
			WithDetails(details)
	}
	return nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// selectorPath flattens a childOf chain into queries, outermost first.
func selectorPath(sel *flow.Selector) []core.Query {
	var path []core.Query
	for s := sel; s != nil; s = s.ChildOf {
		path = append([]core.Query{s.Query()}, path...)
	}
	return path
}

// executeRepeat runs the nested steps the requested number of times.
func (fr *FlowRunner) executeRepeat(step *flow.RepeatStep) error {
	times := fr.script.ParseInt(step.Times, 1)
	if times <= 0 || times > maxRepeat {
		times = maxRepeat
	}

	fr.depth++
	defer func() { fr.depth-- }()

	for i := 0; i < times; i++ {
		if err := fr.ctx.Err(); err != nil {
			return core.ErrTimeout.WithMessage("repeat cancelled").WithCause(err)
		}
		for _, nested := range step.Steps {
			status, err := fr.executeNestedStep(nested)
			if status.IsFailure() {
				return fmt.Errorf("iteration %d: %w", i+1, err)
			}
		}
	}
	logger.Debug("repeat completed (%d iterations)", times)
	return nil
}

// captureHierarchy stores a UI tree snapshot for a failed command.
func (fr *FlowRunner) captureHierarchy(cmdIdx int) string {
	if fr.config.Hierarchy == nil {
		return ""
	}
	src, err := fr.config.Hierarchy.Source()
	if err != nil {
		logger.Warn("capture hierarchy: %v", err)
		return ""
	}
	path, err := fr.flowWriter.SaveViewHierarchy(cmdIdx, []byte(src))
	if err != nil {
		logger.Warn("save hierarchy: %v", err)
		return ""
	}
	return path
}

// elementOf describes a node for the report.
func elementOf(n core.Node) *report.Element {
	if n == nil {
		return nil
	}
	el := &report.Element{ID: n.ID(), Type: n.TypeName()}
	if name, err := core.StringProperty(n, core.PropObjectName); err == nil {
		el.ObjectName = name
	}
	if b, err := core.BoundsProperty(n, core.PropGlobalRect); err == nil {
		el.Bounds = &report.Bounds{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}
	}
	return el
}

// errorToReport converts an error into its report form.
func errorToReport(err error) *report.Error {
	var ee *core.ExecutionError
	if errors.As(err, &ee) {
		return &report.Error{
			Type:    ee.Category.String(),
			Code:    ee.Code,
			Message: err.Error(),
			Details: ee.Details,
		}
	}
	return &report.Error{Type: "unknown", Message: err.Error()}
}
