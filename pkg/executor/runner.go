// Package executor runs parsed scenarios against the Dash and writes the
// JSON run report.
package executor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/dash-runner/pkg/core"
	"github.com/devicelab-dev/dash-runner/pkg/dash"
	"github.com/devicelab-dev/dash-runner/pkg/flow"
	"github.com/devicelab-dev/dash-runner/pkg/report"
)

// HierarchySource dumps the current UI tree as XML.
type HierarchySource interface {
	Source() (string, error)
}

// RunnerConfig configures the scenario runner.
type RunnerConfig struct {
	OutputDir  string // Report output directory
	StopOnFail bool   // Skip remaining flows after the first failure

	// Run metadata for reports
	RunnerVersion string
	BridgeURL     string
	SessionID     string

	DefaultScope string            // Scope used when neither step nor flow names one
	Env          map[string]string // Variables applied before each flow's own env

	// Hierarchy is dumped into the report when a step fails (nil = never).
	Hierarchy HierarchySource

	// Live progress callbacks
	OnFlowStart    func(flowIdx, totalFlows int, name, file string)
	OnStepComplete func(idx int, desc string, status report.Status, durationMs int64, err string)
	OnNestedStep   func(depth int, desc string, status report.Status, durationMs int64, err string)
	OnFlowEnd      func(name string, status report.Status, durationMs int64)
}

// RunResult contains the outcome of a run.
type RunResult struct {
	RunID        string
	Status       report.Status
	TotalFlows   int
	PassedFlows  int
	FailedFlows  int
	SkippedFlows int
	Duration     int64 // Total duration in milliseconds
	FlowResults  []FlowResult
	ReportDir    string
}

// FlowResult contains the outcome of a single flow.
type FlowResult struct {
	ID           string
	Name         string
	Status       report.Status
	Duration     int64
	Error        string
	StepsTotal   int
	StepsPassed  int
	StepsFailed  int
	StepsSkipped int
	StepsWarned  int
}

// Runner orchestrates flow execution.
type Runner struct {
	config RunnerConfig
	app    *dash.App
}

// New creates a new Runner.
func New(app *dash.App, cfg RunnerConfig) *Runner {
	return &Runner{
		config: cfg,
		app:    app,
	}
}

// Run executes all flows in order and writes the report.
func (r *Runner) Run(ctx context.Context, flows []flow.Flow) (*RunResult, error) {
	if r.config.OutputDir == "" {
		return nil, core.ErrMissingRequired.WithMessage("report output directory is required")
	}
	if r.app == nil {
		return nil, core.ErrMissingRequired.WithMessage("no Dash application to run against")
	}

	runID := uuid.NewString()
	runStart := time.Now()

	index, flowDetails := report.BuildSkeleton(flows, report.BuilderConfig{
		RunID:         runID,
		Bridge:        report.BridgeInfo{URL: r.config.BridgeURL, Session: r.config.SessionID},
		RunnerVersion: r.config.RunnerVersion,
	})

	if err := report.WriteSkeleton(r.config.OutputDir, index, flowDetails); err != nil {
		return nil, err
	}

	indexWriter := report.NewIndexWriter(r.config.OutputDir, index)
	indexWriter.Start()

	results := r.executeFlows(ctx, flows, flowDetails, indexWriter)

	indexWriter.End()

	result := r.buildRunResult(results)
	result.RunID = runID
	result.ReportDir = r.config.OutputDir
	result.Duration = time.Since(runStart).Milliseconds()
	return result, nil
}

// executeFlows runs flows one after another. The shell has a single input
// device, so flows never run concurrently.
func (r *Runner) executeFlows(ctx context.Context, flows []flow.Flow, flowDetails []report.FlowDetail, indexWriter *report.IndexWriter) []FlowResult {
	results := make([]FlowResult, len(flows))
	stopped := ""

	for i := range flows {
		if stopped == "" && ctx.Err() != nil {
			stopped = "run cancelled"
		}
		if stopped != "" {
			results[i] = r.skipFlow(&flowDetails[i], indexWriter, stopped)
			continue
		}

		fr := &FlowRunner{
			ctx:         ctx,
			flow:        flows[i],
			detail:      &flowDetails[i],
			dash:        r.app.Dash(),
			config:      r.config,
			indexWriter: indexWriter,
			flowIdx:     i,
			totalFlows:  len(flows),
		}
		results[i] = fr.Run()

		if r.config.StopOnFail && results[i].Status.IsFailure() {
			stopped = "run stopped after failure"
		}
	}

	return results
}

// skipFlow marks a flow that never ran.
func (r *Runner) skipFlow(detail *report.FlowDetail, indexWriter *report.IndexWriter, reason string) FlowResult {
	fw := report.NewFlowWriter(detail, r.config.OutputDir, indexWriter)
	fw.SkipRemainingCommands(0)
	fw.End(report.StatusSkipped, reason)
	return FlowResult{
		ID:           detail.ID,
		Name:         detail.Name,
		Status:       report.StatusSkipped,
		Error:        reason,
		StepsTotal:   len(detail.Commands),
		StepsSkipped: len(detail.Commands),
	}
}

// buildRunResult aggregates flow results into a run result.
func (r *Runner) buildRunResult(flowResults []FlowResult) *RunResult {
	result := &RunResult{
		TotalFlows:  len(flowResults),
		FlowResults: flowResults,
	}

	for _, fr := range flowResults {
		switch {
		case fr.Status.IsFailure():
			result.FailedFlows++
		case fr.Status == report.StatusSkipped:
			result.SkippedFlows++
		default:
			result.PassedFlows++
		}
	}

	if result.FailedFlows > 0 {
		result.Status = report.StatusFailed
	} else {
		result.Status = report.StatusPassed // All passed or skipped
	}

	return result
}
