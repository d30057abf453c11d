package report

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/devicelab-dev/dash-runner/pkg/flow"
)

// BuilderConfig contains configuration for building the report skeleton.
type BuilderConfig struct {
	RunID         string     // Unique id of this run
	Bridge        BridgeInfo // Bridge the run talks to
	RunnerVersion string     // dash-runner version
}

// BuildSkeleton creates the initial report structure from parsed flows.
// All flows and commands are set to "pending" status.
func BuildSkeleton(flows []flow.Flow, cfg BuilderConfig) (*Index, []FlowDetail) {
	now := time.Now()

	index := &Index{
		Version:     Version,
		RunID:       cfg.RunID,
		Status:      StatusPending,
		StartTime:   now,
		LastUpdated: now,
		Bridge:      cfg.Bridge,
		Runner:      RunnerInfo{Version: cfg.RunnerVersion},
		Summary: Summary{
			Total:   len(flows),
			Pending: len(flows),
		},
		Flows: make([]FlowEntry, len(flows)),
	}

	flowDetails := make([]FlowDetail, len(flows))

	for i, f := range flows {
		flowID := fmt.Sprintf("flow-%03d", i)
		flowName := FlowName(f)
		commands := buildCommands(f.Steps)

		index.Flows[i] = FlowEntry{
			Index:      i,
			ID:         flowID,
			Name:       flowName,
			SourceFile: f.SourcePath,
			DataFile:   filepath.Join("flows", flowID+".json"),
			AssetsDir:  filepath.Join("assets", flowID),
			Status:     StatusPending,
			Commands: CommandSummary{
				Total:   len(commands),
				Pending: len(commands),
			},
		}

		flowDetails[i] = FlowDetail{
			ID:         flowID,
			Name:       flowName,
			SourceFile: f.SourcePath,
			Tags:       f.Config.Tags,
			Commands:   commands,
		}
	}

	return index, flowDetails
}

// FlowName extracts a display name from the flow.
func FlowName(f flow.Flow) string {
	if f.Config.Name != "" {
		return f.Config.Name
	}
	base := filepath.Base(f.SourcePath)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}

// buildCommands creates Command entries from flow steps.
func buildCommands(steps []flow.Step) []Command {
	commands := make([]Command, len(steps))
	for i, step := range steps {
		commands[i] = NewCommand(fmt.Sprintf("cmd-%03d", i), i, step)
	}
	return commands
}

// NewCommand creates a pending Command for a step.
func NewCommand(id string, index int, step flow.Step) Command {
	return Command{
		ID:     id,
		Index:  index,
		Type:   string(step.Type()),
		Label:  step.Label(),
		YAML:   step.Describe(),
		Status: StatusPending,
		Params: extractParams(step),
	}
}

// extractParams extracts command parameters from a step.
func extractParams(step flow.Step) *CommandParams {
	params := &CommandParams{}

	switch s := step.(type) {
	case *flow.OpenScopeStep:
		params.Scope = s.Scope
	case *flow.EnterSearchQueryStep:
		params.Text = s.Query
	case *flow.OpenPreviewStep:
		params.Scope = s.Scope
		params.Category = s.Category
		params.Text = s.App
	case *flow.ClickScopeItemStep:
		params.Scope = s.Scope
		params.Category = s.Category
		params.Text = s.Title
	case *flow.ListApplicationsStep:
		params.Scope = s.Scope
		params.Category = s.Category
	case *flow.AssertApplicationsStep:
		params.Scope = s.Scope
		params.Category = s.Category
	case *flow.TapOnStep:
		params.Selector = s.Selector.Describe()
	case *flow.AssertVisibleStep:
		params.Selector = s.Selector.Describe()
	}
	params.Timeout = step.Timeout()

	if *params == (CommandParams{}) {
		return nil
	}
	return params
}
