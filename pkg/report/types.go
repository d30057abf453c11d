// Package report provides JSON run reports with live updates.
//
// Layout of a report directory:
//   - report.json: run index (small, rewritten on every status change)
//   - flows/flow-XXX.json: per-flow detail files
//   - assets/flow-XXX/: per-flow artifacts (UI tree snapshots)
//
// Consumers poll report.json and only fetch changed flow details as needed.
package report

import "time"

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the execution status.
type Status string

// Status values.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusErrored Status = "errored"
	StatusSkipped Status = "skipped"
	StatusWarned  Status = "warned"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusErrored, StatusSkipped, StatusWarned:
		return true
	}
	return false
}

// IsFailure returns true for statuses that fail a flow.
func (s Status) IsFailure() bool {
	return s == StatusFailed || s == StatusErrored
}

// ============================================================================
// INDEX (report.json)
// ============================================================================

// Index is the main report file that binds everything together.
type Index struct {
	Version     string      `json:"version"`
	RunID       string      `json:"runId"`
	UpdateSeq   uint64      `json:"updateSeq"`
	Status      Status      `json:"status"`
	StartTime   time.Time   `json:"startTime"`
	EndTime     *time.Time  `json:"endTime,omitempty"`
	LastUpdated time.Time   `json:"lastUpdated"`
	Bridge      BridgeInfo  `json:"bridge"`
	Runner      RunnerInfo  `json:"runner"`
	Summary     Summary     `json:"summary"`
	Flows       []FlowEntry `json:"flows"`
}

// BridgeInfo describes the introspection bridge the run talked to.
type BridgeInfo struct {
	URL     string `json:"url"`
	Session string `json:"session,omitempty"`
}

// RunnerInfo contains dash-runner information.
type RunnerInfo struct {
	Version string `json:"version"`
}

// Summary contains aggregated counts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Running int `json:"running"`
	Pending int `json:"pending"`
}

// FlowEntry is the index entry for a flow.
type FlowEntry struct {
	Index      int            `json:"index"`
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	SourceFile string         `json:"sourceFile"`
	DataFile   string         `json:"dataFile"`
	AssetsDir  string         `json:"assetsDir"`
	Status     Status         `json:"status"`
	UpdateSeq  uint64         `json:"updateSeq"`
	StartTime  *time.Time     `json:"startTime,omitempty"`
	EndTime    *time.Time     `json:"endTime,omitempty"`
	Duration   *int64         `json:"duration,omitempty"` // milliseconds
	Commands   CommandSummary `json:"commands"`
	Error      *string        `json:"error,omitempty"`
}

// CommandSummary contains command counts for a flow.
type CommandSummary struct {
	Total   int  `json:"total"`
	Passed  int  `json:"passed"`
	Failed  int  `json:"failed"`
	Skipped int  `json:"skipped"`
	Running int  `json:"running"`
	Pending int  `json:"pending"`
	Current *int `json:"current,omitempty"` // Currently running command index
}

// ============================================================================
// FLOW DETAIL (flows/flow-XXX.json)
// ============================================================================

// FlowDetail contains full flow execution details.
type FlowDetail struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	SourceFile string                 `json:"sourceFile"`
	Tags       []string               `json:"tags,omitempty"`
	StartTime  time.Time              `json:"startTime"`
	EndTime    *time.Time             `json:"endTime,omitempty"`
	Duration   *int64                 `json:"duration,omitempty"`
	Commands   []Command              `json:"commands"`
	Outputs    map[string]interface{} `json:"outputs,omitempty"` // Values scripts stored in output
}

// Command represents a single command execution.
type Command struct {
	ID          string           `json:"id"`
	Index       int              `json:"index"`
	Type        string           `json:"type"`
	Label       string           `json:"label,omitempty"`
	YAML        string           `json:"yaml,omitempty"`
	Status      Status           `json:"status"`
	StartTime   *time.Time       `json:"startTime,omitempty"`
	EndTime     *time.Time       `json:"endTime,omitempty"`
	Duration    *int64           `json:"duration,omitempty"`
	Params      *CommandParams   `json:"params,omitempty"`
	Element     *Element         `json:"element,omitempty"`
	Error       *Error           `json:"error,omitempty"`
	Artifacts   CommandArtifacts `json:"artifacts"`
	SubCommands []Command        `json:"subCommands,omitempty"`
}

// CommandParams contains command-specific parameters.
type CommandParams struct {
	Scope    string `json:"scope,omitempty"`
	Category string `json:"category,omitempty"`
	Selector string `json:"selector,omitempty"`
	Text     string `json:"text,omitempty"`
	Timeout  int    `json:"timeout,omitempty"`
}

// Element describes the element a command acted on.
type Element struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	ObjectName string  `json:"objectName,omitempty"`
	Bounds     *Bounds `json:"bounds,omitempty"`
}

// Bounds represents element bounds.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Error contains error details.
type Error struct {
	Type    string                 `json:"type"` // lookup, state, timeout, connection, config, script
	Code    string                 `json:"code,omitempty"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// CommandArtifacts contains command-level artifact paths.
type CommandArtifacts struct {
	ViewHierarchy string `json:"viewHierarchy,omitempty"`
}

// ============================================================================
// UPDATE TYPES
// ============================================================================

// FlowUpdate contains the fields to update in index for a flow.
type FlowUpdate struct {
	Status    Status
	StartTime *time.Time
	EndTime   *time.Time
	Duration  *int64
	Commands  CommandSummary
	Error     *string
}
