package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/devicelab-dev/dash-runner/pkg/logger"
)

// FlowWriter writes updates for a single flow.
// Flows run sequentially, so a FlowWriter needs no locking of its own.
type FlowWriter struct {
	flow      *FlowDetail
	path      string
	assetsDir string
	index     *IndexWriter
}

// NewFlowWriter creates a new FlowWriter for a flow.
func NewFlowWriter(flowDetail *FlowDetail, outputDir string, index *IndexWriter) *FlowWriter {
	return &FlowWriter{
		flow:      flowDetail,
		path:      filepath.Join(outputDir, "flows", flowDetail.ID+".json"),
		assetsDir: filepath.Join(outputDir, "assets", flowDetail.ID),
		index:     index,
	}
}

// Start marks the flow as started.
func (w *FlowWriter) Start() {
	now := time.Now()
	w.flow.StartTime = now

	w.flush()
	w.updateIndex(StatusRunning, &now, nil, nil, nil)
}

// CommandStart marks a command as started.
func (w *FlowWriter) CommandStart(cmdIndex int) {
	if cmdIndex < 0 || cmdIndex >= len(w.flow.Commands) {
		return
	}

	now := time.Now()
	cmd := &w.flow.Commands[cmdIndex]
	cmd.Status = StatusRunning
	cmd.StartTime = &now

	w.flush()
	w.updateIndex(StatusRunning, nil, nil, nil, nil)
}

// CommandEnd marks a command as complete.
func (w *FlowWriter) CommandEnd(cmdIndex int, status Status, element *Element, err *Error, artifacts CommandArtifacts, subCommands []Command) {
	if cmdIndex < 0 || cmdIndex >= len(w.flow.Commands) {
		return
	}

	now := time.Now()
	cmd := &w.flow.Commands[cmdIndex]
	cmd.Status = status
	cmd.EndTime = &now

	if cmd.StartTime != nil {
		duration := now.Sub(*cmd.StartTime).Milliseconds()
		cmd.Duration = &duration
	}

	cmd.Element = element
	cmd.Error = err
	cmd.Artifacts = artifacts
	cmd.SubCommands = subCommands

	w.flush()
	w.updateIndex(StatusRunning, nil, nil, nil, nil)
}

// SetOutputs records the values scripts stored in output.
func (w *FlowWriter) SetOutputs(outputs map[string]interface{}) {
	if len(outputs) == 0 {
		return
	}
	w.flow.Outputs = outputs
	w.flush()
}

// End marks the flow as complete. errMsg is recorded in the index when set.
func (w *FlowWriter) End(status Status, errMsg string) {
	now := time.Now()
	w.flow.EndTime = &now

	var duration int64
	if !w.flow.StartTime.IsZero() {
		duration = now.Sub(w.flow.StartTime).Milliseconds()
		w.flow.Duration = &duration
	}

	w.flush()

	var errPtr *string
	if errMsg != "" {
		errPtr = &errMsg
	}
	w.updateIndex(status, nil, &now, &duration, errPtr)
}

// SaveViewHierarchy saves a UI tree snapshot and returns the relative path.
func (w *FlowWriter) SaveViewHierarchy(cmdIndex int, data []byte) (string, error) {
	if err := ensureDir(w.assetsDir); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("cmd-%03d-hierarchy.xml", cmdIndex)
	if err := os.WriteFile(filepath.Join(w.assetsDir, filename), data, 0o644); err != nil {
		return "", err
	}
	return filepath.Join("assets", w.flow.ID, filename), nil
}

// SkipRemainingCommands marks all pending commands as skipped.
func (w *FlowWriter) SkipRemainingCommands(fromIndex int) {
	for i := fromIndex; i < len(w.flow.Commands); i++ {
		if w.flow.Commands[i].Status == StatusPending {
			w.flow.Commands[i].Status = StatusSkipped
		}
	}
	w.flush()
}

// flush writes the flow detail to disk.
func (w *FlowWriter) flush() {
	if err := atomicWriteJSON(w.path, w.flow); err != nil {
		logger.Error("write flow report %s: %v", w.flow.ID, err)
	}
}

func (w *FlowWriter) updateIndex(status Status, startTime, endTime *time.Time, duration *int64, errMsg *string) {
	w.index.UpdateFlow(w.flow.ID, &FlowUpdate{
		Status:    status,
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  duration,
		Commands:  w.commandSummary(),
		Error:     errMsg,
	})
}

// commandSummary computes command summary.
func (w *FlowWriter) commandSummary() CommandSummary {
	var s CommandSummary
	s.Total = len(w.flow.Commands)

	for i, cmd := range w.flow.Commands {
		switch cmd.Status {
		case StatusPassed, StatusWarned:
			s.Passed++
		case StatusFailed, StatusErrored:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusRunning:
			s.Running++
			idx := i
			s.Current = &idx
		case StatusPending:
			s.Pending++
		}
	}

	return s
}
