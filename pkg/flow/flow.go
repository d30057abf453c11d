// Package flow handles parsing and representation of Dash scenario files.
package flow

// Flow represents a parsed scenario file.
type Flow struct {
	SourcePath string // Path to the source file
	Config     Config // Flow configuration (name, tags, etc.)
	Steps      []Step // Steps to execute
}

// Config represents flow-level configuration.
type Config struct {
	Name           string            `yaml:"name"`
	Scope          string            `yaml:"scope"` // Scope used by steps that name none
	Tags           []string          `yaml:"tags"`
	Env            map[string]string `yaml:"env"`
	Timeout        int               `yaml:"timeout"` // Flow timeout in ms
	OnFlowStart    []Step            `yaml:"-"`       // Lifecycle hook: runs before commands
	OnFlowComplete []Step            `yaml:"-"`       // Lifecycle hook: runs after commands
}
