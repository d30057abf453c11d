// Package validator collects and checks scenario files before execution.
// All files are parsed upfront so a broken scenario fails the run before
// the shell is touched.
package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/devicelab-dev/dash-runner/pkg/flow"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Result contains the validation result.
type Result struct {
	// Flows are the parsed scenarios in execution order.
	Flows []flow.Flow
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Files returns the source paths of the collected flows.
func (r *Result) Files() []string {
	files := make([]string, len(r.Flows))
	for i, f := range r.Flows {
		files[i] = f.SourcePath
	}
	return files
}

// Validator validates scenario files.
type Validator struct {
	includeTags []string
	excludeTags []string
}

// New creates a new Validator.
func New(includeTags, excludeTags []string) *Validator {
	return &Validator{
		includeTags: includeTags,
		excludeTags: excludeTags,
	}
}

// Validate validates files, directories and glob patterns. A file reached
// through more than one path is collected once.
func (v *Validator) Validate(paths ...string) *Result {
	result := &Result{}
	seen := make(map[string]bool)

	for _, path := range paths {
		files, err := expand(path)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{File: path, Message: err.Error()})
			continue
		}
		for _, file := range files {
			if seen[file] {
				continue
			}
			seen[file] = true
			v.validateFile(file, result)
		}
	}

	return result
}

// expand resolves a path argument into scenario files.
func expand(path string) ([]string, error) {
	if strings.ContainsAny(path, "*?[") {
		matches, err := filepath.Glob(path)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %v", err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("pattern matches no files")
		}
		var files []string
		for _, m := range matches {
			sub, err := expand(m)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
		}
		return files, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot access: %v", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	files, err := collectFlowFiles(path)
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %v", err)
	}
	return files, nil
}

// collectFlowFiles finds all .yaml/.yml files in a directory, skipping
// workspace config files.
func collectFlowFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		base := strings.TrimSuffix(strings.ToLower(filepath.Base(path)), ext)
		if base == "config" {
			return nil
		}
		files = append(files, path)
		return nil
	})

	sort.Strings(files)
	return files, err
}

// validateFile parses a file and checks the script files it references.
func (v *Validator) validateFile(filePath string, result *Result) {
	f, err := flow.ParseFile(filePath)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    filePath,
			Message: fmt.Sprintf("parse error: %v", err),
		})
		return
	}

	if !flow.ShouldIncludeFlow(f, v.includeTags, v.excludeTags) {
		return
	}

	before := len(result.Errors)
	dir := filepath.Dir(filePath)
	v.validateScripts(f.Steps, filePath, dir, result)
	v.validateScripts(f.Config.OnFlowStart, filePath, dir, result)
	v.validateScripts(f.Config.OnFlowComplete, filePath, dir, result)

	if len(result.Errors) == before {
		result.Flows = append(result.Flows, *f)
	}
}

// validateScripts checks that runScript files exist.
func (v *Validator) validateScripts(steps []flow.Step, filePath, dir string, result *Result) {
	for _, step := range steps {
		switch s := step.(type) {
		case *flow.RunScriptStep:
			script := s.ScriptPath()
			if !strings.HasSuffix(script, ".js") || strings.Contains(script, "$") {
				continue
			}
			ref := resolveFilePath(dir, script)
			if _, err := os.Stat(ref); err != nil {
				result.Errors = append(result.Errors, &ValidationError{
					File:    filePath,
					Message: fmt.Sprintf("script file not found: %s", ref),
				})
			}

		case *flow.RepeatStep:
			v.validateScripts(s.Steps, filePath, dir, result)
		}
	}
}

// resolveFilePath resolves a file path relative to a base directory.
func resolveFilePath(baseDir, filePath string) string {
	if filepath.IsAbs(filePath) {
		return filePath
	}
	return filepath.Join(baseDir, filePath)
}
