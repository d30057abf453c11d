package validator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestValidate_SingleFile(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"test.yaml": `
name: Search
---
- openScope: videoaggregator
- enterSearchQuery: "sintel"
`})

	result := New(nil, nil).Validate(filepath.Join(dir, "test.yaml"))

	if !result.IsValid() {
		t.Errorf("expected valid result, got errors: %v", result.Errors)
	}
	if len(result.Flows) != 1 {
		t.Fatalf("expected 1 flow, got %d", len(result.Flows))
	}
	if result.Flows[0].Config.Name != "Search" {
		t.Errorf("expected parsed flow name Search, got %q", result.Flows[0].Config.Name)
	}
}

func TestValidate_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"b.yaml":        `- openScope: newsscope`,
		"a.yml":         `- openScope: clickscope`,
		"nested/c.yaml": `- openScope: musicaggregator`,
		"config.yaml":   `defaultScope: clickscope`,
		"notes.txt":     `not a flow`,
	})

	result := New(nil, nil).Validate(dir)

	if !result.IsValid() {
		t.Errorf("expected valid result, got errors: %v", result.Errors)
	}
	files := result.Files()
	if len(files) != 3 {
		t.Fatalf("expected 3 flows, got %v", files)
	}
	if filepath.Base(files[0]) != "a.yml" || filepath.Base(files[1]) != "b.yaml" {
		t.Errorf("expected sorted files, got %v", files)
	}
}

func TestValidate_Glob(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"smoke_1.yaml": `- openScope: clickscope`,
		"smoke_2.yaml": `- openScope: newsscope`,
		"full.yaml":    `- openScope: musicaggregator`,
	})

	result := New(nil, nil).Validate(filepath.Join(dir, "smoke_*.yaml"))
	if !result.IsValid() {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Flows) != 2 {
		t.Errorf("expected 2 flows, got %d", len(result.Flows))
	}

	result = New(nil, nil).Validate(filepath.Join(dir, "none_*.yaml"))
	if result.IsValid() {
		t.Error("expected an error for a pattern that matches nothing")
	}
}

func TestValidate_Deduplicates(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.yaml": `- openScope: clickscope`})

	path := filepath.Join(dir, "a.yaml")
	result := New(nil, nil).Validate(path, dir, path)
	if len(result.Flows) != 1 {
		t.Errorf("expected 1 flow, got %d", len(result.Flows))
	}
}

func TestValidate_TagFilters(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"smoke.yaml": "tags: [smoke]\n---\n- openScope: clickscope\n",
		"wip.yaml":   "tags: [smoke, wip]\n---\n- openScope: clickscope\n",
		"none.yaml":  "- openScope: clickscope\n",
	})

	result := New([]string{"smoke"}, []string{"wip"}).Validate(dir)
	if !result.IsValid() {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	files := result.Files()
	if len(files) != 1 || filepath.Base(files[0]) != "smoke.yaml" {
		t.Errorf("expected only smoke.yaml, got %v", files)
	}
}

func TestValidate_ParseError(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"bad.yaml":  `- openPreview: Clock`,
		"good.yaml": `- openScope: clickscope`,
	})

	result := New(nil, nil).Validate(dir)
	if result.IsValid() {
		t.Fatal("expected validation errors")
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0].Error(), "bad.yaml") {
		t.Errorf("expected one error for bad.yaml, got %v", result.Errors)
	}
	if len(result.Flows) != 1 {
		t.Errorf("expected the good flow to be kept, got %d", len(result.Flows))
	}
}

func TestValidate_MissingPath(t *testing.T) {
	result := New(nil, nil).Validate("/nonexistent/flows")
	if result.IsValid() {
		t.Fatal("expected an error for a missing path")
	}
	if !strings.Contains(result.Errors[0].Error(), "cannot access") {
		t.Errorf("unexpected error %v", result.Errors[0])
	}
}

func TestValidate_ScriptReferences(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"scripts/setup.js": `output.ready = true`,
		"ok.yaml":          "- runScript: scripts/setup.js\n",
		"missing.yaml": `
- repeat:
    times: 2
    commands:
      - runScript:
          file: scripts/gone.js
`,
		"dynamic.yaml": "- runScript: ${DIR}/setup.js\n",
	})

	result := New(nil, nil).Validate(dir)

	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", result.Errors)
	}
	if !strings.Contains(result.Errors[0].Error(), "gone.js") {
		t.Errorf("expected missing script error, got %v", result.Errors[0])
	}
	if len(result.Flows) != 2 {
		t.Errorf("expected ok and dynamic flows, got %v", result.Files())
	}
}
