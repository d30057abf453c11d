package cli

import (
	"bytes"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/devicelab-dev/dash-runner/pkg/core"
	"github.com/devicelab-dev/dash-runner/pkg/fakeshell"
	"github.com/devicelab-dev/dash-runner/pkg/report"
)

// startFake serves a simulated shell and returns its URL.
func startFake(t *testing.T) (string, *fakeshell.Shell) {
	t.Helper()
	shell, err := fakeshell.New(fakeshell.Options{Latency: 2})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(fakeshell.NewServer(shell).Router())
	t.Cleanup(srv.Close)
	return srv.URL, shell
}

// writeFile writes content below dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// workspace writes a config with a short wait budget.
func workspace(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", "waitTimeoutMs: 2000\npollIntervalMs: 1\nlogLevel: warn\n")
	return dir, cfg
}

// captureStdout returns what fn printed.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	orig := os.Stdout
	os.Stdout = w
	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.String()
	}()
	fn()
	os.Stdout = orig
	w.Close()
	return <-done
}

func TestResolveOutputDir_Default(t *testing.T) {
	dir, err := resolveOutputDir("", "", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(dir, "reports/") {
		t.Errorf("expected dir to start with reports/, got %s", dir)
	}
	if parts := strings.Split(dir, "/"); len(parts) != 2 {
		t.Errorf("expected reports/<timestamp>, got %s", dir)
	}
}

func TestResolveOutputDir_ConfigBase(t *testing.T) {
	dir, err := resolveOutputDir("", "/var/dash/reports", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(dir, "/var/dash/reports/") {
		t.Errorf("expected dir below config base, got %s", dir)
	}
}

func TestResolveOutputDir_CustomOutput(t *testing.T) {
	dir, err := resolveOutputDir("./my-reports", "/var/dash/reports", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(dir, "my-reports/") {
		t.Errorf("expected dir to start with my-reports/, got %s", dir)
	}
}

func TestResolveOutputDir_Flatten(t *testing.T) {
	dir, err := resolveOutputDir("./my-reports", "", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir != "my-reports" {
		t.Errorf("expected my-reports, got %s", dir)
	}
}

func TestResolveOutputDir_FlattenWithoutOutput(t *testing.T) {
	if _, err := resolveOutputDir("", "/var/dash/reports", true); err == nil {
		t.Error("expected error when flatten is used without output")
	}
}

func TestParseEnvVars(t *testing.T) {
	env := parseEnvVars([]string{"USER=alice", "QUERY=a=b", "BROKEN"})
	if env["USER"] != "alice" {
		t.Errorf("USER = %q", env["USER"])
	}
	if env["QUERY"] != "a=b" {
		t.Errorf("QUERY = %q, want a=b", env["QUERY"])
	}
	if _, ok := env["BROKEN"]; ok {
		t.Error("entry without = should be ignored")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0ms"},
		{999, "999ms"},
		{1500, "1.5s"},
		{59999, "60.0s"},
		{61000, "1m 1s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.ms); got != tt.want {
			t.Errorf("formatDuration(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestStatusSymbol(t *testing.T) {
	tests := []struct {
		status   report.Status
		ms       int64
		compound bool
		want     string
	}{
		{report.StatusPassed, 10, false, "✓"},
		{report.StatusPassed, slowThresholdMs, false, "⚠"},
		{report.StatusPassed, slowThresholdMs, true, "✓"},
		{report.StatusWarned, 10, false, "⚠"},
		{report.StatusSkipped, 0, false, "-"},
		{report.StatusFailed, 0, false, "✗"},
		{report.StatusErrored, 0, false, "✗"},
	}
	for _, tt := range tests {
		if got, _ := statusSymbol(tt.status, tt.ms, tt.compound); got != tt.want {
			t.Errorf("statusSymbol(%s, %d, %v) = %q, want %q", tt.status, tt.ms, tt.compound, got, tt.want)
		}
	}
}

func TestGlobalFlags(t *testing.T) {
	want := map[string]bool{"bridge-url": false, "config": false, "log-file": false, "verbose": false, "no-ansi": false}
	for _, f := range GlobalFlags {
		for _, name := range f.Names() {
			if _, ok := want[name]; ok {
				want[name] = true
			}
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("global flag --%s missing", name)
		}
	}
}

func TestExplain_AddsSuggestions(t *testing.T) {
	err := core.ErrNotFound.WithMessage("No scope found with id musicagregator").
		WithDetails(map[string]interface{}{"suggestions": []string{"musicaggregator"}})
	got := explain(err)
	if !strings.Contains(got.Error(), "did you mean musicaggregator?") {
		t.Errorf("explain() = %v", got)
	}
	if !core.IsCode(got, "element_not_found") {
		t.Error("explain() must keep the wrapped error")
	}
	if plain := core.ErrTimeout.WithMessage("x"); explain(plain) != error(plain) {
		t.Error("errors without suggestions must pass through")
	}
}

func TestLoadScopes(t *testing.T) {
	path := writeFile(t, t.TempDir(), "scopes.yaml", `
- id: clickscope
  categories:
    - name: local
      cards: [Browser, Camera]
      visible: 1
- id: newsscope
`)
	scopes, err := loadScopes(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(scopes) != 2 || scopes[0].ID != "clickscope" {
		t.Fatalf("scopes = %+v", scopes)
	}
	cat := scopes[0].Categories[0]
	if cat.Name != "local" || len(cat.Cards) != 2 || cat.Visible != 1 {
		t.Errorf("category = %+v", cat)
	}

	empty := writeFile(t, t.TempDir(), "empty.yaml", "[]\n")
	if _, err := loadScopes(empty); err == nil {
		t.Error("expected error for empty scope list")
	}
}

func TestRunCommand_NoFlows(t *testing.T) {
	_, cfg := workspace(t)
	err := NewApp().Run([]string{"dash-runner", "--config", cfg, "run"})
	if err == nil || !strings.Contains(err.Error(), "at least one flow") {
		t.Errorf("expected missing flow error, got %v", err)
	}
}

func TestRunCommand_FlattenWithoutOutput(t *testing.T) {
	dir, cfg := workspace(t)
	flowPath := writeFile(t, dir, "f.yaml", "- openScope: newsscope\n")
	err := NewApp().Run([]string{"dash-runner", "--config", cfg, "run", "--flatten", flowPath})
	if err == nil || !strings.Contains(err.Error(), "--flatten") {
		t.Errorf("expected flatten error, got %v", err)
	}
}

func TestRunCommand_AgainstFakeShell(t *testing.T) {
	url, shell := startFake(t)
	dir, cfg := workspace(t)
	out := filepath.Join(dir, "out")
	flowPath := writeFile(t, dir, "music.yaml", `
name: Music preview
---
- openScope: musicaggregator
- openPreview:
    category: recent
    app: ${APP}
    output: TITLE
- assertTrue: ${TITLE == 'So What'}
`)

	var err error
	captureStdout(t, func() {
		err = NewApp().Run([]string{"dash-runner", "--bridge-url", url, "--config", cfg, "--no-ansi",
			"run", "-e", "APP=So What", "--output", out, "--flatten", flowPath})
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	index, err := report.ReadIndex(out)
	if err != nil {
		t.Fatal(err)
	}
	if index.Status != report.StatusPassed {
		t.Errorf("run status = %s, want passed", index.Status)
	}
	if index.Bridge.URL != url || index.Bridge.Session == "" {
		t.Errorf("bridge info = %+v", index.Bridge)
	}
	if shell.CurrentIndex() != 1 {
		t.Errorf("current scope = %d, want 1", shell.CurrentIndex())
	}
	if _, err := os.Stat(filepath.Join(out, "dash-runner.log")); err != nil {
		t.Errorf("log file not written: %v", err)
	}
}

func TestRunCommand_FailingFlowReturnsError(t *testing.T) {
	url, _ := startFake(t)
	dir, cfg := workspace(t)
	out := filepath.Join(dir, "out")
	flowPath := writeFile(t, dir, "apps.yaml", `
- assertApplications:
    category: local
    contains: [Terminal]
`)

	var err error
	printed := captureStdout(t, func() {
		err = NewApp().Run([]string{"dash-runner", "--bridge-url", url, "--config", cfg, "--no-ansi",
			"run", "--output", out, "--flatten", flowPath})
	})
	if err == nil || !strings.Contains(err.Error(), "1 of 1 flow(s) failed") {
		t.Errorf("expected failure, got %v", err)
	}
	if !strings.Contains(printed, "✗ FAIL") {
		t.Errorf("summary missing FAIL row:\n%s", printed)
	}

	printed = captureStdout(t, func() {
		if err := NewApp().Run([]string{"dash-runner", "--no-ansi", "report", out}); err != nil {
			t.Errorf("report: %v", err)
		}
	})
	if !strings.Contains(printed, "assertApplications") || !strings.Contains(printed, "╰─") {
		t.Errorf("report output missing failed command:\n%s", printed)
	}
}

func TestValidateCommand(t *testing.T) {
	dir, cfg := workspace(t)
	writeFile(t, dir, "ok.yaml", "- openScope: newsscope\n")
	writeFile(t, dir, "bad.yaml", "- noSuchStep: x\n")

	var err error
	printed := captureStdout(t, func() {
		err = NewApp().Run([]string{"dash-runner", "--config", cfg, "--no-ansi", "validate", dir})
	})
	if err == nil {
		t.Error("expected validation error for bad.yaml")
	}
	if !strings.Contains(printed, "ok.yaml") || !strings.Contains(printed, "bad.yaml") {
		t.Errorf("validate output:\n%s", printed)
	}
}

func TestListAppsCommand(t *testing.T) {
	url, _ := startFake(t)
	_, cfg := workspace(t)

	var err error
	printed := captureStdout(t, func() {
		err = NewApp().Run([]string{"dash-runner", "--bridge-url", url, "--config", cfg, "list-apps", "local"})
	})
	if err != nil {
		t.Fatal(err)
	}
	want := "Browser\nCalculator\nCamera\nClock\nGallery\nMessaging\n"
	if printed != want {
		t.Errorf("list-apps printed %q, want %q", printed, want)
	}
}

func TestOpenScopeCommand_Suggests(t *testing.T) {
	url, _ := startFake(t)
	_, cfg := workspace(t)

	err := NewApp().Run([]string{"dash-runner", "--bridge-url", url, "--config", cfg, "open-scope", "musicagregator"})
	if err == nil || !strings.Contains(err.Error(), "musicaggregator") {
		t.Errorf("expected suggestion, got %v", err)
	}
}

func TestHierarchyCommand_Filter(t *testing.T) {
	url, _ := startFake(t)
	_, cfg := workspace(t)

	var err error
	printed := captureStdout(t, func() {
		err = NewApp().Run([]string{"dash-runner", "--bridge-url", url, "--config", cfg,
			"hierarchy", "--compact", "--prop", "objectName=seeAll"})
	})
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(printed), "\n")
	if lines[0] != "depth,type,id,objectName,globalRect" {
		t.Errorf("header = %q", lines[0])
	}
	for _, line := range lines[1:] {
		if !strings.Contains(line, ",seeAll,") {
			t.Errorf("unfiltered row %q", line)
		}
	}
	if len(lines) < 2 {
		t.Error("expected seeAll rows")
	}
}

func TestHierarchyCommand_FromFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tree.xml", `<?xml version="1.0" encoding="UTF-8"?>
<MainView id="1"><Dash id="2" objectName="dash"><AbstractButton id="3" objectName="seeAll" globalRect="0,10,100,50"/></Dash></MainView>`)

	var err error
	printed := captureStdout(t, func() {
		err = NewApp().Run([]string{"dash-runner", "hierarchy", "--file", path, "--type", "AbstractButton"})
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(printed, `objectName="seeAll"`) || strings.Contains(printed, "<Dash") {
		t.Errorf("filtered output:\n%s", printed)
	}

	if err := NewApp().Run([]string{"dash-runner", "hierarchy", "--file", path, "--prop", "broken"}); err == nil {
		t.Error("expected error for malformed --prop")
	}
}

func TestHelpAndVersion(t *testing.T) {
	for _, args := range [][]string{
		{"dash-runner", "--help"},
		{"dash-runner", "--version"},
		{"dash-runner", "-v"},
		{"dash-runner", "run", "--help"},
		{"dash-runner", "open-scope", "--help"},
	} {
		var runErr error
		out := captureStdout(t, func() {
			runErr = NewApp().Run(args)
		})
		if runErr != nil {
			t.Errorf("%v: unexpected error: %v", args[1:], runErr)
		}
		if out == "" {
			t.Errorf("%v: expected output", args[1:])
		}
	}
}
