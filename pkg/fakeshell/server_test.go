package fakeshell

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/devicelab-dev/dash-runner/pkg/bridge"
	"github.com/devicelab-dev/dash-runner/pkg/core"
	"github.com/devicelab-dev/dash-runner/pkg/tree"
)

func newBridge(t *testing.T, opts Options) (*Shell, *bridge.Client) {
	t.Helper()
	shell := newShell(t, opts)
	server := httptest.NewServer(NewServer(shell).Router())
	t.Cleanup(server.Close)

	client := bridge.NewClientURL(server.URL)
	if err := client.CreateSession(bridge.Capabilities{Application: "unity8-dash"}); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return shell, client
}

func TestServerStatus(t *testing.T) {
	_, client := newBridge(t, Options{})
	ready, err := client.Status()
	if err != nil || !ready {
		t.Errorf("Status() = %v, %v", ready, err)
	}
}

func TestServerSelectAndProperties(t *testing.T) {
	_, client := newBridge(t, Options{Current: 1})

	root, err := client.Root()
	if err != nil {
		t.Fatalf("Root failed: %v", err)
	}
	if root.TypeName() != "QQuickView" {
		t.Errorf("unexpected root type %s", root.TypeName())
	}

	list, err := root.SelectSingle(core.ByObjectName("dashContentList"))
	if err != nil {
		t.Fatalf("select list: %v", err)
	}
	if idx, err := core.IntProperty(list, core.PropCurrentIndex); err != nil || idx != 1 {
		t.Errorf("currentIndex = %d, %v", idx, err)
	}

	loader, err := list.SelectSingle(core.Select("QQuickLoader", core.PropIsCurrent, true))
	if err != nil {
		t.Fatalf("select current loader: %v", err)
	}
	b, err := core.BoundsProperty(loader, core.PropGlobalRect)
	if err != nil {
		t.Fatalf("bounds: %v", err)
	}
	if b != (core.Bounds{Width: 720, Height: 1280}) {
		t.Errorf("unexpected bounds %v", b)
	}

	children, err := loader.Children()
	if err != nil || len(children) != 1 {
		t.Fatalf("children = %v, %v", children, err)
	}

	if _, err := loader.Property("bogus"); !errors.Is(err, core.ErrUnknownProperty) {
		t.Errorf("expected ErrUnknownProperty, got %v", err)
	}
	if _, err := list.SelectSingle(core.Select("QQuickLoader", core.PropScopeID, "nope")); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestServerInput(t *testing.T) {
	shell, client := newBridge(t, Options{})

	if err := client.Drag(480, 1, 240, 1); err != nil {
		t.Fatalf("Drag failed: %v", err)
	}
	if shell.CurrentIndex() != 1 {
		t.Errorf("expected index 1 after drag, got %d", shell.CurrentIndex())
	}
	if err := client.Move(10, 10); err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if err := client.Click(); err != nil {
		t.Fatalf("Click failed: %v", err)
	}
	// Nothing is focused yet
	if err := client.Write("x"); err == nil {
		t.Error("expected error writing without focus")
	}

	kinds := make([]string, 0, 4)
	for _, g := range shell.Gestures() {
		kinds = append(kinds, g.Kind)
	}
	if got := strings.Join(kinds, ","); got != "drag,move,click,write" {
		t.Errorf("unexpected gesture log %s", got)
	}
}

func TestServerSource(t *testing.T) {
	_, client := newBridge(t, Options{})
	src, err := client.Source()
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}
	root, err := tree.Parse(src)
	if err != nil {
		t.Fatalf("snapshot does not parse: %v", err)
	}
	loaders := tree.Find(root, core.Select("QQuickLoader", core.PropIsCurrent, true), nil)
	if len(loaders) != 1 || loaders[0].Props[core.PropScopeID] != "clickscope" {
		t.Errorf("unexpected current loaders %v", loaders)
	}
}

func TestServerRejectsUnknownSession(t *testing.T) {
	shell := newShell(t, Options{})
	server := httptest.NewServer(NewServer(shell).Router())
	defer server.Close()

	client := bridge.NewClientURL(server.URL)
	client.SetSession("not-a-session")
	if _, err := client.Root(); !errors.Is(err, core.ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}

	resp, err := http.Get(server.URL + "/session/not-a-session/element/root")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestServerDeleteSession(t *testing.T) {
	_, client := newBridge(t, Options{})
	sid := client.SessionID()
	if err := client.DeleteSession(); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	client.SetSession(sid)
	if _, err := client.Source(); !errors.Is(err, core.ErrNoSession) {
		t.Errorf("expected deleted session to be rejected, got %v", err)
	}
}
