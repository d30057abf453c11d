package fakeshell

import (
	"github.com/devicelab-dev/dash-runner/pkg/core"
	"github.com/devicelab-dev/dash-runner/pkg/tree"
)

// node implements core.Node over the simulated tree.
type node struct {
	shell *Shell
	elem  *tree.Element
}

func (n *node) ID() string       { return n.elem.ID }
func (n *node) TypeName() string { return n.elem.Type }

func (n *node) SelectMany(q core.Query) ([]core.Node, error) {
	n.shell.mu.Lock()
	defer n.shell.mu.Unlock()

	matches := tree.Find(n.elem, q, n.shell.resolve)
	nodes := make([]core.Node, len(matches))
	for i, e := range matches {
		nodes[i] = &node{shell: n.shell, elem: e}
	}
	return nodes, nil
}

func (n *node) SelectSingle(q core.Query) (core.Node, error) {
	nodes, err := n.SelectMany(q)
	if err != nil {
		return nil, err
	}
	return core.SingleOf(nodes, q)
}

func (n *node) Children() ([]core.Node, error) {
	n.shell.mu.Lock()
	defer n.shell.mu.Unlock()

	nodes := make([]core.Node, len(n.elem.Children))
	for i, e := range n.elem.Children {
		nodes[i] = &node{shell: n.shell, elem: e}
	}
	return nodes, nil
}

// Property reads a live value. Every read advances running animations.
func (n *node) Property(name string) (interface{}, error) {
	n.shell.mu.Lock()
	defer n.shell.mu.Unlock()

	n.shell.tick()
	v, ok := n.shell.resolve(n.elem, name)
	if !ok {
		return nil, core.ErrUnknownProperty.WithMessagef("%s has no property %q", n.elem.Type, name)
	}
	return v, nil
}
