package bridge

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/devicelab-dev/dash-runner/pkg/core"
)

// Element is a remote object handle. It implements core.Node.
type Element struct {
	id       string
	typeName string
	client   *Client
}

// ID returns the element ID.
func (e *Element) ID() string {
	return e.id
}

// TypeName returns the object type reported by the bridge.
func (e *Element) TypeName() string {
	return e.typeName
}

// String identifies the element in logs.
func (e *Element) String() string {
	return fmt.Sprintf("%s#%s", e.typeName, e.id)
}

// Root returns the root of the tree.
func (c *Client) Root() (*Element, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	data, err := c.request("GET", c.sessionPath("/element/root"), nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Value ElementModel `json:"value"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse element response: %w", err)
	}
	if resp.Value.ELEMENT == "" {
		return nil, core.ErrNotFound.WithMessage("bridge returned no root element")
	}
	return c.element(resp.Value), nil
}

func (c *Client) element(m ElementModel) *Element {
	return &Element{id: m.ELEMENT, typeName: m.Type, client: c}
}

func (c *Client) elementList(data []byte) ([]core.Node, error) {
	var resp struct {
		Value []ElementModel `json:"value"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse elements response: %w", err)
	}

	nodes := make([]core.Node, len(resp.Value))
	for i, v := range resp.Value {
		nodes[i] = c.element(v)
	}
	return nodes, nil
}

// SelectMany returns all descendants matching q.
func (e *Element) SelectMany(q core.Query) ([]core.Node, error) {
	if err := e.client.requireSession(); err != nil {
		return nil, err
	}
	req := FindElementsRequest{Type: q.Type, Properties: q.Props}
	data, err := e.client.request("POST", e.client.sessionPath("/element/"+e.id+"/elements"), req)
	if err != nil {
		return nil, err
	}
	return e.client.elementList(data)
}

// SelectSingle returns the only descendant matching q.
func (e *Element) SelectSingle(q core.Query) (core.Node, error) {
	nodes, err := e.SelectMany(q)
	if err != nil {
		return nil, err
	}
	return core.SingleOf(nodes, q)
}

// Children returns the direct children.
func (e *Element) Children() ([]core.Node, error) {
	if err := e.client.requireSession(); err != nil {
		return nil, err
	}
	data, err := e.client.request("GET", e.client.sessionPath("/element/"+e.id+"/children"), nil)
	if err != nil {
		return nil, err
	}
	return e.client.elementList(data)
}

// Property reads a property value. Numbers arrive as float64 and
// rectangles as [x, y, w, h] arrays, which the core accessors accept.
func (e *Element) Property(name string) (interface{}, error) {
	if err := e.client.requireSession(); err != nil {
		return nil, err
	}
	path := e.client.sessionPath("/element/" + e.id + "/property/" + url.PathEscape(name))
	data, err := e.client.request("GET", path, nil)
	if err != nil {
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse property response: %w", err)
	}
	return resp.Value, nil
}
