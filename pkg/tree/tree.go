// Package tree models snapshots of the shell's introspection tree.
//
// A snapshot is XML in which the element tag is the object type, attributes
// are properties and nested elements are children:
//
//	<QQuickLoader id="12" scopeId="clickscope" isCurrent="true" globalRect="0,80,720,1200">
//	  <GenericScopeView id="13" objectName="clickscope"/>
//	</QQuickLoader>
package tree

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/devicelab-dev/dash-runner/pkg/core"
)

// attrID carries the node identifier in snapshots.
const attrID = "id"

// Element is one object of a snapshot.
type Element struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type"`
	Props    map[string]interface{} `json:"properties,omitempty"`
	Children []*Element             `json:"children,omitempty"`
	Parent   *Element               `json:"-"`
	Depth    int                    `json:"-"`
}

// NewElement creates an element with an empty property set.
func NewElement(id, typeName string) *Element {
	return &Element{ID: id, Type: typeName, Props: make(map[string]interface{})}
}

// Append adds children and sets their parent and depth.
func (e *Element) Append(children ...*Element) *Element {
	for _, c := range children {
		c.Parent = e
		setDepth(c, e.Depth+1)
		e.Children = append(e.Children, c)
	}
	return e
}

func setDepth(e *Element, depth int) {
	e.Depth = depth
	for _, c := range e.Children {
		setDepth(c, depth+1)
	}
}

// Set assigns a property and returns the element for chaining.
func (e *Element) Set(name string, value interface{}) *Element {
	e.Props[name] = value
	return e
}

// Resolver reads a property of an element. Live backends use it to compute
// dynamic properties; snapshots read Props directly.
type Resolver func(e *Element, name string) (interface{}, bool)

// StaticProps reads Props as stored.
func StaticProps(e *Element, name string) (interface{}, bool) {
	v, ok := e.Props[name]
	return v, ok
}

// Matches reports whether e satisfies q.
func Matches(e *Element, q core.Query, resolve Resolver) bool {
	if q.Type != "" && q.Type != e.Type {
		return false
	}
	if resolve == nil {
		resolve = StaticProps
	}
	for name, want := range q.Props {
		got, ok := resolve(e, name)
		if !ok || !core.ValuesEqual(got, want) {
			return false
		}
	}
	return true
}

// Find returns all descendants of root matching q in depth-first order.
// The root itself is not considered.
func Find(root *Element, q core.Query, resolve Resolver) []*Element {
	var result []*Element
	var walk func(e *Element)
	walk = func(e *Element) {
		for _, c := range e.Children {
			if Matches(c, q, resolve) {
				result = append(result, c)
			}
			walk(c)
		}
	}
	walk(root)
	return result
}

// Flatten returns root and all its descendants in depth-first order.
func Flatten(root *Element) []*Element {
	result := []*Element{root}
	for _, c := range root.Children {
		result = append(result, Flatten(c)...)
	}
	return result
}

// Filter returns the elements matching q.
func Filter(elements []*Element, q core.Query) []*Element {
	var result []*Element
	for _, e := range elements {
		if Matches(e, q, nil) {
			result = append(result, e)
		}
	}
	return result
}

// Bounds returns the element's globalRect, or false when it has none.
func Bounds(e *Element, resolve Resolver) (core.Bounds, bool) {
	if resolve == nil {
		resolve = StaticProps
	}
	v, ok := resolve(e, core.PropGlobalRect)
	if !ok {
		return core.Bounds{}, false
	}
	b, err := core.ParseBounds(v)
	if err != nil {
		return core.Bounds{}, false
	}
	return b, true
}

// DeepestAt returns the deepest element whose bounds contain the point,
// restricted to elements accepted by keep (nil keeps all).
func DeepestAt(root *Element, x, y int, resolve Resolver, keep func(*Element) bool) *Element {
	var best *Element
	for _, e := range Flatten(root) {
		if keep != nil && !keep(e) {
			continue
		}
		b, ok := Bounds(e, resolve)
		if !ok || !b.Contains(x, y) {
			continue
		}
		if best == nil || e.Depth >= best.Depth {
			best = e
		}
	}
	return best
}

// Parse reads an XML snapshot into an element tree and returns its root.
func Parse(data string) (*Element, error) {
	decoder := xml.NewDecoder(strings.NewReader(data))

	var parseElement func(start xml.StartElement, depth int) (*Element, error)
	parseElement = func(start xml.StartElement, depth int) (*Element, error) {
		elem := &Element{
			Type:  start.Name.Local,
			Props: make(map[string]interface{}),
			Depth: depth,
		}
		for _, attr := range start.Attr {
			if attr.Name.Local == attrID {
				elem.ID = attr.Value
				continue
			}
			elem.Props[attr.Name.Local] = attr.Value
		}

		for {
			token, err := decoder.Token()
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", elem.Type, err)
			}
			switch t := token.(type) {
			case xml.StartElement:
				child, err := parseElement(t, depth+1)
				if err != nil {
					return nil, err
				}
				child.Parent = elem
				elem.Children = append(elem.Children, child)
			case xml.EndElement:
				return elem, nil
			}
		}
	}

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("no elements found in snapshot")
		}
		if err != nil {
			return nil, err
		}
		if start, ok := token.(xml.StartElement); ok {
			return parseElement(start, 0)
		}
	}
}

// Render writes the element tree as an XML snapshot, resolving properties
// through resolve so live values are captured.
func Render(root *Element, resolve Resolver) (string, error) {
	if resolve == nil {
		resolve = StaticProps
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := renderElement(enc, root, resolve); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderElement(enc *xml.Encoder, e *Element, resolve Resolver) error {
	start := xml.StartElement{Name: xml.Name{Local: e.Type}}
	if e.ID != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: attrID}, Value: e.ID})
	}
	for _, name := range PropertyNames(e) {
		v, ok := resolve(e, name)
		if !ok {
			continue
		}
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: name}, Value: FormatValue(v)})
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, c := range e.Children {
		if err := renderElement(enc, c, resolve); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

// PropertyNames returns the element's property names sorted.
func PropertyNames(e *Element) []string {
	names := make([]string, 0, len(e.Props))
	for name := range e.Props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FormatValue renders a property value in snapshot form.
func FormatValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case core.Bounds:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}
