// Package bridge provides an HTTP client for the shell's introspection bridge.
package bridge

// Response is the standard bridge response format.
type Response struct {
	SessionID string      `json:"sessionId,omitempty"`
	Value     interface{} `json:"value"`
}

// ErrorValue represents an error from the bridge.
type ErrorValue struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Error identifiers returned by the bridge.
const (
	ErrorNoSuchElement  = "no such element"
	ErrorNoSuchProperty = "no such property"
	ErrorInvalidSession = "invalid session id"
	ErrorInvalidArgs    = "invalid argument"
	ErrorUnknown        = "unknown error"
)

// Capabilities for session creation.
type Capabilities struct {
	Application string `json:"application,omitempty"`
}

// SessionRequest for creating a session.
type SessionRequest struct {
	Capabilities Capabilities `json:"capabilities"`
}

// ElementModel represents an element reference.
type ElementModel struct {
	ELEMENT string `json:"ELEMENT"`
	Type    string `json:"type"`
}

// FindElementsRequest selects descendants of an element.
type FindElementsRequest struct {
	Type       string                 `json:"type,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// PointModel represents coordinates.
type PointModel struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// DragRequest describes a press-move-release gesture.
type DragRequest struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// KeysRequest for typing text.
type KeysRequest struct {
	Text string `json:"text"`
}
