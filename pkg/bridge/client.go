package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/devicelab-dev/dash-runner/pkg/core"
	"github.com/devicelab-dev/dash-runner/pkg/logger"
)

// Client communicates with the introspection bridge.
type Client struct {
	http       *http.Client
	baseURL    string
	sessionID  string
	socketPath string
}

// NewClient creates a client using a Unix socket.
func NewClient(socketPath string) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}

	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		baseURL:    "http://localhost",
		socketPath: socketPath,
	}
}

// NewClientURL creates a client for a TCP base URL such as http://127.0.0.1:4723.
func NewClientURL(baseURL string) *Client {
	return &Client{
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Dial picks the transport from an address: unix:///path or a plain path
// selects the socket client, anything else is treated as an HTTP URL.
func Dial(addr string) *Client {
	switch {
	case strings.HasPrefix(addr, "unix://"):
		return NewClient(strings.TrimPrefix(addr, "unix://"))
	case strings.HasPrefix(addr, "/"):
		return NewClient(addr)
	default:
		return NewClientURL(addr)
	}
}

// SessionID returns the current session ID.
func (c *Client) SessionID() string {
	return c.sessionID
}

// HasSession returns true if a session is active.
func (c *Client) HasSession() bool {
	return c.sessionID != ""
}

// request makes an HTTP request to the bridge.
func (c *Client) request(method, path string, body interface{}) ([]byte, error) {
	start := time.Now()

	var reqBody io.Reader
	var bodyStr string
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
		bodyStr = string(data)
		if len(bodyStr) > 100 {
			bodyStr = bodyStr[:100] + "..."
		}
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		logger.Debug("bridge %s %s [%v] ERROR: %v", method, path, elapsed, err)
		return nil, core.ErrServerUnreachable.WithMessagef("%s %s", method, path).WithCause(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	status := "OK"
	if resp.StatusCode >= 400 {
		status = fmt.Sprintf("ERR:%d", resp.StatusCode)
	}
	logger.Debug("bridge %s %s [%v] %s body=%s", method, path, elapsed, status, bodyStr)

	if resp.StatusCode >= 400 {
		return nil, parseError(resp.StatusCode, respBody)
	}

	return respBody, nil
}

// parseError maps a bridge error body onto the error taxonomy.
func parseError(statusCode int, body []byte) error {
	var errResp struct {
		Value ErrorValue `json:"value"`
	}
	if json.Unmarshal(body, &errResp) != nil || errResp.Value.Error == "" {
		return fmt.Errorf("server error %d: %s", statusCode, string(body))
	}

	msg := errResp.Value.Message
	switch errResp.Value.Error {
	case ErrorNoSuchElement:
		return core.ErrNotFound.WithMessage(msg)
	case ErrorNoSuchProperty:
		return core.ErrUnknownProperty.WithMessage(msg)
	case ErrorInvalidSession:
		return core.ErrNoSession.WithMessage(msg)
	default:
		return fmt.Errorf("%s: %s", errResp.Value.Error, msg)
	}
}

// sessionPath returns path with session ID prefix.
func (c *Client) sessionPath(path string) string {
	return fmt.Sprintf("/session/%s%s", c.sessionID, path)
}

func (c *Client) requireSession() error {
	if c.sessionID == "" {
		return core.ErrNoSession
	}
	return nil
}

// Status checks if the bridge is ready.
func (c *Client) Status() (bool, error) {
	data, err := c.request("GET", "/status", nil)
	if err != nil {
		return false, err
	}

	var resp struct {
		Value struct {
			Ready   bool   `json:"ready"`
			Message string `json:"message"`
		} `json:"value"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return false, err
	}

	return resp.Value.Ready, nil
}

// WaitReady polls Status until the bridge reports ready or ctx ends.
func (c *Client) WaitReady(ctx context.Context, interval time.Duration) error {
	for {
		ready, err := c.Status()
		if err == nil && ready {
			return nil
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return core.ErrServerUnreachable.WithMessage("bridge not ready").WithCause(err)
			}
			return core.ErrServerUnreachable.WithMessage("bridge not ready")
		case <-time.After(interval):
		}
	}
}

// CreateSession starts a new introspection session.
func (c *Client) CreateSession(caps Capabilities) error {
	req := SessionRequest{Capabilities: caps}
	data, err := c.request("POST", "/session", req)
	if err != nil {
		return err
	}

	var resp struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("parse session response: %w", err)
	}

	if resp.SessionID == "" {
		// Try alternate response format
		var altResp struct {
			Value struct {
				SessionID string `json:"sessionId"`
			} `json:"value"`
		}
		if json.Unmarshal(data, &altResp) == nil && altResp.Value.SessionID != "" {
			resp.SessionID = altResp.Value.SessionID
		}
	}

	if resp.SessionID == "" {
		return fmt.Errorf("no session ID in response")
	}

	c.sessionID = resp.SessionID
	return nil
}

// DeleteSession ends the current session.
func (c *Client) DeleteSession() error {
	if c.sessionID == "" {
		return nil
	}

	_, err := c.request("DELETE", c.sessionPath(""), nil)
	c.sessionID = ""
	return err
}

// Close ends the session and cleans up.
func (c *Client) Close() error {
	return c.DeleteSession()
}

// Source returns the XML snapshot of the whole tree.
func (c *Client) Source() (string, error) {
	if err := c.requireSession(); err != nil {
		return "", err
	}
	data, err := c.request("GET", c.sessionPath("/source"), nil)
	if err != nil {
		return "", err
	}

	var resp struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("parse source response: %w", err)
	}
	return resp.Value, nil
}
