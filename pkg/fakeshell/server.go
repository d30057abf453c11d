package fakeshell

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/devicelab-dev/dash-runner/pkg/bridge"
	"github.com/devicelab-dev/dash-runner/pkg/core"
	"github.com/devicelab-dev/dash-runner/pkg/logger"
)

// Server serves the introspection bridge protocol over a simulated shell.
type Server struct {
	shell *Shell

	mu       sync.Mutex
	sessions map[string]bool
}

// NewServer creates a bridge server for shell.
func NewServer(shell *Shell) *Server {
	return &Server{shell: shell, sessions: make(map[string]bool)}
}

// Router returns the HTTP handler.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/status", s.handleStatus).Methods("GET")
	r.HandleFunc("/session", s.handleCreateSession).Methods("POST")
	r.Handle("/session/{sid}", s.requireSession(http.HandlerFunc(s.handleDeleteSession))).Methods("DELETE")

	sr := r.PathPrefix("/session/{sid}").Subrouter()
	sr.Use(s.requireSession)
	sr.HandleFunc("/source", s.handleSource).Methods("GET")
	sr.HandleFunc("/element/root", s.handleRoot).Methods("GET")
	sr.HandleFunc("/element/{id}/elements", s.handleElements).Methods("POST")
	sr.HandleFunc("/element/{id}/children", s.handleChildren).Methods("GET")
	sr.HandleFunc("/element/{id}/property/{name}", s.handleProperty).Methods("GET")
	sr.HandleFunc("/actions/move", s.handleMove).Methods("POST")
	sr.HandleFunc("/actions/click", s.handleClick).Methods("POST")
	sr.HandleFunc("/actions/drag", s.handleDrag).Methods("POST")
	sr.HandleFunc("/keys", s.handleKeys).Methods("POST")
	return r
}

func writeValue(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(bridge.Response{Value: v}); err != nil {
		logger.Warn("fakeshell: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(bridge.Response{Value: bridge.ErrorValue{Error: kind, Message: msg}}); err != nil {
		logger.Warn("fakeshell: encode error response: %v", err)
	}
}

// writeErr maps the error taxonomy back onto protocol errors.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, bridge.ErrorNoSuchElement, err.Error())
	case errors.Is(err, core.ErrUnknownProperty):
		writeError(w, http.StatusNotFound, bridge.ErrorNoSuchProperty, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, bridge.ErrorUnknown, err.Error())
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, bridge.ErrorInvalidArgs, err.Error())
		return false
	}
	return true
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := mux.Vars(r)["sid"]
		s.mu.Lock()
		ok := s.sessions[sid]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusNotFound, bridge.ErrorInvalidSession, "unknown session "+sid)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeValue(w, map[string]interface{}{"ready": true, "message": "fake dash ready"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sid := uuid.NewString()
	s.mu.Lock()
	s.sessions[sid] = true
	s.mu.Unlock()
	logger.Info("fakeshell: session %s created", sid)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(bridge.Response{SessionID: sid, Value: map[string]interface{}{"sessionId": sid}}); err != nil {
		logger.Warn("fakeshell: encode session: %v", err)
	}
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sid := mux.Vars(r)["sid"]
	s.mu.Lock()
	delete(s.sessions, sid)
	s.mu.Unlock()
	writeValue(w, nil)
}

func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	src, err := s.shell.Source()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeValue(w, src)
}

func elementModel(n core.Node) bridge.ElementModel {
	return bridge.ElementModel{ELEMENT: n.ID(), Type: n.TypeName()}
}

func elementModels(nodes []core.Node) []bridge.ElementModel {
	models := make([]bridge.ElementModel, len(nodes))
	for i, n := range nodes {
		models[i] = elementModel(n)
	}
	return models
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeValue(w, elementModel(s.shell.Root()))
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (core.Node, bool) {
	id := mux.Vars(r)["id"]
	n, ok := s.shell.Lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, bridge.ErrorNoSuchElement, "no element with id "+id)
	}
	return n, ok
}

func (s *Server) handleElements(w http.ResponseWriter, r *http.Request) {
	n, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req bridge.FindElementsRequest
	if !decode(w, r, &req) {
		return
	}
	nodes, err := n.SelectMany(core.Query{Type: req.Type, Props: req.Properties})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeValue(w, elementModels(nodes))
}

func (s *Server) handleChildren(w http.ResponseWriter, r *http.Request) {
	n, ok := s.lookup(w, r)
	if !ok {
		return
	}
	nodes, err := n.Children()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeValue(w, elementModels(nodes))
}

func (s *Server) handleProperty(w http.ResponseWriter, r *http.Request) {
	n, ok := s.lookup(w, r)
	if !ok {
		return
	}
	v, err := n.Property(mux.Vars(r)["name"])
	if err != nil {
		writeErr(w, err)
		return
	}
	// Rectangles travel as [x, y, w, h]
	if b, isBounds := v.(core.Bounds); isBounds {
		v = []int{b.X, b.Y, b.Width, b.Height}
	}
	writeValue(w, v)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req bridge.PointModel
	if !decode(w, r, &req) {
		return
	}
	if err := s.shell.Move(req.X, req.Y); err != nil {
		writeErr(w, err)
		return
	}
	writeValue(w, nil)
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	if err := s.shell.Click(); err != nil {
		writeErr(w, err)
		return
	}
	writeValue(w, nil)
}

func (s *Server) handleDrag(w http.ResponseWriter, r *http.Request) {
	var req bridge.DragRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.shell.Drag(req.X1, req.Y1, req.X2, req.Y2); err != nil {
		writeErr(w, err)
		return
	}
	writeValue(w, nil)
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	var req bridge.KeysRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.shell.Write(req.Text); err != nil {
		writeErr(w, err)
		return
	}
	writeValue(w, nil)
}
