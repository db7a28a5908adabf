// Package handler provides the HTTP handlers of the catalog session API.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/devrev/catalogd/internal/errors"
	"github.com/devrev/catalogd/internal/model"
	"github.com/devrev/catalogd/internal/service"
	"github.com/devrev/catalogd/internal/util"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// SessionRegistry is the subset of the session manager the handlers need
type SessionRegistry interface {
	Create(ctx context.Context) (*service.Session, error)
	Get(id string) (*service.Session, error)
	Close(id string) error
}

// Config holds handler configuration
type Config struct {
	// WaitTimeout bounds how long a request with ?wait=true blocks for
	// outstanding fetches to settle
	WaitTimeout time.Duration
}

// SessionHandler implements the /v1/sessions endpoints
type SessionHandler struct {
	sessions    SessionRegistry
	waitTimeout time.Duration
	logger      *zap.Logger
}

type filterRequest struct {
	Value string `json:"value"`
}

type sortRequest struct {
	Key       model.SortKey       `json:"key"`
	Direction model.SortDirection `json:"direction"`
}

type pageRequest struct {
	PageIndex *int `json:"page_index"`
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(cfg *Config, sessions SessionRegistry, logger *zap.Logger) *SessionHandler {
	wait := cfg.WaitTimeout
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &SessionHandler{
		sessions:    sessions,
		waitTimeout: wait,
		logger:      logger,
	}
}

// Register mounts the session routes on r
func (h *SessionHandler) Register(r *mux.Router) {
	r.HandleFunc("/sessions", h.CreateSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}", h.GetSession).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", h.DeleteSession).Methods(http.MethodDelete)
	r.HandleFunc("/sessions/{id}/filters/{dimension}", h.SetFilter).Methods(http.MethodPut)
	r.HandleFunc("/sessions/{id}/filters/{dimension}", h.ClearFilter).Methods(http.MethodDelete)
	r.HandleFunc("/sessions/{id}/sort", h.SetSort).Methods(http.MethodPut)
	r.HandleFunc("/sessions/{id}/page", h.SetPage).Methods(http.MethodPut)
	r.HandleFunc("/sessions/{id}/page", h.GetPage).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/options/{dimension}", h.GetOptions).Methods(http.MethodGet)
}

// CreateSession handles POST /v1/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Create(r.Context())
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Location", "/v1/sessions/"+session.ID())
	h.writeSnapshot(w, r, http.StatusCreated, session)
}

// GetSession handles GET /v1/sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.writeSnapshot(w, r, http.StatusOK, session)
}

// DeleteSession handles DELETE /v1/sessions/{id}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(mux.Vars(r)["id"]); err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetFilter handles PUT /v1/sessions/{id}/filters/{dimension}
func (h *SessionHandler) SetFilter(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}
	d, err := dimensionParam(r)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}

	var req filterRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	value, err := model.ParseValue(d, req.Value)
	if err != nil {
		WriteError(w, r, h.logger, errors.InvalidValue(string(d), req.Value, err.Error()))
		return
	}

	if err := session.SetFilter(d, value); err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	h.writeSnapshot(w, r, http.StatusOK, session)
}

// ClearFilter handles DELETE /v1/sessions/{id}/filters/{dimension}
func (h *SessionHandler) ClearFilter(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}
	d, err := dimensionParam(r)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}

	if err := session.SetFilter(d, model.Any()); err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	h.writeSnapshot(w, r, http.StatusOK, session)
}

// SetSort handles PUT /v1/sessions/{id}/sort
func (h *SessionHandler) SetSort(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req sortRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	if req.Direction == "" {
		req.Direction = model.SortAsc
	}

	if err := session.SetSort(model.SortSpec{Key: req.Key, Direction: req.Direction}); err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	h.writeSnapshot(w, r, http.StatusOK, session)
}

// SetPage handles PUT /v1/sessions/{id}/page
func (h *SessionHandler) SetPage(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req pageRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	if req.PageIndex == nil {
		WriteError(w, r, h.logger, errors.Validation("page_index is required"))
		return
	}

	if err := session.SetPage(*req.PageIndex); err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, session.VisiblePage())
}

// GetPage handles GET /v1/sessions/{id}/page
func (h *SessionHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if raw := r.URL.Query().Get("index"); raw != "" {
		index, err := strconv.Atoi(raw)
		if err != nil {
			WriteError(w, r, h.logger, errors.Validation("index must be an integer").WithDetail("index", raw))
			return
		}
		if err := session.SetPage(index); err != nil {
			WriteError(w, r, h.logger, err)
			return
		}
	}
	h.maybeWait(r, session)
	writeJSON(w, h.logger, http.StatusOK, session.VisiblePage())
}

// GetOptions handles GET /v1/sessions/{id}/options/{dimension}
func (h *SessionHandler) GetOptions(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}
	d, err := dimensionParam(r)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}

	h.maybeWait(r, session)
	options, err := session.OptionSet(d)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, options)
}

func (h *SessionHandler) lookup(w http.ResponseWriter, r *http.Request) (*service.Session, bool) {
	session, err := h.sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		WriteError(w, r, h.logger, err)
		return nil, false
	}
	return session, true
}

// maybeWait blocks until the session settles when the request asks for it
func (h *SessionHandler) maybeWait(r *http.Request, session *service.Session) {
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); !wait {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.waitTimeout)
	defer cancel()
	if err := session.Settle(ctx); err != nil {
		h.logger.Debug("Session did not settle before deadline",
			zap.String("session_id", session.ID()),
			zap.Error(err))
	}
}

// writeSnapshot writes the session snapshot with an ETag, answering 304
// when the client already holds the same representation
func (h *SessionHandler) writeSnapshot(w http.ResponseWriter, r *http.Request, status int, session *service.Session) {
	h.maybeWait(r, session)

	body, err := json.Marshal(session.Snapshot())
	if err != nil {
		WriteError(w, r, h.logger, errors.InternalError("failed to encode snapshot", err))
		return
	}

	etag := util.ETag(body)
	w.Header().Set("ETag", etag)
	if status == http.StatusOK && r.Method == http.MethodGet && util.MatchETag(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

func dimensionParam(r *http.Request) (model.Dimension, error) {
	raw := mux.Vars(r)["dimension"]
	d, ok := model.ParseDimension(raw)
	if !ok {
		return "", errors.UnknownDimension(raw)
	}
	return d, nil
}

func decodeBody(r *http.Request, out interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return errors.NewCatalogError(errors.ErrCodeValidation, "invalid request body", err)
	}
	return nil
}
