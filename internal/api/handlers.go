// ABOUTME: HTTP handlers mapping the RPC surface onto the services
// ABOUTME: Pulls identity from the request once and passes it explicitly

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/careeros/compass/internal/archive"
	"github.com/careeros/compass/internal/auth"
	"github.com/careeros/compass/internal/catalog"
	"github.com/careeros/compass/internal/ledger"
	"github.com/careeros/compass/internal/memory"
)

// Handlers holds the services behind the RPC surface.
type Handlers struct {
	Ledger  *ledger.Service
	Memory  *memory.Service
	Archive *archive.Service
	Catalog *catalog.Service
	Logger  *slog.Logger
}

// NewHandlers wires the services into an HTTP handler set.
func NewHandlers(l *ledger.Service, m *memory.Service, a *archive.Service, c *catalog.Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		Ledger:  l,
		Memory:  m,
		Archive: a,
		Catalog: c,
		Logger:  logger.With("component", "api"),
	}
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type saveMessageRequest struct {
	Role               string   `json:"role"`
	Content            string   `json:"content"`
	BookmarkReferences []string `json:"bookmarkReferences,omitempty"`
	ProjectID          string   `json:"projectId,omitempty"`
}

// SaveMessage appends a chat message for the caller.
func (h *Handlers) SaveMessage(w http.ResponseWriter, r *http.Request) {
	var req saveMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !ledger.ValidRole(req.Role) {
		writeError(w, http.StatusBadRequest, "role must be user or assistant")
		return
	}

	id, err := h.Ledger.SaveMessage(r.Context(), auth.FromContext(r.Context()), ledger.SaveRequest{
		Role:               req.Role,
		Content:            req.Content,
		BookmarkReferences: req.BookmarkReferences,
		ProjectID:          req.ProjectID,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// ListRecentMessages returns the caller's messages newest-first.
func (h *Handlers) ListRecentMessages(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 0)

	messages, err := h.Ledger.ListRecent(r.Context(), auth.FromContext(r.Context()), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

type clearHistoryRequest struct {
	MaxAgeDays int `json:"maxAgeDays,omitempty"`
}

type clearHistoryResponse struct {
	DeletedCount int `json:"deletedCount"`
}

// ClearHistory bulk-deletes the caller's messages in bounded batches.
func (h *Handlers) ClearHistory(w http.ResponseWriter, r *http.Request) {
	var req clearHistoryRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	deleted, err := h.Ledger.ClearHistory(r.Context(), auth.FromContext(r.Context()), req.MaxAgeDays)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clearHistoryResponse{DeletedCount: deleted})
}

type saveMemoryRequest struct {
	Key        string `json:"key"`
	Value      string `json:"value"`
	MemoryType string `json:"memoryType"`
}

// SaveMemory upserts a memory fact by key.
func (h *Handlers) SaveMemory(w http.ResponseWriter, r *http.Request) {
	var req saveMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}
	if !memory.ValidType(req.MemoryType) {
		writeError(w, http.StatusBadRequest, "memoryType must be preference or context")
		return
	}

	id, err := h.Memory.Save(r.Context(), auth.FromContext(r.Context()), req.Key, req.Value, req.MemoryType)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// GetUserMemories lists the caller's memory facts, clamped to at most 100.
func (h *Handlers) GetUserMemories(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", memory.DefaultListLimit)

	facts, err := h.Memory.List(r.Context(), auth.FromContext(r.Context()), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, facts)
}

// DeleteMemory removes one of the caller's facts by id.
func (h *Handlers) DeleteMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Memory.Delete(r.Context(), auth.FromContext(r.Context()), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type saveConversationRequest struct {
	ConversationID   string          `json:"conversationId"`
	Title            string          `json:"title"`
	FullConversation string          `json:"fullConversation"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
}

// SavePlanningConversation stores a write-once planning conversation.
func (h *Handlers) SavePlanningConversation(w http.ResponseWriter, r *http.Request) {
	var req saveConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ConversationID == "" {
		writeError(w, http.StatusBadRequest, "conversationId is required")
		return
	}

	id, err := h.Archive.Save(r.Context(), auth.FromContext(r.Context()), archive.SaveRequest{
		ConversationID:   req.ConversationID,
		Title:            req.Title,
		FullConversation: req.FullConversation,
		Metadata:         req.Metadata,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// GetPlanningConversationHistory lists the caller's conversations newest-first.
func (h *Handlers) GetPlanningConversationHistory(w http.ResponseWriter, r *http.Request) {
	convs, err := h.Archive.History(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

// GetPlanningConversationByID resolves a conversation by its external id.
// The response body is JSON null for missing, foreign, and anonymous
// lookups alike; the status is 200 in all of those cases.
func (h *Handlers) GetPlanningConversationByID(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	conv, err := h.Archive.GetByConversationID(r.Context(), auth.FromContext(r.Context()), conversationID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// GetResources lists catalog resources for a role, optionally narrowed
// by type. No authorization.
func (h *Handlers) GetResources(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	if role == "" {
		writeError(w, http.StatusBadRequest, "role is required")
		return
	}

	resources, err := h.Catalog.Resources(r.Context(), role, r.URL.Query().Get("type"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resources)
}

type createResourceRequest struct {
	Role         string          `json:"role"`
	Type         string          `json:"type"`
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	Content      string          `json:"content"`
	ExternalLink string          `json:"externalLink,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
}

// CreateResource inserts a catalog resource and returns the full record.
// TODO: restrict creation to admin tokens once the identity provider
// exposes roles.
func (h *Handlers) CreateResource(w http.ResponseWriter, r *http.Request) {
	var req createResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Role == "" {
		writeError(w, http.StatusBadRequest, "role is required")
		return
	}
	if !catalog.ValidType(req.Type) {
		writeError(w, http.StatusBadRequest, "invalid resource type")
		return
	}

	res, err := h.Catalog.Create(r.Context(), catalog.CreateRequest{
		Role:         req.Role,
		Type:         req.Type,
		Title:        req.Title,
		Description:  req.Description,
		Content:      req.Content,
		ExternalLink: req.ExternalLink,
		Metadata:     req.Metadata,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// writeServiceError maps service errors onto HTTP statuses.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, memory.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		h.Logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
