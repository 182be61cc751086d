package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kinship-labs/kinship/internal/api/middleware"
	"github.com/kinship-labs/kinship/internal/family"
	"github.com/kinship-labs/kinship/internal/models"
	"github.com/kinship-labs/kinship/internal/store"
)

// EdgesHandler handles user-to-member edge HTTP requests.
type EdgesHandler struct {
	store     store.Store
	validator *family.Validator
	logger    *slog.Logger
}

// NewEdgesHandler creates a new edges handler.
func NewEdgesHandler(st store.Store, validator *family.Validator, logger *slog.Logger) *EdgesHandler {
	return &EdgesHandler{store: st, validator: validator, logger: logger}
}

// CreateEdgeRequest is the request body for creating an edge.
type CreateEdgeRequest struct {
	MemberID    string `json:"member_id" validate:"required"`
	Relation    string `json:"relation" validate:"required"`
	IsShareable bool   `json:"is_shareable"`
	IsManager   bool   `json:"is_manager"`
	IsPrimary   bool   `json:"is_primary"`
	Notes       string `json:"notes" validate:"max=1000"`
}

// Create handles POST /v1/edges. The relation must pass compatibility
// validation against any existing edge to the same member.
func (h *EdgesHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreateEdgeRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	ok, reason, err := h.validator.ValidateNewRelationship(r.Context(), userID, req.MemberID, req.Relation)
	if err != nil {
		h.logger.Error("relationship validation failed", "error", err)
		WriteInternalError(w, "failed to create relationship")
		return
	}
	if !ok {
		WriteConflict(w, reason)
		return
	}

	edge := &models.Edge{
		UserID:          userID,
		MemberID:        req.MemberID,
		Relation:        models.NormalizeRelationName(req.Relation),
		IsShareable:     req.IsShareable,
		IsManager:       req.IsManager,
		IsPrimary:       req.IsPrimary,
		IsActive:        true,
		IsVisible:       true,
		CreatedByUserID: userID,
		Notes:           req.Notes,
	}

	if err := h.store.Edges().Create(r.Context(), edge); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			WriteConflict(w, "an active relationship to this member already exists")
			return
		}
		h.logger.Error("failed to create edge", "error", err)
		WriteInternalError(w, "failed to create relationship")
		return
	}

	WriteJSON(w, http.StatusCreated, edge)
}

// List handles GET /v1/edges. Supports ?shareable=true, ?manager=true,
// ?visible=true filters over the caller's active edges.
func (h *EdgesHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	q := r.URL.Query()
	filter := store.EdgeFilter{
		ActiveOnly:    true,
		VisibleOnly:   q.Get("visible") == "true",
		ShareableOnly: q.Get("shareable") == "true",
		ManagerOnly:   q.Get("manager") == "true",
	}

	edges, err := h.store.Edges().ListByUser(r.Context(), userID, filter)
	if err != nil {
		h.logger.Error("failed to list edges", "error", err)
		WriteInternalError(w, "failed to list relationships")
		return
	}

	WriteJSON(w, http.StatusOK, edges)
}

// UpdateEdgeRequest is the request body for updating an edge.
type UpdateEdgeRequest struct {
	IsShareable *bool   `json:"is_shareable"`
	IsPrimary   *bool   `json:"is_primary"`
	Notes       *string `json:"notes"`
}

// Update handles PATCH /v1/edges/{edgeID}. Only the edge owner may update,
// and derived edges stay non-shareable.
func (h *EdgesHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	edge, ok := h.loadOwnEdge(w, r, userID)
	if !ok {
		return
	}

	var req UpdateEdgeRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	if req.IsShareable != nil {
		if edge.IsDerived() && *req.IsShareable {
			WriteInvalidState(w, "derived relationships cannot be made shareable")
			return
		}
		edge.IsShareable = *req.IsShareable
	}
	if req.IsPrimary != nil {
		edge.IsPrimary = *req.IsPrimary
	}
	if req.Notes != nil {
		edge.Notes = *req.Notes
	}

	if err := h.store.Edges().Update(r.Context(), edge); err != nil {
		h.logger.Error("failed to update edge", "error", err)
		WriteInternalError(w, "failed to update relationship")
		return
	}

	WriteJSON(w, http.StatusOK, edge)
}

// SetVisibility handles PUT /v1/edges/{edgeID}/visibility.
func (h *EdgesHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	edge, ok := h.loadOwnEdge(w, r, userID)
	if !ok {
		return
	}

	var req struct {
		Visible bool `json:"visible"`
	}
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.store.Edges().SetVisibility(r.Context(), edge.ID, req.Visible); err != nil {
		h.logger.Error("failed to set edge visibility", "error", err)
		WriteInternalError(w, "failed to update relationship")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Deactivate handles DELETE /v1/edges/{edgeID}. Deactivation is the
// permanent removal path; rows are purged later by cleanup.
func (h *EdgesHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	edge, ok := h.loadOwnEdge(w, r, userID)
	if !ok {
		return
	}

	if err := h.store.Edges().Deactivate(r.Context(), edge.ID); err != nil {
		h.logger.Error("failed to deactivate edge", "error", err)
		WriteInternalError(w, "failed to remove relationship")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// loadOwnEdge loads the edge in the URL and verifies ownership, writing the
// response on failure.
func (h *EdgesHandler) loadOwnEdge(w http.ResponseWriter, r *http.Request, userID string) (*models.Edge, bool) {
	edgeID := chi.URLParam(r, "edgeID")

	edge, err := h.store.Edges().Get(r.Context(), edgeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "relationship not found")
			return nil, false
		}
		h.logger.Error("failed to load edge", "error", err)
		WriteInternalError(w, "failed to load relationship")
		return nil, false
	}
	if edge.UserID != userID {
		WriteNotFound(w, "relationship not found")
		return nil, false
	}
	return edge, true
}

// NetworkCounts summarizes a user's family network.
type NetworkCounts struct {
	Total     int `json:"total"`
	Managed   int `json:"managed"`
	Shareable int `json:"shareable"`
	Derived   int `json:"derived"`
}

// NetworkResponse is the response body for the network summary.
type NetworkResponse struct {
	Members []*memberView `json:"members"`
	Counts  NetworkCounts `json:"counts"`
}

// Network handles GET /v1/network. Returns every member the caller has an
// active edge to, with aggregate counts.
func (h *EdgesHandler) Network(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	edges, err := h.store.Edges().ListByUser(r.Context(), userID, store.EdgeFilter{ActiveOnly: true})
	if err != nil {
		h.logger.Error("failed to list edges", "error", err)
		WriteInternalError(w, "failed to load family network")
		return
	}

	resp := NetworkResponse{Members: make([]*memberView, 0, len(edges))}
	for _, edge := range edges {
		member, err := h.store.Members().Get(r.Context(), edge.MemberID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			h.logger.Error("failed to load member", "member_id", edge.MemberID, "error", err)
			WriteInternalError(w, "failed to load family network")
			return
		}
		resp.Members = append(resp.Members, newMemberView(member, edge))

		resp.Counts.Total++
		if edge.IsManager {
			resp.Counts.Managed++
		}
		if edge.IsShareable {
			resp.Counts.Shareable++
		}
		if edge.IsDerived() {
			resp.Counts.Derived++
		}
	}

	WriteJSON(w, http.StatusOK, resp)
}
