package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kinship-labs/kinship/internal/api/middleware"
	"github.com/kinship-labs/kinship/internal/family"
	"github.com/kinship-labs/kinship/internal/models"
	"github.com/kinship-labs/kinship/internal/store"
)

// RelationshipTypesHandler serves the relationship-type catalog and the
// calculation and validation endpoints built on it.
type RelationshipTypesHandler struct {
	registry  *family.Registry
	validator *family.Validator
	logger    *slog.Logger
}

// NewRelationshipTypesHandler creates a new relationship-types handler.
func NewRelationshipTypesHandler(registry *family.Registry, validator *family.Validator, logger *slog.Logger) *RelationshipTypesHandler {
	return &RelationshipTypesHandler{
		registry:  registry,
		validator: validator,
		logger:    logger,
	}
}

// List handles GET /v1/relationship-types.
// Supports ?include_inactive=true, ?reciprocal=true and ?generation=N filters.
func (h *RelationshipTypesHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.URL.Query().Get("reciprocal") == "true" {
		types, err := h.registry.ListReciprocal(ctx)
		if err != nil {
			h.logger.Error("failed to list reciprocal types", "error", err)
			WriteInternalError(w, "failed to list relationship types")
			return
		}
		WriteJSON(w, http.StatusOK, types)
		return
	}

	if gen := r.URL.Query().Get("generation"); gen != "" {
		offset, err := strconv.Atoi(gen)
		if err != nil {
			WriteBadRequest(w, "generation must be an integer")
			return
		}
		types, err := h.registry.ListByGeneration(ctx, offset)
		if err != nil {
			h.logger.Error("failed to list types by generation", "error", err)
			WriteInternalError(w, "failed to list relationship types")
			return
		}
		WriteJSON(w, http.StatusOK, types)
		return
	}

	activeOnly := r.URL.Query().Get("include_inactive") != "true"
	types, err := h.registry.List(ctx, activeOnly)
	if err != nil {
		h.logger.Error("failed to list relationship types", "error", err)
		WriteInternalError(w, "failed to list relationship types")
		return
	}
	WriteJSON(w, http.StatusOK, types)
}

// Get handles GET /v1/relationship-types/{name}.
func (h *RelationshipTypesHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	rt, err := h.registry.Get(r.Context(), name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "relationship type not found")
			return
		}
		h.logger.Error("failed to get relationship type", "error", err)
		WriteInternalError(w, "failed to get relationship type")
		return
	}
	WriteJSON(w, http.StatusOK, rt)
}

// Opposite handles GET /v1/relationship-types/{name}/opposite.
func (h *RelationshipTypesHandler) Opposite(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	opposite, err := h.registry.FindOpposite(r.Context(), name)
	if err != nil {
		h.logger.Error("failed to resolve opposite", "error", err)
		WriteInternalError(w, "failed to resolve opposite")
		return
	}
	if opposite == nil {
		WriteNotFound(w, "no opposite relationship defined")
		return
	}
	WriteJSON(w, http.StatusOK, opposite)
}

// CalculateResponse is the result of a composition query.
type CalculateResponse struct {
	RelationToMember  string `json:"relation_to_member"`
	RelationToInvitee string `json:"relation_to_invitee"`
	Derived           string `json:"derived"`
	Calculable        bool   `json:"calculable"`
}

// Calculate handles GET /v1/relationship-types/calculate. It exposes the
// derivation engine for inspection without writing anything.
func (h *RelationshipTypesHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	toMember := r.URL.Query().Get("relation_to_member")
	toInvitee := r.URL.Query().Get("relation_to_invitee")
	if toMember == "" || toInvitee == "" {
		WriteBadRequest(w, "relation_to_member and relation_to_invitee are required")
		return
	}

	calc := family.NewCalculator(h.registry)
	derived, err := calc.Derive(r.Context(), toMember, toInvitee)
	if err != nil {
		h.logger.Error("derivation failed", "error", err)
		WriteInternalError(w, "derivation failed")
		return
	}

	WriteJSON(w, http.StatusOK, &CalculateResponse{
		RelationToMember:  models.NormalizeRelationName(toMember),
		RelationToInvitee: models.NormalizeRelationName(toInvitee),
		Derived:           derived,
		Calculable:        derived != "",
	})
}

// ValidateRequest is the request body for a pre-flight relationship check.
type ValidateRequest struct {
	MemberID string `json:"member_id" validate:"required"`
	Relation string `json:"relation" validate:"required"`
}

// ValidateResponse reports whether a relationship may be created.
type ValidateResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// Validate handles POST /v1/relationship-types/validate.
func (h *RelationshipTypesHandler) Validate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req ValidateRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	ok, reason, err := h.validator.ValidateNewRelationship(r.Context(), userID, req.MemberID, req.Relation)
	if err != nil {
		h.logger.Error("relationship validation failed", "error", err)
		WriteInternalError(w, "validation failed")
		return
	}

	WriteJSON(w, http.StatusOK, &ValidateResponse{Valid: ok, Reason: reason})
}

// CreateTypeRequest is the request body for adding a relationship type.
type CreateTypeRequest struct {
	Name             string            `json:"name" validate:"required,max=64"`
	DisplayName      string            `json:"display_name" validate:"required,max=128"`
	Description      string            `json:"description"`
	CalculationRules map[string]string `json:"calculation_rules"`
	IsReciprocal     bool              `json:"is_reciprocal"`
	GenerationOffset int               `json:"generation_offset" validate:"min=-3,max=3"`
	SortOrder        int               `json:"sort_order"`
}

// Create handles POST /v1/relationship-types.
func (h *RelationshipTypesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTypeRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	rt := &models.RelationshipType{
		Name:             models.NormalizeRelationName(req.Name),
		DisplayName:      req.DisplayName,
		Description:      req.Description,
		CalculationRules: req.CalculationRules,
		IsReciprocal:     req.IsReciprocal,
		GenerationOffset: req.GenerationOffset,
		SortOrder:        req.SortOrder,
	}

	if err := h.registry.CreateType(r.Context(), rt); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			WriteConflict(w, "relationship type already exists")
			return
		}
		h.logger.Error("failed to create relationship type", "error", err)
		WriteBadRequest(w, err.Error())
		return
	}

	WriteJSON(w, http.StatusCreated, rt)
}

// UpdateRulesRequest is the request body for replacing calculation rules.
type UpdateRulesRequest struct {
	CalculationRules map[string]string `json:"calculation_rules" validate:"required"`
}

// UpdateRules handles PUT /v1/relationship-types/{name}/rules.
func (h *RelationshipTypesHandler) UpdateRules(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req UpdateRulesRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.registry.UpdateRules(r.Context(), name, req.CalculationRules); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "relationship type not found")
			return
		}
		h.logger.Error("failed to update rules", "error", err)
		WriteInternalError(w, "failed to update rules")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// Deactivate handles DELETE /v1/relationship-types/{name}.
func (h *RelationshipTypesHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := h.registry.Deactivate(r.Context(), name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "relationship type not found")
			return
		}
		h.logger.Error("failed to deactivate relationship type", "error", err)
		WriteInternalError(w, "failed to deactivate relationship type")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Seed handles POST /v1/relationship-types/seed. Re-running is safe; only
// missing canonical types are created.
func (h *RelationshipTypesHandler) Seed(w http.ResponseWriter, r *http.Request) {
	created, err := h.registry.Seed(r.Context(), "")
	if err != nil {
		h.logger.Error("failed to seed relationship types", "error", err)
		WriteInternalError(w, "failed to seed relationship types")
		return
	}

	names := make([]string, 0, len(created))
	for _, rt := range created {
		names = append(names, rt.Name)
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"created":       len(created),
		"created_names": names,
	})
}
