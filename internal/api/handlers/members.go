package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kinship-labs/kinship/internal/api/middleware"
	"github.com/kinship-labs/kinship/internal/models"
	"github.com/kinship-labs/kinship/internal/store"
)

// MembersHandler handles member HTTP requests.
type MembersHandler struct {
	store  store.Store
	logger *slog.Logger
}

// NewMembersHandler creates a new members handler.
func NewMembersHandler(st store.Store, logger *slog.Logger) *MembersHandler {
	return &MembersHandler{store: st, logger: logger}
}

// MemberRequest is the request body for creating or updating a member.
type MemberRequest struct {
	FirstName string   `json:"first_name" validate:"required,max=100"`
	LastName  string   `json:"last_name" validate:"max=100"`
	BirthDate string   `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Interests []string `json:"interests"`
	Skills    []string `json:"skills"`
	AvatarURL string   `json:"avatar_url" validate:"omitempty,url"`
	// Relation is the creator's relationship to the member, required on
	// create. The creating edge is a manager edge.
	Relation    string `json:"relation"`
	IsShareable bool   `json:"is_shareable"`
}

// memberView augments a member with the requesting user's edge and the
// derived age.
type memberView struct {
	*models.Member
	Age  int          `json:"age,omitempty"`
	Edge *models.Edge `json:"edge,omitempty"`
}

func newMemberView(m *models.Member, e *models.Edge) *memberView {
	v := &memberView{Member: m, Edge: e}
	if age := m.Age(time.Now()); age >= 0 {
		v.Age = age
	}
	return v
}

// Create handles POST /v1/members. It creates the member and the creator's
// manager edge in one transaction.
func (h *MembersHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req MemberRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}
	if req.Relation == "" {
		WriteBadRequest(w, "relation is required")
		return
	}

	relation := models.NormalizeRelationName(req.Relation)
	if _, err := h.store.RelationshipTypes().GetByName(r.Context(), relation); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteBadRequest(w, "unknown relationship type: "+relation)
			return
		}
		h.logger.Error("failed to resolve relationship type", "error", err)
		WriteInternalError(w, "failed to create member")
		return
	}

	member := &models.Member{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Interests: req.Interests,
		Skills:    req.Skills,
		AvatarURL: req.AvatarURL,
		IsActive:  true,
	}
	if req.BirthDate != "" {
		bd, err := time.Parse("2006-01-02", req.BirthDate)
		if err != nil {
			WriteBadRequest(w, "birth_date must be YYYY-MM-DD")
			return
		}
		member.BirthDate = &bd
	}

	var edge *models.Edge
	err := h.store.WithTx(r.Context(), func(tx store.Store) error {
		if err := tx.Members().Create(r.Context(), member); err != nil {
			return err
		}
		edge = &models.Edge{
			UserID:          userID,
			MemberID:        member.ID,
			Relation:        relation,
			IsShareable:     req.IsShareable,
			IsManager:       true,
			IsActive:        true,
			IsVisible:       true,
			CreatedByUserID: userID,
		}
		return tx.Edges().Create(r.Context(), edge)
	})
	if err != nil {
		h.logger.Error("failed to create member", "error", err)
		WriteInternalError(w, "failed to create member")
		return
	}

	WriteJSON(w, http.StatusCreated, newMemberView(member, edge))
}

// Get handles GET /v1/members/{memberID}. Requires any active edge to the
// member.
func (h *MembersHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	memberID := chi.URLParam(r, "memberID")

	edge, err := h.store.Edges().GetActiveByPair(r.Context(), userID, memberID)
	if err != nil {
		h.logger.Error("failed to check edge", "error", err)
		WriteInternalError(w, "failed to load member")
		return
	}
	if edge == nil {
		WriteNotFound(w, "member not found")
		return
	}

	member, err := h.store.Members().Get(r.Context(), memberID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "member not found")
			return
		}
		h.logger.Error("failed to load member", "error", err)
		WriteInternalError(w, "failed to load member")
		return
	}

	WriteJSON(w, http.StatusOK, newMemberView(member, edge))
}

// Update handles PATCH /v1/members/{memberID}. Requires a manager edge.
func (h *MembersHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	memberID := chi.URLParam(r, "memberID")

	edge, err := h.requireManagerEdge(w, r, userID, memberID)
	if err != nil || edge == nil {
		return
	}

	var req MemberRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	member, err := h.store.Members().Get(r.Context(), memberID)
	if err != nil {
		WriteNotFound(w, "member not found")
		return
	}

	member.FirstName = req.FirstName
	member.LastName = req.LastName
	member.Interests = req.Interests
	member.Skills = req.Skills
	member.AvatarURL = req.AvatarURL
	if req.BirthDate != "" {
		bd, err := time.Parse("2006-01-02", req.BirthDate)
		if err != nil {
			WriteBadRequest(w, "birth_date must be YYYY-MM-DD")
			return
		}
		member.BirthDate = &bd
	}

	if err := h.store.Members().Update(r.Context(), member); err != nil {
		h.logger.Error("failed to update member", "error", err)
		WriteInternalError(w, "failed to update member")
		return
	}

	WriteJSON(w, http.StatusOK, newMemberView(member, edge))
}

// Deactivate handles DELETE /v1/members/{memberID}. Requires a manager edge.
func (h *MembersHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	memberID := chi.URLParam(r, "memberID")

	edge, err := h.requireManagerEdge(w, r, userID, memberID)
	if err != nil || edge == nil {
		return
	}

	if err := h.store.Members().Deactivate(r.Context(), memberID); err != nil {
		h.logger.Error("failed to deactivate member", "error", err)
		WriteInternalError(w, "failed to deactivate member")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// requireManagerEdge loads the caller's edge to the member and writes the
// error response when it is absent or lacks management rights. A nil edge
// with nil error means the response has been written.
func (h *MembersHandler) requireManagerEdge(w http.ResponseWriter, r *http.Request, userID, memberID string) (*models.Edge, error) {
	edge, err := h.store.Edges().GetActiveByPair(r.Context(), userID, memberID)
	if err != nil {
		h.logger.Error("failed to check edge", "error", err)
		WriteInternalError(w, "failed to load member")
		return nil, err
	}
	if edge == nil {
		WriteNotFound(w, "member not found")
		return nil, nil
	}
	if !edge.CanEdit() {
		WriteForbidden(w, "management rights required")
		return nil, nil
	}
	return edge, nil
}
