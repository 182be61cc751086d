package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kinship-labs/kinship/internal/api/middleware"
	"github.com/kinship-labs/kinship/internal/family"
)

// InvitationsHandler handles invitation HTTP requests.
type InvitationsHandler struct {
	service *family.InvitationService
	logger  *slog.Logger
}

// NewInvitationsHandler creates a new invitations handler.
func NewInvitationsHandler(service *family.InvitationService, logger *slog.Logger) *InvitationsHandler {
	return &InvitationsHandler{service: service, logger: logger}
}

// CreateInvitationRequest is the request body for sending an invitation.
type CreateInvitationRequest struct {
	InviteeEmail         string   `json:"invitee_email" validate:"required,email"`
	Message              string   `json:"message" validate:"max=2000"`
	IntendedRelationship string   `json:"intended_relationship" validate:"max=100"`
	RelationshipContext  string   `json:"relationship_context" validate:"max=500"`
	ShareAllMembers      bool     `json:"share_all_members"`
	MemberIDs            []string `json:"member_ids"`
	ExpiresInDays        int      `json:"expires_in_days" validate:"min=0,max=30"`
}

// Create handles POST /v1/invitations.
func (h *InvitationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreateInvitationRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	inv, err := h.service.Create(r.Context(), userID, family.CreateInvitationInput{
		InviteeEmail:         req.InviteeEmail,
		Message:              req.Message,
		IntendedRelationship: req.IntendedRelationship,
		RelationshipContext:  req.RelationshipContext,
		ShareAllMembers:      req.ShareAllMembers,
		MemberIDs:            req.MemberIDs,
		ExpiresInDays:        req.ExpiresInDays,
	})
	if err != nil {
		switch {
		case errors.Is(err, family.ErrShareScope),
			errors.Is(err, family.ErrExpiryOutOfRange),
			errors.Is(err, family.ErrUnknownRelationship),
			errors.Is(err, family.ErrSelfInvitation):
			WriteBadRequest(w, err.Error())
		case errors.Is(err, family.ErrDuplicateInvitation),
			errors.Is(err, family.ErrAlreadyConnected):
			WriteConflict(w, err.Error())
		default:
			h.logger.Error("failed to create invitation", "error", err)
			WriteInternalError(w, "failed to create invitation")
		}
		return
	}

	WriteJSON(w, http.StatusCreated, inv)
}

// ListSent handles GET /v1/invitations/sent.
func (h *InvitationsHandler) ListSent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	invs, err := h.service.ListSent(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list sent invitations", "error", err)
		WriteInternalError(w, "failed to list invitations")
		return
	}

	WriteJSON(w, http.StatusOK, invs)
}

// ListReceived handles GET /v1/invitations/received. Invitations are
// addressed by email, so the lookup uses the caller's account email.
func (h *InvitationsHandler) ListReceived(w http.ResponseWriter, r *http.Request) {
	email := middleware.GetUserEmail(r.Context())

	invs, err := h.service.ListReceived(r.Context(), email)
	if err != nil {
		h.logger.Error("failed to list received invitations", "error", err)
		WriteInternalError(w, "failed to list invitations")
		return
	}

	WriteJSON(w, http.StatusOK, invs)
}

// Stats handles GET /v1/invitations/stats.
func (h *InvitationsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	stats, err := h.service.StatsFor(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load invitation stats", "error", err)
		WriteInternalError(w, "failed to load invitation stats")
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}

// Preview handles GET /invitations/{token}/preview. The route is public:
// the invitee has not registered yet when they follow the link.
func (h *InvitationsHandler) Preview(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	preview, err := h.service.Preview(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, family.ErrInvitationNotFound):
			WriteNotFound(w, "invitation not found")
		case errors.Is(err, family.ErrInvalidState):
			WriteInvalidState(w, "invitation is no longer open")
		default:
			h.logger.Error("failed to preview invitation", "error", err)
			WriteInternalError(w, "failed to load invitation")
		}
		return
	}

	WriteJSON(w, http.StatusOK, preview)
}

// AcceptResponse is the response body for accepting an invitation.
type AcceptResponse struct {
	Invitation   any `json:"invitation"`
	CreatedEdges any `json:"created_edges"`
}

// Accept handles POST /v1/invitations/{token}/accept. Requires an
// authenticated account whose email matches the invitation.
func (h *InvitationsHandler) Accept(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	token := chi.URLParam(r, "token")

	inv, edges, err := h.service.Accept(r.Context(), token, userID)
	if err != nil {
		switch {
		case errors.Is(err, family.ErrInvitationNotFound):
			WriteNotFound(w, "invitation not found")
		case errors.Is(err, family.ErrInvalidState):
			WriteInvalidState(w, "invitation is no longer open")
		case errors.Is(err, family.ErrEmailMismatch):
			WriteForbidden(w, "invitation was sent to a different email address")
		default:
			h.logger.Error("failed to accept invitation", "error", err)
			WriteInternalError(w, "failed to accept invitation")
		}
		return
	}

	WriteJSON(w, http.StatusOK, AcceptResponse{Invitation: inv, CreatedEdges: edges})
}

// DeclineRequest is the optional request body for declining an invitation.
type DeclineRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// Decline handles POST /invitations/{token}/decline. Public like Preview;
// possession of the token is the credential.
func (h *InvitationsHandler) Decline(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req DeclineRequest
	if r.ContentLength > 0 {
		if !DecodeAndValidate(w, r, &req) {
			return
		}
	}

	inv, err := h.service.Decline(r.Context(), token, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, family.ErrInvitationNotFound):
			WriteNotFound(w, "invitation not found")
		case errors.Is(err, family.ErrInvalidState):
			WriteInvalidState(w, "invitation is no longer open")
		default:
			h.logger.Error("failed to decline invitation", "error", err)
			WriteInternalError(w, "failed to decline invitation")
		}
		return
	}

	WriteJSON(w, http.StatusOK, inv)
}

// Cancel handles DELETE /v1/invitations/{invitationID}. Only the inviter
// may cancel, and only while the invitation is pending.
func (h *InvitationsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	invitationID := chi.URLParam(r, "invitationID")

	if err := h.service.Cancel(r.Context(), invitationID, userID); err != nil {
		switch {
		case errors.Is(err, family.ErrInvitationNotFound):
			WriteNotFound(w, "invitation not found")
		case errors.Is(err, family.ErrNotInviter):
			WriteForbidden(w, "only the inviter may cancel an invitation")
		case errors.Is(err, family.ErrInvalidState):
			WriteInvalidState(w, "invitation is no longer open")
		default:
			h.logger.Error("failed to cancel invitation", "error", err)
			WriteInternalError(w, "failed to cancel invitation")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ExpireSweep handles POST /v1/invitations/expire-sweep. The background
// sweeper runs this on an interval; the endpoint forces a pass.
func (h *InvitationsHandler) ExpireSweep(w http.ResponseWriter, r *http.Request) {
	expired, err := h.service.ExpireOld(r.Context())
	if err != nil {
		h.logger.Error("failed to expire invitations", "error", err)
		WriteInternalError(w, "failed to expire invitations")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]int{"expired": expired})
}
