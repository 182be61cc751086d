// Package handlers implements the HTTP handlers for the kinship API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	apierrors "github.com/kinship-labs/kinship/internal/api/errors"
)

// validate holds the shared request validator. Struct tags on request types
// drive field-level validation.
var validate = validator.New()

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	apierrors.WriteJSON(w, status, data)
}

// WriteError writes an APIError response.
func WriteError(w http.ResponseWriter, err *apierrors.APIError) {
	apierrors.WriteError(w, err)
}

// WriteBadRequest writes a 400 validation error response.
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, apierrors.NewValidationError(message))
}

// WriteNotFound writes a 404 response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, apierrors.NewNotFoundError(message))
}

// WriteConflict writes a 409 response.
func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, apierrors.NewConflictError(message))
}

// WriteInvalidState writes a 409 response for lifecycle violations.
func WriteInvalidState(w http.ResponseWriter, message string) {
	WriteError(w, apierrors.NewInvalidStateError(message))
}

// WriteUnauthorized writes a 401 response.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, apierrors.NewUnauthorizedError(message))
}

// WriteForbidden writes a 403 response.
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, apierrors.NewForbiddenError(message))
}

// WriteInternalError writes a 500 response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, apierrors.NewInternalError(message))
}

// DecodeAndValidate decodes a JSON request body into dst and runs struct
// validation. On failure it writes the error response and returns false.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteBadRequest(w, "invalid request body")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			var details apierrors.ValidationErrors
			for _, fe := range fieldErrs {
				details.Add(fe.Field(), "failed validation: "+fe.Tag())
			}
			WriteError(w, details.ToAPIError())
			return false
		}
		WriteBadRequest(w, "validation failed")
		return false
	}

	return true
}
