package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/eidos-ontology/eidos/internal/domain"
	"github.com/eidos-ontology/eidos/internal/pkg/logger"
)

type ErrorCode string

const (
	CodeNotFound               ErrorCode = "NOT_FOUND"
	CodeUnauthorized           ErrorCode = "UNAUTHORIZED"
	CodeInvalidStateTransition ErrorCode = "INVALID_STATE_TRANSITION"
	CodeValidationError        ErrorCode = "VALIDATION_ERROR"
	CodeConcurrentModification ErrorCode = "CONCURRENT_MODIFICATION"
	CodeCollaboratorExists     ErrorCode = "COLLABORATOR_EXISTS"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func WriteError(w http.ResponseWriter, err error, logger *logger.Logger) {
	status, response := mapError(err)

	if isDomainError(err) {
		logger.Warn("domain error",
			"error", err.Error(),
			"code", response.Error.Code,
		)
	} else {
		logger.Error("unexpected error",
			"error", err.Error(),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func mapError(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, domain.ErrOntologyNotFound),
		errors.Is(err, domain.ErrMergeRequestNotFound),
		errors.Is(err, domain.ErrChangeNotFound),
		errors.Is(err, domain.ErrCollaboratorNotFound):
		return http.StatusNotFound, errorResponse(CodeNotFound, err)

	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden, errorResponse(CodeUnauthorized, err)

	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, errorResponse(CodeInvalidStateTransition, err)

	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, errorResponse(CodeValidationError, err)

	// optimistic write lost the race: the caller should re-fetch and retry
	case errors.Is(err, domain.ErrVersionConflict):
		return http.StatusConflict, errorResponse(CodeConcurrentModification, err)

	case errors.Is(err, domain.ErrCollaboratorExists):
		return http.StatusConflict, errorResponse(CodeCollaboratorExists, err)

	default:
		return http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INTERNAL_ERROR",
				Message: "internal server error",
			},
		}
	}
}

func errorResponse(code ErrorCode, err error) ErrorResponse {
	return ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: err.Error(),
		},
	}
}

func isDomainError(err error) bool {
	return errors.Is(err, domain.ErrOntologyNotFound) ||
		errors.Is(err, domain.ErrMergeRequestNotFound) ||
		errors.Is(err, domain.ErrChangeNotFound) ||
		errors.Is(err, domain.ErrCollaboratorNotFound) ||
		errors.Is(err, domain.ErrCollaboratorExists) ||
		errors.Is(err, domain.ErrUnauthorized) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrVersionConflict) ||
		errors.Is(err, domain.ErrInvalidTransition)
}
