package handler

import (
	"errors"
	"net/http"

	"github.com/aurovest/keydesk/internal/api/response"
	"github.com/aurovest/keydesk/internal/keys"
	"github.com/aurovest/keydesk/internal/platform"
)

// writeWorkflowError maps distribution workflow errors onto the response
// contract. Guard violations are 422s with the guard's own code; platform
// failures on mutations surface as gateway errors.
func writeWorkflowError(w http.ResponseWriter, err error) {
	if ve, ok := keys.AsValidation(err); ok {
		response.Error(w, http.StatusUnprocessableEntity, ve.Code, ve.Message, nil)
		return
	}

	switch {
	case errors.Is(err, keys.ErrAlreadyDistributed):
		response.Error(w, http.StatusConflict, "ALREADY_DISTRIBUTED",
			"Key already has a distribution target", nil)
	case errors.Is(err, keys.ErrConfirmationRequired):
		response.Error(w, http.StatusBadRequest, "CONFIRMATION_REQUIRED",
			"Assigning to a registered account requires confirmation", nil)
	case errors.Is(err, keys.ErrKeyNotFound):
		response.Error(w, http.StatusNotFound, "KEY_NOT_FOUND",
			"Key not found in the selected plan", nil)
	case errors.Is(err, keys.ErrInsufficientKeys):
		response.Error(w, http.StatusUnprocessableEntity, "INSUFFICIENT_KEYS",
			"Not enough available keys for the selected recipients", nil)
	case errors.Is(err, platform.ErrTimeout):
		response.Error(w, http.StatusGatewayTimeout, "PLATFORM_TIMEOUT",
			"The platform took too long to respond", nil)
	case errors.Is(err, platform.ErrUnreachable):
		response.Error(w, http.StatusBadGateway, "PLATFORM_UNAVAILABLE",
			"The platform is not reachable", nil)
	case errors.Is(err, platform.ErrRejected):
		response.Error(w, http.StatusBadGateway, "PLATFORM_REJECTED", err.Error(), nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
