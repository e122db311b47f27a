package adaptor

import (
	"errors"
	"net/http"

	"stay-escrow/internal/usecase"
	"stay-escrow/pkg/utils"

	"go.uber.org/zap"
)

// handleServiceError maps service error kinds to HTTP responses. Internal
// detail stays in the logs; the client sees the kind and the wrapped
// message.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, usecase.ErrValidation):
		utils.ResponseBadRequest(w, err.Error(), nil)
	case errors.Is(err, usecase.ErrNotFound):
		utils.ResponseNotFound(w, err.Error())
	case errors.Is(err, usecase.ErrConflict):
		utils.ResponseJSON(w, http.StatusConflict, false, err.Error(), nil, nil)
	case errors.Is(err, usecase.ErrConfiguration):
		utils.ResponseJSON(w, http.StatusUnprocessableEntity, false, err.Error(), nil, nil)
	case errors.Is(err, usecase.ErrProvider):
		utils.ResponseJSON(w, http.StatusBadGateway, false, "Payment provider error", nil, nil)
	default:
		log.Error("Unhandled service error", zap.Error(err))
		utils.ResponseInternalError(w, "Internal server error")
	}
}
