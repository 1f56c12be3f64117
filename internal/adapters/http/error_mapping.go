package httpadapter

import (
	"net/http"

	"github.com/mkravets/fin-advisor-agent/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrValidation),
		domain.IsKind(err, domain.ErrInvalidProjectionInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrStoreUnavailable),
		domain.IsKind(err, domain.ErrToolUnavailable),
		domain.IsKind(err, domain.ErrTimeout):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrPlanningFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
