package httpx

import (
	"net/http"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RespondError maps domain error kinds to HTTP responses using RFC7807.
// Unavailable and unknown errors are reported without internal detail.
func RespondError(w http.ResponseWriter, err error) {
	switch shared.KindOf(err) {
	case shared.KindValidation:
		JSON(w, http.StatusBadRequest, ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Detail: shared.UserSafeMessage(err),
			Field:  shared.FieldOf(err),
		})
	case shared.KindNotFound:
		Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case shared.KindConflict:
		Problem(w, http.StatusConflict, "Conflict", shared.UserSafeMessage(err))
	default:
		Problem(w, http.StatusBadGateway, "Upstream Error", "")
	}
}
