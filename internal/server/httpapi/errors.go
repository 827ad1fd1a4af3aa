package httpapi

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/nova-sdk/novakeeper/internal/common"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorBody(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

// statusFor maps err onto the status and wire code clients decode.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrInvalidName):
		return http.StatusBadRequest, common.CodeInvalidFormat
	case errors.Is(err, common.ErrNameTaken):
		return http.StatusBadRequest, common.CodeNameTaken
	case errors.Is(err, common.ErrAlreadyLinked):
		return http.StatusConflict, common.CodeAlreadyLinked
	case errors.Is(err, common.ErrBlacklisted):
		return http.StatusForbidden, common.CodeBlacklisted
	}

	switch common.Classify(err) {
	case common.ClassUnauthorized:
		return http.StatusUnauthorized, common.CodeUnauthorized
	case common.ClassForbidden:
		return http.StatusForbidden, common.CodeForbidden
	case common.ClassNotFound:
		return http.StatusNotFound, common.CodeNotFound
	case common.ClassConflict:
		return http.StatusConflict, "conflict"
	case common.ClassInvalid:
		return http.StatusBadRequest, "invalid"
	case common.ClassFunds:
		return http.StatusPaymentRequired, common.CodeInsufficientFunds
	case common.ClassRateLimited:
		return http.StatusTooManyRequests, common.CodeRateLimited
	case common.ClassUnavailable:
		return http.StatusServiceUnavailable, common.CodeUnavailable
	default:
		return http.StatusInternalServerError, common.CodeInternal
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)

	msg := err.Error()
	if status >= 500 {
		s.logger.Error(r.Context(), "request failed", "request_id", requestIDFrom(r.Context()), "error", err)
		msg = http.StatusText(status)
	}

	var rl *common.RateLimitedError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		secs := int(math.Ceil(rl.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	writeErrorBody(w, status, code, msg)
}
