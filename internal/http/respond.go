package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dimamanhura/rozetka/internal/service"
	"github.com/dimamanhura/rozetka/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// base carries what every handler shares.
type base struct {
	log     *zap.Logger
	timeout time.Duration
}

func (b *base) context(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), b.timeout)
}

func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindValidation, service.KindEmptyCart, service.KindMissingAddress, service.KindMissingPaymentMethod:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindUnauthenticated:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindOutOfStock, service.KindAlreadyPaid, service.KindNotPaid, service.KindConflict:
		return http.StatusConflict
	case service.KindPaymentVerificationFailed:
		return http.StatusPaymentRequired
	case service.KindProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

// respondResult writes the uniform {success, message} body. Unexpected
// errors are logged here and rendered as a generic failure.
func (b *base) respondResult(w http.ResponseWriter, r *http.Request, status int, err error, message string, data any) {
	res := service.ResultOf(err, message)
	if err != nil {
		kind := service.KindOf(err)
		status = statusFor(kind)
		if status >= http.StatusInternalServerError {
			logger.WithContext(r.Context(), b.log).Error("request failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("request_id", requestIDFromContext(r.Context())),
				zap.Error(err),
			)
		}
	} else if data != nil {
		res = res.WithData(data)
	}
	respondJSON(w, status, res)
}

func (b *base) respondError(w http.ResponseWriter, r *http.Request, err error) {
	b.respondResult(w, r, 0, err, "", nil)
}

func (b *base) badRequest(w http.ResponseWriter, field, msg string) {
	respondJSON(w, http.StatusBadRequest, service.ResultOf(service.Validation(map[string]string{field: msg}), ""))
}

func uuidParam(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
