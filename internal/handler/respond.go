package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/halchash/storefront/internal/domain/coupon"
	"github.com/halchash/storefront/internal/domain/order"
	"github.com/halchash/storefront/internal/domain/pricing"
)

// errorResponse is the uniform JSON error body.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Code: status, Message: msg})
}

// writeError maps a domain error to an HTTP status. Unrecognized errors are
// logged and surface as 500 without leaking internals.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := mapError(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		msg = "internal server error"
	}
	writeErrorMessage(w, status, msg)
}

func mapError(err error) (int, string) {
	var (
		validationErr *order.ValidationError
		transitionErr *order.InvalidTransitionError
		stockErr      *order.InsufficientStockError
		qtyErr        *pricing.InvalidQuantityError
		unknownErr    *pricing.UnknownProductError
		inactiveErr   *pricing.InactiveProductError
		areaErr       *pricing.UnknownAreaError
		minErr        *coupon.MinPurchaseError
	)

	switch {
	case errors.Is(err, order.ErrEmptyItems),
		errors.As(err, &validationErr),
		errors.As(err, &areaErr):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, err.Error()

	case errors.As(err, &qtyErr),
		errors.As(err, &unknownErr),
		errors.As(err, &inactiveErr),
		errors.As(err, &stockErr),
		errors.As(err, &transitionErr),
		errors.As(err, &minErr):
		return http.StatusUnprocessableEntity, err.Error()

	case errors.Is(err, coupon.ErrNotFound):
		return http.StatusUnprocessableEntity, "invalid coupon code"

	case errors.Is(err, coupon.ErrNotActive),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrExhausted),
		errors.Is(err, coupon.ErrAlreadyRedeemed):
		return http.StatusUnprocessableEntity, err.Error()

	case errors.Is(err, order.ErrConflict):
		return http.StatusConflict, err.Error()

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "storage unavailable"

	default:
		return http.StatusInternalServerError, ""
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &order.ValidationError{Field: "body", Reason: "malformed JSON"}
	}
	return nil
}
