package handler

import (
	"net/http"

	"github.com/shopspring/decimal"
)

type validateCouponRequest struct {
	Code     string          `json:"code"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	discount, err := h.orders.ValidateCoupon(r.Context(), req.Code, req.Subtotal)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"code":     req.Code,
		"discount": discount,
		"payable":  req.Subtotal.Sub(discount),
	})
}

type applyCouponRequest struct {
	Code   string  `json:"code"`
	UserID *string `json:"user_id,omitempty"`
}

func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	var req applyCouponRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	usage, err := h.orders.RedeemCoupon(r.Context(), req.Code, r.PathValue("id"), req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"coupon_id":       usage.CouponID,
		"order_id":        usage.OrderID,
		"discount_amount": usage.DiscountAmount,
	})
}
