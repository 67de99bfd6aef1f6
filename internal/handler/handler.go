// Package handler is the HTTP surface: request decoding, delegation to the
// domain services, and mapping domain errors to status codes.
package handler

import (
	"net/http"

	"github.com/halchash/storefront/internal/domain/analytics"
	"github.com/halchash/storefront/internal/domain/order"
)

// Handler serves the storefront API, delegating business logic to the order
// and analytics services.
type Handler struct {
	orders    *order.Service
	analytics *analytics.Service
	security  *SecurityHandler
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(orders *order.Service, stats *analytics.Service, security *SecurityHandler) *Handler {
	return &Handler{
		orders:    orders,
		analytics: stats,
		security:  security,
	}
}

// Routes registers all API routes on mux. Admin routes are guarded by the
// API key security handler.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orders", h.createOrder)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("GET /api/orders/{id}/invoice", h.getInvoice)
	mux.HandleFunc("POST /api/orders/{id}/coupon", h.applyCoupon)
	mux.HandleFunc("GET /api/users/{userID}/orders", h.listUserOrders)
	mux.HandleFunc("POST /api/coupons/validate", h.validateCoupon)

	admin := func(fn http.HandlerFunc) http.Handler {
		return h.security.Require(fn)
	}
	mux.Handle("GET /api/admin/orders", admin(h.adminListOrders))
	mux.Handle("PUT /api/admin/orders/{id}/fulfillment", admin(h.setFulfillment))
	mux.Handle("PUT /api/admin/orders/{id}/payment", admin(h.setPayment))
	mux.Handle("POST /api/admin/orders/{id}/refund", admin(h.refundOrder))
	mux.Handle("GET /api/admin/analytics/revenue", admin(h.revenueTrend))
	mux.Handle("GET /api/admin/analytics/top-products", admin(h.topProducts))
	mux.Handle("GET /api/admin/analytics/overview", admin(h.overview))
}
