package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/halchash/storefront/internal/domain/order"
	"github.com/halchash/storefront/internal/domain/pricing"
)

type contactPayload struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type lineItemPayload struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	Items        []lineItemPayload `json:"items"`
	Shipping     contactPayload    `json:"shipping"`
	DeliveryArea string            `json:"delivery_area"`
	CouponCode   string            `json:"coupon_code,omitempty"`
	UserID       *string           `json:"user_id,omitempty"`
}

type itemResponse struct {
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	LineSubtotal decimal.Decimal `json:"line_subtotal"`
}

type orderResponse struct {
	ID                string           `json:"id"`
	OrderNumber       string           `json:"order_number"`
	UserID            *string          `json:"user_id,omitempty"`
	Shipping          contactPayload   `json:"shipping"`
	DeliveryArea      string           `json:"delivery_area"`
	Items             []itemResponse   `json:"items,omitempty"`
	Subtotal          decimal.Decimal  `json:"subtotal"`
	ShippingCost      decimal.Decimal  `json:"shipping_cost"`
	DiscountAmount    decimal.Decimal  `json:"discount_amount"`
	TotalAmount       decimal.Decimal  `json:"total_amount"`
	FulfillmentStatus string           `json:"fulfillment_status"`
	PaymentStatus     string           `json:"payment_status"`
	CouponID          *string          `json:"coupon_id,omitempty"`
	RefundAmount      *decimal.Decimal `json:"refund_amount,omitempty"`
	RefundReason      string           `json:"refund_reason,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}

func toOrderResponse(o *order.Order, items []order.Item) orderResponse {
	resp := orderResponse{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		Shipping: contactPayload{
			Name:    o.Shipping.Name,
			Email:   o.Shipping.Email,
			Phone:   o.Shipping.Phone,
			Address: o.Shipping.Address,
		},
		DeliveryArea:      string(o.DeliveryArea),
		Subtotal:          o.Subtotal,
		ShippingCost:      o.ShippingCost,
		DiscountAmount:    o.DiscountAmount,
		TotalAmount:       o.TotalAmount,
		FulfillmentStatus: string(o.FulfillmentStatus),
		PaymentStatus:     string(o.PaymentStatus),
		CouponID:          o.CouponID,
		RefundAmount:      o.RefundAmount,
		RefundReason:      o.RefundReason,
		CreatedAt:         o.CreatedAt,
	}
	for _, it := range items {
		resp.Items = append(resp.Items, itemResponse{
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			UnitPrice:    it.UnitPrice,
			Quantity:     it.Quantity,
			LineSubtotal: it.LineSubtotal,
		})
	}
	return resp
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	items := make([]pricing.LineRequest, len(req.Items))
	for i, item := range req.Items {
		items[i] = pricing.LineRequest{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	created, lines, err := h.orders.Create(r.Context(), order.CreateRequest{
		Customer: order.ShippingContact{
			Name:    req.Shipping.Name,
			Email:   req.Shipping.Email,
			Phone:   req.Shipping.Phone,
			Address: req.Shipping.Address,
		},
		Items:        items,
		DeliveryArea: pricing.DeliveryArea(req.DeliveryArea),
		CouponCode:   req.CouponCode,
		UserID:       req.UserID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(created, lines))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, items, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o, items))
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.orders.Invoice(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	items := make([]itemResponse, len(inv.Items))
	for i, it := range inv.Items {
		items[i] = itemResponse{
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			UnitPrice:    it.UnitPrice,
			Quantity:     it.Quantity,
			LineSubtotal: it.LineSubtotal,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_number": inv.OrderNumber,
		"order_date":   inv.OrderDate,
		"shipping": contactPayload{
			Name:    inv.Shipping.Name,
			Email:   inv.Shipping.Email,
			Phone:   inv.Shipping.Phone,
			Address: inv.Shipping.Address,
		},
		"items":           items,
		"subtotal":        inv.Subtotal,
		"shipping_cost":   inv.ShippingCost,
		"discount_amount": inv.DiscountAmount,
		"total_amount":    inv.TotalAmount,
	})
}

func (h *Handler) listUserOrders(w http.ResponseWriter, r *http.Request) {
	var status *order.FulfillmentStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s, ok := order.ParseFulfillmentStatus(raw)
		if !ok {
			writeError(w, r, &order.ValidationError{Field: "status", Reason: "unknown fulfillment status"})
			return
		}
		status = &s
	}

	orders, err := h.orders.ListByUser(r.Context(), r.PathValue("userID"), status)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i := range orders {
		resp[i] = toOrderResponse(&orders[i], nil)
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": resp})
}

func (h *Handler) adminListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := order.ListFilter{Search: q.Get("search")}

	if raw := q.Get("fulfillment"); raw != "" {
		s, ok := order.ParseFulfillmentStatus(raw)
		if !ok {
			writeError(w, r, &order.ValidationError{Field: "fulfillment", Reason: "unknown fulfillment status"})
			return
		}
		filter.Fulfillment = &s
	}
	if raw := q.Get("payment"); raw != "" {
		s, ok := order.ParsePaymentStatus(raw)
		if !ok {
			writeError(w, r, &order.ValidationError{Field: "payment", Reason: "unknown payment status"})
			return
		}
		filter.Payment = &s
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	orders, total, err := h.orders.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i := range orders {
		resp[i] = toOrderResponse(&orders[i], nil)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": resp,
		"total":  total,
	})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) setFulfillment(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	status, ok := order.ParseFulfillmentStatus(req.Status)
	if !ok {
		writeError(w, r, &order.ValidationError{Field: "status", Reason: "unknown fulfillment status"})
		return
	}

	o, err := h.orders.SetFulfillmentStatus(r.Context(), r.PathValue("id"), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o, nil))
}

func (h *Handler) setPayment(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	status, ok := order.ParsePaymentStatus(req.Status)
	if !ok {
		writeError(w, r, &order.ValidationError{Field: "status", Reason: "unknown payment status"})
		return
	}

	o, err := h.orders.SetPaymentStatus(r.Context(), r.PathValue("id"), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o, nil))
}

type refundRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Reason string           `json:"reason,omitempty"`
}

func (h *Handler) refundOrder(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.Refund(r.Context(), r.PathValue("id"), req.Amount, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o, nil))
}
