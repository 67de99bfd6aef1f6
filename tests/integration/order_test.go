//go:build integration

package integration

import (
	"net/http"
	"regexp"
	"testing"
)

var orderNumberPattern = regexp.MustCompile(`^HAL-\d{6}$`)

func TestCreateOrder_SingleItem(t *testing.T) {
	req := createOrderRequest{
		Items:        []lineItemRequest{{ProductID: "prod-tee-black", Quantity: 1}},
		Shipping:     validContact(),
		DeliveryArea: "inside_zone",
	}
	resp := doPost(t, "/api/orders", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	o := decodeJSON[orderResponse](t, resp)
	if !orderNumberPattern.MatchString(o.OrderNumber) {
		t.Errorf("order number %q does not match HAL-NNNNNN", o.OrderNumber)
	}
	if o.Subtotal != "450" {
		t.Errorf("subtotal: got %s, want 450", o.Subtotal)
	}
	if o.ShippingCost != "60" {
		t.Errorf("shipping: got %s, want 60", o.ShippingCost)
	}
	if o.TotalAmount != "510" {
		t.Errorf("total: got %s, want 510", o.TotalAmount)
	}
	if o.FulfillmentStatus != "pending" {
		t.Errorf("fulfillment: got %s, want pending", o.FulfillmentStatus)
	}
	if o.PaymentStatus != "pending" {
		t.Errorf("payment: got %s, want pending", o.PaymentStatus)
	}
}

func TestCreateOrder_DiscountPriceUsed(t *testing.T) {
	req := createOrderRequest{
		Items:        []lineItemRequest{{ProductID: "prod-tee-white", Quantity: 2}},
		Shipping:     validContact(),
		DeliveryArea: "outside_zone",
	}
	resp := doPost(t, "/api/orders", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	o := decodeJSON[orderResponse](t, resp)
	// 2 x 380 discount price, not the 450 list price.
	if o.Subtotal != "760" {
		t.Errorf("subtotal: got %s, want 760", o.Subtotal)
	}
	if o.ShippingCost != "120" {
		t.Errorf("shipping: got %s, want 120", o.ShippingCost)
	}
	if len(o.Items) != 1 || o.Items[0].UnitPrice != "380" {
		t.Errorf("items: got %+v, want one line at unit price 380", o.Items)
	}
}

func TestCreateOrder_WithCoupon(t *testing.T) {
	req := createOrderRequest{
		Items:        []lineItemRequest{{ProductID: "prod-tee-black", Quantity: 2}},
		Shipping:     validContact(),
		DeliveryArea: "inside_zone",
		CouponCode:   "welcome10",
	}
	resp := doPost(t, "/api/orders", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	o := decodeJSON[orderResponse](t, resp)
	// 900 subtotal, 10% off = 90, + 60 shipping = 870.
	if o.DiscountAmount != "90" {
		t.Errorf("discount: got %s, want 90", o.DiscountAmount)
	}
	if o.TotalAmount != "870" {
		t.Errorf("total: got %s, want 870", o.TotalAmount)
	}
}

func TestCreateOrder_EmptyItems(t *testing.T) {
	req := createOrderRequest{
		Items:        []lineItemRequest{},
		Shipping:     validContact(),
		DeliveryArea: "inside_zone",
	}
	resp := doPost(t, "/api/orders", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCreateOrder_UnknownArea(t *testing.T) {
	req := createOrderRequest{
		Items:        []lineItemRequest{{ProductID: "prod-tee-black", Quantity: 1}},
		Shipping:     validContact(),
		DeliveryArea: "the-moon",
	}
	resp := doPost(t, "/api/orders", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	req := createOrderRequest{
		Items:        []lineItemRequest{{ProductID: "prod-does-not-exist", Quantity: 1}},
		Shipping:     validContact(),
		DeliveryArea: "inside_zone",
	}
	resp := doPost(t, "/api/orders", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	req := createOrderRequest{
		Items:        []lineItemRequest{{ProductID: "prod-hoodie-grey", Quantity: 100000}},
		Shipping:     validContact(),
		DeliveryArea: "inside_zone",
	}
	resp := doPost(t, "/api/orders", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestGetOrder(t *testing.T) {
	created := mustCreateOrder(t)

	resp := doGet(t, "/api/orders/"+created.ID)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	o := decodeJSON[orderResponse](t, resp)
	if o.OrderNumber != created.OrderNumber {
		t.Errorf("order number: got %s, want %s", o.OrderNumber, created.OrderNumber)
	}
	if len(o.Items) == 0 {
		t.Error("expected items in order detail")
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	resp := doGet(t, "/api/orders/00000000-0000-0000-0000-000000000000")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetInvoice(t *testing.T) {
	created := mustCreateOrder(t)

	resp := doGet(t, "/api/orders/"+created.ID+"/invoice")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	inv := decodeJSON[map[string]any](t, resp)
	if inv["order_number"] != created.OrderNumber {
		t.Errorf("invoice order number: got %v, want %s", inv["order_number"], created.OrderNumber)
	}
	if inv["total_amount"] != created.TotalAmount {
		t.Errorf("invoice total: got %v, want %s", inv["total_amount"], created.TotalAmount)
	}
}

func TestListUserOrders(t *testing.T) {
	userID := "user-integration-list"
	req := createOrderRequest{
		Items:        []lineItemRequest{{ProductID: "prod-tote-canvas", Quantity: 1}},
		Shipping:     validContact(),
		DeliveryArea: "inside_zone",
		UserID:       &userID,
	}
	resp := doPost(t, "/api/orders", req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}

	listResp := doGet(t, "/api/users/"+userID+"/orders")
	defer listResp.Body.Close()

	if listResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", listResp.StatusCode)
	}

	list := decodeJSON[ordersListResponse](t, listResp)
	if len(list.Orders) == 0 {
		t.Fatal("expected at least one order for the user")
	}
}

func mustCreateOrder(t *testing.T) orderResponse {
	t.Helper()

	req := createOrderRequest{
		Items:        []lineItemRequest{{ProductID: "prod-tee-black", Quantity: 1}},
		Shipping:     validContact(),
		DeliveryArea: "inside_zone",
	}
	resp := doPost(t, "/api/orders", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create order: expected 201, got %d", resp.StatusCode)
	}

	return decodeJSON[orderResponse](t, resp)
}
