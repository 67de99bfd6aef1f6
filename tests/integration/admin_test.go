//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestAdminListOrders_NoAuth(t *testing.T) {
	resp := doGet(t, "/api/admin/orders")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAdminListOrders_WrongKey(t *testing.T) {
	resp := doGetWithAuth(t, "/api/admin/orders", wrongKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAdminListOrders(t *testing.T) {
	mustCreateOrder(t)

	resp := doGetWithAuth(t, "/api/admin/orders", testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	list := decodeJSON[ordersListResponse](t, resp)
	if list.Total == 0 || len(list.Orders) == 0 {
		t.Fatalf("expected orders, got total=%d len=%d", list.Total, len(list.Orders))
	}
}

func TestAdminSetFulfillment_ValidTransition(t *testing.T) {
	created := mustCreateOrder(t)

	resp := doPutWithAuth(t, "/api/admin/orders/"+created.ID+"/fulfillment",
		map[string]string{"status": "shipping"}, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	o := decodeJSON[orderResponse](t, resp)
	if o.FulfillmentStatus != "shipping" {
		t.Errorf("fulfillment: got %s, want shipping", o.FulfillmentStatus)
	}
}

func TestAdminSetFulfillment_SkippedStep(t *testing.T) {
	created := mustCreateOrder(t)

	resp := doPutWithAuth(t, "/api/admin/orders/"+created.ID+"/fulfillment",
		map[string]string{"status": "delivered"}, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestAdminSetPayment(t *testing.T) {
	created := mustCreateOrder(t)

	resp := doPutWithAuth(t, "/api/admin/orders/"+created.ID+"/payment",
		map[string]string{"status": "paid"}, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	o := decodeJSON[orderResponse](t, resp)
	if o.PaymentStatus != "paid" {
		t.Errorf("payment: got %s, want paid", o.PaymentStatus)
	}
}

func TestAdminRefund_FullByDefault(t *testing.T) {
	created := mustCreateOrder(t)

	resp := doPutWithAuth(t, "/api/admin/orders/"+created.ID+"/payment",
		map[string]string{"status": "paid"}, testAPIKey)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mark paid: expected 200, got %d", resp.StatusCode)
	}

	resp = doPostWithAuth(t, "/api/admin/orders/"+created.ID+"/refund",
		map[string]string{"reason": "customer request"}, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refund: expected 200, got %d", resp.StatusCode)
	}

	o := decodeJSON[orderResponse](t, resp)
	if o.PaymentStatus != "refunded" {
		t.Errorf("payment: got %s, want refunded", o.PaymentStatus)
	}
}

func TestAdminAnalyticsOverview(t *testing.T) {
	resp := doGetWithAuth(t, "/api/admin/analytics/overview", testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decodeJSON[map[string]any](t, resp)
	if _, ok := body["statuses"]; !ok {
		t.Error("expected statuses in overview")
	}
	if _, ok := body["revenue_trend"]; !ok {
		t.Error("expected revenue_trend in overview")
	}
}

func TestAdminAnalyticsRevenue_BadGranularity(t *testing.T) {
	resp := doGetWithAuth(t, "/api/admin/analytics/revenue?granularity=hour", testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
