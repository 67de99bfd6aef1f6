//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestValidateCoupon_Percent(t *testing.T) {
	resp := doPost(t, "/api/coupons/validate", validateCouponRequest{Code: "WELCOME10", Subtotal: "900"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	v := decodeJSON[validateCouponResponse](t, resp)
	if v.Discount != "90" {
		t.Errorf("discount: got %s, want 90", v.Discount)
	}
	if v.Payable != "810" {
		t.Errorf("payable: got %s, want 810", v.Payable)
	}
}

func TestValidateCoupon_CaseInsensitive(t *testing.T) {
	resp := doPost(t, "/api/coupons/validate", validateCouponRequest{Code: "flat50", Subtotal: "400"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	v := decodeJSON[validateCouponResponse](t, resp)
	if v.Discount != "50" {
		t.Errorf("discount: got %s, want 50", v.Discount)
	}
}

func TestValidateCoupon_BelowMinPurchase(t *testing.T) {
	// FLAT50 requires a 300 minimum purchase.
	resp := doPost(t, "/api/coupons/validate", validateCouponRequest{Code: "FLAT50", Subtotal: "100"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestValidateCoupon_Unknown(t *testing.T) {
	resp := doPost(t, "/api/coupons/validate", validateCouponRequest{Code: "NOSUCHCODE", Subtotal: "900"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}

	e := decodeJSON[errorResponse](t, resp)
	if e.Message == "" {
		t.Error("expected an error message")
	}
}

func TestApplyCoupon_ToExistingOrder(t *testing.T) {
	created := mustCreateOrder(t)
	userID := "user-apply-coupon"

	resp := doPost(t, "/api/orders/"+created.ID+"/coupon", map[string]any{
		"code":    "FLAT50",
		"user_id": userID,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decodeJSON[map[string]any](t, resp)
	if body["order_id"] != created.ID {
		t.Errorf("order_id: got %v, want %s", body["order_id"], created.ID)
	}
	if body["discount_amount"] != "50" {
		t.Errorf("discount_amount: got %v, want 50", body["discount_amount"])
	}
}

func TestApplyCoupon_SecondRedemptionSameUser(t *testing.T) {
	userID := "user-double-redeem"

	first := mustCreateOrder(t)
	resp := doPost(t, "/api/orders/"+first.ID+"/coupon", map[string]any{
		"code":    "FLAT50",
		"user_id": userID,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first redemption: expected 200, got %d", resp.StatusCode)
	}

	second := mustCreateOrder(t)
	resp = doPost(t, "/api/orders/"+second.ID+"/coupon", map[string]any{
		"code":    "FLAT50",
		"user_id": userID,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("second redemption: expected 422, got %d", resp.StatusCode)
	}
}
