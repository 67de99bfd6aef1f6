package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/halchash/storefront/internal/domain/analytics"
	"github.com/halchash/storefront/internal/domain/order"
)

// Analytics responses are streamed with a jx encoder instead of reflection;
// trend windows can span years of daily buckets.

func (h *Handler) revenueTrend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	g, err := analytics.ParseGranularity(defaultString(q.Get("granularity"), string(analytics.GranularityDay)))
	if err != nil {
		writeError(w, r, &order.ValidationError{Field: "granularity", Reason: err.Error()})
		return
	}
	start, end, err := parseWindow(q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	dense, _ := strconv.ParseBool(q.Get("dense"))

	buckets, err := h.analytics.RevenueTrend(r.Context(), start, end, g, dense)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("granularity")
	e.Str(string(g))
	e.FieldStart("buckets")
	e.ArrStart()
	for _, b := range buckets {
		encodeBucket(&e, b)
	}
	e.ArrEnd()
	e.ObjEnd()
	writeRaw(w, e.Bytes())
}

func (h *Handler) topProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, end, err := parseWindow(q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	ranked, err := h.analytics.TopProducts(r.Context(), start, end, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("products")
	e.ArrStart()
	for _, p := range ranked {
		encodeProductSales(&e, p)
	}
	e.ArrEnd()
	e.ObjEnd()
	writeRaw(w, e.Bytes())
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	periodDays, _ := strconv.Atoi(r.URL.Query().Get("period_days"))

	ov, err := h.analytics.Overview(r.Context(), periodDays)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("statuses")
	e.ObjStart()
	e.FieldStart("placed")
	e.Int(ov.Statuses.Placed)
	e.FieldStart("pending")
	e.Int(ov.Statuses.Pending)
	e.FieldStart("shipping")
	e.Int(ov.Statuses.Shipping)
	e.FieldStart("delivered")
	e.Int(ov.Statuses.Delivered)
	e.FieldStart("cancelled")
	e.Int(ov.Statuses.Cancelled)
	e.ObjEnd()
	e.FieldStart("revenue_trend")
	e.ArrStart()
	for _, b := range ov.Trend {
		encodeBucket(&e, b)
	}
	e.ArrEnd()
	e.FieldStart("top_products")
	e.ArrStart()
	for _, p := range ov.TopProducts {
		encodeProductSales(&e, p)
	}
	e.ArrEnd()
	e.ObjEnd()
	writeRaw(w, e.Bytes())
}

func encodeBucket(e *jx.Encoder, b analytics.Bucket) {
	e.ObjStart()
	e.FieldStart("bucket")
	e.Str(b.Key)
	e.FieldStart("start")
	e.Str(b.Start.Format(time.RFC3339))
	e.FieldStart("revenue")
	encodeDecimal(e, b.Revenue)
	e.FieldStart("order_count")
	e.Int(b.OrderCount)
	e.FieldStart("avg_order_value")
	encodeDecimal(e, b.AvgOrderValue)
	e.ObjEnd()
}

func encodeProductSales(e *jx.Encoder, p analytics.ProductSales) {
	e.ObjStart()
	e.FieldStart("product_id")
	e.Str(p.ProductID)
	e.FieldStart("product_name")
	e.Str(p.ProductName)
	e.FieldStart("quantity_sold")
	e.Int(p.QuantitySold)
	e.FieldStart("revenue")
	encodeDecimal(e, p.Revenue)
	e.ObjEnd()
}

// encodeDecimal writes a decimal as a quoted string, matching the
// shopspring/decimal JSON form used elsewhere in the API.
func encodeDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.Str(d.String())
}

func writeRaw(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// parseWindow resolves the start/end query parameters, defaulting to the
// trailing 30 days. Dates are accepted as YYYY-MM-DD or RFC 3339.
func parseWindow(rawStart, rawEnd string) (start, end time.Time, err error) {
	end = time.Now().UTC()
	if rawEnd != "" {
		end, err = parseTimeParam(rawEnd)
		if err != nil {
			return time.Time{}, time.Time{}, &order.ValidationError{Field: "end", Reason: "invalid timestamp"}
		}
	}
	start = end.AddDate(0, 0, -30)
	if rawStart != "" {
		start, err = parseTimeParam(rawStart)
		if err != nil {
			return time.Time{}, time.Time{}, &order.ValidationError{Field: "start", Reason: "invalid timestamp"}
		}
	}
	return start, end, nil
}

func parseTimeParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
