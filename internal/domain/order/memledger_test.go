package order

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/halchash/storefront/internal/domain/catalog"
	"github.com/halchash/storefront/internal/domain/coupon"
)

// memStore is an in-memory ledger with real transaction semantics: WithinTx
// snapshots all state up front and restores it when fn fails, so tests can
// assert the all-or-nothing contract. The single mutex serializes
// transactions the way the database would.
type memStore struct {
	mu            sync.Mutex
	seq           int64
	orders        map[string]*Order
	orderNumbers  map[string]string // order number -> order id
	items         map[string][]Item // order id -> items
	coupons       map[string]*coupon.Coupon
	couponsByCode map[string]string // code -> coupon id
	usages        []coupon.Usage
	stock         map[string]int
	products      map[string]catalog.Product
}

func newMemStore() *memStore {
	return &memStore{
		orders:        make(map[string]*Order),
		orderNumbers:  make(map[string]string),
		items:         make(map[string][]Item),
		coupons:       make(map[string]*coupon.Coupon),
		couponsByCode: make(map[string]string),
		stock:         make(map[string]int),
		products:      make(map[string]catalog.Product),
	}
}

func (s *memStore) addProduct(p catalog.Product, stock int) {
	s.products[p.ID] = p
	s.stock[p.ID] = stock
}

func (s *memStore) addCoupon(c *coupon.Coupon) {
	s.coupons[c.ID] = c
	s.couponsByCode[c.Code] = c.ID
}

func (s *memStore) snapshot() *memStore {
	snap := newMemStore()
	snap.seq = s.seq
	for id, o := range s.orders {
		cp := *o
		snap.orders[id] = &cp
	}
	for num, id := range s.orderNumbers {
		snap.orderNumbers[num] = id
	}
	for id, items := range s.items {
		snap.items[id] = append([]Item(nil), items...)
	}
	for id, c := range s.coupons {
		cp := *c
		snap.coupons[id] = &cp
	}
	for code, id := range s.couponsByCode {
		snap.couponsByCode[code] = id
	}
	snap.usages = append([]coupon.Usage(nil), s.usages...)
	for id, n := range s.stock {
		snap.stock[id] = n
	}
	return snap
}

func (s *memStore) restore(snap *memStore) {
	s.seq = snap.seq
	s.orders = snap.orders
	s.orderNumbers = snap.orderNumbers
	s.items = snap.items
	s.coupons = snap.coupons
	s.couponsByCode = snap.couponsByCode
	s.usages = snap.usages
	s.stock = snap.stock
}

// WithinTx implements TxManager.
func (s *memStore) WithinTx(_ context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(&memTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// --- catalog.Repository ---

func (s *memStore) GetByID(_ context.Context, id string) (*catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &p, nil
}

func (s *memStore) GetByIDs(_ context.Context, ids []string) ([]catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// --- coupon.Store (read path, used by the validator) ---

func (s *memStore) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findByCodeLocked(code)
}

func (s *memStore) findByCodeLocked(code string) (*coupon.Coupon, error) {
	id, ok := s.couponsByCode[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	cp := *s.coupons[id]
	return &cp, nil
}

func (s *memStore) ConsumeSlot(_ context.Context, couponID string, usage coupon.Usage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consumeSlotLocked(couponID, usage)
}

func (s *memStore) consumeSlotLocked(couponID string, usage coupon.Usage) error {
	c, ok := s.coupons[couponID]
	if !ok {
		return coupon.ErrNotFound
	}
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return coupon.ErrExhausted
	}
	if usage.UserID != nil {
		for _, u := range s.usages {
			if u.CouponID == couponID && u.UserID != nil && *u.UserID == *usage.UserID {
				return coupon.ErrAlreadyRedeemed
			}
		}
	}
	c.UsedCount++
	s.usages = append(s.usages, usage)
	return nil
}

// --- Ledger (read path) ---

func (s *memStore) Get(_ context.Context, id string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *memStore) ListItems(_ context.Context, orderID string) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Item(nil), s.items[orderID]...), nil
}

func (s *memStore) ListByUser(_ context.Context, userID string, status *FulfillmentStatus) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Order
	for _, o := range s.orders {
		if o.UserID == nil || *o.UserID != userID {
			continue
		}
		if status != nil && o.FulfillmentStatus != *status {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (s *memStore) List(_ context.Context, filter ListFilter) ([]Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Order
	for _, o := range s.orders {
		if filter.Fulfillment != nil && o.FulfillmentStatus != *filter.Fulfillment {
			continue
		}
		if filter.Payment != nil && o.PaymentStatus != *filter.Payment {
			continue
		}
		if filter.Search != "" &&
			!strings.Contains(o.OrderNumber, filter.Search) &&
			!strings.Contains(o.Shipping.Name, filter.Search) &&
			!strings.Contains(o.Shipping.Email, filter.Search) {
			continue
		}
		out = append(out, *o)
	}
	return out, len(out), nil
}

// --- transaction-scoped view ---

// memTx operates on the store directly; the transaction mutex is already
// held by WithinTx.
type memTx struct {
	s *memStore
}

func (t *memTx) Orders() LedgerTx      { return t }
func (t *memTx) Coupons() coupon.Store { return (*memTxCoupons)(t) }
func (t *memTx) Stock() StockTx        { return t }

func (t *memTx) NextOrderNumber(_ context.Context) (int64, error) {
	t.s.seq++
	return t.s.seq, nil
}

func (t *memTx) Insert(_ context.Context, o *Order) error {
	if _, exists := t.s.orderNumbers[o.OrderNumber]; exists {
		return ErrConflict
	}
	cp := *o
	t.s.orders[o.ID] = &cp
	t.s.orderNumbers[o.OrderNumber] = o.ID
	return nil
}

func (t *memTx) InsertItems(_ context.Context, items []Item) error {
	for _, item := range items {
		t.s.items[item.OrderID] = append(t.s.items[item.OrderID], item)
	}
	return nil
}

func (t *memTx) GetForUpdate(_ context.Context, id string) (*Order, error) {
	o, ok := t.s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (t *memTx) ListItems(_ context.Context, orderID string) ([]Item, error) {
	return append([]Item(nil), t.s.items[orderID]...), nil
}

func (t *memTx) UpdateFulfillment(_ context.Context, id string, status FulfillmentStatus) error {
	o, ok := t.s.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.FulfillmentStatus = status
	return nil
}

func (t *memTx) UpdatePayment(_ context.Context, id string, status PaymentStatus) error {
	o, ok := t.s.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.PaymentStatus = status
	return nil
}

func (t *memTx) SetRefund(_ context.Context, id string, amount decimal.Decimal, reason string) error {
	o, ok := t.s.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.PaymentStatus = PaymentRefunded
	o.RefundAmount = &amount
	o.RefundReason = reason
	return nil
}

func (t *memTx) AttachCoupon(_ context.Context, id, couponID string, discount, total decimal.Decimal) error {
	o, ok := t.s.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.CouponID = &couponID
	o.DiscountAmount = discount
	o.TotalAmount = total
	return nil
}

func (t *memTx) Decrement(_ context.Context, productID string, qty int) (bool, error) {
	if t.s.stock[productID] < qty {
		return false, nil
	}
	t.s.stock[productID] -= qty
	return true, nil
}

func (t *memTx) Restore(_ context.Context, productID string, qty int) error {
	t.s.stock[productID] += qty
	return nil
}

// memTxCoupons is the tx-scoped coupon store; the mutex is already held.
type memTxCoupons memTx

func (t *memTxCoupons) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	return t.s.findByCodeLocked(code)
}

func (t *memTxCoupons) ConsumeSlot(_ context.Context, couponID string, usage coupon.Usage) error {
	return t.s.consumeSlotLocked(couponID, usage)
}
