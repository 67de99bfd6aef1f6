package coupon

import (
	"context"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
)

// Prefilter is a bloom filter over known coupon codes. It answers "definitely
// unknown" without a store round-trip; false positives fall through to the
// store lookup, so it never affects correctness.
type Prefilter struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewPrefilter creates a Prefilter sized for the expected number of codes
// with the given false positive rate.
func NewPrefilter(expectedCodes uint, fpRate float64) *Prefilter {
	return &Prefilter{filter: bloom.NewWithEstimates(expectedCodes, fpRate)}
}

// CodeLister enumerates all known coupon codes, for warming the prefilter.
type CodeLister interface {
	ListCodes(ctx context.Context) ([]string, error)
}

// Warm loads every known code from the lister into the filter. Codes created
// after warming must be added with Add or they will be rejected.
func (p *Prefilter) Warm(ctx context.Context, lister CodeLister) error {
	codes, err := lister.ListCodes(ctx)
	if err != nil {
		return errors.Wrap(err, "list coupon codes")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, code := range codes {
		p.filter.AddString(NormalizeCode(code))
	}
	return nil
}

// Add registers a newly created code with the filter.
func (p *Prefilter) Add(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filter.AddString(NormalizeCode(code))
}

// MayContain reports whether code could be a known coupon code. A false
// result is definitive; a true result may be a false positive.
func (p *Prefilter) MayContain(code string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.filter.TestString(NormalizeCode(code))
}
