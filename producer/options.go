package producer

import (
	"log/slog"

	"github.com/IvanBrykalov/paintcache/ledger"
	"github.com/IvanBrykalov/paintcache/payload"
	"github.com/IvanBrykalov/paintcache/policy"
)

// EvictReason explains why an entry left the ledger.
type EvictReason int

const (
	// EvictBudget — removed by Purge to get back under MaxBytes.
	EvictBudget EvictReason = iota
	// EvictInvalidate — removed by PurgeAll.
	EvictInvalidate
)

func (r EvictReason) String() string {
	if r == EvictInvalidate {
		return "invalidate"
	}
	return "budget"
}

// Metrics exposes producer-side observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit(kind payload.Kind)
	Miss(kind payload.Kind)
	Evict(kind payload.Kind, reason EvictReason, n int)
	Size(entries int, bytes int64)
}

// NoopMetrics is a drop-in Metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) Hit(payload.Kind)                     {}
func (NoopMetrics) Miss(payload.Kind)                    {}
func (NoopMetrics) Evict(payload.Kind, EvictReason, int) {}
func (NoopMetrics) Size(entries int, bytes int64)        {}

// Ensure NoopMetrics implements the Metrics interface at compile time.
var _ Metrics = NoopMetrics{}

// Options configures a producer Cache. Zero values are safe except MaxBytes;
// defaults are applied in New():
//   - nil Policy   => LRU
//   - nil Metrics  => NoopMetrics
//   - nil Logger   => discard
type Options struct {
	// MaxBytes is the budget the consumer is assumed to hold at most.
	// Must be > 0.
	MaxBytes int64

	// Policy orders ledger entries for eviction; nil => LRU.
	Policy policy.Policy[ledger.Key]

	Metrics Metrics
	Logger  *slog.Logger
}
