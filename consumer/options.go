package consumer

import (
	"log/slog"

	"github.com/IvanBrykalov/paintcache/payload"
)

// DefaultMaxPurgeIDs bounds a single purge list when Options.MaxPurgeIDs is 0.
const DefaultMaxPurgeIDs = 1 << 16

// Metrics exposes consumer-side observability hooks.
type Metrics interface {
	// Stored reports the number of payloads currently held for kind.
	Stored(kind payload.Kind, entries int)
}

// NoopMetrics is a drop-in Metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) Stored(payload.Kind, int) {}

var _ Metrics = NoopMetrics{}

// Options configures a consumer Cache. Zero values are safe:
//   - MaxPurgeIDs <= 0 => DefaultMaxPurgeIDs
//   - nil Metrics      => NoopMetrics
//   - nil Logger       => discard
type Options struct {
	// MaxPurgeIDs is the hard upper bound on ids accepted by one Purge call.
	MaxPurgeIDs int

	Metrics Metrics
	Logger  *slog.Logger
}
