package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/paintcache/consumer"
	"github.com/IvanBrykalov/paintcache/payload"
	"github.com/IvanBrykalov/paintcache/producer"
)

// Adapter implements producer.Metrics and consumer.Metrics and exports
// Prometheus counters/gauges. Safe for concurrent use; all Prometheus metric
// types are goroutine-safe, so one Adapter may serve both sides.
type Adapter struct {
	hits      *prometheus.CounterVec
	misses    *prometheus.CounterVec
	evicts    *prometheus.CounterVec
	entries   prometheus.Gauge
	bytesUsed prometheus.Gauge
	stored    *prometheus.GaugeVec
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "producer_hits_total",
			Help:        "Draws emitted as references to a payload the consumer holds",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "producer_misses_total",
			Help:        "Draws that had to send the full payload",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		evicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "producer_evictions_total",
			Help:        "Ledger evictions by kind and reason",
			ConstLabels: constLabels,
		}, []string{"kind", "reason"}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "producer_entries",
			Help:        "Number of entries the producer considers resident downstream",
			ConstLabels: constLabels,
		}),
		bytesUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "producer_bytes_used",
			Help:        "Payload bytes the producer considers resident downstream",
			ConstLabels: constLabels,
		}),
		stored: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "consumer_entries",
			Help:        "Number of payloads stored by the consumer",
			ConstLabels: constLabels,
		}, []string{"kind"}),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.entries, a.bytesUsed, a.stored)
	return a
}

// Hit increments the hit counter for kind.
func (a *Adapter) Hit(kind payload.Kind) { a.hits.WithLabelValues(kind.String()).Inc() }

// Miss increments the miss counter for kind.
func (a *Adapter) Miss(kind payload.Kind) { a.misses.WithLabelValues(kind.String()).Inc() }

// Evict adds n evictions for kind with a reason label.
func (a *Adapter) Evict(kind payload.Kind, r producer.EvictReason, n int) {
	a.evicts.WithLabelValues(kind.String(), r.String()).Add(float64(n))
}

// Size updates the producer gauges.
func (a *Adapter) Size(entries int, bytes int64) {
	a.entries.Set(float64(entries))
	a.bytesUsed.Set(float64(bytes))
}

// Stored updates the consumer gauge for kind.
func (a *Adapter) Stored(kind payload.Kind, entries int) {
	a.stored.WithLabelValues(kind.String()).Set(float64(entries))
}

// Compile-time checks: Adapter serves both sides.
var (
	_ producer.Metrics = (*Adapter)(nil)
	_ consumer.Metrics = (*Adapter)(nil)
)
