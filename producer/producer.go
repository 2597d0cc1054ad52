package producer

import (
	"log/slog"

	"github.com/IvanBrykalov/paintcache/ledger"
	"github.com/IvanBrykalov/paintcache/payload"
)

// Stats is a snapshot of producer counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// Cache is the budgeted ledger of what the consumer is assumed to hold.
type Cache struct {
	ledger    *ledger.Ledger
	maxBytes  int64
	bytesUsed int64 // == sum of sizes of live ledger entries

	stats Stats

	metrics Metrics
	log     *slog.Logger
}

// New constructs a Cache with the provided Options.
// Defaults:
//   - nil Policy   -> LRU
//   - nil Metrics  -> NoopMetrics
//   - nil Logger   -> discard
func New(opt Options) *Cache {
	if opt.MaxBytes <= 0 {
		panic("producer: MaxBytes must be > 0")
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{
		ledger:   ledger.New(opt.Policy),
		maxBytes: opt.MaxBytes,
		metrics:  opt.Metrics,
		log:      opt.Logger.With("component", "producer"),
	}
}

// Get reports whether id is considered resident downstream for kind.
// On hit, the entry becomes most-recently-used. A miss has no side effect.
func (c *Cache) Get(kind payload.Kind, id payload.ID) bool {
	if c.ledger.Contains(ledger.Key{Kind: kind, ID: id}) {
		c.stats.Hits++
		c.metrics.Hit(kind)
		return true
	}
	c.stats.Misses++
	c.metrics.Miss(kind)
	return false
}

// Peek is Get without promotion and without touching counters.
func (c *Cache) Peek(kind payload.Kind, id payload.ID) bool {
	_, ok := c.ledger.Peek(ledger.Key{Kind: kind, ID: id})
	return ok
}

// Put records that the payload for (kind, id), sizeBytes long, is now being
// sent downstream. It must only follow a Get miss for the same pair; a Put
// for a resident id or an unknown kind panics. Negative sizes are accounted
// as zero.
func (c *Cache) Put(kind payload.Kind, id payload.ID, sizeBytes int64) {
	if !kind.Valid() {
		panic("producer: Put with unknown kind " + kind.String())
	}
	if sizeBytes < 0 {
		sizeBytes = 0
	}
	c.ledger.Insert(ledger.Key{Kind: kind, ID: id}, sizeBytes)
	c.bytesUsed += sizeBytes
	c.metrics.Size(c.ledger.Len(), c.bytesUsed)
}

// Purge evicts least-recently-used entries, across all kinds, until
// BytesUsed <= MaxBytes or the ledger is empty. Evicted ids are appended to
// dst in eviction order. The caller must forward them to the consumer before
// any later Put that may reuse one of them. A nil dst still evicts but
// collects nothing; that is only useful when the consumer is reset anyway.
func (c *Cache) Purge(dst *Purged) {
	var evicted [payload.NumKinds]int
	for c.bytesUsed > c.maxBytes {
		k, size, ok := c.ledger.EvictOldest()
		if !ok {
			break
		}
		c.bytesUsed -= size
		if dst != nil {
			dst.add(k.Kind, k.ID)
		}
		evicted[k.Kind]++
	}
	c.reportEvictions(evicted, EvictBudget)
	if n := evicted[payload.Path] + evicted[payload.TextBlob]; n > 0 {
		c.log.Debug("purged over budget",
			"paths", evicted[payload.Path],
			"text_blobs", evicted[payload.TextBlob],
			"bytes_used", c.bytesUsed,
			"max_bytes", c.maxBytes)
	}
	c.metrics.Size(c.ledger.Len(), c.bytesUsed)
}

// PurgeAll empties the ledger and reports whether anything was evicted.
// The caller must also tell the consumer to drop everything.
func (c *Cache) PurgeAll() bool {
	if c.ledger.Len() == 0 {
		return false
	}
	var evicted [payload.NumKinds]int
	c.ledger.Each(func(k ledger.Key, _ int64) bool {
		evicted[k.Kind]++
		return true
	})
	n := c.ledger.RemoveAll()
	c.log.Debug("purged all", "entries", n, "bytes", c.bytesUsed)
	c.bytesUsed = 0
	c.reportEvictions(evicted, EvictInvalidate)
	c.metrics.Size(0, 0)
	return true
}

// BytesUsed returns the sum of sizes of live entries.
func (c *Cache) BytesUsed() int64 { return c.bytesUsed }

// MaxBytes returns the configured budget.
func (c *Cache) MaxBytes() int64 { return c.maxBytes }

// Len returns the number of live entries across kinds.
func (c *Cache) Len() int { return c.ledger.Len() }

// Stats returns a snapshot of hit/miss/eviction counters.
func (c *Cache) Stats() Stats { return c.stats }

// Resident returns the ids of kind currently considered resident, MRU first.
func (c *Cache) Resident(kind payload.Kind) []payload.ID {
	var ids []payload.ID
	c.ledger.Each(func(k ledger.Key, _ int64) bool {
		if k.Kind == kind {
			ids = append(ids, k.ID)
		}
		return true
	})
	return ids
}

func (c *Cache) reportEvictions(evicted [payload.NumKinds]int, reason EvictReason) {
	for kind, n := range evicted {
		if n == 0 {
			continue
		}
		c.stats.Evictions += int64(n)
		c.metrics.Evict(payload.Kind(kind), reason, n)
	}
}
