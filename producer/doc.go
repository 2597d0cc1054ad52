// Package producer implements the producer-side budget mirror of a two-sided
// payload cache for serialized drawing operations.
//
// Design
//
//   - Mirror, not store: a Cache never holds payload bytes. It predicts which
//     (kind, id) pairs the consumer currently stores so the producer can emit
//     a lightweight reference instead of re-sending a path or text blob.
//
//   - Ledger: entries live in a ledger.Ledger, a map plus an intrusive
//     MRU↔LRU list. Paths and text blobs share ONE recency timeline and ONE
//     byte budget; Purge always evicts the globally least-recently-used entry.
//
//   - Eviction is explicit: Put never evicts. The owner calls Purge (typically
//     once per frame) and forwards the returned ids downstream, or PurgeAll on
//     full invalidation (idle cleanup, disconnect).
//
//   - Ordering: the prediction is only correct if every Put, Purge and
//     PurgeAll is replayed on the consumer in the same relative order. Package
//     stream provides such a channel.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Size signals.
//     By default NoopMetrics is used; plug metrics/prom to export them.
//
// Basic usage
//
//	c := producer.New(producer.Options{MaxBytes: 4 << 20})
//	if c.Get(payload.Path, id) {
//	    // emit a reference to id
//	} else {
//	    // emit the full payload
//	    c.Put(payload.Path, id, int64(len(data)))
//	}
//
//	var purged producer.Purged
//	c.Purge(&purged)
//	// forward purged.IDs(payload.Path) and purged.IDs(payload.TextBlob)
//
// Thread-safety & complexity
//
// A Cache is not safe for concurrent use; it is driven solely by the goroutine
// building the operation stream. Get, Put and Peek are O(1) expected; Purge is
// O(k) in the number of evicted entries; PurgeAll is O(n).
package producer
