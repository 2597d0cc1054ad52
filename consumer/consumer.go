// Package consumer implements the consumer-side authoritative payload store.
//
// The consumer never decides to evict on its own: entries leave only when the
// producer says so (Purge) or on full invalidation (PurgeAll). A Cache is not
// safe for concurrent use; it is driven by the goroutine replaying the stream.
package consumer

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/IvanBrykalov/paintcache/payload"
)

var (
	// ErrUnknownKind is returned by Purge for a kind outside the known set.
	ErrUnknownKind = errors.New("consumer: unknown payload kind")
	// ErrPurgeTooLarge is returned by Purge when the id count exceeds MaxPurgeIDs.
	ErrPurgeTooLarge = errors.New("consumer: purge list too large")
)

// Cache stores decoded payloads: P for paths, T for text blobs.
// Put replaces any prior payload for the same id outright.
type Cache[P, T any] struct {
	paths map[payload.ID]P
	blobs map[payload.ID]T

	maxPurge int
	metrics  Metrics
	log      *slog.Logger
}

// New constructs an empty Cache.
func New[P, T any](opt Options) *Cache[P, T] {
	if opt.MaxPurgeIDs <= 0 {
		opt.MaxPurgeIDs = DefaultMaxPurgeIDs
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}
	return &Cache[P, T]{
		paths:    make(map[payload.ID]P),
		blobs:    make(map[payload.ID]T),
		maxPurge: opt.MaxPurgeIDs,
		metrics:  opt.Metrics,
		log:      opt.Logger.With("component", "consumer"),
	}
}

// PutPath stores or replaces the path payload for id.
func (c *Cache[P, T]) PutPath(id payload.ID, p P) {
	c.paths[id] = p
	c.metrics.Stored(payload.Path, len(c.paths))
}

// GetPath returns the stored path payload, or the zero value and false.
func (c *Cache[P, T]) GetPath(id payload.ID) (P, bool) {
	p, ok := c.paths[id]
	return p, ok
}

// PutTextBlob stores or replaces the text blob payload for id.
func (c *Cache[P, T]) PutTextBlob(id payload.ID, t T) {
	c.blobs[id] = t
	c.metrics.Stored(payload.TextBlob, len(c.blobs))
}

// GetTextBlob returns the stored text blob payload, or the zero value and false.
func (c *Cache[P, T]) GetTextBlob(id payload.ID) (T, bool) {
	t, ok := c.blobs[id]
	return t, ok
}

// Has reports whether a payload is stored for (kind, id).
func (c *Cache[P, T]) Has(kind payload.Kind, id payload.ID) bool {
	switch kind {
	case payload.Path:
		_, ok := c.paths[id]
		return ok
	case payload.TextBlob:
		_, ok := c.blobs[id]
		return ok
	default:
		return false
	}
}

// Purge removes every listed id for kind and returns how many payloads were
// actually dropped. ids may come from a buffer shared with another party: the
// list is copied before use, and ids that are not stored are ignored.
func (c *Cache[P, T]) Purge(kind payload.Kind, ids []payload.ID) (int, error) {
	n := len(ids)
	if n > c.maxPurge {
		c.log.Warn("rejected purge list", "kind", kind, "count", n, "max", c.maxPurge)
		return 0, fmt.Errorf("%w: %d ids (max %d)", ErrPurgeTooLarge, n, c.maxPurge)
	}
	local := slices.Clone(ids[:n])

	switch kind {
	case payload.Path:
		removed := purgeFrom(c.paths, local)
		c.metrics.Stored(kind, len(c.paths))
		return removed, nil
	case payload.TextBlob:
		removed := purgeFrom(c.blobs, local)
		c.metrics.Stored(kind, len(c.blobs))
		return removed, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
}

// PurgeAll drops every stored payload of both kinds.
func (c *Cache[P, T]) PurgeAll() {
	c.log.Debug("purge all", "paths", len(c.paths), "text_blobs", len(c.blobs))
	clear(c.paths)
	clear(c.blobs)
	c.metrics.Stored(payload.Path, 0)
	c.metrics.Stored(payload.TextBlob, 0)
}

// Empty reports whether no payload of any kind is stored.
func (c *Cache[P, T]) Empty() bool { return len(c.paths) == 0 && len(c.blobs) == 0 }

// Len returns the number of payloads stored for kind.
func (c *Cache[P, T]) Len(kind payload.Kind) int {
	switch kind {
	case payload.Path:
		return len(c.paths)
	case payload.TextBlob:
		return len(c.blobs)
	default:
		return 0
	}
}

func purgeFrom[V any](m map[payload.ID]V, ids []payload.ID) int {
	removed := 0
	for _, id := range ids {
		if _, ok := m[id]; ok {
			delete(m, id)
			removed++
		}
	}
	return removed
}
