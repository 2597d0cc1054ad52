package stream

import (
	"fmt"

	"github.com/IvanBrykalov/paintcache/payload"
	"github.com/IvanBrykalov/paintcache/producer"
)

// RecorderStats counts frames emitted by a Recorder.
type RecorderStats struct {
	Puts      int64
	Uses      int64
	Purged    int64 // ids sent in purge frames
	PurgeAlls int64
}

// Recorder is the producer end of the stream. It owns the decisions: every
// producer.Cache mutation it makes is immediately followed by the frame that
// replays it downstream.
type Recorder struct {
	cache  *producer.Cache
	enc    *Encoder
	purged producer.Purged
	stats  RecorderStats
}

// NewRecorder binds a producer cache to an encoder.
func NewRecorder(c *producer.Cache, enc *Encoder) *Recorder {
	return &Recorder{cache: c, enc: enc}
}

// Draw emits the payload for (kind, id). On a hit only a reference is written
// and data is ignored; on a miss the full payload is written and its length
// is recorded against the budget. It reports whether the draw was a hit.
// An unknown kind is rejected with ErrUnknownOp before anything is written.
func (r *Recorder) Draw(kind payload.Kind, id payload.ID, data []byte) (bool, error) {
	if !kind.Valid() {
		return false, fmt.Errorf("%w: kind %d", ErrUnknownOp, kind)
	}
	if r.cache.Get(kind, id) {
		if err := r.enc.Use(kind, id); err != nil {
			return true, err
		}
		r.stats.Uses++
		return true, nil
	}
	if err := r.enc.Put(kind, id, data); err != nil {
		return false, err
	}
	r.cache.Put(kind, id, int64(len(data)))
	r.stats.Puts++
	return false, nil
}

// Reconcile brings the producer back under budget and emits purge frames
// per kind for whatever was evicted (split by the encoder's MaxPurgeIDs).
// It returns the number of purged ids.
//
// The evictions happen before any frame is written. If writing fails part way,
// ids of the remaining kinds are already gone from the producer but were never
// sent; both sides must then be invalidated (see the package doc).
func (r *Recorder) Reconcile() (int, error) {
	r.purged.Reset()
	r.cache.Purge(&r.purged)
	for k := payload.Kind(0); k < payload.NumKinds; k++ {
		if err := r.enc.Purge(k, r.purged.IDs(k)); err != nil {
			return 0, fmt.Errorf("reconcile %s: %w", k, err)
		}
	}
	n := r.purged.Len()
	r.stats.Purged += int64(n)
	return n, nil
}

// Invalidate drops every entry on the producer side and, if anything was
// resident, emits a purge-all frame. It reports whether a frame was written.
func (r *Recorder) Invalidate() (bool, error) {
	if !r.cache.PurgeAll() {
		return false, nil
	}
	if err := r.enc.PurgeAll(); err != nil {
		return false, err
	}
	r.stats.PurgeAlls++
	return true, nil
}

// Flush pushes buffered frames to the transport.
func (r *Recorder) Flush() error { return r.enc.Flush() }

// Stats returns a snapshot of emitted frame counts.
func (r *Recorder) Stats() RecorderStats { return r.stats }
