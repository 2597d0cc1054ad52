// Package stream carries producer cache decisions to the consumer.
//
// The producer and consumer caches agree on which ids are resident only
// because every decision taken on the producer side is replayed on the
// consumer side in the same relative order. This package is that ordered
// channel:
//
//   - Recorder wraps a producer.Cache and an Encoder. Draw emits either a full
//     payload (miss) or a reference (hit); Reconcile turns budget evictions
//     into purge frames; Invalidate emits a purge-all frame.
//
//   - Replayer wraps a Decoder and a consumer.Cache and applies frames in the
//     order they arrive.
//
// Ordering
//
// The byte stream between Encoder and Decoder MUST preserve order and must be
// the only channel between the two sides (an io.Pipe, a TCP connection, a
// ring buffer with a single reader). Substituting a transport that can reorder
// or drop frames voids the membership invariant; the caches cannot detect
// that. The Replayer surfaces the one symptom it can observe, a reference to a
// payload it does not hold, as ErrMissingPayload.
//
// After any error returned by a Recorder or Replayer both sides must be
// invalidated (producer.Cache.PurgeAll / consumer.Cache.PurgeAll) before the
// stream is reused.
//
// Wire format
//
// Each frame starts with a 3-byte header: op, flags, kind. Ids are
// little-endian uint32, lengths and counts are uvarints.
//
//	put       header | id | len | data      (flags&FlagS2: data is s2 block)
//	use       header | id
//	purge     header | count | id*count   (count <= EncoderOptions.MaxPurgeIDs)
//	purge-all header
package stream
