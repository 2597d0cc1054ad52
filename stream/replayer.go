package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/IvanBrykalov/paintcache/consumer"
	"github.com/IvanBrykalov/paintcache/payload"
)

// ReplayerOptions configures a Replayer.
type ReplayerOptions struct {
	// OnDraw, if set, receives the materialized payload for every put and
	// use frame, in stream order. data must not be modified.
	OnDraw func(kind payload.Kind, id payload.ID, data []byte)

	// Logger; nil => discard.
	Logger *slog.Logger
}

// Replayer is the consumer end of the stream.
type Replayer struct {
	dec    *Decoder
	cache  *consumer.Cache[[]byte, []byte]
	onDraw func(payload.Kind, payload.ID, []byte)
	log    *slog.Logger

	frame  Frame
	frames int64
}

// NewReplayer binds a decoder to the consumer cache it drives.
func NewReplayer(dec *Decoder, c *consumer.Cache[[]byte, []byte], opt ReplayerOptions) *Replayer {
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}
	return &Replayer{
		dec:    dec,
		cache:  c,
		onDraw: opt.OnDraw,
		log:    opt.Logger.With("component", "replayer"),
	}
}

// Next decodes and applies one frame. It returns io.EOF at the end of the stream.
func (r *Replayer) Next() error {
	if err := r.dec.Decode(&r.frame); err != nil {
		return err
	}
	r.frames++
	return r.Apply(&r.frame)
}

// Run applies frames until the stream ends (returns nil), a frame fails, or
// ctx is done. ctx is checked between frames; a read blocked on the transport
// is only released by closing the transport.
func (r *Replayer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.Next(); err != nil {
			if errors.Is(err, io.EOF) {
				r.log.Debug("stream ended", "frames", r.frames)
				return nil
			}
			return err
		}
	}
}

// Apply replays one already decoded frame on the consumer cache.
func (r *Replayer) Apply(f *Frame) error {
	switch f.Op {
	case OpPut:
		switch f.Kind {
		case payload.Path:
			r.cache.PutPath(f.ID, f.Data)
		case payload.TextBlob:
			r.cache.PutTextBlob(f.ID, f.Data)
		default:
			return fmt.Errorf("%w: kind %d", ErrUnknownOp, f.Kind)
		}
		r.draw(f.Kind, f.ID, f.Data)
	case OpUse:
		var (
			data []byte
			ok   bool
		)
		switch f.Kind {
		case payload.Path:
			data, ok = r.cache.GetPath(f.ID)
		case payload.TextBlob:
			data, ok = r.cache.GetTextBlob(f.ID)
		}
		if !ok {
			r.log.Error("reference to missing payload", "kind", f.Kind, "id", f.ID, "frame", r.frames)
			return fmt.Errorf("%w: %s/%d", ErrMissingPayload, f.Kind, f.ID)
		}
		r.draw(f.Kind, f.ID, data)
	case OpPurge:
		n, err := r.cache.Purge(f.Kind, f.IDs)
		if err != nil {
			return err
		}
		r.log.Debug("purged", "kind", f.Kind, "requested", len(f.IDs), "removed", n)
	case OpPurgeAll:
		r.cache.PurgeAll()
	default:
		return fmt.Errorf("%w: %s", ErrUnknownOp, f.Op)
	}
	return nil
}

// Frames returns the number of frames decoded so far.
func (r *Replayer) Frames() int64 { return r.frames }

func (r *Replayer) draw(kind payload.Kind, id payload.ID, data []byte) {
	if r.onDraw != nil {
		r.onDraw(kind, id, data)
	}
}
