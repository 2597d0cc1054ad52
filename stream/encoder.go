package stream

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/s2"

	"github.com/IvanBrykalov/paintcache/consumer"
	"github.com/IvanBrykalov/paintcache/payload"
)

// DefaultCompressThreshold is the payload size from which put frames are
// s2-compressed when EncoderOptions.CompressThreshold is 0.
const DefaultCompressThreshold = 1 << 10

// EncoderOptions configures an Encoder.
type EncoderOptions struct {
	// CompressThreshold: payloads at least this long are s2-compressed if that
	// makes them smaller. 0 => DefaultCompressThreshold, negative disables.
	CompressThreshold int

	// MaxPurgeIDs caps the ids carried by one purge frame; longer lists are
	// split. Must not exceed the decoder's limit. 0 => consumer.DefaultMaxPurgeIDs.
	MaxPurgeIDs int
}

// Encoder writes frames to an ordered byte stream.
// It is not safe for concurrent use.
type Encoder struct {
	w         *bufio.Writer
	threshold int
	maxPurge  int
	buf       []byte // frame scratch
	zbuf      []byte // compression scratch
	written   int64
}

// NewEncoder returns an Encoder writing to w. Frames are buffered until Flush.
func NewEncoder(w io.Writer, opt EncoderOptions) *Encoder {
	if opt.CompressThreshold == 0 {
		opt.CompressThreshold = DefaultCompressThreshold
	}
	if opt.MaxPurgeIDs <= 0 {
		opt.MaxPurgeIDs = consumer.DefaultMaxPurgeIDs
	}
	return &Encoder{
		w:         bufio.NewWriter(w),
		threshold: opt.CompressThreshold,
		maxPurge:  opt.MaxPurgeIDs,
	}
}

// Put writes a full-payload frame.
func (e *Encoder) Put(kind payload.Kind, id payload.ID, data []byte) error {
	var flags byte
	if e.threshold > 0 && len(data) >= e.threshold {
		e.zbuf = s2.Encode(e.zbuf[:cap(e.zbuf)], data)
		if len(e.zbuf) < len(data) {
			data, flags = e.zbuf, FlagS2
		}
	}
	b := e.header(OpPut, flags, kind)
	b = binary.LittleEndian.AppendUint32(b, uint32(id))
	b = binary.AppendUvarint(b, uint64(len(data)))
	b = append(b, data...)
	return e.write(b)
}

// Use writes a reference frame.
func (e *Encoder) Use(kind payload.Kind, id payload.ID) error {
	b := e.header(OpUse, 0, kind)
	b = binary.LittleEndian.AppendUint32(b, uint32(id))
	return e.write(b)
}

// Purge writes purge frames for ids of kind, at most MaxPurgeIDs ids per
// frame. An empty list writes nothing.
func (e *Encoder) Purge(kind payload.Kind, ids []payload.ID) error {
	for len(ids) > 0 {
		chunk := ids[:min(len(ids), e.maxPurge)]
		ids = ids[len(chunk):]

		b := e.header(OpPurge, 0, kind)
		b = binary.AppendUvarint(b, uint64(len(chunk)))
		for _, id := range chunk {
			b = binary.LittleEndian.AppendUint32(b, uint32(id))
		}
		if err := e.write(b); err != nil {
			return err
		}
	}
	return nil
}

// PurgeAll writes a full-invalidate frame.
func (e *Encoder) PurgeAll() error {
	return e.write(e.header(OpPurgeAll, 0, 0))
}

// Encode writes f using the method matching f.Op.
func (e *Encoder) Encode(f *Frame) error {
	switch f.Op {
	case OpPut:
		return e.Put(f.Kind, f.ID, f.Data)
	case OpUse:
		return e.Use(f.Kind, f.ID)
	case OpPurge:
		return e.Purge(f.Kind, f.IDs)
	case OpPurgeAll:
		return e.PurgeAll()
	default:
		return fmt.Errorf("%w: %s", ErrUnknownOp, f.Op)
	}
}

// Flush writes any buffered frames to the underlying writer.
func (e *Encoder) Flush() error { return e.w.Flush() }

// Written returns the number of frame bytes accepted so far.
func (e *Encoder) Written() int64 { return e.written }

func (e *Encoder) header(op Op, flags byte, kind payload.Kind) []byte {
	return append(e.buf[:0], byte(op), flags, byte(kind))
}

func (e *Encoder) write(b []byte) error {
	e.buf = b[:0]
	n, err := e.w.Write(b)
	e.written += int64(n)
	if err != nil {
		return fmt.Errorf("stream: write frame: %w", err)
	}
	return nil
}
