package stream

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/s2"

	"github.com/IvanBrykalov/paintcache/consumer"
	"github.com/IvanBrykalov/paintcache/payload"
)

// DefaultMaxPayloadBytes bounds a single decoded payload when
// DecoderOptions.MaxPayloadBytes is 0.
const DefaultMaxPayloadBytes = 16 << 20

// DecoderOptions configures a Decoder. Zero values select the defaults.
type DecoderOptions struct {
	MaxPayloadBytes int // 0 => DefaultMaxPayloadBytes
	MaxPurgeIDs     int // 0 => consumer.DefaultMaxPurgeIDs
}

// Decoder reads frames from an ordered byte stream. Lengths and counts are
// peer-controlled and checked against the configured limits before any
// allocation. It is not safe for concurrent use.
type Decoder struct {
	r          *bufio.Reader
	maxPayload int
	maxPurge   int
	hdr        [headerLen]byte
	word       [4]byte
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader, opt DecoderOptions) *Decoder {
	if opt.MaxPayloadBytes <= 0 {
		opt.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if opt.MaxPurgeIDs <= 0 {
		opt.MaxPurgeIDs = consumer.DefaultMaxPurgeIDs
	}
	return &Decoder{
		r:          bufio.NewReader(r),
		maxPayload: opt.MaxPayloadBytes,
		maxPurge:   opt.MaxPurgeIDs,
	}
}

// Decode reads the next frame into f. It returns io.EOF when the stream ends
// cleanly on a frame boundary and io.ErrUnexpectedEOF when it ends mid-frame.
//
// f.Data is freshly allocated for every put frame and may be retained.
// f.IDs reuses its backing array across calls.
func (d *Decoder) Decode(f *Frame) error {
	if _, err := io.ReadFull(d.r, d.hdr[:]); err != nil {
		return err
	}
	op, flags, kind := Op(d.hdr[0]), d.hdr[1], payload.Kind(d.hdr[2])
	*f = Frame{Op: op, Kind: kind, IDs: f.IDs[:0]}

	if op != OpPurgeAll && !kind.Valid() {
		return fmt.Errorf("%w: kind %d", ErrUnknownOp, kind)
	}

	switch op {
	case OpPut:
		id, err := d.readID()
		if err != nil {
			return err
		}
		data, err := d.readPayload(flags)
		if err != nil {
			return err
		}
		f.ID, f.Data = id, data
	case OpUse:
		id, err := d.readID()
		if err != nil {
			return err
		}
		f.ID = id
	case OpPurge:
		n, err := d.readCount(d.maxPurge)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			id, err := d.readID()
			if err != nil {
				return err
			}
			f.IDs = append(f.IDs, id)
		}
	case OpPurgeAll:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownOp, op)
	}
	return nil
}

func (d *Decoder) readID() (payload.ID, error) {
	if _, err := io.ReadFull(d.r, d.word[:]); err != nil {
		return 0, noEOF(err)
	}
	return payload.ID(binary.LittleEndian.Uint32(d.word[:])), nil
}

func (d *Decoder) readCount(limit int) (int, error) {
	n, err := binary.ReadUvarint(d.r)
	if err != nil {
		return 0, noEOF(err)
	}
	if n > uint64(limit) {
		return 0, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, limit)
	}
	return int(n), nil
}

func (d *Decoder) readPayload(flags byte) ([]byte, error) {
	n, err := d.readCount(d.maxPayload)
	if err != nil {
		return nil, err
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(d.r, raw); err != nil {
		return nil, noEOF(err)
	}
	if flags&FlagS2 == 0 {
		return raw, nil
	}
	size, err := s2.DecodedLen(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	if size > d.maxPayload {
		return nil, fmt.Errorf("%w: decoded %d > %d", ErrFrameTooLarge, size, d.maxPayload)
	}
	data, err := s2.Decode(make([]byte, size), raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	return data, nil
}

// noEOF converts a clean EOF inside a frame into io.ErrUnexpectedEOF.
func noEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
