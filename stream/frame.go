package stream

import (
	"errors"
	"strconv"

	"github.com/IvanBrykalov/paintcache/payload"
)

// Op identifies a frame type.
type Op uint8

const (
	// OpPut carries a full payload; the consumer stores it.
	OpPut Op = iota + 1
	// OpUse references a payload the consumer already holds.
	OpUse
	// OpPurge lists ids of one kind to drop.
	OpPurge
	// OpPurgeAll drops everything on the consumer.
	OpPurgeAll
)

func (o Op) String() string {
	switch o {
	case OpPut:
		return "put"
	case OpUse:
		return "use"
	case OpPurge:
		return "purge"
	case OpPurgeAll:
		return "purge_all"
	default:
		return "op(" + strconv.Itoa(int(o)) + ")"
	}
}

// FlagS2 marks a put frame whose data is an s2-compressed block.
const FlagS2 byte = 1 << 0

const headerLen = 3

var (
	// ErrUnknownOp is returned when a frame header carries an unknown op or kind.
	ErrUnknownOp = errors.New("stream: unknown op")
	// ErrFrameTooLarge is returned when a length or count exceeds the decoder limits.
	ErrFrameTooLarge = errors.New("stream: frame too large")
	// ErrCorruptPayload is returned when a compressed payload fails to decode.
	ErrCorruptPayload = errors.New("stream: corrupt payload")
	// ErrMissingPayload is returned by the Replayer when a use frame references
	// an id the consumer does not hold (the stream was reordered or truncated).
	ErrMissingPayload = errors.New("stream: reference to missing payload")
)

// Frame is one decoded stream operation. Only the fields relevant to Op
// are set: ID and Data for put, ID for use, IDs for purge.
type Frame struct {
	Op   Op
	Kind payload.Kind
	ID   payload.ID
	Data []byte
	IDs  []payload.ID
}
