// Package payload defines the cacheable payload kinds and their id space.
package payload

import "strconv"

// ID is a producer-assigned cache id. It is unique within one Kind while an
// entry for it is live and may be reused once that entry has been purged.
type ID uint32

// Kind is a category of cacheable payload. Each kind has its own id namespace.
type Kind uint8

const (
	// Path is vector path geometry.
	Path Kind = iota
	// TextBlob is a prerendered glyph-run / text-layout blob.
	TextBlob

	// NumKinds is the number of valid kinds.
	NumKinds = 2
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool { return k < NumKinds }

// String returns a stable lowercase name, suitable for metric labels.
func (k Kind) String() string {
	switch k {
	case Path:
		return "path"
	case TextBlob:
		return "text_blob"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}
