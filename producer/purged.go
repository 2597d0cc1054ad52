package producer

import "github.com/IvanBrykalov/paintcache/payload"

// Purged collects the ids evicted by Purge, one list per kind, in eviction
// order. A Purged can be Reset and reused across calls to avoid allocations.
type Purged struct {
	ids [payload.NumKinds][]payload.ID
}

// IDs returns the ids purged for kind. The slice is owned by p and is only
// valid until the next Reset.
func (p *Purged) IDs(kind payload.Kind) []payload.ID {
	if !kind.Valid() {
		return nil
	}
	return p.ids[kind]
}

// Len returns the total number of purged ids across kinds.
func (p *Purged) Len() int {
	n := 0
	for _, ids := range p.ids {
		n += len(ids)
	}
	return n
}

// Reset empties all lists, keeping their capacity.
func (p *Purged) Reset() {
	for i := range p.ids {
		p.ids[i] = p.ids[i][:0]
	}
}

func (p *Purged) add(kind payload.Kind, id payload.ID) {
	p.ids[kind] = append(p.ids[kind], id)
}
