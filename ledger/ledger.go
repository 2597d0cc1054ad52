// Package ledger implements the access-ordered (kind, id) -> size ledger
// used by the producer cache to mirror what the consumer holds.
//
// A Ledger is not safe for concurrent use; it is owned by exactly one
// goroutine (the one building the operation stream).
package ledger

import (
	"fmt"

	"github.com/IvanBrykalov/paintcache/payload"
	"github.com/IvanBrykalov/paintcache/policy"
	"github.com/IvanBrykalov/paintcache/policy/lru"
)

// Key identifies one ledger entry. Ids of different kinds never collide.
type Key struct {
	Kind payload.Kind
	ID   payload.ID
}

func (k Key) String() string { return fmt.Sprintf("%s/%d", k.Kind, k.ID) }

// Ledger keeps a map[Key]*node for lookups and an intrusive MRU↔LRU list
// shared by all kinds. All operations are O(1) expected.
type Ledger struct {
	m    map[Key]*node
	head *node // MRU
	tail *node // LRU
	len  int

	pol policy.LedgerPolicy[Key]
}

// New constructs an empty ledger. A nil pol means LRU.
func New(pol policy.Policy[Key]) *Ledger {
	if pol == nil {
		pol = lru.New[Key]()
	}
	l := &Ledger{m: make(map[Key]*node)}
	l.pol = pol.New(ledgerHooks{l: l})
	return l
}

// Contains reports whether k is live and, on a hit, promotes it
// according to the policy.
func (l *Ledger) Contains(k Key) bool {
	n, ok := l.m[k]
	if !ok {
		return false
	}
	l.pol.OnGet(n)
	return true
}

// Peek returns the size recorded for k without touching recency.
func (l *Ledger) Peek(k Key) (int64, bool) {
	n, ok := l.m[k]
	if !ok {
		return 0, false
	}
	return n.size, true
}

// Insert adds a NEW entry as MRU. Callers check Contains first;
// inserting a live key is a programmer error and panics.
func (l *Ledger) Insert(k Key, size int64) {
	if _, exists := l.m[k]; exists {
		panic("ledger: Insert of live key " + k.String())
	}
	n := &node{key: k, size: size}
	l.m[k] = n
	l.pol.OnAdd(n)
}

// EvictOldest removes and returns the least-recently-used entry.
// ok is false when the ledger is empty.
func (l *Ledger) EvictOldest() (k Key, size int64, ok bool) {
	n := l.tail
	if n == nil {
		return Key{}, 0, false
	}
	l.pol.OnRemove(n)
	l.removeNode(n)
	delete(l.m, n.key)
	return n.key, n.size, true
}

// RemoveAll clears the ledger and returns how many entries were dropped.
func (l *Ledger) RemoveAll() int {
	dropped := l.len
	for n := l.head; n != nil; n = n.next {
		l.pol.OnRemove(n)
	}
	clear(l.m)
	l.head, l.tail, l.len = nil, nil, 0
	return dropped
}

// Len returns the number of live entries.
func (l *Ledger) Len() int { return l.len }

// Each calls fn for every entry from MRU to LRU until fn returns false.
// fn must not mutate the ledger.
func (l *Ledger) Each(fn func(k Key, size int64) bool) {
	for n := l.head; n != nil; n = n.next {
		if !fn(n.key, n.size) {
			return
		}
	}
}

// -------------------- list internals --------------------

// insertFront inserts n at MRU in O(1).
func (l *Ledger) insertFront(n *node) {
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
	l.len++
}

// moveToFront promotes n to MRU in O(1).
func (l *Ledger) moveToFront(n *node) {
	if n == l.head {
		return
	}
	// detach
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if l.tail == n {
		l.tail = n.prev
	}
	// insert at head
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
}

// removeNode unlinks n in O(1).
func (l *Ledger) removeNode(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if l.head == n {
		l.head = n.next
	}
	if l.tail == n {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
	l.len--
}

// -------------------- policy hooks --------------------

// ledgerHooks adapts the ledger's list operations to policy.Hooks.
type ledgerHooks struct{ l *Ledger }

func (h ledgerHooks) MoveToFront(x policy.Node[Key]) { h.l.moveToFront(x.(*node)) }
func (h ledgerHooks) PushFront(x policy.Node[Key])   { h.l.insertFront(x.(*node)) }
func (h ledgerHooks) Back() policy.Node[Key] {
	if h.l.tail == nil {
		return nil
	}
	return h.l.tail
}
func (h ledgerHooks) Len() int { return h.l.len }
