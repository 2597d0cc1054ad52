// Package policy defines how a ledger orders its entries for eviction.
package policy

// Node is the minimal contract a ledger entry must satisfy for a policy.
// It provides read-only access to the key and the accounted size.
type Node[K comparable] interface {
	Key() K
	Size() int64
}

// Hooks expose O(1) list operations that a policy can use to manipulate
// the ledger's intrusive MRU/LRU list. Implementations are provided by the ledger.
//
// Important: hooks manage only the list; the ledger owns the key->node map
// and the byte accounting. Back and Len are not needed by LRU; they are there
// for policies that inspect the list (e.g. segmented or scan-resistant ones).
type Hooks[K comparable] interface {
	// MoveToFront promotes the node to MRU.
	MoveToFront(Node[K])
	// PushFront inserts the node at MRU (used on admission).
	PushFront(Node[K])
	// Back returns the current LRU node (or nil if empty).
	Back() Node[K]
	// Len returns the number of live nodes.
	Len() int
}

// LedgerPolicy is a policy instance bound to one ledger's hooks.
//
// Semantics:
//   - OnAdd places a newly admitted node. It must not evict: evictions are
//     only ever decided by the ledger owner, so that every one of them can be
//     reported downstream.
//   - OnGet typically promotes the node (e.g., move to MRU).
//   - OnRemove is a notification to update policy-internal state.
//     The ledger performs actual unlinking.
type LedgerPolicy[K comparable] interface {
	OnAdd(Node[K])
	OnGet(Node[K])
	OnRemove(Node[K])
}

// Policy is a factory that creates ledger-local policy instances
// bound to a particular ledger's hooks.
type Policy[K comparable] interface {
	New(Hooks[K]) LedgerPolicy[K]
}
