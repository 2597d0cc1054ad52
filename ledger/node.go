package ledger

// node is an intrusive doubly linked list element owned by a Ledger.
// It carries only the key and the accounted size; payload bytes never
// live here.
type node struct {
	key  Key
	size int64

	// Intrusive list links: head is MRU, tail is LRU.
	prev *node
	next *node
}

// Key returns the node key (part of policy.Node interface).
func (n *node) Key() Key { return n.key }

// Size returns the accounted size in bytes (part of policy.Node interface).
func (n *node) Size() int64 { return n.size }
