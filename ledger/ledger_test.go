package ledger

import (
	"testing"

	"github.com/IvanBrykalov/paintcache/payload"
)

func pk(id payload.ID) Key { return Key{Kind: payload.Path, ID: id} }
func tk(id payload.ID) Key { return Key{Kind: payload.TextBlob, ID: id} }

// keys returns the ledger contents from MRU to LRU.
func keys(l *Ledger) []Key {
	var out []Key
	l.Each(func(k Key, _ int64) bool {
		out = append(out, k)
		return true
	})
	return out
}

func TestLedger_InsertContainsPromotes(t *testing.T) {
	t.Parallel()

	l := New(nil)
	l.Insert(pk(1), 10) // LRU = 1
	l.Insert(pk(2), 20) // MRU = 2

	if !l.Contains(pk(1)) { // promote 1 -> MRU
		t.Fatal("expect hit for path/1")
	}
	got := keys(l)
	if len(got) != 2 || got[0] != pk(1) || got[1] != pk(2) {
		t.Fatalf("order after promotion: %v", got)
	}

	k, size, ok := l.EvictOldest()
	if !ok || k != pk(2) || size != 20 {
		t.Fatalf("EvictOldest: got %v size=%d ok=%v", k, size, ok)
	}
	if l.Len() != 1 {
		t.Fatalf("Len want 1, got %d", l.Len())
	}
}

// Paths and text blobs with the same numeric id are distinct entries.
func TestLedger_KindsHaveSeparateNamespaces(t *testing.T) {
	t.Parallel()

	l := New(nil)
	l.Insert(pk(7), 1)
	if l.Contains(tk(7)) {
		t.Fatal("text_blob/7 must not be visible through path/7")
	}
	l.Insert(tk(7), 2)
	if l.Len() != 2 {
		t.Fatalf("Len want 2, got %d", l.Len())
	}
}

// Recency is one shared timeline: the oldest entry goes first regardless of kind.
func TestLedger_EvictOldestAcrossKinds(t *testing.T) {
	t.Parallel()

	l := New(nil)
	l.Insert(tk(1), 5)
	l.Insert(pk(1), 5)
	l.Insert(tk(2), 5)
	l.Contains(tk(1))

	want := []Key{pk(1), tk(2), tk(1)}
	for i, w := range want {
		k, _, ok := l.EvictOldest()
		if !ok || k != w {
			t.Fatalf("eviction %d: want %v, got %v ok=%v", i, w, k, ok)
		}
	}
	if _, _, ok := l.EvictOldest(); ok {
		t.Fatal("EvictOldest on empty ledger must report !ok")
	}
}

func TestLedger_MissAndPeekDoNotPromote(t *testing.T) {
	t.Parallel()

	l := New(nil)
	l.Insert(pk(1), 3)
	l.Insert(pk(2), 4)

	if l.Contains(pk(99)) {
		t.Fatal("unexpected hit")
	}
	if size, ok := l.Peek(pk(1)); !ok || size != 3 {
		t.Fatalf("Peek: size=%d ok=%v", size, ok)
	}
	if k, _, _ := l.EvictOldest(); k != pk(1) {
		t.Fatalf("Peek must not promote; evicted %v", k)
	}
}

func TestLedger_RemoveAll(t *testing.T) {
	t.Parallel()

	l := New(nil)
	l.Insert(pk(1), 1)
	l.Insert(tk(1), 1)

	if n := l.RemoveAll(); n != 2 {
		t.Fatalf("RemoveAll want 2, got %d", n)
	}
	if l.Len() != 0 || l.Contains(pk(1)) {
		t.Fatal("ledger must be empty after RemoveAll")
	}
	if n := l.RemoveAll(); n != 0 {
		t.Fatalf("second RemoveAll want 0, got %d", n)
	}
	// Ids are reusable once dropped.
	l.Insert(pk(1), 9)
	if !l.Contains(pk(1)) {
		t.Fatal("reinserted key must be live")
	}
}

func TestLedger_InsertLiveKeyPanics(t *testing.T) {
	t.Parallel()

	l := New(nil)
	l.Insert(pk(1), 1)

	defer func() {
		if recover() == nil {
			t.Fatal("Insert of a live key must panic")
		}
	}()
	l.Insert(pk(1), 2)
}

// Hooks expose the LRU tail and length to policies that need them.
func TestLedger_HooksBackAndLen(t *testing.T) {
	t.Parallel()

	l := New(nil)
	h := ledgerHooks{l: l}
	if h.Back() != nil || h.Len() != 0 {
		t.Fatal("empty ledger: Back must be nil and Len 0")
	}

	l.Insert(pk(1), 1)
	l.Insert(tk(2), 1)
	if got := h.Back(); got == nil || got.Key() != pk(1) {
		t.Fatalf("Back want path/1, got %v", got)
	}
	if h.Len() != 2 {
		t.Fatalf("Len want 2, got %d", h.Len())
	}
}
