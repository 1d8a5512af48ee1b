// Package trie implements a prefix tree keyed by token id sequences.
//
// Lookups are exact: Get never falls back to a shorter key. Callers that
// want back-off behaviour try progressively shorter slices themselves, or
// use LongestSuffix.
package trie

// Trie maps []int keys to values of type V. The zero value is an empty trie
// ready to use. A Trie is not safe for concurrent mutation.
type Trie[V any] struct {
	root *node[V]
	size int
}

type node[V any] struct {
	children map[int]*node[V]
	value    V
	set      bool
}

// New returns an empty trie.
func New[V any]() *Trie[V] {
	return &Trie[V]{}
}

// Add stores v under key, replacing any previous value.
func (t *Trie[V]) Add(key []int, v V) {
	if t.root == nil {
		t.root = &node[V]{}
	}
	n := t.root
	for _, k := range key {
		if n.children == nil {
			n.children = make(map[int]*node[V])
		}
		next, ok := n.children[k]
		if !ok {
			next = &node[V]{}
			n.children[k] = next
		}
		n = next
	}
	if !n.set {
		t.size++
	}
	n.value = v
	n.set = true
}

// Get returns the value stored under exactly key.
func (t *Trie[V]) Get(key []int) (V, bool) {
	var zero V
	n := t.find(key)
	if n == nil || !n.set {
		return zero, false
	}
	return n.value, true
}

func (t *Trie[V]) find(key []int) *node[V] {
	n := t.root
	for _, k := range key {
		if n == nil {
			return nil
		}
		n = n.children[k]
	}
	return n
}

// Len returns the number of stored keys.
func (t *Trie[V]) Len() int {
	return t.size
}

// LongestSuffix returns the value of the longest suffix of seq that is a key,
// together with the suffix length. The empty suffix is tried last.
func (t *Trie[V]) LongestSuffix(seq []int) (V, int, bool) {
	for i := 0; i <= len(seq); i++ {
		if v, ok := t.Get(seq[i:]); ok {
			return v, len(seq) - i, true
		}
	}
	var zero V
	return zero, 0, false
}

// Clone returns a structural copy of t. copyValue is applied to every stored
// value; pass nil to share values between the copies.
func (t *Trie[V]) Clone(copyValue func(V) V) *Trie[V] {
	out := &Trie[V]{size: t.size}
	if t.root != nil {
		out.root = cloneNode(t.root, copyValue)
	}
	return out
}

func cloneNode[V any](n *node[V], copyValue func(V) V) *node[V] {
	c := &node[V]{value: n.value, set: n.set}
	if n.set && copyValue != nil {
		c.value = copyValue(n.value)
	}
	if len(n.children) > 0 {
		c.children = make(map[int]*node[V], len(n.children))
		for k, child := range n.children {
			c.children[k] = cloneNode(child, copyValue)
		}
	}
	return c
}

// Equal reports whether a and b store the same keys with values that eq
// considers equal. A nil trie equals an empty one.
func Equal[V any](a, b *Trie[V], eq func(V, V) bool) bool {
	if a.length() != b.length() {
		return false
	}
	if a.length() == 0 {
		return true
	}
	return nodesEqual(a.root, b.root, eq)
}

func (t *Trie[V]) length() int {
	if t == nil {
		return 0
	}
	return t.size
}

func nodesEqual[V any](a, b *node[V], eq func(V, V) bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.set != b.set || (a.set && !eq(a.value, b.value)) {
		return false
	}
	for k, ca := range a.children {
		if !nodesEqual(ca, b.children[k], eq) {
			return false
		}
	}
	for k, cb := range b.children {
		if _, ok := a.children[k]; !ok && cb != nil {
			return false
		}
	}
	return true
}
