// Package prefixtree defines an in-memory prefix tree over sequences of
// symbols.
//
// A tree is built from Nodes whose children are addressed by a slot key.  The
// sparse variant keys children by the symbol itself; the dense variant gives
// each node a fixed number of slots and maps every symbol to a slot index,
// either through a caller-supplied alphabet or by reading the symbol as a
// decimal digit.  Both variants share one engine, Tree, parameterized over an
// Indexer.
//
// Every operation walks the sequence with an explicit cursor, so sequences of
// any length are handled without growing the call stack.
//
// Trees are not safe for concurrent use.
package prefixtree

import "weak"

// parentLink is a node's non-owning reference to the slot holding it.
type parentLink[K comparable] struct {
	key    K
	node   weak.Pointer[Node[K]]
	linked bool
}

// Node is a prefix tree node.
type Node[K comparable] struct {
	parent   parentLink[K]
	children slots[K]
	data     any
	end      bool
	seq      string
	root     bool
	// tally counts the end-of-word nodes of the tree the node is installed
	// in.  It is shared by every installed node and nil for detached ones.
	tally *int
}

func newRoot[K comparable](s slots[K]) *Node[K] {
	return &Node[K]{children: s, root: true, tally: new(int)}
}

// retally moves the end-of-word nodes under n, n included, from the tally
// they are counted in to tally.
func retally[K comparable](n *Node[K], tally *int) {
	if n == nil {
		return
	}
	stack := []*Node[K]{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.tally == tally {
			continue
		}
		if cur.end {
			if cur.tally != nil {
				*cur.tally--
			}
			if tally != nil {
				*tally++
			}
		}
		cur.tally = tally
		cur.children.each(func(c *Node[K]) {
			stack = append(stack, c)
		})
	}
}

// NewSparseRoot creates and returns a new, empty sparse root Node.
func NewSparseRoot() *Node[rune] {
	return newRoot[rune](newMapSlots[rune]())
}

// NewDenseRoot creates and returns a new, empty dense root Node with the
// specified number of child slots.
func NewDenseRoot(degree int) (*Node[int], error) {
	if degree <= 0 {
		return nil, configErrorf("degree must be positive, got %d", degree)
	}
	return newRoot[int](newArraySlots(degree)), nil
}

// NewChild creates a node to be held by parent at slot key.  The returned node
// is not yet installed in parent; use AddChild for that.
func NewChild[K comparable](parent *Node[K], key K) (*Node[K], error) {
	if parent == nil {
		return nil, configErrorf("non-root node requires a parent")
	}
	if !parent.children.valid(key) {
		return nil, configErrorf("slot key %v is out of range for parent", key)
	}
	return &Node[K]{
		parent: parentLink[K]{
			key:    key,
			node:   weak.Make(parent),
			linked: true,
		},
		children: parent.children.fresh(),
	}, nil
}

// Update stores data on the receiver.  The receiver is end-of-word iff data is
// present (non-nil); passing nil un-terminates the node in place and drops its
// cached sequence.  The change is reflected in the Len of the tree holding
// the receiver, but un-terminating a node this way never prunes it; use
// Tree.Delete for that.
func (n *Node[K]) Update(data any) {
	end := data != nil
	if n.tally != nil && end != n.end {
		if end {
			*n.tally++
		} else {
			*n.tally--
		}
	}
	n.end = end
	n.data = data
	if !n.end {
		n.seq = ""
	}
}

// Unlink clears the receiver's parent link.
func (n *Node[K]) Unlink() {
	n.parent = parentLink[K]{}
}

// HasChildren returns true iff any child slot is occupied.
func (n *Node[K]) HasChildren() bool {
	return n.children.len() > 0
}

// HasChild returns true iff the slot at key is occupied.  Out-of-range keys
// report false.
func (n *Node[K]) HasChild(key K) bool {
	return n.children.get(key) != nil
}

// Child returns the child at key, or nil.
func (n *Node[K]) Child(key K) *Node[K] {
	return n.children.get(key)
}

// AddChild installs child at key and returns the node previously held there,
// if any.  An out-of-range key or a nil child leaves the receiver unchanged
// and returns nil.
func (n *Node[K]) AddChild(key K, child *Node[K]) *Node[K] {
	if child == nil || !n.children.valid(key) {
		return nil
	}
	prev := n.children.put(key, child)
	if prev != child {
		retally(prev, nil)
		retally(child, n.tally)
	}
	return prev
}

// DeleteChild vacates the slot at key, un-terminating and unlinking the child
// that held it.  The child's own children are left in place, but no longer
// count towards the tree's Len.
func (n *Node[K]) DeleteChild(key K) {
	child := n.children.get(key)
	if child == nil {
		return
	}
	child.Update(nil)
	retally(child, nil)
	child.Unlink()
	n.children.remove(key)
}

// Parent returns the slot key and node the receiver hangs from.  ok is false
// for roots and for unlinked nodes.
func (n *Node[K]) Parent() (key K, parent *Node[K], ok bool) {
	if !n.parent.linked {
		return key, nil, false
	}
	parent = n.parent.node.Value()
	if parent == nil {
		return key, nil, false
	}
	return n.parent.key, parent, true
}

// IsRoot returns true iff the receiver was created as a root.
func (n *Node[K]) IsRoot() bool {
	return n.root
}

// Data returns the receiver's payload; ok is false if it holds none.
func (n *Node[K]) Data() (data any, ok bool) {
	return n.data, n.end
}

// IsEndOfWord returns true iff some stored sequence ends at the receiver.
func (n *Node[K]) IsEndOfWord() bool {
	return n.end
}

// Sequence returns the sequence stored at the receiver, or "" if it is not
// end-of-word.
func (n *Node[K]) Sequence() string {
	return n.seq
}

// Degree returns the number of child slots, or 0 if unbounded.
func (n *Node[K]) Degree() int {
	return n.children.capacity()
}
