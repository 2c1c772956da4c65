package prefixtree

import (
	"unicode/utf8"

	"go.uber.org/zap"
)

// Index is the sequence-level operation set shared by every Tree variant.
type Index interface {
	Name() string
	Insert(seq string, data any) error
	Store(seq string, data any) (any, error)
	Search(seq string) (data any, ok bool)
	Update(seq string, data any) bool
	Delete(seq string) bool
	Validate(seq string) error
	Trace(seq string) []Step
	Len() int
	Clear()
}

var (
	_ Index = (*Tree[rune])(nil)
	_ Index = (*Tree[int])(nil)
)

// Step describes one position of a walk along a sequence.  Step 0 is the root.
type Step struct {
	Depth int
	// Symbol is the symbol consumed to reach this step; 0 at the root.
	Symbol    rune
	Reached   bool
	EndOfWord bool
	Data      any
}

// Tree is a prefix tree whose nodes address their children with slot keys of
// type K, as resolved by an Indexer.
type Tree[K comparable] struct {
	name      string
	log       *zap.Logger
	indexer   Indexer[K]
	root      *Node[K]
	nextIndex int
}

// New creates and returns a new, empty Tree using the specified Indexer.
func New[K comparable](indexer Indexer[K], optFns ...Option) *Tree[K] {
	name := "sparse"
	if indexer.SlotCount() > 0 {
		name = "dense"
	}
	opts := buildOptions(name, optFns...)
	return &Tree[K]{
		name:      opts.name,
		log:       opts.logger.With(zap.String("tree", opts.name)),
		indexer:   indexer,
		root:      newRoot(indexer.newSlots()),
		nextIndex: 1,
	}
}

// NewSparse creates and returns a new, empty sparse Tree.
func NewSparse(optFns ...Option) *Tree[rune] {
	return New[rune](SparseIndexer{}, optFns...)
}

// NewDense creates and returns a new, empty dense Tree with degree slots per
// node.  If alphabet is empty, symbols are read as decimal digits.
func NewDense(degree int, alphabet string, optFns ...Option) (*Tree[int], error) {
	indexer, err := NewDenseIndexer(degree, alphabet)
	if err != nil {
		return nil, err
	}
	return New[int](indexer, optFns...), nil
}

// Name returns the receiver's name.
func (t *Tree[K]) Name() string {
	return t.name
}

// Root returns the receiver's root node.
func (t *Tree[K]) Root() *Node[K] {
	return t.root
}

// Indexer returns the receiver's Indexer.
func (t *Tree[K]) Indexer() Indexer[K] {
	return t.indexer
}

// Len returns the number of sequences stored in the receiver.
func (t *Tree[K]) Len() int {
	return *t.root.tally
}

// NextIndex returns the data value the next Insert without data will store.
func (t *Tree[K]) NextIndex() int {
	return t.nextIndex
}

// malformedAt reports whether r, ranged from seq at byte offset i, stands for
// a malformed byte rather than a literal U+FFFD.
func malformedAt(seq string, i int, r rune) bool {
	if r != utf8.RuneError {
		return false
	}
	_, width := utf8.DecodeRuneInString(seq[i:])
	return width == 1
}

// resolve maps every symbol in seq to its slot key.
func (t *Tree[K]) resolve(seq string) ([]K, error) {
	keys := make([]K, 0, utf8.RuneCountInString(seq))
	for i, r := range seq {
		if malformedAt(seq, i, r) {
			return nil, &InvalidSymbolError{Symbol: r, Position: len(keys), Malformed: true}
		}
		key, ok := t.indexer.Resolve(r)
		if !ok {
			return nil, &InvalidSymbolError{Symbol: r, Position: len(keys)}
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Validate returns the error Insert would return for seq, without modifying
// the receiver.  It reads only the receiver's Indexer, so concurrent calls to
// Validate are safe.
func (t *Tree[K]) Validate(seq string) error {
	if seq == "" {
		return ErrEmptySequence
	}
	pos := 0
	for i, r := range seq {
		if malformedAt(seq, i, r) {
			return &InvalidSymbolError{Symbol: r, Position: pos, Malformed: true}
		}
		if _, ok := t.indexer.Resolve(r); !ok {
			return &InvalidSymbolError{Symbol: r, Position: pos}
		}
		pos++
	}
	return nil
}

// Insert stores seq with the specified data.  If data is nil, the receiver's
// next auto-generated index (starting at 1) is stored instead.  Every symbol
// is resolved before any node is created, so a failed Insert leaves the
// receiver unchanged.
func (t *Tree[K]) Insert(seq string, data any) error {
	_, err := t.Store(seq, data)
	return err
}

// Store is like Insert, but also returns the data stored: data itself, or the
// auto-generated index used in its place.
func (t *Tree[K]) Store(seq string, data any) (any, error) {
	if seq == "" {
		return nil, ErrEmptySequence
	}
	keys, err := t.resolve(seq)
	if err != nil {
		t.log.Debug("insert rejected", zap.String("sequence", seq), zap.Error(err))
		return nil, err
	}
	n := t.root
	for _, key := range keys {
		child := n.Child(key)
		if child == nil {
			if child, err = NewChild(n, key); err != nil {
				return nil, err
			}
			n.AddChild(key, child)
		}
		n = child
	}
	if data == nil {
		data = t.nextIndex
		t.nextIndex++
	}
	n.seq = seq
	n.Update(data)
	return data, nil
}

// locate walks seq from the root without creating nodes, returning the node
// reached or nil if the walk diverges.
func (t *Tree[K]) locate(seq string) *Node[K] {
	n := t.root
	for i, r := range seq {
		if malformedAt(seq, i, r) {
			return nil
		}
		key, ok := t.indexer.Resolve(r)
		if !ok {
			return nil
		}
		if n = n.Child(key); n == nil {
			return nil
		}
	}
	return n
}

// DataNode returns the end-of-word node for seq, or nil.  Updating the node
// in place is reflected in Len, but leaves pruning to Delete.
func (t *Tree[K]) DataNode(seq string) *Node[K] {
	n := t.locate(seq)
	if n == nil || !n.end {
		return nil
	}
	return n
}

// Search returns the data stored for seq.  ok is false if seq is not stored,
// including when seq is only a prefix of stored sequences.
func (t *Tree[K]) Search(seq string) (data any, ok bool) {
	n := t.DataNode(seq)
	if n == nil {
		return nil, false
	}
	return n.Data()
}

// Update replaces the data stored for seq, returning false if seq is not
// stored.  A nil data is refused; use Delete to remove a sequence.
func (t *Tree[K]) Update(seq string, data any) bool {
	if data == nil {
		return false
	}
	n := t.DataNode(seq)
	if n == nil {
		return false
	}
	n.Update(data)
	return true
}

// Delete removes seq, returning false if it is not stored.  If seq prefixes
// other stored sequences its node is only un-terminated; otherwise the node
// and every ancestor left childless and unterminated are pruned.  The root is
// never pruned.
func (t *Tree[K]) Delete(seq string) bool {
	n := t.DataNode(seq)
	if n == nil {
		return false
	}
	if n.HasChildren() {
		n.Update(nil)
		return true
	}
	pruned := 0
	for !n.IsRoot() {
		key, parent, ok := n.Parent()
		if !ok {
			break
		}
		parent.DeleteChild(key)
		pruned++
		if parent.IsRoot() || parent.end || parent.HasChildren() {
			break
		}
		n = parent
	}
	t.log.Debug("pruned sequence", zap.String("sequence", seq), zap.Int("nodes", pruned))
	return true
}

// Path returns the nodes along seq: element 0 is the root and element i is the
// node reached after i symbols, or nil once the walk has diverged.  The result
// always has one more element than seq has symbols.
func (t *Tree[K]) Path(seq string) []*Node[K] {
	path := make([]*Node[K], utf8.RuneCountInString(seq)+1)
	path[0] = t.root
	n := t.root
	i := 0
	for j, r := range seq {
		if malformedAt(seq, j, r) {
			break
		}
		key, ok := t.indexer.Resolve(r)
		if !ok {
			break
		}
		if n = n.Child(key); n == nil {
			break
		}
		i++
		path[i] = n
	}
	return path
}

// Trace is like Path, but describes each position rather than returning the
// nodes themselves.
func (t *Tree[K]) Trace(seq string) []Step {
	path := t.Path(seq)
	steps := make([]Step, len(path))
	symbols := []rune(seq)
	for i, n := range path {
		step := Step{Depth: i}
		if i > 0 {
			step.Symbol = symbols[i-1]
		}
		if n != nil {
			step.Reached = true
			step.EndOfWord = n.end
			if n.end {
				step.Data = n.data
			}
		}
		steps[i] = step
	}
	return steps
}

// Clear empties the receiver and restarts its auto-generated indices at 1.
func (t *Tree[K]) Clear() {
	t.root = newRoot(t.indexer.newSlots())
	t.nextIndex = 1
	t.log.Debug("cleared")
}
