package prefixtree

// Indexer maps symbols to child slot keys.  It is the only part of a Tree that
// differs between the sparse and dense variants.
type Indexer[K comparable] interface {
	// Resolve returns the slot key for symbol, or false if symbol cannot be
	// placed in a tree using this Indexer.
	Resolve(symbol rune) (K, bool)
	// SlotCount returns the number of child slots per node, or 0 if unbounded.
	SlotCount() int

	newSlots() slots[K]
}

// SparseIndexer keys children by the symbol itself.  Every symbol resolves.
type SparseIndexer struct{}

func (SparseIndexer) Resolve(symbol rune) (rune, bool) {
	return symbol, true
}

func (SparseIndexer) SlotCount() int {
	return 0
}

func (SparseIndexer) newSlots() slots[rune] {
	return newMapSlots[rune]()
}

// DenseIndexer gives every node exactly Degree child slots.  With an alphabet,
// the i'th alphabet symbol addresses slot i; without one, a symbol must be a
// decimal digit less than the degree.
type DenseIndexer struct {
	degree  int
	symbols []rune
	index   map[rune]int
}

// NewDenseIndexer returns a DenseIndexer with the specified degree.  An empty
// alphabet selects digit addressing; otherwise alphabet must hold exactly
// degree distinct symbols.
func NewDenseIndexer(degree int, alphabet string) (*DenseIndexer, error) {
	if degree <= 0 {
		return nil, configErrorf("degree must be positive, got %d", degree)
	}
	di := &DenseIndexer{degree: degree}
	if alphabet == "" {
		return di, nil
	}
	symbols := []rune(alphabet)
	if len(symbols) != degree {
		return nil, configErrorf("alphabet has %d symbols, degree is %d", len(symbols), degree)
	}
	di.symbols = symbols
	di.index = make(map[rune]int, degree)
	for i, r := range symbols {
		if prev, ok := di.index[r]; ok {
			return nil, configErrorf("alphabet symbol %q repeats at %d and %d", r, prev, i)
		}
		di.index[r] = i
	}
	return di, nil
}

func (di *DenseIndexer) Resolve(symbol rune) (int, bool) {
	if di.index != nil {
		i, ok := di.index[symbol]
		return i, ok
	}
	if symbol < '0' || symbol > '9' {
		return 0, false
	}
	i := int(symbol - '0')
	return i, i < di.degree
}

func (di *DenseIndexer) SlotCount() int {
	return di.degree
}

// Symbol returns the alphabet symbol addressing slot index.  Without an
// alphabet, the digit for index is returned when it is a single digit.
func (di *DenseIndexer) Symbol(index int) (rune, bool) {
	if index < 0 || index >= di.degree {
		return 0, false
	}
	if di.symbols != nil {
		return di.symbols[index], true
	}
	if index > 9 {
		return 0, false
	}
	return rune('0' + index), true
}

// Alphabet returns the configured alphabet, or "" for digit addressing.
func (di *DenseIndexer) Alphabet() string {
	return string(di.symbols)
}

func (di *DenseIndexer) newSlots() slots[int] {
	return newArraySlots(di.degree)
}
