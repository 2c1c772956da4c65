package prefixtree

// slots holds a node's children, addressed by slot key.
type slots[K comparable] interface {
	// valid reports whether key addresses a slot at all.
	valid(key K) bool
	get(key K) *Node[K]
	// put installs child at key, returning the previous occupant.
	put(key K, child *Node[K]) *Node[K]
	remove(key K)
	len() int
	// capacity is the fixed slot count, or 0 if unbounded.
	capacity() int
	// fresh returns empty slots of the same shape.
	fresh() slots[K]
	// each calls fn with every child, in no particular order.
	each(fn func(*Node[K]))
}

// mapSlots keys children by an arbitrary symbol.  The map is allocated on
// first insertion, so leaves carry no map.
type mapSlots[K comparable] struct {
	m map[K]*Node[K]
}

func newMapSlots[K comparable]() *mapSlots[K] {
	return &mapSlots[K]{}
}

func (ms *mapSlots[K]) valid(K) bool {
	return true
}

func (ms *mapSlots[K]) get(key K) *Node[K] {
	return ms.m[key]
}

func (ms *mapSlots[K]) put(key K, child *Node[K]) *Node[K] {
	if ms.m == nil {
		ms.m = map[K]*Node[K]{}
	}
	prev := ms.m[key]
	ms.m[key] = child
	return prev
}

func (ms *mapSlots[K]) remove(key K) {
	delete(ms.m, key)
	if len(ms.m) == 0 {
		ms.m = nil
	}
}

func (ms *mapSlots[K]) len() int {
	return len(ms.m)
}

func (ms *mapSlots[K]) capacity() int {
	return 0
}

func (ms *mapSlots[K]) fresh() slots[K] {
	return newMapSlots[K]()
}

func (ms *mapSlots[K]) each(fn func(*Node[K])) {
	for _, child := range ms.m {
		fn(child)
	}
}

// arraySlots holds exactly degree children addressed 0..degree-1.  The array
// is allocated on first insertion; occupied tracks the non-nil entries.
type arraySlots struct {
	degree   int
	nodes    []*Node[int]
	occupied int
}

func newArraySlots(degree int) *arraySlots {
	return &arraySlots{degree: degree}
}

func (as *arraySlots) valid(key int) bool {
	return key >= 0 && key < as.degree
}

func (as *arraySlots) get(key int) *Node[int] {
	if as.nodes == nil || !as.valid(key) {
		return nil
	}
	return as.nodes[key]
}

func (as *arraySlots) put(key int, child *Node[int]) *Node[int] {
	if as.nodes == nil {
		as.nodes = make([]*Node[int], as.degree)
	}
	prev := as.nodes[key]
	as.nodes[key] = child
	if prev == nil {
		as.occupied++
	}
	return prev
}

func (as *arraySlots) remove(key int) {
	if as.get(key) == nil {
		return
	}
	as.nodes[key] = nil
	as.occupied--
	if as.occupied == 0 {
		as.nodes = nil
	}
}

func (as *arraySlots) len() int {
	return as.occupied
}

func (as *arraySlots) capacity() int {
	return as.degree
}

func (as *arraySlots) fresh() slots[int] {
	return newArraySlots(as.degree)
}

func (as *arraySlots) each(fn func(*Node[int])) {
	for _, child := range as.nodes {
		if child != nil {
			fn(child)
		}
	}
}
