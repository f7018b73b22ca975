package graph

// Point is the 2D projection of a trail-section endpoint
type Point struct {
	X float64
	Y float64
}

// NodeKey is a surrogate id for a Point. Keys are only stable within a single
// BuildGraph call.
type NodeKey int

// KeyAllocator hands out NodeKeys to points in first-seen order, starting at 1
type KeyAllocator struct {
	keys map[Point]NodeKey
	next NodeKey
}

// NewKeyAllocator creates an empty allocator
func NewKeyAllocator() *KeyAllocator {
	return &KeyAllocator{
		keys: make(map[Point]NodeKey),
		next: 1,
	}
}

// Key returns the key for p, allocating the next one if p has not been seen yet
func (a *KeyAllocator) Key(p Point) NodeKey {
	if k, ok := a.keys[p]; ok {
		return k
	}
	k := a.next
	a.keys[p] = k
	a.next++
	return k
}

// Len returns the number of distinct points seen so far
func (a *KeyAllocator) Len() int {
	return len(a.keys)
}
