package replacement

import "fmt"

// A TreePLRU is a pseudo-LRU policy backed by a binary recency tree. The
// tree holds one bit per internal node, so the state is ways-1 bits
// regardless of traffic, and every operation walks a single root-to-leaf
// path in O(log2(ways)).
//
// A node bit set to true marks the left subtree as holding the
// less-recently-used half of its leaves; false marks the right subtree.
type TreePLRU struct {
	ways int
	bits []bool
}

// NewTreePLRU creates a TreePLRU policy. The number of ways must be a power
// of two and at least 2.
func NewTreePLRU(ways int) *TreePLRU {
	if ways < 2 {
		panic(fmt.Sprintf("tree PLRU requires at least 2 ways, got %d", ways))
	}

	if ways&(ways-1) != 0 {
		panic(fmt.Sprintf(
			"tree PLRU requires a power-of-two way count, got %d", ways))
	}

	return &TreePLRU{
		ways: ways,
		bits: make([]bool, ways-1),
	}
}

// NewTreePLRUPolicy is a Factory for TreePLRU.
func NewTreePLRUPolicy(ways int) Policy {
	return NewTreePLRU(ways)
}

// Hit marks the way as recently used by pointing every node on its path
// away from the branch that contains it.
func (p *TreePLRU) Hit(way int) {
	p.walk(way, false)
}

// Invalidate biases future allocation toward the way by pointing every node
// on its path at the branch that contains it.
func (p *TreePLRU) Invalidate(way int) {
	p.walk(way, true)
}

// Allocate follows the LRU-ward branch at every node and returns the leaf
// it reaches.
func (p *TreePLRU) Allocate() int {
	node := 0
	low, high := 0, p.ways

	for node < p.ways-1 {
		mid := (low + high) / 2
		if p.bits[node] {
			node = 2*node + 1
			high = mid
		} else {
			node = 2*node + 2
			low = mid
		}
	}

	return low
}

// Reset clears the recency tree to its initial bias.
func (p *TreePLRU) Reset() {
	for i := range p.bits {
		p.bits[i] = false
	}
}

// walk updates every node on the root-to-leaf path of the way. With toward
// set, the nodes point at the branch containing the way; otherwise they
// point away from it.
func (p *TreePLRU) walk(way int, toward bool) {
	p.wayMustBeInRange(way)

	node := 0
	low, high := 0, p.ways

	for node < p.ways-1 {
		mid := (low + high) / 2
		if way < mid {
			p.bits[node] = toward
			node = 2*node + 1
			high = mid
		} else {
			p.bits[node] = !toward
			node = 2*node + 2
			low = mid
		}
	}
}

func (p *TreePLRU) wayMustBeInRange(way int) {
	if way < 0 || way >= p.ways {
		panic(fmt.Sprintf("way %d out of range [0, %d)", way, p.ways))
	}
}
