package replacement

import "fmt"

// An LRU is an exact least-recently-used policy. It keeps the ways in a
// queue ordered from least to most recently used.
type LRU struct {
	ways  int
	queue []int
}

// NewLRU creates an LRU policy.
func NewLRU(ways int) *LRU {
	waysMustBeEnough(ways)

	l := &LRU{ways: ways}
	l.Reset()

	return l
}

// NewLRUPolicy is a Factory for LRU.
func NewLRUPolicy(ways int) Policy {
	return NewLRU(ways)
}

// Hit moves the way to the most-recently-used end of the queue.
func (l *LRU) Hit(way int) {
	l.remove(way)
	l.queue = append(l.queue, way)
}

// Invalidate moves the way to the least-recently-used end of the queue.
func (l *LRU) Invalidate(way int) {
	l.remove(way)
	l.queue = append([]int{way}, l.queue...)
}

// Allocate returns the least-recently-used way.
func (l *LRU) Allocate() int {
	return l.queue[0]
}

// Reset restores the initial way ordering.
func (l *LRU) Reset() {
	l.queue = make([]int, l.ways)
	for i := range l.queue {
		l.queue[i] = i
	}
}

func (l *LRU) remove(way int) {
	for i, w := range l.queue {
		if w == way {
			l.queue = append(l.queue[:i], l.queue[i+1:]...)
			return
		}
	}

	panic(fmt.Sprintf("way %d out of range [0, %d)", way, l.ways))
}

func waysMustBeEnough(ways int) {
	if ways < 2 {
		panic(fmt.Sprintf("replacement policy requires at least 2 ways, got %d",
			ways))
	}
}
