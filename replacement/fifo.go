package replacement

// A FIFO is a first-in-first-out policy. Ways are victimized in the order
// they were allocated; hits on already-resident ways do not change the
// order.
type FIFO struct {
	ways  int
	queue []int
}

// NewFIFO creates a FIFO policy.
func NewFIFO(ways int) *FIFO {
	waysMustBeEnough(ways)

	f := &FIFO{ways: ways}
	f.Reset()

	return f
}

// NewFIFOPolicy is a Factory for FIFO.
func NewFIFOPolicy(ways int) Policy {
	return NewFIFO(ways)
}

// Hit records an allocation when the way is the current victim. Hits on any
// other way leave the order untouched.
func (f *FIFO) Hit(way int) {
	if way != f.queue[0] {
		return
	}

	f.queue = append(f.queue[1:], way)
}

// Invalidate moves the way to the front of the victim order.
func (f *FIFO) Invalidate(way int) {
	for i, w := range f.queue {
		if w == way {
			f.queue = append(f.queue[:i], f.queue[i+1:]...)
			f.queue = append([]int{way}, f.queue...)
			return
		}
	}
}

// Allocate returns the oldest way.
func (f *FIFO) Allocate() int {
	return f.queue[0]
}

// Reset restores the initial way ordering.
func (f *FIFO) Reset() {
	f.queue = make([]int, f.ways)
	for i := range f.queue {
		f.queue[i] = i
	}
}
