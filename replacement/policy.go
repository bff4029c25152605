// Package replacement provides replacement policies for associative caches.
package replacement

// A Policy tracks the recency of the ways of one associative table and
// decides which way should be the next victim.
//
// The owning cache reports events to the policy once per step, folding them
// in the order invalidates, hits, allocations. A fill that allocates a way
// reports the allocation by calling Hit on the victim.
type Policy interface {
	// Hit records a use of a way, making it the least likely victim.
	Hit(way int)

	// Invalidate biases the policy so that the way is preferred as the
	// next victim.
	Invalidate(way int)

	// Allocate returns the way that should be the next victim. Allocate
	// does not mutate the policy state.
	Allocate() int

	// Reset restores the initial recency state.
	Reset()
}

// A Factory creates a Policy for a table with the given number of ways.
type Factory func(ways int) Policy
