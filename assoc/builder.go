package assoc

import (
	"fmt"

	"github.com/lockstepsim/cachesim/replacement"
	"github.com/lockstepsim/cachesim/sim"
)

// Builder can build associative caches.
type Builder struct {
	ways             int
	numReadPorts     int
	numFillPorts     int
	numEvictionPorts int
	policyFactory    replacement.Factory
}

// MakeBuilder creates a builder with default configuration: 4 ways, one
// read port, one fill port, no eviction ports, tree pseudo-LRU replacement.
func MakeBuilder() Builder {
	return Builder{
		ways:          4,
		numReadPorts:  1,
		numFillPorts:  1,
		policyFactory: replacement.NewTreePLRUPolicy,
	}
}

// WithWays sets the number of ways.
func (b Builder) WithWays(ways int) Builder {
	b.ways = ways
	return b
}

// WithNumReadPorts sets the number of read ports.
func (b Builder) WithNumReadPorts(n int) Builder {
	b.numReadPorts = n
	return b
}

// WithNumFillPorts sets the number of fill ports.
func (b Builder) WithNumFillPorts(n int) Builder {
	b.numFillPorts = n
	return b
}

// WithNumEvictionPorts sets the number of eviction ports. Eviction ports
// are paired one-to-one with fill ports, so the count must either be zero
// or match the fill port count.
func (b Builder) WithNumEvictionPorts(n int) Builder {
	b.numEvictionPorts = n
	return b
}

// WithPolicyFactory sets the factory that creates the replacement policy.
func (b Builder) WithPolicyFactory(factory replacement.Factory) Builder {
	b.policyFactory = factory
	return b
}

// Build builds an associative cache.
func (b Builder) Build(name string) *Comp {
	sim.NameMustBeValid(name)
	b.configMustBeValid()

	c := &Comp{
		name:             name,
		ways:             b.ways,
		policy:           b.policyFactory(b.ways),
		numReadPorts:     b.numReadPorts,
		numFillPorts:     b.numFillPorts,
		numEvictionPorts: b.numEvictionPorts,
		storage:          newTable(b.ways),
		readPortUsed:     make([]bool, b.numReadPorts),
		fillPortUsed:     make([]bool, b.numFillPorts),
	}
	c.clearStepState()

	return c
}

func (b Builder) configMustBeValid() {
	if b.ways < 2 {
		panic(fmt.Sprintf("cache requires at least 2 ways, got %d", b.ways))
	}

	if b.numReadPorts < 1 {
		panic("cache requires at least 1 read port")
	}

	if b.numFillPorts < 1 {
		panic("cache requires at least 1 fill port")
	}

	if b.numEvictionPorts != 0 && b.numEvictionPorts != b.numFillPorts {
		panic(fmt.Sprintf(
			"eviction ports must pair 1:1 with fill ports, got %d for %d",
			b.numEvictionPorts, b.numFillPorts))
	}

	if b.policyFactory == nil {
		panic("cache requires a replacement policy factory")
	}
}
