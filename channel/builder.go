package channel

import (
	"fmt"

	"github.com/lockstepsim/cachesim/assoc"
	"github.com/lockstepsim/cachesim/cam"
	"github.com/lockstepsim/cachesim/replacement"
	"github.com/lockstepsim/cachesim/sim"
)

// Builder can build cache-backed request/response channels.
type Builder struct {
	ways                int
	trackerCapacity     int
	responseBufferDepth int
	portBufferDepth     int
	policyFactory       replacement.Factory
}

// MakeBuilder creates a builder with default configuration: a 4-way cache,
// a 4-entry tracker, a response buffer of depth 4, port buffers of depth
// 1, and tree pseudo-LRU replacement.
func MakeBuilder() Builder {
	return Builder{
		ways:                4,
		trackerCapacity:     4,
		responseBufferDepth: 4,
		portBufferDepth:     1,
		policyFactory:       replacement.NewTreePLRUPolicy,
	}
}

// WithWays sets the number of ways of the cache.
func (b Builder) WithWays(ways int) Builder {
	b.ways = ways
	return b
}

// WithTrackerCapacity sets the number of requests that can be in flight
// downstream at a time. The capacity is independent of the cache way
// count.
func (b Builder) WithTrackerCapacity(capacity int) Builder {
	b.trackerCapacity = capacity
	return b
}

// WithResponseBufferDepth sets the depth of the buffer that decouples
// response production from upstream consumption.
func (b Builder) WithResponseBufferDepth(depth int) Builder {
	b.responseBufferDepth = depth
	return b
}

// WithPortBufferDepth sets the depth of the request and response port
// buffers.
func (b Builder) WithPortBufferDepth(depth int) Builder {
	b.portBufferDepth = depth
	return b
}

// WithPolicyFactory sets the replacement policy factory used by both the
// cache and the tracker.
func (b Builder) WithPolicyFactory(factory replacement.Factory) Builder {
	b.policyFactory = factory
	return b
}

// Build builds a channel.
func (b Builder) Build(name string) *Comp {
	sim.NameMustBeValid(name)
	b.configMustBeValid()

	c := &Comp{
		name: name,

		topReqBuf:    sim.NewBuffer(name+".TopReqBuf", b.portBufferDepth),
		topRspBuf:    sim.NewBuffer(name+".RspBuf", b.responseBufferDepth),
		bottomReqBuf: sim.NewBuffer(name+".BottomReqBuf", b.portBufferDepth),
		bottomRspBuf: sim.NewBuffer(name+".BottomRspBuf", b.portBufferDepth),

		cache: assoc.MakeBuilder().
			WithWays(b.ways).
			WithPolicyFactory(b.policyFactory).
			Build(name + ".Cache"),
		tracker: cam.New(name+".Tracker", b.trackerCapacity, b.policyFactory),
	}

	c.AddMiddleware(&middleware{Comp: c})

	return c
}

func (b Builder) configMustBeValid() {
	if b.responseBufferDepth < 1 {
		panic(fmt.Sprintf("response buffer depth must be at least 1, got %d",
			b.responseBufferDepth))
	}

	if b.portBufferDepth < 1 {
		panic(fmt.Sprintf("port buffer depth must be at least 1, got %d",
			b.portBufferDepth))
	}
}
