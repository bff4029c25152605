// Package memnode provides an ideal downstream responder for driving a
// channel: it answers every forwarded request after a fixed number of
// steps, with no limit on concurrency.
package memnode

import (
	"github.com/lockstepsim/cachesim/channel"
	"github.com/lockstepsim/cachesim/sim"
)

// A Comp consumes requests from a request buffer and produces responses
// into a response buffer after a fixed latency. Data comes from a backing
// store; an address that was never written reads as the address itself,
// which keeps test traffic deterministic without a warm-up phase.
type Comp struct {
	name string

	reqBuf sim.Buffer
	rspBuf sim.Buffer

	latency int
	storage map[uint64]uint64

	inflight []pendingRsp
}

type pendingRsp struct {
	rsp       channel.Response
	stepsLeft int
}

// New creates a responder that pops requests from reqBuf and pushes
// responses into rspBuf. Latency is the number of steps between consuming
// a request and offering its response; it must be at least 1.
func New(name string, reqBuf, rspBuf sim.Buffer, latency int) *Comp {
	sim.NameMustBeValid(name)

	if latency < 1 {
		panic("responder latency must be at least 1")
	}

	return &Comp{
		name:    name,
		reqBuf:  reqBuf,
		rspBuf:  rspBuf,
		latency: latency,
		storage: map[uint64]uint64{},
	}
}

// Name returns the name of the responder.
func (c *Comp) Name() string {
	return c.name
}

// Write sets the backing data for an address.
func (c *Comp) Write(addr, data uint64) {
	c.storage[addr] = data
}

// ReadBacking returns the backing data for an address.
func (c *Comp) ReadBacking(addr uint64) uint64 {
	if data, ok := c.storage[addr]; ok {
		return data
	}

	return addr
}

// Tick ages in-flight responses, emits the ones that are due, and consumes
// newly forwarded requests.
func (c *Comp) Tick() bool {
	madeProgress := false

	for i := range c.inflight {
		if c.inflight[i].stepsLeft > 0 {
			c.inflight[i].stepsLeft--
			madeProgress = true
		}
	}

	madeProgress = c.emitDueRsp() || madeProgress

	for {
		item := c.reqBuf.Peek()
		if item == nil {
			break
		}

		req := item.(channel.Request)
		c.reqBuf.Pop()

		c.inflight = append(c.inflight, pendingRsp{
			rsp: channel.Response{
				ID:   req.ID,
				Data: c.ReadBacking(req.Address),
			},
			stepsLeft: c.latency,
		})

		madeProgress = true
	}

	return madeProgress
}

// emitDueRsp pushes due responses until the response buffer fills up.
// Responses are emitted in the order their requests arrived.
func (c *Comp) emitDueRsp() bool {
	madeProgress := false

	for len(c.inflight) > 0 {
		if c.inflight[0].stepsLeft > 0 {
			break
		}

		if !c.rspBuf.CanPush() {
			break
		}

		c.rspBuf.Push(c.inflight[0].rsp)
		c.inflight = c.inflight[1:]

		madeProgress = true
	}

	return madeProgress
}
