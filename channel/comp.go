// Package channel implements a cache-backed request/response channel. The
// channel serves upstream requests from an associative cache when it can,
// forwards misses downstream, and coalesces the downstream responses back
// into cache fills and upstream responses.
package channel

import (
	"github.com/lockstepsim/cachesim/assoc"
	"github.com/lockstepsim/cachesim/cam"
	"github.com/lockstepsim/cachesim/sim"
)

// HookPosCacheHit marks an upstream request served from the cache.
var HookPosCacheHit = &sim.HookPos{Name: "Cache Hit"}

// HookPosMissForward marks an upstream request forwarded downstream.
var HookPosMissForward = &sim.HookPos{Name: "Miss Forward"}

// HookPosRetire marks a downstream response retiring a pending request.
var HookPosRetire = &sim.HookPos{Name: "Retire"}

// HookPosOrphanRsp marks a downstream response with no pending request.
var HookPosOrphanRsp = &sim.HookPos{Name: "Orphan Rsp"}

// A Comp is the cache-backed request/response channel.
//
// Per step it samples one upstream request and one downstream response.
// The request is served from the cache on a hit, or forwarded downstream
// and recorded in the pending-request tracker on a miss. The response
// retires its tracker entry, fills the cache, and is queued for the
// upstream consumer. A request that cannot be handled in a step is simply
// left in its buffer and retried.
type Comp struct {
	sim.HookableBase
	sim.MiddlewareHolder

	name string

	topReqBuf    sim.Buffer
	topRspBuf    sim.Buffer
	bottomReqBuf sim.Buffer
	bottomRspBuf sim.Buffer

	cache   *assoc.Comp
	tracker *cam.Tracker
}

// Name returns the name of the channel.
func (c *Comp) Name() string {
	return c.name
}

// Tick updates the state of the channel by one step.
func (c *Comp) Tick() bool {
	return c.MiddlewareHolder.Tick()
}

// TopReqPort returns the buffer upstream producers push requests into.
func (c *Comp) TopReqPort() sim.Buffer {
	return c.topReqBuf
}

// TopRspPort returns the response buffer upstream consumers pop responses
// from.
func (c *Comp) TopRspPort() sim.Buffer {
	return c.topRspBuf
}

// BottomReqPort returns the buffer forwarded requests are pushed into for
// the downstream responder.
func (c *Comp) BottomReqPort() sim.Buffer {
	return c.bottomReqBuf
}

// BottomRspPort returns the buffer the downstream responder pushes
// responses into.
func (c *Comp) BottomRspPort() sim.Buffer {
	return c.bottomRspBuf
}

// Cache returns the associative cache of the channel.
func (c *Comp) Cache() *assoc.Comp {
	return c.cache
}

// Tracker returns the pending-request tracker of the channel.
func (c *Comp) Tracker() *cam.Tracker {
	return c.tracker
}

type middleware struct {
	*Comp
}

// Tick processes at most one downstream response and one upstream request.
// The downstream response is handled first: it has priority for the single
// response-buffer write port, and retiring it may free the tracker slot
// that lets a miss be accepted in the same step.
func (m *middleware) Tick() bool {
	retired, rspProgress := m.handleBottomRsp()
	reqProgress := m.handleTopReq(retired)

	m.cache.Commit()
	m.tracker.Commit()

	return rspProgress || reqProgress
}

// handleBottomRsp consumes one downstream response when the response
// buffer has room. A full response buffer exerts backpressure on the
// downstream responder by leaving the response in place.
func (m *middleware) handleBottomRsp() (retired, madeProgress bool) {
	item := m.bottomRspBuf.Peek()
	if item == nil {
		return false, false
	}

	if !m.topRspBuf.CanPush() {
		return false, false
	}

	rsp := item.(Response)
	m.bottomRspBuf.Pop()

	addr, found := m.tracker.Lookup(rsp.ID)
	if !found {
		// A response nothing waits for. Consume and drop it.
		m.invokeHook(HookPosOrphanRsp, rsp)
		return false, true
	}

	m.cache.Fill(0, assoc.FillReq{
		Enable:  true,
		Address: addr,
		Data:    rsp.Data,
		Commit:  true,
	})

	m.topRspBuf.Push(Response{ID: rsp.ID, Data: rsp.Data})
	m.invokeHook(HookPosRetire, rsp)

	return true, true
}

// handleTopReq samples one upstream request. The request is accepted only
// when its response path is guaranteed: a hit needs the response-buffer
// write port, a miss needs downstream room and a tracker slot.
func (m *middleware) handleTopReq(retired bool) bool {
	item := m.topReqBuf.Peek()
	if item == nil {
		return false
	}

	req := item.(Request)

	rsp := m.cache.Read(0, assoc.ReadReq{
		Enable:  true,
		Address: req.Address,
	})

	if rsp.Valid {
		return m.acceptHit(req, rsp.Data, retired)
	}

	return m.acceptMiss(req, retired)
}

func (m *middleware) acceptHit(req Request, data uint64, retired bool) bool {
	// The retired downstream response already claimed the response-buffer
	// write port for this step.
	if retired {
		return false
	}

	if !m.topRspBuf.CanPush() {
		return false
	}

	m.topRspBuf.Push(Response{ID: req.ID, Data: data})
	m.topReqBuf.Pop()
	m.invokeHook(HookPosCacheHit, req)

	return true
}

func (m *middleware) acceptMiss(req Request, retired bool) bool {
	if !m.bottomReqBuf.CanPush() {
		return false
	}

	camHasRoom := !m.tracker.IsFull() || retired
	if !camHasRoom {
		return false
	}

	// Refused when the id is already in flight; the request stays and is
	// retried once the pending entry retires.
	if err := m.tracker.Insert(req.ID, req.Address); err != nil {
		return false
	}

	m.bottomReqBuf.Push(req)
	m.topReqBuf.Pop()
	m.invokeHook(HookPosMissForward, req)

	return true
}

func (m *middleware) invokeHook(pos *sim.HookPos, item interface{}) {
	if m.NumHooks() == 0 {
		return
	}

	m.InvokeHook(sim.HookCtx{
		Domain: m.Comp,
		Pos:    pos,
		Item:   item,
	})
}
