package assoc

import (
	"fmt"

	"github.com/lockstepsim/cachesim/replacement"
)

// A Comp is a fully-associative table that couples a storage array with a
// replacement policy behind read, fill, and optional eviction ports.
//
// Time advances in discrete steps. Within a step, every port may be used at
// most once; all lookups compare tags against the state committed at the
// previous step boundary, and all updates are staged. Commit applies the
// staged updates and folds the recency events into the policy, ending the
// step.
type Comp struct {
	name   string
	ways   int
	policy replacement.Policy

	numReadPorts     int
	numFillPorts     int
	numEvictionPorts int

	storage *table

	readPortUsed []bool
	fillPortUsed []bool

	// Per-step staging. Ways invalidated during the current step are
	// eligible as victims in the same step, which is what lets a caller
	// retire an entry and reuse its slot in one step.
	invalidatedWays map[int]bool
	allocatedWays   map[int]bool
	allocatedTags   map[uint64]bool

	policyInvalidates []int
	policyHits        []int
	policyAllocates   []int
}

// Name returns the name of the cache.
func (c *Comp) Name() string {
	return c.name
}

// Ways returns the number of ways.
func (c *Comp) Ways() int {
	return c.ways
}

// Read performs a lookup on a read port. The response is valid if a valid
// entry matches the address. A hit is reported to the replacement policy.
// With InvalidateOnHit set, the matching entry becomes invalid at the next
// step boundary while the hit data is returned in the current step.
func (c *Comp) Read(port int, req ReadReq) ReadRsp {
	c.readPortMustBeFree(port)
	c.readPortUsed[port] = true

	if !req.Enable {
		return ReadRsp{}
	}

	way, hit := c.match(req.Address)
	if !hit {
		return ReadRsp{}
	}

	c.policyHits = append(c.policyHits, way)

	if req.InvalidateOnHit {
		entry := c.storage.At(way)
		entry.Valid = false
		c.storage.StageWrite(way, entry)
		c.invalidatedWays[way] = true
	}

	return ReadRsp{Valid: true, Data: c.storage.At(way).Data}
}

// Fill performs a store, overwrite, or invalidation on a fill port.
func (c *Comp) Fill(port int, req FillReq) FillRsp {
	c.fillPortMustBeFree(port)
	c.fillPortUsed[port] = true

	if !req.Enable {
		return FillRsp{Accepted: true}
	}

	way, hit := c.match(req.Address)

	switch {
	case req.Commit && hit:
		return c.fillHit(way, req)
	case req.Commit && !hit:
		return c.fillMiss(req)
	case !req.Commit && hit:
		return c.fillInvalidate(way)
	default:
		return FillRsp{Accepted: true}
	}
}

// Commit ends the step: staged entry writes are applied in the order they
// were staged, and the recency events of the step are folded into the
// policy as invalidates, then hits, then allocations.
func (c *Comp) Commit() {
	c.storage.Commit()

	for _, way := range c.policyInvalidates {
		c.policy.Invalidate(way)
	}

	for _, way := range c.policyHits {
		c.policy.Hit(way)
	}

	for _, way := range c.policyAllocates {
		c.policy.Hit(way)
	}

	c.clearStepState()
}

// Probe looks up an address without any side effect. It sees the committed
// state of the previous step boundary.
func (c *Comp) Probe(addr uint64) (Entry, bool) {
	way, hit := c.match(addr)
	if !hit {
		return Entry{}, false
	}

	return c.storage.At(way), true
}

// EntryAt returns the committed entry of a way.
func (c *Comp) EntryAt(way int) Entry {
	return c.storage.At(way)
}

// Occupancy returns the number of valid entries.
func (c *Comp) Occupancy() int {
	count := 0
	for w := 0; w < c.ways; w++ {
		if c.storage.At(w).Valid {
			count++
		}
	}

	return count
}

// Full returns true if every way holds a valid entry.
func (c *Comp) Full() bool {
	return c.Occupancy() == c.ways
}

// Empty returns true if no way holds a valid entry.
func (c *Comp) Empty() bool {
	return c.Occupancy() == 0
}

// Reset invalidates all entries and restores the policy to its initial
// state.
func (c *Comp) Reset() {
	c.storage.Reset()
	c.policy.Reset()
	c.clearStepState()
}

// match compares the address against the tags of all valid entries of the
// committed state. At most one entry can match as long as tags are unique;
// the lowest matching way is returned otherwise.
func (c *Comp) match(addr uint64) (way int, hit bool) {
	for w := 0; w < c.ways; w++ {
		entry := c.storage.At(w)
		if entry.Valid && entry.Tag == addr {
			return w, true
		}
	}

	return 0, false
}

func (c *Comp) fillHit(way int, req FillReq) FillRsp {
	c.storage.StageWrite(way, Entry{
		Valid: true,
		Tag:   req.Address,
		Data:  req.Data,
	})
	c.policyHits = append(c.policyHits, way)

	// The way is being rewritten; keep later fills in the same step from
	// picking it as a victim.
	c.allocatedWays[way] = true

	return FillRsp{Accepted: true}
}

func (c *Comp) fillMiss(req FillReq) FillRsp {
	if c.allocatedTags[req.Address] {
		// A lower-indexed fill port already allocated this tag in the
		// current step. Storing it again would break tag uniqueness.
		return FillRsp{}
	}

	victim, ok := c.findVictim()
	if !ok {
		return FillRsp{}
	}

	rsp := FillRsp{Accepted: true}

	old := c.storage.At(victim)
	if c.numEvictionPorts > 0 && old.Valid && !c.invalidatedWays[victim] {
		rsp.Eviction = Eviction{
			Valid:   true,
			Address: old.Tag,
			Data:    old.Data,
		}
	}

	c.storage.StageWrite(victim, Entry{
		Valid: true,
		Tag:   req.Address,
		Data:  req.Data,
	})

	c.allocatedWays[victim] = true
	c.allocatedTags[req.Address] = true
	c.policyAllocates = append(c.policyAllocates, victim)

	return rsp
}

func (c *Comp) fillInvalidate(way int) FillRsp {
	entry := c.storage.At(way)
	entry.Valid = false
	c.storage.StageWrite(way, entry)

	c.invalidatedWays[way] = true
	c.policyInvalidates = append(c.policyInvalidates, way)

	return FillRsp{Accepted: true}
}

// findVictim picks the way a committing fill overwrites. Ways that hold no
// valid entry, including ways freed earlier in the current step, are
// preferred; only when all ways are occupied does the replacement policy
// choose. A way already allocated in the current step is never picked
// again; when the policy points at one, the fill loses the arbitration and
// is retried by the caller on a later step.
func (c *Comp) findVictim() (int, bool) {
	for w := 0; w < c.ways; w++ {
		if c.allocatedWays[w] {
			continue
		}

		if !c.storage.At(w).Valid || c.invalidatedWays[w] {
			return w, true
		}
	}

	victim := c.policy.Allocate()
	if c.allocatedWays[victim] {
		return 0, false
	}

	return victim, true
}

func (c *Comp) clearStepState() {
	for i := range c.readPortUsed {
		c.readPortUsed[i] = false
	}

	for i := range c.fillPortUsed {
		c.fillPortUsed[i] = false
	}

	c.invalidatedWays = map[int]bool{}
	c.allocatedWays = map[int]bool{}
	c.allocatedTags = map[uint64]bool{}

	c.policyInvalidates = nil
	c.policyHits = nil
	c.policyAllocates = nil
}

func (c *Comp) readPortMustBeFree(port int) {
	if port < 0 || port >= c.numReadPorts {
		panic(fmt.Sprintf("read port %d out of range [0, %d)",
			port, c.numReadPorts))
	}

	if c.readPortUsed[port] {
		panic(fmt.Sprintf("read port %d used twice in one step", port))
	}
}

func (c *Comp) fillPortMustBeFree(port int) {
	if port < 0 || port >= c.numFillPorts {
		panic(fmt.Sprintf("fill port %d out of range [0, %d)",
			port, c.numFillPorts))
	}

	if c.fillPortUsed[port] {
		panic(fmt.Sprintf("fill port %d used twice in one step", port))
	}
}
