// Package cam implements a pending-request tracker: a content-addressable
// table that maps a transaction id to the address of an in-flight request.
package cam

import (
	"fmt"

	"github.com/lockstepsim/cachesim/assoc"
	"github.com/lockstepsim/cachesim/replacement"
	"github.com/lockstepsim/cachesim/sim"
)

// A Tracker records requests that have been forwarded downstream and are
// waiting for a response. It is an associative cache with the transaction
// id in the tag role and the request address in the payload role.
//
// Lookup always invalidates on hit, so reading the address of an id and
// removing its entry is a single atomic operation. An id is tracked by at
// most one valid entry at a time, which is what guarantees at most one
// in-flight request per id.
type Tracker struct {
	name     string
	capacity int
	table    *assoc.Comp

	// Slots freed and claimed during the current step. A slot freed by a
	// same-step Lookup can be claimed by Insert before the commit.
	freed    int
	inserted int
}

// New creates a Tracker with the given capacity. The capacity must be at
// least 2 and satisfy the requirements of the replacement policy.
func New(name string, capacity int, factory replacement.Factory) *Tracker {
	sim.NameMustBeValid(name)

	return &Tracker{
		name:     name,
		capacity: capacity,
		table: assoc.MakeBuilder().
			WithWays(capacity).
			WithPolicyFactory(factory).
			Build(name + ".Table"),
	}
}

// Name returns the name of the tracker.
func (t *Tracker) Name() string {
	return t.name
}

// Capacity returns the number of entries the tracker can hold.
func (t *Tracker) Capacity() int {
	return t.capacity
}

// Lookup returns the address recorded for the id and atomically removes
// the entry. The removal takes effect at the next step boundary; a Lookup
// of the same id in the next step misses.
func (t *Tracker) Lookup(id uint64) (addr uint64, found bool) {
	rsp := t.table.Read(0, assoc.ReadReq{
		Enable:          true,
		Address:         id,
		InvalidateOnHit: true,
	})

	if !rsp.Valid {
		return 0, false
	}

	t.freed++

	return rsp.Data, true
}

// Insert records an in-flight request. Inserting an id that is already
// tracked, or inserting into a tracker with no free slot, is refused with
// an error. A slot freed by a Lookup earlier in the same step counts as
// free.
func (t *Tracker) Insert(id, addr uint64) error {
	if _, found := t.table.Probe(id); found {
		return fmt.Errorf("trying to add an id that is already tracked")
	}

	if t.table.Occupancy()-t.freed+t.inserted >= t.capacity {
		return fmt.Errorf("trying to add to a full tracker")
	}

	rsp := t.table.Fill(0, assoc.FillReq{
		Enable:  true,
		Address: id,
		Data:    addr,
		Commit:  true,
	})
	if !rsp.Accepted {
		return fmt.Errorf("tracker fill not accepted")
	}

	t.inserted++

	return nil
}

// IsFull returns true if every slot holds a valid entry as of the last
// step boundary.
func (t *Tracker) IsFull() bool {
	return t.table.Full()
}

// Occupancy returns the number of tracked requests as of the last step
// boundary.
func (t *Tracker) Occupancy() int {
	return t.table.Occupancy()
}

// Probe reports whether the id is tracked, without any side effect.
func (t *Tracker) Probe(id uint64) (addr uint64, found bool) {
	entry, found := t.table.Probe(id)
	if !found {
		return 0, false
	}

	return entry.Data, true
}

// Commit ends the step, making the removals and insertions of the step
// visible.
func (t *Tracker) Commit() {
	t.table.Commit()
	t.freed = 0
	t.inserted = 0
}

// Reset removes all tracked requests.
func (t *Tracker) Reset() {
	t.table.Reset()
	t.freed = 0
	t.inserted = 0
}
