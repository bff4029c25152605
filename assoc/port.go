package assoc

// A ReadReq is the per-step request on a read port.
type ReadReq struct {
	Enable  bool
	Address uint64

	// InvalidateOnHit schedules the matching entry to become invalid at
	// the next step boundary. The hit data is still returned in the
	// current step.
	InvalidateOnHit bool
}

// A ReadRsp is the result of a read port in the current step.
type ReadRsp struct {
	Valid bool
	Data  uint64
}

// A FillReq is the per-step request on a fill port. With Commit set the
// entry for the address is stored or overwritten; with Commit clear a
// matching entry is invalidated.
type FillReq struct {
	Enable  bool
	Address uint64
	Data    uint64
	Commit  bool
}

// A FillRsp reports the outcome of a fill port in the current step.
//
// Accepted is false only when the port lost the per-step victim
// arbitration to a lower-indexed fill port; the caller re-offers the fill
// on a later step.
type FillRsp struct {
	Accepted bool
	Eviction Eviction
}

// An Eviction is the content of a valid victim entry that a committing
// fill pushed out, reported on the eviction port paired with the fill port.
type Eviction struct {
	Valid   bool
	Address uint64
	Data    uint64
}
