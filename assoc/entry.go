// Package assoc implements a fully-associative lookup table with pluggable
// replacement and synchronous, two-phase step semantics.
package assoc

// An Entry is the information associated with one way of the table.
type Entry struct {
	Valid bool
	Tag   uint64
	Data  uint64
}
