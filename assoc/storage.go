package assoc

// A table is the storage array that backs the cache. Reads return the value
// as of the start of the step; writes are staged and only become visible
// once Commit is called at the step boundary.
type table struct {
	entries []Entry
	writes  []tableWrite
}

type tableWrite struct {
	way   int
	entry Entry
}

func newTable(ways int) *table {
	t := &table{}
	t.entries = make([]Entry, ways)

	return t
}

// At returns the committed entry of a way.
func (t *table) At(way int) Entry {
	return t.entries[way]
}

// StageWrite schedules an entry update for the next step boundary.
func (t *table) StageWrite(way int, entry Entry) {
	t.writes = append(t.writes, tableWrite{way: way, entry: entry})
}

// Commit applies the staged writes in the order they were staged.
func (t *table) Commit() {
	for _, w := range t.writes {
		t.entries[w.way] = w.entry
	}

	t.writes = nil
}

// Reset invalidates all entries and drops staged writes.
func (t *table) Reset() {
	for i := range t.entries {
		t.entries[i] = Entry{}
	}

	t.writes = nil
}
