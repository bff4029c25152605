package channel

// A Request asks for the data at an address. The id identifies the
// transaction; at most one request per id may be in flight at a time.
type Request struct {
	ID      uint64
	Address uint64
}

// A Response carries the data for the request with the matching id.
type Response struct {
	ID   uint64
	Data uint64
}
