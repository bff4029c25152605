// Command cachesim drives random read traffic through a cache-backed
// request/response channel and verifies that every request gets exactly
// one correct response.
package main

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/lockstepsim/cachesim/channel"
	"github.com/lockstepsim/cachesim/datarecording"
	"github.com/lockstepsim/cachesim/memnode"
	"github.com/lockstepsim/cachesim/replacement"
	"github.com/lockstepsim/cachesim/sim"
)

var (
	numWays         int
	trackerCapacity int
	rspBufferDepth  int
	memLatency      int
	numRequests     int
	numAddresses    int
	seed            int64
	policyName      string
	dbPath          string
	record          bool
)

var rootCmd = &cobra.Command{
	Use:   "cachesim",
	Short: "Drive random traffic through a cache-backed channel",
	Run:   run,
}

func init() {
	rootCmd.Flags().IntVar(&numWays, "ways", 4,
		"number of ways of the cache")
	rootCmd.Flags().IntVar(&trackerCapacity, "tracker-capacity", 4,
		"number of requests that can be in flight downstream")
	rootCmd.Flags().IntVar(&rspBufferDepth, "rsp-buffer-depth", 4,
		"depth of the response buffer")
	rootCmd.Flags().IntVar(&memLatency, "mem-latency", 8,
		"steps the downstream responder takes to answer")
	rootCmd.Flags().IntVar(&numRequests, "num-requests", 10000,
		"number of requests to inject")
	rootCmd.Flags().IntVar(&numAddresses, "num-addresses", 64,
		"size of the address pool")
	rootCmd.Flags().Int64Var(&seed, "seed", 1,
		"random seed")
	rootCmd.Flags().StringVar(&policyName, "policy", "plru",
		"replacement policy: plru, lru, or fifo")
	rootCmd.Flags().BoolVar(&record, "record", false,
		"record channel events into a SQLite database")
	rootCmd.Flags().StringVar(&dbPath, "db-path", "",
		"path of the recording database, without extension")
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func run(_ *cobra.Command, _ []string) {
	engine := sim.NewEngine("Engine")

	ch := channel.MakeBuilder().
		WithWays(numWays).
		WithTrackerCapacity(trackerCapacity).
		WithResponseBufferDepth(rspBufferDepth).
		WithPolicyFactory(policyFactory()).
		Build("Channel")

	mem := memnode.New("Mem",
		ch.BottomReqPort(), ch.BottomRspPort(), memLatency)

	if record {
		recorder := datarecording.New(dbPath)
		tracer := datarecording.NewChannelTracer(
			recorder, engine, "channel_events")
		ch.AcceptHook(tracer)
	}

	driver := &trafficDriver{
		channel:      ch,
		mem:          mem,
		rand:         rand.New(rand.NewSource(seed)),
		numRequests:  numRequests,
		numAddresses: numAddresses,
		pending:      map[uint64]uint64{},
	}

	engine.Register(driver)
	engine.Register(ch)
	engine.Register(mem)

	maxSteps := uint64(numRequests)*uint64(memLatency+4) + 1000
	engine.Run(maxSteps)

	driver.reportAndExit(engine)
}

func policyFactory() replacement.Factory {
	switch policyName {
	case "plru":
		return replacement.NewTreePLRUPolicy
	case "lru":
		return replacement.NewLRUPolicy
	case "fifo":
		return replacement.NewFIFOPolicy
	default:
		panic("unknown policy: " + policyName)
	}
}

// A trafficDriver injects random requests and checks the responses.
type trafficDriver struct {
	channel *channel.Comp
	mem     *memnode.Comp
	rand    *rand.Rand

	numRequests  int
	numAddresses int

	nextID    uint64
	injected  int
	completed int

	// pending maps an in-flight id to its requested address.
	pending map[uint64]uint64

	errors []string
}

func (d *trafficDriver) Tick() bool {
	madeProgress := d.drainResponses()

	if d.injected < d.numRequests && d.channel.TopReqPort().CanPush() {
		addr := uint64(d.rand.Intn(d.numAddresses)) * 0x40

		d.channel.TopReqPort().Push(channel.Request{
			ID:      d.nextID,
			Address: addr,
		})
		d.pending[d.nextID] = addr
		d.nextID++
		d.injected++

		madeProgress = true
	}

	d.checkInvariants()

	return madeProgress
}

func (d *trafficDriver) drainResponses() bool {
	madeProgress := false

	for {
		item := d.channel.TopRspPort().Pop()
		if item == nil {
			break
		}

		rsp := item.(channel.Response)

		addr, ok := d.pending[rsp.ID]
		if !ok {
			d.fail(fmt.Sprintf(
				"response for id %d has no pending request", rsp.ID))
			continue
		}

		if want := d.mem.ReadBacking(addr); rsp.Data != want {
			d.fail(fmt.Sprintf(
				"response for id %d has data %d, want %d",
				rsp.ID, rsp.Data, want))
		}

		delete(d.pending, rsp.ID)
		d.completed++
		madeProgress = true
	}

	return madeProgress
}

// checkInvariants scans for duplicate tags among valid entries. A
// duplicate indicates a fill or replacement bug, not a legal state.
func (d *trafficDriver) checkInvariants() {
	cache := d.channel.Cache()

	seen := map[uint64]bool{}
	for w := 0; w < cache.Ways(); w++ {
		entry := cache.EntryAt(w)
		if !entry.Valid {
			continue
		}

		if seen[entry.Tag] {
			d.fail(fmt.Sprintf("duplicate tag 0x%x in cache", entry.Tag))
		}

		seen[entry.Tag] = true
	}
}

func (d *trafficDriver) fail(msg string) {
	d.errors = append(d.errors, msg)
}

func (d *trafficDriver) reportAndExit(engine *sim.Engine) {
	fmt.Printf("steps:     %d\n", engine.CurrentStep())
	fmt.Printf("injected:  %d\n", d.injected)
	fmt.Printf("completed: %d\n", d.completed)

	for _, msg := range d.errors {
		fmt.Fprintln(os.Stderr, "error: "+msg)
	}

	if d.completed != d.numRequests {
		fmt.Fprintf(os.Stderr,
			"error: %d responses missing\n", d.numRequests-d.completed)
		atexit.Exit(1)
	}

	if len(d.errors) > 0 {
		atexit.Exit(1)
	}
}
