// Package controller implements the dynamic-query state machine (§4 of the
// spec): launch, probe, iterate, feedback ingress, termination and linger.
//
// Grounded on dht.go's DHT type: a single struct holding configuration, a
// logger, its collaborators, and the tables it owns, with every mutating
// method assumed to run on one goroutine (dht.go's own loop()). The
// controller keeps that single-actor discipline (§5) with one mutex instead
// of one goroutine: exported methods and the callbacks it hands out (probe
// disposal, timers), which may run on other goroutines, all take that mutex
// before touching a query.
package controller

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"dq/horizon"
	"dq/logger"
	"dq/query"
	"dq/selector"
	"dq/stats"
	"dq/transport"
)

// Controller owns every live query for one node and drives its state
// machine. Its internal logic follows §5's single-actor discipline (every
// state transition assumes no concurrent mutation), but Go's timer and
// queue-disposal APIs deliver their callbacks on their own goroutines
// rather than a shared callout-queue thread, so a single mutex stands in
// for that thread: every exported entry point and every asynchronous
// callback (probe disposal, timer fire) takes it before touching a query,
// and everything below that boundary assumes it is already held.
type Controller struct {
	mu sync.Mutex

	cfg     Config
	clock   clockwork.Clock
	log     logger.DebugLogger
	horizon *horizon.Table
	sel     *selector.Selector

	registry *query.Registry
	gauges   *stats.Gauges

	peers       transport.PeerRegistry
	queue       transport.MessageQueue
	qrp         transport.QRPMatcher
	oob         transport.OOBProxy
	localSearch transport.LocalSearch
	vendor      transport.VendorMessages

	// isUltrapeer reports whether the local node currently holds ultrapeer
	// status, consulted at every iterative step (§4.4.3: "If the local node
	// has lost ultrapeer status: terminate").
	isUltrapeer func() bool
	// oobUsable reports whether the local node can act as an OOB proxy for
	// a newly launched query (§4.4.1).
	oobUsable func() bool

	idCounter uint32
}

// Deps bundles the collaborators a Controller is built from, mirroring
// dht.go's practice of taking its store/routing table/remote-node factory as
// constructor arguments rather than reaching for package-level globals.
type Deps struct {
	Logger      logger.DebugLogger
	Peers       transport.PeerRegistry
	Queue       transport.MessageQueue
	QRP         transport.QRPMatcher
	OOB         transport.OOBProxy
	LocalSearch transport.LocalSearch
	Vendor      transport.VendorMessages
	IsUltrapeer func() bool
	OOBUsable   func() bool
	// Clock defaults to the real wall clock; tests supply a
	// clockwork.NewFakeClock() to drive the timer-based transitions
	// deterministically.
	Clock clockwork.Clock
}

// New builds a Controller ready to accept launches.
func New(cfg Config, deps Deps) *Controller {
	log := deps.Logger
	if log == nil {
		log = &logger.NullLogger{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Controller{
		cfg:         cfg,
		clock:       clock,
		log:         log,
		horizon:     horizon.New(),
		sel:         &selector.Selector{Peers: deps.Peers, Queue: deps.Queue, QRP: deps.QRP},
		registry:    query.NewRegistry(log),
		gauges:      stats.NewGauges(),
		peers:       deps.Peers,
		queue:       deps.Queue,
		qrp:         deps.QRP,
		oob:         deps.OOB,
		localSearch: deps.LocalSearch,
		vendor:      deps.Vendor,
		isUltrapeer: deps.IsUltrapeer,
		oobUsable:   deps.OOBUsable,
	}
}

// Registry exposes the query table read-only, for the status endpoint.
func (c *Controller) Registry() *query.Registry { return c.registry }

// Gauges exposes the atomic gauges read-only, for the status endpoint.
func (c *Controller) Gauges() *stats.Gauges { return c.gauges }

// allocateQueryID returns a fresh, currently-unused local query id. Wraps a
// 32-bit counter and re-checks the registry on collision, making the id
// space reused-address-safe per §3 without needing a generation counter.
func (c *Controller) allocateQueryID() query.QueryID {
	for {
		c.idCounter++
		id := query.QueryID(c.idCounter)
		if id == 0 {
			continue
		}
		if _, exists := c.registry.ByID(id); !exists {
			return id
		}
	}
}

func (c *Controller) localKept(q *query.Query) int {
	if q.Kind != query.KindLocal {
		return 0
	}
	return c.localSearch.KeptResults(q.Search)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func durationMillis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
