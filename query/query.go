package query

import (
	"time"

	"github.com/golang/groupcache/lru"
)

// Kind distinguishes a locally-originated query from one relayed on behalf
// of a leaf, replacing the teacher-style "node id == SELF sentinel" test
// with an explicit discriminator (per spec §9's design note recommending
// Local/Remote variants over a sentinel node id).
type Kind int

const (
	KindLocal Kind = iota
	KindRemote
)

// TimerHandle is the minimal surface the controller needs from an armed
// timer: the ability to cancel it. Concrete handles are created by the
// controller's clock (see controller/timers.go); Query only stores the
// handle so state and its guarding timers travel together.
type TimerHandle interface {
	Stop() bool
}

// Query is one active dynamic search: the full data model of spec §3.
type Query struct {
	ID       QueryID
	Kind     Kind
	NodeID   PeerID       // origin peer, meaningless for KindLocal
	Search   SearchHandle // meaningful only for KindLocal
	MUID     MUID
	LeafMUID MUID // distinct from MUID only when OOB-proxied

	Template *Template
	QHV      QueryHashVector
	Queried  map[PeerID]struct{}

	TTL     int
	Horizon float64
	UpSent  int
	Pending int

	Results       int
	NewResults    int
	LingerResults int
	OOBResults    int
	KeptResults   int

	MaxResults int
	FinResults int

	// QueryFlags carries the leaf's raw marked-speed field (supplemented
	// from original_source/src/core/dq.c's dq_launch_net, which stashes this
	// at launch so later firewall checks don't need to re-parse the wire
	// message). Zero for local queries.
	QueryFlags uint16

	Flags Flags

	ResultTimeout time.Duration
	LastStatus    int
	StatTimeouts  int

	Alive AliveHandle

	StartTime time.Time
	StopTime  time.Time

	ResultsTimer TimerHandle
	ExpireTimer  TimerHandle

	// candidateCache retains the last computed next-UP decisions so repeat
	// invocations within the same query skip the expensive QRP recomputation
	// for peers that recur (§4.2). Bounded with an LRU the same way the
	// teacher's peer.PeerStore bounds its per-infohash peer sets
	// (github.com/golang/groupcache/lru), since a long-lived query probing
	// many short-lived candidates should not retain every peer it ever saw.
	candidateCache *lru.Cache
}

// candidateCacheSize caps the per-query decision cache. It only needs to
// cover one iteration's worth of candidates plus some churn, so it is sized
// a small multiple of a typical max_connections value rather than unbounded.
const candidateCacheSize = 256

// CandidateCache lazily creates and returns the query's decision cache.
func (q *Query) CandidateCache() *lru.Cache {
	if q.candidateCache == nil {
		q.candidateCache = lru.New(candidateCacheSize)
	}
	return q.candidateCache
}

// CachedDecision returns the previously cached tri-states for a peer, if any.
func (q *Query) CachedDecision(peer PeerID) (CachedCandidate, bool) {
	v, ok := q.CandidateCache().Get(peer)
	if !ok {
		return CachedCandidate{}, false
	}
	return v.(CachedCandidate), true
}

// RememberDecision caches the tri-states computed for a peer so the next
// invocation of the selector for this query can reuse them.
func (q *Query) RememberDecision(c CachedCandidate) {
	q.CandidateCache().Add(c.Peer, c)
}

// CachedCandidate is the cross-invocation cache entry for one neighbor,
// mirroring the teacher's struct next_up: a node id plus its cached
// decisions, because "nodes can disappear between invocations but the id is
// unique" (original_source/src/core/dq.c). CanRoute is the tri-state that
// persists across invocations (§4.2: "preserved from the previous
// invocation when the same peer recurs"); PendingQueueLen is the queue
// depth observed the last time this candidate was decided, recorded
// alongside it but always refreshed from the message queue before use.
type CachedCandidate struct {
	Peer            PeerID
	CanRoute        TriState
	PendingQueueLen int
}

// TriState models "unknown / true / false" without a pointer, mirroring the
// original's `gint can_route; /* -1 = unknown, otherwise TRUE/FALSE */`.
type TriState int8

const (
	Unknown TriState = iota
	True
	False
)

// NewQuery constructs a query in its pre-probe state. Callers fill in
// MaxResults/FinResults/TTL per §4.4.1 before registering and probing it.
func NewQuery(id QueryID, kind Kind, muid MUID) *Query {
	return &Query{
		ID:      id,
		Kind:    kind,
		MUID:    muid,
		Queried: make(map[PeerID]struct{}),
	}
}

// EffectiveKeptResults computes the feedback-aware stop signal described in
// §4.4.3: local queries ask the search subsystem directly, leaf-guided
// queries attribute a per-ultrapeer share of the leaf's reported kept count,
// everything else falls back to the raw hit count.
func (q *Query) EffectiveKeptResults(localKept int) int {
	switch {
	case q.Kind == KindLocal:
		return localKept
	case q.Flags.Has(FlagLeafGuided) && q.Flags.Has(FlagGotGuidance):
		const avgUltraNodes = 3
		return q.KeptResults/avgUltraNodes + q.NewResults
	default:
		return q.Results
	}
}
