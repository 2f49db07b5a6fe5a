// Package selector implements the next-UP selector (§4.2): given a query,
// produce its not-yet-queried ultrapeer candidates ranked by pending
// send-queue depth with a QRP-match tiebreaker, caching the expensive
// per-candidate decisions across invocations of the same query.
//
// Grounded on routingTable.Cleanup's shape: iterate every known node,
// apply a handful of eligibility predicates, and build an output slice —
// adapted here from "needs a ping" to "is a query candidate".
package selector

import (
	"sort"

	"dq/query"
	"dq/transport"
)

// MQEpsilon is the byte window within which two candidates are considered
// to have the same queue depth, breaking the tie by QRP match (§4.2).
const MQEpsilon = 2048

// Candidate is one ranked next-UP entry.
type Candidate struct {
	Peer            query.PeerID
	CanRoute        query.TriState
	QRPCapable      bool
	PendingQueueLen int
}

// Selector ranks candidates for a query against the live peer registry,
// message queue, and QRP matcher.
type Selector struct {
	Peers transport.PeerRegistry
	Queue transport.MessageQueue
	QRP   transport.QRPMatcher
}

// eligible reports whether a peer is a candidate at all: an ultrapeer past
// handshake, writable, not throttled either direction, and not already
// queried (§4.2).
func (s *Selector) eligible(q *query.Query, peer query.PeerID) bool {
	attrs, ok := s.Peers.PeerAttributes(peer)
	if !ok {
		return false
	}
	if !attrs.HandshakeComplete || !attrs.Writable {
		return false
	}
	if s.Queue.InTxFlowControl(peer) {
		return false
	}
	if s.Queue.HopsFlow(peer) != 0 {
		return false
	}
	if _, already := q.Queried[peer]; already {
		return false
	}
	return true
}

// decide resolves (and caches) the can_route tri-state for a candidate,
// lazily computing it on first comparison as §4.2 specifies: "Unknown
// can_route is lazily computed on first comparison involving that entry,
// then cached." pendingLen is recorded alongside it, per §4.2's "a cached
// pending_queue_bytes" — always the freshly observed depth, never read back
// for sorting, since queue depth changes too fast for last-invocation values
// to stay meaningful.
func (s *Selector) decide(q *query.Query, peer query.PeerID, pendingLen int) query.TriState {
	if cached, ok := q.CachedDecision(peer); ok && cached.CanRoute != query.Unknown {
		q.RememberDecision(query.CachedCandidate{Peer: peer, CanRoute: cached.CanRoute, PendingQueueLen: pendingLen})
		return cached.CanRoute
	}
	result := query.False
	if s.QRP.CanRoute(peer, q.QHV) {
		result = query.True
	}
	q.RememberDecision(query.CachedCandidate{Peer: peer, CanRoute: result, PendingQueueLen: pendingLen})
	return result
}

// Fill populates up to max candidates for the query, sorted ascending by
// pending queue bytes with a QRP-match tiebreaker within MQEpsilon bytes of
// each other, and returns the filled slice.
func (s *Selector) Fill(q *query.Query, max int) []Candidate {
	out := make([]Candidate, 0, max)
	for _, peer := range s.Peers.AllUltrapeers() {
		if !s.eligible(q, peer) {
			continue
		}
		attrs, _ := s.Peers.PeerAttributes(peer)
		out = append(out, Candidate{
			Peer:            peer,
			QRPCapable:      attrs.QRPCapable,
			PendingQueueLen: s.Queue.PendingBytes(peer),
		})
		if len(out) >= max {
			break
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if abs(a.PendingQueueLen-b.PendingQueueLen) <= MQEpsilon {
			ar := s.decide(q, a.Peer, a.PendingQueueLen)
			br := s.decide(q, b.Peer, b.PendingQueueLen)
			if (ar == query.True) != (br == query.True) {
				return ar == query.True
			}
		}
		return a.PendingQueueLen < b.PendingQueueLen
	})

	for i := range out {
		out[i].CanRoute = s.decide(q, out[i].Peer, out[i].PendingQueueLen)
	}
	return out
}

// FillProbeCandidates is the probe-selector variant (§4.2): it filters to
// QRP-matching candidates up front and sorts by pending queue bytes alone,
// since the probe step never needs the tiebreaker (a non-matching peer is
// excluded outright rather than merely ranked lower).
func (s *Selector) FillProbeCandidates(q *query.Query, max int) []Candidate {
	out := make([]Candidate, 0, max)
	for _, peer := range s.Peers.AllUltrapeers() {
		if !s.eligible(q, peer) {
			continue
		}
		pendingLen := s.Queue.PendingBytes(peer)
		if s.decide(q, peer, pendingLen) != query.True {
			continue
		}
		attrs, _ := s.Peers.PeerAttributes(peer)
		out = append(out, Candidate{
			Peer:            peer,
			CanRoute:        query.True,
			QRPCapable:      attrs.QRPCapable,
			PendingQueueLen: pendingLen,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PendingQueueLen < out[j].PendingQueueLen
	})
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
