package main

import (
	"math/rand"
	"time"

	"dq/query"
	"dq/transport"
)

// simPeer is one synthetic ultrapeer in the simulated overlay.
type simPeer struct {
	attrs   transport.PeerAttributes
	pending int
	drop    float64 // probability a send to this peer is dropped
}

// simNetwork is a toy in-memory stand-in for every non-goal collaborator
// (§6): message transport, peer state, QRP matching, OOB proxying, local
// search, and vendor messages. It exists only to give cmd/dqsim something
// to drive the controller against — production wiring of these interfaces
// is out of scope, same as the teacher's example binaries never implement a
// real BitTorrent peer wire protocol either.
type simNetwork struct {
	rng   *rand.Rand
	peers map[query.PeerID]*simPeer
	guide map[query.PeerID]bool
}

func newSimNetwork(seed int64, n int) *simNetwork {
	rng := rand.New(rand.NewSource(seed))
	s := &simNetwork{rng: rng, peers: map[query.PeerID]*simPeer{}, guide: map[query.PeerID]bool{}}
	for i := 1; i <= n; i++ {
		s.peers[query.PeerID(i)] = &simPeer{
			attrs: transport.PeerAttributes{
				Degree:            2 + rng.Intn(6),
				MaxTTL:            5,
				HandshakeComplete: true,
				Writable:          true,
				QRPCapable:        true,
			},
			drop: rng.Float64() * 0.1,
		}
	}
	return s
}

func (s *simNetwork) AllUltrapeers() []query.PeerID {
	out := make([]query.PeerID, 0, len(s.peers))
	for id := range s.peers {
		out = append(out, id)
	}
	return out
}

func (s *simNetwork) PeerByID(id query.PeerID) bool {
	_, ok := s.peers[id]
	return ok
}

func (s *simNetwork) PeerAttributes(id query.PeerID) (transport.PeerAttributes, bool) {
	p, ok := s.peers[id]
	if !ok {
		return transport.PeerAttributes{}, false
	}
	return p.attrs, true
}

func (s *simNetwork) SetLeafGuidance(id query.PeerID, supported bool) { s.guide[id] = supported }

func (s *simNetwork) RoundTripEstimate(query.AliveHandle) (transport.RoundTrip, bool) {
	return transport.RoundTrip{AvgMillis: 150, LastMillis: 120}, true
}

func (s *simNetwork) CanRoute(peer query.PeerID, _ query.QueryHashVector) bool {
	return s.rng.Float64() > 0.2
}

func (s *simNetwork) BuildLeafTargets(_ query.QueryHashVector, _, _ int, _ query.PeerID) []query.PeerID {
	return nil
}

func (s *simNetwork) MUIDProxied(query.MUID) (query.MUID, bool) { return query.MUID{}, false }

func (s *simNetwork) CreateProxy(query.PeerID) query.MUID {
	m, _ := query.NewRandomMUID()
	return m
}

func (s *simNetwork) KeptResults(query.SearchHandle) int { return 0 }

func (s *simNetwork) SendQueryStatusRequest(query.PeerID, query.MUID) {}

// Enqueue simulates network delay and loss: it fires the disposal callback
// on its own goroutine after a short delay, exactly like a real socket
// write confirming asynchronously.
func (s *simNetwork) Enqueue(peer query.PeerID, _ []byte, dispose transport.DisposeFunc) {
	p, ok := s.peers[peer]
	if !ok {
		go dispose(false)
		return
	}
	p.pending += 64
	dropped := s.rng.Float64() < p.drop
	go func() {
		time.Sleep(10 * time.Millisecond)
		p.pending -= 64
		dispose(!dropped)
	}()
}

func (s *simNetwork) PendingBytes(peer query.PeerID) int {
	if p, ok := s.peers[peer]; ok {
		return p.pending
	}
	return 0
}

func (s *simNetwork) InTxFlowControl(query.PeerID) bool { return false }
func (s *simNetwork) HopsFlow(query.PeerID) int         { return 0 }
