package controller

import (
	"github.com/jonboulle/clockwork"

	"dq/query"
	"dq/transport"
)

type enqueued struct {
	peer    query.PeerID
	message []byte
	dispose transport.DisposeFunc
}

type fakeQueue struct {
	sent  []enqueued
	flow  map[query.PeerID]bool
	hops  map[query.PeerID]int
	bytes map[query.PeerID]int
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{flow: map[query.PeerID]bool{}, hops: map[query.PeerID]int{}, bytes: map[query.PeerID]int{}}
}

func (f *fakeQueue) Enqueue(peer query.PeerID, msg []byte, d transport.DisposeFunc) {
	f.sent = append(f.sent, enqueued{peer: peer, message: msg, dispose: d})
}
func (f *fakeQueue) PendingBytes(peer query.PeerID) int    { return f.bytes[peer] }
func (f *fakeQueue) InTxFlowControl(peer query.PeerID) bool { return f.flow[peer] }
func (f *fakeQueue) HopsFlow(peer query.PeerID) int         { return f.hops[peer] }

type fakePeers struct {
	attrs    map[query.PeerID]transport.PeerAttributes
	alive    map[query.PeerID]bool
	guidance map[query.PeerID]bool
}

func newFakePeers() *fakePeers {
	return &fakePeers{
		attrs:    map[query.PeerID]transport.PeerAttributes{},
		alive:    map[query.PeerID]bool{},
		guidance: map[query.PeerID]bool{},
	}
}

func (f *fakePeers) AllUltrapeers() []query.PeerID {
	out := make([]query.PeerID, 0, len(f.attrs))
	for id := range f.attrs {
		out = append(out, id)
	}
	return out
}
func (f *fakePeers) PeerByID(id query.PeerID) bool {
	if alive, ok := f.alive[id]; ok {
		return alive
	}
	_, ok := f.attrs[id]
	return ok
}
func (f *fakePeers) PeerAttributes(id query.PeerID) (transport.PeerAttributes, bool) {
	a, ok := f.attrs[id]
	return a, ok
}
func (f *fakePeers) SetLeafGuidance(id query.PeerID, on bool) { f.guidance[id] = on }
func (f *fakePeers) RoundTripEstimate(query.AliveHandle) (transport.RoundTrip, bool) {
	return transport.RoundTrip{}, false
}

type fakeQRP struct {
	routable map[query.PeerID]bool
	leaves   []query.PeerID
}

func (f *fakeQRP) CanRoute(peer query.PeerID, _ query.QueryHashVector) bool { return f.routable[peer] }
func (f *fakeQRP) BuildLeafTargets(_ query.QueryHashVector, _, _ int, source query.PeerID) []query.PeerID {
	out := make([]query.PeerID, 0, len(f.leaves))
	for _, l := range f.leaves {
		if l != source {
			out = append(out, l)
		}
	}
	return out
}

type fakeOOB struct {
	nextLeafMUID query.MUID
	created      int
}

func (f *fakeOOB) MUIDProxied(muid query.MUID) (query.MUID, bool) { return query.MUID{}, false }
func (f *fakeOOB) CreateProxy(query.PeerID) query.MUID {
	f.created++
	return f.nextLeafMUID
}

type fakeLocalSearch struct {
	kept map[query.SearchHandle]int
}

func (f *fakeLocalSearch) KeptResults(h query.SearchHandle) int { return f.kept[h] }

type fakeVendor struct {
	statusRequests []query.PeerID
}

func (f *fakeVendor) SendQueryStatusRequest(peer query.PeerID, _ query.MUID) {
	f.statusRequests = append(f.statusRequests, peer)
}

func baseAttrs() transport.PeerAttributes {
	return transport.PeerAttributes{Degree: 4, MaxTTL: 5, HandshakeComplete: true, Writable: true, QRPCapable: true}
}

// newTestController wires every fake together with sensible defaults;
// callers mutate the returned fakes before issuing launches.
func newTestController() (*Controller, *fakeQueue, *fakePeers, *fakeQRP, *fakeOOB) {
	queue := newFakeQueue()
	peers := newFakePeers()
	qrp := &fakeQRP{routable: map[query.PeerID]bool{}}
	oob := &fakeOOB{}
	cfg := NewConfig()
	c := New(cfg, Deps{
		Peers:       peers,
		Queue:       queue,
		QRP:         qrp,
		OOB:         oob,
		LocalSearch: &fakeLocalSearch{kept: map[query.SearchHandle]int{}},
		Vendor:      &fakeVendor{},
		IsUltrapeer: func() bool { return true },
		OOBUsable:   func() bool { return true },
		Clock:       clockwork.NewFakeClock(),
	})
	return c, queue, peers, qrp, oob
}
