// Package transport declares the collaborators the DQ controller consumes
// but does not implement: the message queue, the peer registry, the QRP
// matcher, the OOB proxy, local search, and the vendor-message sender.
//
// These mirror the boundary the teacher draws between dht.go (the engine)
// and remoteNode/routingTable/peer (its collaborators) — the controller
// only ever talks to these through interfaces, the same way dht.go only
// calls routingTable.RoutingTable and remoteNode.RemoteNode methods instead
// of reaching into socket or wire-format code directly.
package transport

import (
	"dq/query"
)

// DisposeFunc is invoked exactly once by the message queue when a probe
// either leaves the wire or is dropped. wasSent is true iff the probe was
// actually transmitted.
type DisposeFunc func(wasSent bool)

// MessageQueue is the non-goal "actual transmission" collaborator (§6).
// Enqueue is non-blocking: the real send happens asynchronously and
// completion is reported through disposal.
type MessageQueue interface {
	Enqueue(peer query.PeerID, message []byte, dispose DisposeFunc)
	PendingBytes(peer query.PeerID) int
	InTxFlowControl(peer query.PeerID) bool
	HopsFlow(peer query.PeerID) int
}

// PeerAttributes describes the facts the selector and controller need about
// a candidate neighbor, as reported by the peer registry.
type PeerAttributes struct {
	Degree               int
	MaxTTL               int
	HandshakeComplete    bool
	Writable             bool
	VendorSupportsGuide  bool
	QRPCapable           bool
}

// RoundTrip holds round-trip latency estimates from a peer's keepalive
// traffic, consumed when arming the status-wait timer (§4.4.5).
type RoundTrip struct {
	AvgMillis  float64
	LastMillis float64
}

// PeerRegistry is the non-goal "peer state" collaborator (§6).
type PeerRegistry interface {
	AllUltrapeers() []query.PeerID
	PeerByID(id query.PeerID) (exists bool)
	PeerAttributes(id query.PeerID) (PeerAttributes, bool)
	SetLeafGuidance(id query.PeerID, supported bool)
	RoundTripEstimate(alive query.AliveHandle) (RoundTrip, bool)
}

// QRPMatcher is the non-goal routing-table matcher (§6).
type QRPMatcher interface {
	CanRoute(peer query.PeerID, qhv query.QueryHashVector) bool
	BuildLeafTargets(qhv query.QueryHashVector, hops, ttl int, source query.PeerID) []query.PeerID
}

// OOBProxy is the non-goal out-of-band delivery collaborator (§6).
type OOBProxy interface {
	MUIDProxied(muid query.MUID) (leafMUID query.MUID, ok bool)
	CreateProxy(origin query.PeerID) query.MUID
}

// LocalSearch is the non-goal local-search collaborator (§6).
type LocalSearch interface {
	KeptResults(handle query.SearchHandle) int
}

// VendorMessages is the non-goal vendor-message collaborator (§6).
type VendorMessages interface {
	SendQueryStatusRequest(peer query.PeerID, muid query.MUID)
}
