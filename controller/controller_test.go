package controller

import (
	"testing"

	"dq/query"
	"dq/selector"
	"dq/transport"
)

func TestLaunchFromPeerProbesUpToProbeUp(t *testing.T) {
	c, queue, peers, qrp, _ := newTestController()
	for _, id := range []query.PeerID{1, 2, 3, 4, 5} {
		peers.attrs[id] = baseAttrs()
		qrp.routable[id] = true
	}

	q, err := c.LaunchFromPeer(100, 0, LaunchParams{SearchText: "foo", TTL: 5})
	if err != nil {
		t.Fatalf("LaunchFromPeer: %v", err)
	}
	if len(queue.sent) != c.cfg.ProbeUp {
		t.Fatalf("probes sent = %d, want PROBE_UP=%d", len(queue.sent), c.cfg.ProbeUp)
	}
	if q.Pending != c.cfg.ProbeUp {
		t.Fatalf("q.Pending = %d, want %d", q.Pending, c.cfg.ProbeUp)
	}
	if q.ResultsTimer == nil {
		t.Fatalf("results timer not armed after probe")
	}
}

func TestProbeShortensTTLWhenCandidatesDwarfProbeUp(t *testing.T) {
	c, queue, peers, qrp, _ := newTestController()
	// 7*PROBE_UP candidates: over the 6x threshold, TTL should drop by 2.
	for id := query.PeerID(1); id <= query.PeerID(7*c.cfg.ProbeUp); id++ {
		peers.attrs[id] = baseAttrs()
		qrp.routable[id] = true
	}

	q, err := c.LaunchFromPeer(100, 0, LaunchParams{SearchText: "foo", TTL: 5})
	if err != nil {
		t.Fatalf("LaunchFromPeer: %v", err)
	}
	if len(q.Queried) != c.cfg.ProbeUp {
		t.Fatalf("queried count = %d, want PROBE_UP=%d", len(q.Queried), c.cfg.ProbeUp)
	}
	want, err := q.Template.Rewrite(q.TTL - 2)
	if err != nil {
		t.Fatalf("Rewrite(%d): %v", q.TTL-2, err)
	}
	for i, e := range queue.sent {
		if string(e.message) != string(want) {
			t.Fatalf("probe %d not sent at TTL %d (initial %d minus 2)", i, q.TTL-2, q.TTL)
		}
	}
}

func TestOnProbeDisposedSentUpdatesHorizonAndUpSent(t *testing.T) {
	c, queue, peers, qrp, _ := newTestController()
	peers.attrs[1] = baseAttrs()
	qrp.routable[1] = true

	q, err := c.LaunchFromPeer(100, 0, LaunchParams{SearchText: "foo", TTL: 3})
	if err != nil {
		t.Fatalf("LaunchFromPeer: %v", err)
	}
	if len(queue.sent) == 0 {
		t.Fatalf("expected at least one probe sent")
	}
	beforePending := q.Pending
	queue.sent[0].dispose(true)
	if q.Pending != beforePending-1 {
		t.Fatalf("Pending after dispose = %d, want %d", q.Pending, beforePending-1)
	}
	if q.UpSent != 1 {
		t.Fatalf("UpSent = %d, want 1", q.UpSent)
	}
	if q.Horizon <= 0 {
		t.Fatalf("Horizon = %v, want > 0 after a confirmed send", q.Horizon)
	}
}

func TestOnProbeDisposedDroppedRemovesFromQueriedAndDoesNotCountUpSent(t *testing.T) {
	c, queue, peers, qrp, _ := newTestController()
	peers.attrs[1] = baseAttrs()
	qrp.routable[1] = true

	q, err := c.LaunchFromPeer(100, 0, LaunchParams{SearchText: "foo", TTL: 3})
	if err != nil {
		t.Fatalf("LaunchFromPeer: %v", err)
	}
	peer := queue.sent[0].peer
	queue.sent[0].dispose(false)
	if q.UpSent != 0 {
		t.Fatalf("UpSent = %d, want 0 after a dropped probe", q.UpSent)
	}
	if _, still := q.Queried[peer]; still {
		t.Fatalf("peer %d still marked queried after a dropped probe", peer)
	}
}

func TestOnProbeDisposedIgnoresStaleDescriptorAfterIDReuse(t *testing.T) {
	c, queue, peers, qrp, _ := newTestController()
	peers.attrs[1] = baseAttrs()
	qrp.routable[1] = true

	q1, err := c.LaunchFromPeer(100, 0, LaunchParams{SearchText: "foo", TTL: 3})
	if err != nil {
		t.Fatalf("LaunchFromPeer: %v", err)
	}
	disposeQ1 := queue.sent[0].dispose

	// Destroy q1 and force the next allocated id to collide with it by
	// resetting the counter, simulating wraparound reuse.
	c.destroy(q1)
	c.idCounter = uint32(q1.ID) - 1

	q2, err := c.LaunchFromPeer(100, 0, LaunchParams{SearchText: "bar", TTL: 3})
	if err != nil {
		t.Fatalf("second LaunchFromPeer: %v", err)
	}
	if q2.ID != q1.ID {
		t.Fatalf("test setup failed to force id reuse: q1.ID=%d q2.ID=%d", q1.ID, q2.ID)
	}

	beforeUpSent := q2.UpSent
	disposeQ1(true) // stale callback for the destroyed q1, now aliasing q2's id
	if q2.UpSent != beforeUpSent {
		t.Fatalf("stale probe disposal for a reused id mutated the new query: UpSent = %d, want %d", q2.UpSent, beforeUpSent)
	}
}

func TestSendNextTerminatesWhenHorizonExceedsMax(t *testing.T) {
	c, _, peers, qrp, _ := newTestController()
	peers.attrs[1] = baseAttrs()
	qrp.routable[1] = true

	q, _ := c.LaunchFromPeer(100, 0, LaunchParams{SearchText: "foo", TTL: 3})
	q.Horizon = c.cfg.MaxHorizon + 1
	c.sendNext(q)
	if !q.Flags.Has(query.FlagLinger) {
		t.Fatalf("query did not enter linger after exceeding MaxHorizon")
	}
}

func TestSendNextTerminatesOnLostUltrapeerStatus(t *testing.T) {
	c, queue, peers, qrp, _ := newTestController()
	peers.attrs[1] = baseAttrs()
	qrp.routable[1] = true
	c.isUltrapeer = func() bool { return false }

	q, _ := c.LaunchFromPeer(100, 0, LaunchParams{SearchText: "foo", TTL: 3})
	_ = queue
	c.sendNext(q)
	if !q.Flags.Has(query.FlagLinger) {
		t.Fatalf("query did not terminate after losing ultrapeer status")
	}
}

func TestOnHitsSuppressedAfterUserCancelled(t *testing.T) {
	c, _, peers, qrp, _ := newTestController()
	peers.attrs[1] = baseAttrs()
	qrp.routable[1] = true
	q, _ := c.LaunchFromPeer(100, 0, LaunchParams{SearchText: "foo", TTL: 3})

	if !c.OnHits(q.MUID, 3, HitStatus{}) {
		t.Fatalf("OnHits before cancellation returned false")
	}
	q.Flags.Set(query.FlagUserCancelled)
	if c.OnHits(q.MUID, 3, HitStatus{}) {
		t.Fatalf("OnHits after USR_CANCELLED returned true, want false forever")
	}
}

func TestOnHitsRefusesFirewalledToFirewalledForward(t *testing.T) {
	c, _, peers, qrp, _ := newTestController()
	peers.attrs[1] = baseAttrs()
	qrp.routable[1] = true
	q, _ := c.LaunchFromPeer(100, query.SpeedFlagFirewalled, LaunchParams{SearchText: "foo", TTL: 3})

	if c.OnHits(q.MUID, 1, HitStatus{FirewalledResponder: true}) {
		t.Fatalf("OnHits forwarded a firewalled-to-firewalled reply without F2F support")
	}
	if q.Results != 0 {
		t.Fatalf("Results = %d, want 0: refused hits must not be counted", q.Results)
	}
}

func TestOnQueryStatusSentinelCancelsQuery(t *testing.T) {
	c, _, peers, qrp, _ := newTestController()
	peers.attrs[1] = baseAttrs()
	qrp.routable[1] = true
	q, _ := c.LaunchFromPeer(1, 0, LaunchParams{SearchText: "foo", TTL: 3})

	c.OnQueryStatus(q.MUID, 1, statusCancelSentinel)
	if !q.Flags.Has(query.FlagUserCancelled) {
		t.Fatalf("FlagUserCancelled not set after sentinel status")
	}
	if !q.Flags.Has(query.FlagLinger) {
		t.Fatalf("query did not enter linger after sentinel status")
	}
}

func TestOnQueryStatusResumesFromWaitingGuidance(t *testing.T) {
	c, queue, peers, qrp, _ := newTestController()
	peers.attrs[1] = baseAttrs()
	qrp.routable[1] = true
	q, _ := c.LaunchFromPeer(1, 0, LaunchParams{SearchText: "foo", TTL: 3})

	// A second ultrapeer only becomes available after the initial probe, so
	// the resumed iterative step has a fresh candidate to send to.
	peers.attrs[2] = baseAttrs()
	qrp.routable[2] = true

	q.Flags.Set(query.FlagWaitingGuidance)
	before := len(queue.sent)
	c.OnQueryStatus(q.MUID, 1, 5)

	if q.Flags.Has(query.FlagWaitingGuidance) {
		t.Fatalf("FlagWaitingGuidance still set after status reply")
	}
	if q.KeptResults != 5 {
		t.Fatalf("KeptResults = %d, want 5", q.KeptResults)
	}
	if len(queue.sent) <= before {
		t.Fatalf("OnQueryStatus did not resume the iterative step (no new probe sent)")
	}
}

func TestPeerRemovedDestroysItsQueries(t *testing.T) {
	c, _, peers, qrp, _ := newTestController()
	peers.attrs[1] = baseAttrs()
	qrp.routable[1] = true
	q, _ := c.LaunchFromPeer(1, 0, LaunchParams{SearchText: "foo", TTL: 3})

	c.PeerRemoved(1)
	if _, ok := c.registry.ByID(q.ID); ok {
		t.Fatalf("query still registered after its originating peer was removed")
	}
}

func TestShutdownLeavesRegistryEmpty(t *testing.T) {
	c, _, peers, qrp, _ := newTestController()
	peers.attrs[1] = baseAttrs()
	qrp.routable[1] = true
	c.LaunchFromPeer(1, 0, LaunchParams{SearchText: "foo", TTL: 3})
	c.LaunchLocal(7, LaunchParams{SearchText: "bar", TTL: 3})

	c.Shutdown()
	if c.registry.Count() != 0 {
		t.Fatalf("registry.Count() = %d after Shutdown, want 0", c.registry.Count())
	}
}

func TestRoutingHitsSetWhenOOBProxiedOrOOBStripped(t *testing.T) {
	// Leaf not vendor-guided, OOB usable locally: we proxy, ROUTING_HITS set.
	c, _, peers, qrp, oob := newTestController()
	peers.attrs[1] = baseAttrs()
	qrp.routable[1] = true
	oob.nextLeafMUID = query.MUID{7}
	q, _ := c.LaunchFromPeer(1, 0, LaunchParams{SearchText: "foo", TTL: 3})
	if !q.Flags.Has(query.FlagRoutingHits) {
		t.Fatalf("ROUTING_HITS not set for an OOB-proxied query")
	}
	if q.LeafMUID.Zero() {
		t.Fatalf("LeafMUID not assigned for an OOB-proxied query")
	}

	// OOB not usable locally: flag stripped from the template, ROUTING_HITS
	// still set because hits now route back to us directly.
	c2, _, peers2, qrp2, _ := newTestController()
	peers2.attrs[1] = baseAttrs()
	qrp2.routable[1] = true
	c2.oobUsable = func() bool { return false }
	q2, _ := c2.LaunchFromPeer(1, 0, LaunchParams{SearchText: "foo", TTL: 3})
	if !q2.Flags.Has(query.FlagRoutingHits) {
		t.Fatalf("ROUTING_HITS not set once the OOB flag was stripped")
	}
	if q2.Template.OOBFlag() {
		t.Fatalf("OOB flag still set on the template after it should have been stripped")
	}
}

func TestRoutingHitsNotSetWhenLeafGuidedWithOOBStillRequested(t *testing.T) {
	c, _, peers, qrp, _ := newTestController()
	peers.attrs[1] = transport.PeerAttributes{Degree: 4, MaxTTL: 5, HandshakeComplete: true, Writable: true, VendorSupportsGuide: true}
	qrp.routable[1] = true
	q, _ := c.LaunchFromPeer(1, 0, LaunchParams{SearchText: "foo", TTL: 3})
	if !q.Flags.Has(query.FlagLeafGuided) {
		t.Fatalf("FlagLeafGuided not set for a vendor-guidance-capable leaf")
	}
	if q.Flags.Has(query.FlagRoutingHits) {
		t.Fatalf("ROUTING_HITS set for a leaf-guided query that kept its own OOB request")
	}
}

func TestExcludedAtTTLOneOnlyAppliesToQRPCapablePeers(t *testing.T) {
	c, _, _, _, _ := newTestController()

	notQRPCapable := selector.Candidate{CanRoute: query.False, QRPCapable: false}
	if c.excludedAtTTLOne(notQRPCapable) {
		t.Fatalf("excludedAtTTLOne excluded a non-QRP-capable peer on a false can_route guess")
	}

	qrpCapableNoMatch := selector.Candidate{CanRoute: query.False, QRPCapable: true}
	if !c.excludedAtTTLOne(qrpCapableNoMatch) {
		t.Fatalf("excludedAtTTLOne did not exclude a QRP-capable peer known not to route")
	}

	qrpCapableMatch := selector.Candidate{CanRoute: query.True, QRPCapable: true}
	if c.excludedAtTTLOne(qrpCapableMatch) {
		t.Fatalf("excludedAtTTLOne excluded a QRP-capable peer that does route")
	}
}
