package controller

import (
	"math"
	"time"

	"dq/query"
	"dq/selector"
	"dq/stats"
)

// probe runs the initial burst (§4.4.2): fill the QRP-matching candidate
// set, shorten the TTL if the set dwarfs PROBE_UP, send to the first
// PROBE_UP candidates, and arm the results timer.
func (c *Controller) probe(q *query.Query) {
	candidates := c.sel.FillProbeCandidates(q, c.cfg.MaxConnections)
	if len(candidates) == 0 {
		// No QRP-matching ultrapeer at all yet: fall through to the general
		// iterative step, which has its own no-candidates termination path.
		c.sendNext(q)
		return
	}

	ttl := q.TTL
	switch n := len(candidates); {
	case n > 6*c.cfg.ProbeUp:
		ttl -= 2
	case n > 3*c.cfg.ProbeUp:
		ttl--
	}
	if ttl < 1 {
		ttl = 1
	}

	probeCount := minInt(c.cfg.ProbeUp, len(candidates))
	for i := 0; i < probeCount; i++ {
		c.sendProbe(q, candidates[i].Peer, ttl)
	}

	timeout := time.Duration(minInt(probeCount, c.cfg.ProbeUp)) * (c.cfg.ProbeTimeout + q.ResultTimeout)
	c.armResultsTimer(q, timeout)
}

// sendNext is the iterative step (§4.4.3): re-check every termination
// condition, then send to exactly one more candidate (or re-arm and wait if
// none qualifies) before re-arming the results timer.
func (c *Controller) sendNext(q *query.Query) {
	if c.isUltrapeer != nil && !c.isUltrapeer() {
		c.terminate(q, "not-ultrapeer")
		return
	}

	kept := q.EffectiveKeptResults(c.localKept(q))
	if q.Horizon >= c.cfg.MaxHorizon || kept >= q.MaxResults {
		c.terminate(q, "horizon-or-kept-satisfied")
		return
	}
	if q.Results+q.OOBResults >= q.FinResults {
		c.terminate(q, "raw-hits-budget")
		return
	}
	if q.UpSent >= c.cfg.MaxConnections-c.cfg.NormalConnections {
		c.terminate(q, "up-sent-budget")
		return
	}

	if q.Pending >= c.cfg.MaxPending {
		c.armResultsTimer(q, q.ResultTimeout)
		return
	}

	candidates := c.sel.Fill(q, c.cfg.MaxConnections)
	if len(candidates) == 0 {
		c.terminate(q, "no-candidates")
		return
	}

	sent := false
	for _, cand := range candidates {
		ttl := c.selectTTL(q, cand.Peer, len(candidates))
		if ttl == 1 && c.excludedAtTTLOne(cand) {
			continue
		}
		c.sendProbe(q, cand.Peer, ttl)
		sent = true
		break
	}
	if !sent {
		// Every candidate was QRP-excluded at TTL 1: nothing sendable this
		// round, wait for feedback or the next timer tick to re-evaluate.
		c.armResultsTimer(q, q.ResultTimeout)
		return
	}

	if q.Horizon > c.cfg.MinHorizon && float64(q.Results) < float64(c.cfg.LowResults)*q.Horizon/c.cfg.MinHorizon {
		q.ResultTimeout -= c.cfg.TimeoutAdjust
		if q.ResultTimeout < c.cfg.MinTimeout {
			q.ResultTimeout = c.cfg.MinTimeout
		}
	}

	timeout := q.ResultTimeout + time.Duration(q.Pending-1)*c.cfg.PendingTimeout
	c.armResultsTimer(q, timeout)
}

// excludedAtTTLOne reports whether a TTL-1 send to this candidate would be
// pointless: a QRP-capable peer that we already know cannot route the query
// would just drop it on the floor. A peer that isn't QRP-capable at all
// gives us no such guarantee, so it's never excluded on this basis (§4.4.3).
func (c *Controller) excludedAtTTLOne(cand selector.Candidate) bool {
	return cand.QRPCapable && cand.CanRoute == query.False
}

// selectTTL picks the largest TTL in [1, min(peer.max_ttl, query.ttl)] whose
// horizon estimate stays at or under the per-node share still needed (§4.4.4).
func (c *Controller) selectTTL(q *query.Query, peer query.PeerID, connections int) int {
	attrs, ok := c.peers.PeerAttributes(peer)
	if !ok {
		return 1
	}

	upper := attrs.MaxTTL
	if q.TTL < upper {
		upper = q.TTL
	}
	if upper < 1 {
		upper = 1
	}
	if connections < 1 {
		connections = 1
	}

	resultsPerHost := float64(q.Results) / math.Max(q.Horizon, 1)
	const epsilon = 1e-6
	if resultsPerHost < epsilon {
		resultsPerHost = epsilon
	}

	kept := q.EffectiveKeptResults(c.localKept(q))
	needed := float64(q.MaxResults - kept)
	if needed < 0 {
		needed = 0
	}
	wantHosts := needed / resultsPerHost
	wantPerNode := wantHosts / float64(connections)

	chosen := 0
	for ttl := 1; ttl <= upper; ttl++ {
		if c.horizon.Estimate(attrs.Degree, ttl) <= wantPerNode {
			chosen = ttl
		}
	}
	if chosen == 0 {
		chosen = upper
	}
	return chosen
}

// onResultsTimerFired is §4.4.5: clear any pending guidance wait, terminate
// a blind query outright, or take another iterative step — possibly after
// asking the leaf for a status update first.
func (c *Controller) onResultsTimerFired(q *query.Query) {
	q.ResultsTimer = nil

	timedOutOfGuidance := false
	if q.Flags.Has(query.FlagWaitingGuidance) {
		timedOutOfGuidance = true
		q.Flags.Clear(query.FlagWaitingGuidance)
		q.StatTimeouts++
		stats.GuidanceTimeouts.Add(1)
		if !q.Flags.Has(query.FlagGotGuidance) && q.StatTimeouts >= c.cfg.MaxStatTimeout {
			q.Flags.Clear(query.FlagLeafGuided)
			c.peers.SetLeafGuidance(q.NodeID, false)
		}
	}

	if !q.Flags.Has(query.FlagLeafGuided) && !q.Flags.Has(query.FlagRoutingHits) {
		c.terminate(q, "blind")
		return
	}

	newSinceGuidance := q.UpSent - q.LastStatus
	if timedOutOfGuidance || !q.Flags.Has(query.FlagLeafGuided) ||
		newSinceGuidance < c.cfg.StatThreshold || q.NewResults < c.cfg.MinForGuidance {
		c.sendNext(q)
		return
	}

	if !c.peers.PeerByID(q.NodeID) {
		c.destroy(q)
		return
	}

	q.Flags.Set(query.FlagWaitingGuidance)
	muid := q.MUID
	if !q.LeafMUID.Zero() {
		muid = q.LeafMUID
	}
	c.vendor.SendQueryStatusRequest(q.NodeID, muid)
	stats.StatusRequests.Add(1)

	timeout := c.cfg.StatusTimeout
	if rtt, ok := c.peers.RoundTripEstimate(q.Alive); ok {
		if est := durationMillis((rtt.AvgMillis + rtt.LastMillis) / 2); est > timeout {
			timeout = est
		}
	}
	c.armResultsTimer(q, timeout)
}
