package controller

import "dq/query"

// statusCancelSentinel is the reserved kept_results value a leaf sends to
// mean "stop sending me results for this query" (§4.4.7).
const statusCancelSentinel = 0xFFFF

// HitStatus carries the per-reply flags on_hits needs beyond the raw count.
type HitStatus struct {
	FirewalledResponder bool
}

// OnHits is the regular-hit feedback entry point (§4.4.6). It returns
// whether the caller should still forward these hits on: false once the
// query is user-cancelled, or if the reply can't reach a firewalled
// querier without firewall-to-firewall support.
func (c *Controller) OnHits(muid query.MUID, count int, status HitStatus) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.registry.ByMUID(muid)
	if !ok {
		return true
	}

	if status.FirewalledResponder && query.Firewalled(q.QueryFlags) && !query.SupportsFirewallToFirewall(q.QueryFlags) {
		return false
	}

	if q.Flags.Has(query.FlagLinger) {
		q.LingerResults += count
	} else {
		q.Results += count
		q.NewResults += count
	}
	return !q.Flags.Has(query.FlagUserCancelled)
}

// OnOOBIndication records an OOB hit-count indication (§4.4.6): counted
// against the query's budget immediately, before the client ever claims it.
func (c *Controller) OnOOBIndication(muid query.MUID, count int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.registry.ByMUID(muid)
	if !ok {
		return true
	}
	q.OOBResults += count
	return !q.Flags.Has(query.FlagUserCancelled)
}

// OnOOBClaim retracts results from the OOB budget once the client actually
// claims (downloads) them, so claimed results aren't double counted against
// the indication that reserved them.
func (c *Controller) OnOOBClaim(muid query.MUID, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.registry.ByMUID(muid)
	if !ok {
		return
	}
	q.OOBResults -= count
	if q.OOBResults < 0 {
		q.OOBResults = 0
	}
}

// OnQueryStatus handles a leaf's reply to our status request, or an
// unsolicited one (§4.4.7). The sentinel kept_results value terminates the
// query outright; otherwise guidance is recorded and, if we were waiting on
// it, the iterative step resumes immediately.
func (c *Controller) OnQueryStatus(muid query.MUID, fromPeer query.PeerID, kept int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.registry.ByMUID(muid)
	if !ok {
		q, ok = c.registry.ByLeafMUID(muid)
		if !ok {
			return
		}
	}
	if q.NodeID != fromPeer {
		return
	}

	unsolicited := !q.Flags.Has(query.FlagWaitingGuidance)

	q.KeptResults = kept
	q.NewResults = 0
	q.Flags.Set(query.FlagGotGuidance)
	q.LastStatus = q.UpSent

	if unsolicited && !q.Flags.Has(query.FlagLeafGuided) {
		q.Flags.Set(query.FlagLeafGuided)
		c.peers.SetLeafGuidance(q.NodeID, true)
	}

	if kept == statusCancelSentinel {
		q.Flags.Set(query.FlagUserCancelled)
		c.cancelResultsTimer(q)
		c.terminate(q, "leaf-cancelled")
		return
	}

	if q.Flags.Has(query.FlagWaitingGuidance) {
		c.cancelResultsTimer(q)
		q.Flags.Clear(query.FlagWaitingGuidance)
		c.sendNext(q)
	}
}
