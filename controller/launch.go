package controller

import (
	"fmt"

	"dq/query"
	"dq/stats"
)

// LaunchParams is the per-query input common to both launch entry points
// (§4.1): the search text and TTL a leaf or the local UI asked for, plus the
// already-built query hash vector.
type LaunchParams struct {
	SearchText string
	TTL        int
	URN        string
	QHV        query.QueryHashVector
}

// newQuery builds the shared query state both launch paths need: id, MUID,
// template, result budget, and starting TTL (§4.4.1).
func (c *Controller) newQuery(kind query.Kind, muid query.MUID, speedFlags uint16, params LaunchParams) *query.Query {
	id := c.allocateQueryID()
	q := query.NewQuery(id, kind, muid)
	q.QHV = params.QHV
	q.Template = query.NewTemplate(params.SearchText, speedFlags, params.URN, muid)
	q.ResultTimeout = c.cfg.QueryTimeout
	q.StartTime = c.clock.Now()

	base := c.cfg.LeafResults
	if kind == query.KindLocal {
		base = c.cfg.LocalResults
	}
	if params.URN != "" {
		base /= c.cfg.SHA1Decimator
		if base < 1 {
			base = 1
		}
	}
	q.MaxResults = base
	q.FinResults = base * 100 / c.cfg.PercentKept

	ttl := params.TTL
	if ttl > c.cfg.MaxTTL {
		ttl = c.cfg.MaxTTL
	}
	if ttl < 1 {
		ttl = 1
	}
	q.TTL = ttl
	return q
}

// LaunchFromPeer starts a query relayed on behalf of a leaf (§4.4.1): decide
// leaf guidance vs. OOB proxying vs. plain routing, then register and probe.
func (c *Controller) LaunchFromPeer(peer query.PeerID, speedFlags uint16, params LaunchParams) (*query.Query, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	muid, err := query.NewRandomMUID()
	if err != nil {
		return nil, fmt.Errorf("controller: LaunchFromPeer: %w", err)
	}

	q := c.newQuery(query.KindRemote, muid, speedFlags, params)
	q.NodeID = peer
	q.QueryFlags = speedFlags
	q.Alive = query.NewAliveHandle(peer)

	attrs, _ := c.peers.PeerAttributes(peer)
	leafGuided := speedFlags&query.SpeedFlagLeafGuidance != 0 || attrs.VendorSupportsGuide
	if leafGuided {
		q.Flags.Set(query.FlagLeafGuided)
	}

	oobProxied := false
	if !q.Flags.Has(query.FlagLeafGuided) {
		if c.oobUsable != nil && c.oobUsable() {
			q.LeafMUID = c.oob.CreateProxy(peer)
			oobProxied = true
		} else {
			q.Template.SetOOBFlag(false)
		}
	}

	// §9 flags this contract as ambiguous in the original source (a
	// boolean-AND where a bitwise AND looks intended): ROUTING_HITS is set
	// when we proxy OOB ourselves, or when the query carries no OOB request
	// at all (so hits come back to us directly either way). See DESIGN.md
	// for the resolution and the test that pins this behavior down.
	if oobProxied || !q.Template.OOBFlag() {
		q.Flags.Set(query.FlagRoutingHits)
	}

	c.registerAndLaunch(q, peer)
	return q, nil
}

// LaunchLocal starts a query on behalf of the local node's own search UI
// (§4.4.1): always routes hits to itself, never leaf-guided or OOB-proxied.
func (c *Controller) LaunchLocal(handle query.SearchHandle, params LaunchParams) (*query.Query, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	muid, err := query.NewRandomMUID()
	if err != nil {
		return nil, fmt.Errorf("controller: LaunchLocal: %w", err)
	}

	q := c.newQuery(query.KindLocal, muid, 0, params)
	q.Search = handle
	q.Flags.Set(query.FlagRoutingHits)

	c.registerAndLaunch(q, query.SelfID)
	return q, nil
}

// registerAndLaunch indexes the query, arms its global backstop deadline,
// forwards to matching local leaves, and fires the initial probe.
func (c *Controller) registerAndLaunch(q *query.Query, source query.PeerID) {
	c.registry.Register(q)
	c.gauges.ActiveQueries.Add(1)
	stats.QueriesLaunched.Add(1)
	c.armExpireTimer(q, c.cfg.MaxLifetime)

	c.forwardToLeaves(q, source)
	c.probe(q)
}

// forwardToLeaves propagates the query to QRP-matching local leaves other
// than where it came from. Actual message transport is the non-goal
// MessageQueue collaborator; this only decides who gets a copy.
func (c *Controller) forwardToLeaves(q *query.Query, source query.PeerID) {
	targets := c.qrp.BuildLeafTargets(q.QHV, 0, q.TTL, source)
	if len(targets) == 0 {
		return
	}
	msg, err := q.Template.Rewrite(q.TTL)
	if err != nil {
		c.log.Errorf("controller: query %d: leaf-forward rewrite failed: %v", q.ID, err)
		return
	}
	c.log.Debugf("controller: query %d: forwarding to %d matching local leaves", q.ID, len(targets))
	for _, leaf := range targets {
		if leaf == source {
			continue
		}
		c.queue.Enqueue(leaf, msg, func(bool) {})
	}
}
