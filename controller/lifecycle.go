package controller

import (
	"time"

	"dq/query"
	"dq/stats"
)

// terminate moves a query into Linger (§4.4.8): idempotent, cancels the
// results timer, and arms the expire timer at LINGER_TIMEOUT — or
// immediately if the query was user-cancelled, since there is no reason to
// keep a cancelled query reachable for late feedback.
func (c *Controller) terminate(q *query.Query, reason string) {
	if q.Flags.Has(query.FlagLinger) {
		return
	}
	q.Flags.Set(query.FlagLinger)
	c.cancelResultsTimer(q)
	q.StopTime = c.clock.Now()
	c.gauges.LingeringQueries.Add(1)
	stats.QueriesTerminated.Add(reason, 1)
	c.log.Infof("controller: query %d entering linger (%s)", q.ID, reason)

	delay := c.cfg.LingerTimeout
	if q.Flags.Has(query.FlagUserCancelled) {
		delay = time.Millisecond
	}
	c.armExpireTimer(q, delay)
}

// destroy removes a query from the registry, per §4.4.8's invariant that
// both timers are cancelled before a query is torn down.
func (c *Controller) destroy(q *query.Query) {
	c.cancelResultsTimer(q)
	c.cancelExpireTimer(q)
	c.registry.Remove(q)
	stats.QueriesDestroyed.Add(1)
	c.gauges.ActiveQueries.Add(-1)
	if q.Flags.Has(query.FlagLinger) {
		c.gauges.LingeringQueries.Add(-1)
	}
}

// Cancel marks a query user-cancelled and moves it straight to Linger,
// skipping straight to the 1ms expire delay (§4.4.8).
func (c *Controller) Cancel(id query.QueryID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.registry.ByID(id)
	if !ok {
		return
	}
	if q.Flags.Has(query.FlagUserCancelled) {
		return
	}
	q.Flags.Set(query.FlagUserCancelled)
	c.terminate(q, "user-cancelled")
}

// PeerRemoved tears down every query the departing peer originated (§4.4.9).
// FlagIDCleaning guards against re-entering destroy for a query already
// mid-teardown, since a peer removal can be reported more than once.
func (c *Controller) PeerRemoved(peer query.PeerID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, q := range c.registry.ByNode(peer) {
		if q.Flags.Has(query.FlagIDCleaning) {
			continue
		}
		q.Flags.Set(query.FlagIDCleaning)
		c.destroy(q)
	}
}

// LocalSearchClosed cancels every live query tied to a local search handle
// that the UI (or its stand-in) has closed.
func (c *Controller) LocalSearchClosed(handle query.SearchHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, q := range c.registry.All() {
		if q.Kind == query.KindLocal && q.Search == handle && !q.Flags.Has(query.FlagUserCancelled) {
			q.Flags.Set(query.FlagUserCancelled)
			c.terminate(q, "local-search-closed")
		}
	}
}

// Shutdown tears every live query down unconditionally and warns about any
// index left non-empty afterward (§4.4.9).
func (c *Controller) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, q := range c.registry.All() {
		q.Flags.Set(query.FlagExiting)
		c.destroy(q)
	}
	byNode, byMUID, byLeafMUID := c.registry.Orphans()
	if byNode+byMUID+byLeafMUID > 0 {
		c.log.Warnf("controller: shutdown with orphaned index entries: byNode=%d byMUID=%d byLeafMUID=%d", byNode, byMUID, byLeafMUID)
	}
}

// ResultsWanted answers the non-goal local-UI question "how many more
// results does this query still want, and is it still active" (§6).
func (c *Controller) ResultsWanted(muid query.MUID) (wanted int, stillActive bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.registry.ByMUID(muid)
	if !ok {
		return 0, false
	}
	effective := q.EffectiveKeptResults(c.localKept(q))
	wanted = q.MaxResults - effective
	if wanted < 0 {
		wanted = 0
	}
	return wanted, !q.Flags.Has(query.FlagLinger)
}
