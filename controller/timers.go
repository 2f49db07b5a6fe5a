package controller

import (
	"time"

	"dq/query"
)

// Every timer callback re-resolves its query by id through the registry
// instead of closing over the *query.Query directly (§9's design note:
// "disposal descriptors hold a weak handle that upgrades-or-fails at
// callback time"). A query destroyed between arming and firing is simply
// gone from the registry by the time the callback runs, so the callback is
// a silent no-op — there is no dangling pointer to guard against because Go
// never frees the Query while the closure still references its id lookup
// path, and an id that has since been reissued will resolve to a different
// *query.Query than the one the timer was armed for only if the caller also
// compares pointers, which the probe-disposal path does (see send.go); timers
// don't need to, since re-running a stale timer callback against whatever
// now owns that id is harmless — the worst case is one spurious iterative
// step, which the state machine already treats as routine.

func (c *Controller) armResultsTimer(q *query.Query, d time.Duration) {
	if q.ResultsTimer != nil {
		q.ResultsTimer.Stop()
	}
	id := q.ID
	q.ResultsTimer = c.clock.AfterFunc(d, func() {
		c.onResultsTimerFiredByID(id)
	})
}

func (c *Controller) cancelResultsTimer(q *query.Query) {
	if q.ResultsTimer != nil {
		q.ResultsTimer.Stop()
		q.ResultsTimer = nil
	}
}

func (c *Controller) onResultsTimerFiredByID(id query.QueryID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.registry.ByID(id)
	if !ok {
		return
	}
	c.onResultsTimerFired(q)
}

// armExpireTimer (re)arms the single expire-timer slot, used both as the
// MAX_LIFETIME backstop from launch and, from terminate(), as the shorter
// linger deadline — see the Open Question note in DESIGN.md on why this is
// one timer slot reused rather than two concurrently-armed timers.
func (c *Controller) armExpireTimer(q *query.Query, d time.Duration) {
	if q.ExpireTimer != nil {
		q.ExpireTimer.Stop()
	}
	id := q.ID
	q.ExpireTimer = c.clock.AfterFunc(d, func() {
		c.onExpireTimerFiredByID(id)
	})
}

func (c *Controller) cancelExpireTimer(q *query.Query) {
	if q.ExpireTimer != nil {
		q.ExpireTimer.Stop()
		q.ExpireTimer = nil
	}
}

func (c *Controller) onExpireTimerFiredByID(id query.QueryID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.registry.ByID(id)
	if !ok {
		return
	}
	c.onExpireTimerFired(q)
}

func (c *Controller) onExpireTimerFired(q *query.Query) {
	q.ExpireTimer = nil
	c.destroy(q)
}

// rearmImmediately reschedules the results timer a tick out rather than
// invoking the expiry handler in the same stack frame, per §5's reentrancy
// warning: a disposal callback that fires while pending has just dropped to
// zero must not recurse into sendNext from inside the send path itself.
func (c *Controller) rearmImmediately(q *query.Query) {
	c.armResultsTimer(q, time.Millisecond)
}
