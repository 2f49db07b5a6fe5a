package controller

import (
	"dq/query"
	"dq/stats"
)

// probeDescriptor is the small record captured at send time and handed back
// through the message queue's disposal callback (§4.3). It carries the
// query pointer alongside its id so the disposal callback can detect both
// "the query was destroyed" and "a new query reused this id" — the second
// case a bare id comparison alone would miss.
type probeDescriptor struct {
	q      *query.Query
	peer   query.PeerID
	degree int
	ttl    int
}

// sendProbe allocates a probe descriptor, marks the peer queried, clamps the
// TTL to what the peer will honor, and enqueues the rewritten message with a
// disposal callback (§4.3).
func (c *Controller) sendProbe(q *query.Query, peer query.PeerID, ttl int) {
	attrs, ok := c.peers.PeerAttributes(peer)
	if !ok {
		return
	}
	if ttl > attrs.MaxTTL {
		ttl = attrs.MaxTTL
	}
	if ttl < 1 {
		ttl = 1
	}

	msg, err := q.Template.Rewrite(ttl)
	if err != nil {
		c.log.Errorf("controller: query %d: template rewrite at ttl %d failed: %v", q.ID, ttl, err)
		return
	}

	desc := &probeDescriptor{q: q, peer: peer, degree: attrs.Degree, ttl: ttl}
	q.Queried[peer] = struct{}{}
	q.Pending++
	stats.ProbesSent.Add(1)

	c.queue.Enqueue(peer, msg, func(wasSent bool) {
		c.onProbeDisposed(desc, wasSent)
	})
}

// onProbeDisposed applies the confirmed-sent accounting update (§4.3):
// pending, horizon, and up_sent only change here, never at send time, since
// "sent" is only known once the queue reports it.
func (c *Controller) onProbeDisposed(desc *probeDescriptor, wasSent bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	live, ok := c.registry.ByID(desc.q.ID)
	if !ok || live != desc.q {
		// Query destroyed, or its id has already been reissued to a
		// different query: discard the descriptor silently (§4.3).
		return
	}
	q := desc.q
	q.Pending--

	if wasSent {
		q.Horizon += c.horizon.Estimate(desc.degree, desc.ttl)
		q.UpSent++
		return
	}

	stats.ProbesDropped.Add(1)
	delete(q.Queried, desc.peer)
	if q.Pending == 0 && q.ResultsTimer != nil {
		c.rearmImmediately(q)
	}
}
