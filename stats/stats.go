// Package stats holds the DQ controller's process-wide counters: expvar
// monotonic totals for the usual increment-and-forget metrics (mirroring
// dht.go's totalSentGetPeers-style package vars), plus a few atomic gauges
// that the status endpoint (httpstatus) reads without taking the
// controller's mutex, under which they are written.
package stats

import (
	"expvar"

	"vitess.io/vitess/go/sync2"
)

var (
	QueriesLaunched  = expvar.NewInt("dq_queries_launched")
	QueriesTerminated = expvar.NewMap("dq_queries_terminated_by_reason")
	QueriesDestroyed = expvar.NewInt("dq_queries_destroyed")
	ProbesSent       = expvar.NewInt("dq_probes_sent")
	ProbesDropped    = expvar.NewInt("dq_probes_dropped")
	StatusRequests   = expvar.NewInt("dq_status_requests_sent")
	GuidanceTimeouts = expvar.NewInt("dq_guidance_timeouts")
)

// Gauges are read concurrently by the HTTP status handler while the
// controller updates them under its own mutex, which the handler does not
// take — so these specific counters use vitess's atomic
// int64 wrapper instead of a bare field, the same way the teacher's own
// /debug/vars endpoint reads expvar counters a production mq goroutine is
// concurrently incrementing.
type Gauges struct {
	ActiveQueries   sync2.AtomicInt64
	LingeringQueries sync2.AtomicInt64
}

// NewGauges builds a zeroed gauge set.
func NewGauges() *Gauges {
	return &Gauges{}
}
