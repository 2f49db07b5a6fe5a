// Package dq implements an ultrapeer's dynamic-query controller: adaptive,
// horizon-bounded keyword-search fan-out over a Gnutella-style overlay.
//
// DQ is the process-wide facade, mirroring dht.go's *DHT: a thin wrapper
// around the controller that owns the query table, constructed once per
// node and driven from a single goroutine.
package dq

import (
	"dq/controller"
	"dq/query"
	"dq/stats"
)

// Deps re-exports the controller's dependency bundle so callers never need
// to import the controller package directly.
type Deps = controller.Deps

// LaunchParams re-exports the controller's per-query launch input.
type LaunchParams = controller.LaunchParams

// HitStatus re-exports the per-reply flags on_hits needs.
type HitStatus = controller.HitStatus

// DQ is the entry point a node's Gnutella message-handling code talks to.
type DQ struct {
	c *controller.Controller
}

// New builds a DQ controller ready to accept launches.
func New(cfg Config, deps Deps) *DQ {
	return &DQ{c: controller.New(cfg, deps)}
}

// LaunchFromPeer starts a query relayed on behalf of a leaf (§4.4.1).
func (d *DQ) LaunchFromPeer(peer query.PeerID, speedFlags uint16, params LaunchParams) (*query.Query, error) {
	return d.c.LaunchFromPeer(peer, speedFlags, params)
}

// LaunchLocal starts a query on behalf of the local node's own search UI.
func (d *DQ) LaunchLocal(handle query.SearchHandle, params LaunchParams) (*query.Query, error) {
	return d.c.LaunchLocal(handle, params)
}

// OnHits is the regular-hit feedback entry point (§4.4.6).
func (d *DQ) OnHits(muid query.MUID, count int, status HitStatus) bool {
	return d.c.OnHits(muid, count, status)
}

// OnOOBIndication records an OOB hit-count indication (§4.4.6).
func (d *DQ) OnOOBIndication(muid query.MUID, count int) bool {
	return d.c.OnOOBIndication(muid, count)
}

// OnOOBClaim retracts results from the OOB budget once claimed.
func (d *DQ) OnOOBClaim(muid query.MUID, count int) {
	d.c.OnOOBClaim(muid, count)
}

// OnQueryStatus handles a leaf's query-status reply (§4.4.7).
func (d *DQ) OnQueryStatus(muid query.MUID, fromPeer query.PeerID, kept int) {
	d.c.OnQueryStatus(muid, fromPeer, kept)
}

// PeerRemoved tears down every query the departing peer originated (§4.4.9).
func (d *DQ) PeerRemoved(peer query.PeerID) {
	d.c.PeerRemoved(peer)
}

// LocalSearchClosed cancels every live query tied to a closed local search.
func (d *DQ) LocalSearchClosed(handle query.SearchHandle) {
	d.c.LocalSearchClosed(handle)
}

// Cancel user-cancels a query by id.
func (d *DQ) Cancel(id query.QueryID) {
	d.c.Cancel(id)
}

// ResultsWanted reports how many more results a query still wants.
func (d *DQ) ResultsWanted(muid query.MUID) (wanted int, stillActive bool) {
	return d.c.ResultsWanted(muid)
}

// Shutdown tears every live query down, for process exit (§4.4.9).
func (d *DQ) Shutdown() {
	d.c.Shutdown()
}

// Registry exposes the query table read-only, for the status endpoint.
func (d *DQ) Registry() *query.Registry {
	return d.c.Registry()
}

// Gauges exposes the atomic gauges read-only, for the status endpoint.
func (d *DQ) Gauges() *stats.Gauges {
	return d.c.Gauges()
}
