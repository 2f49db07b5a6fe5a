package query

import "dq/logger"

// Registry is the process-wide query table: a single owning index by query
// id, and three non-owning indexes for routing feedback and cleanup,
// mirroring §3's "reachable from at most four indexes" and §9's design note
// preferring "a single owning map and three non-owning maps keyed by MUID,
// leaf-MUID, and peer-id" over the original's parallel hash tables.
//
// Grounded on routingTable.RoutingTable's shape: one primary map
// (Addresses), an error-returning Insert, and idempotent removal — adapted
// here to four maps instead of one, since the domain calls for MUID/peer
// routing rather than address routing.
type Registry struct {
	byQuery    map[QueryID]*Query
	byNode     map[PeerID]map[QueryID]*Query
	byMUID     map[MUID]*Query
	byLeafMUID map[MUID]*Query

	log logger.DebugLogger
}

// NewRegistry builds an empty registry.
func NewRegistry(log logger.DebugLogger) *Registry {
	return &Registry{
		byQuery:    make(map[QueryID]*Query),
		byNode:     make(map[PeerID]map[QueryID]*Query),
		byMUID:     make(map[MUID]*Query),
		byLeafMUID: make(map[MUID]*Query),
		log:        log,
	}
}

// Register indexes q under every applicable key. A MUID or leaf-MUID
// collision is non-fatal per §7: the second registration is not indexed
// under that key (feedback for it will be silently dropped), but the query
// still proceeds under its other keys, matching the teacher's practice of
// warning and continuing rather than aborting (e.g. RoutingTable.Insert
// tolerating an already-known address).
func (r *Registry) Register(q *Query) {
	r.byQuery[q.ID] = q

	if q.Kind == KindRemote {
		if r.byNode[q.NodeID] == nil {
			r.byNode[q.NodeID] = make(map[QueryID]*Query)
		}
		r.byNode[q.NodeID][q.ID] = q
	}

	if existing, ok := r.byMUID[q.MUID]; ok && existing != q {
		r.log.Warnf("query: MUID collision registering query %d, muid %s already owned by query %d", q.ID, q.MUID, existing.ID)
	} else {
		r.byMUID[q.MUID] = q
	}

	if !q.LeafMUID.Zero() {
		if existing, ok := r.byLeafMUID[q.LeafMUID]; ok && existing != q {
			r.log.Warnf("query: leaf MUID collision registering query %d, leaf muid %s already owned by query %d", q.ID, q.LeafMUID, existing.ID)
		} else {
			r.byLeafMUID[q.LeafMUID] = q
		}
	}
}

// ByID looks up a query by its local id.
func (r *Registry) ByID(id QueryID) (*Query, bool) {
	q, ok := r.byQuery[id]
	return q, ok
}

// ByMUID looks up a query by its on-wire message id. Returns false for an
// unindexed (e.g. collided) or unknown MUID, in which case the caller must
// silently drop the feedback (§7).
func (r *Registry) ByMUID(muid MUID) (*Query, bool) {
	q, ok := r.byMUID[muid]
	return q, ok
}

// ByLeafMUID looks up a query by the MUID the originating leaf knows, used
// when a query was OOB-proxied and the wire MUID differs from the leaf's.
func (r *Registry) ByLeafMUID(muid MUID) (*Query, bool) {
	q, ok := r.byLeafMUID[muid]
	return q, ok
}

// ByNode returns every live query originated by the given peer, used when
// the peer disappears (§4.4.9).
func (r *Registry) ByNode(peer PeerID) []*Query {
	m := r.byNode[peer]
	if len(m) == 0 {
		return nil
	}
	out := make([]*Query, 0, len(m))
	for _, q := range m {
		out = append(out, q)
	}
	return out
}

// Remove removes q from every index it appears in. Idempotent: removing an
// already-removed or never-registered query is a no-op, tolerating the row
// being absent exactly as §3 invariant 5 requires.
func (r *Registry) Remove(q *Query) {
	delete(r.byQuery, q.ID)

	if byNode, ok := r.byNode[q.NodeID]; ok {
		delete(byNode, q.ID)
		if len(byNode) == 0 {
			delete(r.byNode, q.NodeID)
		}
	}

	if existing, ok := r.byMUID[q.MUID]; ok && existing == q {
		delete(r.byMUID, q.MUID)
	}
	if existing, ok := r.byLeafMUID[q.LeafMUID]; ok && existing == q {
		delete(r.byLeafMUID, q.LeafMUID)
	}
}

// Count returns the number of live queries, exposed for the status endpoint.
func (r *Registry) Count() int {
	return len(r.byQuery)
}

// All returns every live query, used at shutdown (§4.4.9).
func (r *Registry) All() []*Query {
	out := make([]*Query, 0, len(r.byQuery))
	for _, q := range r.byQuery {
		out = append(out, q)
	}
	return out
}

// Orphans reports the size of the non-owning indexes that should have gone
// to zero alongside byQuery, for the shutdown warning in §4.4.9 ("tears down
// each index with a warning for any orphans").
func (r *Registry) Orphans() (byNode, byMUID, byLeafMUID int) {
	for _, m := range r.byNode {
		byNode += len(m)
	}
	return byNode, len(r.byMUID), len(r.byLeafMUID)
}
