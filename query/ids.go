// Package query holds the dynamic-query data model: identifiers, flags, the
// per-TTL message template, and the Query struct itself (§3 of the spec).
//
// The identifier types below are grounded on the teacher's util.InfoHash:
// a small byte-string wrapper with a hex String() and a decode helper,
// reused here for the wire-visible MUID instead of a 20-byte infohash.
package query

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// PeerID is a stable identifier for a neighbor connection, stable across the
// peer's lifetime even if its address changes (§3: "its id (stable across
// the peer's lifetime)").
type PeerID uint32

// SelfID is the distinguished node id used for locally-originated queries
// (spec §3: "the originating node id (or a distinguished SELF value)").
const SelfID PeerID = 0

// QueryID is the locally generated, reused-address-safe 32-bit identifier
// for one dynamic query (§3).
type QueryID uint32

// MUID is the network-visible Gnutella message id: 16 raw bytes.
type MUID [16]byte

// String renders the MUID as lowercase hex, mirroring util.InfoHash.String().
func (m MUID) String() string {
	return hex.EncodeToString(m[:])
}

// DecodeMUID parses a 32-character hex string into an MUID, mirroring
// util.DecodeInfoHash's length validation.
func DecodeMUID(s string) (MUID, error) {
	var m MUID
	b, err := hex.DecodeString(s)
	if err != nil {
		return m, err
	}
	if len(b) != len(m) {
		return m, fmt.Errorf("query: DecodeMUID: expected %d bytes, got %d", len(m), len(b))
	}
	copy(m[:], b)
	return m, nil
}

// Zero reports whether the MUID is all zero bytes, used to detect an unset
// leaf MUID (§3: "leaf_muid ... Original MUID the leaf knows").
func (m MUID) Zero() bool {
	return m == MUID{}
}

// NewRandomMUID draws a fresh 16-byte message id for a newly launched query.
func NewRandomMUID() (MUID, error) {
	var m MUID
	if _, err := rand.Read(m[:]); err != nil {
		return m, fmt.Errorf("query: NewRandomMUID: %w", err)
	}
	return m, nil
}

// SearchHandle identifies a local search in the non-goal local-search
// collaborator (§6: "local_search_closed(search_handle)").
type SearchHandle uint64

// AliveHandle is a handle to a peer's round-trip statistics, present only
// for network-originated queries (§3: "alive ... none for local").
type AliveHandle struct {
	Peer PeerID
	set  bool
}

// NewAliveHandle builds a handle bound to a peer's keepalive statistics.
func NewAliveHandle(peer PeerID) AliveHandle {
	return AliveHandle{Peer: peer, set: true}
}

// Valid reports whether the handle refers to a real peer (false for local
// queries, which have no alive handle).
func (a AliveHandle) Valid() bool {
	return a.set
}

// QueryHashVector is the opaque QRP filter payload owned by the query (§3:
// "qhv ... Owned by the query").
type QueryHashVector []byte
