package query

import (
	"bytes"
	"sync"

	bencode "github.com/jackpal/bencode-go"
)

// wireSearch is the bencoded payload carried by a probe: a small dictionary
// in the spirit of the KRPC dictionaries the teacher's remoteNode/krpc.go
// encodes with the same library, standing in for the real Gnutella wire
// framing (explicitly a non-goal, §1).
type wireSearch struct {
	Query   string `bencode:"q"`
	TTL     int64  `bencode:"ttl"`
	Speed   int64  `bencode:"spd"`
	OOB     int64  `bencode:"oob"`
	URN     string `bencode:"urn,omitempty"`
	MUID    string `bencode:"muid"`
}

// Template is the canonical copy of a search message plus lazily
// materialized per-TTL rewrites, mirroring §3: "one canonical copy is kept,
// plus one rewrite per TTL value (lazily materialized) so that send paths
// can reuse buffers."
//
// Grounded on arena.Arena's free-list idiom: instead of a channel of
// pre-allocated blocks, this keeps a small fixed array indexed by TTL
// (1..horizon.MaxTTL) of already-encoded buffers, populated on first use and
// reused by every probe sent at that TTL afterward.
type Template struct {
	mu       sync.Mutex
	base     wireSearch
	oobFlag  bool
	rewrites [6][]byte // index 0 unused, TTL is 1-indexed up to MaxTTL=5
}

// NewTemplate builds the canonical template for a query's search text, its
// marked-speed flags, and an optional SHA1 URN.
func NewTemplate(searchText string, speedFlags uint16, urn string, muid MUID) *Template {
	return &Template{
		base: wireSearch{
			Query: searchText,
			Speed: int64(speedFlags),
			URN:   urn,
			MUID:  muid.String(),
		},
		oobFlag: true,
	}
}

// SetOOBFlag toggles the OOB-request bit carried in every subsequent
// rewrite, matching dq.c's dq_set_oob_flag/dq_strip_oob_flag: the controller
// decides once at launch whether it proxies OOB itself or must strip the
// flag so replies route back normally (§4.4.1).
func (t *Template) SetOOBFlag(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.oobFlag == on {
		return
	}
	t.oobFlag = on
	for i := range t.rewrites {
		t.rewrites[i] = nil
	}
}

// OOBFlag reports the template's current OOB-request bit.
func (t *Template) OOBFlag() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.oobFlag
}

// Rewrite returns the encoded message for the given TTL, materializing and
// caching it on first use.
func (t *Template) Rewrite(ttl int) ([]byte, error) {
	if ttl < 1 || ttl >= len(t.rewrites) {
		ttl = len(t.rewrites) - 1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if cached := t.rewrites[ttl]; cached != nil {
		return cached, nil
	}
	msg := t.base
	msg.TTL = int64(ttl)
	if t.oobFlag {
		msg.OOB = 1
	} else {
		msg.OOB = 0
	}
	var buf bytes.Buffer
	if err := bencode.Marshal(&buf, msg); err != nil {
		return nil, err
	}
	encoded := buf.Bytes()
	t.rewrites[ttl] = encoded
	return encoded, nil
}
