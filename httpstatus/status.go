// Package httpstatus exposes a read-only /debug/dq endpoint over the
// controller's live query table and gauges, adapted from the teacher's
// HTTPserver.go (its ServeHTTP/StartHTTPServer pair), generalized from the
// teacher's single POST-to-add-a-node handler into a GET-only status dump —
// there is nothing in this domain's non-goal HTTP surface (§6) for a client
// to mutate.
package httpstatus

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"dq/query"
	"dq/stats"
)

// Source is the read-only view the status handler needs; *dq.DQ satisfies
// it without this package importing the root package.
type Source interface {
	Registry() *query.Registry
	Gauges() *stats.Gauges
}

// Handler serves a JSON snapshot of the controller's state at GET /debug/dq.
type Handler struct {
	Source Source
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	gauges := h.Source.Gauges()
	snap := snapshot{
		ActiveQueries:     gauges.ActiveQueries.Get(),
		LingeringQueries:  gauges.LingeringQueries.Get(),
		RegisteredQueries: h.Source.Registry().Count(),
	}
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		log.Printf("httpstatus: encoding snapshot: %v", err)
	}
}

type snapshot struct {
	ActiveQueries     int64 `json:"active_queries"`
	LingeringQueries  int64 `json:"lingering_queries"`
	RegisteredQueries int   `json:"registered_queries"`
}

// StartServer registers the handler and blocks serving it, mirroring
// HTTPserver.go's StartHTTPServer: a thin wrapper a caller runs in its own
// goroutine.
func StartServer(host, port string, h Handler) {
	serviceAddr := fmt.Sprintf("%s:%s", host, port)
	mux := http.NewServeMux()
	mux.Handle("/debug/dq", h)
	srv := &http.Server{Addr: serviceAddr, Handler: mux}
	log.Println(srv.Addr)
	log.Println(srv.ListenAndServe())
}
