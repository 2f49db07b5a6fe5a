// Command dqsim drives the dynamic-query controller against a small
// synthetic ultrapeer network, adapted from the teacher's
// examples/find_infohash_and_wait: launch a query, print once a second how
// many results it still wants while an HTTP endpoint exposes live stats, and
// shut down once the query is no longer active.
//
// There is a builtin web server that can be used to collect debugging stats
// from http://localhost:8711/debug/dq.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"dq"
	"dq/httpstatus"
)

const httpPort = 8711

func main() {
	var (
		peerCount  = flag.Int("peers", 200, "number of synthetic ultrapeers in the simulated overlay")
		searchText = flag.String("search", "ubuntu iso", "search text to launch")
		seed       = flag.Int64("seed", 1, "PRNG seed for the simulated network")
	)
	cfg := dq.NewConfig()
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	net := newSimNetwork(*seed, *peerCount)
	controller := dq.New(cfg, dq.Deps{
		Peers:       net,
		Queue:       net,
		QRP:         net,
		OOB:         net,
		LocalSearch: net,
		Vendor:      net,
		IsUltrapeer: func() bool { return true },
		OOBUsable:   func() bool { return false },
	})

	go httpstatus.StartServer("localhost", fmt.Sprintf("%d", httpPort), httpstatus.Handler{Source: controller})

	q, err := controller.LaunchLocal(1, dq.LaunchParams{SearchText: *searchText, TTL: 4})
	if err != nil {
		fmt.Fprintf(os.Stderr, "LaunchLocal error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("launched query %d (muid %s) for %q against %d simulated ultrapeers\n", q.ID, q.MUID, *searchText, *peerCount)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		wanted, active := controller.ResultsWanted(q.MUID)
		fmt.Printf("results wanted=%d active=%v registered_queries=%d\n", wanted, active, controller.Registry().Count())
		if !active {
			break
		}
	}
	controller.Shutdown()
}
