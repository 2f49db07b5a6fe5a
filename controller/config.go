package controller

import (
	"flag"
	"time"
)

// Config holds every tunable the §4.4 state machine consults. Field names
// and defaults are grounded on dht.go's Config/NewConfig/RegisterFlags trio;
// the constants below mirror the values spec.md's glossary names for each
// tunable (MAX_TTL, PROBE_UP, and so on).
type Config struct {
	MaxConnections    int
	NormalConnections int
	ProbeUp           int
	MaxPending        int
	MaxTTL            int

	ProbeTimeout   time.Duration
	QueryTimeout   time.Duration
	PendingTimeout time.Duration
	MinTimeout     time.Duration
	TimeoutAdjust  time.Duration
	LingerTimeout  time.Duration
	StatusTimeout  time.Duration
	MaxLifetime    time.Duration

	MaxHorizon float64
	MinHorizon float64
	LowResults int

	PercentKept    int
	LeafResults    int
	LocalResults   int
	SHA1Decimator  int
	StatThreshold  int
	MinForGuidance int
	MaxStatTimeout int
}

// NewConfig returns the defaults named throughout the spec's glossary.
func NewConfig() Config {
	return Config{
		MaxConnections:    32,
		NormalConnections: 6,
		ProbeUp:           3,
		MaxPending:        3,
		MaxTTL:            5,

		ProbeTimeout:   1500 * time.Millisecond,
		QueryTimeout:   3700 * time.Millisecond,
		PendingTimeout: 1200 * time.Millisecond,
		MinTimeout:     1500 * time.Millisecond,
		TimeoutAdjust:  100 * time.Millisecond,
		LingerTimeout:  3 * time.Minute,
		StatusTimeout:  40 * time.Second,
		MaxLifetime:    10 * time.Minute,

		MaxHorizon: 500000,
		MinHorizon: 3000,
		LowResults: 10,

		PercentKept:    5,
		LeafResults:    50,
		LocalResults:   150,
		SHA1Decimator:  25,
		StatThreshold:  3,
		MinForGuidance: 20,
		MaxStatTimeout: 2,
	}
}

// RegisterFlags binds every tunable to a flag.FlagSet, mirroring
// dht.Config.RegisterFlags so a cmd/dqsim binary can expose them on its
// command line instead of hardcoding NewConfig's defaults.
func (c *Config) RegisterFlags(f *flag.FlagSet) {
	f.IntVar(&c.MaxConnections, "dq.max-connections", c.MaxConnections, "maximum ultrapeer connections a node maintains")
	f.IntVar(&c.NormalConnections, "dq.normal-connections", c.NormalConnections, "steady-state ultrapeer connection count")
	f.IntVar(&c.ProbeUp, "dq.probe-up", c.ProbeUp, "ultrapeers probed in the initial burst")
	f.IntVar(&c.MaxPending, "dq.max-pending", c.MaxPending, "maximum in-flight probes per query")
	f.IntVar(&c.MaxTTL, "dq.max-ttl", c.MaxTTL, "highest TTL a query may carry")

	f.DurationVar(&c.ProbeTimeout, "dq.probe-timeout", c.ProbeTimeout, "per-probe contribution to the initial results timer")
	f.DurationVar(&c.QueryTimeout, "dq.query-timeout", c.QueryTimeout, "starting per-query result timeout")
	f.DurationVar(&c.PendingTimeout, "dq.pending-timeout", c.PendingTimeout, "extra results-timer slack per in-flight probe")
	f.DurationVar(&c.MinTimeout, "dq.min-timeout", c.MinTimeout, "floor for the adaptive result timeout")
	f.DurationVar(&c.TimeoutAdjust, "dq.timeout-adjust", c.TimeoutAdjust, "amount the result timeout shrinks when results lag the horizon")
	f.DurationVar(&c.LingerTimeout, "dq.linger-timeout", c.LingerTimeout, "time a terminated query stays reachable for late feedback")
	f.DurationVar(&c.StatusTimeout, "dq.status-timeout", c.StatusTimeout, "results timer while awaiting a leaf's query status reply")
	f.DurationVar(&c.MaxLifetime, "dq.max-lifetime", c.MaxLifetime, "global backstop deadline from query creation")

	f.Float64Var(&c.MaxHorizon, "dq.max-horizon", c.MaxHorizon, "horizon at which a query stops iterating regardless of results")
	f.Float64Var(&c.MinHorizon, "dq.min-horizon", c.MinHorizon, "horizon below which the adaptive timeout never shrinks")
	f.IntVar(&c.LowResults, "dq.low-results", c.LowResults, "result count considered too sparse relative to horizon")

	f.IntVar(&c.PercentKept, "dq.percent-kept", c.PercentKept, "expected percentage of raw hits a client keeps")
	f.IntVar(&c.LeafResults, "dq.leaf-results", c.LeafResults, "max_results baseline for a leaf-originated query")
	f.IntVar(&c.LocalResults, "dq.local-results", c.LocalResults, "max_results baseline for a local query")
	f.IntVar(&c.SHA1Decimator, "dq.sha1-decimator", c.SHA1Decimator, "divisor applied to max_results for SHA1 URN queries")
	f.IntVar(&c.StatThreshold, "dq.stat-threshold", c.StatThreshold, "new ultrapeers sent to since last status before asking again")
	f.IntVar(&c.MinForGuidance, "dq.min-for-guidance", c.MinForGuidance, "minimum new_results before a status request is worth sending")
	f.IntVar(&c.MaxStatTimeout, "dq.max-stat-timeout", c.MaxStatTimeout, "consecutive status timeouts before guidance is abandoned")
}
