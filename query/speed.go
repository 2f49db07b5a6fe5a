package query

// Speed-field bits consulted from a leaf's marked-speed flags, captured at
// launch into Query.QueryFlags (supplemented from original_source's
// dq_launch_net, which stashes the raw field so later checks don't need to
// re-parse the wire message).
const (
	SpeedFlagFirewalled        uint16 = 1 << 0
	SpeedFlagFWTransferSupport uint16 = 1 << 1
	SpeedFlagLeafGuidance      uint16 = 1 << 2
)

// Firewalled reports whether the originator advertised itself as firewalled.
func Firewalled(flags uint16) bool {
	return flags&SpeedFlagFirewalled != 0
}

// SupportsFirewallToFirewall reports whether the originator advertised
// firewall-to-firewall transfer support.
func SupportsFirewallToFirewall(flags uint16) bool {
	return flags&SpeedFlagFWTransferSupport != 0
}
