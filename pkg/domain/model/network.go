package model

import (
	"net/netip"
)

// Family is the IP address family a connection used
type Family int

const (
	FamilyUnknown Family = iota
	FamilyIPv4
	FamilyIPv6
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "IPv4"
	case FamilyIPv6:
		return "IPv6"
	default:
		return "unknown"
	}
}

// FamilyOf classifies an address. IPv4-mapped IPv6 addresses count as IPv4.
func FamilyOf(addr netip.Addr) Family {
	switch {
	case !addr.IsValid():
		return FamilyUnknown
	case addr.Is4(), addr.Is4In6():
		return FamilyIPv4
	default:
		return FamilyIPv6
	}
}

// DialMode selects how a transport resolves and connects
type DialMode int

const (
	// DialModeObserve keeps the system dual-stack behavior and only records
	// which family and peer were used.
	DialModeObserve DialMode = iota
	// DialModeForceV6 resolves AAAA records only and fails when there are none.
	DialModeForceV6
)

func (m DialMode) String() string {
	switch m {
	case DialModeForceV6:
		return "force-ipv6"
	default:
		return "observe"
	}
}

// ConnectionObservation is the metadata of the most recent successful connect
type ConnectionObservation struct {
	Family Family
	Peer   netip.AddrPort
}

// PeerString renders the peer address, or "-" when none was observed
func (o ConnectionObservation) PeerString() string {
	if !o.Peer.IsValid() {
		return "-"
	}
	return o.Peer.String()
}
