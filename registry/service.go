package registry

import (
	"net"

	"github.com/kdanielm/mdnscore/record"
)

// State is a registration's position in the probe -> announce -> active
// -> exiting -> removed lifecycle (spec.md §3, invariant I4: forward
// only, ids never reused after Removed).
type State int

const (
	Probing State = iota
	Announcing
	Active
	Exiting
	Removed
)

func (s State) String() string {
	switch s {
	case Probing:
		return "Probing"
	case Announcing:
		return "Announcing"
	case Active:
		return "Active"
	case Exiting:
		return "Exiting"
	case Removed:
		return "Removed"
	default:
		return "Unknown"
	}
}

// HostSpec describes whether a registration uses the repository's
// default per-process host, or a custom host name it shares with other
// registrations (spec.md §3).
type HostSpec struct {
	Custom    bool
	Label     string // custom host label, e.g. "TestHost"; ignored if !Custom
	Addresses []net.IP
}

// ServiceInfo is the caller-supplied registration payload for AddService.
type ServiceInfo struct {
	InstanceName string
	ServiceType  string // may carry a comma-separated subtype list, spec.md §6
	Port         int
	TXT          []record.TXTEntry
	Host         HostSpec
}

// Service is the stored registration record, spec.md §3/§4.3.
type Service struct {
	ID           int64
	InstanceName string
	ServiceType  string
	Subtypes     []string
	Port         int
	TXT          []record.TXTEntry
	Host         HostSpec
	State        State
	TTLOverrideMs int64 // 0 means "use defaults"

	SentPacketCount     int
	RepliedRequestCount int
	announcedOnce       bool
	exitSent            bool

	clientID string
}

// AnnouncedOnce reports whether at least one announcement packet has
// been recorded sent for this registration.
func (s *Service) AnnouncedOnce() bool {
	return s.announcedOnce
}

// EffectiveTTL returns the TTL to use for the given default, honoring a
// per-registration override (spec.md §3 invariant I5, §6).
func (s *Service) EffectiveTTL(defaultTTLMs int64) int64 {
	if s.TTLOverrideMs > 0 {
		return s.TTLOverrideMs
	}
	return defaultTTLMs
}
