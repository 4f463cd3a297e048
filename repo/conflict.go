package repo

import (
	"net"
	"strings"

	"github.com/kdanielm/mdnscore/dnsname"
	"github.com/kdanielm/mdnscore/mpacket"
	"github.com/kdanielm/mdnscore/record"
	"github.com/kdanielm/mdnscore/registry"
)

// Conflict names a registration whose advertised rdata disagrees with a
// record observed on the wire at the same name, per spec.md §4.4.5 (P8,
// S4). Kind distinguishes a conflict on the service's own records
// (SRV/TXT) from one on its host's address set, since the two call for
// different recovery (rename the instance vs. reprobe the host).
type Conflict struct {
	ServiceID int64
	Kind      ConflictKind
}

// GetConflictingServices scans an incoming packet's answer and authority
// sections for records that collide with a registration's own SRV/TXT or
// host A/AAAA records — the "apparent conflict" of RFC 6762 §9. Probing
// registrations are included: a conflict observed mid-probe must abort
// and rename before announcing.
func (r *Repository) GetConflictingServices(pkt *mpacket.Packet) []Conflict {
	observed := append(append([]record.Record{}, pkt.Answers...), pkt.Authority...)
	if len(observed) == 0 {
		return nil
	}

	var conflicts []Conflict
	reportedHosts := make(map[string]bool)

	for _, svc := range sortedByID(r.table.All()) {
		if svc.State == registry.Removed || svc.State == registry.Exiting {
			continue
		}
		instanceLabels := r.instanceLabels(svc)
		hostLabels := r.hostLabels(svc)

		if serviceConflict(observed, r.buildSRV(svc, instanceLabels), instanceLabels) ||
			serviceConflict(observed, r.buildTXT(svc, instanceLabels), instanceLabels) {
			conflicts = append(conflicts, Conflict{svc.ID, ConflictService})
		}

		hostKey := strings.ToLower(hostLabels.String())
		if reportedHosts[hostKey] {
			continue
		}
		if hostAddressConflict(observed, hostLabels, r.hostAddresses(svc)) {
			conflicts = append(conflicts, Conflict{svc.ID, ConflictHost})
			reportedHosts[hostKey] = true
		}
	}
	return conflicts
}

// serviceConflict reports whether observed contains a record at name with
// ours's type and differs in rdata or TTL (spec.md §4.4.5: "or TTL != our
// TTL"). An exact match on both rdata and TTL is the router echoing our
// own announcement back, not a conflict.
func serviceConflict(observed []record.Record, ours record.Record, name dnsname.Labels) bool {
	for _, o := range observed {
		if o.RRType() != ours.RRType() {
			continue
		}
		if !dnsname.EqualFold(o.Hdr().Name, name) {
			continue
		}
		if !o.RDataEqual(ours) {
			return true
		}
		if o.Hdr().TTLMs != ours.Hdr().TTLMs {
			return true
		}
	}
	return false
}

// hostAddressConflict reports whether the incoming A/AAAA records at
// hostLabels carry any address ours doesn't own. A strict subset (or
// exact match) of ours is not a conflict (spec.md §4.4.5, S4).
func hostAddressConflict(observed []record.Record, hostLabels dnsname.Labels, ours []net.IP) bool {
	owned := make(map[string]bool, len(ours))
	for _, ip := range ours {
		owned[ip.String()] = true
	}
	for _, o := range observed {
		var incomingIP net.IP
		switch v := o.(type) {
		case *record.A:
			incomingIP = v.Addr
		case *record.AAAA:
			incomingIP = v.Addr
		default:
			continue
		}
		if !dnsname.EqualFold(o.Hdr().Name, hostLabels) {
			continue
		}
		if !owned[incomingIP.String()] {
			return true
		}
	}
	return false
}
