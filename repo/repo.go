// Package repo implements the repository core of spec.md §4.4: the
// registration table (no name->owner index is kept; record names are
// computed from each registration on every lookup), probing/announcement/exit
// packet builders, query-reply synthesis (known-answer suppression,
// unicast selection, NSEC synthesis), and conflict detection.
//
// Repository holds no locks, performs no I/O, and blocks on nothing
// (spec.md §5): every method is a pure transform of in-memory state plus
// a caller-supplied "now" timestamp, executed on whatever single owner
// thread the caller serializes onto.
package repo

import (
	"net"
	"sort"
	"strings"

	"github.com/kdanielm/mdnscore/dnsname"
	"github.com/kdanielm/mdnscore/record"
	"github.com/kdanielm/mdnscore/registry"
)

// Options configures a Repository's feature flags and identity, passed
// at construction per spec.md §9 ("no global mutable state... feature
// flags are passed into the repository constructor").
type Options struct {
	// Privileged widens the accepted TTL override range (spec.md §6).
	Privileged bool
	// DefaultHostLabel is the first label of this process's default
	// host name, e.g. "Android_000102030405060708090A0B0C0D0E0F"
	// (spec.md §6). Registrations without a custom host share it.
	DefaultHostLabel string
	// Domain is the mDNS domain suffix, normally "local".
	Domain string

	// IncludeHostInProbing adds a second ANY question (and A/AAAA
	// authority records) for the host-owning name during probing
	// (spec.md §4.4.1, P2).
	IncludeHostInProbing bool
	// KnownAnswerSuppression enables RFC 6762 §7.1 suppression in
	// GetReply (spec.md §4.4.4 step 2).
	KnownAnswerSuppression bool
	// UnicastReply enables destination selection per the unicast-bit of
	// matched questions (spec.md §4.4.4 step 4). When false, every
	// reply is multicast regardless of question bits.
	UnicastReply bool
}

func (o Options) domain() string {
	if o.Domain == "" {
		return "local"
	}
	return o.Domain
}

// ConflictKind distinguishes a service-record conflict (SRV/TXT rdata or
// TTL mismatch) from a host-address conflict (spec.md §4.4.5).
type ConflictKind int

const (
	ConflictService ConflictKind = iota
	ConflictHost
)

func (k ConflictKind) String() string {
	if k == ConflictHost {
		return "HOST"
	}
	return "SERVICE"
}

// Repository is the record repository and responder engine core.
type Repository struct {
	opts      Options
	table     *registry.Table
	addresses []net.IP // current interface address snapshot (spec.md §4.6)
}

// New constructs a Repository. Feature flags and host identity are fixed
// for the repository's lifetime.
func New(opts Options) *Repository {
	return &Repository{
		opts:  opts,
		table: registry.New(opts.Privileged),
	}
}

// UpdateAddresses replaces the current interface-address snapshot
// (spec.md §4.6: InterfaceAddressProvider.updateAddresses). It copies the
// slice; the caller's slice is not retained.
func (r *Repository) UpdateAddresses(addrs []net.IP) {
	cp := make([]net.IP, len(addrs))
	copy(cp, addrs)
	r.addresses = cp
}

// --- Registration table delegation (spec.md §4.3) ---

// AddService validates and inserts a registration, per spec.md §4.3.
func (r *Repository) AddService(id int64, info registry.ServiceInfo, ttlOverrideMs int64) (existingID int64, isNew bool, err error) {
	info.InstanceName = dnsname.TruncateUTF8(info.InstanceName, 63)
	return r.table.AddService(id, info, ttlOverrideMs)
}

func (r *Repository) UpdateService(id int64, subtypes []string) error { return r.table.UpdateService(id, subtypes) }
func (r *Repository) RemoveService(id int64) error                    { return r.table.RemoveService(id) }
func (r *Repository) HasActiveService() bool                          { return r.table.HasActiveService() }
func (r *Repository) IsProbing(id int64) (bool, error)                { return r.table.IsProbing(id) }
func (r *Repository) ServicesCount() int                              { return r.table.ServicesCount() }
func (r *Repository) ClearServices() []int64                          { return r.table.ClearServices() }

// ServiceIDs returns the ids of every registration currently in the
// table, sorted ascending, for callers that need to wind down every
// registration individually (e.g. a goodbye packet per id) before
// discarding the table wholesale via ClearServices.
func (r *Repository) ServiceIDs() []int64 {
	all := sortedByID(r.table.All())
	ids := make([]int64, len(all))
	for i, svc := range all {
		ids[i] = svc.ID
	}
	return ids
}
func (r *Repository) Reserve(clientID string) error                   { return r.table.Reserve(clientID) }
func (r *Repository) Release(clientID string)                         { r.table.Release(clientID) }

// RequestStopWhenInactive reports whether the repository has become
// fully idle (spec.md §4.6: RequestStopWhenInactive upward signal). It is
// an observer, not a callback — the caller polls it after mutations.
func (r *Repository) RequestStopWhenInactive() bool {
	return r.table.ServicesCount() == 0
}

// --- Name construction ---

func (r *Repository) typeLabels(svc *registry.Service) dnsname.Labels {
	return dnsname.Parse(svc.ServiceType).Append(r.opts.domain())
}

func (r *Repository) instanceLabels(svc *registry.Service) dnsname.Labels {
	return dnsname.Labels{svc.InstanceName}.Append(r.typeLabels(svc)...)
}

func (r *Repository) subtypeQueryLabels(svc *registry.Service, subtype string) dnsname.Labels {
	return dnsname.Labels{subtype, "_sub"}.Append(r.typeLabels(svc)...)
}

func (r *Repository) enumerationLabels() dnsname.Labels {
	return dnsname.Labels{"_services", "_dns-sd", "_udp", r.opts.domain()}
}

func (r *Repository) hostLabel(svc *registry.Service) string {
	if svc.Host.Custom {
		return svc.Host.Label
	}
	return r.opts.DefaultHostLabel
}

func (r *Repository) hostLabels(svc *registry.Service) dnsname.Labels {
	return dnsname.Labels{r.hostLabel(svc), r.opts.domain()}
}

// hostAddresses returns the effective address set for svc's host: the
// registration's own declared addresses for a custom host, else the
// repository's current interface-address snapshot (spec.md §3/§4.6).
func (r *Repository) hostAddresses(svc *registry.Service) []net.IP {
	if svc.Host.Custom {
		return svc.Host.Addresses
	}
	return r.addresses
}

func splitFamilies(addrs []net.IP) (v4, v6 []net.IP) {
	for _, ip := range addrs {
		if ip.To4() != nil {
			v4 = append(v4, ip)
		} else if ip.To16() != nil {
			v6 = append(v6, ip)
		}
	}
	return v4, v6
}

// recordKey is the case-insensitive (name, type, rdata) identity used to
// de-duplicate additional answers (spec.md §4.4.4 step 3).
func recordKey(r record.Record) string {
	h := r.Hdr()
	key := strings.ToLower(h.Name.String()) + "|" + r.RRType().String()
	switch v := r.(type) {
	case *record.PTR:
		key += "|" + strings.ToLower(v.Pointer.String())
	case *record.SRV:
		key += "|" + strings.ToLower(v.Target.String())
	case *record.A:
		key += "|" + v.Addr.String()
	case *record.AAAA:
		key += "|" + v.Addr.String()
	case *record.TXT:
		for _, e := range v.Entries {
			key += "|" + e.Key + "=" + string(e.Value)
		}
	case *record.NSEC:
		key += "|" + strings.ToLower(v.NextDomain.String())
	}
	return key
}

// dedupRecords removes duplicate (name,type,rdata) entries, preserving
// first-seen order.
func dedupRecords(recs []record.Record) []record.Record {
	seen := make(map[string]bool, len(recs))
	out := make([]record.Record, 0, len(recs))
	for _, rec := range recs {
		k := recordKey(rec)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, rec)
	}
	return out
}

// sortedByID returns svcs sorted by ascending id, for deterministic
// iteration order over a map-backed table.
func sortedByID(svcs []*registry.Service) []*registry.Service {
	out := append([]*registry.Service(nil), svcs...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// nonProbingServices returns every registration not in the Probing state,
// sorted by id for deterministic output.
func (r *Repository) nonProbingServices() []*registry.Service {
	all := r.table.All()
	out := make([]*registry.Service, 0, len(all))
	for _, svc := range all {
		if svc.State != registry.Probing && svc.State != registry.Removed {
			out = append(out, svc)
		}
	}
	return sortedByID(out)
}
