// Package registry implements the service registration table: per-service
// record bundles, lifecycle state, instance-name uniqueness, and the
// per-client listener cap, per spec.md §3/§4.3/§6.
package registry

import (
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/kdanielm/mdnscore/mdnserr"
)

// TTL override bounds per spec.md §6.
const (
	nonPrivilegedMinTTLMs = 30_000
	nonPrivilegedMaxTTLMs = 36_000_000
	privilegedMinTTLMs    = 1
	privilegedMaxTTLMs    = int64(0xFFFFFFFF) * 1000

	maxListenersPerClient = 200
)

// Table is the single-threaded, lock-free registration map owned
// exclusively by its caller (spec.md §5). It never performs I/O and
// never blocks.
type Table struct {
	privileged bool

	services map[int64]*Service
	// hostAddrs enforces invariant I2: every registration sharing a
	// custom host label must declare the identical address set.
	hostAddrs map[string][]string

	clientListeners map[string]int
}

// New constructs an empty registration table. privileged controls whether
// TTL overrides outside [30s, 10h] are accepted (spec.md §6).
func New(privileged bool) *Table {
	return &Table{
		privileged:      privileged,
		services:        make(map[int64]*Service),
		hostAddrs:       make(map[string][]string),
		clientListeners: make(map[string]int),
	}
}

// Reserve increments the listener count for clientID, failing with
// MaxLimit once 200 are held (spec.md §6).
func (t *Table) Reserve(clientID string) error {
	if t.clientListeners[clientID] >= maxListenersPerClient {
		return mdnserr.New(mdnserr.MaxLimit, "Reserve", fmt.Sprintf("client %q already holds %d listeners", clientID, maxListenersPerClient))
	}
	t.clientListeners[clientID]++
	return nil
}

// Release decrements the listener count for clientID.
func (t *Table) Release(clientID string) {
	if t.clientListeners[clientID] > 0 {
		t.clientListeners[clientID]--
	}
}

func sortedAddrs(ips []string) []string {
	out := append([]string(nil), ips...)
	sort.Strings(out)
	return out
}

func addrSetsEqual(a, b []string) bool {
	a, b = sortedAddrs(a), sortedAddrs(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (t *Table) validateTTLOverride(ttlOverrideMs int64) error {
	if ttlOverrideMs == 0 {
		return nil
	}
	if t.privileged {
		if ttlOverrideMs < privilegedMinTTLMs || ttlOverrideMs > privilegedMaxTTLMs {
			return mdnserr.New(mdnserr.BadParameters, "AddService", "ttl override out of privileged range")
		}
		return nil
	}
	if ttlOverrideMs < nonPrivilegedMinTTLMs || ttlOverrideMs > nonPrivilegedMaxTTLMs {
		return mdnserr.New(mdnserr.BadParameters, "AddService", "ttl override out of non-privileged [30s,10h] range")
	}
	return nil
}

// findConflictingID returns the id of an existing active (non-Removed)
// registration whose (instanceName, serviceType) collides with info's
// under DNS-case-insensitive comparison (invariant I1), or false.
func (t *Table) findConflictingID(instanceName, serviceType string) (int64, bool) {
	for id, svc := range t.services {
		if svc.State == Removed {
			continue
		}
		if strings.EqualFold(svc.InstanceName, instanceName) && strings.EqualFold(svc.ServiceType, serviceType) {
			return id, true
		}
	}
	return 0, false
}

// AddService implements spec.md §4.3's addService.
//
// Returns (existingID, isNew, err):
//   - isNew == true, err == nil: a new Probing registration was inserted.
//   - isNew == false, err == nil: an existing active registration already
//     claims (instanceName, serviceType); existingID names it (spec.md
//     P1/S6 — this is not an error, callers use it to detect
//     re-add-during-exit).
//   - err != nil: validation failed, or id is already mapped.
func (t *Table) AddService(id int64, info ServiceInfo, ttlOverrideMs int64) (existingID int64, isNew bool, err error) {
	serviceType, subtypesFromField := parseServiceTypeField(info.ServiceType)
	if !validServiceType(serviceType) {
		return 0, false, mdnserr.New(mdnserr.BadParameters, "AddService", fmt.Sprintf("invalid service type %q", info.ServiceType))
	}
	for _, st := range subtypesFromField {
		if !validSubtype(st) {
			return 0, false, mdnserr.New(mdnserr.BadParameters, "AddService", fmt.Sprintf("invalid subtype %q", st))
		}
	}
	if info.Port < 1 || info.Port > 65535 {
		return 0, false, mdnserr.New(mdnserr.BadParameters, "AddService", "port must be in range 1-65535")
	}
	if err := t.validateTTLOverride(ttlOverrideMs); err != nil {
		return 0, false, err
	}

	var hostKey string
	var hostAddrs []string
	if info.Host.Custom {
		hostKey = strings.ToLower(info.Host.Label)
		hostAddrs = ipStrings(info.Host.Addresses)
		if existing, ok := t.hostAddrs[hostKey]; ok && !addrSetsEqual(existing, hostAddrs) {
			return 0, false, mdnserr.New(mdnserr.BadParameters, "AddService", fmt.Sprintf("custom host %q already registered with a different address set", info.Host.Label))
		}
	}

	if conflictID, found := t.findConflictingID(info.InstanceName, serviceType); found {
		return conflictID, false, nil
	}

	if _, exists := t.services[id]; exists {
		return 0, false, mdnserr.New(mdnserr.AlreadyActive, "AddService", fmt.Sprintf("service id %d already mapped", id))
	}

	if info.Host.Custom {
		t.hostAddrs[hostKey] = hostAddrs
	}

	subtypes := newSubtypeSet(subtypesFromField).list()
	t.services[id] = &Service{
		ID:            id,
		InstanceName:  info.InstanceName,
		ServiceType:   serviceType,
		Subtypes:      subtypes,
		Port:          info.Port,
		TXT:           info.TXT,
		Host:          info.Host,
		State:         Probing,
		TTLOverrideMs: ttlOverrideMs,
	}
	return 0, true, nil
}

func ipStrings(ips []net.IP) []string {
	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		out = append(out, ip.String())
	}
	return out
}

// UpdateService replaces a registration's subtype set.
func (t *Table) UpdateService(id int64, subtypes []string) error {
	svc, ok := t.services[id]
	if !ok {
		return mdnserr.New(mdnserr.NoTransaction, "UpdateService", fmt.Sprintf("unknown service id %d", id))
	}
	for _, st := range subtypes {
		if !validSubtype(st) {
			return mdnserr.New(mdnserr.BadParameters, "UpdateService", fmt.Sprintf("invalid subtype %q", st))
		}
	}
	svc.Subtypes = newSubtypeSet(subtypes).list()
	return nil
}

// RemoveService erases all records for id (spec.md §3 lifecycle:
// -> Removed). A removed id is never reused (invariant I4); subsequent
// AddService calls with the same id insert a fresh entry only because
// the map entry itself is deleted here, not because reuse is condoned.
func (t *Table) RemoveService(id int64) error {
	svc, ok := t.services[id]
	if !ok {
		return mdnserr.New(mdnserr.NoTransaction, "RemoveService", fmt.Sprintf("unknown service id %d", id))
	}
	if svc.Host.Custom {
		// Only release the host-address binding if no other active
		// registration still shares this custom host.
		key := strings.ToLower(svc.Host.Label)
		stillShared := false
		for otherID, other := range t.services {
			if otherID == id || other.State == Removed {
				continue
			}
			if other.Host.Custom && strings.EqualFold(other.Host.Label, svc.Host.Label) {
				stillShared = true
				break
			}
		}
		if !stillShared {
			delete(t.hostAddrs, key)
		}
	}
	delete(t.services, id)
	return nil
}

// ExitService marks a registration as Exiting. Idempotent: a second call
// after the goodbye packet has already been sent is a no-op per spec.md
// §4.4.3.
func (t *Table) ExitService(id int64) error {
	svc, ok := t.services[id]
	if !ok {
		return mdnserr.New(mdnserr.OperationNotRunning, "ExitService", fmt.Sprintf("unknown service id %d", id))
	}
	if svc.State == Exiting || svc.State == Removed {
		return nil
	}
	svc.State = Exiting
	return nil
}

// MarkExitSent records that the one-shot exit announcement has been
// emitted, per spec.md §4.4.3 ("further calls are idempotent no-ops").
func (t *Table) MarkExitSent(id int64) {
	if svc, ok := t.services[id]; ok {
		svc.exitSent = true
	}
}

// ExitAlreadySent reports whether the exit announcement for id has
// already been produced.
func (t *Table) ExitAlreadySent(id int64) bool {
	svc, ok := t.services[id]
	return ok && svc.exitSent
}

// AdvanceToAnnouncing transitions a Probing registration to Announcing,
// per spec.md §3 lifecycle (onProbingSucceeded).
func (t *Table) AdvanceToAnnouncing(id int64) error {
	svc, ok := t.services[id]
	if !ok {
		return mdnserr.New(mdnserr.NoTransaction, "AdvanceToAnnouncing", fmt.Sprintf("unknown service id %d", id))
	}
	if svc.State == Probing {
		svc.State = Announcing
	}
	return nil
}

// RecordAnnouncementSent increments the sent-packet counter and
// transitions Announcing -> Active once at least two announcements have
// been observed sent, per spec.md §3 lifecycle (onAdvertisementSent).
func (t *Table) RecordAnnouncementSent(id int64) error {
	svc, ok := t.services[id]
	if !ok {
		return mdnserr.New(mdnserr.NoTransaction, "RecordAnnouncementSent", fmt.Sprintf("unknown service id %d", id))
	}
	svc.SentPacketCount++
	svc.announcedOnce = true
	if svc.State == Announcing && svc.SentPacketCount >= 2 {
		svc.State = Active
	}
	return nil
}

// RecordRepliedRequest increments the replied-request counter for id.
func (t *Table) RecordRepliedRequest(id int64) {
	if svc, ok := t.services[id]; ok {
		svc.RepliedRequestCount++
	}
}

// Get returns the registration for id.
func (t *Table) Get(id int64) (*Service, bool) {
	svc, ok := t.services[id]
	return svc, ok
}

// All returns every registration, in no particular order.
func (t *Table) All() []*Service {
	out := make([]*Service, 0, len(t.services))
	for _, svc := range t.services {
		out = append(out, svc)
	}
	return out
}

// HasActiveService reports whether any registration has not reached
// Removed.
func (t *Table) HasActiveService() bool {
	for _, svc := range t.services {
		if svc.State != Removed {
			return true
		}
	}
	return false
}

// IsProbing reports whether id is currently in the Probing state.
func (t *Table) IsProbing(id int64) (bool, error) {
	svc, ok := t.services[id]
	if !ok {
		return false, mdnserr.New(mdnserr.NoTransaction, "IsProbing", fmt.Sprintf("unknown service id %d", id))
	}
	return svc.State == Probing, nil
}

// ServicesCount returns the number of non-Removed registrations.
func (t *Table) ServicesCount() int {
	n := 0
	for _, svc := range t.services {
		if svc.State != Removed {
			n++
		}
	}
	return n
}

// ClearServices removes every registration and returns the ids cleared,
// for shutdown (spec.md §4.3).
func (t *Table) ClearServices() []int64 {
	ids := make([]int64, 0, len(t.services))
	for id := range t.services {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	t.services = make(map[int64]*Service)
	t.hostAddrs = make(map[string][]string)
	return ids
}
