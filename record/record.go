// Package record implements the mDNS record model: a tagged union of
// PTR/SRV/TXT/A/AAAA/NSEC records (plus an ANY question marker), name
// comparison-aware equality for known-answer suppression and conflict
// detection, and wire encode/decode built on github.com/miekg/dns.
package record

import (
	"net"

	"github.com/kdanielm/mdnscore/dnsname"
)

// Type is the wire type code of a record, restricted to the subset this
// repository ever produces or matches against.
type Type int

const (
	TypePTR Type = iota
	TypeSRV
	TypeTXT
	TypeA
	TypeAAAA
	TypeNSEC
	// TypeANY only ever appears as a question, never as a stored record.
	TypeANY
)

func (t Type) String() string {
	switch t {
	case TypePTR:
		return "PTR"
	case TypeSRV:
		return "SRV"
	case TypeTXT:
		return "TXT"
	case TypeA:
		return "A"
	case TypeAAAA:
		return "AAAA"
	case TypeNSEC:
		return "NSEC"
	case TypeANY:
		return "ANY"
	default:
		return "UNKNOWN"
	}
}

// TTL defaults per spec.md §3 invariant I5.
const (
	ShortTTLMs int64 = 120_000
	LongTTLMs  int64 = 4_500_000
)

// Header is shared by every concrete record type.
type Header struct {
	Name          dnsname.Labels
	CacheFlush    bool
	TTLMs         int64
	ReceiptTimeMs int64 // 0 for locally-generated records
}

// Record is the tagged union. RRType identifies the concrete variant;
// RDataEqual compares name (case-insensitively) + type + rdata, the
// identity used for known-answer suppression, additional-record
// deduplication, and conflict detection.
type Record interface {
	Hdr() *Header
	RRType() Type
	RDataEqual(other Record) bool
}

// RemainingTTLMs returns the TTL remaining at nowMs given the record's
// receipt time, floored at zero.
func RemainingTTLMs(h *Header, nowMs int64) int64 {
	if h.ReceiptTimeMs == 0 {
		return h.TTLMs
	}
	elapsed := nowMs - h.ReceiptTimeMs
	remaining := h.TTLMs - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

type PTR struct {
	H       Header
	Pointer dnsname.Labels
}

func (r *PTR) Hdr() *Header  { return &r.H }
func (r *PTR) RRType() Type  { return TypePTR }
func (r *PTR) RDataEqual(o Record) bool {
	other, ok := o.(*PTR)
	if !ok || !dnsname.EqualFold(r.H.Name, other.H.Name) {
		return false
	}
	return dnsname.EqualFold(r.Pointer, other.Pointer)
}

type SRV struct {
	H        Header
	Priority uint16
	Weight   uint16
	Port     uint16
	Target   dnsname.Labels
}

func (r *SRV) Hdr() *Header { return &r.H }
func (r *SRV) RRType() Type { return TypeSRV }
func (r *SRV) RDataEqual(o Record) bool {
	other, ok := o.(*SRV)
	if !ok || !dnsname.EqualFold(r.H.Name, other.H.Name) {
		return false
	}
	return r.Priority == other.Priority &&
		r.Weight == other.Weight &&
		r.Port == other.Port &&
		dnsname.EqualFold(r.Target, other.Target)
}

// TXTEntry preserves TXT record ordering. A key with an empty value
// (key=) is distinct from a zero-length-value key (the value slice is
// non-nil but empty vs. nil), matching spec.md §4.2.
type TXTEntry struct {
	Key   string
	Value []byte
}

type TXT struct {
	H       Header
	Entries []TXTEntry
}

func (r *TXT) Hdr() *Header { return &r.H }
func (r *TXT) RRType() Type { return TypeTXT }
func (r *TXT) RDataEqual(o Record) bool {
	other, ok := o.(*TXT)
	if !ok || !dnsname.EqualFold(r.H.Name, other.H.Name) {
		return false
	}
	if len(r.Entries) != len(other.Entries) {
		return false
	}
	for i := range r.Entries {
		a, b := r.Entries[i], other.Entries[i]
		if a.Key != b.Key {
			return false
		}
		if (a.Value == nil) != (b.Value == nil) {
			return false
		}
		if string(a.Value) != string(b.Value) {
			return false
		}
	}
	return true
}

type A struct {
	H    Header
	Addr net.IP
}

func (r *A) Hdr() *Header { return &r.H }
func (r *A) RRType() Type { return TypeA }
func (r *A) RDataEqual(o Record) bool {
	other, ok := o.(*A)
	if !ok || !dnsname.EqualFold(r.H.Name, other.H.Name) {
		return false
	}
	return r.Addr.Equal(other.Addr)
}

type AAAA struct {
	H    Header
	Addr net.IP
}

func (r *AAAA) Hdr() *Header { return &r.H }
func (r *AAAA) RRType() Type { return TypeAAAA }
func (r *AAAA) RDataEqual(o Record) bool {
	other, ok := o.(*AAAA)
	if !ok || !dnsname.EqualFold(r.H.Name, other.H.Name) {
		return false
	}
	return r.Addr.Equal(other.Addr)
}

// NSEC asserts the absence of any type at Name other than those in Types.
type NSEC struct {
	H          Header
	NextDomain dnsname.Labels
	Types      []Type
}

func (r *NSEC) Hdr() *Header { return &r.H }
func (r *NSEC) RRType() Type { return TypeNSEC }
func (r *NSEC) RDataEqual(o Record) bool {
	other, ok := o.(*NSEC)
	if !ok || !dnsname.EqualFold(r.H.Name, other.H.Name) {
		return false
	}
	if !dnsname.EqualFold(r.NextDomain, other.NextDomain) {
		return false
	}
	if len(r.Types) != len(other.Types) {
		return false
	}
	want := make(map[Type]bool, len(r.Types))
	for _, t := range r.Types {
		want[t] = true
	}
	for _, t := range other.Types {
		if !want[t] {
			return false
		}
	}
	return true
}

// ANYQuestion is only ever used as a question, never a stored/answer
// record.
type ANYQuestion struct {
	Name    dnsname.Labels
	Unicast bool
}
