package record

import (
	"sort"

	"github.com/miekg/dns"
)

// dnsTypeCode maps our restricted Type enum to the wire type codes RFC
// 4034 §4.1.2 bitmaps carry. github.com/miekg/dns's (*dns.NSEC) marshaler
// does the actual window-block bitmap packing from this flat, sorted
// list of type codes — see SPEC_FULL.md §4.2 for why the windowing itself
// is not reimplemented here.
func dnsTypeCode(t Type) (uint16, bool) {
	switch t {
	case TypePTR:
		return dns.TypePTR, true
	case TypeSRV:
		return dns.TypeSRV, true
	case TypeTXT:
		return dns.TypeTXT, true
	case TypeA:
		return dns.TypeA, true
	case TypeAAAA:
		return dns.TypeAAAA, true
	case TypeNSEC:
		return dns.TypeNSEC, true
	default:
		return 0, false
	}
}

func typeFromCode(code uint16) (Type, bool) {
	switch code {
	case dns.TypePTR:
		return TypePTR, true
	case dns.TypeSRV:
		return TypeSRV, true
	case dns.TypeTXT:
		return TypeTXT, true
	case dns.TypeA:
		return TypeA, true
	case dns.TypeAAAA:
		return TypeAAAA, true
	case dns.TypeNSEC:
		return TypeNSEC, true
	default:
		return 0, false
	}
}

func bitmapTypeCodes(types []Type) []uint16 {
	out := make([]uint16, 0, len(types))
	for _, t := range types {
		if code, ok := dnsTypeCode(t); ok {
			out = append(out, code)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func typesFromBitmap(codes []uint16) []Type {
	out := make([]Type, 0, len(codes))
	for _, c := range codes {
		if t, ok := typeFromCode(c); ok {
			out = append(out, t)
		}
	}
	return out
}

// NewNSEC builds an NSEC record asserting that only the given types
// exist at name, with nextDomain equal to the record's own name per
// spec.md §4.4.2.
func NewNSEC(h Header, types ...Type) *NSEC {
	return &NSEC{H: h, NextDomain: h.Name, Types: types}
}
