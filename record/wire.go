package record

import (
	"fmt"

	"github.com/kdanielm/mdnscore/dnsname"
	"github.com/miekg/dns"
)

// cacheFlushBit is the top bit of the class field repurposed by RFC 6762
// §10.2 as the cache-flush bit.
const cacheFlushBit = 1 << 15

func fqdn(l dnsname.Labels) string {
	return l.String() + "."
}

func ttlSeconds(ttlMs int64) uint32 {
	if ttlMs <= 0 {
		return 0
	}
	return uint32(ttlMs / 1000)
}

func classFor(cacheFlush bool) uint16 {
	class := uint16(dns.ClassINET)
	if cacheFlush {
		class |= cacheFlushBit
	}
	return class
}

// ToRR encodes a Record into a github.com/miekg/dns resource record,
// applying the cache-flush bit per RFC 6762 §10.2.
func ToRR(r Record) (dns.RR, error) {
	switch rr := r.(type) {
	case *PTR:
		return &dns.PTR{
			Hdr: dns.RR_Header{
				Name:   fqdn(rr.H.Name),
				Rrtype: dns.TypePTR,
				Class:  classFor(rr.H.CacheFlush),
				Ttl:    ttlSeconds(rr.H.TTLMs),
			},
			Ptr: fqdn(rr.Pointer),
		}, nil
	case *SRV:
		return &dns.SRV{
			Hdr: dns.RR_Header{
				Name:   fqdn(rr.H.Name),
				Rrtype: dns.TypeSRV,
				Class:  classFor(rr.H.CacheFlush),
				Ttl:    ttlSeconds(rr.H.TTLMs),
			},
			Priority: rr.Priority,
			Weight:   rr.Weight,
			Port:     rr.Port,
			Target:   fqdn(rr.Target),
		}, nil
	case *TXT:
		return &dns.TXT{
			Hdr: dns.RR_Header{
				Name:   fqdn(rr.H.Name),
				Rrtype: dns.TypeTXT,
				Class:  classFor(rr.H.CacheFlush),
				Ttl:    ttlSeconds(rr.H.TTLMs),
			},
			Txt: encodeTXTStrings(rr.Entries),
		}, nil
	case *A:
		return &dns.A{
			Hdr: dns.RR_Header{
				Name:   fqdn(rr.H.Name),
				Rrtype: dns.TypeA,
				Class:  classFor(rr.H.CacheFlush),
				Ttl:    ttlSeconds(rr.H.TTLMs),
			},
			A: rr.Addr,
		}, nil
	case *AAAA:
		return &dns.AAAA{
			Hdr: dns.RR_Header{
				Name:   fqdn(rr.H.Name),
				Rrtype: dns.TypeAAAA,
				Class:  classFor(rr.H.CacheFlush),
				Ttl:    ttlSeconds(rr.H.TTLMs),
			},
			AAAA: rr.Addr,
		}, nil
	case *NSEC:
		return &dns.NSEC{
			Hdr: dns.RR_Header{
				Name:   fqdn(rr.H.Name),
				Rrtype: dns.TypeNSEC,
				Class:  classFor(rr.H.CacheFlush),
				Ttl:    ttlSeconds(rr.H.TTLMs),
			},
			NextDomain: fqdn(rr.NextDomain),
			TypeBitMap: bitmapTypeCodes(rr.Types),
		}, nil
	default:
		return nil, fmt.Errorf("record: %T has no wire representation", r)
	}
}

// encodeTXTStrings packs each (key, value) pair into a single
// "key=value" string, or "key" when value is nil (no '='), preserving
// order. An entry with an empty-but-non-nil value keeps the trailing
// '=' so it decodes distinctly from a bare key.
func encodeTXTStrings(entries []TXTEntry) []string {
	if len(entries) == 0 {
		return []string{""}
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Value == nil {
			out = append(out, e.Key)
			continue
		}
		out = append(out, e.Key+"="+string(e.Value))
	}
	return out
}

func decodeTXTStrings(strs []string) []TXTEntry {
	if len(strs) == 0 {
		return nil
	}
	if len(strs) == 1 && strs[0] == "" {
		// RFC 6763 §6: the mandatory empty-TXT single zero byte decodes
		// back to zero entries.
		return nil
	}
	seen := make(map[string]bool, len(strs))
	var out []TXTEntry
	for _, s := range strs {
		var key string
		var value []byte
		if idx := indexByte(s, '='); idx >= 0 {
			key = s[:idx]
			value = []byte(s[idx+1:])
		} else {
			key = s
			value = nil
		}
		if seen[key] {
			// Duplicate keys keep only the first, per spec.md §4.2.
			continue
		}
		seen[key] = true
		out = append(out, TXTEntry{Key: key, Value: value})
	}
	return out
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

// FromRR decodes a github.com/miekg/dns resource record into a Record,
// stamping receiptTimeMs as the record's receipt time (0 means
// locally-generated and is never passed here by wire decode).
func FromRR(rr dns.RR, receiptTimeMs int64) (Record, bool) {
	hdr := rr.Header()
	cacheFlush := hdr.Class&cacheFlushBit != 0
	base := Header{
		Name:          dnsname.Parse(hdr.Name),
		CacheFlush:    cacheFlush,
		TTLMs:         int64(hdr.Ttl) * 1000,
		ReceiptTimeMs: receiptTimeMs,
	}
	switch v := rr.(type) {
	case *dns.PTR:
		return &PTR{H: base, Pointer: dnsname.Parse(v.Ptr)}, true
	case *dns.SRV:
		return &SRV{
			H:        base,
			Priority: v.Priority,
			Weight:   v.Weight,
			Port:     v.Port,
			Target:   dnsname.Parse(v.Target),
		}, true
	case *dns.TXT:
		return &TXT{H: base, Entries: decodeTXTStrings(v.Txt)}, true
	case *dns.A:
		return &A{H: base, Addr: v.A}, true
	case *dns.AAAA:
		return &AAAA{H: base, Addr: v.AAAA}, true
	case *dns.NSEC:
		return &NSEC{
			H:          base,
			NextDomain: dnsname.Parse(v.NextDomain),
			Types:      typesFromBitmap(v.TypeBitMap),
		}, true
	default:
		return nil, false
	}
}
