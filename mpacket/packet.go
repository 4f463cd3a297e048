// Package mpacket models an mDNS packet as spec.md §3 describes it:
// a header plus four sections, built on top of github.com/miekg/dns for
// wire encode/decode (including name compression and compression-loop
// rejection, both handled internally by that library's Pack/Unpack).
package mpacket

import (
	"github.com/kdanielm/mdnscore/dnsname"
	"github.com/kdanielm/mdnscore/record"
	"github.com/miekg/dns"
)

// ResponseFlags is the standard mDNS response header: QR=1 (response),
// AA=1 (authoritative), used by every packet this repository emits that
// is not a probing query. See spec.md §4.4.2.
const ResponseFlags = 0x8400

// Question mirrors a dns.Question, generalized with an ANY/specific-type
// distinction and the unicast-preferred bit (RFC 6762 §18.12).
type Question struct {
	Name    dnsname.Labels
	Type    record.Type
	Unicast bool
}

// Packet is the header + four sections of spec.md §3.
type Packet struct {
	TransactionID uint16
	Truncated     bool
	Response      bool
	Authoritative bool

	Questions  []Question
	Answers    []record.Record
	Authority  []record.Record
	Additional []record.Record
}

func typeToQtype(t record.Type) uint16 {
	switch t {
	case record.TypePTR:
		return dns.TypePTR
	case record.TypeSRV:
		return dns.TypeSRV
	case record.TypeTXT:
		return dns.TypeTXT
	case record.TypeA:
		return dns.TypeA
	case record.TypeAAAA:
		return dns.TypeAAAA
	case record.TypeNSEC:
		return dns.TypeNSEC
	default:
		return dns.TypeANY
	}
}

func qtypeToType(qt uint16) record.Type {
	switch qt {
	case dns.TypePTR:
		return record.TypePTR
	case dns.TypeSRV:
		return record.TypeSRV
	case dns.TypeTXT:
		return record.TypeTXT
	case dns.TypeA:
		return record.TypeA
	case dns.TypeAAAA:
		return record.TypeAAAA
	case dns.TypeNSEC:
		return record.TypeNSEC
	default:
		return record.TypeANY
	}
}

const questionUnicastBit = 1 << 15

// Encode packs the packet into wire bytes.
func (p *Packet) Encode() ([]byte, error) {
	msg := new(dns.Msg)
	msg.Id = p.TransactionID
	msg.Response = p.Response
	msg.Authoritative = p.Authoritative
	msg.Truncated = p.Truncated
	msg.Compress = true

	for _, q := range p.Questions {
		class := uint16(dns.ClassINET)
		if q.Unicast {
			class |= questionUnicastBit
		}
		msg.Question = append(msg.Question, dns.Question{
			Name:   q.Name.String() + ".",
			Qtype:  typeToQtype(q.Type),
			Qclass: class,
		})
	}
	for _, r := range p.Answers {
		rr, err := record.ToRR(r)
		if err != nil {
			return nil, err
		}
		msg.Answer = append(msg.Answer, rr)
	}
	for _, r := range p.Authority {
		rr, err := record.ToRR(r)
		if err != nil {
			return nil, err
		}
		msg.Ns = append(msg.Ns, rr)
	}
	for _, r := range p.Additional {
		rr, err := record.ToRR(r)
		if err != nil {
			return nil, err
		}
		msg.Extra = append(msg.Extra, rr)
	}
	return msg.Pack()
}

// Decode unpacks wire bytes into a Packet. Malformed input returns an
// error; per spec.md §7, the caller in responder/responder.go
// (handleInbound) treats a decode error as "drop the packet", never as a
// propagated INTERNAL_ERROR.
func Decode(buf []byte, nowMs int64) (*Packet, error) {
	msg := new(dns.Msg)
	if err := msg.Unpack(buf); err != nil {
		return nil, err
	}
	p := &Packet{
		TransactionID: msg.Id,
		Response:      msg.Response,
		Authoritative: msg.Authoritative,
		Truncated:     msg.Truncated,
	}
	for _, q := range msg.Question {
		p.Questions = append(p.Questions, Question{
			Name:    dnsname.Parse(q.Name),
			Type:    qtypeToType(q.Qtype),
			Unicast: q.Qclass&questionUnicastBit != 0,
		})
	}
	for _, rr := range msg.Answer {
		if r, ok := record.FromRR(rr, nowMs); ok {
			p.Answers = append(p.Answers, r)
		}
	}
	for _, rr := range msg.Ns {
		if r, ok := record.FromRR(rr, nowMs); ok {
			p.Authority = append(p.Authority, r)
		}
	}
	for _, rr := range msg.Extra {
		if r, ok := record.FromRR(rr, nowMs); ok {
			p.Additional = append(p.Additional, r)
		}
	}
	return p, nil
}
