package repo

import (
	"net"

	"github.com/kdanielm/mdnscore/dnsname"
	"github.com/kdanielm/mdnscore/mpacket"
	"github.com/kdanielm/mdnscore/record"
	"github.com/kdanielm/mdnscore/registry"
)

// Reply is the synthesized response to an incoming query, per spec.md
// §4.4.4. A nil Reply means no reply should be sent for this packet.
type Reply struct {
	// Destination is the unicast address to reply to, or nil to
	// multicast to the group matching the query's source family.
	Destination *net.UDPAddr
	Answers     []record.Record
	Additional  []record.Record
	// KnownAnswers lists the querier's known-answer records that matched a
	// would-be answer by name, type and rdata, whether or not they were
	// fresh enough to suppress it (spec.md §4.4.4 step 2).
	KnownAnswers []record.Record
}

// matchedAnswer is a synthesized answer record that matched some
// question in the incoming packet.
type matchedAnswer struct {
	rec record.Record
}

// GetReply synthesizes a response to an incoming query pkt received from
// src, applying known-answer suppression, additional-record synthesis,
// and unicast/multicast destination selection (spec.md §4.4.4, P4/P5/P7/
// P10, S1/S2/S3).
func (r *Repository) GetReply(pkt *mpacket.Packet, src *net.UDPAddr, nowMs int64) *Reply {
	if pkt.Truncated && len(pkt.Questions) == 0 {
		return nil
	}
	if len(pkt.Questions) == 0 {
		return nil
	}

	services := r.nonProbingServices()
	var matched []matchedAnswer
	var enumerationMatched bool
	var anyUnicastQuestion, anyMulticastQuestion bool

	for _, q := range pkt.Questions {
		matchCount := 0
		for _, svc := range services {
			typeLabels := r.typeLabels(svc)
			instanceLabels := r.instanceLabels(svc)
			hostLabels := r.hostLabels(svc)

			if (q.Type == record.TypePTR || q.Type == record.TypeANY) && dnsname.EqualFold(q.Name, typeLabels) {
				matched = append(matched, matchedAnswer{r.buildTypePTR(svc, typeLabels, instanceLabels)})
				matchCount++
			}
			for _, st := range svc.Subtypes {
				if (q.Type == record.TypePTR || q.Type == record.TypeANY) && dnsname.EqualFold(q.Name, r.subtypeQueryLabels(svc, st)) {
					matched = append(matched, matchedAnswer{r.buildSubtypePTR(svc, st, instanceLabels)})
					matchCount++
				}
			}
			if (q.Type == record.TypeSRV || q.Type == record.TypeANY) && dnsname.EqualFold(q.Name, instanceLabels) {
				matched = append(matched, matchedAnswer{r.buildSRV(svc, instanceLabels)})
				matchCount++
			}
			if (q.Type == record.TypeTXT || q.Type == record.TypeANY) && dnsname.EqualFold(q.Name, instanceLabels) {
				matched = append(matched, matchedAnswer{r.buildTXT(svc, instanceLabels)})
				matchCount++
			}
			v4, v6 := splitFamilies(r.hostAddresses(svc))
			if (q.Type == record.TypeA || q.Type == record.TypeANY) && dnsname.EqualFold(q.Name, hostLabels) {
				for _, ip := range v4 {
					matched = append(matched, matchedAnswer{r.buildA(svc, hostLabels, ip)})
				}
				if len(v4) > 0 {
					matchCount++
				}
			}
			if (q.Type == record.TypeAAAA || q.Type == record.TypeANY) && dnsname.EqualFold(q.Name, hostLabels) {
				for _, ip := range v6 {
					matched = append(matched, matchedAnswer{r.buildAAAA(svc, hostLabels, ip)})
				}
				if len(v6) > 0 {
					matchCount++
				}
			}
			for _, ip := range append(append([]net.IP{}, v4...), v6...) {
				ptr, _, err := r.buildReversePTR(svc, hostLabels, ip)
				if err != nil {
					continue
				}
				if (q.Type == record.TypePTR || q.Type == record.TypeANY) && dnsname.EqualFold(q.Name, ptr.H.Name) {
					matched = append(matched, matchedAnswer{ptr})
					matchCount++
				}
			}
		}

		if !enumerationMatched && (q.Type == record.TypePTR || q.Type == record.TypeANY) && dnsname.EqualFold(q.Name, r.enumerationLabels()) {
			for _, svc := range services {
				matched = append(matched, matchedAnswer{r.buildEnumerationPTR(svc, r.typeLabels(svc))})
			}
			enumerationMatched = true
			matchCount++
		}

		if matchCount > 0 {
			if q.Unicast {
				anyUnicastQuestion = true
			} else {
				anyMulticastQuestion = true
			}
		}
	}

	if len(matched) == 0 {
		return nil
	}

	answers, knownAnswers := r.suppressKnownAnswers(matched, pkt.Answers, nowMs)
	answers = dedupRecords(answers)
	if len(answers) == 0 {
		return nil
	}
	additional := dedupRecords(r.additionalFor(services, answers))

	reply := &Reply{Answers: answers, Additional: additional, KnownAnswers: knownAnswers}
	if r.opts.UnicastReply && anyUnicastQuestion && !anyMulticastQuestion {
		reply.Destination = src
	}
	return reply
}

// suppressKnownAnswers drops prospective answers the querier has already
// cached with at least half their TTL remaining (RFC 6762 §7.1, spec.md
// §4.4.4 step 2). It also returns the known answers that matched any
// prospective answer, for echoing in the reply.
func (r *Repository) suppressKnownAnswers(matched []matchedAnswer, known []record.Record, nowMs int64) ([]record.Record, []record.Record) {
	var answers []record.Record
	var retained []record.Record
	for _, m := range matched {
		suppressed := false
		if r.opts.KnownAnswerSuppression {
			for _, k := range known {
				if !k.RDataEqual(m.rec) {
					continue
				}
				retained = append(retained, k)
				remaining := record.RemainingTTLMs(k.Hdr(), nowMs)
				if remaining >= m.rec.Hdr().TTLMs/2 {
					suppressed = true
				}
				break
			}
		}
		if !suppressed {
			answers = append(answers, m.rec)
		}
	}
	return answers, dedupRecords(retained)
}

// additionalFor synthesizes the additional section for a set of answers
// already selected: SRV/TXT/addresses/NSEC for a matched PTR or SRV,
// NSEC for a matched A/AAAA (spec.md §4.4.4 step 3).
func (r *Repository) additionalFor(services []*registry.Service, answers []record.Record) []record.Record {
	var additional []record.Record
	for _, svc := range services {
		typeLabels := r.typeLabels(svc)
		instanceLabels := r.instanceLabels(svc)
		hostLabels := r.hostLabels(svc)
		v4, v6 := splitFamilies(r.hostAddresses(svc))

		wantsServiceExtras := false
		wantsHostExtras := false
		for _, a := range answers {
			if ptr, ok := a.(*record.PTR); ok {
				if dnsname.EqualFold(ptr.H.Name, typeLabels) || isSubtypeAnswer(r, svc, ptr) {
					if dnsname.EqualFold(ptr.Pointer, instanceLabels) {
						wantsServiceExtras = true
					}
				}
			}
			if srv, ok := a.(*record.SRV); ok && dnsname.EqualFold(srv.H.Name, instanceLabels) {
				wantsServiceExtras = true
			}
			if txt, ok := a.(*record.TXT); ok && dnsname.EqualFold(txt.H.Name, instanceLabels) {
				wantsServiceExtras = true
			}
			if aRec, ok := a.(*record.A); ok && dnsname.EqualFold(aRec.H.Name, hostLabels) {
				wantsHostExtras = true
			}
			if aaaaRec, ok := a.(*record.AAAA); ok && dnsname.EqualFold(aaaaRec.H.Name, hostLabels) {
				wantsHostExtras = true
			}
		}

		if wantsServiceExtras {
			additional = append(additional, r.buildSRV(svc, instanceLabels), r.buildTXT(svc, instanceLabels))
			for _, ip := range v4 {
				additional = append(additional, r.buildA(svc, hostLabels, ip))
			}
			for _, ip := range v6 {
				additional = append(additional, r.buildAAAA(svc, hostLabels, ip))
			}
			additional = append(additional, r.buildInstanceNSEC(svc, instanceLabels))
			wantsHostExtras = true
		}
		if wantsHostExtras {
			additional = append(additional, r.buildHostNSEC(svc, hostLabels, len(v4) > 0, len(v6) > 0))
		}
	}
	return additional
}

func isSubtypeAnswer(r *Repository, svc *registry.Service, ptr *record.PTR) bool {
	for _, st := range svc.Subtypes {
		if dnsname.EqualFold(ptr.H.Name, r.subtypeQueryLabels(svc, st)) {
			return true
		}
	}
	return false
}
