package repo

import (
	"fmt"

	"github.com/kdanielm/mdnscore/mdnserr"
	"github.com/kdanielm/mdnscore/mpacket"
)

// AnnouncementInfo carries the unsolicited multicast announcement a
// caller's timer driver should send, per spec.md §4.4.2.
type AnnouncementInfo struct {
	ServiceID int64
	Packet    *mpacket.Packet
}

// OnProbingSucceeded transitions a registration from Probing to
// Announcing and builds its announcement packet: PTR/SRV/TXT/address
// records as answers, NSEC negative-proof records as additional data
// (spec.md §4.4.2, P3, S1/S2).
func (r *Repository) OnProbingSucceeded(id int64) (*AnnouncementInfo, error) {
	svc, ok := r.table.Get(id)
	if !ok {
		return nil, mdnserr.New(mdnserr.NoTransaction, "OnProbingSucceeded", fmt.Sprintf("unknown service id %d", id))
	}
	if err := r.table.AdvanceToAnnouncing(id); err != nil {
		return nil, err
	}

	typeLabels := r.typeLabels(svc)
	instanceLabels := r.instanceLabels(svc)
	hostLabels := r.hostLabels(svc)

	pkt := &mpacket.Packet{Response: true, Authoritative: true}

	pkt.Answers = append(pkt.Answers,
		r.buildTypePTR(svc, typeLabels, instanceLabels),
		r.buildEnumerationPTR(svc, typeLabels),
		r.buildSRV(svc, instanceLabels),
		r.buildTXT(svc, instanceLabels),
	)
	for _, st := range svc.Subtypes {
		pkt.Answers = append(pkt.Answers, r.buildSubtypePTR(svc, st, instanceLabels))
	}

	addrs := r.hostAddresses(svc)
	v4, v6 := splitFamilies(addrs)
	for _, ip := range v4 {
		pkt.Answers = append(pkt.Answers, r.buildA(svc, hostLabels, ip))
	}
	for _, ip := range v6 {
		pkt.Answers = append(pkt.Answers, r.buildAAAA(svc, hostLabels, ip))
	}
	for _, ip := range addrs {
		ptr, reverseLabels, err := r.buildReversePTR(svc, hostLabels, ip)
		if err != nil {
			continue
		}
		pkt.Answers = append(pkt.Answers, ptr)
		pkt.Additional = append(pkt.Additional, r.buildReverseNSEC(svc, reverseLabels))
	}

	pkt.Additional = append(pkt.Additional,
		r.buildInstanceNSEC(svc, instanceLabels),
		r.buildHostNSEC(svc, hostLabels, len(v4) > 0, len(v6) > 0),
	)

	return &AnnouncementInfo{ServiceID: id, Packet: pkt}, nil
}

// RecordAnnouncementSent records a sent announcement packet, advancing
// Announcing -> Active after the second one (spec.md §3's
// onAdvertisementSent, §4.4.2's "sent twice, one second apart" cadence —
// the one-second spacing itself is a timer-driver concern, not the
// repository's).
func (r *Repository) RecordAnnouncementSent(id int64) error {
	return r.table.RecordAnnouncementSent(id)
}
