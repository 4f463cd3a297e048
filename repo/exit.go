package repo

import (
	"fmt"

	"github.com/kdanielm/mdnscore/mdnserr"
	"github.com/kdanielm/mdnscore/mpacket"
	"github.com/kdanielm/mdnscore/record"
)

// ExitInfo carries the goodbye (TTL=0) announcement a caller's timer
// driver should send, per spec.md §4.4.3. A nil ExitInfo with a nil error
// means there is nothing to send: either the goodbye was already sent,
// or the registration never reached an announced state.
type ExitInfo struct {
	ServiceID int64
	Packet    *mpacket.Packet
}

// ExitService transitions a registration to Exiting and, the first time
// it is called after at least one announcement has gone out, builds the
// goodbye packet: the service-type, enumeration and subtype PTR records
// restated with TTL=0 (spec.md §4.4.3, P6, S5); the reverse-address PTRs
// of the announcement are not included. Subsequent calls are idempotent
// no-ops.
func (r *Repository) ExitService(id int64) (*ExitInfo, error) {
	svc, ok := r.table.Get(id)
	if !ok {
		return nil, mdnserr.New(mdnserr.OperationNotRunning, "ExitService", fmt.Sprintf("unknown service id %d", id))
	}
	if err := r.table.ExitService(id); err != nil {
		return nil, err
	}
	if r.table.ExitAlreadySent(id) {
		return nil, nil
	}
	if !svc.AnnouncedOnce() {
		return nil, nil
	}

	typeLabels := r.typeLabels(svc)
	instanceLabels := r.instanceLabels(svc)

	pkt := &mpacket.Packet{Response: true, Authoritative: true}
	pkt.Answers = append(pkt.Answers, goodbye(r.buildTypePTR(svc, typeLabels, instanceLabels)))
	pkt.Answers = append(pkt.Answers, goodbye(r.buildEnumerationPTR(svc, typeLabels)))
	for _, st := range svc.Subtypes {
		pkt.Answers = append(pkt.Answers, goodbye(r.buildSubtypePTR(svc, st, instanceLabels)))
	}

	r.table.MarkExitSent(id)
	return &ExitInfo{ServiceID: id, Packet: pkt}, nil
}

// goodbye restates a PTR answer with TTL=0, per RFC 6762 §10.1.
func goodbye(ptr *record.PTR) *record.PTR {
	ptr.H.TTLMs = 0
	return ptr
}
