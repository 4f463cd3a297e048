package repo

import (
	"fmt"

	"github.com/kdanielm/mdnscore/mdnserr"
	"github.com/kdanielm/mdnscore/mpacket"
	"github.com/kdanielm/mdnscore/record"
)

// ProbingInfo carries the probe query a caller's timer driver should send,
// per spec.md §4.4.1.
type ProbingInfo struct {
	ServiceID int64
	Packet    *mpacket.Packet
}

// SetServiceProbing builds the probe query for a Probing registration:
// an ANY question at the instance name (plus, when IncludeHostInProbing
// is set, a second ANY question at the host name), with the would-be SRV
// (and, for the host question, A/AAAA) records carried as tentative
// authority answers per RFC 6762 §8.1 (spec.md §4.4.1, P2).
func (r *Repository) SetServiceProbing(id int64) (*ProbingInfo, error) {
	svc, ok := r.table.Get(id)
	if !ok {
		return nil, mdnserr.New(mdnserr.NoTransaction, "SetServiceProbing", fmt.Sprintf("unknown service id %d", id))
	}

	instanceLabels := r.instanceLabels(svc)
	pkt := &mpacket.Packet{
		Questions: []mpacket.Question{{Name: instanceLabels, Type: record.TypeANY}},
		Authority: []record.Record{r.buildSRV(svc, instanceLabels)},
	}

	if r.opts.IncludeHostInProbing {
		hostLabels := r.hostLabels(svc)
		pkt.Questions = append(pkt.Questions, mpacket.Question{Name: hostLabels, Type: record.TypeANY})
		v4, v6 := splitFamilies(r.hostAddresses(svc))
		for _, ip := range v4 {
			pkt.Authority = append(pkt.Authority, r.buildA(svc, hostLabels, ip))
		}
		for _, ip := range v6 {
			pkt.Authority = append(pkt.Authority, r.buildAAAA(svc, hostLabels, ip))
		}
	}

	return &ProbingInfo{ServiceID: id, Packet: pkt}, nil
}
