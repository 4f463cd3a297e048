package repo

import (
	"net"

	"github.com/kdanielm/mdnscore/dnsname"
	"github.com/kdanielm/mdnscore/record"
	"github.com/kdanielm/mdnscore/registry"
)

// Record builders shared by probe.go, announce.go, exit.go and reply.go.
// Each returns a freshly constructed, locally-generated record (receipt
// time zero, so RemainingTTLMs reports the full TTL).

func (r *Repository) buildSRV(svc *registry.Service, instanceLabels dnsname.Labels) *record.SRV {
	return &record.SRV{
		H: record.Header{
			Name:       instanceLabels,
			CacheFlush: true,
			TTLMs:      svc.EffectiveTTL(record.ShortTTLMs),
		},
		Priority: 0,
		Weight:   0,
		Port:     uint16(svc.Port),
		Target:   r.hostLabels(svc),
	}
}

func (r *Repository) buildTXT(svc *registry.Service, instanceLabels dnsname.Labels) *record.TXT {
	return &record.TXT{
		H: record.Header{
			Name:       instanceLabels,
			CacheFlush: true,
			TTLMs:      svc.EffectiveTTL(record.LongTTLMs),
		},
		Entries: svc.TXT,
	}
}

func (r *Repository) buildA(svc *registry.Service, hostLabels dnsname.Labels, ip net.IP) *record.A {
	return &record.A{
		H: record.Header{
			Name:       hostLabels,
			CacheFlush: true,
			TTLMs:      svc.EffectiveTTL(record.ShortTTLMs),
		},
		Addr: ip,
	}
}

func (r *Repository) buildAAAA(svc *registry.Service, hostLabels dnsname.Labels, ip net.IP) *record.AAAA {
	return &record.AAAA{
		H: record.Header{
			Name:       hostLabels,
			CacheFlush: true,
			TTLMs:      svc.EffectiveTTL(record.ShortTTLMs),
		},
		Addr: ip,
	}
}

func (r *Repository) buildTypePTR(svc *registry.Service, typeLabels, instanceLabels dnsname.Labels) *record.PTR {
	return &record.PTR{
		H: record.Header{
			Name:       typeLabels,
			CacheFlush: false,
			TTLMs:      svc.EffectiveTTL(record.LongTTLMs),
		},
		Pointer: instanceLabels,
	}
}

func (r *Repository) buildSubtypePTR(svc *registry.Service, subtype string, instanceLabels dnsname.Labels) *record.PTR {
	return &record.PTR{
		H: record.Header{
			Name:       r.subtypeQueryLabels(svc, subtype),
			CacheFlush: false,
			TTLMs:      svc.EffectiveTTL(record.LongTTLMs),
		},
		Pointer: instanceLabels,
	}
}

func (r *Repository) buildEnumerationPTR(svc *registry.Service, typeLabels dnsname.Labels) *record.PTR {
	return &record.PTR{
		H: record.Header{
			Name:       r.enumerationLabels(),
			CacheFlush: false,
			TTLMs:      svc.EffectiveTTL(record.LongTTLMs),
		},
		Pointer: typeLabels,
	}
}

func (r *Repository) buildReversePTR(svc *registry.Service, hostLabels dnsname.Labels, ip net.IP) (*record.PTR, dnsname.Labels, error) {
	var reverseLabels dnsname.Labels
	var err error
	if ip.To4() != nil {
		reverseLabels, err = dnsname.ReverseIPv4(ip)
	} else {
		reverseLabels, err = dnsname.ReverseIPv6(ip)
	}
	if err != nil {
		return nil, nil, err
	}
	return &record.PTR{
		H: record.Header{
			Name:       reverseLabels,
			CacheFlush: true,
			TTLMs:      svc.EffectiveTTL(record.ShortTTLMs),
		},
		Pointer: hostLabels,
	}, reverseLabels, nil
}

func (r *Repository) buildInstanceNSEC(svc *registry.Service, instanceLabels dnsname.Labels) *record.NSEC {
	return record.NewNSEC(record.Header{
		Name:       instanceLabels,
		CacheFlush: true,
		TTLMs:      svc.EffectiveTTL(record.LongTTLMs),
	}, record.TypeTXT, record.TypeSRV)
}

func (r *Repository) buildHostNSEC(svc *registry.Service, hostLabels dnsname.Labels, hasV4, hasV6 bool) *record.NSEC {
	var types []record.Type
	if hasV4 {
		types = append(types, record.TypeA)
	}
	if hasV6 {
		types = append(types, record.TypeAAAA)
	}
	return record.NewNSEC(record.Header{
		Name:       hostLabels,
		CacheFlush: true,
		TTLMs:      svc.EffectiveTTL(record.ShortTTLMs),
	}, types...)
}

func (r *Repository) buildReverseNSEC(svc *registry.Service, reverseLabels dnsname.Labels) *record.NSEC {
	return record.NewNSEC(record.Header{
		Name:       reverseLabels,
		CacheFlush: true,
		TTLMs:      svc.EffectiveTTL(record.ShortTTLMs),
	}, record.TypePTR)
}
