// Package offload builds the canonical single-registration response
// packet used to hand a registration's current record set to another
// process or responder instance taking over advertisement duties,
// per spec.md §4.5.
package offload

import (
	"fmt"
	"net"

	"github.com/kdanielm/mdnscore/dnsname"
	"github.com/kdanielm/mdnscore/mdnserr"
	"github.com/kdanielm/mdnscore/mpacket"
	"github.com/kdanielm/mdnscore/record"
	"github.com/kdanielm/mdnscore/registry"
)

// Builder constructs offload packets from a registration table; it needs
// the same name-construction knowledge as repo.Repository (domain suffix,
// default host label, current interface addresses) but not the
// repository's question/reply machinery, so it is kept a standalone,
// equally logger-free, equally pure package.
type Builder struct {
	DefaultHostLabel string
	Domain           string
	// Addresses is the current interface-address snapshot, used for
	// registrations that do not declare a custom host.
	Addresses []net.IP
}

func (b Builder) domain() string {
	if b.Domain == "" {
		return "local"
	}
	return b.Domain
}

func (b Builder) hostLabel(svc *registry.Service) string {
	if svc.Host.Custom {
		return svc.Host.Label
	}
	return b.DefaultHostLabel
}

func (b Builder) typeLabels(svc *registry.Service) dnsname.Labels {
	return dnsname.Parse(svc.ServiceType).Append(b.domain())
}

func (b Builder) instanceLabels(svc *registry.Service) dnsname.Labels {
	return dnsname.Labels{svc.InstanceName}.Append(b.typeLabels(svc)...)
}

func (b Builder) hostLabels(svc *registry.Service) dnsname.Labels {
	return dnsname.Labels{b.hostLabel(svc), b.domain()}
}

// Packet returns the canonical offload response packet for a single
// registration, per spec.md §4.5: answers in order type-PTR, SRV, TXT,
// then each A/AAAA for the host; no subtypes, no enumeration PTR, no
// NSEC. Flags 0x8400, transaction id 0.
func Packet(tbl *registry.Table, b Builder, id int64) (*mpacket.Packet, error) {
	svc, ok := tbl.Get(id)
	if !ok {
		return nil, mdnserr.New(mdnserr.NoTransaction, "offload.Packet", fmt.Sprintf("unknown service id %d", id))
	}

	typeLabels := b.typeLabels(svc)
	instanceLabels := b.instanceLabels(svc)
	hostLabels := b.hostLabels(svc)

	pkt := &mpacket.Packet{Response: true, Authoritative: true}
	pkt.Answers = append(pkt.Answers, &record.PTR{
		H: record.Header{
			Name:       typeLabels,
			CacheFlush: false,
			TTLMs:      svc.EffectiveTTL(record.LongTTLMs),
		},
		Pointer: instanceLabels,
	})
	pkt.Answers = append(pkt.Answers, &record.SRV{
		H: record.Header{
			Name:       instanceLabels,
			CacheFlush: true,
			TTLMs:      svc.EffectiveTTL(record.ShortTTLMs),
		},
		Priority: 0,
		Weight:   0,
		Port:     uint16(svc.Port),
		Target:   hostLabels,
	})
	pkt.Answers = append(pkt.Answers, &record.TXT{
		H: record.Header{
			Name:       instanceLabels,
			CacheFlush: true,
			TTLMs:      svc.EffectiveTTL(record.LongTTLMs),
		},
		Entries: svc.TXT,
	})

	for _, ip := range b.addresses(svc) {
		if ip.To4() != nil {
			pkt.Answers = append(pkt.Answers, &record.A{
				H: record.Header{Name: hostLabels, CacheFlush: true, TTLMs: svc.EffectiveTTL(record.ShortTTLMs)},
				Addr: ip,
			})
		} else {
			pkt.Answers = append(pkt.Answers, &record.AAAA{
				H: record.Header{Name: hostLabels, CacheFlush: true, TTLMs: svc.EffectiveTTL(record.ShortTTLMs)},
				Addr: ip,
			})
		}
	}
	return pkt, nil
}

func (b Builder) addresses(svc *registry.Service) []net.IP {
	if svc.Host.Custom {
		return svc.Host.Addresses
	}
	return b.Addresses
}
