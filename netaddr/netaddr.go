// Package netaddr gathers the local interface addresses the responder
// advertises for the default host, adapted from the teacher's
// addrsForInterface/listMulticastInterfaces (server.go, client.go):
// generalized from "gather once at registration" to "poll and diff".
package netaddr

import (
	"net"
	"sort"
)

// Poller implements iface.AddressProvider by snapshotting every
// multicast-capable, non-loopback, up interface on each call to Poll.
// It holds no goroutines of its own; the caller (responder) decides the
// polling cadence.
type Poller struct {
	last []net.IP
}

// Addresses returns the most recent snapshot taken by Poll. Before the
// first Poll it returns nil.
func (p *Poller) Addresses() []net.IP {
	return p.last
}

// Poll re-gathers addresses from the live interface list and reports
// whether the set changed since the previous Poll (or construction).
// The returned slice is the new snapshot regardless of change.
func (p *Poller) Poll() (addrs []net.IP, changed bool) {
	addrs = gather(listMulticastInterfaces())
	changed = !sameAddrs(p.last, addrs)
	p.last = addrs
	return addrs, changed
}

// listMulticastInterfaces returns every interface that is up, supports
// multicast, and is not a loopback — the set the teacher joins for
// mDNS traffic when the caller did not pin specific interfaces.
func listMulticastInterfaces() []net.Interface {
	var out []net.Interface
	ifaces, err := net.Interfaces()
	if err != nil {
		return out
	}
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagUp == 0 {
			continue
		}
		if ifi.Flags&net.FlagMulticast == 0 {
			continue
		}
		if ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		out = append(out, ifi)
	}
	return out
}

// gather collects every non-loopback v4 address and, per interface,
// global-unicast v6 addresses falling back to link-local v6 when no
// global v6 address is present — the same fallback the teacher's
// addrsForInterface uses.
func gather(ifaces []net.Interface) []net.IP {
	var v4, v6 []net.IP
	for _, ifi := range ifaces {
		a4, a6 := addrsForInterface(&ifi)
		v4 = append(v4, a4...)
		v6 = append(v6, a6...)
	}
	return append(v4, v6...)
}

func addrsForInterface(ifi *net.Interface) ([]net.IP, []net.IP) {
	var v4, v6, v6local []net.IP
	addrs, err := ifi.Addrs()
	if err != nil {
		return nil, nil
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			v4 = append(v4, ip4)
			continue
		}
		ip6 := ipnet.IP.To16()
		if ip6 == nil {
			continue
		}
		if ip6.IsGlobalUnicast() {
			v6 = append(v6, ip6)
		} else if ip6.IsLinkLocalUnicast() {
			v6local = append(v6local, ip6)
		}
	}
	if len(v6) == 0 {
		v6 = v6local
	}
	return v4, v6
}

func sameAddrs(a, b []net.IP) bool {
	if len(a) != len(b) {
		return false
	}
	as := sortedStrings(a)
	bs := sortedStrings(b)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func sortedStrings(addrs []net.IP) []string {
	out := make([]string, len(addrs))
	for i, ip := range addrs {
		out[i] = ip.String()
	}
	sort.Strings(out)
	return out
}
