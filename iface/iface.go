// Package iface declares the address-provider contract the responder
// polls to learn this host's current interface addresses (spec.md §4.6).
package iface

import "net"

// AddressProvider supplies the current set of addresses to advertise for
// the default (non-custom) host. netaddr.Poller is the concrete
// implementation; tests substitute a fixed slice.
type AddressProvider interface {
	Addresses() []net.IP
}
