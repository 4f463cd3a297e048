package netaddr

import (
	"net"
	"testing"
)

func TestPollDetectsChange(t *testing.T) {
	p := &Poller{}
	if p.Addresses() != nil {
		t.Fatalf("expected nil addresses before first Poll")
	}

	_, changed := p.Poll()
	// First poll reports a change relative to the nil baseline only when
	// it found addresses; an empty snapshot compares equal to nil.
	if len(p.last) > 0 && !changed {
		t.Fatalf("expected changed=true when addresses appear")
	}

	_, changed2 := p.Poll()
	if changed2 {
		t.Fatalf("expected no change on a stable second poll, got addrs=%v", p.last)
	}
}

func TestSameAddrsOrderIndependent(t *testing.T) {
	a := []net.IP{net.ParseIP("192.0.2.1"), net.ParseIP("192.0.2.2")}
	b := []net.IP{net.ParseIP("192.0.2.2"), net.ParseIP("192.0.2.1")}
	if !sameAddrs(a, b) {
		t.Fatalf("expected order-independent equality")
	}
}
