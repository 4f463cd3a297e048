package transport

import "testing"

func TestNoopConnHasNoFamilies(t *testing.T) {
	c := NewNoopConn()
	if c.HasIPv4() || c.HasIPv6() {
		t.Fatalf("noop conn should report no joined family")
	}
	// Multicast on a conn with neither family joined must not panic.
	c.Multicast([]byte("hello"))
	c.Close()
}

func TestUnicastWithoutJoinedFamilyErrors(t *testing.T) {
	c := NewNoopConn()
	if err := c.Unicast([]byte("x"), 0, IPv4Group); err == nil {
		t.Fatalf("expected error sending unicast with no ipv4 conn joined")
	}
	if err := c.Unicast([]byte("x"), 0, IPv6Group); err == nil {
		t.Fatalf("expected error sending unicast with no ipv6 conn joined")
	}
}
