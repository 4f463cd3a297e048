package dnsname

import (
	"net"
	"testing"
)

func TestEqualFoldCaseInsensitive(t *testing.T) {
	a := Parse("_TestService._TCP.local")
	b := Parse("_testservice._tcp.local")
	if !EqualFold(a, b) {
		t.Fatalf("expected %v to equal %v under fold", a, b)
	}
}

func TestTypeEqualsOrIsSubtype(t *testing.T) {
	base := Parse("_testservice._tcp.local")
	subtype := Parse("_subtype._sub._testservice._tcp.local")
	if !TypeEqualsOrIsSubtype(base, subtype) {
		t.Fatalf("expected %v to be recognized as subtype query of %v", subtype, base)
	}
	if !TypeEqualsOrIsSubtype(base, base) {
		t.Fatalf("expected base type to equal itself")
	}
	other := Parse("_other._tcp.local")
	if TypeEqualsOrIsSubtype(base, other) {
		t.Fatalf("did not expect %v to match %v", other, base)
	}
}

func TestReverseIPv4(t *testing.T) {
	ip := net.ParseIP("192.0.2.111")
	labels, err := ReverseIPv4(ip)
	if err != nil {
		t.Fatal(err)
	}
	got := labels.String()
	want := "111.2.0.192.in-addr.arpa"
	if got != want {
		t.Fatalf("ReverseIPv4 = %q, want %q", got, want)
	}
}

func TestReverseIPv6(t *testing.T) {
	ip := net.ParseIP("2001:db8::1")
	labels, err := ReverseIPv6(ip)
	if err != nil {
		t.Fatal(err)
	}
	got := labels.String()
	want := "1.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.8.B.D.0.1.0.0.2.ip6.arpa"
	if got != want {
		t.Fatalf("ReverseIPv6 = %q, want %q", got, want)
	}
}

func TestTruncateUTF8(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "h"}, // é is 2 bytes; must not split it
	}
	for _, c := range cases {
		got := TruncateUTF8(c.in, c.max)
		if got != c.want {
			t.Errorf("TruncateUTF8(%q, %d) = %q, want %q", c.in, c.max, got, c.want)
		}
		if len(got) > c.max {
			t.Errorf("TruncateUTF8(%q, %d) = %q exceeds max", c.in, c.max, got)
		}
	}
}

func TestIsSuffix(t *testing.T) {
	long := Parse("a.b.c.local")
	short := Parse("b.c.local")
	if !IsSuffix(short, long) {
		t.Fatalf("expected %v to be a suffix of %v", short, long)
	}
	if IsSuffix(long, short) {
		t.Fatalf("did not expect %v to be a suffix of %v", long, short)
	}
}
