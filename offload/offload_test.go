package offload

import (
	"net"
	"testing"

	"github.com/kdanielm/mdnscore/record"
	"github.com/kdanielm/mdnscore/registry"
)

func TestPacketOrderAndContents(t *testing.T) {
	tbl := registry.New(false)
	info := registry.ServiceInfo{
		InstanceName: "MyTestService",
		ServiceType:  "_testservice._tcp",
		Port:         12345,
	}
	if _, _, err := tbl.AddService(42, info, 0); err != nil {
		t.Fatal(err)
	}

	b := Builder{
		DefaultHostLabel: "Android_000102030405060708090A0B0C0D0E0F",
		Addresses: []net.IP{
			net.ParseIP("192.0.2.111"),
			net.ParseIP("2001:db8::111"),
		},
	}
	pkt, err := Packet(tbl, b, 42)
	if err != nil {
		t.Fatal(err)
	}
	if pkt.TransactionID != 0 || !pkt.Response || !pkt.Authoritative {
		t.Fatalf("unexpected packet flags: %+v", pkt)
	}
	if len(pkt.Answers) != 5 {
		t.Fatalf("expected 5 answers (PTR,SRV,TXT,A,AAAA), got %d", len(pkt.Answers))
	}
	wantOrder := []record.Type{record.TypePTR, record.TypeSRV, record.TypeTXT, record.TypeA, record.TypeAAAA}
	for i, want := range wantOrder {
		if pkt.Answers[i].RRType() != want {
			t.Fatalf("answer %d: expected %v, got %v", i, want, pkt.Answers[i].RRType())
		}
	}
	for _, a := range pkt.Answers {
		if a.RRType() == record.TypeNSEC {
			t.Fatalf("offload packet must not contain NSEC records")
		}
	}
}

func TestPacketUnknownID(t *testing.T) {
	tbl := registry.New(false)
	if _, err := Packet(tbl, Builder{}, 99); err == nil {
		t.Fatal("expected error for unknown id")
	}
}
