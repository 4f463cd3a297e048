package repo

import (
	"net"
	"testing"

	"github.com/kdanielm/mdnscore/dnsname"
	"github.com/kdanielm/mdnscore/mpacket"
	"github.com/kdanielm/mdnscore/record"
	"github.com/kdanielm/mdnscore/registry"
)

func newTestRepo() *Repository {
	return New(Options{
		DefaultHostLabel:       "Android_000102030405060708090A0B0C0D0E0F",
		KnownAnswerSuppression: true,
		UnicastReply:           true,
	})
}

func s1Info() registry.ServiceInfo {
	return registry.ServiceInfo{
		InstanceName: "MyTestService",
		ServiceType:  "_testservice._tcp",
		Port:         12345,
	}
}

func s1Addresses() []net.IP {
	return []net.IP{
		net.ParseIP("192.0.2.111"),
		net.ParseIP("2001:db8::111"),
		net.ParseIP("2001:db8::222"),
	}
}

func mustAdd(t *testing.T, r *Repository, id int64, info registry.ServiceInfo) {
	t.Helper()
	if _, isNew, err := r.AddService(id, info, 0); err != nil || !isNew {
		t.Fatalf("AddService(%d): isNew=%v err=%v", id, isNew, err)
	}
}

// TestProbingPacketShape covers P2.
func TestProbingPacketShape(t *testing.T) {
	r := newTestRepo()
	mustAdd(t, r, 42, s1Info())
	r.UpdateAddresses(s1Addresses())

	info, err := r.SetServiceProbing(42)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Packet.Questions) != 1 || len(info.Packet.Authority) != 1 {
		t.Fatalf("expected 1 question/1 authority without includeHostInProbing, got %d/%d",
			len(info.Packet.Questions), len(info.Packet.Authority))
	}
	if info.Packet.Questions[0].Type != record.TypeANY {
		t.Fatalf("expected ANY question")
	}

	r2 := New(Options{DefaultHostLabel: "Android_00", IncludeHostInProbing: true})
	mustAdd(t, r2, 42, s1Info())
	r2.UpdateAddresses(s1Addresses())
	info2, err := r2.SetServiceProbing(42)
	if err != nil {
		t.Fatal(err)
	}
	if len(info2.Packet.Questions) != 2 || len(info2.Packet.Authority) != 4 {
		t.Fatalf("expected 2 questions/4 authority with includeHostInProbing, got %d/%d",
			len(info2.Packet.Questions), len(info2.Packet.Authority))
	}
}

// TestAnnouncementSubtypePTRCount covers P3.
func TestAnnouncementSubtypePTRCount(t *testing.T) {
	r := newTestRepo()
	info := s1Info()
	mustAdd(t, r, 42, info)
	r.UpdateService(42, []string{"_s1", "_s2"})
	r.UpdateAddresses(s1Addresses())

	ann, err := r.OnProbingSucceeded(42)
	if err != nil {
		t.Fatal(err)
	}
	ptrCount := 0
	for _, a := range ann.Packet.Answers {
		if a.RRType() == record.TypePTR {
			ptrCount++
		}
	}
	// type PTR + enumeration PTR + reverse PTR per address (3) + 2 subtype PTRs
	want := 2 + len(s1Addresses()) + 2
	if ptrCount != want {
		t.Fatalf("expected %d PTR answers, got %d", want, ptrCount)
	}
}

// TestBasicAdvertiseAndBrowse covers S1.
func TestBasicAdvertiseAndBrowse(t *testing.T) {
	r := newTestRepo()
	mustAdd(t, r, 42, s1Info())
	r.UpdateAddresses(s1Addresses())
	if _, err := r.OnProbingSucceeded(42); err != nil {
		t.Fatal(err)
	}

	query := &mpacket.Packet{
		Questions: []mpacket.Question{{Name: dnsname.Parse("_testservice._tcp.local"), Type: record.TypePTR}},
	}
	src := &net.UDPAddr{IP: net.ParseIP("192.0.2.123"), Port: 5353}
	reply := r.GetReply(query, src, 0)
	if reply == nil {
		t.Fatal("expected a reply")
	}
	if reply.Destination != nil {
		t.Fatalf("expected multicast reply (nil destination), got %v", reply.Destination)
	}
	if len(reply.Answers) != 1 {
		t.Fatalf("expected exactly one PTR answer, got %d", len(reply.Answers))
	}
	ptr, ok := reply.Answers[0].(*record.PTR)
	if !ok {
		t.Fatalf("expected PTR answer, got %T", reply.Answers[0])
	}
	if !dnsname.EqualFold(ptr.Pointer, dnsname.Parse("MyTestService._testservice._tcp.local")) {
		t.Fatalf("unexpected PTR target: %v", ptr.Pointer)
	}

	var hasTXT, hasSRV bool
	addrCount, nsecCount := 0, 0
	for _, a := range reply.Additional {
		switch rec := a.(type) {
		case *record.TXT:
			hasTXT = true
		case *record.SRV:
			hasSRV = true
			if rec.Port != 12345 {
				t.Fatalf("unexpected SRV port %d", rec.Port)
			}
		case *record.A, *record.AAAA:
			addrCount++
		case *record.NSEC:
			nsecCount++
		}
	}
	if !hasTXT || !hasSRV {
		t.Fatalf("expected TXT and SRV in additional, hasTXT=%v hasSRV=%v", hasTXT, hasSRV)
	}
	if addrCount != 3 {
		t.Fatalf("expected 3 address records in additional, got %d", addrCount)
	}
	if nsecCount != 2 {
		t.Fatalf("expected 2 NSEC records in additional, got %d", nsecCount)
	}
}

// TestSubtypePTRQuery covers S2.
func TestSubtypePTRQuery(t *testing.T) {
	r := newTestRepo()
	mustAdd(t, r, 42, s1Info())
	r.UpdateService(42, []string{"_subtype"})
	r.UpdateAddresses(s1Addresses())
	if _, err := r.OnProbingSucceeded(42); err != nil {
		t.Fatal(err)
	}

	query := &mpacket.Packet{
		Questions: []mpacket.Question{{Name: dnsname.Parse("_subtype._sub._testservice._tcp.local"), Type: record.TypePTR}},
	}
	reply := r.GetReply(query, &net.UDPAddr{IP: net.ParseIP("192.0.2.123"), Port: 5353}, 0)
	if reply == nil || len(reply.Answers) != 1 {
		t.Fatalf("expected exactly one PTR answer, got %v", reply)
	}
	ptr := reply.Answers[0].(*record.PTR)
	if !dnsname.EqualFold(ptr.Pointer, dnsname.Parse("MyTestService._testservice._tcp.local")) {
		t.Fatalf("unexpected PTR target: %v", ptr.Pointer)
	}
}

// TestKnownAnswerSuppression covers P7/S3.
func TestKnownAnswerSuppression(t *testing.T) {
	r := newTestRepo()
	mustAdd(t, r, 42, s1Info())
	r.UpdateAddresses(s1Addresses())
	if _, err := r.OnProbingSucceeded(42); err != nil {
		t.Fatal(err)
	}

	ptrAnswer := &record.PTR{
		H: record.Header{
			Name:       dnsname.Parse("_testservice._tcp.local"),
			TTLMs:      record.LongTTLMs,
			ReceiptTimeMs: 1000,
		},
		Pointer: dnsname.Parse("MyTestService._testservice._tcp.local"),
	}

	query := &mpacket.Packet{
		Questions: []mpacket.Question{{Name: dnsname.Parse("_testservice._tcp.local"), Type: record.TypePTR}},
		Answers:   []record.Record{ptrAnswer},
	}

	// remaining = 4_499_000 at nowMs = 1000+1000 = 2000 -> remaining TTL = LongTTLMs-1000 = 4_499_000, > half.
	reply := r.GetReply(query, &net.UDPAddr{IP: net.ParseIP("192.0.2.123"), Port: 5353}, 2000)
	if reply != nil {
		t.Fatalf("expected no reply when known answer remaining TTL exceeds half, got %v", reply)
	}

	// Now advance "now" so remaining TTL falls below half (2_250_000).
	pastHalf := int64(1000) + (record.LongTTLMs - record.LongTTLMs/2 + 1)
	reply2 := r.GetReply(query, &net.UDPAddr{IP: net.ParseIP("192.0.2.123"), Port: 5353}, pastHalf)
	if reply2 == nil || len(reply2.Answers) != 1 {
		t.Fatalf("expected full reply once known answer has aged past half TTL, got %v", reply2)
	}
	if len(reply2.KnownAnswers) != 1 {
		t.Fatalf("expected echoed known answer in second reply")
	}
}

// TestCaseInsensitiveQuery covers P5.
func TestCaseInsensitiveQuery(t *testing.T) {
	r := newTestRepo()
	mustAdd(t, r, 42, s1Info())
	r.UpdateAddresses(s1Addresses())
	if _, err := r.OnProbingSucceeded(42); err != nil {
		t.Fatal(err)
	}
	query := &mpacket.Packet{
		Questions: []mpacket.Question{{Name: dnsname.Parse("_TESTSERVICE._TCP.local"), Type: record.TypePTR}},
	}
	reply := r.GetReply(query, &net.UDPAddr{IP: net.ParseIP("192.0.2.123"), Port: 5353}, 0)
	if reply == nil || len(reply.Answers) != 1 {
		t.Fatalf("expected case-insensitive match to produce a reply, got %v", reply)
	}
}

// TestUnicastDestinationSelection covers P10.
func TestUnicastDestinationSelection(t *testing.T) {
	r := newTestRepo()
	mustAdd(t, r, 42, s1Info())
	r.UpdateAddresses(s1Addresses())
	if _, err := r.OnProbingSucceeded(42); err != nil {
		t.Fatal(err)
	}
	src := &net.UDPAddr{IP: net.ParseIP("192.0.2.123"), Port: 5353}

	unicastQuery := &mpacket.Packet{
		Questions: []mpacket.Question{{Name: dnsname.Parse("_testservice._tcp.local"), Type: record.TypePTR, Unicast: true}},
	}
	reply := r.GetReply(unicastQuery, src, 0)
	if reply == nil || reply.Destination != src {
		t.Fatalf("expected unicast reply to src, got %v", reply)
	}

	multicastQuery := &mpacket.Packet{
		Questions: []mpacket.Question{{Name: dnsname.Parse("_testservice._tcp.local"), Type: record.TypePTR, Unicast: false}},
	}
	reply2 := r.GetReply(multicastQuery, src, 0)
	if reply2 == nil || reply2.Destination != nil {
		t.Fatalf("expected multicast reply, got destination %v", reply2.Destination)
	}

	noUnicastRepo := New(Options{DefaultHostLabel: "Android_00", UnicastReply: false})
	mustAdd(t, noUnicastRepo, 42, s1Info())
	noUnicastRepo.UpdateAddresses(s1Addresses())
	noUnicastRepo.OnProbingSucceeded(42)
	reply3 := noUnicastRepo.GetReply(unicastQuery, src, 0)
	if reply3 == nil || reply3.Destination != nil {
		t.Fatalf("expected multicast reply when unicastReply disabled, got %v", reply3)
	}
}

// TestExitAnnouncement covers P6/S5.
func TestExitAnnouncement(t *testing.T) {
	r := newTestRepo()
	mustAdd(t, r, 42, s1Info())
	r.UpdateAddresses(s1Addresses())
	if _, err := r.OnProbingSucceeded(42); err != nil {
		t.Fatal(err)
	}
	r.RecordAnnouncementSent(42)
	r.RecordAnnouncementSent(42)

	info, err := r.ExitService(42)
	if err != nil {
		t.Fatal(err)
	}
	if info == nil {
		t.Fatal("expected an exit packet after announcements were sent")
	}
	if len(info.Packet.Questions) != 0 || len(info.Packet.Authority) != 0 || len(info.Packet.Additional) != 0 {
		t.Fatalf("exit packet must carry only answers")
	}
	for _, a := range info.Packet.Answers {
		if a.RRType() != record.TypePTR {
			t.Fatalf("expected only PTR answers in exit packet, got %v", a.RRType())
		}
		if a.Hdr().TTLMs != 0 {
			t.Fatalf("expected TTL=0 in exit packet")
		}
	}
	if r.ServicesCount() != 1 {
		t.Fatalf("expected servicesCount to remain 1 until RemoveService, got %d", r.ServicesCount())
	}

	second, err := r.ExitService(42)
	if err != nil || second != nil {
		t.Fatalf("expected idempotent no-op on second ExitService, got %v, err=%v", second, err)
	}

	if err := r.RemoveService(42); err != nil {
		t.Fatal(err)
	}
	if r.ServicesCount() != 0 {
		t.Fatalf("expected servicesCount 0 after RemoveService")
	}
}

// TestHostConflict covers P8/S4.
func TestHostConflict(t *testing.T) {
	r := newTestRepo()
	info := registry.ServiceInfo{
		InstanceName: "A",
		ServiceType:  "_a._tcp",
		Port:         1,
		Host: registry.HostSpec{
			Custom: true,
			Label:  "TestHost",
			Addresses: []net.IP{
				net.ParseIP("2001:db8::1"),
				net.ParseIP("2001:db8::2"),
			},
		},
	}
	mustAdd(t, r, 45, info)

	superset := &mpacket.Packet{Answers: []record.Record{
		&record.AAAA{H: record.Header{Name: dnsname.Parse("TestHost.local")}, Addr: net.ParseIP("2001:db8::5")},
		&record.AAAA{H: record.Header{Name: dnsname.Parse("TestHost.local")}, Addr: net.ParseIP("2001:db8::6")},
	}}
	conflicts := r.GetConflictingServices(superset)
	if len(conflicts) != 1 || conflicts[0].ServiceID != 45 || conflicts[0].Kind != ConflictHost {
		t.Fatalf("expected HOST conflict for id 45, got %v", conflicts)
	}

	subset := &mpacket.Packet{Answers: []record.Record{
		&record.AAAA{H: record.Header{Name: dnsname.Parse("TestHost.local")}, Addr: net.ParseIP("2001:db8::2")},
	}}
	if got := r.GetConflictingServices(subset); len(got) != 0 {
		t.Fatalf("expected no conflict for address subset, got %v", got)
	}

	identical := &mpacket.Packet{Answers: []record.Record{
		&record.AAAA{H: record.Header{Name: dnsname.Parse("TestHost.local")}, Addr: net.ParseIP("2001:db8::1")},
		&record.AAAA{H: record.Header{Name: dnsname.Parse("TestHost.local")}, Addr: net.ParseIP("2001:db8::2")},
	}}
	if got := r.GetConflictingServices(identical); len(got) != 0 {
		t.Fatalf("expected no conflict for an identical address set, got %v", got)
	}
}

// TestReverseDNSNameIPv6 covers P9.
func TestReverseDNSNameIPv6(t *testing.T) {
	labels, err := dnsname.ReverseIPv6(net.ParseIP("2001:db8::1"))
	if err != nil {
		t.Fatal(err)
	}
	got := labels.String()
	want := "1.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.8.B.D.0.1.0.0.2.ip6.arpa"
	if got != want {
		t.Fatalf("ReverseIPv6 mismatch:\n got: %s\nwant: %s", got, want)
	}
}
