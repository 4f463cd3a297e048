package responder

import (
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kdanielm/mdnscore/registry"
	"github.com/kdanielm/mdnscore/repo"
	"github.com/kdanielm/mdnscore/transport"
)

type fixedAddresses struct{}

func (fixedAddresses) Addresses() []net.IP { return nil }

func TestRegisterReportsActiveService(t *testing.T) {
	r := repo.New(repo.Options{DefaultHostLabel: "TestHost", Domain: "local"})
	conn := transport.NewNoopConn()
	resp := New(r, conn, fixedAddresses{}, zap.NewNop().Sugar(),
		ProbeSchedule(1, 5, 0),
		AnnounceSchedule(2, 5),
	)
	resp.Start()
	defer resp.Shutdown()

	if err := resp.Register(1, registry.ServiceInfo{
		InstanceName: "MyService",
		ServiceType:  "_testservice._tcp",
		Port:         1234,
	}, 0); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if resp.HasActiveService() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("HasActiveService never reported the registration within deadline")
}

func TestUnregisterIsIdempotent(t *testing.T) {
	r := repo.New(repo.Options{DefaultHostLabel: "TestHost", Domain: "local"})
	conn := transport.NewNoopConn()
	resp := New(r, conn, nil, zap.NewNop().Sugar(), ProbeSchedule(1, 5, 0))
	resp.Start()
	defer resp.Shutdown()

	if err := resp.Register(7, registry.ServiceInfo{
		InstanceName: "Ephemeral",
		ServiceType:  "_testservice._tcp",
		Port:         1,
	}, 0); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	resp.Unregister(7)
	resp.Unregister(7)
}
