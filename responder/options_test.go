package responder

import (
	"testing"
	"time"
)

func TestDefaultOptions(t *testing.T) {
	o := applyOptions()
	if o.probeCount != 3 || o.probeIntervalMs != 250 || o.probeJitterMaxMs != 250 {
		t.Fatalf("unexpected probe defaults: %+v", o)
	}
	if o.announceRepeats != 2 || o.announceIntervalMs != 1000 {
		t.Fatalf("unexpected announce defaults: %+v", o)
	}
}

func TestProbeScheduleOverride(t *testing.T) {
	o := applyOptions(ProbeSchedule(5, 100, 50))
	if o.probeCount != 5 || o.probeIntervalMs != 100 || o.probeJitterMaxMs != 50 {
		t.Fatalf("probe schedule override not applied: %+v", o)
	}
}

func TestAnnounceScheduleOverride(t *testing.T) {
	o := applyOptions(AnnounceSchedule(4, 500))
	if o.announceRepeats != 4 || o.announceIntervalMs != 500 {
		t.Fatalf("announce schedule override not applied: %+v", o)
	}
}

func TestAddressPollPeriodOverride(t *testing.T) {
	o := applyOptions(AddressPollPeriod(30 * time.Second))
	if o.addressPollPeriod != 30*time.Second {
		t.Fatalf("address poll period override not applied: %+v", o)
	}
}
