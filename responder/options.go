package responder

import "time"

type options struct {
	probeJitterMaxMs  int64
	probeIntervalMs   int64
	probeCount        int
	announceIntervalMs int64
	announceRepeats   int
	addressPollPeriod time.Duration
}

func applyOptions(opts ...Option) options {
	conf := options{
		probeJitterMaxMs:   250,
		probeIntervalMs:    250,
		probeCount:         3,
		announceIntervalMs: 1000,
		announceRepeats:    2,
		addressPollPeriod:  10 * time.Second,
	}
	for _, o := range opts {
		if o != nil {
			o(&conf)
		}
	}
	return conf
}

// Option fills the option struct, mirroring the teacher's ServerOption/
// ClientOption functional-options pattern.
type Option func(*options)

// ProbeSchedule overrides the RFC 6762 §8.1 probe cadence: count probes
// spaced intervalMs apart, after an initial 0..jitterMaxMs random delay.
func ProbeSchedule(count int, intervalMs, jitterMaxMs int64) Option {
	return func(o *options) {
		o.probeCount = count
		o.probeIntervalMs = intervalMs
		o.probeJitterMaxMs = jitterMaxMs
	}
}

// AnnounceSchedule overrides the RFC 6762 §8.3 unsolicited-announcement
// cadence: repeats announcements, starting firstIntervalMs apart and
// doubling each time.
func AnnounceSchedule(repeats int, firstIntervalMs int64) Option {
	return func(o *options) {
		o.announceRepeats = repeats
		o.announceIntervalMs = firstIntervalMs
	}
}

// AddressPollPeriod overrides how often the responder re-polls its
// iface.AddressProvider for interface-address changes.
func AddressPollPeriod(d time.Duration) Option {
	return func(o *options) {
		o.addressPollPeriod = d
	}
}
