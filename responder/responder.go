// Package responder is the timer-driven orchestrator that sits between
// repo.Repository (pure state machine, no I/O, no clock) and
// transport.Conn (socket I/O): it owns the single "owner thread" the
// repository requires (spec.md §5), driving every repository call from
// one goroutine and funneling onto it both its own timers and the
// transport's receive goroutines through a command channel.
//
// Adapted from the teacher's Server (refCount sync.WaitGroup,
// shouldShutdown chan struct{}, Server.probe/Server.start), generalized
// from "handle a packet inline on whichever goroutine received it" (safe
// there only because the teacher had no shared map) to "serialize
// everything onto one goroutine that owns the registration table".
package responder

import (
	"math/rand"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kdanielm/mdnscore/iface"
	"github.com/kdanielm/mdnscore/mpacket"
	"github.com/kdanielm/mdnscore/registry"
	"github.com/kdanielm/mdnscore/repo"
	"github.com/kdanielm/mdnscore/transport"
)

// Responder drives one repo.Repository's registrations through the RFC
// 6762 probe/announce/exit lifecycle over a transport.Conn.
type Responder struct {
	repo *repo.Repository
	conn *transport.Conn
	addr iface.AddressProvider
	log  *zap.SugaredLogger
	opts options

	// OnConflict is invoked on the owner goroutine whenever
	// GetConflictingServices reports a hit against an inbound packet.
	// Resolving a conflict (renaming an instance, re-probing a host) is
	// the caller's responsibility (spec.md §9 Open Question (b)); the
	// responder only surfaces it.
	OnConflict func(repo.Conflict)

	cmds chan func(now int64)
	done chan struct{}
	wg   sync.WaitGroup

	clock func() int64
}

// New constructs a Responder around an already-configured repository, a
// joined transport, and an address provider (nil disables address
// polling, e.g. for a repository with only custom hosts).
func New(r *repo.Repository, conn *transport.Conn, addr iface.AddressProvider, log *zap.SugaredLogger, opts ...Option) *Responder {
	return &Responder{
		repo:  r,
		conn:  conn,
		addr:  addr,
		log:   log,
		opts:  applyOptions(opts...),
		cmds:  make(chan func(int64), 64),
		done:  make(chan struct{}),
		clock: func() int64 { return time.Now().UnixMilli() },
	}
}

// Start begins the owner goroutine, the transport receive loops, and
// periodic interface-address polling. It does not block.
func (d *Responder) Start() {
	d.wg.Add(1)
	go d.run()

	if d.conn.HasIPv4() {
		d.wg.Add(1)
		go d.recvLoop(d.conn.Recv4)
	}
	if d.conn.HasIPv6() {
		d.wg.Add(1)
		go d.recvLoop(d.conn.Recv6)
	}
	if d.addr != nil {
		d.wg.Add(1)
		go d.pollAddresses()
	}
}

// Shutdown sends a goodbye for every remaining registration, closes the
// transport, and waits for every goroutine to exit.
func (d *Responder) Shutdown() {
	d.submitAndWait(func(now int64) {
		for _, id := range d.repo.ServiceIDs() {
			if info, err := d.repo.ExitService(id); err == nil && info != nil {
				d.send(info.Packet)
			}
		}
		d.repo.ClearServices()
	})
	close(d.done)
	d.conn.Close()
	d.wg.Wait()
}

// run is the single owner goroutine: every closure sent on cmds executes
// here, serialized, so the repository is never touched from anywhere
// else.
func (d *Responder) run() {
	defer d.wg.Done()
	for {
		select {
		case fn := <-d.cmds:
			fn(d.clock())
		case <-d.done:
			return
		}
	}
}

func (d *Responder) submit(fn func(now int64)) {
	select {
	case d.cmds <- fn:
	case <-d.done:
	}
}

func (d *Responder) submitAndWait(fn func(now int64)) {
	wait := make(chan struct{})
	d.submit(func(now int64) {
		fn(now)
		close(wait)
	})
	select {
	case <-wait:
	case <-d.done:
	}
}

// HasActiveService reports whether the repository holds any registration
// that has not been removed, whatever its lifecycle state (a Probing
// registration counts). It is serialized through the owner goroutine like
// every other repository access.
func (d *Responder) HasActiveService() bool {
	var active bool
	d.submitAndWait(func(now int64) {
		active = d.repo.HasActiveService()
	})
	return active
}

// Register adds a service registration and starts its probe/announce
// sequence (spec.md §4.4.1-§4.4.2, RFC 6762 §8).
func (d *Responder) Register(id int64, info registry.ServiceInfo, ttlOverrideMs int64) error {
	var addErr error
	d.submitAndWait(func(now int64) {
		_, _, addErr = d.repo.AddService(id, info, ttlOverrideMs)
	})
	if addErr != nil {
		return addErr
	}
	d.wg.Add(1)
	go d.probeAndAnnounce(id)
	return nil
}

// Unregister sends the registration's goodbye packet and removes it from
// the table.
func (d *Responder) Unregister(id int64) {
	d.submit(func(now int64) {
		info, err := d.repo.ExitService(id)
		if err != nil {
			d.log.Debugw("exit service failed", "id", id, "error", err)
			return
		}
		if info != nil {
			d.send(info.Packet)
		}
		if err := d.repo.RemoveService(id); err != nil {
			d.log.Debugw("remove service failed", "id", id, "error", err)
		}
	})
}

// probeAndAnnounce runs the RFC 6762 §8.1 probe cadence (a jittered
// initial delay, then opts.probeCount probes opts.probeIntervalMs apart)
// followed by the §8.3 unsolicited-announcement cadence (opts.
// announceRepeats announcements, one second apart by default, doubling
// the interval each time) — the same cadence as the teacher's
// Server.probe, now driving repo.Repository's state machine instead of
// building packets against a single embedded service.
func (d *Responder) probeAndAnnounce(id int64) {
	defer d.wg.Done()

	jitter := time.Duration(rand.Int63n(d.opts.probeJitterMaxMs+1)) * time.Millisecond
	if !d.sleep(jitter) {
		return
	}

	for i := 0; i < d.opts.probeCount; i++ {
		d.submit(func(now int64) {
			info, err := d.repo.SetServiceProbing(id)
			if err != nil {
				d.log.Debugw("probe failed", "id", id, "error", err)
				return
			}
			d.send(info.Packet)
		})
		if !d.sleep(time.Duration(d.opts.probeIntervalMs) * time.Millisecond) {
			return
		}
	}

	announce := func() {
		d.submit(func(now int64) {
			info, err := d.repo.OnProbingSucceeded(id)
			if err != nil {
				d.log.Debugw("announcement failed", "id", id, "error", err)
				return
			}
			d.send(info.Packet)
			if err := d.repo.RecordAnnouncementSent(id); err != nil {
				d.log.Debugw("record announcement sent failed", "id", id, "error", err)
			}
		})
	}

	interval := time.Duration(d.opts.announceIntervalMs) * time.Millisecond
	for i := 0; i < d.opts.announceRepeats; i++ {
		announce()
		if i == d.opts.announceRepeats-1 {
			break
		}
		if !d.sleep(interval) {
			return
		}
		interval *= 2
	}
}

func (d *Responder) sleep(dur time.Duration) bool {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-d.done:
		return false
	}
}

func (d *Responder) recvLoop(recv func([]byte) (*transport.Packet, error)) {
	defer d.wg.Done()
	buf := make([]byte, 65536)
	for {
		pkt, err := recv(buf)
		if err != nil {
			select {
			case <-d.done:
				return
			default:
				continue
			}
		}
		data := append([]byte(nil), pkt.Data...)
		src := pkt.Src
		ifIndex := pkt.IfIndex
		d.submit(func(now int64) {
			d.handleInbound(data, ifIndex, src, now)
		})
	}
}

func (d *Responder) handleInbound(data []byte, ifIndex int, src net.Addr, now int64) {
	parsed, err := mpacket.Decode(data, now)
	if err != nil {
		return
	}

	if d.OnConflict != nil {
		for _, c := range d.repo.GetConflictingServices(parsed) {
			d.OnConflict(c)
		}
	}

	if parsed.Response {
		return
	}
	srcUDP, ok := src.(*net.UDPAddr)
	if !ok {
		return
	}
	reply := d.repo.GetReply(parsed, srcUDP, now)
	if reply == nil {
		return
	}
	d.sendReply(reply, ifIndex)
}

func (d *Responder) send(pkt *mpacket.Packet) {
	buf, err := pkt.Encode()
	if err != nil {
		d.log.Debugw("failed to encode packet", "error", err)
		return
	}
	d.conn.Multicast(buf)
}

func (d *Responder) sendReply(reply *repo.Reply, ifIndex int) {
	pkt := &mpacket.Packet{Response: true, Authoritative: true}
	pkt.Answers = reply.Answers
	pkt.Additional = reply.Additional
	buf, err := pkt.Encode()
	if err != nil {
		d.log.Debugw("failed to encode reply", "error", err)
		return
	}
	if reply.Destination != nil {
		if err := d.conn.Unicast(buf, ifIndex, reply.Destination); err != nil {
			d.log.Debugw("failed to send unicast reply", "error", err)
		}
		return
	}
	d.conn.Multicast(buf)
}

func (d *Responder) pollAddresses() {
	defer d.wg.Done()
	poll := func() {
		addrs := d.addr.Addresses()
		if p, ok := d.addr.(interface{ Poll() ([]net.IP, bool) }); ok {
			addrs, _ = p.Poll()
		}
		d.submit(func(now int64) {
			d.repo.UpdateAddresses(addrs)
		})
	}
	poll()
	t := time.NewTicker(d.opts.addressPollPeriod)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			poll()
		case <-d.done:
			return
		}
	}
}
