// Package transport carries mDNS packets over the wire: joining the
// IPv4/IPv6 multicast groups on a set of interfaces, receiving raw
// datagrams, and sending unicast/multicast replies. Adapted from the
// teacher's joinUdp4Multicast/joinUdp6Multicast/recv4/recv6/
// multicastResponse/unicastResponse (server.go, client.go), generalized
// to carry an injected *zap.SugaredLogger instead of bare log.Printf.
package transport

import (
	"net"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const mdnsPort = 5353

// Group addresses per RFC 6762 §3.
var (
	IPv4Group = &net.UDPAddr{IP: net.ParseIP("224.0.0.251"), Port: mdnsPort}
	IPv6Group = &net.UDPAddr{IP: net.ParseIP("ff02::fb"), Port: mdnsPort}
)

// Packet is a raw datagram delivered from the wire, tagged with its
// source address. IfIndex is the arrival interface when the socket
// reports one; Listen does not enable interface control messages, so
// packets read by Recv4/Recv6 carry IfIndex 0.
type Packet struct {
	Data    []byte
	IfIndex int
	Src     net.Addr
}

// Conn is a joined multicast UDP transport for one or both address
// families, depending on which interfaces support which family.
type Conn struct {
	ipv4conn *ipv4.PacketConn
	ipv6conn *ipv6.PacketConn
	ifaces   []net.Interface
	log      *zap.SugaredLogger
}

// Listen joins the mDNS multicast groups on ifaces for whichever address
// families they support. It succeeds as long as at least one family
// joined on at least one interface.
func Listen(ifaces []net.Interface, log *zap.SugaredLogger) (*Conn, error) {
	ipv4conn, err4 := joinUDP4Multicast(ifaces, log)
	if err4 != nil {
		log.Warnw("no usable ipv4 multicast interface", "error", err4)
	}
	ipv6conn, err6 := joinUDP6Multicast(ifaces, log)
	if err6 != nil {
		log.Warnw("no usable ipv6 multicast interface", "error", err6)
	}
	if ipv4conn == nil && ipv6conn == nil {
		return nil, errNoInterface{}
	}
	return &Conn{ipv4conn: ipv4conn, ipv6conn: ipv6conn, ifaces: ifaces, log: log}, nil
}

type errNoInterface struct{}

func (errNoInterface) Error() string { return "transport: no supported multicast interface" }

func joinUDP4Multicast(ifaces []net.Interface, log *zap.SugaredLogger) (*ipv4.PacketConn, error) {
	udpConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: mdnsPort})
	if err != nil {
		return nil, err
	}
	pconn := ipv4.NewPacketConn(udpConn)
	pconn.SetMulticastLoopback(true)

	var joined int
	for _, ifi := range ifaces {
		if err := pconn.JoinGroup(&ifi, IPv4Group); err != nil {
			log.Debugw("failed to join ipv4 group", "iface", ifi.Name, "error", err)
			continue
		}
		joined++
	}
	if joined == 0 {
		udpConn.Close()
		return nil, errNoInterface{}
	}
	return pconn, nil
}

func joinUDP6Multicast(ifaces []net.Interface, log *zap.SugaredLogger) (*ipv6.PacketConn, error) {
	udpConn, err := net.ListenUDP("udp6", &net.UDPAddr{IP: net.IPv6unspecified, Port: mdnsPort})
	if err != nil {
		return nil, err
	}
	pconn := ipv6.NewPacketConn(udpConn)
	pconn.SetMulticastLoopback(true)

	var joined int
	for _, ifi := range ifaces {
		if err := pconn.JoinGroup(&ifi, IPv6Group); err != nil {
			log.Debugw("failed to join ipv6 group", "iface", ifi.Name, "error", err)
			continue
		}
		joined++
	}
	if joined == 0 {
		udpConn.Close()
		return nil, errNoInterface{}
	}
	return pconn, nil
}

// NewNoopConn returns a Conn with neither family joined: HasIPv4/HasIPv6
// report false, and Unicast/Multicast/Close are harmless no-ops. Useful
// for exercising a responder's scheduling and repository-serialization
// logic in tests without binding a real multicast socket.
func NewNoopConn() *Conn {
	return &Conn{}
}

// Close closes both joined connections.
func (c *Conn) Close() {
	if c.ipv4conn != nil {
		c.ipv4conn.Close()
	}
	if c.ipv6conn != nil {
		c.ipv6conn.Close()
	}
}

// Recv4 reads one datagram from the IPv4 socket. Callers loop this in
// their own goroutine; it returns (nil, err) once the connection is
// closed.
func (c *Conn) Recv4(buf []byte) (*Packet, error) {
	n, cm, src, err := c.ipv4conn.ReadFrom(buf)
	if err != nil {
		return nil, err
	}
	ifIndex := 0
	if cm != nil {
		ifIndex = cm.IfIndex
	}
	return &Packet{Data: buf[:n], IfIndex: ifIndex, Src: src}, nil
}

// Recv6 reads one datagram from the IPv6 socket.
func (c *Conn) Recv6(buf []byte) (*Packet, error) {
	n, cm, src, err := c.ipv6conn.ReadFrom(buf)
	if err != nil {
		return nil, err
	}
	ifIndex := 0
	if cm != nil {
		ifIndex = cm.IfIndex
	}
	return &Packet{Data: buf[:n], IfIndex: ifIndex, Src: src}, nil
}

// HasIPv4 reports whether an IPv4 socket was successfully joined.
func (c *Conn) HasIPv4() bool { return c.ipv4conn != nil }

// HasIPv6 reports whether an IPv6 socket was successfully joined.
func (c *Conn) HasIPv6() bool { return c.ipv6conn != nil }

// Unicast sends buf to dst over whichever family matches its address.
func (c *Conn) Unicast(buf []byte, ifIndex int, dst *net.UDPAddr) error {
	if dst.IP.To4() != nil {
		if c.ipv4conn == nil {
			return errNoInterface{}
		}
		var wcm ipv4.ControlMessage
		if ifIndex != 0 {
			wcm.IfIndex = ifIndex
			_, err := c.ipv4conn.WriteTo(buf, &wcm, dst)
			return err
		}
		_, err := c.ipv4conn.WriteTo(buf, nil, dst)
		return err
	}
	if c.ipv6conn == nil {
		return errNoInterface{}
	}
	var wcm ipv6.ControlMessage
	if ifIndex != 0 {
		wcm.IfIndex = ifIndex
		_, err := c.ipv6conn.WriteTo(buf, &wcm, dst)
		return err
	}
	_, err := c.ipv6conn.WriteTo(buf, nil, dst)
	return err
}

// Multicast sends buf to both multicast groups over every joined
// interface, skipping the Windows Teredo pseudo-interface the way the
// teacher's multicastResponse does.
func (c *Conn) Multicast(buf []byte) {
	if c.ipv4conn != nil {
		var wcm ipv4.ControlMessage
		for _, ifi := range c.ifaces {
			if runtime.GOOS == "windows" && ifi.Name == "Teredo Tunneling Pseudo-Interface" {
				continue
			}
			if err := c.ipv4conn.SetMulticastInterface(&ifi); err != nil {
				c.log.Debugw("failed to set ipv4 multicast interface", "iface", ifi.Name, "error", err)
				continue
			}
			if _, err := c.ipv4conn.WriteTo(buf, &wcm, IPv4Group); err != nil {
				c.log.Debugw("failed to send ipv4 multicast reply", "iface", ifi.Name, "error", err)
			}
		}
	}
	if c.ipv6conn != nil {
		var wcm ipv6.ControlMessage
		for _, ifi := range c.ifaces {
			if runtime.GOOS == "windows" && ifi.Name == "Teredo Tunneling Pseudo-Interface" {
				continue
			}
			if err := c.ipv6conn.SetMulticastInterface(&ifi); err != nil {
				c.log.Debugw("failed to set ipv6 multicast interface", "iface", ifi.Name, "error", err)
				continue
			}
			if _, err := c.ipv6conn.WriteTo(buf, &wcm, IPv6Group); err != nil {
				c.log.Debugw("failed to send ipv6 multicast reply", "iface", ifi.Name, "error", err)
			}
		}
	}
}
