// Command mdnsd registers a single mDNS service and keeps it alive until
// interrupted, the spiritual descendant of the teacher's
// examples/register/server.go — restructured around urfave/cli/v2
// instead of the bare flag package, and around this repository's own
// repo/registry/responder stack instead of calling the upstream
// zeroconf library it forked from.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kdanielm/mdnscore/hostid"
	"github.com/kdanielm/mdnscore/netaddr"
	"github.com/kdanielm/mdnscore/record"
	"github.com/kdanielm/mdnscore/registry"
	"github.com/kdanielm/mdnscore/repo"
	"github.com/kdanielm/mdnscore/responder"
	"github.com/kdanielm/mdnscore/transport"
)

func main() {
	app := &cli.App{
		Name:  "mdnsd",
		Usage: "advertise a service over mDNS until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Value: "GoMdnsGo", Usage: "service instance name"},
			&cli.StringFlag{Name: "service", Value: "_workstation._tcp", Usage: "service type, e.g. _http._tcp; may carry a comma-separated subtype list"},
			&cli.StringFlag{Name: "domain", Value: "local", Usage: "mDNS domain suffix"},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "service port"},
			&cli.StringSliceFlag{Name: "txt", Usage: "TXT record entry in key=value form, may repeat"},
			&cli.DurationFlag{Name: "wait", Value: 0, Usage: "shut down after this long; 0 runs until interrupted"},
			&cli.BoolFlag{Name: "unicast-reply", Value: true, Usage: "honor the unicast-preferred question bit"},
			&cli.BoolFlag{Name: "known-answer-suppression", Value: true, Usage: "enable RFC 6762 §7.1 known-answer suppression"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("mdnsd: failed to build logger: %w", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	addrPoller := &netaddr.Poller{}
	addrPoller.Poll()

	r := repo.New(repo.Options{
		DefaultHostLabel:       hostid.DefaultHostLabel(),
		Domain:                 c.String("domain"),
		IncludeHostInProbing:   true,
		KnownAnswerSuppression: c.Bool("known-answer-suppression"),
		UnicastReply:           c.Bool("unicast-reply"),
	})
	r.UpdateAddresses(addrPoller.Addresses())

	conn, err := transport.Listen(multicastInterfaces(), sugar)
	if err != nil {
		return fmt.Errorf("mdnsd: %w", err)
	}

	resp := responder.New(r, conn, addrPoller, sugar)
	resp.OnConflict = func(conflict repo.Conflict) {
		sugar.Warnw("conflict detected", "service_id", conflict.ServiceID, "kind", conflict.Kind.String())
	}
	resp.Start()
	defer resp.Shutdown()

	info := registry.ServiceInfo{
		InstanceName: c.String("name"),
		ServiceType:  c.String("service"),
		Port:         c.Int("port"),
		TXT:          parseTXT(c.StringSlice("txt")),
	}
	const serviceID = 1
	if err := resp.Register(serviceID, info, 0); err != nil {
		return fmt.Errorf("mdnsd: failed to register service: %w", err)
	}
	sugar.Infow("registered service",
		"name", info.InstanceName,
		"type", info.ServiceType,
		"domain", c.String("domain"),
		"port", info.Port,
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	var timeout <-chan time.Time
	if wait := c.Duration("wait"); wait > 0 {
		timeout = time.After(wait)
	}

	select {
	case <-sig:
		sugar.Info("shutting down on signal")
	case <-timeout:
		sugar.Info("shutting down after wait duration")
	}
	resp.Unregister(serviceID)
	return nil
}

func multicastInterfaces() []net.Interface {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	var out []net.Interface
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagMulticast == 0 || ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		out = append(out, ifi)
	}
	return out
}

func parseTXT(entries []string) []record.TXTEntry {
	out := make([]record.TXTEntry, 0, len(entries))
	for _, e := range entries {
		kv := strings.SplitN(e, "=", 2)
		if len(kv) == 2 {
			out = append(out, record.TXTEntry{Key: kv[0], Value: []byte(kv[1])})
		} else {
			out = append(out, record.TXTEntry{Key: kv[0]})
		}
	}
	return out
}
