// Package discovery finds a sandbox rollup on the local network over mDNS.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/setavenger/zkwizard/internal/logging"
)

const (
	ServiceType = "_zkwizard._tcp"
	Domain      = "local."
)

var ErrNotFound = errors.New("no sandbox found on the local network")

// Advertiser announces a running sandbox.
type Advertiser struct {
	server *zeroconf.Server
}

// Advertise registers the sandbox listening on port under name.
func Advertise(name string, port int, txt ...string) (*Advertiser, error) {
	server, err := zeroconf.Register(name, ServiceType, Domain, port, append([]string{"api=/api"}, txt...), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register service: %w", err)
	}
	logging.L.Info().Str("name", name).Int("port", port).Msg("advertising sandbox")
	return &Advertiser{server: server}, nil
}

func (a *Advertiser) Shutdown() {
	if a.server != nil {
		a.server.Shutdown()
	}
}

// Browse waits up to timeout for a sandbox announcement and returns its
// base url.
func Browse(ctx context.Context, timeout time.Duration) (string, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create resolver: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 8)
	if err := resolver.Browse(ctx, ServiceType, Domain, entries); err != nil {
		return "", fmt.Errorf("failed to browse: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return "", ErrNotFound
		case entry, ok := <-entries:
			if !ok {
				return "", ErrNotFound
			}
			if u := entryURL(entry); u != "" {
				logging.L.Info().Str("instance", entry.Instance).Str("url", u).Msg("found sandbox")
				return u, nil
			}
		}
	}
}

func entryURL(entry *zeroconf.ServiceEntry) string {
	if entry == nil || entry.Port == 0 {
		return ""
	}
	var host string
	switch {
	case len(entry.AddrIPv4) > 0:
		host = entry.AddrIPv4[0].String()
	case len(entry.AddrIPv6) > 0:
		host = entry.AddrIPv6[0].String()
	default:
		return ""
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(entry.Port))
}
