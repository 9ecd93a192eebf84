// Package discovery locates ontime instances on the local network via
// mDNS, for deployments where the device address is not configured.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/grandcat/zeroconf"
)

const serviceType = "_ontime._tcp"

// ErrNotFound is returned when no instance announced itself within the
// timeout.
var ErrNotFound = errors.New("no ontime instance found on the local network")

// Instance is a discovered ontime server.
type Instance struct {
	Name string
	Host string
	Port int
}

// Browse waits up to timeout for the first ontime instance to announce
// itself on the local network.
func Browse(ctx context.Context, timeout time.Duration) (Instance, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return Instance{}, fmt.Errorf("failed to initialize mDNS resolver: %w", err)
	}

	browseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan Instance, 1)

	go func() {
		for entry := range entries {
			if entry == nil || len(entry.AddrIPv4) == 0 {
				continue
			}
			inst := Instance{
				Name: entry.Instance,
				Host: entry.AddrIPv4[0].String(),
				Port: entry.Port,
			}
			slog.Info("discovery.instance_found",
				"component", "discovery",
				"event", "browse.found",
				"name", inst.Name,
				"host", inst.Host,
				"port", inst.Port,
			)
			select {
			case found <- inst:
			default:
			}
			cancel()
			return
		}
	}()

	if err := resolver.Browse(browseCtx, serviceType, "local.", entries); err != nil {
		return Instance{}, fmt.Errorf("mDNS browse failed: %w", err)
	}

	<-browseCtx.Done()
	select {
	case inst := <-found:
		return inst, nil
	default:
		if ctx.Err() != nil {
			return Instance{}, ctx.Err()
		}
		return Instance{}, ErrNotFound
	}
}
