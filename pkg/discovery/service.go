package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	// RelayServiceType is announced by the LAN signaling relay.
	RelayServiceType = "_intrusion-relay._tcp"
	DefaultDomain    = "local"
	DefaultPath      = "/ws"
)

var ErrNoRelay = errors.New("no signaling relay found on the local network")

type ServiceInfo struct {
	Name   string // instance name
	Type   string // service type, e.g. "_intrusion-relay._tcp"
	Domain string // domain, e.g. "local"
	Addr   net.IP
	Port   int
	Path   string // websocket path, from the "path" TXT record
}

// SignalURL returns the websocket URL of the relay.
func (s ServiceInfo) SignalURL() string {
	path := s.Path
	if path == "" {
		path = DefaultPath
	}
	host := "localhost"
	if s.Addr != nil {
		host = s.Addr.String()
	}
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(host, strconv.Itoa(s.Port)), path)
}

// DiscoveryResult carries either a snapshot of the known services or an error.
type DiscoveryResult struct {
	Services []ServiceInfo
	Error    error
}

type Adapter interface {
	Announce(ctx context.Context, service ServiceInfo) error
	Discover(ctx context.Context, service string) <-chan DiscoveryResult
}

// QueryName is the browse name for a service type in a domain.
func QueryName(serviceType, domain string) string {
	return fmt.Sprintf("%s.%s.", serviceType, domain)
}

// FirstRelay browses for relays and returns the first one seen within timeout.
func FirstRelay(ctx context.Context, adapter Adapter, timeout time.Duration) (ServiceInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := adapter.Discover(ctx, QueryName(RelayServiceType, DefaultDomain))
	for {
		select {
		case <-ctx.Done():
			return ServiceInfo{}, ErrNoRelay
		case res, ok := <-results:
			if !ok {
				return ServiceInfo{}, ErrNoRelay
			}
			if res.Error != nil {
				return ServiceInfo{}, res.Error
			}
			for _, s := range res.Services {
				if s.Addr != nil {
					return s, nil
				}
			}
		}
	}
}
