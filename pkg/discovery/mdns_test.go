package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_StartStop(t *testing.T) {
	// mDNS needs multicast, which CI sandboxes often lack.
	if testing.Short() {
		t.Skip("Skipping mDNS test in short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mdnsAdapter := &MDNSAdapter{}
	serviceInfo := ServiceInfo{
		Name:   "test-relay",
		Type:   "_test-relay._tcp",
		Domain: DefaultDomain,
		Port:   8765,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- mdnsAdapter.Announce(ctx, serviceInfo)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Logf("announce unavailable here: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Service announcement did not complete in time")
	}
}

func TestSignalURL(t *testing.T) {
	tests := []struct {
		name string
		info ServiceInfo
		want string
	}{
		{"ipv4 default path", ServiceInfo{Addr: net.ParseIP("192.168.1.7"), Port: 8765}, "ws://192.168.1.7:8765/ws"},
		{"custom path", ServiceInfo{Addr: net.ParseIP("10.0.0.2"), Port: 80, Path: "/signal"}, "ws://10.0.0.2:80/signal"},
		{"ipv6", ServiceInfo{Addr: net.ParseIP("fd00::1"), Port: 8765}, "ws://[fd00::1]:8765/ws"},
		{"no address", ServiceInfo{Port: 9000}, "ws://localhost:9000/ws"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.info.SignalURL())
		})
	}
}

func TestPickAddr(t *testing.T) {
	v6 := net.ParseIP("fe80::1")
	v4 := net.ParseIP("192.168.1.9")
	assert.Equal(t, v4, pickAddr([]net.IP{v6, v4}))
	assert.Equal(t, v6, pickAddr([]net.IP{v6}))
	assert.Nil(t, pickAddr(nil))
}

type fakeAdapter struct {
	results []DiscoveryResult
	query   string
}

func (f *fakeAdapter) Announce(context.Context, ServiceInfo) error { return nil }

func (f *fakeAdapter) Discover(ctx context.Context, service string) <-chan DiscoveryResult {
	f.query = service
	out := make(chan DiscoveryResult, len(f.results))
	for _, r := range f.results {
		out <- r
	}
	close(out)
	return out
}

func TestFirstRelay(t *testing.T) {
	relay := ServiceInfo{Name: "relay", Addr: net.ParseIP("192.168.1.7"), Port: 8765}
	adapter := &fakeAdapter{results: []DiscoveryResult{
		{Services: []ServiceInfo{{Name: "no-addr"}}},
		{Services: []ServiceInfo{relay}},
	}}

	got, err := FirstRelay(context.Background(), adapter, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "relay", got.Name)
	assert.Equal(t, "_intrusion-relay._tcp.local.", adapter.query)
}

func TestFirstRelayNoneFound(t *testing.T) {
	_, err := FirstRelay(context.Background(), &fakeAdapter{}, time.Second)
	assert.ErrorIs(t, err, ErrNoRelay)

	boom := errors.New("boom")
	_, err = FirstRelay(context.Background(), &fakeAdapter{results: []DiscoveryResult{{Error: boom}}}, time.Second)
	assert.ErrorIs(t, err, boom)
}
