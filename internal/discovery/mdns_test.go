package discovery

import (
	"net"
	"testing"

	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayFromEntry(t *testing.T) {
	tests := []struct {
		name  string
		entry *mdns.ServiceEntry
		addr  string
		ok    bool
	}{
		{
			name: "ipv4",
			entry: &mdns.ServiceEntry{
				Name:       "studio._inkdrift._tcp.local.",
				Host:       "studio.local.",
				AddrV4:     net.IPv4(192, 168, 1, 20),
				Port:       8080,
				InfoFields: []string{"path=/ws/", "version=1"},
			},
			addr: "192.168.1.20:8080",
			ok:   true,
		},
		{
			name:  "ipv6 only",
			entry: &mdns.ServiceEntry{Name: "x._inkdrift._tcp.local.", AddrV6: net.ParseIP("fe80::1"), Port: 9000},
			addr:  "[fe80::1]:9000",
			ok:    true,
		},
		{name: "other service", entry: &mdns.ServiceEntry{Name: "printer._ipp._tcp.local.", AddrV4: net.IPv4(10, 0, 0, 1), Port: 631}},
		{name: "no port", entry: &mdns.ServiceEntry{Name: "x._inkdrift._tcp.local.", AddrV4: net.IPv4(10, 0, 0, 1)}},
		{name: "no address", entry: &mdns.ServiceEntry{Name: "x._inkdrift._tcp.local.", Port: 80}},
		{name: "nil"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := relayFromEntry(tt.entry)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.addr, r.Addr)
			}
		})
	}
}

func TestRelayURL(t *testing.T) {
	r, ok := relayFromEntry(&mdns.ServiceEntry{
		Name:       "studio._inkdrift._tcp.local.",
		AddrV4:     net.IPv4(192, 168, 1, 20),
		Port:       8080,
		InfoFields: []string{"path=/ws/", "version=1", "=junk"},
	})
	require.True(t, ok)
	assert.Equal(t, "studio", r.Instance)
	assert.Equal(t, map[string]string{"path": "/ws/", "version": "1"}, r.Info)
	assert.Equal(t, "ws://192.168.1.20:8080/ws/room_1", r.URL("room_1"))

	r.Info = nil
	assert.Equal(t, "ws://192.168.1.20:8080/ws/room_1", r.URL("room_1"))
}

func TestAdvertiseService(t *testing.T) {
	svc, err := AdvertiseOptions{
		Instance: "studio",
		Port:     8080,
		IPs:      []net.IP{net.IPv4(192, 168, 1, 20)},
		Info:     map[string]string{"path": "/ws/"},
	}.service()
	require.NoError(t, err)
	assert.Equal(t, "studio", svc.Instance)
	assert.Equal(t, ServiceType, svc.Service)
	assert.Equal(t, 8080, svc.Port)
	assert.Equal(t, []string{"path=/ws/"}, svc.TXT)
}
