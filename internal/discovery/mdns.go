// Package discovery advertises relays on the local network over mDNS and
// finds them again from clients.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

const (
	ServiceType = "_inkdrift._tcp"

	DefaultBrowseTimeout = 2 * time.Second
)

// Relay is a relay found on the network.
type Relay struct {
	Instance string
	Host     string
	Addr     string
	// Info holds the key=value pairs of the TXT record.
	Info map[string]string
}

// URL returns the websocket URL of roomID on the relay.
func (r Relay) URL(roomID string) string {
	path := r.Info["path"]
	if path == "" {
		path = "/ws/"
	}
	return "ws://" + r.Addr + strings.TrimSuffix(path, "/") + "/" + roomID
}

type AdvertiseOptions struct {
	// Instance defaults to the hostname.
	Instance string
	Port     int
	// IPs to announce. Empty means the addresses of the hostname.
	IPs  []net.IP
	Info map[string]string
}

func (o AdvertiseOptions) service() (*mdns.MDNSService, error) {
	instance := o.Instance
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("get hostname: %w", err)
		}
		instance = host
	}

	txt := make([]string, 0, len(o.Info))
	for k, v := range o.Info {
		txt = append(txt, k+"="+v)
	}

	svc, err := mdns.NewMDNSService(instance, ServiceType, "", "", o.Port, o.IPs, txt)
	if err != nil {
		return nil, fmt.Errorf("create mdns service: %w", err)
	}
	return svc, nil
}

// Advertise announces the relay until the returned server is shut down.
func Advertise(opts AdvertiseOptions) (*mdns.Server, error) {
	svc, err := opts.service()
	if err != nil {
		return nil, err
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: svc})
	if err != nil {
		return nil, fmt.Errorf("start mdns server: %w", err)
	}
	return server, nil
}

// Browse collects the relays that answer before the timeout or ctx's
// deadline, whichever comes first.
func Browse(ctx context.Context, timeout time.Duration) ([]Relay, error) {
	if timeout <= 0 {
		timeout = DefaultBrowseTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}

	entries := make(chan *mdns.ServiceEntry, 16)
	done := make(chan []Relay, 1)
	go func() {
		seen := make(map[string]bool)
		var relays []Relay
		for e := range entries {
			r, ok := relayFromEntry(e)
			if !ok || seen[r.Addr] {
				continue
			}
			seen[r.Addr] = true
			relays = append(relays, r)
		}
		done <- relays
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	err := mdns.Query(params)
	close(entries)
	relays := <-done
	if err != nil {
		return relays, fmt.Errorf("mdns query: %w", err)
	}
	slog.Debug("mdns browse finished", "relays", len(relays))
	return relays, nil
}

func relayFromEntry(e *mdns.ServiceEntry) (Relay, bool) {
	if e == nil || e.Port == 0 || !strings.Contains(e.Name, ServiceType) {
		return Relay{}, false
	}
	var ip net.IP
	switch {
	case e.AddrV4 != nil:
		ip = e.AddrV4
	case e.AddrV6 != nil:
		ip = e.AddrV6
	default:
		return Relay{}, false
	}
	return Relay{
		Instance: strings.TrimSuffix(e.Name, "."+ServiceType+".local."),
		Host:     e.Host,
		Addr:     net.JoinHostPort(ip.String(), strconv.Itoa(e.Port)),
		Info:     parseInfo(e.InfoFields),
	}, true
}

func parseInfo(fields []string) map[string]string {
	info := make(map[string]string, len(fields))
	for _, f := range fields {
		k, v, _ := strings.Cut(f, "=")
		if k != "" {
			info[k] = v
		}
	}
	return info
}
