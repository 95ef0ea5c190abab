package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func newEntry(instance, host string, port int, v4, v6 []net.IP, txt ...string) *zeroconf.ServiceEntry {
	e := zeroconf.NewServiceEntry(instance, ServiceType, ServiceDomain)
	e.HostName = host
	e.Port = port
	e.AddrIPv4 = v4
	e.AddrIPv6 = v6
	e.Text = txt
	return e
}

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantNil  bool
		wantIP   string
		wantPort int
	}{
		{
			name:     "bridge with IPv4",
			entry:    newEntry("studio", "studio.local.", 7531, []net.IP{net.ParseIP("192.168.4.16")}, nil, "path=/sysex"),
			wantIP:   "192.168.4.16",
			wantPort: 7531,
		},
		{
			name:     "no port specified (should default)",
			entry:    newEntry("studio", "studio.local.", 0, []net.IP{net.ParseIP("10.0.0.5")}, nil),
			wantIP:   "10.0.0.5",
			wantPort: DefaultPort,
		},
		{
			name:    "no IP address",
			entry:   newEntry("studio", "studio.local.", 7531, nil, nil),
			wantNil: true,
		},
		{
			name:    "no instance name",
			entry:   newEntry("", "studio.local.", 7531, []net.IP{net.ParseIP("10.0.0.5")}, nil),
			wantNil: true,
		},
		{
			name:     "IPv6 only bridge",
			entry:    newEntry("rack", "rack.local.", 7531, nil, []net.IP{net.ParseIP("fe80::1")}),
			wantIP:   "fe80::1",
			wantPort: 7531,
		},
		{
			name:     "both IPv4 and IPv6 (should prefer IPv4)",
			entry:    newEntry("rack", "rack.local.", 7531, []net.IP{net.ParseIP("192.168.1.50")}, []net.IP{net.ParseIP("fe80::2")}),
			wantIP:   "192.168.1.50",
			wantPort: 7531,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bridge := parseServiceEntry(tt.entry)

			if tt.wantNil {
				if bridge != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", bridge)
				}
				return
			}
			if bridge == nil {
				t.Fatal("parseServiceEntry() = nil, want non-nil bridge")
			}
			if bridge.IP != tt.wantIP {
				t.Errorf("bridge.IP = %v, want %v", bridge.IP, tt.wantIP)
			}
			if bridge.Port != tt.wantPort {
				t.Errorf("bridge.Port = %v, want %v", bridge.Port, tt.wantPort)
			}
			if bridge.Instance != tt.entry.Instance {
				t.Errorf("bridge.Instance = %v, want %v", bridge.Instance, tt.entry.Instance)
			}
			if time.Since(bridge.DiscoveredAt) > time.Second {
				t.Errorf("bridge.DiscoveredAt is not recent: %v", bridge.DiscoveredAt)
			}
		})
	}

	if parseServiceEntry(nil) != nil {
		t.Error("parseServiceEntry(nil) should be nil")
	}
}

func TestParseServiceEntry_Metadata(t *testing.T) {
	entry := newEntry("studio", "studio.local.", 7531, []net.IP{net.ParseIP("192.168.4.16")}, nil,
		"path=/sysex", "port=/dev/ttyUSB0", "flag", "version=1.0")

	bridge := parseServiceEntry(entry)
	if bridge == nil {
		t.Fatal("parseServiceEntry() = nil, want bridge")
	}

	expected := map[string]string{
		"path":    "/sysex",
		"port":    "/dev/ttyUSB0",
		"flag":    "", // Key without value
		"version": "1.0",
	}
	if len(bridge.Metadata) != len(expected) {
		t.Errorf("bridge.Metadata has %d entries, want %d", len(bridge.Metadata), len(expected))
	}
	for key, want := range expected {
		if got, ok := bridge.Metadata[key]; !ok {
			t.Errorf("bridge.Metadata missing key %q", key)
		} else if got != want {
			t.Errorf("bridge.Metadata[%q] = %q, want %q", key, got, want)
		}
	}
}

func TestNewScanner(t *testing.T) {
	scanner := NewScanner()
	if scanner.Timeout != DefaultScanTimeout {
		t.Errorf("scanner.Timeout = %v, want %v", scanner.Timeout, DefaultScanTimeout)
	}
}

// Live mDNS browsing and registration need multicast on the test host and
// are exercised through cmd/midiboot-bridge.
