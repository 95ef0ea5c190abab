package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Bridge represents a discovered MIDI bridge on the network
type Bridge struct {
	// Instance is the mDNS instance name (e.g., "studio-pc")
	Instance string

	// Hostname is the mDNS hostname (e.g., "studio-pc.local.")
	Hostname string

	// IP is the address to connect to, IPv4 when available
	IP string

	// Port is the websocket port
	Port int

	// Metadata contains the TXT record data.
	// Common fields: "path=/sysex", "port=/dev/ttyUSB0", "version=1.0.0"
	Metadata map[string]string

	// DiscoveredAt is when the bridge was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the bridge
func (b *Bridge) String() string {
	if midiPort := b.MIDIPort(); midiPort != "" {
		return fmt.Sprintf("Bridge %s (%s) at %s serving %s", b.Instance, b.Hostname, b.Address(), midiPort)
	}
	return fmt.Sprintf("Bridge %s (%s) at %s", b.Instance, b.Hostname, b.Address())
}

// Address returns host:port, bracketing IPv6 addresses.
func (b *Bridge) Address() string {
	return net.JoinHostPort(b.IP, strconv.Itoa(b.Port))
}

// URL returns the websocket URL of the bridge
func (b *Bridge) URL() string {
	path := b.GetMetadata(TxtPath)
	if path == "" {
		path = DefaultPath
	}
	return "ws://" + b.Address() + path
}

// MIDIPort returns the name of the MIDI port the bridge serves, if advertised
func (b *Bridge) MIDIPort() string {
	return b.GetMetadata(TxtMIDIPort)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (b *Bridge) GetMetadata(key string) string {
	if b.Metadata == nil {
		return ""
	}
	return b.Metadata[key]
}
