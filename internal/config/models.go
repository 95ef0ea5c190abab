package config

import (
	"time"

	"github.com/dcontrol/midiboot/internal/devident"
)

// Registry represents the entire user configuration file.
// This stores per-port device records and application preferences.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by MIDI port name
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Device represents what we remember about the device on one MIDI port.
type Device struct {
	Nickname    string       `yaml:"nickname,omitempty"`     // User-friendly name
	Blind       *bool        `yaml:"blind,omitempty"`        // Blind mode override; nil means use the catalog
	Ident       *IdentRecord `yaml:"ident,omitempty"`        // Last application identity
	BootVersion string       `yaml:"boot_version,omitempty"` // Last boot code version seen
	LastSeen    time.Time    `yaml:"last_seen,omitempty"`    // Last successful identify
	LastFlash   *FlashRecord `yaml:"last_flash,omitempty"`   // Last completed firmware update
	Banks       []string     `yaml:"banks,omitempty"`        // Last bank table, one line per bank
}

// IdentRecord is the stored form of a device identity.
type IdentRecord struct {
	Manufacturer uint32 `yaml:"manufacturer"`
	Family       uint16 `yaml:"family"`
	Product      uint16 `yaml:"product"`
	FwVersion    string `yaml:"fw_version"`
}

// FlashRecord describes a completed firmware update.
type FlashRecord struct {
	Image  string    `yaml:"image"`
	Blocks int       `yaml:"blocks"`
	At     time.Time `yaml:"at"`
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	DefaultPort     string `yaml:"default_port,omitempty"` // Serial device path or bridge URL
	BaudRate        int    `yaml:"baud_rate"`              // Serial MIDI baud rate
	ThrottleMs      int    `yaml:"throttle_ms"`            // Minimum gap between paced messages
	LogLevel        string `yaml:"log_level,omitempty"`    // Default log level when the env var is unset
	DiscoverTimeout int    `yaml:"discover_timeout"`       // mDNS bridge discovery timeout in seconds
}

func defaultPreferences() *Preferences {
	return &Preferences{
		BaudRate:        31250,
		ThrottleMs:      20,
		DiscoverTimeout: 5,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Devices:     make(map[string]*Device),
		Preferences: defaultPreferences(),
	}
}

// GetDevice retrieves the record for a port.
// Returns nil if the port has no record.
func (r *Registry) GetDevice(port string) *Device {
	return r.Devices[port]
}

// EnsureDevice returns the record for a port, creating it if needed.
func (r *Registry) EnsureDevice(port string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}

	if device, exists := r.Devices[port]; exists {
		return device
	}

	device := &Device{}
	r.Devices[port] = device
	return device
}

// RecordIdentity stores the application identity seen on port.
func (r *Registry) RecordIdentity(port string, id *devident.Ident) {
	if id == nil {
		return
	}
	device := r.EnsureDevice(port)
	device.Ident = &IdentRecord{
		Manufacturer: id.Manufacturer,
		Family:       id.Family,
		Product:      id.Product,
		FwVersion:    id.FwVersion,
	}
	device.LastSeen = time.Now()
}

// RecordBootInfo stores the boot code version and bank table seen on port.
func (r *Registry) RecordBootInfo(port, bootVersion string, banks []string) {
	device := r.EnsureDevice(port)
	if bootVersion != "" {
		device.BootVersion = bootVersion
	}
	device.Banks = banks
}

// RecordFlash stores a completed firmware update.
func (r *Registry) RecordFlash(port, image string, blocks int) {
	device := r.EnsureDevice(port)
	device.LastFlash = &FlashRecord{Image: image, Blocks: blocks, At: time.Now()}
}

// SetDeviceNickname sets a user-friendly nickname for a device.
func (r *Registry) SetDeviceNickname(port, nickname string) {
	device := r.EnsureDevice(port)
	device.Nickname = nickname
}

// SetBlindMode pins blind mode on or off for a port.
func (r *Registry) SetBlindMode(port string, blind bool) {
	device := r.EnsureDevice(port)
	device.Blind = &blind
}

// Hints returns session hints for port from its record. base supplies
// catalog defaults and may be nil. A stored identity fills in only when
// base has none; a stored blind override always wins.
func (r *Registry) Hints(port string, base *devident.Details) *devident.Details {
	d := &devident.Details{}
	if base != nil {
		*d = *base
	}
	device := r.GetDevice(port)
	if device == nil {
		return d
	}
	if d.IsEmpty() && device.Ident != nil {
		d.Manufacturer = device.Ident.Manufacturer
		d.Family = device.Ident.Family
		d.Product = device.Ident.Product
		d.FwVersion = device.Ident.FwVersion
	}
	if d.Name == "" {
		d.Name = device.Nickname
	}
	if device.Blind != nil {
		d.CrippledIO = *device.Blind
	}
	return d
}
