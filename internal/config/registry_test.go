package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/dcontrol/midiboot/internal/devident"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if !strings.Contains(configDir, "midiboot") {
		t.Errorf("GetConfigDir() = %v, should contain 'midiboot'", configDir)
	}

	switch runtime.GOOS {
	case "windows":
		if !strings.Contains(configDir, "AppData") && !strings.Contains(configDir, "Local") {
			t.Errorf("Windows config dir should contain 'AppData' or 'Local', got: %v", configDir)
		}
	case "darwin":
		if !strings.Contains(configDir, ".config") {
			t.Errorf("macOS config dir should contain '.config', got: %v", configDir)
		}
	}
}

func TestGetConfigDirXDG(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("XDG_CONFIG_HOME only applies on Unix-like systems")
	}
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if configDir != filepath.Join("/tmp/xdg", "midiboot") {
		t.Errorf("GetConfigDir() = %v, want /tmp/xdg/midiboot", configDir)
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}

	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}
	if reg.Devices == nil {
		t.Error("NewRegistry().Devices should not be nil")
	}
	if reg.Preferences == nil {
		t.Fatal("NewRegistry().Preferences should not be nil")
	}
	if reg.Preferences.BaudRate != 31250 {
		t.Errorf("BaudRate = %v, want 31250", reg.Preferences.BaudRate)
	}
	if reg.Preferences.ThrottleMs != 20 {
		t.Errorf("ThrottleMs = %v, want 20", reg.Preferences.ThrottleMs)
	}
}

func TestRegistryEnsureDevice(t *testing.T) {
	reg := NewRegistry()

	device1 := reg.EnsureDevice("/dev/ttyUSB0")
	if device1 == nil {
		t.Fatal("EnsureDevice() returned nil")
	}

	device2 := reg.EnsureDevice("/dev/ttyUSB0")
	if device1 != device2 {
		t.Error("EnsureDevice() should return same instance for same port")
	}

	device3 := reg.EnsureDevice("/dev/ttyUSB1")
	if device1 == device3 {
		t.Error("EnsureDevice() should create new instance for different port")
	}
}

func TestRegistryRecordIdentity(t *testing.T) {
	reg := NewRegistry()

	before := time.Now()
	reg.RecordIdentity("/dev/ttyUSB0", &devident.Ident{
		Manufacturer: devident.ManufacturerDamageControl,
		Family:       0x12,
		Product:      0x07,
		FwVersion:    "1.23",
	})
	after := time.Now()

	device := reg.GetDevice("/dev/ttyUSB0")
	if device == nil || device.Ident == nil {
		t.Fatal("Device identity should exist after RecordIdentity()")
	}
	if device.Ident.FwVersion != "1.23" || device.Ident.Family != 0x12 {
		t.Errorf("Ident = %+v", device.Ident)
	}
	if device.LastSeen.Before(before) || device.LastSeen.After(after) {
		t.Errorf("LastSeen = %v, should be between %v and %v", device.LastSeen, before, after)
	}

	reg.RecordIdentity("/dev/ttyUSB1", nil)
	if reg.GetDevice("/dev/ttyUSB1") != nil {
		t.Error("RecordIdentity(nil) should not create a record")
	}
}

func TestRegistryHints(t *testing.T) {
	reg := NewRegistry()
	reg.RecordIdentity("cable", &devident.Ident{Family: 0x12, Product: 0x07, FwVersion: "1.23"})
	reg.SetDeviceNickname("cable", "Studio rack")

	tests := []struct {
		name         string
		port         string
		base         *devident.Details
		pinBlind     *bool
		wantCrippled bool
		wantName     string
		wantFw       string
	}{
		{name: "unknown port keeps base", port: "other", base: &devident.Details{CrippledIO: true}, wantCrippled: true},
		{name: "stored identity fills in", port: "cable", wantName: "Studio rack", wantFw: "1.23"},
		{name: "base identity wins", port: "cable", base: &devident.Details{Ident: devident.Ident{FwVersion: "2.00"}, Name: "DC-1207"}, wantName: "DC-1207", wantFw: "2.00"},
		{name: "pinned blind overrides catalog", port: "cable", base: &devident.Details{CrippledIO: true}, pinBlind: boolPtr(false), wantName: "Studio rack", wantFw: "1.23"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.pinBlind != nil {
				reg.SetBlindMode(tt.port, *tt.pinBlind)
				defer func() { reg.GetDevice(tt.port).Blind = nil }()
			}
			d := reg.Hints(tt.port, tt.base)
			if d.CrippledIO != tt.wantCrippled {
				t.Errorf("CrippledIO = %v, want %v", d.CrippledIO, tt.wantCrippled)
			}
			if d.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", d.Name, tt.wantName)
			}
			if d.FwVersion != tt.wantFw {
				t.Errorf("FwVersion = %q, want %q", d.FwVersion, tt.wantFw)
			}
		})
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	reg := NewRegistry()
	reg.SetDeviceNickname("/dev/ttyUSB0", "Test Device")
	reg.SetBlindMode("/dev/ttyUSB0", true)
	reg.RecordBootInfo("/dev/ttyUSB0", "0.98", []string{"v1.23, 0x1a2b4, ACTIVE", "INVALID"})
	reg.RecordFlash("/dev/ttyUSB0", "update.syx", 42)
	reg.Preferences.DefaultPort = "/dev/ttyUSB0"

	if err := reg.SaveFile(path); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	device := loaded.GetDevice("/dev/ttyUSB0")
	if device == nil {
		t.Fatal("Device should exist in loaded registry")
	}
	if device.Nickname != "Test Device" {
		t.Errorf("Loaded nickname = %v, want 'Test Device'", device.Nickname)
	}
	if device.Blind == nil || !*device.Blind {
		t.Errorf("Loaded blind = %v, want true", device.Blind)
	}
	if device.BootVersion != "0.98" || len(device.Banks) != 2 {
		t.Errorf("Loaded boot info = %q %v", device.BootVersion, device.Banks)
	}
	if device.LastFlash == nil || device.LastFlash.Blocks != 42 {
		t.Errorf("Loaded flash record = %+v", device.LastFlash)
	}
	if loaded.Preferences.DefaultPort != "/dev/ttyUSB0" {
		t.Errorf("Loaded default port = %q", loaded.Preferences.DefaultPort)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	reg, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFile(missing) error = %v", err)
	}
	if reg.Version != 1 {
		t.Errorf("LoadFile(missing) should return defaults, got version %d", reg.Version)
	}

	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "minimal", content: "version: 1\n"},
		{name: "wrong version", content: "version: 2\n", wantErr: true},
		{name: "invalid yaml", content: "version: [\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			reg, err := LoadFile(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadFile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && (reg.Devices == nil || reg.Preferences == nil) {
				t.Error("LoadFile() should initialise Devices and Preferences")
			}
		})
	}
}

func boolPtr(b bool) *bool { return &b }

func BenchmarkEnsureDevice(b *testing.B) {
	reg := NewRegistry()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.EnsureDevice("/dev/ttyUSB0")
	}
}
