package catalog

import (
	"testing"

	"github.com/dcontrol/midiboot/internal/devident"
)

func TestLoad(t *testing.T) {
	cat, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cat.Products) == 0 {
		t.Fatal("Load() returned no products")
	}
	again, _ := Load()
	if again != cat {
		t.Error("Load() should return the same catalog on every call")
	}

	p, ok := cat.Product(0x12, 0x07)
	if !ok {
		t.Fatal("Product(0x12, 0x07) not found")
	}
	if p.PID() != 0x1207 {
		t.Errorf("PID() = %04X, want 1207", p.PID())
	}
	if p.String() != "DC-1207 [1207] (verified)" {
		t.Errorf("String() = %q", p.String())
	}
}

func TestInterface(t *testing.T) {
	cat, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		port     string
		found    bool
		crippled bool
	}{
		{port: "USB MIDI Cable MIDI 1", found: true, crippled: true},
		{port: "usb midi cable", found: true, crippled: true},
		{port: "midiboot-emulator", found: true, crippled: false},
		{port: "/dev/ttyUSB0", found: false},
	}
	for _, tt := range tests {
		t.Run(tt.port, func(t *testing.T) {
			iface, ok := cat.Interface(tt.port)
			if ok != tt.found {
				t.Fatalf("Interface(%q) found = %v, want %v", tt.port, ok, tt.found)
			}
			if ok && iface.CrippledIO != tt.crippled {
				t.Errorf("CrippledIO = %v, want %v", iface.CrippledIO, tt.crippled)
			}
		})
	}
}

func TestHints(t *testing.T) {
	cat, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	d := cat.Hints("USB MIDI Cable", nil)
	if !d.CrippledIO || !d.IsEmpty() {
		t.Errorf("Hints(cable, nil) = %+v, want crippled with no identity", d)
	}

	id := &devident.Ident{Manufacturer: devident.ManufacturerDamageControl, Family: 0x12, Product: 0x07, FwVersion: "1.23"}
	d = cat.Hints("/dev/ttyUSB0", id)
	if d.CrippledIO || d.Name != "DC-1207" || d.FwVersion != "1.23" {
		t.Errorf("Hints(tty, id) = %+v", d)
	}
}

func TestParseRejectsDuplicates(t *testing.T) {
	data := []byte(`
products:
  - {family: 0x12, product: 0x07, name: a}
  - {family: 0x12, product: 0x07, name: b}
`)
	if _, err := Parse(data); err == nil {
		t.Error("Parse() accepted duplicate products")
	}
	if _, err := Parse([]byte("products: [")); err == nil {
		t.Error("Parse() accepted invalid YAML")
	}
}
