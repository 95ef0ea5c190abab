// Package catalog holds the embedded list of known devices and MIDI
// interfaces, used to build identity hints for boot control sessions.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dcontrol/midiboot/internal/devident"
)

//go:embed devices.yaml
var devicesYAML []byte

// Product is a device known to speak the boot protocol.
type Product struct {
	Family      uint16 `yaml:"family"`
	Product     uint16 `yaml:"product"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Verified    bool   `yaml:"verified"`
}

// PID returns the product ID as used by CheckPID.
func (p *Product) PID() int {
	return int(p.Family&0x7F)<<8 | int(p.Product&0x7F)
}

func (p *Product) String() string {
	verified := ""
	if p.Verified {
		verified = " (verified)"
	}
	return fmt.Sprintf("%s [%04X]%s", p.Name, p.PID(), verified)
}

// Interface describes a MIDI interface recognised by port name.
type Interface struct {
	Match      string `yaml:"match"`
	CrippledIO bool   `yaml:"crippled_io"`
	Notes      string `yaml:"notes"`
}

// Catalog is the parsed device list.
type Catalog struct {
	Products   []*Product
	Interfaces []*Interface

	index map[int]*Product
}

type catalogContainer struct {
	Products   []*Product   `yaml:"products"`
	Interfaces []*Interface `yaml:"interfaces"`
}

var (
	global     *Catalog
	globalOnce sync.Once
	globalErr  error
)

// Load returns the embedded catalog, parsing it on first use.
func Load() (*Catalog, error) {
	globalOnce.Do(func() {
		global, globalErr = Parse(devicesYAML)
	})
	return global, globalErr
}

// Parse builds a catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var c catalogContainer
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse device catalog: %w", err)
	}

	cat := &Catalog{
		Products:   c.Products,
		Interfaces: c.Interfaces,
		index:      make(map[int]*Product, len(c.Products)),
	}
	for _, p := range cat.Products {
		if _, dup := cat.index[p.PID()]; dup {
			return nil, fmt.Errorf("device catalog: duplicate product %04X", p.PID())
		}
		cat.index[p.PID()] = p
	}
	return cat, nil
}

// Product looks up a product by family and product code.
func (c *Catalog) Product(family, product uint16) (*Product, bool) {
	p, ok := c.index[int(family&0x7F)<<8|int(product&0x7F)]
	return p, ok
}

// Interface returns the first interface whose match string occurs in the
// port name, ignoring case.
func (c *Catalog) Interface(portName string) (*Interface, bool) {
	name := strings.ToLower(portName)
	for _, i := range c.Interfaces {
		if i.Match != "" && strings.Contains(name, strings.ToLower(i.Match)) {
			return i, true
		}
	}
	return nil, false
}

// Hints builds session hints for a device on portName. id may be nil when
// the device has not been identified yet; the result is then only useful
// for its CrippledIO flag.
func (c *Catalog) Hints(portName string, id *devident.Ident) *devident.Details {
	d := &devident.Details{}
	if iface, ok := c.Interface(portName); ok {
		d.CrippledIO = iface.CrippledIO
	}
	if id != nil {
		d.Ident = *id
		if p, ok := c.Product(id.Family, id.Product); ok {
			d.Name = p.Name
		}
	}
	return d
}
