package emulator

import (
	"fmt"
	"sync"

	"github.com/dcontrol/midiboot/internal/devident"
	"github.com/dcontrol/midiboot/internal/sysex"
)

// Mode is the code the device is running.
type Mode int

const (
	ModeApplication Mode = iota
	ModeBoot
)

func (m Mode) String() string {
	if m == ModeBoot {
		return "boot"
	}
	return "application"
}

// Recovery statuses returned to enable-recovery.
const (
	RecoveryAck      byte = 0x00
	RecoveryRejected byte = 0x01
	RecoveryFailed   byte = 0x02
)

// Fault changes how the device answers the next firmware update block.
type Fault int

const (
	FaultNone Fault = iota
	FaultBadPacket
	FaultFailed
	FaultSilent
	FaultGarbled
)

// Bank is one firmware slot.
type Bank struct {
	Empty   bool
	Version string
	Size    uint32
	Active  bool
}

// Config describes the simulated device.
type Config struct {
	Ident devident.Ident
	// BootVersion is reported by identity replies while in boot code.
	BootVersion string
	// AckOnProbe is the enable-recovery probe, counted from the private
	// reset, that the boot code answers. Probes after the window closes
	// are ignored.
	AckOnProbe int
	// RecoveryWindow is how many probes the boot code listens for after a
	// private reset before launching the application again.
	RecoveryWindow int
	Banks          [2]Bank
	StartInBoot    bool
	CrippledIO     bool
}

// DefaultConfig returns a device with two populated banks, bank 0 active.
func DefaultConfig() Config {
	return Config{
		Ident: devident.Ident{
			Manufacturer: devident.ManufacturerDamageControl,
			Family:       0x12,
			Product:      0x07,
			FwVersion:    "1.23",
		},
		BootVersion:    "0.98",
		AckOnProbe:     3,
		RecoveryWindow: 15,
		Banks: [2]Bank{
			{Version: "1.23", Size: 0x0001A2B4, Active: true},
			{Version: "1.20", Size: 0x00019F00},
		},
	}
}

var (
	identityRequest = sysex.MustCompile("F0 7E .. 06 01")
	manufacturer    = sysex.MustCompile("F0 00 01 55")
	bootCommand     = sysex.MustCompile("F0 00 01 55 42")
)

// Device is a simulated device. It is safe for concurrent use.
type Device struct {
	mu sync.Mutex

	cfg            Config
	mode           Mode
	recoveryOpen   bool
	probes         int
	recoveryStatus byte
	banks          [2]Bank
	faults         []Fault
	blocks         []sysex.Message
	received       int
}

// New creates a device from cfg.
func New(cfg Config) *Device {
	if cfg.AckOnProbe <= 0 {
		cfg.AckOnProbe = 1
	}
	if cfg.RecoveryWindow < cfg.AckOnProbe {
		cfg.RecoveryWindow = cfg.AckOnProbe
	}
	d := &Device{
		cfg:            cfg,
		banks:          cfg.Banks,
		recoveryStatus: RecoveryAck,
	}
	if cfg.StartInBoot {
		d.mode = ModeBoot
	}
	return d
}

// HandleSysEx implements midi.Handler.
func (d *Device) HandleSysEx(msg sysex.Message, reply func(sysex.Message)) {
	d.mu.Lock()
	out := d.handle(msg)
	crippled := d.cfg.CrippledIO
	d.mu.Unlock()

	if out == nil {
		return
	}
	if crippled {
		out = Cripple(out)
	}
	reply(out)
}

func (d *Device) handle(msg sysex.Message) sysex.Message {
	d.received++

	switch {
	case identityRequest.Match(msg):
		return d.identity().Encode()
	case !manufacturer.Match(msg) || len(msg) < 7:
		return nil
	case d.mode == ModeApplication:
		return d.handleApplication(msg)
	case bootCommand.Match(msg):
		return d.handleBoot(msg)
	}
	return nil
}

func (d *Device) identity() *devident.Ident {
	id := d.cfg.Ident
	if d.mode == ModeBoot {
		id.FwVersion = d.cfg.BootVersion
	}
	return &id
}

// The application answers only the private reset and, inside the recovery
// window that follows it, enable-recovery.
func (d *Device) handleApplication(msg sysex.Message) sysex.Message {
	if len(msg) == 8 && msg[6] == 0x1B && msg[7] == sysex.End {
		if msg[4] == d.cfg.Ident.FamilyByte() && msg[5] == d.cfg.Ident.ProductByte() {
			d.recoveryOpen = true
			d.probes = 0
		}
		return nil
	}

	if !d.recoveryOpen || !msg.Equal(cmdEnableRecovery) {
		return nil
	}
	d.probes++
	if d.probes > d.cfg.RecoveryWindow {
		d.recoveryOpen = false
		return nil
	}
	if d.probes < d.cfg.AckOnProbe {
		return nil
	}
	d.recoveryOpen = false
	if d.recoveryStatus == RecoveryAck {
		d.mode = ModeBoot
	}
	return statusReply(0x11, d.recoveryStatus)
}

var cmdEnableRecovery = sysex.MustParse("F0 00 01 55 42 11 F7")

func (d *Device) handleBoot(msg sysex.Message) sysex.Message {
	op := msg[5]
	switch {
	case op == 0x11 && len(msg) == 7:
		return statusReply(0x11, RecoveryAck)
	case (op == 0x08 || op == 0x09) && len(msg) == 7:
		return d.bankInfo(int(op - 0x08))
	case (op == 0x02 || op == 0x03) && len(msg) == 7:
		n := int(op - 0x02)
		if d.banks[n].Empty {
			return statusReply(op, 0x01)
		}
		d.banks[n].Active = true
		return statusReply(op, 0x00)
	case (op == 0x04 || op == 0x05) && len(msg) == 7:
		d.banks[op-0x04].Active = false
		return statusReply(op, 0x00)
	case op == 0x0D:
		return d.pid(msg)
	case op == 0x0C:
		return d.firmwareBlock(msg)
	case op == 0x01 && len(msg) == 7:
		return d.launch()
	}
	return nil
}

func statusReply(op, status byte) sysex.Message {
	return sysex.Message{0xF0, 0x00, 0x01, 0x55, 0x42, op, status, sysex.End}
}

func (d *Device) bankInfo(n int) sysex.Message {
	op := byte(0x08 + n)
	b := d.banks[n]
	if b.Empty {
		return sysex.Message{0xF0, 0x00, 0x01, 0x55, 0x42, op, 0x02, sysex.End}
	}
	msg := sysex.Message{0xF0, 0x00, 0x01, 0x55, 0x42, op}
	msg = append(msg, []byte(fmt.Sprintf("%-4s", b.Version))[:4]...)
	for i := 0; i < 8; i++ {
		msg = append(msg, byte(b.Size>>(28-4*i))&0x0F)
	}
	state := byte(0x00)
	if b.Active {
		state = 0x01
	}
	return append(msg, state, sysex.End)
}

func (d *Device) pid(msg sysex.Message) sysex.Message {
	if len(msg) != 14 {
		return nil
	}
	out := msg[:len(msg)-1].Clone()
	return append(out, d.cfg.Ident.FamilyByte(), d.cfg.Ident.ProductByte(), 0x00, 0x00, sysex.End)
}

func (d *Device) firmwareBlock(msg sysex.Message) sysex.Message {
	if len(msg) < 10 {
		return statusReply(0x0C, 0x01)
	}
	fault := FaultNone
	if len(d.faults) > 0 {
		fault = d.faults[0]
		d.faults = d.faults[1:]
	}
	if fault == FaultNone {
		d.blocks = append(d.blocks, msg.Clone())
	}
	if msg[8] != 0x03 {
		return nil
	}
	switch fault {
	case FaultBadPacket:
		return statusReply(0x0C, 0x01)
	case FaultFailed:
		return statusReply(0x0C, 0x02)
	case FaultSilent:
		return nil
	case FaultGarbled:
		return statusReply(0x0C, 0x7F)
	}
	return statusReply(0x0C, 0x00)
}

// launch leaves boot code when a valid bank is active. Otherwise the boot
// code stays put and says nothing.
func (d *Device) launch() sysex.Message {
	for _, b := range d.banks {
		if b.Active && !b.Empty {
			d.mode = ModeApplication
			return d.identity().Encode()
		}
	}
	return nil
}

// Cripple reproduces a link that loses the middle of long frames: anything
// over seven bytes keeps its first five and last two bytes.
func Cripple(msg sysex.Message) sysex.Message {
	if len(msg) <= 7 {
		return msg
	}
	out := append(msg[:5].Clone(), msg[len(msg)-2:]...)
	return out
}

// SetRecoveryStatus sets the status returned to the next enable-recovery.
func (d *Device) SetRecoveryStatus(status byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recoveryStatus = status
}

// InjectFaults queues faults for upcoming firmware blocks.
func (d *Device) InjectFaults(faults ...Fault) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults = append(d.faults, faults...)
}

// SetBank replaces bank n.
func (d *Device) SetBank(n int, b Bank) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.banks[n] = b
}

// Banks returns a copy of the bank table.
func (d *Device) Banks() [2]Bank {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.banks
}

// Mode returns the code currently running.
func (d *Device) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// Probes returns the enable-recovery probes seen since the last private
// reset.
func (d *Device) Probes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.probes
}

// Blocks returns the firmware blocks accepted so far.
func (d *Device) Blocks() []sysex.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]sysex.Message, len(d.blocks))
	copy(out, d.blocks)
	return out
}

// Received returns the number of frames the device has seen.
func (d *Device) Received() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.received
}
