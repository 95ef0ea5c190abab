package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dcontrol/midiboot/internal/bootctl"
	"github.com/dcontrol/midiboot/internal/catalog"
	"github.com/dcontrol/midiboot/internal/config"
	"github.com/dcontrol/midiboot/internal/devident"
	"github.com/dcontrol/midiboot/internal/discovery"
	"github.com/dcontrol/midiboot/internal/emulator"
	"github.com/dcontrol/midiboot/internal/logging"
	"github.com/dcontrol/midiboot/internal/midi"
	"github.com/dcontrol/midiboot/internal/sysex"
	"github.com/dcontrol/midiboot/internal/ui"
	"github.com/dcontrol/midiboot/internal/urls"
)

// simulatorPortName is the port name of the built-in emulator. The device
// catalog lists it as a clean link.
const simulatorPortName = "midiboot-emulator"

// Connection flags
var (
	portName  string
	bridgeURL string
	baudRate  int
	blindFlag bool
	simulate  bool
	logLevel  string
	throttle  time.Duration
	timeout   time.Duration
	verbose   bool
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&portName, "port", "p", "", "Serial MIDI port (default from config)")
	flags.StringVar(&bridgeURL, "bridge", "", "midiboot-bridge URL, or \"auto\" to discover one")
	flags.IntVar(&baudRate, "baud", 0, "Serial baud rate (default from config, 31250)")
	flags.BoolVar(&blindFlag, "blind", false, "Match only the first bytes of replies (for interfaces that cut SysEx)")
	flags.BoolVar(&simulate, "simulate", false, "Use the built-in device emulator")
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.DurationVar(&throttle, "throttle", 0, "Minimum gap between paced messages (default from config, 20ms)")
	flags.DurationVar(&timeout, "timeout", 2*time.Minute, "Overall command timeout")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Show the SysEx trace after each command")
}

// deviceConn is an open port plus the session and records around it.
type deviceConn struct {
	port     midi.Port
	session  *bootctl.Session
	hints    *devident.Details
	trace    *ui.Trace
	registry *config.Registry
	catalog  *catalog.Catalog
}

func (c *deviceConn) Close() {
	if err := c.port.Close(); err != nil {
		logging.Warn("Failed to close MIDI port", zap.String("port", c.port.Name()), zap.Error(err))
	}
}

// params describes the connection for command headers.
func (c *deviceConn) params() map[string]string {
	p := map[string]string{"Port": c.port.Name()}
	if c.session.BlindMode() {
		p["Mode"] = "blind"
	}
	if c.hints != nil && c.hints.Name != "" {
		p["Device"] = c.hints.Name
	}
	return p
}

// describe names an identity using the catalog when it knows the product.
func (c *deviceConn) describe(id *devident.Ident) string {
	if id == nil {
		return "unknown"
	}
	if p, ok := c.catalog.Product(id.Family, id.Product); ok {
		return p.String()
	}
	return fmt.Sprintf("unknown product [%02X%02X]", id.FamilyByte(), id.ProductByte())
}

// remember stores what was learned about the device and writes the config.
// Failures are logged only; the device operation already succeeded.
func (c *deviceConn) remember(update func(reg *config.Registry, port string)) {
	update(c.registry, c.port.Name())
	if err := c.registry.Save(); err != nil {
		logging.Warn("Failed to save config", zap.Error(err))
	}
}

func loadRegistry() *config.Registry {
	reg, err := config.LoadRegistry()
	if err != nil {
		logging.Warn("Ignoring unreadable config", zap.Error(err))
		return config.NewRegistry()
	}
	return reg
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// connect opens the selected port and starts a session on it.
func connect(ctx context.Context) (*deviceConn, error) {
	reg := loadRegistry()
	cat, err := catalog.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load device catalog: %w", err)
	}

	trace := ui.NewTrace()
	opts := []midi.Option{
		midi.WithThrottle(throttleInterval(reg)),
		midi.WithMonitor(func(direction string, msg sysex.Message) {
			trace.Record(direction, msg)
		}),
	}

	port, err := openPort(ctx, reg, opts)
	if err != nil {
		return nil, err
	}

	hints := reg.Hints(port.Name(), cat.Hints(port.Name(), nil))
	sessionOpts := []bootctl.Option{bootctl.WithLogger(logging.GetLogger())}
	if rootCmd.PersistentFlags().Changed("blind") {
		sessionOpts = append(sessionOpts, bootctl.WithBlindMode(blindFlag))
	}

	logging.Debug("Session hints",
		zap.String("port", port.Name()),
		zap.String("name", hints.Name),
		zap.Bool("crippled_io", hints.CrippledIO),
		zap.Bool("identity_known", !hints.IsEmpty()),
	)

	return &deviceConn{
		port:     port,
		session:  bootctl.New(port, hints, sessionOpts...),
		hints:    hints,
		trace:    trace,
		registry: reg,
		catalog:  cat,
	}, nil
}

func throttleInterval(reg *config.Registry) time.Duration {
	if throttle > 0 {
		return throttle
	}
	if reg.Preferences != nil && reg.Preferences.ThrottleMs > 0 {
		return time.Duration(reg.Preferences.ThrottleMs) * time.Millisecond
	}
	return midi.DefaultThrottleInterval
}

func openPort(ctx context.Context, reg *config.Registry, opts []midi.Option) (midi.Port, error) {
	switch {
	case simulate:
		cfg := emulator.DefaultConfig()
		cfg.CrippledIO = blindFlag
		return midi.NewLoopback(simulatorPortName, emulator.New(cfg), opts...), nil

	case bridgeURL != "":
		url := bridgeURL
		if url == "auto" {
			b, err := discoverBridge(ctx, reg)
			if err != nil {
				return nil, err
			}
			url = b.URL()
		}
		return dialBridge(ctx, url, opts)
	}

	name := portName
	if name == "" && reg.Preferences != nil {
		name = reg.Preferences.DefaultPort
	}
	if name == "" {
		return nil, errors.New("no MIDI port selected: use --port, --bridge or --simulate")
	}
	if strings.HasPrefix(name, "ws://") || strings.HasPrefix(name, "wss://") {
		return dialBridge(ctx, name, opts)
	}

	baud := baudRate
	if baud == 0 && reg.Preferences != nil {
		baud = reg.Preferences.BaudRate
	}
	p, err := midi.OpenSerial(name, baud, opts...)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func dialBridge(ctx context.Context, url string, opts []midi.Option) (midi.Port, error) {
	p, err := midi.DialBridge(ctx, midi.NormalizeBridgeURL(url), opts...)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func discoverBridge(ctx context.Context, reg *config.Registry) (*discovery.Bridge, error) {
	scanner := discovery.NewScanner()
	if reg.Preferences != nil && reg.Preferences.DiscoverTimeout > 0 {
		scanner.Timeout = time.Duration(reg.Preferences.DiscoverTimeout) * time.Second
	}

	bridges, err := scanner.ScanForBridges(ctx)
	if err != nil {
		return nil, fmt.Errorf("bridge discovery failed: %w", err)
	}
	if len(bridges) == 0 {
		return nil, errors.New("no midiboot bridge found on the network")
	}
	if len(bridges) > 1 {
		logging.Info("Several bridges found, using the first",
			zap.Int("count", len(bridges)),
			zap.String("bridge", bridges[0].String()),
		)
	}
	return bridges[0], nil
}

// troubleshooting returns the failure tips for err.
func troubleshooting(err error) []string {
	switch {
	case bootctl.IsKind(err, bootctl.KindIdentityUnavailable):
		return []string{
			"Run 'midiboot identify' while the device is in normal mode first",
			"Blind mode needs a known identity: identify once over a clean link",
			"See " + urls.BlindMode,
		}
	case bootctl.IsKind(err, bootctl.KindPrecondition):
		return []string{
			"Put the device into boot code first: midiboot enter-boot",
		}
	case bootctl.IsKind(err, bootctl.KindRejected), bootctl.IsKind(err, bootctl.KindFailed):
		return []string{
			"The device refused the request",
			"Power cycle the device and try again",
		}
	}
	tips := append([]string(nil), ui.DefaultTroubleshooting...)
	return append(tips, "See "+urls.TroubleshootingGuide)
}
