package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dcontrol/midiboot/internal/catalog"
	"github.com/dcontrol/midiboot/internal/config"
	"github.com/dcontrol/midiboot/internal/discovery"
	"github.com/dcontrol/midiboot/internal/logging"
	"github.com/dcontrol/midiboot/internal/midi"
	"github.com/dcontrol/midiboot/internal/ui"
)

// selectCmd picks the default port interactively
var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Choose the default MIDI port",
	Long: `Show the serial ports on this machine and the bridges on the network,
and save the chosen one as the port used when --port is not given.`,
	RunE: runSelect,
}

func init() {
	rootCmd.AddCommand(selectCmd)
}

func runSelect(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cat, err := catalog.Load()
	if err != nil {
		return fmt.Errorf("failed to load device catalog: %w", err)
	}
	reg := loadRegistry()

	scanTimeout := discovery.DefaultScanTimeout
	if reg.Preferences.DiscoverTimeout > 0 {
		scanTimeout = time.Duration(reg.Preferences.DiscoverTimeout) * time.Second
	}

	source := func(ctx context.Context) ([]ui.PortChoice, error) {
		ports, err := midi.ListSerialPorts()
		if err != nil {
			return nil, fmt.Errorf("failed to list serial ports: %w", err)
		}
		scanner := discovery.NewScanner()
		scanner.Timeout = scanTimeout
		bridges, err := scanner.ScanForBridges(ctx)
		if err != nil {
			// Serial ports are still worth offering.
			logging.Warn("Bridge discovery failed", zap.Error(err))
		}
		return portChoices(ports, bridges, cat, reg), nil
	}

	choice, ok, err := ui.PickPort(source, scanTimeout)
	if err != nil {
		return fmt.Errorf("port picker failed: %w", err)
	}
	if !ok {
		ui.PrintWarning("No port selected", map[string]string{"Default port": orNone(reg.Preferences.DefaultPort)})
		return nil
	}

	reg.Preferences.DefaultPort = choice.Target
	if err := reg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	ui.PrintSuccess("Default port saved", map[string]string{"Port": choice.Target})
	return nil
}

// portChoices lists serial ports first, sorted, then bridges in discovery
// order.
func portChoices(ports []string, bridges []*discovery.Bridge, cat *catalog.Catalog, reg *config.Registry) []ui.PortChoice {
	sorted := append([]string(nil), ports...)
	sort.Strings(sorted)

	choices := make([]ui.PortChoice, 0, len(sorted)+len(bridges))
	for _, name := range sorted {
		c := ui.PortChoice{Target: name}
		if iface, ok := cat.Interface(name); ok {
			c.Label = iface.Match
			if iface.CrippledIO {
				c.Detail = "blind mode"
			}
		}
		if dev := reg.GetDevice(name); dev != nil && dev.Nickname != "" {
			c.Detail = joinDetail(c.Detail, "last seen: "+dev.Nickname)
		}
		if reg.Preferences.DefaultPort == name {
			c.Detail = joinDetail(c.Detail, "current default")
		}
		choices = append(choices, c)
	}

	for _, b := range bridges {
		c := ui.PortChoice{Target: b.URL(), Label: b.Instance, Bridge: true}
		if p := b.MIDIPort(); p != "" {
			c.Detail = "relays " + p
		}
		if reg.Preferences.DefaultPort == c.Target {
			c.Detail = joinDetail(c.Detail, "current default")
		}
		choices = append(choices, c)
	}
	return choices
}

func joinDetail(a, b string) string {
	if a == "" {
		return b
	}
	return a + ", " + b
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
