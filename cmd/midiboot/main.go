// Midiboot drives the boot loader of Damage Control devices over MIDI SysEx.
//
// It can identify a device, switch it into boot code, read and select its
// code banks, and write firmware images. The device is reached through a
// serial MIDI interface, a midiboot-bridge on the network, or the built-in
// emulator:
//
//   - --port /dev/ttyUSB0 for a serial MIDI interface
//   - --bridge ws://host:7531/sysex, or --bridge auto to find one over mDNS
//   - --simulate for the in-process emulator
//
// See 'midiboot --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dcontrol/midiboot/internal/logging"
	"github.com/dcontrol/midiboot/internal/version"
)

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "midiboot",
	Short: "MIDI SysEx boot loader utility",
	Long: `Talks to the boot loader of Damage Control devices over MIDI SysEx.

Provides device identification, boot mode entry and exit, code bank
inspection and selection, and firmware updates.

Some USB-MIDI interfaces cut every SysEx message down to its first few
bytes. Ports known to do this switch to blind mode automatically; use
--blind to force it for others.`,
	Version: version.Get().Version,
	Example: `  # List serial MIDI ports
  midiboot ports

  # Identify the device on a port
  midiboot identify --port /dev/ttyUSB0

  # Show the code banks
  midiboot info --port /dev/ttyUSB0

  # Update the firmware through a bridge found on the network
  midiboot flash firmware.syx --bridge auto

  # Try everything against the emulator
  midiboot info --simulate`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate("midiboot {{.Version}}\n")

	rootCmd.AddCommand(versionCmd)
}

// initLogging applies --log-level, then MIDIBOOT_LOG_LEVEL, then the
// configured default. Logging stays silent when none is set.
func initLogging() error {
	level := logLevel
	if level == "" && os.Getenv(logging.LogLevelEnvVar) == "" {
		if reg := loadRegistry(); reg.Preferences != nil {
			level = reg.Preferences.LogLevel
		}
	}
	return logging.Initialize(level)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("midiboot %s\n", version.Full())
	},
}
