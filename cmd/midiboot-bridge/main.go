// Midiboot-bridge shares one MIDI port over the network.
//
// It relays SysEx frames between a serial MIDI interface (or the built-in
// device emulator) and websocket clients, and announces itself over mDNS so
// that 'midiboot --bridge auto' can find it. Each binary websocket message
// carries exactly one SysEx frame.
//
// Usage:
//
//	midiboot-bridge serve [flags]
//
// See 'midiboot-bridge serve --help' for available options.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dcontrol/midiboot/internal/bridge"
	"github.com/dcontrol/midiboot/internal/discovery"
	"github.com/dcontrol/midiboot/internal/emulator"
	"github.com/dcontrol/midiboot/internal/logging"
	"github.com/dcontrol/midiboot/internal/midi"
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
	Use:   "midiboot-bridge",
	Short: "MIDI SysEx websocket bridge",
	Long: `Shares a MIDI port with midiboot clients over websocket.

Run it on the machine the device is cabled to, then point midiboot at it
with --bridge ws://<host>:7531/sysex or --bridge auto.`,
	Version: version.Get().Version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command flags
var (
	serialPort  string
	baudRate    int
	simulate    bool
	host        string
	listenPort  int
	instance    string
	noAdvertise bool
	logLevel    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bridge",
	Long: `Open the MIDI port and serve it on ws://<host>:<listen-port>/sysex.

Frames from the device are sent to every connected client. Frames from any
client are written to the device.`,
	Example: `  # Share a serial MIDI interface
  midiboot-bridge serve --port /dev/ttyUSB0

  # Share the emulator for testing
  midiboot-bridge serve --simulate --log-level debug

  # Listen on one interface only, without mDNS
  midiboot-bridge serve --port /dev/ttyUSB0 --host 127.0.0.1 --no-advertise`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serialPort, "port", "p", "", "Serial MIDI port to share")
	serveCmd.Flags().IntVar(&baudRate, "baud", midi.DefaultBaudRate, "Serial baud rate")
	serveCmd.Flags().BoolVar(&simulate, "simulate", false, "Share the built-in device emulator instead of a serial port")
	serveCmd.Flags().StringVar(&host, "host", "", "Listen address (empty = all interfaces)")
	serveCmd.Flags().IntVar(&listenPort, "listen-port", discovery.DefaultPort, "Listen port")
	serveCmd.Flags().StringVar(&instance, "name", "", "mDNS instance name (default: hostname)")
	serveCmd.Flags().BoolVar(&noAdvertise, "no-advertise", false, "Do not announce the bridge over mDNS")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serialPort == "" && !simulate {
		return fmt.Errorf("either --port or --simulate is required")
	}
	cmd.SilenceUsage = true

	if err := logging.Initialize(logLevel); err != nil {
		return err
	}
	log := logging.GetLogger()

	port, err := openPort()
	if err != nil {
		return err
	}
	defer func() {
		if err := port.Close(); err != nil {
			log.Warn("Failed to close MIDI port", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !noAdvertise {
		name := instance
		if name == "" {
			name, _ = os.Hostname()
		}
		if name == "" {
			name = "midiboot-bridge"
		}
		adv, err := discovery.Advertise(name, listenPort, port.Name(), version.Get().Version)
		if err != nil {
			// Clients can still connect by URL.
			log.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			defer adv.Shutdown()
			log.Info("Advertising bridge", zap.String("instance", name), zap.String("service", discovery.ServiceType))
		}
	}

	srv := bridge.New(&bridge.Config{Host: host, Port: listenPort}, port)
	fmt.Printf("Sharing %s on ws://%s/sysex (Ctrl+C to stop)\n", port.Name(), hostPort())
	return srv.Start(ctx)
}

func openPort() (midi.Port, error) {
	if simulate {
		return midi.NewLoopback("midiboot-emulator", emulator.New(emulator.DefaultConfig())), nil
	}
	p, err := midi.OpenSerial(serialPort, baudRate)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func hostPort() string {
	h := host
	if h == "" {
		h = "0.0.0.0"
	}
	return net.JoinHostPort(h, strconv.Itoa(listenPort))
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("midiboot-bridge %s\n", version.Full())
	},
}
