package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dcontrol/midiboot/internal/bootctl"
	"github.com/dcontrol/midiboot/internal/catalog"
	"github.com/dcontrol/midiboot/internal/config"
	"github.com/dcontrol/midiboot/internal/devident"
	"github.com/dcontrol/midiboot/internal/discovery"
	"github.com/dcontrol/midiboot/internal/midi"
	"github.com/dcontrol/midiboot/internal/sysex"
	"github.com/dcontrol/midiboot/internal/ui"
	"github.com/dcontrol/midiboot/internal/urls"
)

// Command flags
var (
	scanTimeout  time.Duration
	infoExit     bool
	probeWindow  time.Duration
	saveNickname string
)

func init() {
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(identifyCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(enterBootCmd)
	rootCmd.AddCommand(exitBootCmd)
	rootCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(checkPIDCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(flashCmd)
}

// run opens the device and hands the session to a Runner-driven operation.
func run(title, command string, steps []string, op func(ctx context.Context, c *deviceConn, onStep ui.StepCallback) (map[string]string, error)) error {
	ctx, cancel := commandContext()
	defer cancel()

	c, err := connect(ctx)
	if err != nil {
		ui.PrintFailure(title+" failed", err, []string{
			"List serial ports: midiboot ports",
			"Find bridges: midiboot scan",
			"More help: " + urls.GettingStarted,
		})
		return err
	}
	defer c.Close()

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:      title,
		Command:    command,
		Params:     c.params(),
		TotalSteps: len(steps),
		StepNames:  steps,
		Verbose:    verbose,
		Advise:     troubleshooting,
	})
	runner.SetTrace(c.trace)

	_, err = runner.RunWithResult(ctx, func(ctx context.Context, onStep ui.StepCallback) (map[string]string, error) {
		return op(ctx, c, onStep)
	})
	return err
}

// step reports a step and runs fn, marking the step with its outcome.
func step(onStep ui.StepCallback, n int, name string, fn func() (string, error)) error {
	onStep(n, name, ui.StepRunning, "")
	msg, err := fn()
	if err != nil {
		onStep(n, name, ui.StepFailed, err.Error())
		return err
	}
	onStep(n, name, ui.StepComplete, msg)
	return nil
}

func identDetails(c *deviceConn, id *devident.Ident) map[string]string {
	if id == nil {
		return map[string]string{}
	}
	d := map[string]string{
		"Device":   c.describe(id),
		"Firmware": id.FwVersion,
		"Family":   fmt.Sprintf("0x%02X", id.Family),
		"Product":  fmt.Sprintf("0x%02X", id.Product),
	}
	if id.Manufacturer != 0 {
		d["Manufacturer"] = fmt.Sprintf("%06X", id.Manufacturer)
	}
	return d
}

// portsCmd lists serial ports
var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial MIDI ports",
	Long: `List the serial ports on this machine, marking interfaces the device
catalog knows and ports that have a saved device record.`,
	RunE: runPorts,
}

func runPorts(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	ports, err := midi.ListSerialPorts()
	if err != nil {
		return fmt.Errorf("failed to list serial ports: %w", err)
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found.")
		fmt.Println("\nUse --bridge to reach a device through midiboot-bridge, or --simulate to try the emulator.")
		return nil
	}

	cat, err := catalog.Load()
	if err != nil {
		return fmt.Errorf("failed to load device catalog: %w", err)
	}
	reg := loadRegistry()
	sort.Strings(ports)

	fmt.Printf("Found %d port(s):\n\n", len(ports))
	for _, name := range ports {
		line := "  " + name
		if reg.Preferences != nil && reg.Preferences.DefaultPort == name {
			line += "  (default)"
		}
		fmt.Println(line)
		if iface, ok := cat.Interface(name); ok {
			mode := "clean link"
			if iface.CrippledIO {
				mode = "blind mode"
			}
			fmt.Printf("      interface: %s (%s)\n", iface.Match, mode)
		}
		if dev := reg.GetDevice(name); dev != nil {
			label := dev.Nickname
			if label == "" && dev.Ident != nil {
				label = fmt.Sprintf("%02X%02X fw %s", dev.Ident.Family&0x7F, dev.Ident.Product&0x7F, dev.Ident.FwVersion)
			}
			if label != "" {
				fmt.Printf("      last seen: %s, %s\n", label, dev.LastSeen.Format(time.DateTime))
			}
		}
	}
	return nil
}

// scanCmd discovers bridges
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for midiboot bridges on the network",
	Long: `Scan for midiboot-bridge instances using mDNS/DNS-SD discovery.`,
	Example: `  # Scan for 5 seconds (default)
  midiboot scan

  # Longer scan for busy networks
  midiboot scan --scan-timeout 15s`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().DurationVar(&scanTimeout, "scan-timeout", discovery.DefaultScanTimeout, "Scan timeout")
}

func runScan(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	fmt.Printf("Scanning for midiboot bridges (timeout: %s)...\n\n", scanTimeout)

	scanner := discovery.NewScanner()
	scanner.Timeout = scanTimeout
	bridges, err := scanner.ScanForBridges(context.Background())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(bridges) == 0 {
		fmt.Println("No bridges found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Check midiboot-bridge is running and was not started with --no-advertise")
		fmt.Println("  - Multicast DNS may be blocked between subnets")
		fmt.Println("  - Try increasing --scan-timeout")
		fmt.Println("  - See " + urls.Bridge)
		return nil
	}

	fmt.Printf("Found %d bridge(s):\n\n", len(bridges))
	for i, b := range bridges {
		fmt.Printf("%d. %s\n", i+1, b.Instance)
		fmt.Printf("   URL:       %s\n", b.URL())
		if p := b.MIDIPort(); p != "" {
			fmt.Printf("   MIDI port: %s\n", p)
		}
		if v := b.GetMetadata(discovery.TxtVersion); v != "" {
			fmt.Printf("   Version:   %s\n", v)
		}
		fmt.Println()
	}
	fmt.Println("Use 'midiboot identify --bridge <url>' to talk to the device behind a bridge")
	return nil
}

// identifyCmd reads the device identity
var identifyCmd = &cobra.Command{
	Use:   "identify",
	Short: "Identify the device",
	Long: `Send a universal identity request and show the reply.

The identity is saved in the config so blind-mode sessions on this port can
use it later. Use --name to give the device a nickname at the same time.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return run("Identify", "midiboot identify", []string{"Requesting identity"},
			func(ctx context.Context, c *deviceConn, onStep ui.StepCallback) (map[string]string, error) {
				var id *devident.Ident
				err := step(onStep, 1, "Requesting identity", func() (string, error) {
					var err error
					id, err = c.session.Identify(ctx)
					if err != nil {
						return "", err
					}
					return c.describe(id), nil
				})
				if err != nil {
					return nil, err
				}

				// A blind identify is rebuilt from hints and would only echo them back.
				if !c.session.BlindMode() {
					c.remember(func(reg *config.Registry, port string) {
						reg.RecordIdentity(port, id)
						if saveNickname != "" {
							reg.SetDeviceNickname(port, saveNickname)
						}
					})
				}
				return identDetails(c, id), nil
			})
	},
}

func init() {
	identifyCmd.Flags().StringVar(&saveNickname, "name", "", "Save a nickname for the device on this port")
}

// infoCmd shows the code bank table
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show boot code and code bank information",
	Long: `Enter boot code if needed and read both code bank descriptors.

The device stays in boot code afterwards unless --exit is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		var banks []ui.BankRow
		err := run("Boot Code Info", "midiboot info",
			[]string{"Entering boot code", "Reading code banks", "Leaving boot code"},
			func(ctx context.Context, c *deviceConn, onStep ui.StepCallback) (map[string]string, error) {
				if err := step(onStep, 1, "Entering boot code", func() (string, error) {
					return "", c.session.EnableBootcode(ctx)
				}); err != nil {
					return nil, err
				}

				var info *bootctl.BootCodeInfo
				if err := step(onStep, 2, "Reading code banks", func() (string, error) {
					var err error
					info, err = c.session.BootCodeInfo(ctx)
					return "", err
				}); err != nil {
					return nil, err
				}
				banks = bankRows(info)

				c.remember(func(reg *config.Registry, port string) {
					reg.RecordBootInfo(port, info.Version, bankLines(info))
				})

				details := map[string]string{"Active bank": strconv.Itoa(info.ActiveBank())}
				if info.Version != "" {
					details["Boot code"] = info.Version
				}
				if !infoExit {
					onStep(3, "", ui.StepSkipped, "use --exit to restart the application")
					return details, nil
				}
				err := step(onStep, 3, "Leaving boot code", func() (string, error) {
					id, err := c.session.ExitBoot(ctx)
					if err != nil {
						return "", err
					}
					return "running " + c.describe(id), nil
				})
				return details, err
			})
		if len(banks) > 0 {
			fmt.Println()
			ui.NewPrinter(nil).PrintBankTable(banks)
		}
		return err
	},
}

func init() {
	infoCmd.Flags().BoolVar(&infoExit, "exit", false, "Leave boot code after reading the banks")
}

func bankRows(info *bootctl.BootCodeInfo) []ui.BankRow {
	rows := make([]ui.BankRow, len(info.Banks))
	for i, b := range info.Banks {
		rows[i] = ui.BankRow{
			Index:   i,
			Valid:   b.Ok(),
			Version: b.Version,
			Size:    b.Size,
			Active:  b.Active,
		}
	}
	return rows
}

func bankLines(info *bootctl.BootCodeInfo) []string {
	lines := make([]string, len(info.Banks))
	for i, b := range info.Banks {
		lines[i] = fmt.Sprintf("Bank%d: %s", i, b.String())
	}
	return lines
}

// enterBootCmd switches the device into boot code
var enterBootCmd = &cobra.Command{
	Use:   "enter-boot",
	Short: "Switch the device into boot code",
	Long: `Reset the device and catch its boot code with enable-recovery probes.

The device identity is needed for the reset command. It is read from the
device, or taken from the config and catalog in blind mode.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return run("Enter Boot Mode", "midiboot enter-boot", []string{"Entering boot code"},
			func(ctx context.Context, c *deviceConn, onStep ui.StepCallback) (map[string]string, error) {
				err := step(onStep, 1, "Entering boot code", func() (string, error) {
					return "", c.session.EnableBootcode(ctx)
				})
				return nil, err
			})
	},
}

// exitBootCmd launches the application
var exitBootCmd = &cobra.Command{
	Use:   "exit-boot",
	Short: "Leave boot code and start the application",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return run("Exit Boot Mode", "midiboot exit-boot", []string{"Leaving boot code"},
			func(ctx context.Context, c *deviceConn, onStep ui.StepCallback) (map[string]string, error) {
				var id *devident.Ident
				err := step(onStep, 1, "Leaving boot code", func() (string, error) {
					var err error
					id, err = c.session.ExitBoot(ctx)
					return "", err
				})
				if err != nil {
					return nil, err
				}
				return identDetails(c, id), nil
			})
	},
}

// activateCmd selects the code bank to boot
var activateCmd = &cobra.Command{
	Use:   "activate <bank>",
	Short: "Make a code bank the active one",
	Long: `Activate code bank 0 or 1 and deactivate the other. The device must be in
boot code and the bank must hold a valid image.`,
	Example: `  midiboot enter-boot --port /dev/ttyUSB0
  midiboot activate 1 --port /dev/ttyUSB0
  midiboot exit-boot --port /dev/ttyUSB0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bank, err := strconv.Atoi(args[0])
		if err != nil || bank < 0 || bank > 1 {
			return fmt.Errorf("bank must be 0 or 1, got %q", args[0])
		}
		cmd.SilenceUsage = true

		return run("Activate Bank", "midiboot activate "+args[0], []string{fmt.Sprintf("Activating bank %d", bank)},
			func(ctx context.Context, c *deviceConn, onStep ui.StepCallback) (map[string]string, error) {
				err := step(onStep, 1, "", func() (string, error) {
					return "", c.session.ActivateBank(ctx, bank)
				})
				if err != nil {
					return nil, err
				}
				return map[string]string{"Active bank": strconv.Itoa(bank)}, nil
			})
	},
}

// resetCmd sends the private reset
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Send the device-specific reset command",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return run("Reset", "midiboot reset", []string{"Sending private reset"},
			func(ctx context.Context, c *deviceConn, onStep ui.StepCallback) (map[string]string, error) {
				var reset sysex.Message
				err := step(onStep, 1, "Sending private reset", func() (string, error) {
					var err error
					if reset, err = c.session.MakePrivateResetCmd(ctx); err != nil {
						return "", err
					}
					return "", c.session.WriteMIDI(reset)
				})
				if err != nil {
					return nil, err
				}
				return map[string]string{"Command": reset.String()}, nil
			})
	},
}

// checkPIDCmd compares the boot code's product ID
var checkPIDCmd = &cobra.Command{
	Use:   "check-pid <pid>",
	Short: "Check the product ID reported by the boot code",
	Long: `Ask the boot code for its family and product bytes and compare them with
<pid>, given as four hex digits (family then product), e.g. 1207.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := parsePID(args[0])
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true

		return run("Check PID", "midiboot check-pid "+args[0], []string{"Reading product ID"},
			func(ctx context.Context, c *deviceConn, onStep ui.StepCallback) (map[string]string, error) {
				err := step(onStep, 1, "Reading product ID", func() (string, error) {
					if !c.session.CheckPID(ctx, pid) {
						return "", fmt.Errorf("device did not report PID %04X", pid)
					}
					return "match", nil
				})
				if err != nil {
					return nil, err
				}
				return map[string]string{"PID": fmt.Sprintf("%04X", pid)}, nil
			})
	},
}

func parsePID(s string) (int, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid PID %q: want four hex digits", s)
	}
	return int(v), nil
}

// probeCmd counts replies to an arbitrary command
var probeCmd = &cobra.Command{
	Use:   "probe <command> <pattern>",
	Short: "Send a SysEx command and count matching replies",
	Long: `Send <command> once and count the replies matching <pattern> within the
window. Both are hex strings; the pattern may use ".." for any byte and
"[..]" for nibble alternatives. In blind mode the pattern is cut to the
bytes a crippled link carries.`,
	Example: `  # How many bank descriptors does the boot code send?
  midiboot probe "F0 00 01 55 42 08 F7" "F0 00 01 55 42 0[89]"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		msg, err := sysex.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid command: %w", err)
		}
		pattern, err := sysex.Compile(args[1])
		if err != nil {
			return fmt.Errorf("invalid pattern: %w", err)
		}
		cmd.SilenceUsage = true

		return run("Probe", "midiboot probe", []string{"Counting replies"},
			func(ctx context.Context, c *deviceConn, onStep ui.StepCallback) (map[string]string, error) {
				var n int
				_ = step(onStep, 1, "Counting replies", func() (string, error) {
					n = c.session.CountResponsePattern(ctx, msg, pattern, probeWindow)
					return fmt.Sprintf("%d in %s", n, probeWindow), nil
				})
				return map[string]string{
					"Command": msg.String(),
					"Pattern": args[1],
					"Replies": strconv.Itoa(n),
				}, nil
			})
	},
}

func init() {
	probeCmd.Flags().DurationVar(&probeWindow, "window", 800*time.Millisecond, "How long to collect replies")
}
