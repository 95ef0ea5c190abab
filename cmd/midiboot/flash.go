package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/dcontrol/midiboot/internal/config"
	"github.com/dcontrol/midiboot/internal/firmware"
	"github.com/dcontrol/midiboot/internal/ui"
	"github.com/dcontrol/midiboot/internal/urls"
)

// Flash command flags
var (
	flashBank         int
	flashRetries      int
	flashBlockTimeout time.Duration
	flashYes          bool
	flashStayInBoot   bool
)

var flashSteps = []string{
	"Entering boot code",
	"Reading code banks",
	"Writing firmware",
	"Activating bank",
	"Leaving boot code",
}

// Step numbers by updater phase.
var flashPhaseStep = map[firmware.Phase]int{
	firmware.PhaseEntering:   1,
	firmware.PhaseReading:    2,
	firmware.PhaseWriting:    3,
	firmware.PhaseActivating: 4,
	firmware.PhaseExiting:    5,
}

var flashCmd = &cobra.Command{
	Use:   "flash <image.syx>",
	Short: "Write a firmware image to the device",
	Long: `Write a firmware image over MIDI.

The image is a .syx file, raw or as hex text, holding the firmware update
blocks in order. This command will:
  1. Switch the device into boot code
  2. Read the code bank table (skipped in blind mode)
  3. Send every block, retrying blocks the device reports as bad
  4. Activate a code bank, if --bank is given
  5. Leave boot code and start the new firmware

If a block cannot be written the device is left in boot code and the
update can simply be run again.`,
	Example: `  # Update and keep the bank selection the image makes
  midiboot flash firmware.syx --port /dev/ttyUSB0

  # Update and boot from bank 1
  midiboot flash firmware.syx --port /dev/ttyUSB0 --bank 1

  # Unattended update through a bridge
  midiboot flash firmware.syx --bridge auto --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runFlash,
}

func init() {
	flashCmd.Flags().IntVar(&flashBank, "bank", firmware.NoBank, "Code bank to activate after writing (0 or 1)")
	flashCmd.Flags().IntVar(&flashRetries, "retries", 3, "Attempts per block")
	flashCmd.Flags().DurationVar(&flashBlockTimeout, "block-timeout", 0, "Wait for each block status (default 2s)")
	flashCmd.Flags().BoolVarP(&flashYes, "yes", "y", false, "Skip the confirmation prompt")
	flashCmd.Flags().BoolVar(&flashStayInBoot, "stay-in-boot", false, "Do not leave boot code after writing")
}

func runFlash(cmd *cobra.Command, args []string) error {
	if flashBank != firmware.NoBank && (flashBank < 0 || flashBank > 1) {
		return fmt.Errorf("--bank must be 0 or 1, got %d", flashBank)
	}

	img, err := firmware.Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to load firmware image: %w", err)
	}
	cmd.SilenceUsage = true

	if !flashYes && !ui.FirmwareUpdateConfirmation(filepath.Base(args[0]), len(img.Blocks), flashBank) {
		return fmt.Errorf("firmware update cancelled")
	}

	// Large images take longer than the default command timeout.
	if !cmd.Flags().Changed("timeout") {
		timeout = 30 * time.Minute
	}
	ctx, cancel := commandContext()
	defer cancel()

	c, err := connect(ctx)
	if err != nil {
		ui.PrintFailure("Firmware Update failed", err, []string{
			"List serial ports: midiboot ports",
			"More help: " + urls.FirmwareUpdate,
		})
		return err
	}
	defer c.Close()

	params := c.params()
	params["Image"] = fmt.Sprintf("%s (%d blocks, %d bytes)", img.Name, len(img.Blocks), img.Size())
	if flashBank != firmware.NoBank {
		params["Activate"] = "bank " + strconv.Itoa(flashBank)
	}

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:      "Firmware Update",
		Command:    "midiboot flash",
		Params:     params,
		TotalSteps: len(flashSteps),
		StepNames:  flashSteps,
		Verbose:    verbose,
		Advise:     troubleshooting,
	})
	runner.SetTrace(c.trace)

	opts := []firmware.Option{
		firmware.WithRetries(flashRetries),
		firmware.WithActivateBank(flashBank),
	}
	if flashBlockTimeout > 0 {
		opts = append(opts, firmware.WithBlockTimeout(flashBlockTimeout))
	}
	if flashStayInBoot {
		opts = append(opts, firmware.WithSkipExit())
	}

	return runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) error {
		tracker := newPhaseTracker(onStep, runner)
		updater := firmware.NewUpdater(c.session, append(opts, firmware.WithProgressCallback(tracker.update))...)

		res, err := updater.Program(ctx, img)
		if err != nil {
			tracker.fail(err)
			return err
		}
		tracker.finish()

		c.remember(func(reg *config.Registry, port string) {
			reg.RecordFlash(port, img.Name, res.Blocks)
			if res.Ident != nil {
				reg.RecordIdentity(port, res.Ident)
			}
		})
		return nil
	})
}

// phaseTracker turns updater progress into runner steps.
type phaseTracker struct {
	onStep  ui.StepCallback
	runner  *ui.Runner
	current int
	last    firmware.Progress
}

func newPhaseTracker(onStep ui.StepCallback, runner *ui.Runner) *phaseTracker {
	return &phaseTracker{onStep: onStep, runner: runner}
}

func (t *phaseTracker) update(p firmware.Progress) {
	t.last = p
	n, ok := flashPhaseStep[p.Phase]
	if !ok {
		return
	}
	if n != t.current {
		t.completeUpTo(n)
		t.current = n
		t.onStep(n, "", ui.StepRunning, "")
	}
	if p.Phase == firmware.PhaseWriting {
		t.runner.ReportProgress(p.Percentage/100, fmt.Sprintf("block %d/%d", p.CurrentBlock, p.TotalBlocks))
	}
}

// completeUpTo closes the running step and skips the ones the updater
// passed over, such as the bank read in blind mode.
func (t *phaseTracker) completeUpTo(next int) {
	for n := t.current; n < next; n++ {
		if n == 0 {
			continue
		}
		if n == t.current {
			t.onStep(n, "", ui.StepComplete, t.message(n))
		} else {
			t.onStep(n, "", ui.StepSkipped, "")
		}
	}
}

func (t *phaseTracker) message(step int) string {
	if step == flashPhaseStep[firmware.PhaseWriting] {
		msg := fmt.Sprintf("%d blocks, %d bytes", t.last.CurrentBlock, t.last.BytesWritten)
		if t.last.Retries > 0 {
			msg += fmt.Sprintf(", %d retries", t.last.Retries)
		}
		return msg
	}
	return ""
}

func (t *phaseTracker) fail(err error) {
	if t.current > 0 {
		t.onStep(t.current, "", ui.StepFailed, err.Error())
	}
}

func (t *phaseTracker) finish() {
	t.completeUpTo(len(flashSteps) + 1)
}
