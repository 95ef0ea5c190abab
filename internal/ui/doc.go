// Package ui provides terminal output components for the midiboot CLI.
//
// Most of it follows a "run once and exit" pattern: Lipgloss renders
// headers, step lists and result boxes. Two things wait for the keyboard:
// the confirmation prompt before a firmware update, and the Bubble Tea port
// picker behind "midiboot select".
//
// # Components
//
//   - Header: command banner with the operation name and parameters
//   - Progress: progress bar and step list
//   - Result: success, failure and warning boxes
//   - Trace: SysEx frames exchanged with the device, for verbose mode
//   - Bank table: the code banks reported by the boot loader
//   - PickerModel: serial ports and network bridges to choose from
//
// A Runner ties them together for one device command:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:      "Enter Boot Mode",
//	    Command:    "midiboot enter-boot",
//	    Params:     map[string]string{"Port": "/dev/ttyUSB0"},
//	    TotalSteps: 2,
//	    Verbose:    verbose,
//	})
//	runner.SetTrace(trace)
//
//	err := runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) error {
//	    onStep(1, "Identifying device", ui.StepRunning, "")
//	    // ...
//	    onStep(1, "Identifying device", ui.StepComplete, "DC-1207")
//	    return nil
//	})
//
// # Logging
//
// zap logging is silent unless MIDIBOOT_LOG_LEVEL is set, so the curated
// output here is not interleaved with log lines.
package ui
