package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// DefaultTroubleshooting lists the tips shown when a device command fails.
var DefaultTroubleshooting = []string{
	"Check the MIDI cable is connected in both directions",
	"Make sure no other program has the MIDI port open",
	"Try --blind for USB-MIDI interfaces that cut long SysEx messages",
	"Try --throttle 40ms if the device misses messages",
	"Run with --verbose for the full SysEx trace",
}

// RunnerConfig holds configuration for a device command execution
type RunnerConfig struct {
	Title           string               // Command title (e.g., "Firmware Update")
	Command         string               // Full command (e.g., "midiboot flash")
	Params          map[string]string    // Parameters to display in header
	TotalSteps      int                  // Total number of steps (for progress)
	StepNames       []string             // Names for each step
	Verbose         bool                 // Whether to show the SysEx trace
	Troubleshooting []string             // Tips shown on failure (default: DefaultTroubleshooting)
	Advise          func(error) []string // Picks tips for a specific error, falling back to Troubleshooting
	Output          io.Writer            // Output writer (default: os.Stdout)
}

// Runner orchestrates the UI for a device command execution.
// It manages the header, progress and result flow and provides
// callbacks for reporting progress.
type Runner struct {
	config    RunnerConfig
	header    *Header
	progress  *Progress
	output    io.Writer
	trace     *Trace
	startTime time.Time
	width     int
}

// NewRunner creates a new runner for a device command
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Troubleshooting == nil {
		config.Troubleshooting = DefaultTroubleshooting
	}

	width := GetTerminalWidth()

	header := NewHeader(config.Title, config.Command, config.Params)
	header.SetWidth(width)

	var progress *Progress
	if config.TotalSteps > 0 {
		progress = NewProgress(config.TotalSteps)
		progress.SetWidth(width)
		if len(config.StepNames) > 0 {
			progress.SetStepNames(config.StepNames)
		}
	}

	return &Runner{
		config:   config,
		header:   header,
		progress: progress,
		output:   config.Output,
		width:    width,
	}
}

// Operation is the function signature for the actual device operation.
// The operation receives a StepCallback to report progress.
type Operation func(ctx context.Context, onStep StepCallback) error

// Run executes the operation with UI updates.
// It displays the header, tracks progress, and shows the result.
func (r *Runner) Run(ctx context.Context, operation Operation) error {
	_, err := r.RunWithResult(ctx, func(ctx context.Context, onStep StepCallback) (map[string]string, error) {
		return nil, operation(ctx, onStep)
	})
	return err
}

// RunWithResult executes the operation and shows the details it returns in
// the success box.
func (r *Runner) RunWithResult(ctx context.Context, operation func(ctx context.Context, onStep StepCallback) (map[string]string, error)) (map[string]string, error) {
	r.startTime = time.Now()

	_, _ = fmt.Fprintln(r.output, r.header.Render())
	_, _ = fmt.Fprintln(r.output)

	details, err := operation(ctx, r.createStepCallback())
	duration := time.Since(r.startTime)

	if err != nil {
		r.printFailure(err, duration)
	} else {
		r.printSuccess(details, duration)
	}

	return details, err
}

// ReportProgress redraws the progress bar in place. Commands with a long
// running step call it as the step advances.
func (r *Runner) ReportProgress(percent float64, detail string) {
	if r.progress == nil {
		return
	}
	r.progress.SetPercent(percent, detail)
	_, _ = fmt.Fprint(r.output, r.progress.renderBar()+"\r")
}

// SetTrace attaches the SysEx trace shown in verbose mode
func (r *Runner) SetTrace(trace *Trace) {
	r.trace = trace
}

// createStepCallback creates the step callback function
func (r *Runner) createStepCallback() StepCallback {
	return func(stepNumber int, name string, status StepStatus, message string) {
		if r.progress == nil || stepNumber < 1 || stepNumber > len(r.progress.Steps) {
			return
		}

		if name != "" {
			r.progress.Steps[stepNumber-1].Name = name
		}

		r.progress.UpdateStep(stepNumber, status, message)

		step := r.progress.Steps[stepNumber-1]
		switch status {
		case StepComplete, StepFailed, StepSkipped:
			_, _ = fmt.Fprintln(r.output, r.progress.renderStepLine(step))
		case StepRunning:
			// Overwritten when the step finishes.
			_, _ = fmt.Fprint(r.output, r.progress.renderStepLine(step)+"\r")
		}
	}
}

func (r *Runner) printSuccess(details map[string]string, duration time.Duration) {
	_, _ = fmt.Fprintln(r.output)

	if details == nil {
		details = make(map[string]string)
	}
	details["Duration"] = duration.Round(time.Millisecond).String()

	result := NewSuccessResult(r.config.Title+" complete", details)
	result.SetWidth(r.width)
	_, _ = fmt.Fprintln(r.output, result.Render())

	r.printTrace()
}

func (r *Runner) printFailure(err error, duration time.Duration) {
	_, _ = fmt.Fprintln(r.output)

	tips := r.config.Troubleshooting
	if r.config.Advise != nil {
		if advice := r.config.Advise(err); len(advice) > 0 {
			tips = advice
		}
	}
	result := NewFailureResult(r.config.Title+" failed", err, tips)
	result.SetWidth(r.width)
	_, _ = fmt.Fprintln(r.output, result.Render())

	r.printTrace()
}

func (r *Runner) printTrace() {
	if !r.config.Verbose || r.trace == nil {
		return
	}
	_, _ = fmt.Fprintln(r.output)
	NewPrinter(r.output).PrintTrace(r.trace)
}

// --- Simple helper functions for commands that don't need a full Runner ---

// PrintSuccess prints a styled success result
func PrintSuccess(title string, details map[string]string) {
	width := GetTerminalWidth()
	result := NewSuccessResult(title, details)
	result.SetWidth(width)
	fmt.Println()
	fmt.Println(result.Render())
}

// PrintFailure prints a styled failure result
func PrintFailure(title string, err error, troubleshooting []string) {
	width := GetTerminalWidth()
	result := NewFailureResult(title, err, troubleshooting)
	result.SetWidth(width)
	fmt.Println()
	fmt.Println(result.Render())
}

// PrintWarning prints a styled warning result
func PrintWarning(title string, details map[string]string) {
	width := GetTerminalWidth()
	result := NewWarningResult(title, details)
	result.SetWidth(width)
	fmt.Println()
	fmt.Println(result.Render())
}
