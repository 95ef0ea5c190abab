package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// StepStatus represents the current state of a step
type StepStatus int

const (
	StepPending  StepStatus = iota // Not yet started
	StepRunning                    // Currently executing
	StepComplete                   // Successfully completed
	StepFailed                     // Failed
	StepSkipped                    // Passed over, e.g. bank read in blind mode
)

// Step represents a single step in a multi-step device command
type Step struct {
	Number  int        // Step number (1-based)
	Name    string     // Step description
	Status  StepStatus // Current status
	Message string     // Optional note (e.g., "DC-1207", "412 blocks")
}

// Progress tracks the steps of a device command and the fill of the bar.
// The bar follows step completion unless a step reports its own fraction
// with SetPercent, as the firmware write does per block.
type Progress struct {
	Steps   []Step
	Current int     // Running step (1-based)
	Percent float64 // 0.0 - 1.0
	Detail  string  // Shown after the bar, e.g. "block 12/412"
	Width   int
	bar     progress.Model
}

// NewProgress creates a progress tracker for totalSteps steps
func NewProgress(totalSteps int) *Progress {
	steps := make([]Step, totalSteps)
	for i := range steps {
		steps[i] = Step{Number: i + 1}
	}
	p := &Progress{Steps: steps}
	return p.SetWidth(GetTerminalWidth())
}

// SetWidth sizes the bar to the terminal, between 20 and 50 cells
func (p *Progress) SetWidth(width int) *Progress {
	p.Width = width
	barWidth := min(max(width-30, 20), 50)
	p.bar = progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barWidth),
	)
	return p
}

// SetStepNames sets the names for all steps
func (p *Progress) SetStepNames(names []string) *Progress {
	for i, name := range names {
		if i < len(p.Steps) {
			p.Steps[i].Name = name
		}
	}
	return p
}

// UpdateStep updates a step's status and note. Finishing a step moves the
// bar to the fraction of steps done.
func (p *Progress) UpdateStep(stepNumber int, status StepStatus, message string) {
	if stepNumber < 1 || stepNumber > len(p.Steps) {
		return
	}
	p.Steps[stepNumber-1].Status = status
	p.Steps[stepNumber-1].Message = message

	switch status {
	case StepRunning:
		p.Current = stepNumber
		p.Detail = ""
	case StepComplete, StepFailed, StepSkipped:
		done := 0
		for _, s := range p.Steps {
			if s.Status == StepComplete || s.Status == StepSkipped {
				done++
			}
		}
		p.Percent = float64(done) / float64(len(p.Steps))
	}
}

// SetPercent moves the bar within the running step (0.0 - 1.0).
func (p *Progress) SetPercent(percent float64, detail string) {
	p.Percent = min(max(percent, 0), 1)
	p.Detail = detail
}

// renderBar renders "  <bar>  42%  [3/5] block 12/412"
func (p *Progress) renderBar() string {
	line := fmt.Sprintf("%s  %3.0f%%  [%d/%d]", p.bar.ViewAs(p.Percent), p.Percent*100, p.Current, len(p.Steps))
	if p.Detail != "" {
		line += " " + StepNoteStyle.Render(p.Detail)
	}
	return lipgloss.NewStyle().PaddingLeft(2).Render(line)
}

// renderStepLine renders "  [2/5] Reading code banks        ✓  (note)"
func (p *Progress) renderStepLine(step Step) string {
	var marker string
	var style lipgloss.Style
	switch step.Status {
	case StepComplete:
		marker, style = StepMarkerComplete, StepCompleteStyle
	case StepRunning:
		marker, style = StepMarkerRunning, StepRunningStyle
	case StepFailed:
		marker, style = FailureMarker, ErrorTitleStyle
	case StepSkipped:
		marker, style = StepMarkerSkipped, StepPendingStyle
	default:
		marker, style = StepMarkerPending, StepPendingStyle
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  [%d/%d] ", step.Number, len(p.Steps))
	b.WriteString(style.Render(step.Name))
	b.WriteString(strings.Repeat(" ", max(stepNameColumn-lipgloss.Width(step.Name), 1)))
	b.WriteString(style.Render(marker))
	if step.Message != "" {
		b.WriteString("  ")
		b.WriteString(StepNoteStyle.Render("(" + step.Message + ")"))
	}
	return b.String()
}

// Markers line up at this column
const stepNameColumn = 40

// StepCallback is the function signature for step progress updates.
// Commands call this to report progress.
type StepCallback func(stepNumber int, name string, status StepStatus, message string)
