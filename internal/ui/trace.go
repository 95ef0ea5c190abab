package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// DefaultTraceLines bounds how many frames a Trace keeps.
const DefaultTraceLines = 200

// Trace collects the SysEx frames exchanged during a command and renders
// them in a box for verbose mode. Record is safe for concurrent use, so a
// Trace can be installed directly as a port monitor.
type Trace struct {
	Title    string // e.g., "SysEx Trace"
	Width    int    // Terminal width
	MaxLines int    // Maximum lines to keep (0 = unlimited)

	mu      sync.Mutex
	start   time.Time
	lines   []string
	dropped int
}

// NewTrace creates an empty trace
func NewTrace() *Trace {
	return &Trace{
		Title:    "SysEx Trace",
		Width:    GetTerminalWidth(),
		MaxLines: DefaultTraceLines,
		start:    time.Now(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (t *Trace) SetWidth(width int) *Trace {
	t.Width = width
	return t
}

// SetTitle sets a custom title for the box
func (t *Trace) SetTitle(title string) *Trace {
	t.Title = title
	return t
}

// SetMaxLines limits the number of frames kept. The oldest frames are
// discarded first.
func (t *Trace) SetMaxLines(max int) *Trace {
	t.MaxLines = max
	return t
}

// Record appends one frame. direction is "in" or "out".
func (t *Trace) Record(direction string, data []byte) {
	arrow := "<-"
	if direction == "out" {
		arrow = "->"
	}
	t.add(fmt.Sprintf("%s % X", arrow, data))
}

// Note appends a free-form line, e.g. a phase marker.
func (t *Trace) Note(text string) {
	t.add("   " + text)
}

func (t *Trace) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.start)
	t.lines = append(t.lines, fmt.Sprintf("%7.3fs %s", elapsed.Seconds(), line))
	if t.MaxLines > 0 && len(t.lines) > t.MaxLines {
		n := len(t.lines) - t.MaxLines
		t.lines = t.lines[n:]
		t.dropped += n
	}
}

// Lines returns a copy of the recorded lines
func (t *Trace) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lines...)
}

// Len returns the number of lines currently held
func (t *Trace) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lines)
}

// FilterPrefix returns the recorded lines whose frame starts with one of the
// given hex prefixes, e.g. "F0 00 01 55 42 0C".
func (t *Trace) FilterPrefix(prefixes ...string) []string {
	var filtered []string
	for _, line := range t.Lines() {
		frame := line
		if i := strings.Index(line, "F0"); i >= 0 {
			frame = line[i:]
		}
		for _, prefix := range prefixes {
			if strings.HasPrefix(frame, strings.ToUpper(prefix)) {
				filtered = append(filtered, line)
				break
			}
		}
	}
	return filtered
}

// Render returns the styled trace box as a string
func (t *Trace) Render() string {
	width := t.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	t.mu.Lock()
	lines := append([]string(nil), t.lines...)
	dropped := t.dropped
	t.mu.Unlock()

	if dropped > 0 {
		lines = append([]string{fmt.Sprintf("... (%d earlier frames not shown)", dropped)}, lines...)
	}
	if len(lines) == 0 {
		lines = []string{"(no frames)"}
	}

	titleStyled := TraceTitleStyle.Render(t.Title)
	contentStyled := TraceContentStyle.Render(strings.Join(lines, "\n"))
	inner := lipgloss.JoinVertical(lipgloss.Left, titleStyled, "", contentStyled)

	boxWidth := width - 4
	if boxWidth < 40 {
		boxWidth = 40
	}

	return TraceBoxStyle(boxWidth + 4).
		MarginLeft(2).
		Render(inner)
}

// String implements fmt.Stringer
func (t *Trace) String() string {
	return t.Render()
}
