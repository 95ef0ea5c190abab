package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Printer writes UI components to a writer at a fixed width.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// Width returns the current terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// PrintTrace prints a SysEx trace box
func (p *Printer) PrintTrace(trace *Trace) {
	p.Println(trace.SetWidth(p.width).Render())
}

// PrintBankTable prints the code bank table reported by the boot loader
func (p *Printer) PrintBankTable(banks []BankRow) {
	p.Println(RenderBankTable(banks, p.width))
}

// BankRow is one line of the code bank table
type BankRow struct {
	Index   int
	Valid   bool
	Version string
	Size    uint32
	Active  bool
}

// RenderBankTable renders the code bank table for the info command
func RenderBankTable(banks []BankRow, width int) string {
	var lines []string

	lines = append(lines, TraceTitleStyle.Render("Code Banks"))
	lines = append(lines, "")

	for _, bank := range banks {
		label := ResultKeyStyle.Render(fmt.Sprintf("Bank %d", bank.Index))
		if !bank.Valid {
			lines = append(lines, label+"  "+TroubleshootingItemStyle.Render("invalid"))
			continue
		}
		line := fmt.Sprintf("%s  %s  %s",
			label,
			ResultValueStyle.Render("v"+bank.Version),
			ResultValueStyle.Render(fmt.Sprintf("%d bytes (0x%x)", bank.Size, bank.Size)),
		)
		if bank.Active {
			line += "  " + SuccessTitleStyle.Render(SuccessMarker+" active")
		}
		lines = append(lines, line)
	}

	return TraceBoxStyle(width).Render(strings.Join(lines, "\n"))
}
