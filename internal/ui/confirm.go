package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ConfirmPhrase is what the user must type to confirm a dangerous operation.
const ConfirmPhrase = "I AGREE"

// ConfirmDangerousOperation displays a warning box and prompts the user to type
// "I AGREE" to proceed with a dangerous operation. Returns true if the user
// confirmed, false otherwise.
func ConfirmDangerousOperation(title string, warnings []string, disclaimer string) bool {
	return ConfirmDangerousOperationIO(os.Stdin, os.Stdout, title, warnings, disclaimer)
}

// ConfirmDangerousOperationIO is ConfirmDangerousOperation reading the answer
// from in and writing the prompt to out.
func ConfirmDangerousOperationIO(in io.Reader, out io.Writer, title string, warnings []string, disclaimer string) bool {
	width := GetTerminalWidth()

	lines := []string{"", WarningTitleStyle.Render(fmt.Sprintf("   %s  WARNING  ─  %s", WarningMarker, title)), ""}
	for _, warning := range warnings {
		lines = append(lines, ResultValueStyle.Render("   • "+warning))
	}
	lines = append(lines, "")

	if disclaimer != "" {
		disclaimerStyle := StepNoteStyle.
			Width(width - 12).
			PaddingLeft(3)
		lines = append(lines, disclaimerStyle.Render(disclaimer), "")
	}

	box := WarningBoxStyle(width).Render(strings.Join(lines, "\n"))
	_, _ = fmt.Fprintln(out, box)
	_, _ = fmt.Fprintln(out)

	// Prompt for confirmation
	_, _ = fmt.Fprint(out, WarningTitleStyle.Render(fmt.Sprintf("To proceed, type %q and press Enter: ", ConfirmPhrase)))

	// Read user input
	reader := bufio.NewReader(in)
	input, err := reader.ReadString('\n')
	if err != nil {
		_, _ = fmt.Fprintln(out)
		return false
	}

	input = strings.TrimSpace(input)
	if input == ConfirmPhrase {
		_, _ = fmt.Fprintln(out)
		return true
	}

	// User did not agree
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, StepPendingStyle.Render("  Operation cancelled."))
	_, _ = fmt.Fprintln(out)
	return false
}

// FirmwareUpdateConfirmation is a pre-configured confirmation for writing a
// firmware image over MIDI. bank is the code bank that will be activated
// afterwards, or negative when the device keeps its current selection.
func FirmwareUpdateConfirmation(image string, blocks int, bank int) bool {
	warnings := []string{
		fmt.Sprintf("This will send %d firmware blocks from %s to the device", blocks, image),
		"Keep the MIDI cable connected and the device powered until the update completes",
		"Do not run other MIDI software that talks to this port during the update",
	}
	if bank >= 0 {
		warnings = append(warnings, fmt.Sprintf("Code bank %d will be made active before leaving boot mode", bank))
	}
	return ConfirmDangerousOperation(
		"FIRMWARE UPDATE",
		warnings,
		"DISCLAIMER: This software is provided as-is, without warranty of any kind. "+
			"The authors accept no responsibility for any damage to your device. "+
			"An interrupted update normally leaves the boot loader usable, so the "+
			"update can be repeated, but this is not guaranteed for every model.",
	)
}
