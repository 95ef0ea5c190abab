package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// PortChoice is one entry in the port picker.
type PortChoice struct {
	Target string // Serial device path or bridge URL, as passed to --port
	Label  string // e.g., "USB MIDI Cable" or a bridge instance name
	Detail string // e.g., "blind mode" or "last seen: DC-1207"
	Bridge bool
}

// PortSource lists the ports the picker offers. It may take up to the scan
// timeout to return.
type PortSource func(ctx context.Context) ([]PortChoice, error)

// Picker styles
var (
	pickerTitleStyle = lipgloss.NewStyle().
				Foreground(PrimaryColor).
				Bold(true)

	pickerSubtitleStyle = lipgloss.NewStyle().
				Foreground(MutedColor)

	pickerSelectedStyle = lipgloss.NewStyle().
				Foreground(SuccessColor).
				Bold(true)

	pickerSpinnerStyle = lipgloss.NewStyle().
				Foreground(PrimaryColor)
)

type scanStartMsg struct{}

type scanCompleteMsg struct {
	choices []PortChoice
	err     error
}

// pickerKeyMap defines key bindings for the port list
type pickerKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Rescan key.Binding
	Manual key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k pickerKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Rescan, k.Manual, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k pickerKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter},
		{k.Rescan, k.Manual, k.Quit},
	}
}

// manualKeyMap defines key bindings for manual entry
type manualKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (m manualKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{m.Confirm, m.Cancel}
}

// FullHelp returns keybindings for the expanded help view
func (m manualKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{m.Confirm, m.Cancel}}
}

// portItem wraps a PortChoice for bubbles/list
type portItem struct {
	choice PortChoice
}

func (p portItem) FilterValue() string { return p.choice.Target + " " + p.choice.Label }
func (p portItem) Title() string { return p.choice.Target }
func (p portItem) Description() string { return p.choice.Detail }

// portDelegate renders each port as a small card
type portDelegate struct {
	width int
}

func (d portDelegate) Height() int { return 5 }
func (d portDelegate) Spacing() int { return 0 }
func (d portDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d portDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(portItem)
	if !ok {
		return
	}
	selected := index == m.Index()

	kind := "serial"
	if it.choice.Bridge {
		kind = "bridge"
	}

	var content strings.Builder
	if selected {
		content.WriteString(pickerSelectedStyle.Render("→ " + it.choice.Target))
	} else {
		content.WriteString("  " + it.choice.Target)
	}
	content.WriteString("\n")
	line := kind
	if it.choice.Label != "" {
		line += " • " + it.choice.Label
	}
	if it.choice.Detail != "" {
		line += " • " + it.choice.Detail
	}
	content.WriteString(pickerSubtitleStyle.Render("  " + line))

	cardWidth := d.width - 6
	if cardWidth < MinTerminalWidth-6 {
		cardWidth = MinTerminalWidth - 6
	}
	border := MutedColor
	if selected {
		border = SuccessColor
	}
	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		MarginLeft(2).
		Width(cardWidth)

	_, _ = fmt.Fprint(w, card.Render(content.String()))
}

// PickerModel lets the user choose the MIDI port midiboot uses by default.
type PickerModel struct {
	source      PortSource
	scanTimeout time.Duration

	Scanning  bool
	Ports     list.Model
	Selected  bool
	Cancelled bool
	Err       error

	ManualMode bool
	Input      textinput.Model

	Width       int
	Height      int
	Spinner     spinner.Model
	ProgressBar progress.Model
	ScanStart   time.Time
	Help        help.Model
	Keys        pickerKeyMap
	ManualKeys  manualKeyMap
}

// NewPickerModel creates a picker that lists ports from source.
func NewPickerModel(source PortSource, scanTimeout time.Duration) PickerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = pickerSpinnerStyle

	input := textinput.New()
	input.Placeholder = "/dev/ttyUSB0 or ws://host:7531/sysex"
	input.CharLimit = 256
	input.Width = 40

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40

	width, height := GetTerminalSize()
	ports := list.New([]list.Item{}, portDelegate{width: width}, width-4, max(height-6, 10))
	ports.Title = "MIDI Ports"
	ports.SetShowStatusBar(false)
	ports.SetShowHelp(false)
	ports.SetFilteringEnabled(true)
	ports.Styles.Title = pickerTitleStyle

	keys := pickerKeyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "move up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "move down")),
		Enter:  key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "use this port")),
		Rescan: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
		Manual: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "enter manually")),
		Quit:   key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q", "quit")),
	}
	manualKeys := manualKeyMap{
		Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
		Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}

	return PickerModel{
		source:      source,
		scanTimeout: scanTimeout,
		Ports:       ports,
		Input:       input,
		Width:       width,
		Height:      height,
		Spinner:     s,
		ProgressBar: bar,
		Help:        help.New(),
		Keys:        keys,
		ManualKeys:  manualKeys,
	}
}

func (m PickerModel) scan() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), m.scanTimeout+time.Second)
	defer cancel()
	choices, err := m.source(ctx)
	return scanCompleteMsg{choices: choices, err: err}
}

func (m PickerModel) startScan() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return scanStartMsg{} },
		m.scan,
		m.Spinner.Tick,
	)
}

// Init starts the first scan
func (m PickerModel) Init() tea.Cmd {
	return m.startScan()
}

// Update handles messages and updates the model
func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.ManualMode {
			return m.updateManual(msg)
		}
		return m.updateList(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Ports.SetDelegate(portDelegate{width: msg.Width})
		m.Ports.SetWidth(msg.Width - 4)
		m.Ports.SetHeight(msg.Height - 6)

	case scanStartMsg:
		m.Scanning = true
		m.ScanStart = time.Now()

	case scanCompleteMsg:
		m.Scanning = false
		m.Err = msg.err
		items := make([]list.Item, len(msg.choices))
		for i, c := range msg.choices {
			items[i] = portItem{choice: c}
		}
		cmd = m.Ports.SetItems(items)
		return m, cmd

	case spinner.TickMsg:
		if !m.Scanning {
			return m, nil
		}
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	if !m.ManualMode && !m.Scanning {
		m.Ports, cmd = m.Ports.Update(msg)
	}
	return m, cmd
}

func (m PickerModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.Ports.FilterState() == list.Filtering {
		m.Ports, cmd = m.Ports.Update(msg)
		return m, cmd
	}

	switch {
	case msg.String() == "ctrl+c" || key.Matches(msg, m.Keys.Quit):
		m.Cancelled = true
		return m, tea.Quit

	case m.Scanning:
		return m, nil

	case key.Matches(msg, m.Keys.Enter):
		if m.Ports.SelectedItem() != nil {
			m.Selected = true
			return m, tea.Quit
		}
		return m, nil

	case key.Matches(msg, m.Keys.Rescan):
		m.Err = nil
		return m, tea.Batch(m.Ports.SetItems(nil), m.startScan())

	case key.Matches(msg, m.Keys.Manual):
		m.ManualMode = true
		m.Input.SetValue("")
		return m, m.Input.Focus()
	}

	m.Ports, cmd = m.Ports.Update(msg)
	return m, cmd
}

func (m PickerModel) updateManual(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c" || key.Matches(msg, m.ManualKeys.Cancel):
		m.ManualMode = false
		m.Input.Blur()
		return m, nil

	case key.Matches(msg, m.ManualKeys.Confirm):
		value := strings.TrimSpace(m.Input.Value())
		if value == "" {
			return m, nil
		}
		choice := PortChoice{Target: value, Label: "entered manually"}
		choice.Bridge = strings.HasPrefix(value, "ws://") || strings.HasPrefix(value, "wss://")
		items := append([]list.Item{portItem{choice: choice}}, m.Ports.Items()...)
		cmd := m.Ports.SetItems(items)
		m.Ports.Select(0)
		m.ManualMode = false
		m.Input.Blur()
		return m, cmd
	}

	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	return m, cmd
}

// View renders the picker
func (m PickerModel) View() string {
	width := m.Width
	if width == 0 {
		width = MinTerminalWidth
	}

	var content, helpText string
	switch {
	case m.ManualMode:
		content = m.renderManual()
		helpText = m.Help.View(m.ManualKeys)
	case m.Scanning:
		content = m.renderScanning(width)
		helpText = m.Help.View(m.Keys)
	default:
		content = m.renderResults()
		helpText = m.Help.View(m.Keys)
	}

	return lipgloss.JoinVertical(lipgloss.Left, content, "", "  "+helpText)
}

func (m PickerModel) renderScanning(width int) string {
	elapsed := time.Since(m.ScanStart)
	pct := 1.0
	if m.scanTimeout > 0 {
		pct = min(1, elapsed.Seconds()/m.scanTimeout.Seconds())
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		pickerTitleStyle.Render(m.Spinner.View()+" LOOKING FOR MIDI PORTS"),
		"",
		pickerSubtitleStyle.Render("Listing serial ports and scanning the network for bridges..."),
		"",
		m.ProgressBar.ViewAs(pct),
		"",
	)
	return lipgloss.Place(width, 0, lipgloss.Center, lipgloss.Top, content)
}

func (m PickerModel) renderResults() string {
	var b strings.Builder
	b.WriteString("\n")

	if m.Err != nil {
		b.WriteString(ErrorMessageStyle.Render(fmt.Sprintf("  Scan failed: %v", m.Err)))
		b.WriteString("\n\n")
	}
	if len(m.Ports.Items()) == 0 {
		b.WriteString("  " + WarningTitleStyle.Render(WarningMarker+" No MIDI ports found"))
		b.WriteString("\n\n")
		b.WriteString("  Troubleshooting:\n")
		b.WriteString("    • Plug in the MIDI interface and press 'r' to rescan\n")
		b.WriteString("    • Start midiboot-bridge on the machine the device is cabled to\n")
		b.WriteString("    • Press 'm' to type a port or bridge URL\n")
		return b.String()
	}

	b.WriteString(m.Ports.View())
	return b.String()
}

func (m PickerModel) renderManual() string {
	var b strings.Builder
	b.WriteString(pickerSubtitleStyle.Render("  Enter a serial port or bridge URL"))
	b.WriteString("\n\n  Port: ")
	b.WriteString(m.Input.View())
	b.WriteString("\n")
	return b.String()
}

// Choice returns the selected port, if the user picked one.
func (m PickerModel) Choice() (PortChoice, bool) {
	if !m.Selected {
		return PortChoice{}, false
	}
	if it, ok := m.Ports.SelectedItem().(portItem); ok {
		return it.choice, true
	}
	return PortChoice{}, false
}

// PickPort runs the picker full screen and returns the chosen port.
func PickPort(source PortSource, scanTimeout time.Duration) (PortChoice, bool, error) {
	final, err := tea.NewProgram(NewPickerModel(source, scanTimeout), tea.WithAltScreen()).Run()
	if err != nil {
		return PortChoice{}, false, err
	}
	choice, ok := final.(PickerModel).Choice()
	return choice, ok, nil
}
