// ABOUTME: Bubbletea model for the tone player TUI
// ABOUTME: Defines application state and update logic
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const volumeStep = 5

// Model represents the TUI state
type Model struct {
	// Stream
	backend    string
	state      string
	sampleRate int
	channels   int
	bufferSize int
	frequency  float64

	// Playback
	volume int
	muted  bool

	// Stats
	callbacks  uint64
	frames     uint64
	late       uint64
	counter    uint64
	lastRender time.Duration
	errText    string

	// Runtime
	goroutines int
	memAlloc   uint64
	memSys     uint64

	showDebug  bool
	volumeCtrl *VolumeControl

	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString(m.renderStreamInfo())
	b.WriteString(m.renderControls())
	b.WriteString(m.renderStats())

	if m.showDebug {
		b.WriteString(m.renderDebug())
	}

	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderHeader() string {
	status := m.state
	if m.errText != "" {
		status = "failed: " + m.errText
	}

	return fmt.Sprintf(`┌─ sinetone ───────────────────────────────────────────┐
│ Output: %-44s │
│ State:  %-44s │
├──────────────────────────────────────────────────────┤
`, truncate(m.backend, 44), truncate(status, 44))
}

func (m Model) renderStreamInfo() string {
	if m.sampleRate == 0 {
		return "│ No stream                                            │\n"
	}

	format := fmt.Sprintf("%dHz %s float32", m.sampleRate, channelName(m.channels))
	tone := fmt.Sprintf("%.1fHz sine", m.frequency)
	buffer := fmt.Sprintf("%d frames (%.1fms)", m.bufferSize, m.periodMs())

	return fmt.Sprintf("│ Format: %-44s │\n│ Tone:   %-44s │\n│ Buffer: %-44s │\n",
		format, tone, buffer)
}

func (m Model) renderControls() string {
	volume := fmt.Sprintf("[%s] %d%%", renderBar(m.volume, 100, 10), m.volume)
	if m.muted {
		volume += " (muted)"
	}

	return fmt.Sprintf("│                                                      │\n"+
		"│ Volume: %-44s │\n", volume)
}

func (m Model) renderStats() string {
	line := fmt.Sprintf("Callbacks: %d  Frames: %d  Late: %d", m.callbacks, m.frames, m.late)
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ %-52s │
│                                                      │
`, truncate(line, 52))
}

func (m Model) renderHelp() string {
	return `│ ↑/↓:Volume  m:Mute  d:Debug  q:Quit                  │
└──────────────────────────────────────────────────────┘
`
}

func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Oscillator x: %-36d │
│   Last render:  %-36s │
│   Goroutines:   %-36d │
│   Memory:       %-36s │
`, m.counter, m.lastRender, m.goroutines,
		fmt.Sprintf("%.1fMB alloc / %.1fMB sys", mb(m.memAlloc), mb(m.memSys)))
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.volumeCtrl != nil {
			select {
			case m.volumeCtrl.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "up":
		m.volume = min(m.volume+volumeStep, 100)
		m.sendVolume()
	case "down":
		m.volume = max(m.volume-volumeStep, 0)
		m.sendVolume()
	case "m":
		m.muted = !m.muted
		m.sendVolume()
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// sendVolume publishes the current volume without blocking the UI
func (m Model) sendVolume() {
	if m.volumeCtrl == nil {
		return
	}
	select {
	case m.volumeCtrl.Changes <- VolumeChangeMsg{Volume: m.volume, Muted: m.muted}:
	default:
	}
}

func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Backend != "" {
		m.backend = msg.Backend
	}
	if msg.State != "" {
		m.state = msg.State
	}
	if msg.SampleRate != 0 {
		m.sampleRate = msg.SampleRate
		m.channels = msg.Channels
		m.bufferSize = msg.BufferSize
	}
	if msg.Frequency != 0 {
		m.frequency = msg.Frequency
	}
	if msg.Volume != 0 {
		m.volume = msg.Volume
	}
	if msg.Callbacks != 0 {
		m.callbacks = msg.Callbacks
		m.frames = msg.Frames
		m.late = msg.Late
		m.counter = msg.Counter
		m.lastRender = msg.LastRender
	}
	if msg.Err != "" {
		m.errText = msg.Err
	}
	if msg.Goroutines != 0 {
		m.goroutines = msg.Goroutines
		m.memAlloc = msg.MemAlloc
		m.memSys = msg.MemSys
	}
}

func (m Model) periodMs() float64 {
	if m.sampleRate == 0 {
		return 0
	}
	return float64(m.bufferSize) * 1000 / float64(m.sampleRate)
}

// StatusMsg updates TUI state. Zero fields leave the current value unchanged.
type StatusMsg struct {
	Backend    string
	State      string
	SampleRate int
	Channels   int
	BufferSize int
	Frequency  float64
	Volume     int
	Callbacks  uint64
	Frames     uint64
	Late       uint64
	Counter    uint64
	LastRender time.Duration
	Err        string
	Goroutines int
	MemAlloc   uint64
	MemSys     uint64
}

func renderBar(value, max, width int) string {
	filled := (value * width) / max
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func channelName(channels int) string {
	switch channels {
	case 1:
		return "Mono"
	case 2:
		return "Stereo"
	default:
		return fmt.Sprintf("%dch", channels)
	}
}

func mb(b uint64) float64 {
	return float64(b) / (1024 * 1024)
}
