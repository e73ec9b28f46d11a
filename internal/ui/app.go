package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"stemgrid/api"
	"stemgrid/internal/audio"
	"stemgrid/internal/beatgrid"
	"stemgrid/pkg/events"
)

// soloKeys are shift+1..6, mirroring the mute keys 1..6.
const soloKeys = "!@#$%^"

// TickMsg drives the position poll. The tick loop is the only reader
// of the engine's current time.
type TickMsg time.Time

// EventMsg carries one engine event bridged off the bus.
type EventMsg api.AudioEvent

// Model is the main bubbletea model
type Model struct {
	engine   *audio.Engine
	events   <-chan api.AudioEvent
	interval time.Duration
	pinned   api.StemName

	width  int
	height int
	notice string
	err    error

	// Styles
	titleStyle  lipgloss.Style
	statusStyle lipgloss.Style
	dimStyle    lipgloss.Style
	cellStyle   lipgloss.Style
	activeCell  lipgloss.Style
	pinnedCell  lipgloss.Style
	mutedStyle  lipgloss.Style
	soloStyle   lipgloss.Style
	pinStyle    lipgloss.Style
	borderStyle lipgloss.Style
}

// NewModel creates the application model polling the engine at the
// given frame interval. Engine events arrive through bus (nil for
// poll-only operation); pinned preselects the highlighted instrument.
func NewModel(engine *audio.Engine, bus *events.EventBus, interval time.Duration, pinned api.StemName) Model {
	m := Model{
		engine:   engine,
		interval: interval,
		pinned:   pinned,
		width:    80,
		height:   24,
		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		statusStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true),
		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		cellStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		activeCell: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57")),
		pinnedCell: lipgloss.NewStyle().
			Foreground(lipgloss.Color("81")),
		mutedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),
		soloStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")),
		pinStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("81")),
		borderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2),
	}
	if bus != nil {
		m.events = bus.SubscribeAll()
	}
	return m
}

// Pinned returns the currently pinned instrument, for persistence.
func (m Model) Pinned() api.StemName {
	return m.pinned
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// waitEvent blocks on the bus channel and resolves to the next engine
// event. The command re-arms itself from Update.
func (m Model) waitEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	ch := m.events
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return EventMsg(ev)
	}
}

// Init starts the poll loop and the event bridge
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.waitEvent())
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		return m, m.tick()

	case EventMsg:
		return m.handleEvent(api.AudioEvent(msg)), m.waitEvent()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleEvent(ev api.AudioEvent) Model {
	switch ev.Type {
	case api.EventTrackEnded:
		m.notice = "track ended"
	case api.EventLoadFailed:
		if err, ok := ev.Payload.(error); ok {
			m.err = err
		}
	case api.EventStateChange:
		if status, ok := ev.Payload.(api.PlaybackStatus); ok && status == api.StatusPlaying {
			m.notice = ""
		}
	}
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ":
		m.engine.Toggle()
	case "right":
		m.engine.SkipForward()
	case "left":
		m.engine.SkipBackward()
	case "u":
		m.engine.UnmuteAll()
	case "p":
		m.pinned = nextPin(m.stems(), m.pinned)
	default:
		// Number keys follow the channel strip: loaded stems only.
		stems := m.stems()
		if len(key) == 1 {
			if i := strings.IndexByte("123456", key[0]); i >= 0 && i < len(stems) {
				m.engine.ToggleMute(stems[i])
			} else if i := strings.IndexByte(soloKeys, key[0]); i >= 0 && i < len(stems) {
				m.engine.Solo(stems[i])
			}
		}
	}
	return m, nil
}

func (m Model) stems() []api.StemName {
	if stems := m.engine.Stems(); len(stems) > 0 {
		return stems
	}
	return api.AllStems()
}

// nextPin cycles through stems: none, each stem in strip order, none.
func nextPin(stems []api.StemName, current api.StemName) api.StemName {
	if current == "" {
		if len(stems) == 0 {
			return ""
		}
		return stems[0]
	}
	for i, stem := range stems {
		if stem == current && i+1 < len(stems) {
			return stems[i+1]
		}
	}
	return ""
}

// pinnedSlots marks the cycle's slots where the pinned instrument is
// active. Each bar of the pair maps onto its half of the grid.
func pinnedSlots(grid api.InstrumentGrid, pos api.GridPosition, pinned api.StemName) [beatgrid.CycleSlots]bool {
	var slots [beatgrid.CycleSlots]bool
	if pinned == "" || pos.BarIndex < 0 {
		return slots
	}
	half := beatgrid.CycleSlots / 2
	firstBar := pos.BarIndex - pos.BarIndex%2
	for b := 0; b < 2; b++ {
		idx := firstBar + b
		if idx >= len(grid.Bars) {
			break
		}
		for _, inst := range grid.Bars[idx].Instruments {
			if inst.Instrument != string(pinned) {
				continue
			}
			for s, cell := range inst.Beats {
				if s >= half {
					break
				}
				if cell.Active {
					slots[b*half+s] = true
				}
			}
		}
	}
	return slots
}

// View renders the player and the subdivision grid
func (m Model) View() string {
	var sb strings.Builder

	title := m.engine.Title()
	if title == "" {
		title = "Untitled session"
	}

	statusIcon := "⏸"
	if m.engine.IsPlaying() {
		statusIcon = "▶"
	}
	if m.engine.Status() == api.StatusLoading {
		statusIcon = "⏳"
	}

	sb.WriteString(m.statusStyle.Render(statusIcon+" ") + m.titleStyle.Render(title))
	sb.WriteString("\n")
	sb.WriteString(m.dimStyle.Render(fmt.Sprintf("%s / %s",
		formatTime(m.engine.CurrentTime()), formatTime(m.engine.Duration()))))
	if m.notice != "" {
		sb.WriteString("  " + m.statusStyle.Render(m.notice))
	}
	if m.err != nil {
		sb.WriteString("  " + m.mutedStyle.Render(m.err.Error()))
	}
	sb.WriteString("\n\n")

	pos := m.engine.GridPosition()
	var pinActive [beatgrid.CycleSlots]bool
	if result := m.engine.Result(); result != nil {
		pinActive = pinnedSlots(result.InstrumentGrid, pos, m.pinned)
	}
	sb.WriteString(m.renderReadout(pos))
	sb.WriteString("\n")
	sb.WriteString(m.renderGrid(pos, pinActive))
	sb.WriteString("\n\n")
	sb.WriteString(m.renderChannelStrip())
	sb.WriteString("\n")
	sb.WriteString(m.dimStyle.Render("space play/pause · ←/→ skip · 1-6 mute · shift+1-6 solo · u unmute all · p pin · q quit"))

	return m.borderStyle.Render(sb.String())
}

func (m Model) renderReadout(pos api.GridPosition) string {
	if pos.BeatIndex < 0 {
		return m.dimStyle.Render("— waiting for the first beat —")
	}
	return m.dimStyle.Render(fmt.Sprintf("cycle %d · bar %d · beat %d",
		pos.Cycle+1, pos.BarIndex+1, pos.BeatNum))
}

// renderGrid draws the 16-slot eighth-note cycle with the current slot
// highlighted and the pinned instrument's hits tinted. Odd slots are
// the "&" off-beats.
func (m Model) renderGrid(pos api.GridPosition, pinActive [beatgrid.CycleSlots]bool) string {
	cells := make([]string, 0, beatgrid.CycleSlots)
	for i := 0; i < beatgrid.CycleSlots; i++ {
		label := fmt.Sprintf("%d", i/2+1)
		if i%2 == 1 {
			label = "&"
		}
		cell := " " + label + " "
		switch {
		case pos.BeatIndex >= 0 && i == pos.Subdivision:
			cells = append(cells, m.activeCell.Render(cell))
		case pinActive[i]:
			cells = append(cells, m.pinnedCell.Render(cell))
		default:
			cells = append(cells, m.cellStyle.Render(cell))
		}
	}
	return strings.Join(cells, "")
}

func (m Model) renderChannelStrip() string {
	stems := m.engine.Stems()
	if len(stems) == 0 {
		if m.engine.Mode() == audio.ModeSingleTrack {
			return m.dimStyle.Render("single-track fallback — stems unavailable")
		}
		return ""
	}

	mixer := m.engine.Mixer()
	var sb strings.Builder
	for i, stem := range stems {
		marker := "  "
		switch {
		case mixer.Soloed() == stem:
			marker = m.soloStyle.Render("S ")
		case mixer.Soloed() != "" || mixer.Muted(stem):
			marker = m.mutedStyle.Render("M ")
		}
		name := fmt.Sprintf("%-8s", stem)
		if stem == m.pinned {
			name = m.pinStyle.Render(name)
		}
		sb.WriteString(fmt.Sprintf("%d %s%s", i+1, marker, name))
		if i < len(stems)-1 {
			sb.WriteString("  ")
		}
	}
	return sb.String()
}

func formatTime(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
