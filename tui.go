package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gulddaggi/MindStage/session"
)

// TUI message types
type StateMsg struct{ State session.State }
type QuestionMsg struct {
	Index, Total int
	Followup     bool
}
type CountdownMsg struct{ SecondsLeft int }
type ProgressMsg struct{ Elapsed, Total time.Duration }
type ReplayMsg struct{ Window time.Duration }
type StatusMsg struct{ Text string }
type FatalMsg struct{ Text string }
type DoneMsg struct{}
type tickMsg time.Time

// sessionControls is what the key handlers drive.
type sessionControls interface {
	RequestStop()
	RequestReplay()
	RequestExit()
}

type tuiModel struct {
	controls sessionControls
	level    func() float64

	state         session.State
	question      string
	countdown     int
	elapsed       time.Duration
	answerTotal   time.Duration
	replayWindow  time.Duration
	replayShown   time.Time
	status        string
	fatal         string
	done          bool
	audioLevel    float64
	width, height int
}

func NewTUIProgram(controls sessionControls, level func() float64) *tea.Program {
	m := tuiModel{controls: controls, level: level}
	return tea.NewProgram(m, tea.WithAltScreen())
}

// tuiPresenter forwards orchestrator progress into the bubbletea loop.
type tuiPresenter struct{ p *tea.Program }

func (t *tuiPresenter) StateChanged(s session.State) { t.p.Send(StateMsg{State: s}) }
func (t *tuiPresenter) Question(index, total int, followup bool) {
	t.p.Send(QuestionMsg{Index: index, Total: total, Followup: followup})
}
func (t *tuiPresenter) Countdown(secondsLeft int) { t.p.Send(CountdownMsg{SecondsLeft: secondsLeft}) }
func (t *tuiPresenter) RecordingProgress(elapsed, total time.Duration) {
	t.p.Send(ProgressMsg{Elapsed: elapsed, Total: total})
}
func (t *tuiPresenter) ReplayAvailable(window time.Duration) { t.p.Send(ReplayMsg{Window: window}) }
func (t *tuiPresenter) Status(msg string)                    { t.p.Send(StatusMsg{Text: msg}) }
func (t *tuiPresenter) Fatal(msg string)                     { t.p.Send(FatalMsg{Text: msg}) }
func (t *tuiPresenter) Done()                                { t.p.Send(DoneMsg{}) }

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case " ", "space":
			if m.state == session.StateRecording {
				m.controls.RequestStop()
			}
		case "r":
			if m.state == session.StateRecording {
				m.controls.RequestReplay()
			}
		case "q", "esc", "ctrl+c":
			if m.done || m.fatal != "" {
				return m, tea.Quit
			}
			m.controls.RequestExit()
			m.status = "exiting after this question"
		}

	case tickMsg:
		if m.state == session.StateRecording && m.level != nil {
			raw := m.level()
			m.audioLevel = m.audioLevel*0.6 + raw*0.4
		} else {
			m.audioLevel = 0
		}
		return m, tuiTick()

	case StateMsg:
		m.state = msg.State
		if m.state != session.StatePrepCountdown {
			m.countdown = 0
		}

	case QuestionMsg:
		label := fmt.Sprintf("question %d of %d", msg.Index, msg.Total)
		if msg.Followup {
			label = fmt.Sprintf("follow-up to question %d", msg.Index)
		}
		m.question = label
		m.status = ""

	case CountdownMsg:
		m.countdown = msg.SecondsLeft

	case ProgressMsg:
		m.elapsed = msg.Elapsed
		m.answerTotal = msg.Total

	case ReplayMsg:
		m.replayWindow = msg.Window
		m.replayShown = time.Now()

	case StatusMsg:
		m.status = msg.Text

	case FatalMsg:
		m.fatal = msg.Text

	case DoneMsg:
		m.done = true
	}
	return m, nil
}

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	recStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

func bar(filled float64, width int) string {
	// 0/0 before the first progress message is NaN; render it empty.
	if math.IsNaN(filled) || filled < 0 {
		filled = 0
	} else if filled > 1 {
		filled = 1
	}
	n := int(filled * float64(width))
	return strings.Repeat("█", n) + strings.Repeat("░", width-n)
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var lines []string
	lines = append(lines, titleStyle.Render("MindStage interview"), "")

	if m.fatal != "" {
		lines = append(lines,
			errStyle.Render("✗ "+m.fatal),
			"",
			helpStyle.Render("press q to quit"))
		return strings.Join(lines, "\n")
	}

	if m.question != "" {
		lines = append(lines, dimStyle.Render(m.question))
	}

	switch m.state {
	case session.StateInit, session.StateDeviceCheck:
		lines = append(lines, dimStyle.Render("preparing session..."))

	case session.StateAsking:
		lines = append(lines, "🔊 listen to the question")

	case session.StatePrepCountdown:
		lines = append(lines, fmt.Sprintf("get ready... %d", m.countdown))

	case session.StateRecording:
		lines = append(lines, recStyle.Render(fmt.Sprintf("● REC %.0fs / %.0fs",
			m.elapsed.Seconds(), m.answerTotal.Seconds())))
		lines = append(lines, bar(float64(m.elapsed)/float64(m.answerTotal), 40))
		lines = append(lines, dimStyle.Render("mic  ")+bar(m.audioLevel*4, 20))
		if m.replayWindow > 0 && time.Since(m.replayShown) < m.replayWindow {
			lines = append(lines, statusStyle.Render("press r to hear the question again"))
		}

	case session.StateUploading:
		lines = append(lines, "⇡ uploading answer...")

	case session.StateNextOrEnd:
		lines = append(lines, dimStyle.Render("..."))

	case session.StateEnd:
		if m.done {
			lines = append(lines, okStyle.Render("✓ interview complete"))
			lines = append(lines, "", helpStyle.Render("press q to quit"))
			return strings.Join(lines, "\n")
		}
		lines = append(lines, dimStyle.Render("wrapping up..."))
	}

	if m.status != "" {
		lines = append(lines, "", statusStyle.Render(m.status))
	}

	lines = append(lines, "",
		helpStyle.Render("space")+dimStyle.Render(" finish answer  ")+
			helpStyle.Render("r")+dimStyle.Render(" replay  ")+
			helpStyle.Render("esc")+dimStyle.Render(" end interview"))
	lines = append(lines, helpStyle.Render("mindstage "+version))

	return strings.Join(lines, "\n")
}
