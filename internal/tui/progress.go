package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/vizguard/pkg/models"
)

type jobRow struct {
	viewport models.ViewportSpec
	state    JobState
	err      string
	started  time.Time
	elapsed  time.Duration
}

type stageRow struct {
	name    string
	status  StageEventType
	message string
}

// Progress is the bubbletea model for a validation run.
type Progress struct {
	jobs   []jobRow
	stages []stageRow
	width  int

	spinner spinner.Model
	bar     progress.Model

	done       bool
	success    bool
	message    string
	reportPath string
	quitting   bool

	titleStyle   lipgloss.Style
	labelStyle   lipgloss.Style
	pendingStyle lipgloss.Style
	runningStyle lipgloss.Style
	doneStyle    lipgloss.Style
	failedStyle  lipgloss.Style
	hintStyle    lipgloss.Style
}

// NewProgress creates a Progress view for the given viewports.
func NewProgress(viewports []models.ViewportSpec) *Progress {
	jobs := make([]jobRow, len(viewports))
	for i, vp := range viewports {
		jobs[i] = jobRow{viewport: vp, state: JobPending}
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	return &Progress{
		jobs:    jobs,
		width:   80,
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),

		titleStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true),
		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(10),
		pendingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		runningStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),
		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("28")).
			Bold(true),
		failedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
		hintStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
}

// NewProgressProgram creates a tea.Program around a new Progress view.
func NewProgressProgram(viewports []models.ViewportSpec) (*tea.Program, *Progress) {
	p := NewProgress(viewports)
	return tea.NewProgram(p), p
}

// Init implements tea.Model.
func (p *Progress) Init() tea.Cmd {
	return p.spinner.Tick
}

// Update implements tea.Model.
func (p *Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			p.quitting = true
			return p, tea.Quit
		}

	case tea.WindowSizeMsg:
		p.width = msg.Width
		if w := msg.Width - 20; w > 10 {
			p.bar.Width = min(w, 60)
		}

	case spinner.TickMsg:
		if p.done {
			return p, nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd

	case JobMsg:
		p.applyJob(msg)

	case StageMsg:
		p.applyStage(msg)

	case DoneMsg:
		p.done = true
		p.success = msg.Success
		p.message = msg.Message
		p.reportPath = msg.ReportPath
	}

	return p, nil
}

func (p *Progress) applyJob(msg JobMsg) {
	if msg.Index < 0 || msg.Index >= len(p.jobs) {
		return
	}
	row := &p.jobs[msg.Index]
	row.state = msg.State
	row.err = msg.Error
	switch msg.State {
	case JobRunning:
		row.started = msg.At
	case JobDone, JobFailed:
		if !row.started.IsZero() && !msg.At.IsZero() {
			row.elapsed = msg.At.Sub(row.started)
		}
	}
}

func (p *Progress) applyStage(msg StageMsg) {
	for i := range p.stages {
		if p.stages[i].name == msg.Stage {
			p.stages[i].status = msg.Type
			p.stages[i].message = firstNonEmpty(msg.Error, msg.Message)
			return
		}
	}
	p.stages = append(p.stages, stageRow{
		name:    msg.Stage,
		status:  msg.Type,
		message: firstNonEmpty(msg.Error, msg.Message),
	})
}

// Finished returns how many viewports reached a terminal state.
func (p *Progress) Finished() int {
	n := 0
	for _, j := range p.jobs {
		if j.state == JobDone || j.state == JobFailed {
			n++
		}
	}
	return n
}

// View implements tea.Model.
func (p *Progress) View() string {
	if p.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(p.titleStyle.Render("vizguard") + "\n\n")

	for _, s := range p.stages {
		fmt.Fprintf(&b, "%s %s", p.stageIcon(s.status), s.name)
		if s.message != "" {
			b.WriteString(p.hintStyle.Render("  " + s.message))
		}
		b.WriteString("\n")
	}
	if len(p.stages) > 0 {
		b.WriteString("\n")
	}

	for _, j := range p.jobs {
		fmt.Fprintf(&b, "%s %s %-10s", p.jobIcon(j.state), p.labelStyle.Render(j.viewport.Name), j.viewport.Dimensions())
		switch {
		case j.err != "":
			b.WriteString(p.failedStyle.Render("  " + j.err))
		case j.elapsed > 0:
			b.WriteString(p.hintStyle.Render("  " + j.elapsed.Round(time.Millisecond).String()))
		}
		b.WriteString("\n")
	}

	percent := 0.0
	if len(p.jobs) > 0 {
		percent = float64(p.Finished()) / float64(len(p.jobs))
	}
	fmt.Fprintf(&b, "\n%s %d/%d\n", p.bar.ViewAs(percent), p.Finished(), len(p.jobs))

	if p.done {
		style := p.doneStyle
		if !p.success {
			style = p.failedStyle
		}
		b.WriteString("\n" + style.Render(p.message) + "\n")
		if p.reportPath != "" {
			b.WriteString("Report: " + p.reportPath + "\n")
		}
		b.WriteString(p.hintStyle.Render("press q to exit") + "\n")
	} else {
		b.WriteString(p.hintStyle.Render("q: quit view (the run continues)") + "\n")
	}
	return b.String()
}

func (p *Progress) jobIcon(s JobState) string {
	switch s {
	case JobRunning:
		return p.spinner.View()
	case JobDone:
		return p.doneStyle.Render("✓")
	case JobFailed:
		return p.failedStyle.Render("✗")
	default:
		return p.pendingStyle.Render("·")
	}
}

func (p *Progress) stageIcon(s StageEventType) string {
	switch s {
	case StageStarted:
		return p.spinner.View()
	case StageCompleted:
		return p.doneStyle.Render("✓")
	case StageFailed:
		return p.failedStyle.Render("✗")
	default:
		return p.pendingStyle.Render("·")
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
