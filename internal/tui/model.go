package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/clip"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/events"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/logging"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/view"
)

// Source is the live state the console draws. *ingest.Adapter implements it.
type Source interface {
	Snapshot() core.Snapshot
}

// Submitter forwards a request to the agent backend.
type Submitter interface {
	Submit(ctx context.Context, text string) error
}

// Copier puts text on the clipboard. *clip.Copier implements it.
type Copier interface {
	WriteAll(text string) (clip.Result, error)
}

const submitTimeout = 10 * time.Second

// Model is the console's Bubble Tea model. It never mutates state: every
// frame is view.Project over a fresh snapshot and the current toggles.
type Model struct {
	source    Source
	submitter Submitter
	copier    Copier
	adapter   *EventBusAdapter
	stateMgr  *UIStateManager
	logger    *logging.Logger
	now       func() time.Time

	toggles view.Toggles
	v       view.View

	input    textarea.Model
	filter   textinput.Model
	timeline viewport.Model
	spinner  spinner.Model
	md       *markdown

	filtering bool
	filterIdx int

	layout     Layout
	ready      bool
	submitting bool
	banner     string
	status     string
}

// Option configures a Model.
type Option func(*Model)

// WithEventBus redraws on bus notifications.
func WithEventBus(bus *events.EventBus) Option {
	return func(m *Model) {
		if bus != nil {
			m.adapter = NewEventBusAdapter(bus)
		}
	}
}

// WithStateManager restores and persists toggles.
func WithStateManager(mgr *UIStateManager) Option {
	return func(m *Model) {
		m.stateMgr = mgr
	}
}

// WithCopier overrides the clipboard.
func WithCopier(c Copier) Option {
	return func(m *Model) {
		m.copier = c
	}
}

// WithLogger sets the model logger.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Model) {
		m.logger = logger
	}
}

// WithTasksVisible sets the initial task list visibility. A restored UI
// state takes precedence.
func WithTasksVisible(visible bool) Option {
	return func(m *Model) {
		m.toggles.TasksVisible = visible
	}
}

// WithClock overrides the clock used for relative ages.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		m.now = now
	}
}

// New creates the console model.
func New(source Source, submitter Submitter, opts ...Option) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask the agents..."
	ta.Focus()
	ta.Prompt = ""
	ta.CharLimit = 4096
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.BlurredStyle.CursorLine = lipgloss.NewStyle()
	ta.KeyMap.InsertNewline.SetKeys("shift+enter", "ctrl+j")

	fi := textinput.New()
	fi.Placeholder = "filter tasks"
	fi.Prompt = "/ "

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	m := Model{
		source:    source,
		submitter: submitter,
		copier:    clip.New(),
		logger:    logging.NewNop(),
		now:       time.Now,
		input:     ta,
		filter:    fi,
		timeline:  viewport.New(80, 10),
		spinner:   sp,
		md:        newMarkdown(),
	}
	for _, opt := range opts {
		opt(&m)
	}

	if m.stateMgr != nil {
		if err := m.stateMgr.Load(); err != nil {
			m.logger.Warn("failed to load UI state", "path", m.stateMgr.Path(), "error", err)
		} else if st := m.stateMgr.Get(); !st.UpdatedAt.IsZero() {
			m.toggles.TasksVisible = st.TasksVisible
			m.toggles.Task = core.TaskID(st.LastTask)
			m.toggles.Tool = core.InvocationID(st.LastTool)
		}
	}

	m.refresh()
	return m
}

// Init starts the input cursor, the spinner and the bus listener.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, m.spinner.Tick}
	if m.adapter != nil {
		cmds = append(cmds, waitForEventBusUpdate(m.adapter))
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.ready = true
		m.refresh()
		return m, nil

	case StateChangedMsg:
		m.refresh()
		return m, m.waitForBus()

	case AnomalyMsg:
		m.banner = fmt.Sprintf("dropped %s: %s", msg.Event.Source, msg.Event.Message)
		return m, m.waitForBus()

	case NoticeMsg:
		if msg.Event.Level == "error" || msg.Event.Level == "warn" {
			m.banner = msg.Event.Message
		} else {
			m.status = msg.Event.Message
		}
		return m, m.waitForBus()

	case SubmittedMsg:
		m.submitting = false
		if msg.Err != nil {
			m.banner = msg.Err.Error()
			m.status = ""
		} else {
			m.banner = ""
			m.status = "submitted"
		}
		return m, nil

	case CopiedMsg:
		if msg.Err != nil {
			m.banner = "copy failed: " + msg.Err.Error()
		} else {
			m.status = msg.Result.String()
		}
		return m, nil

	case ErrorMsg:
		m.banner = msg.Error.Error()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.v.Running > 0 || m.submitting {
			m.renderTimeline()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) waitForBus() tea.Cmd {
	if m.adapter == nil {
		return nil
	}
	return waitForEventBusUpdate(m.adapter)
}

// handleKeyPress handles keyboard input.
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.shutdown()
		return m, tea.Quit
	}
	if m.filtering {
		return m.handleFilterKey(msg)
	}

	switch msg.String() {
	case "ctrl+t":
		m.toggles.TasksVisible = !m.toggles.TasksVisible
		if m.stateMgr != nil {
			m.stateMgr.SetTasksVisible(m.toggles.TasksVisible)
		}
		m.resize(m.layout.Width, m.layout.Height)
		m.refresh()
		return m, nil

	case "tab", "shift+tab":
		delta := 1
		if msg.String() == "shift+tab" {
			delta = -1
		}
		if id := view.CycleTool(m.v, delta); id != "" {
			m.selectTool(id)
		}
		return m, nil

	case "ctrl+n", "ctrl+p":
		delta := 1
		if msg.String() == "ctrl+p" {
			delta = -1
		}
		if id := cycleTask(m.v, delta); id != "" {
			m.selectTask(id)
		}
		return m, nil

	case "ctrl+y":
		if m.v.Detail == nil {
			m.status = "no tool result selected"
			return m, nil
		}
		return m, copyCmd(m.copier, CopyText(m.v.Detail))

	case "esc":
		m.banner = ""
		m.selectTask("")
		return m, nil

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.timeline, cmd = m.timeline.Update(msg)
		return m, cmd

	case "/":
		if m.input.Value() == "" {
			m.filtering = true
			m.filterIdx = 0
			m.filter.SetValue("")
			m.input.Blur()
			m.resize(m.layout.Width, m.layout.Height)
			cmd := m.filter.Focus()
			return m, cmd
		}

	case "enter":
		text := m.input.Value()
		if core.IsBlank(text) || m.submitter == nil {
			if m.submitter == nil {
				m.banner = "no backend configured"
			}
			return m, nil
		}
		m.input.Reset()
		m.submitting = true
		m.status = "submitting…"
		return m, submitCmd(m.submitter, text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	matches := FilterTasks(m.v.Tasks, m.filter.Value())

	switch msg.String() {
	case "esc":
		m.closeFilter()
		cmd := m.input.Focus()
		return m, cmd

	case "enter":
		if m.filterIdx < len(matches) {
			m.selectTask(matches[m.filterIdx].ID)
		}
		m.closeFilter()
		cmd := m.input.Focus()
		return m, cmd

	case "up":
		if m.filterIdx > 0 {
			m.filterIdx--
		}
		return m, nil

	case "down":
		if m.filterIdx < len(matches)-1 {
			m.filterIdx++
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.filterIdx = 0
	return m, cmd
}

func (m *Model) closeFilter() {
	m.filtering = false
	m.filter.Blur()
	m.filter.SetValue("")
	m.resize(m.layout.Width, m.layout.Height)
}

// selectTask views id. An empty id follows the active task again.
func (m *Model) selectTask(id core.TaskID) {
	m.toggles.Task = id
	m.toggles.Tool = ""
	m.persistSelection()
	m.refresh()
	m.timeline.GotoBottom()
}

func (m *Model) selectTool(id core.InvocationID) {
	m.toggles.Tool = id
	m.persistSelection()
	m.refresh()
}

func (m *Model) persistSelection() {
	if m.stateMgr != nil {
		m.stateMgr.SetSelection(m.toggles.Task, m.toggles.Tool)
	}
}

// cycleTask returns the task delta rows away from the viewed one.
func cycleTask(v view.View, delta int) core.TaskID {
	n := len(v.Tasks)
	if n == 0 {
		return ""
	}
	cur := 0
	for i, t := range v.Tasks {
		if t.Viewed {
			cur = i
			break
		}
	}
	return v.Tasks[((cur+delta)%n+n)%n].ID
}

func (m *Model) shutdown() {
	if m.adapter != nil {
		m.adapter.Close()
	}
	if m.stateMgr != nil {
		if err := m.stateMgr.Close(); err != nil {
			m.logger.Warn("failed to save UI state", "error", err)
		}
	}
}

func (m *Model) resize(width, height int) {
	m.layout = ComputeLayout(width, height, m.toggles.TasksVisible || m.filtering)
	m.input.SetWidth(width - 4)
	m.filter.Width = m.layout.SidebarWidth - 4
	m.timeline.Width = m.layout.MainWidth
	m.timeline.Height = m.layout.TimelineHeight
	m.md.setWidth(m.layout.MainWidth - 4)
}

// refresh re-projects the snapshot and redraws the timeline, keeping the
// scroll pinned to the bottom when it already was.
func (m *Model) refresh() {
	m.v = view.Project(m.source.Snapshot(), m.toggles)
	m.renderTimeline()
}

func (m *Model) renderTimeline() {
	atBottom := m.timeline.AtBottom()
	m.timeline.SetContent(renderTimeline(m.v.Timeline, m.layout.MainWidth, m.md, m.spinner.View()))
	if atBottom {
		m.timeline.GotoBottom()
	}
}

func submitCmd(sub Submitter, text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()
		return SubmittedMsg{Err: sub.Submit(ctx, text)}
	}
}

func copyCmd(c Copier, text string) tea.Cmd {
	return func() tea.Msg {
		res, err := c.WriteAll(text)
		return CopiedMsg{Result: res, Err: err}
	}
}

// View renders the console.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	main := lipgloss.JoinVertical(lipgloss.Left,
		m.timeline.View(),
		Divider(m.layout.MainWidth),
		m.renderToolPanel(),
	)
	body := main
	if m.layout.SidebarWidth > 0 {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), main)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderStatus(),
		InputBoxStyle.Width(m.layout.Width-2).Render(m.input.View()),
		m.renderHelp(),
	)
}

func (m Model) renderHeader() string {
	title := "AgentMesh"
	if m.v.Current != nil {
		title += "  " + ClassStyle(m.v.Current.Class).Render(m.v.Current.Icon+" "+m.v.Current.Title)
	}
	running := SubtleStyle.Render("idle")
	if m.v.Running > 0 {
		running = m.spinner.View() + RunningStyle.Render(fmt.Sprintf(" %d running", m.v.Running))
	}
	gap := m.layout.Width - lipgloss.Width(title) - lipgloss.Width(running) - 2
	if gap < 1 {
		gap = 1
	}
	return HeaderStyle.Render(title) + strings.Repeat(" ", gap) + running
}

func (m Model) renderSidebar() string {
	w := m.layout.SidebarWidth - 4
	h := m.layout.BodyHeight - 2

	tasks := m.v.Tasks
	var header string
	if m.filtering {
		tasks = FilterTasks(tasks, m.filter.Value())
		header = m.filter.View() + "\n"
		h--
	}
	if m.filtering {
		// The cursor row takes the highlight while picking.
		marked := make([]view.TaskItem, len(tasks))
		for i, t := range tasks {
			t.Viewed = i == m.filterIdx
			marked[i] = t
		}
		tasks = marked
	}
	list := renderTaskList(tasks, w, m.now())

	return PanelStyle.
		Width(m.layout.SidebarWidth - 2).
		Height(m.layout.BodyHeight - 2).
		Render(header + ClipLines(list, h))
}

func (m Model) renderToolPanel() string {
	tabs := renderTabs(m.v.Tabs, m.layout.MainWidth)
	detail := renderDetail(m.v.Detail, m.layout.MainWidth-2, m.layout.ToolHeight-2)
	return lipgloss.JoinVertical(lipgloss.Left, tabs, detail)
}

func (m Model) renderStatus() string {
	if m.banner != "" {
		return ErrorBannerStyle.Render(Truncate("! "+m.banner, m.layout.Width))
	}
	return StatusLineStyle.Render(Truncate(m.status, m.layout.Width))
}

func (m Model) renderHelp() string {
	if m.filtering {
		return HelpStyle.Render("↑/↓ move · enter view task · esc cancel")
	}
	return HelpStyle.Render("enter send · ctrl+t tasks · ctrl+n/p switch task · tab tools · ctrl+y copy · / filter · esc follow active · ctrl+c quit")
}
