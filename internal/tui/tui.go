// Package tui implements the single auto-join screen.
package tui

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"prefixjoin/internal/autojoin"
	"prefixjoin/internal/candidate"
	"prefixjoin/internal/connector"
	"prefixjoin/internal/radio"
)

// =============================================================================
// Messages
// =============================================================================

type autoStepMsg struct {
	step autojoin.Step
}

type connectResultMsg struct {
	result connector.Result
}

type radioEventMsg struct {
	event radio.Event
}

type radioClosedMsg struct{}

type radioToggledMsg struct {
	err error
}

type manualDoneMsg struct {
	err error
}

type linkMsg struct {
	text string
}

// =============================================================================
// Key Bindings
// =============================================================================

type keyMap struct {
	Auto       key.Binding
	Manual     key.Binding
	Connect    key.Binding
	ToggleWifi key.Binding
	Help       key.Binding
	Quit       key.Binding
	picking    bool
}

func (k keyMap) ShortHelp() []key.Binding {
	bindings := []key.Binding{k.Help, k.Auto, k.Manual}
	if k.picking {
		bindings = append(bindings, k.Connect)
	}
	return append(bindings, k.Quit)
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Auto, k.Manual, k.Connect},
		{k.ToggleWifi, k.Help, k.Quit},
	}
}

var defaultKeyBindings = keyMap{
	Auto:       key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "auto connect")),
	Manual:     key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "manual connect")),
	Connect:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "connect selected")),
	ToggleWifi: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "toggle Wi-Fi")),
	Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// =============================================================================
// Model
// =============================================================================

// Deps wires the screen to the rest of the program.
type Deps struct {
	Controller *autojoin.Controller
	// Watcher may be nil, in which case the radio cannot be toggled and no
	// radio events arrive.
	Watcher *radio.Watcher
	// Link describes the current association for the header; may be nil.
	Link          func() string
	ManualCommand []string
	Log           logrus.FieldLogger
}

type Model struct {
	ctx  context.Context
	deps Deps

	candidates list.Model
	spinner    spinner.Model
	help       help.Model
	keys       keyMap

	state      autojoin.State
	radioState radio.State
	linkText   string
	busy       bool
	lastOK     *bool

	// resumePending records an Enabled event that arrived while an
	// auto-connect step was still running.
	resumePending bool

	width  int
	height int
}

func New(ctx context.Context, deps Deps) Model {
	l := list.New([]list.Item{}, itemDelegate{}, 0, 0)
	l.Title = "Candidate networks"
	l.Styles.Title = listTitleStyle
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	l.Styles.NoItems = listNoItemsStyle.SetString("No matching networks in range. Press (a) to scan again.")

	s := spinner.New()
	s.Spinner = spinner.Globe
	s.Style = connectingStyle

	h := help.New()
	subtle := lipgloss.NewStyle().Foreground(colorFaint)
	h.Styles = help.Styles{ShortKey: subtle, ShortDesc: subtle, FullKey: subtle, FullDesc: subtle, Ellipsis: subtle}

	return Model{
		ctx:        ctx,
		deps:       deps,
		candidates: l,
		spinner:    s,
		help:       h,
		keys:       defaultKeyBindings,
		state:      deps.Controller.Snapshot(),
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.linkCmd()}
	if m.deps.Watcher != nil {
		cmds = append(cmds, waitForRadio(m.deps.Watcher.Events()))
	}
	return tea.Batch(cmds...)
}

// =============================================================================
// Commands
// =============================================================================

func autoConnectCmd(ctx context.Context, c *autojoin.Controller) tea.Cmd {
	return func() tea.Msg {
		return autoStepMsg{step: c.AutoConnect(ctx)}
	}
}

func connectCmd(ctx context.Context, c *autojoin.Controller, target candidate.Candidate) tea.Cmd {
	return func() tea.Msg {
		ch := make(chan connector.Result, 1)
		c.Connect(ctx, target, func(r connector.Result) { ch <- r })
		select {
		case r := <-ch:
			return connectResultMsg{result: r}
		case <-ctx.Done():
			return connectResultMsg{result: connector.Result{SSID: target.SSID, Err: ctx.Err()}}
		}
	}
}

func waitForRadio(ch <-chan radio.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return radioClosedMsg{}
		}
		return radioEventMsg{event: ev}
	}
}

func toggleRadioCmd(ctx context.Context, w *radio.Watcher, enable bool) tea.Cmd {
	return func() tea.Msg {
		return radioToggledMsg{err: w.Toggle(ctx, enable)}
	}
}

func (m Model) linkCmd() tea.Cmd {
	if m.deps.Link == nil {
		return nil
	}
	link := m.deps.Link
	return func() tea.Msg { return linkMsg{text: link()} }
}

func (m Model) manualCmd() tea.Cmd {
	argv := m.deps.ManualCommand
	if len(argv) == 0 {
		return func() tea.Msg { return manualDoneMsg{err: fmt.Errorf("no manual connect command configured")} }
	}
	c := exec.Command(argv[0], argv[1:]...)
	return tea.ExecProcess(c, func(err error) tea.Msg { return manualDoneMsg{err: err} })
}

// =============================================================================
// Update
// =============================================================================

func (m Model) pickVisible() bool {
	return m.state.MoreThanOne && m.state.InProgress
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case spinner.TickMsg:
		if m.state.InProgress || m.busy {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case autoStepMsg:
		m.busy = false
		resume := m.resumePending
		m.resumePending = false
		m.syncState()
		switch msg.step.Kind {
		case autojoin.StepConnect:
			m.busy = true
			cmds = append(cmds, connectCmd(m.ctx, m.deps.Controller, msg.step.Target))
		case autojoin.StepPick:
			m.candidates.Select(0)
		case autojoin.StepRadioDisabled:
			if resume && m.radioState == radio.StateEnabled && m.deps.Controller.OnRadio(m.radioState) {
				m.busy = true
				cmds = append(cmds, autoConnectCmd(m.ctx, m.deps.Controller), m.spinner.Tick)
			}
		}
		if msg.step.Err != nil {
			m.log().Debugf("auto-connect step %d: %v", msg.step.Kind, msg.step.Err)
		}

	case connectResultMsg:
		m.busy = false
		m.resumePending = false
		ok := msg.result.OK
		m.lastOK = &ok
		m.syncState()
		cmds = append(cmds, m.linkCmd())

	case radioEventMsg:
		m.radioState = msg.event.State
		switch {
		case msg.event.State != radio.StateEnabled:
			m.resumePending = false
		case m.busy:
			m.resumePending = true
		case m.deps.Controller.OnRadio(msg.event.State):
			m.busy = true
			cmds = append(cmds, autoConnectCmd(m.ctx, m.deps.Controller), m.spinner.Tick)
		}
		cmds = append(cmds, waitForRadio(m.deps.Watcher.Events()), m.linkCmd())

	case radioToggledMsg:
		if msg.err != nil {
			m.log().Warnf("Toggling Wi-Fi failed: %v", msg.err)
		}

	case manualDoneMsg:
		if msg.err != nil {
			m.log().Warnf("Manual connect command failed: %v", msg.err)
		}
		cmds = append(cmds, m.linkCmd())

	case linkMsg:
		m.linkText = msg.text

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyPress(msg)...)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) []tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return []tea.Cmd{tea.Quit}

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize()
		return nil

	case key.Matches(msg, m.keys.Auto):
		if m.busy {
			return nil
		}
		m.busy = true
		m.lastOK = nil
		return []tea.Cmd{autoConnectCmd(m.ctx, m.deps.Controller), m.spinner.Tick}

	case key.Matches(msg, m.keys.Manual):
		return []tea.Cmd{m.manualCmd()}

	case key.Matches(msg, m.keys.ToggleWifi):
		if m.deps.Watcher == nil {
			return nil
		}
		return []tea.Cmd{toggleRadioCmd(m.ctx, m.deps.Watcher, m.radioState != radio.StateEnabled)}

	case key.Matches(msg, m.keys.Connect):
		if !m.pickVisible() || m.busy {
			return nil
		}
		item, ok := m.candidates.SelectedItem().(candidateItem)
		if !ok {
			return nil
		}
		m.busy = true
		m.lastOK = nil
		return []tea.Cmd{connectCmd(m.ctx, m.deps.Controller, item.Candidate), m.spinner.Tick}
	}

	if m.pickVisible() {
		var cmd tea.Cmd
		m.candidates, cmd = m.candidates.Update(msg)
		return []tea.Cmd{cmd}
	}
	return nil
}

func (m *Model) syncState() {
	m.state = m.deps.Controller.Snapshot()
	m.candidates.SetItems(toItems(m.state.Candidates))
	m.candidates.Title = fmt.Sprintf("Candidate networks (%d)", len(m.state.Candidates))
}

func (m *Model) resize() {
	availableWidth := m.width - appStyle.GetHorizontalFrameSize()
	availableHeight := m.height - appStyle.GetVerticalFrameSize()

	helpWidth := availableWidth
	if helpWidth > helpBarMaxWidth {
		helpWidth = helpBarMaxWidth
	}
	m.help.Width = helpWidth

	listWidth := int(float64(availableWidth) * listWidthPercent)
	if listWidth > listFixedWidth {
		listWidth = listFixedWidth
	}
	if listWidth < minListWidth {
		listWidth = minListWidth
	}

	used := lipgloss.Height(m.headerView(availableWidth)) + lipgloss.Height(m.buttonsView()) +
		lipgloss.Height(m.statusView()) + lipgloss.Height(m.footerView(availableWidth))
	listHeight := availableHeight - used
	if listHeight < minListHeight {
		listHeight = minListHeight
	}
	m.candidates.SetSize(listWidth, listHeight)
}

func (m Model) log() logrus.FieldLogger {
	if m.deps.Log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		return l
	}
	return m.deps.Log
}

// =============================================================================
// View
// =============================================================================

func (m Model) View() string {
	availableWidth := m.width - appStyle.GetHorizontalFrameSize()

	sections := []string{m.headerView(availableWidth), m.buttonsView(), m.statusView()}
	if m.pickVisible() {
		sections = append(sections, m.candidates.View())
	}
	sections = append(sections, m.footerView(availableWidth))
	return appStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m Model) headerView(width int) string {
	title := titleStyle.Render(appName)

	var status string
	switch m.radioState {
	case radio.StateEnabled:
		status = "Wi-Fi: " + wifiStatusEnabled.Render("Enabled ✔")
	case radio.StateDisabled:
		status = "Wi-Fi: " + wifiStatusDisabled.Render("Disabled ✘")
	case radio.StateEnabling, radio.StateDisabling:
		status = "Wi-Fi: " + wifiStatusPending.Render(m.radioState.String())
	default:
		status = "Wi-Fi: " + wifiStatusPending.Render("unknown")
	}

	spacing := width - lipgloss.Width(title) - lipgloss.Width(status)
	if spacing < 1 {
		spacing = 1
	}
	header := lipgloss.JoinHorizontal(lipgloss.Left, title, strings.Repeat(" ", spacing), status)
	if m.linkText != "" {
		header = lipgloss.JoinVertical(lipgloss.Left, header, linkStyle.Render(" "+m.linkText))
	}
	return header
}

func (m Model) buttonsView() string {
	auto := buttonStyle.Render("(a) Auto connect")
	if m.state.InProgress {
		auto = buttonActiveStyle.Render("(a) Auto connect")
	}
	manual := buttonStyle.Render("(m) Manual connect")
	return lipgloss.JoinHorizontal(lipgloss.Top, auto, manual)
}

func (m Model) statusView() string {
	if m.state.Message == "" {
		return ""
	}
	var line string
	switch {
	case m.state.InProgress:
		line = connectingStyle.Render(m.spinner.View()+" ") + infoStyle.UnsetMarginTop().Render(m.state.Message)
		return statusStyle.Render(line)
	case m.lastOK != nil && *m.lastOK:
		return successStyle.Render(m.state.Message)
	case m.lastOK != nil:
		return errorStyle.Render(m.state.Message)
	default:
		return warningStyle.Render(m.state.Message)
	}
}

func (m Model) footerView(width int) string {
	k := m.keys
	k.picking = m.pickVisible()
	return lipgloss.PlaceHorizontal(width, lipgloss.Left, helpGlobalStyle.Render(m.help.View(k)))
}

// Run starts the screen and blocks until the user quits.
func Run(ctx context.Context, deps Deps) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	program := tea.NewProgram(New(ctx, deps), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
