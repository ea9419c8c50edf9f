// Package config is the settings view: it shows the client configuration,
// edits it in a form, tests the API connection and writes the file back.
package config

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskflow/internal/keys"
	"github.com/nhle/taskflow/internal/model"
	"github.com/nhle/taskflow/internal/theme"
)

// ConfigMode represents the current state of the settings view.
type ConfigMode int

const (
	ModeSummary        ConfigMode = iota // Show current settings
	ModeForm                             // Editing
	ModeValidating                       // Testing connection
	ModeValidateResult                   // Show connection result
)

// Pinger is any authenticated call cheap enough to test the connection.
type Pinger interface {
	UnreadCount(ctx context.Context) (int, error)
}

// ConfigDoneMsg signals the settings view should close.
type ConfigDoneMsg struct{}

// ConfigSavedMsg carries the configuration that was written to disk.
type ConfigSavedMsg struct {
	Config model.AppConfig
}

// ValidateResultMsg carries the result of a connection test.
type ValidateResultMsg struct {
	Unread int
	Err    error
}

type configWrittenMsg struct {
	cfg model.AppConfig
	err error
}

// formBindings lives on the heap so huh keeps writing to the same fields
// while the Model is copied by value.
type formBindings struct {
	baseURL       string
	timeoutSec    string
	pushEnabled   bool
	fetchLimit    string
	unreadPollSec string
	recentPollSec string
	reconcileSec  string
	graceSec      string
	showSidebar   bool
	logLevel      string
}

// Model is the Bubble Tea model for the settings view.
type Model struct {
	mode    ConfigMode
	path    string
	cfg     model.AppConfig
	pinger  Pinger
	form    *huh.Form
	fb      *formBindings
	spinner spinner.Model

	validUnread int
	validError  error
	statusMsg   string

	keys          *keys.KeyMap
	width, height int
}

// New creates a settings view for cfg, saved to path.
func New(cfg model.AppConfig, path string, p Pinger, k *keys.KeyMap, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		mode:    ModeSummary,
		path:    path,
		cfg:     cfg,
		pinger:  p,
		fb:      &formBindings{},
		keys:    k,
		spinner: sp,
		width:   width,
		height:  height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case configWrittenMsg:
		m.mode = ModeSummary
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error saving settings: %v", msg.err)
			return m, nil
		}
		m.cfg = msg.cfg
		m.statusMsg = "Settings saved. API and push changes apply on next start."
		saved := msg.cfg
		return m, func() tea.Msg { return ConfigSavedMsg{Config: saved} }

	case ValidateResultMsg:
		m.validUnread = msg.Unread
		m.validError = msg.Err
		m.mode = ModeValidateResult
		return m, nil

	case spinner.TickMsg:
		if m.mode == ModeValidating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	if m.mode == ModeForm {
		return m.updateForm(msg)
	}
	return m, nil
}

// handleKeyMsg processes key messages based on the current mode.
func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.mode {
	case ModeSummary:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return ConfigDoneMsg{} }
		case msg.String() == "e":
			m.fillBindings()
			m.form = m.buildForm()
			m.mode = ModeForm
			m.statusMsg = ""
			return m, m.form.Init()
		case key.Matches(msg, m.keys.Select):
			m.mode = ModeValidating
			return m, tea.Batch(m.spinner.Tick, m.testConnection())
		}
	case ModeForm:
		return m.updateForm(msg)
	case ModeValidating:
		if msg.String() == "esc" {
			m.mode = ModeSummary
		}
	case ModeValidateResult:
		switch msg.String() {
		case "enter", "esc":
			m.mode = ModeSummary
		case "r":
			m.mode = ModeValidating
			return m, tea.Batch(m.spinner.Tick, m.testConnection())
		}
	}
	return m, nil
}

func (m Model) fillBindings() {
	c := m.cfg
	*m.fb = formBindings{
		baseURL:       c.API.BaseURL,
		timeoutSec:    strconv.Itoa(c.API.TimeoutSec),
		pushEnabled:   c.Push.Enabled,
		fetchLimit:    strconv.Itoa(c.Inbox.FetchLimit),
		unreadPollSec: strconv.Itoa(c.Inbox.UnreadPollSec),
		recentPollSec: strconv.Itoa(c.Inbox.RecentPollSec),
		reconcileSec:  strconv.Itoa(c.Timer.ReconcileSec),
		graceSec:      strconv.Itoa(c.Timer.GraceSec),
		showSidebar:   c.Display.ShowSidebar,
		logLevel:      c.Log.Level,
	}
}

func (m Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API base URL").
				Description("Root of the TaskFlow REST API").
				Value(&m.fb.baseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Request timeout (seconds)").
				Value(&m.fb.timeoutSec).
				Validate(validateInt("Timeout", 1)),
			huh.NewConfirm().
				Title("Live notifications").
				Description("Keep a websocket open for pushed notifications").
				Value(&m.fb.pushEnabled),
		).Title("Connection"),
		huh.NewGroup(
			huh.NewInput().
				Title("Notifications to fetch").
				Value(&m.fb.fetchLimit).
				Validate(validateInt("Fetch limit", 1)),
			huh.NewInput().
				Title("Unread count poll (seconds)").
				Value(&m.fb.unreadPollSec).
				Validate(validateInt("Unread poll", 5)),
			huh.NewInput().
				Title("Open inbox refresh (seconds)").
				Value(&m.fb.recentPollSec).
				Validate(validateInt("Inbox refresh", 5)),
		).Title("Inbox"),
		huh.NewGroup(
			huh.NewInput().
				Title("Timer check (seconds)").
				Value(&m.fb.reconcileSec).
				Validate(validateInt("Timer check", 5)),
			huh.NewInput().
				Title("Grace after local start (seconds)").
				Value(&m.fb.graceSec).
				Validate(validateInt("Grace", 0)),
			huh.NewConfirm().
				Title("Show sidebar").
				Value(&m.fb.showSidebar),
			huh.NewSelect[string]().
				Title("Log level").
				Options(huh.NewOptions("DEBUG", "INFO", "WARN", "ERROR")...).
				Value(&m.fb.logLevel),
		).Title("Timer & display"),
	).WithWidth(m.formWidth())
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		m.mode = ModeSummary
		return m, nil
	}
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m, m.save(m.configFromBindings())
	case huh.StateAborted:
		m.mode = ModeSummary
		return m, nil
	}
	return m, cmd
}

// configFromBindings applies the form to a copy of the current config.
// Inputs were validated as integers, so the conversions cannot fail here.
func (m Model) configFromBindings() model.AppConfig {
	num := func(s string) int {
		n, _ := strconv.Atoi(strings.TrimSpace(s))
		return n
	}

	c := m.cfg
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(m.fb.baseURL), "/")
	c.API.TimeoutSec = num(m.fb.timeoutSec)
	c.Push.Enabled = m.fb.pushEnabled
	c.Inbox.FetchLimit = num(m.fb.fetchLimit)
	c.Inbox.UnreadPollSec = num(m.fb.unreadPollSec)
	c.Inbox.RecentPollSec = num(m.fb.recentPollSec)
	c.Timer.ReconcileSec = num(m.fb.reconcileSec)
	c.Timer.GraceSec = num(m.fb.graceSec)
	c.Display.ShowSidebar = m.fb.showSidebar
	c.Log.Level = m.fb.logLevel
	return c
}

func (m Model) save(cfg model.AppConfig) tea.Cmd {
	path := m.path
	return func() tea.Msg {
		if err := model.ValidateConfig(&cfg); err != nil {
			return configWrittenMsg{err: err}
		}
		if err := model.SaveConfig(path, &cfg); err != nil {
			return configWrittenMsg{err: err}
		}
		return configWrittenMsg{cfg: cfg}
	}
}

func (m Model) testConnection() tea.Cmd {
	p := m.pinger
	return func() tea.Msg {
		n, err := p.UnreadCount(context.Background())
		return ValidateResultMsg{Unread: n, Err: err}
	}
}

// View renders the settings view.
func (m Model) View() string {
	switch m.mode {
	case ModeForm:
		if m.form == nil {
			return ""
		}
		return lipgloss.NewStyle().Padding(1, 2).Render(m.form.View())
	case ModeValidating:
		return m.viewValidating()
	case ModeValidateResult:
		return m.viewValidateResult()
	default:
		return m.viewSummary()
	}
}

func (m Model) viewSummary() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginBottom(1)
	b.WriteString(titleStyle.Render("Settings"))
	b.WriteString("\n\n")

	label := lipgloss.NewStyle().Foreground(theme.ColorGray)
	row := func(name, value string) {
		fmt.Fprintf(&b, "%s %s\n", label.Render(fmt.Sprintf("%-22s", name)), value)
	}
	onOff := func(v bool) string {
		if v {
			return "on"
		}
		return "off"
	}

	c := m.cfg
	row("API", c.API.BaseURL)
	row("Timeout", fmt.Sprintf("%ds", c.API.TimeoutSec))
	row("Live notifications", onOff(c.Push.Enabled))
	row("Notifications fetched", strconv.Itoa(c.Inbox.FetchLimit))
	row("Unread poll", fmt.Sprintf("%ds", c.Inbox.UnreadPollSec))
	row("Inbox refresh", fmt.Sprintf("%ds", c.Inbox.RecentPollSec))
	row("Timer check", fmt.Sprintf("%ds", c.Timer.ReconcileSec))
	row("Grace", fmt.Sprintf("%ds", c.Timer.GraceSec))
	row("Sidebar", onOff(c.Display.ShowSidebar))
	row("Log level", c.Log.Level)
	row("Data directory", c.DataDir)
	row("Config file", m.path)

	if m.statusMsg != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorYellow).Render(m.statusMsg))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(label.Render("e edit | enter test connection | esc back"))

	return lipgloss.NewStyle().Padding(1, 2).Width(m.width).Height(m.height).Render(b.String())
}

func (m Model) viewValidating() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	content := fmt.Sprintf(
		"%s Testing connection to %s...\n\nPress esc to cancel.",
		m.spinner.View(),
		m.cfg.API.BaseURL,
	)

	return style.Render(content)
}

func (m Model) viewValidateResult() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	var content string
	if m.validError != nil {
		errStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorRed)
		content = errStyle.Render("Connection failed") + "\n\n" +
			m.validError.Error() + "\n\n" +
			lipgloss.NewStyle().Foreground(theme.ColorGray).
				Render("r retry | enter/esc back")
	} else {
		okStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorGreen)
		content = okStyle.Render("Connection successful") + "\n\n" +
			fmt.Sprintf("%d unread notifications", m.validUnread) + "\n\n" +
			lipgloss.NewStyle().Foreground(theme.ColorGray).
				Render("enter/esc back")
	}

	return style.Render(content)
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Editing reports whether the form has keyboard focus.
func (m Model) Editing() bool {
	return m.mode == ModeForm
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func validateInt(fieldName string, minimum int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("%s must be a whole number", fieldName)
		}
		if n < minimum {
			return fmt.Errorf("%s must be at least %d", fieldName, minimum)
		}
		return nil
	}
}

func validateURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must start with http:// or https://")
	}
	return nil
}
