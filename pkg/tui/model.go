// Package tui is a terminal front-end for the kiosk engine, used on
// headless installs and for bench testing a taxonomy.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dkalashnik/kiosk-survey/pkg/config"
	"github.com/dkalashnik/kiosk-survey/pkg/kiosk"
	"github.com/dkalashnik/kiosk-survey/pkg/kioskcfg"
)

const (
	refreshInterval = 250 * time.Millisecond
	// cornerRelease is how long after the last auto-repeated "a" the hot
	// corner counts as released. Terminals report no key-up events.
	cornerRelease = 600 * time.Millisecond
)

// Kiosk is the engine surface the terminal drives.
type Kiosk interface {
	View(ctx context.Context) kiosk.View
	Tap(ctx context.Context, option string) kiosk.TapResult
	Back(ctx context.Context) kiosk.TapResult
	SubmitOther(ctx context.Context, employee, comment string) (string, bool)
	CancelOther()
	Activity()
	HotCornerDown()
	HotCornerUp()
	OpenAdmin()
	CloseAdmin()
	AdminSave(ctx context.Context, form kioskcfg.AdminForm) (string, bool)
	AdminTest(ctx context.Context, url string) (string, bool)
}

// VisibilityObserver is told when the terminal regains focus.
type VisibilityObserver interface {
	Visible(ctx context.Context)
}

type formMode int

const (
	formNone formMode = iota
	formOther
	formAdmin
)

const (
	otherEmployee = iota
	otherComment
)

const (
	adminPIN = iota
	adminURL
	adminSite
	adminDevice
	adminNewPIN
)

type tickMsg time.Time

type cornerCheckMsg struct{}

// adminResultMsg carries the outcome of a save or test run off the UI loop.
type adminResultMsg struct {
	message string
	ok      bool
}

type Model struct {
	ctx        context.Context
	kiosk      Kiosk
	visibility VisibilityObserver

	view   kiosk.View
	mode   formMode
	inputs []textinput.Model
	focus  int
	notice string
	busy   bool

	cornerHeld bool
	cornerSeen time.Time
	now        func() time.Time

	width  int
	height int
}

func New(ctx context.Context, k Kiosk, visibility VisibilityObserver) Model {
	m := Model{ctx: ctx, kiosk: k, visibility: visibility, now: time.Now}
	m.view = k.View(ctx)
	m.syncForm()
	return m
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.FocusMsg:
		if m.visibility != nil {
			m.visibility.Visible(m.ctx)
		}
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tick()

	case cornerCheckMsg:
		if m.cornerHeld && m.now().Sub(m.cornerSeen) >= cornerRelease {
			m.cornerHeld = false
			m.kiosk.HotCornerUp()
		}
		m.refresh()
		return m, nil

	case adminResultMsg:
		m.busy = false
		m.notice = msg.message
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		var cmd tea.Cmd
		switch m.mode {
		case formOther:
			cmd = m.updateOther(msg)
		case formAdmin:
			cmd = m.updateAdmin(msg)
		default:
			cmd = m.updateScreen(msg)
		}
		m.refresh()
		return m, cmd
	}
	return m, nil
}

func (m *Model) refresh() {
	m.view = m.kiosk.View(m.ctx)
	m.syncForm()
}

// syncForm opens or drops the text inputs to follow the engine's forms.
func (m *Model) syncForm() {
	switch {
	case m.view.Admin != nil:
		if m.mode != formAdmin {
			m.mode = formAdmin
			m.notice = ""
			m.inputs = adminInputs(*m.view.Admin)
			m.setFocus(adminPIN)
		}
	case m.view.Other != nil:
		if m.mode != formOther {
			m.mode = formOther
			m.notice = ""
			m.inputs = otherInputs()
			m.setFocus(otherEmployee)
		}
	default:
		m.mode = formNone
		m.inputs = nil
	}
}

func (m *Model) updateScreen(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyBackspace:
		m.kiosk.Back(m.ctx)
		return nil
	case tea.KeyF12:
		m.kiosk.OpenAdmin()
		return nil
	case tea.KeyRunes:
		switch key := string(msg.Runes); key {
		case "b":
			m.kiosk.Back(m.ctx)
			return nil
		case "a":
			return m.pressCorner()
		}
		if len(msg.Runes) == 1 && msg.Runes[0] >= '1' && msg.Runes[0] <= '9' {
			idx := int(msg.Runes[0] - '1')
			if idx < len(m.view.Options) {
				m.kiosk.Tap(m.ctx, m.view.Options[idx].Text)
				return nil
			}
		}
	}
	m.kiosk.Activity()
	return nil
}

// pressCorner treats a held "a" (key auto-repeat) as a held hot corner.
func (m *Model) pressCorner() tea.Cmd {
	if !m.cornerHeld {
		m.cornerHeld = true
		m.kiosk.HotCornerDown()
	}
	m.cornerSeen = m.now()
	return tea.Tick(cornerRelease, func(time.Time) tea.Msg { return cornerCheckMsg{} })
}

func (m *Model) updateOther(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.kiosk.CancelOther()
		return nil
	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		m.kiosk.Activity()
		m.setFocus((m.focus + 1) % len(m.inputs))
		return nil
	case tea.KeyEnter:
		msgText, _ := m.kiosk.SubmitOther(m.ctx, m.inputs[otherEmployee].Value(), m.inputs[otherComment].Value())
		m.notice = msgText
		return nil
	}
	m.kiosk.Activity()
	return m.updateInput(msg)
}

func (m *Model) updateAdmin(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.kiosk.CloseAdmin()
		return nil
	case tea.KeyTab, tea.KeyDown:
		m.setFocus((m.focus + 1) % len(m.inputs))
		return nil
	case tea.KeyShiftTab, tea.KeyUp:
		m.setFocus((m.focus + len(m.inputs) - 1) % len(m.inputs))
		return nil
	case tea.KeyEnter:
		if m.busy {
			return nil
		}
		m.busy = true
		return m.saveCmd(m.adminForm())
	case tea.KeyCtrlT:
		if m.busy {
			return nil
		}
		m.busy = true
		return m.testCmd(m.inputs[adminURL].Value())
	}
	return m.updateInput(msg)
}

func (m *Model) saveCmd(form kioskcfg.AdminForm) tea.Cmd {
	ctx, k := m.ctx, m.kiosk
	return func() tea.Msg {
		msg, ok := k.AdminSave(ctx, form)
		return adminResultMsg{message: msg, ok: ok}
	}
}

func (m *Model) testCmd(url string) tea.Cmd {
	ctx, k := m.ctx, m.kiosk
	return func() tea.Msg {
		msg, ok := k.AdminTest(ctx, url)
		return adminResultMsg{message: msg, ok: ok}
	}
}

func (m *Model) adminForm() kioskcfg.AdminForm {
	return kioskcfg.AdminForm{
		PIN:      m.inputs[adminPIN].Value(),
		APIURL:   m.inputs[adminURL].Value(),
		Site:     m.inputs[adminSite].Value(),
		DeviceID: m.inputs[adminDevice].Value(),
		NewPIN:   m.inputs[adminNewPIN].Value(),
	}
}

func (m *Model) updateInput(msg tea.KeyMsg) tea.Cmd {
	if m.focus >= len(m.inputs) {
		return nil
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return cmd
}

func (m *Model) setFocus(i int) {
	m.focus = i
	for j := range m.inputs {
		if j == i {
			m.inputs[j].Focus()
		} else {
			m.inputs[j].Blur()
		}
	}
}

func otherInputs() []textinput.Model {
	emp := textinput.New()
	emp.Prompt = "Número de empleado: "
	emp.CharLimit = 12
	com := textinput.New()
	com.Prompt = "Comentario: "
	com.CharLimit = 200
	return []textinput.Model{emp, com}
}

func adminInputs(v kiosk.AdminView) []textinput.Model {
	field := func(prompt, value string, secret bool) textinput.Model {
		in := textinput.New()
		in.Prompt = prompt
		in.SetValue(value)
		if secret {
			in.EchoMode = textinput.EchoPassword
		}
		return in
	}
	return []textinput.Model{
		field("PIN: ", "", true),
		field("API URL: ", v.APIURL, false),
		field("Sede: ", v.Site, false),
		field("Device ID: ", v.DeviceID, false),
		field("Nuevo PIN: ", "", true),
	}
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")).MarginBottom(1)
	optionStyle   = lipgloss.NewStyle().PaddingLeft(2)
	positiveStyle = optionStyle.Foreground(lipgloss.Color("42"))
	negativeStyle = optionStyle.Foreground(lipgloss.Color("203"))
	thanksStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")).Padding(1, 2)
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1)
	onlineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	offlineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 2)
)

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")

	switch m.mode {
	case formAdmin:
		b.WriteString(boxStyle.Render(m.renderAdmin()))
	case formOther:
		b.WriteString(m.renderScreen())
		b.WriteString("\n")
		b.WriteString(boxStyle.Render(m.renderOther()))
	default:
		b.WriteString(m.renderScreen())
	}
	return b.String()
}

func (m Model) statusLine() string {
	s := m.view.Status
	if s.Online {
		return onlineStyle.Render("● " + s.Label)
	}
	return offlineStyle.Render("● " + s.Label)
}

func (m Model) renderScreen() string {
	v := m.view
	if v.ThankYou != nil {
		return thanksStyle.Render(v.ThankYou.Title + "\n" + v.ThankYou.Detail)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(v.Question))
	b.WriteString("\n")
	for i, opt := range v.Options {
		style := optionStyle
		switch opt.Tag {
		case config.TagPositive:
			style = positiveStyle
		case config.TagNegative:
			style = negativeStyle
		}
		b.WriteString(style.Render(fmt.Sprintf("%d. %s", i+1, opt.Text)))
		b.WriteString("\n")
	}

	help := "1-9 elegir · mantener a / F12 admin · ctrl+c salir"
	if v.BackVisible {
		help = "1-9 elegir · b/esc regresar · mantener a / F12 admin · ctrl+c salir"
	}
	b.WriteString(helpStyle.Render(help))
	return b.String()
}

func (m Model) renderOther() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Otro"))
	b.WriteString("\n")
	for _, in := range m.inputs {
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	if msg := m.formMessage(); msg != "" {
		b.WriteString(noticeStyle.Render(msg))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("tab cambiar campo · enter enviar · esc cancelar"))
	return b.String()
}

func (m Model) renderAdmin() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Configuración del kiosco"))
	b.WriteString("\n")
	for _, in := range m.inputs {
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	if msg := m.formMessage(); msg != "" {
		b.WriteString(noticeStyle.Render(msg))
		b.WriteString("\n")
	}
	help := "tab cambiar campo · enter guardar · ctrl+t probar API · esc cerrar"
	if m.busy {
		help = "..."
	}
	b.WriteString(helpStyle.Render(help))
	return b.String()
}

func (m Model) formMessage() string {
	switch {
	case m.view.Admin != nil && m.view.Admin.Message != "":
		return m.view.Admin.Message
	case m.view.Other != nil && m.view.Other.Message != "":
		return m.view.Other.Message
	}
	return m.notice
}

// Run starts the terminal program and blocks until the operator quits or
// ctx is cancelled.
func Run(ctx context.Context, k Kiosk, visibility VisibilityObserver) error {
	p := tea.NewProgram(New(ctx, k, visibility), tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
