package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	appevents "github.com/rescp17/intrusionViewer/internal/app_events"
	viewerEvent "github.com/rescp17/intrusionViewer/internal/app_events/viewer"
	"github.com/rescp17/intrusionViewer/internal/style"
	"github.com/rescp17/intrusionViewer/internal/util"
	"github.com/rescp17/intrusionViewer/pkg/session"
	"github.com/rescp17/intrusionViewer/pkg/transfer"
)

const maxNotices = 4

// appDoneMsg is delivered when the controller's Run returns.
type appDoneMsg struct {
	err error
}

type model struct {
	ctx           context.Context
	appController AppController
	title         string

	phase   session.Phase
	status  string
	spinner spinner.Model
	help    help.Model

	panes   [2]list.Model
	active  pane
	search  searchForm
	catalog []string

	download  *viewerEvent.DownloadMsg
	notices   []string
	lastError error
	stopped   bool
	quitting  bool

	width, height int
}

// InitialModel builds the viewer TUI around a controller. title is shown in
// the header, usually the signaling url.
func InitialModel(ctx context.Context, controller AppController, title string) model {
	return model{
		ctx:           ctx,
		appController: controller,
		title:         title,
		phase:         session.PhaseIdle,
		spinner:       style.NewSpinner(),
		help:          help.New(),
		panes:         [2]list.Model{newClipList("Recent intrusions"), newClipList("Search results")},
		search:        newSearchForm(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.runApp(),
		m.listenForAppMessages(),
	)
}

func (m model) runApp() tea.Cmd {
	return func() tea.Msg {
		return appDoneMsg{err: m.appController.Run(m.ctx)}
	}
}

// listenForAppMessages is a command that listens for messages from the app controller.
func (m model) listenForAppMessages() tea.Cmd {
	return func() tea.Msg {
		return <-m.appController.UIMessages()
	}
}

// sendEvent hands an event to the controller without blocking Update.
func (m model) sendEvent(event appevents.AppEvent) tea.Cmd {
	if m.stopped {
		return nil
	}
	events := m.appController.AppEvents()
	done := m.ctx.Done()
	return func() tea.Msg {
		select {
		case events <- event:
		case <-done:
		}
		return nil
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case appDoneMsg:
		m.stopped = true
		if msg.err != nil {
			m.lastError = msg.err
		}
		if m.quitting {
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.handleAppMessage(msg) {
		return m, m.listenForAppMessages()
	}
	return m, nil
}

// handleAppMessage applies a controller message and reports whether msg was one.
func (m *model) handleAppMessage(msg tea.Msg) bool {
	switch msg := msg.(type) {
	case viewerEvent.PhaseMsg:
		m.phase = msg.Phase
	case viewerEvent.StatusMsg:
		m.status = msg.Text
	case viewerEvent.VideosMsg:
		m.setVideos(msg)
	case viewerEvent.CatalogMsg:
		m.catalog = msg.Objects
	case viewerEvent.PlayingMsg:
		m.notice(fmt.Sprintf("Playing %s from %s", msg.Filename, msg.Path))
	case viewerEvent.SavedMsg:
		m.notice(style.SuccessStyle.Render(fmt.Sprintf("Saved %s (%s) to %s", msg.Filename, util.FormatSize(msg.Size), msg.Path)))
	case viewerEvent.DownloadMsg:
		m.setDownload(msg)
	case viewerEvent.TrackMsg:
		if msg.Path != "" {
			m.notice(fmt.Sprintf("Recording live %s video to %s", msg.Codec, msg.Path))
		} else {
			m.notice(fmt.Sprintf("Live %s video attached", msg.Codec))
		}
	case appevents.AppErrorMsg:
		m.lastError = msg.Err
	default:
		return false
	}
	return true
}

// setDownload tracks the active download; any other state of that clip ends it.
func (m *model) setDownload(msg viewerEvent.DownloadMsg) {
	switch msg.State {
	case transfer.StateActive:
		m.download = &msg
	case transfer.StateQueued:
		if m.download != nil {
			d := *m.download
			d.Pending = msg.Pending
			m.download = &d
		}
	default:
		if m.download != nil && m.download.Filename == msg.Filename {
			m.download = nil
		}
	}
}

func (m *model) notice(text string) {
	m.notices = append(m.notices, text)
	if len(m.notices) > maxNotices {
		m.notices = m.notices[len(m.notices)-maxNotices:]
	}
}

func (m *model) resize(width, height int) {
	m.width, m.height = width, height
	h, v := style.DocStyle.GetFrameSize()
	paneWidth := (width-h)/2 - 4
	paneHeight := height - v - 12
	if paneHeight < 5 {
		paneHeight = 5
	}
	for i := range m.panes {
		m.panes[i].SetSize(paneWidth, paneHeight)
	}
	m.help.Width = width
}

func (m model) View() string {
	if m.quitting && m.stopped {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n\n")

	if m.search.active {
		b.WriteString(m.search.View(m.catalog))
	} else {
		b.WriteString(m.panesView())
	}
	b.WriteString("\n")

	if m.download != nil {
		b.WriteString(m.downloadView() + "\n")
	}
	for _, n := range m.notices {
		b.WriteString(n + "\n")
	}
	if m.lastError != nil {
		b.WriteString(style.ErrorStyle.Render("Error: "+m.lastError.Error()) + "\n")
	}
	b.WriteString("\n" + m.help.View(m.keyMap()))
	return style.DocStyle.Render(b.String())
}

func (m model) downloadView() string {
	d := m.download
	line := fmt.Sprintf("%s Downloading %s: %s in %d chunks",
		m.spinner.View(), d.Filename, util.FormatSize(d.BufferedBytes), d.Chunks)
	if n := len(d.Pending); n > 0 {
		line += fmt.Sprintf(" (%d queued: %s)", n, strings.Join(d.Pending, ", "))
	}
	return style.StatusBarStyle.Render(line)
}

func (m model) headerView() string {
	failed := m.phase == session.PhaseFailed
	established := m.phase == session.PhaseEstablished
	badge := style.PhaseStyle(established, failed).Render(m.phase.String())

	var spin string
	if !established && !m.phase.IsTerminal() {
		spin = m.spinner.View() + " "
	}
	header := lipgloss.JoinHorizontal(lipgloss.Center,
		style.TitleStyle.Render("Intrusion viewer"),
		" ",
		style.HelpStyle.Render(m.title),
		"  ",
		spin+badge,
	)
	if m.status != "" {
		header += "\n" + style.StatusBarStyle.Render(m.status)
	}
	return header
}
