package ui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	viewerEvent "github.com/rescp17/intrusionViewer/internal/app_events/viewer"
	"github.com/rescp17/intrusionViewer/internal/style"
	"github.com/rescp17/intrusionViewer/pkg/control"
)

type pane int

const (
	recentPane pane = iota
	searchPane
)

// playerFor returns the player element a pane renders clips into.
func (p pane) playerFor() string {
	if p == searchPane {
		return control.SearchPlayerID
	}
	return control.RecentPlayerID
}

func paneFor(listID string) pane {
	if listID == control.SearchListID {
		return searchPane
	}
	return recentPane
}

// clipItem adapts a video entry to the bubbles list.
type clipItem struct {
	entry control.VideoEntry
}

func (i clipItem) Title() string       { return i.entry.Filename() }
func (i clipItem) Description() string { return i.entry.DisplayDescription() }
func (i clipItem) FilterValue() string { return i.entry.Path }

func newClipList(title string) list.Model {
	l := list.New(nil, style.NewListDelegate(), 40, 12)
	l.Title = title
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(true)
	l.Styles.Title = style.TitleStyle
	return l
}

type KeyMap struct {
	Play    key.Binding
	Save    key.Binding
	Refresh key.Binding
	Search  key.Binding
	Switch  key.Binding
	Submit  key.Binding
	Cancel  key.Binding
	Quit    key.Binding
}

// DefaultKeyMap provides sensible default keybindings.
var DefaultKeyMap = KeyMap{
	Play:    key.NewBinding(key.WithKeys("p", "enter"), key.WithHelp("p", "play")),
	Save:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save")),
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Search:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	Switch:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch list")),
	Submit:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "search")),
	Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// keyMap is the help.KeyMap for the current screen.
type keyMap []key.Binding

func (k keyMap) ShortHelp() []key.Binding  { return k }
func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k} }

func (m model) keyMap() keyMap {
	k := DefaultKeyMap
	if m.search.active {
		return keyMap{k.Submit, k.Switch, k.Cancel}
	}
	return keyMap{k.Play, k.Save, k.Refresh, k.Search, k.Switch, k.Quit}
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m.quit()
	}
	if m.search.active {
		return m.updateSearch(msg)
	}

	switch {
	case key.Matches(msg, DefaultKeyMap.Quit):
		return m.quit()
	case key.Matches(msg, DefaultKeyMap.Play):
		if entry, ok := m.selected(); ok {
			m.lastError = nil
			return m, m.sendEvent(viewerEvent.PlayMsg{Filename: entry.Path, PlayerID: m.active.playerFor()})
		}
		return m, nil
	case key.Matches(msg, DefaultKeyMap.Save):
		if entry, ok := m.selected(); ok {
			m.lastError = nil
			return m, m.sendEvent(viewerEvent.SaveMsg{Filename: entry.Path})
		}
		return m, nil
	case key.Matches(msg, DefaultKeyMap.Refresh):
		m.lastError = nil
		return m, m.sendEvent(viewerEvent.RefreshMsg{})
	case key.Matches(msg, DefaultKeyMap.Search):
		m.search.open()
		return m, nil
	case key.Matches(msg, DefaultKeyMap.Switch):
		m.active = 1 - m.active
		return m, nil
	}

	var cmd tea.Cmd
	m.panes[m.active], cmd = m.panes[m.active].Update(msg)
	return m, cmd
}

func (m model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	if m.stopped {
		return m, tea.Quit
	}
	return m, m.sendEvent(viewerEvent.DisconnectMsg{})
}

func (m model) selected() (control.VideoEntry, bool) {
	item, ok := m.panes[m.active].SelectedItem().(clipItem)
	if !ok {
		return control.VideoEntry{}, false
	}
	return item.entry, true
}

func (m *model) setVideos(msg viewerEvent.VideosMsg) {
	p := paneFor(msg.ListID)
	items := make([]list.Item, 0, len(msg.Videos))
	for _, v := range msg.Videos {
		items = append(items, clipItem{entry: v})
	}
	m.panes[p].SetItems(items)
	m.panes[p].ResetSelected()
	if p == searchPane {
		m.active = searchPane
	}
}

func (m model) panesView() string {
	views := make([]string, len(m.panes))
	for i := range m.panes {
		st := style.PaneStyle
		if pane(i) == m.active {
			st = st.BorderForeground(style.HighlightStyle.GetForeground())
		}
		views[i] = st.Render(m.panes[i].View())
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, views...)
}
