package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	viewerEvent "github.com/rescp17/intrusionViewer/internal/app_events/viewer"
	"github.com/rescp17/intrusionViewer/internal/style"
	"github.com/rescp17/intrusionViewer/internal/util"
	"github.com/rescp17/intrusionViewer/pkg/control"
)

const (
	fieldObjects = iota
	fieldStart
	fieldEnd
)

// searchForm collects the object classes and the date bounds of a search.
type searchForm struct {
	active bool
	focus  int
	inputs []textinput.Model
}

func newSearchForm() searchForm {
	placeholders := []string{
		"person, car",
		control.SearchDateLayout,
		control.SearchDateLayout,
	}
	inputs := make([]textinput.Model, len(placeholders))
	for i, p := range placeholders {
		ti := textinput.New()
		ti.Placeholder = p
		ti.CharLimit = 128
		ti.Width = 40
		inputs[i] = ti
	}
	return searchForm{inputs: inputs}
}

func (f *searchForm) open() {
	f.active = true
	f.setFocus(fieldObjects)
}

func (f *searchForm) close() {
	f.active = false
	for i := range f.inputs {
		f.inputs[i].Blur()
	}
}

func (f *searchForm) setFocus(i int) {
	f.focus = i
	for j := range f.inputs {
		if j == i {
			f.inputs[j].Focus()
		} else {
			f.inputs[j].Blur()
		}
	}
}

// request builds the search event from the form fields.
func (f searchForm) request() viewerEvent.SearchMsg {
	var objects []string
	for _, o := range strings.Split(f.inputs[fieldObjects].Value(), ",") {
		if o = strings.TrimSpace(o); o != "" {
			objects = append(objects, o)
		}
	}
	return viewerEvent.SearchMsg{
		Objects:   objects,
		StartDate: strings.TrimSpace(f.inputs[fieldStart].Value()),
		EndDate:   strings.TrimSpace(f.inputs[fieldEnd].Value()),
	}
}

func (f searchForm) View(catalog []string) string {
	labels := []string{"Objects", "From", "To"}
	var b strings.Builder
	b.WriteString(style.TitleStyle.Render("Search intrusions") + "\n\n")
	for i, in := range f.inputs {
		label := util.PadRight(labels[i], 8)
		if i == f.focus {
			label = style.HighlightStyle.Render(label)
		}
		b.WriteString(label + " " + in.View() + "\n")
	}
	if len(catalog) > 0 {
		b.WriteString("\n" + style.HelpStyle.Render("Known objects: "+strings.Join(catalog, ", ")) + "\n")
	}
	return b.String()
}

func (m model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, DefaultKeyMap.Cancel):
		m.search.close()
		return m, nil
	case key.Matches(msg, DefaultKeyMap.Switch), msg.Type == tea.KeyDown:
		m.search.setFocus((m.search.focus + 1) % len(m.search.inputs))
		return m, nil
	case msg.Type == tea.KeyUp, msg.Type == tea.KeyShiftTab:
		m.search.setFocus((m.search.focus + len(m.search.inputs) - 1) % len(m.search.inputs))
		return m, nil
	case key.Matches(msg, DefaultKeyMap.Submit):
		req := m.search.request()
		m.search.close()
		m.lastError = nil
		return m, m.sendEvent(req)
	}

	var cmd tea.Cmd
	m.search.inputs[m.search.focus], cmd = m.search.inputs[m.search.focus].Update(msg)
	return m, cmd
}
