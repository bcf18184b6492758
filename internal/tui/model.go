// Package tui is the terminal dashboard for a polling pipeline.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/crimson-sun/fortiwatch/internal/model"
	"github.com/crimson-sun/fortiwatch/internal/pipeline"
)

// Source is the pipeline as seen by the dashboard.
type Source interface {
	Refresh(ctx context.Context) ([]model.Record, error)
	Records() []model.Record
	State() model.State
	LastError() error
}

// UpdateMsg carries the result of a fetch cycle into the program. Send it
// from the pipeline's update callback.
type UpdateMsg struct {
	Records []model.Record
	Err     error
}

type tickMsg time.Time

// Model is the dashboard model.
type Model struct {
	src   Source
	title string
	mock  bool

	records []model.Record
	err     error // last cycle error; records stay on screen
	state   model.State

	search   textinput.Model
	selected int

	width  int
	height int

	keys keyMap
}

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Search  key.Binding
	Clear   key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Clear: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "clear search"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// NewModel creates the dashboard over src. title is shown in the header,
// typically the appliance address.
func NewModel(src Source, title string, mock bool) Model {
	ti := textinput.New()
	ti.Placeholder = "Search logs..."
	ti.Prompt = "/ "
	ti.CharLimit = 128

	return Model{
		src:     src,
		title:   title,
		mock:    mock,
		records: src.Records(),
		state:   src.State(),
		search:  ti,
		keys:    defaultKeyMap(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// visible returns the records matching the search term.
func (m Model) visible() []model.Record {
	return pipeline.Filter(m.records, m.search.Value())
}

func (m Model) refresh() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		recs, err := m.src.Refresh(ctx)
		if err != nil {
			return UpdateMsg{Records: m.src.Records(), Err: err}
		}
		return UpdateMsg{Records: recs}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
