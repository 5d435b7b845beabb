package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"graphrag/internal/domain"
	"graphrag/internal/session"
)

const (
	fieldWorkspace = iota
	fieldCollection
	fieldCollectionName
	fieldFile
	fieldQuery
	fieldCount
)

// Options tune how results are rendered.
type Options struct {
	PreviewChars   int
	MaxEntityChips int
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	ctx     context.Context
	store   *session.Store
	queries *session.QueryCoordinator
	uploads *session.UploadCoordinator
	opts    Options

	inputs   []textinput.Model
	focus    int
	spinner  spinner.Model
	viewport viewport.Model
	prompt   string
	ready    bool
	width    int
	height   int
}

// New creates a new TUI model instance.
func New(ctx context.Context, store *session.Store, queries *session.QueryCoordinator, uploads *session.UploadCoordinator, opts Options) Model {
	if opts.PreviewChars <= 0 {
		opts.PreviewChars = 200
	}
	if opts.MaxEntityChips <= 0 {
		opts.MaxEntityChips = 5
	}

	ids := store.Identifiers()
	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		ti := textinput.New()
		ti.Prompt = "> "
		ti.CharLimit = 0
		inputs[i] = ti
	}
	inputs[fieldWorkspace].Placeholder = "Workspace ID"
	inputs[fieldWorkspace].SetValue(ids.WorkspaceID)
	inputs[fieldCollection].Placeholder = "Collection ID"
	inputs[fieldCollection].SetValue(ids.CollectionID)
	inputs[fieldCollectionName].Placeholder = "Collection Name (optional)"
	inputs[fieldCollectionName].SetValue(ids.CollectionName)
	inputs[fieldFile].Placeholder = "Choose a file... (path, ctrl+u to upload)"
	inputs[fieldQuery].Placeholder = "What would you like to know about your documents?"

	m := Model{
		ctx:      ctx,
		store:    store,
		queries:  queries,
		uploads:  uploads,
		opts:     opts,
		inputs:   inputs,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		viewport: viewport.New(0, 0),
	}
	m.focus = fieldQuery
	if ids.CollectionID == "" {
		m.focus = fieldCollection
	}
	m.inputs[m.focus].Focus()
	return m
}

// Init starts the cursor blink and the spinner loop.
func (m Model) Init() tea.Cmd { return tea.Batch(textinput.Blink, m.spinner.Tick) }

// Update handles key, window and coordinator events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case session.AnswerMsg, session.SearchMsg:
		m.queries.Handle(msg)
		m.refreshResults()
		return m, nil
	case session.UploadMsg:
		m.uploads.Handle(msg)
		if m.store.PendingUpload() == nil {
			m.inputs[fieldFile].SetValue("")
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m.updateFocused(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
		return m, tea.Quit
	}
	// A validation prompt blocks all other input until dismissed.
	if m.prompt != "" {
		if msg.Type == tea.KeyEnter || msg.Type == tea.KeyEsc {
			m.prompt = ""
		}
		return m, nil
	}

	switch msg.String() {
	case "tab", "down":
		return m.setFocus((m.focus + 1) % fieldCount)
	case "shift+tab", "up":
		return m.setFocus((m.focus - 1 + fieldCount) % fieldCount)
	case "pgdown":
		m.viewport.HalfViewDown()
		return m, nil
	case "pgup":
		m.viewport.HalfViewUp()
		return m, nil
	case "ctrl+u":
		return m.submitUpload()
	case "enter":
		if m.focus == fieldFile {
			return m.submitUpload()
		}
		return m.submitQuery()
	}
	return m.updateFocused(msg)
}

func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) setFocus(i int) (tea.Model, tea.Cmd) {
	m.inputs[m.focus].Blur()
	m.focus = i
	return m, m.inputs[m.focus].Focus()
}

func (m *Model) syncIdentifiers() {
	m.store.SetIdentifiers(domain.Identifiers{
		WorkspaceID:    m.inputs[fieldWorkspace].Value(),
		CollectionID:   m.inputs[fieldCollection].Value(),
		CollectionName: m.inputs[fieldCollectionName].Value(),
	})
	m.inputs[fieldWorkspace].SetValue(m.store.Identifiers().WorkspaceID)
}

func (m Model) submitQuery() (tea.Model, tea.Cmd) {
	m.syncIdentifiers()
	cmd, err := m.queries.Submit(m.ctx, m.inputs[fieldQuery].Value())
	if err != nil {
		m.block(err)
		return m, nil
	}
	m.refreshResults()
	return m, cmd
}

func (m Model) submitUpload() (tea.Model, tea.Cmd) {
	m.syncIdentifiers()
	path := strings.TrimSpace(m.inputs[fieldFile].Value())
	pending := m.store.PendingUpload()
	switch {
	case path == "":
		m.store.ClearFile()
	case pending == nil || pending.Path != path:
		if err := m.store.SelectFile(path); err != nil {
			m.prompt = err.Error()
			return m, nil
		}
	}
	cmd, err := m.uploads.Submit(m.ctx, nil)
	if err != nil {
		m.block(err)
		return m, nil
	}
	return m, cmd
}

func (m *Model) block(err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		m.prompt = ve.Message
		return
	}
	m.prompt = err.Error()
}

func (m *Model) resize() {
	_, ph := panelStyle.GetFrameSize()
	reserved := headerLines + ph + 1
	vh := m.height - reserved
	if vh < 3 {
		vh = 3
	}
	m.viewport.Width = max(20, m.panelWidth())
	m.viewport.Height = vh
	m.refreshResults()
}

func (m *Model) refreshResults() {
	m.viewport.SetContent(m.renderSources(m.viewport.Width))
	m.viewport.GotoTop()
}

func (m Model) panelWidth() int {
	pw, _ := panelStyle.GetFrameSize()
	w := m.width/2 - pw
	if w < 20 {
		w = 20
	}
	return w
}
