// Package tui is the bubbletea presentation layer. It follows the Elm
// architecture: one model, messages in, view out. All controller state
// changes happen inside Update, so generation's check-and-set of the busy
// flag never races; only the oracle call itself runs off the loop.
package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kwren/distill/internal/config"
	"github.com/kwren/distill/internal/generation"
	"github.com/kwren/distill/internal/logbook"
	"github.com/kwren/distill/internal/store"
)

// appState represents which screen is active.
type appState int

const (
	stateLibrary appState = iota
	stateRun
)

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithControllerOptions forwards extra options to every generation
// controller the TUI creates (tests inject scripted oracles this way).
func WithControllerOptions(opts ...generation.Option) AppOption {
	return func(a *App) {
		a.controllerOpts = append(a.controllerOpts, opts...)
	}
}

// App is the root bubbletea model.
type App struct {
	state   appState
	config  *config.Config
	store   *store.Store
	logbook *logbook.Logbook

	controllerOpts []generation.Option

	library list.Model
	runView *runView

	statusMsg string
	width     int
	height    int
}

// docItem implements list.Item for the library screen.
type docItem struct {
	doc      store.Document
	sections int
	accepted int
}

func (i docItem) Title() string {
	title := i.doc.Title
	if strings.TrimSpace(title) == "" {
		title = "(untitled)"
	}
	return title
}

func (i docItem) Description() string {
	author := i.doc.Author
	if strings.TrimSpace(author) == "" {
		author = "(unknown)"
	}
	return fmt.Sprintf("%s · %d section(s), %d accepted · %s/%s",
		author, i.sections, i.accepted, i.doc.Run.Provider, i.doc.Run.Model)
}

func (i docItem) FilterValue() string { return i.doc.Title }

// NewApp creates the root model over an already-initialized distill home.
func NewApp(cfg *config.Config, st *store.Store, lb *logbook.Logbook, opts ...AppOption) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("tui: config is required")
	}
	if st == nil {
		return nil, fmt.Errorf("tui: store is required")
	}
	library := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	library.Title = "◈ DISTILL · LIBRARY"
	library.SetShowStatusBar(false)
	library.SetFilteringEnabled(false)

	app := &App{
		state:     stateLibrary,
		config:    cfg,
		store:     st,
		logbook:   lb,
		library:   library,
		statusMsg: "Enter → open document · q → quit",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	if err := app.refreshLibrary(); err != nil {
		return nil, err
	}
	lb.Info("session opened, %d document(s) in library", len(app.library.Items()))
	return app, nil
}

func (a *App) refreshLibrary() error {
	docs, err := a.store.Documents()
	if err != nil {
		return err
	}
	items := make([]list.Item, 0, len(docs))
	for _, doc := range docs {
		sections, err := a.store.ListOrdered(doc.ID)
		if err != nil {
			return err
		}
		accepted := 0
		for _, section := range sections {
			if section.Status == store.StatusAccepted {
				accepted++
			}
		}
		items = append(items, docItem{doc: doc, sections: len(sections), accepted: accepted})
	}
	a.library.SetItems(items)
	return nil
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return nil
}

// Update is called for every message.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.library.SetSize(max(0, msg.Width-6), max(0, msg.Height-12))
		if a.runView != nil {
			return a, a.runView.Update(msg)
		}
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		case "q":
			if a.state == stateLibrary {
				return a, tea.Quit
			}
		case "esc":
			if a.state == stateRun && a.runView != nil && a.runView.mode != modeBrowse {
				break
			}
			if a.state == stateRun {
				return a.returnToLibrary()
			}
		case "enter":
			if a.state == stateLibrary {
				return a.openSelectedDocument()
			}
		}
	}

	switch a.state {
	case stateLibrary:
		var cmd tea.Cmd
		a.library, cmd = a.library.Update(msg)
		return a, cmd
	case stateRun:
		if a.runView != nil {
			return a, a.runView.Update(msg)
		}
	}
	return a, nil
}

func (a *App) openSelectedDocument() (tea.Model, tea.Cmd) {
	item, ok := a.library.SelectedItem().(docItem)
	if !ok {
		a.statusMsg = "Library is empty · add a document with: distill add <file>"
		return a, nil
	}
	view, err := newRunView(a, item.doc)
	if err != nil {
		a.statusMsg = fmt.Sprintf("Cannot open document: %v", err)
		a.logbook.Error("open document %s: %v", item.doc.ID, err)
		return a, nil
	}
	a.state = stateRun
	a.runView = view
	a.logbook.Info("opened %q", item.Title())
	a.statusMsg = "g → generate · esc → library"
	if a.width > 0 {
		return a, view.Update(tea.WindowSizeMsg{Width: a.width, Height: a.height})
	}
	return a, nil
}

func (a *App) returnToLibrary() (tea.Model, tea.Cmd) {
	if a.runView != nil && a.runView.generating {
		a.statusMsg = "Still generating · s to stop, then esc"
		return a, nil
	}
	a.state = stateLibrary
	a.runView = nil
	a.statusMsg = "Enter → open document · q → quit"
	if err := a.refreshLibrary(); err != nil {
		a.statusMsg = fmt.Sprintf("Library refresh failed: %v", err)
	}
	return a, nil
}

// View renders the current screen.
func (a *App) View() string {
	var content string
	switch a.state {
	case stateLibrary:
		content = a.library.View()
	case stateRun:
		if a.runView != nil {
			content = a.runView.View()
		}
	}
	sections := []string{content}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	footer := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		MarginTop(1).
		Render(a.statusMsg)
	sections = append(sections, footer)
	return strings.Join(sections, "\n")
}

func (a *App) renderLogPanel() string {
	lines := a.logbook.Tail(6)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s", fileName))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
}
