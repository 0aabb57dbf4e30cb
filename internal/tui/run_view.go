package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kwren/distill/internal/export"
	"github.com/kwren/distill/internal/generation"
	"github.com/kwren/distill/internal/provider"
	"github.com/kwren/distill/internal/store"
)

var (
	statusStyleDraft     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	statusStyleAccepted  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	statusStyleDiscarded = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	runHintStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).MarginTop(1)
	runHeaderStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
)

type runMode int

const (
	modeBrowse runMode = iota
	modeEditContent
	modeEditProvider
	modeEditModel
)

// completionMsg carries a finished oracle call back into the event loop.
// Finish runs on the loop, so the busy flag is only touched synchronously.
type completionMsg struct {
	cycle *generation.Cycle
	text  string
	err   error
}

// settleMsg fires after the settling delay and triggers the continuation
// evaluation.
type settleMsg struct{}

type runView struct {
	app  *App
	doc  store.Document
	ctrl *generation.Controller

	sections  []store.Section
	selection int

	mode       runMode
	generating bool

	content viewport.Model
	spin    spinner.Model
	editor  textarea.Model
	field   textinput.Model

	width  int
	height int
}

func newRunView(app *App, doc store.Document) (*runView, error) {
	ctrlOpts := append([]generation.Option{
		generation.WithCredentials(app.config.CredentialFor),
		generation.WithLogbook(app.logbook),
	}, app.controllerOpts...)
	ctrl, err := generation.New(app.store, doc.ID, ctrlOpts...)
	if err != nil {
		return nil, err
	}
	spin := spinner.New(spinner.WithSpinner(spinner.Dot))
	editor := textarea.New()
	editor.CharLimit = 0
	field := textinput.New()
	view := &runView{
		app:     app,
		doc:     doc,
		ctrl:    ctrl,
		content: viewport.New(60, 16),
		spin:    spin,
		editor:  editor,
		field:   field,
	}
	if err := view.reload(); err != nil {
		return nil, err
	}
	view.selection = len(view.sections) - 1
	if view.selection < 0 {
		view.selection = 0
	}
	view.syncContent()
	return view, nil
}

// reload re-reads the document and its sections from the store. Every view
// refresh goes through here so the screen always shows durable state.
func (v *runView) reload() error {
	doc, err := v.app.store.Document(v.doc.ID)
	if err != nil {
		return err
	}
	sections, err := v.app.store.ListOrdered(v.doc.ID)
	if err != nil {
		return err
	}
	v.doc = doc
	v.sections = sections
	if v.selection >= len(v.sections) {
		v.selection = len(v.sections) - 1
	}
	if v.selection < 0 {
		v.selection = 0
	}
	return nil
}

func (v *runView) selected() (store.Section, bool) {
	if len(v.sections) == 0 || v.selection >= len(v.sections) {
		return store.Section{}, false
	}
	return v.sections[v.selection], true
}

func (v *runView) syncContent() {
	section, ok := v.selected()
	if !ok {
		v.content.SetContent("No sections yet. Press g to generate the first one.")
		return
	}
	v.content.SetContent(section.Content)
}

func (v *runView) setStatus(format string, args ...any) {
	v.app.statusMsg = fmt.Sprintf(format, args...)
}

func (v *runView) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = m.Width
		v.height = m.Height
		v.content.Width = max(30, m.Width-40)
		v.content.Height = max(8, m.Height-14)
		v.editor.SetWidth(v.content.Width)
		v.editor.SetHeight(v.content.Height)
		return nil

	case completionMsg:
		return v.handleCompletion(m)

	case settleMsg:
		return v.handleSettle()

	case spinner.TickMsg:
		if !v.generating {
			return nil
		}
		var cmd tea.Cmd
		v.spin, cmd = v.spin.Update(m)
		return cmd

	case tea.KeyMsg:
		switch v.mode {
		case modeEditContent:
			return v.updateContentEditor(m)
		case modeEditProvider, modeEditModel:
			return v.updateFieldEditor(m)
		default:
			return v.handleBrowseKey(m)
		}
	}

	var cmd tea.Cmd
	v.content, cmd = v.content.Update(msg)
	return cmd
}

func (v *runView) handleBrowseKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "g":
		return v.startCycle()
	case "a":
		return v.acceptSelected()
	case "d":
		v.discardSelected()
	case "e":
		v.beginContentEdit()
	case "u":
		v.undo()
	case "x":
		v.clearRun()
	case "s":
		v.ctrl.RequestStop()
		v.setStatus("Stop requested · honored at the next checkpoint")
	case "t":
		v.toggleAutoAdvance()
	case "p":
		return v.beginFieldEdit(modeEditProvider)
	case "m":
		return v.beginFieldEdit(modeEditModel)
	case "w":
		v.writeExports()
	case "up", "k":
		if v.selection > 0 {
			v.selection--
			v.syncContent()
		}
	case "down", "j":
		if v.selection < len(v.sections)-1 {
			v.selection++
			v.syncContent()
		}
	default:
		var cmd tea.Cmd
		v.content, cmd = v.content.Update(msg)
		return cmd
	}
	return nil
}

// startCycle runs the synchronous cycle entry on the event loop, then hands
// the network call to a command. Only the oracle call leaves the loop.
func (v *runView) startCycle() tea.Cmd {
	cy, err := v.ctrl.Begin()
	if err != nil {
		switch {
		case errors.Is(err, generation.ErrBusy):
			v.setStatus("Already generating")
		case errors.Is(err, generation.ErrStopped):
			v.setStatus("Stopped before the next request")
		case errors.Is(err, generation.ErrNoCredential):
			v.setStatus("No credential: %v", err)
		default:
			v.setStatus("Cannot generate: %v", err)
		}
		return nil
	}
	v.generating = true
	v.setStatus("Generating section %d…", v.doc.NextOrdinal)
	ctrl := v.ctrl
	return tea.Batch(v.spin.Tick, func() tea.Msg {
		text, callErr := ctrl.Execute(context.Background(), cy)
		return completionMsg{cycle: cy, text: text, err: callErr}
	})
}

func (v *runView) handleCompletion(msg completionMsg) tea.Cmd {
	v.generating = false
	out, err := v.ctrl.Finish(msg.cycle, msg.text, msg.err)
	if err != nil {
		var provErr *provider.Error
		if errors.As(err, &provErr) {
			v.setStatus("Provider error: %v", provErr)
		} else {
			v.setStatus("Generation failed: %v", err)
		}
		_ = v.reload()
		return nil
	}
	if err := v.reload(); err != nil {
		v.setStatus("Reload failed: %v", err)
		return nil
	}
	v.selection = v.indexOf(out.Section.ID)
	v.syncContent()
	if out.Section.Status == store.StatusDraft {
		v.setStatus("Section %d drafted · a accept, d discard, e edit", out.Section.Ordinal)
	} else {
		v.setStatus("Section %d accepted automatically", out.Section.Ordinal)
	}
	if out.ScheduleContinuation {
		return v.scheduleSettle()
	}
	return nil
}

func (v *runView) scheduleSettle() tea.Cmd {
	return tea.Tick(v.ctrl.SettleDelay(), func(time.Time) tea.Msg {
		return settleMsg{}
	})
}

func (v *runView) handleSettle() tea.Cmd {
	decision, err := v.ctrl.EvaluateContinuation()
	if err != nil {
		v.setStatus("Continuation check failed: %v", err)
		return nil
	}
	if decision.Continue {
		return v.startCycle()
	}
	if decision.Halted {
		_ = v.reload()
		v.setStatus("Auto-advance finished")
	}
	return nil
}

func (v *runView) indexOf(sectionID string) int {
	for i, section := range v.sections {
		if section.ID == sectionID {
			return i
		}
	}
	return max(0, len(v.sections)-1)
}

func (v *runView) acceptSelected() tea.Cmd {
	section, ok := v.selected()
	if !ok {
		return nil
	}
	_, schedule, err := v.ctrl.AcceptDraft(section.ID)
	if err != nil {
		v.reportTransition("accept", err)
		return nil
	}
	_ = v.reload()
	v.syncContent()
	v.setStatus("Section %d accepted", section.Ordinal)
	if schedule {
		v.setStatus("Section %d accepted · auto-advance continuing", section.Ordinal)
		return v.scheduleSettle()
	}
	return nil
}

func (v *runView) discardSelected() {
	section, ok := v.selected()
	if !ok {
		return
	}
	if _, err := v.ctrl.DiscardDraft(section.ID); err != nil {
		v.reportTransition("discard", err)
		return
	}
	_ = v.reload()
	v.syncContent()
	v.setStatus("Section %d discarded", section.Ordinal)
}

func (v *runView) reportTransition(action string, err error) {
	if errors.Is(err, store.ErrInvalidTransition) {
		v.setStatus("Cannot %s: only drafts can change status", action)
		return
	}
	v.setStatus("Cannot %s: %v", action, err)
}

func (v *runView) beginContentEdit() {
	section, ok := v.selected()
	if !ok {
		return
	}
	v.mode = modeEditContent
	v.editor.SetValue(section.Content)
	v.editor.Focus()
	v.setStatus("Editing section %d · ctrl+s save, esc cancel", section.Ordinal)
}

func (v *runView) updateContentEditor(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		v.mode = modeBrowse
		v.editor.Blur()
		v.setStatus("Edit cancelled")
		return nil
	case "ctrl+s":
		section, ok := v.selected()
		if !ok {
			v.mode = modeBrowse
			return nil
		}
		if _, err := v.ctrl.EditContent(section.ID, v.editor.Value()); err != nil {
			v.setStatus("Save failed: %v", err)
			return nil
		}
		v.mode = modeBrowse
		v.editor.Blur()
		_ = v.reload()
		v.syncContent()
		v.setStatus("Section %d saved", section.Ordinal)
		return nil
	}
	var cmd tea.Cmd
	v.editor, cmd = v.editor.Update(msg)
	return cmd
}

func (v *runView) beginFieldEdit(mode runMode) tea.Cmd {
	v.mode = mode
	switch mode {
	case modeEditProvider:
		v.field.Prompt = "provider: "
		v.field.SetValue(v.doc.Run.Provider)
		v.setStatus("Provider (%s) · enter save, esc cancel", strings.Join(provider.IDs(), ", "))
	case modeEditModel:
		v.field.Prompt = "model: "
		v.field.SetValue(v.doc.Run.Model)
		v.setStatus("Model · enter save, esc cancel")
	}
	v.field.CursorEnd()
	return v.field.Focus()
}

func (v *runView) updateFieldEditor(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		v.mode = modeBrowse
		v.field.Blur()
		v.setStatus("Edit cancelled")
		return nil
	case "enter":
		value := strings.TrimSpace(v.field.Value())
		run := v.doc.Run
		switch v.mode {
		case modeEditProvider:
			if !knownProvider(value) {
				v.setStatus("Unknown provider %q (use one of %s)", value, strings.Join(provider.IDs(), ", "))
				return nil
			}
			run.Provider = value
		case modeEditModel:
			if value == "" {
				v.setStatus("Model cannot be empty")
				return nil
			}
			run.Model = value
		}
		if _, err := v.app.store.UpdateRunConfig(v.doc.ID, run); err != nil {
			v.setStatus("Save failed: %v", err)
			return nil
		}
		v.mode = modeBrowse
		v.field.Blur()
		_ = v.reload()
		v.setStatus("Run configuration saved")
		return nil
	}
	var cmd tea.Cmd
	v.field, cmd = v.field.Update(msg)
	return cmd
}

func knownProvider(id string) bool {
	for _, known := range provider.IDs() {
		if known == id {
			return true
		}
	}
	return false
}

func (v *runView) undo() {
	section, ok, err := v.ctrl.UndoLastAccepted()
	if err != nil {
		v.setStatus("Undo failed: %v", err)
		return
	}
	if !ok {
		v.setStatus("Nothing to undo")
		return
	}
	_ = v.reload()
	v.syncContent()
	v.setStatus("Removed section %d", section.Ordinal)
}

func (v *runView) clearRun() {
	if err := v.ctrl.ClearRun(); err != nil {
		v.setStatus("Clear failed: %v", err)
		return
	}
	_ = v.reload()
	v.selection = 0
	v.syncContent()
	v.setStatus("Run cleared · ordinals restart at 1")
}

func (v *runView) toggleAutoAdvance() {
	doc, err := v.ctrl.ToggleAutoAdvance(!v.doc.Run.AutoAdvance)
	if err != nil {
		v.setStatus("Toggle failed: %v", err)
		return
	}
	v.doc = doc
	if doc.Run.AutoAdvance {
		v.setStatus("Auto-advance on · halts at %s or %d accepted sections", doc.Run.StopToken, doc.Run.MaxSections)
	} else {
		v.setStatus("Auto-advance off")
	}
}

func (v *runView) writeExports() {
	stitched, err := v.ctrl.StitchedText()
	if err != nil {
		v.setStatus("Export failed: %v", err)
		return
	}
	if strings.TrimSpace(stitched) == "" {
		v.setStatus("Nothing to export: no accepted sections")
		return
	}
	exporter, err := export.New(v.app.config.ExportDir)
	if err != nil {
		v.setStatus("Export failed: %v", err)
		return
	}
	mdPath, err := exporter.Markdown(v.doc.Title, stitched)
	if err != nil {
		v.setStatus("Export failed: %v", err)
		return
	}
	if _, err := exporter.HTML(v.doc.Title, stitched); err != nil {
		v.setStatus("HTML export failed: %v", err)
		return
	}
	v.app.logbook.Info("exported %s", mdPath)
	v.setStatus("Exported to %s (.md and .html)", v.app.config.ExportDir)
}

func (v *runView) View() string {
	header := v.renderHeader()
	left := v.renderSectionList(34)
	var right string
	switch v.mode {
	case modeEditContent:
		right = v.editor.View()
	case modeEditProvider, modeEditModel:
		right = v.field.View()
	default:
		right = v.content.View()
	}
	rightBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(right)
	leftBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Width(36).
		Render(left)
	body := lipgloss.JoinHorizontal(lipgloss.Top, leftBox, rightBox)
	hints := runHintStyle.Render(
		"g generate · a accept · d discard · e edit · u undo · x clear · s stop · t auto-advance · p provider · m model · w export · esc library")
	return lipgloss.JoinVertical(lipgloss.Left, header, body, hints)
}

func (v *runView) renderHeader() string {
	title := v.doc.Title
	if strings.TrimSpace(title) == "" {
		title = "(untitled)"
	}
	mode := "manual"
	if v.doc.Run.AutoAdvance {
		mode = "auto-advance"
	}
	line := fmt.Sprintf("%s · %s/%s · %s · max %d",
		title, v.doc.Run.Provider, v.doc.Run.Model, mode, v.doc.Run.MaxSections)
	if v.generating {
		line = fmt.Sprintf("%s %s generating…", line, v.spin.View())
	}
	return runHeaderStyle.Render(line)
}

func (v *runView) renderSectionList(width int) string {
	if len(v.sections) == 0 {
		return lipgloss.NewStyle().Width(width).Render("No sections yet.")
	}
	var rows []string
	for i, section := range v.sections {
		marker := "  "
		if i == v.selection {
			marker = "> "
		}
		heading := section.Heading
		if heading == "" {
			heading = "(empty)"
		}
		row := fmt.Sprintf("%s%d. %s %s", marker, section.Ordinal, statusGlyph(section.Status), heading)
		if i == v.selection {
			row = lipgloss.NewStyle().Bold(true).Render(row)
		}
		rows = append(rows, lipgloss.NewStyle().Width(width).MaxHeight(1).Render(row))
	}
	return strings.Join(rows, "\n")
}

func statusGlyph(status store.Status) string {
	switch status {
	case store.StatusAccepted:
		return statusStyleAccepted.Render("✓")
	case store.StatusDiscarded:
		return statusStyleDiscarded.Render("✗")
	default:
		return statusStyleDraft.Render("?")
	}
}
