// Package tui provides the live status view for vizier. The view is
// read-only: it watches the tree document on disk and re-renders whenever the
// orchestrator saves a new revision.
package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"

	"github.com/vizier-dev/vizier/internal/store"
	"github.com/vizier-dev/vizier/pkg/models"
)

var (
	styleTitle      = lipgloss.NewStyle().Bold(true)
	styleMeta       = lipgloss.NewStyle().Faint(true)
	styleDone       = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleInProgress = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	styleBlocked    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	stylePending    = lipgloss.NewStyle().Faint(true)
	styleFooter     = lipgloss.NewStyle().Faint(true).MarginTop(1)
)

// treeReloadedMsg carries the result of re-reading the tree document.
type treeReloadedMsg struct {
	tree *models.Tree
	err  error
}

// fileChangedMsg signals filesystem activity in the document directory.
type fileChangedMsg struct{}

// Watch is the bubbletea model behind `vizier status --watch`.
type Watch struct {
	store   *store.Store
	watcher *fsnotify.Watcher
	spin    spinner.Model
	refresh time.Duration

	tree    *models.Tree
	loadErr error
}

// NewWatch builds a watch model over the given store. The refresh interval is
// a fallback poll for saves the filesystem watcher misses.
func NewWatch(st *store.Store, refresh time.Duration) (*Watch, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// The store replaces the document by rename, so watch the directory
	// rather than the file itself.
	if err := watcher.Add(filepath.Dir(st.Path())); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(st.Path()), err)
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styleInProgress

	if refresh <= 0 {
		refresh = time.Second
	}
	return &Watch{store: st, watcher: watcher, spin: sp, refresh: refresh}, nil
}

// Run drives the program until the user quits.
func (w *Watch) Run() error {
	defer w.watcher.Close()
	_, err := tea.NewProgram(w).Run()
	return err
}

func (w *Watch) Init() tea.Cmd {
	return tea.Batch(w.spin.Tick, w.reload, w.nextEvent, w.tick())
}

func (w *Watch) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return w, tea.Quit
		}
		return w, nil

	case treeReloadedMsg:
		w.tree, w.loadErr = msg.tree, msg.err
		return w, nil

	case fileChangedMsg:
		return w, tea.Batch(w.reload, w.nextEvent)

	case tickMsg:
		return w, tea.Batch(w.reload, w.tick())

	case spinner.TickMsg:
		var cmd tea.Cmd
		w.spin, cmd = w.spin.Update(msg)
		return w, cmd
	}
	return w, nil
}

func (w *Watch) View() string {
	var b strings.Builder
	if w.loadErr != nil {
		b.WriteString(styleBlocked.Render("cannot read task tree: "+w.loadErr.Error()) + "\n")
	} else if w.tree == nil {
		b.WriteString(styleMeta.Render("waiting for task tree...") + "\n")
	} else {
		b.WriteString(RenderTree(w.tree, w.spin.View()))
	}
	b.WriteString(styleFooter.Render("q to quit"))
	return b.String()
}

type tickMsg time.Time

func (w *Watch) tick() tea.Cmd {
	return tea.Tick(w.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (w *Watch) reload() tea.Msg {
	tree, err := w.store.Load()
	return treeReloadedMsg{tree: tree, err: err}
}

// nextEvent blocks on the watcher until something in the document directory
// changes. Any event triggers a reload; the store validates on read, so a
// half-written file only shows up as a transient error.
func (w *Watch) nextEvent() tea.Msg {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				return fileChangedMsg{}
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
		}
	}
}

// RenderTree formats the step tree as a styled checklist. The spinner frame
// replaces the glyph of steps currently executing.
func RenderTree(tree *models.Tree, spinFrame string) string {
	var b strings.Builder
	b.WriteString(styleTitle.Render(tree.Title) + "\n")
	b.WriteString(styleMeta.Render(fmt.Sprintf("revision %d", tree.Revision)) + "\n\n")
	renderStep(&b, tree.Root, 0, spinFrame)
	return b.String()
}

func renderStep(b *strings.Builder, st *models.Step, depth int, spinFrame string) {
	indent := strings.Repeat("  ", depth)
	line := fmt.Sprintf("%d. %s", st.ID, st.Text)

	switch st.Status {
	case models.StatusDone:
		fmt.Fprintf(b, "%s%s %s\n", indent, styleDone.Render("✓"), line)
	case models.StatusInProgress:
		fmt.Fprintf(b, "%s%s %s\n", indent, spinFrame, styleInProgress.Render(line))
	case models.StatusBlocked:
		fmt.Fprintf(b, "%s%s %s\n", indent, styleBlocked.Render("✗"), styleBlocked.Render(line))
		if st.BlockedReason != "" {
			fmt.Fprintf(b, "%s  %s\n", indent, styleMeta.Render(st.BlockedReason))
		}
	default:
		fmt.Fprintf(b, "%s%s %s\n", indent, stylePending.Render("·"), stylePending.Render(line))
	}

	for _, c := range st.Children {
		renderStep(b, c, depth+1, spinFrame)
	}
}
