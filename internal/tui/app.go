// internal/tui/app.go
//
// This is the review TUI for Curator. It uses bubbletea, which follows
// The Elm Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// The flow is: User Input -> Message -> Update -> New Model -> View -> Screen

package tui

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/growthlabs/curator/internal/publish"
	"github.com/growthlabs/curator/internal/staging"
)

// appState represents which "screen" we're on
type appState int

const (
	stateReviewing appState = iota // Walking the pending candidates
	stateDone                      // Nothing left to decide
)

// curationSession is the slice of the review session the TUI drives.
type curationSession interface {
	Pending() []staging.Meta
	Apply(ctx context.Context, name string) (publish.PublishedAsset, error)
	Skip(name string) error
	Delete(name string) error
	Counts() (applied, skipped, deleted int)
	BinaryPath(name string) string
}

// decidedMsg reports the outcome of an apply/skip/delete command.
type decidedMsg struct {
	name     string
	decision string
	files    int
	err      error
}

type openedMsg struct {
	err error
}

// candidateItem implements list.Item for the pending list.
type candidateItem struct {
	meta staging.Meta
}

func (i candidateItem) Title() string { return i.meta.AssetName }

func (i candidateItem) Description() string {
	parts := []string{fmt.Sprintf("%dx%d", i.meta.Width, i.meta.Height), fmt.Sprintf("%d likes", i.meta.Likes)}
	if i.meta.AttributionName != "" {
		parts = append(parts, "by "+i.meta.AttributionName)
	}
	return strings.Join(parts, " · ")
}

func (i candidateItem) FilterValue() string { return i.meta.AssetName }

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithOpener overrides the command used to open an image in the
// system viewer.
func WithOpener(open func(path string) error) AppOption {
	return func(a *App) {
		if open != nil {
			a.open = open
		}
	}
}

// App is the review application model. In bubbletea, this holds ALL
// the state.
type App struct {
	state   appState
	session curationSession
	ctx     context.Context

	candidates list.Model
	total      int
	applied    int
	skipped    int
	deleted    int
	statusMsg  string
	busy       bool
	showInfo   bool
	open       func(path string) error

	width  int
	height int
}

// NewApp builds the review model over a session. Decisions recorded in
// earlier sessions are already excluded from the pending list.
func NewApp(ctx context.Context, session curationSession, opts ...AppOption) *App {
	pending := session.Pending()
	items := make([]list.Item, len(pending))
	for i, meta := range pending {
		items[i] = candidateItem{meta: meta}
	}

	candidates := list.New(items, list.NewDefaultDelegate(), 0, 0)
	candidates.Title = "◇ PENDING REVIEW"
	candidates.SetShowStatusBar(false)
	candidates.SetFilteringEnabled(false)

	app := &App{
		state:      stateReviewing,
		session:    session,
		ctx:        ctx,
		candidates: candidates,
		total:      len(pending),
		open:       openInViewer,
	}
	if len(pending) == 0 {
		app.state = stateDone
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	return app
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return nil
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.candidates.SetSize(max(0, msg.Width/2-4), max(0, msg.Height-8))
		return a, nil

	case decidedMsg:
		a.busy = false
		if msg.err != nil {
			a.statusMsg = fmt.Sprintf("%s: %v", msg.name, msg.err)
			return a, nil
		}
		switch msg.decision {
		case "applied":
			a.applied++
			a.statusMsg = fmt.Sprintf("Applied %s (%d files)", msg.name, msg.files)
		case "skipped":
			a.skipped++
			a.statusMsg = fmt.Sprintf("Skipped %s", msg.name)
		case "deleted":
			a.deleted++
			a.statusMsg = fmt.Sprintf("Deleted %s", msg.name)
		}
		a.removeCurrent(msg.name)
		a.showInfo = false
		if len(a.candidates.Items()) == 0 {
			a.state = stateDone
		}
		return a, nil

	case openedMsg:
		if msg.err != nil {
			a.statusMsg = fmt.Sprintf("Open failed: %v", msg.err)
		}
		return a, nil

	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "ctrl+c", "q":
			return a, tea.Quit
		case "a":
			return a.decide("applied")
		case "s":
			return a.decide("skipped")
		case "d":
			return a.decide("deleted")
		case "i":
			if _, ok := a.selected(); ok {
				a.showInfo = !a.showInfo
			}
			return a, nil
		case "o":
			if item, ok := a.selected(); ok {
				path := a.session.BinaryPath(item.meta.AssetName)
				open := a.open
				return a, func() tea.Msg {
					return openedMsg{err: open(path)}
				}
			}
		}
	}

	if a.state == stateReviewing && !a.busy {
		var cmd tea.Cmd
		a.candidates, cmd = a.candidates.Update(msg)
		return a, cmd
	}
	return a, nil
}

// decide runs the decision off the Update loop; applying shells out to
// the transcoder, which can take a moment per scale.
func (a *App) decide(decision string) (tea.Model, tea.Cmd) {
	if a.state != stateReviewing || a.busy {
		return a, nil
	}
	item, ok := a.selected()
	if !ok {
		return a, nil
	}
	name := item.meta.AssetName
	a.busy = true
	a.statusMsg = fmt.Sprintf("Working on %s...", name)

	session := a.session
	ctx := a.ctx
	return a, func() tea.Msg {
		switch decision {
		case "applied":
			asset, err := session.Apply(ctx, name)
			return decidedMsg{name: name, decision: decision, files: len(asset.Files), err: err}
		case "skipped":
			return decidedMsg{name: name, decision: decision, err: session.Skip(name)}
		case "deleted":
			return decidedMsg{name: name, decision: decision, err: session.Delete(name)}
		}
		return decidedMsg{name: name, err: fmt.Errorf("unknown decision %q", decision)}
	}
}

func (a *App) selected() (candidateItem, bool) {
	item, ok := a.candidates.SelectedItem().(candidateItem)
	return item, ok
}

func (a *App) removeCurrent(name string) {
	items := a.candidates.Items()
	for idx, item := range items {
		if ci, ok := item.(candidateItem); ok && ci.meta.AssetName == name {
			a.candidates.RemoveItem(idx)
			break
		}
	}
	if idx := a.candidates.Index(); idx >= len(a.candidates.Items()) && idx > 0 {
		a.candidates.Select(len(a.candidates.Items()) - 1)
	}
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	detailBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(1, 2)
	detailLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	detailValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	progressStyle    = lipgloss.NewStyle().Bold(true)
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	helpStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	doneStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
)

// View renders the current state to a string.
func (a *App) View() string {
	if a.state == stateDone {
		return a.summaryView()
	}

	detail := a.detailView()
	left := a.candidates.View()
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", detail)

	var b strings.Builder
	b.WriteString(progressStyle.Render(fmt.Sprintf("[%d/%d]", a.position(), a.total)))
	b.WriteString("\n")
	b.WriteString(body)
	b.WriteString("\n")
	if a.statusMsg != "" {
		b.WriteString(statusStyle.Render(a.statusMsg))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("a apply · s skip · d delete · i info · o open · q quit"))
	return b.String()
}

func (a *App) detailView() string {
	item, ok := a.selected()
	if !ok {
		return detailBoxStyle.Render("No candidate selected")
	}
	meta := item.meta

	row := func(label, value string) string {
		if value == "" {
			value = "—"
		}
		return detailLabelStyle.Render(label+": ") + detailValueStyle.Render(value)
	}
	lines := []string{
		titleStyle.Render(meta.AssetName),
		"",
		row("File", meta.Filename),
		row("Size", fmt.Sprintf("%d x %d", meta.Width, meta.Height)),
		row("Likes", fmt.Sprintf("%d", meta.Likes)),
		row("Photographer", meta.AttributionName),
		row("Source", meta.SourceURL),
	}
	if meta.Description != "" {
		lines = append(lines, "", detailValueStyle.Render(wrap(meta.Description, 40)))
	}
	if a.showInfo {
		path := a.session.BinaryPath(meta.AssetName)
		size := "—"
		if stat, err := os.Stat(path); err == nil {
			size = fmt.Sprintf("%d KB", stat.Size()/1024)
		}
		lines = append(lines,
			"",
			titleStyle.Render("File Details"),
			row("Size", size),
			row("Downloaded", meta.DownloadedAt.Local().Format("2006-01-02 15:04")),
			row("Path", path),
		)
	}
	return detailBoxStyle.Render(strings.Join(lines, "\n"))
}

// position is the 1-based index of the candidate on screen, counting
// everything already decided this session.
func (a *App) position() int {
	decided := a.total - len(a.candidates.Items())
	if decided >= a.total {
		return a.total
	}
	return decided + 1
}

func (a *App) summaryView() string {
	applied, skipped, deleted := a.session.Counts()
	var b strings.Builder
	b.WriteString(doneStyle.Render("Review complete"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("  applied: %d\n  skipped: %d\n  deleted: %d\n", applied, skipped, deleted))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("q quit"))
	return b.String()
}

func wrap(s string, width int) string {
	words := strings.Fields(s)
	var lines []string
	var line string
	for _, word := range words {
		if line != "" && len(line)+1+len(word) > width {
			lines = append(lines, line)
			line = word
			continue
		}
		if line == "" {
			line = word
		} else {
			line += " " + word
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// openInViewer hands the image to the desktop's default viewer.
func openInViewer(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("tui: open %s: %w", path, err)
	}
	return nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
