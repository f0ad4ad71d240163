package tui

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/growthlabs/curator/internal/publish"
	"github.com/growthlabs/curator/internal/staging"
)

type fakeSession struct {
	dir      string
	pending  []staging.Meta
	applies  []string
	skips    []string
	deletes  []string
	applyErr error
}

func (f *fakeSession) Pending() []staging.Meta { return f.pending }

func (f *fakeSession) Apply(_ context.Context, name string) (publish.PublishedAsset, error) {
	if f.applyErr != nil {
		return publish.PublishedAsset{}, f.applyErr
	}
	f.applies = append(f.applies, name)
	return publish.PublishedAsset{Name: name, Files: make([]publish.ScaleFile, 3)}, nil
}

func (f *fakeSession) Skip(name string) error {
	f.skips = append(f.skips, name)
	return nil
}

func (f *fakeSession) Delete(name string) error {
	f.deletes = append(f.deletes, name)
	return nil
}

func (f *fakeSession) Counts() (int, int, int) {
	return len(f.applies), len(f.skips), len(f.deletes)
}

func (f *fakeSession) BinaryPath(name string) string {
	dir := f.dir
	if dir == "" {
		dir = "/staging"
	}
	return filepath.Join(dir, name+".jpg")
}

func twoCandidates() []staging.Meta {
	return []staging.Meta{
		{AssetName: "hero_today", Width: 3000, Height: 2000, Likes: 42, AttributionName: "Ada"},
		{AssetName: "splash", Width: 2400, Height: 1600, Likes: 11, AttributionName: "Grace"},
	}
}

// press feeds a key and runs any resulting command synchronously.
func press(t *testing.T, app *App, key string) *App {
	t.Helper()
	model, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
	app = model.(*App)
	for cmd != nil {
		msg := cmd()
		if msg == nil {
			break
		}
		if _, quitting := msg.(tea.QuitMsg); quitting {
			break
		}
		model, cmd = app.Update(msg)
		app = model.(*App)
	}
	return app
}

func TestApplyAdvancesThroughCandidates(t *testing.T) {
	session := &fakeSession{pending: twoCandidates()}
	app := NewApp(context.Background(), session)

	app = press(t, app, "a")
	if len(session.applies) != 1 || session.applies[0] != "hero_today" {
		t.Fatalf("applies = %v", session.applies)
	}
	if app.state == stateDone {
		t.Fatal("one candidate left, must still be reviewing")
	}

	app = press(t, app, "a")
	if len(session.applies) != 2 || session.applies[1] != "splash" {
		t.Fatalf("applies = %v", session.applies)
	}
	if app.state != stateDone {
		t.Fatal("all candidates decided, expected done state")
	}
}

func TestMixedDecisionsRouteToSession(t *testing.T) {
	session := &fakeSession{pending: twoCandidates()}
	app := NewApp(context.Background(), session)

	app = press(t, app, "d")
	app = press(t, app, "s")
	if len(session.deletes) != 1 || session.deletes[0] != "hero_today" {
		t.Fatalf("deletes = %v", session.deletes)
	}
	if len(session.skips) != 1 || session.skips[0] != "splash" {
		t.Fatalf("skips = %v", session.skips)
	}
	if app.state != stateDone {
		t.Fatal("expected done state")
	}
}

func TestApplyFailureKeepsCandidate(t *testing.T) {
	session := &fakeSession{pending: twoCandidates(), applyErr: errors.New("convert: exit 1")}
	app := NewApp(context.Background(), session)

	app = press(t, app, "a")
	if app.state == stateDone {
		t.Fatal("failed apply must not settle the candidate")
	}
	if got := len(app.candidates.Items()); got != 2 {
		t.Fatalf("candidate list shrank on failure: %d items", got)
	}
	if app.statusMsg == "" {
		t.Fatal("expected an error status message")
	}
}

func TestEmptyPendingStartsDone(t *testing.T) {
	app := NewApp(context.Background(), &fakeSession{})
	if app.state != stateDone {
		t.Fatal("no candidates, expected done state")
	}
	view := app.View()
	if view == "" {
		t.Fatal("summary view must render")
	}
}

func TestInfoToggleShowsFileDetails(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hero_today.jpg"), bytes.Repeat([]byte("x"), 4096), 0o644); err != nil {
		t.Fatal(err)
	}
	pending := twoCandidates()
	pending[0].DownloadedAt = time.Date(2026, 8, 14, 9, 30, 0, 0, time.UTC)
	session := &fakeSession{dir: dir, pending: pending}
	app := NewApp(context.Background(), session)

	if strings.Contains(app.View(), "File Details") {
		t.Fatal("details must be hidden until requested")
	}

	app = press(t, app, "i")
	view := app.View()
	if !strings.Contains(view, "File Details") {
		t.Fatal("expected details after pressing i")
	}
	if !strings.Contains(view, "4 KB") {
		t.Fatalf("expected file size in view:\n%s", view)
	}
	if !strings.Contains(view, filepath.Join(dir, "hero_today.jpg")) {
		t.Fatalf("expected staged path in view:\n%s", view)
	}

	// Toggles off, and a decision resets it for the next candidate.
	app = press(t, app, "i")
	if strings.Contains(app.View(), "File Details") {
		t.Fatal("second press must hide details")
	}
	app = press(t, app, "i")
	app = press(t, app, "s")
	if strings.Contains(app.View(), "File Details") {
		t.Fatal("details must reset when the next candidate comes up")
	}
}

func TestProgressIndicatorTracksPosition(t *testing.T) {
	session := &fakeSession{pending: twoCandidates()}
	app := NewApp(context.Background(), session)

	if !strings.Contains(app.View(), "[1/2]") {
		t.Fatalf("expected [1/2] at session start:\n%s", app.View())
	}
	app = press(t, app, "s")
	if !strings.Contains(app.View(), "[2/2]") {
		t.Fatalf("expected [2/2] after first decision:\n%s", app.View())
	}
}

func TestOpenUsesInjectedOpener(t *testing.T) {
	session := &fakeSession{pending: twoCandidates()}
	var opened []string
	app := NewApp(context.Background(), session, WithOpener(func(path string) error {
		opened = append(opened, path)
		return nil
	}))

	press(t, app, "o")
	if len(opened) != 1 || opened[0] != "/staging/hero_today.jpg" {
		t.Fatalf("opened = %v", opened)
	}
}
