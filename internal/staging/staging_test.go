package staging

import (
	"os"
	"testing"
	"time"

	"github.com/growthlabs/curator/internal/store"
)

func newTestArea(t *testing.T) *Area {
	t.Helper()
	a, err := NewArea(t.TempDir(), store.NewMemory())
	if err != nil {
		t.Fatalf("new area: %v", err)
	}
	return a
}

func TestPutDefaultsToPendingReview(t *testing.T) {
	a := newTestArea(t)
	err := a.Put(Meta{
		AssetName:       "hero_today",
		ProviderID:      "abc123",
		AttributionName: "Jamie Photographer",
		DownloadedAt:    time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	meta, ok := a.Get("hero_today")
	if !ok {
		t.Fatal("expected entry")
	}
	if meta.Status != StatusPendingReview {
		t.Fatalf("status = %s", meta.Status)
	}
	if meta.Filename != "hero_today.jpg" {
		t.Fatalf("filename = %s", meta.Filename)
	}
}

func TestMetadataSurvivesReopen(t *testing.T) {
	backend := store.NewMemory()
	dir := t.TempDir()
	a, err := NewArea(dir, backend)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Put(Meta{AssetName: "splash", ProviderID: "xyz", DownloadedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewArea(dir, backend)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reopened.Get("splash"); !ok {
		t.Fatal("expected metadata to survive reopen")
	}
}

func TestAllOrdersByDownloadTime(t *testing.T) {
	a := newTestArea(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	entries := []Meta{
		{AssetName: "later", DownloadedAt: base.Add(time.Hour)},
		{AssetName: "earlier", DownloadedAt: base},
		{AssetName: "same_b", DownloadedAt: base.Add(30 * time.Minute)},
		{AssetName: "same_a", DownloadedAt: base.Add(30 * time.Minute)},
	}
	for _, e := range entries {
		if err := a.Put(e); err != nil {
			t.Fatal(err)
		}
	}
	got := a.All()
	want := []string{"earlier", "same_a", "same_b", "later"}
	for i, name := range want {
		if got[i].AssetName != name {
			t.Fatalf("order = %v, want %v", names(got), want)
		}
	}
}

func names(metas []Meta) []string {
	out := make([]string, len(metas))
	for i, m := range metas {
		out[i] = m.AssetName
	}
	return out
}

func TestRemoveBinaryDeletesFile(t *testing.T) {
	a := newTestArea(t)
	path := a.BinaryPath("am1_0")
	if err := os.WriteFile(path, []byte("jpeg bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !a.HasBinary("am1_0") {
		t.Fatal("expected binary on disk")
	}
	if err := a.RemoveBinary("am1_0"); err != nil {
		t.Fatal(err)
	}
	if a.HasBinary("am1_0") {
		t.Fatal("binary should be gone")
	}
	// Removing again is not an error.
	if err := a.RemoveBinary("am1_0"); err != nil {
		t.Fatal(err)
	}
}

func TestSetStatus(t *testing.T) {
	a := newTestArea(t)
	if err := a.Put(Meta{AssetName: "am2_0"}); err != nil {
		t.Fatal(err)
	}
	if err := a.SetStatus("am2_0", StatusApplied); err != nil {
		t.Fatal(err)
	}
	meta, _ := a.Get("am2_0")
	if meta.Status != StatusApplied {
		t.Fatalf("status = %s", meta.Status)
	}
	if err := a.SetStatus("missing", StatusDeleted); err == nil {
		t.Fatal("expected error for unknown entry")
	}
}
