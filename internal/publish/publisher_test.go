package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

type fakeTranscoder struct {
	calls []string
	fail  map[string]error
}

func (f *fakeTranscoder) Resize(_ context.Context, input, output string, width, height int) error {
	f.calls = append(f.calls, fmt.Sprintf("%s %dx%d", filepath.Base(output), width, height))
	if err := f.fail[filepath.Base(output)]; err != nil {
		return err
	}
	return os.WriteFile(output, []byte("resized"), 0o644)
}

// writeTestImage creates a decodable PNG so the publisher can probe
// dimensions.
func writeTestImage(t *testing.T, path string, width, height int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, width, height))); err != nil {
		t.Fatal(err)
	}
}

func readDescriptor(t *testing.T, dir string) descriptor {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "Contents.json"))
	if err != nil {
		t.Fatalf("descriptor missing: %v", err)
	}
	var desc descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		t.Fatalf("descriptor invalid: %v", err)
	}
	return desc
}

func TestPublishWritesAllScalesAndDescriptor(t *testing.T) {
	staged := filepath.Join(t.TempDir(), "hero_today.png")
	writeTestImage(t, staged, 300, 200)
	assetsDir := t.TempDir()
	tr := &fakeTranscoder{}
	p := NewPublisher(assetsDir, tr, zerolog.Nop())

	asset, err := p.Publish(context.Background(), "hero_today", staged)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(asset.Files) != 3 {
		t.Fatalf("expected 3 scale files, got %+v", asset.Files)
	}
	for _, sf := range asset.Files {
		if _, err := os.Stat(filepath.Join(asset.Dir, sf.Filename)); err != nil {
			t.Fatalf("listed file %s missing on disk: %v", sf.Filename, err)
		}
	}

	// 2x/3x are derived from the base dimensions.
	want := []string{"hero_today@2x.png 600x400", "hero_today@3x.png 900x600"}
	if len(tr.calls) != 2 || tr.calls[0] != want[0] || tr.calls[1] != want[1] {
		t.Fatalf("transcoder calls = %v, want %v", tr.calls, want)
	}

	desc := readDescriptor(t, asset.Dir)
	if len(desc.Images) != 3 {
		t.Fatalf("descriptor entries = %d, want 3", len(desc.Images))
	}
	seen := map[string]bool{}
	for _, img := range desc.Images {
		if img.Idiom != "universal" {
			t.Fatalf("unexpected idiom %q", img.Idiom)
		}
		seen[img.Scale] = true
	}
	for _, scale := range []string{"1x", "2x", "3x"} {
		if !seen[scale] {
			t.Fatalf("descriptor missing scale %s: %+v", scale, desc.Images)
		}
	}
}

func TestPublishResumesAfterPartialWrite(t *testing.T) {
	staged := filepath.Join(t.TempDir(), "am1_0.png")
	writeTestImage(t, staged, 100, 100)
	assetsDir := t.TempDir()

	// First attempt dies on the 3x scale.
	failing := &fakeTranscoder{fail: map[string]error{"am1_0@3x.png": errors.New("convert: killed")}}
	p := NewPublisher(assetsDir, failing, zerolog.Nop())
	if _, err := p.Publish(context.Background(), "am1_0", staged); err == nil {
		t.Fatal("expected transcoder failure")
	}

	// Second attempt only derives the missing scale.
	tr := &fakeTranscoder{}
	p = NewPublisher(assetsDir, tr, zerolog.Nop())
	asset, err := p.Publish(context.Background(), "am1_0", staged)
	if err != nil {
		t.Fatalf("resume publish: %v", err)
	}
	if len(tr.calls) != 1 || tr.calls[0] != "am1_0@3x.png 300x300" {
		t.Fatalf("expected only the missing scale to be derived, calls=%v", tr.calls)
	}
	desc := readDescriptor(t, asset.Dir)
	if len(desc.Images) != 3 {
		t.Fatalf("descriptor must end up complete, got %+v", desc.Images)
	}
}

func TestPublishIsIdempotent(t *testing.T) {
	staged := filepath.Join(t.TempDir(), "splash.png")
	writeTestImage(t, staged, 120, 240)
	assetsDir := t.TempDir()
	tr := &fakeTranscoder{}
	p := NewPublisher(assetsDir, tr, zerolog.Nop())

	if _, err := p.Publish(context.Background(), "splash", staged); err != nil {
		t.Fatal(err)
	}
	calls := len(tr.calls)
	if _, err := p.Publish(context.Background(), "splash", staged); err != nil {
		t.Fatal(err)
	}
	if len(tr.calls) != calls {
		t.Fatalf("re-publish must not re-derive existing scales: %v", tr.calls)
	}
	desc := readDescriptor(t, filepath.Join(assetsDir, "splash.imageset"))
	if len(desc.Images) != 3 {
		t.Fatalf("descriptor entries = %d", len(desc.Images))
	}
}

func TestPublishOneX_IsByteCopy(t *testing.T) {
	staged := filepath.Join(t.TempDir(), "recovery_guide.png")
	writeTestImage(t, staged, 64, 48)
	assetsDir := t.TempDir()
	p := NewPublisher(assetsDir, &fakeTranscoder{}, zerolog.Nop())

	asset, err := p.Publish(context.Background(), "recovery_guide", staged)
	if err != nil {
		t.Fatal(err)
	}
	want, err := os.ReadFile(staged)
	if err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(filepath.Join(asset.Dir, "recovery_guide.png"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("1x must be an exact copy of the staged binary")
	}
}
