// internal/publish/transcoder.go
//
// Image resizing behind an interface so the publisher can shell out to
// ImageMagick in production and use a fake in tests.

package publish

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"strings"

	_ "image/jpeg"
	_ "image/png"
)

// Transcoder produces a resized raster output from a source image.
type Transcoder interface {
	Resize(ctx context.Context, input, output string, width, height int) error
}

// Magick invokes ImageMagick's convert binary with the same settings
// the asset pipeline has always used: quality 90 with a light sharpen
// to keep upscaled variants from looking soft.
type Magick struct {
	binary string
}

// NewMagick locates the convert binary. This is the startup
// precondition for anything that publishes: no transcoder, no run.
func NewMagick() (*Magick, error) {
	path, err := exec.LookPath("convert")
	if err != nil {
		return nil, fmt.Errorf("publish: ImageMagick 'convert' not found in PATH (install imagemagick): %w", err)
	}
	return &Magick{binary: path}, nil
}

// Resize implements Transcoder via a subprocess invocation.
func (m *Magick) Resize(ctx context.Context, input, output string, width, height int) error {
	size := fmt.Sprintf("%dx%d", width, height)
	cmd := exec.CommandContext(ctx, m.binary, input, "-resize", size, "-quality", "90", "-sharpen", "0x1", output)
	out, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(out))
		if detail != "" {
			return fmt.Errorf("publish: convert %s -> %s: %w: %s", input, size, err, detail)
		}
		return fmt.Errorf("publish: convert %s -> %s: %w", input, size, err)
	}
	return nil
}

// imageSize reads the pixel dimensions of an image file without
// decoding the full raster.
func imageSize(path string) (width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("publish: open %s: %w", path, err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("publish: read dimensions of %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}
