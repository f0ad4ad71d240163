// internal/publish/publisher.go
//
// Turns an accepted staged image into a multi-resolution asset bundle:
// <assets_dir>/<name>.imageset/ with one file per scale and a
// Contents.json descriptor. Each scale is checked individually, so a
// publish interrupted between scales resumes instead of re-deriving
// files that are already correct.

package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/growthlabs/curator/internal/infra"
)

// Scale is one resolution multiplier in the target platform's asset
// convention.
type Scale struct {
	Factor int
	Suffix string
	Label  string
}

// DefaultScales is the universal 1x/2x/3x convention.
var DefaultScales = []Scale{
	{Factor: 1, Suffix: "", Label: "1x"},
	{Factor: 2, Suffix: "@2x", Label: "2x"},
	{Factor: 3, Suffix: "@3x", Label: "3x"},
}

// ScaleFile is one published file as listed in the descriptor.
type ScaleFile struct {
	Filename string
	Scale    string
}

// PublishedAsset describes the on-disk result of a publish.
type PublishedAsset struct {
	Name  string
	Dir   string
	Files []ScaleFile
}

type descriptorImage struct {
	Filename string `json:"filename"`
	Idiom    string `json:"idiom"`
	Scale    string `json:"scale"`
}

type descriptorInfo struct {
	Author  string `json:"author"`
	Version int    `json:"version"`
}

type descriptor struct {
	Images []descriptorImage `json:"images"`
	Info   descriptorInfo    `json:"info"`
}

// Publisher writes asset bundles into the target asset store.
type Publisher struct {
	assetsDir  string
	transcoder Transcoder
	scales     []Scale
	logger     infra.Logger
}

// NewPublisher wires a publisher over the given asset store directory.
func NewPublisher(assetsDir string, transcoder Transcoder, logger infra.Logger) *Publisher {
	return &Publisher{
		assetsDir:  assetsDir,
		transcoder: transcoder,
		scales:     DefaultScales,
		logger:     logger,
	}
}

// Publish produces every missing scale variant for the asset and
// updates the descriptor. Idempotent per scale: files already present
// are left untouched. On a transcoder failure the error is returned
// with the scales completed so far already durable, so the next
// attempt picks up where this one stopped.
func (p *Publisher) Publish(ctx context.Context, name, stagedPath string) (PublishedAsset, error) {
	dir := filepath.Join(p.assetsDir, name+".imageset")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return PublishedAsset{}, fmt.Errorf("publish: ensure %s: %w", dir, err)
	}

	baseWidth, baseHeight, err := imageSize(stagedPath)
	if err != nil {
		return PublishedAsset{}, err
	}

	desc, err := loadDescriptor(dir)
	if err != nil {
		return PublishedAsset{}, err
	}

	ext := filepath.Ext(stagedPath)
	if ext == "" {
		ext = ".jpg"
	}
	asset := PublishedAsset{Name: name, Dir: dir}
	for _, scale := range p.scales {
		filename := name + scale.Suffix + ext
		target := filepath.Join(dir, filename)

		if _, statErr := os.Stat(target); errors.Is(statErr, fs.ErrNotExist) {
			if scale.Factor == 1 {
				if err := copyFile(stagedPath, target); err != nil {
					return asset, err
				}
			} else {
				if err := p.transcoder.Resize(ctx, stagedPath, target, baseWidth*scale.Factor, baseHeight*scale.Factor); err != nil {
					return asset, err
				}
			}
			p.logger.Debug().
				Str("asset", name).
				Str("scale", scale.Label).
				Str("file", filename).
				Msg("wrote scale variant")
		} else if statErr != nil {
			return asset, fmt.Errorf("publish: stat %s: %w", target, statErr)
		}

		desc.upsert(descriptorImage{Filename: filename, Idiom: "universal", Scale: scale.Label})
		if err := saveDescriptor(dir, desc); err != nil {
			return asset, err
		}
		asset.Files = append(asset.Files, ScaleFile{Filename: filename, Scale: scale.Label})
	}

	p.logger.Info().Str("asset", name).Str("dir", dir).Msg("published asset bundle")
	return asset, nil
}

func (d *descriptor) upsert(img descriptorImage) {
	for i := range d.Images {
		if d.Images[i].Scale == img.Scale {
			d.Images[i] = img
			return
		}
	}
	d.Images = append(d.Images, img)
}

func loadDescriptor(dir string) (*descriptor, error) {
	path := filepath.Join(dir, "Contents.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &descriptor{Info: descriptorInfo{Author: "curator", Version: 1}}, nil
		}
		return nil, fmt.Errorf("publish: read %s: %w", path, err)
	}
	var desc descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("publish: parse %s: %w", path, err)
	}
	if desc.Info.Version == 0 {
		desc.Info = descriptorInfo{Author: "curator", Version: 1}
	}
	return &desc, nil
}

func saveDescriptor(dir string, desc *descriptor) error {
	path := filepath.Join(dir, "Contents.json")
	encoded, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return fmt.Errorf("publish: encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(encoded, '\n'), 0o644); err != nil {
		return fmt.Errorf("publish: write %s: %w", path, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("publish: open %s: %w", src, err)
	}
	defer in.Close()
	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("publish: create %s: %w", tmp, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("publish: copy to %s: %w", tmp, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish: close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish: finalize %s: %w", dst, err)
	}
	return nil
}
