package sim

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/dualcam/internal/catalog"
)

// Manifest describes a simulated device set in TOML:
//
//	multi_cam = true
//
//	[[devices]]
//	id = "back-wide"
//	name = "Back Wide Camera"
//	position = "back"
//	kind = "wide"
//	max_zoom = 5
//
//	[[devices.formats]]
//	id = "bw-720"
//	width = 1280
//	height = 720
//	multi_stream = true
//	frame_rates = [{ min = 1, max = 30 }]
type Manifest struct {
	MultiCam *bool            `toml:"multi_cam"`
	Devices  []ManifestDevice `toml:"devices"`
}

// ManifestDevice is one [[devices]] entry.
type ManifestDevice struct {
	ID       string           `toml:"id"`
	Name     string           `toml:"name"`
	Position string           `toml:"position"`
	Kind     string           `toml:"kind"`
	MinZoom  float64          `toml:"min_zoom"`
	MaxZoom  float64          `toml:"max_zoom"`
	Formats  []catalog.Format `toml:"formats"`
}

// LoadManifest reads a device manifest from path.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read device manifest: %w", err)
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse device manifest: %w", err)
	}
	return m, nil
}

// Options converts the manifest into platform options.
func (m Manifest) Options() ([]Option, error) {
	if len(m.Devices) == 0 {
		return nil, errors.New("device manifest lists no devices")
	}
	seen := make(map[string]bool, len(m.Devices))
	devices := make([]catalog.Device, 0, len(m.Devices))
	for i, md := range m.Devices {
		if md.ID == "" {
			return nil, fmt.Errorf("device %d: missing id", i)
		}
		if seen[md.ID] {
			return nil, fmt.Errorf("device %s: duplicate id", md.ID)
		}
		seen[md.ID] = true

		d := catalog.Device{
			ID:      md.ID,
			Name:    md.Name,
			MinZoom: max(md.MinZoom, 1),
			MaxZoom: max(md.MaxZoom, md.MinZoom, 1),
			Formats: md.Formats,
		}
		if d.Name == "" {
			d.Name = md.ID
		}
		if md.Position != "" {
			pos, err := catalog.ParsePosition(md.Position)
			if err != nil {
				return nil, fmt.Errorf("device %s: %w", md.ID, err)
			}
			d.Position = pos
		}
		kind, err := catalog.ParseKind(md.Kind)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", md.ID, err)
		}
		d.Kind = kind
		if len(d.Formats) == 0 {
			return nil, fmt.Errorf("device %s: no formats", md.ID)
		}
		devices = append(devices, d)
	}

	opts := []Option{WithDevices(devices...)}
	if m.MultiCam != nil {
		opts = append(opts, WithMultiCam(*m.MultiCam))
	}
	return opts, nil
}

// NewFromManifest creates a platform from the manifest at path. An empty
// path selects the default device set.
func NewFromManifest(path string, extra ...Option) (*Platform, error) {
	if path == "" {
		return New(extra...), nil
	}
	m, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}
	opts, err := m.Options()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return New(append(opts, extra...)...), nil
}
