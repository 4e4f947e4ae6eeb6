// Package store implements the on-disk Green's function store format: a
// read-only, mmap-backed directory of config + index + traces files and
// the random-access lookup of a single impulse-response trace by grid
// index.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Axis describes one regular 1-D axis of a store's grid geometry. Indices
// along an axis run 0..Count-1 at coordinates Min, Min+Delta, ...,
// Min+(Count-1)*Delta.
type Axis struct {
	Name  string  `json:"name"`
	Min   float64 `json:"min"`
	Delta float64 `json:"delta"`
	Count int     `json:"count"`
}

// Max returns the axis's largest covered coordinate.
func (a Axis) Max() float64 {
	return a.Min + float64(a.Count-1)*a.Delta
}

// InBounds reports whether x lies within [Min, Max] for this axis.
func (a Axis) InBounds(x float64) bool {
	return x >= a.Min && x <= a.Max()
}

// ReductionKind selects how a (source, target) geometry pair is reduced to
// a point in a store's axis space.
type ReductionKind string

const (
	// ReductionDepthDistance is the classic cylindrically-symmetric
	// reduction: axes are (source_depth, source_receiver_distance), and
	// a source mechanism's horizontal moment-tensor/force components must
	// be rotated into the source-to-receiver azimuth before they can be
	// applied as stacking weights (see gf.azimuthalRotate).
	ReductionDepthDistance ReductionKind = "depth-distance"

	// ReductionDepthNorthEast is a fully 3-D store whose axes already span
	// the horizontal offset between source and receiver; no azimuthal
	// rotation of the source mechanism is required.
	ReductionDepthNorthEast ReductionKind = "depth-north-east"
)

// ReferenceTimePolicy selects how a stored trace's first-sample time is
// determined.
type ReferenceTimePolicy string

const (
	// ReferenceAbsolute: every stored trace's first sample is at t=0.
	ReferenceAbsolute ReferenceTimePolicy = "absolute"
	// ReferencePerRecord: each index record carries its own TFirst.
	ReferencePerRecord ReferenceTimePolicy = "per-record"
)

// Config is a store's self-describing configuration document, read from
// the store directory's "config" file as JSON.
type Config struct {
	ID               string              `json:"id"`
	ComponentScheme  ComponentScheme      `json:"component_scheme"`
	DeltaT           float64             `json:"delta_t"`
	Axes             []Axis              `json:"axes"`
	Reduction        ReductionKind       `json:"reduction"`
	ReferenceTime    ReferenceTimePolicy `json:"reference_time"`
	SampleRate       float64             `json:"sample_rate"`
	EarthmodelID     string              `json:"earthmodel_id,omitempty"`
	// ShearModulusGrid holds one value per grid index, parallel to the
	// index file, used for slip->moment conversion. Nil if the store
	// does not carry shear-modulus information.
	ShearModulusGrid []float64 `json:"shear_modulus_grid,omitempty"`
}

// N returns the total grid size, the product of all axis counts.
func (c *Config) N() int64 {
	n := int64(1)
	for _, a := range c.Axes {
		n *= int64(a.Count)
	}
	return n
}

// NAxes returns the number of axes (the "k" in a k-dimensional grid).
func (c *Config) NAxes() int {
	return len(c.Axes)
}

// Validate checks internal consistency of a loaded config document.
func (c *Config) Validate() error {
	if c.DeltaT <= 0 {
		return fmt.Errorf("gf/store: config %q: delta_t must be positive", c.ID)
	}
	if len(c.Axes) == 0 {
		return fmt.Errorf("gf/store: config %q: no axes defined", c.ID)
	}
	for _, a := range c.Axes {
		if a.Count <= 0 {
			return fmt.Errorf("gf/store: config %q: axis %q has non-positive count", c.ID, a.Name)
		}
	}
	if _, ok := componentSchemes[c.ComponentScheme]; !ok {
		return fmt.Errorf("gf/store: config %q: unknown component scheme %q", c.ID, c.ComponentScheme)
	}
	switch c.Reduction {
	case ReductionDepthDistance, ReductionDepthNorthEast:
	default:
		return fmt.Errorf("gf/store: config %q: unknown reduction kind %q", c.ID, c.Reduction)
	}
	return nil
}

// LoadConfig reads and validates a store's config document from
// filepath.Join(storeDir, "config").
func LoadConfig(storeDir string) (*Config, error) {
	raw, err := os.ReadFile(filepath.Join(storeDir, "config"))
	if err != nil {
		return nil, fmt.Errorf("gf/store: reading config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("gf/store: decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
