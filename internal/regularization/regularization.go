// Package regularization assembles petrophysically guided regularization
// objectives: a mixture-driven smallness term combined with per-wire
// smoothness terms. Scope is construction and shape validation; the
// numeric evaluation of the objectives belongs to the inversion driver.
package regularization

import (
	"errors"
	"fmt"

	"github.com/petroseis/pgi/internal/mixture"
	"github.com/petroseis/pgi/internal/model"
)

var (
	// ErrNoReference is returned when no reference mixture is supplied.
	ErrNoReference = errors.New("regularization requires a reference mixture")

	// ErrShape is returned for mismatched wires, maps, weights or
	// mixture dimensions.
	ErrShape = errors.New("regularization shape mismatch")
)

// SmoothnessKind selects the flavor of the per-wire gradient terms.
type SmoothnessKind int

const (
	// SmoothnessSimple is first-order smoothness without volume scaling.
	SmoothnessSimple SmoothnessKind = iota

	// SmoothnessTikhonov is volume-scaled first-order smoothness.
	SmoothnessTikhonov
)

// PGITerm is the mixture-driven smallness objective: it scores a model
// by its misfit against the reference mixture in feature space.
type PGITerm struct {
	// Ref is the (geological) reference mixture; GMM is the working
	// mixture updated during inversion, nil until first learned.
	Ref *mixture.Mixture
	GMM *mixture.Mixture

	Wires *model.Wires
	Maps  []model.Map

	AlphaS float64

	// CellWeights is the stacked per-wire weight vector, empty for
	// uniform weighting.
	CellWeights []float64

	// ExactGradient and ExactEval disable the quasi-Newton
	// approximations of the objective; the approximations are the
	// default.
	ExactGradient bool
	ExactEval     bool
}

// SmoothnessTerm is one wire's first-order smoothness objective.
type SmoothnessTerm struct {
	Kind SmoothnessKind
	Wire string
	Map  model.Map

	AlphaX float64
	AlphaY float64
	AlphaZ float64

	CellWeights []float64
}

// Combo is the assembled objective: the smallness term (alpha_s) plus
// one smoothness term per wire (alpha_x/y/z); smallness carries no
// smoothness weight and vice versa.
type Combo struct {
	Smallness  *PGITerm
	Smoothness []*SmoothnessTerm
}

// Config configures a regularization combo. Zero values take the
// conventional defaults: a single wire covering all cells, identity
// maps, unit alphas and uniform cell weights.
type Config struct {
	// Cells is the active cell count each wire block spans.
	Cells int

	Ref *mixture.Mixture
	GMM *mixture.Mixture

	Wires *model.Wires
	Maps  []model.Map

	AlphaS float64

	// AlphaX/Y/Z are per-wire smoothness weights. A single entry
	// broadcasts to every wire; nil means 1 everywhere.
	AlphaX []float64
	AlphaY []float64
	AlphaZ []float64

	// CellWeights holds one weight vector per wire.
	CellWeights [][]float64

	ExactGradient bool
	ExactEval     bool
}

func (cfg *Config) withDefaults() (*Config, error) {
	out := *cfg
	if out.Ref == nil {
		return nil, ErrNoReference
	}
	if out.Cells <= 0 {
		return nil, fmt.Errorf("%w: %d cells", ErrShape, out.Cells)
	}
	if out.Wires == nil {
		w, err := model.NewWires(model.Wire{Name: "m", Size: out.Cells})
		if err != nil {
			return nil, err
		}
		out.Wires = w
	}
	count := out.Wires.Count()
	if out.Maps == nil {
		out.Maps = make([]model.Map, count)
		for i := range out.Maps {
			out.Maps[i] = model.IdentityMap{}
		}
	}
	if out.AlphaS == 0 {
		out.AlphaS = 1
	}
	var err error
	if out.AlphaX, err = broadcastAlpha(out.AlphaX, count, "alpha_x"); err != nil {
		return nil, err
	}
	if out.AlphaY, err = broadcastAlpha(out.AlphaY, count, "alpha_y"); err != nil {
		return nil, err
	}
	if out.AlphaZ, err = broadcastAlpha(out.AlphaZ, count, "alpha_z"); err != nil {
		return nil, err
	}
	return &out, nil
}

func broadcastAlpha(alpha []float64, count int, name string) ([]float64, error) {
	switch len(alpha) {
	case 0:
		out := make([]float64, count)
		for i := range out {
			out[i] = 1
		}
		return out, nil
	case 1:
		out := make([]float64, count)
		for i := range out {
			out[i] = alpha[0]
		}
		return out, nil
	case count:
		return alpha, nil
	default:
		return nil, fmt.Errorf("%w: %s has %d entries for %d wires", ErrShape, name, len(alpha), count)
	}
}

func (cfg *Config) validate() error {
	count := cfg.Wires.Count()
	if len(cfg.Maps) != count {
		return fmt.Errorf("%w: %d maps for %d wires", ErrShape, len(cfg.Maps), count)
	}
	for _, name := range cfg.Wires.Names() {
		size, err := cfg.Wires.Size(name)
		if err != nil {
			return err
		}
		if size != cfg.Cells {
			return fmt.Errorf("%w: wire %q spans %d cells, want %d", ErrShape, name, size, cfg.Cells)
		}
	}
	if cfg.Ref.Features != count {
		return fmt.Errorf("%w: reference mixture has %d features for %d wires", ErrShape, cfg.Ref.Features, count)
	}
	if cfg.GMM != nil && cfg.GMM.Features != count {
		return fmt.Errorf("%w: working mixture has %d features for %d wires", ErrShape, cfg.GMM.Features, count)
	}
	if cfg.CellWeights != nil {
		if len(cfg.CellWeights) != count {
			return fmt.Errorf("%w: %d cell weight vectors for %d wires", ErrShape, len(cfg.CellWeights), count)
		}
		for i, w := range cfg.CellWeights {
			if len(w) != cfg.Cells {
				return fmt.Errorf("%w: cell weights %d has %d entries for %d cells", ErrShape, i, len(w), cfg.Cells)
			}
		}
	}
	return nil
}

// assemble builds the combo shared by every factory: smallness with
// alpha_s only, then one smoothness term per wire with alpha_x/y/z only.
func assemble(cfg *Config, kind SmoothnessKind) (*Combo, error) {
	full, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	if err := full.validate(); err != nil {
		return nil, err
	}

	smallness := &PGITerm{
		Ref:           full.Ref,
		GMM:           full.GMM,
		Wires:         full.Wires,
		Maps:          full.Maps,
		AlphaS:        full.AlphaS,
		ExactGradient: full.ExactGradient,
		ExactEval:     full.ExactEval,
	}
	if full.CellWeights != nil {
		for _, w := range full.CellWeights {
			smallness.CellWeights = append(smallness.CellWeights, w...)
		}
	}

	combo := &Combo{Smallness: smallness}
	for i, name := range full.Wires.Names() {
		term := &SmoothnessTerm{
			Kind:   kind,
			Wire:   name,
			Map:    full.Maps[i],
			AlphaX: full.AlphaX[i],
			AlphaY: full.AlphaY[i],
			AlphaZ: full.AlphaZ[i],
		}
		if full.CellWeights != nil {
			term.CellWeights = full.CellWeights[i]
		}
		combo.Smoothness = append(combo.Smoothness, term)
	}
	return combo, nil
}

// MakePGI builds the volume-weighted combo: mixture smallness plus
// Tikhonov smoothness per wire.
func MakePGI(cfg Config) (*Combo, error) {
	return assemble(&cfg, SmoothnessTikhonov)
}

// MakeSimplePGI builds the unscaled combo: mixture smallness plus
// simple smoothness per wire.
func MakeSimplePGI(cfg Config) (*Combo, error) {
	return assemble(&cfg, SmoothnessSimple)
}

// MakeSimplePGIWithRelationships builds the nonlinear-relationship
// combo: the smallness term evaluates densities through the reference
// mixture's per-cluster mappings. A reference without mappings gets
// identity transforms; the caller's mixture is left untouched.
func MakeSimplePGIWithRelationships(cfg Config) (*Combo, error) {
	if cfg.Ref != nil && cfg.Ref.Mappings == nil {
		ref := *cfg.Ref
		ref.Mappings = mixture.IdentityMappings(ref.Components)
		cfg.Ref = &ref
	}
	return assemble(&cfg, SmoothnessSimple)
}
