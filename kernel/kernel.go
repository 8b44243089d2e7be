// Package kernel builds similarity matrices between descriptor feature sets
// for sparse kernel regression.
//
// The only kernel family is the power ("Cosine") kernel: for normalized
// feature rows x and y the value is (x·y)^zeta. Structure-level kernels sum
// the atom-level values over each structure's atoms. Identical configuration
// and inputs always produce bit-identical matrices, regardless of how many
// workers fill the rows.
package kernel

import (
	"fmt"

	"github.com/hupe1980/gapgo/descriptor"
	"github.com/hupe1980/gapgo/persistence"
)

// Target selects the kernel row granularity.
type Target string

const (
	// TargetStructure aggregates atom kernels by summation per structure.
	TargetStructure Target = "structure"

	// TargetAtom keeps one kernel row per atomic environment.
	TargetAtom Target = "atom"
)

// UnknownTargetError indicates an unsupported target granularity.
type UnknownTargetError struct {
	Target Target
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("kernel: unknown target %q (want %q or %q)", e.Target, TargetStructure, TargetAtom)
}

// Options holds the optional kernel configuration.
type Options struct {
	// Name of the kernel family. Only "Cosine" exists.
	Name string

	// Target selects structure or atom granularity.
	Target Target

	// Zeta is the power-kernel exponent, >= 1.
	Zeta int

	// Workers bounds the parallelism of matrix assembly. Zero means
	// GOMAXPROCS.
	Workers int
}

// Kernel is the similarity configuration bound to the descriptor that
// produced the features it operates on.
type Kernel struct {
	name    string
	target  Target
	zeta    int
	workers int
	desc    *descriptor.SphericalInvariants
}

// New creates a power kernel over features of the given descriptor
// configuration.
func New(desc *descriptor.SphericalInvariants, optFns ...func(o *Options)) (*Kernel, error) {
	opts := Options{
		Name:   "Cosine",
		Target: TargetStructure,
		Zeta:   2,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	switch opts.Target {
	case TargetStructure, TargetAtom:
	default:
		return nil, &UnknownTargetError{Target: opts.Target}
	}
	if opts.Zeta < 1 {
		return nil, fmt.Errorf("kernel: zeta must be >= 1, got %d", opts.Zeta)
	}
	if opts.Name != "Cosine" {
		return nil, fmt.Errorf("kernel: unknown kernel name %q", opts.Name)
	}

	return &Kernel{
		name:    opts.Name,
		target:  opts.Target,
		zeta:    opts.Zeta,
		workers: opts.Workers,
		desc:    desc,
	}, nil
}

// Name returns the kernel family name.
func (k *Kernel) Name() string { return k.name }

// Target returns the row granularity.
func (k *Kernel) Target() Target { return k.target }

// Zeta returns the power exponent.
func (k *Kernel) Zeta() int { return k.zeta }

// Descriptor returns the descriptor configuration this kernel is bound to.
func (k *Kernel) Descriptor() *descriptor.SphericalInvariants { return k.desc }

// persistence entity implementation

var entityID = persistence.ID{Module: "kernel", Class: "Kernel"}

// ID implements persistence.Entity.
func (k *Kernel) ID() persistence.ID { return entityID }

// InitParams implements persistence.Entity. The bound descriptor nests as
// its own record.
func (k *Kernel) InitParams() map[string]any {
	params := map[string]any{
		"name":        k.name,
		"target_type": string(k.target),
		"zeta":        k.zeta,
	}
	if k.desc != nil {
		params["representation"] = k.desc
	}
	return params
}

// Data implements persistence.Entity.
func (k *Kernel) Data() map[string]any { return map[string]any{} }

// SetData implements persistence.Entity.
func (k *Kernel) SetData(map[string]any) error { return nil }

func init() {
	persistence.Register(entityID, func(init map[string]any) (persistence.Entity, error) {
		name, err := persistence.ToString(init, "name")
		if err != nil {
			return nil, err
		}
		target, err := persistence.ToString(init, "target_type")
		if err != nil {
			return nil, err
		}
		zeta, err := persistence.ToInt(init, "zeta")
		if err != nil {
			return nil, err
		}

		var desc *descriptor.SphericalInvariants
		if rep, ok := init["representation"]; ok {
			desc, ok = rep.(*descriptor.SphericalInvariants)
			if !ok {
				return nil, fmt.Errorf("kernel: representation is %T, want descriptor configuration", rep)
			}
		}

		return New(desc, func(o *Options) {
			o.Name = name
			o.Target = Target(target)
			o.Zeta = zeta
		})
	})
}
