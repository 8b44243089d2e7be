package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/gapgo/descriptor"
	"github.com/hupe1980/gapgo/gap"
	"github.com/hupe1980/gapgo/internal/npy"
	"github.com/hupe1980/gapgo/kernel"
	"github.com/hupe1980/gapgo/sparsify"
	"github.com/hupe1980/gapgo/structure"
)

// fitParams is the JSON parameter document driving a fit. Paths are
// resolved relative to the working directory.
type fitParams struct {
	Dataset   string `json:"dataset"`
	Features  string `json:"features"`
	Gradients string `json:"gradients,omitempty"`

	Descriptor descriptorParams `json:"descriptor"`
	Kernel     kernelParams     `json:"kernel"`

	NSparse        int    `json:"n_sparse"`
	SparsifyMethod string `json:"sparsify_method,omitempty"`
	StartIndex     int    `json:"start_index,omitempty"`

	EnergyRegularizer float64 `json:"energy_regularizer,omitempty"`
	ForceRegularizer  float64 `json:"force_regularizer,omitempty"`

	SelfContributions map[string]float64 `json:"self_contributions"`

	EnergyParameterName string `json:"energy_parameter_name,omitempty"`
	ForceParameterName  string `json:"force_parameter_name,omitempty"`

	NTrain []int  `json:"n_train,omitempty"`
	NTest  int    `json:"n_test,omitempty"`
	Output string `json:"output,omitempty"`

	Description string `json:"description,omitempty"`
}

type descriptorParams struct {
	InteractionCutoff float64 `json:"interaction_cutoff"`
	CutoffSmoothWidth float64 `json:"cutoff_smooth_width"`
	MaxRadial         int     `json:"max_radial"`
	MaxAngular        int     `json:"max_angular"`
	SoapType          string  `json:"soap_type,omitempty"`
	RadialBasis       string  `json:"radial_basis,omitempty"`
	Normalize         *bool   `json:"normalize,omitempty"`
	GlobalSpecies     []int   `json:"global_species"`
	ComputeGradients  bool    `json:"compute_gradients,omitempty"`
}

type kernelParams struct {
	Zeta       int    `json:"zeta,omitempty"`
	TargetType string `json:"target_type,omitempty"`
}

// loadParams reads and normalizes a parameter document.
func loadParams(path string) (*fitParams, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	p := &fitParams{
		SparsifyMethod:      string(sparsify.MethodSimple),
		EnergyRegularizer:   1e-3,
		ForceRegularizer:    1e-2,
		EnergyParameterName: "energy",
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return nil, fmt.Errorf("parameter document %s: %w", path, err)
	}

	if p.Dataset == "" {
		return nil, fmt.Errorf("parameter document %s: dataset is required", path)
	}
	if p.Features == "" {
		return nil, fmt.Errorf("parameter document %s: features is required", path)
	}
	if p.NSparse <= 0 {
		return nil, fmt.Errorf("parameter document %s: n_sparse must be positive", path)
	}
	if len(p.SelfContributions) == 0 {
		return nil, fmt.Errorf("parameter document %s: self_contributions is required", path)
	}
	if p.Output == "" {
		p.Output = "model_{n}.json"
	}
	return p, nil
}

// baseline converts the string-keyed JSON map to species numbers.
func (p *fitParams) baseline() (gap.Baseline, error) {
	b := make(gap.Baseline, len(p.SelfContributions))
	for k, v := range p.SelfContributions {
		z, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("self_contributions key %q is not a species number", k)
		}
		b[z] = v
	}
	return b, nil
}

// buildDescriptor constructs the descriptor configuration.
func (p *fitParams) buildDescriptor() (*descriptor.SphericalInvariants, error) {
	return descriptor.New(p.Descriptor.InteractionCutoff, p.Descriptor.CutoffSmoothWidth,
		p.Descriptor.MaxRadial, p.Descriptor.MaxAngular,
		func(o *descriptor.Options) {
			if p.Descriptor.SoapType != "" {
				o.SoapType = descriptor.SoapType(p.Descriptor.SoapType)
			}
			if p.Descriptor.RadialBasis != "" {
				o.RadialBasis = descriptor.RadialBasis(p.Descriptor.RadialBasis)
			}
			if p.Descriptor.Normalize != nil {
				o.Normalize = *p.Descriptor.Normalize
			}
			if len(p.Descriptor.GlobalSpecies) > 0 {
				o.Species = descriptor.UserDefined(p.Descriptor.GlobalSpecies...)
			}
			o.ComputeGradients = p.Descriptor.ComputeGradients || p.Gradients != ""
		})
}

// buildKernel constructs the kernel configuration.
func (p *fitParams) buildKernel(desc *descriptor.SphericalInvariants) (*kernel.Kernel, error) {
	return kernel.New(desc, func(o *kernel.Options) {
		if p.Kernel.Zeta > 0 {
			o.Zeta = p.Kernel.Zeta
		}
		if p.Kernel.TargetType != "" {
			o.Target = kernel.Target(p.Kernel.TargetType)
		}
	})
}

// loadFeatures reads the precomputed feature matrix (and optional gradient
// block) and validates its shape against the dataset and the descriptor.
func (p *fitParams) loadFeatures(dir string, structures []*structure.Structure, desc *descriptor.SphericalInvariants) (*descriptor.FeatureMatrix, error) {
	featArr, err := npy.Load(filepath.Join(dir, p.Features))
	if err != nil {
		return nil, err
	}
	shape := featArr.Shape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("features %s: got %d dimensions, want 2", p.Features, len(shape))
	}
	if featArr.DType() != npy.Float64 {
		return nil, fmt.Errorf("features %s: dtype %s, want %s", p.Features, featArr.DType(), npy.Float64)
	}

	totalAtoms := structure.TotalAtoms(structures)
	if shape[0] != totalAtoms {
		return nil, fmt.Errorf("features %s: %d rows but dataset has %d atoms", p.Features, shape[0], totalAtoms)
	}

	if len(p.Descriptor.GlobalSpecies) > 0 {
		want := desc.NumCoefficients(len(p.Descriptor.GlobalSpecies))
		if shape[1] != want {
			return nil, fmt.Errorf("features %s: %d columns but descriptor yields %d coefficients", p.Features, shape[1], want)
		}
	}

	feats := &descriptor.FeatureMatrix{
		X:              matFromArray(featArr),
		StructureSizes: structureSizes(structures),
	}

	if p.Gradients != "" {
		gradArr, err := npy.Load(filepath.Join(dir, p.Gradients))
		if err != nil {
			return nil, err
		}
		gshape := gradArr.Shape()
		if gradArr.DType() != npy.Float64 {
			return nil, fmt.Errorf("gradients %s: dtype %s, want %s", p.Gradients, gradArr.DType(), npy.Float64)
		}
		if len(gshape) != 2 || gshape[0] != 3*shape[0] || gshape[1] != shape[1] {
			return nil, fmt.Errorf("gradients %s: shape %v does not match %d feature rows", p.Gradients, gshape, shape[0])
		}
		feats.Grad = matFromArray(gradArr)
	}

	if err := feats.Validate(); err != nil {
		return nil, err
	}
	return feats, nil
}

// matFromArray views a two-dimensional float64 array as a dense matrix.
func matFromArray(a *npy.Array) *mat.Dense {
	shape := a.Shape()
	return mat.NewDense(shape[0], shape[1], a.Float64())
}

func structureSizes(structures []*structure.Structure) []int {
	sizes := make([]int, len(structures))
	for i, s := range structures {
		sizes[i] = s.NumAtoms()
	}
	return sizes
}

// outputPath expands the {n} placeholder in a templated file name.
func outputPath(template string, nTrain int) string {
	return strings.ReplaceAll(template, "{n}", strconv.Itoa(nTrain))
}
