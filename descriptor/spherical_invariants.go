package descriptor

import (
	"log/slog"
	"maps"
	"slices"

	"github.com/hupe1980/gapgo/persistence"
)

// SoapType selects the descriptor family.
type SoapType string

const (
	RadialSpectrum SoapType = "RadialSpectrum"
	PowerSpectrum  SoapType = "PowerSpectrum"
	BiSpectrum     SoapType = "BiSpectrum"
)

// CutoffFunctionType selects the smooth cutoff switching function.
type CutoffFunctionType string

const (
	ShiftedCosine CutoffFunctionType = "ShiftedCosine"
	RadialScaling CutoffFunctionType = "RadialScaling"
)

// RadialBasis selects the radial basis functions.
type RadialBasis string

const (
	GTO RadialBasis = "GTO"
	DVR RadialBasis = "DVR"
)

// Options holds the optional SphericalInvariants configuration.
type Options struct {
	GaussianSigmaType        string
	GaussianSigmaConstant    float64
	CutoffFunctionType       CutoffFunctionType
	CutoffFunctionParameters map[string]float64 // rate, scale, exponent for RadialScaling
	SoapType                 SoapType
	InversionSymmetry        bool
	RadialBasis              RadialBasis
	Normalize                bool
	OptimizationArgs         map[string]any
	Species                  SpeciesList
	ComputeGradients         bool
	Subselection             *Subselection
	Logger                   *slog.Logger

	// Deprecated two-parameter species spelling, accepted for old configs
	// and translated with a logged warning.
	ExpansionBySpeciesMethod string
	GlobalSpecies            []int
}

// SphericalInvariants is the canonical configuration of a SOAP descriptor.
// It does not compute features itself; it sizes and indexes them and carries
// the hyperparameter document consumed by the external engine.
type SphericalInvariants struct {
	interactionCutoff float64
	cutoffSmoothWidth float64
	maxRadial         int
	maxAngular        int

	soapType          SoapType
	inversionSymmetry bool
	normalize         bool
	computeGradients  bool
	species           SpeciesList
	subselection      *Subselection

	opts   Options
	hypers Hyperparameters
}

// New validates the configuration and builds the canonical hyperparameter
// set. Unknown soap types and malformed subselections fail here, not at
// compute time.
func New(interactionCutoff, cutoffSmoothWidth float64, maxRadial, maxAngular int, optFns ...func(o *Options)) (*SphericalInvariants, error) {
	opts := Options{
		GaussianSigmaType:     "Constant",
		GaussianSigmaConstant: 0.3,
		CutoffFunctionType:    ShiftedCosine,
		SoapType:              PowerSpectrum,
		InversionSymmetry:     true,
		RadialBasis:           GTO,
		Normalize:             true,
		Species:               EnvironmentWise(),
		Logger:                slog.Default(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	switch opts.SoapType {
	case RadialSpectrum, PowerSpectrum, BiSpectrum:
	default:
		return nil, &UnknownSoapTypeError{SoapType: string(opts.SoapType)}
	}

	species := opts.Species
	if opts.ExpansionBySpeciesMethod != "" || opts.GlobalSpecies != nil {
		migrated, err := migrateLegacySpecies(opts.ExpansionBySpeciesMethod, opts.GlobalSpecies, opts.Logger)
		if err != nil {
			return nil, err
		}
		species = migrated
	}

	if opts.Subselection != nil {
		if err := opts.Subselection.Validate(maxRadial, maxAngular); err != nil {
			return nil, err
		}
	}

	s := &SphericalInvariants{
		interactionCutoff: interactionCutoff,
		cutoffSmoothWidth: cutoffSmoothWidth,
		maxRadial:         maxRadial,
		maxAngular:        maxAngular,
		soapType:          opts.SoapType,
		inversionSymmetry: opts.InversionSymmetry,
		normalize:         opts.Normalize,
		computeGradients:  opts.ComputeGradients,
		species:           species,
		subselection:      opts.Subselection,
		opts:              opts,
	}
	if s.soapType == RadialSpectrum {
		s.maxAngular = 0
	}

	s.opts.OptimizationArgs = normalizeOptimization(opts.OptimizationArgs, opts.Logger)
	s.hypers = s.buildHypers()

	return s, nil
}

// normalizeOptimization canonicalizes the radial-basis optimization
// sub-options. Unknown types fall back to no optimization with a logged
// notice rather than failing.
func normalizeOptimization(args map[string]any, logger *slog.Logger) map[string]any {
	none := map[string]any{"type": "None"}
	typ, ok := args["type"].(string)
	if !ok {
		return none
	}
	switch typ {
	case "Spline":
		accuracy, ok := args["accuracy"].(float64)
		if !ok {
			accuracy = 1e-5
			logger.Info("no accuracy for spline optimization was given, switching to default",
				slog.Float64("accuracy", accuracy))
		}
		return map[string]any{"type": "Spline", "accuracy": accuracy}
	case "None":
		return none
	default:
		logger.Warn("optimization type is not known, switching to no optimization",
			slog.String("type", typ))
		return none
	}
}

func (s *SphericalInvariants) buildHypers() Hyperparameters {
	cutoffFunction := map[string]any{
		"type":         string(s.opts.CutoffFunctionType),
		"cutoff":       map[string]any{"value": s.interactionCutoff, "unit": "AA"},
		"smooth_width": map[string]any{"value": s.cutoffSmoothWidth, "unit": "AA"},
	}
	if s.opts.CutoffFunctionType == RadialScaling {
		for _, p := range []string{"rate", "scale", "exponent"} {
			if v, ok := s.opts.CutoffFunctionParameters[p]; ok {
				cutoffFunction[p] = map[string]any{"value": v, "unit": "AA"}
			}
		}
	}

	gaussianDensity := map[string]any{
		"type":           s.opts.GaussianSigmaType,
		"gaussian_sigma": map[string]any{"value": s.opts.GaussianSigmaConstant, "unit": "AA"},
	}

	radialContribution := map[string]any{
		"type":         string(s.opts.RadialBasis),
		"optimization": s.opts.OptimizationArgs,
	}

	h := Hyperparameters{}.Update(map[string]any{
		"interaction_cutoff":  s.interactionCutoff,
		"cutoff_smooth_width": s.cutoffSmoothWidth,
		"max_radial":          s.maxRadial,
		"max_angular":         s.maxAngular,
		"soap_type":           string(s.soapType),
		"normalize":           s.normalize,
		"inversion_symmetry":  s.inversionSymmetry,
		"compute_gradients":   s.computeGradients,
		"cutoff_function":     cutoffFunction,
		"gaussian_density":    gaussianDensity,
		"radial_contribution": radialContribution,
	})
	h = h.Update(s.species.hypers())
	if s.subselection != nil {
		h = h.Update(map[string]any{"coefficient_subselection": s.subselection})
	}
	return h
}

// Hypers returns a copy of the canonical hyperparameter document.
func (s *SphericalInvariants) Hypers() Hyperparameters { return s.hypers.Clone() }

// SoapType returns the descriptor family.
func (s *SphericalInvariants) SoapType() SoapType { return s.soapType }

// MaxRadial returns the radial truncation.
func (s *SphericalInvariants) MaxRadial() int { return s.maxRadial }

// MaxAngular returns the angular truncation. It is always 0 for
// RadialSpectrum regardless of the constructor argument.
func (s *SphericalInvariants) MaxAngular() int { return s.maxAngular }

// Species returns the species-handling configuration.
func (s *SphericalInvariants) Species() SpeciesList { return s.species }

// ComputeGradients reports whether the engine is asked for the gradient
// block.
func (s *SphericalInvariants) ComputeGradients() bool { return s.computeGradients }

// Subselection returns the coefficient subselection, or nil.
func (s *SphericalInvariants) Subselection() *Subselection { return s.subselection }

// NumCoefficients returns the descriptor size per atomic center for
// nSpecies distinct species, in closed form per family.
func (s *SphericalInvariants) NumCoefficients(nSpecies int) int {
	nMax := s.maxRadial
	lMax := s.maxAngular
	switch s.soapType {
	case RadialSpectrum:
		return nSpecies * nMax
	case PowerSpectrum:
		return nSpecies * (nSpecies + 1) / 2 * nMax * nMax * (lMax + 1)
	case BiSpectrum:
		if !s.inversionSymmetry {
			// (l³ + 3l² + 4l + 2)/2 angular triples; always divides evenly.
			return nSpecies * nSpecies * nSpecies * nMax * nMax * nMax *
				((lMax*lMax*lMax + 3*lMax*lMax + 4*lMax + 2) / 2)
		}
		l1 := lMax + 1
		return nSpecies * nSpecies * nSpecies * nMax * nMax * nMax *
			((l1*l1 + 1) * (2*l1 + 3) / 8)
	}
	return 0 // unreachable, soap type validated at construction
}

// Keys returns the canonical non-decreasing species tuples indexing the
// descriptor blocks for the given species set.
func (s *SphericalInvariants) Keys(species []int) [][]int {
	var keys [][]int
	switch s.soapType {
	case RadialSpectrum:
		for _, sp := range species {
			keys = append(keys, []int{sp})
		}
	case PowerSpectrum:
		for _, sp1 := range species {
			for _, sp2 := range species {
				if sp1 > sp2 {
					continue
				}
				keys = append(keys, []int{sp1, sp2})
			}
		}
	case BiSpectrum:
		for _, sp1 := range species {
			for _, sp2 := range species {
				if sp1 > sp2 {
					continue
				}
				for _, sp3 := range species {
					if sp2 > sp3 {
						continue
					}
					keys = append(keys, []int{sp1, sp2, sp3})
				}
			}
		}
	}
	return keys
}

// IndexMap enumerates the flat feature ordering for the given species set.
// Only the power spectrum has a flat pair-indexed layout.
func (s *SphericalInvariants) IndexMap(species []int) ([]FeatureIndex, error) {
	if s.soapType != PowerSpectrum {
		return nil, &UnknownSoapTypeError{SoapType: string(s.soapType) + " (index map is power-spectrum only)"}
	}
	sorted := slices.Clone(species)
	slices.Sort(sorted)
	pairs := make([][2]int, 0)
	for _, k := range s.Keys(sorted) {
		pairs = append(pairs, [2]int{k[0], k[1]})
	}
	return PowerSpectrumIndexMap(pairs, s.maxRadial, s.maxAngular), nil
}

// persistence entity implementation

var entityID = persistence.ID{Module: "descriptor", Class: "SphericalInvariants"}

// ID implements persistence.Entity.
func (s *SphericalInvariants) ID() persistence.ID { return entityID }

// InitParams implements persistence.Entity.
func (s *SphericalInvariants) InitParams() map[string]any {
	var speciesList any
	if s.species.Mode == SpeciesUserDefined {
		speciesList = persistence.IntSliceParam(s.species.Species)
	} else {
		speciesList = string(s.species.Mode)
	}

	params := map[string]any{
		"interaction_cutoff":      s.interactionCutoff,
		"cutoff_smooth_width":     s.cutoffSmoothWidth,
		"max_radial":              s.maxRadial,
		"max_angular":             s.maxAngular,
		"soap_type":               string(s.soapType),
		"inversion_symmetry":      s.inversionSymmetry,
		"normalize":               s.normalize,
		"species_list":            speciesList,
		"compute_gradients":       s.computeGradients,
		"gaussian_sigma_type":     s.opts.GaussianSigmaType,
		"gaussian_sigma_constant": s.opts.GaussianSigmaConstant,
		"cutoff_function_type":    string(s.opts.CutoffFunctionType),
		"radial_basis":            string(s.opts.RadialBasis),
		"optimization_args":       maps.Clone(s.opts.OptimizationArgs),
	}
	if len(s.opts.CutoffFunctionParameters) > 0 {
		p := make(map[string]any, len(s.opts.CutoffFunctionParameters))
		for k, v := range s.opts.CutoffFunctionParameters {
			p[k] = v
		}
		params["cutoff_function_parameters"] = p
	}
	if s.subselection != nil {
		params["coefficient_subselection"] = map[string]any{
			"a":  persistence.IntSliceParam(s.subselection.A),
			"b":  persistence.IntSliceParam(s.subselection.B),
			"n1": persistence.IntSliceParam(s.subselection.N1),
			"n2": persistence.IntSliceParam(s.subselection.N2),
			"l":  persistence.IntSliceParam(s.subselection.L),
		}
	}
	return params
}

// Data implements persistence.Entity. The descriptor carries no derived
// state; everything lives in init params.
func (s *SphericalInvariants) Data() map[string]any { return map[string]any{} }

// SetData implements persistence.Entity.
func (s *SphericalInvariants) SetData(map[string]any) error { return nil }

func init() {
	persistence.Register(entityID, newFromInitParams)
}

func newFromInitParams(init map[string]any) (persistence.Entity, error) {
	interactionCutoff, err := persistence.ToFloat(init, "interaction_cutoff")
	if err != nil {
		return nil, err
	}
	cutoffSmoothWidth, err := persistence.ToFloat(init, "cutoff_smooth_width")
	if err != nil {
		return nil, err
	}
	maxRadial, err := persistence.ToInt(init, "max_radial")
	if err != nil {
		return nil, err
	}
	maxAngular, err := persistence.ToInt(init, "max_angular")
	if err != nil {
		return nil, err
	}

	return New(interactionCutoff, cutoffSmoothWidth, maxRadial, maxAngular, func(o *Options) {
		if v, err := persistence.ToString(init, "soap_type"); err == nil {
			o.SoapType = SoapType(v)
		}
		if v, err := persistence.ToBool(init, "inversion_symmetry"); err == nil {
			o.InversionSymmetry = v
		}
		if v, err := persistence.ToBool(init, "normalize"); err == nil {
			o.Normalize = v
		}
		if v, err := persistence.ToBool(init, "compute_gradients"); err == nil {
			o.ComputeGradients = v
		}
		if v, err := persistence.ToString(init, "gaussian_sigma_type"); err == nil {
			o.GaussianSigmaType = v
		}
		if v, err := persistence.ToFloat(init, "gaussian_sigma_constant"); err == nil {
			o.GaussianSigmaConstant = v
		}
		if v, err := persistence.ToString(init, "cutoff_function_type"); err == nil {
			o.CutoffFunctionType = CutoffFunctionType(v)
		}
		if v, err := persistence.ToString(init, "radial_basis"); err == nil {
			o.RadialBasis = RadialBasis(v)
		}
		if v, ok := init["optimization_args"].(map[string]any); ok {
			o.OptimizationArgs = v
		}

		switch sl := init["species_list"].(type) {
		case string:
			if mode, err := ParseSpeciesMode(sl); err == nil {
				o.Species = mode
			}
		default:
			if list, err := persistence.ToIntSlice(init, "species_list"); err == nil {
				o.Species = UserDefined(list...)
			}
		}

		if params, ok := init["cutoff_function_parameters"].(map[string]any); ok {
			o.CutoffFunctionParameters = make(map[string]float64, len(params))
			for k := range params {
				if v, err := persistence.ToFloat(params, k); err == nil {
					o.CutoffFunctionParameters[k] = v
				}
			}
		}
		if sub, ok := init["coefficient_subselection"].(map[string]any); ok {
			sel := &Subselection{}
			sel.A, _ = persistence.ToIntSlice(sub, "a")
			sel.B, _ = persistence.ToIntSlice(sub, "b")
			sel.N1, _ = persistence.ToIntSlice(sub, "n1")
			sel.N2, _ = persistence.ToIntSlice(sub, "n2")
			sel.L, _ = persistence.ToIntSlice(sub, "l")
			o.Subselection = sel
		}
	})
}
