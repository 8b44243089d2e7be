package descriptor

// Hyperparameters is the canonical option set handed to the external
// descriptor engine. It is treated as immutable: Update returns a merged
// copy and never mutates the receiver.
type Hyperparameters map[string]any

// allowedHypers is the forward-compatibility allow-list: Update silently
// drops any key not named here, so configs written by newer tooling load
// without error.
var allowedHypers = map[string]struct{}{
	"interaction_cutoff":          {},
	"cutoff_smooth_width":         {},
	"max_radial":                  {},
	"max_angular":                 {},
	"gaussian_sigma_type":         {},
	"gaussian_sigma_constant":     {},
	"soap_type":                   {},
	"inversion_symmetry":          {},
	"cutoff_function":             {},
	"normalize":                   {},
	"gaussian_density":            {},
	"radial_contribution":         {},
	"cutoff_function_parameters":  {},
	"expansion_by_species_method": {},
	"compute_gradients":           {},
	"global_species":              {},
	"coefficient_subselection":    {},
}

// Update merges the recognized keys of changes into a copy of h. Unknown
// keys are dropped without error.
func (h Hyperparameters) Update(changes map[string]any) Hyperparameters {
	out := make(Hyperparameters, len(h)+len(changes))
	for k, v := range h {
		out[k] = v
	}
	for k, v := range changes {
		if _, ok := allowedHypers[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Clone returns a shallow copy.
func (h Hyperparameters) Clone() Hyperparameters {
	out := make(Hyperparameters, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
