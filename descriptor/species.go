package descriptor

import (
	"log/slog"
	"slices"

	"github.com/hupe1980/gapgo/structure"
)

// SpeciesMode selects how descriptor blocks are keyed by atomic species.
type SpeciesMode string

const (
	// SpeciesEnvironmentWise keys each environment's block only by species
	// actually present around it. Sparsest, but rules out batched
	// matrix-matrix kernel products.
	SpeciesEnvironmentWise SpeciesMode = "environment wise"

	// SpeciesStructureWise keys blocks by species present anywhere in the
	// same structure.
	SpeciesStructureWise SpeciesMode = "structure wise"

	// SpeciesUserDefined uses an explicit ordered species list, fixing the
	// schema globally. Required for efficient dense kernel products; any
	// species in the data that is missing from the list is a configuration
	// error.
	SpeciesUserDefined SpeciesMode = "user defined"
)

// SpeciesList is the parsed species-handling configuration.
type SpeciesList struct {
	Mode    SpeciesMode
	Species []int // set only for SpeciesUserDefined
}

// EnvironmentWise returns the environment-wise species configuration.
func EnvironmentWise() SpeciesList {
	return SpeciesList{Mode: SpeciesEnvironmentWise}
}

// StructureWise returns the structure-wise species configuration.
func StructureWise() SpeciesList {
	return SpeciesList{Mode: SpeciesStructureWise}
}

// UserDefined returns a fixed-schema species configuration over the given
// list. The list order is preserved.
func UserDefined(species ...int) SpeciesList {
	return SpeciesList{Mode: SpeciesUserDefined, Species: slices.Clone(species)}
}

// ParseSpeciesMode maps a mode string onto a SpeciesList. User-defined lists
// do not go through here; they are constructed with UserDefined.
func ParseSpeciesMode(mode string) (SpeciesList, error) {
	switch SpeciesMode(mode) {
	case SpeciesEnvironmentWise:
		return EnvironmentWise(), nil
	case SpeciesStructureWise:
		return StructureWise(), nil
	default:
		return SpeciesList{}, &InvalidSpeciesModeError{Value: mode}
	}
}

// Check validates the configuration against a dataset. In user-defined mode
// every species occurring in the structures must appear in the list;
// the other modes accept any data.
func (s SpeciesList) Check(structures []*structure.Structure) error {
	if s.Mode != SpeciesUserDefined {
		return nil
	}
	for _, sp := range structure.SpeciesSet(structures) {
		if !slices.Contains(s.Species, sp) {
			return &SpeciesNotInListError{Species: sp, List: s.Species}
		}
	}
	return nil
}

func (s SpeciesList) hypers() map[string]any {
	global := []int{}
	if s.Mode == SpeciesUserDefined {
		global = slices.Clone(s.Species)
	}
	return map[string]any{
		"expansion_by_species_method": string(s.Mode),
		"global_species":              global,
	}
}

// migrateLegacySpecies translates the deprecated two-parameter species
// spelling (method + global list) into a SpeciesList. The translation is
// logged as a deprecation warning; it becomes an error after 2027-01-01.
func migrateLegacySpecies(method string, global []int, logger *slog.Logger) (SpeciesList, error) {
	if method != "" {
		logger.Warn("the expansion_by_species_method parameter is deprecated, use species list options instead; this becomes an error after 2027-01-01",
			slog.String("expansion_by_species_method", method))
		if method != string(SpeciesUserDefined) {
			return ParseSpeciesMode(method)
		}
		if global == nil {
			return SpeciesList{}, ErrLegacySpeciesIncomplete
		}
		return UserDefined(global...), nil
	}
	// global species without a method: assume user defined was meant.
	logger.Warn("the global_species parameter is deprecated, use a user-defined species list instead; this becomes an error after 2027-01-01",
		slog.Any("global_species", global))
	return UserDefined(global...), nil
}
