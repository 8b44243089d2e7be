// Package structure holds atomic structures and their labeled training
// properties (energies, forces).
//
// Parsing the many structure file formats used in atomistic simulation is
// left to external tooling; this package reads a plain JSON dataset and is
// otherwise only concerned with bookkeeping: atom counts, species sets, and
// property extraction under configurable parameter names.
package structure

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Structure is a single atomic configuration.
//
// Info holds per-structure scalar properties (e.g. the total energy) and
// Arrays holds per-atom vector properties (e.g. forces), both keyed by the
// parameter names of the source dataset.
type Structure struct {
	Positions [][3]float64             `json:"positions"`
	Species   []int                    `json:"species"`
	Cell      [3][3]float64            `json:"cell,omitempty"`
	PBC       [3]bool                  `json:"pbc,omitempty"`
	Info      map[string]float64       `json:"info,omitempty"`
	Arrays    map[string][][3]float64  `json:"arrays,omitempty"`
}

// NumAtoms returns the number of atoms in the structure.
func (s *Structure) NumAtoms() int { return len(s.Species) }

// SpeciesSet returns the sorted set of species present in the structure.
func (s *Structure) SpeciesSet() []int {
	return uniqueSorted(s.Species)
}

// Validate checks internal consistency of positions, species and arrays.
func (s *Structure) Validate() error {
	if len(s.Positions) != len(s.Species) {
		return fmt.Errorf("structure: %d positions for %d species", len(s.Positions), len(s.Species))
	}
	for name, rows := range s.Arrays {
		if len(rows) != len(s.Species) {
			return fmt.Errorf("structure: array %q has %d rows for %d atoms", name, len(rows), len(s.Species))
		}
	}
	return nil
}

// SpeciesSet returns the sorted set of species present across all structures.
func SpeciesSet(structures []*Structure) []int {
	var all []int
	for _, s := range structures {
		all = append(all, s.Species...)
	}
	return uniqueSorted(all)
}

// TotalAtoms returns the total atom count across structures.
func TotalAtoms(structures []*Structure) int {
	n := 0
	for _, s := range structures {
		n += s.NumAtoms()
	}
	return n
}

// MissingPropertyError indicates a structure without a required property.
type MissingPropertyError struct {
	Property  string
	Structure int
}

func (e *MissingPropertyError) Error() string {
	return fmt.Sprintf("structure %d has no property %q", e.Structure, e.Property)
}

// Energies extracts the scalar property name from every structure.
func Energies(structures []*Structure, name string) ([]float64, error) {
	out := make([]float64, len(structures))
	for i, s := range structures {
		v, ok := s.Info[name]
		if !ok {
			return nil, &MissingPropertyError{Property: name, Structure: i}
		}
		out[i] = v
	}
	return out, nil
}

// Forces extracts the per-atom vector property name from every structure,
// flattened to one value per Cartesian component in structure order:
// [s0a0x s0a0y s0a0z s0a1x ...]. The result has length 3*TotalAtoms.
func Forces(structures []*Structure, name string) ([]float64, error) {
	out := make([]float64, 0, 3*TotalAtoms(structures))
	for i, s := range structures {
		rows, ok := s.Arrays[name]
		if !ok {
			return nil, &MissingPropertyError{Property: name, Structure: i}
		}
		if len(rows) != s.NumAtoms() {
			return nil, fmt.Errorf("structure %d: property %q has %d rows for %d atoms", i, name, len(rows), s.NumAtoms())
		}
		for _, r := range rows {
			out = append(out, r[0], r[1], r[2])
		}
	}
	return out, nil
}

// LoadJSON reads a dataset of structures from a JSON file.
func LoadJSON(path string) ([]*Structure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var structures []*Structure
	if err := json.Unmarshal(data, &structures); err != nil {
		return nil, fmt.Errorf("structure: decoding %s: %w", path, err)
	}
	for i, s := range structures {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("structure %d: %w", i, err)
		}
	}
	return structures, nil
}

func uniqueSorted(values []int) []int {
	seen := make(map[int]struct{}, len(values))
	var out []int
	for _, v := range values {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}
