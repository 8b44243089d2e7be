package descriptor

import (
	"errors"
	"fmt"
)

var (
	// ErrLegacySpeciesIncomplete is returned when the deprecated
	// expansion_by_species_method parameter is set to "user defined" without
	// an accompanying global species list.
	ErrLegacySpeciesIncomplete = errors.New(`descriptor: deprecated "user defined" species method requires a species list`)
)

// UnknownSoapTypeError indicates an unsupported descriptor family.
type UnknownSoapTypeError struct {
	SoapType string
}

func (e *UnknownSoapTypeError) Error() string {
	return fmt.Sprintf("descriptor: unknown soap type %q (want RadialSpectrum, PowerSpectrum or BiSpectrum)", e.SoapType)
}

// InvalidSpeciesModeError indicates a species_list value that is neither a
// recognized mode string nor a species list.
type InvalidSpeciesModeError struct {
	Value string
}

func (e *InvalidSpeciesModeError) Error() string {
	return fmt.Sprintf("descriptor: invalid species mode %q (want %q, %q or a species list)", e.Value, SpeciesEnvironmentWise, SpeciesStructureWise)
}

// SpeciesNotInListError indicates a structure containing a species absent
// from a user-defined species list.
type SpeciesNotInListError struct {
	Species int
	List    []int
}

func (e *SpeciesNotInListError) Error() string {
	return fmt.Sprintf("descriptor: species %d present in data but missing from species list %v", e.Species, e.List)
}

// SubselectionError indicates a coefficient subselection entry outside the
// enumerated feature-index range.
type SubselectionError struct {
	Entry  int
	Reason string
}

func (e *SubselectionError) Error() string {
	return fmt.Sprintf("descriptor: coefficient subselection entry %d: %s", e.Entry, e.Reason)
}
