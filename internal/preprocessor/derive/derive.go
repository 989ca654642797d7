// Package derive computes variables that are not stored directly in model
// output from the variables and fx fields they are built from.
package derive

import (
	"fmt"
	"sort"

	"go.ngs.io/climate-preproc/internal/domain"
)

// Requirement is one input of a derived variable.
type Requirement struct {
	ShortName string   `json:"short_name"`
	FxFields  []string `json:"fx_fields,omitempty"`
}

// Inputs holds the loaded input cubes keyed by short name and the loaded fx
// fields keyed by field name.
type Inputs struct {
	Cubes map[string]*domain.Cube
	Fx    map[string]*domain.Cube
}

// Variable describes a derived variable.
type Variable struct {
	ShortName   string        `json:"short_name"`
	Description string        `json:"description"`
	Required    []Requirement `json:"required"`

	calculate func(Inputs) (*domain.Cube, error)
}

// UnknownVariableError is returned for names missing from the registry.
type UnknownVariableError struct {
	Name string
}

func (e *UnknownVariableError) Error() string {
	return fmt.Sprintf("cannot derive variable %q: no derivation available (known: %v)", e.Name, Names())
}

// MissingInputError is returned when a required cube or fx field was not
// supplied.
type MissingInputError struct {
	Variable string
	Input    string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("deriving %s requires %s", e.Variable, e.Input)
}

var registry = map[string]Variable{
	"gtintpp": {
		ShortName:   "gtintpp",
		Description: "Global total of primary organic carbon production by phytoplankton",
		Required:    []Requirement{{ShortName: "intpp", FxFields: []string{"areacello"}}},
		calculate:   totalFlux,
	},
	"SHIP_NO_s": {
		ShortName:   "SHIP_NO_s",
		Description: "Ship NO emissions summed over all levels",
		Required:    []Requirement{{ShortName: "SHIP_NO"}},
		calculate:   levelSum("SHIP_NO"),
	},
}

// Names returns the derivable short names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the registry entry for name.
func Lookup(name string) (Variable, error) {
	v, ok := registry[name]
	if !ok {
		return Variable{}, &UnknownVariableError{Name: name}
	}
	return v, nil
}

// Variables returns all registry entries sorted by short name.
func Variables() []Variable {
	out := make([]Variable, 0, len(registry))
	for _, name := range Names() {
		out = append(out, registry[name])
	}
	return out
}

// Derive computes the named variable from in.
func Derive(name string, in Inputs) (*domain.Cube, error) {
	v, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	for _, req := range v.Required {
		if in.Cubes[req.ShortName] == nil {
			return nil, &MissingInputError{Variable: name, Input: "variable " + req.ShortName}
		}
		for _, fx := range req.FxFields {
			if in.Fx[fx] == nil {
				return nil, &MissingInputError{Variable: name, Input: "fx field " + fx}
			}
		}
	}
	cube, err := v.calculate(in)
	if err != nil {
		return nil, fmt.Errorf("failed to derive %s: %w", name, err)
	}
	cube.VarName = name
	return cube, nil
}
