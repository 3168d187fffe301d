package oss

import "fmt"

// Reagent labels the material moved by load and transfer commands. The core
// never interprets reagents; they exist so operator commands and logs name
// what is being handled.
type Reagent struct {
	Name       string
	Provenance string // "standard" or "custom"
}

func (r Reagent) String() string {
	return r.Name
}

// standardReagents is the fixed catalog of reagents the platform stocks.
var standardReagents = []string{
	"Water",
	"Acetone",
	"Ethanol",
	"Benzene",
	"Toluene",
	"Hexane",
	"Heptane",
	"Octane",
}

// StandardReagent returns a Reagent from the stocked catalog. Unknown names
// are rejected so typos surface before any liquid moves.
func StandardReagent(name string) (Reagent, error) {
	for _, s := range standardReagents {
		if s == name {
			return Reagent{Name: name, Provenance: "standard"}, nil
		}
	}
	return Reagent{}, fmt.Errorf("%q is not a standard reagent (available: %v)", name, standardReagents)
}

// CustomReagent labels a researcher-supplied material. The "custom-" prefix
// keeps custom names from colliding with the stocked catalog.
func CustomReagent(name string) Reagent {
	return Reagent{Name: "custom-" + name, Provenance: "custom"}
}

// StandardReagents returns a copy of the stocked catalog.
func StandardReagents() []string {
	out := make([]string, len(standardReagents))
	copy(out, standardReagents)
	return out
}
