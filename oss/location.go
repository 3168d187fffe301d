package oss

import "fmt"

// Equipment identifies a physical station a labware item can sit on.
type Equipment string

const (
	Workbench     Equipment = "workbench"
	LiquidHandler Equipment = "liquid-handler"
	Incubator     Equipment = "incubator"
	Spectroscope  Equipment = "spectroscope"
)

// Labware identifies a consumable/fixture category. Behavior differences
// between kinds (capacity range, well addressing) live in the LabwareSpec
// table, not in per-kind types.
type Labware string

const (
	Reservoir Labware = "reservoir"
	Wellplate Labware = "wellplate"
	TestTube  Labware = "testtube"
	Cuvette   Labware = "cuvette"
)

// labwareKinds lists all kinds in canonical order. The allocator uses this
// order to break ties between kinds with equal max capacity, which keeps
// allocation deterministic.
var labwareKinds = []Labware{Wellplate, TestTube, Cuvette, Reservoir}

// LabwareKinds returns all labware kinds in canonical order.
func LabwareKinds() []Labware {
	out := make([]Labware, len(labwareKinds))
	copy(out, labwareKinds)
	return out
}

// LocationID is an opaque, client-chosen name for a protocol role. It
// carries no physical meaning until bound to a Location.
type LocationID string

// Location is a physical placement: equipment, slot on that equipment,
// labware kind, and (for wellplates only) a well reference like "A1".
// Locations are immutable values compared structurally.
type Location struct {
	Equipment Equipment
	Slot      int
	Labware   Labware
	Well      string
}

// String renders the location in the log format used throughout the stack,
// e.g. "[liquid-handler:slot-3:wellplate:A2]". The well is omitted for
// labware kinds that have no wells.
func (l Location) String() string {
	if l.Labware == Wellplate && l.Well != "" {
		return fmt.Sprintf("[%s:slot-%d:%s:%s]", l.Equipment, l.Slot, l.Labware, l.Well)
	}
	return fmt.Sprintf("[%s:slot-%d:%s]", l.Equipment, l.Slot, l.Labware)
}

// wellName converts a row-major well index into a well reference.
// With rowWidth 8: 0 -> "A1", 7 -> "A8", 8 -> "B1".
func wellName(index, rowWidth int) string {
	row := index / rowWidth
	col := index%rowWidth + 1
	return fmt.Sprintf("%c%d", 'A'+rune(row), col)
}

// wellIndex is the inverse of wellName. It returns -1 for references it
// cannot parse.
func wellIndex(name string, rowWidth int) int {
	if len(name) < 2 || name[0] < 'A' || name[0] > 'Z' {
		return -1
	}
	col := 0
	for i := 1; i < len(name); i++ {
		d := name[i]
		if d < '0' || d > '9' {
			return -1
		}
		col = col*10 + int(d-'0')
	}
	if col < 1 || col > rowWidth {
		return -1
	}
	return int(name[0]-'A')*rowWidth + col - 1
}
