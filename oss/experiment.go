package oss

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Experiment owns the logical-to-physical location mapping for one running
// protocol. The binding table and liquid-handler slot set are exclusive to
// the experiment; nothing is shared across experiments.
//
// Actions take mu for their full duration (including suspension points), so
// at most one action mutates an experiment at a time. The accessor methods
// themselves do not lock; callers outside the orchestrator's action path
// must hold mu via Lock/Unlock.
type Experiment struct {
	ID         int64
	Name       string
	CreateTime time.Time

	mu       sync.Mutex
	cfg      *LabConfig
	bindings map[LocationID]Location
	volumes  map[LocationID]int
	lhSlots  map[int]bool // occupied liquid-handler slots

	actionCounts map[string]int // per-action tallies, reported at ExperimentEnd
}

// NewExperiment creates an empty experiment against the given lab.
func NewExperiment(id int64, name string, cfg *LabConfig) *Experiment {
	return &Experiment{
		ID:           id,
		Name:         name,
		CreateTime:   time.Now(),
		cfg:          cfg,
		bindings:     make(map[LocationID]Location),
		volumes:      make(map[LocationID]int),
		lhSlots:      make(map[int]bool),
		actionCounts: make(map[string]int),
	}
}

// Lock acquires the experiment's action mutex.
func (e *Experiment) Lock() { e.mu.Lock() }

// Unlock releases the experiment's action mutex.
func (e *Experiment) Unlock() { e.mu.Unlock() }

// IsBound reports whether id currently maps to a physical location.
func (e *Experiment) IsBound(id LocationID) bool {
	_, ok := e.bindings[id]
	return ok
}

// Lookup resolves id to its bound physical location.
func (e *Experiment) Lookup(id LocationID) (Location, error) {
	loc, ok := e.bindings[id]
	if !ok {
		return Location{}, fmt.Errorf("%w: %q", ErrNotBound, id)
	}
	return loc, nil
}

// Bind records id -> loc and, for liquid-handler placements, marks the slot
// occupied. Binding an already-bound id is a fault: release first. Binding
// a physical location that another id already holds is aliasing and is also
// rejected.
func (e *Experiment) Bind(id LocationID, loc Location) error {
	if _, ok := e.bindings[id]; ok {
		return fmt.Errorf("%w: %q", ErrAlreadyBound, id)
	}
	for other, held := range e.bindings {
		if held == loc {
			return fmt.Errorf("%w: %s already held by %q", ErrAlreadyBound, loc, other)
		}
	}
	e.bindings[id] = loc
	if loc.Equipment == LiquidHandler {
		e.lhSlots[loc.Slot] = true
	}
	logrus.Infof("Experiment %d: bind %q -> %s", e.ID, id, loc)
	return nil
}

// Release removes id's binding. The liquid-handler slot is freed only when
// no other binding still references it (wellplate wells share a slot).
func (e *Experiment) Release(id LocationID) error {
	loc, ok := e.bindings[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotBound, id)
	}
	delete(e.bindings, id)
	delete(e.volumes, id)
	if loc.Equipment == LiquidHandler && !e.slotInUse(loc.Slot) {
		delete(e.lhSlots, loc.Slot)
	}
	logrus.Infof("Experiment %d: release %q from %s", e.ID, id, loc)
	return nil
}

// slotInUse reports whether any binding still references the given
// liquid-handler slot.
func (e *Experiment) slotInUse(slot int) bool {
	for _, loc := range e.bindings {
		if loc.Equipment == LiquidHandler && loc.Slot == slot {
			return true
		}
	}
	return false
}

// FreeSlot returns the lowest unoccupied liquid-handler slot. Slot indices
// run 1..LiquidHandlerSlots; the waste slot is never allocatable.
func (e *Experiment) FreeSlot() (int, error) {
	for s := 1; s <= e.cfg.LiquidHandlerSlots; s++ {
		if s == e.cfg.WasteSlot {
			continue
		}
		if !e.lhSlots[s] {
			return s, nil
		}
	}
	return 0, ErrNoFreeSlot
}

// FreeWell scans the wellplates already placed on the liquid handler, slots
// ascending and wells row-major, and returns the first unbound (slot, well)
// pair.
func (e *Experiment) FreeWell() (int, string, error) {
	spec := e.cfg.Spec(Wellplate)
	taken := make(map[Location]bool, len(e.bindings))
	for _, loc := range e.bindings {
		taken[loc] = true
	}
	for _, slot := range e.wellplateSlots() {
		for i := 0; i < spec.Wells; i++ {
			well := wellName(i, spec.RowWidth)
			candidate := Location{Equipment: LiquidHandler, Slot: slot, Labware: Wellplate, Well: well}
			if !taken[candidate] {
				return slot, well, nil
			}
		}
	}
	return 0, "", ErrNoFreeWell
}

// wellplateSlots returns the liquid-handler slots holding wellplates, in
// ascending order.
func (e *Experiment) wellplateSlots() []int {
	seen := make(map[int]bool)
	for _, loc := range e.bindings {
		if loc.Equipment == LiquidHandler && loc.Labware == Wellplate {
			seen[loc.Slot] = true
		}
	}
	slots := make([]int, 0, len(seen))
	for s := range seen {
		slots = append(slots, s)
	}
	sort.Ints(slots)
	return slots
}

// FreeWorkbenchSlot returns the lowest workbench slot no binding references.
func (e *Experiment) FreeWorkbenchSlot() (int, error) {
	occupied := make(map[int]bool)
	for _, loc := range e.bindings {
		if loc.Equipment == Workbench {
			occupied[loc.Slot] = true
		}
	}
	for s := 1; s <= e.cfg.WorkbenchSlots; s++ {
		if !occupied[s] {
			return s, nil
		}
	}
	return 0, ErrNoFreeWorkbenchSlot
}

// boundOnSlot returns every id bound to the given liquid-handler slot.
// Used when a whole labware item (a wellplate) moves: every well riding on
// it must follow.
func (e *Experiment) boundOnSlot(slot int) []LocationID {
	ids := make([]LocationID, 0, 4)
	for id, loc := range e.bindings {
		if loc.Equipment == LiquidHandler && loc.Slot == slot {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// addVolume adjusts the tracked volume tally for a bound id. The tally is
// diagnostic only; it never gates an action.
func (e *Experiment) addVolume(id LocationID, delta int) {
	v := e.volumes[id] + delta
	if v < 0 {
		v = 0
	}
	e.volumes[id] = v
}

// Volume returns the tracked volume tally for id.
func (e *Experiment) Volume(id LocationID) int {
	return e.volumes[id]
}

// countAction bumps the per-action tally reported at ExperimentEnd.
func (e *Experiment) countAction(name string) {
	e.actionCounts[name]++
}
