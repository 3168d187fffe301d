package oss

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// Allocator decides physical placements for logical locations. Decide is
// side-effect-free: it inspects experiment state but never mutates it, so
// the caller commits the decision with Experiment.Bind separately and
// identical inputs always produce identical decisions.
type Allocator struct {
	cfg *LabConfig
}

// NewAllocator builds an allocator over the given lab configuration.
func NewAllocator(cfg *LabConfig) Allocator {
	return Allocator{cfg: cfg}
}

// chooseKind picks the labware kind for a request.
//
// A request fanning out to several destinations prefers a wellplate when
// one can hold the volume: many logical destinations batch onto one
// physical item. Otherwise the kind with the smallest max capacity still
// covering the volume wins (tightest fit). Ties break in canonical kind
// order so the choice is deterministic.
func (a Allocator) chooseKind(volume, destCount int) (Labware, error) {
	wp := a.cfg.Spec(Wellplate)
	if destCount > 1 && wp.MaxVolume >= volume {
		return Wellplate, nil
	}

	kinds := make([]Labware, len(labwareKinds))
	copy(kinds, labwareKinds)
	rank := make(map[Labware]int, len(kinds))
	for i, k := range labwareKinds {
		rank[k] = i
	}
	sort.SliceStable(kinds, func(i, j int) bool {
		mi, mj := a.cfg.Spec(kinds[i]).MaxVolume, a.cfg.Spec(kinds[j]).MaxVolume
		if mi != mj {
			return mi < mj
		}
		return rank[kinds[i]] < rank[kinds[j]]
	})
	for _, k := range kinds {
		if a.cfg.Spec(k).MaxVolume >= volume {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %dul", ErrCapacityExceeded, volume)
}

// Decide returns a physical location able to hold volume, given how many
// destinations the enclosing action is fanning out to. isNewlyPlaced is
// true when the location requires a fresh labware item on a fresh slot (the
// caller then emits a place-labware command); false when an already-placed
// wellplate had a free well to reuse.
func (a Allocator) Decide(exp *Experiment, volume, destCount int) (Location, bool, error) {
	kind, err := a.chooseKind(volume, destCount)
	if err != nil {
		return Location{}, false, err
	}

	hadPlates := false
	if kind == Wellplate {
		hadPlates = len(exp.wellplateSlots()) > 0
		slot, well, werr := exp.FreeWell()
		if werr == nil {
			loc := Location{Equipment: LiquidHandler, Slot: slot, Labware: Wellplate, Well: well}
			logrus.Debugf("Allocator: reuse %s for %dul x%d", loc, volume, destCount)
			return loc, false, nil
		}
	}

	slot, serr := exp.FreeSlot()
	if serr != nil {
		if kind == Wellplate && hadPlates {
			// Plates are placed but saturated and no slot is left for
			// another; report the well shortage, not the slot one.
			return Location{}, false, fmt.Errorf("%w (and %v)", ErrNoFreeWell, serr)
		}
		return Location{}, false, serr
	}

	loc := Location{Equipment: LiquidHandler, Slot: slot, Labware: kind}
	if kind == Wellplate {
		loc.Well = wellName(0, a.cfg.Spec(Wellplate).RowWidth)
	}
	logrus.Debugf("Allocator: place %s for %dul x%d", loc, volume, destCount)
	return loc, true, nil
}

// IsShortage reports whether err is one of the allocator's resource-
// exhaustion faults (as opposed to a binding or device fault).
func IsShortage(err error) bool {
	return errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrNoFreeSlot) ||
		errors.Is(err, ErrNoFreeWell) ||
		errors.Is(err, ErrNoFreeWorkbenchSlot)
}
