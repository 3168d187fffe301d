package oss

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// WavelengthRange bounds an absorbance scan in nm. Min == Max is a single-
// wavelength read.
type WavelengthRange struct {
	Min int
	Max int
}

// MeasureOptions are the instrument knobs for an absorbance read. The zero
// value is a sensible endpoint read; the core forwards the options verbatim
// to the instrument command and never interprets them.
type MeasureOptions struct {
	ScanStep            int    // nm between scan points (default 5)
	ReferenceWavelength int    // 0 = no reference read
	ReadDirection       string // "row" (default) or "column"
	ReadLocation        string // "top" (default) or "bottom"
	ShakeMode           string // "endpoint" (default), "continuous", "off"
	SettleTimeSeconds   int    // delay between shake and read
	RetainCover         bool
}

func (m MeasureOptions) scanStep() int {
	if m.ScanStep <= 0 {
		return 5
	}
	return m.ScanStep
}

// MeasureAbsorbance reads absorbance for every target id and returns one
// reading per target, in caller order.
//
// When every involved id (targets and blanks) sits on one wellplate, the
// whole plate goes to the reader in a single batched sequence; afterwards
// the plate lands on a free workbench slot and every id riding on it is
// rebound there with its well reference intact.
//
// Ids spread over several labware items take the fallback path: each target
// is sampled into a cuvette, measured alone, and relocated to its own free
// workbench slot. Mixed-labware input is supported, just slower.
func (o *Orchestrator) MeasureAbsorbance(ctx context.Context, expID int64, targetIDs []LocationID, wr WavelengthRange, blankIDs []LocationID, opts MeasureOptions) ([]float64, error) {
	readings, err := o.measureAbsorbance(ctx, expID, targetIDs, wr, blankIDs, opts)
	o.metrics.observeAction("measure_absorbance", err)
	if err != nil {
		var first LocationID
		if len(targetIDs) > 0 {
			first = targetIDs[0]
		}
		return nil, actionErr(expID, first, 0, err)
	}
	return readings, nil
}

func (o *Orchestrator) measureAbsorbance(ctx context.Context, expID int64, targetIDs []LocationID, wr WavelengthRange, blankIDs []LocationID, opts MeasureOptions) ([]float64, error) {
	exp, err := o.Experiment(expID)
	if err != nil {
		return nil, err
	}
	exp.Lock()
	defer exp.Unlock()
	exp.countAction("measure_absorbance")
	logrus.Infof("OSS: Experiment %d: Measure absorbance of %v (%d-%dnm)", expID, targetIDs, wr.Min, wr.Max)

	if len(targetIDs) == 0 {
		return nil, ErrNoTargets
	}

	involved := make([]LocationID, 0, len(targetIDs)+len(blankIDs))
	involved = append(involved, targetIDs...)
	involved = append(involved, blankIDs...)
	locs := make(map[LocationID]Location, len(involved))
	for _, id := range involved {
		loc, err := exp.Lookup(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownLocation, id)
		}
		locs[id] = loc
	}

	if slot, ok := sharedPlateSlot(involved, locs); ok {
		return o.measurePlate(ctx, exp, slot, targetIDs, wr, opts)
	}
	return o.measureSamples(ctx, exp, targetIDs, wr, opts)
}

// sharedPlateSlot reports whether every id sits in a well of the same
// wellplate on the liquid handler.
func sharedPlateSlot(ids []LocationID, locs map[LocationID]Location) (int, bool) {
	slot := -1
	for _, id := range ids {
		loc := locs[id]
		if loc.Equipment != LiquidHandler || loc.Labware != Wellplate {
			return 0, false
		}
		if slot == -1 {
			slot = loc.Slot
		} else if loc.Slot != slot {
			return 0, false
		}
	}
	return slot, slot != -1
}

// measurePlate is the batched path: one reader sequence for the whole
// plate, then one relocation to the workbench.
func (o *Orchestrator) measurePlate(ctx context.Context, exp *Experiment, slot int, targetIDs []LocationID, wr WavelengthRange, opts MeasureOptions) ([]float64, error) {
	pending := o.signals.Expect(PlateMeasurementKey(exp.ID))
	if err := o.command(measurePlateCommand(slot, wr, opts)); err != nil {
		pending.Cancel()
		return nil, err
	}
	payload, err := pending.Wait(ctx, o.cfg.MeasureTimeout.Std())
	if err != nil {
		o.noteTimeout(err)
		return nil, err
	}
	readings := readingsFor(payload, len(targetIDs))

	// The plate physically left the reader; park it on the workbench and
	// move every binding riding on it, wells preserved.
	wbSlot, err := exp.FreeWorkbenchSlot()
	if err != nil {
		return nil, err
	}
	from := Location{Equipment: LiquidHandler, Slot: slot, Labware: Wellplate}
	to := Location{Equipment: Workbench, Slot: wbSlot, Labware: Wellplate}
	if err := o.command(relocateCommand(from, to)); err != nil {
		return nil, err
	}
	for _, id := range exp.boundOnSlot(slot) {
		old := exp.bindings[id]
		moved := Location{Equipment: Workbench, Slot: wbSlot, Labware: Wellplate, Well: old.Well}
		if err := o.rebind(exp, id, moved); err != nil {
			return nil, err
		}
	}
	logrus.Infof("OSS: Experiment %d: Plate measured, relocated to workbench slot-%d", exp.ID, wbSlot)
	return readings, nil
}

// measureSamples is the fallback path: one cuvette read per target,
// each relocated to its own workbench slot afterwards.
func (o *Orchestrator) measureSamples(ctx context.Context, exp *Experiment, targetIDs []LocationID, wr WavelengthRange, opts MeasureOptions) ([]float64, error) {
	readings := make([]float64, 0, len(targetIDs))
	for _, id := range targetIDs {
		loc, err := exp.Lookup(id)
		if err != nil {
			return nil, err
		}
		cuvette := Location{Equipment: Spectroscope, Slot: 1, Labware: Cuvette}
		if err := o.attachTip(); err != nil {
			return nil, err
		}
		if err := o.pipette(loc, cuvette, o.cfg.CuvetteSampleVolume); err != nil {
			return nil, err
		}
		if err := o.discardTip(); err != nil {
			return nil, err
		}

		pending := o.signals.Expect(SampleMeasurementKey(exp.ID, id))
		if err := o.command(measureSampleCommand(loc, wr, opts)); err != nil {
			pending.Cancel()
			return nil, err
		}
		payload, err := pending.Wait(ctx, o.cfg.MeasureTimeout.Std())
		if err != nil {
			o.noteTimeout(err)
			return nil, err
		}
		readings = append(readings, readingsFor(payload, 1)[0])

		wbSlot, err := exp.FreeWorkbenchSlot()
		if err != nil {
			return nil, err
		}
		moved := Location{Equipment: Workbench, Slot: wbSlot, Labware: Cuvette}
		if err := o.command(relocateCommand(cuvette, moved)); err != nil {
			return nil, err
		}
		if err := o.rebind(exp, id, moved); err != nil {
			return nil, err
		}
	}
	return readings, nil
}

// readingsFor shapes an instrument payload into exactly n readings. Missing
// values read as zero: the instrument owns accuracy, the core owns shape.
func readingsFor(payload []float64, n int) []float64 {
	out := make([]float64, n)
	copy(out, payload)
	return out
}
