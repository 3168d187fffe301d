package oss

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultMixCycles is the aspirate/dispense pair count used when a caller
// passes a non-positive cycle count.
const DefaultMixCycles = 3

// Deps are the external collaborators an Orchestrator drives. Zero-valued
// fields get logging/in-memory defaults, so tests and examples can build an
// orchestrator from a LabConfig alone.
type Deps struct {
	LiquidHandler LiquidHandlerDevice
	Operator      Operator
	Signals       *SignalBoard
	Metrics       *Metrics
}

// Orchestrator is the explicit context object for the action surface: the
// experiment registry, device proxies, allocator, and completion signals.
// Construct one per process (or several in tests); there are no hidden
// singletons.
type Orchestrator struct {
	cfg      *LabConfig
	lh       LiquidHandlerDevice
	operator Operator
	signals  *SignalBoard
	metrics  *Metrics
	alloc    Allocator

	mu          sync.RWMutex
	experiments map[int64]*Experiment
	nextID      atomic.Int64
}

// New builds an orchestrator over cfg. cfg must have passed Validate (the
// stock DefaultLabConfig always does).
func New(cfg *LabConfig, deps Deps) *Orchestrator {
	if deps.LiquidHandler == nil {
		deps.LiquidHandler = PipetteLog{}
	}
	if deps.Operator == nil {
		deps.Operator = OperatorLog{}
	}
	if deps.Signals == nil {
		deps.Signals = NewSignalBoard()
	}
	return &Orchestrator{
		cfg:         cfg,
		lh:          deps.LiquidHandler,
		operator:    deps.Operator,
		signals:     deps.Signals,
		metrics:     deps.Metrics,
		alloc:       NewAllocator(cfg),
		experiments: make(map[int64]*Experiment),
	}
}

// Signals returns the board external completers should signal on.
func (o *Orchestrator) Signals() *SignalBoard {
	return o.signals
}

// ExperimentInit registers a new experiment and returns its id. Ids are
// never reused within a process; concurrent inits are safe.
func (o *Orchestrator) ExperimentInit(name string) int64 {
	id := o.nextID.Add(1)
	exp := NewExperiment(id, name, o.cfg)
	o.mu.Lock()
	o.experiments[id] = exp
	o.mu.Unlock()
	if o.metrics != nil {
		o.metrics.ActiveExperiments.Inc()
	}
	logrus.Infof("OSS: Experiment %d: Start %q", id, name)
	return id
}

// ExperimentEnd discards the experiment and reports its per-action tallies.
func (o *Orchestrator) ExperimentEnd(expID int64) error {
	o.mu.Lock()
	exp, ok := o.experiments[expID]
	delete(o.experiments, expID)
	o.mu.Unlock()
	if !ok {
		return actionErr(expID, "", 0, ErrUnknownExperiment)
	}
	if o.metrics != nil {
		o.metrics.ActiveExperiments.Dec()
	}
	logrus.Infof("OSS: Experiment %d: End (%s)", expID, exp.Name)
	for action, n := range exp.actionCounts {
		logrus.Infof("OSS: Experiment %d: %s called %d times", expID, action, n)
	}
	return nil
}

// Experiment resolves an experiment id. Callers outside the action surface
// (tests, completers inspecting state) must hold the experiment's lock
// around any accessor calls.
func (o *Orchestrator) Experiment(expID int64) (*Experiment, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	exp, ok := o.experiments[expID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownExperiment, expID)
	}
	return exp, nil
}

// Load brings volume ul of reagent from the store into destID. Loads always
// target reservoirs, so an unbound destID is placed directly on a free
// liquid-handler slot instead of going through the generic allocator.
// Repeated loads to a bound id accumulate volume without rebinding.
func (o *Orchestrator) Load(expID int64, volume int, reagent Reagent, destID LocationID) error {
	err := o.load(expID, volume, reagent, destID)
	o.metrics.observeAction("load", err)
	return actionErr(expID, destID, volume, err)
}

func (o *Orchestrator) load(expID int64, volume int, reagent Reagent, destID LocationID) error {
	exp, err := o.Experiment(expID)
	if err != nil {
		return err
	}
	exp.Lock()
	defer exp.Unlock()
	exp.countAction("load")
	logrus.Infof("OSS: Experiment %d: Load %dul of %s to %q", expID, volume, reagent, destID)

	if !exp.IsBound(destID) {
		slot, err := exp.FreeSlot()
		if err != nil {
			return err
		}
		loc := Location{Equipment: LiquidHandler, Slot: slot, Labware: Reservoir}
		if err := exp.Bind(destID, loc); err != nil {
			return err
		}
		if err := o.command(placeCommand(loc)); err != nil {
			return err
		}
	}
	loc, err := exp.Lookup(destID)
	if err != nil {
		return err
	}
	if err := o.command(moveReagentCommand(volume, reagent, loc)); err != nil {
		return err
	}
	exp.addVolume(destID, volume)
	return nil
}

// Transfer pipettes volume ul from sourceID into each destination, in the
// caller's order. Unbound destinations are allocated with the fan-out of
// the whole call, so a multi-destination transfer batches onto a wellplate.
// The tip is reused across destinations; exactly one tip discard is emitted
// at the end when discardTip is set.
func (o *Orchestrator) Transfer(expID int64, volume int, sourceID LocationID, destIDs []LocationID, discardTip bool) error {
	err := o.transfer(expID, volume, sourceID, destIDs, discardTip)
	o.metrics.observeAction("transfer", err)
	return actionErr(expID, sourceID, volume, err)
}

func (o *Orchestrator) transfer(expID int64, volume int, sourceID LocationID, destIDs []LocationID, discardTip bool) error {
	exp, err := o.Experiment(expID)
	if err != nil {
		return err
	}
	exp.Lock()
	defer exp.Unlock()
	exp.countAction("transfer")
	logrus.Infof("OSS: Experiment %d: Transfer %dul from %q to %v", expID, volume, sourceID, destIDs)

	src, err := exp.Lookup(sourceID)
	if err != nil {
		return fmt.Errorf("%w: source %q", ErrUnknownLocation, sourceID)
	}
	if err := o.attachTip(); err != nil {
		return err
	}
	for _, destID := range destIDs {
		if !exp.IsBound(destID) {
			loc, placed, err := o.alloc.Decide(exp, volume, len(destIDs))
			if err != nil {
				return err
			}
			if err := exp.Bind(destID, loc); err != nil {
				return err
			}
			if placed {
				if err := o.command(placeCommand(loc)); err != nil {
					return err
				}
			}
		}
		dst, err := exp.Lookup(destID)
		if err != nil {
			return err
		}
		if err := o.pipette(src, dst, volume); err != nil {
			return err
		}
		exp.addVolume(destID, volume)
		exp.addVolume(sourceID, -volume)
	}
	if discardTip {
		return o.discardTip()
	}
	return nil
}

// Mix performs cycles aspirate/dispense pairs of volume ul in destID. A
// target sitting off the liquid handler is relocated onto a free deck slot
// first and moved back afterwards; the net binding is unchanged either way.
func (o *Orchestrator) Mix(expID int64, destID LocationID, volume, cycles int) error {
	err := o.mix(expID, destID, volume, cycles)
	o.metrics.observeAction("mix", err)
	return actionErr(expID, destID, volume, err)
}

func (o *Orchestrator) mix(expID int64, destID LocationID, volume, cycles int) error {
	exp, err := o.Experiment(expID)
	if err != nil {
		return err
	}
	exp.Lock()
	defer exp.Unlock()
	exp.countAction("mix")
	if cycles <= 0 {
		cycles = DefaultMixCycles
	}
	logrus.Infof("OSS: Experiment %d: Mix %q, %dul x%d", expID, destID, volume, cycles)

	origin, err := exp.Lookup(destID)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownLocation, destID)
	}

	work := origin
	moved := false
	if origin.Equipment != LiquidHandler {
		slot, err := exp.FreeSlot()
		if err != nil {
			return err
		}
		work = Location{Equipment: LiquidHandler, Slot: slot, Labware: origin.Labware, Well: origin.Well}
		if err := o.command(relocateCommand(origin, work)); err != nil {
			return err
		}
		if err := o.rebind(exp, destID, work); err != nil {
			return err
		}
		moved = true
	}

	if err := o.attachTip(); err != nil {
		return err
	}
	if err := o.movePipette(work); err != nil {
		return err
	}
	for i := 0; i < cycles; i++ {
		if err := o.aspirate(volume); err != nil {
			return err
		}
		if err := o.dispense(volume); err != nil {
			return err
		}
	}

	if moved {
		if err := o.command(relocateCommand(work, origin)); err != nil {
			return err
		}
		if err := o.rebind(exp, destID, origin); err != nil {
			return err
		}
	}
	return o.discardTip()
}

// Discard removes volume ul from sourceID. On the liquid handler the
// pipette moves it to the fixed waste reservoir; elsewhere the operator is
// instructed to discard it. Zero volume skips the liquid movement entirely.
// With releaseLabware the labware goes back to storage and the binding is
// released.
func (o *Orchestrator) Discard(expID int64, volume int, sourceID LocationID, releaseLabware bool) error {
	err := o.discard(expID, volume, sourceID, releaseLabware)
	o.metrics.observeAction("discard", err)
	return actionErr(expID, sourceID, volume, err)
}

func (o *Orchestrator) discard(expID int64, volume int, sourceID LocationID, releaseLabware bool) error {
	exp, err := o.Experiment(expID)
	if err != nil {
		return err
	}
	exp.Lock()
	defer exp.Unlock()
	exp.countAction("discard")
	logrus.Infof("OSS: Experiment %d: Discard %dul from %q (release=%v)", expID, volume, sourceID, releaseLabware)

	loc, err := exp.Lookup(sourceID)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownLocation, sourceID)
	}

	if volume > 0 {
		if loc.Equipment == LiquidHandler {
			waste := Location{Equipment: LiquidHandler, Slot: o.cfg.WasteSlot, Labware: Reservoir}
			if err := o.attachTip(); err != nil {
				return err
			}
			if err := o.pipette(loc, waste, volume); err != nil {
				return err
			}
			if err := o.discardTip(); err != nil {
				return err
			}
		} else {
			if err := o.command(discardCommand(volume, loc)); err != nil {
				return err
			}
		}
		exp.addVolume(sourceID, -volume)
	}

	if releaseLabware {
		if err := o.command(returnToStorageCommand(loc)); err != nil {
			return err
		}
		return exp.Release(sourceID)
	}
	return nil
}

// Incubate places all targets in the incubator with one command and
// suspends until the external "incubation complete" signal, the context is
// cancelled, or the declared duration plus the configured grace elapses.
func (o *Orchestrator) Incubate(ctx context.Context, expID int64, targetIDs []LocationID, temperatureC int, duration time.Duration, dark bool) error {
	err := o.incubate(ctx, expID, targetIDs, temperatureC, duration, dark)
	o.metrics.observeAction("incubate", err)
	var first LocationID
	if len(targetIDs) > 0 {
		first = targetIDs[0]
	}
	return actionErr(expID, first, 0, err)
}

func (o *Orchestrator) incubate(ctx context.Context, expID int64, targetIDs []LocationID, temperatureC int, duration time.Duration, dark bool) error {
	exp, err := o.Experiment(expID)
	if err != nil {
		return err
	}
	exp.Lock()
	defer exp.Unlock()
	exp.countAction("incubate")
	logrus.Infof("OSS: Experiment %d: Incubate %v at %dC for %s (dark=%v)", expID, targetIDs, temperatureC, duration, dark)

	if len(targetIDs) == 0 {
		return ErrNoTargets
	}
	locs := make([]Location, len(targetIDs))
	for i, id := range targetIDs {
		loc, err := exp.Lookup(id)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrUnknownLocation, id)
		}
		locs[i] = loc
	}

	pending := o.signals.Expect(IncubationKey(expID))
	if err := o.command(incubateCommand(locs, temperatureC, duration, dark)); err != nil {
		pending.Cancel()
		return err
	}
	if _, err := pending.Wait(ctx, duration+o.cfg.WaitGrace.Std()); err != nil {
		o.noteTimeout(err)
		return err
	}
	logrus.Infof("OSS: Experiment %d: Incubation complete", expID)
	return nil
}

// rebind atomically swaps an id's binding to a new location. Used by the
// transient relocation states of mix and measure.
func (o *Orchestrator) rebind(exp *Experiment, id LocationID, loc Location) error {
	if err := exp.Release(id); err != nil {
		return err
	}
	return exp.Bind(id, loc)
}

func (o *Orchestrator) noteTimeout(err error) {
	if o.metrics != nil && err != nil {
		o.metrics.WaitTimeouts.Inc()
	}
}

// Device wrappers: every primitive funnels through here so device faults
// are folded into the taxonomy and device commands are counted once.

func (o *Orchestrator) attachTip() error {
	o.metrics.observeDevice("liquid-handler")
	return deviceErr(o.lh.AttachTip())
}

func (o *Orchestrator) movePipette(loc Location) error {
	o.metrics.observeDevice("liquid-handler")
	return deviceErr(o.lh.MovePipette(loc))
}

func (o *Orchestrator) aspirate(volume int) error {
	o.metrics.observeDevice("liquid-handler")
	return deviceErr(o.lh.Aspirate(volume))
}

func (o *Orchestrator) dispense(volume int) error {
	o.metrics.observeDevice("liquid-handler")
	return deviceErr(o.lh.Dispense(volume))
}

func (o *Orchestrator) discardTip() error {
	o.metrics.observeDevice("liquid-handler")
	return deviceErr(o.lh.DiscardTip())
}

func (o *Orchestrator) command(text string) error {
	o.metrics.observeDevice("operator")
	return deviceErr(o.operator.Command(text))
}

// pipette moves volume ul from src to dst with the currently attached tip.
func (o *Orchestrator) pipette(src, dst Location, volume int) error {
	if err := o.movePipette(src); err != nil {
		return err
	}
	if err := o.aspirate(volume); err != nil {
		return err
	}
	if err := o.movePipette(dst); err != nil {
		return err
	}
	return o.dispense(volume)
}
