package oss

import (
	"errors"
	"fmt"
)

// Sentinel errors for the fault taxonomy. Action methods wrap these in an
// ActionError; callers classify failures with errors.Is.
var (
	ErrUnknownExperiment   = errors.New("unknown experiment")
	ErrUnknownLocation     = errors.New("unknown location id")
	ErrAlreadyBound        = errors.New("location id already bound")
	ErrNotBound            = errors.New("location id not bound")
	ErrCapacityExceeded    = errors.New("no labware kind can hold the requested volume")
	ErrNoFreeSlot          = errors.New("no free liquid-handler slot")
	ErrNoFreeWell          = errors.New("no free well on placed wellplates")
	ErrNoFreeWorkbenchSlot = errors.New("no free workbench slot")
	ErrDeviceFault         = errors.New("device fault")
	ErrWaitTimeout         = errors.New("timed out waiting for completion signal")
	ErrNoTargets           = errors.New("no target location ids given")
)

// ActionError is the failure type returned by orchestrator actions. It
// carries enough context (experiment, logical id, requested volume) to
// diagnose a fault without cross-referencing logs, and unwraps to one of
// the sentinel errors above.
type ActionError struct {
	Experiment int64
	Location   LocationID
	Volume     int
	Err        error
}

func (e *ActionError) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("experiment %d (volume %dul): %v", e.Experiment, e.Volume, e.Err)
	}
	return fmt.Sprintf("experiment %d, id %q (volume %dul): %v", e.Experiment, e.Location, e.Volume, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// actionErr wraps err with action context, leaving nil untouched.
func actionErr(expID int64, id LocationID, volume int, err error) error {
	if err == nil {
		return nil
	}
	return &ActionError{Experiment: expID, Location: id, Volume: volume, Err: err}
}

// deviceErr folds a device-level failure into the taxonomy. Device faults
// are opaque: the text is preserved, the cause is not interpreted.
func deviceErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrDeviceFault, err)
}
