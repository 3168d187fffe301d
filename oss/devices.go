package oss

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LiquidHandlerDevice exposes the pipette motion primitives of the deck robot.
// The primitives are fire-and-log: a non-nil error is a device fault the
// orchestrator propagates without interpretation.
type LiquidHandlerDevice interface {
	AttachTip() error
	MovePipette(loc Location) error
	Aspirate(volume int) error
	Dispense(volume int) error
	DiscardTip() error
}

// Operator is the command channel to the human or robot operator. Command
// blocks until the instruction is handed off; its outcome is only observed
// through the completion signals long-running actions wait on.
type Operator interface {
	Command(text string) error
}

// PipetteLog is a LiquidHandlerDevice that logs every primitive at debug level.
// It stands in for the real device driver in examples and tests.
type PipetteLog struct{}

func (PipetteLog) AttachTip() error {
	logrus.Debugf("\tLH: attach tip")
	return nil
}

func (PipetteLog) MovePipette(loc Location) error {
	logrus.Debugf("\tLH: move pipette to %s", loc)
	return nil
}

func (PipetteLog) Aspirate(volume int) error {
	logrus.Debugf("\tLH: aspirate %dul", volume)
	return nil
}

func (PipetteLog) Dispense(volume int) error {
	logrus.Debugf("\tLH: dispense %dul", volume)
	return nil
}

func (PipetteLog) DiscardTip() error {
	logrus.Debugf("\tLH: discard tip")
	return nil
}

// OperatorLog is an Operator that logs every instruction at debug level.
type OperatorLog struct{}

func (OperatorLog) Command(text string) error {
	logrus.Debugf("\tOperator: %s", text)
	return nil
}

// Command formatters. The Operator channel is an opaque text sink, so the
// orchestrator builds instructions here and nowhere else; keeping them
// together makes the emitted vocabulary easy to audit.

func placeCommand(loc Location) string {
	return fmt.Sprintf("place %s at %s", loc.Labware, loc)
}

func moveReagentCommand(volume int, reagent Reagent, loc Location) string {
	return fmt.Sprintf("move %dul of %s from store to %s", volume, reagent, loc)
}

func relocateCommand(from, to Location) string {
	return fmt.Sprintf("relocate labware from %s to %s", from, to)
}

func discardCommand(volume int, loc Location) string {
	return fmt.Sprintf("discard %dul from %s", volume, loc)
}

func returnToStorageCommand(loc Location) string {
	return fmt.Sprintf("return labware at %s to storage", loc)
}

func incubateCommand(locs []Location, temperatureC int, duration time.Duration, dark bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "incubate %s at %dC for %s", joinLocations(locs), temperatureC, duration)
	if dark {
		sb.WriteString(" in the dark")
	}
	return sb.String()
}

func measurePlateCommand(slot int, wr WavelengthRange, opts MeasureOptions) string {
	return fmt.Sprintf("move wellplate from liquid-handler slot-%d to plate reader; configure %s; start read",
		slot, describeScan(wr, opts))
}

func measureSampleCommand(loc Location, wr WavelengthRange, opts MeasureOptions) string {
	return fmt.Sprintf("place cuvette with sample from %s in spectroscope; configure %s; start read",
		loc, describeScan(wr, opts))
}

func describeScan(wr WavelengthRange, opts MeasureOptions) string {
	var sb strings.Builder
	if wr.Min == wr.Max {
		fmt.Fprintf(&sb, "absorbance at %dnm", wr.Min)
	} else {
		fmt.Fprintf(&sb, "absorbance scan %d-%dnm step %dnm", wr.Min, wr.Max, opts.scanStep())
	}
	if opts.ReferenceWavelength > 0 {
		fmt.Fprintf(&sb, ", reference %dnm", opts.ReferenceWavelength)
	}
	return sb.String()
}

func joinLocations(locs []Location) string {
	parts := make([]string, len(locs))
	for i, l := range locs {
		parts[i] = l.String()
	}
	return strings.Join(parts, ", ")
}
