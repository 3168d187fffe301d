package oss

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// WashOptions tune the wash composite. The zero value means 3 cycles, no
// soak, and mixing with the wash volume.
type WashOptions struct {
	Cycles    int           // wash cycles (default 3)
	Soak      time.Duration // pause after dispensing the buffer
	MixCycles int           // aspirate/dispense pairs per mix (0 = DefaultMixCycles)
	MixVolume int           // 0 = use the wash volume
}

// Wash runs the standard wash composite over the core primitives: per cycle
// and per target, transfer wash buffer in, optionally soak, mix, and
// discard to waste. It adds no state of its own; everything goes through
// the same binding and allocation rules as direct calls.
func (o *Orchestrator) Wash(ctx context.Context, expID int64, targetIDs []LocationID, washBufferID LocationID, volume int, opts WashOptions) error {
	cycles := opts.Cycles
	if cycles <= 0 {
		cycles = 3
	}
	mixVolume := opts.MixVolume
	if mixVolume <= 0 {
		mixVolume = volume
	}
	logrus.Infof("OSS: Experiment %d: Wash %v with %q, %dul x%d cycles", expID, targetIDs, washBufferID, volume, cycles)

	for cycle := 0; cycle < cycles; cycle++ {
		for _, id := range targetIDs {
			if err := o.Transfer(expID, volume, washBufferID, []LocationID{id}, true); err != nil {
				return err
			}
			if opts.Soak > 0 {
				if err := sleepCtx(ctx, opts.Soak); err != nil {
					return actionErr(expID, id, volume, err)
				}
			}
			if err := o.Mix(expID, id, mixVolume, opts.MixCycles); err != nil {
				return err
			}
			if err := o.Discard(expID, volume, id, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// sleepCtx pauses for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
