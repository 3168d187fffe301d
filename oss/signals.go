package oss

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SignalBoard bridges the orchestrator's suspension points to the outside
// world. An action registers interest in a keyed completion signal before
// emitting the command that starts the physical process, then blocks on it
// with a timeout; whoever observes the process finishing (hardware
// callback, operator UI, test, auto-completer) calls Complete with the same
// key and an optional payload of instrument readings.
type SignalBoard struct {
	mu   sync.Mutex
	subs map[string][]chan []float64

	autoDelay   time.Duration
	autoPayload func(key string) []float64
}

// NewSignalBoard returns an empty board.
func NewSignalBoard() *SignalBoard {
	return &SignalBoard{subs: make(map[string][]chan []float64)}
}

// SetAutoComplete makes every Expect fulfil itself after delay, with the
// payload produced by fn (nil fn means nil payload). This exists so example
// protocols run end-to-end without hardware; production boards never set it.
func (b *SignalBoard) SetAutoComplete(delay time.Duration, fn func(key string) []float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.autoDelay = delay
	b.autoPayload = fn
}

// Complete fires the signal for key, delivering payload to every pending
// Expect. Completing a key nobody is waiting on is a no-op.
func (b *SignalBoard) Complete(key string, payload []float64) {
	b.mu.Lock()
	waiters := b.subs[key]
	delete(b.subs, key)
	b.mu.Unlock()
	for _, ch := range waiters {
		ch <- payload // buffered, never blocks
	}
}

// Pending is a registered interest in one completion signal.
type Pending struct {
	board *SignalBoard
	key   string
	ch    chan []float64
}

// Expect registers interest in key. Call Expect before emitting the command
// that starts the physical process, so a fast completer cannot signal into
// the void.
func (b *SignalBoard) Expect(key string) *Pending {
	ch := make(chan []float64, 1)
	b.mu.Lock()
	b.subs[key] = append(b.subs[key], ch)
	delay, fn := b.autoDelay, b.autoPayload
	b.mu.Unlock()

	if delay > 0 {
		go func() {
			time.Sleep(delay)
			var payload []float64
			if fn != nil {
				payload = fn(key)
			}
			b.Complete(key, payload)
		}()
	}
	return &Pending{board: b, key: key, ch: ch}
}

// Wait blocks until the signal fires, the context is cancelled, or the
// timeout elapses. Never a spin: it is a single channel select.
func (p *Pending) Wait(ctx context.Context, timeout time.Duration) ([]float64, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case payload := <-p.ch:
		return payload, nil
	case <-ctx.Done():
		p.Cancel()
		return nil, fmt.Errorf("waiting for %q: %w", p.key, ctx.Err())
	case <-timer.C:
		p.Cancel()
		return nil, fmt.Errorf("%w: %q after %s", ErrWaitTimeout, p.key, timeout)
	}
}

// Cancel withdraws the registration. Safe to call after completion.
func (p *Pending) Cancel() {
	p.board.mu.Lock()
	defer p.board.mu.Unlock()
	waiters := p.board.subs[p.key]
	for i, ch := range waiters {
		if ch == p.ch {
			p.board.subs[p.key] = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(p.board.subs[p.key]) == 0 {
		delete(p.board.subs, p.key)
	}
}

// Signal keys. Exported so external completers (device callbacks, operator
// consoles, tests) can address the wait a given action is parked on.

// IncubationKey addresses the "incubation complete" signal for an experiment.
func IncubationKey(expID int64) string {
	return fmt.Sprintf("incubation:%d", expID)
}

// PlateMeasurementKey addresses the batched plate-reader results signal.
func PlateMeasurementKey(expID int64) string {
	return fmt.Sprintf("measurement:%d", expID)
}

// SampleMeasurementKey addresses a single-sample cuvette reading signal.
func SampleMeasurementKey(expID int64, id LocationID) string {
	return fmt.Sprintf("measurement:%d:%s", expID, id)
}
