package oss

// Shared test fixtures: recording device fakes and orchestrator builders
// used across the package tests.

import (
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// recordingHandler is a LiquidHandler that records every primitive in
// order. Setting failOn makes the named primitive return an error, for
// device-fault propagation tests.
type recordingHandler struct {
	ops    []string
	failOn string
}

func (h *recordingHandler) record(op string) error {
	h.ops = append(h.ops, op)
	if h.failOn != "" && strings.HasPrefix(op, h.failOn) {
		return errors.New("injected fault")
	}
	return nil
}

func (h *recordingHandler) AttachTip() error { return h.record("attach-tip") }

func (h *recordingHandler) MovePipette(loc Location) error { return h.record("move " + loc.String()) }

func (h *recordingHandler) Aspirate(v int) error { return h.record("aspirate") }

func (h *recordingHandler) Dispense(v int) error { return h.record("dispense") }

func (h *recordingHandler) DiscardTip() error { return h.record("discard-tip") }

func (h *recordingHandler) count(prefix string) int {
	n := 0
	for _, op := range h.ops {
		if strings.HasPrefix(op, prefix) {
			n++
		}
	}
	return n
}

// recordingOperator records every operator command verbatim.
type recordingOperator struct {
	commands []string
}

func (op *recordingOperator) Command(text string) error {
	op.commands = append(op.commands, text)
	return nil
}

func (op *recordingOperator) count(substr string) int {
	n := 0
	for _, c := range op.commands {
		if strings.Contains(c, substr) {
			n++
		}
	}
	return n
}

// newTestOrchestrator builds an orchestrator over the stock lab with
// recording devices and an isolated metrics registry.
func newTestOrchestrator() (*Orchestrator, *recordingHandler, *recordingOperator) {
	return newTestOrchestratorWith(DefaultLabConfig())
}

func newTestOrchestratorWith(cfg *LabConfig) (*Orchestrator, *recordingHandler, *recordingOperator) {
	lh := &recordingHandler{}
	op := &recordingOperator{}
	o := New(cfg, Deps{
		LiquidHandler: lh,
		Operator:      op,
		Metrics:       NewMetrics(prometheus.NewRegistry()),
	})
	return o, lh, op
}

// mustExperiment resolves an experiment the test created itself.
func mustExperiment(o *Orchestrator, id int64) *Experiment {
	exp, err := o.Experiment(id)
	if err != nil {
		panic(err)
	}
	return exp
}
