package oss

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncubate_WaitsForCompletionSignal(t *testing.T) {
	o, _, op := newTestOrchestrator()
	expID := o.ExperimentInit("incubate")
	require.NoError(t, o.Load(expID, 100, CustomReagent("sample"), "s"))

	go func() {
		time.Sleep(5 * time.Millisecond)
		o.Signals().Complete(IncubationKey(expID), nil)
	}()

	err := o.Incubate(context.Background(), expID, []LocationID{"s"}, 37, time.Minute, true)
	require.NoError(t, err)
	assert.Equal(t, 1, op.count("incubate"))
	assert.Equal(t, 1, op.count("in the dark"))
}

func TestIncubate_TimesOutAfterDurationPlusGrace(t *testing.T) {
	cfg := DefaultLabConfig()
	cfg.WaitGrace = Duration(10 * time.Millisecond)
	o, _, _ := newTestOrchestratorWith(cfg)
	expID := o.ExperimentInit("incubate")
	require.NoError(t, o.Load(expID, 100, CustomReagent("sample"), "s"))

	err := o.Incubate(context.Background(), expID, []LocationID{"s"}, 37, 0, false)
	assert.ErrorIs(t, err, ErrWaitTimeout)
}

func TestIncubate_ContextCancellation(t *testing.T) {
	o, _, _ := newTestOrchestrator()
	expID := o.ExperimentInit("incubate")
	require.NoError(t, o.Load(expID, 100, CustomReagent("sample"), "s"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := o.Incubate(ctx, expID, []LocationID{"s"}, 37, time.Minute, false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIncubate_NoTargets(t *testing.T) {
	o, _, _ := newTestOrchestrator()
	expID := o.ExperimentInit("incubate")
	err := o.Incubate(context.Background(), expID, nil, 37, time.Minute, false)
	assert.ErrorIs(t, err, ErrNoTargets)
}

func TestIncubate_UnboundTarget(t *testing.T) {
	o, _, _ := newTestOrchestrator()
	expID := o.ExperimentInit("incubate")
	err := o.Incubate(context.Background(), expID, []LocationID{"ghost"}, 37, time.Minute, false)
	assert.ErrorIs(t, err, ErrUnknownLocation)
}

func TestMeasure_NoTargets(t *testing.T) {
	o, _, _ := newTestOrchestrator()
	expID := o.ExperimentInit("measure")
	_, err := o.MeasureAbsorbance(context.Background(), expID, nil, WavelengthRange{Min: 600, Max: 600}, nil, MeasureOptions{})
	assert.ErrorIs(t, err, ErrNoTargets)
}

func TestMeasure_UnboundTarget(t *testing.T) {
	o, _, _ := newTestOrchestrator()
	expID := o.ExperimentInit("measure")
	_, err := o.MeasureAbsorbance(context.Background(), expID, []LocationID{"ghost"}, WavelengthRange{Min: 600, Max: 600}, nil, MeasureOptions{})
	assert.ErrorIs(t, err, ErrUnknownLocation)
}

func TestMeasure_SharedPlate_SingleBatchedSequence(t *testing.T) {
	// GIVEN 8 ids on one wellplate
	o, _, op := newTestOrchestrator()
	expID := o.ExperimentInit("measure")
	require.NoError(t, o.Load(expID, 400, CustomReagent("sample"), "src"))
	ids := make([]LocationID, 8)
	for i := range ids {
		ids[i] = LocationID(fmt.Sprintf("%d", i))
	}
	require.NoError(t, o.Transfer(expID, 20, "src", ids, true))

	exp := mustExperiment(o, expID)
	wellsBefore := make(map[LocationID]string)
	var plateSlot int
	for _, id := range ids {
		loc, err := exp.Lookup(id)
		require.NoError(t, err)
		wellsBefore[id] = loc.Well
		plateSlot = loc.Slot
	}

	payload := make([]float64, 8)
	for i := range payload {
		payload[i] = 0.1 * float64(i+1)
	}
	go func() {
		time.Sleep(5 * time.Millisecond)
		o.Signals().Complete(PlateMeasurementKey(expID), payload)
	}()

	// WHEN all 8 are measured
	readings, err := o.MeasureAbsorbance(context.Background(), expID, ids, WavelengthRange{Min: 600, Max: 600}, nil, MeasureOptions{})
	require.NoError(t, err)

	// THEN one batched reader sequence ran, no per-sample reads
	assert.Equal(t, 1, op.count("plate reader"))
	assert.Equal(t, 0, op.count("spectroscope"))
	assert.Equal(t, payload, readings)

	// AND the plate now sits on one workbench slot, wells preserved
	wbSlots := make(map[int]bool)
	for _, id := range ids {
		loc, err := exp.Lookup(id)
		require.NoError(t, err)
		assert.Equal(t, Workbench, loc.Equipment)
		assert.Equal(t, wellsBefore[id], loc.Well)
		wbSlots[loc.Slot] = true
	}
	assert.Len(t, wbSlots, 1)

	// AND the deck slot the plate vacated is free again
	slot, err := exp.FreeSlot()
	require.NoError(t, err)
	assert.Equal(t, plateSlot, slot)
}

func TestMeasure_MixedLabware_FallsBackToPerSample(t *testing.T) {
	// GIVEN two ids on separate labware items
	o, _, op := newTestOrchestrator()
	expID := o.ExperimentInit("measure")
	require.NoError(t, o.Load(expID, 400, CustomReagent("sample"), "src"))
	require.NoError(t, o.Transfer(expID, 60, "src", []LocationID{"a"}, true)) // testtube
	require.NoError(t, o.Transfer(expID, 20, "src", []LocationID{"b"}, true)) // wellplate

	o.Signals().SetAutoComplete(time.Millisecond, func(string) []float64 { return []float64{0.3} })

	// WHEN both are measured together
	readings, err := o.MeasureAbsorbance(context.Background(), expID, []LocationID{"a", "b"}, WavelengthRange{Min: 500, Max: 700}, nil, MeasureOptions{})
	require.NoError(t, err)

	// THEN each went through its own cuvette read
	assert.Equal(t, 2, op.count("spectroscope"))
	assert.Equal(t, 0, op.count("plate reader"))
	assert.Equal(t, []float64{0.3, 0.3}, readings)

	// AND each id landed on its own workbench slot
	exp := mustExperiment(o, expID)
	locA, _ := exp.Lookup("a")
	locB, _ := exp.Lookup("b")
	assert.Equal(t, Workbench, locA.Equipment)
	assert.Equal(t, Workbench, locB.Equipment)
	assert.Equal(t, Cuvette, locA.Labware)
	assert.NotEqual(t, locA.Slot, locB.Slot)
}

func TestMeasure_Fallback_NoFreeWorkbenchSlot(t *testing.T) {
	cfg := DefaultLabConfig()
	cfg.WorkbenchSlots = 1
	o, _, _ := newTestOrchestratorWith(cfg)
	expID := o.ExperimentInit("measure")
	require.NoError(t, o.Load(expID, 400, CustomReagent("sample"), "src"))
	require.NoError(t, o.Transfer(expID, 60, "src", []LocationID{"a"}, true))
	require.NoError(t, o.Transfer(expID, 60, "src", []LocationID{"b"}, true))

	o.Signals().SetAutoComplete(time.Millisecond, nil)

	_, err := o.MeasureAbsorbance(context.Background(), expID, []LocationID{"a", "b"}, WavelengthRange{Min: 600, Max: 600}, nil, MeasureOptions{})
	assert.ErrorIs(t, err, ErrNoFreeWorkbenchSlot)
}

func TestMeasure_BlanksMustBeBoundButGetNoReading(t *testing.T) {
	o, _, _ := newTestOrchestrator()
	expID := o.ExperimentInit("measure")
	require.NoError(t, o.Load(expID, 400, CustomReagent("sample"), "src"))
	require.NoError(t, o.Transfer(expID, 20, "src", []LocationID{"t", "blank"}, true))

	go func() {
		time.Sleep(5 * time.Millisecond)
		o.Signals().Complete(PlateMeasurementKey(expID), []float64{0.7})
	}()

	readings, err := o.MeasureAbsorbance(context.Background(), expID, []LocationID{"t"}, WavelengthRange{Min: 600, Max: 600}, []LocationID{"blank"}, MeasureOptions{})
	require.NoError(t, err)
	assert.Len(t, readings, 1)

	_, err = o.MeasureAbsorbance(context.Background(), expID, []LocationID{"t"}, WavelengthRange{Min: 600, Max: 600}, []LocationID{"ghost"}, MeasureOptions{})
	assert.ErrorIs(t, err, ErrUnknownLocation)
}

// Gradient mixing, 8 mixes: rising shares of solution 1 topped up with
// solution 2, mixed in place, then one batched plate read for the lot.
func TestScenario_GradientMixing(t *testing.T) {
	o, _, op := newTestOrchestrator()
	expID := o.ExperimentInit("Gradient Mixing")

	const (
		mixes    = 8
		totalVol = 50
	)
	ids := make([]LocationID, mixes)
	for i := range ids {
		ids[i] = LocationID(fmt.Sprintf("%d", i))
	}
	require.NoError(t, o.Load(expID, totalVol*mixes, CustomReagent("solution 1"), "sol1"))
	require.NoError(t, o.Load(expID, totalVol*mixes, CustomReagent("solution 2"), "sol2"))

	for i, id := range ids {
		sol1Vol := totalVol * (10 + 10*i) / 100
		sol2Vol := totalVol - sol1Vol
		require.NoError(t, o.Transfer(expID, sol1Vol, "sol1", []LocationID{id}, true))
		require.NoError(t, o.Transfer(expID, sol2Vol, "sol2", []LocationID{id}, true))
		require.NoError(t, o.Mix(expID, id, totalVol, 0))
	}

	go func() {
		time.Sleep(5 * time.Millisecond)
		o.Signals().Complete(PlateMeasurementKey(expID), make([]float64, mixes))
	}()

	readings, err := o.MeasureAbsorbance(context.Background(), expID, ids, WavelengthRange{Min: 600, Max: 600}, nil, MeasureOptions{})
	require.NoError(t, err)
	assert.Len(t, readings, mixes)

	// One batched sequence, not 8 individual ones.
	assert.Equal(t, 1, op.count("plate reader"))
	assert.Equal(t, 0, op.count("spectroscope"))

	require.NoError(t, o.ExperimentEnd(expID))
}
