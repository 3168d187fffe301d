package oss

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWellName_RowMajorOrder(t *testing.T) {
	cases := []struct {
		index int
		want  string
	}{
		{0, "A1"},
		{7, "A8"},
		{8, "B1"},
		{15, "B8"},
		{88, "L1"},
		{95, "L8"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, wellName(c.index, 8), "index %d", c.index)
	}
}

func TestWellIndex_InvertsWellName(t *testing.T) {
	for i := 0; i < 96; i++ {
		assert.Equal(t, i, wellIndex(wellName(i, 8), 8))
	}
}

func TestWellIndex_RejectsGarbage(t *testing.T) {
	for _, name := range []string{"", "A", "1A", "A0", "A9", "Ax", "a1"} {
		assert.Equal(t, -1, wellIndex(name, 8), "name %q", name)
	}
}

func TestLocation_String_WellOnlyForWellplates(t *testing.T) {
	plate := Location{Equipment: LiquidHandler, Slot: 3, Labware: Wellplate, Well: "A2"}
	assert.Equal(t, "[liquid-handler:slot-3:wellplate:A2]", plate.String())

	tube := Location{Equipment: Workbench, Slot: 5, Labware: TestTube}
	assert.Equal(t, "[workbench:slot-5:testtube]", tube.String())
}

func TestLocations_CompareStructurally(t *testing.T) {
	a := Location{Equipment: LiquidHandler, Slot: 1, Labware: Wellplate, Well: "A1"}
	b := Location{Equipment: LiquidHandler, Slot: 1, Labware: Wellplate, Well: "A1"}
	c := Location{Equipment: LiquidHandler, Slot: 1, Labware: Wellplate, Well: "A2"}
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
