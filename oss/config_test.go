package oss

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLabConfig_Validates(t *testing.T) {
	assert.NoError(t, DefaultLabConfig().Validate())
}

func TestLoadLabConfig_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lab.yaml")
	data := `
liquid_handler_slots: 4
wait_grace: 30s
labware:
  reservoir: {min_ul: 50, max_ul: 1000}
  wellplate: {min_ul: 10, max_ul: 50, wells: 24, row_width: 6}
  testtube: {min_ul: 10, max_ul: 100}
  cuvette: {min_ul: 10, max_ul: 100}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadLabConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.LiquidHandlerSlots)
	assert.Equal(t, 30*time.Second, cfg.WaitGrace.Std())
	assert.Equal(t, 24, cfg.Spec(Wellplate).Wells)
	// Untouched fields keep stock defaults.
	assert.Equal(t, 20, cfg.WorkbenchSlots)
	assert.Equal(t, 1000, cfg.Spec(Reservoir).MaxVolume)
}

func TestLoadLabConfig_MissingFile(t *testing.T) {
	_, err := LoadLabConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLabConfig_Validate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*LabConfig)
	}{
		{"zero slots", func(c *LabConfig) { c.LiquidHandlerSlots = 0 }},
		{"zero workbench", func(c *LabConfig) { c.WorkbenchSlots = 0 }},
		{"waste out of range", func(c *LabConfig) { c.WasteSlot = 99 }},
		{"missing kind", func(c *LabConfig) { delete(c.Labware, Cuvette) }},
		{"inverted range", func(c *LabConfig) { c.Labware[TestTube] = LabwareSpec{MinVolume: 200, MaxVolume: 100} }},
		{"bad geometry", func(c *LabConfig) { c.Labware[Wellplate] = LabwareSpec{MinVolume: 10, MaxVolume: 50, Wells: 96, RowWidth: 7} }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := DefaultLabConfig()
			c.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
