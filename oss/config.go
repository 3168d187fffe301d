package oss

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so lab configs can say "30s" or "5m".
// Bare integers are taken as seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("bad duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs int64
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("bad duration value: %w", err)
	}
	*d = Duration(time.Duration(secs) * time.Second)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// LabwareSpec describes one labware kind: the volume range it can hold and,
// for wellplates, the well geometry. Kinds without wells leave Wells and
// RowWidth at zero.
type LabwareSpec struct {
	MinVolume int `yaml:"min_ul"`
	MaxVolume int `yaml:"max_ul"`
	Wells     int `yaml:"wells,omitempty"`
	RowWidth  int `yaml:"row_width,omitempty"`
}

// LabConfig describes the physical lab an Orchestrator drives: slot counts,
// the labware capacity table, and wait-timeout tuning. Loadable from a YAML
// file; zero-valued fields fall back to the stock defaults.
type LabConfig struct {
	// LiquidHandlerSlots is the number of allocatable deck slots, indexed
	// 1..N. Slot WasteSlot is reserved for the fixed waste reservoir.
	LiquidHandlerSlots int `yaml:"liquid_handler_slots"`
	WorkbenchSlots     int `yaml:"workbench_slots"`
	WasteSlot          int `yaml:"waste_slot"`

	// Labware maps kind name -> spec. Missing kinds inherit defaults.
	Labware map[Labware]LabwareSpec `yaml:"labware"`

	// WaitGrace is added to an incubation's declared duration to form the
	// completion-signal timeout.
	WaitGrace Duration `yaml:"wait_grace"`

	// MeasureTimeout bounds the wait for plate-reader results.
	MeasureTimeout Duration `yaml:"measure_timeout"`

	// CuvetteSampleVolume is the aliquot pipetted into a cuvette on the
	// per-sample measurement fallback path.
	CuvetteSampleVolume int `yaml:"cuvette_sample_volume"`
}

// DefaultLabConfig returns the stock lab: a 12-slot liquid handler plus a
// waste reservoir at slot 0, a 20-slot workbench, and a 96-well plate with
// 8 wells per row.
func DefaultLabConfig() *LabConfig {
	return &LabConfig{
		LiquidHandlerSlots: 12,
		WorkbenchSlots:     20,
		WasteSlot:          0,
		Labware: map[Labware]LabwareSpec{
			Reservoir: {MinVolume: 50, MaxVolume: 1000},
			Wellplate: {MinVolume: 10, MaxVolume: 50, Wells: 96, RowWidth: 8},
			TestTube:  {MinVolume: 10, MaxVolume: 100},
			Cuvette:   {MinVolume: 10, MaxVolume: 100},
		},
		WaitGrace:           Duration(5 * time.Minute),
		MeasureTimeout:      Duration(10 * time.Minute),
		CuvetteSampleVolume: 10,
	}
}

// LoadLabConfig reads and parses a YAML lab configuration file, overlaying
// it on the stock defaults so partial files are valid.
func LoadLabConfig(path string) (*LabConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading lab config: %w", err)
	}
	cfg := DefaultLabConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing lab config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid lab config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks structural sanity of the configuration.
func (c *LabConfig) Validate() error {
	if c.LiquidHandlerSlots <= 0 {
		return fmt.Errorf("liquid_handler_slots must be > 0, got %d", c.LiquidHandlerSlots)
	}
	if c.WorkbenchSlots <= 0 {
		return fmt.Errorf("workbench_slots must be > 0, got %d", c.WorkbenchSlots)
	}
	if c.WasteSlot < 0 || c.WasteSlot > c.LiquidHandlerSlots {
		return fmt.Errorf("waste_slot %d out of range", c.WasteSlot)
	}
	for _, kind := range labwareKinds {
		spec, ok := c.Labware[kind]
		if !ok {
			return fmt.Errorf("labware table missing kind %q", kind)
		}
		if spec.MaxVolume <= 0 || spec.MinVolume < 0 || spec.MinVolume > spec.MaxVolume {
			return fmt.Errorf("labware %q: bad capacity range [%d,%d]", kind, spec.MinVolume, spec.MaxVolume)
		}
		if kind == Wellplate {
			if spec.Wells <= 0 || spec.RowWidth <= 0 || spec.Wells%spec.RowWidth != 0 {
				return fmt.Errorf("wellplate geometry %d wells / row width %d is invalid", spec.Wells, spec.RowWidth)
			}
		}
	}
	return nil
}

// Spec returns the LabwareSpec for kind. The kind must exist in the table;
// Validate guarantees that for configs built through the public paths.
func (c *LabConfig) Spec(kind Labware) LabwareSpec {
	return c.Labware[kind]
}
