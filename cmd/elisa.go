package cmd

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/open-science-stack/oss/oss"
)

var (
	elisaSamples      int
	elisaReagentVol   int
	elisaIncubateTemp int
	elisaIncubateMin  int
	elisaWavelength   int
)

// elisaCmd replays a sandwich ELISA: coat, block, sample, detect, conjugate
// and substrate steps, each followed by incubation and washes, ending with
// a plate read.
var elisaCmd = &cobra.Command{
	Use:   "elisa",
	Short: "Run a sandwich ELISA on one wellplate",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		expID := o.ExperimentInit("ELISA")
		defer o.ExperimentEnd(expID)

		samples := make([]oss.LocationID, elisaSamples)
		for i := range samples {
			samples[i] = oss.LocationID(fmt.Sprintf("%d", i))
		}

		// One reservoir per solution.
		solutions := []struct {
			id   oss.LocationID
			name string
		}{
			{"capture", "capture antibody"},
			{"wash", "wash buffer"},
			{"blocking", "blocking buffer"},
			{"detection", "detection antibody"},
			{"sample", "sample"},
			{"conjugate", "conjugate"},
			{"substrate", "substrate"},
			{"stop", "stop solution"},
		}
		for _, s := range solutions {
			if err := o.Load(expID, elisaReagentVol*elisaSamples, oss.CustomReagent(s.name), s.id); err != nil {
				return err
			}
		}

		incubate := func(dark bool) error {
			return o.Incubate(ctx, expID, samples, elisaIncubateTemp,
				time.Duration(elisaIncubateMin)*time.Minute, dark)
		}
		washAll := func() error {
			for _, id := range samples {
				if err := o.Wash(ctx, expID, []oss.LocationID{id}, "wash", elisaReagentVol, oss.WashOptions{}); err != nil {
					return err
				}
			}
			return nil
		}
		addAll := func(src oss.LocationID) error {
			return o.Transfer(expID, elisaReagentVol, src, samples, true)
		}

		steps := []func() error{
			func() error { return addAll("capture") }, washAll,
			func() error { return addAll("blocking") }, func() error { return incubate(false) }, washAll,
			func() error { return addAll("sample") }, func() error { return incubate(false) }, washAll,
			func() error { return addAll("detection") }, func() error { return incubate(false) }, washAll,
			func() error { return addAll("conjugate") }, func() error { return incubate(false) }, washAll,
			func() error { return addAll("substrate") }, func() error { return incubate(true) },
			func() error { return addAll("stop") },
		}
		for _, step := range steps {
			if err := step(); err != nil {
				return err
			}
		}

		readings, err := o.MeasureAbsorbance(ctx, expID, samples,
			oss.WavelengthRange{Min: elisaWavelength, Max: elisaWavelength}, nil, oss.MeasureOptions{})
		if err != nil {
			return err
		}
		for i, r := range readings {
			logrus.Infof("sample %s: absorbance %.3f", samples[i], r)
		}
		return nil
	},
}

func init() {
	elisaCmd.Flags().IntVar(&elisaSamples, "samples", 8, "number of samples")
	elisaCmd.Flags().IntVar(&elisaReagentVol, "reagent-vol", 10, "volume per reagent per sample (ul)")
	elisaCmd.Flags().IntVar(&elisaIncubateTemp, "incubate-temp", 37, "incubation temperature (C)")
	elisaCmd.Flags().IntVar(&elisaIncubateMin, "incubate-minutes", 60, "incubation duration (minutes)")
	elisaCmd.Flags().IntVar(&elisaWavelength, "wavelength", 600, "absorbance wavelength (nm)")
	rootCmd.AddCommand(elisaCmd)
}
