package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/open-science-stack/oss/oss"
)

var (
	gmMixes         int
	gmTotalVol      int
	gmLowestPercent int
	gmStepPercent   int
	gmWavelength    int
)

// gradientMixingCmd replays the gradient mixing protocol: prepare a series
// of two-solution mixes with a rising ratio, then read every mix in one
// batched plate measurement.
var gradientMixingCmd = &cobra.Command{
	Use:   "gradient-mixing",
	Short: "Prepare and measure a two-solution concentration gradient",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		expID := o.ExperimentInit("Gradient Mixing")
		defer o.ExperimentEnd(expID)

		mixes := make([]oss.LocationID, gmMixes)
		for i := range mixes {
			mixes[i] = oss.LocationID(fmt.Sprintf("%d", i))
		}
		sol1ID := oss.LocationID("sol1")
		sol2ID := oss.LocationID("sol2")

		if err := o.Load(expID, gmTotalVol*gmMixes, oss.CustomReagent("solution 1"), sol1ID); err != nil {
			return err
		}
		if err := o.Load(expID, gmTotalVol*gmMixes, oss.CustomReagent("solution 2"), sol2ID); err != nil {
			return err
		}

		for i, id := range mixes {
			sol1Vol := gmTotalVol * (gmLowestPercent + gmStepPercent*i) / 100
			sol2Vol := gmTotalVol - sol1Vol
			if err := o.Transfer(expID, sol1Vol, sol1ID, []oss.LocationID{id}, true); err != nil {
				return err
			}
			if err := o.Transfer(expID, sol2Vol, sol2ID, []oss.LocationID{id}, true); err != nil {
				return err
			}
			if err := o.Mix(expID, id, gmTotalVol, 0); err != nil {
				return err
			}
		}

		readings, err := o.MeasureAbsorbance(ctx, expID, mixes,
			oss.WavelengthRange{Min: gmWavelength, Max: gmWavelength}, nil, oss.MeasureOptions{})
		if err != nil {
			return err
		}
		for i, r := range readings {
			logrus.Infof("mix %s: absorbance %.3f", mixes[i], r)
		}
		return nil
	},
}

func init() {
	gradientMixingCmd.Flags().IntVar(&gmMixes, "mixes", 8, "number of mixes to prepare")
	gradientMixingCmd.Flags().IntVar(&gmTotalVol, "total-vol", 50, "total volume per mix (ul); must fit a well")
	gradientMixingCmd.Flags().IntVar(&gmLowestPercent, "lowest-percent", 10, "solution 1 share of the first mix")
	gradientMixingCmd.Flags().IntVar(&gmStepPercent, "step-percent", 10, "solution 1 share increase per mix")
	gradientMixingCmd.Flags().IntVar(&gmWavelength, "wavelength", 600, "absorbance wavelength (nm)")
	rootCmd.AddCommand(gradientMixingCmd)
}
