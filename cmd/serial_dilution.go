package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/open-science-stack/oss/oss"
)

var (
	sdWells      int
	sdBaseVol    int
	sdStockVol   int
	sdWavelength int
)

// serialDilutionCmd replays the serial dilution protocol: seed the first
// well with stock, then carry a fixed volume down the row, mixing at each
// step, and read the whole plate at the end.
var serialDilutionCmd = &cobra.Command{
	Use:   "serial-dilution",
	Short: "Run a serial dilution across one wellplate row",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		expID := o.ExperimentInit("Serial Dilution")
		defer o.ExperimentEnd(expID)

		wells := make([]oss.LocationID, sdWells)
		for i := range wells {
			wells[i] = oss.LocationID(fmt.Sprintf("%d", i))
		}
		baseID := oss.LocationID("base")
		stockID := oss.LocationID("stock")

		base := oss.CustomReagent("base_solvent")
		stock := oss.CustomReagent("my_reagent")

		if err := o.Load(expID, sdBaseVol*sdWells, base, baseID); err != nil {
			return err
		}
		if err := o.Load(expID, sdStockVol, stock, stockID); err != nil {
			return err
		}

		for _, w := range wells {
			if err := o.Transfer(expID, sdBaseVol, baseID, []oss.LocationID{w}, true); err != nil {
				return err
			}
		}

		if err := o.Transfer(expID, sdStockVol, stockID, []oss.LocationID{wells[0]}, true); err != nil {
			return err
		}
		if err := o.Mix(expID, wells[0], sdBaseVol+sdStockVol, 0); err != nil {
			return err
		}

		for i := 0; i < sdWells-2; i++ {
			if err := o.Transfer(expID, sdStockVol, wells[i], []oss.LocationID{wells[i+1]}, true); err != nil {
				return err
			}
			if err := o.Mix(expID, wells[i+1], sdBaseVol+sdStockVol, 0); err != nil {
				return err
			}
		}

		readings, err := o.MeasureAbsorbance(ctx, expID, wells,
			oss.WavelengthRange{Min: sdWavelength, Max: sdWavelength}, nil, oss.MeasureOptions{})
		if err != nil {
			return err
		}
		for i, r := range readings {
			logrus.Infof("well %s: absorbance %.3f", wells[i], r)
		}
		return nil
	},
}

func init() {
	serialDilutionCmd.Flags().IntVar(&sdWells, "wells", 8, "number of wells in the dilution series")
	serialDilutionCmd.Flags().IntVar(&sdBaseVol, "base-vol", 9, "base solvent volume per well (ul)")
	serialDilutionCmd.Flags().IntVar(&sdStockVol, "stock-vol", 1, "stock volume carried between wells (ul)")
	serialDilutionCmd.Flags().IntVar(&sdWavelength, "wavelength", 900, "absorbance wavelength (nm)")
	rootCmd.AddCommand(serialDilutionCmd)
}
