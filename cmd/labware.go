package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/open-science-stack/oss/oss"
)

// labwareCmd prints the capacity table the allocator works from, resolved
// against the active lab configuration.
var labwareCmd = &cobra.Command{
	Use:   "labware",
	Short: "Print the labware capacity table",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadLabConfig()
		if err != nil {
			return err
		}
		fmt.Println("kind       capacity (ul)   wells")
		for _, kind := range oss.LabwareKinds() {
			spec := cfg.Spec(kind)
			wells := "-"
			if spec.Wells > 0 {
				wells = fmt.Sprintf("%d (%d/row)", spec.Wells, spec.RowWidth)
			}
			fmt.Printf("%-10s %4d..%-10d %s\n", kind, spec.MinVolume, spec.MaxVolume, wells)
		}
		fmt.Printf("\nliquid-handler slots: %d (waste at slot %d), workbench slots: %d\n",
			cfg.LiquidHandlerSlots, cfg.WasteSlot, cfg.WorkbenchSlots)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(labwareCmd)
}
