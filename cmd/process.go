package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dashloom-cli/internal/analysis"
)

var (
	procInput    inputFlags
	procSegments int
	procOutput   string
	procJSON     bool
)

var processCmd = &cobra.Command{
	Use:   "process <file>",
	Short: "Clean, engineer features, optionally segment, and report measures",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k := procSegments
		if !cmd.Flags().Changed("segments") {
			k = defaultSegments()
		}
		ctx, err := procInput.start(args[0])
		if err != nil {
			return err
		}
		if ctx, err = ctx.Process(k); err != nil {
			return err
		}
		if err := printLog(ctx, procJSON); err != nil {
			return err
		}
		if !procJSON && len(ctx.Measures) > 0 {
			names := make([]string, 0, len(ctx.Measures))
			for n := range ctx.Measures {
				names = append(names, n)
			}
			sort.Strings(names)
			fmt.Println("\nMeasures:")
			for _, n := range names {
				fmt.Printf("- %s: %s\n", n, analysis.FormatNumber(ctx.Measures[n], 2))
			}
		}
		if procOutput != "" {
			if err := writeDataset(ctx.Dataset, procOutput); err != nil {
				return err
			}
			fmt.Printf("✓ Wrote processed data (%d rows, %d columns) to %s\n", ctx.Dataset.Rows(), ctx.Dataset.Width(), procOutput)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
	procInput.bind(processCmd)
	processCmd.Flags().IntVarP(&procSegments, "segments", "k", 0, "number of customer segments to create (0 = none)")
	processCmd.Flags().StringVarP(&procOutput, "output", "o", "", "write the processed data (.xlsx, or .csv)")
	processCmd.Flags().BoolVar(&procJSON, "json", false, "print the processing log as JSON")
}
