package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dashloom-cli/internal/utils"
	"github.com/KaramelBytes/dashloom-cli/internal/workflow"
)

var (
	cleanInput  inputFlags
	cleanOutput string
	cleanJSON   bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean <file>",
	Short: "Clean a dataset and print what was changed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := cleanInput.start(args[0])
		if err != nil {
			return err
		}
		if ctx, err = ctx.Clean(); err != nil {
			return err
		}
		if err := printLog(ctx, cleanJSON); err != nil {
			return err
		}
		if cleanOutput != "" {
			if err := writeDataset(ctx.Dataset, cleanOutput); err != nil {
				return err
			}
			fmt.Printf("✓ Wrote cleaned data (%d rows, %d columns) to %s\n", ctx.Dataset.Rows(), ctx.Dataset.Width(), cleanOutput)
		}
		return nil
	},
}

// printLog prints the workflow log as sorted "key: value" lines, or as JSON.
func printLog(ctx *workflow.Context, asJSON bool) error {
	if asJSON {
		b, err := utils.PrettyJSON(ctx.Log)
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	}
	for _, line := range ctx.LogSummary() {
		fmt.Println(line)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanInput.bind(cleanCmd)
	cleanCmd.Flags().StringVarP(&cleanOutput, "output", "o", "", "write the cleaned data (.xlsx, or .csv)")
	cleanCmd.Flags().BoolVar(&cleanJSON, "json", false, "print the cleaning log as JSON")
}
