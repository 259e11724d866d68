package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/dashloom-cli/internal/engineering"
)

var (
	featInput  inputFlags
	featType   string
	featCol1   string
	featCol2   string
	featCol    string
	featOp     string
	featFrom   string
	featOutput string
	featRaw    bool
)

var featureCmd = &cobra.Command{
	Use:   "feature <file>",
	Short: "Add custom feature columns to a dataset",
	Long: `Add one custom feature from flags, or several from a YAML list (--from):

  - type: arithmetic        # col1 <op> col2, op: add|subtract|multiply|divide
    col1: sales
    col2: quantity
    op: divide
  - type: unary             # op: log|square|sqrt|average
    col: sales
    op: log
  - type: categorical_count # frequency of each value of col
    col: region

The file is cleaned first unless --raw is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defs, err := featureDefinitions()
		if err != nil {
			return err
		}
		ctx, err := featInput.start(args[0])
		if err != nil {
			return err
		}
		if !featRaw {
			if ctx, err = ctx.Clean(); err != nil {
				return err
			}
		}
		added := 0
		for _, def := range defs {
			next, err := ctx.AddFeature(def)
			if err != nil {
				var fe *engineering.FeatureError
				if errors.As(err, &fe) && len(defs) > 1 {
					fmt.Fprintf(os.Stderr, "⚠ Warning: %v\n", err)
					continue
				}
				return err
			}
			ctx = next
			added++
			fmt.Printf("✓ Added feature %s\n", def.Name())
		}
		if added == 0 {
			return fmt.Errorf("no features added")
		}
		if featOutput == "" {
			fmt.Printf("(dataset now has %d columns; use -o to save it)\n", ctx.Dataset.Width())
			return nil
		}
		if err := writeDataset(ctx.Dataset, featOutput); err != nil {
			return err
		}
		fmt.Printf("✓ Wrote %d rows, %d columns to %s\n", ctx.Dataset.Rows(), ctx.Dataset.Width(), featOutput)
		return nil
	},
}

func featureDefinitions() ([]engineering.Definition, error) {
	if featFrom != "" {
		b, err := os.ReadFile(featFrom)
		if err != nil {
			return nil, fmt.Errorf("read feature file: %w", err)
		}
		var defs []engineering.Definition
		if err := yaml.Unmarshal(b, &defs); err != nil {
			return nil, fmt.Errorf("parse feature file: %w", err)
		}
		if len(defs) == 0 {
			return nil, fmt.Errorf("%s defines no features", featFrom)
		}
		return defs, nil
	}
	if featType == "" {
		return nil, fmt.Errorf("--type or --from is required")
	}
	return []engineering.Definition{{Type: featType, Col1: featCol1, Col2: featCol2, Col: featCol, Op: featOp}}, nil
}

func init() {
	rootCmd.AddCommand(featureCmd)
	featInput.bind(featureCmd)
	featureCmd.Flags().StringVar(&featType, "type", "", "feature type: arithmetic|unary|categorical_count")
	featureCmd.Flags().StringVar(&featCol1, "col1", "", "arithmetic: left column")
	featureCmd.Flags().StringVar(&featCol2, "col2", "", "arithmetic: right column")
	featureCmd.Flags().StringVar(&featCol, "col", "", "unary/categorical_count: source column")
	featureCmd.Flags().StringVar(&featOp, "op", "", "operation (add|subtract|multiply|divide, log|square|sqrt|average)")
	featureCmd.Flags().StringVar(&featFrom, "from", "", "YAML file with a list of feature definitions")
	featureCmd.Flags().StringVarP(&featOutput, "output", "o", "", "write the result (.xlsx, or .csv)")
	featureCmd.Flags().BoolVar(&featRaw, "raw", false, "skip cleaning before adding features")
}
