package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dashloom-cli/internal/charts"
)

var (
	chartsInput inputFlags
	chartsType  string
	chartsRaw   bool
)

var chartsCmd = &cobra.Command{
	Use:   "charts",
	Short: "Chart types and the columns each role accepts",
}

var chartsTypesCmd = &cobra.Command{
	Use:   "types",
	Short: "List chart types and their roles",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, t := range charts.All {
			var parts []string
			for _, r := range charts.Roles(t) {
				p := r.Name
				if r.Multi {
					p += "[]"
				}
				if r.Required {
					p += "*"
				}
				parts = append(parts, p)
			}
			fmt.Printf("- %s: %s\n", t, strings.Join(parts, ", "))
		}
		fmt.Println("(* required, [] accepts several columns)")
		return nil
	},
}

var chartsColumnsCmd = &cobra.Command{
	Use:   "columns <file>",
	Short: "Show which columns can fill each role of a chart type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, known := charts.Parse(chartsType)
		if !known {
			fmt.Printf("⚠ Warning: unknown chart type %q; every column is listed\n", chartsType)
		}
		ctx, err := chartsInput.start(args[0])
		if err != nil {
			return err
		}
		if !chartsRaw {
			if ctx, err = ctx.Clean(); err != nil {
				return err
			}
		}
		resolved := charts.Resolve(ctx.Classes(), ctx.Dataset.Names(), t)
		var order []string
		for _, r := range charts.Roles(t) {
			order = append(order, r.Name)
		}
		if len(order) == 0 {
			for role := range resolved {
				order = append(order, role)
			}
			sort.Strings(order)
		}
		fmt.Printf("%s\n", t)
		for _, role := range order {
			cols := resolved[role]
			if len(cols) == 0 {
				fmt.Printf("- %s: (none)\n", role)
				continue
			}
			fmt.Printf("- %s: %s\n", role, strings.Join(cols, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chartsCmd)
	chartsCmd.AddCommand(chartsTypesCmd)
	chartsCmd.AddCommand(chartsColumnsCmd)
	chartsInput.bind(chartsColumnsCmd)
	chartsColumnsCmd.Flags().StringVarP(&chartsType, "type", "t", "", "chart type (e.g. bar, \"Scatter Plot\")")
	chartsColumnsCmd.Flags().BoolVar(&chartsRaw, "raw", false, "classify the file as loaded, without cleaning")
	_ = chartsColumnsCmd.MarkFlagRequired("type")
}
