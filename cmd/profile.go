package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dashloom-cli/internal/analysis"
	"github.com/KaramelBytes/dashloom-cli/internal/cleaning"
	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/inference"
	"github.com/KaramelBytes/dashloom-cli/internal/utils"
)

var (
	profInput      inputFlags
	profOutputPath string
	profOutDir     string
	profSampleRows int
	profTopValues  int
	profGroupBy    []string
	profCorr       bool
	profOutlierThr float64
	profDrivers    string
	profDriversN   int
	profKPIs       bool
	profTarget     string
)

var profileCmd = &cobra.Command{
	Use:   "profile <file|glob>...",
	Short: "Profile CSV/TSV/XLSX files and print a concise markdown summary",
	Long: `Profile one or more data files. Each argument may be a path or a glob
pattern (e.g. data/*.csv). With several files, use --out-dir to write one
summary per file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		if len(files) > 1 && profOutputPath != "" {
			return fmt.Errorf("--output takes a single file; use --out-dir for %d files", len(files))
		}
		opt := analysis.DefaultOptions()
		opt.Inference = inferenceOptions()
		opt.SampleRows = profSampleRows
		opt.TopValues = profTopValues
		opt.GroupBy = profGroupBy
		opt.Correlations = profCorr
		opt.OutlierThreshold = profOutlierThr
		if !cmd.Flags().Changed("outlier-threshold") && cfg != nil && cfg.OutlierThreshold > 0 {
			opt.OutlierThreshold = cfg.OutlierThreshold
		}

		if profOutDir != "" {
			if err := utils.EnsureDir(profOutDir); err != nil {
				return err
			}
		}
		used := map[string]int{}
		for i, path := range files {
			if len(files) > 1 {
				fmt.Printf("[%d/%d] Processing %s\n", i+1, len(files), path)
			}
			md, err := profileFile(path, opt)
			if err != nil {
				if len(files) > 1 {
					fmt.Fprintf(os.Stderr, "⚠ Warning: %v\n", err)
					continue
				}
				return err
			}
			switch {
			case profOutputPath != "":
				if err := os.WriteFile(profOutputPath, []byte(md), 0o644); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
				fmt.Printf("✓ Wrote profile to %s\n", profOutputPath)
			case profOutDir != "":
				out := filepath.Join(profOutDir, summaryName(path, used))
				if err := os.WriteFile(out, []byte(md), 0o644); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
				fmt.Printf("✓ Wrote profile to %s\n", out)
			default:
				fmt.Println(md)
			}
		}
		return nil
	},
}

func profileFile(path string, opt analysis.Options) (string, error) {
	ds, err := profInput.load(path)
	if err != nil {
		return "", err
	}
	rep := analysis.Profile(ds, filepath.Base(path), opt)
	var b strings.Builder
	b.WriteString(rep.Markdown())
	if profDrivers != "" {
		drivers, err := analysis.KeyDrivers(ds, profDrivers, profDriversN)
		if err != nil {
			return "", err
		}
		b.WriteString("\n")
		b.WriteString(analysis.FormatDrivers(profDrivers, drivers))
	}
	if profTarget != "" {
		rep, err := analysis.AnalyzeTarget(ds, profTarget, opt.Inference)
		if err != nil {
			return "", err
		}
		b.WriteString("\n")
		b.WriteString(analysis.FormatTarget(rep))
	}
	if profKPIs {
		b.WriteString("\n")
		b.WriteString(kpiSection(ds, opt.Inference))
	}
	return b.String(), nil
}

// kpiSection cleans a copy of ds so dates parse, then reports the suggested
// key columns with their KPIs and top contributions.
func kpiSection(ds *dataset.Dataset, inf inference.Options) string {
	var b strings.Builder
	b.WriteString("[KEY METRICS]\n")
	clean, _, err := cleaning.Clean(ds, cleaning.Options{Inference: inf, Logger: logger})
	if err != nil {
		b.WriteString(fmt.Sprintf("- unavailable: %v\n", err))
		return b.String()
	}
	s := analysis.SuggestColumns(clean, inf)
	b.WriteString(fmt.Sprintf("- suggested date: %s\n- suggested value: %s\n- suggested category: %s\n",
		orNone(s.Date), orNone(s.Value), orNone(s.Category)))
	if s.Value == "" {
		return b.String()
	}
	k, err := analysis.ComputeKPIs(clean, s.Date, s.Value)
	if err != nil {
		b.WriteString(fmt.Sprintf("- unavailable: %v\n", err))
		return b.String()
	}
	for _, e := range k.Entries() {
		b.WriteString(fmt.Sprintf("- %s: %s\n", e[0], e[1]))
	}
	if s.Date != "" {
		switch d, err := analysis.Decompose(clean, s.Date, s.Value); {
		case err == nil:
			b.WriteString("\n")
			b.WriteString(analysis.FormatDecomposition(s.Value, d))
		case errors.Is(err, analysis.ErrTooFewPeriods):
			b.WriteString("- seasonality: needs at least 24 months of data\n")
		}
	}
	if s.Category == "" {
		return b.String()
	}
	contrib, err := analysis.ContributionAnalysis(clean, s.Category, s.Value)
	if err != nil {
		return b.String()
	}
	if len(contrib) > 5 {
		contrib = contrib[:5]
	}
	b.WriteString(fmt.Sprintf("\n[TOP %s BY %s]\n", strings.ToUpper(s.Category), strings.ToUpper(s.Value)))
	for _, c := range contrib {
		b.WriteString(fmt.Sprintf("- %s: %s (%.1f%%)\n", c.Category, analysis.FormatNumber(c.Total, 2), c.Share*100))
	}
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// expandInputs resolves globs, de-duplicates and sorts the result.
func expandInputs(args []string) ([]string, error) {
	seen := map[string]bool{}
	var files []string
	for _, a := range args {
		matches := []string{a}
		if strings.ContainsAny(a, "*?[") {
			m, err := filepath.Glob(a)
			if err != nil {
				return nil, fmt.Errorf("bad pattern %q: %w", a, err)
			}
			if len(m) == 0 {
				fmt.Fprintf(os.Stderr, "⚠ Warning: no files match %s\n", a)
			}
			matches = m
		}
		for _, p := range matches {
			if info, err := os.Stat(p); err == nil && info.IsDir() {
				continue
			}
			if !seen[p] {
				seen[p] = true
				files = append(files, p)
			}
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files")
	}
	sort.Strings(files)
	return files, nil
}

// summaryName derives "<base>.profile.md", suffixing repeats with __2, __3...
func summaryName(path string, used map[string]int) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	used[base]++
	if n := used[base]; n > 1 {
		base = fmt.Sprintf("%s__%d", base, n)
	}
	return base + ".profile.md"
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profInput.bind(profileCmd)
	profileCmd.Flags().StringVarP(&profOutputPath, "output", "o", "", "optional path to write the profile (Markdown)")
	profileCmd.Flags().StringVar(&profOutDir, "out-dir", "", "directory for one <name>.profile.md per input file")
	profileCmd.Flags().IntVar(&profSampleRows, "sample-rows", 5, "number of sample rows to include")
	profileCmd.Flags().IntVar(&profTopValues, "top-values", 5, "top category values listed per column")
	profileCmd.Flags().StringSliceVar(&profGroupBy, "group-by", nil, "comma-separated column names to group by (repeatable)")
	profileCmd.Flags().BoolVar(&profCorr, "correlations", true, "compute Pearson correlations among numeric columns")
	profileCmd.Flags().Float64Var(&profOutlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outliers (MAD-based, 0 disables)")
	profileCmd.Flags().StringVar(&profDrivers, "drivers", "", "numeric target column: list its most correlated numeric columns")
	profileCmd.Flags().IntVar(&profDriversN, "drivers-top", 5, "how many key drivers to list")
	profileCmd.Flags().BoolVar(&profKPIs, "kpis", false, "append suggested key columns, headline KPIs, seasonality and top contributions")
	profileCmd.Flags().StringVar(&profTarget, "target", "", "target column: rank every other column by mutual information and importance")
}
