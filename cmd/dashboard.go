package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/dashloom-cli/internal/analysis"
	"github.com/KaramelBytes/dashloom-cli/internal/charts"
	"github.com/KaramelBytes/dashloom-cli/internal/dashboard"
	"github.com/KaramelBytes/dashloom-cli/internal/loader"
	"github.com/KaramelBytes/dashloom-cli/internal/utils"
	"github.com/KaramelBytes/dashloom-cli/internal/workflow"
)

var (
	dashDesc     string
	dashSource   string
	dashSheet    string
	dashSegments int
	dashTypes    []string

	dashSpec    charts.Spec
	dashType    string
	dashFrom    string
	dashNoCheck bool
	dashRemove  bool
	dashOutput  string
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	Aliases: []string{"dash"},
	Short:   "Create, edit and render dashboards",
}

var dashInitCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Initialize a new dashboard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		root, err := dashboardsDir()
		if err != nil {
			return err
		}
		dir := filepath.Join(root, name)
		// Refuse to overwrite an existing dashboard.
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			if _, err := os.Stat(filepath.Join(dir, utils.DashboardFileName)); err == nil {
				return fmt.Errorf("dashboard already exists at %s", dir)
			}
			entries, err := os.ReadDir(dir)
			if err != nil {
				return fmt.Errorf("inspect dashboard directory: %w", err)
			}
			if len(entries) > 0 {
				return fmt.Errorf("directory %s already exists and is not empty; refusing to initialize dashboard", dir)
			}
		} else if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("stat dashboard directory: %w", err)
		}
		if err := utils.EnsureDir(dir); err != nil {
			return err
		}
		d := dashboard.New(name, dashDesc, dir)
		if dashSource != "" {
			if err := d.SetSource(dashSource, dashSheet, dashSegments); err != nil {
				return err
			}
			if err := d.SetColumnTypes(dashTypes); err != nil {
				return fmt.Errorf("--column-type: %w", err)
			}
		}
		if err := d.Save(); err != nil {
			return err
		}
		fmt.Printf("✓ Dashboard initialized: %s\n", dir)
		return nil
	},
}

var dashSourceCmd = &cobra.Command{
	Use:   "source <name> <file>",
	Short: "Point a dashboard at a CSV/XLSX data file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDashboard(args[0])
		if err != nil {
			return err
		}
		if err := d.SetSource(args[1], dashSheet, dashSegments); err != nil {
			return err
		}
		if cmd.Flags().Changed("column-type") {
			if err := d.SetColumnTypes(dashTypes); err != nil {
				return fmt.Errorf("--column-type: %w", err)
			}
		}
		if err := d.Save(); err != nil {
			return err
		}
		fmt.Printf("✓ Source set to %s\n", d.Source)
		return nil
	},
}

var dashAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a chart (from flags, or a YAML list with --from)",
	Long: `Add a chart from flags, for example

  dashloom dashboard add sales --type bar --x region --y sales

or several charts from a YAML list:

  - type: Line Chart
    x: order_date
    y: sales
  - type: Donut Chart
    names: region
    values: sales

Column names refer to the processed data (cleaned, snake_case). When the
dashboard has a source, each chart is checked against it before saving.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDashboard(args[0])
		if err != nil {
			return err
		}
		specs, err := chartSpecs(cmd)
		if err != nil {
			return err
		}
		var check func(charts.Spec) error
		if d.Source != "" && !dashNoCheck {
			check, err = chartChecker(d)
			if err != nil {
				return err
			}
		}
		for _, s := range specs {
			if check != nil {
				if err := check(s); err != nil {
					return fmt.Errorf("%s: %w", s.Label(), err)
				}
			}
			added, err := d.AddChart(s)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Added chart %s (%s)\n", added.ID, added.Label())
		}
		return d.Save()
	},
}

var dashRemoveCmd = &cobra.Command{
	Use:   "remove <name> <chart-id>",
	Short: "Remove a chart by ID or unique ID prefix",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDashboard(args[0])
		if err != nil {
			return err
		}
		removed, err := d.RemoveChart(args[1])
		if err != nil {
			return err
		}
		if err := d.Save(); err != nil {
			return err
		}
		fmt.Printf("✓ Removed chart %s (%s)\n", removed.ID, removed.Label())
		return nil
	},
}

var dashKPICmd = &cobra.Command{
	Use:   "kpi <name> <measure>",
	Short: "Pin (or with --remove, unpin) a measure as a KPI card",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDashboard(args[0])
		if err != nil {
			return err
		}
		measure := args[1]
		if dashRemove {
			if err := d.RemoveKPI(measure); err != nil {
				return err
			}
			if err := d.Save(); err != nil {
				return err
			}
			fmt.Printf("✓ Removed KPI %s\n", measure)
			return nil
		}
		if d.Source != "" && !dashNoCheck {
			b, err := d.Build(dashLoaderOptions(), workflowOptions())
			if err != nil {
				return err
			}
			if _, ok := b.Context.Measures[measure]; !ok {
				return fmt.Errorf("unknown measure %q (see 'dashloom dashboard measures %s')", measure, d.Name)
			}
		}
		if err := d.AddKPI(measure); err != nil {
			return err
		}
		if err := d.Save(); err != nil {
			return err
		}
		fmt.Printf("✓ Added KPI %s\n", measure)
		return nil
	},
}

var dashMeasuresCmd = &cobra.Command{
	Use:   "measures <name>",
	Short: "List the measures available as KPI cards",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDashboard(args[0])
		if err != nil {
			return err
		}
		b, err := d.Build(dashLoaderOptions(), workflowOptions())
		if err != nil {
			return err
		}
		names := make([]string, 0, len(b.Context.Measures))
		for n := range b.Context.Measures {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Printf("- %s: %s\n", n, analysis.FormatNumber(b.Context.Measures[n], 2))
		}
		return nil
	},
}

var dashListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dashboards",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := dashboardsDir()
		if err != nil {
			return err
		}
		dirs, err := os.ReadDir(root)
		if err != nil {
			return err
		}
		found := false
		for _, e := range dirs {
			if !e.IsDir() {
				continue
			}
			d, err := dashboard.Load(filepath.Join(root, e.Name()))
			if err != nil {
				continue
			}
			fmt.Printf("- %s (%d charts, %d KPIs)\n", e.Name(), len(d.Charts), len(d.KPIs))
			found = true
		}
		if !found {
			fmt.Println("(no dashboards)")
		}
		return nil
	},
}

var dashShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a dashboard definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDashboard(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Name: %s\n", d.Name)
		if d.Description != "" {
			fmt.Printf("Description: %s\n", d.Description)
		}
		if d.Source != "" {
			fmt.Printf("Source: %s", d.Source)
			if d.Sheet != "" {
				fmt.Printf(" (sheet %s)", d.Sheet)
			}
			fmt.Println()
		} else {
			fmt.Println("Source: (none)")
		}
		if d.Segments > 0 {
			fmt.Printf("Segments: %d\n", d.Segments)
		}
		if len(d.ColumnTypes) > 0 {
			names := make([]string, 0, len(d.ColumnTypes))
			for n := range d.ColumnTypes {
				names = append(names, n)
			}
			sort.Strings(names)
			fmt.Println("Column types:")
			for _, n := range names {
				fmt.Printf("  %s: %s\n", n, d.ColumnTypes[n])
			}
		}
		fmt.Printf("Charts (%d/%d):\n", len(d.Charts), workflow.MaxCharts)
		if len(d.Charts) == 0 {
			fmt.Println("  (none)")
		}
		for _, s := range d.Charts {
			fmt.Printf("  - %s  %s\n", shortID(s.ID), s.Label())
		}
		fmt.Println("KPIs:")
		if len(d.KPIs) == 0 {
			fmt.Println("  (none)")
		}
		for _, k := range d.KPIs {
			fmt.Printf("  - %s\n", k)
		}
		return nil
	},
}

var dashRenderCmd = &cobra.Command{
	Use:   "render <name>",
	Short: "Process the source data and render the dashboard as Markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDashboard(args[0])
		if err != nil {
			return err
		}
		b, err := d.Build(dashLoaderOptions(), workflowOptions())
		if err != nil {
			return err
		}
		for _, p := range b.Problems {
			fmt.Fprintf(os.Stderr, "⚠ Warning: %s\n", p)
		}
		md := b.Markdown()
		if dashOutput == "" {
			fmt.Println(md)
			return nil
		}
		if err := os.WriteFile(dashOutput, []byte(md), 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Printf("✓ Rendered %d charts to %s\n", len(b.Context.Charts), dashOutput)
		return nil
	},
}

func dashboardsDir() (string, error) {
	dir := ""
	if cfg != nil {
		dir = cfg.DashboardsDir
	}
	if dir == "" {
		dir = filepath.Join("~", ".dashloom", "dashboards")
	}
	if strings.HasPrefix(dir, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dir = strings.TrimPrefix(dir, "~")
		dir = strings.TrimPrefix(dir, string(os.PathSeparator))
		dir = strings.TrimPrefix(dir, "/")
		dir = filepath.Join(home, dir)
	}
	dir = filepath.Clean(dir)
	if err := utils.EnsureDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

func loadDashboard(name string) (*dashboard.Dashboard, error) {
	if name == "" {
		return nil, errors.New("dashboard name is required")
	}
	// a path (".", "./q3", "/srv/dash/q3") is searched upward for dashboard.json
	if name == "." || strings.ContainsRune(name, os.PathSeparator) {
		dir, err := utils.FindDashboardRoot(name)
		if err != nil {
			return nil, err
		}
		return dashboard.Load(dir)
	}
	root, err := dashboardsDir()
	if err != nil {
		return nil, err
	}
	return dashboard.Load(filepath.Join(root, name))
}

func dashLoaderOptions() loader.Options {
	opt := loader.DefaultOptions()
	opt.Logger = logger
	return opt
}

// chartSpecs reads specs from --from, or builds one from the chart flags.
func chartSpecs(cmd *cobra.Command) ([]charts.Spec, error) {
	if dashFrom != "" {
		b, err := os.ReadFile(dashFrom)
		if err != nil {
			return nil, fmt.Errorf("read chart file: %w", err)
		}
		var specs []charts.Spec
		if err := yaml.Unmarshal(b, &specs); err != nil {
			var one charts.Spec
			if err1 := yaml.Unmarshal(b, &one); err1 != nil {
				return nil, fmt.Errorf("parse chart file: %w", err)
			}
			specs = []charts.Spec{one}
		}
		for i := range specs {
			specs[i].Type = parseChartType(specs[i].Type)
		}
		return specs, nil
	}
	if !cmd.Flags().Changed("type") {
		return nil, fmt.Errorf("--type or --from is required")
	}
	s := dashSpec
	s.Type = parseChartType(charts.Type(dashType))
	return []charts.Spec{s}, nil
}

func parseChartType(t charts.Type) charts.Type {
	parsed, _ := charts.Parse(string(t))
	return parsed
}

// chartChecker processes the dashboard's source once and returns a function
// that validates one chart against the result.
func chartChecker(d *dashboard.Dashboard) (func(charts.Spec) error, error) {
	b, err := d.Build(dashLoaderOptions(), workflowOptions())
	if err != nil {
		return nil, err
	}
	ctx := b.Context
	return func(s charts.Spec) error {
		_, err := ctx.AddChart(s)
		return err
	}, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
	dashboardCmd.AddCommand(dashInitCmd, dashSourceCmd, dashAddCmd, dashRemoveCmd, dashKPICmd,
		dashMeasuresCmd, dashListCmd, dashShowCmd, dashRenderCmd)

	dashInitCmd.Flags().StringVarP(&dashDesc, "desc", "d", "", "dashboard description")
	dashInitCmd.Flags().StringVar(&dashSource, "source", "", "CSV/XLSX data file")
	for _, c := range []*cobra.Command{dashInitCmd, dashSourceCmd} {
		c.Flags().StringVar(&dashSheet, "sheet", "", "XLSX: sheet name")
		c.Flags().IntVarP(&dashSegments, "segments", "k", 0, "segments to create when processing (0 = none)")
		c.Flags().StringArrayVar(&dashTypes, "column-type", nil, "declare a column type as name=type; repeatable")
	}

	f := dashAddCmd.Flags()
	f.StringVar(&dashType, "type", "", "chart type (e.g. bar, line, donut, \"Scatter Plot\")")
	f.StringVar(&dashSpec.Title, "title", "", "chart title")
	f.StringVar(&dashSpec.X, "x", "", "x axis column")
	f.StringVar(&dashSpec.Y, "y", "", "y axis column")
	f.StringVar(&dashSpec.Z, "z", "", "z axis column (3D scatter)")
	f.StringVar(&dashSpec.Size, "size", "", "size column (bubble, scatter)")
	f.StringVar(&dashSpec.Color, "color", "", "color column")
	f.StringVar(&dashSpec.Names, "names", "", "names column (donut, pie, funnel, waterfall)")
	f.StringVar(&dashSpec.Values, "values", "", "values column")
	f.StringSliceVar(&dashSpec.Path, "path", nil, "hierarchy columns (treemap, sunburst)")
	f.StringSliceVar(&dashSpec.Columns, "columns", nil, "columns (heatmap, data table)")
	f.StringVar(&dashSpec.Task, "task", "", "Gantt task column")
	f.StringVar(&dashSpec.Start, "start", "", "Gantt start column")
	f.StringVar(&dashSpec.Finish, "finish", "", "Gantt finish column")
	f.StringVar(&dashSpec.Value, "value", "", "gauge value column")
	f.StringVar(&dashSpec.Threshold, "threshold", "", "gauge threshold column")
	f.StringVar(&dashSpec.Measure, "measure", "", "KPI card measure")
	f.StringVar(&dashFrom, "from", "", "YAML file with one chart or a list of charts")
	f.BoolVar(&dashNoCheck, "no-check", false, "skip checking columns against the source data")

	dashKPICmd.Flags().BoolVar(&dashRemove, "remove", false, "unpin the measure")
	dashKPICmd.Flags().BoolVar(&dashNoCheck, "no-check", false, "skip checking the measure against the source data")
	dashRenderCmd.Flags().StringVarP(&dashOutput, "output", "o", "", "write the rendered Markdown to a file")
}
