package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cfgpkg "github.com/KaramelBytes/dashloom-cli/internal/config"
	"github.com/KaramelBytes/dashloom-cli/internal/engineering"
	"github.com/KaramelBytes/dashloom-cli/internal/inference"
	"github.com/KaramelBytes/dashloom-cli/internal/logging"
	"github.com/KaramelBytes/dashloom-cli/internal/segment"
	"github.com/KaramelBytes/dashloom-cli/internal/workflow"
)

var (
	// Global flags
	cfgFile     string
	debug       bool
	flagLogLvl  string
	flagLogJSON bool

	// Loaded configuration and logger
	cfg    *cfgpkg.Global
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "dashloom",
	Short: "DashLoom CLI: turn a spreadsheet into a cleaned, explained dashboard",
	Long: `DashLoom loads a CSV or XLSX file, infers what each column means, cleans and
enriches the data, and builds dashboards of charts whose findings are written
out in plain language.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.dashloom/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging (same as --log-level debug)")
	rootCmd.PersistentFlags().StringVar(&flagLogLvl, "log-level", "", "log level: debug|info|warn|error (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "emit logs as JSON")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: fall back to built-in defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = &cfgpkg.Global{LogLevel: "warn", LogFormat: "console", SegmentSeed: segment.DefaultOptions().Seed}
	}
	cfg = c

	level, format := cfg.LogLevel, cfg.LogFormat
	if flagLogLvl != "" {
		level = flagLogLvl
	}
	if debug {
		level = "debug"
	}
	if flagLogJSON {
		format = "json"
	}
	l, err := logging.New(level, format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %v; logging disabled\n", err)
		logger = zap.NewNop()
		return
	}
	logger = l
}

func inferenceOptions() inference.Options {
	opt := inference.DefaultOptions()
	if cfg == nil {
		return opt
	}
	if cfg.DateSampleSize > 0 {
		opt.DateSampleSize = cfg.DateSampleSize
	}
	if cfg.DateThreshold > 0 {
		opt.DateThreshold = cfg.DateThreshold
	}
	if cfg.IDCardinalityRatio > 0 {
		opt.IDCardinalityRatio = cfg.IDCardinalityRatio
	}
	return opt
}

func segmentOptions() segment.Options {
	opt := segment.DefaultOptions()
	opt.Inference = inferenceOptions()
	opt.Logger = logger
	if cfg == nil {
		return opt
	}
	opt.Seed = cfg.SegmentSeed
	if cfg.SegmentRestarts > 0 {
		opt.Restarts = cfg.SegmentRestarts
	}
	if cfg.SegmentMaxIter > 0 {
		opt.MaxIter = cfg.SegmentMaxIter
	}
	return opt
}

func workflowOptions() workflow.Options {
	opt := workflow.DefaultOptions()
	opt.Inference = inferenceOptions()
	opt.Segment = segmentOptions()
	opt.Engineering = engineering.Options{Inference: opt.Inference, Logger: logger}
	opt.Logger = logger
	if cfg != nil {
		opt.Engineering.MaxSynthesisColumns = cfg.MaxSynthesisColumns
		if cfg.OutlierThreshold > 0 {
			opt.OutlierThreshold = cfg.OutlierThreshold
		}
	}
	return opt
}

// defaultSegments is the k used by process and render when -k is not given.
func defaultSegments() int {
	if cfg == nil {
		return 0
	}
	return cfg.DefaultSegments
}

func maxClusters() int {
	if cfg == nil || cfg.MaxClusters < 2 {
		return 10
	}
	return cfg.MaxClusters
}
