package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Inference
	DateSampleSize     int     `mapstructure:"date_sample_size" yaml:"date_sample_size"`
	DateThreshold      float64 `mapstructure:"date_threshold" yaml:"date_threshold"`
	IDCardinalityRatio float64 `mapstructure:"id_cardinality_ratio" yaml:"id_cardinality_ratio"`

	// Segmentation
	SegmentSeed     int64 `mapstructure:"segment_seed" yaml:"segment_seed"`
	SegmentRestarts int   `mapstructure:"segment_restarts" yaml:"segment_restarts"`
	SegmentMaxIter  int   `mapstructure:"segment_max_iter" yaml:"segment_max_iter"`
	DefaultSegments int   `mapstructure:"default_segments" yaml:"default_segments"`
	MaxClusters     int   `mapstructure:"max_clusters" yaml:"max_clusters"`

	// Engineering and analysis
	MaxSynthesisColumns int     `mapstructure:"max_synthesis_columns" yaml:"max_synthesis_columns"`
	OutlierThreshold    float64 `mapstructure:"outlier_threshold" yaml:"outlier_threshold"`

	DashboardsDir string `mapstructure:"dashboards_dir" yaml:"dashboards_dir"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Keys lists the settable keys in display order.
var Keys = []string{
	"date_sample_size", "date_threshold", "id_cardinality_ratio",
	"segment_seed", "segment_restarts", "segment_max_iter", "default_segments", "max_clusters",
	"max_synthesis_columns", "outlier_threshold", "dashboards_dir", "log_level", "log_format",
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".dashloom"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.dashloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := configDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("DASHLOOM")
	v.AutomaticEnv()

	v.SetDefault("date_sample_size", 20)
	v.SetDefault("date_threshold", 0.7)
	v.SetDefault("id_cardinality_ratio", 0.95)
	v.SetDefault("segment_seed", 42)
	v.SetDefault("segment_restarts", 10)
	v.SetDefault("segment_max_iter", 300)
	v.SetDefault("default_segments", 0)
	v.SetDefault("max_clusters", 10)
	v.SetDefault("max_synthesis_columns", 10)
	v.SetDefault("outlier_threshold", 3.5)
	v.SetDefault("dashboards_dir", "")
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "console")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// Resolve dashboards_dir default: ~/.dashloom/dashboards
	if c.DashboardsDir == "" {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		c.DashboardsDir = filepath.Join(dir, "dashboards")
	}
	return &c, nil
}

// Set assigns one key from its string form, validating the value.
func (c *Global) Set(key, val string) error {
	val = strings.TrimSpace(val)
	switch key {
	case "date_sample_size":
		return setInt(&c.DateSampleSize, key, val, 1)
	case "segment_restarts":
		return setInt(&c.SegmentRestarts, key, val, 1)
	case "segment_max_iter":
		return setInt(&c.SegmentMaxIter, key, val, 1)
	case "default_segments":
		return setInt(&c.DefaultSegments, key, val, 0)
	case "max_clusters":
		return setInt(&c.MaxClusters, key, val, 2)
	case "max_synthesis_columns":
		return setInt(&c.MaxSynthesisColumns, key, val, 1)
	case "segment_seed":
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid int for %s: %w", key, err)
		}
		c.SegmentSeed = i
	case "date_threshold":
		return setFraction(&c.DateThreshold, key, val)
	case "id_cardinality_ratio":
		return setFraction(&c.IDCardinalityRatio, key, val)
	case "outlier_threshold":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("invalid value for %s: %v (must be a positive number)", key, val)
		}
		c.OutlierThreshold = f
	case "dashboards_dir":
		c.DashboardsDir = val
	case "log_level":
		switch val {
		case "debug", "info", "warn", "error":
			c.LogLevel = val
		default:
			return fmt.Errorf("invalid log_level: %s (use debug, info, warn or error)", val)
		}
	case "log_format":
		switch val {
		case "console", "json":
			c.LogFormat = val
		default:
			return fmt.Errorf("invalid log_format: %s (use console or json)", val)
		}
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

// Get returns the string form of a key.
func (c *Global) Get(key string) (string, bool) {
	switch key {
	case "date_sample_size":
		return strconv.Itoa(c.DateSampleSize), true
	case "date_threshold":
		return strconv.FormatFloat(c.DateThreshold, 'g', -1, 64), true
	case "id_cardinality_ratio":
		return strconv.FormatFloat(c.IDCardinalityRatio, 'g', -1, 64), true
	case "segment_seed":
		return strconv.FormatInt(c.SegmentSeed, 10), true
	case "segment_restarts":
		return strconv.Itoa(c.SegmentRestarts), true
	case "segment_max_iter":
		return strconv.Itoa(c.SegmentMaxIter), true
	case "default_segments":
		return strconv.Itoa(c.DefaultSegments), true
	case "max_clusters":
		return strconv.Itoa(c.MaxClusters), true
	case "max_synthesis_columns":
		return strconv.Itoa(c.MaxSynthesisColumns), true
	case "outlier_threshold":
		return strconv.FormatFloat(c.OutlierThreshold, 'g', -1, 64), true
	case "dashboards_dir":
		return c.DashboardsDir, true
	case "log_level":
		return c.LogLevel, true
	case "log_format":
		return c.LogFormat, true
	}
	return "", false
}

func setInt(dst *int, key, val string, min int) error {
	i, err := strconv.Atoi(val)
	if err != nil || i < min {
		return fmt.Errorf("invalid int for %s: %v (minimum %d)", key, val, min)
	}
	*dst = i
	return nil
}

func setFraction(dst *float64, key, val string) error {
	f, err := strconv.ParseFloat(val, 64)
	if err != nil || f <= 0 || f > 1 {
		return fmt.Errorf("invalid value for %s: %v (expected 0 < x <= 1)", key, val)
	}
	*dst = f
	return nil
}
