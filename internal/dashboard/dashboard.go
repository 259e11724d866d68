package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/KaramelBytes/dashloom-cli/internal/charts"
	"github.com/KaramelBytes/dashloom-cli/internal/loader"
	"github.com/KaramelBytes/dashloom-cli/internal/utils"
	"github.com/KaramelBytes/dashloom-cli/internal/workflow"
)

var (
	ErrNoSource        = errors.New("dashboard has no data source")
	ErrDuplicateKPI    = errors.New("kpi already on dashboard")
	ErrKPINotFound     = errors.New("kpi not found")
	ErrRootDirNotSet   = errors.New("dashboard root directory not set")
	ErrInvalidSegments = errors.New("segments must be zero or positive")
)

// Dashboard is a persisted dashboard definition. The data itself is never
// stored; it is reloaded from Source and reprocessed on every build.
type Dashboard struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Source      string        `json:"source,omitempty"`
	Sheet       string        `json:"sheet,omitempty"`
	Segments    int           `json:"segments,omitempty"`
	// ColumnTypes are column type declarations applied when the source is read.
	ColumnTypes map[string]string `json:"column_types,omitempty"`
	Charts      []charts.Spec `json:"charts"`
	KPIs        []string      `json:"kpis"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`

	// Not serialized: on-disk location of the dashboard.json
	rootDir string
}

// New constructs an in-memory dashboard. Call Save() to persist.
func New(name, description, rootDir string) *Dashboard {
	now := time.Now()
	return &Dashboard{
		Name:        name,
		Description: description,
		Charts:      []charts.Spec{},
		KPIs:        []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
		rootDir:     rootDir,
	}
}

// Load reads dashboard.json from dir.
func Load(dir string) (*Dashboard, error) {
	path := filepath.Join(dir, utils.DashboardFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("dashboard not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read dashboard: %w", err)
	}
	var d Dashboard
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("parse dashboard: %w", err)
	}
	d.rootDir = dir
	return &d, nil
}

// RootDir returns the on-disk dashboard directory path.
func (d *Dashboard) RootDir() string { return d.rootDir }

// Save writes dashboard.json using atomic write.
func (d *Dashboard) Save() error {
	if d.rootDir == "" {
		return ErrRootDirNotSet
	}
	if err := utils.EnsureDir(d.rootDir); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	d.UpdatedAt = time.Now()
	data, err := utils.PrettyJSON(d)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(d.rootDir, utils.DashboardFileName), data)
}

// SetSource points the dashboard at a data file. Relative paths are stored
// relative to the dashboard directory when possible.
func (d *Dashboard) SetSource(path, sheet string, segments int) error {
	if segments < 0 {
		return ErrInvalidSegments
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve source: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if d.rootDir != "" {
		if root, err := filepath.Abs(d.rootDir); err == nil {
			if rel, err := filepath.Rel(root, abs); err == nil && !strings.HasPrefix(rel, "..") {
				abs = rel
			}
		}
	}
	d.Source, d.Sheet, d.Segments = abs, sheet, segments
	d.UpdatedAt = time.Now()
	return nil
}

// SetColumnTypes replaces the stored type declarations with decls, each
// written as column=type. An empty list clears them.
func (d *Dashboard) SetColumnTypes(decls []string) error {
	types, err := loader.ParseColumnTypes(decls)
	if err != nil {
		return err
	}
	d.ColumnTypes = nil
	for name, t := range types {
		if d.ColumnTypes == nil {
			d.ColumnTypes = map[string]string{}
		}
		d.ColumnTypes[name] = string(t)
	}
	d.UpdatedAt = time.Now()
	return nil
}

// SourcePath resolves Source against the dashboard directory.
func (d *Dashboard) SourcePath() string {
	if d.Source == "" || filepath.IsAbs(d.Source) {
		return d.Source
	}
	return filepath.Join(d.rootDir, d.Source)
}

// AddChart appends a chart after checking the chart limit and its type.
// Column checks need the data and happen when the dashboard is built.
func (d *Dashboard) AddChart(spec charts.Spec) (charts.Spec, error) {
	if len(d.Charts) >= workflow.MaxCharts {
		return spec, workflow.ErrTooManyCharts
	}
	if _, err := spec.Config(); err != nil {
		return spec, err
	}
	if spec.ID == "" {
		spec.ID = charts.NewID()
	}
	d.Charts = append(d.Charts, spec)
	d.UpdatedAt = time.Now()
	return spec, nil
}

// RemoveChart drops a chart by ID or by unique ID prefix.
func (d *Dashboard) RemoveChart(id string) (charts.Spec, error) {
	match := -1
	for i, s := range d.Charts {
		if s.ID == id {
			match = i
			break
		}
		if id != "" && strings.HasPrefix(s.ID, id) {
			if match >= 0 {
				return charts.Spec{}, fmt.Errorf("chart id prefix %q is ambiguous", id)
			}
			match = i
		}
	}
	if match < 0 {
		return charts.Spec{}, fmt.Errorf("%w: %s", workflow.ErrChartNotFound, id)
	}
	removed := d.Charts[match]
	d.Charts = append(d.Charts[:match], d.Charts[match+1:]...)
	d.UpdatedAt = time.Now()
	return removed, nil
}

// AddKPI pins a measure as a headline card.
func (d *Dashboard) AddKPI(measure string) error {
	measure = strings.TrimSpace(measure)
	for _, k := range d.KPIs {
		if k == measure {
			return fmt.Errorf("%w: %s", ErrDuplicateKPI, measure)
		}
	}
	d.KPIs = append(d.KPIs, measure)
	d.UpdatedAt = time.Now()
	return nil
}

// RemoveKPI unpins a measure.
func (d *Dashboard) RemoveKPI(measure string) error {
	for i, k := range d.KPIs {
		if k == measure {
			d.KPIs = append(d.KPIs[:i], d.KPIs[i+1:]...)
			d.UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrKPINotFound, measure)
}
