package telemetry

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/hopalong/config"
)

// OutputManager handles run output: perf.csv, orbits.csv and a config snapshot.
type OutputManager struct {
	dir       string
	perfFile  *os.File
	orbitFile *os.File

	// Track if headers have been written
	perfHeaderWritten  bool
	orbitHeaderWritten bool
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}

	f, err := os.Create(filepath.Join(dir, "perf.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating perf.csv: %w", err)
	}
	om.perfFile = f

	f, err = os.Create(filepath.Join(dir, "orbits.csv"))
	if err != nil {
		om.perfFile.Close()
		return nil, fmt.Errorf("creating orbits.csv: %w", err)
	}
	om.orbitFile = f

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, step uint64) error {
	if om == nil {
		return nil
	}
	records := []PerfStatsCSV{stats.ToCSV(step)}
	if err := writeCSV(records, om.perfFile, &om.perfHeaderWritten); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WriteOrbit writes an orbit summary to orbits.csv.
func (om *OutputManager) WriteOrbit(stats OrbitStats) error {
	if om == nil {
		return nil
	}
	records := []OrbitStats{stats}
	if err := writeCSV(records, om.orbitFile, &om.orbitHeaderWritten); err != nil {
		return fmt.Errorf("writing orbit: %w", err)
	}
	return nil
}

// writeCSV includes the header only on the first write to w.
func writeCSV(records any, w io.Writer, headerWritten *bool) error {
	if !*headerWritten {
		if err := gocsv.Marshal(records, w); err != nil {
			return err
		}
		*headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, w)
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var errs []error
	if om.perfFile != nil {
		errs = append(errs, om.perfFile.Close())
	}
	if om.orbitFile != nil {
		errs = append(errs, om.orbitFile.Close())
	}
	return errors.Join(errs...)
}
