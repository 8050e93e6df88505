// Package fold materializes per-fold training and test artifacts.
//
// For fold i the materializer writes three tables into the fold directory:
//
//	rom.in.<i>    training inputs  (full inputs minus the held-out range)
//	results.<i>   training outputs (full results minus the held-out range)
//	test.<i>      test inputs      (only the held-out range)
//
// The regression backend later writes test.out.<i> next to them. Artifacts are
// left in place after a run as an audit trail.
package fold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/HatiCode/romcv/pkg/dataset"
	"github.com/HatiCode/romcv/pkg/partition"
	"github.com/HatiCode/romcv/pkg/romerr"
)

// DirName is the name of the fold directory inside a job directory.
const DirName = "crossValidate"

// Artifacts names the four files of one fold.
type Artifacts struct {
	TrainInputs  string
	TrainOutputs string
	TestInputs   string
	TestOutputs  string
}

// Paths returns the artifact paths of fold i inside dir.
func Paths(dir string, i int) Artifacts {
	return Artifacts{
		TrainInputs:  filepath.Join(dir, fmt.Sprintf("rom.in.%d", i)),
		TrainOutputs: filepath.Join(dir, fmt.Sprintf("results.%d", i)),
		TestInputs:   filepath.Join(dir, fmt.Sprintf("test.%d", i)),
		TestOutputs:  filepath.Join(dir, fmt.Sprintf("test.out.%d", i)),
	}
}

// Sets holds the in-memory tables of one fold.
type Sets struct {
	TrainInputs  dataset.Table
	TrainOutputs dataset.Table
	TestInputs   dataset.Table
}

// Split derives the training and test tables of f from the full tables.
func Split(inputs, outputs dataset.Table, f partition.Fold) Sets {
	return Sets{
		TrainInputs:  inputs.Exclude(f.RangeMin, f.RangeMax),
		TrainOutputs: outputs.Exclude(f.RangeMin, f.RangeMax),
		TestInputs:   inputs.Slice(f.RangeMin, f.RangeMax),
	}
}

// Materializer writes fold artifacts into a single directory.
type Materializer struct {
	dir string
}

// NewMaterializer returns a Materializer writing into dir, creating it if
// absent.
func NewMaterializer(dir string) (*Materializer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, romerr.IO("mkdir", dir, err)
	}
	return &Materializer{dir: dir}, nil
}

// Dir returns the fold directory.
func (m *Materializer) Dir() string { return m.dir }

// Materialize writes the training and test tables of f and returns the paths
// of all four fold artifacts. A stale test.out file from an earlier run is
// removed so its presence after dispatch reflects the current invocation.
func (m *Materializer) Materialize(ds *dataset.Dataset, f partition.Fold) (Artifacts, Sets, error) {
	paths := Paths(m.dir, f.Index)
	sets := Split(ds.Inputs, ds.Outputs, f)

	writes := []struct {
		path  string
		table dataset.Table
	}{
		{paths.TrainInputs, sets.TrainInputs},
		{paths.TrainOutputs, sets.TrainOutputs},
		{paths.TestInputs, sets.TestInputs},
	}
	for _, w := range writes {
		if err := dataset.WriteTable(w.path, w.table); err != nil {
			return Artifacts{}, Sets{}, fmt.Errorf("fold %d: %w", f.Index, err)
		}
	}

	if err := os.Remove(paths.TestOutputs); err != nil && !os.IsNotExist(err) {
		return Artifacts{}, Sets{}, romerr.IO("remove", paths.TestOutputs, err)
	}

	return paths, sets, nil
}
