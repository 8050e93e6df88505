// Package dataset holds the simulation records a cross-validation run works on.
//
// A Dataset pairs the full training-input table with the ground-truth results
// table and the declared parameter metadata. It is populated once at the start
// of a run and never mutated afterwards; every later stage derives new tables
// from it.
//
// Column order is significant. When declared input or output names are a
// permutation of a table header, the table's columns are reordered to the
// declared order so names, bounds and values always line up.
package dataset

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/HatiCode/romcv/pkg/romerr"
)

// Metadata describes the parameters of a dataset.
type Metadata struct {
	InputNames  []string
	OutputNames []string

	// Mins and Maxs are per-input bounds, aligned with InputNames. Some
	// backends normalize inputs to [0,1] with them.
	Mins []float64
	Maxs []float64
}

// Dataset is the read-only set of simulation records for one run.
type Dataset struct {
	Inputs  Table
	Outputs Table
	Meta    Metadata
}

// Load reads the input and results tables and validates them against meta.
// Zero-valued fields of meta are filled from the tables.
func Load(inputPath, resultsPath string, meta Metadata) (*Dataset, error) {
	inputs, err := ReadTable(inputPath)
	if err != nil {
		return nil, err
	}
	outputs, err := ReadTable(resultsPath)
	if err != nil {
		return nil, err
	}
	return New(inputs, outputs, meta)
}

// New validates the tables against meta and returns the dataset.
func New(inputs, outputs Table, meta Metadata) (*Dataset, error) {
	if inputs.Len() == 0 {
		return nil, romerr.Configf("dataset has no simulations")
	}
	if inputs.Len() != outputs.Len() {
		return nil, romerr.Configf("input table has %d rows but results table has %d", inputs.Len(), outputs.Len())
	}

	var err error
	inputs, meta.InputNames, err = align(inputs, meta.InputNames, "input")
	if err != nil {
		return nil, err
	}
	outputs, meta.OutputNames, err = align(outputs, meta.OutputNames, "output")
	if err != nil {
		return nil, err
	}

	if len(meta.Mins) == 0 && len(meta.Maxs) == 0 {
		meta.Mins, meta.Maxs = observedBounds(inputs)
	}
	if len(meta.Mins) != inputs.Width() || len(meta.Maxs) != inputs.Width() {
		return nil, romerr.Configf("declared %d mins and %d maxs for %d inputs", len(meta.Mins), len(meta.Maxs), inputs.Width())
	}
	for j := range meta.Mins {
		if meta.Mins[j] > meta.Maxs[j] {
			return nil, romerr.Configf("input %q: min %v > max %v", meta.InputNames[j], meta.Mins[j], meta.Maxs[j])
		}
	}

	return &Dataset{Inputs: inputs, Outputs: outputs, Meta: meta}, nil
}

// NumSim returns the number of simulation records.
func (d *Dataset) NumSim() int { return d.Inputs.Len() }

// NumIn returns the number of input parameters.
func (d *Dataset) NumIn() int { return d.Inputs.Width() }

// NumOut returns the number of output variables.
func (d *Dataset) NumOut() int { return d.Outputs.Width() }

// Fingerprint returns an xxHash64 digest of both tables, headers included.
// Two datasets with the same fingerprint produce the same folds.
func (d *Dataset) Fingerprint() uint64 {
	h := xxhash.New()
	var buf [8]byte
	for _, t := range []Table{d.Inputs, d.Outputs} {
		for _, name := range t.Header {
			_, _ = h.WriteString(name)
			_, _ = h.Write([]byte{0})
		}
		for _, row := range t.Rows {
			for _, v := range row {
				binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
				_, _ = h.Write(buf[:])
			}
		}
	}
	return h.Sum64()
}

// align reorders t to the declared column names. With no declaration the
// header is taken as is.
func align(t Table, declared []string, kind string) (Table, []string, error) {
	if len(declared) == 0 {
		return t, t.Header, nil
	}
	if len(declared) != t.Width() {
		return Table{}, nil, romerr.Configf("declared %d %s names but table has %d columns", len(declared), kind, t.Width())
	}
	if sameOrder(declared, t.Header) {
		return t, declared, nil
	}
	reordered, err := t.SelectColumns(declared)
	if err != nil {
		return Table{}, nil, err
	}
	return reordered, declared, nil
}

func sameOrder(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func observedBounds(t Table) ([]float64, []float64) {
	mins := make([]float64, t.Width())
	maxs := make([]float64, t.Width())
	for j := range mins {
		mins[j] = math.Inf(1)
		maxs[j] = math.Inf(-1)
	}
	for _, row := range t.Rows {
		for j, v := range row {
			mins[j] = math.Min(mins[j], v)
			maxs[j] = math.Max(maxs[j], v)
		}
	}
	return mins, maxs
}
