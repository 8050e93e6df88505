// Package errstats computes per-output error statistics of reassembled
// predictions against ground truth.
//
// For each cell the squared error is (a-p)^2 and the relative error is
// |(a-p)/a|, defined only when |a| is strictly greater than the tolerance. An
// undefined relative error is NaN.
//
// The mean relative error of an output is NaN-propagating, not NaN-skipping:
// the first NaN cell poisons the running sum for the rest of that column. The
// mean squared error of the same column is unaffected and stays finite for
// finite inputs.
package errstats

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/HatiCode/romcv/pkg/dataset"
	"github.com/HatiCode/romcv/pkg/romerr"
)

// DefaultTolerance is the magnitude at or below which a reference value is
// treated as zero.
const DefaultTolerance = 1e-6

// OutputError is the reduced error of one output variable.
type OutputError struct {
	Name string `json:"name"`

	// MeanRelativeErrorPercent is NaN when any cell of the column has an
	// undefined relative error.
	MeanRelativeErrorPercent float64 `json:"meanRelativeErrorPercent"`
	MeanSquaredError         float64 `json:"meanSquaredError"`

	// ValidRows is the number of rows summed before the column was
	// poisoned, or every row if it never was.
	ValidRows int `json:"validRows"`
}

// Poisoned reports whether the mean relative error is undefined.
func (o OutputError) Poisoned() bool { return math.IsNaN(o.MeanRelativeErrorPercent) }

// Report is the result of one aggregation.
type Report struct {
	Outputs []OutputError

	// Relative holds the per-cell relative errors, one row per simulation
	// and one column per output, NaN where undefined.
	Relative [][]float64
}

// Aggregator computes error reports with a fixed tolerance.
type Aggregator struct {
	tolerance float64
}

// New returns an Aggregator. The tolerance must be a non-negative number.
func New(tolerance float64) (*Aggregator, error) {
	if math.IsNaN(tolerance) || math.IsInf(tolerance, 0) || tolerance < 0 {
		return nil, romerr.Configf("tolerance %v must be a non-negative number", tolerance)
	}
	return &Aggregator{tolerance: tolerance}, nil
}

// Tolerance returns the configured tolerance.
func (a *Aggregator) Tolerance() float64 { return a.tolerance }

// RelativeError returns |(actual-predicted)/actual|, or NaN when |actual| is
// not strictly greater than the tolerance.
func (a *Aggregator) RelativeError(actual, predicted float64) float64 {
	if !(math.Abs(actual) > a.tolerance) {
		return math.NaN()
	}
	return math.Abs((actual - predicted) / actual)
}

// Compute compares predicted against actual cell by cell. Both tables must
// have the same shape. Names label the outputs in the report; when empty the
// header of actual is used.
func (a *Aggregator) Compute(actual, predicted dataset.Table, names []string) (Report, error) {
	if len(names) == 0 {
		names = actual.Header
	}
	numSim, numOut := actual.Len(), len(names)
	if numSim == 0 {
		return Report{}, romerr.Configf("no simulations to aggregate")
	}
	if predicted.Len() != numSim {
		return Report{}, romerr.Configf("predicted table has %d rows, want %d", predicted.Len(), numSim)
	}

	relative := make([][]float64, numSim)
	sumRel := make([]float64, numOut)
	sumSq := make([]float64, numOut)
	valid := make([]int, numOut)

	for i := 0; i < numSim; i++ {
		act, pred := actual.Rows[i], predicted.Rows[i]
		if len(act) != numOut || len(pred) != numOut {
			return Report{}, romerr.Configf("row %d has %d actual and %d predicted values, want %d", i, len(act), len(pred), numOut)
		}
		relative[i] = make([]float64, numOut)
		for j := 0; j < numOut; j++ {
			diff := act[j] - pred[j]
			sumSq[j] += diff * diff

			rel := a.RelativeError(act[j], pred[j])
			relative[i][j] = rel

			if math.IsNaN(rel) || math.IsNaN(sumRel[j]) {
				sumRel[j] = math.NaN()
				continue
			}
			sumRel[j] += rel
			valid[j]++
		}
	}

	outputs := make([]OutputError, numOut)
	for j, name := range names {
		mre := sumRel[j]
		if !math.IsNaN(mre) {
			mre = mre * 100 / float64(valid[j])
		}
		outputs[j] = OutputError{
			Name:                     name,
			MeanRelativeErrorPercent: mre,
			MeanSquaredError:         sumSq[j] / float64(numSim),
			ValidRows:                valid[j],
		}
	}

	return Report{Outputs: outputs, Relative: relative}, nil
}

// WriteErrors writes one "name,mre,mse" line per output to path. A poisoned
// mean relative error is written as nan.
func WriteErrors(path string, r Report) error {
	return writeFile(path, func(w io.Writer) error {
		for _, o := range r.Outputs {
			_, err := fmt.Fprintf(w, "%s,%s,%s\n", o.Name,
				dataset.FormatFloat(o.MeanRelativeErrorPercent),
				dataset.FormatFloat(o.MeanSquaredError))
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteRelativeErrors writes the per-cell relative errors to path: a header
// of tab-separated output names, then one tab-separated row per simulation.
func WriteRelativeErrors(path string, r Report) error {
	names := make([]string, len(r.Outputs))
	for j, o := range r.Outputs {
		names[j] = o.Name
	}

	return writeFile(path, func(w io.Writer) error {
		if _, err := io.WriteString(w, strings.Join(names, "\t")+"\n"); err != nil {
			return err
		}
		cells := make([]string, len(names))
		for _, row := range r.Relative {
			for j, v := range row {
				cells[j] = dataset.FormatFloat(v)
			}
			if _, err := io.WriteString(w, strings.Join(cells[:len(row)], "\t")+"\n"); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeFile(path string, fill func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return romerr.IO("create", path, err)
	}
	w := bufio.NewWriter(f)
	if err := fill(w); err != nil {
		f.Close()
		return romerr.IO("write", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return romerr.IO("write", path, err)
	}
	if err := f.Close(); err != nil {
		return romerr.IO("close", path, err)
	}
	return nil
}
