// Package reassemble concatenates per-fold predictions into one table aligned
// row for row with the ground-truth results.
package reassemble

import (
	"errors"
	"fmt"

	"github.com/HatiCode/romcv/pkg/dataset"
	"github.com/HatiCode/romcv/pkg/romerr"
)

// Merge reads the fold prediction files in fold order and returns a table of
// numSim rows under header.
//
// Each file's first line is skipped whatever it contains, since backends write
// their own header conventions. At most foldSize rows are taken from each
// file, and reading stops once numSim rows are collected. A file holding fewer
// rows than its fold held out is a truncated artifact and fails the merge with
// romerr.ErrBackend, as does a row that does not parse as len(header) numbers.
func Merge(paths []string, foldSize, numSim int, header []string) (dataset.Table, error) {
	if foldSize < 1 || numSim < 1 {
		return dataset.Table{}, romerr.Configf("fold size %d and simulation count %d must be positive", foldSize, numSim)
	}

	width := len(header)
	rows := make([][]float64, 0, numSim)
	for i, path := range paths {
		if len(rows) >= numSim {
			break
		}
		want := min(foldSize, numSim-len(rows))

		got, err := dataset.ReadBody(path, width, want)
		if errors.Is(err, romerr.ErrInvalidConfiguration) {
			return dataset.Table{}, romerr.Backendf("fold %d: malformed prediction file: %v", i, err)
		}
		if err != nil {
			return dataset.Table{}, fmt.Errorf("fold %d: %w", i, err)
		}
		if len(got) < want {
			return dataset.Table{}, romerr.Backendf("fold %d: %s has %d prediction rows, want %d", i, path, len(got), want)
		}
		rows = append(rows, got...)
	}

	if len(rows) != numSim {
		return dataset.Table{}, romerr.Backendf("reassembled %d rows from %d folds, want %d", len(rows), len(paths), numSim)
	}

	h := make([]string, width)
	copy(h, header)
	return dataset.Table{Header: h, Rows: rows}, nil
}

// Write persists the reassembled predictions.
func Write(path string, t dataset.Table) error {
	return dataset.WriteTable(path, t)
}
