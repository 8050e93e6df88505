package regression

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HatiCode/romcv/pkg/dataset"
	"github.com/HatiCode/romcv/pkg/romerr"
)

func TestMonomials(t *testing.T) {
	tests := []struct {
		n, order, want int
	}{
		{n: 1, order: 1, want: 2},
		{n: 2, order: 1, want: 3},
		{n: 2, order: 2, want: 6},
		{n: 3, order: 3, want: 20},
		{n: 4, order: 4, want: 70},
	}
	for _, tt := range tests {
		terms := Monomials(tt.n, tt.order)
		assert.Len(t, terms, tt.want, "n=%d order=%d", tt.n, tt.order)

		seen := make(map[[4]int]bool)
		for _, exps := range terms {
			var key [4]int
			total := 0
			for j, e := range exps {
				key[j] = e
				total += e
			}
			assert.LessOrEqual(t, total, tt.order)
			assert.False(t, seen[key], "duplicate term %v", exps)
			seen[key] = true
		}
	}

	assert.Equal(t, [][]int{{0, 0}, {1, 0}, {0, 1}}, Monomials(2, 1))
}

func TestPolynomialBackend_RecoversExactPolynomial(t *testing.T) {
	tests := []struct {
		name   string
		method Method
		f      func(x1, x2 float64) float64
	}{
		{
			name:   "linear",
			method: Linear,
			f:      func(x1, x2 float64) float64 { return 2 + 3*x1 - x2 },
		},
		{
			name:   "quadratic",
			method: Quadratic,
			f:      func(x1, x2 float64) float64 { return 1 + x1*x1 - 0.5*x1*x2 },
		},
		{
			name:   "cubic",
			method: Cubic,
			f:      func(x1, x2 float64) float64 { return x1*x1*x1 - x2 + 4 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trainIn := dataset.Table{Header: []string{"x1", "x2"}}
			trainOut := dataset.Table{Header: []string{"y", "z"}}
			for i := 0; i < 6; i++ {
				for j := 0; j < 5; j++ {
					x1, x2 := float64(i), float64(j)*2
					trainIn.Rows = append(trainIn.Rows, []float64{x1, x2})
					trainOut.Rows = append(trainOut.Rows, []float64{tt.f(x1, x2), -tt.f(x1, x2)})
				}
			}
			test := dataset.Table{
				Header: []string{"x1", "x2"},
				Rows:   [][]float64{{0.5, 1}, {4.25, 7.5}},
			}
			meta := dataset.Metadata{Mins: []float64{0, 0}, Maxs: []float64{5, 8}}

			req := writeFold(t, t.TempDir(), tt.method, trainIn, trainOut, test, meta)
			require.NoError(t, PolynomialBackend{}.Predict(context.Background(), req))

			got, err := dataset.ReadTable(req.Output)
			require.NoError(t, err)
			assert.Equal(t, []string{"y", "z"}, got.Header)
			require.Equal(t, 2, got.Len())
			for i, row := range test.Rows {
				want := tt.f(row[0], row[1])
				assert.InDelta(t, want, got.Rows[i][0], 1e-8)
				assert.InDelta(t, -want, got.Rows[i][1], 1e-8)
			}
		})
	}
}

func TestPolynomialBackend_DegenerateBounds(t *testing.T) {
	trainIn := dataset.Table{Header: []string{"x", "c"}, Rows: [][]float64{{0, 7}, {1, 7}, {2, 7}}}
	trainOut := dataset.Table{Header: []string{"y"}, Rows: [][]float64{{1}, {3}, {5}}}
	test := dataset.Table{Header: []string{"x", "c"}, Rows: [][]float64{{1.5, 7}}}
	meta := dataset.Metadata{Mins: []float64{0, 7}, Maxs: []float64{2, 7}}

	req := writeFold(t, t.TempDir(), Linear, trainIn, trainOut, test, meta)
	require.NoError(t, PolynomialBackend{}.Predict(context.Background(), req))

	got, err := dataset.ReadTable(req.Output)
	require.NoError(t, err)
	assert.InDelta(t, 4, got.Rows[0][0], 1e-9)
}

func TestPolynomialBackend_Errors(t *testing.T) {
	trainIn := dataset.Table{Header: []string{"x"}, Rows: [][]float64{{0}, {1}}}
	trainOut := dataset.Table{Header: []string{"y"}, Rows: [][]float64{{0}, {1}}}
	test := dataset.Table{Header: []string{"x"}, Rows: [][]float64{{0.5}}}

	t.Run("not polynomial", func(t *testing.T) {
		req := writeFold(t, t.TempDir(), Kriging, trainIn, trainOut, test, dataset.Metadata{Mins: []float64{0}, Maxs: []float64{1}})
		err := PolynomialBackend{}.Predict(context.Background(), req)
		assert.True(t, errors.Is(err, romerr.ErrInvalidConfiguration), "got %v", err)
	})

	t.Run("no training records", func(t *testing.T) {
		empty := dataset.Table{Header: []string{"x"}}
		req := writeFold(t, t.TempDir(), Linear, empty, dataset.Table{Header: []string{"y"}}, test, dataset.Metadata{Mins: []float64{0}, Maxs: []float64{1}})
		err := PolynomialBackend{}.Predict(context.Background(), req)
		assert.True(t, errors.Is(err, romerr.ErrBackend), "got %v", err)
	})

	t.Run("bounds mismatch", func(t *testing.T) {
		req := writeFold(t, t.TempDir(), Linear, trainIn, trainOut, test, dataset.Metadata{})
		err := PolynomialBackend{}.Predict(context.Background(), req)
		assert.True(t, errors.Is(err, romerr.ErrInvalidConfiguration), "got %v", err)
	})

	t.Run("missing training file", func(t *testing.T) {
		req := writeFold(t, t.TempDir(), Linear, trainIn, trainOut, test, dataset.Metadata{Mins: []float64{0}, Maxs: []float64{1}})
		req.TrainOutputs += ".missing"
		err := PolynomialBackend{}.Predict(context.Background(), req)
		assert.True(t, errors.Is(err, romerr.ErrIO), "got %v", err)
	})
}
