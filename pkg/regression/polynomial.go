package regression

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/HatiCode/romcv/pkg/dataset"
	"github.com/HatiCode/romcv/pkg/romerr"
)

// rankTolerance is the relative singular value cutoff of the least-squares
// solve.
const rankTolerance = 1e-12

// PolynomialBackend fits, per output, a full polynomial of the method's order
// over all inputs by least squares and evaluates it at the test inputs.
//
// Inputs are first mapped to [0,1] with the request's declared bounds. An
// input whose bounds coincide maps to 0. Rank-deficient systems (more terms
// than training records, or collinear terms) get the minimum-norm solution.
type PolynomialBackend struct{}

// Predict implements Backend for Linear, Quadratic, Cubic and Poly4.
func (PolynomialBackend) Predict(ctx context.Context, req Request) error {
	order := req.Method.Order()
	if order == 0 {
		return romerr.Configf("method %s is not a polynomial method", req.Method)
	}

	trainIn, err := dataset.ReadTable(req.TrainInputs)
	if err != nil {
		return err
	}
	trainOut, err := dataset.ReadTable(req.TrainOutputs)
	if err != nil {
		return err
	}
	test, err := dataset.ReadTable(req.TestInputs)
	if err != nil {
		return err
	}
	if trainIn.Len() == 0 {
		return romerr.Backendf("%s: no training records", req.Method)
	}
	if trainIn.Len() != trainOut.Len() {
		return romerr.Backendf("%s: %d training inputs but %d training outputs", req.Method, trainIn.Len(), trainOut.Len())
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	mins, maxs := req.Meta.Mins, req.Meta.Maxs
	if len(mins) != trainIn.Width() || len(maxs) != trainIn.Width() {
		return romerr.Configf("%s: %d bounds for %d inputs", req.Method, len(mins), trainIn.Width())
	}

	terms := Monomials(trainIn.Width(), order)
	a := design(trainIn.Rows, terms, mins, maxs)

	b := mat.NewDense(trainOut.Len(), trainOut.Width(), nil)
	for i, row := range trainOut.Rows {
		b.SetRow(i, row)
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return romerr.Backendf("%s: singular value decomposition did not converge", req.Method)
	}
	var coef mat.Dense
	svd.SolveTo(&coef, b, svd.Rank(rankTolerance))

	header := trainOut.Header
	if test.Len() == 0 {
		return dataset.WriteTable(req.Output, dataset.Table{Header: header})
	}

	var pred mat.Dense
	pred.Mul(design(test.Rows, terms, mins, maxs), &coef)

	rows := make([][]float64, test.Len())
	for i := range rows {
		rows[i] = mat.Row(nil, i, &pred)
	}
	return dataset.WriteTable(req.Output, dataset.Table{Header: header, Rows: rows})
}

// Monomials returns the exponent vectors of every monomial in n variables of
// total degree at most order, constant term first and grouped by degree.
func Monomials(n, order int) [][]int {
	terms := [][]int{make([]int, n)}
	for deg := 1; deg <= order; deg++ {
		exps := make([]int, n)
		var walk func(j, left int)
		walk = func(j, left int) {
			if j == n-1 {
				exps[j] = left
				term := make([]int, n)
				copy(term, exps)
				terms = append(terms, term)
				return
			}
			for e := left; e >= 0; e-- {
				exps[j] = e
				walk(j+1, left-e)
			}
		}
		if n > 0 {
			walk(0, deg)
		}
	}
	return terms
}

func design(rows [][]float64, terms [][]int, mins, maxs []float64) *mat.Dense {
	a := mat.NewDense(len(rows), len(terms), nil)
	x := make([]float64, len(mins))
	for i, row := range rows {
		for j, v := range row {
			x[j] = normalize(v, mins[j], maxs[j])
		}
		for k, exps := range terms {
			term := 1.0
			for j, e := range exps {
				for ; e > 0; e-- {
					term *= x[j]
				}
			}
			a.Set(i, k, term)
		}
	}
	return a
}

func normalize(v, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	return (v - lo) / (hi - lo)
}
