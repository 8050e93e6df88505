package storage

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/HatiCode/romcv/pkg/errstats"
)

// Snapshot is the published outcome of one cross-validation run.
type Snapshot struct {
	RunID       string    `json:"runId"`
	Method      string    `json:"method"`
	Fingerprint string    `json:"fingerprint"`
	GeneratedAt time.Time `json:"generatedAt"`

	NumSim       int     `json:"numSim"`
	FoldSize     int     `json:"foldSize"`
	NumFolds     int     `json:"numFolds"`
	FoldFraction float64 `json:"foldFraction"`
	Tolerance    float64 `json:"tolerance"`

	Outputs []OutputSummary `json:"outputs"`
}

// OutputSummary is the reduced error of one output variable.
type OutputSummary struct {
	Name string `json:"name"`

	// MeanRelativeErrorPercent is NaN (JSON null) when the column was
	// poisoned by an undefined relative error.
	MeanRelativeErrorPercent Number `json:"meanRelativeErrorPercent"`
	MeanSquaredError         Number `json:"meanSquaredError"`
	ValidRows                int    `json:"validRows"`
}

// Summaries converts aggregated output errors into their stored form.
func Summaries(outputs []errstats.OutputError) []OutputSummary {
	out := make([]OutputSummary, len(outputs))
	for i, o := range outputs {
		out[i] = OutputSummary{
			Name:                     o.Name,
			MeanRelativeErrorPercent: Number(o.MeanRelativeErrorPercent),
			MeanSquaredError:         Number(o.MeanSquaredError),
			ValidRows:                o.ValidRows,
		}
	}
	return out
}

// Number is a float64 whose JSON form is null when it is NaN or infinite.
type Number float64

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// UnmarshalJSON implements json.Unmarshaler. null decodes to NaN.
func (n *Number) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = Number(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// Store keeps the latest snapshot per regression method.
type Store interface {
	Put(ctx context.Context, snapshot Snapshot) error
	GetLatest(ctx context.Context, method string) (Snapshot, bool, error)
}
