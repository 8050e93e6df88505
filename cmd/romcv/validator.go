// Package main implements the cross-validation run.
//
// This file contains the Validator, which drives one run end to end:
//
//	plan → (materialize → dispatch) per fold → reassemble → aggregate → publish
//
// Folds run strictly in index order, one at a time. The first failing stage
// aborts the run; nothing is aggregated from a partial set of folds.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/HatiCode/romcv/cmd/romcv/metrics"
	"github.com/HatiCode/romcv/pkg/dataset"
	"github.com/HatiCode/romcv/pkg/errstats"
	"github.com/HatiCode/romcv/pkg/fold"
	"github.com/HatiCode/romcv/pkg/parity"
	"github.com/HatiCode/romcv/pkg/partition"
	"github.com/HatiCode/romcv/pkg/reassemble"
	"github.com/HatiCode/romcv/pkg/regression"
	"github.com/HatiCode/romcv/pkg/romerr"
	"github.com/HatiCode/romcv/pkg/storage"
)

// Report file names inside <dir>/<Method>/.
const (
	ErrorsFile           = "errors"
	RelativeErrorsFile   = "relative_errors"
	PredictedResultsFile = "predicted_results"
)

// Validator runs k-fold cross-validation of one regression method.
type Validator struct {
	dir        string
	method     regression.Method
	planner    *partition.Planner
	dispatcher *regression.Dispatcher
	aggregator *errstats.Aggregator
	store      storage.Store
	plots      bool
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Result is the outcome of a successful run.
type Result struct {
	Plan      partition.Plan
	Predicted dataset.Table
	Report    errstats.Report
	Snapshot  storage.Snapshot
	OutputDir string
	Plots     []string
}

// NewValidator creates a Validator working in the job directory dir. The
// store and metrics may be nil.
func NewValidator(
	dir string,
	method regression.Method,
	planner *partition.Planner,
	dispatcher *regression.Dispatcher,
	aggregator *errstats.Aggregator,
	store storage.Store,
	plots bool,
	logger *slog.Logger,
	m *metrics.Metrics,
) (*Validator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, romerr.Configf("job directory %q: %v", dir, err)
	}
	if dispatcher == nil {
		return nil, romerr.Configf("no dispatcher for method %s", method)
	}
	if _, ok := dispatcher.Backend(method); !ok {
		return nil, romerr.Configf("no backend registered for method %s", method)
	}

	return &Validator{
		dir:        abs,
		method:     method,
		planner:    planner,
		dispatcher: dispatcher,
		aggregator: aggregator,
		store:      store,
		plots:      plots,
		logger:     logger.With("method", method.String()),
		metrics:    m,
	}, nil
}

// Run cross-validates ds and writes the report files.
func (v *Validator) Run(ctx context.Context, ds *dataset.Dataset) (*Result, error) {
	start := time.Now()

	if _, ok := v.dispatcher.Backend(v.method); !ok {
		err := romerr.Configf("no backend registered for method %s", v.method)
		v.recordError("dispatch", err)
		return nil, err
	}

	plan, err := v.planner.Plan(ds.NumSim())
	if err != nil {
		v.recordError("planner", err)
		return nil, fmt.Errorf("plan: %w", err)
	}
	v.logger.Info("starting cross-validation",
		"simulations", plan.NumSim,
		"inputs", ds.NumIn(),
		"outputs", ds.NumOut(),
		"fold_size", plan.FoldSize,
		"folds", plan.NumFolds,
	)

	mat, err := fold.NewMaterializer(filepath.Join(v.dir, fold.DirName))
	if err != nil {
		v.recordError("materializer", err)
		return nil, fmt.Errorf("materialize: %w", err)
	}

	predictions := make([]string, len(plan.Folds))
	for _, f := range plan.Folds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := v.runFold(ctx, mat, ds, f)
		if err != nil {
			return nil, err
		}
		predictions[f.Index] = out
	}

	predicted, err := reassemble.Merge(predictions, plan.FoldSize, plan.NumSim, ds.Outputs.Header)
	if err != nil {
		v.recordError("reassemble", err)
		return nil, fmt.Errorf("reassemble: %w", err)
	}

	report, err := v.aggregator.Compute(ds.Outputs, predicted, ds.Meta.OutputNames)
	if err != nil {
		v.recordError("aggregate", err)
		return nil, fmt.Errorf("aggregate: %w", err)
	}

	res := &Result{
		Plan:      plan,
		Predicted: predicted,
		Report:    report,
		OutputDir: filepath.Join(v.dir, v.method.String()),
	}
	if err := v.writeReport(res, ds); err != nil {
		v.recordError("report", err)
		return nil, fmt.Errorf("report: %w", err)
	}

	res.Snapshot = v.snapshot(ds, plan, report)
	if v.store != nil {
		if err := v.store.Put(ctx, res.Snapshot); err != nil {
			v.recordError("store", err)
			return nil, fmt.Errorf("store: %w", err)
		}
	}

	duration := time.Since(start)
	if v.metrics != nil {
		v.metrics.SetRunDuration(duration.Seconds())
		for _, o := range report.Outputs {
			v.metrics.SetOutputError(o.Name, o.MeanRelativeErrorPercent, o.MeanSquaredError)
		}
	}
	for _, o := range report.Outputs {
		v.logger.Info("output error",
			"output", o.Name,
			"mre_percent", o.MeanRelativeErrorPercent,
			"mse", o.MeanSquaredError,
			"poisoned", o.Poisoned(),
		)
	}
	v.logger.Info("cross-validation complete",
		"run_id", res.Snapshot.RunID,
		"output_dir", res.OutputDir,
		"total_ms", duration.Milliseconds(),
	)

	return res, nil
}

// runFold writes fold f's artifacts, invokes the backend and returns the path
// of its prediction file.
func (v *Validator) runFold(ctx context.Context, mat *fold.Materializer, ds *dataset.Dataset, f partition.Fold) (string, error) {
	start := time.Now()
	arts, _, err := mat.Materialize(ds, f)
	if err != nil {
		v.recordError("materializer", err)
		return "", fmt.Errorf("materialize: %w", err)
	}
	materializeDuration := time.Since(start)
	if v.metrics != nil {
		v.metrics.RecordMaterialize(materializeDuration.Seconds())
	}
	v.logger.Debug("materialized fold",
		"fold", f.Index,
		"range_min", f.RangeMin,
		"range_max", f.RangeMax,
		"duration_ms", materializeDuration.Milliseconds(),
	)

	req := regression.Request{
		Method:       v.method,
		Fold:         f.Index,
		NumIn:        ds.NumIn(),
		NumOut:       ds.NumOut(),
		TrainSize:    f.TrainSize,
		NumTest:      f.HeldOut(),
		TrainInputs:  arts.TrainInputs,
		TrainOutputs: arts.TrainOutputs,
		TestInputs:   arts.TestInputs,
		Output:       arts.TestOutputs,
		WorkDir:      v.dir,
		Meta:         ds.Meta,
	}

	start = time.Now()
	if err := v.dispatcher.Dispatch(ctx, req); err != nil {
		v.recordError("dispatch", err)
		return "", fmt.Errorf("dispatch: %w", err)
	}
	predictDuration := time.Since(start)
	if v.metrics != nil {
		v.metrics.RecordPredict(predictDuration.Seconds())
	}

	v.logger.Info("fold complete",
		"fold", f.Index,
		"train_size", f.TrainSize,
		"held_out", f.HeldOut(),
		"materialize_ms", materializeDuration.Milliseconds(),
		"predict_ms", predictDuration.Milliseconds(),
	)
	return arts.TestOutputs, nil
}

func (v *Validator) writeReport(res *Result, ds *dataset.Dataset) error {
	if err := os.MkdirAll(res.OutputDir, 0o755); err != nil {
		return romerr.IO("mkdir", res.OutputDir, err)
	}
	if err := reassemble.Write(filepath.Join(res.OutputDir, PredictedResultsFile), res.Predicted); err != nil {
		return err
	}
	if err := errstats.WriteErrors(filepath.Join(res.OutputDir, ErrorsFile), res.Report); err != nil {
		return err
	}
	if err := errstats.WriteRelativeErrors(filepath.Join(res.OutputDir, RelativeErrorsFile), res.Report); err != nil {
		return err
	}

	if v.plots {
		paths, err := parity.Write(res.OutputDir, v.method.String(), ds.Outputs, res.Predicted, res.Report.Outputs)
		if err != nil {
			return err
		}
		res.Plots = paths
		v.logger.Debug("wrote parity plots", "count", len(paths))
	}
	return nil
}

func (v *Validator) snapshot(ds *dataset.Dataset, plan partition.Plan, report errstats.Report) storage.Snapshot {
	return storage.Snapshot{
		RunID:        uuid.NewString(),
		Method:       v.method.String(),
		Fingerprint:  fmt.Sprintf("%016x", ds.Fingerprint()),
		GeneratedAt:  time.Now(),
		NumSim:       plan.NumSim,
		FoldSize:     plan.FoldSize,
		NumFolds:     plan.NumFolds,
		FoldFraction: v.planner.FoldFraction(),
		Tolerance:    v.aggregator.Tolerance(),
		Outputs:      storage.Summaries(report.Outputs),
	}
}

func (v *Validator) recordError(component string, err error) {
	if v.metrics != nil {
		v.metrics.RecordError(component, romerr.Kind(err))
	}
}
