package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/HatiCode/romcv/pkg/dataset"
	"github.com/HatiCode/romcv/pkg/regression"
	"github.com/HatiCode/romcv/pkg/romerr"
)

// Export artifact extensions, keyed by executable mode.
var exportExtensions = []struct {
	mode string
	ext  string
}{
	{regression.ModeCoefficients, ".co"},
	{regression.ModeACM, ".acmf"},
}

// Export fits the method on the full dataset and writes its coefficient file
// <dir>/<Method>.co and ACM model file <dir>/<Method>.acmf. It returns the
// written paths.
//
// The executable reads the dataset's tables in declared column order, the
// same order recorded in ds.Meta, from a scratch directory removed on return.
func Export(ctx context.Context, backend *regression.ExecBackend, method regression.Method, dir string, ds *dataset.Dataset, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if method != regression.Kriging {
		return nil, romerr.Configf("export is only supported for %s, not %s", regression.Kriging, method)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, romerr.Configf("job directory %q: %v", dir, err)
	}

	scratch, err := os.MkdirTemp(abs, "."+method.String()+"-export-")
	if err != nil {
		return nil, romerr.IO("mkdir", abs, err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logger.Warn("failed to remove export tables", "dir", scratch, "error", err)
		}
	}()

	inputPath, resultsPath := filepath.Join(scratch, "rom.in"), filepath.Join(scratch, "results")
	if err := dataset.WriteTable(inputPath, ds.Inputs); err != nil {
		return nil, err
	}
	if err := dataset.WriteTable(resultsPath, ds.Outputs); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(exportExtensions))
	for _, e := range exportExtensions {
		out := filepath.Join(abs, method.String()+e.ext)
		if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
			return paths, romerr.IO("remove", out, err)
		}

		req := regression.Request{
			Method:       method,
			NumIn:        ds.NumIn(),
			NumOut:       ds.NumOut(),
			TrainSize:    ds.NumSim(),
			TrainInputs:  inputPath,
			TrainOutputs: resultsPath,
			Output:       out,
			WorkDir:      abs,
			Meta:         ds.Meta,
		}

		start := time.Now()
		if err := backend.Export(ctx, req, e.mode); err != nil {
			return paths, err
		}
		if _, err := os.Stat(out); err != nil {
			return paths, romerr.Backendf("%s export %s: no output file %s: %v", method, e.mode, out, err)
		}

		logger.Info("exported model",
			"method", method.String(),
			"mode", e.mode,
			"path", out,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		paths = append(paths, out)
	}
	return paths, nil
}
