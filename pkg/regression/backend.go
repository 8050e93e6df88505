// Package regression invokes the surrogate-model backends that fit a fold's
// training set and predict its test set.
//
// A backend is treated as a black box. Whatever it does internally, the only
// success signal the engine trusts is the presence of the prediction artifact
// at Request.Output after Predict returns. The Dispatcher enforces that
// contract for every backend it holds.
//
// Three backend kinds are provided:
//   - ExecBackend runs an external executable (Kriging, MARS, ANN, ...)
//   - HTTPBackend posts the fold to a remote model service
//   - PolynomialBackend fits a least-squares polynomial in process
package regression

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/HatiCode/romcv/pkg/dataset"
	"github.com/HatiCode/romcv/pkg/romerr"
)

// Request describes one fold's regression job.
type Request struct {
	Method Method
	Fold   int

	NumIn     int
	NumOut    int
	TrainSize int
	NumTest   int

	TrainInputs  string
	TrainOutputs string
	TestInputs   string
	Output       string

	// WorkDir is the job directory. Executables run with it as their
	// working directory.
	WorkDir string

	Meta dataset.Metadata
}

// Backend fits a surrogate on the request's training files and writes
// predictions for its test file to Request.Output.
type Backend interface {
	Predict(ctx context.Context, req Request) error
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, req Request) error

// Predict calls f.
func (f BackendFunc) Predict(ctx context.Context, req Request) error { return f(ctx, req) }

// Dispatcher routes requests to the backend registered for their method.
type Dispatcher struct {
	backends map[Method]Backend
}

// NewDispatcher returns a Dispatcher over the given dispatch table.
func NewDispatcher(backends map[Method]Backend) *Dispatcher {
	d := &Dispatcher{backends: make(map[Method]Backend, len(backends))}
	for m, b := range backends {
		d.backends[m] = b
	}
	return d
}

// Register adds or replaces the backend for m.
func (d *Dispatcher) Register(m Method, b Backend) {
	d.backends[m] = b
}

// Backend returns the backend registered for m.
func (d *Dispatcher) Backend(m Method) (Backend, bool) {
	b, ok := d.backends[m]
	return b, ok
}

// Dispatch runs the backend for req.Method and then checks that the
// prediction artifact exists. An unclassified backend error is reported as
// romerr.ErrBackend.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) error {
	b, ok := d.backends[req.Method]
	if !ok {
		return romerr.Configf("no backend registered for method %s", req.Method)
	}

	if err := b.Predict(ctx, req); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%s fold %d: %w", req.Method, req.Fold, err)
		}
		if romerr.Kind(err) == "unknown" {
			err = fmt.Errorf("%w: %w", romerr.ErrBackend, err)
		}
		return fmt.Errorf("%s fold %d: %w", req.Method, req.Fold, err)
	}

	if _, err := os.Stat(req.Output); err != nil {
		return romerr.Backendf("%s fold %d: normalization failed, no prediction file %s: %v", req.Method, req.Fold, req.Output, err)
	}
	return nil
}
