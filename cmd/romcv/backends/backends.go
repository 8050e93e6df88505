// Package backends builds the dispatch table of a run from its configuration.
//
// Resolution order per method:
//  1. a backend declared in the run file (executable or URL)
//  2. the in-process polynomial backend for Linear, Quadratic, Cubic, Poly4
//  3. the -path executable, for the selected method only
//
// A method left unresolved has no backend; dispatching it is a configuration
// error.
package backends

import (
	"log/slog"

	"github.com/HatiCode/romcv/cmd/romcv/config"
	"github.com/HatiCode/romcv/pkg/httpx"
	"github.com/HatiCode/romcv/pkg/regression"
	"github.com/HatiCode/romcv/pkg/romerr"
)

// New returns a dispatcher holding every backend that cfg and rf resolve.
func New(cfg *config.Config, rf *config.RunFile, logger *slog.Logger) (*regression.Dispatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	d := regression.NewDispatcher(nil)
	for _, m := range regression.All() {
		b, err := resolve(cfg, rf, m, logger)
		if err != nil {
			return nil, err
		}
		if b != nil {
			d.Register(m, b)
		}
	}
	return d, nil
}

// Exporter returns the executable backend of the selected method for export
// mode. Only Kriging exports coefficients.
func Exporter(cfg *config.Config, rf *config.RunFile, logger *slog.Logger) (*regression.ExecBackend, error) {
	if cfg.Method != regression.Kriging {
		return nil, romerr.Configf("export is only supported for %s, not %s", regression.Kriging, cfg.Method)
	}
	if spec, ok := rf.Backend(cfg.Method); ok {
		if spec.Executable == "" {
			return nil, romerr.Configf("export needs an executable backend for %s", cfg.Method)
		}
		return &regression.ExecBackend{Path: spec.Executable, Args: spec.Args, Logger: logger}, nil
	}
	if cfg.RegPath == "" {
		return nil, romerr.Configf("export needs -path or a run-file executable for %s", cfg.Method)
	}
	return &regression.ExecBackend{Path: cfg.RegPath, Logger: logger}, nil
}

func resolve(cfg *config.Config, rf *config.RunFile, m regression.Method, logger *slog.Logger) (regression.Backend, error) {
	if spec, ok := rf.Backend(m); ok {
		if spec.URL != "" {
			return httpBackend(cfg, spec)
		}
		return &regression.ExecBackend{Path: spec.Executable, Args: spec.Args, Logger: logger}, nil
	}
	if m.Order() > 0 {
		return regression.PolynomialBackend{}, nil
	}
	if m == cfg.Method && cfg.RegPath != "" {
		return &regression.ExecBackend{Path: cfg.RegPath, Logger: logger}, nil
	}
	return nil, nil
}

func httpBackend(cfg *config.Config, spec config.BackendSpec) (*regression.HTTPBackend, error) {
	b := regression.NewHTTPBackend(spec.URL)
	if spec.ValuePath != "" {
		b.ValuePath = spec.ValuePath
	}
	b.Headers = spec.Headers

	if cfg.BackendTLS.Enabled {
		// Backend calls are not bounded by a timeout.
		client, err := httpx.NewClient(cfg.BackendTLS, 0)
		if err != nil {
			return nil, romerr.Configf("backend tls: %v", err)
		}
		b.HTTPClient = client
	}
	return b, nil
}
