package regression

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"text/template"

	"github.com/HatiCode/romcv/pkg/romerr"
)

// Invocation modes understood by the Kriging-style executables.
const (
	ModePredict      = "-i"
	ModeCoefficients = "-c"
	ModeACM          = "-a"
)

// ExecBackend runs an external regression executable and waits for it to
// exit. It never retries and sets no timeout of its own.
//
// With no Args the executable is called as
//
//	path -i numIn numOut trainSize trainInputs trainOutputs output testInputs
//
// Args, when set, replace that layout. Each element is a text/template with
// the fields of TemplateData, for example:
//
//	args: ["--train", "{{.TrainInputs}}", "--out", "{{.Output}}"]
type ExecBackend struct {
	Path   string
	Args   []string
	Logger *slog.Logger
}

// TemplateData is the data available to argument and body templates.
type TemplateData struct {
	Method       string
	Mode         string
	Fold         int
	NumIn        int
	NumOut       int
	TrainSize    int
	NumTest      int
	TrainInputs  string
	TrainOutputs string
	TestInputs   string
	Output       string
	WorkDir      string
}

func templateData(req Request, mode string) TemplateData {
	return TemplateData{
		Method:       req.Method.String(),
		Mode:         mode,
		Fold:         req.Fold,
		NumIn:        req.NumIn,
		NumOut:       req.NumOut,
		TrainSize:    req.TrainSize,
		NumTest:      req.NumTest,
		TrainInputs:  req.TrainInputs,
		TrainOutputs: req.TrainOutputs,
		TestInputs:   req.TestInputs,
		Output:       req.Output,
		WorkDir:      req.WorkDir,
	}
}

// Predict runs the executable in prediction mode. A non-zero exit status is
// logged but not returned: whether the prediction file exists decides the
// outcome.
func (e *ExecBackend) Predict(ctx context.Context, req Request) error {
	return e.run(ctx, req, ModePredict)
}

// Export runs the executable in coefficient (-c) or ACM (-a) mode over the
// request's training files, writing to req.Output.
func (e *ExecBackend) Export(ctx context.Context, req Request, mode string) error {
	if mode != ModeCoefficients && mode != ModeACM {
		return romerr.Configf("unsupported export mode %q", mode)
	}
	return e.run(ctx, req, mode)
}

func (e *ExecBackend) run(ctx context.Context, req Request, mode string) error {
	if e.Path == "" {
		return romerr.Configf("no executable configured for method %s", req.Method)
	}

	args, err := e.arguments(req, mode)
	if err != nil {
		return err
	}

	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cmd := exec.CommandContext(ctx, e.Path, args...)
	cmd.Dir = req.WorkDir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	logger.Debug("running regression executable",
		"method", req.Method.String(),
		"fold", req.Fold,
		"path", e.Path,
		"args", strings.Join(args, " "),
	)

	err = cmd.Run()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return romerr.Backendf("start %s: %v", e.Path, err)
		}
		logger.Warn("regression executable exited with error",
			"method", req.Method.String(),
			"fold", req.Fold,
			"error", err,
			"output", tail(out.String(), 2048),
		)
		return nil
	}

	if out.Len() > 0 {
		logger.Debug("regression executable output", "fold", req.Fold, "output", tail(out.String(), 2048))
	}
	return nil
}

func (e *ExecBackend) arguments(req Request, mode string) ([]string, error) {
	if len(e.Args) == 0 {
		args := []string{
			mode,
			strconv.Itoa(req.NumIn),
			strconv.Itoa(req.NumOut),
			strconv.Itoa(req.TrainSize),
			req.TrainInputs,
			req.TrainOutputs,
			req.Output,
		}
		if mode == ModePredict {
			args = append(args, req.TestInputs)
		}
		return args, nil
	}

	data := templateData(req, mode)
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		rendered, err := renderTemplate(a, data)
		if err != nil {
			return nil, romerr.Configf("render argument %d %q: %v", i, a, err)
		}
		args[i] = rendered
	}
	return args, nil
}

// renderTemplate renders a text template with the given data.
func renderTemplate(tmplStr string, data any) (string, error) {
	if !strings.Contains(tmplStr, "{{") {
		return tmplStr, nil
	}

	tmpl, err := template.New("").Option("missingkey=error").Parse(tmplStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("...%s", s[len(s)-n:])
}
