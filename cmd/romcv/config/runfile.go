package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/HatiCode/romcv/pkg/dataset"
	"github.com/HatiCode/romcv/pkg/regression"
	"github.com/HatiCode/romcv/pkg/romerr"
)

// RunFile is the YAML description of a job: its declared parameters and the
// backend serving each regression method.
//
//	inputs:
//	  - {name: x1, min: 0, max: 1}
//	  - {name: x2, min: -5, max: 5}
//	outputs: [temperature, flux]
//	backends:
//	  Kriging:
//	    executable: /opt/rom/kriging
//	  ANN:
//	    url: http://ann-service:8000/predict
//	    valuePath: result.predictions
type RunFile struct {
	Inputs   []InputSpec            `yaml:"inputs"`
	Outputs  []string               `yaml:"outputs"`
	Backends map[string]BackendSpec `yaml:"backends"`
}

// InputSpec declares one input parameter and its bounds. Bounds are given
// for every input or for none; without them the observed ranges are used.
type InputSpec struct {
	Name string   `yaml:"name"`
	Min  *float64 `yaml:"min"`
	Max  *float64 `yaml:"max"`
}

func (in InputSpec) bounded() bool { return in.Min != nil && in.Max != nil }

// BackendSpec selects the backend of one method. Exactly one of Executable
// and URL is set.
type BackendSpec struct {
	Executable string            `yaml:"executable"`
	Args       []string          `yaml:"args"`
	URL        string            `yaml:"url"`
	ValuePath  string            `yaml:"valuePath"`
	Headers    map[string]string `yaml:"headers"`
}

// LoadRunFile reads and validates the run file at path.
func LoadRunFile(path string) (*RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, romerr.IO("read", path, err)
	}

	var rf RunFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, romerr.Configf("parse run file %s: %v", path, err)
	}
	if err := rf.Validate(); err != nil {
		return nil, err
	}
	return &rf, nil
}

// Validate checks names, bounds and backend selections.
func (rf *RunFile) Validate() error {
	seen := make(map[string]bool, len(rf.Inputs))
	for i, in := range rf.Inputs {
		if in.Name == "" {
			return romerr.Configf("inputs[%d]: name cannot be empty", i)
		}
		if seen[in.Name] {
			return romerr.Configf("inputs[%d]: duplicate name %q", i, in.Name)
		}
		seen[in.Name] = true
		if (in.Min == nil) != (in.Max == nil) {
			return romerr.Configf("input %q: min and max must be given together", in.Name)
		}
		if in.bounded() != rf.bounded() {
			return romerr.Configf("input %q: bounds must be given for every input or for none", in.Name)
		}
		if in.bounded() && *in.Min > *in.Max {
			return romerr.Configf("input %q: min %v > max %v", in.Name, *in.Min, *in.Max)
		}
	}
	for i, out := range rf.Outputs {
		if out == "" {
			return romerr.Configf("outputs[%d]: name cannot be empty", i)
		}
	}

	methods := make(map[regression.Method]string, len(rf.Backends))
	for name, b := range rf.Backends {
		m, err := regression.ParseMethod(name)
		if err != nil {
			return romerr.Configf("backends: %v", err)
		}
		if other, ok := methods[m]; ok {
			return romerr.Configf("backends %q and %q both select method %s", other, name, m)
		}
		methods[m] = name
		if (b.Executable == "") == (b.URL == "") {
			return romerr.Configf("backend %q: exactly one of executable or url must be set", name)
		}
	}
	return nil
}

// bounded reports whether the first input declares bounds.
func (rf *RunFile) bounded() bool {
	return len(rf.Inputs) > 0 && rf.Inputs[0].bounded()
}

// Metadata returns the declared parameters as dataset metadata. Undeclared
// parts are left empty for the dataset to infer.
func (rf *RunFile) Metadata() dataset.Metadata {
	var meta dataset.Metadata
	if rf == nil {
		return meta
	}
	bounded := rf.bounded()
	for _, in := range rf.Inputs {
		meta.InputNames = append(meta.InputNames, in.Name)
		if bounded && in.bounded() {
			meta.Mins = append(meta.Mins, *in.Min)
			meta.Maxs = append(meta.Maxs, *in.Max)
		}
	}
	meta.OutputNames = append(meta.OutputNames, rf.Outputs...)
	return meta
}

// Backend returns the backend declared for m.
func (rf *RunFile) Backend(m regression.Method) (BackendSpec, bool) {
	if rf == nil {
		return BackendSpec{}, false
	}
	for name, b := range rf.Backends {
		if parsed, err := regression.ParseMethod(name); err == nil && parsed == m {
			return b, true
		}
	}
	return BackendSpec{}, false
}
