package flownet

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// A RunConfig selects which registered model each process executes.
type RunConfig interface {
	// Select picks one of the process's registered models. Returning an
	// error aborts compilation.
	Select(p *Process, models []Model) (Model, error)
}

// FirstModel is a RunConfig selecting the first registered model of
// every process.
type FirstModel struct{}

// Select implements RunConfig.
func (FirstModel) Select(p *Process, models []Model) (Model, error) {
	if len(models) == 0 {
		return Model{}, errors.New("no model registered")
	}
	return models[0], nil
}

// ModelMap is a RunConfig mapping process names to model names.
// Processes absent from the map fall back to their first registered
// model.
type ModelMap map[string]string

// Select implements RunConfig.
func (m ModelMap) Select(p *Process, models []Model) (Model, error) {
	name, ok := m[p.Name()]
	if !ok {
		return FirstModel{}.Select(p, models)
	}
	for _, mdl := range models {
		if mdl.Name == name {
			return mdl, nil
		}
	}
	return Model{}, errors.Errorf("no model named %q registered", name)
}

// A RunCondition tells Executable.Run when to return control.
type RunCondition interface {
	runCondition()
}

// RunSteps runs every process for a fixed number of timesteps. With
// Blocking set, Run returns once all processes completed the steps;
// otherwise Run returns immediately and Wait collects completion.
type RunSteps struct {
	Steps    int
	Blocking bool
}

func (RunSteps) runCondition() {}

// RunContinuous runs the network until Pause or Stop is called. Run
// always returns immediately.
type RunContinuous struct{}

func (RunContinuous) runCondition() {}

// A FileConfig is a run configuration loaded from YAML. It selects
// models by process name and carries run settings:
//
//	models:
//	  source: spike-gen
//	  dense:  dense-float
//	steps: 100
//	blocking: true
//	buffer: 64
type FileConfig struct {
	Models   map[string]string `yaml:"models"`
	Steps    int               `yaml:"steps"`
	Blocking bool              `yaml:"blocking"`
	Buffer   int               `yaml:"buffer"`
}

// Select implements RunConfig.
func (c *FileConfig) Select(p *Process, models []Model) (Model, error) {
	return ModelMap(c.Models).Select(p, models)
}

// Condition returns the run condition described by the file: RunSteps
// when a step count is given, RunContinuous otherwise.
func (c *FileConfig) Condition() RunCondition {
	if c.Steps > 0 {
		return RunSteps{Steps: c.Steps, Blocking: c.Blocking}
	}
	return RunContinuous{}
}

// LoadRunConfig reads a YAML run configuration.
func LoadRunConfig(r io.Reader) (*FileConfig, error) {
	var c FileConfig
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, errors.Wrap(err, "decode run config")
	}
	if c.Steps < 0 {
		return nil, errors.Errorf("negative step count %d", c.Steps)
	}
	return &c, nil
}

// LoadRunConfigFile reads a YAML run configuration from a file.
func LoadRunConfigFile(path string) (*FileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open run config")
	}
	defer f.Close()
	c, err := LoadRunConfig(f)
	return c, errors.Wrapf(err, "file %s", path)
}
