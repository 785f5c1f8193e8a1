package flownet_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	fn "github.com/tsfold/flownet"
)

func TestLoadRunConfig(t *testing.T) {
	c, err := fn.LoadRunConfig(strings.NewReader(`
models:
  source: spike-gen
  dense: dense-float
steps: 100
blocking: true
buffer: 16
`))
	require.NoError(t, err)
	assert.Equal(t, "spike-gen", c.Models["source"])
	assert.Equal(t, "dense-float", c.Models["dense"])
	assert.Equal(t, 100, c.Steps)
	assert.True(t, c.Blocking)
	assert.Equal(t, 16, c.Buffer)
	assert.Equal(t, fn.RunSteps{Steps: 100, Blocking: true}, c.Condition())
}

func TestLoadRunConfig_errors(t *testing.T) {
	_, err := fn.LoadRunConfig(strings.NewReader("steps: -3\n"))
	assert.Error(t, err, "negative step count")

	_, err = fn.LoadRunConfig(strings.NewReader("stepz: 3\n"))
	assert.Error(t, err, "unknown field")
}

func TestFileConfig_condition(t *testing.T) {
	c := &fn.FileConfig{}
	assert.Equal(t, fn.RunContinuous{}, c.Condition())
	c.Steps = 5
	assert.Equal(t, fn.RunSteps{Steps: 5}, c.Condition())
}

func TestFileConfig_select(t *testing.T) {
	net := fn.NewNet()
	p := net.NewProcess("p")
	first := fn.Model{Name: "first", Mount: noop.Mount}
	second := fn.Model{Name: "second", Mount: noop.Mount}

	c := &fn.FileConfig{Models: map[string]string{"p": "second"}}
	m, err := c.Select(p, []fn.Model{first, second})
	require.NoError(t, err)
	assert.Equal(t, "second", m.Name)

	// processes absent from the map fall back to the first model
	m, err = c.Select(net.NewProcess("q"), []fn.Model{first, second})
	require.NoError(t, err)
	assert.Equal(t, "first", m.Name)

	c = &fn.FileConfig{Models: map[string]string{"p": "third"}}
	_, err = c.Select(p, []fn.Model{first, second})
	assert.Error(t, err)
}

func TestLoadRunConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("steps: 7\n"), 0o644))
	c, err := fn.LoadRunConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7, c.Steps)

	_, err = fn.LoadRunConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
