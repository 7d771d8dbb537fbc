package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dqcsim/dqcsim-go/plugin"
)

func TestValidatePipelineRequiresExactlyOneFrontendAndBackend(t *testing.T) {
	err := ValidatePipeline([]PluginConfig{
		{Type: plugin.Operator, Name: "op1"},
	})
	assert.Error(t, err)

	err = ValidatePipeline([]PluginConfig{
		{Type: plugin.Frontend, Name: "front"},
		{Type: plugin.Frontend, Name: "front2"},
		{Type: plugin.Backend, Name: "back"},
	})
	assert.Error(t, err)
}

func TestValidatePipelineRejectsDuplicateNames(t *testing.T) {
	err := ValidatePipeline([]PluginConfig{
		{Type: plugin.Frontend, Name: "x"},
		{Type: plugin.Backend, Name: "x"},
	})
	assert.Error(t, err)
}

func TestValidatePipelineAccepts(t *testing.T) {
	err := ValidatePipeline([]PluginConfig{
		{Type: plugin.Frontend, Name: "front"},
		{Type: plugin.Operator, Name: "op1"},
		{Type: plugin.Backend, Name: "back"},
	})
	assert.NoError(t, err)
}

func TestAssignDefaultNames(t *testing.T) {
	plugins := []PluginConfig{
		{Type: plugin.Frontend},
		{Type: plugin.Operator},
		{Type: plugin.Operator},
		{Type: plugin.Backend},
	}
	require.NoError(t, AssignDefaultNames(plugins))
	assert.Equal(t, "front", plugins[0].Name)
	assert.Equal(t, "op1", plugins[1].Name)
	assert.Equal(t, "op2", plugins[2].Name)
	assert.Equal(t, "back", plugins[3].Name)
}

func TestAssignDefaultNamesDetectsCollisionWithExplicitName(t *testing.T) {
	plugins := []PluginConfig{
		{Type: plugin.Frontend, Name: "op1"},
		{Type: plugin.Operator},
		{Type: plugin.Backend},
	}
	assert.Error(t, AssignDefaultNames(plugins))
}

func TestLoadConfigParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sim.toml")
	contents := `
master_seed = 33

[[plugins]]
type = "frontend"
name = "front"
path = "./dqcsim-null-frontend"

[[plugins]]
type = "backend"
name = "back"
path = "./dqcsim-null-backend"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(33), cfg.MasterSeed)
	require.Len(t, cfg.Plugins, 2)
	assert.Equal(t, plugin.Frontend, cfg.Plugins[0].Type)
	assert.Equal(t, plugin.Backend, cfg.Plugins[1].Type)
}

func TestLoadConfigRejectsUnknownType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sim.toml")
	contents := `
master_seed = 1

[[plugins]]
type = "nonsense"
path = "./x"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
