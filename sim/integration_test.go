package sim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dqcsim/dqcsim-go/arb"
	"github.com/dqcsim/dqcsim-go/plugin"
)

// nullPipeline builds a two-plugin frontend/backend config, both
// in-process, with the given callback bundles.
func nullPipeline(frontend, backend plugin.Callbacks) *Config {
	return &Config{
		MasterSeed: 1,
		Plugins: []PluginConfig{
			{Type: plugin.Frontend, TypeName: "frontend", Name: "front", Callbacks: &frontend},
			{Type: plugin.Backend, TypeName: "backend", Name: "back", Callbacks: &backend},
		},
	}
}

// TestNullSimulation reproduces scenario S1: a frontend/backend
// topology where neither plugin does anything. The run completes, no
// gate-stream traffic is observed, and the reproduction log shows
// exactly the auto-inserted Start({}) and Wait the host issues.
func TestNullSimulation(t *testing.T) {
	frontend := plugin.Callbacks{
		Run: func(_ *plugin.Context, arg *arb.ArbData) (*arb.ArbData, error) { return arg, nil },
	}

	sink := NewMemorySink()
	d, err := New(nullPipeline(frontend, plugin.Callbacks{}), sink)
	require.NoError(t, err)
	require.NoError(t, d.Spawn(context.Background()))

	require.NoError(t, d.Start(arb.Empty()))
	result, err := d.Wait()
	require.NoError(t, err)
	require.NotNil(t, result)

	require.NoError(t, d.Teardown(time.Second))

	require.Len(t, sink.Calls, 2)
	assert.Equal(t, "start", sink.Calls[0].Kind)
	assert.Equal(t, "wait", sink.Calls[1].Kind)
}

// TestArbCmdRouting reproduces scenario S6: the host addresses an
// ArbCmd directly to a named plugin (here the operator "op1"), whose
// host-arb callback echoes {iface, operation, data} back as a
// structured value and appends its own name to the argument list.
func TestArbCmdRouting(t *testing.T) {
	// Mirrors cmd/dqcsim-forward-operator's hostArb: echo interface,
	// operation, and value, with the plugin's own name appended as a
	// trailing unstructured argument.
	hostArb := func(_ *plugin.Context, cmd *arb.ArbCmd) (*arb.ArbData, error) {
		var value map[string]interface{}
		if err := cmd.Value(&value); err != nil {
			return nil, err
		}
		echo := map[string]interface{}{
			"x": []interface{}{cmd.Interface, cmd.Operation, value},
		}
		args := append(append([][]byte{}, cmd.Args()...), []byte("op1"))
		return arb.New(echo, args...)
	}

	cfg := &Config{
		MasterSeed: 1,
		Plugins: []PluginConfig{
			{Type: plugin.Frontend, TypeName: "frontend", Name: "front", Callbacks: &plugin.Callbacks{
				Run: func(_ *plugin.Context, arg *arb.ArbData) (*arb.ArbData, error) { return arg, nil },
			}},
			{Type: plugin.Operator, TypeName: "operator", Name: "op1", Callbacks: &plugin.Callbacks{
				HostArb: hostArb,
			}},
			{Type: plugin.Backend, TypeName: "backend", Name: "back", Callbacks: &plugin.Callbacks{}},
		},
	}

	d, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, d.Spawn(context.Background()))

	cmd, err := arb.NewCmd("a", "b", map[string]interface{}{"a": "b"}, []byte("test"))
	require.NoError(t, err)

	result, err := d.Arb("op1", cmd)
	require.NoError(t, err)

	var echoed struct {
		X []cbor.RawMessage `cbor:"x"`
	}
	require.NoError(t, result.Value(&echoed))
	require.Len(t, echoed.X, 3)

	var ifaceName, operName string
	require.NoError(t, cbor.Unmarshal(echoed.X[0], &ifaceName))
	require.NoError(t, cbor.Unmarshal(echoed.X[1], &operName))
	var data map[string]interface{}
	require.NoError(t, cbor.Unmarshal(echoed.X[2], &data))

	assert.Equal(t, "a", ifaceName)
	assert.Equal(t, "b", operName)
	assert.Equal(t, map[string]interface{}{"a": "b"}, data)

	args := result.Args()
	require.Len(t, args, 2)
	assert.Equal(t, "test", string(args[0]))
	assert.Equal(t, "op1", string(args[1]))

	require.NoError(t, d.Teardown(time.Second))
}

// TestReproducibleRandomStreams reproduces scenario S5: two
// simulations run with identical plugin configurations and the same
// master seed must draw identical pseudorandom sequences on every
// plugin's operation stream.
func TestReproducibleRandomStreams(t *testing.T) {
	const masterSeed = 33
	const samples = 18

	type draws struct {
		u64 [samples]uint64
		f64 [samples]float64
	}

	runOnce := func() map[string]*draws {
		results := make(map[string]*draws)
		var mu sync.Mutex

		record := func(name string) plugin.InitializeFunc {
			return func(ctx *plugin.Context, _ []*arb.ArbCmd) error {
				d := &draws{}
				for i := 0; i < samples; i++ {
					d.u64[i] = ctx.RandomU64()
				}
				for i := 0; i < samples; i++ {
					d.f64[i] = ctx.RandomF64()
				}
				mu.Lock()
				results[name] = d
				mu.Unlock()
				return nil
			}
		}

		cfg := &Config{
			MasterSeed: masterSeed,
			Plugins: []PluginConfig{
				{Type: plugin.Frontend, TypeName: "frontend", Name: "front", Callbacks: &plugin.Callbacks{
					Initialize: record("front"),
					Run:        func(_ *plugin.Context, arg *arb.ArbData) (*arb.ArbData, error) { return arg, nil },
				}},
				{Type: plugin.Operator, TypeName: "operator", Name: "op1", Callbacks: &plugin.Callbacks{
					Initialize: record("op1"),
				}},
				{Type: plugin.Backend, TypeName: "backend", Name: "back", Callbacks: &plugin.Callbacks{
					Initialize: record("back"),
				}},
			},
		}

		d, err := New(cfg, nil)
		require.NoError(t, err)
		require.NoError(t, d.Spawn(context.Background()))
		require.NoError(t, d.Start(arb.Empty()))
		_, err = d.Wait()
		require.NoError(t, err)
		require.NoError(t, d.Teardown(time.Second))
		return results
	}

	first := runOnce()
	second := runOnce()

	require.Len(t, first, 3)
	require.Len(t, second, 3)
	for _, name := range []string{"front", "op1", "back"} {
		assert.Equal(t, first[name], second[name], "plugin %s diverged across runs", name)
	}
}
