package process_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/aretw0/railyard/pkg/adapters/process"
	"github.com/aretw0/railyard/pkg/registry"
	"github.com/aretw0/railyard/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
}

func TestRunner_Execute(t *testing.T) {
	skipOnWindows(t)
	r := process.NewRunner()
	r.Register("greet", "sh", "-c", "echo hello $RAILYARD_VAR_NAME")
	r.Register("balance", "sh", "-c", `echo '{"amount": 120, "currency": "EUR"}'`)
	r.Register("fail", "sh", "-c", "echo boom >&2; exit 3")

	t.Run("passes variables through the environment", func(t *testing.T) {
		out, err := r.Execute(context.Background(), "greet", map[string]any{"name": "Ada", "bad-key": "x"})
		require.NoError(t, err)
		assert.Equal(t, "hello Ada", out)
	})

	t.Run("decodes JSON output", func(t *testing.T) {
		out, err := r.Execute(context.Background(), "balance", nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"amount": float64(120), "currency": "EUR"}, out)
	})

	t.Run("reports stderr on failure", func(t *testing.T) {
		_, err := r.Execute(context.Background(), "fail", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("rejects unregistered commands", func(t *testing.T) {
		_, err := r.Execute(context.Background(), "rm", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not registered")
	})
}

func TestRunner_Timeout(t *testing.T) {
	skipOnWindows(t)
	r := process.NewRunner(process.WithRegistry(map[string]process.ProcessConfig{
		"slow": {Command: "sleep", Args: []string{"5"}, Timeout: 100 * time.Millisecond},
	}))

	start := time.Now()
	_, err := r.Execute(context.Background(), "slow", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestRunner_Inputs(t *testing.T) {
	skipOnWindows(t)
	inputs, err := schema.Parse(map[string]string{"order": "int"})
	require.NoError(t, err)
	r := process.NewRunner(process.WithRegistry(map[string]process.ProcessConfig{
		"track": {Command: "sh", Args: []string{"-c", "echo shipped $RAILYARD_VAR_ORDER"}, Inputs: inputs},
	}))

	out, err := r.Execute(context.Background(), "track", map[string]any{"order": float64(7)})
	require.NoError(t, err)
	assert.Equal(t, "shipped 7", out)

	_, err = r.Execute(context.Background(), "track", map[string]any{"order": "seven"})
	var serr *schema.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "order", serr.Problems[0].Var)
}

func TestRunner_RegisterAll(t *testing.T) {
	skipOnWindows(t)
	r := process.NewRunner()
	r.Register("echo_var", "sh", "-c", "echo $RAILYARD_VAR_ORDER")

	reg := registry.NewRegistry()
	r.RegisterAll(reg)
	assert.Equal(t, []string{"echo_var"}, reg.Names())

	out, err := reg.Execute(context.Background(), "echo_var", map[string]any{"order": 42})
	require.NoError(t, err)
	assert.Equal(t, "42", out)
}

func TestLoadActions(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		actions, err := process.LoadActions(filepath.Join(dir, "nope.yaml"))
		require.NoError(t, err)
		assert.Empty(t, actions)
	})

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, process.DefaultFile)
		require.NoError(t, os.WriteFile(path, []byte(`
actions:
  - name: lookup_balance
    command: ./bin/balance
    args: ["--json"]
    timeout: 2s
    inputs:
      account: string
    env:
      MODE: test
`), 0o644))
		actions, err := process.LoadActions(path)
		require.NoError(t, err)
		require.Contains(t, actions, "lookup_balance")
		a := actions["lookup_balance"]
		assert.Equal(t, "./bin/balance", a.Command)
		assert.Equal(t, []string{"--json"}, a.Args)
		assert.Equal(t, 2*time.Second, a.Timeout)
		assert.Equal(t, "test", a.Environment["MODE"])
		assert.Error(t, a.Inputs.Validate(map[string]any{}))
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "actions.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"actions":[{"name":"ping","command":"true"}]}`), 0o644))
		actions, err := process.LoadActions(path)
		require.NoError(t, err)
		assert.Contains(t, actions, "ping")
	})

	t.Run("duplicate", func(t *testing.T) {
		path := filepath.Join(dir, "dup.yaml")
		require.NoError(t, os.WriteFile(path, []byte("actions:\n  - {name: a, command: x}\n  - {name: a, command: y}\n"), 0o644))
		_, err := process.LoadActions(path)
		assert.ErrorContains(t, err, "defined twice")
	})

	t.Run("missing command", func(t *testing.T) {
		path := filepath.Join(dir, "nocmd.yaml")
		require.NoError(t, os.WriteFile(path, []byte("actions:\n  - name: a\n"), 0o644))
		_, err := process.LoadActions(path)
		assert.ErrorContains(t, err, "no command")
	})
}
