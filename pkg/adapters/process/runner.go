// Package process runs rail actions as local commands.
//
// Only commands listed in the actions file can run. Session variables are
// passed as RAILYARD_VAR_<NAME> environment variables, never as arguments,
// so user text cannot inject flags. Stdout is the action result: JSON objects
// and arrays are decoded, anything else is returned as a trimmed string.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/railyard/pkg/registry"
)

// EnvPrefix prefixes the environment variables carrying session variables.
const EnvPrefix = "RAILYARD_VAR_"

// DefaultTimeout bounds a command without its own timeout.
const DefaultTimeout = 10 * time.Second

var envKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Runner executes allow-listed commands.
type Runner struct {
	registry map[string]ProcessConfig
	baseDir  string
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(actions map[string]ProcessConfig) RunnerOption {
	return func(r *Runner) {
		for name, a := range actions {
			a.Name = name
			r.registry[name] = a
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// NewRunner creates a new process runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]ProcessConfig),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name, command string, args ...string) {
	r.registry[name] = ProcessConfig{Name: name, Command: command, Args: args}
}

// Names returns the allow-listed action names in lexical order.
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.registry))
	for n := range r.registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RegisterAll adds every allow-listed command to reg as an action.
func (r *Runner) RegisterAll(reg *registry.Registry) {
	for name := range r.registry {
		reg.Register(name, r.Action(name))
	}
}

// Action returns an ActionFunc running the named command.
func (r *Runner) Action(name string) registry.ActionFunc {
	return func(ctx context.Context, vars map[string]any) (any, error) {
		return r.Execute(ctx, name, vars)
	}
}

// Execute runs the named command with vars in its environment.
func (r *Runner) Execute(ctx context.Context, name string, vars map[string]any) (any, error) {
	proc, ok := r.registry[name]
	if !ok {
		return nil, fmt.Errorf("process action not registered: %s", name)
	}
	if err := proc.Inputs.Validate(vars); err != nil {
		return nil, fmt.Errorf("action %s: %w", name, err)
	}

	timeout := proc.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, proc.Command, proc.Args...)
	cmd.Dir = r.baseDir
	cmd.WaitDelay = time.Second
	cmd.Env = append(cmd.Environ(), environment(proc.Environment, vars)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("action %s: %w", name, ctx.Err())
		}
		return nil, fmt.Errorf("action %s failed: %v: %s", name, err, strings.TrimSpace(stderr.String()))
	}

	trimmed := strings.TrimSpace(stdout.String())
	if (strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) ||
		(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")) {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v, nil
		}
	}
	return trimmed, nil
}

func environment(fixed map[string]string, vars map[string]any) []string {
	env := make([]string, 0, len(fixed)+len(vars))
	for k, v := range fixed {
		env = append(env, k+"="+v)
	}
	for k, v := range vars {
		if !envKey.MatchString(k) {
			continue
		}
		var val string
		switch v := v.(type) {
		case nil:
		case string:
			val = v
		case int, int64, float64, bool:
			val = fmt.Sprintf("%v", v)
		default:
			if b, err := json.Marshal(v); err == nil {
				val = string(b)
			} else {
				val = fmt.Sprintf("%v", v)
			}
		}
		env = append(env, EnvPrefix+strings.ToUpper(k)+"="+val)
	}
	return env
}
