package cli

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/railyard"
	"github.com/aretw0/railyard/internal/config"
	"github.com/aretw0/railyard/internal/logging"
	"github.com/aretw0/railyard/pkg/adapters/process"
	"github.com/aretw0/railyard/pkg/observability"
	"github.com/aretw0/railyard/pkg/registry"
)

// Options carries the flags shared by every command.
type Options struct {
	// Dir is the rails directory.
	Dir string
	// LogLevel and LogFormat override the logging section of config.yml.
	LogLevel  string
	LogFormat string
	// Actions is the actions file. Defaults to actions.yaml in Dir.
	Actions string
	// Debug logs every lifecycle event.
	Debug bool
}

// createLogger builds the logger from config.yml, with flags taking precedence.
// An unreadable config.yml is reported later by the engine, so it is ignored here.
func createLogger(opts Options, w io.Writer) (*slog.Logger, error) {
	cfg, err := config.Load(opts.Dir)
	if err != nil {
		cfg = config.Default()
	}

	lvl := cfg.Logging.Level
	if opts.LogLevel != "" {
		lvl = opts.LogLevel
	}
	if opts.Debug {
		lvl = "debug"
	}
	level, err := logging.ParseLevel(lvl)
	if err != nil {
		return nil, err
	}

	format := logging.Format(cfg.Logging.Format)
	if opts.LogFormat != "" {
		format = logging.Format(opts.LogFormat)
	}
	switch format {
	case logging.FormatText, logging.FormatJSON:
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return logging.NewWithWriter(w, level, format), nil
}

// loadActions registers the commands of the actions file as rail actions.
func loadActions(opts Options) (*registry.Registry, error) {
	path := opts.Actions
	if path == "" {
		path = filepath.Join(opts.Dir, process.DefaultFile)
	}
	defs, err := process.LoadActions(path)
	if err != nil {
		return nil, err
	}
	reg := registry.NewRegistry()
	process.NewRunner(
		process.WithRegistry(defs),
		process.WithBaseDir(opts.Dir),
	).RegisterAll(reg)
	return reg, nil
}

func engineOptions(opts Options, logger *slog.Logger, metrics *observability.Metrics) ([]railyard.Option, error) {
	actions, err := loadActions(opts)
	if err != nil {
		return nil, err
	}
	engineOpts := []railyard.Option{
		railyard.WithLogger(logger),
		railyard.WithActions(actions),
	}
	if opts.Debug {
		engineOpts = append(engineOpts, railyard.WithLifecycleHooks(observability.LogHooks(logger)))
	}
	if metrics != nil {
		engineOpts = append(engineOpts, railyard.WithLifecycleHooks(metrics.Hooks()))
	}
	return engineOpts, nil
}

// createEngine initializes an engine with the standard CLI conventions.
func createEngine(opts Options, logger *slog.Logger, metrics *observability.Metrics) (*railyard.Engine, error) {
	engineOpts, err := engineOptions(opts, logger, metrics)
	if err != nil {
		return nil, err
	}
	return railyard.New(opts.Dir, engineOpts...)
}
