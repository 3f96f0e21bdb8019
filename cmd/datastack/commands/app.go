package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/datastack/datastack/pkg/config"
	"github.com/datastack/datastack/pkg/models/kennel"
	"github.com/datastack/datastack/pkg/stores"
	"github.com/datastack/datastack/pkg/telemetry"
	"github.com/datastack/datastack/pkg/transformers"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

// app is the state a command works with: configuration, telemetry and the
// container for the configured model. Nothing is opened until load.
type app struct {
	configPath string
	cfg        *config.Config
	tel        *telemetry.Telemetry
	container  *stores.Container
}

// configPathFor returns the config file a command reads.
func configPathFor(flags *globalFlags) string {
	if flags.configPath != "" {
		return flags.configPath
	}
	return config.DefaultPath()
}

// modelFor resolves a configured model name.
func modelFor(name string) (stores.Model, error) {
	switch name {
	case kennel.ModelName:
		return kennel.Model(), nil
	default:
		return stores.Model{}, fmt.Errorf("unknown model %q", name)
	}
}

func newApp(flags *globalFlags, version string) (*app, error) {
	path := configPathFor(flags)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if flags.inMemory {
		cfg.Store.InMemory = true
	}
	if flags.verbose {
		cfg.Telemetry.LogLevel = "debug"
	}
	if err := cfg.RegisterTransformers(transformers.Default, filepath.Dir(path)); err != nil {
		return nil, err
	}

	tel, err := telemetry.NewTelemetry(cfg.TelemetryConfig(version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if err := tel.StartMetricsServer(); err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to start metrics server: %w", err)
	}

	model, err := modelFor(cfg.Store.Model)
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, err
	}

	tel.Events.Subscribe(func(e telemetry.Event) {
		log.Debug().
			Str("type", e.Type).
			Str("level", e.Level).
			Str("location", e.Location).
			Msg(e.Message)
	}, telemetry.FilterByModel(model.Name))

	container, err := stores.NewContainer(model, cfg.Store.InMemory,
		stores.WithDirectory(cfg.DataDir),
		stores.WithRecoveryPolicy(cfg.Store.RecoveryPolicy()),
		stores.WithLogger(tel.Logger),
		stores.WithMetrics(tel.Metrics),
		stores.WithTracer(tel.Tracer),
		stores.WithEvents(tel.Events),
	)
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, err
	}

	return &app{
		configPath: path,
		cfg:        cfg,
		tel:        tel,
		container:  container,
	}, nil
}

// load opens the store, recovering it if the policy allows.
func (a *app) load(ctx context.Context) (stores.StoreDescription, error) {
	desc, err := a.container.Load(ctx)
	if err != nil {
		var perr *stores.PersistenceError
		if errors.As(err, &perr) && perr.IsMigrationError() {
			return desc, fmt.Errorf("%w (run 'datastack wipe' to start over)", err)
		}
		return desc, err
	}
	if desc.Recovered {
		log.Warn().
			Str("location", desc.Configuration.Location).
			Msg("Store was incompatible and has been recreated")
	}
	return desc, nil
}

func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return errors.Join(a.container.Close(), a.tel.Shutdown(ctx))
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
