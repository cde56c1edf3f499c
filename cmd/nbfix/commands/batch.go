package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/codeworkout/nbfix/internal/cellid"
	"github.com/codeworkout/nbfix/internal/config"
	"github.com/codeworkout/nbfix/internal/git"
	"github.com/codeworkout/nbfix/internal/printer"
	"github.com/codeworkout/nbfix/internal/registry"
	"github.com/codeworkout/nbfix/internal/repair"
	"github.com/codeworkout/nbfix/internal/report"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// batchSettings are the resolved command-line options for one run
type batchSettings struct {
	configPath     string
	configExplicit bool
	rootDir        string
	dryRun         bool
	output         string
	runID          string
	requireClean   bool
}

// runBatch loads the configuration, repairs (or checks) every configured
// notebook and renders the outcomes. Per-file problems are part of the
// outcomes; the returned error is reserved for failures that abort the run.
func runBatch(ctx context.Context, s batchSettings) (report.Summary, error) {
	format, err := report.ParseOutputFormat(s.output)
	if err != nil {
		return report.Summary{}, printer.Error(
			"invalid output format",
			err.Error(),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	cfg, err := loadConfig(s)
	if err != nil {
		return report.Summary{}, err
	}

	gen, err := cellid.NewGenerator(cfg.GeneratorOptions()...)
	if err != nil {
		return report.Summary{}, fmt.Errorf("failed to create id generator: %w", err)
	}

	seen, cleanup, err := openSeenSet(ctx, cfg, s.runID, s.dryRun)
	if err != nil {
		return report.Summary{}, err
	}
	defer cleanup()

	opts := repair.Options{DryRun: s.dryRun, Root: cfg.RootDir}
	if s.requireClean || cfg.Git.RequireClean {
		opts.Guard = git.NewChecker(cfg.RootDir)
	}
	if format == report.OutputFormatDefault {
		opts.Observer = consoleObserver{}
	}

	repairer := repair.New(seen, gen, opts)
	outcomes, runErr := repairer.Run(ctx, cfg.Paths())

	summary := report.Summarize(outcomes)
	switch format {
	case report.OutputFormatJSONL:
		if err := report.FormatJSONL(printer.Stdout(), outcomes); err != nil {
			return summary, err
		}
	default:
		if len(outcomes) > 0 {
			printer.Println()
			report.FormatTable(printer.Stdout(), outcomes)
		}
	}

	if runErr != nil {
		return summary, describeRunError(runErr)
	}

	return summary, nil
}

// loadConfig reads nbfix.yml. A missing default file falls back to the
// built-in notebook list; a missing explicit file is an error.
func loadConfig(s batchSettings) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if s.configExplicit {
		cfg, err = config.Load(s.configPath)
	} else {
		cfg, _, err = config.LoadOrDefault(s.configPath)
	}
	if err != nil {
		return nil, printer.ErrorWithContext(
			"failed to load configuration",
			err.Error(),
			map[string]string{"Config": s.configPath},
			[]string{"Create a starter configuration:\n  nbfix init --force"},
		)
	}

	if s.rootDir != "" {
		cfg.RootDir = s.rootDir
	}

	return cfg, nil
}

// openSeenSet returns the run's seen-id set: in memory by default, or the
// Redis registry when configured. Without an explicit run id the Redis key
// is private to this invocation and deleted afterwards. A dry run reads the
// registry but never writes to it.
func openSeenSet(ctx context.Context, cfg *config.Config, runID string, dryRun bool) (cellid.Set, func(), error) {
	if cfg.Registry == nil {
		if runID != "" {
			printer.Warning("--run-id ignored: no registry configured\n")
		}
		return cellid.NewMemorySet(), func() {}, nil
	}

	ephemeral := runID == ""
	if ephemeral {
		runID = uuid.New().String()
	}

	set, err := registry.NewRedisSet(&redis.Options{
		Addr:     cfg.Registry.RedisAddr,
		Password: cfg.Registry.Password,
		DB:       cfg.Registry.DB,
	}, cfg.Registry.Namespace, runID, cfg.Registry.TTLDuration())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create registry: %w", err)
	}
	set.SetReadOnly(dryRun)

	if err := set.Ping(ctx); err != nil {
		set.Close()
		return nil, nil, printer.ErrorWithContext(
			"registry unreachable",
			fmt.Sprintf("Error: %v", err),
			map[string]string{"Redis": cfg.Registry.RedisAddr},
			[]string{"Start Redis or remove the registry section from nbfix.yml"},
		)
	}

	cleanup := func() {
		if ephemeral {
			if err := set.Drop(context.Background()); err != nil {
				printer.Warning("%v\n", err)
			}
		}
		set.Close()
	}
	return set, cleanup, nil
}

// describeRunError prints a formatted message for errors that aborted a run
func describeRunError(err error) error {
	var writeErr *repair.WriteError
	var dirtyErr *git.DirtyError

	switch {
	case errors.As(err, &dirtyErr):
		return printer.Error(
			"notebooks have uncommitted changes",
			dirtyErr.Details(),
			[]string{"Commit or stash the changes, then run nbfix again"},
		)
	case errors.As(err, &writeErr):
		return printer.ErrorWithContext(
			"failed to write notebook",
			fmt.Sprintf("Error: %v", writeErr.Err),
			map[string]string{"File": writeErr.Path},
			[]string{"Notebooks after this one were not processed"},
		)
	case errors.Is(err, cellid.ErrExhausted):
		return printer.Error(
			"could not generate a unique cell id",
			err.Error(),
			[]string{"Increase ids.length or ids.max_attempts in nbfix.yml"},
		)
	case errors.Is(err, context.Canceled):
		return printer.Error("interrupted", "The run was cancelled before all notebooks were processed.", nil)
	default:
		return printer.Error("repair failed", err.Error(), nil)
	}
}

// consoleObserver reports progress the way the batch is read by a person
type consoleObserver struct{}

func (consoleObserver) FileStarted(path string) {
	printer.Step("Cleaning %s...\n", path)
}

func (consoleObserver) ChangeApplied(_ string, change repair.Change) {
	printer.Detail("%s", change)
}

func (consoleObserver) FileFinished(o repair.Outcome) {
	switch o.Status {
	case repair.StatusUpdated:
		printer.Success("Updated %s\n", o.Path)
	case repair.StatusWouldUpdate:
		printer.Warning("Would update %s\n", o.Path)
	case repair.StatusUnchanged:
		printer.Info("  No changes needed for %s\n", o.Path)
	case repair.StatusSkipped:
		printer.Warning("File not found: %s\n", o.Path)
	case repair.StatusFailed:
		printer.Failure("Error reading %s: %v\n", o.Path, o.Err)
	}
}
