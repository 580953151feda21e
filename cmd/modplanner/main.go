// modplanner assigns mods across a roster and prints the operations that
// apply the plan.
//
// Usage:
//
//	go run ./cmd/modplanner -config config/modplanner.yaml
//	go run ./cmd/modplanner -json
//	go run ./cmd/modplanner -apply
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/udisondev/modplanner/internal/config"
	"github.com/udisondev/modplanner/internal/data"
	"github.com/udisondev/modplanner/internal/db"
	"github.com/udisondev/modplanner/internal/inventory"
	"github.com/udisondev/modplanner/internal/planner"
	"github.com/udisondev/modplanner/internal/reconcile"
	"github.com/udisondev/modplanner/internal/scoring"
	"github.com/udisondev/modplanner/internal/search"
	"github.com/udisondev/modplanner/internal/telemetry"
)

const ConfigPath = "config/modplanner.yaml"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	defaultPath := ConfigPath
	if p := os.Getenv("MODPLANNER_CONFIG"); p != "" {
		defaultPath = p
	}

	fs := flag.NewFlagSet("modplanner", flag.ContinueOnError)
	cfgPath := fs.String("config", defaultPath, "path to config file")
	asJSON := fs.Bool("json", false, "print the result as JSON")
	apply := fs.Bool("apply", false, "write the planned loadouts back to the inventory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadPlanner(*cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Configure slog based on config.LogLevel
	logLevel, _ := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	snap, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading inventory: %w", err)
	}

	p := planner.New(scoring.NewEngine(cat), planner.Options{
		Search: search.Options{
			Workers:      cfg.Workers,
			CandidateCap: cfg.CandidateCap,
		},
		KeepEquipped:       cfg.KeepEquipped,
		ModChangeThreshold: cfg.ModChangeThreshold,
	}, slog.Default())

	// The pass gets its own copy of the pool.
	work := snap.Clone()
	res, planErr := p.Plan(ctx, planner.Input{Pool: work.Pool, Characters: work.Characters})
	if planErr != nil && !isAbort(planErr) {
		return fmt.Errorf("planning: %w", planErr)
	}

	seq, err := reconcile.Reconcile(snap.Pool, snap.Characters, res.Assignments)
	if err != nil {
		return fmt.Errorf("reconciling: %w", err)
	}

	digest, err := res.Digest()
	if err != nil {
		return err
	}

	if *asJSON {
		err = writeJSON(stdout, res, seq, digest)
	} else {
		err = writeReport(stdout, res, seq, digest)
	}
	if err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if planErr != nil {
		return fmt.Errorf("planning: %w", planErr)
	}

	if *apply {
		final, err := reconcile.Simulate(snap.Pool, snap.Characters, seq)
		if err != nil {
			return fmt.Errorf("applying operations: %w", err)
		}
		if err := store.Save(ctx, snap.WithLoadouts(final)); err != nil {
			return fmt.Errorf("saving inventory: %w", err)
		}
		slog.Info("plan applied", "operations", len(seq))
	}
	return nil
}

func isAbort(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func loadCatalog(path string) (*data.Catalog, error) {
	if path == "" {
		cat, err := data.DefaultCatalog()
		if err != nil {
			return nil, fmt.Errorf("loading embedded catalog: %w", err)
		}
		return cat, nil
	}
	cat, err := data.LoadCatalog(path)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	return cat, nil
}

func openStore(ctx context.Context, cfg config.Planner) (inventory.Store, func(), error) {
	if !cfg.UseDatabase {
		return inventory.NewFileSource(cfg.InventoryPath), func() {}, nil
	}

	dsn := cfg.Database.DSN()
	if err := db.RunMigrations(ctx, dsn); err != nil {
		return nil, nil, fmt.Errorf("migrating database: %w", err)
	}
	d, err := db.New(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("database connected", "host", cfg.Database.Host, "dbname", cfg.Database.DBName)
	return d.Inventory(cfg.AllyCode), d.Close, nil
}
