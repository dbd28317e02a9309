package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/seed"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var filePath string
	var dryRun bool

	flagSet := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	flagSet.StringVar(&filePath, "file", "seed/catalog.yaml", "path to the YAML fixture")
	flagSet.BoolVar(&dryRun, "dry-run", false, "report what would be created without writing")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("POSTGRES_DSN is required; the in-memory store does not outlive this process")
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	fixture, err := seed.LoadFile(filePath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			return err
		}
	}

	var cache repository.CategoryCache = repository.NoopCategoryCache{}
	if ttl := cfg.Storage.CatalogCacheTTL(); ttl > 0 {
		rdb := persistence.NewRedis(ctx, cfg.Redis, logger)
		defer rdb.Close()
		cache = repository.NewCategoryCache(rdb.Handle(), ttl, logger)
	}

	pool := pg.PoolHandle()
	seeder := seed.New(seed.Dependencies{
		Users:         repository.NewUserRepository(pool),
		Departments:   repository.NewDepartmentRepository(pool),
		Categories:    repository.NewCategoryRepository(pool),
		Equipment:     repository.NewEquipmentRepository(pool),
		CategoryCache: cache,
		Logger:        logger,
		BcryptCost:    cfg.Auth.BcryptCost,
	})

	report, err := seeder.Apply(ctx, fixture, dryRun)
	if err != nil {
		logger.Error("seed failed", zap.Error(err))
		return err
	}
	for _, kind := range []string{"departments", "categories", "users", "equipment"} {
		fmt.Printf("%-12s created=%d skipped=%d\n", kind, report.Created[kind], report.Skipped[kind])
	}
	return nil
}
