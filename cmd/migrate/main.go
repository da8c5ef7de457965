package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/angelmondragon/menuboard-backend/pkg/config"
	"github.com/angelmondragon/menuboard-backend/pkg/db"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
	"github.com/angelmondragon/menuboard-backend/pkg/migrate"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

const serviceName = "migrate"

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

// gooseCommands pass straight through to goose.
var gooseCommands = map[string]bool{"up": true, "down": true, "status": true, "redo": true}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "migration command: up|down|status|redo|version|create|validate|automigrate")
	flag.StringVar(&opts.dir, "dir", "", "migrations directory; goose commands default to the embedded set, create and validate to "+migrate.DefaultDir)
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceName})
	_ = godotenv.Load()

	if err := run(opts, logg); err != nil {
		logg.Error(context.Background(), "migrate failed", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(opts options, logg *logger.Logger) (err error) {
	// create and validate only touch the filesystem.
	diskDir := opts.dir
	if diskDir == "" {
		diskDir = migrate.DefaultDir
	}
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return errors.New("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(diskDir, opts.name, time.Now())
		if err != nil {
			return fmt.Errorf("create migration: %w", err)
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		if err := migrate.ValidateFS(os.DirFS(diskDir)); err != nil {
			return fmt.Errorf("migration validation failed: %w", err)
		}
		fmt.Println("migration validation passed")
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg = logger.FromApp(serviceName, cfg.App)
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": opts.cmd,
		"dir": opts.dir,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if opts.cmd == "automigrate" {
		logg.Info(ctx, "auto-migrating gorm models")
		return migrate.AutoMigrateModels(ctx, dbClient)
	}

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("extract sql.DB: %w", err)
	}
	logg.Info(ctx, "migrate ready")
	return runGoose(ctx, sqlDB, opts)
}

func runGoose(ctx context.Context, sqlDB *sql.DB, opts options) error {
	var (
		res []migrate.Result
		err error
	)
	switch {
	case opts.cmd == "version":
		if opts.version == "" {
			return errors.New("missing -version for version command")
		}
		res, err = migrate.MigrateToVersion(ctx, sqlDB, migrate.Source(opts.dir), opts.version)
	case gooseCommands[opts.cmd]:
		res, err = migrate.Run(ctx, sqlDB, migrate.Source(opts.dir), opts.cmd)
	default:
		return fmt.Errorf("unknown -cmd value: %s", opts.cmd)
	}
	for _, r := range res {
		fmt.Printf("%-8s %d %s\n", r.Direction, r.Version, r.Path)
	}
	return err
}
