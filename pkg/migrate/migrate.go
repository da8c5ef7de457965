// Package migrate applies the goose SQL migrations and, for sqlite dev
// databases, builds the schema straight from the gorm models.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where create and validate write and read, relative to the
// repository root. Binaries apply the embedded copy unless a dir is given.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Migrations returns the migration files compiled into the binary.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Source picks the migration files: dir on disk when set, else the
// embedded set.
func Source(dir string) fs.FS {
	if dir == "" {
		return Migrations()
	}
	return os.DirFS(dir)
}

// Result is one applied or rolled back migration.
type Result struct {
	Version   int64
	Path      string
	Direction string
}

func newProvider(db *sql.DB, fsys fs.FS) (*goose.Provider, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return p, nil
}

// Run executes up, down, redo or status against db.
func Run(ctx context.Context, db *sql.DB, fsys fs.FS, command string) ([]Result, error) {
	p, err := newProvider(db, fsys)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	switch command {
	case "up":
		res, err := p.Up(ctx)
		return results(res), wrap("up", err)
	case "down":
		res, err := p.Down(ctx)
		return results([]*goose.MigrationResult{res}), wrap("down", err)
	case "redo":
		current, err := p.GetDBVersion(ctx)
		if err != nil {
			return nil, wrap("redo", err)
		}
		down, err := p.Down(ctx)
		if err != nil {
			return results([]*goose.MigrationResult{down}), wrap("redo", err)
		}
		up, err := p.ApplyVersion(ctx, current, true)
		return results([]*goose.MigrationResult{down, up}), wrap("redo", err)
	case "status":
		statuses, err := p.Status(ctx)
		if err != nil {
			return nil, wrap("status", err)
		}
		out := make([]Result, 0, len(statuses))
		for _, s := range statuses {
			if s == nil || s.Source == nil {
				continue
			}
			out = append(out, Result{Version: s.Source.Version, Path: s.Source.Path, Direction: string(s.State)})
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported goose command %q", command)
}

// MigrateToVersion moves the schema up or down until target is the current
// version.
func MigrateToVersion(ctx context.Context, db *sql.DB, fsys fs.FS, target string) ([]Result, error) {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil || version < 0 {
		return nil, fmt.Errorf("invalid version %q, want YYYYMMDDHHMMSS", target)
	}
	p, err := newProvider(db, fsys)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	current, err := p.GetDBVersion(ctx)
	if err != nil {
		return nil, wrap("version", err)
	}
	var res []*goose.MigrationResult
	switch {
	case current < version:
		res, err = p.UpTo(ctx, version)
	case current > version:
		res, err = p.DownTo(ctx, version)
	}
	return results(res), wrap(fmt.Sprintf("migrate to %d", version), err)
}

func results(in []*goose.MigrationResult) []Result {
	out := make([]Result, 0, len(in))
	for _, r := range in {
		if r == nil || r.Source == nil {
			continue
		}
		out = append(out, Result{Version: r.Source.Version, Path: r.Source.Path, Direction: r.Direction})
	}
	return out
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("goose %s: %w", op, err)
}
