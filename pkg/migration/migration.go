package migration

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/muhammadchandra19/tickstore/pkg/logger"
	"github.com/muhammadchandra19/tickstore/pkg/questdb"
)

const createMigrationTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	id STRING,
	name STRING,
	applied_at TIMESTAMP
) TIMESTAMP(applied_at) PARTITION BY YEAR`

// Migration represents a database migration
type Migration struct {
	ID        string
	Name      string
	Timestamp time.Time
	UpSQL     string
	DownSQL   string
}

// Runner applies the *.up.sql / *.down.sql pairs of a file system to QuestDB.
type Runner struct {
	client     questdb.QuestDBClient
	migrations fs.FS
	logger     *logger.Logger
}

// NewRunner creates a new migration runner. migrations is usually an embed.FS.
func NewRunner(client questdb.QuestDBClient, migrations fs.FS, logger *logger.Logger) *Runner {
	return &Runner{
		client:     client,
		migrations: migrations,
		logger:     logger,
	}
}

// EnsureMigrationTable creates the schema_migrations table if it doesn't exist
func (r *Runner) EnsureMigrationTable(ctx context.Context) error {
	return r.client.Exec(ctx, createMigrationTable)
}

// Applied returns the set of applied migration IDs.
func (r *Runner) Applied(ctx context.Context) (map[string]bool, error) {
	applied := make(map[string]bool)

	rows, err := r.client.Query(ctx, "SELECT id FROM schema_migrations ORDER BY applied_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		applied[id] = true
	}

	return applied, rows.Err()
}

// Load reads every migration, ordered by ID.
func (r *Runner) Load() ([]Migration, error) {
	upFiles, err := fs.Glob(r.migrations, "*.up.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(upFiles)

	migrations := make([]Migration, 0, len(upFiles))
	for _, upFile := range upFiles {
		m, err := r.parse(upFile)
		if err != nil {
			return nil, fmt.Errorf("failed to parse migration %s: %w", upFile, err)
		}
		migrations = append(migrations, m)
	}
	return migrations, nil
}

// parse reads an UP file and its optional DOWN file. File names look like
// 20250101000000_create_bars.up.sql; other prefixes get a zero timestamp.
func (r *Runner) parse(upFile string) (Migration, error) {
	upContent, err := fs.ReadFile(r.migrations, upFile)
	if err != nil {
		return Migration{}, err
	}

	id := strings.TrimSuffix(path.Base(upFile), ".up.sql")
	name := id
	timestamp := time.Unix(0, 0).UTC()
	if prefix, rest, ok := strings.Cut(id, "_"); ok {
		name = rest
		if ts, err := time.Parse("20060102150405", prefix); err == nil {
			timestamp = ts
		}
	}

	var downSQL string
	if downContent, err := fs.ReadFile(r.migrations, strings.TrimSuffix(upFile, ".up.sql")+".down.sql"); err == nil {
		downSQL = strings.TrimSpace(string(downContent))
	}

	return Migration{
		ID:        id,
		Name:      name,
		Timestamp: timestamp,
		UpSQL:     strings.TrimSpace(string(upContent)),
		DownSQL:   downSQL,
	}, nil
}

// Up applies pending migrations, at most steps of them when steps > 0, and
// returns how many were applied.
func (r *Runner) Up(ctx context.Context, steps int) (int, error) {
	if err := r.EnsureMigrationTable(ctx); err != nil {
		return 0, err
	}
	migrations, err := r.Load()
	if err != nil {
		return 0, err
	}
	applied, err := r.Applied(ctx)
	if err != nil {
		return 0, err
	}

	var toApply []Migration
	for _, m := range migrations {
		if !applied[m.ID] {
			toApply = append(toApply, m)
		}
	}
	if steps > 0 && len(toApply) > steps {
		toApply = toApply[:steps]
	}

	for i, m := range toApply {
		if m.UpSQL == "" {
			r.logger.WarnContext(ctx, "migration has no UP SQL", logger.NewField("migration", m.ID))
			continue
		}
		if err := r.client.Exec(ctx, m.UpSQL); err != nil {
			return i, fmt.Errorf("failed to apply migration %s: %w", m.ID, err)
		}
		if err := r.client.Exec(ctx, "INSERT INTO schema_migrations VALUES ($1, $2, now())", m.ID, m.Name); err != nil {
			return i, fmt.Errorf("failed to record migration %s: %w", m.ID, err)
		}
		r.logger.InfoContext(ctx, "applied migration", logger.NewField("migration", m.ID))
	}

	return len(toApply), nil
}

// Down reverts the last steps applied migrations.
func (r *Runner) Down(ctx context.Context, steps int) (int, error) {
	if steps <= 0 {
		return 0, fmt.Errorf("steps must be greater than 0 for down migrations")
	}

	migrations, err := r.Load()
	if err != nil {
		return 0, err
	}
	applied, err := r.Applied(ctx)
	if err != nil {
		return 0, err
	}

	var toRevert []Migration
	for i := len(migrations) - 1; i >= 0 && len(toRevert) < steps; i-- {
		if applied[migrations[i].ID] {
			toRevert = append(toRevert, migrations[i])
		}
	}

	for i, m := range toRevert {
		if m.DownSQL == "" {
			return i, fmt.Errorf("no DOWN SQL found for migration %s - cannot revert", m.ID)
		}
		if err := r.client.Exec(ctx, m.DownSQL); err != nil {
			return i, fmt.Errorf("failed to revert migration %s: %w", m.ID, err)
		}
		if err := r.client.Exec(ctx, "DELETE FROM schema_migrations WHERE id = $1", m.ID); err != nil {
			return i, fmt.Errorf("failed to remove migration record %s: %w", m.ID, err)
		}
		r.logger.InfoContext(ctx, "reverted migration", logger.NewField("migration", m.ID))
	}

	return len(toRevert), nil
}
