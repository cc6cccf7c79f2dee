package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/astrashare/astra/internal/log"
	"github.com/astrashare/astra/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.Repository. It keeps the
// notified-task set and settings durable across runs.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

// NewRepository creates a new SQLite repository.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite repository initialized at %s", cfg.DBPath)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

// ListNotified returns the notified task ids, oldest first.
func (r *Repository) ListNotified(ctx context.Context) ([]string, error) {
	query := `
		SELECT task_id
		FROM notified_tasks
		ORDER BY notified_at ASC, task_id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("could not query notified tasks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("could not scan notified task: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate notified tasks: %w", err)
	}

	return ids, nil
}

// AddNotified records a task id, evicting the oldest entries past limit.
func (r *Repository) AddNotified(ctx context.Context, taskID string, limit int) error {
	query := `
		INSERT INTO notified_tasks (task_id, notified_at)
		VALUES (?, ?)
		ON CONFLICT (task_id) DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, query, taskID, time.Now().UTC().UnixNano()); err != nil {
		return fmt.Errorf("could not insert notified task: %w", err)
	}

	if limit > 0 {
		evict := `
			DELETE FROM notified_tasks
			WHERE task_id NOT IN (
				SELECT task_id FROM notified_tasks
				ORDER BY notified_at DESC, task_id DESC
				LIMIT ?
			)
		`
		if _, err := r.db.ExecContext(ctx, evict, limit); err != nil {
			return fmt.Errorf("could not evict notified tasks: %w", err)
		}
	}

	r.logger.Debugf("Recorded notified task %s", taskID)

	return nil
}

// GetNotifyPermission returns the stored permission value, "" when unset.
func (r *Repository) GetNotifyPermission(ctx context.Context) (string, error) {
	query := `SELECT value FROM settings WHERE key = 'notify_permission'`

	var value string
	err := r.db.QueryRowContext(ctx, query).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("could not query permission setting: %w", err)
	}

	return value, nil
}

// SetNotifyPermission stores the permission value.
func (r *Repository) SetNotifyPermission(ctx context.Context, value string) error {
	query := `
		INSERT INTO settings (key, value)
		VALUES ('notify_permission', ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`

	if _, err := r.db.ExecContext(ctx, query, value); err != nil {
		return fmt.Errorf("could not store permission setting: %w", err)
	}

	return nil
}
