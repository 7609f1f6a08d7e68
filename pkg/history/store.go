// Package history persists skill executions to SQLite so usage survives
// restarts and can be listed and summarised.
package history

import (
	"context"
	"time"

	"github.com/jingkaihe/skillet/pkg/db"
	"github.com/jingkaihe/skillet/pkg/db/migrations"
	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// DefaultListLimit caps List when no limit is given
const DefaultListLimit = 50

// Store reads and writes the skill_executions table
type Store struct {
	db *sqlx.DB
}

// Open opens the database at path, migrating it as needed. An empty path
// uses the default location.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		var err error
		if path, err = db.DefaultDBPath(); err != nil {
			return nil, err
		}
	}
	sqlDB, err := db.OpenAndMigrate(ctx, path, migrations.All())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open history database")
	}
	return &Store{db: sqlDB}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores one execution
func (s *Store) Record(ctx context.Context, record skilltypes.ExecutionRecord) error {
	record.StartedAt = record.StartedAt.UTC()
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO skill_executions
			(id, skill_name, execution_type, inputs_hash, cached, success, error, duration_ns, started_at)
		VALUES
			(:id, :skill_name, :execution_type, :inputs_hash, :cached, :success, :error, :duration_ns, :started_at)
	`, record)
	return errors.Wrap(err, "failed to record execution")
}

// Count returns the number of recorded executions
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM skill_executions"); err != nil {
		return 0, errors.Wrap(err, "failed to count executions")
	}
	return n, nil
}

// ListOptions filters List
type ListOptions struct {
	Skill string
	Since time.Time
	Limit int
}

// List returns executions newest first
func (s *Store) List(ctx context.Context, opts ListOptions) ([]skilltypes.ExecutionRecord, error) {
	query := `SELECT id, skill_name, execution_type, inputs_hash, cached, success, error, duration_ns, started_at
		FROM skill_executions WHERE 1=1`
	var args []any
	if opts.Skill != "" {
		query += " AND skill_name = ?"
		args = append(args, opts.Skill)
	}
	if !opts.Since.IsZero() {
		query += " AND started_at >= ?"
		args = append(args, opts.Since.UTC())
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	records := []skilltypes.ExecutionRecord{}
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list executions")
	}
	return records, nil
}

// SkillSummary aggregates the executions of one skill
type SkillSummary struct {
	Skill       string        `json:"skill" db:"skill_name"`
	Executions  int64         `json:"executions" db:"executions"`
	Failures    int64         `json:"failures" db:"failures"`
	CacheHits   int64         `json:"cache_hits" db:"cache_hits"`
	AvgDuration time.Duration `json:"avg_duration" db:"avg_duration_ns"`
}

// Summary aggregates executions per skill, most used first
func (s *Store) Summary(ctx context.Context) ([]SkillSummary, error) {
	summaries := []SkillSummary{}
	err := s.db.SelectContext(ctx, &summaries, `
		SELECT skill_name,
			COUNT(*) AS executions,
			SUM(CASE WHEN success THEN 0 ELSE 1 END) AS failures,
			SUM(CASE WHEN cached THEN 1 ELSE 0 END) AS cache_hits,
			CAST(AVG(duration_ns) AS INTEGER) AS avg_duration_ns
		FROM skill_executions
		GROUP BY skill_name
		ORDER BY executions DESC, skill_name ASC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to summarise executions")
	}
	return summaries, nil
}
