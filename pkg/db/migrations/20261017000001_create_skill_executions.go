package migrations

import (
	"context"

	"github.com/jingkaihe/skillet/pkg/db"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Migration20261017000001CreateSkillExecutions creates the execution history table
func Migration20261017000001CreateSkillExecutions() db.Migration {
	return db.Migration{
		Version:     20261017000001,
		Description: "Create skill_executions table",
		Up: func(ctx context.Context, tx *sqlx.Tx) error {
			_, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS skill_executions (
					id TEXT PRIMARY KEY,
					skill_name TEXT NOT NULL,
					execution_type TEXT NOT NULL,
					inputs_hash TEXT NOT NULL DEFAULT '',
					cached BOOLEAN NOT NULL DEFAULT 0,
					success BOOLEAN NOT NULL,
					error TEXT NOT NULL DEFAULT '',
					duration_ns INTEGER NOT NULL,
					started_at DATETIME NOT NULL
				)
			`)
			return errors.Wrap(err, "failed to create skill_executions table")
		},
		Down: func(ctx context.Context, tx *sqlx.Tx) error {
			_, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS skill_executions")
			return errors.Wrap(err, "failed to drop skill_executions table")
		},
	}
}
