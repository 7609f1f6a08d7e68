package migrations

import (
	"context"

	"github.com/jingkaihe/skillet/pkg/db"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Migration20261017000002AddSkillExecutionIndexes indexes history lookups by
// skill and by time
func Migration20261017000002AddSkillExecutionIndexes() db.Migration {
	return db.Migration{
		Version:     20261017000002,
		Description: "Add skill_executions indexes",
		Up: func(ctx context.Context, tx *sqlx.Tx) error {
			indexes := []string{
				"CREATE INDEX IF NOT EXISTS idx_skill_executions_skill ON skill_executions(skill_name, started_at DESC)",
				"CREATE INDEX IF NOT EXISTS idx_skill_executions_started ON skill_executions(started_at DESC)",
			}
			for _, stmt := range indexes {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return errors.Wrapf(err, "failed to create index: %s", stmt)
				}
			}
			return nil
		},
		Down: func(ctx context.Context, tx *sqlx.Tx) error {
			for _, name := range []string{"idx_skill_executions_skill", "idx_skill_executions_started"} {
				if _, err := tx.ExecContext(ctx, "DROP INDEX IF EXISTS "+name); err != nil {
					return errors.Wrapf(err, "failed to drop index %s", name)
				}
			}
			return nil
		},
	}
}
