// Package migrations holds skillet's schema migrations
package migrations

import "github.com/jingkaihe/skillet/pkg/db"

// All returns every migration. New migrations are appended here.
func All() []db.Migration {
	return []db.Migration{
		Migration20261017000001CreateSkillExecutions(),
		Migration20261017000002AddSkillExecutionIndexes(),
	}
}
