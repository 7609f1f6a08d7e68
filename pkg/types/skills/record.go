package skills

import "time"

// ExecutionRecord describes one completed call to execute a skill
type ExecutionRecord struct {
	ID         string        `json:"id" db:"id"`
	Skill      string        `json:"skill" db:"skill_name"`
	Type       ExecutionKind `json:"type" db:"execution_type"`
	InputsHash string        `json:"inputs_hash" db:"inputs_hash"`
	Cached     bool          `json:"cached" db:"cached"`
	Success    bool          `json:"success" db:"success"`
	Error      string        `json:"error,omitempty" db:"error"`
	Duration   time.Duration `json:"duration" db:"duration_ns"`
	StartedAt  time.Time     `json:"started_at" db:"started_at"`
}
