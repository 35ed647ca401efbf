package db

// migrations are idempotent and applied in order
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS skill_verifications (
		id                   BIGSERIAL PRIMARY KEY,
		github_username      TEXT NOT NULL,
		document_fingerprint TEXT NOT NULL,
		resume_file_name     TEXT NOT NULL DEFAULT '',
		resume_skills        JSONB NOT NULL DEFAULT '[]'::jsonb,
		github_skills        JSONB NOT NULL DEFAULT '[]'::jsonb,
		verification_result  JSONB NOT NULL,
		verification_hash    TEXT NOT NULL,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_skill_verifications_username
		ON skill_verifications (github_username)`,
	`CREATE INDEX IF NOT EXISTS idx_skill_verifications_fingerprint
		ON skill_verifications (document_fingerprint)`,
}
