package primary

var schema = []string{
	`CREATE TABLE IF NOT EXISTS memories (
		id          UUID PRIMARY KEY,
		user_id     TEXT NOT NULL DEFAULT '',
		app_name    TEXT NOT NULL DEFAULT '',
		content     TEXT NOT NULL,
		metadata    JSONB NOT NULL DEFAULT '{}'::jsonb,
		state       TEXT NOT NULL DEFAULT 'active',
		archived_at TIMESTAMPTZ,
		deleted_at  TIMESTAMPTZ,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_memories_user_state ON memories (user_id, state)`,
	`CREATE INDEX IF NOT EXISTS idx_memories_created_at ON memories (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id          UUID PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		description TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS memory_categories (
		memory_id   UUID NOT NULL REFERENCES memories (id) ON DELETE CASCADE,
		category_id UUID NOT NULL REFERENCES categories (id) ON DELETE CASCADE,
		PRIMARY KEY (memory_id, category_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_memory_categories_category ON memory_categories (category_id)`,
	`CREATE TABLE IF NOT EXISTS ai_usage_logs (
		id                BIGSERIAL PRIMARY KEY,
		timestamp         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		provider_name     TEXT NOT NULL,
		service_type      TEXT NOT NULL,
		model_name        TEXT NOT NULL,
		input_tokens      INTEGER NOT NULL DEFAULT 0,
		output_tokens     INTEGER NOT NULL DEFAULT 0,
		cost              DOUBLE PRECISION NOT NULL DEFAULT 0,
		related_memory_id UUID,
		related_job_id    UUID
	)`,
	`CREATE TABLE IF NOT EXISTS background_jobs (
		id                  BIGSERIAL PRIMARY KEY,
		job_id              UUID NOT NULL UNIQUE,
		task_type           TEXT NOT NULL,
		payload             JSONB NOT NULL DEFAULT '{}'::jsonb,
		queue               TEXT NOT NULL,
		status              TEXT NOT NULL,
		related_entity_type TEXT,
		related_entity_id   UUID,
		error               TEXT,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}
