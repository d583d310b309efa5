package sqlstore

import (
	"context"
	"strings"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	auth_party_id TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL,
	encryption_key BLOB,
	encrypt_by_default INTEGER NOT NULL DEFAULT 0,
	recycle_bin_enabled INTEGER NOT NULL DEFAULT 1,
	allow_shared_with_me INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS nodes (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	parent_id TEXT,
	name TEXT NOT NULL,
	path TEXT NOT NULL,
	type TEXT NOT NULL,
	size INTEGER NOT NULL DEFAULT 0,
	mime_type TEXT NOT NULL DEFAULT '',
	encrypted INTEGER NOT NULL DEFAULT 0,
	starred INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	deleted_at DATETIME,
	original_path TEXT,
	deleted_with_parent_id TEXT
);

-- enforces (userId, path) uniqueness only among live nodes; SQLite
-- supports partial indexes natively.
CREATE UNIQUE INDEX IF NOT EXISTS idx_nodes_user_path_live
	ON nodes(user_id, path) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_id);
CREATE INDEX IF NOT EXISTS idx_nodes_user_deleted ON nodes(user_id, deleted_at);

CREATE TABLE IF NOT EXISTS chunk_pointers (
	id TEXT PRIMARY KEY,
	file_id TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	message_id TEXT NOT NULL,
	channel_id TEXT NOT NULL,
	attachment_url TEXT NOT NULL DEFAULT '',
	size INTEGER NOT NULL,
	UNIQUE(file_id, chunk_index)
);
CREATE INDEX IF NOT EXISTS idx_chunks_file ON chunk_pointers(file_id);

CREATE TABLE IF NOT EXISTS shares (
	id TEXT PRIMARY KEY,
	file_id TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	shared_with_id TEXT NOT NULL,
	permission TEXT NOT NULL,
	UNIQUE(file_id, shared_with_id)
);
CREATE INDEX IF NOT EXISTS idx_shares_shared_with ON shares(shared_with_id);

CREATE TABLE IF NOT EXISTS public_links (
	id TEXT PRIMARY KEY,
	slug TEXT NOT NULL UNIQUE,
	file_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	expires_at DATETIME
);

CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	cron TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	sftp_host TEXT NOT NULL,
	sftp_port INTEGER NOT NULL DEFAULT 22,
	sftp_user TEXT NOT NULL,
	sftp_password TEXT,
	sftp_private_key BLOB,
	sftp_path TEXT NOT NULL,
	destination_id TEXT NOT NULL,
	destination_path TEXT NOT NULL,
	exclude_paths TEXT NOT NULL DEFAULT '',
	compress TEXT NOT NULL DEFAULT 'NONE',
	timestamp_names INTEGER NOT NULL DEFAULT 0,
	encrypt INTEGER NOT NULL DEFAULT 0,
	max_files INTEGER NOT NULL DEFAULT 0,
	skip_prescan INTEGER NOT NULL DEFAULT 0,
	priority INTEGER NOT NULL DEFAULT 0,
	last_started DATETIME,
	last_run DATETIME,
	last_runtime_ms INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS logs (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	category TEXT NOT NULL,
	level TEXT NOT NULL,
	message TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_logs_user ON logs(user_id, created_at);
`

// mysqlSchema mirrors sqliteSchema. MySQL has no native partial index, so
// the (userId,path)-among-live-rows constraint is emulated with a
// generated column that collapses every trashed row onto NULL (MySQL
// permits multiple NULLs through a unique index) — the documented
// generated-column workaround for MySQL's missing partial-index support.
const mysqlSchema = `
CREATE TABLE IF NOT EXISTS users (
	id VARCHAR(64) PRIMARY KEY,
	auth_party_id VARCHAR(255) NOT NULL UNIQUE,
	display_name VARCHAR(255) NOT NULL,
	encryption_key VARBINARY(64),
	encrypt_by_default TINYINT NOT NULL DEFAULT 0,
	recycle_bin_enabled TINYINT NOT NULL DEFAULT 1,
	allow_shared_with_me TINYINT NOT NULL DEFAULT 1
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS nodes (
	id VARCHAR(64) PRIMARY KEY,
	user_id VARCHAR(64) NOT NULL,
	parent_id VARCHAR(64),
	name VARCHAR(1024) NOT NULL,
	path VARCHAR(2048) NOT NULL,
	type VARCHAR(16) NOT NULL,
	size BIGINT UNSIGNED NOT NULL DEFAULT 0,
	mime_type VARCHAR(255) NOT NULL DEFAULT '',
	encrypted TINYINT NOT NULL DEFAULT 0,
	starred TINYINT NOT NULL DEFAULT 0,
	created_at DATETIME(6) NOT NULL,
	updated_at DATETIME(6) NOT NULL,
	deleted_at DATETIME(6) NULL,
	original_path VARCHAR(2048),
	deleted_with_parent_id VARCHAR(64),
	path_live_key VARCHAR(2048) AS (CASE WHEN deleted_at IS NULL THEN CONCAT(user_id, '\0', path) ELSE NULL END) STORED,
	UNIQUE KEY idx_nodes_user_path_live (path_live_key),
	KEY idx_nodes_parent (parent_id),
	KEY idx_nodes_user_deleted (user_id, deleted_at)
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS chunk_pointers (
	id VARCHAR(64) PRIMARY KEY,
	file_id VARCHAR(64) NOT NULL,
	chunk_index INT NOT NULL,
	message_id VARCHAR(64) NOT NULL,
	channel_id VARCHAR(64) NOT NULL,
	attachment_url VARCHAR(2048) NOT NULL DEFAULT '',
	size BIGINT UNSIGNED NOT NULL,
	UNIQUE KEY idx_chunks_unique (file_id, chunk_index),
	KEY idx_chunks_file (file_id)
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS shares (
	id VARCHAR(64) PRIMARY KEY,
	file_id VARCHAR(64) NOT NULL,
	owner_id VARCHAR(64) NOT NULL,
	shared_with_id VARCHAR(64) NOT NULL,
	permission VARCHAR(16) NOT NULL,
	UNIQUE KEY idx_shares_unique (file_id, shared_with_id),
	KEY idx_shares_shared_with (shared_with_id)
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS public_links (
	id VARCHAR(64) PRIMARY KEY,
	slug VARCHAR(128) NOT NULL UNIQUE,
	file_id VARCHAR(64) NOT NULL,
	user_id VARCHAR(64) NOT NULL,
	expires_at DATETIME(6) NULL
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS tasks (
	id VARCHAR(64) PRIMARY KEY,
	user_id VARCHAR(64) NOT NULL,
	name VARCHAR(255) NOT NULL,
	cron VARCHAR(128) NOT NULL,
	enabled TINYINT NOT NULL DEFAULT 1,
	sftp_host VARCHAR(255) NOT NULL,
	sftp_port INT NOT NULL DEFAULT 22,
	sftp_user VARCHAR(255) NOT NULL,
	sftp_password VARBINARY(512),
	sftp_private_key BLOB,
	sftp_path VARCHAR(2048) NOT NULL,
	destination_id VARCHAR(64) NOT NULL,
	destination_path VARCHAR(2048) NOT NULL,
	exclude_paths TEXT NOT NULL,
	compress VARCHAR(16) NOT NULL DEFAULT 'NONE',
	timestamp_names TINYINT NOT NULL DEFAULT 0,
	encrypt TINYINT NOT NULL DEFAULT 0,
	max_files INT NOT NULL DEFAULT 0,
	skip_prescan TINYINT NOT NULL DEFAULT 0,
	priority INT NOT NULL DEFAULT 0,
	last_started DATETIME(6) NULL,
	last_run DATETIME(6) NULL,
	last_runtime_ms BIGINT NOT NULL DEFAULT 0
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS logs (
	id VARCHAR(64) PRIMARY KEY,
	user_id VARCHAR(64) NOT NULL,
	category VARCHAR(16) NOT NULL,
	level VARCHAR(16) NOT NULL,
	message TEXT NOT NULL,
	created_at DATETIME(6) NOT NULL,
	KEY idx_logs_user (user_id, created_at)
) ENGINE=InnoDB;
`

// Migrate applies the schema for s's driver. Idempotent: every statement
// is IF NOT EXISTS.
func (s *Store) Migrate(ctx context.Context) error {
	schema := sqliteSchema
	if s.driver == DriverMySQL {
		schema = mysqlSchema
	}
	for _, stmt := range splitStatements(schema) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func splitStatements(schema string) []string {
	raw := strings.Split(schema, ";")
	out := make([]string, 0, len(raw))
	for _, stmt := range raw {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
