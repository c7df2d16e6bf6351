package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all schema migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create subjects and memberships",
			SQL: `
				CREATE TABLE IF NOT EXISTS subjects (
					id VARCHAR(36) PRIMARY KEY,
					kind VARCHAR(16) NOT NULL CHECK (kind IN ('user', 'group')),
					name VARCHAR(256),
					email VARCHAR(256)
				);

				CREATE UNIQUE INDEX idx_subjects_group_name ON subjects(name) WHERE kind = 'group';
				CREATE INDEX idx_subjects_kind ON subjects(kind);

				CREATE TABLE IF NOT EXISTS memberships (
					group_id VARCHAR(36) NOT NULL REFERENCES subjects(id),
					user_id VARCHAR(36) NOT NULL REFERENCES subjects(id),
					membership_type VARCHAR(16) NOT NULL CHECK (membership_type IN ('Member', 'Owner')),
					PRIMARY KEY (group_id, user_id)
				);

				CREATE INDEX idx_memberships_user_id ON memberships(user_id);
			`,
		},
		{
			Version:     2,
			Description: "Create repositories and grants",
			SQL: `
				CREATE TABLE IF NOT EXISTS repositories (
					id VARCHAR(36) PRIMARY KEY,
					name VARCHAR(256) NOT NULL UNIQUE,
					raw_storage VARCHAR(16) NOT NULL DEFAULT 'Archive'
						CHECK (raw_storage IN ('Archive', 'Live', 'Destroy')),
					access VARCHAR(16) NOT NULL DEFAULT 'Private'
						CHECK (access IN ('Private', 'PublicRead', 'PublicWrite'))
				);

				CREATE TABLE IF NOT EXISTS grants (
					subject_id VARCHAR(36) NOT NULL REFERENCES subjects(id),
					repository_id VARCHAR(36) NOT NULL REFERENCES repositories(id),
					permission VARCHAR(16) NOT NULL CHECK (permission IN ('Read', 'Write', 'Admin')),
					PRIMARY KEY (subject_id, repository_id)
				);

				CREATE INDEX idx_grants_repository_id ON grants(repository_id);
			`,
		},
		{
			Version:     3,
			Description: "Create imports, filesets and keys",
			SQL: `
				CREATE TABLE IF NOT EXISTS imports (
					id VARCHAR(36) PRIMARY KEY,
					name VARCHAR(256) NOT NULL,
					complete BOOLEAN NOT NULL DEFAULT FALSE,
					repository_id VARCHAR(36) NOT NULL REFERENCES repositories(id)
				);

				CREATE INDEX idx_imports_repository_id ON imports(repository_id);

				CREATE TABLE IF NOT EXISTS filesets (
					id VARCHAR(36) PRIMARY KEY,
					name VARCHAR(256) NOT NULL,
					reader VARCHAR(256) NOT NULL,
					reader_software VARCHAR(256) NOT NULL,
					reader_version VARCHAR(256) NOT NULL,
					complete BOOLEAN NOT NULL DEFAULT FALSE,
					progress INTEGER NOT NULL DEFAULT 0 CHECK (progress BETWEEN 0 AND 100),
					import_id VARCHAR(36) NOT NULL REFERENCES imports(id)
				);

				CREATE INDEX idx_filesets_import_id ON filesets(import_id);

				CREATE TABLE IF NOT EXISTS keys (
					key VARCHAR(1024) NOT NULL,
					import_id VARCHAR(36) NOT NULL REFERENCES imports(id),
					fileset_id VARCHAR(36) REFERENCES filesets(id),
					PRIMARY KEY (key, import_id)
				);

				CREATE INDEX idx_keys_fileset_id ON keys(fileset_id);
			`,
		},
		{
			Version:     4,
			Description: "Create images and rendering settings",
			SQL: `
				CREATE TABLE IF NOT EXISTS images (
					id VARCHAR(36) PRIMARY KEY,
					name VARCHAR(256) NOT NULL,
					pyramid_levels INTEGER NOT NULL,
					deleted BOOLEAN NOT NULL DEFAULT FALSE,
					format VARCHAR(64),
					compression VARCHAR(64),
					tile_size INTEGER,
					rgb BOOLEAN NOT NULL DEFAULT FALSE,
					fileset_id VARCHAR(36) REFERENCES filesets(id),
					repository_id VARCHAR(36) REFERENCES repositories(id),
					CHECK (fileset_id IS NOT NULL OR repository_id IS NOT NULL)
				);

				CREATE INDEX idx_images_fileset_id ON images(fileset_id);
				CREATE INDEX idx_images_repository_id ON images(repository_id);

				CREATE TABLE IF NOT EXISTS rendering_settings (
					id VARCHAR(36) PRIMARY KEY,
					image_id VARCHAR(36) NOT NULL REFERENCES images(id),
					label VARCHAR(256),
					channels TEXT NOT NULL DEFAULT '[]'
				);

				CREATE INDEX idx_rendering_settings_image_id ON rendering_settings(image_id);
			`,
		},
	}
}

// RunMigrations executes all pending migrations, each inside its own
// transaction, recording applied versions in a tracking table.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS minerva_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM minerva_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO minerva_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
