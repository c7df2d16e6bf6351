package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateRepository creates a repository together with an Admin grant for its
// creator. Both rows are written in one transaction so a repository is never
// observable without its initial grant.
func (s *Store) CreateRepository(ctx context.Context, repo *Repository, creatorUserID string) error {
	if repo.RawStorage == "" {
		repo.RawStorage = RawStorageArchive
	}
	if repo.Access == "" {
		repo.Access = AccessPrivate
	}
	if !repo.RawStorage.Valid() {
		return &DomainValueError{Field: "raw_storage", Value: string(repo.RawStorage)}
	}
	if !repo.Access.Valid() {
		return &DomainValueError{Field: "access", Value: string(repo.Access)}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := subjectExists(ctx, tx, creatorUserID, KindUser); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO repositories (id, name, raw_storage, access) VALUES ($1, $2, $3, $4)`,
			repo.ID, repo.Name, repo.RawStorage, repo.Access,
		)
		if err != nil {
			return translateErr(err, fmt.Sprintf("repository %s", repo.ID))
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO grants (subject_id, repository_id, permission) VALUES ($1, $2, $3)`,
			creatorUserID, repo.ID, PermissionAdmin,
		)
		if err != nil {
			return translateErr(err, fmt.Sprintf("grant %s/%s", creatorUserID, repo.ID))
		}

		return nil
	})
}

// GetRepository retrieves a repository by id
func (s *Store) GetRepository(ctx context.Context, id string) (*Repository, error) {
	query := `SELECT id, name, raw_storage, access FROM repositories WHERE id = $1`

	var repo Repository
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&repo.ID, &repo.Name, &repo.RawStorage, &repo.Access,
	)
	if err != nil {
		return nil, translateErr(err, fmt.Sprintf("repository %s", id))
	}

	return &repo, nil
}

// UpdateRepository updates a repository. Nil fields are left unchanged.
func (s *Store) UpdateRepository(ctx context.Context, id string, name *string, rawStorage *RawStorage, access *AccessLevel) (*Repository, error) {
	if rawStorage != nil && !rawStorage.Valid() {
		return nil, &DomainValueError{Field: "raw_storage", Value: string(*rawStorage)}
	}
	if access != nil && !access.Valid() {
		return nil, &DomainValueError{Field: "access", Value: string(*access)}
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		repo, err := getRepositoryTx(ctx, tx, id)
		if err != nil {
			return err
		}

		if name != nil {
			repo.Name = *name
		}
		if rawStorage != nil {
			repo.RawStorage = *rawStorage
		}
		if access != nil {
			repo.Access = *access
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE repositories SET name = $1, raw_storage = $2, access = $3 WHERE id = $4`,
			repo.Name, repo.RawStorage, repo.Access, id,
		)
		if err != nil {
			return translateErr(err, fmt.Sprintf("repository %s", id))
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetRepository(ctx, id)
}

// DeleteRepository deletes a repository and everything it contains in one
// transactional cascade: rendering settings, images, keys, filesets, imports
// and grants, in dependency order. Subjects are never deleted.
func (s *Store) DeleteRepository(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getRepositoryTx(ctx, tx, id); err != nil {
			return err
		}

		statements := []string{
			`DELETE FROM rendering_settings WHERE image_id IN (
				SELECT id FROM images WHERE repository_id = $1 OR fileset_id IN (
					SELECT f.id FROM filesets f
					JOIN imports i ON f.import_id = i.id
					WHERE i.repository_id = $1
				)
			)`,
			`DELETE FROM images WHERE repository_id = $1 OR fileset_id IN (
				SELECT f.id FROM filesets f
				JOIN imports i ON f.import_id = i.id
				WHERE i.repository_id = $1
			)`,
			`DELETE FROM keys WHERE import_id IN (
				SELECT id FROM imports WHERE repository_id = $1
			)`,
			`DELETE FROM filesets WHERE import_id IN (
				SELECT id FROM imports WHERE repository_id = $1
			)`,
			`DELETE FROM imports WHERE repository_id = $1`,
			`DELETE FROM grants WHERE repository_id = $1`,
			`DELETE FROM repositories WHERE id = $1`,
		}

		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("failed to cascade delete repository %s: %w", id, err)
			}
		}

		return nil
	})
}

// GrantRepositoryToSubject creates or updates the grant for the
// (subject, repository) pair. The upsert is keyed on the pair, so
// re-granting changes the permission level in place.
func (s *Store) GrantRepositoryToSubject(ctx context.Context, repositoryID, subjectID string, permission Permission) (*Grant, error) {
	if !permission.Valid() {
		return nil, &DomainValueError{Field: "permission", Value: string(permission)}
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getRepositoryTx(ctx, tx, repositoryID); err != nil {
			return err
		}

		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM subjects WHERE id = $1)`, subjectID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check subject: %w", err)
		}
		if !exists {
			return notFoundf("subject %s", subjectID)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO grants (subject_id, repository_id, permission)
			VALUES ($1, $2, $3)
			ON CONFLICT (subject_id, repository_id) DO UPDATE SET permission = EXCLUDED.permission
		`, subjectID, repositoryID, permission)
		if err != nil {
			return translateErr(err, fmt.Sprintf("grant %s/%s", subjectID, repositoryID))
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Grant{SubjectID: subjectID, RepositoryID: repositoryID, Permission: permission}, nil
}

// ListGrantsForRepository retrieves all grants on a repository
func (s *Store) ListGrantsForRepository(ctx context.Context, repositoryID string) ([]Grant, error) {
	query := `
		SELECT subject_id, repository_id, permission
		FROM grants
		WHERE repository_id = $1
		ORDER BY subject_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		var grant Grant
		if err := rows.Scan(&grant.SubjectID, &grant.RepositoryID, &grant.Permission); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, grant)
	}

	return grants, rows.Err()
}

// getRepositoryTx fetches a repository inside a transaction
func getRepositoryTx(ctx context.Context, tx *sql.Tx, id string) (*Repository, error) {
	var repo Repository
	err := tx.QueryRowContext(ctx,
		`SELECT id, name, raw_storage, access FROM repositories WHERE id = $1`, id,
	).Scan(&repo.ID, &repo.Name, &repo.RawStorage, &repo.Access)
	if err != nil {
		return nil, translateErr(err, fmt.Sprintf("repository %s", id))
	}
	return &repo, nil
}
