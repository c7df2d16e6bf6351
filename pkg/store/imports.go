package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateImport creates an import under an existing repository
func (s *Store) CreateImport(ctx context.Context, imp *Import) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getRepositoryTx(ctx, tx, imp.RepositoryID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO imports (id, name, complete, repository_id) VALUES ($1, $2, $3, $4)`,
			imp.ID, imp.Name, imp.Complete, imp.RepositoryID,
		)
		if err != nil {
			return translateErr(err, fmt.Sprintf("import %s", imp.ID))
		}

		return nil
	})
}

// GetImport retrieves an import by id
func (s *Store) GetImport(ctx context.Context, id string) (*Import, error) {
	query := `SELECT id, name, complete, repository_id FROM imports WHERE id = $1`

	var imp Import
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&imp.ID, &imp.Name, &imp.Complete, &imp.RepositoryID,
	)
	if err != nil {
		return nil, translateErr(err, fmt.Sprintf("import %s", id))
	}

	return &imp, nil
}

// UpdateImport updates an import. Nil fields are left unchanged. Completion
// is one-way: a complete import cannot transition back to incomplete.
func (s *Store) UpdateImport(ctx context.Context, id string, name *string, complete *bool) (*Import, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var imp Import
		err := tx.QueryRowContext(ctx,
			`SELECT id, name, complete, repository_id FROM imports WHERE id = $1`, id,
		).Scan(&imp.ID, &imp.Name, &imp.Complete, &imp.RepositoryID)
		if err != nil {
			return translateErr(err, fmt.Sprintf("import %s", id))
		}

		if name != nil {
			imp.Name = *name
		}
		if complete != nil {
			if imp.Complete && !*complete {
				return fmt.Errorf("import %s is already complete: %w", id, ErrInvalidState)
			}
			imp.Complete = *complete
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE imports SET name = $1, complete = $2 WHERE id = $3`,
			imp.Name, imp.Complete, id,
		)
		if err != nil {
			return translateErr(err, fmt.Sprintf("import %s", id))
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetImport(ctx, id)
}

// ListImportsInRepository retrieves all imports owned by a repository
func (s *Store) ListImportsInRepository(ctx context.Context, repositoryID string) ([]Import, error) {
	query := `
		SELECT id, name, complete, repository_id
		FROM imports
		WHERE repository_id = $1
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list imports: %w", err)
	}
	defer rows.Close()

	var imports []Import
	for rows.Next() {
		var imp Import
		if err := rows.Scan(&imp.ID, &imp.Name, &imp.Complete, &imp.RepositoryID); err != nil {
			return nil, fmt.Errorf("failed to scan import: %w", err)
		}
		imports = append(imports, imp)
	}

	return imports, rows.Err()
}

// AddKeysToImport registers raw storage keys against an existing import.
// Keys are unique per import; registering a duplicate is a conflict.
func (s *Store) AddKeysToImport(ctx context.Context, importID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM imports WHERE id = $1)`, importID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check import: %w", err)
		}
		if !exists {
			return notFoundf("import %s", importID)
		}

		for _, key := range keys {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO keys (key, import_id) VALUES ($1, $2)`,
				key, importID,
			)
			if err != nil {
				return translateErr(err, fmt.Sprintf("key %s", key))
			}
		}

		return nil
	})
}

// ListKeysInImport retrieves all keys registered against an import
func (s *Store) ListKeysInImport(ctx context.Context, importID string) ([]Key, error) {
	query := `
		SELECT key, import_id, fileset_id
		FROM keys
		WHERE import_id = $1
		ORDER BY key ASC
	`

	rows, err := s.db.QueryContext(ctx, query, importID)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	return scanKeys(rows)
}

// ListKeysInFileset retrieves all keys bound to a fileset
func (s *Store) ListKeysInFileset(ctx context.Context, filesetID string) ([]Key, error) {
	query := `
		SELECT key, import_id, fileset_id
		FROM keys
		WHERE fileset_id = $1
		ORDER BY key ASC
	`

	rows, err := s.db.QueryContext(ctx, query, filesetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	return scanKeys(rows)
}

func scanKeys(rows *sql.Rows) ([]Key, error) {
	var keys []Key
	for rows.Next() {
		var key Key
		var filesetID sql.NullString
		if err := rows.Scan(&key.Key, &key.ImportID, &filesetID); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		if filesetID.Valid {
			id := filesetID.String
			key.FilesetID = &id
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}
