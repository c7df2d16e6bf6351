package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// CreateFileset creates a fileset under an existing import and binds the
// named keys to it. The existence check on each key's current binding runs
// in the same transaction as the binding write, so of two concurrent
// creations racing for a key exactly one wins and the other gets a conflict.
func (s *Store) CreateFileset(ctx context.Context, fs *Fileset, keys []string) error {
	if fs.Progress < 0 || fs.Progress > 100 {
		return &DomainValueError{Field: "progress", Value: fmt.Sprintf("%d", fs.Progress)}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM imports WHERE id = $1)`, fs.ImportID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check import: %w", err)
		}
		if !exists {
			return notFoundf("import %s", fs.ImportID)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO filesets (id, name, reader, reader_software, reader_version, complete, progress, import_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, fs.ID, fs.Name, fs.Reader, fs.ReaderSoftware, fs.ReaderVersion, fs.Complete, fs.Progress, fs.ImportID)
		if err != nil {
			return translateErr(err, fmt.Sprintf("fileset %s", fs.ID))
		}

		if len(keys) > 0 {
			if err := bindKeys(ctx, tx, fs.ImportID, fs.ID, keys); err != nil {
				return err
			}
		}

		return nil
	})
}

// bindKeys binds keys within an import to a fileset. A key already bound to
// another fileset is a hard conflict, never a silent overwrite.
func bindKeys(ctx context.Context, tx *sql.Tx, importID, filesetID string, keys []string) error {
	placeholders := make([]string, len(keys))
	args := []interface{}{importID}
	for i, key := range keys {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, key)
	}

	query := fmt.Sprintf(`
		SELECT key, fileset_id FROM keys
		WHERE import_id = $1 AND key IN (%s)
	`, strings.Join(placeholders, ", "))

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to look up keys: %w", err)
	}
	defer rows.Close()

	var matched []string
	for rows.Next() {
		var key string
		var bound sql.NullString
		if err := rows.Scan(&key, &bound); err != nil {
			return fmt.Errorf("failed to scan key: %w", err)
		}
		if bound.Valid && bound.String != filesetID {
			return conflictf("key %s is already used by another fileset", key)
		}
		matched = append(matched, key)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// The guard on fileset_id makes the write conditional on what the check
	// above saw. Under READ COMMITTED a concurrent binder can commit between
	// the check and this write; its claim re-evaluates the WHERE clause,
	// matches zero rows, and surfaces as a conflict instead of a silent
	// rebind.
	for _, key := range matched {
		res, err := tx.ExecContext(ctx, `
			UPDATE keys SET fileset_id = $1
			WHERE key = $2 AND import_id = $3
			  AND (fileset_id IS NULL OR fileset_id = $1)
		`, filesetID, key, importID)
		if err != nil {
			return fmt.Errorf("failed to bind key %s: %w", key, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to bind key %s: %w", key, err)
		}
		if affected == 0 {
			return conflictf("key %s is already used by another fileset", key)
		}
	}

	return nil
}

// GetFileset retrieves a fileset by id
func (s *Store) GetFileset(ctx context.Context, id string) (*Fileset, error) {
	query := `
		SELECT id, name, reader, reader_software, reader_version, complete, progress, import_id
		FROM filesets
		WHERE id = $1
	`

	var fs Fileset
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&fs.ID, &fs.Name, &fs.Reader, &fs.ReaderSoftware, &fs.ReaderVersion,
		&fs.Complete, &fs.Progress, &fs.ImportID,
	)
	if err != nil {
		return nil, translateErr(err, fmt.Sprintf("fileset %s", id))
	}

	return &fs, nil
}

// SetFilesetComplete marks a fileset complete and registers the detected
// images atomically
func (s *Store) SetFilesetComplete(ctx context.Context, id string, images []NewImage) (*Fileset, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM filesets WHERE id = $1)`, id,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check fileset: %w", err)
		}
		if !exists {
			return notFoundf("fileset %s", id)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE filesets SET complete = TRUE, progress = 100 WHERE id = $1`, id,
		)
		if err != nil {
			return fmt.Errorf("failed to complete fileset %s: %w", id, err)
		}

		return insertFilesetImages(ctx, tx, id, images)
	})
	if err != nil {
		return nil, err
	}

	return s.GetFileset(ctx, id)
}

// UpdateFileset updates a fileset. Nil fields are left unchanged. Images may
// only be registered once the fileset is complete; completion itself is
// one-way.
func (s *Store) UpdateFileset(ctx context.Context, id string, name *string, complete *bool, progress *int, images []NewImage) (*Fileset, error) {
	if progress != nil && (*progress < 0 || *progress > 100) {
		return nil, &DomainValueError{Field: "progress", Value: fmt.Sprintf("%d", *progress)}
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var fs Fileset
		err := tx.QueryRowContext(ctx, `
			SELECT id, name, reader, reader_software, reader_version, complete, progress, import_id
			FROM filesets WHERE id = $1
		`, id).Scan(
			&fs.ID, &fs.Name, &fs.Reader, &fs.ReaderSoftware, &fs.ReaderVersion,
			&fs.Complete, &fs.Progress, &fs.ImportID,
		)
		if err != nil {
			return translateErr(err, fmt.Sprintf("fileset %s", id))
		}

		if name != nil {
			fs.Name = *name
		}
		if complete != nil {
			if fs.Complete && !*complete {
				return fmt.Errorf("fileset %s is already complete: %w", id, ErrInvalidState)
			}
			fs.Complete = *complete
		}
		if progress != nil {
			fs.Progress = *progress
		}

		if len(images) > 0 && !fs.Complete {
			return fmt.Errorf("images can only be registered to a completed fileset: %w", ErrInvalidState)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE filesets SET name = $1, complete = $2, progress = $3 WHERE id = $4`,
			fs.Name, fs.Complete, fs.Progress, id,
		)
		if err != nil {
			return translateErr(err, fmt.Sprintf("fileset %s", id))
		}

		return insertFilesetImages(ctx, tx, id, images)
	})
	if err != nil {
		return nil, err
	}

	return s.GetFileset(ctx, id)
}

// ListFilesetsInImport retrieves all filesets owned by an import
func (s *Store) ListFilesetsInImport(ctx context.Context, importID string) ([]Fileset, error) {
	query := `
		SELECT id, name, reader, reader_software, reader_version, complete, progress, import_id
		FROM filesets
		WHERE import_id = $1
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, importID)
	if err != nil {
		return nil, fmt.Errorf("failed to list filesets: %w", err)
	}
	defer rows.Close()

	var filesets []Fileset
	for rows.Next() {
		var fs Fileset
		if err := rows.Scan(
			&fs.ID, &fs.Name, &fs.Reader, &fs.ReaderSoftware, &fs.ReaderVersion,
			&fs.Complete, &fs.Progress, &fs.ImportID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan fileset: %w", err)
		}
		filesets = append(filesets, fs)
	}

	return filesets, rows.Err()
}

func insertFilesetImages(ctx context.Context, tx *sql.Tx, filesetID string, images []NewImage) error {
	for _, img := range images {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO images (id, name, pyramid_levels, deleted, format, compression, tile_size, rgb, fileset_id)
			VALUES ($1, $2, $3, FALSE, $4, $5, $6, $7, $8)
		`, img.ID, img.Name, img.PyramidLevels,
			nullString(img.Format), nullString(img.Compression), nullInt(img.TileSize),
			img.RGB, filesetID)
		if err != nil {
			return translateErr(err, fmt.Sprintf("image %s", img.ID))
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(i int) sql.NullInt64 {
	if i == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(i), Valid: true}
}
