package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// CreateImage creates an image. The image belongs either directly to a
// repository or to a fileset; exactly one parent must be supplied. A
// fileset-owned image may only be registered once its fileset is complete.
func (s *Store) CreateImage(ctx context.Context, img *Image) error {
	if (img.FilesetID == nil) == (img.RepositoryID == nil) {
		return &DomainValueError{Field: "parent", Value: "exactly one of fileset_id and repository_id is required"}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if img.FilesetID != nil {
			var complete bool
			err := tx.QueryRowContext(ctx,
				`SELECT complete FROM filesets WHERE id = $1`, *img.FilesetID,
			).Scan(&complete)
			if err != nil {
				return translateErr(err, fmt.Sprintf("fileset %s", *img.FilesetID))
			}
			if !complete {
				return fmt.Errorf("images can only be registered to a completed fileset: %w", ErrInvalidState)
			}
		} else {
			if _, err := getRepositoryTx(ctx, tx, *img.RepositoryID); err != nil {
				return err
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO images (id, name, pyramid_levels, deleted, format, compression, tile_size, rgb, fileset_id, repository_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, img.ID, img.Name, img.PyramidLevels, img.Deleted,
			nullString(img.Format), nullString(img.Compression), nullInt(img.TileSize),
			img.RGB, nullStringPtr(img.FilesetID), nullStringPtr(img.RepositoryID))
		if err != nil {
			return translateErr(err, fmt.Sprintf("image %s", img.ID))
		}

		return nil
	})
}

// GetImage retrieves an image by id
func (s *Store) GetImage(ctx context.Context, id string) (*Image, error) {
	query := `
		SELECT id, name, pyramid_levels, deleted, format, compression, tile_size, rgb, fileset_id, repository_id
		FROM images
		WHERE id = $1
	`

	row := s.db.QueryRowContext(ctx, query, id)
	img, err := scanImage(row)
	if err != nil {
		return nil, translateErr(err, fmt.Sprintf("image %s", id))
	}

	return img, nil
}

// MarkImageDeleted flags an image as deleted without removing the row
func (s *Store) MarkImageDeleted(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE images SET deleted = TRUE WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark image deleted: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return notFoundf("image %s", id)
	}

	return nil
}

// DeleteImage removes an image and its rendering settings in one transaction
func (s *Store) DeleteImage(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM rendering_settings WHERE image_id = $1`, id,
		); err != nil {
			return fmt.Errorf("failed to delete rendering settings: %w", err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM images WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete image: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return notFoundf("image %s", id)
		}

		return nil
	})
}

// ListImagesInFileset retrieves all non-deleted images owned by a fileset
func (s *Store) ListImagesInFileset(ctx context.Context, filesetID string) ([]Image, error) {
	query := `
		SELECT id, name, pyramid_levels, deleted, format, compression, tile_size, rgb, fileset_id, repository_id
		FROM images
		WHERE fileset_id = $1 AND NOT deleted
		ORDER BY id ASC
	`

	return s.listImages(ctx, query, filesetID)
}

// ListImagesInRepository retrieves all non-deleted images directly owned by
// a repository (images under filesets are listed through their fileset)
func (s *Store) ListImagesInRepository(ctx context.Context, repositoryID string) ([]Image, error) {
	query := `
		SELECT id, name, pyramid_levels, deleted, format, compression, tile_size, rgb, fileset_id, repository_id
		FROM images
		WHERE repository_id = $1 AND NOT deleted
		ORDER BY id ASC
	`

	return s.listImages(ctx, query, repositoryID)
}

func (s *Store) listImages(ctx context.Context, query string, arg interface{}) ([]Image, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, *img)
	}

	return images, rows.Err()
}

// CreateRenderingSettings creates a channel-rendering configuration for an
// existing image. Channels are stored as a JSON document, matching the
// source schema.
func (s *Store) CreateRenderingSettings(ctx context.Context, rs *RenderingSettings) error {
	channels, err := json.Marshal(rs.Channels)
	if err != nil {
		return fmt.Errorf("failed to marshal channels: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM images WHERE id = $1)`, rs.ImageID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check image: %w", err)
		}
		if !exists {
			return notFoundf("image %s", rs.ImageID)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO rendering_settings (id, image_id, label, channels) VALUES ($1, $2, $3, $4)`,
			rs.ID, rs.ImageID, nullString(rs.Label), string(channels),
		)
		if err != nil {
			return translateErr(err, fmt.Sprintf("rendering settings %s", rs.ID))
		}

		return nil
	})
}

// GetRenderingSettings retrieves a rendering settings record by id
func (s *Store) GetRenderingSettings(ctx context.Context, id string) (*RenderingSettings, error) {
	query := `SELECT id, image_id, label, channels FROM rendering_settings WHERE id = $1`

	var rs RenderingSettings
	var label sql.NullString
	var channels string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&rs.ID, &rs.ImageID, &label, &channels)
	if err != nil {
		return nil, translateErr(err, fmt.Sprintf("rendering settings %s", id))
	}

	rs.Label = label.String
	if err := json.Unmarshal([]byte(channels), &rs.Channels); err != nil {
		return nil, fmt.Errorf("failed to unmarshal channels: %w", err)
	}

	return &rs, nil
}

// ListRenderingSettingsForImage retrieves all rendering settings of an image
func (s *Store) ListRenderingSettingsForImage(ctx context.Context, imageID string) ([]RenderingSettings, error) {
	query := `
		SELECT id, image_id, label, channels
		FROM rendering_settings
		WHERE image_id = $1
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, imageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rendering settings: %w", err)
	}
	defer rows.Close()

	var settings []RenderingSettings
	for rows.Next() {
		var rs RenderingSettings
		var label sql.NullString
		var channels string
		if err := rows.Scan(&rs.ID, &rs.ImageID, &label, &channels); err != nil {
			return nil, fmt.Errorf("failed to scan rendering settings: %w", err)
		}
		rs.Label = label.String
		if err := json.Unmarshal([]byte(channels), &rs.Channels); err != nil {
			return nil, fmt.Errorf("failed to unmarshal channels: %w", err)
		}
		settings = append(settings, rs)
	}

	return settings, rows.Err()
}

func scanImage(scanner interface {
	Scan(dest ...interface{}) error
}) (*Image, error) {
	var img Image
	var format, compression sql.NullString
	var tileSize sql.NullInt64
	var filesetID, repositoryID sql.NullString

	err := scanner.Scan(
		&img.ID, &img.Name, &img.PyramidLevels, &img.Deleted,
		&format, &compression, &tileSize, &img.RGB,
		&filesetID, &repositoryID,
	)
	if err != nil {
		return nil, err
	}

	img.Format = format.String
	img.Compression = compression.String
	img.TileSize = int(tileSize.Int64)
	if filesetID.Valid {
		id := filesetID.String
		img.FilesetID = &id
	}
	if repositoryID.Valid {
		id := repositoryID.String
		img.RepositoryID = &id
	}

	return &img, nil
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
