package authz

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/minerva-imaging/minervadb/pkg/store"
)

// HierarchyResolver maps any resource in the containment tree to the
// repository that owns it. The hierarchy has fixed depth and known types,
// so each type gets its own enumerable join chain instead of a recursive
// walk.
type HierarchyResolver struct {
	db Querier
}

// NewHierarchyResolver creates a resolver over a read querier
func NewHierarchyResolver(db Querier) *HierarchyResolver {
	return &HierarchyResolver{db: db}
}

// RepositoryOwning returns the id of the repository owning the resource.
// A missing resource, or a broken link anywhere in the chain, is a NotFound
// error — distinct from a permission denial, which is a boolean outcome of
// the engine, never an error here.
func (r *HierarchyResolver) RepositoryOwning(ctx context.Context, resourceType store.ResourceType, resourceID string) (string, error) {
	var query string

	switch resourceType {
	case store.ResourceRepository:
		// Identity case, but the resource must still exist
		query = `SELECT id FROM repositories WHERE id = $1`
	case store.ResourceImport:
		query = `SELECT repository_id FROM imports WHERE id = $1`
	case store.ResourceFileset:
		query = `
			SELECT i.repository_id
			FROM filesets f
			JOIN imports i ON f.import_id = i.id
			WHERE f.id = $1
		`
	case store.ResourceImage:
		// An image hangs off a repository directly or through its fileset's
		// import; exactly one of the two paths yields a repository id.
		query = `
			SELECT COALESCE(img.repository_id, i.repository_id)
			FROM images img
			LEFT JOIN filesets f ON img.fileset_id = f.id
			LEFT JOIN imports i ON f.import_id = i.id
			WHERE img.id = $1
		`
	default:
		return "", &store.DomainValueError{Field: "resource_type", Value: string(resourceType)}
	}

	var repositoryID sql.NullString
	err := r.db.QueryRowContext(ctx, query, resourceID).Scan(&repositoryID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%s %s: %w", resourceType, resourceID, store.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve owning repository: %w", err)
	}
	if !repositoryID.Valid {
		// A dangling image row with neither parent link resolvable
		return "", fmt.Errorf("%s %s has no owning repository: %w", resourceType, resourceID, store.ErrNotFound)
	}

	return repositoryID.String, nil
}
