package authz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/minerva-imaging/minervadb/pkg/observability"
	"github.com/minerva-imaging/minervadb/pkg/store"
)

// Querier is the read surface the engine needs. *sql.DB satisfies it
// directly; db.ConnectionManager satisfies it by routing each call through
// a current replica, so checks are not pinned to one connection chosen at
// startup.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Engine answers authorization questions over the grant and membership
// relations. It is stateless logic over committed storage: checks are pure
// reads and safe to run concurrently.
type Engine struct {
	db        Querier
	subjects  *SubjectResolver
	hierarchy *HierarchyResolver
	cache     *DecisionCache
	logger    *observability.Logger
}

// NewEngine creates an engine over a read querier. Both cache and logger
// may be nil.
func NewEngine(db Querier, cache *DecisionCache, logger *observability.Logger) *Engine {
	return &Engine{
		db:        db,
		subjects:  NewSubjectResolver(db),
		hierarchy: NewHierarchyResolver(db),
		cache:     cache,
		logger:    logger,
	}
}

// Subjects exposes the membership resolver for callers that need the raw
// acting-subject closure.
func (e *Engine) Subjects() *SubjectResolver {
	return e.subjects
}

// Hierarchy exposes the hierarchy resolver
func (e *Engine) Hierarchy() *HierarchyResolver {
	return e.hierarchy
}

// CheckPermission reports whether the user holds at least minimum permission
// on the resource. A nonexistent resource is reported as a NotFound error,
// kept distinct from a denial so callers can render 404 versus 403;
// HasPermission is the collapsing variant.
func (e *Engine) CheckPermission(ctx context.Context, userID string, resourceType store.ResourceType, resourceID string, minimum store.Permission) (bool, error) {
	implied := ImpliedPermissions(minimum)
	if implied == nil {
		return false, &store.DomainValueError{Field: "permission", Value: string(minimum)}
	}

	repositoryID, err := e.hierarchy.RepositoryOwning(ctx, resourceType, resourceID)
	if err != nil {
		return false, err
	}

	allowed, err := e.grantExists(ctx, repositoryID, userID, implied)
	if err != nil {
		return false, err
	}

	e.logDecision(ctx, userID, resourceType, resourceID, minimum, allowed)
	return allowed, nil
}

// HasPermission reports whether the user holds at least minimum permission
// on the resource, collapsing "resource not found" into false: the check
// runs as one existence query whose joins simply yield no row for a missing
// resource. Storage failures still surface as errors.
func (e *Engine) HasPermission(ctx context.Context, userID string, resourceType store.ResourceType, resourceID string, minimum store.Permission) (bool, error) {
	implied := ImpliedPermissions(minimum)
	if implied == nil {
		return false, &store.DomainValueError{Field: "permission", Value: string(minimum)}
	}

	if e.cache != nil {
		if allowed, ok := e.cache.Get(ctx, userID, resourceType, resourceID, minimum); ok {
			return allowed, nil
		}
	}

	query, args, err := grantExistsForResource(resourceType, resourceID, userID, implied)
	if err != nil {
		return false, err
	}

	var allowed bool
	if err := e.db.QueryRowContext(ctx, query, args...).Scan(&allowed); err != nil {
		return false, fmt.Errorf("failed to check permission: %w", err)
	}

	if e.cache != nil {
		e.cache.Set(ctx, userID, resourceType, resourceID, minimum, allowed)
	}

	e.logDecision(ctx, userID, resourceType, resourceID, minimum, allowed)
	return allowed, nil
}

// RepositoryGrant pairs a repository with one grant that makes it reachable
// for the user.
type RepositoryGrant struct {
	Repository store.Repository `json:"repository"`
	SubjectID  string           `json:"subject_id"`
	Permission store.Permission `json:"permission"`
}

// RepositoriesVisibleTo returns every grant held by the user's acting
// subjects, each paired with its repository and the raw permission recorded
// on the grant. A repository reachable through several subjects (the user
// plus groups) appears once per distinct grant, so callers must not assume
// one row per repository.
func (e *Engine) RepositoriesVisibleTo(ctx context.Context, userID string) ([]RepositoryGrant, error) {
	subjects, err := e.subjects.ResolveActingSubjects(ctx, userID)
	if err != nil {
		return nil, err
	}

	placeholders := make([]string, len(subjects))
	args := make([]interface{}, len(subjects))
	for i, id := range subjects {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT r.id, r.name, r.raw_storage, r.access, g.subject_id, g.permission
		FROM grants g
		JOIN repositories r ON g.repository_id = r.id
		WHERE g.subject_id IN (%s)
		ORDER BY r.id ASC, g.subject_id ASC
	`, strings.Join(placeholders, ", "))

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list visible repositories: %w", err)
	}
	defer rows.Close()

	var visible []RepositoryGrant
	for rows.Next() {
		var rg RepositoryGrant
		if err := rows.Scan(
			&rg.Repository.ID, &rg.Repository.Name, &rg.Repository.RawStorage,
			&rg.Repository.Access, &rg.SubjectID, &rg.Permission,
		); err != nil {
			return nil, fmt.Errorf("failed to scan visible repository: %w", err)
		}
		visible = append(visible, rg)
	}

	return visible, rows.Err()
}

// InvalidateUser drops any cached decisions for a user. Mutating callers
// (grant upserts, membership changes) invoke this after commit.
func (e *Engine) InvalidateUser(ctx context.Context, userID string) {
	if e.cache != nil {
		e.cache.InvalidateUser(ctx, userID)
	}
}

// PurgeDecisions drops every cached decision. Used when a change cannot be
// attributed to a single user, such as a grant to a group.
func (e *Engine) PurgeDecisions(ctx context.Context) {
	if e.cache != nil {
		e.cache.Purge(ctx)
	}
}

// grantExists runs the existence test against a known repository id. The
// membership lookup stays inside the query so the check is one indexed probe
// rather than a materialized intersection.
func (e *Engine) grantExists(ctx context.Context, repositoryID, userID string, implied []store.Permission) (bool, error) {
	permPlaceholders := make([]string, len(implied))
	args := []interface{}{repositoryID}
	for i, p := range implied {
		permPlaceholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, p)
	}
	n := len(args)
	args = append(args, userID, userID)

	query := fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1 FROM grants g
			WHERE g.repository_id = $1
			  AND g.permission IN (%s)
			  AND g.subject_id IN (
				SELECT group_id FROM memberships WHERE user_id = $%d
				UNION
				SELECT $%d
			  )
		)
	`, strings.Join(permPlaceholders, ", "), n+1, n+2)

	var allowed bool
	if err := e.db.QueryRowContext(ctx, query, args...).Scan(&allowed); err != nil {
		return false, fmt.Errorf("failed to check grant: %w", err)
	}

	return allowed, nil
}

// grantExistsForResource builds the fully pushed-down existence query for a
// resource type: the join chain up to the owning repository, the implied
// permission set, and the membership lookup all run in one statement, so a
// missing resource naturally evaluates to false.
func grantExistsForResource(resourceType store.ResourceType, resourceID, userID string, implied []store.Permission) (string, []interface{}, error) {
	var from, owner string

	switch resourceType {
	case store.ResourceRepository:
		from = `repositories r`
		owner = `r.id = $1 AND g.repository_id = r.id`
	case store.ResourceImport:
		from = `imports i`
		owner = `i.id = $1 AND g.repository_id = i.repository_id`
	case store.ResourceFileset:
		from = `filesets f JOIN imports i ON f.import_id = i.id`
		owner = `f.id = $1 AND g.repository_id = i.repository_id`
	case store.ResourceImage:
		from = `images img
			LEFT JOIN filesets f ON img.fileset_id = f.id
			LEFT JOIN imports i ON f.import_id = i.id`
		owner = `img.id = $1 AND g.repository_id = COALESCE(img.repository_id, i.repository_id)`
	default:
		return "", nil, &store.DomainValueError{Field: "resource_type", Value: string(resourceType)}
	}

	permPlaceholders := make([]string, len(implied))
	args := []interface{}{resourceID}
	for i, p := range implied {
		permPlaceholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, p)
	}
	n := len(args)
	args = append(args, userID, userID)

	query := fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1 FROM %s
			JOIN grants g ON %s
			WHERE g.permission IN (%s)
			  AND g.subject_id IN (
				SELECT group_id FROM memberships WHERE user_id = $%d
				UNION
				SELECT $%d
			  )
		)
	`, from, owner, strings.Join(permPlaceholders, ", "), n+1, n+2)

	return query, args, nil
}

func (e *Engine) logDecision(ctx context.Context, userID string, resourceType store.ResourceType, resourceID string, minimum store.Permission, allowed bool) {
	if e.logger == nil {
		return
	}
	logger := e.logger
	if requestID := observability.GetRequestID(ctx); requestID != "" {
		logger = logger.WithField("request_id", requestID)
	}
	if userID == "" {
		userID = observability.GetUserID(ctx)
	}
	logger.WithFields(map[string]interface{}{
		"user_id":       userID,
		"resource_type": string(resourceType),
		"resource_id":   resourceID,
		"minimum":       string(minimum),
		"allowed":       allowed,
	}).Debug("permission check")
}

// IsNotFound reports whether an error from CheckPermission identifies a
// missing resource rather than a storage failure.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
