package authz

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// SubjectResolver computes the set of subject identities a user acts as:
// the user themselves plus every group reachable through membership edges.
type SubjectResolver struct {
	db Querier
}

// NewSubjectResolver creates a resolver over a read querier
func NewSubjectResolver(db Querier) *SubjectResolver {
	return &SubjectResolver{db: db}
}

// ResolveActingSubjects returns the transitive closure of acting-subject ids
// for a user, sorted for stable output. Membership strength does not gate
// reachability; Owner and Member edges are followed alike. A user with no
// memberships, or an unknown user id, resolves to the singleton set of their
// own id — existence is the caller's concern.
//
// The schema today only holds user-to-group edges, so the closure converges
// after one round, but the loop follows whatever edges exist and stays
// correct if groups ever become members of other groups.
func (r *SubjectResolver) ResolveActingSubjects(ctx context.Context, userID string) ([]string, error) {
	seen := map[string]bool{userID: true}
	frontier := []string{userID}

	for len(frontier) > 0 {
		placeholders := make([]string, len(frontier))
		args := make([]interface{}, len(frontier))
		for i, id := range frontier {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args[i] = id
		}

		query := fmt.Sprintf(
			`SELECT DISTINCT group_id FROM memberships WHERE user_id IN (%s)`,
			strings.Join(placeholders, ", "),
		)

		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve memberships: %w", err)
		}

		var next []string
		for rows.Next() {
			var groupID string
			if err := rows.Scan(&groupID); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan group id: %w", err)
			}
			if !seen[groupID] {
				seen[groupID] = true
				next = append(next, groupID)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()

		frontier = next
	}

	subjects := make([]string, 0, len(seen))
	for id := range seen {
		subjects = append(subjects, id)
	}
	sort.Strings(subjects)

	return subjects, nil
}
