package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// CreateUser creates a user subject. Name and email are optional.
func (s *Store) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO subjects (id, kind, name, email)
		VALUES ($1, 'user', $2, $3)
	`

	var name, email sql.NullString
	if user.Name != "" {
		name = sql.NullString{String: user.Name, Valid: true}
	}
	if user.Email != "" {
		email = sql.NullString{String: user.Email, Valid: true}
	}

	if _, err := s.db.ExecContext(ctx, query, user.ID, name, email); err != nil {
		return translateErr(err, fmt.Sprintf("user %s", user.ID))
	}

	return nil
}

// GetUser retrieves a user by id
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	query := `SELECT id, name, email FROM subjects WHERE id = $1 AND kind = 'user'`

	var user User
	var name, email sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &name, &email)
	if err != nil {
		return nil, translateErr(err, fmt.Sprintf("user %s", id))
	}

	user.Name = name.String
	user.Email = email.String
	return &user, nil
}

// CreateGroup creates a group subject with the given user as its initial
// owner. Both rows are written in one transaction.
func (s *Store) CreateGroup(ctx context.Context, group *Group, ownerUserID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := subjectExists(ctx, tx, ownerUserID, KindUser); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO subjects (id, kind, name) VALUES ($1, 'group', $2)`,
			group.ID, group.Name,
		)
		if err != nil {
			return translateErr(err, fmt.Sprintf("group %s", group.ID))
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO memberships (group_id, user_id, membership_type) VALUES ($1, $2, $3)`,
			group.ID, ownerUserID, MembershipOwner,
		)
		if err != nil {
			return translateErr(err, fmt.Sprintf("membership %s/%s", group.ID, ownerUserID))
		}

		return nil
	})
}

// GetGroup retrieves a group by id
func (s *Store) GetGroup(ctx context.Context, id string) (*Group, error) {
	query := `SELECT id, name FROM subjects WHERE id = $1 AND kind = 'group'`

	var group Group
	var name sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(&group.ID, &name)
	if err != nil {
		return nil, translateErr(err, fmt.Sprintf("group %s", id))
	}

	group.Name = name.String
	return &group, nil
}

// CreateMembership creates a membership for the (group, user) pair. At most
// one membership exists per pair; creating a second is a conflict.
func (s *Store) CreateMembership(ctx context.Context, m *Membership) error {
	if !m.MembershipType.Valid() {
		return &DomainValueError{Field: "membership_type", Value: string(m.MembershipType)}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := subjectExists(ctx, tx, m.GroupID, KindGroup); err != nil {
			return err
		}
		if err := subjectExists(ctx, tx, m.UserID, KindUser); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO memberships (group_id, user_id, membership_type) VALUES ($1, $2, $3)`,
			m.GroupID, m.UserID, m.MembershipType,
		)
		if err != nil {
			return translateErr(err, fmt.Sprintf("membership %s/%s", m.GroupID, m.UserID))
		}

		return nil
	})
}

// UpdateMembership changes the level of an existing membership
func (s *Store) UpdateMembership(ctx context.Context, groupID, userID string, level MembershipType) error {
	if !level.Valid() {
		return &DomainValueError{Field: "membership_type", Value: string(level)}
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE memberships SET membership_type = $1 WHERE group_id = $2 AND user_id = $3`,
		level, groupID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update membership: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return notFoundf("membership %s/%s", groupID, userID)
	}

	return nil
}

// AddUsersToGroup adds users to a group as plain members, all in one
// transaction. Missing users fail the whole call and are reported by id.
func (s *Store) AddUsersToGroup(ctx context.Context, groupID string, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := subjectExists(ctx, tx, groupID, KindGroup); err != nil {
			return err
		}

		placeholders := make([]string, len(userIDs))
		args := make([]interface{}, len(userIDs))
		for i, id := range userIDs {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args[i] = id
		}

		query := fmt.Sprintf(
			`SELECT id FROM subjects WHERE kind = 'user' AND id IN (%s)`,
			strings.Join(placeholders, ", "),
		)
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to look up users: %w", err)
		}
		defer rows.Close()

		found := make(map[string]bool, len(userIDs))
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("failed to scan user id: %w", err)
			}
			found[id] = true
		}
		if err := rows.Err(); err != nil {
			return err
		}

		var missing []string
		for _, id := range userIDs {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return notFoundf("users %s", strings.Join(missing, ", "))
		}

		for _, id := range userIDs {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO memberships (group_id, user_id, membership_type) VALUES ($1, $2, $3)`,
				groupID, id, MembershipMember,
			)
			if err != nil {
				return translateErr(err, fmt.Sprintf("membership %s/%s", groupID, id))
			}
		}

		return nil
	})
}

// ListUsersInGroup retrieves all users that hold a membership in the group
func (s *Store) ListUsersInGroup(ctx context.Context, groupID string) ([]User, error) {
	query := `
		SELECT s.id, s.name, s.email
		FROM subjects s
		JOIN memberships m ON m.user_id = s.id
		WHERE m.group_id = $1
		ORDER BY s.id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users in group: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var user User
		var name, email sql.NullString
		if err := rows.Scan(&user.ID, &name, &email); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		user.Name = name.String
		user.Email = email.String
		users = append(users, user)
	}

	return users, rows.Err()
}

// ListGroupsForUser retrieves all groups the user is a member of
func (s *Store) ListGroupsForUser(ctx context.Context, userID string) ([]Group, error) {
	query := `
		SELECT s.id, s.name
		FROM subjects s
		JOIN memberships m ON m.group_id = s.id
		WHERE m.user_id = $1
		ORDER BY s.id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups for user: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var group Group
		var name sql.NullString
		if err := rows.Scan(&group.ID, &name); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		group.Name = name.String
		groups = append(groups, group)
	}

	return groups, rows.Err()
}

// IsMember reports whether the user holds a membership of any level in
// the group
func (s *Store) IsMember(ctx context.Context, userID, groupID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM memberships WHERE user_id = $1 AND group_id = $2
		)
	`

	var member bool
	if err := s.db.QueryRowContext(ctx, query, userID, groupID).Scan(&member); err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}

	return member, nil
}

// IsOwner reports whether the user holds an Owner membership in the group
func (s *Store) IsOwner(ctx context.Context, userID, groupID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM memberships
			WHERE user_id = $1 AND group_id = $2 AND membership_type = 'Owner'
		)
	`

	var owner bool
	if err := s.db.QueryRowContext(ctx, query, userID, groupID).Scan(&owner); err != nil {
		return false, fmt.Errorf("failed to check ownership: %w", err)
	}

	return owner, nil
}

// subjectExists verifies a subject of the given kind exists inside a
// transaction, returning a NotFound error otherwise
func subjectExists(ctx context.Context, tx *sql.Tx, id string, kind SubjectKind) error {
	var exists bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM subjects WHERE id = $1 AND kind = $2)`,
		id, kind,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check subject: %w", err)
	}
	if !exists {
		return notFoundf("%s %s", kind, id)
	}
	return nil
}
