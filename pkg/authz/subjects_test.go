package authz

import (
	"context"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/minerva-imaging/minervadb/pkg/store"
)

func TestResolveActingSubjects(t *testing.T) {
	db, s := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	resolver := NewSubjectResolver(db)

	owner := seedUser(t, s)
	user := seedUser(t, s)
	g1 := seedGroup(t, s, owner)
	g2 := seedGroup(t, s, owner)

	if err := s.AddUsersToGroup(ctx, g1, user); err != nil {
		t.Fatalf("AddUsersToGroup failed: %v", err)
	}
	// Owner-level membership counts for reachability just like Member
	m := &store.Membership{GroupID: g2, UserID: user, MembershipType: store.MembershipOwner}
	if err := s.CreateMembership(ctx, m); err != nil {
		t.Fatalf("CreateMembership failed: %v", err)
	}

	subjects, err := resolver.ResolveActingSubjects(ctx, user)
	if err != nil {
		t.Fatalf("ResolveActingSubjects failed: %v", err)
	}
	if len(subjects) != 3 {
		t.Fatalf("Expected 3 acting subjects, got %d: %v", len(subjects), subjects)
	}

	found := map[string]bool{}
	for _, id := range subjects {
		found[id] = true
	}
	for _, want := range []string{user, g1, g2} {
		if !found[want] {
			t.Errorf("Expected subject %s in closure", want)
		}
	}

	// Two runs over unchanged data return identical sets
	again, err := resolver.ResolveActingSubjects(ctx, user)
	if err != nil {
		t.Fatalf("ResolveActingSubjects failed: %v", err)
	}
	if !reflect.DeepEqual(subjects, again) {
		t.Errorf("Expected stable closure, got %v then %v", subjects, again)
	}
}

func TestResolveActingSubjects_NoMemberships(t *testing.T) {
	db, s := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	resolver := NewSubjectResolver(db)
	user := seedUser(t, s)

	subjects, err := resolver.ResolveActingSubjects(ctx, user)
	if err != nil {
		t.Fatalf("ResolveActingSubjects failed: %v", err)
	}
	if len(subjects) != 1 || subjects[0] != user {
		t.Errorf("Expected singleton {%s}, got %v", user, subjects)
	}

	// An unknown user id still resolves to itself; existence is the
	// caller's concern
	ghost := uuid.NewString()
	subjects, err = resolver.ResolveActingSubjects(ctx, ghost)
	if err != nil {
		t.Fatalf("ResolveActingSubjects failed: %v", err)
	}
	if len(subjects) != 1 || subjects[0] != ghost {
		t.Errorf("Expected singleton {%s}, got %v", ghost, subjects)
	}
}
