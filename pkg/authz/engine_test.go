package authz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/minerva-imaging/minervadb/pkg/observability"
	"github.com/minerva-imaging/minervadb/pkg/store"
)

func TestEngine_CreatorHasImpliedAdmin(t *testing.T) {
	db, s := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	engine := NewEngine(db, nil, nil)

	u1 := seedUser(t, s)
	r1 := seedRepository(t, s, u1)

	// The auto-created Admin grant satisfies every level
	for _, minimum := range []store.Permission{store.PermissionAdmin, store.PermissionWrite, store.PermissionRead} {
		allowed, err := engine.HasPermission(ctx, u1, store.ResourceRepository, r1, minimum)
		if err != nil {
			t.Fatalf("HasPermission(%s) failed: %v", minimum, err)
		}
		if !allowed {
			t.Errorf("Expected creator to hold %s on own repository", minimum)
		}
	}
}

func TestEngine_NoGrantIsDenied(t *testing.T) {
	db, s := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	engine := NewEngine(db, nil, nil)

	u1 := seedUser(t, s)
	u2 := seedUser(t, s)
	r1 := seedRepository(t, s, u1)

	allowed, err := engine.HasPermission(ctx, u2, store.ResourceRepository, r1, store.PermissionRead)
	if err != nil {
		t.Fatalf("HasPermission failed: %v", err)
	}
	if allowed {
		t.Error("Expected user without grant to be denied")
	}
}

func TestEngine_GroupGrantReachesMembers(t *testing.T) {
	db, s := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	engine := NewEngine(db, nil, nil)

	u1 := seedUser(t, s)
	u3 := seedUser(t, s)
	r1 := seedRepository(t, s, u1)
	g1 := seedGroup(t, s, u1)

	if err := s.AddUsersToGroup(ctx, g1, u3); err != nil {
		t.Fatalf("AddUsersToGroup failed: %v", err)
	}
	if _, err := s.GrantRepositoryToSubject(ctx, r1, g1, store.PermissionRead); err != nil {
		t.Fatalf("GrantRepositoryToSubject failed: %v", err)
	}

	allowed, err := engine.HasPermission(ctx, u3, store.ResourceRepository, r1, store.PermissionRead)
	if err != nil {
		t.Fatalf("HasPermission failed: %v", err)
	}
	if !allowed {
		t.Error("Expected group member to inherit the group's Read grant")
	}

	// The group grant is Read only; Write stays denied
	allowed, err = engine.HasPermission(ctx, u3, store.ResourceRepository, r1, store.PermissionWrite)
	if err != nil {
		t.Fatalf("HasPermission failed: %v", err)
	}
	if allowed {
		t.Error("Expected Read grant not to satisfy Write")
	}
}

func TestEngine_GrantsInheritDownTheHierarchy(t *testing.T) {
	db, s := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	engine := NewEngine(db, nil, nil)

	u1 := seedUser(t, s)
	repoID, importID, filesetID, imageID := seedHierarchy(t, s, u1)

	cases := []struct {
		resourceType store.ResourceType
		resourceID   string
	}{
		{store.ResourceRepository, repoID},
		{store.ResourceImport, importID},
		{store.ResourceFileset, filesetID},
		{store.ResourceImage, imageID},
	}

	// A repository-level Admin grant covers every descendant; no
	// resource-level grants exist.
	for _, tc := range cases {
		allowed, err := engine.HasPermission(ctx, u1, tc.resourceType, tc.resourceID, store.PermissionAdmin)
		if err != nil {
			t.Fatalf("HasPermission(%s) failed: %v", tc.resourceType, err)
		}
		if !allowed {
			t.Errorf("Expected Admin on %s to be inherited from repository grant", tc.resourceType)
		}
	}
}

func TestEngine_Monotonicity(t *testing.T) {
	db, s := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	engine := NewEngine(db, nil, nil)

	u1 := seedUser(t, s)
	u2 := seedUser(t, s)
	r1 := seedRepository(t, s, u1)

	// If Read is denied, every higher requirement must be denied too
	for _, minimum := range []store.Permission{store.PermissionRead, store.PermissionWrite, store.PermissionAdmin} {
		allowed, err := engine.HasPermission(ctx, u2, store.ResourceRepository, r1, minimum)
		if err != nil {
			t.Fatalf("HasPermission(%s) failed: %v", minimum, err)
		}
		if allowed {
			t.Errorf("Expected %s denied for user without any grant", minimum)
		}
	}
}

func TestEngine_MissingResource(t *testing.T) {
	db, s := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	engine := NewEngine(db, nil, nil)
	u1 := seedUser(t, s)

	// HasPermission collapses a missing resource into a plain denial
	allowed, err := engine.HasPermission(ctx, u1, store.ResourceImage, uuid.NewString(), store.PermissionRead)
	if err != nil {
		t.Fatalf("HasPermission failed: %v", err)
	}
	if allowed {
		t.Error("Expected denial for missing resource")
	}

	// CheckPermission keeps not-found distinguishable from denial
	_, err = engine.CheckPermission(ctx, u1, store.ResourceImage, uuid.NewString(), store.PermissionRead)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound from CheckPermission, got %v", err)
	}
	if !IsNotFound(err) {
		t.Error("Expected IsNotFound to classify the error")
	}
}

func TestEngine_CheckPermission(t *testing.T) {
	db, s := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	engine := NewEngine(db, nil, nil)

	u1 := seedUser(t, s)
	u2 := seedUser(t, s)
	_, _, _, imageID := seedHierarchy(t, s, u1)

	allowed, err := engine.CheckPermission(ctx, u1, store.ResourceImage, imageID, store.PermissionWrite)
	if err != nil {
		t.Fatalf("CheckPermission failed: %v", err)
	}
	if !allowed {
		t.Error("Expected creator to hold Write on descendant image")
	}

	// Denial on an existing resource is a boolean outcome, not an error
	allowed, err = engine.CheckPermission(ctx, u2, store.ResourceImage, imageID, store.PermissionRead)
	if err != nil {
		t.Fatalf("CheckPermission failed: %v", err)
	}
	if allowed {
		t.Error("Expected denial for user without grant")
	}

	var dve *store.DomainValueError
	_, err = engine.CheckPermission(ctx, u1, store.ResourceImage, imageID, store.Permission("Root"))
	if !errors.As(err, &dve) {
		t.Errorf("Expected DomainValueError for unknown level, got %v", err)
	}
}

func TestEngine_RepositoriesVisibleTo(t *testing.T) {
	db, s := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	engine := NewEngine(db, nil, nil)

	u1 := seedUser(t, s)
	user := seedUser(t, s)
	r1 := seedRepository(t, s, u1)
	r2 := seedRepository(t, s, u1)
	g1 := seedGroup(t, s, u1)

	if err := s.AddUsersToGroup(ctx, g1, user); err != nil {
		t.Fatalf("AddUsersToGroup failed: %v", err)
	}
	// Direct Write grant and a group Read grant on the same repository,
	// plus a group-only grant on another.
	if _, err := s.GrantRepositoryToSubject(ctx, r1, user, store.PermissionWrite); err != nil {
		t.Fatalf("GrantRepositoryToSubject failed: %v", err)
	}
	if _, err := s.GrantRepositoryToSubject(ctx, r1, g1, store.PermissionRead); err != nil {
		t.Fatalf("GrantRepositoryToSubject failed: %v", err)
	}
	if _, err := s.GrantRepositoryToSubject(ctx, r2, g1, store.PermissionRead); err != nil {
		t.Fatalf("GrantRepositoryToSubject failed: %v", err)
	}

	visible, err := engine.RepositoriesVisibleTo(ctx, user)
	if err != nil {
		t.Fatalf("RepositoriesVisibleTo failed: %v", err)
	}

	// One row per distinct grant: r1 appears twice (direct + via group),
	// r2 once. Permissions are the raw granted levels, not expanded.
	if len(visible) != 3 {
		t.Fatalf("Expected 3 grant rows, got %d: %+v", len(visible), visible)
	}

	byRepo := map[string]int{}
	for _, rg := range visible {
		byRepo[rg.Repository.ID]++
		if rg.Repository.ID == r1 && rg.SubjectID == user && rg.Permission != store.PermissionWrite {
			t.Errorf("Expected raw Write on direct grant, got %s", rg.Permission)
		}
	}
	if byRepo[r1] != 2 || byRepo[r2] != 1 {
		t.Errorf("Unexpected multiplicity: %v", byRepo)
	}
}

func TestEngine_HasPermissionUsesCache(t *testing.T) {
	db, s := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	cache := NewDecisionCache(64, 0, nil)
	engine := NewEngine(db, cache, nil)

	u1 := seedUser(t, s)
	r1 := seedRepository(t, s, u1)

	allowed, err := engine.HasPermission(ctx, u1, store.ResourceRepository, r1, store.PermissionAdmin)
	if err != nil {
		t.Fatalf("HasPermission failed: %v", err)
	}
	if !allowed {
		t.Fatal("Expected creator to be allowed")
	}

	if _, err := engine.HasPermission(ctx, u1, store.ResourceRepository, r1, store.PermissionAdmin); err != nil {
		t.Fatalf("HasPermission failed: %v", err)
	}

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %+v", stats)
	}

	// Invalidation forces the next check back to storage
	engine.InvalidateUser(ctx, u1)
	if _, err := engine.HasPermission(ctx, u1, store.ResourceRepository, r1, store.PermissionAdmin); err != nil {
		t.Fatalf("HasPermission failed: %v", err)
	}
	if cache.Stats().Misses != 2 {
		t.Errorf("Expected a miss after invalidation, got %+v", cache.Stats())
	}
}

func TestEngine_DecisionLogCarriesContextIdentifiers(t *testing.T) {
	db, s := setupTestDB(t)
	defer db.Close()

	var buf bytes.Buffer
	logger := observability.NewLogger(observability.DebugLevel, &buf)
	engine := NewEngine(db, nil, logger)

	u1 := seedUser(t, s)
	r1 := seedRepository(t, s, u1)

	ctx := observability.WithRequestID(context.Background(), "req-42")
	ctx = observability.WithUserID(ctx, u1)

	if _, err := engine.HasPermission(ctx, u1, store.ResourceRepository, r1, store.PermissionRead); err != nil {
		t.Fatalf("HasPermission failed: %v", err)
	}

	var record map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("Expected JSON decision log, got %q: %v", buf.String(), err)
	}
	if record["request_id"] != "req-42" {
		t.Errorf("Expected request_id from context in decision log, got %v", record)
	}
	if record["user_id"] != u1 {
		t.Errorf("Expected user_id in decision log, got %v", record)
	}
	if record["allowed"] != true {
		t.Errorf("Expected allowed=true in decision log, got %v", record)
	}
}
