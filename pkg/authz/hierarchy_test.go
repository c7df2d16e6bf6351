package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/minerva-imaging/minervadb/pkg/store"
)

func TestRepositoryOwning_RoundTrip(t *testing.T) {
	db, s := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	resolver := NewHierarchyResolver(db)

	user := seedUser(t, s)
	repoID, importID, filesetID, imageID := seedHierarchy(t, s, user)

	cases := []struct {
		resourceType store.ResourceType
		resourceID   string
	}{
		{store.ResourceRepository, repoID},
		{store.ResourceImport, importID},
		{store.ResourceFileset, filesetID},
		{store.ResourceImage, imageID},
	}

	for _, tc := range cases {
		got, err := resolver.RepositoryOwning(ctx, tc.resourceType, tc.resourceID)
		if err != nil {
			t.Fatalf("RepositoryOwning(%s) failed: %v", tc.resourceType, err)
		}
		if got != repoID {
			t.Errorf("RepositoryOwning(%s) = %s, want %s", tc.resourceType, got, repoID)
		}
	}
}

func TestRepositoryOwning_DirectImage(t *testing.T) {
	db, s := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	resolver := NewHierarchyResolver(db)

	user := seedUser(t, s)
	repoID := seedRepository(t, s, user)

	imageID := uuid.NewString()
	img := &store.Image{ID: imageID, Name: "direct", PyramidLevels: 3, RepositoryID: &repoID}
	if err := s.CreateImage(ctx, img); err != nil {
		t.Fatalf("CreateImage failed: %v", err)
	}

	got, err := resolver.RepositoryOwning(ctx, store.ResourceImage, imageID)
	if err != nil {
		t.Fatalf("RepositoryOwning failed: %v", err)
	}
	if got != repoID {
		t.Errorf("RepositoryOwning = %s, want %s", got, repoID)
	}
}

func TestRepositoryOwning_NotFound(t *testing.T) {
	db, _ := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	resolver := NewHierarchyResolver(db)

	for _, rt := range []store.ResourceType{
		store.ResourceRepository, store.ResourceImport, store.ResourceFileset, store.ResourceImage,
	} {
		_, err := resolver.RepositoryOwning(ctx, rt, uuid.NewString())
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Expected ErrNotFound for missing %s, got %v", rt, err)
		}
	}

	var dve *store.DomainValueError
	_, err := resolver.RepositoryOwning(ctx, store.ResourceType("Channel"), uuid.NewString())
	if !errors.As(err, &dve) {
		t.Errorf("Expected DomainValueError for unknown resource type, got %v", err)
	}
}
