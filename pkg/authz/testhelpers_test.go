package authz

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/minerva-imaging/minervadb/pkg/store"
)

func setupTestDB(t *testing.T) (*sql.DB, *store.Store) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// Every pooled connection gets its own :memory: database, so the pool
	// must stay on a single connection.
	db.SetMaxOpenConns(1)

	if err := store.RunMigrations(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db, store.NewStore(db)
}

func seedUser(t *testing.T, s *store.Store) string {
	t.Helper()

	id := uuid.NewString()
	if err := s.CreateUser(context.Background(), &store.User{ID: id}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return id
}

func seedGroup(t *testing.T, s *store.Store, ownerUserID string) string {
	t.Helper()

	id := uuid.NewString()
	group := &store.Group{ID: id, Name: "group-" + id}
	if err := s.CreateGroup(context.Background(), group, ownerUserID); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	return id
}

func seedRepository(t *testing.T, s *store.Store, creatorUserID string) string {
	t.Helper()

	id := uuid.NewString()
	repo := &store.Repository{ID: id, Name: "repo-" + id}
	if err := s.CreateRepository(context.Background(), repo, creatorUserID); err != nil {
		t.Fatalf("CreateRepository failed: %v", err)
	}
	return id
}

// seedHierarchy builds repository -> import -> fileset -> image and returns
// the four ids.
func seedHierarchy(t *testing.T, s *store.Store, creatorUserID string) (repoID, importID, filesetID, imageID string) {
	t.Helper()
	ctx := context.Background()

	repoID = seedRepository(t, s, creatorUserID)

	importID = uuid.NewString()
	imp := &store.Import{ID: importID, Name: "acq", RepositoryID: repoID}
	if err := s.CreateImport(ctx, imp); err != nil {
		t.Fatalf("CreateImport failed: %v", err)
	}

	filesetID = uuid.NewString()
	fs := &store.Fileset{
		ID:             filesetID,
		Name:           "slide",
		Reader:         "tiff",
		ReaderSoftware: "bioformats",
		ReaderVersion:  "6.5.1",
		ImportID:       importID,
	}
	if err := s.CreateFileset(ctx, fs, nil); err != nil {
		t.Fatalf("CreateFileset failed: %v", err)
	}

	imageID = uuid.NewString()
	images := []store.NewImage{{ID: imageID, Name: "scene-1", PyramidLevels: 5}}
	if _, err := s.SetFilesetComplete(ctx, filesetID, images); err != nil {
		t.Fatalf("SetFilesetComplete failed: %v", err)
	}

	return repoID, importID, filesetID, imageID
}
