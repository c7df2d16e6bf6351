package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// Every pooled connection gets its own :memory: database, so the pool
	// must stay on a single connection.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

func createTestUser(t *testing.T, s *Store) *User {
	t.Helper()

	user := &User{ID: uuid.NewString(), Name: "Test User", Email: "user@example.com"}
	if err := s.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

func createTestRepository(t *testing.T, s *Store, creatorUserID string) *Repository {
	t.Helper()

	repo := &Repository{ID: uuid.NewString(), Name: "repo-" + uuid.NewString()}
	if err := s.CreateRepository(context.Background(), repo, creatorUserID); err != nil {
		t.Fatalf("CreateRepository failed: %v", err)
	}
	return repo
}

func createTestImport(t *testing.T, s *Store, repositoryID string) *Import {
	t.Helper()

	imp := &Import{ID: uuid.NewString(), Name: "test-import", RepositoryID: repositoryID}
	if err := s.CreateImport(context.Background(), imp); err != nil {
		t.Fatalf("CreateImport failed: %v", err)
	}
	return imp
}

func createTestFileset(t *testing.T, s *Store, importID string, complete bool, keys []string) *Fileset {
	t.Helper()

	fs := &Fileset{
		ID:             uuid.NewString(),
		Name:           "test-fileset",
		Reader:         "tiff",
		ReaderSoftware: "bioformats",
		ReaderVersion:  "6.5.1",
		ImportID:       importID,
	}
	if err := s.CreateFileset(context.Background(), fs, keys); err != nil {
		t.Fatalf("CreateFileset failed: %v", err)
	}

	if complete {
		updated, err := s.SetFilesetComplete(context.Background(), fs.ID, nil)
		if err != nil {
			t.Fatalf("SetFilesetComplete failed: %v", err)
		}
		return updated
	}

	return fs
}
