package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/minerva-imaging/minervadb/pkg/store"
)

const seedYAML = `
users:
  - id: u1
    name: Ada
  - id: u2
groups:
  - id: g1
    name: imaging-lab
    owner: u1
memberships:
  - group: g1
    user: u2
    level: Member
repositories:
  - id: r1
    name: slides
    raw_storage: Live
    access: Private
    creator: u1
grants:
  - repository: r1
    subject: g1
    permission: Read
`

func setupSeedTest(t *testing.T) (*store.Store, string) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// Every pooled connection gets its own :memory: database, so the pool
	// must stay on a single connection.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := store.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(seedYAML), 0o644); err != nil {
		t.Fatalf("Failed to write seed file: %v", err)
	}

	return store.NewStore(db), path
}

func TestSeedFixtureApply(t *testing.T) {
	st, path := setupSeedTest(t)
	ctx := context.Background()

	fixture, err := loadSeedFile(path)
	if err != nil {
		t.Fatalf("loadSeedFile failed: %v", err)
	}
	if err := fixture.Apply(ctx, st, nil); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	user, err := st.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.Name != "Ada" {
		t.Errorf("Expected seeded name Ada, got %q", user.Name)
	}

	member, err := st.IsMember(ctx, "u2", "g1")
	if err != nil {
		t.Fatalf("IsMember failed: %v", err)
	}
	if !member {
		t.Error("Expected u2 seeded as member of g1")
	}

	grants, err := st.ListGrantsForRepository(ctx, "r1")
	if err != nil {
		t.Fatalf("ListGrantsForRepository failed: %v", err)
	}
	// Creator Admin grant plus the group grant from the fixture
	if len(grants) != 2 {
		t.Fatalf("Expected 2 grants, got %+v", grants)
	}
}

func TestSeedFixtureApply_Idempotent(t *testing.T) {
	st, path := setupSeedTest(t)
	ctx := context.Background()

	fixture, err := loadSeedFile(path)
	if err != nil {
		t.Fatalf("loadSeedFile failed: %v", err)
	}
	if err := fixture.Apply(ctx, st, nil); err != nil {
		t.Fatalf("First Apply failed: %v", err)
	}
	if err := fixture.Apply(ctx, st, nil); err != nil {
		t.Fatalf("Second Apply failed: %v", err)
	}

	users, err := st.ListUsersInGroup(ctx, "g1")
	if err != nil {
		t.Fatalf("ListUsersInGroup failed: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("Expected owner and member once each, got %+v", users)
	}
}

func TestSeedFixture_MintsMissingIDs(t *testing.T) {
	st, _ := setupSeedTest(t)
	ctx := context.Background()

	fixture := &SeedFixture{}
	fixture.Users = append(fixture.Users, struct {
		ID    string `yaml:"id"`
		Name  string `yaml:"name"`
		Email string `yaml:"email"`
	}{Name: "anonymous"})

	if err := fixture.Apply(ctx, st, nil); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if fixture.Users[0].ID == "" {
		t.Error("Expected a minted id for the user without one")
	}
	if _, err := st.GetUser(ctx, fixture.Users[0].ID); err != nil {
		t.Errorf("Expected minted user retrievable: %v", err)
	}
}
