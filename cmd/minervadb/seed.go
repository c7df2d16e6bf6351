package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/minerva-imaging/minervadb/pkg/observability"
	"github.com/minerva-imaging/minervadb/pkg/store"
)

// SeedFixture is a YAML fixture of subjects, repositories and grants
// applied once after migrations. Entries that already exist are skipped, so
// re-applying the same fixture on every boot is harmless.
type SeedFixture struct {
	Users []struct {
		ID    string `yaml:"id"`
		Name  string `yaml:"name"`
		Email string `yaml:"email"`
	} `yaml:"users"`
	Groups []struct {
		ID    string `yaml:"id"`
		Name  string `yaml:"name"`
		Owner string `yaml:"owner"`
	} `yaml:"groups"`
	Memberships []struct {
		Group string `yaml:"group"`
		User  string `yaml:"user"`
		Level string `yaml:"level"`
	} `yaml:"memberships"`
	Repositories []struct {
		ID         string `yaml:"id"`
		Name       string `yaml:"name"`
		RawStorage string `yaml:"raw_storage"`
		Access     string `yaml:"access"`
		Creator    string `yaml:"creator"`
	} `yaml:"repositories"`
	Grants []struct {
		Repository string `yaml:"repository"`
		Subject    string `yaml:"subject"`
		Permission string `yaml:"permission"`
	} `yaml:"grants"`
}

// loadSeedFile reads and parses a YAML seed fixture
func loadSeedFile(path string) (*SeedFixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var fixture SeedFixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &fixture, nil
}

// Apply writes the fixture into the store in dependency order: users,
// groups, memberships, repositories, grants. Missing ids are minted.
func (f *SeedFixture) Apply(ctx context.Context, st *store.Store, logger *observability.Logger) error {
	for i := range f.Users {
		if f.Users[i].ID == "" {
			f.Users[i].ID = uuid.NewString()
		}
		user := &store.User{ID: f.Users[i].ID, Name: f.Users[i].Name, Email: f.Users[i].Email}
		if err := ignoreConflict(st.CreateUser(ctx, user)); err != nil {
			return fmt.Errorf("seeding user %s: %w", user.ID, err)
		}
	}

	for i := range f.Groups {
		if f.Groups[i].ID == "" {
			f.Groups[i].ID = uuid.NewString()
		}
		group := &store.Group{ID: f.Groups[i].ID, Name: f.Groups[i].Name}
		if err := ignoreConflict(st.CreateGroup(ctx, group, f.Groups[i].Owner)); err != nil {
			return fmt.Errorf("seeding group %s: %w", group.ID, err)
		}
	}

	for _, m := range f.Memberships {
		membership := &store.Membership{
			GroupID:        m.Group,
			UserID:         m.User,
			MembershipType: store.MembershipType(m.Level),
		}
		if err := ignoreConflict(st.CreateMembership(ctx, membership)); err != nil {
			return fmt.Errorf("seeding membership %s/%s: %w", m.Group, m.User, err)
		}
	}

	for i := range f.Repositories {
		if f.Repositories[i].ID == "" {
			f.Repositories[i].ID = uuid.NewString()
		}
		r := f.Repositories[i]
		repo := &store.Repository{
			ID:         r.ID,
			Name:       r.Name,
			RawStorage: store.RawStorage(r.RawStorage),
			Access:     store.AccessLevel(r.Access),
		}
		if err := ignoreConflict(st.CreateRepository(ctx, repo, r.Creator)); err != nil {
			return fmt.Errorf("seeding repository %s: %w", repo.ID, err)
		}
	}

	for _, g := range f.Grants {
		_, err := st.GrantRepositoryToSubject(ctx, g.Repository, g.Subject, store.Permission(g.Permission))
		if err != nil {
			return fmt.Errorf("seeding grant %s on %s: %w", g.Subject, g.Repository, err)
		}
	}

	if logger != nil {
		logger.WithFields(map[string]interface{}{
			"users":        len(f.Users),
			"groups":       len(f.Groups),
			"repositories": len(f.Repositories),
			"grants":       len(f.Grants),
		}).Info("Applied seed fixture")
	}
	return nil
}

// ignoreConflict drops conflict errors so an already-applied fixture is a no-op
func ignoreConflict(err error) error {
	if errors.Is(err, store.ErrConflict) {
		return nil
	}
	return err
}
