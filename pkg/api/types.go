package api

import "github.com/minerva-imaging/minervadb/pkg/store"

// CreateGroupRequest creates a group owned by an existing user
type CreateGroupRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	OwnerUserID string `json:"owner_user_id"`
}

// MembershipRequest sets or updates a user's membership level in a group
type MembershipRequest struct {
	UserID         string               `json:"user_id"`
	MembershipType store.MembershipType `json:"membership_type"`
}

// AddMembersRequest adds users to a group as plain members, all or nothing
type AddMembersRequest struct {
	UserIDs []string `json:"user_ids"`
}

// CreateRepositoryRequest creates a repository; the creator receives an
// Admin grant in the same transaction
type CreateRepositoryRequest struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	RawStorage    store.RawStorage  `json:"raw_storage"`
	Access        store.AccessLevel `json:"access"`
	CreatorUserID string            `json:"creator_user_id"`
}

// UpdateRepositoryRequest carries optional repository fields; absent
// fields are left unchanged
type UpdateRepositoryRequest struct {
	Name       *string            `json:"name,omitempty"`
	RawStorage *store.RawStorage  `json:"raw_storage,omitempty"`
	Access     *store.AccessLevel `json:"access,omitempty"`
}

// GrantRequest grants (or re-grants) a permission to a subject on a repository
type GrantRequest struct {
	SubjectID  string           `json:"subject_id"`
	Permission store.Permission `json:"permission"`
}

// UpdateImportRequest carries optional import fields. Completion is
// one-way; sending complete=false for a complete import fails.
type UpdateImportRequest struct {
	Name     *string `json:"name,omitempty"`
	Complete *bool   `json:"complete,omitempty"`
}

// AddKeysRequest registers raw storage keys against an import
type AddKeysRequest struct {
	Keys []string `json:"keys"`
}

// CreateFilesetRequest creates a fileset and binds the named keys to it
type CreateFilesetRequest struct {
	Fileset store.Fileset `json:"fileset"`
	Keys    []string      `json:"keys"`
}

// UpdateFilesetRequest carries optional fileset fields; marking the
// fileset complete registers the detected images atomically
type UpdateFilesetRequest struct {
	Name     *string          `json:"name,omitempty"`
	Complete *bool            `json:"complete,omitempty"`
	Progress *int             `json:"progress,omitempty"`
	Images   []store.NewImage `json:"images,omitempty"`
}

// CheckRequest asks whether a user holds at least a permission on a resource
type CheckRequest struct {
	UserID       string             `json:"user_id"`
	ResourceType store.ResourceType `json:"resource_type"`
	ResourceID   string             `json:"resource_id"`
	Minimum      store.Permission   `json:"minimum"`
}

// CheckResponse reports the authorization decision
type CheckResponse struct {
	Allowed bool `json:"allowed"`
}
