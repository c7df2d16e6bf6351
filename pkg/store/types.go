package store

// SubjectKind discriminates the two variants sharing the subject id namespace
type SubjectKind string

const (
	KindUser  SubjectKind = "user"
	KindGroup SubjectKind = "group"
)

// Permission represents a grant level on a repository
type Permission string

const (
	PermissionRead  Permission = "Read"
	PermissionWrite Permission = "Write"
	PermissionAdmin Permission = "Admin"
)

// Valid reports whether the permission is one of the defined levels
func (p Permission) Valid() bool {
	switch p {
	case PermissionRead, PermissionWrite, PermissionAdmin:
		return true
	}
	return false
}

// MembershipType represents the strength of a group membership
type MembershipType string

const (
	MembershipMember MembershipType = "Member"
	MembershipOwner  MembershipType = "Owner"
)

// Valid reports whether the membership type is one of the defined levels
func (m MembershipType) Valid() bool {
	return m == MembershipMember || m == MembershipOwner
}

// RawStorage represents the storage tier for a repository's raw data
type RawStorage string

const (
	RawStorageArchive RawStorage = "Archive"
	RawStorageLive    RawStorage = "Live"
	RawStorageDestroy RawStorage = "Destroy"
)

// Valid reports whether the storage tier is one of the defined values
func (r RawStorage) Valid() bool {
	switch r {
	case RawStorageArchive, RawStorageLive, RawStorageDestroy:
		return true
	}
	return false
}

// AccessLevel represents the visibility of a repository
type AccessLevel string

const (
	AccessPrivate     AccessLevel = "Private"
	AccessPublicRead  AccessLevel = "PublicRead"
	AccessPublicWrite AccessLevel = "PublicWrite"
)

// Valid reports whether the access level is one of the defined values
func (a AccessLevel) Valid() bool {
	switch a {
	case AccessPrivate, AccessPublicRead, AccessPublicWrite:
		return true
	}
	return false
}

// ResourceType identifies a node type in the containment hierarchy
type ResourceType string

const (
	ResourceRepository ResourceType = "Repository"
	ResourceImport     ResourceType = "Import"
	ResourceFileset    ResourceType = "Fileset"
	ResourceImage      ResourceType = "Image"
)

// Valid reports whether the resource type is one of the hierarchy node types
func (r ResourceType) Valid() bool {
	switch r {
	case ResourceRepository, ResourceImport, ResourceFileset, ResourceImage:
		return true
	}
	return false
}

// User is the user variant of a subject. Name and email are optional.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Group is the group variant of a subject
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Membership links a user to a group at a membership level.
// At most one membership exists per (group, user) pair.
type Membership struct {
	GroupID        string         `json:"group_id"`
	UserID         string         `json:"user_id"`
	MembershipType MembershipType `json:"membership_type"`
}

// Grant records a permission for a subject (user or group) on a repository.
// At most one grant exists per (subject, repository) pair; re-granting
// updates the permission in place.
type Grant struct {
	SubjectID    string     `json:"subject_id"`
	RepositoryID string     `json:"repository_id"`
	Permission   Permission `json:"permission"`
}

// Repository is the root of a containment tree and the only grant target
type Repository struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	RawStorage RawStorage  `json:"raw_storage"`
	Access     AccessLevel `json:"access"`
}

// Import is a unit of ingestion owned by exactly one repository
type Import struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Complete     bool   `json:"complete"`
	RepositoryID string `json:"repository_id"`
}

// Fileset is a named group of raw files representing one acquisition,
// owned by exactly one import
type Fileset struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Reader         string `json:"reader"`
	ReaderSoftware string `json:"reader_software"`
	ReaderVersion  string `json:"reader_version"`
	Complete       bool   `json:"complete"`
	Progress       int    `json:"progress"`
	ImportID       string `json:"import_id"`
}

// Key is a raw storage key belonging to an import, optionally bound to
// exactly one fileset. Keys are unique per import, not globally.
type Key struct {
	Key       string  `json:"key"`
	ImportID  string  `json:"import_id"`
	FilesetID *string `json:"fileset_id,omitempty"`
}

// Image belongs either directly to a repository or to a fileset; the
// owning repository is always derivable
type Image struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	PyramidLevels int     `json:"pyramid_levels"`
	Deleted       bool    `json:"deleted"`
	Format        string  `json:"format,omitempty"`
	Compression   string  `json:"compression,omitempty"`
	TileSize      int     `json:"tile_size,omitempty"`
	RGB           bool    `json:"rgb"`
	FilesetID     *string `json:"fileset_id,omitempty"`
	RepositoryID  *string `json:"repository_id,omitempty"`
}

// Channel is one channel entry of a rendering settings record
type Channel struct {
	Index int     `json:"id"`
	Name  string  `json:"label"`
	Color string  `json:"color"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// RenderingSettings is a named channel-rendering configuration for an image
type RenderingSettings struct {
	ID       string    `json:"id"`
	ImageID  string    `json:"image_id"`
	Label    string    `json:"label,omitempty"`
	Channels []Channel `json:"channels"`
}

// NewImage describes an image to register against a fileset when it is
// marked complete
type NewImage struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	PyramidLevels int    `json:"pyramid_levels"`
	Format        string `json:"format,omitempty"`
	Compression   string `json:"compression,omitempty"`
	TileSize      int    `json:"tile_size,omitempty"`
	RGB           bool   `json:"rgb"`
}
