// Package store defines the document store boundary the pipeline depends on,
// plus the bundled memory and file-backed implementations. The production
// deployment may substitute any backend satisfying Store; conflict detection
// uses per-document revision counters so a write against stale state fails
// instead of silently overwriting.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nholik/registry-sentinel/internal/registry"
)

// ErrNotFound reports a get for a document id that has never been written.
// Callers treat it as empty prior state, not a failure.
var ErrNotFound = errors.New("store: document not found")

// ErrConflict reports a put whose revision does not match the stored
// document. The invocation fails and is expected to be retried whole.
var ErrConflict = errors.New("store: revision conflict")

// DistTagDoc is the persisted dist-tag state for one dependency (or one
// installation-scoped dependency). Never deleted; merged on every
// notification.
type DistTagDoc struct {
	ID        string                          `json:"id"`
	DistTags  map[string]string               `json:"distTags"`
	Versions  map[string]registry.VersionInfo `json:"versions"`
	UpdatedAt time.Time                       `json:"updatedAt"`
	Rev       int64                           `json:"rev"`
}

// ReleaseDoc tracks a partial monorepo release: which group members have been
// observed publishing a given version. Exists only between the first partial
// observation and the group being acted upon.
type ReleaseDoc struct {
	ID         string                          `json:"id"`
	Dependency string                          `json:"dependency"`
	Version    string                          `json:"version"`
	Members    map[string]bool                 `json:"members"`
	DistTags   map[string]string               `json:"distTags"`
	Versions   map[string]registry.VersionInfo `json:"versions"`
	UpdatedAt  time.Time                       `json:"updatedAt"`
	Rev        int64                           `json:"rev"`
}

// ReleaseID derives the release record id for a (dependency, version) pair,
// installation-prefixed when the originating hook was scoped so a scoped hook
// cannot complete an unscoped barrier.
func ReleaseID(installation, dependency, version string) string {
	id := "monorepo:" + dependency + ":" + version
	if installation != "" {
		id = installation + ":" + id
	}
	return id
}

// ManifestEntry is one (repository, manifest file, dependency type) record
// from the dependency index. A repository referencing a dependency from N
// files in M type fields yields up to N×M entries; the index never merges
// them.
type ManifestEntry struct {
	// Dependency is the index key: the dependency name this entry declares.
	Dependency   string `json:"dependency"`
	RepositoryID string `json:"repositoryId"`
	AccountID    string `json:"accountId"`
	FullName     string `json:"fullName"`
	FilePath     string `json:"filePath"`
	Type         string `json:"type"`
	Range        string `json:"range"`
}

// Account is billing-plan context for one installation.
type Account struct {
	ID           string `json:"id"`
	Installation string `json:"installation"`
	Plan         string `json:"plan"`
}

// RepoConfig is the per-repository eligibility configuration consulted on the
// multi-manifest job path.
type RepoConfig struct {
	DisabledPaths []string `json:"disabledPaths,omitempty"`
	DisabledTypes []string `json:"disabledTypes,omitempty"`
}

// Store is the document store boundary. Reads returning ErrNotFound are
// normal first-observation outcomes; every other error is fatal to the
// invocation in progress.
type Store interface {
	GetDistTags(ctx context.Context, id string) (DistTagDoc, error)
	// PutDistTags writes the document, requiring doc.Rev to match the stored
	// revision (0 for a create). Returns the document with its new revision.
	PutDistTags(ctx context.Context, doc DistTagDoc) (DistTagDoc, error)

	GetRelease(ctx context.Context, id string) (ReleaseDoc, error)
	PutRelease(ctx context.Context, doc ReleaseDoc) (ReleaseDoc, error)
	// DeleteRelease removes a release record; deleting an absent id is a
	// no-op.
	DeleteRelease(ctx context.Context, id string) error

	// DependentsOf queries the dependency index for all manifest entries
	// referencing any name in the set.
	DependentsOf(ctx context.Context, names []string) ([]ManifestEntry, error)

	// AccountsByID batch-resolves accounts. Ids with no account are simply
	// absent from the result, never an error.
	AccountsByID(ctx context.Context, ids []string) (map[string]Account, error)

	// ConfigFor loads the repository configuration, ErrNotFound when the
	// repository has none recorded.
	ConfigFor(ctx context.Context, repositoryID string) (RepoConfig, error)
}
