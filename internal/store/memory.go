package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nholik/registry-sentinel/internal/registry"
)

// MemoryStore is a mutex-guarded map-backed Store. It backs tests and local
// development, and FileStore layers persistence on top of it. Documents are
// deep-copied across the boundary so callers never alias stored state.
type MemoryStore struct {
	mu       sync.RWMutex
	distTags map[string]DistTagDoc
	releases map[string]ReleaseDoc
	entries  []ManifestEntry
	accounts map[string]Account
	configs  map[string]RepoConfig
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		distTags: map[string]DistTagDoc{},
		releases: map[string]ReleaseDoc{},
		accounts: map[string]Account{},
		configs:  map[string]RepoConfig{},
	}
}

// GetDistTags implements Store.
func (s *MemoryStore) GetDistTags(ctx context.Context, id string) (DistTagDoc, error) {
	if err := ctx.Err(); err != nil {
		return DistTagDoc{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.distTags[id]
	if !ok {
		return DistTagDoc{}, ErrNotFound
	}
	return copyDistTagDoc(doc), nil
}

// PutDistTags implements Store.
func (s *MemoryStore) PutDistTags(ctx context.Context, doc DistTagDoc) (DistTagDoc, error) {
	if err := ctx.Err(); err != nil {
		return DistTagDoc{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.distTags[doc.ID]
	if exists && current.Rev != doc.Rev {
		return DistTagDoc{}, ErrConflict
	}
	if !exists && doc.Rev != 0 {
		return DistTagDoc{}, ErrConflict
	}
	stored := copyDistTagDoc(doc)
	stored.Rev = doc.Rev + 1
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now().UTC()
	}
	s.distTags[doc.ID] = stored
	return copyDistTagDoc(stored), nil
}

// GetRelease implements Store.
func (s *MemoryStore) GetRelease(ctx context.Context, id string) (ReleaseDoc, error) {
	if err := ctx.Err(); err != nil {
		return ReleaseDoc{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.releases[id]
	if !ok {
		return ReleaseDoc{}, ErrNotFound
	}
	return copyReleaseDoc(doc), nil
}

// PutRelease implements Store.
func (s *MemoryStore) PutRelease(ctx context.Context, doc ReleaseDoc) (ReleaseDoc, error) {
	if err := ctx.Err(); err != nil {
		return ReleaseDoc{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.releases[doc.ID]
	if exists && current.Rev != doc.Rev {
		return ReleaseDoc{}, ErrConflict
	}
	if !exists && doc.Rev != 0 {
		return ReleaseDoc{}, ErrConflict
	}
	stored := copyReleaseDoc(doc)
	stored.Rev = doc.Rev + 1
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now().UTC()
	}
	s.releases[doc.ID] = stored
	return copyReleaseDoc(stored), nil
}

// DeleteRelease implements Store.
func (s *MemoryStore) DeleteRelease(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.releases, id)
	return nil
}

// DependentsOf implements Store. Entries are returned in a stable order
// (full name, then file path, then type) so fan-out is deterministic.
func (s *MemoryStore) DependentsOf(ctx context.Context, names []string) ([]ManifestEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dependentsLocked(wanted), nil
}

func (s *MemoryStore) dependentsLocked(wanted map[string]bool) []ManifestEntry {
	var matches []ManifestEntry
	for _, entry := range s.entries {
		if wanted[entry.Dependency] {
			matches = append(matches, entry)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].FullName != matches[j].FullName {
			return matches[i].FullName < matches[j].FullName
		}
		if matches[i].FilePath != matches[j].FilePath {
			return matches[i].FilePath < matches[j].FilePath
		}
		return matches[i].Type < matches[j].Type
	})
	return matches
}

// AccountsByID implements Store.
func (s *MemoryStore) AccountsByID(ctx context.Context, ids []string) (map[string]Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]Account, len(ids))
	for _, id := range ids {
		if account, ok := s.accounts[id]; ok {
			result[id] = account
		}
	}
	return result, nil
}

// ConfigFor implements Store.
func (s *MemoryStore) ConfigFor(ctx context.Context, repositoryID string) (RepoConfig, error) {
	if err := ctx.Err(); err != nil {
		return RepoConfig{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[repositoryID]
	if !ok {
		return RepoConfig{}, ErrNotFound
	}
	return RepoConfig{
		DisabledPaths: append([]string(nil), cfg.DisabledPaths...),
		DisabledTypes: append([]string(nil), cfg.DisabledTypes...),
	}, nil
}

// SeedDependent registers one manifest entry in the dependency index.
func (s *MemoryStore) SeedDependent(entry ManifestEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

// SeedAccount registers an account.
func (s *MemoryStore) SeedAccount(account Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = account
}

// SeedConfig registers a repository configuration.
func (s *MemoryStore) SeedConfig(repositoryID string, cfg RepoConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[repositoryID] = cfg
}

func copyDistTagDoc(doc DistTagDoc) DistTagDoc {
	out := doc
	out.DistTags = copyStringMap(doc.DistTags)
	out.Versions = copyVersionMap(doc.Versions)
	return out
}

func copyReleaseDoc(doc ReleaseDoc) ReleaseDoc {
	out := doc
	out.DistTags = copyStringMap(doc.DistTags)
	out.Versions = copyVersionMap(doc.Versions)
	if doc.Members != nil {
		out.Members = make(map[string]bool, len(doc.Members))
		for k, v := range doc.Members {
			out.Members[k] = v
		}
	}
	return out
}

func copyStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyVersionMap(in map[string]registry.VersionInfo) map[string]registry.VersionInfo {
	if in == nil {
		return nil
	}
	out := make(map[string]registry.VersionInfo, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
