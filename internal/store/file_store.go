package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// FileStore persists the full document set as JSON on disk, layered over a
// MemoryStore index. Every successful mutation rewrites the file atomically
// (temp file, fsync, rename), so a crash never leaves a torn document set.
type FileStore struct {
	*MemoryStore
	path   string
	logger zerolog.Logger
}

type snapshot struct {
	DistTags map[string]DistTagDoc `json:"distTags"`
	Releases map[string]ReleaseDoc `json:"releases"`
	Entries  []ManifestEntry       `json:"entries"`
	Accounts map[string]Account    `json:"accounts"`
	Configs  map[string]RepoConfig `json:"configs"`
}

// NewFileStore returns a JSON-backed store rooted at path. A missing file
// starts empty; a corrupt file starts empty with a warning.
func NewFileStore(path string, logger zerolog.Logger) (*FileStore, error) {
	s := &FileStore{
		MemoryStore: NewMemoryStore(),
		path:        path,
		logger:      logger,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Str("path", s.path).Msg("store file missing, starting fresh")
			return nil
		}
		return err
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn().Str("path", s.path).Err(err).Msg("store file corrupt, starting fresh")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.DistTags != nil {
		s.distTags = snap.DistTags
	}
	if snap.Releases != nil {
		s.releases = snap.Releases
	}
	s.entries = append(s.entries, snap.Entries...)
	if snap.Accounts != nil {
		s.accounts = snap.Accounts
	}
	if snap.Configs != nil {
		s.configs = snap.Configs
	}
	return nil
}

// PutDistTags implements Store, persisting after the in-memory write.
func (s *FileStore) PutDistTags(ctx context.Context, doc DistTagDoc) (DistTagDoc, error) {
	stored, err := s.MemoryStore.PutDistTags(ctx, doc)
	if err != nil {
		return DistTagDoc{}, err
	}
	if err := s.persist(); err != nil {
		return DistTagDoc{}, err
	}
	return stored, nil
}

// PutRelease implements Store, persisting after the in-memory write.
func (s *FileStore) PutRelease(ctx context.Context, doc ReleaseDoc) (ReleaseDoc, error) {
	stored, err := s.MemoryStore.PutRelease(ctx, doc)
	if err != nil {
		return ReleaseDoc{}, err
	}
	if err := s.persist(); err != nil {
		return ReleaseDoc{}, err
	}
	return stored, nil
}

// DeleteRelease implements Store, persisting after the in-memory delete.
func (s *FileStore) DeleteRelease(ctx context.Context, id string) error {
	if err := s.MemoryStore.DeleteRelease(ctx, id); err != nil {
		return err
	}
	return s.persist()
}

func (s *FileStore) persist() error {
	s.mu.RLock()
	snap := snapshot{
		DistTags: make(map[string]DistTagDoc, len(s.distTags)),
		Releases: make(map[string]ReleaseDoc, len(s.releases)),
		Entries:  append([]ManifestEntry(nil), s.entries...),
		Accounts: make(map[string]Account, len(s.accounts)),
		Configs:  make(map[string]RepoConfig, len(s.configs)),
	}
	for id, doc := range s.distTags {
		snap.DistTags[id] = copyDistTagDoc(doc)
	}
	for id, doc := range s.releases {
		snap.Releases[id] = copyReleaseDoc(doc)
	}
	for id, account := range s.accounts {
		snap.Accounts[id] = account
	}
	for id, cfg := range s.configs {
		snap.Configs[id] = cfg
	}
	s.mu.RUnlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(dir, ".store-*.json")
	if err != nil {
		return err
	}

	cleanup := func() {
		_ = os.Remove(tempFile.Name())
	}

	encoder := json.NewEncoder(tempFile)
	if err := encoder.Encode(snap); err != nil {
		_ = tempFile.Close()
		cleanup()
		return err
	}
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		cleanup()
		return err
	}
	if err := tempFile.Close(); err != nil {
		cleanup()
		return err
	}

	if err := os.Rename(tempFile.Name(), s.path); err != nil {
		cleanup()
		return err
	}

	if dirHandle, err := os.Open(dir); err == nil {
		_ = dirHandle.Sync()
		_ = dirHandle.Close()
	}

	return nil
}
