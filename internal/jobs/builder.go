package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/nholik/registry-sentinel/internal/store"
	"github.com/rs/zerolog"
)

// typePriority orders dependency types for single-manifest deduplication.
// Lower wins. Types absent from the map are disabled by policy and filtered
// out before deduplication.
var typePriority = map[string]int{
	"dependencies":         0,
	"devDependencies":      1,
	"optionalDependencies": 2,
}

// ConfigSource loads per-repository job eligibility configuration.
// store.Store satisfies it.
type ConfigSource interface {
	ConfigFor(ctx context.Context, repositoryID string) (store.RepoConfig, error)
}

// Input is the release context shared by every job built for one
// invocation.
type Input struct {
	// Tag is the selected dist-tag, Version the version it points to.
	Tag     string
	Version string
	// State is the merged, persisted dist-tag state.
	State store.DistTagDoc
	// Installation is the originating installation id for hook-scoped
	// notifications, empty otherwise.
	Installation string
	// Accounts is the batch-resolved id → account mapping.
	Accounts map[string]store.Account
}

// Builder produces job payloads from partitioned manifest entries.
type Builder struct {
	logger  zerolog.Logger
	configs ConfigSource
}

// NewBuilder constructs a Builder with the given configuration source.
func NewBuilder(logger zerolog.Logger, configs ConfigSource) *Builder {
	return &Builder{logger: logger, configs: configs}
}

// BuildGroupJobs builds jobs for multi-manifest consumer repositories: one
// job per (manifest file, dependency type) combination the repository's
// configuration permits. Groups whose account cannot be resolved are skipped
// whole; a group job is keyed by configuration and has nothing to bill
// against without one.
func (b *Builder) BuildGroupJobs(ctx context.Context, in Input, groups map[string][]store.ManifestEntry, order []string) ([]Job, error) {
	var out []Job
	for _, repositoryID := range order {
		entries := groups[repositoryID]
		if len(entries) == 0 {
			continue
		}

		account, ok := in.Accounts[entries[0].AccountID]
		if !ok {
			b.logger.Warn().
				Str("repository", repositoryID).
				Str("account", entries[0].AccountID).
				Msg("skipping group, account not resolvable")
			continue
		}

		cfg, err := b.configs.ConfigFor(ctx, repositoryID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("load config for repository %q: %w", repositoryID, err)
			}
			cfg = store.RepoConfig{}
		}

		for _, entry := range entries {
			if disabled(cfg.DisabledPaths, entry.FilePath) || disabled(cfg.DisabledTypes, entry.Type) {
				continue
			}
			out = append(out, b.groupJob(in, account, entry))
		}
	}
	return out, nil
}

func (b *Builder) groupJob(in Input, account store.Account, entry store.ManifestEntry) Job {
	return Job{
		Data: map[string]any{
			"name":               KindGroupVersionBranch,
			"dependency":         entry.Dependency,
			"distTag":            in.Tag,
			"distTags":           in.State.DistTags,
			"versions":           in.State.Versions,
			"repositoryId":       entry.RepositoryID,
			"repositoryFullName": entry.FullName,
			"filePath":           entry.FilePath,
			"type":               entry.Type,
			"oldVersion":         entry.Range,
			"accountId":          account.ID,
			"installation":       account.Installation,
			"plan":               account.Plan,
		},
		Plan: account.Plan,
	}
}

// BuildSingleJobs builds jobs for single-manifest consumers. Entries with a
// policy-disabled dependency type are dropped, then deduplicated per
// repository full name keeping the highest-priority type, so at most one job
// per repository survives. Hook-scoped notifications skip entries belonging
// to other installations; skipped entries and entries with no resolvable
// account yield placeholders, not jobs, preserving one output per surviving
// entry.
func (b *Builder) BuildSingleJobs(in Input, entries []store.ManifestEntry) []Job {
	surviving := dedupeByRepository(filterTypes(entries))

	out := make([]Job, 0, len(surviving))
	for _, entry := range surviving {
		account, ok := in.Accounts[entry.AccountID]
		if !ok {
			// Kept for compatibility: an unresolvable account degrades to a
			// placeholder instead of dropping the entry.
			b.logger.Warn().
				Str("repository", entry.FullName).
				Str("account", entry.AccountID).
				Msg("account not resolvable, emitting placeholder")
			out = append(out, Job{})
			continue
		}
		if in.Installation != "" && account.Installation != in.Installation {
			b.logger.Debug().
				Str("repository", entry.FullName).
				Str("installation", account.Installation).
				Msg("entry outside originating installation, emitting placeholder")
			out = append(out, Job{})
			continue
		}

		satisfying := satisfyingVersions(in.State.Versions, entry.Range)

		out = append(out, Job{
			Data: map[string]any{
				"name":               KindVersionBranch,
				"dependency":         entry.Dependency,
				"distTag":            in.Tag,
				"distTags":           in.State.DistTags,
				"versions":           in.State.Versions,
				"repositoryId":       entry.RepositoryID,
				"repositoryFullName": entry.FullName,
				"filePath":           entry.FilePath,
				"type":               entry.Type,
				"oldVersion":         entry.Range,
				"oldVersionResolved": oldResolvedVersion(satisfying, in.Version),
				"matchingVersions":   satisfying,
				"accountId":          account.ID,
				"installation":       account.Installation,
				"plan":               account.Plan,
			},
			Plan: account.Plan,
		})
	}
	return out
}

// filterTypes drops entries whose dependency type is disabled by policy.
func filterTypes(entries []store.ManifestEntry) []store.ManifestEntry {
	out := make([]store.ManifestEntry, 0, len(entries))
	for _, entry := range entries {
		if _, ok := typePriority[entry.Type]; ok {
			out = append(out, entry)
		}
	}
	return out
}

// dedupeByRepository keeps one entry per repository full name: the one with
// the highest-priority dependency type. Ties on priority keep the earliest
// entry, so output order follows first appearance.
func dedupeByRepository(entries []store.ManifestEntry) []store.ManifestEntry {
	best := make(map[string]int)
	order := make([]string, 0, len(entries))

	for i, entry := range entries {
		current, seen := best[entry.FullName]
		if !seen {
			best[entry.FullName] = i
			order = append(order, entry.FullName)
			continue
		}
		if typePriority[entry.Type] < typePriority[entries[current].Type] {
			best[entry.FullName] = i
		}
	}

	out := make([]store.ManifestEntry, 0, len(order))
	for _, fullName := range order {
		out = append(out, entries[best[fullName]])
	}
	return out
}

func disabled(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
