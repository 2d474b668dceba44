// Package dependents resolves consumer manifests for a dependency set and
// partitions them into single-manifest consumers and multi-manifest
// ("monorepo-consumer") groups.
package dependents

import (
	"context"
	"fmt"
	"sort"

	"github.com/nholik/registry-sentinel/internal/store"
	"github.com/rs/zerolog"
)

// Resolver queries the dependency index for consumer manifest entries.
type Resolver struct {
	logger zerolog.Logger
	docs   store.Store
}

// NewResolver constructs a Resolver over the given store.
func NewResolver(logger zerolog.Logger, docs store.Store) *Resolver {
	return &Resolver{logger: logger, docs: docs}
}

// Resolve returns all manifest entries referencing any name in the set.
func (r *Resolver) Resolve(ctx context.Context, names []string) ([]store.ManifestEntry, error) {
	entries, err := r.docs.DependentsOf(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("query dependents: %w", err)
	}
	r.logger.Debug().
		Strs("dependencies", names).
		Int("entries", len(entries)).
		Msg("resolved dependents")
	return entries, nil
}

// Grouped is the partition of manifest entries by consuming repository
// layout. A repository contributing entries from more than one distinct
// manifest file path is a multi-manifest consumer and gets its own group;
// every other entry is a single-manifest consumer. The classification is
// about the consuming repository's file layout, independent of whether the
// published dependency itself comes from a monorepo.
type Grouped struct {
	// Groups maps repository id to that repository's entries, for
	// multi-manifest consumers only.
	Groups map[string][]store.ManifestEntry
	// GroupOrder lists group keys in ascending repository-id order so
	// iteration is deterministic.
	GroupOrder []string
	// Singles holds single-manifest consumer entries, input order preserved.
	Singles []store.ManifestEntry
}

// Partition splits entries per the multi-manifest classification above.
func Partition(entries []store.ManifestEntry) Grouped {
	paths := make(map[string]map[string]bool)
	for _, entry := range entries {
		if paths[entry.RepositoryID] == nil {
			paths[entry.RepositoryID] = make(map[string]bool)
		}
		paths[entry.RepositoryID][entry.FilePath] = true
	}

	grouped := Grouped{Groups: make(map[string][]store.ManifestEntry)}
	for _, entry := range entries {
		if len(paths[entry.RepositoryID]) > 1 {
			grouped.Groups[entry.RepositoryID] = append(grouped.Groups[entry.RepositoryID], entry)
			continue
		}
		grouped.Singles = append(grouped.Singles, entry)
	}

	grouped.GroupOrder = make([]string, 0, len(grouped.Groups))
	for id := range grouped.Groups {
		grouped.GroupOrder = append(grouped.GroupOrder, id)
	}
	sort.Strings(grouped.GroupOrder)

	return grouped
}

// AccountIDs returns the distinct account ids referenced across both
// partitions, sorted.
func AccountIDs(grouped Grouped) []string {
	seen := make(map[string]bool)
	for _, entries := range grouped.Groups {
		for _, entry := range entries {
			seen[entry.AccountID] = true
		}
	}
	for _, entry := range grouped.Singles {
		seen[entry.AccountID] = true
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		if id == "" {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
