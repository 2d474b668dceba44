// Package disttag implements the freshness gate: deciding whether an
// incoming dist-tag points at genuinely new information, and persisting the
// merged tag state so replays are idempotent.
package disttag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/nholik/registry-sentinel/internal/registry"
	"github.com/nholik/registry-sentinel/internal/store"
	"github.com/rs/zerolog"
)

// Latest is the only tag that triggers downstream fan-out. Other tags update
// state but never schedule work.
const Latest = "latest"

// Result is the outcome of gating one notification.
type Result struct {
	// Tag is the selected fresh tag, empty when nothing is fresh.
	Tag string
	// State is the merged, persisted dist-tag document.
	State store.DistTagDoc
}

// Gate merges notifications over prior dist-tag state and selects at most one
// fresh tag per invocation.
type Gate struct {
	logger zerolog.Logger
	docs   store.Store
}

// NewGate constructs a Gate over the given store.
func NewGate(logger zerolog.Logger, docs store.Store) *Gate {
	return &Gate{logger: logger, docs: docs}
}

// Process loads prior state for the notification, computes the fresh tag set,
// selects one tag by priority, and persists the merged state. The write
// happens unconditionally, even when no tag is fresh or the selected tag is
// not "latest": a later replay of the same notification then observes the
// update already applied and selects nothing.
func (g *Gate) Process(ctx context.Context, n registry.Notification) (Result, error) {
	id := n.StateID()

	prior, err := g.docs.GetDistTags(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return Result{}, fmt.Errorf("load dist-tag state %q: %w", id, err)
		}
		prior = store.DistTagDoc{ID: id}
	}

	fresh := freshTags(g.logger, prior.DistTags, n.DistTags)
	selected := selectTag(n.DistTags, fresh)

	merged := merge(prior, n, fresh)
	persisted, err := g.docs.PutDistTags(ctx, merged)
	if err != nil {
		return Result{}, fmt.Errorf("persist dist-tag state %q: %w", id, err)
	}

	event := g.logger.Debug().
		Str("dependency", n.Dependency).
		Str("state_id", id)
	if selected == "" {
		event.Msg("no fresh dist-tag")
	} else {
		event.Str("tag", selected).Str("version", n.DistTags[selected]).Msg("fresh dist-tag selected")
	}

	return Result{Tag: selected, State: persisted}, nil
}

// freshTags computes the set of incoming tags that are fresh relative to
// prior state.
func freshTags(logger zerolog.Logger, prior, incoming map[string]string) map[string]bool {
	fresh := make(map[string]bool, len(incoming))
	for tag, version := range incoming {
		if isFresh(logger, tag, prior[tag], version) {
			fresh[tag] = true
		}
	}
	return fresh
}

// selectTag evaluates tags in a fixed priority order: "latest" first, then
// remaining tags in ascending lexical order. The first fresh tag wins. The
// explicit order exists because multiple tags can be fresh at once and the
// choice must not depend on map iteration.
func selectTag(incoming map[string]string, fresh map[string]bool) string {
	for _, tag := range tagOrder(incoming) {
		if fresh[tag] {
			return tag
		}
	}
	return ""
}

func tagOrder(incoming map[string]string) []string {
	rest := make([]string, 0, len(incoming))
	hasLatest := false
	for tag := range incoming {
		if tag == Latest {
			hasLatest = true
			continue
		}
		rest = append(rest, tag)
	}
	sort.Strings(rest)
	if hasLatest {
		return append([]string{Latest}, rest...)
	}
	return rest
}

// isFresh reports whether incoming is new for the tag: fresh iff there is no
// prior version at all, or the prior version is strictly semver-less than the
// incoming one. Equal or descending versions are never fresh.
func isFresh(logger zerolog.Logger, tag, prior, incoming string) bool {
	incomingVersion, err := semver.NewVersion(incoming)
	if err != nil {
		logger.Warn().Str("tag", tag).Str("version", incoming).Msg("unparsable incoming version, ignoring tag")
		return false
	}
	if prior == "" {
		return true
	}
	priorVersion, err := semver.NewVersion(prior)
	if err != nil {
		logger.Warn().Str("tag", tag).Str("version", prior).Msg("unparsable recorded version, treating incoming as fresh")
		return true
	}
	return incomingVersion.GreaterThan(priorVersion)
}

// IsPrerelease reports whether the version carries a semver prerelease
// identifier. Unparsable versions report false.
func IsPrerelease(version string) bool {
	parsed, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return parsed.Prerelease() != ""
}

// merge overlays the notification on prior state. A tag entry is only
// overwritten when the incoming version is fresh, so a stale or replayed
// notification never moves a tag backwards. Version metadata merges
// additively.
func merge(prior store.DistTagDoc, n registry.Notification, fresh map[string]bool) store.DistTagDoc {
	merged := store.DistTagDoc{
		ID:        prior.ID,
		DistTags:  make(map[string]string, len(prior.DistTags)+len(n.DistTags)),
		Versions:  make(map[string]registry.VersionInfo, len(prior.Versions)+len(n.Versions)),
		UpdatedAt: time.Now().UTC(),
		Rev:       prior.Rev,
	}
	for tag, version := range prior.DistTags {
		merged.DistTags[tag] = version
	}
	for tag, version := range n.DistTags {
		if _, recorded := merged.DistTags[tag]; recorded && !fresh[tag] {
			continue
		}
		merged.DistTags[tag] = version
	}
	for version, info := range prior.Versions {
		merged.Versions[version] = info
	}
	for version, info := range n.Versions {
		merged.Versions[version] = info
	}
	return merged
}
