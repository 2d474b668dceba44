package monorepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nholik/registry-sentinel/internal/disttag"
	"github.com/nholik/registry-sentinel/internal/registry"
	"github.com/nholik/registry-sentinel/internal/store"
	"github.com/rs/zerolog"
)

// Coordinator gates fan-out for multi-package releases. Group members publish
// asynchronously; a release record exists for a (dependency, version) pair
// between the first partial observation and the group being acted upon. No
// job-producing path runs while the record exists unless the group is
// complete or the notification carries the force flag.
type Coordinator struct {
	logger zerolog.Logger
	docs   store.Store
	groups Resolver
}

// NewCoordinator constructs a Coordinator over the given store and resolver.
func NewCoordinator(logger zerolog.Logger, docs store.Store, groups Resolver) *Coordinator {
	return &Coordinator{logger: logger, docs: docs, groups: groups}
}

// IsPartOfMonorepo reports whether the dependency publishes as part of a
// release group.
func (c *Coordinator) IsPartOfMonorepo(name string) bool {
	return c.groups.IsMember(name)
}

// ResolveGroup returns the dependency's full group, or just the dependency
// itself when it is not grouped.
func (c *Coordinator) ResolveGroup(name string) []string {
	return c.groups.Group(name)
}

// HasAllUpdates reports whether every member of the dependency's group has a
// recorded "latest" equal to version. Members must have actually published —
// freshness-eligibility alone does not count, which is why this reads the
// persisted dist-tag state rather than the release record.
func (c *Coordinator) HasAllUpdates(ctx context.Context, installation, name, version string) (bool, error) {
	for _, member := range c.groups.Group(name) {
		id := member
		if installation != "" {
			id = installation + ":" + member
		}
		doc, err := c.docs.GetDistTags(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return false, nil
			}
			return false, fmt.Errorf("load dist-tag state %q: %w", id, err)
		}
		if doc.DistTags[disttag.Latest] != version {
			return false, nil
		}
	}
	return true, nil
}

// UpdateReleaseInfo upserts the partial release record, marking the
// notification's dependency as observed at the given tag's version and
// folding in its dist-tag and version metadata for the eventual group
// fan-out.
func (c *Coordinator) UpdateReleaseInfo(ctx context.Context, n registry.Notification, tag string) error {
	version := n.DistTags[tag]
	id := store.ReleaseID(n.Installation, n.Dependency, version)

	doc, err := c.docs.GetRelease(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("load release record %q: %w", id, err)
		}
		doc = store.ReleaseDoc{
			ID:         id,
			Dependency: n.Dependency,
			Version:    version,
			Members:    map[string]bool{},
			DistTags:   map[string]string{},
			Versions:   map[string]registry.VersionInfo{},
		}
	}
	if doc.Members == nil {
		doc.Members = map[string]bool{}
	}
	if doc.DistTags == nil {
		doc.DistTags = map[string]string{}
	}
	if doc.Versions == nil {
		doc.Versions = map[string]registry.VersionInfo{}
	}

	doc.Members[n.Dependency] = true
	for t, v := range n.DistTags {
		doc.DistTags[t] = v
	}
	for v, info := range n.Versions {
		doc.Versions[v] = info
	}
	doc.UpdatedAt = time.Now().UTC()

	if _, err := c.docs.PutRelease(ctx, doc); err != nil {
		return fmt.Errorf("persist release record %q: %w", id, err)
	}

	c.logger.Info().
		Str("dependency", n.Dependency).
		Str("version", version).
		Int("members_observed", len(doc.Members)).
		Msg("partial monorepo release recorded")

	return nil
}

// DeleteReleaseInfo removes the partial records for every group member at
// this version once the group is acted upon, so a future identical-version
// notification does not re-trigger. Records exist only between the first
// partial observation and the group acting.
func (c *Coordinator) DeleteReleaseInfo(ctx context.Context, installation, name, version string) error {
	for _, member := range c.groups.Group(name) {
		id := store.ReleaseID(installation, member, version)
		if err := c.docs.DeleteRelease(ctx, id); err != nil {
			return fmt.Errorf("delete release record %q: %w", id, err)
		}
	}
	return nil
}
