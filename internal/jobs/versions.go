package jobs

import (
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/nholik/registry-sentinel/internal/registry"
)

// satisfyingVersions returns every published version satisfying the declared
// range, sorted ascending. An unparsable range or version contributes
// nothing.
func satisfyingVersions(versions map[string]registry.VersionInfo, declaredRange string) []string {
	constraint, err := semver.NewConstraint(declaredRange)
	if err != nil {
		return nil
	}

	parsed := make([]*semver.Version, 0, len(versions))
	for raw := range versions {
		version, err := semver.NewVersion(raw)
		if err != nil {
			continue
		}
		if constraint.Check(version) {
			parsed = append(parsed, version)
		}
	}
	sort.Sort(semver.Collection(parsed))

	out := make([]string, 0, len(parsed))
	for _, version := range parsed {
		out = append(out, version.Original())
	}
	return out
}

// oldResolvedVersion returns the version that satisfied the declared range
// before this release: the highest satisfying version excluding the one the
// selected tag now points to. Empty when nothing previously satisfied the
// range.
func oldResolvedVersion(satisfying []string, newVersion string) string {
	for i := len(satisfying) - 1; i >= 0; i-- {
		if satisfying[i] != newVersion {
			return satisfying[i]
		}
	}
	return ""
}
