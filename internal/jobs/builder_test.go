package jobs

import (
	"context"
	"reflect"
	"testing"

	"github.com/nholik/registry-sentinel/internal/registry"
	"github.com/nholik/registry-sentinel/internal/store"
	"github.com/rs/zerolog"
)

func testInput() Input {
	return Input{
		Tag:     "latest",
		Version: "1.2.0",
		State: store.DistTagDoc{
			ID:       "left-pad",
			DistTags: map[string]string{"latest": "1.2.0"},
			Versions: map[string]registry.VersionInfo{
				"1.0.0": {},
				"1.1.0": {},
				"1.2.0": {},
			},
		},
		Accounts: map[string]store.Account{
			"acct-1": {ID: "acct-1", Installation: "install-1", Plan: "free"},
			"acct-2": {ID: "acct-2", Installation: "install-2", Plan: "org"},
		},
	}
}

func singleEntry(fullName, typ string) store.ManifestEntry {
	return store.ManifestEntry{
		Dependency:   "left-pad",
		RepositoryID: "repo-" + fullName,
		AccountID:    "acct-1",
		FullName:     fullName,
		FilePath:     "package.json",
		Type:         typ,
		Range:        "^1.0.0",
	}
}

func TestBuildSingleJobs_TypePriority(t *testing.T) {
	builder := NewBuilder(zerolog.Nop(), store.NewMemoryStore())

	jobs := builder.BuildSingleJobs(testInput(), []store.ManifestEntry{
		singleEntry("org/app", "devDependencies"),
		singleEntry("org/app", "dependencies"),
	})

	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(jobs))
	}
	if jobs[0].Data["type"] != "dependencies" {
		t.Fatalf("surviving type = %v, want dependencies", jobs[0].Data["type"])
	}
}

func TestBuildSingleJobs_PolicyDisabledTypes(t *testing.T) {
	builder := NewBuilder(zerolog.Nop(), store.NewMemoryStore())

	jobs := builder.BuildSingleJobs(testInput(), []store.ManifestEntry{
		singleEntry("org/app", "peerDependencies"),
	})

	if len(jobs) != 0 {
		t.Fatalf("got %d jobs, want 0 (peerDependencies disabled)", len(jobs))
	}
}

func TestBuildSingleJobs_FanOutCompleteness(t *testing.T) {
	builder := NewBuilder(zerolog.Nop(), store.NewMemoryStore())

	entries := []store.ManifestEntry{
		singleEntry("org/a", "dependencies"),
		singleEntry("org/b", "dependencies"),
		singleEntry("org/c", "devDependencies"),
	}
	jobs := builder.BuildSingleJobs(testInput(), entries)

	if len(jobs) != 3 {
		t.Fatalf("got %d jobs, want 3", len(jobs))
	}
	for i, job := range jobs {
		if job.IsPlaceholder() {
			t.Fatalf("job %d is a placeholder", i)
		}
		if job.Data["name"] != KindVersionBranch {
			t.Fatalf("job %d name = %v", i, job.Data["name"])
		}
		if job.Data["dependency"] != "left-pad" {
			t.Fatalf("job %d dependency = %v", i, job.Data["dependency"])
		}
		if job.Data["distTag"] != "latest" {
			t.Fatalf("job %d distTag = %v", i, job.Data["distTag"])
		}
		if job.Plan != "free" {
			t.Fatalf("job %d plan = %q", i, job.Plan)
		}
	}
}

func TestBuildSingleJobs_VersionResolution(t *testing.T) {
	builder := NewBuilder(zerolog.Nop(), store.NewMemoryStore())

	jobs := builder.BuildSingleJobs(testInput(), []store.ManifestEntry{
		singleEntry("org/app", "dependencies"),
	})
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(jobs))
	}

	matching, ok := jobs[0].Data["matchingVersions"].([]string)
	if !ok {
		t.Fatalf("matchingVersions has type %T", jobs[0].Data["matchingVersions"])
	}
	if !reflect.DeepEqual(matching, []string{"1.0.0", "1.1.0", "1.2.0"}) {
		t.Fatalf("matchingVersions = %v", matching)
	}
	if jobs[0].Data["oldVersionResolved"] != "1.1.0" {
		t.Fatalf("oldVersionResolved = %v, want 1.1.0", jobs[0].Data["oldVersionResolved"])
	}
}

func TestBuildSingleJobs_HookScoping(t *testing.T) {
	builder := NewBuilder(zerolog.Nop(), store.NewMemoryStore())

	in := testInput()
	in.Installation = "install-1"

	other := singleEntry("org/other", "dependencies")
	other.AccountID = "acct-2"

	jobs := builder.BuildSingleJobs(in, []store.ManifestEntry{
		singleEntry("org/mine", "dependencies"),
		other,
	})

	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2 (placeholder preserves length)", len(jobs))
	}
	if jobs[0].IsPlaceholder() {
		t.Fatal("in-scope entry must yield a real job")
	}
	if !jobs[1].IsPlaceholder() {
		t.Fatal("out-of-scope entry must yield a placeholder")
	}
}

func TestBuildSingleJobs_MissingAccountPlaceholder(t *testing.T) {
	builder := NewBuilder(zerolog.Nop(), store.NewMemoryStore())

	orphan := singleEntry("org/orphan", "dependencies")
	orphan.AccountID = "acct-unknown"

	jobs := builder.BuildSingleJobs(testInput(), []store.ManifestEntry{orphan})
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(jobs))
	}
	if !jobs[0].IsPlaceholder() {
		t.Fatal("missing account must degrade to a placeholder")
	}
}

func TestBuildGroupJobs(t *testing.T) {
	docs := store.NewMemoryStore()
	docs.SeedConfig("repo-mono", store.RepoConfig{
		DisabledPaths: []string{"packages/legacy/package.json"},
	})
	builder := NewBuilder(zerolog.Nop(), docs)

	groups := map[string][]store.ManifestEntry{
		"repo-mono": {
			{Dependency: "left-pad", RepositoryID: "repo-mono", AccountID: "acct-1", FullName: "org/mono", FilePath: "package.json", Type: "dependencies", Range: "^1.0.0"},
			{Dependency: "left-pad", RepositoryID: "repo-mono", AccountID: "acct-1", FullName: "org/mono", FilePath: "packages/a/package.json", Type: "dependencies", Range: "^1.0.0"},
			{Dependency: "left-pad", RepositoryID: "repo-mono", AccountID: "acct-1", FullName: "org/mono", FilePath: "packages/legacy/package.json", Type: "dependencies", Range: "^1.0.0"},
		},
	}

	jobs, err := builder.BuildGroupJobs(context.Background(), testInput(), groups, []string{"repo-mono"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2 (legacy path disabled)", len(jobs))
	}
	for _, job := range jobs {
		if job.Data["name"] != KindGroupVersionBranch {
			t.Fatalf("job name = %v", job.Data["name"])
		}
		if job.Data["filePath"] == "packages/legacy/package.json" {
			t.Fatal("disabled path produced a job")
		}
	}
}

func TestBuildGroupJobs_MissingAccountSkipsGroup(t *testing.T) {
	builder := NewBuilder(zerolog.Nop(), store.NewMemoryStore())

	groups := map[string][]store.ManifestEntry{
		"repo-x": {
			{Dependency: "left-pad", RepositoryID: "repo-x", AccountID: "acct-unknown", FullName: "org/x", FilePath: "package.json", Type: "dependencies"},
		},
	}

	jobs, err := builder.BuildGroupJobs(context.Background(), testInput(), groups, []string{"repo-x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("got %d jobs, want 0", len(jobs))
	}
}

func TestOldResolvedVersion(t *testing.T) {
	satisfying := []string{"1.0.0", "1.1.0", "1.2.0"}
	if got := oldResolvedVersion(satisfying, "1.2.0"); got != "1.1.0" {
		t.Fatalf("got %q, want 1.1.0", got)
	}
	if got := oldResolvedVersion([]string{"1.2.0"}, "1.2.0"); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
	if got := oldResolvedVersion(nil, "1.2.0"); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}
