//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/nholik/registry-sentinel/internal/coordinator"
	"github.com/nholik/registry-sentinel/internal/healthcheck"
	"github.com/nholik/registry-sentinel/internal/jobs"
	"github.com/nholik/registry-sentinel/internal/logging"
	"github.com/nholik/registry-sentinel/internal/monorepo"
	"github.com/nholik/registry-sentinel/internal/server"
	"github.com/nholik/registry-sentinel/internal/store"
)

// TestIntegrationHookToJobs drives the full service through the HTTP hook
// boundary against a file-backed store: publish notifications in, job counts
// out, with state surviving across the monorepo barrier.
//
// Run with: go test -tags=integration -v ./test/integration/...
func TestIntegrationHookToJobs(t *testing.T) {
	logger := logging.New()

	storePath := filepath.Join(t.TempDir(), "store.json")
	docs, err := store.NewFileStore(storePath, logger)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	docs.SeedAccount(store.Account{ID: "acct-1", Installation: "install-1", Plan: "free"})
	docs.SeedDependent(store.ManifestEntry{
		Dependency:   "pouchdb",
		RepositoryID: "repo-app",
		AccountID:    "acct-1",
		FullName:     "org/app",
		FilePath:     "package.json",
		Type:         "dependencies",
		Range:        "^6.0.0",
	})

	resolver, err := monorepo.NewStaticResolver([]monorepo.GroupDefinition{
		{Name: "pouchdb", Members: []string{"pouchdb", "pouchdb-core"}},
	})
	if err != nil {
		t.Fatalf("create resolver: %v", err)
	}

	pipeline := coordinator.New(logger, docs, resolver)
	tracker := healthcheck.NewTracker()
	hook := server.NewHookHandler(logger, pipeline, jobs.NewLogSink(logger), tracker)

	mux := http.NewServeMux()
	mux.Handle("/hooks/registry", hook)
	testServer := httptest.NewServer(mux)
	defer testServer.Close()

	post := func(t *testing.T, dependency string) int {
		t.Helper()
		body := fmt.Sprintf(`{"name": %q, "distTags": {"latest": "7.0.0"}, "versions": {"6.1.0": {}, "7.0.0": {}}}`, dependency)
		resp, err := http.Post(testServer.URL+"/hooks/registry", "application/json", bytes.NewReader([]byte(body)))
		if err != nil {
			t.Fatalf("post hook: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var decoded struct {
			Jobs int `json:"jobs"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		return decoded.Jobs
	}

	t.Run("FirstMemberWaits", func(t *testing.T) {
		if emitted := post(t, "pouchdb"); emitted != 0 {
			t.Fatalf("incomplete group emitted %d jobs", emitted)
		}
	})

	t.Run("CompletingMemberFansOut", func(t *testing.T) {
		if emitted := post(t, "pouchdb-core"); emitted != 1 {
			t.Fatalf("completing member emitted %d jobs, want 1", emitted)
		}
	})

	t.Run("ReplayIsIdempotent", func(t *testing.T) {
		if emitted := post(t, "pouchdb-core"); emitted != 0 {
			t.Fatalf("replay emitted %d jobs", emitted)
		}
	})

	t.Run("StateSurvivesReopen", func(t *testing.T) {
		// The dist-tag state written above must be on disk, not just in the
		// memory index.
		reopened, err := store.NewFileStore(storePath, logger)
		if err != nil {
			t.Fatalf("reopen store: %v", err)
		}
		doc, err := reopened.GetDistTags(context.Background(), "pouchdb-core")
		if err != nil {
			t.Fatalf("dist-tag state missing after reopen: %v", err)
		}
		if doc.DistTags["latest"] != "7.0.0" {
			t.Fatalf("latest = %q, want 7.0.0", doc.DistTags["latest"])
		}
	})

	if snapshot := tracker.Snapshot(); snapshot.LastProcessedTime == nil {
		t.Fatal("tracker never recorded a processed notification")
	}
}
