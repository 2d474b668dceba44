package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

func TestSlackNotifier_PostsMessage(t *testing.T) {
	var received []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received = body
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewSlackNotifier(zerolog.Nop(), server.URL)
	signal := Signal{Dependency: "left-pad", Dependents: 150, Threshold: 100}
	if err := notifier.Notify(context.Background(), signal); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var message slack.WebhookMessage
	if err := json.Unmarshal(received, &message); err != nil {
		t.Fatalf("payload not a slack message: %v", err)
	}
	if message.Text == "" {
		t.Fatal("summary text missing")
	}
	if message.Blocks == nil || len(message.Blocks.BlockSet) == 0 {
		t.Fatal("blocks missing")
	}
}

func TestSlackNotifier_EmptyWebhookIsNoop(t *testing.T) {
	notifier := NewSlackNotifier(zerolog.Nop(), "")
	if _, ok := notifier.(*NoopNotifier); !ok {
		t.Fatalf("expected noop notifier, got %T", notifier)
	}
}

func TestSlackNotifier_RetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "try later", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewSlackNotifier(zerolog.Nop(), server.URL,
		WithSlackTiming(time.Millisecond, 1, time.Millisecond, 5*time.Millisecond, time.Second))

	if err := notifier.Notify(context.Background(), Signal{Dependency: "left-pad"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}
