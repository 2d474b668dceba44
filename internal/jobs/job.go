// Package jobs builds the downstream job payloads for a registry publish:
// one path for multi-manifest consumer groups, one for single-manifest
// consumers, with documented priority and deduplication rules.
package jobs

import (
	"context"

	"github.com/rs/zerolog"
)

// Job kind markers carried in Data["name"].
const (
	KindVersionBranch      = "create-version-branch"
	KindGroupVersionBranch = "create-group-version-branch"
)

// Job is the unit handed back to the caller for queueing. Data always
// includes the job name, dependency name, dist-tag state, and resolved
// version info, merged with manifest-entry fields. A placeholder job (empty
// Data, empty Plan) stands in for entries skipped by hook scoping or a
// missing account, preserving list-length semantics.
type Job struct {
	Data map[string]any `json:"data"`
	Plan string         `json:"plan"`
}

// IsPlaceholder reports whether the job is a skipped-entry placeholder.
func (j Job) IsPlaceholder() bool {
	return len(j.Data) == 0
}

// Sink consumes emitted jobs. The production queue lives outside this
// service; LogSink is the bundled default.
type Sink interface {
	Enqueue(ctx context.Context, jobs []Job) error
}

// LogSink logs each real job at info level and drops placeholders.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink constructs a LogSink.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Enqueue implements Sink.
func (s *LogSink) Enqueue(_ context.Context, jobs []Job) error {
	for _, job := range jobs {
		if job.IsPlaceholder() {
			continue
		}
		s.logger.Info().
			Interface("data", job.Data).
			Str("plan", job.Plan).
			Msg("job emitted")
	}
	return nil
}
