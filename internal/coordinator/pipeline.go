// Package coordinator runs the end-to-end pipeline for one registry
// notification: freshness gate, monorepo barrier, dependent resolution,
// account resolution, and job construction.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/nholik/registry-sentinel/internal/accounts"
	"github.com/nholik/registry-sentinel/internal/dependents"
	"github.com/nholik/registry-sentinel/internal/disttag"
	"github.com/nholik/registry-sentinel/internal/jobs"
	"github.com/nholik/registry-sentinel/internal/metrics"
	"github.com/nholik/registry-sentinel/internal/monorepo"
	"github.com/nholik/registry-sentinel/internal/notify"
	"github.com/nholik/registry-sentinel/internal/registry"
	"github.com/nholik/registry-sentinel/internal/store"
	"github.com/rs/zerolog"
)

// Pipeline processes one notification per invocation. Invocations are
// stateless and may run concurrently, including for the same dependency;
// ordering relies solely on the store's read-modify-write conflict
// signaling, and the downstream queue absorbs occasional duplicates.
type Pipeline struct {
	logger           zerolog.Logger
	gate             *disttag.Gate
	releases         *monorepo.Coordinator
	resolver         *dependents.Resolver
	plans            *accounts.PlanResolver
	builder          *jobs.Builder
	collector        *metrics.Metrics
	notifier         notify.Notifier
	popularThreshold int
}

// Option customizes pipeline behavior.
type Option func(*Pipeline)

// WithMetrics attaches a metrics collector.
func WithMetrics(collector *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.collector = collector
	}
}

// WithNotifier attaches the popular-package signal notifier.
func WithNotifier(notifier notify.Notifier) Option {
	return func(p *Pipeline) {
		p.notifier = notifier
	}
}

// WithPopularThreshold overrides the dependent-count threshold.
func WithPopularThreshold(threshold int) Option {
	return func(p *Pipeline) {
		if threshold > 0 {
			p.popularThreshold = threshold
		}
	}
}

// New wires a Pipeline over the given store and group resolver.
func New(logger zerolog.Logger, docs store.Store, groups monorepo.Resolver, opts ...Option) *Pipeline {
	p := &Pipeline{
		logger:           logger,
		gate:             disttag.NewGate(logger, docs),
		releases:         monorepo.NewCoordinator(logger, docs, groups),
		resolver:         dependents.NewResolver(logger, docs),
		plans:            accounts.NewPlanResolver(logger, docs),
		builder:          jobs.NewBuilder(logger, docs),
		popularThreshold: 100,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs the pipeline for one notification and returns the jobs to
// queue. Early exits (no fresh tag, non-latest tag, prerelease, incomplete
// monorepo group, no dependents) return an empty list with no error;
// collaborator failures fail the whole invocation and are expected to be
// retried in full by the caller.
func (p *Pipeline) Process(ctx context.Context, n registry.Notification) ([]jobs.Job, error) {
	started := time.Now()
	out, err := p.process(ctx, n)
	p.collector.ObserveProcessingDuration(time.Since(started))
	if err != nil {
		p.collector.IncNotifications(metrics.OutcomeError)
		return nil, err
	}
	p.collector.SetLastProcessedTimestamp(time.Now().UTC())
	return out, nil
}

func (p *Pipeline) process(ctx context.Context, n registry.Notification) ([]jobs.Job, error) {
	logger := p.logger.With().Str("dependency", n.Dependency).Logger()

	gated, err := p.gate.Process(ctx, n)
	if err != nil {
		return nil, err
	}
	if gated.Tag == "" {
		logger.Info().Msg("no fresh dist-tag, nothing to schedule")
		p.collector.IncNotifications(metrics.OutcomeNoFreshTag)
		return nil, nil
	}
	if gated.Tag != disttag.Latest {
		// Only latest triggers fan-out; other tags already updated state
		// above. Extension point for scheduling on other channels.
		logger.Info().Str("tag", gated.Tag).Msg("fresh tag is not latest, nothing to schedule")
		p.collector.IncNotifications(metrics.OutcomeTagNotLatest)
		return nil, nil
	}

	version := gated.State.DistTags[disttag.Latest]
	if disttag.IsPrerelease(version) {
		logger.Info().Str("version", version).Msg("latest is a prerelease, nothing to schedule")
		p.collector.IncNotifications(metrics.OutcomePrerelease)
		return nil, nil
	}

	dependencyNames := []string{n.Dependency}
	if p.releases.IsPartOfMonorepo(n.Dependency) {
		complete, err := p.releases.HasAllUpdates(ctx, n.Installation, n.Dependency, version)
		if err != nil {
			return nil, err
		}
		if !complete && !n.Force {
			if err := p.releases.UpdateReleaseInfo(ctx, n, gated.Tag); err != nil {
				return nil, err
			}
			logger.Info().Str("version", version).Msg("monorepo group incomplete, waiting for remaining members")
			p.collector.IncNotifications(metrics.OutcomeMonorepoPending)
			return nil, nil
		}
		if err := p.releases.DeleteReleaseInfo(ctx, n.Installation, n.Dependency, version); err != nil {
			return nil, err
		}
		dependencyNames = p.releases.ResolveGroup(n.Dependency)
		logger.Info().
			Bool("forced", n.Force && !complete).
			Strs("group", dependencyNames).
			Msg("monorepo group acting")
	}

	entries, err := p.resolver.Resolve(ctx, dependencyNames)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		logger.Info().Msg("no dependents found, nothing to schedule")
		p.collector.IncNotifications(metrics.OutcomeNoDependents)
		return nil, nil
	}
	p.observePopularity(ctx, logger, n.Dependency, len(entries))

	grouped := dependents.Partition(entries)

	resolvedAccounts, err := p.plans.Resolve(ctx, dependents.AccountIDs(grouped))
	if err != nil {
		return nil, err
	}

	in := jobs.Input{
		Tag:          gated.Tag,
		Version:      version,
		State:        gated.State,
		Installation: n.Installation,
		Accounts:     resolvedAccounts,
	}

	groupJobs, err := p.builder.BuildGroupJobs(ctx, in, grouped.Groups, grouped.GroupOrder)
	if err != nil {
		return nil, err
	}
	singleJobs := p.builder.BuildSingleJobs(in, grouped.Singles)

	p.collector.AddJobsEmitted("group", len(groupJobs))
	p.collector.AddJobsEmitted("single", countReal(singleJobs))
	p.collector.IncNotifications(metrics.OutcomeJobsEmitted)

	logger.Info().
		Str("version", version).
		Int("group_jobs", len(groupJobs)).
		Int("single_jobs", len(singleJobs)).
		Msg("jobs built")

	return append(groupJobs, singleJobs...), nil
}

// observePopularity emits the out-of-band popular-package signal. Purely
// observational: delivery failures are logged, never propagated.
func (p *Pipeline) observePopularity(ctx context.Context, logger zerolog.Logger, dependency string, count int) {
	if count <= p.popularThreshold {
		return
	}
	p.collector.IncPopularPackage()
	logger.Info().Int("dependents", count).Msg("popular package")
	if p.notifier == nil {
		return
	}
	signal := notify.Signal{Dependency: dependency, Dependents: count, Threshold: p.popularThreshold}
	if err := p.notifier.Notify(ctx, signal); err != nil {
		logger.Warn().Err(fmt.Errorf("popular-package signal: %w", err)).Msg("signal delivery failed")
	}
}

func countReal(list []jobs.Job) int {
	count := 0
	for _, job := range list {
		if !job.IsPlaceholder() {
			count++
		}
	}
	return count
}
