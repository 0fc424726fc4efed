package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/diillson/cloud-plan-estimator/internal/domain/entity"
	"github.com/diillson/cloud-plan-estimator/internal/domain/repository"
	"github.com/diillson/cloud-plan-estimator/internal/shared/types"
)

// Engine ties the inventory pieces together for one provider.
type Engine struct {
	provider    repository.ProviderRepository
	concurrency int
	regions     []string
	retry       *RetryPolicy
	counter     *ResourceCounter
	fanout      *RegionFanOut
	estimator   *CoreEstimator
}

// New builds an engine from the run configuration.
func New(provider repository.ProviderRepository, cfg types.RunConfig) *Engine {
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	retry := NewRetryPolicy(cfg.RetryAttempts, cfg.RetryBaseDelay, limiter)
	metricRetry := retry
	if cfg.MetricErrorPolicy == types.MetricPolicyFallback {
		metricRetry = retry.WithAttempts(1)
	}

	counter := NewResourceCounter(provider, retry)
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = types.DefaultConcurrency
	}

	return &Engine{
		provider:    provider,
		concurrency: concurrency,
		regions:     cfg.Regions,
		retry:       retry,
		counter:     counter,
		fanout:      NewRegionFanOut(counter),
		estimator:   NewCoreEstimator(provider, retry, metricRetry, cfg.MetricWindowDays),
	}
}

// Run processes every scope unit with at most the configured number in
// flight. onDone is called once per scope unit, from the worker goroutine,
// as soon as that unit finishes.
func (e *Engine) Run(ctx context.Context, scopes []entity.ScopeUnit, onDone func(entity.ScopeResult)) {
	err := ForEach(ctx, e.concurrency, scopes, func(ctx context.Context, scope entity.ScopeUnit) error {
		res := e.ProcessScope(ctx, scope)
		if onDone != nil {
			onDone(res)
		}
		return nil
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("scope unit task failed")
	}
}

// ProcessScope authorizes, counts and estimates one scope unit. It never
// returns an error: failures are reported on the result.
func (e *Engine) ProcessScope(ctx context.Context, scope entity.ScopeUnit) entity.ScopeResult {
	started := time.Now()
	logger := zerolog.Ctx(ctx).With().
		Str("environment", string(e.provider.EnvironmentType())).
		Str("scope", scope.ID).
		Logger()
	ctx = logger.WithContext(ctx)

	result := entity.ScopeResult{
		Scope:           scope,
		EnvironmentType: e.provider.EnvironmentType(),
		Counts:          entity.ResourceCounts{},
	}

	authorized, err := Retry(ctx, e.retry, func(ctx context.Context) (entity.ScopeUnit, error) {
		return e.provider.Authorize(ctx, scope)
	})
	if err != nil {
		result.Elapsed = time.Since(started)
		result.Error = err.Error()
		logger.Warn().Err(err).Dur("elapsed", result.Elapsed).Msg("scope unit skipped")
		return result
	}
	scope = authorized
	result.Scope = authorized

	partitions, degraded := e.partitions(ctx, scope)
	result.Degraded = append(result.Degraded, degraded...)
	result.Partitions = len(partitions)

	fan := e.fanout.Run(ctx, scope, partitions)
	result.Counts.Merge(fan.Counts)
	result.Degraded = append(result.Degraded, fan.Degraded...)

	global := e.counter.CountGlobal(ctx, scope)
	result.Counts.Merge(global.Counts)
	result.Degraded = append(result.Degraded, global.Degraded...)
	if len(global.Clusters) > 0 {
		fan.Clusters[""] = append(fan.Clusters[""], global.Clusters...)
	}

	cores := NewCoreCache()
	estimate, coreDegraded := e.estimator.Estimate(ctx, scope, fan.Clusters, cores)
	result.CoreEstimate = estimate
	result.Degraded = append(result.Degraded, coreDegraded...)
	sort.Strings(result.Degraded)

	result.Success = true
	result.Elapsed = time.Since(started)

	event := logger.Info().
		Dur("elapsed", result.Elapsed).
		Int("partitions", result.Partitions).
		Str("cores", estimate.StringFixed(2)).
		Int("instance_types", cores.Len()).
		Int("degraded", len(result.Degraded))
	for _, c := range result.Counts.Categories() {
		event = event.Int(string(c), result.Counts.Get(c))
	}
	event.Msg("scope unit processed")

	return result
}

// ListScopeUnits lists the provider's scope units through the retry policy.
func (e *Engine) ListScopeUnits(ctx context.Context) ([]entity.ScopeUnit, error) {
	return Retry(ctx, e.retry, e.provider.ListScopeUnits)
}

// partitions lists the scope's partitions. Configured regions narrow the list
// for regional providers and are ignored by the others; when listing fails
// they are used as given.
func (e *Engine) partitions(ctx context.Context, scope entity.ScopeUnit) ([]string, []string) {
	logger := zerolog.Ctx(ctx)
	regional := e.provider.RegionalPartitions()
	if len(e.regions) > 0 && !regional {
		logger.Warn().Strs("regions", e.regions).Msg("provider partitions are not regions, configured regions ignored")
	}

	partitions, err := Retry(ctx, e.retry, func(ctx context.Context) ([]string, error) {
		return e.provider.ListPartitions(ctx, scope)
	})
	if err != nil {
		kind := Classify(err)
		if regional && len(e.regions) > 0 && kind != KindCanceled {
			logger.Warn().Err(err).Str("kind", kind.String()).Msg("partitions unavailable, using configured regions")
			return e.regions, nil
		}
		logger.Warn().Err(err).Str("kind", kind.String()).Msg("partitions unavailable, only global categories counted")
		return nil, []string{fmt.Sprintf("partitions:%s", kind)}
	}
	if !regional || len(e.regions) == 0 {
		return partitions, nil
	}

	enabled := make(map[string]bool, len(partitions))
	for _, p := range partitions {
		enabled[p] = true
	}
	var selected []string
	for _, r := range e.regions {
		if !enabled[r] {
			logger.Warn().Str("partition", r).Msg("configured region not enabled for scope unit, skipped")
			continue
		}
		selected = append(selected, r)
	}
	return selected, nil
}
