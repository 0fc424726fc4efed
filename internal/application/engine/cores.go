package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/diillson/cloud-plan-estimator/internal/domain/entity"
	"github.com/diillson/cloud-plan-estimator/internal/domain/repository"
)

const metricPeriod = 24 * time.Hour

// AdjustedCores is the time weighted vCPU contribution of one scaling group.
// When the window average is known and both sizes are positive every
// instance's cores are scaled by average/current, otherwise the raw cores are
// summed. Negative inputs count as zero.
func AdjustedCores(sample entity.ScalingGroupSample) decimal.Decimal {
	raw := decimal.Zero
	for _, cores := range sample.CoresPerInstance {
		if cores > 0 {
			raw = raw.Add(decimal.NewFromInt(int64(cores)))
		}
	}

	avg := sample.AverageInstanceCount
	if avg == nil || *avg <= 0 || sample.CurrentInstanceCount <= 0 {
		return raw
	}

	ratio := decimal.NewFromFloat(*avg).Div(decimal.NewFromInt(int64(sample.CurrentInstanceCount)))
	total := decimal.Zero
	for _, cores := range sample.CoresPerInstance {
		if cores > 0 {
			total = total.Add(decimal.NewFromInt(int64(cores)).Mul(ratio))
		}
	}
	return total
}

// AverageSamples is the mean of the sample values, nil when there are none.
func AverageSamples(samples []entity.MetricSample) *float64 {
	if len(samples) == 0 {
		return nil
	}
	sum := 0.0
	for _, s := range samples {
		sum += s.Value
	}
	avg := sum / float64(len(samples))
	return &avg
}

// CoreEstimator computes a scope unit's container CoreEstimate from the
// scaling groups behind its clusters' node groups.
type CoreEstimator struct {
	provider    repository.ProviderRepository
	retry       *RetryPolicy
	metricRetry *RetryPolicy
	windowDays  int
	now         func() time.Time
}

// NewCoreEstimator builds an estimator. metricRetry governs time-series
// queries; a single attempt policy means "fall back on the first error".
func NewCoreEstimator(provider repository.ProviderRepository, retry, metricRetry *RetryPolicy, windowDays int) *CoreEstimator {
	if windowDays <= 0 {
		windowDays = 30
	}
	return &CoreEstimator{
		provider:    provider,
		retry:       retry,
		metricRetry: metricRetry,
		windowDays:  windowDays,
		now:         time.Now,
	}
}

// Estimate walks every cluster of every partition. The sum is exact, so the
// result does not depend on the order groups finish in.
func (e *CoreEstimator) Estimate(ctx context.Context, scope entity.ScopeUnit, clusters map[string][]string, cores *CoreCache) (decimal.Decimal, []string) {
	type job struct {
		partition string
		cluster   string
	}
	var jobs []job
	for partition, ids := range clusters {
		for _, id := range ids {
			jobs = append(jobs, job{partition: partition, cluster: id})
		}
	}

	var (
		mu       sync.Mutex
		total    = decimal.Zero
		degraded []string
	)
	err := ForEach(ctx, 0, jobs, func(ctx context.Context, j job) error {
		sum, bad := e.estimateCluster(ctx, scope, j.partition, j.cluster, cores)
		mu.Lock()
		total = total.Add(sum)
		degraded = append(degraded, bad...)
		mu.Unlock()
		return nil
	})
	if err != nil {
		// only reachable through a panic inside a cluster task
		zerolog.Ctx(ctx).Error().Err(err).Msg("cluster task failed, its cores are zero")
		mu.Lock()
		degraded = append(degraded, "cores:panic")
		mu.Unlock()
	}
	return total, degraded
}

func (e *CoreEstimator) estimateCluster(ctx context.Context, scope entity.ScopeUnit, partition, clusterID string, cores *CoreCache) (decimal.Decimal, []string) {
	logger := zerolog.Ctx(ctx).With().Str("partition", partition).Str("cluster", clusterID).Logger()

	groups, err := Retry(ctx, e.retry, func(ctx context.Context) ([]entity.NodeGroup, error) {
		return e.provider.ListNodeGroups(ctx, scope, partition, clusterID)
	})
	if err != nil {
		kind := Classify(err)
		logger.Warn().Err(err).Str("kind", kind.String()).Msg("node groups unavailable, cluster contributes 0 cores")
		return decimal.Zero, []string{degradedLabel(partition, "nodegroups/"+clusterID, kind)}
	}

	total := decimal.Zero
	var degraded []string
	for _, ng := range groups {
		for _, groupID := range ng.ScalingGroupIDs {
			sum, err := e.estimateGroup(ctx, scope, partition, groupID, cores)
			if err != nil {
				kind := Classify(err)
				logger.Warn().Err(err).Str("node_group", ng.Name).Str("scaling_group", groupID).
					Str("kind", kind.String()).Msg("scaling group skipped")
				degraded = append(degraded, degradedLabel(partition, "scalinggroup/"+groupID, kind))
				continue
			}
			total = total.Add(sum)
		}
	}
	return total, degraded
}

func (e *CoreEstimator) estimateGroup(ctx context.Context, scope entity.ScopeUnit, partition, groupID string, cores *CoreCache) (decimal.Decimal, error) {
	group, err := Retry(ctx, e.retry, func(ctx context.Context) (entity.ScalingGroup, error) {
		return e.provider.DescribeScalingGroup(ctx, scope, partition, groupID)
	})
	if err != nil {
		return decimal.Zero, err
	}
	if group.CurrentInstanceCount <= 0 {
		return decimal.Zero, nil
	}

	sample := entity.ScalingGroupSample{
		CurrentInstanceCount: group.CurrentInstanceCount,
		WindowDays:           e.windowDays,
	}
	for _, instanceType := range group.InstanceTypes {
		n, err := cores.Resolve(ctx, instanceType, func(ctx context.Context, t string) (int, error) {
			return Retry(ctx, e.retry, func(ctx context.Context) (int, error) {
				return e.provider.ResolveCoresForInstanceType(ctx, scope, partition, t)
			})
		})
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("instance_type", instanceType).Msg("cores unknown, instance counted as 0")
			n = 0
		}
		sample.CoresPerInstance = append(sample.CoresPerInstance, n)
	}

	sample.AverageInstanceCount = e.averageInstanceCount(ctx, scope, partition, groupID)
	return AdjustedCores(sample), nil
}

// averageInstanceCount never fails: an erroring query is the same as an
// empty one.
func (e *CoreEstimator) averageInstanceCount(ctx context.Context, scope entity.ScopeUnit, partition, groupID string) *float64 {
	end := e.now().UTC()
	query := entity.MetricQuery{
		GroupID: groupID,
		Start:   end.AddDate(0, 0, -e.windowDays),
		End:     end,
		Period:  metricPeriod,
	}
	samples, err := Retry(ctx, e.metricRetry, func(ctx context.Context) ([]entity.MetricSample, error) {
		return e.provider.QueryTimeSeries(ctx, scope, partition, query)
	})
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("scaling_group", groupID).Msg("no instance count samples, using unscaled cores")
		return nil
	}
	return AverageSamples(samples)
}
