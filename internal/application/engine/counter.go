package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/diillson/cloud-plan-estimator/internal/domain/entity"
	"github.com/diillson/cloud-plan-estimator/internal/domain/repository"
)

// PartitionResult is what one partition (or the scope-global pass) yielded.
type PartitionResult struct {
	Partition string
	Counts    entity.ResourceCounts
	Clusters  []string
	Degraded  []string
}

// ResourceCounter counts every category of one partition. Each category is
// its own retried call; a failing category degrades to 0 and never aborts
// the others.
type ResourceCounter struct {
	provider repository.ProviderRepository
	retry    *RetryPolicy
}

func NewResourceCounter(provider repository.ProviderRepository, retry *RetryPolicy) *ResourceCounter {
	return &ResourceCounter{provider: provider, retry: retry}
}

// CountPartition counts the provider's partition categories in partition.
func (c *ResourceCounter) CountPartition(ctx context.Context, scope entity.ScopeUnit, partition string) PartitionResult {
	return c.count(ctx, scope, partition, c.provider.PartitionCategories())
}

// CountGlobal counts categories that are global to the scope unit, such as
// object storage buckets.
func (c *ResourceCounter) CountGlobal(ctx context.Context, scope entity.ScopeUnit) PartitionResult {
	return c.count(ctx, scope, "", c.provider.GlobalCategories())
}

func (c *ResourceCounter) count(ctx context.Context, scope entity.ScopeUnit, partition string, categories []entity.Category) PartitionResult {
	res := PartitionResult{Partition: partition, Counts: entity.ResourceCounts{}}
	var mu sync.Mutex

	err := ForEach(ctx, 0, categories, func(ctx context.Context, category entity.Category) error {
		logger := zerolog.Ctx(ctx).With().
			Str("partition", partition).
			Str("category", string(category)).
			Logger()

		var (
			n        int
			clusters []string
			err      error
		)
		if category == entity.CategoryManagedContainerCluster {
			clusters, err = Retry(ctx, c.retry, func(ctx context.Context) ([]string, error) {
				return c.provider.ListClusters(ctx, scope, partition)
			})
			n = len(clusters)
		} else {
			n, err = Retry(ctx, c.retry, func(ctx context.Context) (int, error) {
				return c.provider.CountResources(ctx, scope, partition, category)
			})
		}

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			kind := Classify(err)
			logger.Warn().Err(err).Str("kind", kind.String()).Msg("category count degraded to 0")
			res.Counts.Add(category, 0)
			res.Degraded = append(res.Degraded, degradedLabel(partition, string(category), kind))
			return nil
		}
		res.Counts.Add(category, n)
		res.Clusters = append(res.Clusters, clusters...)
		logger.Debug().Int("count", n).Msg("category counted")
		return nil
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("partition", partition).Msg("category task failed")
		res.Degraded = append(res.Degraded, degradedLabel(partition, "category", KindTransient))
	}
	return res
}

func degradedLabel(partition, what string, kind ErrorKind) string {
	if partition == "" {
		return fmt.Sprintf("%s:%s", what, kind)
	}
	return fmt.Sprintf("%s/%s:%s", partition, what, kind)
}
