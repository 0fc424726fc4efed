package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/diillson/cloud-plan-estimator/internal/domain/entity"
)

// FanOutResult merges the partitions of one scope unit.
type FanOutResult struct {
	Counts   entity.ResourceCounts
	Clusters map[string][]string
	Degraded []string
}

// RegionFanOut counts all partitions of a scope unit concurrently, one task per
// partition.
type RegionFanOut struct {
	counter *ResourceCounter
}

func NewRegionFanOut(counter *ResourceCounter) *RegionFanOut {
	return &RegionFanOut{counter: counter}
}

func (f *RegionFanOut) Run(ctx context.Context, scope entity.ScopeUnit, partitions []string) FanOutResult {
	out := FanOutResult{
		Counts:   entity.ResourceCounts{},
		Clusters: make(map[string][]string),
	}
	for _, c := range f.counter.provider.PartitionCategories() {
		out.Counts.Add(c, 0)
	}

	var mu sync.Mutex
	err := ForEach(ctx, 0, partitions, func(ctx context.Context, partition string) error {
		res := f.counter.CountPartition(ctx, scope, partition)

		mu.Lock()
		defer mu.Unlock()
		out.Counts.Merge(res.Counts)
		if len(res.Clusters) > 0 {
			out.Clusters[partition] = res.Clusters
		}
		out.Degraded = append(out.Degraded, res.Degraded...)
		return nil
	})
	if err != nil {
		// only reachable through a panic inside a partition task
		zerolog.Ctx(ctx).Error().Err(err).Msg("partition task failed, its counts are zero")
		mu.Lock()
		out.Degraded = append(out.Degraded, "partition:panic")
		mu.Unlock()
	}

	sort.Strings(out.Degraded)
	return out
}
