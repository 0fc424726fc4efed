package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diillson/cloud-plan-estimator/internal/domain/entity"
	"github.com/diillson/cloud-plan-estimator/internal/domain/repository/repositorytest"
)

func ptr(f float64) *float64 { return &f }

func TestAdjustedCores(t *testing.T) {
	tests := []struct {
		name   string
		sample entity.ScalingGroupSample
		want   string
	}{
		{
			name:   "scaled down to the average",
			sample: entity.ScalingGroupSample{CoresPerInstance: []int{4, 4}, CurrentInstanceCount: 2, AverageInstanceCount: ptr(1)},
			want:   "4",
		},
		{
			name:   "scaled up to the average",
			sample: entity.ScalingGroupSample{CoresPerInstance: []int{2, 2}, CurrentInstanceCount: 2, AverageInstanceCount: ptr(3)},
			want:   "6",
		},
		{
			name:   "no samples keeps raw cores",
			sample: entity.ScalingGroupSample{CoresPerInstance: []int{4, 8}, CurrentInstanceCount: 2},
			want:   "12",
		},
		{
			name:   "zero average keeps raw cores",
			sample: entity.ScalingGroupSample{CoresPerInstance: []int{4}, CurrentInstanceCount: 1, AverageInstanceCount: ptr(0)},
			want:   "4",
		},
		{
			name:   "zero current never divides",
			sample: entity.ScalingGroupSample{CoresPerInstance: []int{4}, CurrentInstanceCount: 0, AverageInstanceCount: ptr(2)},
			want:   "4",
		},
		{
			name:   "negative cores ignored",
			sample: entity.ScalingGroupSample{CoresPerInstance: []int{-2, 2}, CurrentInstanceCount: 2},
			want:   "2",
		},
		{
			name:   "empty group",
			sample: entity.ScalingGroupSample{},
			want:   "0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AdjustedCores(tt.sample)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
			assert.False(t, got.IsNegative())
		})
	}
}

func TestAverageSamples(t *testing.T) {
	assert.Nil(t, AverageSamples(nil))

	avg := AverageSamples([]entity.MetricSample{{Value: 1}, {Value: 2}, {Value: 3}})
	require.NotNil(t, avg)
	assert.InDelta(t, 2.0, *avg, 1e-9)
}

// nodeGroupProvider has one cluster with one node group of two 4-core
// instances whose 30 day average is one instance.
func nodeGroupProvider() *repositorytest.FakeProvider {
	p := repositorytest.NewFakeProvider()
	p.NodeGroups["cluster-a"] = []entity.NodeGroup{{Name: "ng-1", ClusterID: "cluster-a", ScalingGroupIDs: []string{"asg-1"}}}
	p.Groups["asg-1"] = entity.ScalingGroup{ID: "asg-1", CurrentInstanceCount: 2, InstanceTypes: []string{"m5.xlarge", "m5.xlarge"}}
	p.Cores["m5.xlarge"] = 4
	p.Series["asg-1"] = []entity.MetricSample{{Value: 1}, {Value: 1}, {Value: 1}}
	return p
}

func quickRetry(attempts int) *RetryPolicy {
	p := NewRetryPolicy(attempts, time.Millisecond, nil)
	p.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return p
}

func TestCoreEstimator_ScalesByWindowAverage(t *testing.T) {
	p := nodeGroupProvider()
	est := NewCoreEstimator(p, quickRetry(3), quickRetry(3), 30)
	cache := NewCoreCache()

	got, degraded := est.Estimate(context.Background(), entity.ScopeUnit{ID: "111"}, map[string][]string{"us-east-1": {"cluster-a"}}, cache)

	assert.True(t, got.Equal(decimal.NewFromInt(4)), "got %s", got)
	assert.Empty(t, degraded)
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, 1, p.Calls("cores/m5.xlarge"), "cores must be resolved once per type")
}

func TestCoreEstimator_MetricWindow(t *testing.T) {
	p := nodeGroupProvider()
	est := NewCoreEstimator(p, quickRetry(3), quickRetry(3), 30)
	fixed := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)
	est.now = func() time.Time { return fixed }

	var seen entity.MetricQuery
	rec := &queryRecorder{FakeProvider: p, seen: &seen}
	est.provider = rec

	est.Estimate(context.Background(), entity.ScopeUnit{ID: "111"}, map[string][]string{"us-east-1": {"cluster-a"}}, NewCoreCache())

	assert.Equal(t, "asg-1", seen.GroupID)
	assert.Equal(t, fixed, seen.End)
	assert.Equal(t, fixed.AddDate(0, 0, -30), seen.Start)
	assert.Equal(t, 24*time.Hour, seen.Period)
}

type queryRecorder struct {
	*repositorytest.FakeProvider
	seen *entity.MetricQuery
}

func (q *queryRecorder) QueryTimeSeries(ctx context.Context, scope entity.ScopeUnit, partition string, query entity.MetricQuery) ([]entity.MetricSample, error) {
	*q.seen = query
	return q.FakeProvider.QueryTimeSeries(ctx, scope, partition, query)
}

func TestCoreEstimator_MetricErrorPolicies(t *testing.T) {
	transient := errors.New("metrics endpoint timeout")

	t.Run("retry then fallback recovers", func(t *testing.T) {
		p := nodeGroupProvider()
		p.FailNext("series/asg-1", transient, transient)
		est := NewCoreEstimator(p, quickRetry(3), quickRetry(3), 30)

		got, _ := est.Estimate(context.Background(), entity.ScopeUnit{ID: "111"}, map[string][]string{"r": {"cluster-a"}}, NewCoreCache())

		assert.True(t, got.Equal(decimal.NewFromInt(4)), "got %s", got)
		assert.Equal(t, 3, p.Calls("series/asg-1"))
	})

	t.Run("retry then fallback exhausted uses raw cores", func(t *testing.T) {
		p := nodeGroupProvider()
		p.FailNext("series/asg-1", transient, transient, transient)
		est := NewCoreEstimator(p, quickRetry(3), quickRetry(3), 30)

		got, _ := est.Estimate(context.Background(), entity.ScopeUnit{ID: "111"}, map[string][]string{"r": {"cluster-a"}}, NewCoreCache())

		assert.True(t, got.Equal(decimal.NewFromInt(8)), "got %s", got)
	})

	t.Run("fallback makes one attempt", func(t *testing.T) {
		p := nodeGroupProvider()
		p.FailNext("series/asg-1", transient)
		est := NewCoreEstimator(p, quickRetry(3), quickRetry(3).WithAttempts(1), 30)

		got, degraded := est.Estimate(context.Background(), entity.ScopeUnit{ID: "111"}, map[string][]string{"r": {"cluster-a"}}, NewCoreCache())

		assert.True(t, got.Equal(decimal.NewFromInt(8)), "got %s", got)
		assert.Equal(t, 1, p.Calls("series/asg-1"))
		assert.Empty(t, degraded, "a metric failure is not a degradation")
	})
}

func TestCoreEstimator_EmptyGroupSkipsMetricQuery(t *testing.T) {
	p := nodeGroupProvider()
	p.Groups["asg-1"] = entity.ScalingGroup{ID: "asg-1"}
	est := NewCoreEstimator(p, quickRetry(3), quickRetry(3), 30)

	got, degraded := est.Estimate(context.Background(), entity.ScopeUnit{ID: "111"}, map[string][]string{"r": {"cluster-a"}}, NewCoreCache())

	assert.True(t, got.IsZero())
	assert.Empty(t, degraded)
	assert.Equal(t, 0, p.Calls("series/asg-1"))
}

func TestCoreEstimator_UnknownInstanceTypeCountsZero(t *testing.T) {
	p := nodeGroupProvider()
	p.Groups["asg-1"] = entity.ScalingGroup{ID: "asg-1", CurrentInstanceCount: 2, InstanceTypes: []string{"m5.xlarge", "x9.mystery"}}
	p.Series["asg-1"] = nil
	est := NewCoreEstimator(p, quickRetry(3), quickRetry(3), 30)

	got, _ := est.Estimate(context.Background(), entity.ScopeUnit{ID: "111"}, map[string][]string{"r": {"cluster-a"}}, NewCoreCache())

	assert.True(t, got.Equal(decimal.NewFromInt(4)), "got %s", got)
}

func TestCoreEstimator_NodeGroupFailureDegradesCluster(t *testing.T) {
	p := nodeGroupProvider()
	p.NodeGroups["cluster-b"] = []entity.NodeGroup{{Name: "ng-2", ClusterID: "cluster-b", ScalingGroupIDs: []string{"asg-1"}}}
	p.FailNext("nodegroups/cluster-a", entity.ErrPermissionDenied)
	est := NewCoreEstimator(p, quickRetry(3), quickRetry(3), 30)

	got, degraded := est.Estimate(context.Background(), entity.ScopeUnit{ID: "111"}, map[string][]string{"r": {"cluster-a", "cluster-b"}}, NewCoreCache())

	assert.True(t, got.Equal(decimal.NewFromInt(4)), "got %s", got)
	assert.Equal(t, []string{"r/nodegroups/cluster-a:permission_denied"}, degraded)
}

func TestCoreCache_DoesNotCacheFailures(t *testing.T) {
	c := NewCoreCache()
	calls := 0
	resolve := func(ctx context.Context, it string) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("transient")
		}
		return 8, nil
	}

	_, err := c.Resolve(context.Background(), "n2-standard-8", resolve)
	require.Error(t, err)

	n, err := c.Resolve(context.Background(), "n2-standard-8", resolve)
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	n, err = c.Resolve(context.Background(), "n2-standard-8", resolve)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, 2, calls)
}

type panickyNodeGroups struct {
	*repositorytest.FakeProvider
	cluster string
}

func (p *panickyNodeGroups) ListNodeGroups(ctx context.Context, scope entity.ScopeUnit, partition, clusterID string) ([]entity.NodeGroup, error) {
	if clusterID == p.cluster {
		panic("nil node group response")
	}
	return p.FakeProvider.ListNodeGroups(ctx, scope, partition, clusterID)
}

func TestCoreEstimator_ClusterPanicIsLabelled(t *testing.T) {
	p := &panickyNodeGroups{FakeProvider: nodeGroupProvider(), cluster: "cluster-b"}
	est := NewCoreEstimator(p, quickRetry(3), quickRetry(3), 30)

	got, degraded := est.Estimate(context.Background(), entity.ScopeUnit{ID: "111"}, map[string][]string{"r": {"cluster-a", "cluster-b"}}, NewCoreCache())

	assert.True(t, got.Equal(decimal.NewFromInt(4)), "got %s", got)
	assert.Equal(t, []string{"cores:panic"}, degraded)
}
