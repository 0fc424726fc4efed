package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diillson/cloud-plan-estimator/internal/domain/entity"
	"github.com/diillson/cloud-plan-estimator/internal/domain/repository/repositorytest"
	"github.com/diillson/cloud-plan-estimator/internal/shared/types"
)

func testConfig() types.RunConfig {
	return types.RunConfig{
		Environment:       entity.EnvironmentAWS,
		Concurrency:       4,
		RetryAttempts:     3,
		RetryBaseDelay:    0,
		MetricWindowDays:  30,
		MetricErrorPolicy: types.MetricPolicyRetryThenFallback,
	}
}

// twoRegionProvider: 3 running instances in us-east-1 and 1 in eu-west-1.
func twoRegionProvider() *repositorytest.FakeProvider {
	p := repositorytest.NewFakeProvider()
	p.Scopes = []entity.ScopeUnit{{ID: "111111111111", DisplayName: "prod"}}
	p.Partitions = []string{"us-east-1", "eu-west-1"}
	p.SetCount("us-east-1", entity.CategoryCompute, 3)
	p.SetCount("eu-west-1", entity.CategoryCompute, 1)
	p.SetCount("us-east-1", entity.CategoryManagedDB, 2)
	p.SetCount("eu-west-1", entity.CategoryComputeStopped, 1)
	p.SetCount("", entity.CategoryObjectStorage, 5)
	return p
}

func TestProcessScope_SumsAcrossRegions(t *testing.T) {
	p := twoRegionProvider()
	e := New(p, testConfig())

	res := e.ProcessScope(context.Background(), p.Scopes[0])

	require.True(t, res.Success)
	assert.Equal(t, 2, res.Partitions)
	assert.Equal(t, 4, res.Counts.Get(entity.CategoryCompute))
	assert.Equal(t, 1, res.Counts.Get(entity.CategoryComputeStopped))
	assert.Equal(t, 2, res.Counts.Get(entity.CategoryManagedDB))
	assert.Equal(t, 5, res.Counts.Get(entity.CategoryObjectStorage))
	assert.Equal(t, 0, res.Counts.Get(entity.CategoryServerless))
	assert.Empty(t, res.Degraded)
	assert.Equal(t, "token-111111111111", res.Scope.Credential)
	assert.True(t, res.CoreEstimate.IsZero())

	// the global category is counted once, not once per region
	assert.Equal(t, 1, p.Calls("count//objectStorage"))
}

func TestProcessScope_TransientErrorRecovered(t *testing.T) {
	p := twoRegionProvider()
	transient := errors.New("request limit exceeded")
	p.FailNext("count/us-east-1/compute", transient, transient)

	res := New(p, testConfig()).ProcessScope(context.Background(), p.Scopes[0])

	require.True(t, res.Success)
	assert.Equal(t, 4, res.Counts.Get(entity.CategoryCompute))
	assert.Equal(t, 3, p.Calls("count/us-east-1/compute"))
	assert.Empty(t, res.Degraded)
}

func TestProcessScope_PermissionDeniedDegradesToZero(t *testing.T) {
	p := twoRegionProvider()
	p.FailNext("count/us-east-1/managedDb", fmt.Errorf("rds: %w", entity.ErrPermissionDenied))

	res := New(p, testConfig()).ProcessScope(context.Background(), p.Scopes[0])

	require.True(t, res.Success)
	assert.Equal(t, 0, res.Counts.Get(entity.CategoryManagedDB))
	assert.Equal(t, 4, res.Counts.Get(entity.CategoryCompute))
	assert.Equal(t, 1, p.Calls("count/us-east-1/managedDb"), "permission errors are not retried")
	assert.Equal(t, []string{"us-east-1/managedDb:permission_denied"}, res.Degraded)
}

func TestProcessScope_ExhaustedRetriesDegrade(t *testing.T) {
	p := twoRegionProvider()
	transient := errors.New("connection reset")
	p.FailNext("count/eu-west-1/compute", transient, transient, transient)

	res := New(p, testConfig()).ProcessScope(context.Background(), p.Scopes[0])

	require.True(t, res.Success)
	assert.Equal(t, 3, res.Counts.Get(entity.CategoryCompute))
	assert.Equal(t, []string{"eu-west-1/compute:transient"}, res.Degraded)
}

func TestProcessScope_PartitionListingFailureKeepsGlobalCounts(t *testing.T) {
	p := twoRegionProvider()
	p.FailNext("partitions/111111111111", fmt.Errorf("ec2: %w", entity.ErrPermissionDenied))

	res := New(p, testConfig()).ProcessScope(context.Background(), p.Scopes[0])

	require.True(t, res.Success)
	assert.Equal(t, 0, res.Partitions)
	assert.Equal(t, 0, res.Counts.Get(entity.CategoryCompute))
	assert.Equal(t, 5, res.Counts.Get(entity.CategoryObjectStorage))
	assert.Contains(t, res.Degraded, "partitions:permission_denied")
}

func TestProcessScope_ConfiguredRegionsNarrowDiscovery(t *testing.T) {
	p := twoRegionProvider()
	cfg := testConfig()
	cfg.Regions = []string{"eu-west-1", "ap-south-1"}

	res := New(p, cfg).ProcessScope(context.Background(), p.Scopes[0])

	assert.Equal(t, 1, res.Partitions)
	assert.Equal(t, 1, res.Counts.Get(entity.CategoryCompute))
	assert.Equal(t, 1, p.Calls("partitions/111111111111"))
	assert.Equal(t, 0, p.Calls("count/us-east-1/compute"))
	assert.Equal(t, 0, p.Calls("count/ap-south-1/compute"), "regions the scope does not list are skipped")
}

func TestProcessScope_ConfiguredRegionsWhenListingFails(t *testing.T) {
	p := twoRegionProvider()
	p.FailNext("partitions/111111111111", fmt.Errorf("ec2: %w", entity.ErrPermissionDenied))
	cfg := testConfig()
	cfg.Regions = []string{"us-east-1"}

	res := New(p, cfg).ProcessScope(context.Background(), p.Scopes[0])

	assert.Equal(t, 3, res.Counts.Get(entity.CategoryCompute))
	assert.Empty(t, res.Degraded)
}

// subscriptionProvider answers every list subscription wide under a single
// non-regional partition, like the Azure adapter.
func subscriptionProvider() *repositorytest.FakeProvider {
	p := repositorytest.NewFakeProvider()
	p.Env = entity.EnvironmentAzure
	p.NonRegional = true
	p.Scopes = []entity.ScopeUnit{{ID: "sub-1"}}
	p.Partitions = []string{"global"}
	p.GlobalCats = nil
	p.SetCount("global", entity.CategoryCompute, 3)
	p.SetCount("global", entity.CategoryManagedDB, 2)
	p.Clusters["global"] = []string{"aks-1"}
	p.NodeGroups["aks-1"] = []entity.NodeGroup{{Name: "pool1", ClusterID: "aks-1", ScalingGroupIDs: []string{"aks-1/agentPools/pool1"}}}
	p.Groups["aks-1/agentPools/pool1"] = entity.ScalingGroup{ID: "aks-1/agentPools/pool1", CurrentInstanceCount: 1, InstanceTypes: []string{"Standard_D4s_v3"}}
	p.Cores["Standard_D4s_v3"] = 4
	return p
}

func TestProcessScope_NonRegionalProviderIgnoresConfiguredRegions(t *testing.T) {
	p := subscriptionProvider()
	cfg := testConfig()
	cfg.Environment = entity.EnvironmentAzure
	cfg.Regions = []string{"eastus", "westus"}

	res := New(p, cfg).ProcessScope(context.Background(), p.Scopes[0])

	require.True(t, res.Success)
	assert.Equal(t, 1, res.Partitions)
	assert.Equal(t, 3, res.Counts.Get(entity.CategoryCompute))
	assert.Equal(t, 2, res.Counts.Get(entity.CategoryManagedDB))
	assert.Equal(t, 1, res.Counts.Get(entity.CategoryManagedContainerCluster))
	assert.True(t, res.CoreEstimate.Equal(decimal.NewFromInt(4)), "got %s", res.CoreEstimate)
	assert.Equal(t, 1, p.Calls("count/global/compute"))
	assert.Equal(t, 0, p.Calls("count/eastus/compute"))
	assert.Equal(t, 1, p.Calls("nodegroups/aks-1"))
}

func TestProcessScope_AuthorizeRetriesTransientErrors(t *testing.T) {
	p := twoRegionProvider()
	throttled := errors.New("sts: rate exceeded")
	p.FailNext("authorize/111111111111", throttled, throttled)

	res := New(p, testConfig()).ProcessScope(context.Background(), p.Scopes[0])

	require.True(t, res.Success)
	assert.Equal(t, 3, p.Calls("authorize/111111111111"))
	assert.Equal(t, 4, res.Counts.Get(entity.CategoryCompute))
}

func TestProcessScope_AuthorizeExhaustedSkipsScope(t *testing.T) {
	p := twoRegionProvider()
	timeout := errors.New("dial tcp: i/o timeout")
	p.FailNext("authorize/111111111111", timeout, timeout, timeout)

	res := New(p, testConfig()).ProcessScope(context.Background(), p.Scopes[0])

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "i/o timeout")
	assert.Equal(t, 3, p.Calls("authorize/111111111111"))
	assert.Equal(t, 0, p.Calls("partitions/111111111111"))
}

func TestEngine_ListScopeUnitsRetries(t *testing.T) {
	p := twoRegionProvider()
	p.FailNext("scopes", errors.New("organizations: throttled"))

	scopes, err := New(p, testConfig()).ListScopeUnits(context.Background())

	require.NoError(t, err)
	assert.Equal(t, p.Scopes, scopes)
	assert.Equal(t, 2, p.Calls("scopes"))
}

// threePartitionProvider spreads counts and one cluster per partition over
// a, b and c.
func threePartitionProvider(order []string) *repositorytest.FakeProvider {
	p := repositorytest.NewFakeProvider()
	p.Scopes = []entity.ScopeUnit{{ID: "111"}}
	p.Partitions = order
	for i, part := range []string{"a", "b", "c"} {
		p.SetCount(part, entity.CategoryCompute, i+1)
		p.SetCount(part, entity.CategoryServerless, 10*(i+1))
		cluster := "eks-" + part
		group := "asg-" + part
		p.Clusters[part] = []string{cluster}
		p.NodeGroups[cluster] = []entity.NodeGroup{{Name: "ng", ClusterID: cluster, ScalingGroupIDs: []string{group}}}
		p.Groups[group] = entity.ScalingGroup{ID: group, CurrentInstanceCount: 2, InstanceTypes: []string{"c5.large", "c5.large"}}
		p.Series[group] = []entity.MetricSample{{Value: float64(i + 1)}}
	}
	p.Cores["c5.large"] = 2
	return p
}

func TestProcessScope_PartitionOrderDoesNotMatter(t *testing.T) {
	orders := [][]string{
		{"a", "b", "c"}, {"a", "c", "b"}, {"b", "a", "c"},
		{"b", "c", "a"}, {"c", "a", "b"}, {"c", "b", "a"},
	}

	var first entity.ScopeResult
	for i, order := range orders {
		p := threePartitionProvider(order)
		res := New(p, testConfig()).ProcessScope(context.Background(), p.Scopes[0])
		require.True(t, res.Success)

		assert.Equal(t, 6, res.Counts.Get(entity.CategoryCompute), "order %v", order)
		assert.Equal(t, 60, res.Counts.Get(entity.CategoryServerless), "order %v", order)
		assert.Equal(t, 3, res.Counts.Get(entity.CategoryManagedContainerCluster), "order %v", order)
		// each group is 2 cores times its average: 2*(1+2+3)
		assert.True(t, res.CoreEstimate.Equal(decimal.NewFromInt(12)), "order %v: got %s", order, res.CoreEstimate)

		if i == 0 {
			first = res
			continue
		}
		assert.Equal(t, first.Counts, res.Counts, "order %v", order)
		assert.True(t, first.CoreEstimate.Equal(res.CoreEstimate), "order %v", order)
	}
}

func TestRegionFanOut_PartitionOrderDoesNotMatter(t *testing.T) {
	p := threePartitionProvider(nil)
	fan := NewRegionFanOut(NewResourceCounter(p, quickRetry(1)))

	want := fan.Run(context.Background(), p.Scopes[0], []string{"a", "b", "c"})
	for _, order := range [][]string{{"c", "b", "a"}, {"b", "c", "a"}} {
		got := fan.Run(context.Background(), p.Scopes[0], order)
		assert.Equal(t, want.Counts, got.Counts, "order %v", order)
		assert.Equal(t, want.Clusters, got.Clusters, "order %v", order)
	}
}

func TestResourceCounts_MergeOrderDoesNotMatter(t *testing.T) {
	parts := []entity.ResourceCounts{
		{entity.CategoryCompute: 1, entity.CategoryManagedDB: 4},
		{entity.CategoryCompute: 2},
		{entity.CategoryCompute: 3, entity.CategoryServerless: 7},
	}
	orders := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}

	for _, order := range orders {
		total := entity.ResourceCounts{}
		for _, i := range order {
			total.Merge(parts[i])
		}
		assert.Equal(t, 6, total.Get(entity.CategoryCompute), "order %v", order)
		assert.Equal(t, 4, total.Get(entity.CategoryManagedDB), "order %v", order)
		assert.Equal(t, 7, total.Get(entity.CategoryServerless), "order %v", order)
	}
}

func TestProcessScope_ContainerCores(t *testing.T) {
	p := twoRegionProvider()
	p.Clusters["us-east-1"] = []string{"cluster-a"}
	p.NodeGroups["cluster-a"] = []entity.NodeGroup{{Name: "ng-1", ClusterID: "cluster-a", ScalingGroupIDs: []string{"asg-1"}}}
	p.Groups["asg-1"] = entity.ScalingGroup{ID: "asg-1", CurrentInstanceCount: 2, InstanceTypes: []string{"m5.xlarge", "m5.xlarge"}}
	p.Cores["m5.xlarge"] = 4
	p.Series["asg-1"] = []entity.MetricSample{{Value: 1}}

	res := New(p, testConfig()).ProcessScope(context.Background(), p.Scopes[0])

	require.True(t, res.Success)
	assert.Equal(t, 1, res.Counts.Get(entity.CategoryManagedContainerCluster))
	assert.True(t, res.CoreEstimate.Equal(decimal.NewFromInt(4)), "got %s", res.CoreEstimate)
}

func TestRun_OneScopeUnavailableOthersComplete(t *testing.T) {
	p := twoRegionProvider()
	p.Scopes = []entity.ScopeUnit{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	p.FailNext("authorize/b", fmt.Errorf("assume role: %w", entity.ErrScopeUnavailable))

	var (
		mu      sync.Mutex
		results []entity.ScopeResult
	)
	New(p, testConfig()).Run(context.Background(), p.Scopes, func(r entity.ScopeResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})

	require.Len(t, results, 3)
	sort.Slice(results, func(i, j int) bool { return results[i].Scope.ID < results[j].Scope.ID })

	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "assume role")
	assert.Equal(t, 0, p.Calls("partitions/b"), "an unauthorized scope is never inventoried")
	assert.Equal(t, 1, p.Calls("authorize/b"), "scope unavailable is not retried")
	assert.True(t, results[2].Success)
	assert.Equal(t, 4, results[2].Counts.Get(entity.CategoryCompute))
}

func TestRun_ScopesRunConcurrently(t *testing.T) {
	p := twoRegionProvider()
	p.Scopes = []entity.ScopeUnit{{ID: "a"}, {ID: "b"}}

	release := make(chan struct{})
	arrived := make(chan string, 16)
	p.OnCount = func(scope entity.ScopeUnit, partition string, category entity.Category) {
		if partition == "" {
			arrived <- scope.ID
			<-release
		}
	}

	done := make(chan struct{})
	go func() {
		New(p, testConfig()).Run(context.Background(), p.Scopes, nil)
		close(done)
	}()

	seen := map[string]bool{}
	timeout := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case id := <-arrived:
			seen[id] = true
		case <-timeout:
			t.Fatal("scope units did not overlap")
		}
	}
	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish")
	}
}
