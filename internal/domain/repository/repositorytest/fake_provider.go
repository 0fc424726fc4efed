// Package repositorytest provides an in-memory ProviderRepository for tests.
package repositorytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/diillson/cloud-plan-estimator/internal/domain/entity"
)

// FakeProvider serves canned inventory. Errors are injected per call key
// with FailNext; keys are:
//
//	scopes  authorize/<scope>  partitions/<scope>  count/<partition>/<category>
//	clusters/<partition>  nodegroups/<cluster>  group/<id>  cores/<type>
//	series/<group>
type FakeProvider struct {
	Env           entity.EnvironmentType
	Scopes        []entity.ScopeUnit
	ListScopesErr error
	Partitions    []string
	// NonRegional makes RegionalPartitions report false, as for Azure.
	NonRegional   bool
	PartitionCats []entity.Category
	GlobalCats    []entity.Category

	// Counts is keyed by partition; "" holds the global categories.
	Counts     map[string]map[entity.Category]int
	Clusters   map[string][]string
	NodeGroups map[string][]entity.NodeGroup
	Groups     map[string]entity.ScalingGroup
	Cores      map[string]int
	Series     map[string][]entity.MetricSample

	// OnCount, when set, runs inside CountResources before the lookup.
	OnCount func(scope entity.ScopeUnit, partition string, category entity.Category)

	mu       sync.Mutex
	failures map[string][]error
	calls    map[string]int
}

// NewFakeProvider returns an AWS flavoured fake with the usual categories.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		Env: entity.EnvironmentAWS,
		PartitionCats: []entity.Category{
			entity.CategoryCompute,
			entity.CategoryComputeStopped,
			entity.CategoryManagedDB,
			entity.CategoryManagedContainerCluster,
			entity.CategoryServerless,
		},
		GlobalCats: []entity.Category{entity.CategoryObjectStorage},
		Counts:     make(map[string]map[entity.Category]int),
		Clusters:   make(map[string][]string),
		NodeGroups: make(map[string][]entity.NodeGroup),
		Groups:     make(map[string]entity.ScalingGroup),
		Cores:      make(map[string]int),
		Series:     make(map[string][]entity.MetricSample),
	}
}

// FailNext queues errors returned by the next calls for key, in order.
func (f *FakeProvider) FailNext(key string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures == nil {
		f.failures = make(map[string][]error)
	}
	f.failures[key] = append(f.failures[key], errs...)
}

// Calls reports how many times key was invoked.
func (f *FakeProvider) Calls(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

// SetCount sets the count of category in partition.
func (f *FakeProvider) SetCount(partition string, category entity.Category, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Counts[partition] == nil {
		f.Counts[partition] = make(map[entity.Category]int)
	}
	f.Counts[partition][category] = n
}

func (f *FakeProvider) record(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[key]++
	if q := f.failures[key]; len(q) > 0 {
		f.failures[key] = q[1:]
		return q[0]
	}
	return nil
}

func (f *FakeProvider) EnvironmentType() entity.EnvironmentType { return f.Env }

func (f *FakeProvider) PartitionCategories() []entity.Category { return f.PartitionCats }

func (f *FakeProvider) GlobalCategories() []entity.Category { return f.GlobalCats }

func (f *FakeProvider) ListScopeUnits(ctx context.Context) ([]entity.ScopeUnit, error) {
	if f.ListScopesErr != nil {
		return nil, f.ListScopesErr
	}
	if err := f.record("scopes"); err != nil {
		return nil, err
	}
	return f.Scopes, nil
}

func (f *FakeProvider) Authorize(ctx context.Context, scope entity.ScopeUnit) (entity.ScopeUnit, error) {
	if err := f.record("authorize/" + scope.ID); err != nil {
		return scope, err
	}
	return scope.WithCredential("token-" + scope.ID), nil
}

func (f *FakeProvider) ListPartitions(ctx context.Context, scope entity.ScopeUnit) ([]string, error) {
	if err := f.record("partitions/" + scope.ID); err != nil {
		return nil, err
	}
	return f.Partitions, nil
}

func (f *FakeProvider) RegionalPartitions() bool { return !f.NonRegional }

func (f *FakeProvider) CountResources(ctx context.Context, scope entity.ScopeUnit, partition string, category entity.Category) (int, error) {
	if f.OnCount != nil {
		f.OnCount(scope, partition, category)
	}
	if err := f.record(fmt.Sprintf("count/%s/%s", partition, category)); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Counts[partition][category], nil
}

func (f *FakeProvider) ListClusters(ctx context.Context, scope entity.ScopeUnit, partition string) ([]string, error) {
	if err := f.record("clusters/" + partition); err != nil {
		return nil, err
	}
	return f.Clusters[partition], nil
}

func (f *FakeProvider) ListNodeGroups(ctx context.Context, scope entity.ScopeUnit, partition, clusterID string) ([]entity.NodeGroup, error) {
	if err := f.record("nodegroups/" + clusterID); err != nil {
		return nil, err
	}
	return f.NodeGroups[clusterID], nil
}

func (f *FakeProvider) DescribeScalingGroup(ctx context.Context, scope entity.ScopeUnit, partition, groupID string) (entity.ScalingGroup, error) {
	if err := f.record("group/" + groupID); err != nil {
		return entity.ScalingGroup{}, err
	}
	g, ok := f.Groups[groupID]
	if !ok {
		return entity.ScalingGroup{}, fmt.Errorf("%w: group %s", entity.ErrNotSupported, groupID)
	}
	return g, nil
}

func (f *FakeProvider) ResolveCoresForInstanceType(ctx context.Context, scope entity.ScopeUnit, partition, instanceType string) (int, error) {
	if err := f.record("cores/" + instanceType); err != nil {
		return 0, err
	}
	n, ok := f.Cores[instanceType]
	if !ok {
		return 0, fmt.Errorf("%w: instance type %s", entity.ErrNotSupported, instanceType)
	}
	return n, nil
}

func (f *FakeProvider) QueryTimeSeries(ctx context.Context, scope entity.ScopeUnit, partition string, query entity.MetricQuery) ([]entity.MetricSample, error) {
	if err := f.record("series/" + query.GroupID); err != nil {
		return nil, err
	}
	return f.Series[query.GroupID], nil
}
