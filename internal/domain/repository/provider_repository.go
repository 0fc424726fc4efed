package repository

import (
	"context"

	"github.com/diillson/cloud-plan-estimator/internal/domain/entity"
)

// ProviderRepository is the set of remote capabilities the estimation engine
// needs from one cloud. Each of AWS, Azure and GCP has an implementation.
type ProviderRepository interface {
	EnvironmentType() entity.EnvironmentType

	// Scope operations
	ListScopeUnits(ctx context.Context) ([]entity.ScopeUnit, error)
	// Authorize acquires credentials for a scope unit. Auth and permission
	// failures wrap entity.ErrScopeUnavailable; anything else is transient
	// and retried before the unit is skipped.
	Authorize(ctx context.Context, scope entity.ScopeUnit) (entity.ScopeUnit, error)

	// Partition operations
	ListPartitions(ctx context.Context, scope entity.ScopeUnit) ([]string, error)
	// RegionalPartitions reports whether partitions are cloud regions. When
	// false the configured regions do not apply to this provider.
	RegionalPartitions() bool
	// PartitionCategories are counted once per partition, GlobalCategories once
	// per scope unit.
	PartitionCategories() []entity.Category
	GlobalCategories() []entity.Category

	// Counting
	CountResources(ctx context.Context, scope entity.ScopeUnit, partition string, category entity.Category) (int, error)

	// Container capacity
	ListClusters(ctx context.Context, scope entity.ScopeUnit, partition string) ([]string, error)
	ListNodeGroups(ctx context.Context, scope entity.ScopeUnit, partition, clusterID string) ([]entity.NodeGroup, error)
	DescribeScalingGroup(ctx context.Context, scope entity.ScopeUnit, partition, groupID string) (entity.ScalingGroup, error)
	ResolveCoresForInstanceType(ctx context.Context, scope entity.ScopeUnit, partition, instanceType string) (int, error)
	QueryTimeSeries(ctx context.Context, scope entity.ScopeUnit, partition string, query entity.MetricQuery) ([]entity.MetricSample, error)
}
