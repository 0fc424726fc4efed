// Package plan turns a scope unit's resource counts into billing plan line
// items. The tables below are the only place that decides which counts feed
// which plan.
package plan

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/diillson/cloud-plan-estimator/internal/domain/entity"
)

// MonthlyHours is the flat billable quantity of count based plans.
const MonthlyHours = 730

// BillableSource says where a row's BillableUnits come from.
type BillableSource int

const (
	BillableMonthlyHours BillableSource = iota
	BillableCoreEstimate
)

// Row maps raw counts onto one plan. ResourcesCount is the sum of Count plus
// Constant.
type Row struct {
	Plan       entity.PlanName
	Count      []entity.Category
	Constant   int
	Billable   BillableSource
	SubPlan    string
	Excludable entity.Category
}

// Table is an ordered mapping; output rows follow table order.
type Table []Row

var postureSources = []entity.Category{
	entity.CategoryCompute,
	entity.CategoryManagedDB,
	entity.CategoryObjectStorage,
}

var tables = map[entity.EnvironmentType]Table{
	entity.EnvironmentAWS: {
		{Plan: entity.PlanCloudPosture, Count: postureSources},
		{Plan: entity.PlanVirtualMachines, Count: []entity.Category{entity.CategoryCompute}, Excludable: entity.CategoryComputeStopped},
		{Plan: entity.PlanSQLServers, Count: []entity.Category{entity.CategoryManagedDB}},
		{Plan: entity.PlanContainers, Count: []entity.Category{entity.CategoryManagedContainerCluster}, Billable: BillableCoreEstimate},
		{Plan: entity.PlanServerless, Count: []entity.Category{entity.CategoryServerless}},
	},
	entity.EnvironmentGCP: {
		{Plan: entity.PlanCloudPosture, Count: postureSources},
		{Plan: entity.PlanVirtualMachines, Count: []entity.Category{entity.CategoryCompute}, Excludable: entity.CategoryComputeStopped},
		{Plan: entity.PlanSQLServers, Count: []entity.Category{entity.CategoryManagedDB}},
		{Plan: entity.PlanContainers, Count: []entity.Category{entity.CategoryManagedContainerCluster}, Billable: BillableCoreEstimate},
		{Plan: entity.PlanServerless, Count: []entity.Category{entity.CategoryServerless}},
	},
	entity.EnvironmentAzure: {
		{Plan: entity.PlanCloudPosture, Count: postureSources},
		{Plan: entity.PlanVirtualMachines, Count: []entity.Category{entity.CategoryCompute}, SubPlan: "P2"},
		{Plan: entity.PlanSQLServers, Count: []entity.Category{entity.CategoryManagedDB}},
		{Plan: entity.PlanStorageAccounts, Count: []entity.Category{entity.CategoryObjectStorage}, SubPlan: "DefenderForStorageV2"},
		{Plan: entity.PlanKeyVaults, Count: []entity.Category{entity.CategoryKeyVault}},
		{Plan: entity.PlanCosmosDBs, Count: []entity.Category{entity.CategoryCosmosDB}},
		{Plan: entity.PlanOpenSourceRelationalDatabases, Count: []entity.Category{entity.CategoryOpenSourceDB}},
		{Plan: entity.PlanContainers, Count: []entity.Category{entity.CategoryManagedContainerCluster}, Billable: BillableCoreEstimate},
		{Plan: entity.PlanAPI, Count: []entity.Category{entity.CategoryAPIManagement}},
		{Plan: entity.PlanAI, Count: []entity.Category{entity.CategoryAIServices}},
		{Plan: entity.PlanARM, Constant: 1},
	},
}

// TableFor returns the mapping table of an environment.
func TableFor(env entity.EnvironmentType) (Table, error) {
	t, ok := tables[env]
	if !ok {
		return nil, fmt.Errorf("no plan table for environment %q", env)
	}
	return t, nil
}

// Map emits one line item per row. Missing categories count as zero, so a
// degraded category still produces its row.
func (t Table) Map(scopeID string, env entity.EnvironmentType, counts entity.ResourceCounts, cores decimal.Decimal) []entity.PlanLineItem {
	items := make([]entity.PlanLineItem, 0, len(t))
	for _, row := range t {
		n := row.Constant
		for _, c := range row.Count {
			n += counts.Get(c)
		}

		units := decimal.NewFromInt(MonthlyHours)
		if row.Billable == BillableCoreEstimate {
			units = cores
			if units.IsNegative() {
				units = decimal.Zero
			}
		}

		var excludable int
		if row.Excludable != "" {
			excludable = counts.Get(row.Excludable)
		}

		items = append(items, entity.PlanLineItem{
			ScopeID:             scopeID,
			ResourcesCount:      n,
			BillableUnits:       units,
			PlanName:            row.Plan,
			EnvironmentType:     env,
			RecommendedSubPlan:  row.SubPlan,
			ExcludableResources: excludable,
		})
	}
	return items
}

// Plans lists the plan names a table emits, in order.
func (t Table) Plans() []entity.PlanName {
	out := make([]entity.PlanName, len(t))
	for i, row := range t {
		out[i] = row.Plan
	}
	return out
}
