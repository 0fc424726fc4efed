package entity

import "sort"

// Category is a resource family counted by the inventory.
type Category string

const (
	CategoryCompute                 Category = "compute"
	CategoryComputeStopped          Category = "computeStopped"
	CategoryManagedDB               Category = "managedDb"
	CategoryObjectStorage           Category = "objectStorage"
	CategoryManagedContainerCluster Category = "managedContainerCluster"
	CategoryServerless              Category = "serverless"

	// Azure only.
	CategoryKeyVault      Category = "keyVault"
	CategoryCosmosDB      Category = "cosmosDb"
	CategoryOpenSourceDB  Category = "openSourceDb"
	CategoryAPIManagement Category = "apiManagement"
	CategoryAIServices    Category = "aiServices"
)

// ResourceCounts maps a category to the number of resources found. Counts only
// ever grow: partitions are merged additively.
type ResourceCounts map[Category]int

// Add increments a category, ignoring negative deltas.
func (rc ResourceCounts) Add(c Category, n int) {
	if n <= 0 {
		if _, ok := rc[c]; !ok {
			rc[c] = 0
		}
		return
	}
	rc[c] += n
}

// Merge adds every category of other into rc.
func (rc ResourceCounts) Merge(other ResourceCounts) {
	for c, n := range other {
		rc.Add(c, n)
	}
}

// Get returns the count for c, zero when the category was never seen.
func (rc ResourceCounts) Get(c Category) int {
	return rc[c]
}

// Categories returns the known categories in a stable order.
func (rc ResourceCounts) Categories() []Category {
	out := make([]Category, 0, len(rc))
	for c := range rc {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
