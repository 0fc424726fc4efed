package entity

import "github.com/shopspring/decimal"

// PlanName is a billing plan of the posture product.
type PlanName string

const (
	PlanCloudPosture                  PlanName = "cloudposture"
	PlanVirtualMachines               PlanName = "virtualmachines"
	PlanSQLServers                    PlanName = "sqlservers"
	PlanContainers                    PlanName = "containers"
	PlanServerless                    PlanName = "serverless"
	PlanStorageAccounts               PlanName = "storageaccounts"
	PlanKeyVaults                     PlanName = "keyvaults"
	PlanCosmosDBs                     PlanName = "cosmosdbs"
	PlanAPI                           PlanName = "api"
	PlanAI                            PlanName = "ai"
	PlanOpenSourceRelationalDatabases PlanName = "opensourcerelationaldatabases"
	PlanOnUploadMalwareScanning       PlanName = "onuploadmalwarescanning"
	PlanARM                           PlanName = "arm"
)

// PlanLineItem is one output row. EnvironmentName is filled in downstream and
// is always empty when emitted.
type PlanLineItem struct {
	ScopeID             string          `json:"scope_id"`
	EnvironmentName     string          `json:"environment_name"`
	ResourcesCount      int             `json:"resources_count"`
	BillableUnits       decimal.Decimal `json:"billable_units"`
	PlanName            PlanName        `json:"plan_name"`
	EnvironmentType     EnvironmentType `json:"environment_type"`
	RecommendedSubPlan  string          `json:"recommended_sub_plan,omitempty"`
	ExcludableResources int             `json:"excludable_resources"`
}
