package repository

import (
	"github.com/diillson/cloud-plan-estimator/internal/shared/types"
)

// ConfigRepository defines the interface for loading configuration files.
type ConfigRepository interface {
	LoadConfigFile(filePath string) (*types.Config, error)
	// ApplyEnvironment overlays PLAN_ESTIMATOR_* variables on cfg.
	ApplyEnvironment(cfg *types.Config) error
}
