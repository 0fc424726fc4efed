package main

import (
	"fmt"
	"os"

	"github.com/diillson/cloud-plan-estimator/internal/adapter/driven/aws"
	"github.com/diillson/cloud-plan-estimator/internal/adapter/driven/azure"
	"github.com/diillson/cloud-plan-estimator/internal/adapter/driven/config"
	"github.com/diillson/cloud-plan-estimator/internal/adapter/driven/export"
	"github.com/diillson/cloud-plan-estimator/internal/adapter/driven/gcp"
	"github.com/diillson/cloud-plan-estimator/internal/adapter/driving/cli"
	"github.com/diillson/cloud-plan-estimator/internal/domain/entity"
	"github.com/diillson/cloud-plan-estimator/internal/domain/repository"
	"github.com/diillson/cloud-plan-estimator/internal/shared/types"
	"github.com/diillson/cloud-plan-estimator/pkg/console"
	"github.com/diillson/cloud-plan-estimator/pkg/version"
)

// newProvider escolhe o adapter de acordo com --provider.
func newProvider(cfg types.RunConfig) (repository.ProviderRepository, error) {
	switch cfg.Environment {
	case entity.EnvironmentAWS:
		return aws.NewAWSRepository(aws.Options{
			Profiles:     cfg.Profiles,
			All:          cfg.All,
			Organization: cfg.Organization,
			RoleName:     cfg.RoleName,
		}), nil
	case entity.EnvironmentAzure:
		return azure.NewAzureRepository(azure.Options{TenantID: cfg.AzureTenant}), nil
	case entity.EnvironmentGCP:
		return gcp.NewGCPRepository(gcp.Options{CredentialsFile: cfg.GCPCredentials}), nil
	}
	return nil, fmt.Errorf("%w: %q", types.ErrUnknownProvider, cfg.Environment)
}

func main() {
	// Inicializa o aplicativo CLI
	app := cli.NewCLIApp(version.Version)

	// Inicializa os repositórios
	exportRepo := export.NewExportRepository()
	configRepo := config.NewConfigRepository()
	consoleImpl := console.NewConsole()

	app.SetRepositories(configRepo, exportRepo, consoleImpl)
	app.SetProviderFactory(newProvider)

	// Executa o aplicativo
	if err := app.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
