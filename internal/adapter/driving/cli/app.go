package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/diillson/cloud-plan-estimator/internal/application/usecase"
	"github.com/diillson/cloud-plan-estimator/internal/domain/repository"
	"github.com/diillson/cloud-plan-estimator/internal/shared/types"
	"github.com/diillson/cloud-plan-estimator/pkg/version"
)

// ProviderFactory builds the provider adapter selected by the run configuration.
type ProviderFactory func(cfg types.RunConfig) (repository.ProviderRepository, error)

// CLIApp represents the command-line interface application.
type CLIApp struct {
	rootCmd         *cobra.Command
	configRepo      repository.ConfigRepository
	exportRepo      repository.ExportRepository
	console         types.ConsoleInterface
	providerFactory ProviderFactory
	version         string
}

// NewCLIApp cria uma nova aplicação CLI.
func NewCLIApp(versionStr string) *CLIApp {
	app := &CLIApp{
		version: versionStr,
	}

	// Obtem a versão formatada
	formattedVersion := version.FormatVersion()

	rootCmd := &cobra.Command{
		Use:           "plan-estimator",
		Short:         "Estimate billable plan units across AWS accounts, Azure subscriptions and GCP projects",
		Version:       formattedVersion,
		RunE:          app.runCommand,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{printf "Cloud Plan Estimator version: %s\n" .Version}}`)

	flags := rootCmd.PersistentFlags()
	flags.StringP("config-file", "C", "", "Path to a TOML, YAML, or JSON configuration file")
	flags.StringP("provider", "P", "aws", "Cloud provider to inventory: aws, azure, gcp")
	flags.StringSliceP("profiles", "p", nil, "Specific AWS profiles to use (comma-separated)")
	flags.StringSliceP("regions", "r", nil, "Restrict the inventory to these regions (comma-separated)")
	flags.BoolP("all", "a", false, "Use all available AWS profiles")
	flags.Bool("organization", false, "Enumerate AWS Organizations member accounts and assume --role-name in each")
	flags.String("role-name", types.DefaultRoleName, "Role assumed in member accounts with --organization")
	flags.StringSliceP("scopes", "s", nil, "Only estimate these scope ids (account, subscription or project ids)")
	flags.StringSlice("exclude-scopes", nil, "Scope ids to leave out")
	flags.StringP("report-name", "n", types.DefaultReportName, "Base name for the report file (without extension)")
	flags.StringSliceP("report-type", "y", []string{"csv"}, "Report types: csv, json, pdf")
	flags.StringP("dir", "d", "", "Directory to save the report files (default: current directory)")
	flags.Int("concurrency", types.DefaultConcurrency, "Scope units processed at the same time")
	flags.Int("retry-attempts", types.DefaultRetryAttempts, "Attempts per remote call")
	flags.String("retry-base-delay", types.DefaultRetryBaseDelay.String(), "Base delay of the exponential backoff")
	flags.Int("metric-window-days", types.DefaultMetricWindowDays, "Trailing window of the node count average, in days")
	flags.String("metric-error-policy", types.MetricPolicyRetryThenFallback, "On metric errors: retry-then-fallback or fallback")
	flags.Float64("rate-limit", 0, "Maximum remote calls per second across the run (0 = unlimited)")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("gcp-credentials", "", "GCP service account key file (default: application default credentials)")
	flags.String("azure-tenant", "", "Azure tenant id used by the default credential chain")

	app.rootCmd = rootCmd
	return app
}

// SetRepositories wires the driven adapters the command needs.
func (app *CLIApp) SetRepositories(configRepo repository.ConfigRepository, exportRepo repository.ExportRepository, console types.ConsoleInterface) {
	app.configRepo = configRepo
	app.exportRepo = exportRepo
	app.console = console
}

// SetProviderFactory sets how the provider adapter is built.
func (app *CLIApp) SetProviderFactory(f ProviderFactory) {
	app.providerFactory = f
}

// Execute runs the CLI application.
func (app *CLIApp) Execute() error {
	return app.rootCmd.Execute()
}

// parseArgs parses command-line arguments into a CLIArgs struct.
func (app *CLIApp) parseArgs(cmd *cobra.Command) (*types.CLIArgs, error) {
	flags := cmd.Flags()

	configFile, _ := flags.GetString("config-file")
	provider, _ := flags.GetString("provider")
	profiles, _ := flags.GetStringSlice("profiles")
	regions, _ := flags.GetStringSlice("regions")
	all, _ := flags.GetBool("all")
	organization, _ := flags.GetBool("organization")
	roleName, _ := flags.GetString("role-name")
	scopes, _ := flags.GetStringSlice("scopes")
	excludeScopes, _ := flags.GetStringSlice("exclude-scopes")
	reportName, _ := flags.GetString("report-name")
	reportType, _ := flags.GetStringSlice("report-type")
	dir, _ := flags.GetString("dir")
	concurrency, _ := flags.GetInt("concurrency")
	retryAttempts, _ := flags.GetInt("retry-attempts")
	retryBaseDelay, _ := flags.GetString("retry-base-delay")
	metricWindowDays, _ := flags.GetInt("metric-window-days")
	metricErrorPolicy, _ := flags.GetString("metric-error-policy")
	rateLimit, _ := flags.GetFloat64("rate-limit")
	logLevel, _ := flags.GetString("log-level")
	gcpCredentials, _ := flags.GetString("gcp-credentials")
	azureTenant, _ := flags.GetString("azure-tenant")

	if dir != "" {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		dir = absDir
	}

	changed := make(map[string]bool)
	for _, name := range []string{
		"provider", "profiles", "regions", "all", "organization", "role-name",
		"scopes", "exclude-scopes", "report-name", "report-type", "dir",
		"concurrency", "retry-attempts", "retry-base-delay", "metric-window-days",
		"metric-error-policy", "rate-limit", "log-level", "gcp-credentials", "azure-tenant",
	} {
		if flags.Changed(name) {
			changed[name] = true
		}
	}

	return &types.CLIArgs{
		ConfigFile:        configFile,
		Provider:          provider,
		Profiles:          profiles,
		Regions:           regions,
		Scopes:            scopes,
		ExcludeScopes:     excludeScopes,
		All:               all,
		Organization:      organization,
		RoleName:          roleName,
		ReportName:        reportName,
		ReportType:        reportType,
		Dir:               dir,
		Concurrency:       concurrency,
		RetryAttempts:     retryAttempts,
		RetryBaseDelay:    retryBaseDelay,
		MetricWindowDays:  metricWindowDays,
		MetricErrorPolicy: metricErrorPolicy,
		RateLimit:         rateLimit,
		LogLevel:          logLevel,
		GCPCredentials:    gcpCredentials,
		AzureTenant:       azureTenant,
		Changed:           changed,
	}, nil
}

// loadRunConfig junta arquivo, ambiente e flags, nessa ordem de precedência crescente.
func (app *CLIApp) loadRunConfig(cliArgs *types.CLIArgs) (types.RunConfig, error) {
	fileCfg := &types.Config{}
	if cliArgs.ConfigFile != "" {
		loaded, err := app.configRepo.LoadConfigFile(cliArgs.ConfigFile)
		if err != nil {
			return types.RunConfig{}, err
		}
		fileCfg = loaded
	}
	if err := app.configRepo.ApplyEnvironment(fileCfg); err != nil {
		return types.RunConfig{}, err
	}
	return types.ResolveRunConfig(cliArgs, fileCfg)
}

// newLogger builds the structured engine logger. It writes to stderr so the
// console output and the reports stay clean.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// runCommand é o ponto de entrada principal para o comando CLI.
func (app *CLIApp) runCommand(cmd *cobra.Command, args []string) error {
	// Exibe o banner de boas-vindas
	displayWelcomeBanner(app.version)

	// Verifica a versão mais recente disponível
	go version.CheckLatestVersion(app.version)

	cliArgs, err := app.parseArgs(cmd)
	if err != nil {
		return err
	}

	cfg, err := app.loadRunConfig(cliArgs)
	if err != nil {
		return err
	}

	if app.providerFactory == nil {
		return fmt.Errorf("no provider factory configured")
	}
	provider, err := app.providerFactory(cfg)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	logger.Debug().
		Str("provider", string(cfg.Environment)).
		Int("concurrency", cfg.Concurrency).
		Int("retry_attempts", cfg.RetryAttempts).
		Dur("retry_base_delay", cfg.RetryBaseDelay).
		Str("metric_error_policy", cfg.MetricErrorPolicy).
		Float64("rate_limit", cfg.RateLimit).
		Msg("run configuration resolved")

	return usecase.NewEstimateUseCase(provider, app.exportRepo, app.console).RunEstimate(ctx, cfg)
}
