package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/diillson/cloud-plan-estimator/internal/domain/entity"
)

const (
	DefaultConcurrency      = 10
	DefaultRetryAttempts    = 3
	DefaultRetryBaseDelay   = time.Second
	DefaultMetricWindowDays = 30
	DefaultRoleName         = "OrganizationAccountAccessRole"
	DefaultReportName       = "plan-estimate"

	MetricPolicyRetryThenFallback = "retry-then-fallback"
	MetricPolicyFallback          = "fallback"
)

// RunConfig is the resolved, immutable configuration of one run. It is passed
// explicitly to every component that needs it.
type RunConfig struct {
	Environment       entity.EnvironmentType
	Profiles          []string
	Regions           []string
	Scopes            []string
	ExcludeScopes     []string
	All               bool
	Organization      bool
	RoleName          string
	ReportName        string
	ReportTypes       []string
	Dir               string
	Concurrency       int
	RetryAttempts     int
	RetryBaseDelay    time.Duration
	MetricWindowDays  int
	MetricErrorPolicy string
	RateLimit         float64
	LogLevel          string
	GCPCredentials    string
	AzureTenant       string
}

// ResolveRunConfig merges explicit flags over the file/env configuration and
// fills defaults. file may be nil.
func ResolveRunConfig(args *CLIArgs, file *Config) (RunConfig, error) {
	if file == nil {
		file = &Config{}
	}

	str := func(flag, argVal, fileVal, def string) string {
		if args.IsSet(flag) && argVal != "" {
			return argVal
		}
		if fileVal != "" {
			return fileVal
		}
		if argVal != "" {
			return argVal
		}
		return def
	}
	slice := func(flag string, argVal, fileVal []string) []string {
		if args.IsSet(flag) || len(fileVal) == 0 {
			return argVal
		}
		return fileVal
	}
	num := func(flag string, argVal, fileVal, def int) int {
		if args.IsSet(flag) && argVal > 0 {
			return argVal
		}
		if fileVal > 0 {
			return fileVal
		}
		if argVal > 0 {
			return argVal
		}
		return def
	}

	providerName := strings.ToLower(str("provider", args.Provider, file.Provider, "aws"))
	env, ok := entity.ParseEnvironmentType(providerName)
	if !ok {
		return RunConfig{}, fmt.Errorf("%w: %q", ErrUnknownProvider, providerName)
	}

	delayStr := str("retry-base-delay", args.RetryBaseDelay, file.RetryBaseDelay, "")
	delay := DefaultRetryBaseDelay
	if delayStr != "" {
		d, err := time.ParseDuration(delayStr)
		if err != nil {
			return RunConfig{}, fmt.Errorf("invalid retry base delay %q: %w", delayStr, err)
		}
		delay = d
	}

	policy := str("metric-error-policy", args.MetricErrorPolicy, file.MetricErrorPolicy, MetricPolicyRetryThenFallback)
	if policy != MetricPolicyRetryThenFallback && policy != MetricPolicyFallback {
		return RunConfig{}, fmt.Errorf("%w: %q", ErrInvalidMetricPolicy, policy)
	}

	rateLimit := file.RateLimit
	if args.IsSet("rate-limit") || rateLimit == 0 {
		rateLimit = args.RateLimit
	}
	if rateLimit < 0 {
		rateLimit = 0
	}

	reportTypes := slice("report-type", args.ReportType, file.ReportType)
	if len(reportTypes) == 0 {
		reportTypes = []string{"csv"}
	}

	return RunConfig{
		Environment:       env,
		Profiles:          slice("profiles", args.Profiles, file.Profiles),
		Regions:           slice("regions", args.Regions, file.Regions),
		Scopes:            slice("scopes", args.Scopes, file.Scopes),
		ExcludeScopes:     slice("exclude-scopes", args.ExcludeScopes, file.ExcludeScopes),
		All:               args.All || file.All,
		Organization:      args.Organization || file.Organization,
		RoleName:          str("role-name", args.RoleName, file.RoleName, DefaultRoleName),
		ReportName:        str("report-name", args.ReportName, file.ReportName, DefaultReportName),
		ReportTypes:       reportTypes,
		Dir:               str("dir", args.Dir, file.Dir, "."),
		Concurrency:       num("concurrency", args.Concurrency, file.Concurrency, DefaultConcurrency),
		RetryAttempts:     num("retry-attempts", args.RetryAttempts, file.RetryAttempts, DefaultRetryAttempts),
		RetryBaseDelay:    delay,
		MetricWindowDays:  num("metric-window-days", args.MetricWindowDays, file.MetricWindowDays, DefaultMetricWindowDays),
		MetricErrorPolicy: policy,
		RateLimit:         rateLimit,
		LogLevel:          str("log-level", args.LogLevel, file.LogLevel, "info"),
		GCPCredentials:    str("gcp-credentials", args.GCPCredentials, file.GCPCredentials, ""),
		AzureTenant:       str("azure-tenant", args.AzureTenant, file.AzureTenant, ""),
	}, nil
}

// Included applies the --scopes / --exclude-scopes filters to a scope id.
func (c RunConfig) Included(scopeID string) bool {
	for _, ex := range c.ExcludeScopes {
		if ex == scopeID {
			return false
		}
	}
	if len(c.Scopes) == 0 {
		return true
	}
	for _, s := range c.Scopes {
		if s == scopeID {
			return true
		}
	}
	return false
}
