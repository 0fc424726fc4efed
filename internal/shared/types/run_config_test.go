package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diillson/cloud-plan-estimator/internal/domain/entity"
)

func TestResolveRunConfig_Defaults(t *testing.T) {
	cfg, err := ResolveRunConfig(&CLIArgs{}, nil)
	require.NoError(t, err)

	assert.Equal(t, entity.EnvironmentAWS, cfg.Environment)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, DefaultRetryAttempts, cfg.RetryAttempts)
	assert.Equal(t, DefaultRetryBaseDelay, cfg.RetryBaseDelay)
	assert.Equal(t, DefaultMetricWindowDays, cfg.MetricWindowDays)
	assert.Equal(t, MetricPolicyRetryThenFallback, cfg.MetricErrorPolicy)
	assert.Equal(t, DefaultRoleName, cfg.RoleName)
	assert.Equal(t, DefaultReportName, cfg.ReportName)
	assert.Equal(t, []string{"csv"}, cfg.ReportTypes)
	assert.Equal(t, ".", cfg.Dir)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestResolveRunConfig_Precedence(t *testing.T) {
	file := &Config{
		Provider:       "gcp",
		Concurrency:    4,
		RetryAttempts:  5,
		RetryBaseDelay: "250ms",
		Regions:        []string{"europe-west1"},
		ReportName:     "from-file",
	}

	t.Run("file beats defaults and unset flags", func(t *testing.T) {
		args := &CLIArgs{Provider: "aws", Concurrency: DefaultConcurrency, ReportName: DefaultReportName}
		cfg, err := ResolveRunConfig(args, file)
		require.NoError(t, err)

		assert.Equal(t, entity.EnvironmentGCP, cfg.Environment)
		assert.Equal(t, 4, cfg.Concurrency)
		assert.Equal(t, 5, cfg.RetryAttempts)
		assert.Equal(t, 250*time.Millisecond, cfg.RetryBaseDelay)
		assert.Equal(t, []string{"europe-west1"}, cfg.Regions)
		assert.Equal(t, "from-file", cfg.ReportName)
	})

	t.Run("explicit flags beat the file", func(t *testing.T) {
		args := &CLIArgs{
			Provider:    "azure",
			Concurrency: 16,
			Regions:     []string{"westeurope"},
			Changed:     map[string]bool{"provider": true, "concurrency": true, "regions": true},
		}
		cfg, err := ResolveRunConfig(args, file)
		require.NoError(t, err)

		assert.Equal(t, entity.EnvironmentAzure, cfg.Environment)
		assert.Equal(t, 16, cfg.Concurrency)
		assert.Equal(t, []string{"westeurope"}, cfg.Regions)
		assert.Equal(t, 5, cfg.RetryAttempts)
	})
}

func TestResolveRunConfig_Invalid(t *testing.T) {
	_, err := ResolveRunConfig(&CLIArgs{Provider: "oci", Changed: map[string]bool{"provider": true}}, nil)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = ResolveRunConfig(&CLIArgs{MetricErrorPolicy: "ignore"}, nil)
	assert.ErrorIs(t, err, ErrInvalidMetricPolicy)

	_, err = ResolveRunConfig(&CLIArgs{RetryBaseDelay: "soon"}, nil)
	assert.Error(t, err)
}

func TestResolveRunConfig_NegativeRateLimitDisables(t *testing.T) {
	cfg, err := ResolveRunConfig(&CLIArgs{RateLimit: -3}, nil)
	require.NoError(t, err)
	assert.Zero(t, cfg.RateLimit)
}

func TestRunConfig_Included(t *testing.T) {
	cfg := RunConfig{}
	assert.True(t, cfg.Included("any"))

	cfg = RunConfig{Scopes: []string{"a", "b"}, ExcludeScopes: []string{"b"}}
	assert.True(t, cfg.Included("a"))
	assert.False(t, cfg.Included("b"))
	assert.False(t, cfg.Included("c"))
}
