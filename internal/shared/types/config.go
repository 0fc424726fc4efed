package types

// Config represents the application configuration that can be loaded from a file.
type Config struct {
	Provider          string   `json:"provider" yaml:"provider" toml:"provider" mapstructure:"provider"`
	Profiles          []string `json:"profiles" yaml:"profiles" toml:"profiles" mapstructure:"profiles"`
	Regions           []string `json:"regions" yaml:"regions" toml:"regions" mapstructure:"regions"`
	Scopes            []string `json:"scopes" yaml:"scopes" toml:"scopes" mapstructure:"scopes"`
	ExcludeScopes     []string `json:"exclude_scopes" yaml:"exclude_scopes" toml:"exclude_scopes" mapstructure:"exclude_scopes"`
	All               bool     `json:"all" yaml:"all" toml:"all" mapstructure:"all"`
	Organization      bool     `json:"organization" yaml:"organization" toml:"organization" mapstructure:"organization"`
	RoleName          string   `json:"role_name" yaml:"role_name" toml:"role_name" mapstructure:"role_name"`
	ReportName        string   `json:"report_name" yaml:"report_name" toml:"report_name" mapstructure:"report_name"`
	ReportType        []string `json:"report_type" yaml:"report_type" toml:"report_type" mapstructure:"report_type"`
	Dir               string   `json:"dir" yaml:"dir" toml:"dir" mapstructure:"dir"`
	Concurrency       int      `json:"concurrency" yaml:"concurrency" toml:"concurrency" mapstructure:"concurrency"`
	RetryAttempts     int      `json:"retry_attempts" yaml:"retry_attempts" toml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBaseDelay    string   `json:"retry_base_delay" yaml:"retry_base_delay" toml:"retry_base_delay" mapstructure:"retry_base_delay"`
	MetricWindowDays  int      `json:"metric_window_days" yaml:"metric_window_days" toml:"metric_window_days" mapstructure:"metric_window_days"`
	MetricErrorPolicy string   `json:"metric_error_policy" yaml:"metric_error_policy" toml:"metric_error_policy" mapstructure:"metric_error_policy"`
	RateLimit         float64  `json:"rate_limit" yaml:"rate_limit" toml:"rate_limit" mapstructure:"rate_limit"`
	LogLevel          string   `json:"log_level" yaml:"log_level" toml:"log_level" mapstructure:"log_level"`
	GCPCredentials    string   `json:"gcp_credentials" yaml:"gcp_credentials" toml:"gcp_credentials" mapstructure:"gcp_credentials"`
	AzureTenant       string   `json:"azure_tenant" yaml:"azure_tenant" toml:"azure_tenant" mapstructure:"azure_tenant"`
}
