package types

// CLIArgs represents the command-line arguments.
type CLIArgs struct {
	ConfigFile        string
	Provider          string
	Profiles          []string
	Regions           []string
	Scopes            []string
	ExcludeScopes     []string
	All               bool
	Organization      bool
	RoleName          string
	ReportName        string
	ReportType        []string
	Dir               string
	Concurrency       int
	RetryAttempts     int
	RetryBaseDelay    string
	MetricWindowDays  int
	MetricErrorPolicy string
	RateLimit         float64
	LogLevel          string
	GCPCredentials    string
	AzureTenant       string

	// Changed records which flags the user actually set, so file and env
	// values are only overridden by explicit flags.
	Changed map[string]bool
}

// IsSet reports whether the flag was given on the command line.
func (a *CLIArgs) IsSet(flag string) bool {
	return a.Changed != nil && a.Changed[flag]
}
