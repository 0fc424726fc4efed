package entity

// EnvironmentType identifies the cloud a scope unit belongs to.
type EnvironmentType string

const (
	EnvironmentAWS   EnvironmentType = "AWS"
	EnvironmentGCP   EnvironmentType = "GCP"
	EnvironmentAzure EnvironmentType = "Azure"
)

// ParseEnvironmentType accepts the CLI spelling of a provider (aws, azure, gcp).
func ParseEnvironmentType(s string) (EnvironmentType, bool) {
	switch s {
	case "aws", "AWS":
		return EnvironmentAWS, true
	case "gcp", "GCP":
		return EnvironmentGCP, true
	case "azure", "Azure", "AZURE":
		return EnvironmentAzure, true
	}
	return "", false
}

// ScopeUnit is one billing boundary: an AWS account, an Azure subscription
// or a GCP project.
type ScopeUnit struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`

	// Credential is owned by the provider adapter that issued it.
	Credential any `json:"-"`
}

// WithCredential returns a copy of the scope unit carrying cred.
func (s ScopeUnit) WithCredential(cred any) ScopeUnit {
	s.Credential = cred
	return s
}

// Label is the human readable form used in logs and tables.
func (s ScopeUnit) Label() string {
	if s.DisplayName == "" || s.DisplayName == s.ID {
		return s.ID
	}
	return s.DisplayName + " (" + s.ID + ")"
}
