package entity

import "errors"

// Provider adapters wrap their SDK errors with these so the engine can decide
// what to retry and what to degrade.
var (
	ErrPermissionDenied  = errors.New("permission denied")
	ErrNotSupported      = errors.New("not supported")
	ErrScopeUnavailable  = errors.New("scope unit unavailable")
	ErrNoScopeUnitsFound = errors.New("no scope units discoverable")
)
