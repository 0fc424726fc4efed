package engine

import (
	"context"
	"errors"

	"github.com/diillson/cloud-plan-estimator/internal/domain/entity"
)

// ErrorKind is the engine's view of a failed remote call.
type ErrorKind int

const (
	KindTransient ErrorKind = iota
	KindPermissionDenied
	KindNotSupported
	KindScopeUnavailable
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission_denied"
	case KindNotSupported:
		return "not_supported"
	case KindScopeUnavailable:
		return "scope_unavailable"
	case KindCanceled:
		return "canceled"
	default:
		return "transient"
	}
}

// Classify maps an adapter error onto an ErrorKind. Adapters wrap the entity
// sentinels; anything unrecognised is treated as transient.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindTransient
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, entity.ErrScopeUnavailable):
		return KindScopeUnavailable
	case errors.Is(err, entity.ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, entity.ErrNotSupported):
		return KindNotSupported
	}
	return KindTransient
}

// IsRetryable is the default RetryPolicy predicate.
func IsRetryable(err error) bool {
	return err != nil && Classify(err) == KindTransient
}
