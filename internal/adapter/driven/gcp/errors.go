package gcp

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/diillson/cloud-plan-estimator/internal/domain/entity"
)

// serviceDisabled reports the "API not enabled on this project" flavour of 403.
func serviceDisabled(msg string) bool {
	return strings.Contains(msg, "SERVICE_DISABLED") ||
		strings.Contains(msg, "has not been used in project") ||
		strings.Contains(msg, "requires a quota project")
}

// classify maps REST and gRPC errors onto the entity sentinels. apiName goes
// into the message only.
func classify(err error, apiName string) error {
	if err == nil {
		return nil
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.PermissionDenied:
			if serviceDisabled(err.Error()) {
				return fmt.Errorf("%s: %w: %v", apiName, entity.ErrNotSupported, err)
			}
			return fmt.Errorf("%s: %w: %v", apiName, entity.ErrPermissionDenied, err)
		case codes.Unauthenticated:
			return fmt.Errorf("%s: %w: %v", apiName, entity.ErrPermissionDenied, err)
		case codes.NotFound, codes.Unimplemented:
			return fmt.Errorf("%s: %w: %v", apiName, entity.ErrNotSupported, err)
		}
		return fmt.Errorf("%s: %w", apiName, err)
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch gErr.Code {
		case http.StatusForbidden:
			if serviceDisabled(gErr.Error()) {
				return fmt.Errorf("%s: %w: %v", apiName, entity.ErrNotSupported, err)
			}
			return fmt.Errorf("%s: %w: %v", apiName, entity.ErrPermissionDenied, err)
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w: %v", apiName, entity.ErrPermissionDenied, err)
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w: %v", apiName, entity.ErrNotSupported, err)
		}
		return fmt.Errorf("%s: %w", apiName, err)
	}

	if serviceDisabled(err.Error()) {
		return fmt.Errorf("%s: %w: %v", apiName, entity.ErrNotSupported, err)
	}
	return fmt.Errorf("%s: %w", apiName, err)
}

// scopeUnavailable keeps quota and network failures of project access
// transient; the rest make the project unusable.
func scopeUnavailable(err error, apiName string) error {
	err = classify(err, apiName)
	if errors.Is(err, entity.ErrPermissionDenied) || errors.Is(err, entity.ErrNotSupported) {
		return fmt.Errorf("%w: %w", entity.ErrScopeUnavailable, err)
	}
	return err
}
