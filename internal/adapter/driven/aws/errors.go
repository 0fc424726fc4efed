package aws

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"

	"github.com/diillson/cloud-plan-estimator/internal/domain/entity"
)

var permissionCodes = map[string]bool{
	"AccessDenied":                true,
	"AccessDeniedException":       true,
	"UnauthorizedOperation":       true,
	"UnauthorizedException":       true,
	"AuthFailure":                 true,
	"AuthorizationError":          true,
	"OptInRequired":               true,
	"InvalidClientTokenId":        true,
	"UnrecognizedClientException": true,
	"ExpiredToken":                true,
	"ExpiredTokenException":       true,
}

var notSupportedCodes = map[string]bool{
	"SubscriptionRequiredException":     true,
	"UnsupportedOperation":              true,
	"InvalidAction":                     true,
	"AWSOrganizationsNotInUseException": true,
}

// classify wraps an SDK error with the matching entity sentinel. Throttling and
// every unknown code stay transient.
func classify(err error, what string) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case permissionCodes[code]:
			return fmt.Errorf("%s: %w: %v", what, entity.ErrPermissionDenied, err)
		case notSupportedCodes[code]:
			return fmt.Errorf("%s: %w: %v", what, entity.ErrNotSupported, err)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

func isPermission(err error) bool {
	return errors.Is(err, entity.ErrPermissionDenied)
}

// scopeUnavailable classifies an Authorize failure. Permission and
// not-supported errors make the account unusable and wrap
// entity.ErrScopeUnavailable; throttling and network errors stay transient.
func scopeUnavailable(err error, what string) error {
	err = classify(err, what)
	if isPermission(err) || errors.Is(err, entity.ErrNotSupported) {
		return fmt.Errorf("%w: %w", entity.ErrScopeUnavailable, err)
	}
	return err
}
