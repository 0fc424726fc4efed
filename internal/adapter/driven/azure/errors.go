package azure

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/diillson/cloud-plan-estimator/internal/domain/entity"
)

var notSupportedCodes = map[string]bool{
	"MissingSubscriptionRegistration": true,
	"NoRegisteredProviderFound":       true,
	"InvalidResourceType":             true,
	"SubscriptionNotRegistered":       true,
}

func classify(err error, what string) error {
	if err == nil {
		return nil
	}

	var authErr *azidentity.AuthenticationFailedError
	if errors.As(err, &authErr) {
		return fmt.Errorf("%s: %w: %v", what, entity.ErrPermissionDenied, err)
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch {
		case respErr.StatusCode == http.StatusUnauthorized, respErr.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%s: %w: %v", what, entity.ErrPermissionDenied, err)
		case notSupportedCodes[respErr.ErrorCode], respErr.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%s: %w: %v", what, entity.ErrNotSupported, err)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

// scopeUnavailable wraps entity.ErrScopeUnavailable around auth, permission
// and not-supported failures only.
func scopeUnavailable(err error, what string) error {
	err = classify(err, what)
	if errors.Is(err, entity.ErrPermissionDenied) || errors.Is(err, entity.ErrNotSupported) {
		return fmt.Errorf("%w: %w", entity.ErrScopeUnavailable, err)
	}
	return err
}
