package gcp

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	monitoring "google.golang.org/api/monitoring/v3"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/diillson/cloud-plan-estimator/internal/domain/entity"
)

func TestInRegion(t *testing.T) {
	assert.True(t, inRegion("us-central1", "us-central1"))
	assert.True(t, inRegion("us-central1-a", "us-central1"))
	assert.False(t, inRegion("us-central2-a", "us-central1"))
	assert.False(t, inRegion("europe-west1", "europe-west"))
}

func TestParseManagerURL(t *testing.T) {
	ref, err := parseManagerURL("https://www.googleapis.com/compute/v1/projects/acme-prod/zones/us-central1-b/instanceGroupManagers/gke-main-pool-1a2b3c-grp")
	require.NoError(t, err)
	assert.Equal(t, managerRef{Project: "acme-prod", Zone: "us-central1-b", Name: "gke-main-pool-1a2b3c-grp"}, ref)

	ref, err = parseManagerURL("projects/acme/zones/europe-west1-c/instanceGroups/grp/")
	require.NoError(t, err)
	assert.Equal(t, "grp", ref.Name)

	_, err = parseManagerURL("projects/acme/regions/us-central1/instanceGroupManagers/grp")
	assert.ErrorIs(t, err, entity.ErrNotSupported)
}

func TestPointSample(t *testing.T) {
	d := 2.5
	s, ok := pointSample(&monitoring.Point{
		Interval: &monitoring.TimeInterval{EndTime: "2025-04-01T00:00:00Z"},
		Value:    &monitoring.TypedValue{DoubleValue: &d},
	})
	require.True(t, ok)
	assert.Equal(t, 2.5, s.Value)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), s.Timestamp)

	var n int64 = 3
	s, ok = pointSample(&monitoring.Point{
		Interval: &monitoring.TimeInterval{EndTime: "2025-04-02T00:00:00Z"},
		Value:    &monitoring.TypedValue{Int64Value: &n},
	})
	require.True(t, ok)
	assert.Equal(t, 3.0, s.Value)

	_, ok = pointSample(nil)
	assert.False(t, ok)
	_, ok = pointSample(&monitoring.Point{Interval: &monitoring.TimeInterval{EndTime: "yesterday"}, Value: &monitoring.TypedValue{DoubleValue: &d}})
	assert.False(t, ok)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"rest forbidden", &googleapi.Error{Code: http.StatusForbidden, Message: "caller does not have permission"}, entity.ErrPermissionDenied},
		{"rest api disabled", &googleapi.Error{Code: http.StatusForbidden, Message: "Cloud SQL Admin API has not been used in project 123 before or it is disabled"}, entity.ErrNotSupported},
		{"rest not found", &googleapi.Error{Code: http.StatusNotFound}, entity.ErrNotSupported},
		{"grpc permission", status.Error(codes.PermissionDenied, "denied"), entity.ErrPermissionDenied},
		{"grpc service disabled", status.Error(codes.PermissionDenied, "SERVICE_DISABLED"), entity.ErrNotSupported},
		{"grpc unauthenticated", status.Error(codes.Unauthenticated, "no token"), entity.ErrPermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classify(tt.err, "compute.googleapis.com"), tt.want)
		})
	}

	for _, transient := range []error{
		&googleapi.Error{Code: http.StatusTooManyRequests},
		status.Error(codes.Unavailable, "try again"),
		errors.New("connection reset by peer"),
	} {
		err := classify(transient, "compute.googleapis.com")
		assert.False(t, errors.Is(err, entity.ErrPermissionDenied), err)
		assert.False(t, errors.Is(err, entity.ErrNotSupported), err)
	}

	assert.NoError(t, classify(nil, "compute.googleapis.com"))
}

func TestScopeUnavailable(t *testing.T) {
	denied := scopeUnavailable(&googleapi.Error{Code: http.StatusForbidden, Message: "caller does not have permission"}, "project demo")
	assert.ErrorIs(t, denied, entity.ErrScopeUnavailable)
	assert.ErrorIs(t, denied, entity.ErrPermissionDenied)

	for _, transient := range []error{
		&googleapi.Error{Code: http.StatusTooManyRequests},
		&googleapi.Error{Code: http.StatusServiceUnavailable},
		errors.New("connection reset by peer"),
	} {
		err := scopeUnavailable(transient, "project demo")
		assert.False(t, errors.Is(err, entity.ErrScopeUnavailable), err)
	}

	assert.True(t, (&GCPRepositoryImpl{}).RegionalPartitions())
}
