package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNewer(t *testing.T) {
	tests := []struct {
		latest, current string
		want            bool
	}{
		{"1.10.0", "1.9.3", true},
		{"v2.0.0", "1.99.99", true},
		{"1.2.3", "1.2.3", false},
		{"1.2.3", "1.2.3-dirty", false},
		{"1.2", "1.2.1", false},
		{"1.2.1", "1.2", true},
		{"1.2.0", "1.3.0", false},
		{"latest", "1.0.0", false},
		{"1.0.0", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsNewer(tt.latest, tt.current), "%s vs %s", tt.latest, tt.current)
	}
}

func TestLatestRelease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tag_name":"v1.4.0","name":"1.4.0"}`))
	}))
	defer srv.Close()

	got, err := LatestRelease(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "1.4.0", got)
}

func TestLatestRelease_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := LatestRelease(context.Background(), srv.Client(), srv.URL)
	assert.ErrorContains(t, err, "404")
}

func TestFormatVersion(t *testing.T) {
	oldV, oldC, oldB := Version, Commit, BuildTime
	t.Cleanup(func() { Version, Commit, BuildTime = oldV, oldC, oldB })

	Version, Commit, BuildTime = "1.2.3", "", ""
	assert.Equal(t, "1.2.3 (development)", FormatVersion())

	Commit = "abc1234"
	assert.Equal(t, "1.2.3 (commit: abc1234)", FormatVersion())

	BuildTime = "2025-10-23T10:20:30Z"
	assert.Equal(t, "1.2.3 (commit: abc1234, built at: 2025-10-23T10:20:30Z)", FormatVersion())
}
