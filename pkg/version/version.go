package version

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
)

// Valores padrão (sobrescritos por ldflags ou por build info)
var (
	Version   = "0.0.0-dev"
	Commit    = ""
	BuildTime = ""
)

// ReleasesURL is queried by CheckLatestVersion.
var ReleasesURL = "https://api.github.com/repos/diillson/cloud-plan-estimator/releases/latest"

// populateFromBuildInfo usa o build info do Go quando o ldflags não definiu a versão.
func populateFromBuildInfo() {
	if Version != "" && Version != "0.0.0-dev" {
		return
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi == nil {
		return
	}

	settings := make(map[string]string, len(bi.Settings))
	for _, s := range bi.Settings {
		settings[s.Key] = s.Value
	}

	if rev := settings["vcs.revision"]; Commit == "" && len(rev) >= 7 {
		Commit = rev[:7]
	}
	if t := settings["vcs.time"]; BuildTime == "" && t != "" {
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			BuildTime = ts.UTC().Format("2006-01-02T15:04:05Z")
		}
	}

	// go install ...@vX.Y.Z grava a tag como versão do módulo principal
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		Version = strings.TrimPrefix(v, "v")
	}
	if strings.EqualFold(settings["vcs.modified"], "true") && !strings.HasSuffix(Version, "-dirty") {
		Version += "-dirty"
	}
}

func init() {
	populateFromBuildInfo()
}

// parse splits "1.2.3-rc1" into its numeric core. Missing parts are 0.
func parse(v string) ([3]int, bool) {
	var out [3]int
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	if v == "" {
		return out, false
	}
	for i, part := range strings.SplitN(v, ".", 3) {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return out, false
		}
		out[i] = n
	}
	return out, true
}

// IsNewer reports whether latest is a higher release than current. Versions
// that do not parse are never newer.
func IsNewer(latest, current string) bool {
	l, ok := parse(latest)
	if !ok {
		return false
	}
	c, ok := parse(current)
	if !ok {
		return false
	}
	for i := range l {
		if l[i] != c[i] {
			return l[i] > c[i]
		}
	}
	return false
}

// LatestRelease returns the tag of the latest published release, without the
// leading "v".
func LatestRelease(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("release lookup returned %s", resp.Status)
	}

	var release struct {
		TagName string `json:"tag_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", fmt.Errorf("decoding release: %w", err)
	}
	return strings.TrimPrefix(release.TagName, "v"), nil
}

// CheckLatestVersion avisa no console quando existe uma release mais nova.
// Falhas são silenciosas.
func CheckLatestVersion(currentVersion string) {
	if strings.HasSuffix(currentVersion, "-dev") {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	latest, err := LatestRelease(ctx, http.DefaultClient, ReleasesURL)
	if err != nil || !IsNewer(latest, currentVersion) {
		return
	}
	pterm.Warning.Printfln("A new version of Cloud Plan Estimator is available: %s", latest)
	pterm.Info.Println("Please update using: go install github.com/diillson/cloud-plan-estimator/cmd/plan-estimator@latest")
}

// FormatVersion retorna a versão com commit e data de build, por exemplo
// "1.2.3 (commit: abc1234, built at: 2025-10-23T10:20:30Z)".
func FormatVersion() string {
	ver := Version
	if ver == "" {
		ver = "0.0.0-dev"
	}
	switch {
	case Commit == "" && BuildTime == "":
		return fmt.Sprintf("%s (development)", ver)
	case BuildTime == "":
		return fmt.Sprintf("%s (commit: %s)", ver, Commit)
	case Commit == "":
		return fmt.Sprintf("%s (built at: %s)", ver, BuildTime)
	}
	return fmt.Sprintf("%s (commit: %s, built at: %s)", ver, Commit, BuildTime)
}
