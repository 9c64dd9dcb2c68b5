// Package firmware polls the distribution server for an updated
// appliance build, verifies each delivered file's MD5 against the
// manifest digest, and installs it in place.
package firmware

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/stroemhansen/yolocam/internal/fsutil"
	"github.com/stroemhansen/yolocam/internal/httputil"
)

// ManifestEntry names one file the distribution server offers, with the
// MD5 digest of its current contents.
type ManifestEntry struct {
	Path string `json:"path"`
	MD5  string `json:"md5"`
	Data []byte `json:"data"`
}

// Manifest is the distribution server's response body: the latest
// version string plus the files comprising it.
type Manifest struct {
	Version string          `json:"version"`
	Files   []ManifestEntry `json:"files"`
}

// Trigger requests OS-level process replacement once an update is
// installed, implementing §-level "trip STARTED=false to be restarted
// by the OS supervisor".
type Trigger func()

// Updater polls url with HTTP basic auth, installs any newer version
// under installDir, and fires trigger after a successful install.
type Updater struct {
	client   httputil.HTTPClient
	fs       fsutil.FileSystem
	url      string
	username string
	password string
	installDir string
	trigger  Trigger
}

// NewUpdater builds an Updater. client/fs are injected for testability,
// matching the teacher's HTTPClient/FileSystem abstractions.
func NewUpdater(client httputil.HTTPClient, fs fsutil.FileSystem, url, username, password, installDir string, trigger Trigger) *Updater {
	return &Updater{
		client:     client,
		fs:         fs,
		url:        url,
		username:   username,
		password:   password,
		installDir: installDir,
		trigger:    trigger,
	}
}

// Check polls the distribution server. If the manifest's version
// differs from currentVersion, every file is MD5-verified and written
// to installDir, and trigger fires on success. Returns the manifest's
// version string (possibly equal to currentVersion if nothing changed)
// and whether an install occurred.
func (u *Updater) Check(currentVersion string) (string, bool, error) {
	req, err := http.NewRequest(http.MethodGet, u.url, nil)
	if err != nil {
		return currentVersion, false, err
	}
	if u.username != "" {
		req.SetBasicAuth(u.username, u.password)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return currentVersion, false, fmt.Errorf("firmware: poll: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return currentVersion, false, fmt.Errorf("firmware: poll: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return currentVersion, false, fmt.Errorf("firmware: read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		return currentVersion, false, fmt.Errorf("firmware: decode manifest: %w", err)
	}

	if manifest.Version == "" || manifest.Version == currentVersion {
		return currentVersion, false, nil
	}

	if err := u.install(manifest); err != nil {
		return currentVersion, false, err
	}

	if u.trigger != nil {
		u.trigger()
	}
	return manifest.Version, true, nil
}

// install verifies every file's MD5 before writing any of them, so a
// corrupt transfer leaves the prior install untouched.
func (u *Updater) install(manifest Manifest) error {
	for _, f := range manifest.Files {
		sum := md5.Sum(f.Data)
		if hex.EncodeToString(sum[:]) != f.MD5 {
			return fmt.Errorf("firmware: md5 mismatch for %s", f.Path)
		}
	}

	for _, f := range manifest.Files {
		dest := u.installDir + "/" + f.Path
		if err := u.fs.WriteFile(dest, f.Data, 0o755); err != nil {
			return fmt.Errorf("firmware: write %s: %w", f.Path, err)
		}
	}
	return nil
}

// DefaultTrigger trips STARTED=false by exiting the process; the OS
// supervisor (systemd/docker restart policy) is expected to relaunch
// it against the freshly installed files.
func DefaultTrigger() {
	os.Exit(0)
}
