// Package dl resolves Mojang's version manifest and downloads client jars,
// which the fetch-textures command mines for block textures.
package dl

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const versionManifestURL = "https://launchermeta.mojang.com/mc/game/version_manifest.json"

// metaClient fetches the small JSON documents; jar downloads get their own
// deadline since a client jar is a few dozen megabytes.
var (
	metaClient = &http.Client{Timeout: 10 * time.Second}
	jarClient  = &http.Client{Timeout: 5 * time.Minute}
)

// DownloadMetadata describes one downloadable artifact of a version.
type DownloadMetadata struct {
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// VersionMetadata is the per-version document, with downloads keyed by
// artifact name ("client", "server", ...).
type VersionMetadata struct {
	Downloads map[string]*DownloadMetadata `json:"downloads"`
}

type Version struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Time        string `json:"time"`
	ReleaseTime string `json:"releaseTime"`
	URL         string `json:"url"`
}

type VersionManifest struct {
	Latest struct {
		Release  string `json:"release"`
		Snapshot string `json:"snapshot"`
	} `json:"latest"`
	Versions []Version `json:"versions"`
}

// Release finds a version by id; the empty id selects the latest release.
func (v *VersionManifest) Release(id string) *Version {
	if id == "" {
		id = v.Latest.Release
	}
	for i := range v.Versions {
		if v.Versions[i].ID == id {
			return &v.Versions[i]
		}
	}
	return nil
}

func getJSON(url string, dst any) error {
	r, err := metaClient.Get(url)
	if err != nil {
		return err
	}
	defer r.Body.Close()
	if r.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", r.Status)
	}
	return json.NewDecoder(r.Body).Decode(dst)
}

// GetVersionManifest fetches the index of every published version.
func GetVersionManifest() (*VersionManifest, error) {
	var manifest VersionManifest
	if err := getJSON(versionManifestURL, &manifest); err != nil {
		return nil, fmt.Errorf("failed to fetch version manifest: %w", err)
	}
	return &manifest, nil
}

// Metadata fetches the version's full document with its download links.
func (v *Version) Metadata() (*VersionMetadata, error) {
	var meta VersionMetadata
	if err := getJSON(v.URL, &meta); err != nil {
		return nil, fmt.Errorf("failed to fetch metadata for %s: %w", v.ID, err)
	}
	return &meta, nil
}

// Fetch downloads the artifact into dst, verifying size and checksum when the
// metadata carries them.
func (d *DownloadMetadata) Fetch(dst io.Writer) error {
	resp, err := jarClient.Get(d.URL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	sum := sha1.New()
	n, err := io.Copy(io.MultiWriter(dst, sum), resp.Body)
	if err != nil {
		return err
	}
	if d.Size > 0 && n != d.Size {
		return fmt.Errorf("short download: %d of %d bytes", n, d.Size)
	}
	if d.SHA1 != "" && hex.EncodeToString(sum.Sum(nil)) != d.SHA1 {
		return fmt.Errorf("checksum mismatch")
	}
	return nil
}

// DownloadClientJar resolves a version (empty picks the latest release) and
// downloads its client jar to path. A failed download is removed.
func DownloadClientJar(id, path string) (*Version, error) {
	manifest, err := GetVersionManifest()
	if err != nil {
		return nil, err
	}
	release := manifest.Release(id)
	if release == nil {
		return nil, fmt.Errorf("unknown version %q", id)
	}
	meta, err := release.Metadata()
	if err != nil {
		return nil, err
	}
	client, ok := meta.Downloads["client"]
	if !ok {
		return nil, fmt.Errorf("version %s has no client download", release.ID)
	}

	out, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if err := client.Fetch(out); err != nil {
		out.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to download client jar: %w", err)
	}
	if err := out.Close(); err != nil {
		return nil, err
	}
	return release, nil
}
