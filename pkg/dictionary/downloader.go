package dictionary

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	repoOwner = "scriptin"
	repoName  = "jmdict-simplified"
)

// LatestReleaseURL is the GitHub API endpoint describing the newest
// jmdict-simplified release.
var LatestReleaseURL = fmt.Sprintf("https://api.github.com/repos/%s/%s/releases/latest", repoOwner, repoName)

// Downloader fetches the English common dictionary from the latest release.
type Downloader struct {
	Client     *http.Client
	ReleaseURL string
	Logger     zerolog.Logger
}

// NewDownloader returns a Downloader pointed at the public release feed.
func NewDownloader() *Downloader {
	return &Downloader{
		Client:     &http.Client{Timeout: 5 * time.Minute},
		ReleaseURL: LatestReleaseURL,
		Logger:     zerolog.Nop(),
	}
}

// EnsureDictionary downloads the dictionary to path unless a file is
// already there.
func EnsureDictionary(ctx context.Context, path string) error {
	return NewDownloader().Ensure(ctx, path)
}

// Ensure checks if the dictionary exists at path. If not, it discovers the
// latest release, downloads it and extracts the JSON file.
func (d *Downloader) Ensure(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	d.Logger.Info().Str("path", path).Msg("dictionary not found, downloading")

	url, err := d.latestAssetURL(ctx)
	if err != nil {
		return fmt.Errorf("failed to find latest dictionary release: %w", err)
	}

	d.Logger.Info().Str("url", url).Msg("downloading dictionary")
	return d.downloadAndExtract(ctx, url, path)
}

func (d *Downloader) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	// GitHub rejects API requests without a User-Agent.
	req.Header.Set("User-Agent", "readerer-cli")

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return resp, nil
}

func (d *Downloader) latestAssetURL(ctx context.Context) (string, error) {
	resp, err := d.get(ctx, d.ReleaseURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var release struct {
		Assets []struct {
			Name               string `json:"name"`
			BrowserDownloadURL string `json:"browser_download_url"`
		} `json:"assets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", err
	}

	// Pattern: jmdict-eng-common-<version>.json.tgz
	for _, asset := range release.Assets {
		if strings.Contains(asset.Name, "jmdict-eng-common") &&
			(strings.HasSuffix(asset.Name, ".json.tgz") || strings.HasSuffix(asset.Name, ".json.gz")) {
			return asset.BrowserDownloadURL, nil
		}
	}
	return "", fmt.Errorf("no suitable dictionary asset found in latest release")
}

func (d *Downloader) downloadAndExtract(ctx context.Context, url, destPath string) error {
	resp, err := d.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return fmt.Errorf("no json file found in downloaded archive")
		}
		if err != nil {
			return fmt.Errorf("error reading tar archive: %w", err)
		}
		if header.Typeflag == tar.TypeReg && strings.HasSuffix(header.Name, ".json") {
			return writeFile(destPath, tr)
		}
	}
}

// writeFile writes r to path through a temporary file so a failed download
// never leaves a truncated dictionary behind.
func writeFile(path string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write to file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
