package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/oshokin/pcsx2-updater/internal/domain/release"
	"github.com/oshokin/pcsx2-updater/internal/logger"
	"github.com/oshokin/pcsx2-updater/internal/version"
)

// DefaultDirMode is used for the staging directory of the archive.
const DefaultDirMode os.FileMode = 0o755

var (
	// errBadHTTPStatus is returned when the server answers with anything but 200 OK.
	errBadHTTPStatus = fmt.Errorf("unexpected http status: %w", release.ErrNetwork)
	// errEmptyBody is returned when the response carries no content.
	errEmptyBody = fmt.Errorf("response has no body: %w", release.ErrNetwork)
	// errRequestFailed is returned when the request could not be completed.
	errRequestFailed = fmt.Errorf("request failed: %w", release.ErrNetwork)
)

// HTTPClient is the part of *http.Client the downloader needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(client HTTPClient) Option {
	return func(d *Downloader) {
		if client != nil {
			d.client = client
		}
	}
}

// Downloader fetches archives over HTTP.
type Downloader struct {
	client HTTPClient
}

// New creates a Downloader using http.DefaultClient unless overridden.
func New(opts ...Option) *Downloader {
	d := &Downloader{
		client: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Fetch downloads locator into destination, truncating any existing file.
// Nothing is written when the status is not OK or the body is empty.
func (d *Downloader) Fetch(ctx context.Context, locator, destination string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", locator, err)
	}

	req.Header.Set("User-Agent", version.UserAgent())

	response, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", locator, errRequestFailed, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%s, %s: %w", locator, response.Status, errBadHTTPStatus)
	}

	if response.Body == nil || response.Body == http.NoBody || response.ContentLength == 0 {
		return fmt.Errorf("%s: %w", locator, errEmptyBody)
	}

	written, err := writeFile(destination, response.Body)
	if err != nil {
		return err
	}

	if written == 0 {
		_ = os.Remove(destination)

		return fmt.Errorf("%s: %w", locator, errEmptyBody)
	}

	logger.InfoKV(ctx, "Downloaded archive", "path", destination, "bytes", written)

	return nil
}

// writeFile streams body into path, creating parent directories as needed.
func writeFile(path string, body io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), DefaultDirMode); err != nil {
		return 0, fmt.Errorf("create staging directory: %w: %w", release.ErrFileSystem, err)
	}

	output, err := os.Create(filepath.Clean(path))
	if err != nil {
		return 0, fmt.Errorf("create %s: %w: %w", path, release.ErrFileSystem, err)
	}

	written, copyErr := io.Copy(output, body)
	closeErr := output.Close()

	if copyErr != nil {
		return written, fmt.Errorf("write %s: %w: %w", path, errRequestFailed, copyErr)
	}

	if closeErr != nil {
		return written, fmt.Errorf("close %s: %w: %w", path, release.ErrFileSystem, closeErr)
	}

	return written, nil
}

// Exists reports whether path names a regular file, as checked by the
// pipeline after every download.
func Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("stat %s: %w: %w", path, release.ErrFileSystem, err)
	}

	return info.Mode().IsRegular(), nil
}
