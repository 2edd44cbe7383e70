package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"

	"github.com/oshokin/pcsx2-updater/internal/config"
	"github.com/oshokin/pcsx2-updater/internal/domain/release"
	"github.com/oshokin/pcsx2-updater/internal/version"
)

// maxDocumentSize caps how much of a listing page or feed is read into memory.
const maxDocumentSize = 8 << 20

var (
	// errBadHTTPStatus is returned when the source answers with anything but 200 OK.
	errBadHTTPStatus = fmt.Errorf("unexpected http status: %w", release.ErrNetwork)
	// errRequestFailed is returned when the request could not be completed.
	errRequestFailed = fmt.Errorf("request failed: %w", release.ErrNetwork)
	// errUnknownSource is returned by New for an unsupported source.
	errUnknownSource = errors.New("unknown source")
)

// Resolver returns the newest downloadable build of a source.
type Resolver interface {
	Resolve(ctx context.Context) (*release.Candidate, error)
}

// HTTPClient is the part of *http.Client the resolvers need.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures a resolver built by New.
type Option func(*settings)

type settings struct {
	client HTTPClient
	goarch string
}

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(client HTTPClient) Option {
	return func(s *settings) {
		if client != nil {
			s.client = client
		}
	}
}

// WithArch overrides the host architecture used to pick the platform tag.
func WithArch(goarch string) Option {
	return func(s *settings) {
		if goarch != "" {
			s.goarch = goarch
		}
	}
}

// New builds the resolver selected by cfg.Source.
//
//nolint:ireturn // Callers only depend on the Resolver behaviour.
func New(cfg *config.Config, opts ...Option) (Resolver, error) {
	s := &settings{
		client: http.DefaultClient,
		goarch: runtime.GOARCH,
	}

	for _, opt := range opts {
		opt(s)
	}

	switch cfg.Source {
	case config.SourceListing:
		return NewListingResolver(cfg.ListingURL, s.client), nil
	case config.SourceFeed:
		platform := cfg.Platform
		if platform == "" {
			platform = PlatformTag(s.goarch)
		}

		return NewFeedResolver(FeedOptions{
			FeedURL:     cfg.FeedURL,
			ReleasesURL: cfg.ReleasesURL,
			Platform:    platform,
			Flavor:      cfg.BuildFlavor,
		}, s.client), nil
	default:
		return nil, fmt.Errorf("%q: %w", cfg.Source, errUnknownSource)
	}
}

// PlatformTag maps a Go architecture to the tag used in archive names.
func PlatformTag(goarch string) string {
	switch goarch {
	case "amd64", "arm64":
		return "x64"
	default:
		return "x86"
	}
}

// fetchDocument downloads a listing page or feed into memory.
func fetchDocument(ctx context.Context, client HTTPClient, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", rawURL, err)
	}

	req.Header.Set("User-Agent", version.UserAgent())

	response, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", rawURL, errRequestFailed, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s, %s: %w", rawURL, response.Status, errBadHTTPStatus)
	}

	data, err := io.ReadAll(io.LimitReader(response.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", rawURL, errRequestFailed, err)
	}

	return data, nil
}
