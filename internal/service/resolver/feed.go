package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oshokin/pcsx2-updater/internal/domain/release"
	"github.com/oshokin/pcsx2-updater/internal/logger"
)

// feedArchiveExtension is the extension of feed archives.
const feedArchiveExtension = ".7z"

var (
	// errMalformedFeed is returned when the feed is not valid JSON.
	errMalformedFeed = fmt.Errorf("malformed release feed: %w", release.ErrParse)
	// errMissingNightlies is returned when the feed has no nightly releases collection.
	errMissingNightlies = fmt.Errorf("feed has no nightlyReleases.data: %w", release.ErrParse)
	// errMissingVersion is returned when the newest nightly carries no version.
	errMissingVersion = fmt.Errorf("newest nightly has no version: %w", release.ErrParse)
)

// FeedOptions describe how feed builds are turned into download URLs.
type FeedOptions struct {
	// FeedURL is the JSON document to read.
	FeedURL string
	// ReleasesURL is the base path archives are downloaded from.
	ReleasesURL string
	// Platform is "x64" or "x86".
	Platform string
	// Flavor is the fixed build suffix, e.g. "Qt".
	Flavor string
}

// FeedResolver reads the JSON release feed.
type FeedResolver struct {
	opts   FeedOptions
	client HTTPClient
}

type (
	// feedDocument is the subset of the feed the resolver reads.
	feedDocument struct {
		NightlyReleases *feedCollection `json:"nightlyReleases"`
	}

	feedCollection struct {
		Data []feedRelease `json:"data"`
	}

	feedRelease struct {
		Version     string `json:"version"`
		PublishedAt string `json:"publishedAt"`
		Notes       string `json:"description"`
	}
)

// NewFeedResolver creates a resolver for the feed described by opts.
func NewFeedResolver(opts FeedOptions, client HTTPClient) *FeedResolver {
	return &FeedResolver{
		opts:   opts,
		client: client,
	}
}

// Resolve downloads the feed and returns its newest nightly build.
func (r *FeedResolver) Resolve(ctx context.Context) (*release.Candidate, error) {
	logger.DebugKV(ctx, "Fetching release feed", "url", r.opts.FeedURL)

	data, err := fetchDocument(ctx, r.client, r.opts.FeedURL)
	if err != nil {
		return nil, err
	}

	newest, err := newestNightly(data)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", r.opts.FeedURL, err)
	}

	return r.candidate(newest), nil
}

// newestNightly returns the first entry of nightlyReleases.data.
func newestNightly(data []byte) (*feedRelease, error) {
	var doc feedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedFeed, err)
	}

	if doc.NightlyReleases == nil || doc.NightlyReleases.Data == nil {
		return nil, errMissingNightlies
	}

	if len(doc.NightlyReleases.Data) == 0 {
		return nil, release.ErrNotFound
	}

	newest := doc.NightlyReleases.Data[0]
	newest.Version = strings.TrimSpace(newest.Version)

	if newest.Version == "" {
		return nil, errMissingVersion
	}

	return &newest, nil
}

// ArchiveName builds the archive file name of a version,
// e.g. "pcsx2-v1.7.5000-windows-x64-Qt.7z".
func (r *FeedResolver) ArchiveName(version string) string {
	return fmt.Sprintf("pcsx2-%s-windows-%s-%s%s", version, r.opts.Platform, r.opts.Flavor, feedArchiveExtension)
}

func (r *FeedResolver) candidate(newest *feedRelease) *release.Candidate {
	fileName := r.ArchiveName(newest.Version)
	folder := strings.TrimSuffix(fileName, feedArchiveExtension)

	published, err := time.Parse(time.RFC3339, newest.PublishedAt)
	if err != nil {
		published = time.Time{}
	}

	return &release.Candidate{
		ID:          newest.Version,
		Version:     newest.Version,
		DownloadURL: strings.TrimRight(r.opts.ReleasesURL, "/") + "/" + newest.Version + "/" + fileName,
		// Extraction writes next to the archive, so it is staged inside its folder.
		ArchiveName: folder + "/" + fileName,
		FolderName:  folder,
		Published:   published,
		Record: release.Record{
			Revision: newest.Version,
			Date:     newest.PublishedAt,
			Build:    newest.Version,
			Change:   newest.Notes,
		},
	}
}
