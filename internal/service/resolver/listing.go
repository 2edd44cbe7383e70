package resolver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/oshokin/pcsx2-updater/internal/domain/release"
	"github.com/oshokin/pcsx2-updater/internal/logger"
)

const (
	// listingTableSelector locates the table of recent builds.
	listingTableSelector = "table.listing"
	// listingArchiveName is where listing builds are staged.
	listingArchiveName = "pcsx2.7z"
	// listingFolderPrefix starts the extraction folder of listing builds.
	listingFolderPrefix = "pcsx2"
)

// Column positions of the listing table.
const (
	columnCommit = iota
	columnUsername
	columnDate
	columnBuild
	columnChange
)

// dateLayouts are tried in order when parsing the date column.
//
//nolint:gochecknoglobals // Read-only lookup table.
var dateLayouts = []string{
	time.DateTime,
	"2006-01-02 15:04",
	time.RFC3339,
	"01/02/2006 15:04:05",
	"01/02/2006",
	time.DateOnly,
}

// errMalformedPage is returned when the page cannot be parsed as HTML.
var errMalformedPage = fmt.Errorf("malformed listing page: %w", release.ErrParse)

// ListingResolver scrapes the buildbot HTML listing.
type ListingResolver struct {
	pageURL string
	client  HTTPClient
}

// NewListingResolver creates a resolver for the listing at pageURL.
func NewListingResolver(pageURL string, client HTTPClient) *ListingResolver {
	return &ListingResolver{
		pageURL: pageURL,
		client:  client,
	}
}

// Resolve downloads the listing and returns its newest build.
func (r *ListingResolver) Resolve(ctx context.Context) (*release.Candidate, error) {
	base, err := url.Parse(r.pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse listing url: %w", err)
	}

	logger.DebugKV(ctx, "Fetching build listing", "url", r.pageURL)

	page, err := fetchDocument(ctx, r.client, r.pageURL)
	if err != nil {
		return nil, err
	}

	candidates, err := ParseListing(base, bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	listing := release.NewListing(candidates)
	logger.DebugKV(ctx, "Parsed build listing", "rows", len(candidates), "usable", listing.Len())

	latest, err := listing.Latest()
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", r.pageURL, err)
	}

	return latest, nil
}

// ParseListing reads every data row of the listing table. Rows are returned
// in page order and unfiltered; a page without the table yields no rows.
// Link targets are resolved against base.
func ParseListing(base *url.URL, page io.Reader) ([]release.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(page)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedPage, err)
	}

	table := doc.Find(listingTableSelector).First()
	if table.Length() == 0 {
		return nil, nil
	}

	var candidates []release.Candidate

	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		// The first row holds the column titles.
		if i == 0 {
			return
		}

		cells := row.ChildrenFiltered("td")
		if cells.Length() <= 1 {
			return
		}

		candidates = append(candidates, newListingCandidate(base, readRecord(cells)))
	})

	return candidates, nil
}

// readRecord maps table cells onto a typed record.
func readRecord(cells *goquery.Selection) release.Record {
	var record release.Record

	cells.Each(func(i int, cell *goquery.Selection) {
		value := cellValue(cell)

		switch i {
		case columnCommit:
			record.Revision = value
		case columnUsername:
			record.Author = value
		case columnDate:
			record.Date = value
		case columnBuild:
			record.Build = value
		case columnChange:
			record.Change = value
		}
	})

	return record
}

// cellValue returns the link target of the first meaningful child of a cell,
// that child's text when it carries no link, or the raw cell markup when the
// cell has no children at all.
func cellValue(cell *goquery.Selection) string {
	child := firstMeaningfulChild(cell)
	if child == nil {
		markup, err := goquery.OuterHtml(cell)
		if err != nil {
			return ""
		}

		return strings.TrimSpace(markup)
	}

	if href, ok := child.Attr("href"); ok {
		return strings.TrimSpace(href)
	}

	return strings.TrimSpace(child.Text())
}

// firstMeaningfulChild skips comments and whitespace-only text nodes.
func firstMeaningfulChild(cell *goquery.Selection) *goquery.Selection {
	var found *goquery.Selection

	cell.Contents().EachWithBreak(func(_ int, child *goquery.Selection) bool {
		node := child.Get(0)

		switch node.Type {
		case html.ElementNode:
			found = child
		case html.TextNode:
			if strings.TrimSpace(node.Data) != "" {
				found = child
			}
		default:
		}

		return found == nil
	})

	return found
}

// newListingCandidate resolves the build link and the staging names of a row.
// Rows whose link is unusable are returned without a download URL so that the
// listing drops them.
func newListingCandidate(base *url.URL, record release.Record) release.Candidate {
	candidate := release.Candidate{
		ID:          record.Revision,
		ArchiveName: listingArchiveName,
		Published:   parseDate(record.Date),
		Record:      record,
	}

	if record.Build == "" || record.Build == release.NoBuild {
		return candidate
	}

	link, err := url.Parse(strings.ReplaceAll(record.Build, "&amp;", "&"))
	if err != nil {
		return candidate
	}

	query := link.Query()

	revision, platform := query.Get("rev"), query.Get("platform")
	if revision == "" || platform == "" {
		return candidate
	}

	candidate.ID = revision + "-" + platform
	candidate.Version = revision
	candidate.DownloadURL = base.ResolveReference(link).String()
	candidate.FolderName = strings.Join([]string{listingFolderPrefix, revision, platform}, "-")

	return candidate
}

// parseDate returns the zero time when no layout matches.
func parseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)

	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed
		}
	}

	return time.Time{}
}
