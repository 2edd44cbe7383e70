package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/pcsx2-updater/internal/domain/release"
)

const listingPage = `<!DOCTYPE html>
<html><body>
<table class="listing">
  <tr><th>Commit</th><th>User</th><th>Date</th><th>Build</th><th>Change</th></tr>
  <tr>
    <td><a href="https://github.com/PCSX2/pcsx2/commit/aaa">v1.7.3300</a></td>
    <td>refractionpcsx2</td>
    <td>2024-01-01 10:00:00</td>
    <td><a href="/pcsx2/index.php?m=dl&amp;rev=v1.7.3300&amp;platform=windows-x86">Download</a></td>
    <td>GS: fix blending</td>
  </tr>
  <tr>
    <td><a href="https://github.com/PCSX2/pcsx2/commit/ccc">v1.7.3400</a></td>
    <td>lightningterror</td>
    <td>2024-03-01 08:00:00</td>
    <td>No build</td>
    <td>CI: broken</td>
  </tr>
  <tr>
    <td><a href="https://github.com/PCSX2/pcsx2/commit/bbb">v1.7.3350</a></td>
    <td>stenzek</td>
    <td>2024-02-01 09:30:00</td>
    <td> <a href="/pcsx2/index.php?m=dl&amp;amp;rev=v1.7.3350&amp;amp;platform=windows-x86">Download</a></td>
    <td>Qt: new settings</td>
  </tr>
  <tr><td colspan="5">Older builds are archived.</td></tr>
</table>
</body></html>`

func serveHTML(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pcsx2/index.php" {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server
}

// TestListingResolver_PicksNewestBuild checks date ordering, sentinel rows and link resolution.
func TestListingResolver_PicksNewestBuild(t *testing.T) {
	t.Parallel()

	server := serveHTML(t, listingPage, http.StatusOK)

	resolver := NewListingResolver(server.URL+"/pcsx2/index.php", server.Client())

	latest, err := resolver.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "v1.7.3350-windows-x86", latest.ID)
	require.Equal(t, "v1.7.3350", latest.Version)
	require.Equal(t, server.URL+"/pcsx2/index.php?m=dl&rev=v1.7.3350&platform=windows-x86", latest.DownloadURL)
	require.Equal(t, "pcsx2-v1.7.3350-windows-x86", latest.FolderName)
	require.Equal(t, "pcsx2.7z", latest.ArchiveName)
	require.Equal(t, "stenzek", latest.Record.Author)
	require.Equal(t, "https://github.com/PCSX2/pcsx2/commit/bbb", latest.Record.Revision)
	require.Equal(t, "Qt: new settings", latest.Record.Change)
}

// TestListingResolver_MissingTableIsNotFound treats an absent table as zero results.
func TestListingResolver_MissingTableIsNotFound(t *testing.T) {
	t.Parallel()

	server := serveHTML(t, "<html><body><p>maintenance</p></body></html>", http.StatusOK)

	_, err := NewListingResolver(server.URL+"/pcsx2/index.php", server.Client()).Resolve(context.Background())
	require.ErrorIs(t, err, release.ErrNotFound)
}

// TestListingResolver_OnlyNoBuildRowsIsNotFound never selects the sentinel.
func TestListingResolver_OnlyNoBuildRowsIsNotFound(t *testing.T) {
	t.Parallel()

	page := `<table class="listing">
<tr><th>c</th><th>u</th><th>d</th><th>b</th></tr>
<tr><td>r1</td><td>u</td><td>2024-01-01</td><td>No build</td></tr>
</table>`
	server := serveHTML(t, page, http.StatusOK)

	_, err := NewListingResolver(server.URL+"/pcsx2/index.php", server.Client()).Resolve(context.Background())
	require.ErrorIs(t, err, release.ErrNotFound)
}

// TestListingResolver_BadStatus reports a network failure.
func TestListingResolver_BadStatus(t *testing.T) {
	t.Parallel()

	server := serveHTML(t, "oops", http.StatusInternalServerError)

	_, err := NewListingResolver(server.URL+"/pcsx2/index.php", server.Client()).Resolve(context.Background())
	require.ErrorIs(t, err, release.ErrNetwork)
	require.ErrorIs(t, err, errBadHTTPStatus)
}

// TestParseListing_CellValues covers the link, text and raw-markup fallbacks.
func TestParseListing_CellValues(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("https://buildbot.example/pcsx2/index.php")
	require.NoError(t, err)

	page := `<table class="listing">
<tr><th>c</th><th>u</th><th>d</th><th>b</th><th>x</th></tr>
<tr><td><!-- note --><b>bold</b></td><td></td><td>2024-05-06</td><td><a href="/dl?rev=r&amp;platform=p">get</a></td><td>  plain  </td></tr>
</table>`

	candidates, err := ParseListing(base, strings.NewReader(page))
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	got := candidates[0]
	require.Equal(t, "bold", got.Record.Revision)
	require.Equal(t, "<td></td>", got.Record.Author)
	require.Equal(t, "plain", got.Record.Change)
	require.Equal(t, "https://buildbot.example/dl?rev=r&platform=p", got.DownloadURL)
	require.Equal(t, "pcsx2-r-p", got.FolderName)
	require.Equal(t, 2024, got.Published.Year())
}

// TestParseListing_UnusableLinks leaves rows without rev or platform undownloadable.
func TestParseListing_UnusableLinks(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("https://buildbot.example/")
	require.NoError(t, err)

	page := `<table class="listing">
<tr><th>c</th></tr>
<tr><td>r1</td><td>u</td><td>2024-01-01</td><td><a href="/dl?rev=r1">get</a></td></tr>
<tr><td>r2</td><td>u</td><td>not a date</td><td><a href="/dl?rev=r2&amp;platform=p">get</a></td></tr>
</table>`

	candidates, err := ParseListing(base, strings.NewReader(page))
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	require.False(t, candidates[0].HasLocator())
	require.True(t, candidates[1].HasLocator())
	require.True(t, candidates[1].Published.IsZero())
	require.Zero(t, release.NewListing(candidates).Len())
}
