package release

import "time"

// NoBuild is the value a listing shows in the build column when a revision has no downloadable build.
const NoBuild = "No build"

// Record keeps the raw fields a candidate was built from.
type Record struct {
	// Revision is the commit or version label of the build.
	Revision string
	// Author is the committer shown by the listing, empty for feeds.
	Author string
	// Date is the unparsed publish date.
	Date string
	// Build is the build locator as published: a relative link or a version string.
	Build string
	// Change is the free-form change description.
	Change string
}

// Candidate is one discoverable build of the emulator.
type Candidate struct {
	// ID identifies the build, e.g. "v1.7.3329-windows-x86" or "v2.1.0".
	ID string
	// Version is the release label of the build, e.g. "v1.7.3329".
	Version string
	// DownloadURL is the absolute URL of the archive.
	DownloadURL string
	// ArchiveName is where the archive is staged, relative to the working directory.
	ArchiveName string
	// FolderName is the extraction folder, relative to the working directory.
	FolderName string
	// Published is the parsed publish date; zero when the source gave none.
	Published time.Time
	// Record is what the source actually said about this build.
	Record Record
}

// HasLocator reports whether the candidate can be downloaded at all.
func (c *Candidate) HasLocator() bool {
	return c.DownloadURL != "" && c.Record.Build != "" && c.Record.Build != NoBuild
}
