package release

import "time"

// Installation describes the build last merged into a working directory.
type Installation struct {
	// Build is the candidate ID that was installed.
	Build string `yaml:"build"`
	// Version is the release label of the installed build.
	Version string `yaml:"version"`
	// Source is the resolver variant the build came from.
	Source string `yaml:"source"`
	// DownloadURL is where the archive was fetched from.
	DownloadURL string `yaml:"download_url"`
	// Published is the publish date reported by the source.
	Published time.Time `yaml:"published,omitempty"`
	// InstalledAt is when the merge finished.
	InstalledAt time.Time `yaml:"installed_at"`
}

// NewInstallation records candidate as installed from source at the given time.
func NewInstallation(candidate *Candidate, source string, installedAt time.Time) *Installation {
	return &Installation{
		Build:       candidate.ID,
		Version:     candidate.Version,
		Source:      source,
		DownloadURL: candidate.DownloadURL,
		Published:   candidate.Published,
		InstalledAt: installedAt,
	}
}
