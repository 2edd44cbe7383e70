package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Source variants understood by the resolver.
const (
	// SourceListing scrapes the HTML build listing.
	SourceListing = "listing"
	// SourceFeed reads the JSON release feed.
	SourceFeed = "feed"
)

const (
	// DefaultConfigFilename is the default settings file name, looked up in the working directory.
	DefaultConfigFilename = "pcsx2-updater-settings.yaml"

	// DefaultListingURL is the buildbot page listing recent development builds.
	DefaultListingURL = "https://buildbot.orphis.net/pcsx2/index.php"

	// DefaultFeedURL is the JSON document describing the latest releases.
	DefaultFeedURL = "https://api.pcsx2.net/v1/latestReleasesAndPullRequests"

	// DefaultReleasesURL is the base path release archives are downloaded from.
	DefaultReleasesURL = "https://github.com/PCSX2/pcsx2/releases/download"

	// DefaultBuildFlavor is the build suffix of feed archives.
	DefaultBuildFlavor = "Qt"

	// DefaultMarkerPattern matches the emulator executable inside an installation.
	DefaultMarkerPattern = "pcsx2*.exe"

	// DefaultFilePermissions is the mode the settings file is written with.
	DefaultFilePermissions = 0o600
)

// Config holds the updater settings.
type Config struct {
	// Source selects the resolver: "listing" or "feed".
	Source string `yaml:"source"`
	// ListingURL is the HTML page scraped by the listing resolver.
	ListingURL string `yaml:"listing_url"`
	// FeedURL is the JSON document read by the feed resolver.
	FeedURL string `yaml:"feed_url"`
	// ReleasesURL is the base path feed archives are downloaded from.
	ReleasesURL string `yaml:"releases_url"`
	// BuildFlavor is the fixed suffix of feed archive names.
	BuildFlavor string `yaml:"build_flavor"`
	// Platform forces "x64" or "x86"; empty means derive it from the host.
	Platform string `yaml:"platform"`
	// MarkerPattern is the glob identifying an installation in the working directory.
	MarkerPattern string `yaml:"marker_pattern"`
	// ProcessNames are executables that must not be running while files are replaced.
	ProcessNames []string `yaml:"process_names"`
	// TerminateRunning kills running emulator processes instead of aborting.
	TerminateRunning bool `yaml:"terminate_running"`
	// Timeout bounds every HTTP request; zero waits indefinitely.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownSource is returned for a source that is neither listing nor feed.
	errUnknownSource = errors.New("unknown source")
	// errUnknownPlatform is returned for a platform other than x64 or x86.
	errUnknownPlatform = errors.New("unknown platform")
	// errNegativeTimeout is returned for a timeout below zero.
	errNegativeTimeout = errors.New("timeout must not be negative")
)

// Default returns the settings used when no file is present.
func Default() *Config {
	return &Config{
		Source:        SourceFeed,
		ListingURL:    DefaultListingURL,
		FeedURL:       DefaultFeedURL,
		ReleasesURL:   DefaultReleasesURL,
		BuildFlavor:   DefaultBuildFlavor,
		MarkerPattern: DefaultMarkerPattern,
		ProcessNames:  []string{"pcsx2.exe", "pcsx2-qt.exe", "pcsx2x64.exe"},
		LogLevel:      "info",
	}
}

// Load reads settings from path on top of Default and validates them.
// A missing file at the default location is not an error; an explicitly
// named file must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	cfg := Default()

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return cfg, nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the settings and fills defaults for empty optional fields.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	defaults := Default()

	cfg.Source = strings.ToLower(strings.TrimSpace(cfg.Source))
	if cfg.Source == "" {
		cfg.Source = defaults.Source
	}

	switch cfg.Source {
	case SourceListing, SourceFeed:
	default:
		return fmt.Errorf("%q: %w", cfg.Source, errUnknownSource)
	}

	switch cfg.Platform {
	case "", "x64", "x86":
	default:
		return fmt.Errorf("%q: %w", cfg.Platform, errUnknownPlatform)
	}

	if cfg.Timeout < 0 {
		return errNegativeTimeout
	}

	fillString(&cfg.ListingURL, defaults.ListingURL)
	fillString(&cfg.FeedURL, defaults.FeedURL)
	fillString(&cfg.ReleasesURL, defaults.ReleasesURL)
	fillString(&cfg.BuildFlavor, defaults.BuildFlavor)
	fillString(&cfg.MarkerPattern, defaults.MarkerPattern)
	fillString(&cfg.LogLevel, defaults.LogLevel)

	for name, raw := range map[string]string{
		"listing_url":  cfg.ListingURL,
		"feed_url":     cfg.FeedURL,
		"releases_url": cfg.ReleasesURL,
	} {
		if _, err := url.ParseRequestURI(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	if _, err := filepath.Match(cfg.MarkerPattern, ""); err != nil {
		return fmt.Errorf("invalid marker_pattern: %w", err)
	}

	return nil
}

func fillString(field *string, fallback string) {
	*field = strings.TrimSpace(*field)
	if *field == "" {
		*field = fallback
	}
}
