package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks source, platform and URL validation.
func TestValidate(t *testing.T) {
	t.Parallel()

	require.Error(t, Validate(nil))

	// Unknown source.
	require.Error(t, Validate(&Config{Source: "ftp"}))

	// Unknown platform.
	require.Error(t, Validate(&Config{Platform: "arm"}))

	// Bad URL.
	require.Error(t, Validate(&Config{FeedURL: "not a url"}))

	// Negative timeout.
	require.Error(t, Validate(&Config{Timeout: -time.Second}))

	// Empty settings are completed with defaults.
	cfg := new(Config)
	require.NoError(t, Validate(cfg))
	require.Equal(t, SourceFeed, cfg.Source)
	require.Equal(t, DefaultListingURL, cfg.ListingURL)
	require.Equal(t, DefaultMarkerPattern, cfg.MarkerPattern)

	// Source is normalized.
	cfg = &Config{Source: " Listing "}
	require.NoError(t, Validate(cfg))
	require.Equal(t, SourceListing, cfg.Source)
}

// TestLoad_MissingDefaultFileYieldsDefaults ensures the settings file stays optional.
func TestLoad_MissingDefaultFileYieldsDefaults(t *testing.T) {
	wd, wdErr := os.Getwd()
	require.NoError(t, wdErr)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

// TestLoad_MissingExplicitFileFails ensures a named file must exist.
func TestLoad_MissingExplicitFileFails(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

// TestLoad_PartialFileKeepsDefaults merges a sparse file over the defaults.
func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source: listing\ntimeout: 30s\n"), DefaultFilePermissions))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, SourceListing, cfg.Source)
	require.Equal(t, 30*time.Second, cfg.Timeout)
	require.Equal(t, DefaultFeedURL, cfg.FeedURL)
	require.Equal(t, Default().ProcessNames, cfg.ProcessNames)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")

	settings := Default()
	settings.Source = SourceListing
	settings.ListingURL = "https://mirror.local/pcsx2/index.php"
	settings.TerminateRunning = true

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings, loaded)

	require.Error(t, Save(path, nil))
}
