package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/pcsx2-updater/internal/config"
	"github.com/oshokin/pcsx2-updater/internal/console"
	"github.com/oshokin/pcsx2-updater/internal/domain/release"
	"github.com/oshokin/pcsx2-updater/internal/logger"
	"github.com/oshokin/pcsx2-updater/internal/repository/state"
	"github.com/oshokin/pcsx2-updater/internal/service/downloader"
	"github.com/oshokin/pcsx2-updater/internal/service/extractor"
	"github.com/oshokin/pcsx2-updater/internal/service/merger"
	"github.com/oshokin/pcsx2-updater/internal/service/resolver"
)

var (
	// errDeclined ends a run quietly after the user refused to install into an empty directory.
	errDeclined = errors.New("installation declined")
	// errEmulatorRunning is returned when the emulator is running and may not be terminated.
	errEmulatorRunning = fmt.Errorf("emulator is running: %w", release.ErrFileSystem)
	// errArchiveMissing is returned when the download reported success but left no file.
	errArchiveMissing = fmt.Errorf("download file not found: %w", release.ErrFileMissing)
	// errInvalidLogLevel is returned for an unknown --log-level value.
	errInvalidLogLevel = errors.New("invalid log level")
)

// Options are inputs accepted by the updater entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// WorkDir is the installation directory; empty means the updater's own directory.
	WorkDir string
	// Source overrides the configured source ("listing" or "feed").
	Source string
	// LogLevel overrides the configured log level.
	LogLevel string
	// AssumeYes answers the installation prompt with yes.
	AssumeYes bool
	// NoWait skips the final keypress.
	NoWait bool
	// In is where answers are read from; nil means os.Stdin.
	In io.Reader
	// Out is where prompts are written; nil means os.Stdout.
	Out io.Writer
}

type (
	fetcher interface {
		Fetch(ctx context.Context, locator, destination string) error
	}

	unpacker interface {
		Extract(ctx context.Context, archivePath string) error
	}

	folderMerger interface {
		MergeInto(ctx context.Context, sourceDir, destDir string) error
	}

	prompter interface {
		Confirm(ctx context.Context, question string) (bool, error)
		WaitKey(ctx context.Context, message string) error
	}
)

// runner holds the collaborators and settings of a single update execution.
// It is unexported; callers use Run(ctx, Options).
type runner struct {
	cfg        *config.Config
	workDir    string
	assumeYes  bool
	out        io.Writer
	resolver   resolver.Resolver
	downloader fetcher
	extractor  unpacker
	merger     folderMerger
	console    prompter
	processes  processLister
	state      state.Repository
}

// Run executes the update pipeline and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, loggerName)

	in, out := opts.In, opts.Out
	if in == nil {
		in = os.Stdin
	}

	if out == nil {
		out = os.Stdout
	}

	prompts := console.New(in, out)

	up, err := newRunner(opts, prompts, out)
	if err == nil {
		ctx = logger.WithKV(ctx, "dir", up.workDir)
		err = up.run(ctx)
	}

	if errors.Is(err, errDeclined) {
		logger.Info(ctx, "Update cancelled")
		return nil
	}

	if err != nil {
		logger.ErrorKV(ctx, "Update failed", "kind", release.Kind(err), "error", err)
	}

	if !opts.NoWait {
		if waitErr := prompts.WaitKey(ctx, waitMessage); waitErr != nil {
			logger.DebugKV(ctx, "Final keypress not received", "error", waitErr)
		}
	}

	return err
}

// newRunner loads settings, applies command-line overrides and wires the pipeline stages.
func newRunner(opts *Options, prompts prompter, out io.Writer) (*runner, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if source := strings.TrimSpace(opts.Source); source != "" {
		cfg.Source = source
	}

	if err = config.Validate(cfg); err != nil {
		return nil, err
	}

	if err = applyLogLevel(opts.LogLevel, cfg.LogLevel); err != nil {
		return nil, err
	}

	workDir := opts.WorkDir
	if workDir == "" {
		if workDir, err = defaultWorkDir(); err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
	}

	if workDir, err = filepath.Abs(workDir); err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	client := &http.Client{Timeout: cfg.Timeout}

	source, err := resolver.New(cfg, resolver.WithHTTPClient(client))
	if err != nil {
		return nil, err
	}

	return &runner{
		cfg:        cfg,
		workDir:    workDir,
		assumeYes:  opts.AssumeYes,
		out:        out,
		resolver:   source,
		downloader: downloader.New(downloader.WithHTTPClient(client)),
		extractor:  extractor.New(),
		merger:     merger.New(),
		console:    prompts,
		processes:  ps.Processes,
		state:      state.NewFileRepository(filepath.Join(workDir, state.DefaultStateFilename)),
	}, nil
}

// applyLogLevel sets the global level from the flag, falling back to the settings file.
func applyLogLevel(flagLevel, configLevel string) error {
	value := flagLevel
	if value == "" {
		value = configLevel
	}

	level, ok := logger.ParseLogLevel(value)
	if !ok {
		return fmt.Errorf("%w: %q", errInvalidLogLevel, value)
	}

	logger.SetLevel(level)

	return nil
}

// run walks the pipeline: detect, guard, resolve, download, extract, merge, report.
func (u *runner) run(ctx context.Context) error {
	logger.Info(ctx, "Looking for an existing installation")

	if err := u.detect(ctx); err != nil {
		return err
	}

	previous := u.loadPrevious(ctx)

	logger.Info(ctx, "Checking for running emulator processes")

	if err := u.guard(ctx); err != nil {
		return fmt.Errorf("guard: %w", err)
	}

	logger.InfoKV(ctx, "Resolving the newest build", "source", u.cfg.Source)

	candidate, err := u.resolver.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	logger.InfoKV(ctx, "Newest build found",
		"build", candidate.ID,
		"published", candidate.Published.Format("2006-01-02 15:04"))

	logComparison(ctx, previous, candidate)

	archivePath := filepath.Join(u.workDir, filepath.FromSlash(candidate.ArchiveName))

	logger.InfoKV(ctx, "Downloading", "url", candidate.DownloadURL)

	if err = u.download(ctx, candidate.DownloadURL, archivePath); err != nil {
		return fmt.Errorf("download: %w", err)
	}

	logger.InfoKV(ctx, "Extracting", "archive", archivePath)

	if err = u.extractor.Extract(ctx, archivePath); err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	folder := filepath.Join(u.workDir, filepath.FromSlash(candidate.FolderName))

	logger.InfoKV(ctx, "Moving files into place", "folder", folder)

	if err = u.merger.MergeInto(ctx, folder, u.workDir); err != nil {
		return fmt.Errorf("merge: %w", err)
	}

	installation := release.NewInstallation(candidate, u.cfg.Source, time.Now().UTC())
	if err = u.state.Save(ctx, installation); err != nil {
		logger.WarnKV(ctx, "Unable to record installed build", "error", err)
	}

	logger.Info(ctx, doneMessage)

	_, _ = fmt.Fprintln(u.out, doneMessage)

	return nil
}

// detect looks for the installation marker and asks before installing into an empty directory.
func (u *runner) detect(ctx context.Context) error {
	matches, err := filepath.Glob(filepath.Join(u.workDir, u.cfg.MarkerPattern))
	if err != nil {
		return fmt.Errorf("marker pattern %q: %w", u.cfg.MarkerPattern, err)
	}

	if len(matches) > 0 {
		logger.DebugKV(ctx, "Installation found", "marker", filepath.Base(matches[0]))
		return nil
	}

	if u.assumeYes {
		logger.Info(ctx, "No installation found, installing a fresh copy")
		return nil
	}

	question := fmt.Sprintf("PCSX2 was not found in %s. Download it here?", u.workDir)

	install, err := u.console.Confirm(ctx, question)
	if err != nil {
		return err
	}

	if !install {
		return errDeclined
	}

	return nil
}

// loadPrevious returns the build recorded by the last successful run, or nil.
func (u *runner) loadPrevious(ctx context.Context) *release.Installation {
	previous, err := u.state.Load(ctx)

	switch {
	case errors.Is(err, state.ErrNotFound):
		logger.Debug(ctx, "No previous update recorded")
		return nil
	case err != nil:
		logger.WarnKV(ctx, "Unable to read installed build", "error", err)
		return nil
	}

	logger.InfoKV(ctx, "Previously installed build",
		"build", previous.Build,
		"installed_at", previous.InstalledAt.Local().Format(time.DateTime))

	return previous
}

// guard refuses to touch the installation while the emulator is running,
// unless terminate_running allows killing it first.
func (u *runner) guard(ctx context.Context) error {
	running, err := findRunning(u.processes, u.cfg.ProcessNames)
	if err != nil {
		logger.WarnKV(ctx, "Unable to list processes", "error", err)
		return nil
	}

	if len(running) == 0 {
		return nil
	}

	if !u.cfg.TerminateRunning {
		return fmt.Errorf("%w: %s", errEmulatorRunning, executableNames(running))
	}

	return terminateProcesses(ctx, running)
}

// download fetches locator and checks the archive actually landed on disk.
func (u *runner) download(ctx context.Context, locator, archivePath string) error {
	if err := u.downloader.Fetch(ctx, locator, archivePath); err != nil {
		return err
	}

	exists, err := downloader.Exists(archivePath)
	if err != nil {
		return err
	}

	if !exists {
		return fmt.Errorf("%s: %w", filepath.Base(archivePath), errArchiveMissing)
	}

	return nil
}
