package updater

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/pcsx2-updater/internal/config"
	"github.com/oshokin/pcsx2-updater/internal/domain/release"
	"github.com/oshokin/pcsx2-updater/internal/repository/state"
)

type fakeResolver struct {
	candidate *release.Candidate
	err       error
	calls     int
}

func (f *fakeResolver) Resolve(context.Context) (*release.Candidate, error) {
	f.calls++
	return f.candidate, f.err
}

// fakeFetcher writes content to the destination unless err is set.
type fakeFetcher struct {
	content string
	err     error
	skip    bool
	calls   []string
}

func (f *fakeFetcher) Fetch(_ context.Context, locator, destination string) error {
	f.calls = append(f.calls, locator)

	if f.err != nil {
		return f.err
	}

	if f.skip {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return err
	}

	return os.WriteFile(destination, []byte(f.content), 0o600)
}

// fakeExtractor stages the files map inside folder and deletes the archive.
type fakeExtractor struct {
	folder string
	files  map[string]string
	err    error
}

func (f *fakeExtractor) Extract(_ context.Context, archivePath string) error {
	if f.err != nil {
		return f.err
	}

	root := filepath.Join(filepath.Dir(archivePath), f.folder)
	for name, content := range f.files {
		target := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		if err := os.WriteFile(target, []byte(content), 0o600); err != nil {
			return err
		}
	}

	return os.Remove(archivePath)
}

type fakeMerger struct {
	source, dest string
	err          error
}

func (f *fakeMerger) MergeInto(_ context.Context, sourceDir, destDir string) error {
	f.source, f.dest = sourceDir, destDir
	return f.err
}

type fakePrompter struct {
	answer  bool
	asked   []string
	waited  int
	confirm error
}

func (f *fakePrompter) Confirm(_ context.Context, question string) (bool, error) {
	f.asked = append(f.asked, question)
	return f.answer, f.confirm
}

func (f *fakePrompter) WaitKey(context.Context, string) error {
	f.waited++
	return nil
}

type fakeProcess struct {
	pid  int
	name string
}

func (p fakeProcess) Pid() int           { return p.pid }
func (p fakeProcess) PPid() int          { return 0 }
func (p fakeProcess) Executable() string { return p.name }

func listOf(processes ...ps.Process) processLister {
	return func() ([]ps.Process, error) {
		return processes, nil
	}
}

type fixture struct {
	runner    *runner
	resolver  *fakeResolver
	fetcher   *fakeFetcher
	extractor *fakeExtractor
	merger    *fakeMerger
	prompter  *fakePrompter
	out       *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	workDir := t.TempDir()
	cfg := config.Default()
	require.NoError(t, config.Validate(cfg))

	f := &fixture{
		resolver: &fakeResolver{candidate: &release.Candidate{
			ID:          "v1.7.5000-x64",
			DownloadURL: "https://example.test/pcsx2.7z",
			ArchiveName: "pcsx2.7z",
			FolderName:  "pcsx2-v1.7.5000-x64",
			Published:   time.Date(2023, 8, 1, 12, 0, 0, 0, time.UTC),
		}},
		fetcher:   &fakeFetcher{content: "archive"},
		extractor: &fakeExtractor{folder: "pcsx2-v1.7.5000-x64", files: map[string]string{"pcsx2-qt.exe": "new"}},
		merger:    &fakeMerger{},
		prompter:  &fakePrompter{},
		out:       &bytes.Buffer{},
	}

	f.runner = &runner{
		cfg:        cfg,
		workDir:    workDir,
		out:        f.out,
		resolver:   f.resolver,
		downloader: f.fetcher,
		extractor:  f.extractor,
		merger:     f.merger,
		console:    f.prompter,
		processes:  listOf(),
		state:      state.NewFileRepository(filepath.Join(workDir, state.DefaultStateFilename)),
	}

	return f
}

func (f *fixture) install(t *testing.T) {
	t.Helper()

	require.NoError(t, os.WriteFile(filepath.Join(f.runner.workDir, "pcsx2-qt.exe"), []byte("old"), 0o600))
}

// TestRun_Pipeline walks every stage and merges the staged folder into the working directory.
func TestRun_Pipeline(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.install(t)

	require.NoError(t, f.runner.run(context.Background()))

	require.Empty(t, f.prompter.asked)
	require.Equal(t, []string{"https://example.test/pcsx2.7z"}, f.fetcher.calls)
	require.Equal(t, filepath.Join(f.runner.workDir, "pcsx2-v1.7.5000-x64"), f.merger.source)
	require.Equal(t, f.runner.workDir, f.merger.dest)
	require.Equal(t, "Done\n", f.out.String())

	installed, err := f.runner.state.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "v1.7.5000-x64", installed.Build)
	require.Equal(t, config.SourceFeed, installed.Source)
}

// TestRun_NestedArchiveName stages feed archives inside their folder.
func TestRun_NestedArchiveName(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.install(t)
	f.resolver.candidate.ArchiveName = "pcsx2-v1.7.5000-x64/pcsx2-v1.7.5000-x64.7z"
	f.extractor.folder = ""

	require.NoError(t, f.runner.run(context.Background()))
	require.FileExists(t, filepath.Join(f.runner.workDir, "pcsx2-v1.7.5000-x64", "pcsx2-qt.exe"))
	require.NoFileExists(t, filepath.Join(f.runner.workDir, "pcsx2-v1.7.5000-x64", "pcsx2-v1.7.5000-x64.7z"))
}

// TestRun_Declined stops before any network or filesystem work.
func TestRun_Declined(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.prompter.answer = false

	err := f.runner.run(context.Background())
	require.ErrorIs(t, err, errDeclined)
	require.Len(t, f.prompter.asked, 1)
	require.Contains(t, f.prompter.asked[0], f.runner.workDir)
	require.Zero(t, f.resolver.calls)
	require.Empty(t, f.fetcher.calls)

	entries, err := os.ReadDir(f.runner.workDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

// TestRun_ConfirmedFreshInstall continues after a yes.
func TestRun_ConfirmedFreshInstall(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.prompter.answer = true

	require.NoError(t, f.runner.run(context.Background()))
	require.Len(t, f.prompter.asked, 1)
	require.Equal(t, 1, f.resolver.calls)
}

// TestRun_AssumeYes never prompts.
func TestRun_AssumeYes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.runner.assumeYes = true

	require.NoError(t, f.runner.run(context.Background()))
	require.Empty(t, f.prompter.asked)
}

// TestRun_StageFailures aborts at the failing stage and keeps the error kind.
func TestRun_StageFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		prepare func(f *fixture)
		kind    error
	}{
		{
			name:    "resolver finds nothing",
			prepare: func(f *fixture) { f.resolver.err = release.ErrNotFound },
			kind:    release.ErrNotFound,
		},
		{
			name:    "download fails",
			prepare: func(f *fixture) { f.fetcher.err = release.ErrNetwork },
			kind:    release.ErrNetwork,
		},
		{
			name:    "download leaves no file",
			prepare: func(f *fixture) { f.fetcher.skip = true },
			kind:    release.ErrFileMissing,
		},
		{
			name:    "extraction fails",
			prepare: func(f *fixture) { f.extractor.err = release.ErrParse },
			kind:    release.ErrParse,
		},
		{
			name:    "merge fails",
			prepare: func(f *fixture) { f.merger.err = release.ErrFileSystem },
			kind:    release.ErrFileSystem,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.install(t)
			tt.prepare(f)

			err := f.runner.run(context.Background())
			require.ErrorIs(t, err, tt.kind)
			require.Empty(t, f.out.String())
			require.NoFileExists(t, filepath.Join(f.runner.workDir, state.DefaultStateFilename))
		})
	}
}

// TestGuard covers the running-emulator check.
func TestGuard(t *testing.T) {
	t.Parallel()

	t.Run("not running", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.runner.processes = listOf(fakeProcess{pid: 10, name: "explorer.exe"})

		require.NoError(t, f.runner.guard(context.Background()))
	})

	t.Run("running aborts", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.install(t)
		f.runner.processes = listOf(fakeProcess{pid: 10, name: "PCSX2-Qt.exe"})

		err := f.runner.run(context.Background())
		require.ErrorIs(t, err, errEmulatorRunning)
		require.ErrorContains(t, err, "PCSX2-Qt.exe")
		require.Zero(t, f.resolver.calls)
	})

	t.Run("own process ignored", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.runner.processes = listOf(fakeProcess{pid: os.Getpid(), name: "pcsx2.exe"})

		require.NoError(t, f.runner.guard(context.Background()))
	})

	t.Run("listing failure is not fatal", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.runner.processes = func() ([]ps.Process, error) { return nil, errors.New("access denied") }

		require.NoError(t, f.runner.guard(context.Background()))
	})
}

func TestFindRunning(t *testing.T) {
	t.Parallel()

	list := listOf(
		fakeProcess{pid: 1, name: "pcsx2.exe"},
		fakeProcess{pid: 2, name: "notepad.exe"},
		fakeProcess{pid: 3, name: "PCSX2X64.EXE"},
	)

	found, err := findRunning(list, []string{"pcsx2.exe", "pcsx2x64.exe"})
	require.NoError(t, err)
	require.Equal(t, "pcsx2.exe, PCSX2X64.EXE", executableNames(found))

	found, err = findRunning(list, nil)
	require.NoError(t, err)
	require.Empty(t, found)
}

// TestRunEntry_Declined checks the public entry point returns cleanly and skips the final keypress.
func TestRunEntry_Declined(t *testing.T) {
	workDir := t.TempDir()
	wd, wdErr := os.Getwd()
	require.NoError(t, wdErr)
	require.NoError(t, os.Chdir(workDir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	var out bytes.Buffer

	err := Run(context.Background(), &Options{
		WorkDir: workDir,
		In:      strings.NewReader("n"),
		Out:     &out,
	})
	require.NoError(t, err)
	require.NotContains(t, out.String(), waitMessage)

	entries, err := os.ReadDir(workDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

// TestRunEntry_BadConfig reports the failure and still waits for a key.
func TestRunEntry_BadConfig(t *testing.T) {
	workDir := t.TempDir()
	wd, wdErr := os.Getwd()
	require.NoError(t, wdErr)
	require.NoError(t, os.Chdir(workDir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	var out bytes.Buffer

	err := Run(context.Background(), &Options{
		WorkDir: workDir,
		Source:  "torrent",
		In:      strings.NewReader(""),
		Out:     &out,
	})
	require.Error(t, err)
	require.Contains(t, out.String(), waitMessage)
}

func TestCompareVersions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		installed, candidate string
		want                 int
	}{
		{installed: "v1.7.3300", candidate: "v1.7.3350", want: -1},
		{installed: "v2.1.10", candidate: "v2.1.9", want: 1},
		{installed: "v2.1.10", candidate: "2.1.10", want: 0},
		{installed: "v1.7.5000", candidate: "v2.0.0", want: -1},
	}

	for _, tt := range tests {
		got, err := compareVersions(tt.installed, tt.candidate)
		require.NoError(t, err)
		require.Equal(t, tt.want, got, "%s vs %s", tt.installed, tt.candidate)
	}

	_, err := compareVersions("nightly", "v2.1.9")
	require.Error(t, err)
}

// TestRun_RecordsVersionAcrossRuns keeps updating after a previous installation was recorded.
func TestRun_RecordsVersionAcrossRuns(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.install(t)
	f.resolver.candidate.Version = "v1.7.5000"

	require.NoError(t, f.runner.run(context.Background()))

	f.resolver.candidate.Version = "v1.7.5001"
	f.resolver.candidate.ID = "v1.7.5001-x64"

	require.NoError(t, f.runner.run(context.Background()))
	require.Len(t, f.fetcher.calls, 2)

	installed, err := f.runner.state.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "v1.7.5001", installed.Version)
}
