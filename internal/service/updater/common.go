package updater

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	goversion "github.com/hashicorp/go-version"
	"github.com/mitchellh/go-ps"

	"github.com/oshokin/pcsx2-updater/internal/domain/release"
	"github.com/oshokin/pcsx2-updater/internal/logger"
)

const (
	// loggerName tags every log line of a run.
	loggerName = "pcsx2-updater"

	waitMessage = "Press any key to exit..."
	doneMessage = "Done"
)

// processLister returns a snapshot of the running processes.
type processLister func() ([]ps.Process, error)

// findRunning returns processes whose executable matches one of names, ignoring case
// and the current process.
func findRunning(list processLister, names []string) ([]ps.Process, error) {
	if len(names) == 0 {
		return nil, nil
	}

	processList, err := list()
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(names))
	for _, name := range names {
		wanted[strings.ToLower(name)] = struct{}{}
	}

	thisProcessID := os.Getpid()

	var found []ps.Process

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if _, ok := wanted[strings.ToLower(process.Executable())]; !ok {
			continue
		}

		found = append(found, process)
	}

	return found, nil
}

// terminateProcesses kills every process in processList.
func terminateProcesses(ctx context.Context, processList []ps.Process) error {
	for _, process := range processList {
		logger.InfoKV(ctx, "Terminating process",
			"executable", process.Executable(),
			"pid", process.Pid())

		runningProcess, err := os.FindProcess(process.Pid())
		if err != nil {
			return fmt.Errorf("find process %d: %w", process.Pid(), err)
		}

		if err = runningProcess.Kill(); err != nil {
			return fmt.Errorf("kill process %d: %w", process.Pid(), err)
		}
	}

	return nil
}

// executableNames joins the executable names of processList for log output.
func executableNames(processList []ps.Process) string {
	names := make([]string, 0, len(processList))
	for _, process := range processList {
		names = append(names, process.Executable())
	}

	return strings.Join(names, ", ")
}

// defaultWorkDir is the directory holding the updater binary, or the current
// directory when it cannot be determined.
func defaultWorkDir() (string, error) {
	executable, err := os.Executable()
	if err != nil {
		return os.Getwd()
	}

	resolved, err := filepath.EvalSymlinks(executable)
	if err == nil {
		executable = resolved
	}

	return filepath.Dir(executable), nil
}

// compareVersions orders two release labels such as "v1.7.3350" and "v2.1.10".
func compareVersions(installed, candidate string) (int, error) {
	installedVersion, err := goversion.NewVersion(installed)
	if err != nil {
		return 0, err
	}

	candidateVersion, err := goversion.NewVersion(candidate)
	if err != nil {
		return 0, err
	}

	return installedVersion.Compare(candidateVersion), nil
}

// logComparison reports how the resolved build relates to the installed one.
// The pipeline runs regardless, so a reinstall of the same build repairs the installation.
func logComparison(ctx context.Context, previous *release.Installation, candidate *release.Candidate) {
	if previous == nil || previous.Version == "" || candidate.Version == "" {
		return
	}

	order, err := compareVersions(previous.Version, candidate.Version)
	if err != nil {
		logger.DebugKV(ctx, "Versions are not comparable",
			"installed", previous.Version,
			"newest", candidate.Version,
			"error", err)

		return
	}

	switch {
	case order < 0:
		logger.InfoKV(ctx, "Update available", "installed", previous.Version, "newest", candidate.Version)
	case order == 0:
		logger.InfoKV(ctx, "Newest build is already installed, reinstalling", "version", candidate.Version)
	default:
		logger.WarnKV(ctx, "Installed build is newer than the source offers",
			"installed", previous.Version,
			"newest", candidate.Version)
	}
}
