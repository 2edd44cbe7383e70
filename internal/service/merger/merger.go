package merger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/pcsx2-updater/internal/domain/release"
	"github.com/oshokin/pcsx2-updater/internal/logger"
)

var (
	errMissingDirectory = fmt.Errorf("directory not found: %w", release.ErrFileMissing)
	errNotDirectory     = fmt.Errorf("not a directory: %w", release.ErrFileSystem)
	errMoveFailed       = fmt.Errorf("move failed: %w", release.ErrFileSystem)
)

// Option configures a Merger.
type Option func(*Merger)

// WithSelfPath overrides the path treated as the running executable.
func WithSelfPath(path string) Option {
	return func(m *Merger) {
		m.selfPath = path
	}
}

// Merger folds a source directory into a destination directory.
type Merger struct {
	selfPath string
}

// New creates a Merger that protects the current executable.
func New(opts ...Option) *Merger {
	m := &Merger{}

	if executable, err := os.Executable(); err == nil {
		m.selfPath = executable
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// MergeInto moves the direct children of sourceDir into destDir and removes sourceDir.
// Files go first, then directories. There is no rollback on failure.
func (m *Merger) MergeInto(ctx context.Context, sourceDir, destDir string) error {
	if err := requireDirectory(sourceDir); err != nil {
		return err
	}

	if err := requireDirectory(destDir); err != nil {
		return err
	}

	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return fmt.Errorf("read %s: %w", sourceDir, errors.Join(release.ErrFileSystem, err))
	}

	var files, dirs []os.DirEntry

	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry)
		} else {
			files = append(files, entry)
		}
	}

	for _, entry := range files {
		if err = ctx.Err(); err != nil {
			return err
		}

		source := filepath.Join(sourceDir, entry.Name())
		target := filepath.Join(destDir, entry.Name())

		if err = m.moveFile(ctx, source, target); err != nil {
			return err
		}
	}

	for _, entry := range dirs {
		if err = ctx.Err(); err != nil {
			return err
		}

		source := filepath.Join(sourceDir, entry.Name())
		target := filepath.Join(destDir, entry.Name())

		if err = moveDirectory(ctx, source, target); err != nil {
			return err
		}
	}

	if err = os.Remove(sourceDir); err != nil {
		return fmt.Errorf("remove %s: %w", sourceDir, errors.Join(errMoveFailed, err))
	}

	logger.InfoKV(ctx, "Merged build folder",
		"source", sourceDir,
		"files", len(files),
		"directories", len(dirs))

	return nil
}

func (m *Merger) moveFile(ctx context.Context, source, target string) error {
	if m.isSelf(target) {
		return replaceRunning(ctx, source, target)
	}

	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("remove %s: %w", target, errors.Join(errMoveFailed, err))
	}

	if err := os.Rename(source, target); err != nil {
		return fmt.Errorf("rename %s: %w", source, errors.Join(errMoveFailed, err))
	}

	logger.DebugKV(ctx, "Moved file", "target", target)

	return nil
}

func moveDirectory(ctx context.Context, source, target string) error {
	if _, err := os.Lstat(target); err == nil {
		logger.InfoKV(ctx, "Replacing directory", "target", target)

		if err = os.RemoveAll(target); err != nil {
			return fmt.Errorf("remove %s: %w", target, errors.Join(errMoveFailed, err))
		}
	}

	if err := os.Rename(source, target); err != nil {
		return fmt.Errorf("rename %s: %w", source, errors.Join(errMoveFailed, err))
	}

	return nil
}

// isSelf reports whether target is the file the current process runs from.
func (m *Merger) isSelf(target string) bool {
	if m.selfPath == "" {
		return false
	}

	selfInfo, err := os.Stat(m.selfPath)
	if err != nil {
		return false
	}

	targetInfo, err := os.Stat(target)
	if err != nil {
		return false
	}

	return os.SameFile(selfInfo, targetInfo)
}

func requireDirectory(path string) error {
	info, err := os.Stat(path)

	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%s: %w", path, errMissingDirectory)
	case err != nil:
		return fmt.Errorf("stat %s: %w", path, errors.Join(release.ErrFileSystem, err))
	case !info.IsDir():
		return fmt.Errorf("%s: %w", path, errNotDirectory)
	}

	return nil
}
