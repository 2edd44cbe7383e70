package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/oshokin/pcsx2-updater/internal/domain/release"
	"github.com/oshokin/pcsx2-updater/internal/logger"
)

const (
	// DefaultDirMode is used for directories created during extraction.
	DefaultDirMode os.FileMode = 0o755
	// DefaultFileMode is used for entries that carry no permission bits.
	DefaultFileMode os.FileMode = 0o644
)

type format int

const (
	formatUnknown format = iota
	formatSevenZip
	formatZip
)

//nolint:gochecknoglobals // Read-only signatures.
var (
	sevenZipMagic = []byte{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C}
	zipMagic      = []byte{'P', 'K', 0x03, 0x04}
)

var (
	// errUnknownFormat is returned for files that are neither 7-Zip nor ZIP.
	errUnknownFormat = fmt.Errorf("unsupported archive format: %w", release.ErrParse)
	// errCorruptArchive is returned when the archive cannot be read.
	errCorruptArchive = fmt.Errorf("corrupt archive: %w", release.ErrParse)
	// errIllegalPath is returned for entries that would land outside the target directory.
	errIllegalPath = fmt.Errorf("illegal entry path: %w", release.ErrFileSystem)
)

// entry is one archive member, independent of the archive format.
type entry struct {
	name string
	mode fs.FileMode
	open func() (io.ReadCloser, error)
}

// Extractor writes archive entries to disk.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract unpacks archivePath into the directory containing it, keeping the
// relative paths of the entries and overwriting existing files. The archive is
// deleted after a complete extraction and left in place on any failure.
func (e *Extractor) Extract(ctx context.Context, archivePath string) error {
	if _, err := os.Stat(archivePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("download file %q not found: %w", filepath.Base(archivePath), release.ErrFileMissing)
		}

		return fmt.Errorf("stat %s: %w: %w", archivePath, release.ErrFileSystem, err)
	}

	kind, err := detectFormat(archivePath)
	if err != nil {
		return err
	}

	root := filepath.Dir(archivePath)

	var count int

	switch kind {
	case formatSevenZip:
		count, err = e.extractSevenZip(ctx, archivePath, root)
	case formatZip:
		count, err = e.extractZip(ctx, archivePath, root)
	default:
		err = fmt.Errorf("%s: %w", filepath.Base(archivePath), errUnknownFormat)
	}

	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Extracted archive", "archive", filepath.Base(archivePath), "entries", count, "into", root)

	if err = os.Remove(archivePath); err != nil {
		return fmt.Errorf("delete archive: %w: %w", release.ErrFileSystem, err)
	}

	return nil
}

// detectFormat sniffs the archive signature.
func detectFormat(archivePath string) (format, error) {
	file, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return formatUnknown, fmt.Errorf("open %s: %w: %w", archivePath, release.ErrFileSystem, err)
	}

	defer func() {
		_ = file.Close()
	}()

	header := make([]byte, len(sevenZipMagic))

	n, err := io.ReadFull(file, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return formatUnknown, fmt.Errorf("read %s: %w: %w", archivePath, release.ErrFileSystem, err)
	}

	header = header[:n]

	switch {
	case bytes.HasPrefix(header, sevenZipMagic):
		return formatSevenZip, nil
	case bytes.HasPrefix(header, zipMagic):
		return formatZip, nil
	default:
		return formatUnknown, nil
	}
}

// writeEntries writes every entry below root.
func writeEntries(ctx context.Context, root string, entries []entry) (int, error) {
	for i, item := range entries {
		if err := ctx.Err(); err != nil {
			return i, err
		}

		if err := writeEntry(root, item); err != nil {
			return i, err
		}
	}

	return len(entries), nil
}

// writeEntry creates a directory or writes a regular file; other entry types are skipped.
func writeEntry(root string, item entry) error {
	target, err := entryTarget(root, item.name)
	if err != nil {
		return err
	}

	if target == "" {
		return nil
	}

	switch {
	case item.mode.IsDir():
		if err = os.MkdirAll(target, DefaultDirMode); err != nil {
			return fmt.Errorf("mkdir %s: %w: %w", target, release.ErrFileSystem, err)
		}

		return nil
	case !item.mode.IsRegular():
		return nil
	}

	if err = os.MkdirAll(filepath.Dir(target), DefaultDirMode); err != nil {
		return fmt.Errorf("mkdir for file %s: %w: %w", target, release.ErrFileSystem, err)
	}

	// Remove first so read-only leftovers of an older build are overwritten too.
	if info, statErr := os.Lstat(target); statErr == nil && !info.IsDir() {
		if err = os.Remove(target); err != nil {
			return fmt.Errorf("replace %s: %w: %w", target, release.ErrFileSystem, err)
		}
	}

	return copyEntry(target, item)
}

func copyEntry(target string, item entry) error {
	perm := item.mode.Perm()
	if perm == 0 {
		perm = DefaultFileMode
	}

	reader, err := item.open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w: %w", item.name, errCorruptArchive, err)
	}

	defer func() {
		_ = reader.Close()
	}()

	output, err := os.OpenFile(filepath.Clean(target), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create file %s: %w: %w", target, release.ErrFileSystem, err)
	}

	//nolint:gosec // Entries come from the release archive the user chose to install.
	_, copyErr := io.Copy(output, reader)
	closeErr := output.Close()

	if copyErr != nil {
		return fmt.Errorf("copy entry %s: %w: %w", item.name, errCorruptArchive, copyErr)
	}

	if closeErr != nil {
		return fmt.Errorf("close file %s: %w: %w", target, release.ErrFileSystem, closeErr)
	}

	return nil
}

// entryTarget maps an archive name onto the file system below root.
// An empty result means the entry is the root itself.
func entryTarget(root, name string) (string, error) {
	normalized := strings.ReplaceAll(name, `\`, "/")

	for _, part := range strings.Split(normalized, "/") {
		if part == ".." {
			return "", fmt.Errorf("%q: %w", name, errIllegalPath)
		}
	}

	relative := strings.TrimPrefix(path.Clean("/"+normalized), "/")
	if relative == "" {
		return "", nil
	}

	target := filepath.Join(root, filepath.FromSlash(relative))

	if err := ensureWithinRoot(root, target); err != nil {
		return "", fmt.Errorf("%q: %w", name, err)
	}

	return target, nil
}

func ensureWithinRoot(root, target string) error {
	root = filepath.Clean(root)
	target = filepath.Clean(target)

	if target == root || strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return nil
	}

	return errIllegalPath
}
