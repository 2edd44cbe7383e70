package extractor

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
)

// extractZip unpacks a ZIP archive into root.
func (e *Extractor) extractZip(ctx context.Context, archivePath, root string) (int, error) {
	archive, err := zip.OpenReader(archivePath)

	switch {
	case errors.Is(err, zip.ErrInsecurePath):
		if archive != nil {
			_ = archive.Close()
		}

		return 0, fmt.Errorf("open %s: %w: %w", archivePath, errIllegalPath, err)
	case err != nil:
		return 0, fmt.Errorf("open %s: %w: %w", archivePath, errCorruptArchive, err)
	}

	defer func() {
		_ = archive.Close()
	}()

	entries := make([]entry, 0, len(archive.File))

	for _, file := range archive.File {
		file := file
		entries = append(entries, entry{
			name: file.Name,
			mode: file.Mode(),
			open: func() (io.ReadCloser, error) {
				return file.Open()
			},
		})
	}

	return writeEntries(ctx, root, entries)
}
