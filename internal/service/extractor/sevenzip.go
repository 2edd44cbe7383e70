package extractor

import (
	"context"
	"fmt"
	"io"

	"github.com/bodgit/sevenzip"
)

// extractSevenZip unpacks a 7-Zip archive into root.
func (e *Extractor) extractSevenZip(ctx context.Context, archivePath, root string) (int, error) {
	archive, err := sevenzip.OpenReader(archivePath)
	if err != nil {
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
			mode: file.FileInfo().Mode(),
			open: func() (io.ReadCloser, error) {
				return file.Open()
			},
		})
	}

	return writeEntries(ctx, root, entries)
}
