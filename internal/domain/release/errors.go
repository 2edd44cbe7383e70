package release

import "errors"

var (
	// ErrNetwork covers failed requests, non-OK statuses and empty bodies.
	ErrNetwork = errors.New("network failure")
	// ErrParse covers missing tables, keys and malformed documents.
	ErrParse = errors.New("parse failure")
	// ErrFileMissing is reported when a staged archive or folder is absent.
	ErrFileMissing = errors.New("file missing")
	// ErrFileSystem covers permission and IO errors while writing, moving or deleting.
	ErrFileSystem = errors.New("file system failure")
	// ErrNotFound means the source listed no usable build.
	ErrNotFound = errors.New("no build found")
)

// Kind returns a short label for the failure class of err, suitable for log fields.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrFileMissing):
		return "file_missing"
	case errors.Is(err, ErrFileSystem):
		return "file_system"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "other"
	}
}
