package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/pcsx2-updater/internal/config"
	"github.com/oshokin/pcsx2-updater/internal/domain/release"
)

// DefaultStateFilename is the state file name inside the working directory.
const DefaultStateFilename = "pcsx2-updater-state.yaml"

// Repository defines persistence operations for the installation record.
type Repository interface {
	Load(ctx context.Context) (*release.Installation, error)
	Save(ctx context.Context, installation *release.Installation) error
}

// FileRepository persists the installation record to a YAML file on disk.
type FileRepository struct {
	// path is the filesystem location of the state file.
	path string
	// mu protects concurrent access to the state file.
	mu sync.Mutex
}

var (
	// ErrNotFound is returned when the state file does not exist yet.
	ErrNotFound = errors.New("state not found")
	// errEmptyInstallation is returned when Save receives nil.
	errEmptyInstallation = errors.New("installation is not set")
)

// NewFileRepository creates a repository that reads and writes YAML at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Path returns the location of the state file.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the installation record from disk.
func (r *FileRepository) Load(_ context.Context) (*release.Installation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	var installation release.Installation
	if err = yaml.Unmarshal(contents, &installation); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	return &installation, nil
}

// Save writes the installation record to disk, replacing any previous one.
func (r *FileRepository) Save(_ context.Context, installation *release.Installation) error {
	if installation == nil {
		return errEmptyInstallation
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(installation)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	return nil
}
