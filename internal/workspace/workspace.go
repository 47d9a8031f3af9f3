package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"subgen/internal/fileutil"
	"subgen/internal/logging"
	"subgen/internal/services"
)

const (
	lockFileName = ".lock"
	stageName    = "workspace"
)

// Derived-file suffixes appended to a source base name.
const (
	SuffixAudio     = ".wav"
	SuffixVideoCopy = "_temp.mp4"
	SuffixRendered  = "_output.mp4"
	SuffixSRT       = ".srt"
	SuffixASS       = ".ass"
	SuffixBundle    = ".zip"
)

// Manager owns the flat temp directory that holds every derived artifact.
type Manager struct {
	dir    string
	lock   *flock.Flock
	logger *slog.Logger
}

// New prepares the workspace directory.
func New(dir string, logger *slog.Logger) (*Manager, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, services.Wrap(services.KindConfig, stageName, "open", "workspace directory not configured", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.KindStorage, stageName, "open", "create workspace directory", err)
	}
	return &Manager{
		dir:    dir,
		lock:   flock.New(filepath.Join(dir, lockFileName)),
		logger: logging.NewComponentLogger(logger, "workspace"),
	}, nil
}

// Dir returns the workspace root.
func (m *Manager) Dir() string {
	return m.dir
}

// BaseName strips the directory and extension from a source filename.
func BaseName(sourceName string) string {
	base := filepath.Base(strings.TrimSpace(sourceName))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ResolvePath maps a source filename to a workspace path by replacing its
// extension with suffix. The mapping is deterministic.
func (m *Manager) ResolvePath(sourceName, suffix string) string {
	return filepath.Join(m.dir, BaseName(sourceName)+suffix)
}

// Exists reports whether a derived file is present and non-empty.
func (m *Manager) Exists(path string) bool {
	return fileutil.NonEmpty(path)
}

// Clear removes every workspace entry except the lock file. A missing
// workspace is not an error.
func (m *Manager) Clear() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return services.Wrap(services.KindStorage, stageName, "clear", "read workspace directory", err)
	}
	removed := 0
	for _, entry := range entries {
		if entry.Name() == lockFileName {
			continue
		}
		target := filepath.Join(m.dir, entry.Name())
		if err := os.RemoveAll(target); err != nil {
			return services.Wrap(services.KindStorage, stageName, "clear", fmt.Sprintf("remove %s", entry.Name()), err)
		}
		removed++
	}
	m.logger.Info("workspace cleared",
		logging.String(logging.FieldEventType, "workspace_cleared"),
		logging.String("dir", m.dir),
		logging.Int("entries_removed", removed),
	)
	return nil
}

// Lock takes the exclusive session lock for this workspace.
func (m *Manager) Lock() error {
	ok, err := m.lock.TryLock()
	if err != nil {
		return services.Wrap(services.KindStorage, stageName, "lock", "acquire workspace lock", err)
	}
	if !ok {
		return services.WithHint(
			services.Wrap(services.KindPrecondition, stageName, "lock", "workspace is in use by another subgen process", nil),
			"wait for the other run to finish or point workspace_dir elsewhere",
		)
	}
	return nil
}

// Unlock releases the session lock.
func (m *Manager) Unlock() error {
	if err := m.lock.Unlock(); err != nil {
		return services.Wrap(services.KindStorage, stageName, "unlock", "release workspace lock", err)
	}
	return nil
}

// FreeBytes reports the space available to unprivileged users on the
// workspace filesystem.
func (m *Manager) FreeBytes() (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(m.dir, &stat); err != nil {
		return 0, services.Wrap(services.KindStorage, stageName, "statfs", "query free space", err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// CopyInto streams src to dst inside the workspace.
func (m *Manager) CopyInto(src, dst string) error {
	if err := fileutil.CopyFile(src, dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if _, statErr := os.Stat(src); statErr != nil {
				return services.Wrap(services.KindNotFound, stageName, "copy", fmt.Sprintf("source %s not found", src), err)
			}
		}
		return services.Wrap(services.KindStorage, stageName, "copy", fmt.Sprintf("copy %s", filepath.Base(src)), err)
	}
	return nil
}
