package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/creastat/krishi"
)

// Local stores the signed-in user as a YAML file.
type Local struct {
	mu   sync.Mutex
	path string
}

// NewLocal returns a file store at path. The file is created on first Save.
func NewLocal(path string) *Local {
	return &Local{path: path}
}

// DefaultLocalPath is ~/.krishi/profile.yaml, or profile.yaml in the working
// directory when the home directory is unknown.
func DefaultLocalPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "profile.yaml"
	}
	return filepath.Join(home, ".krishi", "profile.yaml")
}

// Path returns the file location.
func (l *Local) Path() string { return l.path }

// Load reads the stored user. A missing file returns nil, nil.
func (l *Local) Load() (*krishi.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var u krishi.User
	if err := yaml.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", l.path, err)
	}
	return &u, nil
}

// Save writes u, replacing the previous file atomically.
func (l *Local) Save(u krishi.User) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := yaml.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("failed to create profile dir: %w", err)
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

// Clear removes the stored user.
func (l *Local) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove profile: %w", err)
	}
	return nil
}
