package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the idscan home directory.
	DefaultDirName = ".idscan"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// ResultsDBName is the SQLite result store file.
	ResultsDBName = "results.db"

	// RedisDataDirName is mounted into the local Redis container.
	RedisDataDirName = "redis"
)

// Dir represents the idscan home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.idscan).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// ResultsDBPath returns the default SQLite result store path.
func (d *Dir) ResultsDBPath() string {
	return filepath.Join(d.path, ResultsDBName)
}

// RedisDataPath returns the host directory backing the Redis container.
func (d *Dir) RedisDataPath() string {
	return filepath.Join(d.path, RedisDataDirName)
}

// EnsureExists creates the home directory and the Redis data directory.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.RedisDataPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create redis data directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
