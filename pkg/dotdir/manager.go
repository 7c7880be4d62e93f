// Package dotdir resolves the .embedsvc/ directory that holds config.toml.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DirName is the name of the embedsvc directory.
	DirName = ".embedsvc"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path to an existing .embedsvc/ directory.
// Order of precedence is as follows:
//  1. Provided override (created if missing)
//  2. Local ./.embedsvc/ dir
//  3. Home ~/.embedsvc/ dir
//
// Returns an empty string when no override is given and neither directory
// exists.
func (m *Manager) Target(overrideDir string) (string, error) {
	if overrideDir != "" {
		return m.create(overrideDir)
	}

	if dir, ok := m.localDir(); ok {
		return filepath.Abs(dir)
	}

	if dir, ok := m.homeDir(); ok {
		return filepath.Abs(dir)
	}

	return "", nil
}

// Create resolves like Target but falls back to creating ~/.embedsvc/ rather
// than returning an empty path.
func (m *Manager) Create(overrideDir string) (string, error) {
	target, err := m.Target(overrideDir)
	if err != nil || target != "" {
		return target, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return m.create(filepath.Join(home, DirName))
}

func (m *Manager) create(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating embedsvc directory %s: %w", dir, err)
	}
	return filepath.Abs(dir)
}

func (m *Manager) localDir() (string, bool) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	dir := filepath.Join(cwd, DirName)
	return dir, isDir(dir)
}

func (m *Manager) homeDir() (string, bool) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}
	dir := filepath.Join(home, DirName)
	return dir, isDir(dir)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
