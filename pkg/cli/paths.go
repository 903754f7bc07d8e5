package cli

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	// DefaultBaseDir is the per-user directory name under $HOME
	DefaultBaseDir = ".voxprint"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.yaml"
)

// Paths provides access to the per-user directory structure
type Paths struct {
	// HomeDir is the user's home directory
	HomeDir string
}

// NewPaths creates a Paths rooted at the current user's home directory
func NewPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{HomeDir: home}, nil
}

// BaseDir returns the base directory (~/.voxprint)
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// ConfigFile returns the config file path (~/.voxprint/config.yaml)
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.BaseDir(), DefaultConfigFile)
}

// ResolveConfig returns explicit when set. Otherwise it returns the
// per-user config file if it exists, or "" when there is none.
func (p *Paths) ResolveConfig(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	path := p.ConfigFile()
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return path, nil
}
