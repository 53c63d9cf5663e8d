package paths

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// File and directory name constants for dhop state.
const (
	StoreFileName   = ".dhop.json"
	HandoffFileName = ".dhopcmd"
	BackupDirName   = ".dhop-backup"
	ConfigDirName   = "dhop"
	ConfigFileName  = "config.toml"
)

// PathBuilder provides methods to construct dhop paths relative to a home directory.
type PathBuilder struct {
	homeDir string
}

// New creates a new PathBuilder for the given home directory.
func New(homeDir string) *PathBuilder {
	return &PathBuilder{homeDir: homeDir}
}

// HomeDir returns the home directory the builder is rooted at.
func (p *PathBuilder) HomeDir() string {
	return p.homeDir
}

// StorePath returns the path to the persisted store.
func (p *PathBuilder) StorePath() string {
	return filepath.Join(p.homeDir, StoreFileName)
}

// HandoffPath returns the path of the file the shell wrapper sources after each run.
func (p *PathBuilder) HandoffPath() string {
	return filepath.Join(p.homeDir, HandoffFileName)
}

// BackupDir returns the directory where unreadable stores are preserved.
func (p *PathBuilder) BackupDir() string {
	return filepath.Join(p.homeDir, BackupDirName)
}

// ConfigPath returns the user configuration file, honouring XDG_CONFIG_HOME.
func ConfigPath() string {
	return filepath.Join(xdg.ConfigHome, ConfigDirName, ConfigFileName)
}
