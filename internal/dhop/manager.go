// Package dhop wires the store, resolver, dispatcher and hand-off file into the
// per-invocation lifecycle used by the command line.
package dhop

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/OpenGG/dhop/internal/dhop/backup"
	"github.com/OpenGG/dhop/internal/dhop/config"
	"github.com/OpenGG/dhop/internal/dhop/dispatch"
	"github.com/OpenGG/dhop/internal/dhop/handoff"
	"github.com/OpenGG/dhop/internal/dhop/paths"
	"github.com/OpenGG/dhop/internal/dhop/storage"
	"github.com/OpenGG/dhop/internal/dhop/store"
	"github.com/OpenGG/dhop/internal/dhop/transfer"
	"github.com/OpenGG/dhop/internal/logging"
)

// Manager runs dhop operations against the store in a home directory.
type Manager struct {
	fs        afero.Fs
	paths     *paths.PathBuilder
	storage   *storage.Storage
	store     *store.File
	backups   *backup.Service
	handoff   *handoff.Writer
	transfers *transfer.Service
	cfg       *config.Config
	getwd     func() (string, error)
	logger    *zerolog.Logger
}

// NewManager creates a Manager. cfg may be nil for defaults, logger may be nil
// to discard logs. getwd supplies the caller's working directory.
func NewManager(fs afero.Fs, homeDir string, cfg *config.Config, getwd func() (string, error), logger *zerolog.Logger) (*Manager, error) {
	if fs == nil {
		return nil, errors.New("filesystem cannot be nil")
	}
	if homeDir == "" {
		return nil, errors.New("home directory cannot be empty")
	}
	if getwd == nil {
		return nil, errors.New("working directory lookup cannot be nil")
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	policy, err := cfg.StorePolicy()
	if err != nil {
		return nil, err
	}
	shell, err := cfg.HandoffShell()
	if err != nil {
		return nil, err
	}

	pb := paths.New(homeDir)
	st := storage.New(fs)
	backups := backup.New(st, pb.BackupDir(), logging.Component(logger, "backup"))

	return &Manager{
		fs:        fs,
		paths:     pb,
		storage:   st,
		store:     store.NewFile(st, pb.StorePath(), policy, backups, logging.Component(logger, "store")),
		backups:   backups,
		handoff:   handoff.New(st, pb.HandoffPath(), shell, logging.Component(logger, "handoff")),
		transfers: transfer.New(st, logging.Component(logger, "transfer")),
		cfg:       cfg,
		getwd:     getwd,
		logger:    logger,
	}, nil
}

// Paths exposes the file locations the manager works with.
func (m *Manager) Paths() *paths.PathBuilder {
	return m.paths
}

// ClearHandoff removes any hand-off file left by a previous invocation, so the
// shell wrapper never replays an old navigation.
func (m *Manager) ClearHandoff() error {
	return m.handoff.Clear()
}

// Run loads the store, executes op and persists the result. word is the command
// word the user typed, used to detect a collision with a stored location name.
// On error the store file and hand-off file are left untouched, except that the
// Outcome of a partially failed cp or mv still carries its report.
func (m *Manager) Run(word string, op dispatch.Operation, args []string) (dispatch.Outcome, error) {
	st, err := m.store.Load()
	if err != nil {
		return dispatch.Outcome{}, err
	}
	if err := dispatch.CheckAmbiguous(word, op, st); err != nil {
		return dispatch.Outcome{}, err
	}

	d, err := m.dispatcher()
	if err != nil {
		return dispatch.Outcome{}, err
	}
	next, out, err := d.Execute(op, args, st)
	if err != nil {
		return out, err
	}

	if out.Mutated {
		if err := m.store.Save(next); err != nil {
			return out, fmt.Errorf("failed to save store: %w", err)
		}
	}
	if out.Navigate != "" {
		if err := m.handoff.Go(out.Navigate); err != nil {
			return out, err
		}
	}
	return out, nil
}

// LocationNames returns the stored location names in sorted order.
func (m *Manager) LocationNames() ([]string, error) {
	st, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	return st.LocationNames(), nil
}

// PruneBackups removes store backups older than the provided duration and returns the number removed.
func (m *Manager) PruneBackups(olderThan time.Duration) (int, error) {
	return m.backups.PruneBackups(olderThan)
}

// SetNow overrides the clock used for backups. Intended for tests.
func (m *Manager) SetNow(now func() time.Time) {
	m.backups.SetNow(now)
}

func (m *Manager) dispatcher() (*dispatch.Dispatcher, error) {
	cwd, err := m.getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine working directory: %w", err)
	}
	if !filepath.IsAbs(cwd) {
		return nil, fmt.Errorf("working directory %q is not absolute", cwd)
	}
	opts := dispatch.Options{ValidateLocations: m.cfg.Resolve.Validate}
	return dispatch.New(m.fs, cwd, opts, m.transfers, logging.Component(m.logger, "dispatch")), nil
}
