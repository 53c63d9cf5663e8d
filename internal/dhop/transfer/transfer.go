package transfer

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/OpenGG/dhop/internal/dhop/domain"
	"github.com/OpenGG/dhop/internal/dhop/storage"
)

// Mode selects between copying and moving.
type Mode int

const (
	Copy Mode = iota
	Move
)

func (m Mode) String() string {
	if m == Move {
		return "mv"
	}
	return "cp"
}

// Resolver is the subset of the location resolver used by transfers.
type Resolver interface {
	Resolve(token string) (string, error)
	Substitute(token string) string
}

// Item is the outcome for a single source.
type Item struct {
	Source string
	Target string
	Err    error
}

// Report lists every source processed by a transfer.
type Report struct {
	Items []Item
}

// Failed returns the items that could not be transferred.
func (r Report) Failed() []Item {
	var failed []Item
	for _, item := range r.Items {
		if item.Err != nil {
			failed = append(failed, item)
		}
	}
	return failed
}

// Service copies and moves files between resolved locations.
type Service struct {
	storage *storage.Storage
	logger  *zerolog.Logger
}

// New creates a transfer Service. logger may be nil.
func New(st *storage.Storage, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{storage: st, logger: logger}
}

// Run transfers every source argument to the final argument. Sources may name
// locations, carry location suffixes or be glob patterns. Failures on one source
// are recorded in the report and processing continues; the returned error wraps
// domain.ErrTransferFailed when any item failed. Errors that prevent the whole
// transfer (bad arity, unusable destination) are returned with the items that
// had already failed by then.
func (s *Service) Run(mode Mode, r Resolver, args []string) (Report, error) {
	if len(args) < 2 {
		return Report{}, fmt.Errorf("%w: %s requires at least a source and a destination", domain.ErrInvalidArguments, mode)
	}

	dest, destIsDir, err := s.destination(r, args[len(args)-1])
	if err != nil {
		return Report{}, err
	}

	var report Report
	var sources []string
	for _, token := range args[:len(args)-1] {
		matches, err := s.expand(r, token)
		if err != nil {
			report.Items = append(report.Items, Item{Source: token, Err: err})
			continue
		}
		sources = append(sources, matches...)
	}

	if len(sources) > 1 && !destIsDir {
		return report, fmt.Errorf("%w: %s of several sources needs a directory destination, got %s",
			domain.ErrInvalidArguments, mode, dest)
	}

	for _, src := range sources {
		target := dest
		if destIsDir {
			target = filepath.Join(dest, filepath.Base(src))
		}
		item := Item{Source: src, Target: target, Err: s.transferOne(mode, src, target)}
		if item.Err != nil {
			s.logger.Debug().Err(item.Err).Str("source", src).Str("target", target).Msg("transfer failed")
		} else {
			s.logger.Info().Str("op", mode.String()).Str("source", src).Str("target", target).Msg("transferred")
		}
		report.Items = append(report.Items, item)
	}

	if failed := report.Failed(); len(failed) > 0 {
		return report, fmt.Errorf("%w: %d of %d", domain.ErrTransferFailed, len(failed), len(report.Items))
	}
	return report, nil
}

// destination resolves the final argument. A destination that does not exist
// yet is accepted when its parent directory does, which renames on transfer.
func (s *Service) destination(r Resolver, token string) (string, bool, error) {
	path, err := r.Resolve(token)
	if err == nil {
		isDir, statErr := s.storage.IsDir(path)
		if statErr != nil {
			return "", false, fmt.Errorf("inspect destination: %w", statErr)
		}
		return path, isDir, nil
	}
	if !errors.Is(err, domain.ErrPathNotFound) && !errors.Is(err, domain.ErrStaleLocation) {
		return "", false, err
	}

	candidate := r.Substitute(strings.TrimRight(token, `/\`))
	if parentIsDir, _ := s.storage.IsDir(filepath.Dir(candidate)); !parentIsDir {
		return "", false, err
	}
	return candidate, false, nil
}

func (s *Service) expand(r Resolver, token string) ([]string, error) {
	if !hasMeta(token) {
		path, err := r.Resolve(token)
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	}

	pattern := r.Substitute(token)
	matches, err := s.storage.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: bad pattern %q: %w", domain.ErrInvalidArguments, token, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: nothing matches %s", domain.ErrPathNotFound, pattern)
	}
	return matches, nil
}

func (s *Service) transferOne(mode Mode, src, target string) error {
	if src == target {
		return fmt.Errorf("%s and %s are the same file", src, target)
	}
	info, err := s.storage.Stat(src)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrPathNotFound, src)
	}
	if info.IsDir() && within(target, src) {
		return fmt.Errorf("cannot %s directory %s into itself", mode, src)
	}

	if mode == Move {
		return s.storage.Move(src, target)
	}
	switch {
	case info.Mode().IsRegular():
		return s.storage.CopyFile(src, target)
	case info.IsDir():
		return s.storage.CopyTree(src, target)
	default:
		return fmt.Errorf("%s is neither a file nor a directory", src)
	}
}

func hasMeta(token string) bool {
	return strings.ContainsAny(token, `*?[`)
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
