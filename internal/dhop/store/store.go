// Package store holds dhop's persisted state: named locations, the mark and the
// directory stack, together with loading and saving them as a single JSON record.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/rs/zerolog"

	"github.com/OpenGG/dhop/internal/dhop/domain"
	"github.com/OpenGG/dhop/internal/dhop/storage"
)

// Store is the in-memory form of the persisted record.
type Store struct {
	Locations map[string]string `json:"locations" yaml:"locations"`
	Mark      string            `json:"mark" yaml:"mark"`
	Stack     []string          `json:"stack" yaml:"stack"`
}

// Default returns an empty store.
func Default() Store {
	return Store{Locations: map[string]string{}, Mark: "", Stack: []string{}}
}

// Clone returns a deep copy so operations can mutate without aliasing the original.
func (s Store) Clone() Store {
	out := Store{
		Locations: maps.Clone(s.Locations),
		Mark:      s.Mark,
		Stack:     slices.Clone(s.Stack),
	}
	return out.normalized()
}

// Equal reports whether two stores hold the same state.
func (s Store) Equal(other Store) bool {
	return s.Mark == other.Mark &&
		maps.Equal(s.Locations, other.Locations) &&
		slices.Equal(s.Stack, other.Stack)
}

// LocationNames returns the stored location names in sorted order.
func (s Store) LocationNames() []string {
	var names []string
	for name := range s.Locations {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Push appends path to the tail of the stack.
func (s *Store) Push(path string) {
	s.Stack = append(s.Stack, path)
}

// Pop removes and returns the tail of the stack.
func (s *Store) Pop() (string, bool) {
	if len(s.Stack) == 0 {
		return "", false
	}
	last := s.Stack[len(s.Stack)-1]
	s.Stack = s.Stack[:len(s.Stack)-1]
	return last, true
}

func (s Store) normalized() Store {
	if s.Locations == nil {
		s.Locations = map[string]string{}
	}
	if s.Stack == nil {
		s.Stack = []string{}
	}
	return s
}

// Marshal encodes the store as indented JSON terminated by a newline.
func Marshal(s Store) ([]byte, error) {
	data, err := json.MarshalIndent(s.normalized(), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Unmarshal decodes a persisted record. Unknown fields are rejected so a file
// that is not a dhop store is never mistaken for an empty one.
func Unmarshal(data []byte) (Store, error) {
	var s Store
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return Store{}, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after the store record")
		}
		return Store{}, fmt.Errorf("trailing data: %w", err)
	}
	return s.normalized(), nil
}

// Policy selects how Load reacts to an unreadable store file.
type Policy string

const (
	// Lenient degrades to the default store.
	Lenient Policy = "lenient"
	// Strict reports domain.ErrSerialization and halts.
	Strict Policy = "strict"
)

// ParsePolicy validates a policy name.
func ParsePolicy(value string) (Policy, error) {
	switch Policy(value) {
	case Lenient, Strict:
		return Policy(value), nil
	case "":
		return Lenient, nil
	default:
		return "", fmt.Errorf("unknown store policy %q (want %q or %q)", value, Lenient, Strict)
	}
}

// Preserver keeps a copy of a store file that is about to be discarded.
type Preserver interface {
	BackupFile(path string) (string, error)
}

// File binds the store to its location on disk.
type File struct {
	storage   *storage.Storage
	path      string
	policy    Policy
	preserver Preserver
	logger    *zerolog.Logger
}

// NewFile creates a File. preserver may be nil; logger may be nil.
func NewFile(st *storage.Storage, path string, policy Policy, preserver Preserver, logger *zerolog.Logger) *File {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &File{storage: st, path: path, policy: policy, preserver: preserver, logger: logger}
}

// Load reads the store. A missing file yields the default store. An unreadable
// file yields the default store under Lenient (after preserving a copy) and an
// error wrapping domain.ErrSerialization under Strict.
func (f *File) Load() (Store, error) {
	data, err := f.storage.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			f.logger.Debug().Str("path", f.path).Msg("no store file, using defaults")
			return Default(), nil
		}
		return f.recover(fmt.Errorf("read %s: %w", f.path, err))
	}

	s, err := Unmarshal(data)
	if err != nil {
		return f.recover(fmt.Errorf("decode %s: %w", f.path, err))
	}
	f.logger.Debug().
		Str("path", f.path).
		Int("locations", len(s.Locations)).
		Int("stack", len(s.Stack)).
		Msg("store loaded")
	return s, nil
}

func (f *File) recover(cause error) (Store, error) {
	if f.policy == Strict {
		return Store{}, fmt.Errorf("%w: %w", domain.ErrSerialization, cause)
	}

	event := f.logger.Warn().Err(cause).Str("path", f.path)
	if f.preserver != nil {
		if backup, err := f.backup(); err != nil {
			event = event.AnErr("backup_error", err)
		} else if backup != "" {
			event = event.Str("backup", backup)
		}
	}
	event.Msg("store unreadable, starting from an empty store")
	return Default(), nil
}

func (f *File) backup() (string, error) {
	target, err := f.storage.ResolveSymlink(f.path)
	if err != nil {
		return "", err
	}
	return f.preserver.BackupFile(target)
}

// Save writes the store atomically. When the store file is a symlink, as left
// by dotfile managers, the link is kept and its target is replaced.
func (f *File) Save(s Store) error {
	data, err := Marshal(s)
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	target, err := f.storage.ResolveSymlink(f.path)
	if err != nil {
		return fmt.Errorf("save store: %w", err)
	}
	if err := f.storage.WriteFileAtomic(target, data); err != nil {
		return fmt.Errorf("save store: %w", err)
	}
	f.logger.Debug().Str("path", f.path).Str("target", target).Msg("store saved")
	return nil
}
