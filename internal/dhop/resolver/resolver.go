// Package resolver turns a user supplied token into an absolute filesystem path.
//
// A token is tried, in order, as an absolute path, as a stored location name
// (optionally followed by a path suffix, e.g. "docs/api/index.md"), and finally
// as a path relative to the working directory. Every result is checked against
// the filesystem, so callers only ever see paths that existed at resolution time.
package resolver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/OpenGG/dhop/internal/dhop/domain"
)

const separators = "/" + string(filepath.Separator)

// Error describes a token that could not be resolved.
type Error struct {
	Token    string
	Location string // set when the token named a stored location
	Path     string // the candidate path that was checked
	Err      error
}

func (e *Error) Error() string {
	switch {
	case errors.Is(e.Err, domain.ErrStaleLocation):
		return fmt.Sprintf("location %q is set, but does not refer to a valid path: %s", e.Location, e.Path)
	case errors.Is(e.Err, domain.ErrNotDirectory):
		return fmt.Sprintf("%s: %s", e.Err, e.Path)
	case e.Path != "":
		return fmt.Sprintf("%s: %s", e.Err, e.Path)
	default:
		return fmt.Sprintf("%s: %q", e.Err, e.Token)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Resolver resolves tokens against a set of stored locations and a working directory.
type Resolver struct {
	fs        afero.Fs
	locations map[string]string
	cwd       string
	validate  bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLocationValidation controls whether stored locations are checked against
// the filesystem. When disabled, a known name resolves to its stored path as-is.
func WithLocationValidation(enabled bool) Option {
	return func(r *Resolver) {
		r.validate = enabled
	}
}

// New creates a Resolver. cwd must be absolute.
func New(fs afero.Fs, locations map[string]string, cwd string, opts ...Option) *Resolver {
	r := &Resolver{
		fs:        fs,
		locations: locations,
		cwd:       filepath.Clean(cwd),
		validate:  true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveArgs joins args with single spaces and resolves the result, so a path
// containing spaces that the shell split into several words still resolves.
func (r *Resolver) ResolveArgs(args []string) (string, error) {
	return r.Resolve(strings.Join(args, " "))
}

// Resolve returns the normalized absolute path token refers to.
func (r *Resolver) Resolve(token string) (string, error) {
	path, _, err := r.resolve(token)
	return path, err
}

// ResolveDir resolves token and additionally requires the result to be a directory.
func (r *Resolver) ResolveDir(token string) (string, error) {
	path, trusted, err := r.resolve(token)
	if err != nil {
		return "", err
	}
	if trusted {
		return path, nil
	}
	if err := r.mustBeDir(token, path); err != nil {
		return "", err
	}
	return path, nil
}

// ResolveDirArgs is ResolveArgs followed by a directory check.
func (r *Resolver) ResolveDirArgs(args []string) (string, error) {
	return r.ResolveDir(strings.Join(args, " "))
}

// resolve reports trusted=true when the path came from a stored location that
// was not checked against the filesystem.
func (r *Resolver) resolve(token string) (path string, trusted bool, err error) {
	if token == "" {
		return "", false, &Error{Token: token, Err: domain.ErrInvalidArguments}
	}

	if filepath.IsAbs(token) {
		path := filepath.Clean(token)
		if err := r.mustExist(path); err != nil {
			return "", false, &Error{Token: token, Path: path, Err: err}
		}
		return path, false, nil
	}

	head, rest := split(token)
	if base, ok := r.locations[head]; ok {
		path := r.join(base, rest)
		if !r.validate {
			return path, true, nil
		}
		if err := r.mustExist(path); err != nil {
			if errors.Is(err, domain.ErrPathNotFound) {
				err = domain.ErrStaleLocation
			}
			return "", false, &Error{Token: token, Location: head, Path: path, Err: err}
		}
		return path, false, nil
	}

	path = r.join(head, rest)
	if err := r.mustExist(path); err != nil {
		return "", false, &Error{Token: token, Path: path, Err: err}
	}
	return path, false, nil
}

// Substitute expands a leading location name (or makes the token absolute
// against the working directory) without touching the filesystem. It is used
// for glob patterns and for destinations that do not exist yet.
func (r *Resolver) Substitute(token string) string {
	if filepath.IsAbs(token) {
		return filepath.Clean(token)
	}
	head, rest := split(token)
	if base, ok := r.locations[head]; ok {
		return r.join(base, rest)
	}
	return r.join(head, rest)
}

func (r *Resolver) join(base, rest string) string {
	if !filepath.IsAbs(base) {
		base = filepath.Join(r.cwd, base)
	}
	if rest == "" {
		return filepath.Clean(base)
	}
	return filepath.Join(base, rest)
}

func (r *Resolver) mustExist(path string) error {
	if _, err := r.fs.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.ErrPathNotFound
		}
		return fmt.Errorf("%w: %w", domain.ErrPathNotFound, err)
	}
	return nil
}

func (r *Resolver) mustBeDir(token, path string) error {
	info, err := r.fs.Stat(path)
	if err != nil {
		return &Error{Token: token, Path: path, Err: domain.ErrPathNotFound}
	}
	if !info.IsDir() {
		return &Error{Token: token, Path: path, Err: domain.ErrNotDirectory}
	}
	return nil
}

// split cuts token at its first path separator.
func split(token string) (head, rest string) {
	if i := strings.IndexAny(token, separators); i >= 0 {
		return token[:i], token[i+1:]
	}
	return token, ""
}
