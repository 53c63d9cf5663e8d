// Package dispatch executes dhop operations against a store value.
//
// Execute receives the store loaded by the caller and returns the next store
// together with an Outcome; it never touches the store file or the hand-off
// file itself. The caller persists the returned store when Outcome.Mutated is
// set and hands Outcome.Navigate to the shell.
package dispatch

import (
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/OpenGG/dhop/internal/dhop/domain"
	"github.com/OpenGG/dhop/internal/dhop/resolver"
	"github.com/OpenGG/dhop/internal/dhop/store"
	"github.com/OpenGG/dhop/internal/dhop/transfer"
	"github.com/OpenGG/dhop/internal/dhop/validator"
)

// Outcome describes the effects of an operation beyond the store itself.
type Outcome struct {
	Navigate string           // directory to change to, empty for none
	Lines    []string         // output for the user
	Listing  *store.Store     // set by list
	Transfer *transfer.Report // set by cp and mv
	Mutated  bool             // the returned store differs from the input
}

// Options configures a Dispatcher.
type Options struct {
	ValidateLocations bool
}

// Dispatcher runs operations for one working directory.
type Dispatcher struct {
	fs        afero.Fs
	cwd       string
	opts      Options
	validator *validator.Validator
	transfer  *transfer.Service
	logger    *zerolog.Logger
}

// New creates a Dispatcher. logger may be nil.
func New(fs afero.Fs, cwd string, opts Options, transfers *transfer.Service, logger *zerolog.Logger) *Dispatcher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Dispatcher{
		fs:        fs,
		cwd:       cwd,
		opts:      opts,
		validator: validator.New(ReservedWords()),
		transfer:  transfers,
		logger:    logger,
	}
}

// Resolver builds a resolver over the given locations.
func (d *Dispatcher) Resolver(locations map[string]string) *resolver.Resolver {
	return resolver.New(d.fs, locations, d.cwd, resolver.WithLocationValidation(d.opts.ValidateLocations))
}

// CheckAmbiguous rejects a command word that also names a stored location, which
// only happens with stores written before names were validated. go and forget
// are exempt since they are how the user gets out of the situation.
func CheckAmbiguous(word string, op Operation, st store.Store) error {
	if op == OpGo || op == OpForget {
		return nil
	}
	if _, ok := st.Locations[word]; ok {
		return fmt.Errorf("%w: %q (use 'dhop go %s' to navigate there or 'dhop forget %s' to remove it)",
			domain.ErrAmbiguousReservedWord, word, word, word)
	}
	return nil
}

// Execute runs op with args against st. On error the returned store must be discarded.
func (d *Dispatcher) Execute(op Operation, args []string, st store.Store) (store.Store, Outcome, error) {
	next := st.Clone()
	r := d.Resolver(next.Locations)

	var (
		out Outcome
		err error
	)
	switch op {
	case OpGo:
		out, err = d.goTo(r, args)
	case OpSet:
		out, err = d.set(r, args, &next)
	case OpForget:
		out, err = d.forget(args, &next)
	case OpMark:
		out, err = d.mark(r, args, &next)
	case OpRecall:
		out, err = d.recall(r, args, next)
	case OpPath:
		out, err = d.path(r, args)
	case OpPush:
		out, err = d.push(r, args, &next)
	case OpPop:
		out, err = d.pop(args, &next)
	case OpList:
		listing := next.Clone()
		out = Outcome{Listing: &listing}
	case OpCopy:
		out, err = d.transferFiles(transfer.Copy, r, args)
	case OpMove:
		out, err = d.transferFiles(transfer.Move, r, args)
	default:
		err = fmt.Errorf("%w: operation %d", domain.ErrUnknownCommand, op)
	}
	if err != nil {
		return st, out, err
	}

	out.Mutated = !next.Equal(st)
	d.logger.Debug().
		Str("op", op.String()).
		Strs("args", args).
		Bool("mutated", out.Mutated).
		Str("navigate", out.Navigate).
		Msg("operation executed")
	return next, out, nil
}

// target resolves args to a directory, defaulting to the working directory.
func (d *Dispatcher) target(r *resolver.Resolver, args []string) (string, error) {
	if len(args) == 0 || (len(args) == 1 && args[0] == "") {
		return r.ResolveDir(d.cwd)
	}
	return r.ResolveDirArgs(args)
}

func (d *Dispatcher) goTo(r *resolver.Resolver, args []string) (Outcome, error) {
	if len(args) == 0 {
		return Outcome{}, fmt.Errorf("%w: go needs a location or path", domain.ErrInvalidArguments)
	}
	dir, err := r.ResolveDirArgs(args)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Navigate: dir}, nil
}

func (d *Dispatcher) set(r *resolver.Resolver, args []string, st *store.Store) (Outcome, error) {
	if len(args) == 0 {
		return Outcome{}, fmt.Errorf("%w: set needs a name", domain.ErrInvalidArguments)
	}
	name, err := d.validator.NormalizeName(args[0])
	if err != nil {
		return Outcome{}, fmt.Errorf("invalid location name %q: %w", args[0], err)
	}
	dir, err := d.target(r, args[1:])
	if err != nil {
		return Outcome{}, err
	}
	st.Locations[name] = dir
	d.logger.Info().Str("name", name).Str("path", dir).Msg("location set")
	return Outcome{}, nil
}

func (d *Dispatcher) forget(args []string, st *store.Store) (Outcome, error) {
	if len(args) == 0 || args[0] == "" {
		return Outcome{}, fmt.Errorf("%w: can't forget nothing", domain.ErrInvalidArguments)
	}
	for _, name := range args {
		if _, ok := st.Locations[name]; ok {
			delete(st.Locations, name)
			d.logger.Info().Str("name", name).Msg("location forgotten")
		}
	}
	return Outcome{}, nil
}

func (d *Dispatcher) mark(r *resolver.Resolver, args []string, st *store.Store) (Outcome, error) {
	dir, err := d.target(r, args)
	if err != nil {
		return Outcome{}, err
	}
	st.Mark = dir
	return Outcome{}, nil
}

func (d *Dispatcher) recall(r *resolver.Resolver, args []string, st store.Store) (Outcome, error) {
	if len(args) > 0 {
		return Outcome{}, fmt.Errorf("%w: recall takes no arguments", domain.ErrInvalidArguments)
	}
	if st.Mark == "" {
		return Outcome{}, domain.ErrMarkNotSet
	}
	dir, err := r.ResolveDir(st.Mark)
	if err != nil {
		return Outcome{}, fmt.Errorf("marked directory: %w", err)
	}
	return Outcome{Navigate: dir}, nil
}

func (d *Dispatcher) path(r *resolver.Resolver, args []string) (Outcome, error) {
	if len(args) != 1 {
		return Outcome{}, fmt.Errorf("%w: path needs exactly one location or path", domain.ErrInvalidArguments)
	}
	p, err := r.Resolve(args[0])
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Lines: []string{p}}, nil
}

func (d *Dispatcher) push(r *resolver.Resolver, args []string, st *store.Store) (Outcome, error) {
	dir, err := d.target(r, args)
	if err != nil {
		return Outcome{}, err
	}
	st.Push(d.cwd)
	return Outcome{Navigate: dir}, nil
}

func (d *Dispatcher) pop(args []string, st *store.Store) (Outcome, error) {
	all := false
	switch {
	case len(args) == 0:
	case len(args) == 1 && args[0] == "all":
		all = true
	default:
		return Outcome{}, fmt.Errorf("%w: pop takes no argument or 'all'", domain.ErrInvalidArguments)
	}
	if len(st.Stack) == 0 {
		return Outcome{}, domain.ErrEmptyStack
	}

	var dir string
	if all {
		dir = st.Stack[0]
		st.Stack = st.Stack[:0]
	} else {
		dir, _ = st.Pop()
	}
	if dir == "" {
		return Outcome{}, fmt.Errorf("%w: stack entry is empty, no path returned", domain.ErrPathNotFound)
	}

	// Stack entries were validated when pushed; a vanished entry is still
	// popped so that the stack can always be drained.
	if exists, _ := afero.DirExists(d.fs, dir); !exists {
		d.logger.Warn().Str("path", dir).Msg("popped directory no longer exists")
	}
	return Outcome{Navigate: dir}, nil
}

func (d *Dispatcher) transferFiles(mode transfer.Mode, r *resolver.Resolver, args []string) (Outcome, error) {
	report, err := d.transfer.Run(mode, r, args)
	return Outcome{Transfer: &report}, err
}

// IsCommandWord reports whether word is in the command table or handled by the CLI.
func IsCommandWord(word string) bool {
	if _, ok := wordTable[word]; ok {
		return true
	}
	return slices.Contains(CLIWords, word)
}
