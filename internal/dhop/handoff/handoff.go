// Package handoff writes the change-directory instruction that the dhop shell
// wrapper sources once the process exits. A child process cannot change its
// parent's working directory, so this file is the only channel back to the shell.
package handoff

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/OpenGG/dhop/internal/dhop/storage"
)

// Shell selects the syntax of the emitted instruction.
type Shell string

const (
	// Posix emits `cd '<path>'` for sh, bash, zsh and friends.
	Posix Shell = "posix"
	// Cmd emits `cd /d "<path>"` for cmd.exe.
	Cmd Shell = "cmd"
)

// ParseShell validates a shell style name.
func ParseShell(value string) (Shell, error) {
	switch Shell(value) {
	case "":
		return Posix, nil
	case Posix, Cmd:
		return Shell(value), nil
	default:
		return "", fmt.Errorf("unknown hand-off shell %q (want %q or %q)", value, Posix, Cmd)
	}
}

// Writer owns the hand-off file.
type Writer struct {
	storage *storage.Storage
	path    string
	shell   Shell
	logger  *zerolog.Logger
}

// New creates a hand-off Writer. logger may be nil.
func New(st *storage.Storage, path string, shell Shell, logger *zerolog.Logger) *Writer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Writer{storage: st, path: path, shell: shell, logger: logger}
}

// Clear removes a hand-off file left by a previous run so that a failing
// command never replays an old directory change.
func (w *Writer) Clear() error {
	if err := w.storage.Remove(w.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear hand-off file: %w", err)
	}
	return nil
}

// Go writes the instruction to change to dir. dir must already be resolved.
func (w *Writer) Go(dir string) error {
	if dir == "" {
		return errors.New("hand-off: empty destination")
	}
	line := Command(w.shell, dir)
	if err := w.storage.WriteFileAtomic(w.path, []byte(line+"\n")); err != nil {
		return fmt.Errorf("write hand-off file: %w", err)
	}
	w.logger.Debug().Str("dir", dir).Str("file", w.path).Msg("navigation handed off")
	return nil
}

// Command renders the change-directory instruction for dir, quoted so the
// shell sees it as a single argument whatever whitespace it contains.
func Command(shell Shell, dir string) string {
	if shell == Cmd {
		return `cd /d "` + dir + `"`
	}
	return "cd " + QuotePosix(dir)
}

// QuotePosix single-quotes s, escaping embedded single quotes.
func QuotePosix(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
