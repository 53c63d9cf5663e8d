package cli

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/OpenGG/dhop/internal/dhop"
	"github.com/OpenGG/dhop/internal/dhop/domain"
)

const testHome = "/home/test"

type stubPrompter struct {
	selects  []selectResponse
	confirms []confirmResponse

	selectCalls  int
	confirmCalls int
	lastItems    []string
}

type selectResponse struct {
	index int
	value string
	err   error
}

type confirmResponse struct {
	value bool
	err   error
}

var errStubNoMore = errors.New("stub prompter: no more responses")

func (s *stubPrompter) Select(label string, items []string, defaultValue string) (int, string, error) {
	s.lastItems = items
	if s.selectCalls >= len(s.selects) {
		return 0, "", errStubNoMore
	}
	resp := s.selects[s.selectCalls]
	s.selectCalls++
	return resp.index, resp.value, resp.err
}

func (s *stubPrompter) Confirm(label string, defaultYes bool) (bool, error) {
	if s.confirmCalls >= len(s.confirms) {
		return false, errStubNoMore
	}
	resp := s.confirms[s.confirmCalls]
	s.confirmCalls++
	return resp.value, resp.err
}

type cliEnv struct {
	fs        afero.Fs
	cwd       string
	prompter  *stubPrompter
	stdout    bytes.Buffer
	stderr    bytes.Buffer
	verbosity int
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, dir := range []string{testHome, "/tmp/a", "/tmp/b", "/tmp/project/docs"} {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	if err := afero.WriteFile(fs, "/tmp/a/file.txt", []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return &cliEnv{fs: fs, cwd: "/tmp", prompter: &stubPrompter{}}
}

func (e *cliEnv) run(args ...string) error {
	e.stdout.Reset()
	e.stderr.Reset()
	factory := func(verbosity int) (*dhop.Manager, error) {
		e.verbosity = verbosity
		return dhop.NewManager(e.fs, testHome, nil, func() (string, error) { return e.cwd, nil }, nil)
	}
	root := NewRootCommand(factory, e.prompter, &e.stdout, &e.stderr)
	root.SetArgs(args)
	return root.Execute()
}

func (e *cliEnv) mustRun(t *testing.T, args ...string) {
	t.Helper()
	if err := e.run(args...); err != nil {
		t.Fatalf("dhop %s: %v", strings.Join(args, " "), err)
	}
}

func (e *cliEnv) handoff() string {
	data, err := afero.ReadFile(e.fs, filepath.Join(testHome, ".dhopcmd"))
	if err != nil {
		return ""
	}
	return string(data)
}

func TestSetThenPath(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "set", "docs", "/tmp/project/docs")
	env.mustRun(t, "path", "docs")

	if got := env.stdout.String(); got != "/tmp/project/docs\n" {
		t.Fatalf("unexpected path output %q", got)
	}
}

func TestAliases(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "add", "docs", "/tmp/project/docs")
	env.mustRun(t, "resolve", "docs/")
	if got := strings.TrimSpace(env.stdout.String()); got != "/tmp/project/docs" {
		t.Fatalf("unexpected resolve output %q", got)
	}

	env.mustRun(t, "unset", "docs")
	if err := env.run("path", "docs"); !errors.Is(err, domain.ErrPathNotFound) {
		t.Fatalf("expected ErrPathNotFound after unset, got %v", err)
	}
}

func TestBareTokenNavigates(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "set", "docs", "/tmp/project/docs")
	env.mustRun(t, "docs")

	if got := env.handoff(); got != "cd '/tmp/project/docs'\n" {
		t.Fatalf("unexpected hand-off %q", got)
	}
	if env.stdout.Len() != 0 {
		t.Fatalf("navigation should not print, got %q", env.stdout.String())
	}
}

func TestBareTokenUnknown(t *testing.T) {
	env := newCLIEnv(t)

	err := env.run("nowhere")
	if !errors.Is(err, domain.ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
	if env.handoff() != "" {
		t.Fatal("failed navigation left a hand-off file")
	}
}

func TestHandoffClearedOnEveryRun(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "go", "/tmp/a")
	if env.handoff() == "" {
		t.Fatal("expected hand-off file after go")
	}

	env.mustRun(t, "list")
	if env.handoff() != "" {
		t.Fatal("hand-off file survived a non-navigating command")
	}
}

func TestGoPromptsWithoutArguments(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "set", "zeta", "/tmp/b")
	env.mustRun(t, "set", "alpha", "/tmp/a")
	env.prompter.selects = []selectResponse{{index: 1, value: "zeta"}}

	env.mustRun(t, "go")

	if strings.Join(env.prompter.lastItems, ",") != "alpha,zeta" {
		t.Fatalf("unexpected prompt items %v", env.prompter.lastItems)
	}
	if got := env.handoff(); got != "cd '/tmp/b'\n" {
		t.Fatalf("unexpected hand-off %q", got)
	}
}

func TestGoPromptCancelled(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "set", "alpha", "/tmp/a")
	env.prompter.selects = []selectResponse{{err: ErrPromptCancelled}}

	if err := env.run("go"); !errors.Is(err, ErrPromptCancelled) {
		t.Fatalf("expected ErrPromptCancelled, got %v", err)
	}
	if env.handoff() != "" {
		t.Fatal("cancelled prompt wrote a hand-off file")
	}
}

func TestGoWithoutLocations(t *testing.T) {
	env := newCLIEnv(t)

	if err := env.run("go"); !errors.Is(err, domain.ErrInvalidArguments) {
		t.Fatalf("expected ErrInvalidArguments, got %v", err)
	}
	if env.prompter.selectCalls != 0 {
		t.Fatal("prompter should not be used without locations")
	}
}

func TestListText(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "set", "docs", "/tmp/project/docs")
	env.cwd = "/tmp/a"
	env.mustRun(t, "mark")
	env.mustRun(t, "push", "/tmp/b")

	env.mustRun(t, "list")

	want := "Locations\n=========\ndocs: /tmp/project/docs\n\n" +
		"Mark\n====\n/tmp/a\n\n" +
		"Stack\n=====\n  1: /tmp/a\n"
	if got := env.stdout.String(); got != want {
		t.Fatalf("unexpected list output:\n%s\nwant:\n%s", got, want)
	}
}

func TestListSkipsEmptySections(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "set", "docs", "/tmp/project/docs")

	env.mustRun(t, "list")

	out := env.stdout.String()
	if strings.Contains(out, "Mark") || strings.Contains(out, "Stack") {
		t.Fatalf("empty sections rendered: %q", out)
	}
}

func TestListEmptyStore(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "list")

	if !strings.Contains(env.stdout.String(), "Nothing stored yet") {
		t.Fatalf("unexpected empty output %q", env.stdout.String())
	}
}

func TestListFormats(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "set", "docs", "/tmp/project/docs")

	env.mustRun(t, "list", "--format", "json")
	if !strings.Contains(env.stdout.String(), `"docs": "/tmp/project/docs"`) {
		t.Fatalf("unexpected json output %q", env.stdout.String())
	}

	env.mustRun(t, "list", "-f", "yaml")
	out := env.stdout.String()
	if !strings.Contains(out, "locations:") || !strings.Contains(out, "docs: /tmp/project/docs") {
		t.Fatalf("unexpected yaml output %q", out)
	}

	if err := env.run("list", "--format", "xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestPopAllCommand(t *testing.T) {
	env := newCLIEnv(t)
	env.cwd = "/tmp/a"
	env.mustRun(t, "push", "/tmp/b")
	env.cwd = "/tmp/b"
	env.mustRun(t, "push", "/tmp/project/docs")

	env.mustRun(t, "pop", "all")
	if got := env.handoff(); got != "cd '/tmp/a'\n" {
		t.Fatalf("unexpected hand-off %q", got)
	}
	if err := env.run("pop"); !errors.Is(err, domain.ErrEmptyStack) {
		t.Fatalf("expected ErrEmptyStack, got %v", err)
	}
}

func TestAmbiguousReservedWord(t *testing.T) {
	env := newCLIEnv(t)
	legacy := `{"locations": {"mark": "/tmp/a"}, "mark": "", "stack": []}`
	if err := afero.WriteFile(env.fs, filepath.Join(testHome, ".dhop.json"), []byte(legacy), 0o600); err != nil {
		t.Fatalf("write store: %v", err)
	}

	err := env.run("mark")
	if !errors.Is(err, domain.ErrAmbiguousReservedWord) {
		t.Fatalf("expected ErrAmbiguousReservedWord, got %v", err)
	}
	if !strings.Contains(err.Error(), "dhop go mark") {
		t.Fatalf("error should explain the way out: %v", err)
	}

	env.mustRun(t, "go", "mark")
	if got := env.handoff(); got != "cd '/tmp/a'\n" {
		t.Fatalf("unexpected hand-off %q", got)
	}
	env.mustRun(t, "delete", "mark")
	env.mustRun(t, "mark")
}

func TestSetRejectsCommandWords(t *testing.T) {
	env := newCLIEnv(t)

	for _, name := range []string{"list", "add", "help", "prune-backups"} {
		if err := env.run("set", name, "/tmp/a"); !errors.Is(err, domain.ErrNameReserved) {
			t.Fatalf("set %s: expected ErrNameReserved, got %v", name, err)
		}
	}
}

func TestCopyReportsItems(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "set", "bee", "/tmp/b")
	env.cwd = "/tmp/a"

	env.mustRun(t, "cp", "file.txt", "bee")
	if got := env.stdout.String(); got != "/tmp/a/file.txt -> /tmp/b/file.txt\n" {
		t.Fatalf("unexpected cp output %q", got)
	}

	err := env.run("mv", "missing.txt", "file.txt", "/tmp/project/docs/")
	if !errors.Is(err, domain.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if !strings.Contains(env.stderr.String(), "missing.txt") {
		t.Fatalf("failure not reported: %q", env.stderr.String())
	}
	if exists, _ := afero.Exists(env.fs, "/tmp/a/file.txt"); exists {
		t.Fatal("mv should still move the valid source")
	}
}

func TestPruneBackupsCommand(t *testing.T) {
	env := newCLIEnv(t)
	oldFile := filepath.Join(testHome, ".dhop-backup", "old.json")
	if err := afero.WriteFile(env.fs, oldFile, []byte("old"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := env.fs.Chtimes(oldFile, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	env.prompter.confirms = []confirmResponse{{value: false}}
	env.mustRun(t, "prune-backups", "--older-than", "24h")
	if !strings.Contains(env.stdout.String(), "Prune cancelled.") {
		t.Fatalf("unexpected output %q", env.stdout.String())
	}

	env.mustRun(t, "prune-backups", "--older-than", "24h", "--force")
	if !strings.Contains(env.stdout.String(), "Removed 1 backup file(s).") {
		t.Fatalf("unexpected output %q", env.stdout.String())
	}
	if exists, _ := afero.Exists(env.fs, oldFile); exists {
		t.Fatal("expected backup to be removed")
	}

	if err := env.run("prune-backups", "--older-than", "soon", "--force"); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestNoArgumentsPrintsHelp(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t)

	out := env.stdout.String()
	if !strings.Contains(out, "Usage:") || !strings.Contains(out, "recall") {
		t.Fatalf("unexpected help output %q", out)
	}
}

func TestHelpForCommand(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "help", "forget")

	out := env.stdout.String()
	if !strings.Contains(out, "delete") || !strings.Contains(out, "unset") {
		t.Fatalf("help should list aliases: %q", out)
	}
}

func TestHelpForSeveralCommands(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "help", "mark", "push")

	out := env.stdout.String()
	if !strings.Contains(out, "mark [path]") || !strings.Contains(out, "push [location|path]") {
		t.Fatalf("help should cover every named command: %q", out)
	}
	if strings.Contains(out, "recall") {
		t.Fatalf("help should be limited to the named commands: %q", out)
	}
}

func TestHelpAll(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "help", "all")

	out := env.stdout.String()
	for _, want := range []string{"Usage:", "set <name> [path]", "pop [all]", "cp <source>... <destination>", "prune-backups"} {
		if !strings.Contains(out, want) {
			t.Fatalf("help all is missing %q: %q", want, out)
		}
	}
}

func TestHelpUnknownTopic(t *testing.T) {
	env := newCLIEnv(t)
	err := env.run("help", "recall", "bogus")
	if !errors.Is(err, domain.ErrUnknownCommand) || !strings.Contains(err.Error(), "bogus") {
		t.Fatalf("expected ErrUnknownCommand for bogus, got %v", err)
	}
	if !strings.Contains(env.stdout.String(), "Change to the marked directory") {
		t.Fatalf("known topics are still shown: %q", env.stdout.String())
	}
}

func TestVerbosityFlag(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "-vv", "list")

	if env.verbosity != 2 {
		t.Fatalf("expected verbosity 2, got %d", env.verbosity)
	}
}
