package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/afero"

	"github.com/OpenGG/dhop/internal/cli"
	"github.com/OpenGG/dhop/internal/dhop"
	"github.com/OpenGG/dhop/internal/dhop/config"
	"github.com/OpenGG/dhop/internal/dhop/paths"
	"github.com/OpenGG/dhop/internal/logging"
)

var (
	exitFunc  = os.Exit
	getwdFunc = os.Getwd
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitFunc(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := afero.NewOsFs()
	factory := func(verbosity int) (*dhop.Manager, error) {
		return newManager(fs, verbosity, stderr)
	}
	root := cli.NewRootCommand(factory, cli.NewPromptUI(), stdout, stderr)
	root.SetArgs(args)
	return root.Execute()
}

func newManager(fs afero.Fs, verbosity int, stderr io.Writer) (*dhop.Manager, error) {
	logger := logging.Setup(verbosity, stderr)

	cfg, err := config.Load(fs, paths.ConfigPath())
	if err != nil {
		return nil, err
	}
	home, err := homeDir(cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("home", home).Str("config", paths.ConfigPath()).Msg("configuration loaded")

	mgr, err := dhop.NewManager(fs, home, cfg, getwdFunc, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug().
		Str("store", mgr.Paths().StorePath()).
		Str("handoff", mgr.Paths().HandoffPath()).
		Msg("manager ready")
	return mgr, nil
}

// homeDir returns DHOP_HOME (or the home key of the config file) when set and
// the user's home directory otherwise.
func homeDir(cfg *config.Config) (string, error) {
	if custom := strings.TrimSpace(cfg.Home); custom != "" {
		return custom, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return home, nil
}
