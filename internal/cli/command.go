package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenGG/dhop/internal/dhop"
	"github.com/OpenGG/dhop/internal/dhop/dispatch"
	"github.com/OpenGG/dhop/internal/dhop/domain"
	"github.com/OpenGG/dhop/internal/dhop/transfer"
)

// ManagerFactory builds the Manager once global flags such as -v are parsed.
type ManagerFactory func(verbosity int) (*dhop.Manager, error)

type commandHelp struct {
	use   string
	short string
}

var operationHelp = map[dispatch.Operation]commandHelp{
	dispatch.OpGo:     {"go [location|path]", "Change to a stored location or a path (prompts when omitted)"},
	dispatch.OpSet:    {"set <name> [path]", "Bind a name to a directory (default: the current directory)"},
	dispatch.OpForget: {"forget <name>...", "Remove stored locations"},
	dispatch.OpMark:   {"mark [path]", "Remember a directory as the mark (default: the current directory)"},
	dispatch.OpRecall: {"recall", "Change to the marked directory"},
	dispatch.OpPath:   {"path <location|path>", "Print the absolute path a location or path resolves to"},
	dispatch.OpPush:   {"push [location|path]", "Save the current directory on the stack and change to a target"},
	dispatch.OpPop:    {"pop [all]", "Return to the last pushed directory, or the first one with 'all'"},
	dispatch.OpList:   {"list", "Show stored locations, the mark and the stack"},
	dispatch.OpCopy:   {"cp <source>... <destination>", "Copy files and directories between locations"},
	dispatch.OpMove:   {"mv <source>... <destination>", "Move files and directories between locations"},
}

type app struct {
	newManager ManagerFactory
	mgr        *dhop.Manager
	prompter   Prompter
	verbosity  int
	stdout     io.Writer
	stderr     io.Writer
}

// NewRootCommand constructs the root Cobra command for dhop.
func NewRootCommand(newManager ManagerFactory, prompter Prompter, stdout, stderr io.Writer) *cobra.Command {
	a := &app{newManager: newManager, prompter: prompter, stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:   "dhop [location|path]",
		Short: "Directory hopper",
		Long: "dhop bookmarks directories under short names and hops between them.\n" +
			"Run it through the dhop shell function so that navigation changes the shell's directory.",
		Args:              cobra.ArbitraryArgs,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		RunE:              a.runBare,
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.PersistentFlags().CountVarP(&a.verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug, -vvv trace)")

	for _, c := range dispatch.Commands {
		cmd.AddCommand(a.newOperationCommand(c))
	}
	cmd.AddCommand(a.newPruneCommand())
	cmd.SetHelpCommand(a.newHelpCommand(cmd))

	return cmd
}

// setup builds the manager and drops any hand-off file from a previous run.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	mgr, err := a.newManager(a.verbosity)
	if err != nil {
		return err
	}
	a.mgr = mgr
	return a.mgr.ClearHandoff()
}

func (a *app) runBare(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}
	out, err := a.mgr.Run(args[0], dispatch.OpGo, args)
	if err != nil {
		if errors.Is(err, domain.ErrPathNotFound) {
			return fmt.Errorf("%w: %q (see 'dhop help')", domain.ErrUnknownCommand, args[0])
		}
		return err
	}
	return a.render(cmd, dispatch.OpGo, out)
}

func (a *app) newOperationCommand(c dispatch.Command) *cobra.Command {
	help := operationHelp[c.Op]
	cmd := &cobra.Command{
		Use:     help.use,
		Short:   help.short,
		Aliases: c.Words[1:],
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.execute(cmd, c.Op, args)
		},
	}

	switch c.Op {
	case dispatch.OpGo:
		cmd.RunE = a.runGo
	case dispatch.OpList:
		cmd.Flags().StringP("format", "f", formatText, "Output format: text, json or yaml")
	}
	return cmd
}

func (a *app) execute(cmd *cobra.Command, op dispatch.Operation, args []string) error {
	out, err := a.mgr.Run(calledAs(cmd), op, args)
	if renderErr := a.render(cmd, op, out); renderErr != nil && err == nil {
		err = renderErr
	}
	return err
}

// runGo navigates to its argument, or lets the user pick a stored location.
func (a *app) runGo(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return a.execute(cmd, dispatch.OpGo, args)
	}

	names, err := a.mgr.LocationNames()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("%w: no stored locations, use 'dhop set <name>' first", domain.ErrInvalidArguments)
	}
	_, selected, err := a.prompter.Select("Select a location", names, "")
	if err != nil {
		return err
	}
	return a.execute(cmd, dispatch.OpGo, []string{selected})
}

func (a *app) render(cmd *cobra.Command, op dispatch.Operation, out dispatch.Outcome) error {
	for _, line := range out.Lines {
		fmt.Fprintln(a.stdout, line)
	}
	if out.Listing != nil {
		format, _ := cmd.Flags().GetString("format")
		if err := renderStore(a.stdout, *out.Listing, format); err != nil {
			return err
		}
	}
	if out.Transfer != nil {
		mode := transfer.Copy
		if op == dispatch.OpMove {
			mode = transfer.Move
		}
		renderTransfer(a.stdout, a.stderr, mode, out.Transfer)
	}
	return nil
}

func (a *app) newPruneCommand() *cobra.Command {
	var olderThan string
	var force bool

	cmd := &cobra.Command{
		Use:   "prune-backups",
		Short: "Remove old backups of unreadable store files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dur, err := dhop.ParseRetentionInterval(olderThan)
			if err != nil {
				return err
			}

			if !force {
				confirm, err := a.prompter.Confirm(fmt.Sprintf("Delete backups older than %s?", olderThan), false)
				if err != nil {
					return err
				}
				if !confirm {
					fmt.Fprintln(a.stdout, "Prune cancelled.")
					return nil
				}
			}

			removed, err := a.mgr.PruneBackups(dur)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Removed %d backup file(s).\n", removed)
			return nil
		},
	}

	cmd.Flags().StringVar(&olderThan, "older-than", "30d", "Age threshold for pruning backups (e.g. 30d, 12h)")
	cmd.Flags().BoolVar(&force, "force", false, "Do not prompt for confirmation")

	return cmd
}

// newHelpCommand shows help for every topic named, and for every command with
// "all". Unknown topics are reported once the known ones have been shown.
func (a *app) newHelpCommand(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "help [command...|all]",
		Short: "Help about any command, or 'all' for every command",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return root.Help()
			}

			var unknown []string
			for _, topic := range args {
				if topic == "all" {
					if err := showAllHelp(root, a.stdout); err != nil {
						return err
					}
					continue
				}
				target, _, err := root.Find([]string{topic})
				if err != nil || target == root {
					unknown = append(unknown, topic)
					continue
				}
				if err := target.Help(); err != nil {
					return err
				}
				fmt.Fprintln(a.stdout)
			}
			if len(unknown) > 0 {
				return fmt.Errorf("%w: unknown help topic %s", domain.ErrUnknownCommand, strings.Join(unknown, ", "))
			}
			return nil
		},
	}
}

func showAllHelp(root *cobra.Command, w io.Writer) error {
	if err := root.Help(); err != nil {
		return err
	}
	for _, sub := range root.Commands() {
		if !sub.IsAvailableCommand() {
			continue
		}
		fmt.Fprintln(w)
		if err := sub.Help(); err != nil {
			return err
		}
	}
	return nil
}

// calledAs returns the command word the user typed, falling back to the
// canonical name when the command was not run through Execute.
func calledAs(cmd *cobra.Command) string {
	if name := cmd.CalledAs(); name != "" {
		return name
	}
	return cmd.Name()
}
