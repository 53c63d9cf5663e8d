package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/OpenGG/dhop/internal/dhop/store"
	"github.com/OpenGG/dhop/internal/dhop/transfer"
)

// Output formats accepted by list --format.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "25", Dark: "75"})

// styled reports whether w is a terminal worth decorating.
func styled(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type section struct {
	title string
	lines []string
}

// renderStore prints every non-empty section of st.
func renderStore(w io.Writer, st store.Store, format string) error {
	switch format {
	case formatJSON:
		data, err := store.Marshal(st)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(st); err != nil {
			return err
		}
		return enc.Close()
	case formatText, "":
		return renderText(w, st)
	default:
		return fmt.Errorf("unknown format %q (want %s, %s or %s)", format, formatText, formatJSON, formatYAML)
	}
}

func renderText(w io.Writer, st store.Store) error {
	var sections []section

	if len(st.Locations) > 0 {
		names := st.LocationNames()
		lines := make([]string, 0, len(names))
		for _, name := range names {
			lines = append(lines, fmt.Sprintf("%s: %s", name, st.Locations[name]))
		}
		sections = append(sections, section{title: "Locations", lines: lines})
	}
	if st.Mark != "" {
		sections = append(sections, section{title: "Mark", lines: []string{st.Mark}})
	}
	if len(st.Stack) > 0 {
		lines := make([]string, 0, len(st.Stack))
		for i := len(st.Stack) - 1; i >= 0; i-- {
			lines = append(lines, fmt.Sprintf("%3d: %s", len(st.Stack)-i, st.Stack[i]))
		}
		sections = append(sections, section{title: "Stack", lines: lines})
	}

	if len(sections) == 0 {
		_, err := fmt.Fprintln(w, "Nothing stored yet. Use 'dhop set <name>' to add a location.")
		return err
	}

	decorate := styled(w)
	var b strings.Builder
	for i, s := range sections {
		if i > 0 {
			b.WriteString("\n")
		}
		title := s.title
		if decorate {
			title = headingStyle.Render(title)
		}
		b.WriteString(title + "\n")
		b.WriteString(strings.Repeat("=", len(s.title)) + "\n")
		for _, line := range s.lines {
			b.WriteString(line + "\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// renderTransfer prints one line per processed source. Successes go to stdout
// and failures to stderr.
func renderTransfer(stdout, stderr io.Writer, mode transfer.Mode, report *transfer.Report) {
	if report == nil {
		return
	}
	for _, item := range report.Items {
		if item.Err != nil {
			fmt.Fprintf(stderr, "%s %s: %v\n", mode, item.Source, item.Err)
			continue
		}
		fmt.Fprintf(stdout, "%s -> %s\n", item.Source, item.Target)
	}
}
