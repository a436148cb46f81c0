package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/macropower/stitch/pkg/config"
)

const (
	styleAuto  = "auto"
	stylePlain = "plain"

	defaultWordWrap = 100
)

type RulesArgs struct {
	Style string
}

func (ra *RulesArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ra.Style, "style", styleAuto,
		"Glamour style (auto, plain, dark, light, notty, ascii, dracula, ...)")

	err := cmd.RegisterFlagCompletionFunc("style", cobra.FixedCompletions(
		[]string{styleAuto, stylePlain, "dark", "light", "notty", "ascii", "dracula", "pink", "tokyo-night"},
		cobra.ShellCompDirectiveNoFileComp,
	))
	if err != nil {
		panic(err)
	}
}

func NewRulesCmd(ra *RootArgs) *cobra.Command {
	args := &RulesArgs{}

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the configured module groups",
		Long: `List the configured module groups in the order they are applied.

With --style auto, the table is rendered with glamour on a terminal and
printed as plain markdown otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := ra.LoadProject(cmd, "")
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			md := rulesMarkdown(p)

			style := args.Style
			if style == styleAuto && !isTerminal(out) {
				style = stylePlain
			}

			if style != stylePlain {
				md, err = renderMarkdown(md, style, wordWrap(out))
				if err != nil {
					return err
				}
			}

			_, err = fmt.Fprint(out, md)
			if err != nil {
				return fmt.Errorf("write output: %w", err)
			}

			return nil
		},
	}

	args.AddFlags(cmd)

	return cmd
}

func renderMarkdown(md, style string, width int) (string, error) {
	styleOpt := glamour.WithStandardStyle(style)
	if style == styleAuto {
		styleOpt = glamour.WithAutoStyle()
	}

	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("create markdown renderer: %w", err)
	}

	s, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}

	return s, nil
}

func wordWrap(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return defaultWordWrap
	}

	width, _, err := term.GetSize(int(f.Fd())) //nolint:gosec // G115: fd fits in int.
	if err != nil || width <= 0 {
		return defaultWordWrap
	}

	return width
}

func rulesMarkdown(p *config.Project) string {
	var sb strings.Builder

	sb.WriteString("# Rules\n\n")
	sb.WriteString("Configuration: `" + p.Path + "`\n\n")

	if len(p.Rules) == 0 {
		sb.WriteString("No module groups are configured.\n")

		return sb.String()
	}

	sb.WriteString("| # | Name | Selector | Data modules | Documents | Replaces |\n")
	sb.WriteString("|---|---|---|---|---|---|\n")

	for _, r := range p.Rules {
		modules := make([]string, 0, len(r.DataModules))
		for _, m := range r.DataModules {
			rel, err := filepath.Rel(p.Root, m)
			if err != nil {
				rel = m
			}

			modules = append(modules, code(filepath.ToSlash(rel)))
		}

		documents := "all"
		switch {
		case len(r.PathIsolate) > 0:
			documents = "only " + codeList(r.PathIsolate)
		case len(r.PathIgnore) > 0:
			documents = "all except " + codeList(r.PathIgnore)
		}

		replaces := "content"
		if r.Outer {
			replaces = "element"
		}

		name := r.Name
		if name == "" {
			name = "-"
		}

		cells := []string{
			strconv.Itoa(r.Index + 1),
			cell(name),
			code(r.Selector),
			orDash(strings.Join(modules, ", ")),
			documents,
			replaces,
		}

		sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}

	return sb.String()
}

func codeList(items []string) string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		out = append(out, code(s))
	}

	return strings.Join(out, ", ")
}

func code(s string) string {
	return "`" + cell(s) + "`"
}

// cell escapes s for use in a markdown table cell.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
