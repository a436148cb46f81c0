package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/macropower/stitch/pkg/highlight"
)

type RenderArgs struct {
	Path  string
	Style string
	Diff  bool
}

func (ra *RenderArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&ra.Path, "path", "p", "", "Document path used for path filters (default: file path under the document root)")
	cmd.Flags().StringVar(&ra.Style, "style", highlight.DefaultStyle, "Chroma style used on a terminal")
	cmd.Flags().BoolVarP(&ra.Diff, "diff", "d", false, "Print a unified diff against the input instead")
}

func NewRenderCmd(ra *RootArgs) *cobra.Command {
	args := &RenderArgs{}

	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Print one transformed document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, posArgs []string) error {
			ctx := cmd.Context()
			file := posArgs[0]

			p, err := ra.LoadProject(cmd, filepath.Dir(file))
			if err != nil {
				return err
			}

			b, err := os.ReadFile(file) //nolint:gosec // G304: user-provided document.
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}

			docPath := args.Path
			if docPath == "" {
				docPath = documentPath(p.DocumentDir(), file)
			}

			res, err := newPipeline(p).Transform(ctx, docPath, string(b))
			if err != nil {
				return fmt.Errorf("transform %s: %w", docPath, err)
			}

			for _, rr := range res.Rules {
				if rr.Err != nil {
					slog.WarnContext(ctx, "rule skipped", slog.Any("error", rr.Err))
				}
			}

			out := cmd.OutOrStdout()
			profile := termenv.Ascii
			if isTerminal(out) {
				profile = termenv.ColorProfile()
			}

			language, text := "html", res.HTML
			if args.Diff {
				language, text = "diff", highlight.Diff(strings.TrimPrefix(res.Document, "/"), string(b), res.HTML)
			}

			text, err = highlight.New(language, profile, args.Style).Render(text)
			if err != nil {
				return fmt.Errorf("highlight: %w", err)
			}

			_, err = fmt.Fprint(out, text)
			if err != nil {
				return fmt.Errorf("write output: %w", err)
			}

			return nil
		},
	}

	args.AddFlags(cmd)

	return cmd
}

// documentPath returns the path of file under dir as a rooted slash path,
// or the base name when file is not under dir.
func documentPath(dir, file string) string {
	absFile, err := filepath.Abs(file)
	if err != nil {
		return "/" + filepath.Base(file)
	}

	rel, err := filepath.Rel(dir, absFile)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "/" + filepath.Base(file)
	}

	return "/" + filepath.ToSlash(rel)
}
