package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/macropower/stitch/pkg/build"
	"github.com/macropower/stitch/pkg/config"
	"github.com/macropower/stitch/pkg/data"
	"github.com/macropower/stitch/pkg/pipeline"
)

var errRuleFailures = errors.New("rules failed")

type BuildArgs struct {
	Out         string
	Concurrency int
	Strict      bool
}

func (ba *BuildArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&ba.Out, "out", "o", "", "Write documents to this directory instead of in place")
	cmd.Flags().IntVar(&ba.Concurrency, "concurrency", 0, "Documents to transform at once (default: GOMAXPROCS)")
	cmd.Flags().BoolVar(&ba.Strict, "strict", false, "Fail when any rule fails")

	err := cmd.MarkFlagDirname("out")
	if err != nil {
		panic(fmt.Errorf("mark out flag: %w", err))
	}
}

func NewBuildCmd(ra *RootArgs) *cobra.Command {
	args := &BuildArgs{}

	cmd := &cobra.Command{
		Use:   "build [dir]",
		Short: "Transform every HTML document under a directory",
		Long: `Transform every HTML document under dir, or the configured document root.

Documents are rewritten in place unless --out is set. Rules that fail are
skipped and reported; they only fail the build with --strict.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, posArgs []string) error {
			target := firstArg(posArgs)

			p, err := ra.LoadProject(cmd, target)
			if err != nil {
				return err
			}

			dir := target
			if dir == "" {
				dir = p.DocumentDir()
			}

			b := build.New(newPipeline(p), build.WithConcurrency(args.Concurrency))

			report, err := b.Dir(cmd.Context(), dir, args.Out)
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}

			for _, d := range report.Documents {
				for _, ruleErr := range d.RuleErrors {
					slog.WarnContext(cmd.Context(), "rule skipped", slog.Any("error", ruleErr))
				}
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), report.Summary())
			if err != nil {
				return fmt.Errorf("write summary: %w", err)
			}

			err = report.Err()
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}

			if args.Strict {
				err = report.RuleErr()
				if err != nil {
					return fmt.Errorf("%w: %w", errRuleFailures, err)
				}
			}

			return nil
		},
	}

	args.AddFlags(cmd)

	return cmd
}

// newPipeline creates a pipeline for the project's rules, backed by a new
// data cache.
func newPipeline(p *config.Project) *pipeline.Pipeline {
	return pipeline.New(p.Rules, data.NewLoader(data.NewCache()))
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}

	return args[0]
}
