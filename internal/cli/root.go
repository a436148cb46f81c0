package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/macropower/stitch/pkg/config"
	"github.com/macropower/stitch/pkg/log"
)

const (
	cmdName = "stitch"
	cmdDesc = `Render data-driven fragments into static HTML documents.`

	cmdExamples = `  # Write a starter configuration:
  stitch init

  # Transform every document under the configured document root in place:
  stitch build

  # Write transformed documents to another directory:
  stitch build --out dist

  # Serve the document root with live reload on data changes:
  stitch serve --addr localhost:8080

  # Show what a single document renders to, as a diff:
  stitch render public/index.html --diff`
)

type RootArgs struct {
	LogLevel      string
	LogFormat     string
	ConfigPath    string
	TraceEndpoint string

	shutdownTracing func(context.Context) error
}

func NewRootArgs() *RootArgs {
	return &RootArgs{}
}

func (ra *RootArgs) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVar(&ra.LogLevel, "log-level", "info", fmt.Sprintf("Log level, one of: %s", log.AllLevels))
	cmd.PersistentFlags().
		StringVar(&ra.LogFormat, "log-format", "text", fmt.Sprintf("Log format, one of: %s", log.AllFormats))
	cmd.PersistentFlags().
		StringVarP(&ra.ConfigPath, "config", "c", "", "Path to the stitch configuration file (default: nearest stitch.yaml)")
	cmd.PersistentFlags().
		StringVar(&ra.TraceEndpoint, "trace-endpoint", "", "OTLP gRPC endpoint to export traces to")

	err := cmd.RegisterFlagCompletionFunc("log-format",
		cobra.FixedCompletions(log.AllFormats, cobra.ShellCompDirectiveNoFileComp),
	)
	if err != nil {
		panic(err)
	}

	err = cmd.RegisterFlagCompletionFunc("log-level",
		cobra.FixedCompletions(log.AllLevels, cobra.ShellCompDirectiveNoFileComp),
	)
	if err != nil {
		panic(err)
	}

	err = cmd.MarkPersistentFlagFilename("config", "yaml", "yml")
	if err != nil {
		panic(fmt.Errorf("mark config flag: %w", err))
	}
}

// LoadProject loads the configuration given by --config, or the nearest one
// at or above target.
func (ra *RootArgs) LoadProject(cmd *cobra.Command, target string) (*config.Project, error) {
	opts := []config.LoaderOpt{config.WithColor(isTerminal(cmd.ErrOrStderr()))}

	if ra.ConfigPath != "" {
		p, err := config.LoadProject(ra.ConfigPath, opts...)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", ra.ConfigPath, err)
		}

		return p, nil
	}

	if target == "" {
		target = "."
	}

	p, err := config.FindProject(target, opts...)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already wrapped with the path.
	}

	return p, nil
}

func NewRootCmd() *cobra.Command {
	args := NewRootArgs()

	cmd := &cobra.Command{
		Use:                cmdName,
		Short:              cmdDesc,
		Example:            cmdExamples,
		SilenceUsage:       true,
		PersistentPreRunE:  setup(args),
		PersistentPostRunE: teardown(args),
	}

	args.AddFlags(cmd)

	cmd.AddCommand(
		NewBuildCmd(args),
		NewServeCmd(args),
		NewRenderCmd(args),
		NewRulesCmd(args),
		NewMCPCmd(args),
		NewInitCmd(args),
		NewVersionCmd(),
	)

	bindEnvVars(cmd)

	return cmd
}

func setup(ra *RootArgs) func(cmd *cobra.Command, _ []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		logHandler, err := log.CreateHandlerWithStrings(cmd.ErrOrStderr(), ra.LogLevel, ra.LogFormat)
		if err != nil {
			return fmt.Errorf("create log handler: %w", err)
		}

		slog.SetDefault(slog.New(logHandler))

		if ra.TraceEndpoint != "" {
			shutdown, err := setupTracing(cmd.Context(), ra.TraceEndpoint)
			if err != nil {
				return err
			}

			ra.shutdownTracing = shutdown
		}

		return nil
	}
}

func teardown(ra *RootArgs) func(cmd *cobra.Command, _ []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		if ra.shutdownTracing == nil {
			return nil
		}

		err := ra.shutdownTracing(context.WithoutCancel(cmd.Context()))
		if err != nil {
			return fmt.Errorf("shutdown tracing: %w", err)
		}

		return nil
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return term.IsTerminal(int(f.Fd())) //nolint:gosec // G115: fd fits in int.
}
