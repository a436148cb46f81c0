package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/macropower/stitch/pkg/mcp"
)

type MCPArgs struct {
	Addr    string
	NoWatch bool
}

func (ma *MCPArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&ma.Addr, "addr", "a", "", "Serve streamable HTTP on this address instead of stdio")
	cmd.Flags().BoolVar(&ma.NoWatch, "no-watch", false, "Do not watch data modules for changes")
}

func NewMCPCmd(ra *RootArgs) *cobra.Command {
	args := &MCPArgs{}

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start a Model Context Protocol server",
		Long: `Start a Model Context Protocol server exposing the configured module groups.

Tools:
  list_rules       List the module groups.
  render_document  Transform a document and report each rule's outcome.
  invalidate       Drop cached data modules.

The server speaks stdio unless --addr is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			p, err := ra.LoadProject(cmd, "")
			if err != nil {
				return err
			}

			pl := newPipeline(p)

			opts := []mcp.Opt{mcp.WithAddress(args.Addr)}
			if !args.NoWatch {
				controller, stop, err := watch(ctx, pl)
				if err != nil {
					return err
				}
				defer stop()

				opts = append(opts, mcp.WithController(controller))
			}

			err = mcp.NewServer(pl, p.Root, p.DocumentDir(), opts...).Serve(ctx)
			if err != nil {
				return fmt.Errorf("mcp: %w", err)
			}

			return nil
		},
	}

	args.AddFlags(cmd)

	return cmd
}
