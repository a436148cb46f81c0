package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/macropower/stitch/pkg/version"
)

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), version.Get().String())
			if err != nil {
				return fmt.Errorf("write version: %w", err)
			}

			return nil
		},
	}
}
