package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/macropower/stitch/api"
	"github.com/macropower/stitch/api/v1beta1/configs"
)

type InitArgs struct {
	Force bool
}

func (ia *InitArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&ia.Force, "force", "f", false, "Overwrite an existing configuration, keeping a backup")
}

func NewInitCmd(ra *RootArgs) *cobra.Command {
	args := &InitArgs{}

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, posArgs []string) error {
			path := ra.ConfigPath
			if path == "" {
				dir := firstArg(posArgs)
				if dir == "" {
					dir = "."
				}

				path = filepath.Join(dir, api.ConfigFileNames[0])
			}

			err := configs.WriteDefault(path, args.Force)
			if err != nil {
				return fmt.Errorf("init: %w", err)
			}

			return nil
		},
	}

	args.AddFlags(cmd)

	return cmd
}
