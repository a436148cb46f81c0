package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/macropower/stitch/pkg/invalidate"
	"github.com/macropower/stitch/pkg/pipeline"
	"github.com/macropower/stitch/pkg/server"
)

const defaultAddr = "127.0.0.1:8080"

type ServeArgs struct {
	Addr     string
	NoReload bool
}

func (sa *ServeArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&sa.Addr, "addr", "a", defaultAddr, "Address to listen on")
	cmd.Flags().BoolVar(&sa.NoReload, "no-reload", false, "Do not watch data modules or reload pages")
}

func NewServeCmd(ra *RootArgs) *cobra.Command {
	args := &ServeArgs{}

	cmd := &cobra.Command{
		Use:   "serve [dir]",
		Short: "Serve documents, transforming HTML on the fly",
		Long: `Serve the static files under dir, or the configured document root.

HTML responses are transformed before they are sent. Unless --no-reload is
set, data modules are watched and open pages reload when one changes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, posArgs []string) error {
			ctx := cmd.Context()
			target := firstArg(posArgs)

			p, err := ra.LoadProject(cmd, target)
			if err != nil {
				return err
			}

			dir := target
			if dir == "" {
				dir = p.DocumentDir()
			}

			pl := newPipeline(p)

			var opts []server.Opt
			if !args.NoReload {
				controller, stop, err := watch(ctx, pl)
				if err != nil {
					return err
				}
				defer stop()

				opts = append(opts, server.WithController(controller))
			}

			err = server.New(pl, dir, opts...).ListenAndServe(ctx, args.Addr)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			return nil
		},
	}

	args.AddFlags(cmd)

	return cmd
}

// watch starts an [invalidate.Watcher] for the pipeline's data modules. The
// returned function stops it.
func watch(ctx context.Context, pl *pipeline.Pipeline) (*invalidate.Controller, func(), error) {
	controller := invalidate.NewController(pl.Loader().Cache(), pl.Rules())

	w, err := invalidate.NewWatcher(ctx, controller)
	if err != nil {
		return nil, nil, fmt.Errorf("watch data modules: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		w.Run(ctx)
	}()

	stop := func() {
		cancel()
		<-done

		err := w.Close()
		if err != nil {
			slog.Error("close watcher", slog.Any("error", err))
		}
	}

	return controller, stop, nil
}
