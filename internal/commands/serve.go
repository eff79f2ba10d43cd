package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/banksim-dev/banksim/internal/api"
	"github.com/banksim-dev/banksim/internal/bank"
	"github.com/banksim-dev/banksim/internal/config"
)

func newServeCommand() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the accounts over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			return withService(cmd, func(ctx context.Context, p *project, b *backend, svc *bank.Service) error {
				addr := p.cfg.API.Listen
				if cmd.Flags().Changed("listen") {
					addr = listen
				}
				if addr == "" {
					addr = config.Default().API.Listen
				}
				return api.NewServer(svc, b.lister, b.history, p.logger).Run(ctx, addr)
			})
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides api.listen)")
	return cmd
}
