// Command inspectord runs a demo world behind the inspector server. Connect a client to the
// websocket endpoint to browse the world and edit it live.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("inspectord failed")
		stop()
		os.Exit(1) //nolint:gocritic // stop is called above
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "inspectord",
		Short:         "Serve a live, editable ECS world to inspector clients",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newSchemaCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	flags := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo world and the inspector server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			opts := serveOptions{}
			cfg.applyToOptions(&opts)
			opts.apply(flags)
			if cmd.Flags().Changed("tick-rate") {
				opts.TickRate = flags.TickRate
			}
			if err := opts.validate(); err != nil {
				return eris.Wrap(err, "invalid command line flags")
			}
			return serve(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&flags.Address, "address", "", "listen address (overrides INSPECTOR_ADDRESS)")
	cmd.Flags().Float64Var(&flags.TickRate, "tick-rate", 0, "steps per second (overrides INSPECTOR_TICK_RATE)")
	return cmd
}

func newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the type registry of the demo world as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := exportSchema()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(data, '\n'))
			return err
		},
	}
}
