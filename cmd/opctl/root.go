package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"opgate/client"
	"opgate/config"
)

// app is what every subcommand runs with, set up by the root command.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	client *client.Client
	close  func() error
}

// shutdown flushes the logger and releases the etcd connection. It runs after
// Execute returns, failed calls included, and is safe to call more than once.
func (a *app) shutdown() error {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.close == nil {
		return nil
	}
	err := a.close()
	a.close = nil
	return err
}

// execute runs cmd and always shuts a down afterwards.
func execute(ctx context.Context, cmd *cobra.Command, a *app) error {
	defer a.shutdown()
	return cmd.ExecuteContext(ctx)
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	var flags *config.Config

	rootCmd := &cobra.Command{
		Use:           "opctl",
		Short:         "Invoke operations on a gateway",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags(), flags)
			if err != nil {
				return err
			}
			logger, err := cfg.Logger()
			if err != nil {
				return err
			}
			opts, closeFn, err := cfg.ClientOptions(logger)
			if err != nil {
				return err
			}
			c, err := client.New(opts...)
			if err != nil {
				_ = closeFn()
				return err
			}
			a.cfg, a.logger, a.client, a.close = cfg, logger, c, closeFn
			return nil
		},
	}
	flags = config.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		newUnaryCmd(a, "query", "Run a query operation", client.Query[any]),
		newUnaryCmd(a, "mutate", "Run a mutation operation", client.Mutate[any]),
		newStreamCmd(a, "subscribe", "Subscribe to an operation and print every update", client.Subscribe[any]),
		newStreamCmd(a, "live", "Run a live query and print every new result", client.LiveQuery[any]),
	)
	return rootCmd, a
}
