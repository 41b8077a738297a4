package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/qubi-project/qubi/pkg/config"
	"github.com/qubi-project/qubi/pkg/node"
)

const shutdownTimeout = 10 * time.Second

func NewCmd() *cobra.Command {
	var configPath string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start a qubi node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	serveCmd.Flags().StringVar(&configPath, "config", "",
		"Directory containing config.yaml. Defaults to the working directory.")

	return serveCmd
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	qubiNode, err := node.NewNode(ctx, cfg)
	if err != nil {
		return err
	}

	// SIGHUP re-reads the credentials file so operators can rotate tokens
	// without a restart
	hupCh := make(chan os.Signal, 1)
	signal.Notify(hupCh, syscall.SIGHUP)
	defer signal.Stop(hupCh)
	go func() {
		for range hupCh {
			if err := qubiNode.ReloadCredentials(); err != nil {
				log.Error().Err(err).Msg("failed to reload credentials")
			} else {
				log.Info().Msg("credentials reloaded")
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- qubiNode.Start(ctx)
	}()

	select {
	case err = <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	return qubiNode.Stop(shutdownCtx)
}
