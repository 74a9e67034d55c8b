package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bitop-dev/relay/pkg/bridge"
	"github.com/bitop-dev/relay/pkg/config"
	"github.com/bitop-dev/relay/pkg/line"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the LINE webhook server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				opts.cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, log := opts.cfg, opts.log
	if err := cfg.RequireLINE(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := line.NewClient(line.ClientOptions{
		AccessToken: cfg.LINE.ChannelAccessToken,
		BaseURL:     cfg.LINE.APIBaseURL,
		Logger:      log.Named("line"),
	})
	a, err := wireApp(ctx, cfg, log, client)
	if err != nil {
		return err
	}
	defer a.Close()

	dispatcher := bridge.NewDispatcher(ctx, a.handler, log.Named("dispatcher"))
	webhook := line.NewWebhook(cfg.LINE.ChannelSecret, dispatcher, log.Named("webhook"))
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           line.NewRouter(cfg.Server.Path, webhook),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("path", cfg.Server.Path))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if derr := dispatcher.Close(shutdownCtx); derr != nil {
			log.Warn("pending messages dropped", zap.Int("pending", dispatcher.Pending()), zap.Error(derr))
		}
		return err
	})

	if opts.configPath != "" {
		watcher, err := config.NewWatcher(opts.configPath, a.apply, log.Named("config"))
		if err != nil {
			log.Warn("config hot reload disabled", zap.Error(err))
		} else {
			g.Go(func() error { return watcher.Run(gctx) })
		}
	}

	return g.Wait()
}
