package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/evcraddock/hometrace/internal/config"
	"github.com/evcraddock/hometrace/internal/email"
	"github.com/evcraddock/hometrace/internal/housekeeping"
	"github.com/evcraddock/hometrace/internal/logging"
	"github.com/evcraddock/hometrace/internal/mls"
	"github.com/evcraddock/hometrace/internal/notify"
	"github.com/evcraddock/hometrace/internal/web"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the HomeTrace HTTP API.

Configuration comes from HT_* environment variables, a .env file in the
working directory, or the YAML file named by HT_CONFIG.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (overrides HT_PORT)")

	return cmd
}

func runServe(ctx context.Context, port int) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Auth.DevMode); err != nil {
		return err
	}

	database, err := openDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer closeDB(database)

	opts := web.Options{
		Sender:     email.NewSender(cfg.SMTP, cfg.Auth.DevMode),
		Dispatcher: notify.NewDispatcher(notify.DefaultTimeout),
	}
	if cfg.MLS.RapidAPIKey != "" {
		lookup, err := mls.NewClient(cfg.MLS.RapidAPIKey)
		if err != nil {
			return fmt.Errorf("creating listing client: %w", err)
		}
		opts.Lookup = lookup
	} else {
		slog.Warn("no RapidAPI key configured, houses can only be added manually")
	}

	srv, err := web.NewServer(database, web.Config{
		BaseURL:    cfg.Server.BaseURL,
		AdminEmail: cfg.Auth.AdminEmail,
		DevMode:    cfg.Auth.DevMode,
	}, opts)
	if err != nil {
		return err
	}
	if err := srv.EnsureAdmin(ctx); err != nil {
		return fmt.Errorf("seeding admin: %w", err)
	}

	sched := housekeeping.New(srv.HousekeepingTasks()...)
	if err := sched.Start(ctx, cfg.Housekeeping.Schedule); err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", httpSrv.Addr, "base_url", cfg.Server.BaseURL, "dev_mode", cfg.Auth.DevMode)
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown", "err", err)
	}
	sched.Stop(shutdownCtx)
	if err := opts.Dispatcher.Wait(shutdownCtx); err != nil {
		slog.Warn("notifications still in flight at shutdown", "err", err)
	}
	return nil
}
