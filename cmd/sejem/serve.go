package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erazemk/sejem/internal/api"
	"github.com/erazemk/sejem/internal/web"
)

func cmdServe(ctx context.Context, args []string) error {
	fs, common := newFlagSet("serve", "", "  -a, -addr <addr>    listen address (default: localhost:8080)\n")
	var addr string
	fs.StringVar(&addr, "addr", "", "")
	fs.StringVar(&addr, "a", "", "")
	if err := fs.Parse(args); err != nil {
		return err
	}

	common.daemon = true
	cfg, cleanup, err := common.resolve(fs)
	if err != nil {
		return err
	}
	defer cleanup()
	if addr != "" {
		cfg.Addr = addr
	}

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	handler, err := web.NewRouter(a.session, a.api)
	if err != nil {
		return err
	}

	slog.Info("using marketplace API", "url", cfg.APIURL, "authenticated", a.session.Authenticated())
	return listenAndServe(cfg.Addr, api.LoggingMiddleware(handler))
}

// listenAndServe runs handler on addr until SIGINT or SIGTERM.
func listenAndServe(addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	go func() {
		sig, ok := <-quit
		if !ok {
			return
		}
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("server stopped")
	return nil
}
