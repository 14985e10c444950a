// Command graphcache runs the caching GraphQL gateway.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonwraymond/graphcache/config"
	"github.com/jonwraymond/graphcache/observe"
)

var (
	// CLI flags
	configFlag string
	addrFlag   string

	// set at build time with -ldflags "-X main.version=..."
	version string
)

func init() {
	flag.StringVar(&configFlag, "config", "", "Path to a YAML config file (environment variables override it)")
	flag.StringVar(&addrFlag, "addr", "", "Listen address (overrides the config)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "graphcache: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx, configFlag)
	if err != nil {
		return err
	}
	if addrFlag != "" {
		cfg.Addr = addrFlag
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info(ctx, "listening",
			observe.F("addr", cfg.Addr), observe.F("version", version), observe.F("backend", cfg.Cache.Backend))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
		a.logger.Info(context.Background(), "shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		err = errors.Join(err, fmt.Errorf("shutdown: %w", serr))
	}
	if cerr := a.Close(shutdownCtx); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}
