package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopware/phpls/internal/rpc"
	"github.com/urfave/cli/v2"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Answer JSON-RPC requests on stdin and stdout",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "no-index",
			Usage: "Skip indexing the PSR-4 directories",
		},
		&cli.StringFlag{
			Name:  "metrics",
			Usage: "Serve prometheus metrics on this address (overrides config)",
		},
	},
	Action: func(c *cli.Context) error {
		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		if c.IsSet("metrics") {
			cfg.Metrics.Listen = c.String("metrics")
		}

		p, err := openProject(ctx, cfg, !c.Bool("no-index"))
		if err != nil {
			return err
		}
		defer p.Close()
		p.watch(ctx)

		if cfg.Metrics.Listen != "" {
			metricsServer := serveMetrics(cfg.Metrics.Listen)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := metricsServer.Shutdown(shutdownCtx); err != nil {
					log.Printf("Error stopping metrics server: %v", err)
				}
			}()
		}

		server := rpc.NewServer(p.resolver, p.files)
		done := make(chan error, 1)
		go func() {
			done <- server.Start(c.App.Reader, c.App.Writer)
		}()

		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return nil
		}
	},
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("Serving metrics on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Metrics server error: %v", err)
		}
	}()
	return server
}
