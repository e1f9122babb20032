//go:build linux

// Command fabrigod serves the remote code-execution sandbox's HTTP
// surface. Its own binary doubles as the re-exec target for the two
// hidden subcommands the runtime package uses to enter namespaces and
// harden a task just before exec (see internal/runtime); those are
// intercepted before cobra ever parses argv; they are not part of the
// public CLI surface and take their arguments positionally, not as
// flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fabrigo/fabrigo/internal/api"
	"github.com/fabrigo/fabrigo/internal/cgroup"
	"github.com/fabrigo/fabrigo/internal/config"
	"github.com/fabrigo/fabrigo/internal/execcache"
	"github.com/fabrigo/fabrigo/internal/runtime"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case runtime.ChildSubcommand:
			runtime.RunChild()
			return
		case runtime.TaskSubcommand:
			if err := runtime.RunTaskShim(os.Args[2:]); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return
		}
	}

	if err := newRootCmd().Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

type serveOpts struct {
	port           int
	host           string
	maxConcurrency int
	configPath     string
}

func newRootCmd() *cobra.Command {
	var o serveOpts

	root := &cobra.Command{
		Use:   "fabrigod",
		Short: "Remote code-execution sandbox server",
		Long: `fabrigod serves a JSON task-group execution API: each request runs one
or more commands inside a freshly constructed, network-isolated,
resource-limited Linux container, built from the host filesystem, and
returns captured output and resource usage.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), o)
		},
	}

	root.Flags().IntVar(&o.port, "port", 0, "listen port (overrides PORT env, default 3000)")
	root.Flags().StringVar(&o.host, "host", "", "listen host (overrides HOST env, default 0.0.0.0)")
	root.Flags().IntVar(&o.maxConcurrency, "max-concurrency", 0, "in-flight request cap (overrides MAX_CONCURRENCY env, default 10)")
	root.Flags().StringVar(&o.configPath, "config", "", "optional YAML configuration file overlay")

	return root
}

func serve(ctx context.Context, o serveOpts) error {
	base := config.Default()
	cfg, err := config.Load(o.configPath, base)
	if err != nil {
		return err
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.host != "" {
		cfg.Host = o.host
	}
	if o.maxConcurrency != 0 {
		cfg.MaxConcurrency = o.maxConcurrency
	}

	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.JSONFormatter{})

	if version, detail, err := cgroup.Detect(); err != nil {
		log.WithError(err).Warn("cgroup layout detection failed")
	} else {
		log.WithFields(logrus.Fields{"cgroup_layout": version.String(), "detail": detail}).Info("detected cgroup layout")
	}

	srv := &api.Server{
		Executor:       runtime.NewExecutor(),
		Cache:          execcache.New(),
		Log:            log,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: srv.NewRouter(),
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Addr()).Info("fabrigod listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
