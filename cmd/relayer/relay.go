// Copyright 2025 Lattice Relay

package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lattice-relay/relay/pkg/chain"
	"github.com/lattice-relay/relay/pkg/metrics"
	"github.com/lattice-relay/relay/pkg/relay"
	"github.com/lattice-relay/relay/pkg/statecache"
)

// chainPair holds the two constructed chain handles a bootstrap or relay
// subcommand drives.
type chainPair struct {
	a, b chain.Chain
}

func newRelayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Run the long-lived two-directional relay engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(cmd)
		},
	}
}

// runRelay wires an Engine per spec.md §6 common options and blocks until a
// signal or a fatal error, in the same "trap SIGINT/SIGTERM, cancel context,
// wait" shape the teacher's main.go uses to shut its server down.
func runRelay(cmd *cobra.Command) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, pair, err := buildPair(ctx)
	if err != nil {
		return err
	}

	var reg *metrics.Registry
	if cfg.Core.PrometheusEndpoint != "" {
		reg = startMetricsServer(cfg.Core.PrometheusEndpoint)
	}

	opts := relay.DefaultOptions()
	opts.SkipOptionalClientUpdates = cfg.Core.SkipOptionalClientUpdates
	opts.MaxPacketsToProcess = cfg.Core.MaxPacketsToProcess
	opts.Submitter.MaxAttempts = cfg.Core.SubmitMaxAttempts
	opts.Submitter.InitialDelay = cfg.Core.SubmitInitialDelay
	opts.Submitter.MaxDelay = cfg.Core.SubmitMaxDelay

	engine := relay.New(pair.a, pair.b, opts, reg)

	if cfg.Core.StateCacheURL != "" {
		cache, err := statecache.Open(ctx, cfg.Core.StateCacheURL)
		if err != nil {
			return fmt.Errorf("state cache: %w", err)
		}
		defer cache.Close()
		engine.SetCache(cache)
	}

	logger := log.New(os.Stderr, "[relayer] ", log.LstdFlags)
	logger.Printf("relaying %s <-> %s", pair.a.Name(), pair.b.Name())
	return engine.Run(ctx)
}

// startMetricsServer registers the relay's metrics against a fresh registry
// and serves it at addr, returning the registry for the engine to update.
func startMetricsServer(addr string) *metrics.Registry {
	reg, promReg := metrics.New()
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(promReg))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server: %v", err)
		}
	}()
	return reg
}
