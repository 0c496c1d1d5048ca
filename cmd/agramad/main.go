// Agramad is the Agrama temporal knowledge-graph engine daemon.
//
// The serve command speaks MCP over stdio (newline-delimited JSON-RPC on
// stdin/stdout); logs go to stderr so the protocol stream stays clean.
//
// Usage:
//
//	# Serve over stdio with defaults
//	agramad serve
//
//	# Serve with a config file and environment overrides
//	AGRAMA_LOGGING_LEVEL=debug agramad serve --config agramad.yaml
//
//	# Benchmark HNSW recall against brute force
//	agramad bench-hnsw --vectors 10000 --dim 64
package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nibzard/agrama/internal/config"
	"github.com/nibzard/agrama/internal/engine"
	"github.com/nibzard/agrama/internal/graph"
	"github.com/nibzard/agrama/internal/logging"
	"github.com/nibzard/agrama/internal/semantic"
	"github.com/nibzard/agrama/transport/mcpserver"
)

var (
	version   = "dev"
	gitCommit = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:           "agramad",
		Short:         "Agrama temporal knowledge-graph engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), benchHNSWCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var (
		configPath  string
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine over stdio MCP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			eng, err := engine.New(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				metricsSrv := &http.Server{Addr: metricsAddr, Handler: mux}
				go func() {
					if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logger.Warn("metrics server failed", zap.Error(err))
					}
				}()
				defer func() { _ = metricsSrv.Close() }()
			}

			logger.Info("serving stdio MCP",
				zap.String("version", version),
				zap.Int("embedding_dimension", eng.Embedder().Dimension()))
			if err := mcpserver.New(eng, logger).Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			logger.Info("shutdown complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to agramad.yaml")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "optional address for the Prometheus /metrics endpoint (e.g. :9091)")
	return cmd
}

func benchHNSWCmd() *cobra.Command {
	var (
		vectors int
		dim     int
		k       int
		ef      int
		seed    int64
	)
	cmd := &cobra.Command{
		Use:   "bench-hnsw",
		Short: "Measure HNSW recall and latency against brute-force cosine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rng := rand.New(rand.NewSource(seed))
			idx := semantic.New(semantic.Config{Dimension: dim, Rand: rng}, nil)
			exact := semantic.NewBruteForce()

			for i := 0; i < vectors; i++ {
				vec := make([]float32, dim)
				for j := range vec {
					vec[j] = rng.Float32()*2 - 1
				}
				id := graph.NodeID(i + 1)
				if err := idx.Insert(id, vec); err != nil {
					return err
				}
				exact.Insert(id, vec)
			}

			const queries = 100
			var overlap, total int
			start := time.Now()
			for q := 0; q < queries; q++ {
				query := make([]float32, dim)
				for j := range query {
					query[j] = rng.Float32()*2 - 1
				}
				approx := idx.Search(query, k, ef)
				truth := exact.Search(query, k)
				truthSet := make(map[graph.NodeID]bool, len(truth))
				for _, r := range truth {
					truthSet[r.NodeID] = true
				}
				for _, r := range approx {
					if truthSet[r.NodeID] {
						overlap++
					}
				}
				total += len(truth)
			}
			elapsed := time.Since(start)

			recall := float64(overlap) / float64(total)
			fmt.Fprintf(cmd.OutOrStdout(), "vectors=%d dim=%d k=%d ef=%d recall@%d=%.4f avg_query=%s\n",
				vectors, dim, k, ef, k, recall, elapsed/queries)
			return nil
		},
	}
	cmd.Flags().IntVar(&vectors, "vectors", 10000, "number of random vectors to index")
	cmd.Flags().IntVar(&dim, "dim", 64, "vector dimension")
	cmd.Flags().IntVar(&k, "k", 10, "neighbors per query")
	cmd.Flags().IntVar(&ef, "ef", 64, "search candidate width")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agramad %s (%s)\n", version, gitCommit)
		},
	}
}
