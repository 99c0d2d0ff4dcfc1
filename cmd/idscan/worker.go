package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/config"
	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/jobs"
	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/metrics"
	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/providers"
)

var (
	workerCount int
	workerWatch bool
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume OCR jobs from the Redis stream",
	Long: `Start a pool of queue consumers.

Every consumer joins the configured consumer group, processes one job at a
time and acknowledges it after the result (or a dead-letter record) is
written. Entries left pending by a crashed worker are taken over once they
have been idle longer than redis.reclaim_idle.

Edits to the endpoint table and model routes in the config file are applied
without a restart.

Examples:
  idscan worker              # workers from config (default 1)
  idscan worker -n 4         # four consumers in this process`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		l := logger(cmd)

		cm, err := loadConfig(l)
		if err != nil {
			return err
		}
		cfg := cm.Get()
		if src := cm.ConfigFileUsed(); src != "" {
			l.Info("config loaded", "file", src)
		}

		rdb, err := connectRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()

		q, err := newQueue(rdb, cfg.Redis, l)
		if err != nil {
			return err
		}
		if err := q.Init(ctx); err != nil {
			return err
		}

		store, closeStore, err := openResults(ctx, cfg, rdb, l)
		if err != nil {
			return err
		}
		defer closeStore()

		svc, err := buildOrchestrator(cfg, store, cfg.Pipeline.JudgeEnabled, l)
		if err != nil {
			return err
		}

		size := cfg.Workers
		if cmd.Flags().Changed("workers") {
			size = workerCount
		}
		pool, err := jobs.NewPool(jobs.PoolConfig{
			Size: size,
			Worker: jobs.WorkerConfig{
				Queue:       q,
				Processor:   svc.orch,
				Block:       cfg.Redis.Block,
				ReclaimIdle: cfg.Redis.ReclaimIdle,
			},
			Logger: l,
		})
		if err != nil {
			return fmt.Errorf("worker pool: %w", err)
		}

		if workerWatch && cm.ConfigFileUsed() != "" {
			cm.OnChange(func(c *config.Config) {
				if err := svc.router.Reload(c.RouterConfig()); err != nil {
					l.Warn("routing table not reloaded", "error", err)
					return
				}
				logEndpoints(l, svc.router)
			})
			cm.WatchConfig()
		}

		logEndpoints(l, svc.router)
		pool.Start(ctx)

		return printer(cmd).Print(map[string]any{
			"workers": pool.Status(),
			"usage":   svc.metrics.ByStage(metrics.Filter{}),
		})
	},
}

func logEndpoints(l *slog.Logger, router *providers.Router) {
	for _, ep := range router.Endpoints() {
		l.Info("endpoint", "name", ep.Name, "url", ep.BaseURL, "family", ep.Family)
	}
}

func init() {
	workerCmd.Flags().IntVarP(&workerCount, "workers", "n", 1, "number of consumers (overrides config)")
	workerCmd.Flags().BoolVar(&workerWatch, "watch", true, "reload endpoints and routes when the config file changes")

	rootCmd.AddCommand(workerCmd)
}
