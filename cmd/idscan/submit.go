package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/jobs"
	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/results"
)

var submitFlags jobFlags

var submitCmd = &cobra.Command{
	Use:   "submit <image>",
	Short: "Enqueue an image for the workers",
	Long: `Encode an image as a job and add it to the Redis stream.

The job id is printed; fetch the outcome with 'idscan result <job_id>'.

Examples:
  idscan submit card.jpg
  idscan submit front.jpg --type nid_front`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		l := logger(cmd)

		job, err := submitFlags.job(args[0])
		if err != nil {
			return err
		}
		data, err := jobs.Encode(job)
		if err != nil {
			return err
		}

		cm, err := loadConfig(l)
		if err != nil {
			return err
		}
		cfg := cm.Get()

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
		entryID, err := q.Enqueue(ctx, data)
		if err != nil {
			return err
		}

		return printer(cmd).Print(map[string]string{
			"job_id":   job.ID,
			"mode":     string(job.Mode),
			"entry_id": entryID,
			"status":   "queued",
		})
	},
}

var resultWait time.Duration

var resultCmd = &cobra.Command{
	Use:   "result <job_id>",
	Short: "Show the stored result of a job",
	Long: `Fetch a job's result from the configured result store.

Results expire after results.ttl (default 24h). With --wait the command polls
until the result appears or the wait elapses.

Examples:
  idscan result 0b6f1c1e-...
  idscan result 0b6f1c1e-... --wait 2m -o json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		l := logger(cmd)

		cm, err := loadConfig(l)
		if err != nil {
			return err
		}
		cfg := cm.Get()

		var rdb *redis.Client
		if cfg.Results.Backend == results.BackendRedis {
			rdb, err = connectRedis(ctx, cfg.Redis)
			if err != nil {
				return err
			}
			defer rdb.Close()
		}
		store, closeStore, err := openResults(ctx, cfg, rdb, l)
		if err != nil {
			return err
		}
		defer closeStore()

		payload, err := fetchResult(ctx, store, args[0], resultWait)
		if errors.Is(err, results.ErrNotFound) {
			return fmt.Errorf("no result for job %s (pending, expired or unknown)", args[0])
		}
		if err != nil {
			return err
		}
		return printer(cmd).PrintJSON(payload)
	},
}

// fetchResult reads a result, polling for up to wait while it is missing.
func fetchResult(ctx context.Context, store results.Store, jobID string, wait time.Duration) ([]byte, error) {
	if wait <= 0 {
		return store.Get(ctx, jobID)
	}

	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	var payload []byte
	err := retry.Do(
		func() error {
			var err error
			payload, err = store.Get(ctx, jobID)
			if err != nil && !errors.Is(err, results.ErrNotFound) {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(0),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil && ctx.Err() != nil {
		return nil, results.ErrNotFound
	}
	return payload, err
}

var dlqCount int64

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "List dead-lettered jobs",
	Long: `Show the most recent entries of the dead-letter stream.

Each entry carries the error and the original stream message.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		l := logger(cmd)

		cm, err := loadConfig(l)
		if err != nil {
			return err
		}
		cfg := cm.Get()

		rdb, err := connectRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()

		q, err := newQueue(rdb, cfg.Redis, l)
		if err != nil {
			return err
		}
		letters, err := q.DeadLetters(ctx, dlqCount)
		if err != nil {
			return err
		}
		return printer(cmd).Print(map[string]any{"dead_letters": letters, "count": len(letters)})
	},
}

func init() {
	submitFlags.register(submitCmd)
	resultCmd.Flags().DurationVar(&resultWait, "wait", 0, "poll until the result exists or this long has passed")
	dlqCmd.Flags().Int64Var(&dlqCount, "count", 20, "maximum number of entries")

	rootCmd.AddCommand(submitCmd, resultCmd, dlqCmd)
}
