package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/redisdocker"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Manage the local Redis container",
	Long: `Manage a Redis container for the job stream and result store.

Data is persisted to ~/.idscan/redis/ with append-only logging, so queued
jobs survive a restart.

Examples:
  idscan redis start   # create or resume the container
  idscan redis stop    # stop it (data preserved)
  idscan redis status  # container state and ping
  idscan redis logs    # recent container output`,
}

// newRedisManager builds a manager from the docker.* config keys.
func newRedisManager(cmd *cobra.Command) (*redisdocker.Manager, error) {
	h, err := getHome()
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, err
	}
	cm, err := loadConfig(logger(cmd))
	if err != nil {
		return nil, err
	}
	d := cm.Get().Docker

	return redisdocker.NewManager(redisdocker.Config{
		ContainerName: d.ContainerName,
		Image:         d.Image,
		HostPort:      d.Port,
		DataPath:      h.RedisDataPath(),
	})
}

var redisStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Redis container",
	Long: `Start the Redis container.

If the container doesn't exist, it is created and started.
If it exists but is stopped, it is started.
If it's already running, this is a no-op.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newRedisManager(cmd)
		if err != nil {
			return err
		}
		defer mgr.Close()

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, "Starting Redis...")
		if err := mgr.Start(cmd.Context()); err != nil {
			return fmt.Errorf("failed to start Redis: %w", err)
		}
		fmt.Fprintf(w, "Redis is running at %s\n", mgr.URL())
		return nil
	},
}

var redisStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the Redis container",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newRedisManager(cmd)
		if err != nil {
			return err
		}
		defer mgr.Close()

		if err := mgr.Stop(cmd.Context()); err != nil {
			return fmt.Errorf("failed to stop Redis: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Redis stopped")
		return nil
	},
}

var redisStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show Redis container status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mgr, err := newRedisManager(cmd)
		if err != nil {
			return err
		}
		defer mgr.Close()

		status, err := mgr.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}

		out := map[string]string{
			"container": mgr.ContainerName(),
			"status":    string(status),
		}
		switch status {
		case redisdocker.StatusRunning:
			out["url"] = mgr.URL()
			if err := mgr.WaitReady(ctx, time.Second); err != nil {
				out["health"] = "unhealthy: " + err.Error()
			} else {
				out["health"] = "healthy"
			}
		case redisdocker.StatusStopped:
			out["hint"] = "use 'idscan redis start' to start"
		case redisdocker.StatusNotFound:
			out["hint"] = "use 'idscan redis start' to create"
		}
		return printer(cmd).Print(out)
	},
}

var logsTail string

var redisLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show Redis container logs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newRedisManager(cmd)
		if err != nil {
			return err
		}
		defer mgr.Close()

		logs, err := mgr.Logs(cmd.Context(), logsTail)
		if err != nil {
			return fmt.Errorf("failed to get logs: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), logs)
		return nil
	},
}

var redisRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the Redis container",
	Long: `Stop and remove the Redis container.

Data in ~/.idscan/redis/ is NOT deleted - only the container is removed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newRedisManager(cmd)
		if err != nil {
			return err
		}
		defer mgr.Close()

		if err := mgr.Remove(cmd.Context()); err != nil {
			return fmt.Errorf("failed to remove container: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Redis container removed (data preserved)")
		return nil
	},
}

var waitTimeout time.Duration

var redisWaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Block until Redis answers PING",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newRedisManager(cmd)
		if err != nil {
			return err
		}
		defer mgr.Close()

		if err := mgr.WaitReady(cmd.Context(), waitTimeout); err != nil {
			return fmt.Errorf("redis not ready after %s: %w", waitTimeout, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Redis is ready")
		return nil
	},
}

func init() {
	redisLogsCmd.Flags().StringVar(&logsTail, "tail", "100", "number of lines to show (or 'all')")
	redisWaitCmd.Flags().DurationVar(&waitTimeout, "timeout", 30*time.Second, "how long to wait")

	redisCmd.AddCommand(redisStartCmd, redisStopCmd, redisStatusCmd, redisLogsCmd, redisRemoveCmd, redisWaitCmd)
	rootCmd.AddCommand(redisCmd)
}
