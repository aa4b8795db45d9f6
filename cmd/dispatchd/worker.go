package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/activepieces/activepieces-sub025/internal/config"
	"github.com/activepieces/activepieces-sub025/internal/logging"
	redisadapter "github.com/activepieces/activepieces-sub025/pkg/adapters/redis"
	"github.com/activepieces/activepieces-sub025/pkg/engine"
	"github.com/activepieces/activepieces-sub025/pkg/worker"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a queue worker",
	Long: `Starts a worker that drains the job dispatch queue, executes jobs,
and publishes the result to the node that submitted each one.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		logger := logging.New(logging.ParseLevel(cfg.LogLevel))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		client := newRedisClient(cfg)
		defer client.Close()

		bus, err := newBus(cfg, client)
		if err != nil {
			fmt.Printf("Error initializing bus: %v\n", err)
			os.Exit(1)
		}

		// Workers only publish on the bus; they never register waiters,
		// so the watcher stays unstarted.
		watcher := engine.NewWatcher(bus, engine.WithLogger(logger))
		consumer := redisadapter.NewQueue(client, cfg.QueueStream, cfg.QueueGroup)

		w := worker.New(consumer, worker.NewEchoExecutor(), watcher, worker.WithLogger(logger))

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		go func() {
			sig := <-shutdown
			logger.Info("shutdown started", "signal", sig.String())
			cancel()
		}()

		logger.Info("worker started", "stream", cfg.QueueStream, "group", cfg.QueueGroup)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			fmt.Printf("Worker error: %v\n", err)
			os.Exit(1)
		}
		logger.Info("worker stopped")
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
