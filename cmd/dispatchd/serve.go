package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/activepieces/activepieces-sub025/internal/config"
	"github.com/activepieces/activepieces-sub025/internal/logging"
	"github.com/activepieces/activepieces-sub025/internal/server"
	"github.com/activepieces/activepieces-sub025/pkg/adapters/memory"
	redisadapter "github.com/activepieces/activepieces-sub025/pkg/adapters/redis"
	"github.com/activepieces/activepieces-sub025/pkg/engine"
	"github.com/activepieces/activepieces-sub025/pkg/mcpsession"
	"github.com/activepieces/activepieces-sub025/pkg/webhook"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a front-end node",
	Long: `Starts a node that accepts webhook calls and protocol sessions.
The node owns a private response channel; workers anywhere in the pool
publish results back to it.`,
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

		watcher := engine.NewWatcher(bus, engine.WithLogger(logger))
		if err := watcher.Start(ctx); err != nil {
			fmt.Printf("Error starting response watcher: %v\n", err)
			os.Exit(1)
		}
		defer watcher.Close()

		queue := redisadapter.NewQueue(client, cfg.QueueStream, cfg.QueueGroup)
		gateway := engine.NewGateway(queue, watcher, engine.WithGatewayLogger(logger))

		// Flow definitions live in an external service; the in-memory
		// table is the standalone default.
		flows := memory.NewFlowService()

		coordinator := webhook.NewCoordinator(flows, flows, gateway,
			webhook.WithTimeout(cfg.WebhookTimeout),
			webhook.WithLocker(redisadapter.NewLocker(client, "dispatch:")),
			webhook.WithLogger(logger),
		)

		kv := redisadapter.NewKV(client)
		sessions := mcpsession.NewManager(kv, bus, watcher,
			mcpsession.WithTTL(cfg.SessionTTL),
			mcpsession.WithLogger(logger),
		)
		if err := sessions.Start(ctx); err != nil {
			fmt.Printf("Error starting session manager: %v\n", err)
			os.Exit(1)
		}

		handler := server.New(coordinator, sessions,
			func() mcpsession.ServerHandle {
				return mcpsession.NewFlowServer("dispatchd", Version, gateway)
			},
			server.WithLogger(logger),
		).Handler()

		srv := &http.Server{
			Addr:    cfg.BindAddr,
			Handler: handler,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("node listening", "addr", cfg.BindAddr, "node_id", watcher.NodeID())
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			logger.Info("shutdown started", "signal", sig.String())

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}
			if err := sessions.Close(shutdownCtx); err != nil {
				logger.Warn("session manager close failed", "err", err)
			}
			logger.Info("node stopped")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
