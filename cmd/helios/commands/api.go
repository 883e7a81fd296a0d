package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/heliosquant/helios/internal/api"
	"github.com/heliosquant/helios/internal/api/handlers"
)

// apiCmd starts the HTTP API server
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server.

Endpoints:
  GET  /health               - Health check
  GET  /api/policy           - Active policy and hash
  POST /api/recommendations  - One-shot evaluation round
  POST /api/backtests        - Launch a backtest
  GET  /api/backtests        - List runs
  GET  /api/backtests/{id}   - Run status and result
  GET  /ws/backtests/{id}    - Live progress stream

Example:
  go run ./cmd/helios api
  go run ./cmd/helios api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default from config)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	if apiPort != "" {
		rt.cfg.Port = apiPort
	}

	policyHandler := handlers.NewPolicyHandler(rt.policyCfg, rt.policyHash, rt.log)
	recommendHandler := handlers.NewRecommendHandler(rt.source, rt.evaluator, &rt.policyCfg.Policy, rt.log)
	backtestHandler := handlers.NewBacktestHandler(
		rt.policyCfg, rt.policyHash,
		rt.source, rt.evaluator, rt.prices, rt.calendar,
		rt.resultRepo, rt.log,
	)

	router := api.NewRouter(policyHandler, recommendHandler, backtestHandler, rt.log)
	server := api.New(rt.cfg, rt.log, router)

	// Graceful shutdown on SIGINT/SIGTERM
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		rt.log.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
