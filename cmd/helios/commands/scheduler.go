package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/heliosquant/helios/internal/scheduler"
	"github.com/heliosquant/helios/internal/scheduler/jobs"
)

// schedulerCmd runs the background job scheduler
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Start the job scheduler",
	Long: `Starts the background scheduler.

Jobs:
  price_sync        - weekday 17:00, refresh universe closes
  daily_evaluation  - weekday 18:00, score and persist the universe

Example:
  go run ./cmd/helios scheduler`,
	RunE: runScheduler,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	sched := scheduler.New(rt.log)

	priceJob := jobs.NewPriceSyncJob(rt.source, rt.prices, rt.priceRepo, rt.log)
	if err := sched.AddJob(priceJob); err != nil {
		return err
	}

	evalJob := jobs.NewEvaluationJob(rt.source, rt.evaluator, rt.scoreRepo, rt.log)
	if err := sched.AddJob(evalJob); err != nil {
		return err
	}

	sched.Start()
	defer sched.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	rt.log.WithField("signal", sig.String()).Info("Shutdown signal received")
	return nil
}
