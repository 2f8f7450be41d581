package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/youngcan/wyckoff-funnel/internal/scheduler"
	"github.com/youngcan/wyckoff-funnel/internal/scheduler/jobs"
)

// scheduleCmd represents the schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the screening scheduler daemon",
	Long: `Starts the cron scheduler with the standing jobs:

- universe_refresh: weekdays 08:30, rebuilds the symbol universe cache
- daily_screening:  weekdays 15:30, runs the funnel after the close

Example:
  go run ./cmd/funnel schedule`,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.close()

	sched := scheduler.New(a.log)

	if err := sched.AddJob(jobs.NewUniverseRefreshJob(a.builder, a.calendar, a.log)); err != nil {
		return fmt.Errorf("add universe job: %w", err)
	}
	if err := sched.AddJob(jobs.NewScreeningJob(a.engine, a.repo, a.log)); err != nil {
		return fmt.Errorf("add screening job: %w", err)
	}

	sched.Start()

	fmt.Println("✅ Scheduler started")
	fmt.Println("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()
	return nil
}
