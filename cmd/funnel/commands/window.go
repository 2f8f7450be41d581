package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// windowCmd represents the window command
var windowCmd = &cobra.Command{
	Use:   "window",
	Short: "Resolve the trading window for a reference date",
	Long: `Resolves the analysis window (start, end, trading-day count) the
funnel would use for a reference date, without running the screen.

Example:
  go run ./cmd/funnel window
  go run ./cmd/funnel window --date 2026-08-28`,
	RunE: runWindow,
}

var windowDate string

func init() {
	rootCmd.AddCommand(windowCmd)

	windowCmd.Flags().StringVar(&windowDate, "date", "", "reference date YYYY-MM-DD (default: today)")
}

func runWindow(cmd *cobra.Command, args []string) error {
	referenceDate := time.Now()
	if windowDate != "" {
		d, err := time.Parse("2006-01-02", windowDate)
		if err != nil {
			return fmt.Errorf("invalid --date (expected YYYY-MM-DD): %w", err)
		}
		referenceDate = d
	}

	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.close()

	win, err := a.calendar.ResolveWindow(context.Background(), referenceDate,
		a.strategy.Window.EndOffsetDays, a.strategy.Window.TradingDays)
	if err != nil {
		return fmt.Errorf("resolve window: %w", err)
	}

	fmt.Printf("Window: %s ~ %s (%d trading days)\n",
		win.Start.Format("2006-01-02"), win.End.Format("2006-01-02"), win.TradingDays)
	if win.Partial {
		fmt.Println("⚠️  Window clamped: calendar coverage shorter than requested")
	}

	return nil
}
