package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/youngcan/wyckoff-funnel/internal/contracts"
)

// screenCmd represents the screen command
var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Run the screening funnel once",
	Long: `Runs the full four-layer funnel for a reference date and prints the
ranked candidates. With a DATABASE_URL configured the result is also
persisted.

Example:
  go run ./cmd/funnel screen
  go run ./cmd/funnel screen --date 2026-08-28
  go run ./cmd/funnel screen --json`,
	RunE: runScreen,
}

var (
	screenDate string
	screenJSON bool
)

func init() {
	rootCmd.AddCommand(screenCmd)

	screenCmd.Flags().StringVar(&screenDate, "date", "", "reference date YYYY-MM-DD (default: today)")
	screenCmd.Flags().BoolVar(&screenJSON, "json", false, "print the full result as JSON")
}

func runScreen(cmd *cobra.Command, args []string) error {
	referenceDate := time.Now()
	if screenDate != "" {
		d, err := time.Parse("2006-01-02", screenDate)
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

	result, err := a.engine.Run(context.Background(), referenceDate)
	if err != nil {
		return fmt.Errorf("screening run failed: %w", err)
	}

	if a.repo != nil {
		if err := a.repo.SaveResult(context.Background(), result); err != nil {
			a.log.WithError(err).Warn("Failed to persist screening result")
		}
	}

	if screenJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printResult(result)
	return nil
}

func printResult(result *contracts.ScreeningResult) {
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  Screening %s  (window %s ~ %s)\n",
		result.RunDate.Format("2006-01-02"),
		result.WindowStart.Format("2006-01-02"),
		result.WindowEnd.Format("2006-01-02"))
	fmt.Println("───────────────────────────────────────────────────────────")
	fmt.Printf("  Universe  : %d\n", result.Counts.Universe)
	fmt.Printf("  Layer 1   : %d\n", result.Counts.Layer1)
	fmt.Printf("  Layer 2   : %d\n", result.Counts.Layer2)
	fmt.Printf("  Layer 3   : %d\n", result.Counts.Layer3)
	fmt.Printf("  Layer 4   : %d\n", result.Counts.Layer4)
	if len(result.TopSectors) > 0 {
		fmt.Printf("  Sectors   : %s\n", strings.Join(result.TopSectors, ", "))
	}
	if result.PartialWindow {
		fmt.Println("  ⚠️  Calendar clamped the requested window")
	}
	if result.PartialCoverage {
		fmt.Println("  ⚠️  Partial data coverage, treat ranking with caution")
	}
	fmt.Println("───────────────────────────────────────────────────────────")

	if len(result.Candidates) == 0 {
		fmt.Println("  No candidates passed all layers")
	}
	for i, c := range result.Candidates {
		best := c.BestSignal()
		fmt.Printf("  %d. %s %s  score=%.3f  rs=%.2f%%  signal=%s(%.2f)\n",
			i+1, c.Symbol.Code, c.Symbol.Name, c.CompositeScore, c.RSScore,
			best.Type, best.Confidence)
	}

	fmt.Println("───────────────────────────────────────────────────────────")
	fmt.Printf("  Fetch ok/failed: %d/%d\n", result.FetchOK, result.FetchFailed)
	if len(result.ExcludedCounts) > 0 {
		reasons := make([]string, 0, len(result.ExcludedCounts))
		for r := range result.ExcludedCounts {
			reasons = append(reasons, string(r))
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			fmt.Printf("  excluded %-22s %d\n", r, result.ExcludedCounts[contracts.Reason(r)])
		}
	}
	fmt.Println("═══════════════════════════════════════════════════════════")
}
