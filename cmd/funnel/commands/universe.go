package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/youngcan/wyckoff-funnel/internal/contracts"
)

// universeCmd represents the universe command
var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "Build and inspect the symbol universe",
	Long: `Builds the investable symbol pool by applying the static listing
rules (boards, ST/*ST, suspension) and prints the exclusion breakdown.

Example:
  go run ./cmd/funnel universe`,
	RunE: runUniverse,
}

func init() {
	rootCmd.AddCommand(universeCmd)
}

func runUniverse(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.close()

	uni, err := a.builder.Build(context.Background())
	if err != nil {
		return fmt.Errorf("build universe: %w", err)
	}

	counts := make(map[contracts.Reason]int)
	for _, reason := range uni.Excluded {
		counts[reason]++
	}

	fmt.Printf("Universe: %d symbols (%d excluded)\n", len(uni.Symbols), len(uni.Excluded))

	reasons := make([]string, 0, len(counts))
	for r := range counts {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Printf("  excluded %-16s %d\n", r, counts[contracts.Reason(r)])
	}

	return nil
}
