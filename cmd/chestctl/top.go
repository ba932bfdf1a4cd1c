package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LinkesAuge/chestbuddy/internal/adapters/repository"
)

var topCmd = &cobra.Command{
	Use:   "top <file.csv>",
	Short: "Offline leaderboard for a CSV file",
	Long: `Aggregates chest values per player and prints the leaderboard the
server would build from the same data: ordered by total value, ties
sharing a rank. No deduplication, correction or validation runs; feed
the output of 'chestctl import' for cleaned numbers.

Example:
  chestctl import week12.csv week13.csv --out merged.csv
  chestctl top merged.csv --n 10`,
	Args: cobra.ExactArgs(1),
	RunE: runTop,
}

var topN int

func init() {
	topCmd.Flags().IntVarP(&topN, "n", "n", 10, "number of players to show")
}

func runTop(cmd *cobra.Command, args []string) error {
	if topN <= 0 {
		return fmt.Errorf("n must be positive, got %d", topN)
	}
	ctx := cmd.Context()

	recs, rowErrs, _, err := readRecords(ctx, args[0])
	if err != nil {
		return err
	}

	// The same store the server ranks with, used in place.
	store := repository.NewTreapStore(ctx)
	defer store.Close()

	if _, err := store.AddBatch(ctx, recs); err != nil {
		return err
	}

	entries, err := store.TopPlayers(ctx, topN)
	if err != nil {
		return err
	}

	fmt.Printf("%4s  %-28s %12s %8s\n", "RANK", "PLAYER", "TOTAL", "CHESTS")
	for _, e := range entries {
		fmt.Printf("%4d  %-28s %12d %8d\n", e.Rank, e.Player, e.Total, e.Chests)
	}

	fmt.Printf("\n%d records, %d players", len(recs), store.PlayerCount(ctx))
	if len(rowErrs) > 0 {
		fmt.Printf(", %d malformed rows skipped", len(rowErrs))
	}
	fmt.Println()
	return nil
}
