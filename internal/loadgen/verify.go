package loadgen

import (
	"context"
	"fmt"
	"sort"

	"github.com/LinkesAuge/chestbuddy/pkg/logger"
)

const topDisplayCount = 10

// verifyResults checks the finished import and the server's rankings
// against the generator's own bookkeeping. It assumes a fresh server;
// pre-existing records for the same players will show up as mismatches.
func verifyResults(ctx context.Context, config *Config, expected map[string]*PlayerTotal, status jobStatus, leaderboard []Entry, ranks map[string]Entry, stats *Stats) error {
	logger.Get().Info(ctx, "verifying results")

	mismatches := 0

	wantRows := 0
	for _, t := range expected {
		wantRows += t.Chests
	}
	if status.Progress.RowsImported != wantRows {
		mismatches++
		logger.Get().Warn(ctx, "imported row count differs from bookkeeping",
			logger.Int("imported", status.Progress.RowsImported),
			logger.Int("expected", wantRows))
	}
	if status.Progress.Duplicates != 0 {
		mismatches++
		logger.Get().Warn(ctx, "server dropped rows as duplicates",
			logger.Int("duplicates", status.Progress.Duplicates))
	}

	mismatches += verifyLeaderboard(ctx, expected, leaderboard)
	mismatches += verifyRanks(ctx, expected, ranks)

	displayTopPlayers(ctx, leaderboard, config.Verbose)

	stats.Mismatches = mismatches
	if mismatches > 0 {
		return fmt.Errorf("verification found %d mismatches", mismatches)
	}

	logger.Get().Info(ctx, "verification passed")
	return nil
}

// verifyLeaderboard checks ordering and that every entry for a known
// player carries the bookkept total.
func verifyLeaderboard(ctx context.Context, expected map[string]*PlayerTotal, leaderboard []Entry) int {
	mismatches := 0

	for i := 1; i < len(leaderboard); i++ {
		if leaderboard[i].Total > leaderboard[i-1].Total {
			mismatches++
			logger.Get().Warn(ctx, "leaderboard out of order",
				logger.Int("position", i),
				logger.String("player", leaderboard[i].Player))
		}
	}

	for _, entry := range leaderboard {
		want, ok := expected[entry.Player]
		if !ok {
			// Someone else's data; only a concern on a fresh server.
			continue
		}
		if entry.Total != want.Total || entry.Chests != want.Chests {
			mismatches++
			logger.Get().Warn(ctx, "leaderboard entry differs from bookkeeping",
				logger.String("player", entry.Player),
				logger.Int("gotTotal", entry.Total),
				logger.Int("wantTotal", want.Total),
				logger.Int("gotChests", entry.Chests),
				logger.Int("wantChests", want.Chests))
		}
	}

	return mismatches
}

// verifyRanks checks the per-player rank lookups against bookkeeping.
func verifyRanks(ctx context.Context, expected map[string]*PlayerTotal, ranks map[string]Entry) int {
	mismatches := 0

	for player, want := range expected {
		entry, ok := ranks[player]
		if !ok {
			mismatches++
			logger.Get().Warn(ctx, "player missing from rank lookups",
				logger.String("player", player))
			continue
		}
		if entry.Total != want.Total {
			mismatches++
			logger.Get().Warn(ctx, "rank total differs from bookkeeping",
				logger.String("player", player),
				logger.Int("got", entry.Total),
				logger.Int("want", want.Total))
		}
	}

	return mismatches
}

// displayTopPlayers logs the head of the leaderboard.
func displayTopPlayers(ctx context.Context, leaderboard []Entry, verbose bool) {
	n := minInt(topDisplayCount, len(leaderboard))
	for i := 0; i < n; i++ {
		entry := leaderboard[i]
		logger.Get().Info(ctx, "leaderboard entry",
			logger.Int("rank", entry.Rank),
			logger.String("player", entry.Player),
			logger.Int("total", entry.Total),
			logger.Int("chests", entry.Chests))
	}

	if verbose && len(leaderboard) > 0 {
		totals := make([]int, len(leaderboard))
		sum := 0
		for i, entry := range leaderboard {
			totals[i] = entry.Total
			sum += entry.Total
		}
		sort.Ints(totals)
		logger.Get().Info(ctx, "leaderboard value spread",
			logger.Int("entries", len(leaderboard)),
			logger.Int("min", totals[0]),
			logger.Int("max", totals[len(totals)-1]),
			logger.Int("mean", sum/len(leaderboard)))
	}
}
