package loadgen

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/LinkesAuge/chestbuddy/pkg/logger"
)

// Run executes a load generation run: build rows, write the fixture
// and, in drive mode, import it through a running server and verify
// the resulting rankings.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting chest load generation",
		logger.Int("records", config.NumRecords),
		logger.Int("days", config.Days),
		logger.Float64("errorRate", config.ErrorRate),
		logger.String("encoding", encodingName(config.Encoding)),
		logger.Any("drive", config.Drive),
		logger.String("baseURL", config.BaseURL))

	path := config.OutputFile
	if path == "" {
		path = "chests_" + time.Now().Format("20060102_150405") + ".csv"
	}
	// The server opens the fixture itself, so hand it an absolute path.
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve fixture path: %w", err)
	}

	gen := NewGenerator(config)
	rows, err := gen.Generate(ctx)
	if err != nil {
		return fmt.Errorf("row generation failed: %w", err)
	}
	stats.RecordsGenerated = len(rows)
	for _, row := range rows {
		if row.Defect != "" {
			stats.DefectsInjected++
		}
	}
	stats.RowsExpected = gen.ExpectedImports()

	if err := WriteFixture(ctx, absPath, rows, config.Encoding); err != nil {
		return fmt.Errorf("fixture write failed: %w", err)
	}

	var client *HTTPClient
	var runErr error
	if config.Drive {
		client = newHTTPClient(config.Timeout)
		runErr = drive(ctx, client, config, gen, absPath, stats)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats, client)

	if runErr != nil {
		return runErr
	}
	logger.Get().Info(ctx, "load generation completed successfully")
	return nil
}

// drive pushes the fixture through a running server and verifies the
// outcome against the generator's bookkeeping.
func drive(ctx context.Context, client *HTTPClient, config *Config, gen *Generator, fixture string, stats *Stats) error {
	if err := checkServiceHealth(ctx, client, config.BaseURL); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}
	logger.Get().Info(ctx, "service is healthy")

	jobID, err := submitImport(ctx, client, config.BaseURL, fixture)
	if err != nil {
		return err
	}
	logger.Get().Info(ctx, "import accepted", logger.String("jobID", jobID))

	status, err := pollImport(ctx, client, config.BaseURL, jobID)
	if err != nil {
		return err
	}
	stats.JobState = status.State
	stats.RowsImported = status.Progress.RowsImported
	stats.Duplicates = status.Progress.Duplicates
	stats.Invalid = status.Progress.Invalid
	stats.Corrected = status.Progress.Corrected

	if status.State != "completed" {
		return fmt.Errorf("import finished in state %q: %s", status.State, status.Error)
	}
	logger.Get().Info(ctx, "import completed",
		logger.Int("rowsRead", status.Progress.RowsRead),
		logger.Int("rowsImported", status.Progress.RowsImported),
		logger.Int("invalid", status.Progress.Invalid),
		logger.Int("corrected", status.Progress.Corrected))

	leaderboard, err := getLeaderboard(ctx, client, config)
	if err != nil {
		return fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	stats.LeaderboardEntries = len(leaderboard)

	players := make([]string, 0, len(gen.Expected()))
	for player := range gen.Expected() {
		players = append(players, player)
	}
	sort.Strings(players)

	ranks, err := retrieveRanks(ctx, client, config, players, stats)
	if err != nil {
		return fmt.Errorf("rank retrieval failed: %w", err)
	}

	if err := verifyResults(ctx, config, gen.Expected(), status, leaderboard, ranks, stats); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}
	return nil
}

// displayFinalStats logs run statistics and, for drive runs, the
// request latency percentiles.
func displayFinalStats(stats *Stats, client *HTTPClient) {
	ctx := context.Background()

	logger.Get().Info(ctx, "final statistics",
		logger.Int("recordsGenerated", stats.RecordsGenerated),
		logger.Int("defectsInjected", stats.DefectsInjected),
		logger.Int("rowsExpected", stats.RowsExpected),
		logger.String("jobState", stats.JobState),
		logger.Int("rowsImported", stats.RowsImported),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("invalid", stats.Invalid),
		logger.Int("corrected", stats.Corrected),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Int("ranksChecked", stats.RanksChecked),
		logger.Int("mismatches", stats.Mismatches),
		logger.Duration("duration", stats.Duration))

	if client == nil || client.lat.count() == 0 {
		return
	}
	logger.Get().Info(ctx, "request latency",
		logger.Int("requests", client.lat.count()),
		logger.Duration("p50", client.lat.percentile(50)),
		logger.Duration("p90", client.lat.percentile(90)),
		logger.Duration("p99", client.lat.percentile(99)))
}
