package repository

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LinkesAuge/chestbuddy/internal/domain/model"
)

// BenchmarkResult holds the results of a benchmark run
type BenchmarkResult struct {
	Operation     string
	TotalOps      int64
	TotalTime     time.Duration
	AvgLatency    time.Duration
	P50Latency    time.Duration
	P90Latency    time.Duration
	P95Latency    time.Duration
	P99Latency    time.Duration
	Throughput    float64 // ops/sec
	MemoryUsage   uint64  // bytes
	SnapshotCount int64
	ErrorCount    int64
	SuccessRate   float64
}

// APIPerformance tracks performance metrics for each store API
type APIPerformance struct {
	AddBatch   *BenchmarkResult
	PlayerRank *BenchmarkResult
	TopPlayers *BenchmarkResult
	List       *BenchmarkResult
	Count      *BenchmarkResult
}

// ImportStressConfig holds configuration for import-shaped stress testing
type ImportStressConfig struct {
	TotalRecords      int
	TotalPlayers      int
	ChunkSize         int
	ConcurrentWorkers int
	TestDuration      time.Duration
	SnapshotInterval  time.Duration
	TopCacheSize      int

	// API call distribution (percentages)
	AddBatchRatio   float64
	PlayerRankRatio float64
	TopRatio        float64
	ListRatio       float64
	CountRatio      float64

	// TopPlayers query size distribution
	TopSizes       []int
	TopSizeWeights []float64
}

// DefaultImportStressConfig returns a configuration sized like a busy clan
// archive: half a million chest rows spread across a couple thousand players,
// with imports flushing chunks while dashboards query the leaderboard.
func DefaultImportStressConfig() *ImportStressConfig {
	return &ImportStressConfig{
		TotalRecords:      500_000,
		TotalPlayers:      2_000,
		ChunkSize:         200, // matches the import pipeline chunk size
		ConcurrentWorkers: 100,
		TestDuration:      2 * time.Minute,
		SnapshotInterval:  1 * time.Second,
		TopCacheSize:      500,

		// Imports are bursty; queries dominate steady state
		AddBatchRatio:   0.15, // 15% chunk flushes
		PlayerRankRatio: 0.30, // 30% individual rank lookups
		TopRatio:        0.30, // 30% leaderboard views
		ListRatio:       0.15, // 15% record table pages
		CountRatio:      0.10, // 10% count queries

		// Leaderboard views skew small
		TopSizes:       []int{10, 25, 50, 100, 500},
		TopSizeWeights: []float64{0.45, 0.25, 0.15, 0.10, 0.05},
	}
}

var (
	benchSources = []string{
		"Level 10 Crypt", "Level 15 Crypt", "Level 20 Crypt",
		"Level 25 Crypt", "Arena", "Mercenary Exchange",
	}
	benchChests = []string{
		"Wooden Chest", "Bronze Chest", "Fire Chest",
		"Golden Chest", "Ancient Chest",
	}
)

// benchValueTiers mirrors the value spread seen in real chest exports.
var benchValueTiers = []struct {
	min, max int
	weight   float64
}{
	{10, 100, 0.35},    // common chests
	{100, 300, 0.30},   // uncommon
	{300, 600, 0.20},   // rare
	{600, 1200, 0.10},  // epic
	{1200, 3000, 0.05}, // ancient
}

// benchRecord builds one chest record for a random player.
func benchRecord(r *rand.Rand, playerCount int) (model.Record, bool) {
	randVal := r.Float64()
	cumulative := 0.0
	value := benchValueTiers[0].min
	for _, tier := range benchValueTiers {
		cumulative += tier.weight
		if randVal <= cumulative {
			value = tier.min + r.Intn(tier.max-tier.min)
			break
		}
	}

	row := []string{
		fmt.Sprintf("2023-%02d-%02d", 1+r.Intn(12), 1+r.Intn(28)),
		fmt.Sprintf("Player-%d", r.Intn(playerCount)),
		benchSources[r.Intn(len(benchSources))],
		benchChests[r.Intn(len(benchChests))],
		strconv.Itoa(value),
		"MY_CLAN",
	}
	rec, err := model.ParseRow(row)
	if err != nil {
		return model.Record{}, false
	}
	return rec, true
}

// ImportStressTest runs an import-shaped stress test with all APIs under pressure
func ImportStressTest(b *testing.B, config *ImportStressConfig) {
	if config == nil {
		config = DefaultImportStressConfig()
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.TestDuration)
	defer cancel()

	store := NewTreapStore(ctx,
		WithSnapshotInterval(config.SnapshotInterval),
		WithTopCacheSize(config.TopCacheSize),
	)
	defer func() {
		if err := store.Close(); err != nil {
			b.Errorf("failed to close store: %v", err)
		}
	}()

	b.Logf("Pre-populating store with %d chest records across %d players...", config.TotalRecords, config.TotalPlayers)
	start := time.Now()
	populateStoreFromChunks(ctx, store, config)
	b.Logf("Pre-population completed in %v", time.Since(start))

	b.Log("Running import stress test with all APIs under pressure...")
	apiPerformance := runImportStressTest(ctx, store, config)

	generateImportReport(b, apiPerformance, config)
}

// populateStoreFromChunks loads the store the way an import does: chunked
// batches flushed concurrently.
func populateStoreFromChunks(ctx context.Context, store *TreapStore, config *ImportStressConfig) {
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, runtime.NumCPU()*2)

	for i := 0; i < config.TotalRecords; i += config.ChunkSize {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(startIdx int) {
			defer wg.Done()
			defer func() { <-semaphore }()

			size := config.ChunkSize
			if startIdx+size > config.TotalRecords {
				size = config.TotalRecords - startIdx
			}

			r := rand.New(rand.NewSource(int64(startIdx)))
			chunk := make([]model.Record, 0, size)
			for j := 0; j < size; j++ {
				rec, ok := benchRecord(r, config.TotalPlayers)
				if !ok {
					continue
				}
				chunk = append(chunk, rec)
			}
			_, _ = store.AddBatch(ctx, chunk)
		}(i)
	}

	wg.Wait()
}

// runImportStressTest runs all APIs simultaneously under pressure
func runImportStressTest(ctx context.Context, store *TreapStore, config *ImportStressConfig) *APIPerformance {
	var wg sync.WaitGroup

	addBatchMetrics := &MetricsCollector{}
	rankMetrics := &MetricsCollector{}
	topMetrics := &MetricsCollector{}
	listMetrics := &MetricsCollector{}
	countMetrics := &MetricsCollector{}

	testStart := time.Now()

	for i := 0; i < config.ConcurrentWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(int64(workerID) + time.Now().UnixNano()))

			for ctx.Err() == nil {
				apiChoice := r.Float64()

				switch {
				case apiChoice < config.AddBatchRatio:
					// Flush a small chunk like an import worker would
					chunk := make([]model.Record, 0, 20)
					for j := 0; j < 20; j++ {
						rec, ok := benchRecord(r, config.TotalPlayers)
						if !ok {
							continue
						}
						chunk = append(chunk, rec)
					}

					start := time.Now()
					_, err := store.AddBatch(ctx, chunk)
					latency := time.Since(start)

					addBatchMetrics.Record(latency, err == nil)

				case apiChoice < config.AddBatchRatio+config.PlayerRankRatio:
					player := fmt.Sprintf("Player-%d", r.Intn(config.TotalPlayers))

					start := time.Now()
					_, err := store.PlayerRank(ctx, player)
					latency := time.Since(start)

					rankMetrics.Record(latency, err == nil)

				case apiChoice < config.AddBatchRatio+config.PlayerRankRatio+config.TopRatio:
					// Weighted leaderboard size selection
					randVal := r.Float64()
					cumulativeWeight := 0.0
					var selectedSize int

					for i, weight := range config.TopSizeWeights {
						cumulativeWeight += weight
						if randVal <= cumulativeWeight {
							selectedSize = config.TopSizes[i]
							break
						}
					}

					start := time.Now()
					_, err := store.TopPlayers(ctx, selectedSize)
					latency := time.Since(start)

					topMetrics.Record(latency, err == nil)

				case apiChoice < config.AddBatchRatio+config.PlayerRankRatio+config.TopRatio+config.ListRatio:
					// Page through the record table, sometimes filtered
					query := ListQuery{Offset: r.Intn(1000), Limit: 100}
					if r.Float64() < 0.3 {
						query.Player = fmt.Sprintf("Player-%d", r.Intn(config.TotalPlayers))
					}

					start := time.Now()
					_, _, err := store.List(ctx, query)
					latency := time.Since(start)

					listMetrics.Record(latency, err == nil)

				default:
					start := time.Now()
					_ = store.Count(ctx)
					latency := time.Since(start)

					countMetrics.Record(latency, true)
				}

				// Small random delay to prevent overwhelming
				time.Sleep(time.Duration(r.Intn(100)) * time.Microsecond)
			}
		}(i)
	}

	time.Sleep(config.TestDuration)
	wg.Wait()

	totalTime := time.Since(testStart)
	snapshotCount := int64(totalTime / config.SnapshotInterval)

	return &APIPerformance{
		AddBatch:   addBatchMetrics.CalculateResult("AddBatch", totalTime, snapshotCount),
		PlayerRank: rankMetrics.CalculateResult("PlayerRank", totalTime, snapshotCount),
		TopPlayers: topMetrics.CalculateResult("TopPlayers", totalTime, snapshotCount),
		List:       listMetrics.CalculateResult("List", totalTime, snapshotCount),
		Count:      countMetrics.CalculateResult("Count", totalTime, snapshotCount),
	}
}

// MetricsCollector collects latency and success metrics for an API
type MetricsCollector struct {
	latencies  []time.Duration
	successOps int64
	totalOps   int64
	mu         sync.Mutex
}

// Record records a single operation result
func (mc *MetricsCollector) Record(latency time.Duration, success bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.latencies = append(mc.latencies, latency)
	mc.totalOps++
	if success {
		mc.successOps++
	}
}

// CalculateResult calculates benchmark results from collected metrics
func (mc *MetricsCollector) CalculateResult(operation string, totalTime time.Duration, snapshotCount int64) *BenchmarkResult {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if len(mc.latencies) == 0 {
		return &BenchmarkResult{
			Operation:     operation,
			TotalOps:      mc.totalOps,
			TotalTime:     totalTime,
			SnapshotCount: snapshotCount,
			ErrorCount:    mc.totalOps - mc.successOps,
			SuccessRate:   0.0,
		}
	}

	sorted := make([]time.Duration, len(mc.latencies))
	copy(sorted, mc.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	p50Idx := int(float64(len(sorted)) * 0.50)
	p90Idx := int(float64(len(sorted)) * 0.90)
	p95Idx := int(float64(len(sorted)) * 0.95)
	p99Idx := int(float64(len(sorted)) * 0.99)

	var total time.Duration
	for _, lat := range mc.latencies {
		total += lat
	}
	avgLatency := total / time.Duration(len(mc.latencies))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	successRate := float64(mc.successOps) / float64(mc.totalOps) * 100.0

	return &BenchmarkResult{
		Operation:     operation,
		TotalOps:      mc.totalOps,
		TotalTime:     totalTime,
		AvgLatency:    avgLatency,
		P50Latency:    sorted[p50Idx],
		P90Latency:    sorted[p90Idx],
		P95Latency:    sorted[p95Idx],
		P99Latency:    sorted[p99Idx],
		Throughput:    float64(mc.totalOps) / totalTime.Seconds(),
		MemoryUsage:   m.Alloc,
		SnapshotCount: snapshotCount,
		ErrorCount:    mc.totalOps - mc.successOps,
		SuccessRate:   successRate,
	}
}

// generateImportReport generates a detailed performance report
func generateImportReport(b *testing.B, apiPerf *APIPerformance, config *ImportStressConfig) {
	b.Log("\n" + strings.Repeat("=", 100))
	b.Log("IMPORT STRESS TEST REPORT - ALL APIs UNDER PRESSURE")
	b.Log(strings.Repeat("=", 100))
	b.Logf("Configuration:")
	b.Logf("  Total Records: %d", config.TotalRecords)
	b.Logf("  Total Players: %d", config.TotalPlayers)
	b.Logf("  Chunk Size: %d", config.ChunkSize)
	b.Logf("  Concurrent Workers: %d", config.ConcurrentWorkers)
	b.Logf("  Snapshot Interval: %v", config.SnapshotInterval)
	b.Logf("  Top Cache Size: %d", config.TopCacheSize)
	b.Logf("  Test Duration: %v", config.TestDuration)
	b.Logf("  API Distribution: AddBatch(%.1f%%) PlayerRank(%.1f%%) TopPlayers(%.1f%%) List(%.1f%%) Count(%.1f%%)",
		config.AddBatchRatio*100, config.PlayerRankRatio*100, config.TopRatio*100, config.ListRatio*100, config.CountRatio*100)
	b.Logf("")

	b.Logf("API PERFORMANCE SUMMARY:")
	b.Logf("%-15s %12s %12s %12s %12s %12s %12s %10s %10s", "API", "Total Ops", "Throughput", "Avg Latency", "P90 Latency", "P95 Latency", "P99 Latency", "Success%", "Errors")
	b.Logf("%-15s %12s %12s %12s %12s %12s %12s %10s %10s", "", "", "(ops/sec)", "(μs)", "(μs)", "(μs)", "(μs)", "", "")
	b.Log(strings.Repeat("-", 100))

	apis := []struct {
		name   string
		result *BenchmarkResult
	}{
		{"AddBatch", apiPerf.AddBatch},
		{"PlayerRank", apiPerf.PlayerRank},
		{"TopPlayers", apiPerf.TopPlayers},
		{"List", apiPerf.List},
		{"Count", apiPerf.Count},
	}

	for _, api := range apis {
		if api.result.TotalOps > 0 {
			b.Logf("%-15s %12d %12.0f %12d %12d %12d %12d %10.1f %10d",
				api.name,
				api.result.TotalOps,
				api.result.Throughput,
				api.result.AvgLatency.Microseconds(),
				api.result.P90Latency.Microseconds(),
				api.result.P95Latency.Microseconds(),
				api.result.P99Latency.Microseconds(),
				api.result.SuccessRate,
				api.result.ErrorCount,
			)
		}
	}

	b.Logf("")
	b.Logf("DETAILED LATENCY ANALYSIS:")
	b.Logf("")

	for _, api := range apis {
		if api.result.TotalOps > 0 {
			b.Logf("%s Latency Distribution:", api.name)
			b.Logf("  P50: %8d μs (median)", api.result.P50Latency.Microseconds())
			b.Logf("  P90: %8d μs (90%% of requests faster)", api.result.P90Latency.Microseconds())
			b.Logf("  P95: %8d μs (95%% of requests faster)", api.result.P95Latency.Microseconds())
			b.Logf("  P99: %8d μs (99%% of requests faster)", api.result.P99Latency.Microseconds())
			b.Logf("  Tail Latency (P99-P50): %8d μs", (api.result.P99Latency - api.result.P50Latency).Microseconds())
			b.Logf("")
		}
	}

	b.Logf("PERFORMANCE INSIGHTS:")

	var bestAPI, worstAPI *BenchmarkResult
	var bestThroughput, worstThroughput float64

	for _, api := range apis {
		if api.result.Throughput > 0 {
			if bestAPI == nil || api.result.Throughput > bestThroughput {
				bestAPI = api.result
				bestThroughput = api.result.Throughput
			}
			if worstAPI == nil || api.result.Throughput < worstThroughput {
				worstAPI = api.result
				worstThroughput = api.result.Throughput
			}
		}
	}

	if bestAPI != nil && worstAPI != nil {
		b.Logf("  Best Performance: %s (%.0f ops/sec)", bestAPI.Operation, bestAPI.Throughput)
		b.Logf("  Worst Performance: %s (%.0f ops/sec)", worstAPI.Operation, worstAPI.Throughput)
		b.Logf("  Performance Ratio: %.2fx", bestAPI.Throughput/worstAPI.Throughput)
	}

	b.Logf("")
	b.Logf("LATENCY CONSISTENCY ANALYSIS:")
	for _, api := range apis {
		if api.result.TotalOps > 0 {
			latencySpread := float64(api.result.P99Latency) / float64(api.result.P50Latency)
			consistency := "Good"
			if latencySpread > 10 {
				consistency = "Poor"
			} else if latencySpread > 5 {
				consistency = "Fair"
			}
			b.Logf("  %s: P99/P50 ratio = %.2fx (%s consistency)",
				api.name, latencySpread, consistency)
		}
	}

	b.Logf("")
	b.Logf("RESOURCE ANALYSIS:")
	for _, api := range apis {
		if api.result.MemoryUsage > 0 {
			b.Logf("  %s Memory Usage: %s", api.name, formatBytes(api.result.MemoryUsage))
		}
	}

	b.Logf("")
	b.Logf("SNAPSHOT IMPACT:")
	for _, api := range apis {
		if api.result.SnapshotCount > 0 {
			b.Logf("  %s: %d snapshots during test", api.name, api.result.SnapshotCount)
		}
	}

	b.Log(strings.Repeat("=", 100))
}

// formatBytes formats bytes into human-readable format
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// Benchmark functions for Go's testing framework
func BenchmarkTreapStore_ImportStress(b *testing.B) {
	config := DefaultImportStressConfig()
	ImportStressTest(b, config)
}

func BenchmarkTreapStore_ImportHeavyStress(b *testing.B) {
	config := DefaultImportStressConfig()
	config.AddBatchRatio = 0.60 // bulk import in progress
	config.PlayerRankRatio = 0.15
	config.TopRatio = 0.15
	config.ListRatio = 0.05
	config.CountRatio = 0.05
	ImportStressTest(b, config)
}

func BenchmarkTreapStore_DashboardHeavyStress(b *testing.B) {
	config := DefaultImportStressConfig()
	config.AddBatchRatio = 0.05 // steady state between imports
	config.PlayerRankRatio = 0.35
	config.TopRatio = 0.40
	config.ListRatio = 0.15
	config.CountRatio = 0.05
	ImportStressTest(b, config)
}
