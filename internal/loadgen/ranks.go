package loadgen

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/LinkesAuge/chestbuddy/pkg/logger"
)

// retrieveRanks queries the rank endpoint for every player
// concurrently and returns the entries keyed by player name.
func retrieveRanks(ctx context.Context, client *HTTPClient, config *Config, players []string, stats *Stats) (map[string]Entry, error) {
	logger.Get().Info(ctx, "retrieving player ranks",
		logger.Int("players", len(players)),
		logger.Int("workers", config.Workers))

	var (
		mu        sync.Mutex
		ranks     = make(map[string]Entry, len(players))
		failed    int64
		nameChan  = make(chan string, config.Workers*2)
		wg        sync.WaitGroup
		workerCnt = minInt(config.Workers, len(players))
	)

	for i := 0; i < workerCnt; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range nameChan {
				if ctx.Err() != nil {
					return
				}
				entry, err := retrieveSingleRank(ctx, client, config.BaseURL, name)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					if config.Verbose {
						logger.Get().Warn(ctx, "rank lookup failed",
							logger.String("player", name), logger.Error(err))
					}
					continue
				}
				mu.Lock()
				ranks[name] = entry
				mu.Unlock()
			}
		}()
	}

	go func() {
		defer close(nameChan)
		for _, name := range players {
			select {
			case <-ctx.Done():
				return
			case nameChan <- name:
			}
		}
	}()

	wg.Wait()

	stats.RanksChecked = len(ranks)
	logger.Get().Info(ctx, "rank retrieval completed",
		logger.Int("retrieved", len(ranks)),
		logger.Int("failed", int(atomic.LoadInt64(&failed))))

	return ranks, nil
}

// retrieveSingleRank fetches one player's leaderboard entry. Names go
// through path escaping so non-ASCII players resolve.
func retrieveSingleRank(ctx context.Context, client *HTTPClient, baseURL, player string) (Entry, error) {
	reqURL := fmt.Sprintf("%s/api/v1/players/%s/rank", baseURL, url.PathEscape(player))

	resp, err := client.Get(ctx, reqURL)
	if err != nil {
		return Entry{}, fmt.Errorf("request failed: %w", err)
	}
	var entry Entry
	if err := decodeResponse(resp, statusOK, &entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
