package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/LinkesAuge/chestbuddy/internal/adapters/repository"
	"github.com/LinkesAuge/chestbuddy/internal/domain/types"
)

// Chart kinds served by the dashboard.
const (
	ChartPlayers    = "players"
	ChartChestTypes = "chest_types"
	ChartSources    = "sources"
	ChartTimeline   = "timeline"
)

// ChartKinds enumerates the chart kinds in canonical order.
func ChartKinds() []string {
	return []string{ChartPlayers, ChartChestTypes, ChartSources, ChartTimeline}
}

// ChartData builds one chart series from the current ranking snapshot.
// Value series sort by total descending; the timeline sorts by date.
func (s *Service) ChartData(ctx context.Context, kind string) (types.ChartSeries, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return types.ChartSeries{}, ErrNotStarted
	}
	store := s.store
	s.mu.RUnlock()

	snap := store.Snapshot()

	switch kind {
	case ChartPlayers:
		points := make([]types.ChartPoint, 0, len(snap.TopCache))
		for _, entry := range snap.TopCache {
			points = append(points, types.ChartPoint{Label: entry.Player, Count: entry.Chests, Total: entry.Total})
		}
		return types.ChartSeries{Kind: kind, Points: points}, nil
	case ChartChestTypes:
		return types.ChartSeries{Kind: kind, Points: aggregatePoints(snap.ByChestType, false)}, nil
	case ChartSources:
		return types.ChartSeries{Kind: kind, Points: aggregatePoints(snap.BySource, false)}, nil
	case ChartTimeline:
		return types.ChartSeries{Kind: kind, Points: aggregatePoints(snap.ByDate, true)}, nil
	default:
		return types.ChartSeries{}, fmt.Errorf("%w: %s", ErrUnknownChartKind, kind)
	}
}

// AllCharts builds every chart series concurrently.
func (s *Service) AllCharts(ctx context.Context) (map[string]types.ChartSeries, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return nil, ErrNotStarted
	}
	s.mu.RUnlock()

	var (
		mu  sync.Mutex
		out = make(map[string]types.ChartSeries, len(ChartKinds()))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range ChartKinds() {
		g.Go(func() error {
			series, err := s.ChartData(gctx, kind)
			if err != nil {
				return err
			}
			mu.Lock()
			out[kind] = series
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// TopPlayers returns the n highest ranked players.
func (s *Service) TopPlayers(ctx context.Context, n int) ([]types.Entry, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return nil, ErrNotStarted
	}
	store := s.store
	s.mu.RUnlock()

	entries, err := store.TopPlayers(ctx, n)
	if err != nil {
		return nil, err
	}

	// Convert to API format
	apiEntries := make([]types.Entry, len(entries))
	for i, entry := range entries {
		apiEntries[i] = types.Entry{
			Rank:   entry.Rank,
			Player: entry.Player,
			Total:  entry.Total,
			Chests: entry.Chests,
		}
	}

	return apiEntries, nil
}

// PlayerRank returns one player's rank entry.
func (s *Service) PlayerRank(ctx context.Context, player string) (types.Entry, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return types.Entry{}, ErrNotStarted
	}
	store := s.store
	s.mu.RUnlock()

	entry, err := store.PlayerRank(ctx, player)
	if err != nil {
		return types.Entry{}, err
	}

	return types.Entry{
		Rank:   entry.Rank,
		Player: entry.Player,
		Total:  entry.Total,
		Chests: entry.Chests,
	}, nil
}

// aggregatePoints flattens an aggregate map into chart points. byLabel
// sorts ascending by label; otherwise points sort by total descending with
// label as tiebreaker.
func aggregatePoints(agg map[string]repository.Aggregate, byLabel bool) []types.ChartPoint {
	points := make([]types.ChartPoint, 0, len(agg))
	for label, a := range agg {
		points = append(points, types.ChartPoint{Label: label, Count: a.Count, Total: a.Total})
	}

	sort.Slice(points, func(i, j int) bool {
		if byLabel {
			return points[i].Label < points[j].Label
		}
		if points[i].Total != points[j].Total {
			return points[i].Total > points[j].Total
		}
		return points[i].Label < points[j].Label
	})

	return points
}
