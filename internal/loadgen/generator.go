package loadgen

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/LinkesAuge/chestbuddy/pkg/logger"
)

// Defect kind weights; misspellings are the common real-world case.
const (
	weightMisspelledChest = 4
	weightUnknownPlayer   = 3
	weightBadDate         = 2
	weightBadValue        = 1
	weightDefectTotal     = weightMisspelledChest + weightUnknownPlayer + weightBadDate + weightBadValue
)

// ctx cancellation is checked once per this many rows.
const cancelCheckInterval = 1024

// Generator produces chest rows from the weighted pools and keeps its
// own per-player bookkeeping for drive-mode verification.
type Generator struct {
	rng      *rand.Rand
	config   *Config
	today    time.Time
	seen     map[string]struct{}
	expected map[string]*PlayerTotal
}

// NewGenerator creates a generator. A zero seed picks a random one; any
// other seed reproduces the same fixture shape.
func NewGenerator(config *Config) *Generator {
	seed := config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Generator{
		rng:      rand.New(rand.NewPCG(seed, seed)),
		config:   config,
		today:    time.Now().UTC().Truncate(24 * time.Hour),
		seen:     make(map[string]struct{}),
		expected: make(map[string]*PlayerTotal),
	}
}

// Generate produces the configured number of rows. Rows that will
// import are kept unique by content so server-side duplicate detection
// cannot skew the bookkeeping.
func (g *Generator) Generate(ctx context.Context) ([]Row, error) {
	logger.Get().Info(ctx, "generating chest rows",
		logger.Int("records", g.config.NumRecords),
		logger.Float64("errorRate", g.config.ErrorRate))

	rows := make([]Row, 0, g.config.NumRecords)
	defects := 0

	for i := 0; i < g.config.NumRecords; i++ {
		if i%cancelCheckInterval == 0 && ctx.Err() != nil {
			return nil, fmt.Errorf("row generation cancelled: %w", ctx.Err())
		}

		row := g.cleanRow()
		if g.config.ErrorRate > 0 && g.rng.Float64() < g.config.ErrorRate {
			g.injectDefect(&row)
			defects++
		}

		if row.imports() {
			g.dedupe(&row)
			g.record(row)
		}
		rows = append(rows, row)
	}

	logger.Get().Info(ctx, "generated chest rows",
		logger.Int("rows", len(rows)),
		logger.Int("defects", defects),
		logger.Int("players", len(g.expected)))

	return rows, nil
}

// Expected returns the per-player totals for rows the server should
// import, keyed by the name as submitted.
func (g *Generator) Expected() map[string]*PlayerTotal {
	return g.expected
}

// ExpectedImports returns how many generated rows should import.
func (g *Generator) ExpectedImports() int {
	n := 0
	for _, t := range g.expected {
		n += t.Chests
	}
	return n
}

func (g *Generator) cleanRow() Row {
	player := pickWeighted(g.rng, playerPool)
	tier := pickTier(g.rng)
	value := tier.minValue + g.rng.IntN(tier.maxValue-tier.minValue+1)
	date := g.today.AddDate(0, 0, -g.rng.IntN(maxInt(g.config.Days, 1)))

	clan, ok := clanByPlayer[player]
	if !ok {
		clan = defaultClan
	}

	return Row{
		Date:      date.Format("2006-01-02"),
		Player:    player,
		Source:    pickWeighted(g.rng, sourcePool),
		ChestType: tier.name,
		Value:     strconv.Itoa(value),
		Clan:      clan,
	}
}

func (g *Generator) injectDefect(row *Row) {
	switch n := g.rng.IntN(weightDefectTotal); {
	case n < weightMisspelledChest:
		m := chestMisspellings[g.rng.IntN(len(chestMisspellings))]
		row.ChestType = m.garbled
		row.Defect = DefectMisspelledChest
	case n < weightMisspelledChest+weightUnknownPlayer:
		row.Player = unknownPlayers[g.rng.IntN(len(unknownPlayers))]
		row.Clan = defaultClan
		row.Defect = DefectUnknownPlayer
	case n < weightMisspelledChest+weightUnknownPlayer+weightBadDate:
		row.Date = badDates[g.rng.IntN(len(badDates))]
		row.Defect = DefectBadDate
	default:
		row.Value = badValues[g.rng.IntN(len(badValues))]
		row.Defect = DefectBadValue
	}
}

// dedupe bumps the value until the row's content is unique. The server
// dedupes on full row content, so colliding rows would silently vanish
// from the totals.
func (g *Generator) dedupe(row *Row) {
	key := strings.Join(row.cells(), "\x1f")
	for {
		if _, dup := g.seen[key]; !dup {
			g.seen[key] = struct{}{}
			return
		}
		v, err := strconv.Atoi(row.Value)
		if err != nil {
			return
		}
		row.Value = strconv.Itoa(v + 1)
		key = strings.Join(row.cells(), "\x1f")
	}
}

func (g *Generator) record(row Row) {
	v, err := strconv.Atoi(row.Value)
	if err != nil {
		return
	}
	t, ok := g.expected[row.Player]
	if !ok {
		t = &PlayerTotal{}
		g.expected[row.Player] = t
	}
	t.Total += v
	t.Chests++
}

func pickWeighted(rng *rand.Rand, pool []weightedName) string {
	total := 0
	for _, p := range pool {
		total += p.weight
	}
	n := rng.IntN(total)
	for _, p := range pool {
		if n < p.weight {
			return p.name
		}
		n -= p.weight
	}
	return pool[len(pool)-1].name
}

func pickTier(rng *rand.Rand) chestTier {
	total := 0
	for _, t := range chestPool {
		total += t.weight
	}
	n := rng.IntN(total)
	for _, t := range chestPool {
		if n < t.weight {
			return t
		}
		n -= t.weight
	}
	return chestPool[len(chestPool)-1]
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
