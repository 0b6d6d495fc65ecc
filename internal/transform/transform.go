package transform

import (
	"errors"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rickgao/crypto-etl/internal/model"
)

// Clamp bounds per field. Values outside these ranges indicate unit or scale
// drift from the upstream API and are pinned to the nearest bound.
const (
	MaxPrice     = 1e9
	MaxMarketCap = 1e15
	MaxVolume    = 1e13
	MinChangePct = -100
	MaxChangePct = 10000
	MinRank      = 1
	MaxRank      = 100000
)

// Rounding precision: ordinary numeric fields and the derived score.
const (
	fieldPrecision = 8
	scorePrecision = 4
)

var errBlankID = errors.New("blank entity id")

// Records converts validated entries into durable records stamped with
// extractedAt (normalized to UTC). It is pure and never fails as a whole:
// a defective entry is logged and dropped, the surviving subset is returned
// sorted ascending by rank so load order is deterministic.
func Records(entries []model.ValidatedEntry, extractedAt time.Time, logger *slog.Logger) []model.TransformedRecord {
	if logger == nil {
		logger = slog.Default()
	}
	extractedAt = extractedAt.UTC()

	records := make([]model.TransformedRecord, 0, len(entries))
	for _, e := range entries {
		rec, err := record(e, extractedAt)
		if err != nil {
			logger.Warn("dropping entry during transform",
				"entity_id", e.ID,
				"reason", err)
			continue
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Rank < records[j].Rank
	})
	return records
}

func record(e model.ValidatedEntry, extractedAt time.Time) (model.TransformedRecord, error) {
	entityID := strings.TrimSpace(e.ID)
	if entityID == "" {
		return model.TransformedRecord{}, errBlankID
	}

	symbol := strings.ToUpper(strings.TrimSpace(e.Symbol))
	name := strings.TrimSpace(e.Name)
	if name == "" {
		name = entityID
	}

	price := cleanFloat(e.CurrentPrice, 0, MaxPrice)
	marketCap := cleanFloat(e.MarketCap, 0, MaxMarketCap)
	volume := cleanFloat(e.TotalVolume, 0, MaxVolume)
	change := cleanFloat(e.PriceChangePct, MinChangePct, MaxChangePct)
	rank := clampInt(e.Rank, MinRank, MaxRank)

	// Derived after clamping so score bounds follow field bounds.
	score := roundTo(math.Abs(change)*volume, scorePrecision)

	return model.TransformedRecord{
		EntityID:        entityID,
		Symbol:          symbol,
		Name:            name,
		CurrentPrice:    price,
		MarketCap:       marketCap,
		TotalVolume:     volume,
		PriceChangePct:  change,
		Rank:            rank,
		VolatilityScore: score,
		ExtractedAt:     extractedAt,
	}, nil
}

// cleanFloat replaces NaN/Inf with 0, clamps into [lo, hi], and rounds.
// Downstream scoring and comparisons rely on every field passing through here.
func cleanFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return roundTo(clamp(v, lo, hi), fieldPrecision)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
