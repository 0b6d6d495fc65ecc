package transform

import "github.com/rickgao/crypto-etl/internal/model"

// Summarize condenses one transformed snapshot into per-run digest figures
// for logging and the ops API.
func Summarize(records []model.TransformedRecord) model.MarketSummary {
	if len(records) == 0 {
		return model.MarketSummary{}
	}

	s := model.MarketSummary{
		Records:     len(records),
		ExtractedAt: records[0].ExtractedAt,
	}

	var priceSum, changeSum float64
	topGainer := records[0]
	mostVolatile := records[0]

	for _, r := range records {
		s.TotalMarketCap += r.MarketCap
		priceSum += r.CurrentPrice
		changeSum += r.PriceChangePct

		switch {
		case r.PriceChangePct > 0:
			s.Gainers++
		case r.PriceChangePct < 0:
			s.Losers++
		}

		if r.PriceChangePct > topGainer.PriceChangePct {
			topGainer = r
		}
		if r.VolatilityScore > mostVolatile.VolatilityScore {
			mostVolatile = r
		}
	}

	n := float64(len(records))
	s.AvgPrice = roundTo(priceSum/n, fieldPrecision)
	s.AvgChangePct = roundTo(changeSum/n, fieldPrecision)
	s.TopGainer = topGainer.EntityID
	s.TopGainerPct = topGainer.PriceChangePct
	s.MostVolatile = mostVolatile.EntityID
	s.MostVolatileScore = mostVolatile.VolatilityScore
	return s
}
