package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/rickgao/crypto-etl/internal/model"
)

// Sentinel errors for contract violations. Both are fatal for the run and
// never retried: they signal upstream drift or an outage, not a transient
// network fault.
var (
	// ErrSchemaShape reports a top-level payload that is not a non-empty
	// JSON array of objects.
	ErrSchemaShape = errors.New("schema shape violation")

	// ErrNoValidEntries reports a payload where every element failed
	// per-entry validation.
	ErrNoValidEntries = errors.New("no valid entries in payload")
)

// requiredKeys must be present on every market entry. Presence with a JSON
// null value is allowed; nulls are coerced to neutral defaults below.
var requiredKeys = []string{
	"id",
	"symbol",
	"name",
	"current_price",
	"market_cap",
	"total_volume",
	"price_change_percentage_24h",
	"market_cap_rank",
}

// nullRank is substituted when the API omits an asset's market-cap rank.
const nullRank = 9999

// Payload decodes the raw response body into entries, enforcing the minimal
// top-level contract: a non-empty JSON array. An empty array is treated as
// rate limiting or an upstream outage, not as a successful empty snapshot.
func Payload(body []byte) ([]model.RawEntry, error) {
	var entries []model.RawEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("%w: expected a JSON array of market entries: %v", ErrSchemaShape, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: empty market payload (possible rate limiting or outage)", ErrSchemaShape)
	}
	return entries, nil
}

// Entries checks each raw entry for the required fields and coerces values to
// canonical types. An entry missing a field or carrying an uncoercible value
// is dropped with a warning; dropping every entry fails with ErrNoValidEntries.
func Entries(raws []model.RawEntry, logger *slog.Logger) ([]model.ValidatedEntry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	valid := make([]model.ValidatedEntry, 0, len(raws))
	for i, raw := range raws {
		entry, err := one(raw)
		if err != nil {
			logger.Warn("dropping invalid market entry",
				"index", i,
				"entity_id", raw["id"],
				"reason", err)
			continue
		}
		valid = append(valid, entry)
	}

	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: %d entries received, 0 passed validation", ErrNoValidEntries, len(raws))
	}
	return valid, nil
}

func one(raw model.RawEntry) (model.ValidatedEntry, error) {
	for _, key := range requiredKeys {
		if _, ok := raw[key]; !ok {
			return model.ValidatedEntry{}, fmt.Errorf("missing required field %q", key)
		}
	}

	id, err := stringField(raw, "id")
	if err != nil {
		return model.ValidatedEntry{}, err
	}
	symbol, err := stringField(raw, "symbol")
	if err != nil {
		return model.ValidatedEntry{}, err
	}

	// A null name is tolerated; transform substitutes the entity id.
	name, _ := raw["name"].(string)

	price, err := floatField(raw, "current_price")
	if err != nil {
		return model.ValidatedEntry{}, err
	}
	marketCap, err := floatField(raw, "market_cap")
	if err != nil {
		return model.ValidatedEntry{}, err
	}
	volume, err := floatField(raw, "total_volume")
	if err != nil {
		return model.ValidatedEntry{}, err
	}
	change, err := floatField(raw, "price_change_percentage_24h")
	if err != nil {
		return model.ValidatedEntry{}, err
	}
	rank, err := rankField(raw, "market_cap_rank")
	if err != nil {
		return model.ValidatedEntry{}, err
	}

	return model.ValidatedEntry{
		ID:             id,
		Symbol:         symbol,
		Name:           name,
		CurrentPrice:   price,
		MarketCap:      marketCap,
		TotalVolume:    volume,
		PriceChangePct: change,
		Rank:           rank,
	}, nil
}

func stringField(raw model.RawEntry, key string) (string, error) {
	v := raw[key]
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("field %q is not a usable string (got %T)", key, v)
	}
	return s, nil
}

// floatField coerces a numeric field. JSON numbers arrive as float64; string
// numerics are parsed; null becomes 0, since upstream gaps for minor assets
// are expected and must not abort the run.
func floatField(raw model.RawEntry, key string) (float64, error) {
	switch v := raw[key].(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("field %q is not numeric: %q", key, v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("field %q has unsupported type %T", key, v)
	}
}

func rankField(raw model.RawEntry, key string) (int, error) {
	if raw[key] == nil {
		return nullRank, nil
	}
	f, err := floatField(raw, key)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
