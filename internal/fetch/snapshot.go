package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rickgao/crypto-etl/internal/model"
	"github.com/rickgao/crypto-etl/internal/validate"
)

const (
	snapshotSource = "coingecko_markets"
	snapshotPrefix = "coingecko_"
	snapshotStamp  = "20060102T150405Z"
)

// Snapshot is the on-disk audit record of one raw extraction payload.
type Snapshot struct {
	ExtractedAt time.Time       `json:"extracted_at"`
	EntryCount  int             `json:"entry_count"`
	Source      string          `json:"source"`
	Data        json.RawMessage `json:"data"`
}

// SnapshotStore persists raw payloads as timestamped JSON files in a
// directory, one file per extraction.
type SnapshotStore struct {
	dir string
}

// NewSnapshotStore creates a store rooted at dir. The directory is created
// on first save.
func NewSnapshotStore(dir string) *SnapshotStore {
	return &SnapshotStore{dir: dir}
}

// Save writes the payload as coingecko_<stamp>.json and returns the file
// path. The payload is stored verbatim, before any shape validation, so the
// audit trail captures exactly what the API returned.
func (s *SnapshotStore) Save(payload []byte, extractedAt time.Time) (string, error) {
	if !json.Valid(payload) {
		return "", errors.New("payload is not valid JSON")
	}

	count := 0
	var arr []json.RawMessage
	if err := json.Unmarshal(payload, &arr); err == nil {
		count = len(arr)
	}

	snap := Snapshot{
		ExtractedAt: extractedAt.UTC(),
		EntryCount:  count,
		Source:      snapshotSource,
		Data:        json.RawMessage(payload),
	}

	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := snapshotPrefix + extractedAt.UTC().Format(snapshotStamp) + ".json"
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// List returns snapshot paths, newest first. limit <= 0 returns all. A
// missing directory is treated as an empty store.
func (s *SnapshotStore) List(limit int) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot dir: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, name))
	}

	// Timestamped names sort chronologically; reverse for newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}
	return paths, nil
}

// LoadSnapshot reads and decodes a snapshot file.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", filepath.Base(path), err)
	}

	return &snap, nil
}

// SnapshotFetcher replays a previously saved snapshot through the pipeline
// in place of a live API call.
type SnapshotFetcher struct {
	snap *Snapshot
}

// NewSnapshotFetcher creates a fetcher that serves the given snapshot.
func NewSnapshotFetcher(snap *Snapshot) *SnapshotFetcher {
	return &SnapshotFetcher{snap: snap}
}

// Fetch returns the snapshot's raw entries and its original extraction
// timestamp. The payload goes through the same shape validation as a live
// response.
func (s *SnapshotFetcher) Fetch(ctx context.Context) ([]model.RawEntry, time.Time, error) {
	raws, err := validate.Payload(s.snap.Data)
	if err != nil {
		return nil, time.Time{}, err
	}
	return raws, s.snap.ExtractedAt.UTC(), nil
}
