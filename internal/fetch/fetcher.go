package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/rickgao/crypto-etl/internal/model"
	"github.com/rickgao/crypto-etl/internal/validate"
)

// Config holds extraction tuning.
type Config struct {
	// VsCurrency is the quote currency for prices and volumes.
	VsCurrency string

	// TopN is how many assets to request, ordered by market cap.
	TopN int

	// MaxAttempts bounds the total request attempts per run.
	MaxAttempts int

	// BackoffBase is the exponential backoff base in seconds. The wait
	// before attempt n+1 is BackoffBase^n seconds.
	BackoffBase float64
}

// DefaultConfig returns the default extraction configuration.
func DefaultConfig() Config {
	return Config{
		VsCurrency:  "usd",
		TopN:        20,
		MaxAttempts: 3,
		BackoffBase: 2.0,
	}
}

// ExhaustedError reports that every request attempt failed. It wraps the
// last attempt's error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("fetch exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Fetcher retrieves raw market entries from the markets API, persisting an
// audit snapshot of each successful payload before any validation runs.
type Fetcher struct {
	client    *Client
	snapshots *SnapshotStore
	cfg       Config
	logger    *slog.Logger
}

// NewFetcher creates a Fetcher. snapshots may be nil to disable audit
// persistence.
func NewFetcher(client *Client, snapshots *SnapshotStore, cfg Config, logger *slog.Logger) *Fetcher {
	if cfg.VsCurrency == "" {
		cfg.VsCurrency = DefaultConfig().VsCurrency
	}
	if cfg.TopN < 1 {
		cfg.TopN = DefaultConfig().TopN
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultConfig().BackoffBase
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Fetcher{
		client:    client,
		snapshots: snapshots,
		cfg:       cfg,
		logger:    logger.With("component", "fetcher"),
	}
}

// Fetch requests the market payload, retrying transient failures with
// exponential backoff. Every transport error and every non-2xx status is
// transient; a payload with the wrong shape is not, and fails immediately.
// Returns the raw entries and the UTC extraction timestamp.
func (f *Fetcher) Fetch(ctx context.Context) ([]model.RawEntry, time.Time, error) {
	var lastErr error

	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		body, err := f.client.Markets(ctx, f.cfg.VsCurrency, f.cfg.TopN)
		if err != nil {
			if ctx.Err() != nil {
				return nil, time.Time{}, ctx.Err()
			}

			lastErr = err
			f.logger.Warn("fetch attempt failed",
				"attempt", attempt,
				"max_attempts", f.cfg.MaxAttempts,
				"error", err)

			if attempt == f.cfg.MaxAttempts {
				break
			}
			if err := f.wait(ctx, attempt); err != nil {
				return nil, time.Time{}, err
			}
			continue
		}

		extractedAt := time.Now().UTC()

		if f.snapshots != nil {
			path, err := f.snapshots.Save(body, extractedAt)
			if err != nil {
				f.logger.Warn("audit snapshot save failed", "error", err)
			} else {
				f.logger.Debug("audit snapshot saved", "path", path)
			}
		}

		raws, err := validate.Payload(body)
		if err != nil {
			return nil, time.Time{}, err
		}

		f.logger.Info("fetch succeeded",
			"attempt", attempt,
			"entries", len(raws))
		return raws, extractedAt, nil
	}

	return nil, time.Time{}, &ExhaustedError{Attempts: f.cfg.MaxAttempts, Last: lastErr}
}

// wait sleeps for the backoff interval following the given attempt, or
// returns early if the context is cancelled.
func (f *Fetcher) wait(ctx context.Context, attempt int) error {
	backoff := backoffWait(f.cfg.BackoffBase, attempt)
	f.logger.Debug("backing off", "attempt", attempt, "wait", backoff)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff):
		return nil
	}
}

// backoffWait computes base^attempt seconds.
func backoffWait(base float64, attempt int) time.Duration {
	return time.Duration(math.Pow(base, float64(attempt)) * float64(time.Second))
}
