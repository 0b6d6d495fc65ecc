package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/crypto-etl/internal/model"
	"github.com/rickgao/crypto-etl/internal/pipeline"
	"github.com/rickgao/crypto-etl/internal/version"
)

const healthProbeTimeout = 5 * time.Second

type handler struct {
	orch   Triggerer
	store  Store
	logger *slog.Logger
}

// trigger runs the pipeline synchronously and returns the run outcome.
// POST /api/v1/etl/trigger
func (h *handler) trigger(c *gin.Context) {
	outcome, err := h.orch.TriggerNow(model.TriggerManual)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, pipeline.ErrCircuitOpen):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":    err.Error(),
			"failures": h.orch.BreakerFailures(),
		})
		return
	case errors.Is(err, pipeline.ErrStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusOK
	if !outcome.Success {
		status = http.StatusInternalServerError
	}
	c.JSON(status, runResponse(outcome))
}

// health reports storage reachability and breaker state.
// GET /health
func (h *handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthProbeTimeout)
	defer cancel()

	status := "healthy"
	components := gin.H{}

	rows, err := h.store.RowCount(ctx)
	if err != nil {
		status = "unhealthy"
		components["storage"] = gin.H{
			"backend": h.store.Name(),
			"error":   err.Error(),
		}
	} else {
		components["storage"] = gin.H{
			"backend": h.store.Name(),
			"rows":    rows,
		}
	}

	open := h.orch.BreakerOpen()
	components["breaker"] = gin.H{
		"open":     open,
		"failures": h.orch.BreakerFailures(),
	}
	if open && status == "healthy" {
		status = "degraded"
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":     status,
		"version":    version.String(),
		"components": components,
	})
}

// latest returns the rows of the most recent extraction, ordered by rank.
// GET /api/v1/market/latest
func (h *handler) latest(c *gin.Context) {
	rows, err := h.store.LatestSnapshot(c.Request.Context())
	if err != nil {
		h.logger.Error("latest snapshot query failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read latest snapshot"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(rows),
		"rows":  rows,
	})
}

// runResponse flattens a RunOutcome for the wire.
func runResponse(o model.RunOutcome) gin.H {
	resp := gin.H{
		"run_id":              o.RunID.String(),
		"trigger":             o.Trigger,
		"started_at":          o.StartedAt,
		"success":             o.Success,
		"entries_extracted":   o.EntriesExtracted,
		"records_transformed": o.RecordsTransformed,
		"duration_ms":         o.Duration.Milliseconds(),
	}
	if o.Err != "" {
		resp["error"] = o.Err
	}
	if o.Load != nil {
		resp["load"] = gin.H{
			"total":      o.Load.Total,
			"upserted":   o.Load.Upserted,
			"failed":     o.Load.Failed,
			"elapsed_ms": o.Load.Elapsed.Milliseconds(),
		}
	}
	if o.Summary != nil {
		resp["summary"] = gin.H{
			"records":             o.Summary.Records,
			"total_market_cap":    o.Summary.TotalMarketCap,
			"avg_price":           o.Summary.AvgPrice,
			"avg_change_pct":      o.Summary.AvgChangePct,
			"gainers":             o.Summary.Gainers,
			"losers":              o.Summary.Losers,
			"top_gainer":          o.Summary.TopGainer,
			"top_gainer_pct":      o.Summary.TopGainerPct,
			"most_volatile":       o.Summary.MostVolatile,
			"most_volatile_score": o.Summary.MostVolatileScore,
			"extracted_at":        o.Summary.ExtractedAt,
		}
	}
	return resp
}
