package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats is the session database pool as /healthz reports it.
type PoolStats struct {
	TotalConns    int32  `json:"total_conns"`
	IdleConns     int32  `json:"idle_conns"`
	AcquiredConns int32  `json:"acquired_conns"`
	MaxConns      int32  `json:"max_conns"`
	AcquireWait   string `json:"acquire_wait"`
}

func poolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:    stat.TotalConns(),
		IdleConns:     stat.IdleConns(),
		AcquiredConns: stat.AcquiredConns(),
		MaxConns:      stat.MaxConns(),
		AcquireWait:   stat.AcquireDuration().String(),
	}
}

// Pinger is anything health can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health is the /healthz body.
type Health struct {
	Status   string     `json:"status"`
	Version  string     `json:"version"`
	Sessions string     `json:"sessions"`
	Error    string     `json:"error,omitempty"`
	Pool     *PoolStats `json:"pool,omitempty"`
}

// Check probes the session database when there is one. A nil pinger means
// sessions live in a file and there is nothing to probe.
func Check(ctx context.Context, version string, p Pinger) Health {
	h := Health{Status: "ok", Version: version, Sessions: "file"}
	if p == nil {
		return h
	}
	h.Sessions = "postgres"
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		h.Status = "unhealthy"
		h.Error = err.Error()
	}
	if pool, ok := p.(*pgxpool.Pool); ok {
		h.Pool = poolStats(pool)
	}
	return h
}

// HealthHandler answers /healthz: 200 when the session store is reachable,
// 503 otherwise. pool may be nil.
func HealthHandler(version string, pool *pgxpool.Pool) echo.HandlerFunc {
	var p Pinger
	if pool != nil {
		p = pool
	}
	return func(c echo.Context) error {
		h := Check(c.Request().Context(), version, p)
		if h.Status != "ok" {
			return c.JSON(http.StatusServiceUnavailable, h)
		}
		return c.JSON(http.StatusOK, h)
	}
}
