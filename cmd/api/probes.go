package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

// databaseProbe reports database reachability for GET /health.
type databaseProbe struct {
	pool *pgxpool.Pool
}

func (p *databaseProbe) Name() string { return "database" }

func (p *databaseProbe) Check(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// archiveProbe reports climate-archive reachability. Any HTTP response counts
// as reachable; only transport-level failures mark the probe unhealthy.
type archiveProbe struct {
	client  *http.Client
	baseURL string
}

func (p *archiveProbe) Name() string { return "archive" }

func (p *archiveProbe) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.baseURL, nil)
	if err != nil {
		return fmt.Errorf("building archive probe request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("archive unreachable: %w", err)
	}
	defer resp.Body.Close()
	return nil
}
