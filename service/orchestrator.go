/*
 * Copyright (C) 2022-2025. Gardel <gardel741@outlook.com> and contributors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package service

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"optimade-gateway-go/model"
)

// Orchestrator runs one federated query to completion: fan-out to every
// member database, per-database timeout, an overall gateway deadline, and
// handoff to the merger. Suitable to invoke synchronously or detached in the
// background (spec §4.E).
type Orchestrator struct {
	registry       *GatewayRegistry
	queries        *QueryStore
	client         *UpstreamClient
	maxConcurrent  int64
	perDBTimeout   time.Duration
	gatewayTimeout time.Duration
	versionPath    string
}

// OrchestratorConfig bundles the three composable deadlines and the bounded
// concurrency slot count (spec §5).
type OrchestratorConfig struct {
	MaxConcurrentUpstreams int
	PerDBTimeout           time.Duration
	GatewayTimeout         time.Duration
	VersionPath            string
}

func NewOrchestrator(registry *GatewayRegistry, queries *QueryStore, client *UpstreamClient, cfg OrchestratorConfig) *Orchestrator {
	if cfg.MaxConcurrentUpstreams <= 0 {
		cfg.MaxConcurrentUpstreams = 10
	}
	if cfg.VersionPath == "" {
		cfg.VersionPath = "v1"
	}
	return &Orchestrator{
		registry:       registry,
		queries:        queries,
		client:         client,
		maxConcurrent:  int64(cfg.MaxConcurrentUpstreams),
		perDBTimeout:   cfg.PerDBTimeout,
		gatewayTimeout: cfg.GatewayTimeout,
		versionPath:    cfg.VersionPath,
	}
}

// Run executes query record id to completion and returns the updated
// record. It reads the gateway, transitions created->started, fans out to
// every member database bounded by maxConcurrent — advancing to
// in_progress as soon as every task has been dispatched, concurrently with
// them running, so a poller can observe the query mid-flight (spec §4.E
// step 4) — merges the outcomes, and transitions to finished.
func (o *Orchestrator) Run(ctx context.Context, queryID string) (model.Query, error) {
	rec, err := o.queries.Get(ctx, queryID)
	if err != nil {
		return model.Query{}, err
	}

	gw, err := o.registry.Get(ctx, rec.GatewayID)
	if err != nil {
		return model.Query{}, err
	}

	rec, err = o.queries.Advance(ctx, queryID, model.QueryStarted, nil)
	if err != nil {
		return model.Query{}, err
	}

	fanOutCtx, cancel := context.WithTimeout(ctx, o.gatewayTimeout)
	defer cancel()

	outcomes := o.fanOut(fanOutCtx, gw.Databases, rec.Endpoint, rec.QueryParameters, func() {
		if _, err := o.queries.Advance(ctx, queryID, model.QueryInProgress, nil); err != nil {
			log.Printf("orchestrator: failed to advance query %s to in_progress: %v", queryID, err)
		}
	})

	pageLimit, pageOffset := intParam(rec.QueryParameters, "page_limit"), intParam(rec.QueryParameters, "page_offset")
	merged := MergeResponses(outcomes, requestURLFromParams(rec.QueryParameters), representation(rec.QueryParameters), pageLimit, pageOffset)

	return o.queries.Advance(ctx, queryID, model.QueryFinished, merged.AsDocument())
}

// ThrottleDatabase installs (or replaces) a per-database rate limit on the
// orchestrator's upstream client (spec §6 "[upstream] requests_per_second").
// A database with no limit installed is fetched without throttling.
func (o *Orchestrator) ThrottleDatabase(databaseID string, requestsPerSecond float64, burst int) {
	o.client.Throttle(databaseID, requestsPerSecond, burst)
}

// FetchOne issues a single upstream fetch against exactly one member
// database and folds it through the same merger pipeline a fan-out uses, so
// a direct single-entry lookup (spec §9, GET .../structures/{entry_ref})
// produces an entry with the identical "{db_id}/{orig_id}" shape a fanned-out
// listing would, without paying for a fan-out across every other database.
func (o *Orchestrator) FetchOne(ctx context.Context, db model.Database, endpoint string, params map[string]string) map[string]interface{} {
	timeout := o.perDBTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	outcome := o.client.Fetch(ctx, db.ID, db.BaseURL, o.versionPath, endpoint, params, timeout)
	pageLimit, pageOffset := intParam(params, "page_limit"), intParam(params, "page_offset")
	merged := MergeResponses([]Outcome{outcome}, requestURLFromParams(params), representation(params), pageLimit, pageOffset)
	return merged.AsDocument()
}

// fanOut dispatches one upstream task per database, bounded by the
// semaphore's weighted permit pool (FIFO acquire, spec §5), directly modeled
// on the teacher's requestAllUpstreams/aggregateResponses split, but always
// runs the WaitAll-equivalent mode: every outcome feeds the merger.
// onStarted is invoked once every task has been dispatched but before any
// of them are awaited, letting the caller mark the query in_progress while
// the fan-out is still running rather than after it completes. Outcomes are
// written by index into a slice sized to len(databases), so the merger
// always sees them in the gateway's declared database order regardless of
// which upstream answers first (spec §4.F, §5).
func (o *Orchestrator) fanOut(ctx context.Context, databases []model.Database, endpoint string, params map[string]string, onStarted func()) []Outcome {
	sem := semaphore.NewWeighted(o.maxConcurrent)
	outcomes := make([]Outcome, len(databases))

	var wg sync.WaitGroup
	for i, db := range databases {
		wg.Add(1)
		go func(i int, db model.Database) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				outcomes[i] = Outcome{
					DatabaseID:    db.ID,
					Kind:          OutcomeTransportError,
					TransportKind: TransportTimeout,
					Message:       "cancelled before a fan-out slot was acquired",
				}
				return
			}
			defer sem.Release(1)

			timeout := o.perDBTimeout
			if deadline, ok := ctx.Deadline(); ok {
				if remaining := time.Until(deadline); remaining < timeout {
					timeout = remaining
				}
			}

			outcomes[i] = o.client.Fetch(ctx, db.ID, db.BaseURL, o.versionPath, endpoint, params, timeout)
		}(i, db)
	}

	if onStarted != nil {
		onStarted()
	}

	wg.Wait()
	return outcomes
}

func intParam(params map[string]string, key string) int {
	v, ok := params[key]
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// representation renders the query parameters as a literal query string,
// stored verbatim into meta.query.representation (spec §4.F).
func representation(params map[string]string) string {
	return encodeParams(params)
}

func encodeParams(params map[string]string) string {
	out := ""
	first := true
	for _, k := range []string{"filter", "response_format", "response_fields", "sort", "page_limit", "page_offset", "include"} {
		v, ok := params[k]
		if !ok {
			continue
		}
		if !first {
			out += "&"
		}
		out += k + "=" + v
		first = false
	}
	return out
}

// requestURLFromParams rebuilds the URL handed to the merger for links.next
// as "?" followed by the encoded query parameters. The result is relative:
// it carries neither the gateway's base URL nor the request path.
func requestURLFromParams(params map[string]string) string {
	return "?" + encodeParams(params)
}
