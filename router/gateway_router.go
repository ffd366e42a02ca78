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

package router

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"optimade-gateway-go/dto"
	"optimade-gateway-go/model"
	"optimade-gateway-go/service"
	"optimade-gateway-go/util"
)

// orphanContext detaches a background query from the HTTP request that
// created it: client disconnects on the async endpoint must not cancel the
// orchestrator (spec §9 "background task lifetime").
func orphanContext() context.Context {
	return context.Background()
}

type GatewayRouter interface {
	CreateOrResolve(c *gin.Context)
	List(c *gin.Context)
	Get(c *gin.Context)
	Structures(c *gin.Context)
	Entry(c *gin.Context)
	CreateQuery(c *gin.Context)
}

// UpstreamThrottleConfig is the default per-database rate limit applied to
// every database a gateway resolves against (spec §6 "[upstream]
// requests_per_second"). RequestsPerSecond <= 0 disables throttling.
type UpstreamThrottleConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type gatewayRouterImpl struct {
	registry     *service.GatewayRegistry
	queries      *service.QueryStore
	orchestrator *service.Orchestrator
	throttle     UpstreamThrottleConfig
}

func NewGatewayRouter(registry *service.GatewayRegistry, queries *service.QueryStore, orchestrator *service.Orchestrator, throttle UpstreamThrottleConfig) GatewayRouter {
	return &gatewayRouterImpl{registry: registry, queries: queries, orchestrator: orchestrator, throttle: throttle}
}

func (g *gatewayRouterImpl) CreateOrResolve(c *gin.Context) {
	var req dto.CreateGatewayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.HandleError(c, util.NewBadRequest(err.Error()))
		return
	}

	gw, created, err := g.registry.ResolveOrCreate(c.Request.Context(), req.Databases, req.ID)
	if err != nil {
		g.handleRegistryErr(c, err)
		return
	}

	if g.throttle.RequestsPerSecond > 0 {
		for _, d := range gw.Databases {
			g.orchestrator.ThrottleDatabase(d.ID, g.throttle.RequestsPerSecond, g.throttle.Burst)
		}
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, dto.NewGatewayResponse(gw))
}

func (g *gatewayRouterImpl) List(c *gin.Context) {
	skip, limit := pagingParams(c)
	gws, total, err := g.registry.List(c.Request.Context(), skip, limit)
	if err != nil {
		util.HandleError(c, util.NewInternal("failed to list gateways"))
		return
	}

	out := make([]dto.GatewayResponse, 0, len(gws))
	for _, gw := range gws {
		out = append(out, dto.NewGatewayResponse(gw))
	}
	c.JSON(http.StatusOK, dto.GatewayListResponse{
		Data: out,
		Meta: dto.ListMeta{DataReturned: len(out), DataAvailable: total},
	})
}

func (g *gatewayRouterImpl) Get(c *gin.Context) {
	gw, err := g.registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.handleRegistryErr(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewGatewayResponse(gw))
}

// Structures runs a synchronous federated listing on the structures
// endpoint, per spec §4.G list_resources / §6 GET .../structures.
func (g *gatewayRouterImpl) Structures(c *gin.Context) {
	g.runSync(c, "structures")
}

func (g *gatewayRouterImpl) runSync(c *gin.Context, endpoint string) {
	gatewayID := c.Param("id")
	if _, err := g.registry.Get(c.Request.Context(), gatewayID); err != nil {
		g.handleRegistryErr(c, err)
		return
	}

	var params dto.QueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		util.HandleError(c, util.NewBadRequest(err.Error()))
		return
	}

	rec, err := g.queries.Create(c.Request.Context(), gatewayID, endpoint, params.AsMap())
	if err != nil {
		util.HandleError(c, util.NewInternal("failed to create query record"))
		return
	}

	finished, err := g.orchestrator.Run(c.Request.Context(), rec.ID)
	if err != nil {
		util.HandleError(c, util.NewGatewayTimeout("federated query did not complete"))
		return
	}

	c.JSON(http.StatusOK, finished.Response)
}

// Entry fetches a single entry by its prefixed id "{db_id}/{orig_id}"
// (spec §6 GET .../structures/{entry_ref}), routing to exactly one upstream
// and re-applying the merger's id-rewrite for a protocol-consistent shape.
func (g *gatewayRouterImpl) Entry(c *gin.Context) {
	gatewayID := c.Param("id")
	entryRef := c.Param("entry_ref")
	entryRef = strings.TrimPrefix(entryRef, "/")

	parts := strings.SplitN(entryRef, "/", 2)
	if len(parts) != 2 {
		util.HandleError(c, util.NewBadRequest("entry_ref must be \"{database_id}/{original_id}\""))
		return
	}
	dbID, origID := parts[0], parts[1]

	gw, err := g.registry.Get(c.Request.Context(), gatewayID)
	if err != nil {
		g.handleRegistryErr(c, err)
		return
	}

	var target *model.Database
	for i := range gw.Databases {
		if gw.Databases[i].ID == dbID {
			target = &gw.Databases[i]
			break
		}
	}
	if target == nil {
		util.HandleError(c, util.NewNotFound("unknown database in entry_ref"))
		return
	}

	params := map[string]string{"filter": "id=\"" + origID + "\""}
	response := g.orchestrator.FetchOne(c.Request.Context(), *target, "structures", params)
	c.JSON(http.StatusOK, response)
}

// CreateQuery creates an async query record and runs the orchestrator in
// the background; the HTTP request returns as soon as the record is
// created (spec §4.G run_async, §9 "background task lifetime").
func (g *gatewayRouterImpl) CreateQuery(c *gin.Context) {
	gatewayID := c.Param("id")
	if _, err := g.registry.Get(c.Request.Context(), gatewayID); err != nil {
		g.handleRegistryErr(c, err)
		return
	}

	var params dto.QueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		util.HandleError(c, util.NewBadRequest(err.Error()))
		return
	}
	endpoint := c.DefaultQuery("endpoint", "structures")

	rec, err := g.queries.Create(c.Request.Context(), gatewayID, endpoint, params.AsMap())
	if err != nil {
		util.HandleError(c, util.NewInternal("failed to create query record"))
		return
	}

	go func(queryID string) {
		_, _ = g.orchestrator.Run(orphanContext(), queryID)
	}(rec.ID)

	c.JSON(http.StatusAccepted, dto.NewQueryResponse(rec))
}

func (g *gatewayRouterImpl) handleRegistryErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrGatewayExists):
		util.HandleError(c, util.NewConflict("gateway_exists"))
	case errors.Is(err, service.ErrGatewayNotFound):
		util.HandleError(c, util.NewNotFound("unknown gateway id"))
	case errors.Is(err, service.ErrUnknownDatabase):
		util.HandleError(c, util.NewBadRequest(err.Error()))
	case errors.Is(err, service.ErrRegistryInconsistent):
		util.HandleError(c, util.NewInternal("registry_inconsistent"))
	default:
		util.HandleError(c, util.NewInternal("internal registry error"))
	}
}

func pagingParams(c *gin.Context) (skip, limit int) {
	limit = 20
	if v := c.Query("page_limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := c.Query("page_offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			skip = n
		}
	}
	return skip, limit
}
