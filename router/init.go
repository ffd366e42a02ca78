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
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"optimade-gateway-go/model"
	"optimade-gateway-go/service"
)

// InitRouters wires the gateway's HTTP surface onto the service layer
// (spec §4.G, §6), the same grouping shape as the teacher's InitRouters.
func InitRouters(r *gin.Engine, meta ServerMeta, registry *service.GatewayRegistry, queries *service.QueryStore, orchestrator *service.Orchestrator, throttle UpstreamThrottleConfig) {
	// AllowCredentials is deliberately left false: it cannot be combined with
	// AllowAllOrigins (cors.Config.Validate rejects that pairing), and this
	// gateway carries no cookie-based auth for a credentialed origin to need.
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "HEAD"},
		AllowHeaders:    []string{"Origin", "Content-Length", "Content-Type", "User-Agent"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	}))

	gatewayRouter := NewGatewayRouter(registry, queries, orchestrator, throttle)
	queryRouter := NewQueryRouter(queries)
	searchRouter := NewSearchRouter(registry, queries, orchestrator)
	infoRouter := NewInfoRouter(meta, func() []model.Database {
		return listKnownDatabases(registry)
	})

	r.GET("/info", infoRouter.Info)
	r.GET("/links", infoRouter.Links)
	r.GET("/versions", infoRouter.Versions)
	r.GET("/search", searchRouter.Search)

	gateways := r.Group("/gateways")
	{
		gateways.POST("", gatewayRouter.CreateOrResolve)
		gateways.GET("", gatewayRouter.List)
		gateways.GET("/:id", gatewayRouter.Get)
		gateways.GET("/:id/structures", gatewayRouter.Structures)
		gateways.GET("/:id/structures/*entry_ref", gatewayRouter.Entry)
		gateways.POST("/:id/queries", gatewayRouter.CreateQuery)
	}

	r.GET("/queries/:id", queryRouter.Get)
}

// listKnownDatabases renders /links from every database currently known to
// the registry by paging through all registered gateways' members.
func listKnownDatabases(registry *service.GatewayRegistry) []model.Database {
	seen := make(map[string]model.Database)
	gws, _, err := registry.List(context.Background(), 0, 0)
	if err != nil {
		return nil
	}
	for _, gw := range gws {
		for _, d := range gw.Databases {
			seen[d.ID] = d
		}
	}
	out := make([]model.Database, 0, len(seen))
	for _, d := range seen {
		out = append(out, d)
	}
	return out
}
