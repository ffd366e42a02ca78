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
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"optimade-gateway-go/dto"
	"optimade-gateway-go/model"
	"optimade-gateway-go/service"
	"optimade-gateway-go/util"
)

type SearchRouter interface {
	Search(c *gin.Context)
}

type searchRouterImpl struct {
	registry     *service.GatewayRegistry
	queries      *service.QueryStore
	orchestrator *service.Orchestrator
}

func NewSearchRouter(registry *service.GatewayRegistry, queries *service.QueryStore, orchestrator *service.Orchestrator) SearchRouter {
	return &searchRouterImpl{registry: registry, queries: queries, orchestrator: orchestrator}
}

// Search is the GET /search convenience endpoint: resolve-or-create a
// gateway from ?base_urls=a,b,c in one call, then run the query
// synchronously against it (spec §4.G, §6 GET /search).
func (s *searchRouterImpl) Search(c *gin.Context) {
	rawURLs := c.Query("base_urls")
	if rawURLs == "" {
		util.HandleError(c, util.NewBadRequest("base_urls is required"))
		return
	}

	refs, err := databaseRefsFromURLs(rawURLs)
	if err != nil {
		util.HandleError(c, util.NewBadRequest(err.Error()))
		return
	}

	gw, _, err := s.registry.ResolveOrCreate(c.Request.Context(), refs, "")
	if err != nil {
		util.HandleError(c, util.NewInternal("failed to resolve gateway"))
		return
	}

	var params dto.QueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		util.HandleError(c, util.NewBadRequest(err.Error()))
		return
	}

	rec, err := s.queries.Create(c.Request.Context(), gw.ID, "structures", params.AsMap())
	if err != nil {
		util.HandleError(c, util.NewInternal("failed to create query record"))
		return
	}

	finished, err := s.orchestrator.Run(c.Request.Context(), rec.ID)
	if err != nil {
		util.HandleError(c, util.NewGatewayTimeout("federated query did not complete"))
		return
	}

	c.JSON(http.StatusOK, finished.Response)
}

// databaseRefsFromURLs builds one full DatabaseRef (name and base_url set)
// per comma-separated base URL, slugging the host as the database id.
func databaseRefsFromURLs(raw string) ([]model.DatabaseRef, error) {
	parts := strings.Split(raw, ",")
	refs := make([]model.DatabaseRef, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		u, err := url.Parse(p)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid base url: %q", p)
		}
		refs = append(refs, model.DatabaseRef{
			ID:      slugify(u.Host),
			Name:    u.Host,
			BaseURL: p,
		})
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("base_urls must contain at least one url")
	}
	return refs, nil
}

func slugify(host string) string {
	host = strings.ToLower(host)
	host = strings.ReplaceAll(host, ".", "-")
	host = strings.ReplaceAll(host, ":", "-")
	return host
}
