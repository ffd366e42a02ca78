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
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"optimade-gateway-go/dto"
	"optimade-gateway-go/service"
	"optimade-gateway-go/util"
)

type QueryRouter interface {
	Get(c *gin.Context)
}

type queryRouterImpl struct {
	queries *service.QueryStore
}

func NewQueryRouter(queries *service.QueryStore) QueryRouter {
	return &queryRouterImpl{queries: queries}
}

// Get polls a query record; response is present iff state==finished
// (spec §4.G get_query).
func (q *queryRouterImpl) Get(c *gin.Context) {
	rec, err := q.queries.GetPublic(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrQueryNotFound) {
			util.HandleError(c, util.NewNotFound("unknown query id"))
			return
		}
		util.HandleError(c, util.NewInternal("failed to read query record"))
		return
	}
	c.JSON(http.StatusOK, dto.NewQueryResponse(rec))
}
