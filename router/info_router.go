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
	"net/http"

	"github.com/gin-gonic/gin"

	"optimade-gateway-go/dto"
	"optimade-gateway-go/model"
)

// ServerMeta is the subset of [meta] configuration the static OPTIMADE
// endpoints render; built once at startup and served from memory.
type ServerMeta struct {
	ID                    string
	ImplementationName    string
	ImplementationVersion string
	APIVersion            string
	BaseURL               string
}

type InfoRouter interface {
	Info(c *gin.Context)
	Links(c *gin.Context)
	Versions(c *gin.Context)
}

type infoRouterImpl struct {
	meta      ServerMeta
	databases func() []model.Database
}

// NewInfoRouter builds the static-metadata router. listDatabases is called
// lazily on each /links request so newly-registered databases show up
// without a restart.
func NewInfoRouter(meta ServerMeta, listDatabases func() []model.Database) InfoRouter {
	return &infoRouterImpl{meta: meta, databases: listDatabases}
}

func (i *infoRouterImpl) Info(c *gin.Context) {
	c.JSON(http.StatusOK, dto.InfoResponse{
		Data: dto.InfoData{
			ID:   i.meta.ID,
			Type: "info",
			Attributes: dto.InfoAttributes{
				APIVersion: i.meta.APIVersion,
				AvailableAPIVersions: []dto.AvailableAPI{
					{URL: i.meta.BaseURL + "/v1", Version: i.meta.APIVersion},
				},
				ImplementationName:    i.meta.ImplementationName,
				ImplementationVersion: i.meta.ImplementationVersion,
				EntryTypesByFormat: map[string][]string{
					"json": {"structures"},
				},
			},
		},
	})
}

func (i *infoRouterImpl) Links(c *gin.Context) {
	dbs := i.databases()
	entries := make([]dto.LinkEntry, 0, len(dbs))
	for _, d := range dbs {
		entries = append(entries, dto.LinkEntry{
			ID:   d.ID,
			Type: "links",
			Attributes: dto.LinkAttributes{
				Name:     d.Name,
				BaseURL:  d.BaseURL,
				LinkType: "child",
			},
		})
	}
	c.JSON(http.StatusOK, dto.LinksResponse{
		Data: entries,
		Meta: dto.ListMeta{DataReturned: len(entries), DataAvailable: len(entries)},
	})
}

func (i *infoRouterImpl) Versions(c *gin.Context) {
	c.JSON(http.StatusOK, dto.VersionsResponse{
		Data: []dto.VersionEntry{{Version: i.meta.APIVersion}},
	})
}
