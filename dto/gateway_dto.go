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

package dto

import "optimade-gateway-go/model"

// CreateGatewayRequest is the POST /gateways request body.
type CreateGatewayRequest struct {
	Databases []model.DatabaseRef `json:"databases" binding:"required,min=1"`
	ID        string              `json:"id,omitempty"`
}

// GatewayResponse is what GET/POST /gateways return for one gateway.
type GatewayResponse struct {
	ID        string           `json:"id"`
	Databases []model.Database `json:"databases"`
	CreatedAt string           `json:"created_at"`
}

func NewGatewayResponse(g model.Gateway) GatewayResponse {
	return GatewayResponse{
		ID:        g.ID,
		Databases: g.Databases,
		CreatedAt: g.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// GatewayListResponse is the GET /gateways response body.
type GatewayListResponse struct {
	Data []GatewayResponse `json:"data"`
	Meta ListMeta          `json:"meta"`
}

type ListMeta struct {
	DataReturned  int `json:"data_returned"`
	DataAvailable int `json:"data_available"`
}
