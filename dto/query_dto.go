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

import (
	"strconv"

	"optimade-gateway-go/model"
)

// QueryParams is the set of OPTIMADE listing query parameters the gateway
// accepts and forwards, pass-through, to every upstream.
type QueryParams struct {
	Filter         string `form:"filter"`
	ResponseFormat string `form:"response_format"`
	ResponseFields string `form:"response_fields"`
	Sort           string `form:"sort"`
	PageLimit      int    `form:"page_limit"`
	PageOffset     int    `form:"page_offset"`
	Include        string `form:"include"`
}

// AsMap renders non-empty fields as the opaque query-parameter map the
// orchestrator and upstream client pass straight through.
func (p QueryParams) AsMap() map[string]string {
	out := make(map[string]string)
	if p.Filter != "" {
		out["filter"] = p.Filter
	}
	if p.ResponseFormat != "" {
		out["response_format"] = p.ResponseFormat
	}
	if p.ResponseFields != "" {
		out["response_fields"] = p.ResponseFields
	}
	if p.Sort != "" {
		out["sort"] = p.Sort
	}
	if p.PageLimit > 0 {
		out["page_limit"] = strconv.Itoa(p.PageLimit)
	}
	if p.PageOffset > 0 {
		out["page_offset"] = strconv.Itoa(p.PageOffset)
	}
	if p.Include != "" {
		out["include"] = p.Include
	}
	return out
}

// QueryResponse is the GET /queries/{id} response body.
type QueryResponse struct {
	ID              string                 `json:"id"`
	GatewayID       string                 `json:"gateway_id"`
	Endpoint        string                 `json:"endpoint"`
	QueryParameters map[string]string      `json:"query_parameters"`
	State           model.QueryState       `json:"state"`
	Response        map[string]interface{} `json:"response,omitempty"`
	CreatedAt       string                 `json:"created_at"`
	LastUpdated     string                 `json:"last_updated"`
}

func NewQueryResponse(q model.Query) QueryResponse {
	pub := q.Public()
	return QueryResponse{
		ID:              pub.ID,
		GatewayID:       pub.GatewayID,
		Endpoint:        pub.Endpoint,
		QueryParameters: pub.QueryParameters,
		State:           pub.State,
		Response:        pub.Response,
		CreatedAt:       pub.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		LastUpdated:     pub.LastUpdated.Format("2006-01-02T15:04:05Z07:00"),
	}
}
