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

package model

import "time"

// QueryState is the lifecycle stage of a federated Query. States advance
// monotonically in the order they're declared below; never skip backwards.
type QueryState string

const (
	QueryCreated    QueryState = "created"
	QueryStarted    QueryState = "started"
	QueryInProgress QueryState = "in_progress"
	QueryFinished   QueryState = "finished"
)

// rank gives QueryState a total order so transitions can be checked for
// monotonicity without a table.
var rank = map[QueryState]int{
	QueryCreated:    0,
	QueryStarted:    1,
	QueryInProgress: 2,
	QueryFinished:   3,
}

// Before reports whether s strictly precedes other in the lifecycle order.
func (s QueryState) Before(other QueryState) bool {
	return rank[s] < rank[other]
}

// Query is a long-lived record of one federated query, owned exclusively by
// the orchestrator instance that advances it out of QueryCreated.
type Query struct {
	ID              string                 `json:"id" bson:"id"`
	GatewayID       string                 `json:"gateway_id" bson:"gateway_id"`
	Endpoint        string                 `json:"endpoint" bson:"endpoint"`
	QueryParameters map[string]string      `json:"query_parameters" bson:"query_parameters"`
	State           QueryState             `json:"state" bson:"state"`
	Response        map[string]interface{} `json:"response,omitempty" bson:"response,omitempty"`
	CreatedAt       time.Time              `json:"created_at" bson:"created_at"`
	LastUpdated     time.Time              `json:"last_updated" bson:"last_updated"`
}

// Public renders the record the way polling clients should see it: Response
// is present iff the query has reached QueryFinished.
func (q Query) Public() Query {
	if q.State != QueryFinished {
		q.Response = nil
	}
	return q
}
