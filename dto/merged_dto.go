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

// MergedError is one source's contribution to a federated response's errors
// array (spec §4.F).
type MergedError struct {
	Source string `json:"source"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
}

// MergedMeta is the federated response's meta object (spec §4.F).
type MergedMeta struct {
	DataReturned      int               `json:"data_returned"`
	DataAvailable     int               `json:"data_available"`
	MoreDataAvailable bool              `json:"more_data_available"`
	Sources           map[string]string `json:"sources"`
	Query             QueryMeta         `json:"query"`
}

type QueryMeta struct {
	Representation string `json:"representation"`
}

type Links struct {
	Next string `json:"next,omitempty"`
}

// MergedResponse is the single OPTIMADE-compliant response the merger
// produces from N per-upstream outcomes (spec §4.F).
type MergedResponse struct {
	Data   []map[string]interface{} `json:"data"`
	Errors []MergedError            `json:"errors"`
	Meta   MergedMeta               `json:"meta"`
	Links  Links                    `json:"links,omitempty"`
}

// AsDocument renders the merged response as a generic document so it can be
// stored as a Query's Response field through the store façade.
func (m MergedResponse) AsDocument() map[string]interface{} {
	return map[string]interface{}{
		"data":   m.Data,
		"errors": m.Errors,
		"meta":   m.Meta,
		"links":  m.Links,
	}
}
