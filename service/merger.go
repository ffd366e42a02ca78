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
	"fmt"
	"net/url"
	"strconv"

	"optimade-gateway-go/dto"
)

// MergeResponses assembles the single federated response from N per-upstream
// outcomes, per spec §4.F. requestURL is the URL links.next re-emits with an
// advanced page_offset; representation is the literal query
// string as received, stored back into meta.query.representation.
func MergeResponses(outcomes []Outcome, requestURL, representation string, pageLimit, pageOffset int) dto.MergedResponse {
	merged := dto.MergedResponse{
		Data:   make([]map[string]interface{}, 0),
		Errors: make([]dto.MergedError, 0),
		Meta: dto.MergedMeta{
			Sources: make(map[string]string, len(outcomes)),
			Query:   dto.QueryMeta{Representation: representation},
		},
	}

	var moreAvailable bool

	for _, o := range outcomes {
		switch o.Kind {
		case OutcomeOK:
			merged.Meta.Sources[o.DatabaseID] = "ok"
			data, _ := o.Body["data"].([]interface{})
			for _, entry := range data {
				rewritten := rewriteEntry(o.DatabaseID, entry)
				if rewritten != nil {
					merged.Data = append(merged.Data, rewritten)
				}
			}

			if _, hasReturned := o.Body["meta"]; hasReturned {
				if metaObj, ok := o.Body["meta"].(map[string]interface{}); ok {
					merged.Meta.DataReturned += intFromMeta(metaObj, "data_returned")
					merged.Meta.DataAvailable += intFromMeta(metaObj, "data_available")
					if boolFromMeta(metaObj, "more_data_available") {
						moreAvailable = true
					}
					continue
				}
			}
			merged.Meta.DataReturned += len(data)
			merged.Meta.DataAvailable += len(data)

		case OutcomeUpstreamError:
			merged.Meta.Sources[o.DatabaseID] = "error"
			merged.Errors = append(merged.Errors, upstreamErrorEntry(o))

		case OutcomeTransportError:
			merged.Meta.Sources[o.DatabaseID] = "error"
			merged.Errors = append(merged.Errors, transportErrorEntry(o))
		}
	}

	merged.Meta.MoreDataAvailable = moreAvailable
	if moreAvailable {
		merged.Links.Next = nextLink(requestURL, pageOffset, pageLimit)
	}

	return merged
}

// rewriteEntry rewrites an entry's id as "{db_id}/{entry_id}" without
// touching any other field (spec §9 "opaque entries").
func rewriteEntry(databaseID string, raw interface{}) map[string]interface{} {
	entry, ok := raw.(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]interface{}, len(entry))
	for k, v := range entry {
		out[k] = v
	}
	if id, ok := entry["id"].(string); ok {
		out["id"] = fmt.Sprintf("%s/%s", databaseID, id)
	}
	return out
}

func upstreamErrorEntry(o Outcome) dto.MergedError {
	detail := "upstream returned an error"
	if o.Body != nil {
		if errs, ok := o.Body["errors"].([]interface{}); ok && len(errs) > 0 {
			if first, ok := errs[0].(map[string]interface{}); ok {
				if d, ok := first["detail"].(string); ok && d != "" {
					detail = d
				}
			}
		}
	}
	return dto.MergedError{
		Source: o.DatabaseID,
		Status: o.HTTPStatus,
		Detail: detail,
		Type:   "upstream_error",
	}
}

func transportErrorEntry(o Outcome) dto.MergedError {
	return dto.MergedError{
		Source: o.DatabaseID,
		Status: 504,
		Detail: fmt.Sprintf("transport error (%s): %s", o.TransportKind, o.Message),
		Type:   "transport_error",
	}
}

// nextLink re-emits requestURL with page_offset advanced by pageLimit.
func nextLink(requestURL string, pageOffset, pageLimit int) string {
	u, err := url.Parse(requestURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("page_offset", strconv.Itoa(pageOffset+pageLimit))
	if pageLimit > 0 {
		q.Set("page_limit", strconv.Itoa(pageLimit))
	}
	u.RawQuery = q.Encode()
	return u.String()
}
