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
	"strings"
	"testing"
)

// Scenario 1: two databases, both ok, with differing meta; merged counts and
// ids must add up and every entry is prefixed by its source database.
func TestMergeResponsesTwoOKSources(t *testing.T) {
	outcomes := []Outcome{
		{
			DatabaseID: "D1",
			Kind:       OutcomeOK,
			HTTPStatus: 200,
			Body: map[string]interface{}{
				"data": []interface{}{
					map[string]interface{}{"id": "a", "type": "structures"},
				},
				"meta": map[string]interface{}{
					"data_returned":       float64(1),
					"data_available":      float64(10),
					"more_data_available": true,
				},
			},
		},
		{
			DatabaseID: "D2",
			Kind:       OutcomeOK,
			HTTPStatus: 200,
			Body: map[string]interface{}{
				"data": []interface{}{
					map[string]interface{}{"id": "b", "type": "structures"},
				},
				"meta": map[string]interface{}{
					"data_returned":       float64(1),
					"data_available":      float64(5),
					"more_data_available": false,
				},
			},
		},
	}

	merged := MergeResponses(outcomes, "https://gw.example.org/gateways/g1/structures", "", 0, 0)

	if len(merged.Errors) != 0 {
		t.Fatalf("errors = %v, want none", merged.Errors)
	}
	if len(merged.Data) != 2 {
		t.Fatalf("len(data) = %d, want 2", len(merged.Data))
	}
	if merged.Meta.DataReturned != 2 {
		t.Fatalf("meta.data_returned = %d, want 2", merged.Meta.DataReturned)
	}
	if merged.Meta.DataAvailable != 15 {
		t.Fatalf("meta.data_available = %d, want 15", merged.Meta.DataAvailable)
	}
	if !merged.Meta.MoreDataAvailable {
		t.Fatal("meta.more_data_available = false, want true")
	}

	ids := []string{merged.Data[0]["id"].(string), merged.Data[1]["id"].(string)}
	want := []string{"D1/a", "D2/b"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("entry ids = %v, want %v", ids, want)
		}
	}
	if merged.Links.Next == "" {
		t.Fatal("more_data_available==true but links.next was not computed")
	}
}

// Scenario 2: one database errors out; its entries are absent, an error is
// recorded with the right source and status, and sources reflects both.
func TestMergeResponsesFoldsUpstreamError(t *testing.T) {
	outcomes := []Outcome{
		{
			DatabaseID: "D1",
			Kind:       OutcomeOK,
			HTTPStatus: 200,
			Body: map[string]interface{}{
				"data": []interface{}{map[string]interface{}{"id": "a", "type": "structures"}},
			},
		},
		{
			DatabaseID: "D2",
			Kind:       OutcomeUpstreamError,
			HTTPStatus: 500,
			Body: map[string]interface{}{
				"errors": []interface{}{map[string]interface{}{"detail": "boom"}},
			},
		},
	}

	merged := MergeResponses(outcomes, "https://gw.example.org/gateways/g1/structures", "", 0, 0)

	if len(merged.Data) != 1 || merged.Data[0]["id"] != "D1/a" {
		t.Fatalf("data = %v, want exactly [D1/a]", merged.Data)
	}
	if len(merged.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly one entry", merged.Errors)
	}
	if merged.Errors[0].Source != "D2" || merged.Errors[0].Status != 500 {
		t.Fatalf("error = %+v, want source=D2 status=500", merged.Errors[0])
	}
	if merged.Meta.Sources["D1"] != "ok" || merged.Meta.Sources["D2"] != "error" {
		t.Fatalf("sources = %v, want {D1:ok, D2:error}", merged.Meta.Sources)
	}
}

// Scenario 3: a transport timeout folds into a 504 error mentioning timeout.
func TestMergeResponsesFoldsTransportTimeout(t *testing.T) {
	outcomes := []Outcome{
		{DatabaseID: "D2", Kind: OutcomeTransportError, TransportKind: TransportTimeout, Message: "context deadline exceeded"},
	}

	merged := MergeResponses(outcomes, "https://gw.example.org/gateways/g1/structures", "", 0, 0)

	if len(merged.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly one entry", merged.Errors)
	}
	e := merged.Errors[0]
	if e.Source != "D2" || e.Status != 504 {
		t.Fatalf("error = %+v, want source=D2 status=504", e)
	}
	if !strings.Contains(e.Detail, "timeout") {
		t.Fatalf("error detail %q does not mention timeout", e.Detail)
	}
}

// Invariant: len(data) == sum of ok sources' data, |errors| == count of
// not-ok sources, regardless of source count or ordering.
func TestMergeResponsesCountInvariant(t *testing.T) {
	outcomes := []Outcome{
		{DatabaseID: "D1", Kind: OutcomeOK, Body: map[string]interface{}{"data": []interface{}{
			map[string]interface{}{"id": "1"}, map[string]interface{}{"id": "2"},
		}}},
		{DatabaseID: "D2", Kind: OutcomeUpstreamError, HTTPStatus: 500, Body: map[string]interface{}{}},
		{DatabaseID: "D3", Kind: OutcomeTransportError, TransportKind: TransportConnect, Message: "refused"},
		{DatabaseID: "D4", Kind: OutcomeOK, Body: map[string]interface{}{"data": []interface{}{
			map[string]interface{}{"id": "3"},
		}}},
	}

	merged := MergeResponses(outcomes, "https://gw.example.org/gateways/g1/structures", "", 0, 0)

	if len(merged.Data) != 3 {
		t.Fatalf("len(data) = %d, want 3", len(merged.Data))
	}
	if len(merged.Errors) != 2 {
		t.Fatalf("len(errors) = %d, want 2", len(merged.Errors))
	}
	for _, entry := range merged.Data {
		id := entry["id"].(string)
		if !strings.Contains(id, "/") {
			t.Fatalf("entry id %q is not database-prefixed", id)
		}
	}
}
