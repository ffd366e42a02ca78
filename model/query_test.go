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

import "testing"

func TestQueryStateBeforeOrdering(t *testing.T) {
	order := []QueryState{QueryCreated, QueryStarted, QueryInProgress, QueryFinished}
	for i, s := range order {
		for j, other := range order {
			want := i < j
			if got := s.Before(other); got != want {
				t.Errorf("%s.Before(%s) = %v, want %v", s, other, got, want)
			}
		}
	}
}

func TestQueryPublicHidesResponseUntilFinished(t *testing.T) {
	q := Query{State: QueryInProgress, Response: map[string]interface{}{"data": []interface{}{}}}
	if pub := q.Public(); pub.Response != nil {
		t.Errorf("Public() on an in_progress query leaked a response: %#v", pub.Response)
	}

	q.State = QueryFinished
	pub := q.Public()
	if pub.Response == nil {
		t.Error("Public() on a finished query hid the response")
	}
}
