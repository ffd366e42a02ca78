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
	"errors"
	"reflect"
	"testing"

	"context"

	"optimade-gateway-go/model"
	"optimade-gateway-go/store/memstore"
)

func TestQueryCreateStartsInCreatedState(t *testing.T) {
	q := NewQueryStore(memstore.New())
	ctx := context.Background()

	rec, err := q.Create(ctx, "gw1", "structures", map[string]string{"filter": "a"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.State != model.QueryCreated {
		t.Fatalf("new record state = %s, want created", rec.State)
	}
	if rec.Response != nil {
		t.Fatal("new record already carries a response")
	}
}

func TestAdvanceRejectsBackwardsTransition(t *testing.T) {
	q := NewQueryStore(memstore.New())
	ctx := context.Background()

	rec, err := q.Create(ctx, "gw1", "structures", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := q.Advance(ctx, rec.ID, model.QueryInProgress, nil); err != nil {
		t.Fatalf("advance to in_progress: %v", err)
	}
	if _, err := q.Advance(ctx, rec.ID, model.QueryStarted, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("advance backwards = %v, want ErrInvalidTransition", err)
	}
}

func TestAdvanceToFinishedAttachesResponse(t *testing.T) {
	q := NewQueryStore(memstore.New())
	ctx := context.Background()

	rec, err := q.Create(ctx, "gw1", "structures", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	response := map[string]interface{}{"data": []interface{}{}, "meta": map[string]interface{}{"data_returned": float64(0)}}

	finished, err := q.Advance(ctx, rec.ID, model.QueryFinished, response)
	if err != nil {
		t.Fatalf("advance to finished: %v", err)
	}
	if finished.State != model.QueryFinished {
		t.Fatalf("state = %s, want finished", finished.State)
	}
	if !reflect.DeepEqual(finished.Response, response) {
		t.Fatalf("response = %#v, want %#v", finished.Response, response)
	}
}

// Invariant: once get_query returns state=finished, all subsequent reads are
// byte-identical (spec §8).
func TestFinishedRecordIsStableAcrossReads(t *testing.T) {
	q := NewQueryStore(memstore.New())
	ctx := context.Background()

	rec, err := q.Create(ctx, "gw1", "structures", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	response := map[string]interface{}{"data": []interface{}{}}
	if _, err := q.Advance(ctx, rec.ID, model.QueryFinished, response); err != nil {
		t.Fatalf("advance to finished: %v", err)
	}

	first, err := q.GetPublic(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetPublic: %v", err)
	}
	second, err := q.GetPublic(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetPublic: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("two reads of a finished record differ: %#v vs %#v", first, second)
	}
}

func TestGetPublicHidesResponseBeforeFinished(t *testing.T) {
	q := NewQueryStore(memstore.New())
	ctx := context.Background()

	rec, err := q.Create(ctx, "gw1", "structures", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := q.Advance(ctx, rec.ID, model.QueryStarted, nil); err != nil {
		t.Fatalf("advance to started: %v", err)
	}

	pub, err := q.GetPublic(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetPublic: %v", err)
	}
	if pub.Response != nil {
		t.Fatalf("GetPublic on a non-finished query leaked a response: %#v", pub.Response)
	}
}

func TestGetUnknownQueryReturnsNotFound(t *testing.T) {
	q := NewQueryStore(memstore.New())
	ctx := context.Background()

	if _, err := q.Get(ctx, "does-not-exist"); !errors.Is(err, ErrQueryNotFound) {
		t.Fatalf("Get on an unknown id = %v, want ErrQueryNotFound", err)
	}
}
