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

package memstore

import (
	"context"
	"sync"
	"testing"

	"optimade-gateway-go/store"
)

func TestInsertRejectsDuplicateID(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Insert(ctx, "gateways", store.Document{"id": "g1"}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := s.Insert(ctx, "gateways", store.Document{"id": "g1"})
	if err != store.ErrIDConflict {
		t.Fatalf("second insert = %v, want ErrIDConflict", err)
	}
}

func TestConcurrentInsertExactlyOneWinner(t *testing.T) {
	s := New()
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Insert(ctx, "gateways", store.Document{"id": "race"})
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range errs {
		switch err {
		case nil:
			wins++
		case store.ErrIDConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != n-1 {
		t.Fatalf("got %d wins, %d conflicts; want 1 win, %d conflicts", wins, conflicts, n-1)
	}
}

func TestFindOneMatchesByIDSetEquality(t *testing.T) {
	s := New()
	ctx := context.Background()

	idSet := []string{"a", "b"}
	if err := s.Insert(ctx, "gateways", store.Document{"id": "g1", "id_set": idSet}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Insert(ctx, "gateways", store.Document{"id": "g2", "id_set": []string{"a", "c"}}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	doc, err := s.FindOne(ctx, "gateways", store.Document{"id_set": []string{"a", "b"}})
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if doc["id"] != "g1" {
		t.Fatalf("FindOne matched %v, want g1", doc["id"])
	}

	if _, err := s.FindOne(ctx, "gateways", store.Document{"id_set": []string{"a", "b", "c"}}); err != store.ErrNotFound {
		t.Fatalf("FindOne on a non-existent id_set = %v, want ErrNotFound", err)
	}
}

func TestUpdateMergesWithoutDroppingOtherFields(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Insert(ctx, "queries", store.Document{"id": "q1", "state": "created", "endpoint": "structures"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Update(ctx, "queries", "q1", store.Document{"state": "started"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	doc, err := s.Get(ctx, "queries", "q1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc["state"] != "started" || doc["endpoint"] != "structures" {
		t.Fatalf("update clobbered unrelated fields: %#v", doc)
	}
}

func TestGetClonesSoCallerMutationDoesNotLeak(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Insert(ctx, "gateways", store.Document{"id": "g1", "note": "original"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	doc, err := s.Get(ctx, "gateways", "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	doc["note"] = "mutated"

	doc2, err := s.Get(ctx, "gateways", "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc2["note"] != "original" {
		t.Fatalf("store leaked caller mutation: %v", doc2["note"])
	}
}
