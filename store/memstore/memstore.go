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

// Package memstore is the in-process Store backend: the zero-config default,
// and what the unit tests of the registry, query store and orchestrator
// build on.
package memstore

import (
	"context"
	"sort"
	"sync"

	"optimade-gateway-go/store"
)

type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]store.Document
}

func New() *Store {
	return &Store{collections: make(map[string]map[string]store.Document)}
}

func (s *Store) coll(name string) map[string]store.Document {
	c, ok := s.collections[name]
	if !ok {
		c = make(map[string]store.Document)
		s.collections[name] = c
	}
	return c
}

func clone(doc store.Document) store.Document {
	out := make(store.Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func (s *Store) Get(_ context.Context, collection, id string) (store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.coll(collection)[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(doc), nil
}

func matches(doc store.Document, filter store.Document) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok {
			return false
		}
		wantSlice, wantIsSlice := want.([]string)
		if wantIsSlice {
			gotSlice, ok := got.([]string)
			if !ok || !equalSlice(gotSlice, wantSlice) {
				return false
			}
			continue
		}
		if got != want {
			return false
		}
	}
	return true
}

func equalSlice(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (s *Store) FindOne(_ context.Context, collection string, filter store.Document) (store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range s.coll(collection) {
		if matches(doc, filter) {
			return clone(doc), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) Insert(_ context.Context, collection string, doc store.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, _ := doc["id"].(string)
	c := s.coll(collection)
	if _, exists := c[id]; exists {
		return store.ErrIDConflict
	}
	c[id] = clone(doc)
	return nil
}

func (s *Store) Update(_ context.Context, collection, id string, patch store.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(collection)
	doc, ok := c[id]
	if !ok {
		return store.ErrNotFound
	}
	merged := clone(doc)
	for k, v := range patch {
		merged[k] = v
	}
	c[id] = merged
	return nil
}

func (s *Store) List(_ context.Context, collection string, filter store.Document, sortFields []string, skip, limit int) ([]store.Document, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []store.Document
	for _, doc := range s.coll(collection) {
		if matches(doc, filter) {
			all = append(all, clone(doc))
		}
	}
	if len(sortFields) > 0 {
		field := sortFields[0]
		sort.Slice(all, func(i, j int) bool {
			return compareField(all[i][field], all[j][field])
		})
	}
	total := len(all)
	if skip > len(all) {
		skip = len(all)
	}
	all = all[skip:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func compareField(a, b interface{}) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as < bs
	}
	return false
}

func (s *Store) Close(_ context.Context) error {
	return nil
}
