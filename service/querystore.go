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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"optimade-gateway-go/model"
	"optimade-gateway-go/store"
)

var (
	ErrQueryNotFound     = errors.New("query not found")
	ErrInvalidTransition = errors.New("invalid_transition")
)

const queriesCollection = "queries"

// QueryStore is a thin wrapper on the document store façade over the
// queries collection (spec §4.D).
type QueryStore struct {
	store store.Store
}

func NewQueryStore(s store.Store) *QueryStore {
	return &QueryStore{store: s}
}

// Create initialises a new record in state=created with timestamps now.
func (q *QueryStore) Create(ctx context.Context, gatewayID, endpoint string, params map[string]string) (model.Query, error) {
	now := time.Now().UTC()
	rec := model.Query{
		ID:              generateQueryID(),
		GatewayID:       gatewayID,
		Endpoint:        endpoint,
		QueryParameters: params,
		State:           model.QueryCreated,
		CreatedAt:       now,
		LastUpdated:     now,
	}
	if err := q.store.Insert(ctx, queriesCollection, queryDocument(rec)); err != nil {
		return model.Query{}, err
	}
	return rec, nil
}

// Advance enforces the monotonic state transition and optionally attaches
// the merged response when transitioning into QueryFinished.
func (q *QueryStore) Advance(ctx context.Context, id string, newState model.QueryState, response map[string]interface{}) (model.Query, error) {
	current, err := q.Get(ctx, id)
	if err != nil {
		return model.Query{}, err
	}
	if !current.State.Before(newState) {
		return model.Query{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.State, newState)
	}

	patch := store.Document{
		"state":        string(newState),
		"last_updated": time.Now().UTC(),
	}
	if newState == model.QueryFinished {
		patch["response"] = response
	}

	if err := q.store.Update(ctx, queriesCollection, id, patch); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Query{}, ErrQueryNotFound
		}
		return model.Query{}, err
	}

	return q.Get(ctx, id)
}

// Get returns the raw record regardless of state.
func (q *QueryStore) Get(ctx context.Context, id string) (model.Query, error) {
	doc, err := q.store.Get(ctx, queriesCollection, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.Query{}, ErrQueryNotFound
	}
	if err != nil {
		return model.Query{}, err
	}
	return queryFromDocument(doc), nil
}

// GetPublic returns the record with response present iff state==finished.
func (q *QueryStore) GetPublic(ctx context.Context, id string) (model.Query, error) {
	rec, err := q.Get(ctx, id)
	if err != nil {
		return model.Query{}, err
	}
	return rec.Public(), nil
}

func generateQueryID() string {
	return uuid.New().String()
}

func queryDocument(q model.Query) store.Document {
	params := make(map[string]interface{}, len(q.QueryParameters))
	for k, v := range q.QueryParameters {
		params[k] = v
	}
	doc := store.Document{
		"id":               q.ID,
		"gateway_id":       q.GatewayID,
		"endpoint":         q.Endpoint,
		"query_parameters": params,
		"state":            string(q.State),
		"created_at":       q.CreatedAt,
		"last_updated":     q.LastUpdated,
	}
	if q.Response != nil {
		doc["response"] = q.Response
	}
	return doc
}

func queryFromDocument(doc store.Document) model.Query {
	rec := model.Query{}
	if v, ok := doc["id"].(string); ok {
		rec.ID = v
	}
	if v, ok := doc["gateway_id"].(string); ok {
		rec.GatewayID = v
	}
	if v, ok := doc["endpoint"].(string); ok {
		rec.Endpoint = v
	}
	if v, ok := doc["state"].(string); ok {
		rec.State = model.QueryState(v)
	}
	if v, ok := doc["created_at"].(time.Time); ok {
		rec.CreatedAt = v
	}
	if v, ok := doc["last_updated"].(time.Time); ok {
		rec.LastUpdated = v
	}
	if raw, ok := doc["query_parameters"].(map[string]interface{}); ok {
		params := make(map[string]string, len(raw))
		for k, v := range raw {
			if s, ok := v.(string); ok {
				params[k] = s
			}
		}
		rec.QueryParameters = params
	}
	if raw, ok := doc["response"].(map[string]interface{}); ok {
		rec.Response = raw
	}
	return rec
}
