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
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"optimade-gateway-go/model"
	"optimade-gateway-go/store"
)

var (
	ErrGatewayExists        = errors.New("gateway_exists")
	ErrUnknownDatabase      = errors.New("unknown_database")
	ErrRegistryInconsistent = errors.New("registry_inconsistent")
	ErrGatewayNotFound      = errors.New("gateway not found")
)

const gatewaysCollection = "gateways"
const databasesCollection = "databases"

// GatewayRegistry interns database sets into stable gateway identifiers,
// backed by the document store and fronted by an LRU cache keyed on the
// canonicalised id-set.
type GatewayRegistry struct {
	store store.Store
	cache *lru.Cache

	mu sync.Mutex
}

// NewGatewayRegistry builds a registry with an LRU cache of cacheSize
// entries in front of the store's interning lookups.
func NewGatewayRegistry(s store.Store, cacheSize int) (*GatewayRegistry, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("registry: failed to allocate cache: %w", err)
	}
	return &GatewayRegistry{store: s, cache: cache}, nil
}

// ResolveOrCreate implements spec §4.C: explicit ids bypass interning and
// the cache entirely (they must hit insert to detect a collision); unnamed
// sets canonicalise to a sorted id-set and are looked up, cache first.
func (r *GatewayRegistry) ResolveOrCreate(ctx context.Context, refs []model.DatabaseRef, explicitID string) (model.Gateway, bool, error) {
	databases, err := r.resolveDatabases(ctx, refs)
	if err != nil {
		return model.Gateway{}, false, err
	}

	ids := make([]string, 0, len(databases))
	for _, d := range databases {
		ids = append(ids, d.ID)
	}
	idSet := model.CanonicalIDSet(ids)

	if explicitID != "" {
		return r.createExplicit(ctx, explicitID, databases, idSet)
	}

	return r.resolveOrCreateInterned(ctx, databases, idSet)
}

func (r *GatewayRegistry) createExplicit(ctx context.Context, explicitID string, databases []model.Database, idSet []string) (model.Gateway, bool, error) {
	gw := model.Gateway{
		ID:        explicitID,
		Databases: databases,
		IDSet:     idSet,
		Explicit:  true,
		CreatedAt: time.Now().UTC(),
	}

	err := r.store.Insert(ctx, gatewaysCollection, gatewayDocument(gw))
	if errors.Is(err, store.ErrIDConflict) {
		return model.Gateway{}, false, ErrGatewayExists
	}
	if err != nil {
		return model.Gateway{}, false, err
	}

	return gw, true, nil
}

func (r *GatewayRegistry) resolveOrCreateInterned(ctx context.Context, databases []model.Database, idSet []string) (model.Gateway, bool, error) {
	cacheKey := strings.Join(idSet, ",")

	// r.mu is held across the cache check, the store lookup and the insert,
	// so concurrent callers on this registry cannot both miss and both insert
	// a gateway for the same id-set.
	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.cache.Get(cacheKey); ok {
		return cached.(model.Gateway), false, nil
	}

	if gw, found, err := r.lookupByIDSet(ctx, idSet); err != nil {
		return model.Gateway{}, false, err
	} else if found {
		r.cache.Add(cacheKey, gw)
		return gw, false, nil
	}

	gw := model.Gateway{
		ID:        generateGatewayID(),
		Databases: databases,
		IDSet:     idSet,
		Explicit:  false,
		CreatedAt: time.Now().UTC(),
	}

	err := r.store.Insert(ctx, gatewaysCollection, gatewayDocument(gw))
	if err == nil {
		r.cache.Add(cacheKey, gw)
		return gw, true, nil
	}
	if !errors.Is(err, store.ErrIDConflict) {
		return model.Gateway{}, false, err
	}

	// The generated id is already taken. Re-read by id-set; a miss here is
	// reported as registry_inconsistent (spec §4.C step 3).
	gw, found, err := r.lookupByIDSet(ctx, idSet)
	if err != nil {
		return model.Gateway{}, false, err
	}
	if !found {
		return model.Gateway{}, false, ErrRegistryInconsistent
	}

	r.cache.Add(cacheKey, gw)
	return gw, false, nil
}

func (r *GatewayRegistry) lookupByIDSet(ctx context.Context, idSet []string) (model.Gateway, bool, error) {
	doc, err := r.store.FindOne(ctx, gatewaysCollection, store.Document{"id_set": idSet})
	if errors.Is(err, store.ErrNotFound) {
		return model.Gateway{}, false, nil
	}
	if err != nil {
		return model.Gateway{}, false, err
	}
	return gatewayFromDocument(doc), true, nil
}

// Get returns the gateway with the given id.
func (r *GatewayRegistry) Get(ctx context.Context, id string) (model.Gateway, error) {
	doc, err := r.store.Get(ctx, gatewaysCollection, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.Gateway{}, ErrGatewayNotFound
	}
	if err != nil {
		return model.Gateway{}, err
	}
	return gatewayFromDocument(doc), nil
}

// List returns a page of gateways along with the total matching count.
func (r *GatewayRegistry) List(ctx context.Context, skip, limit int) ([]model.Gateway, int, error) {
	docs, total, err := r.store.List(ctx, gatewaysCollection, nil, []string{"id"}, skip, limit)
	if err != nil {
		return nil, 0, err
	}
	gws := make([]model.Gateway, 0, len(docs))
	for _, doc := range docs {
		gws = append(gws, gatewayFromDocument(doc))
	}
	return gws, total, nil
}

// resolveDatabases expands each DatabaseRef into a full model.Database,
// registering full descriptors and resolving {id}-only refs against the
// databases collection (spec §4.C "known upstream resolution").
func (r *GatewayRegistry) resolveDatabases(ctx context.Context, refs []model.DatabaseRef) ([]model.Database, error) {
	databases := make([]model.Database, 0, len(refs))

	for _, ref := range refs {
		if ref.IsBareRef() {
			doc, err := r.store.Get(ctx, databasesCollection, ref.ID)
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrUnknownDatabase, ref.ID)
			}
			if err != nil {
				return nil, err
			}
			databases = append(databases, databaseFromDocument(doc))
			continue
		}

		db := ref.ToDatabase()
		if err := r.store.Insert(ctx, databasesCollection, databaseDocument(db)); err != nil && !errors.Is(err, store.ErrIDConflict) {
			return nil, err
		}
		databases = append(databases, db)
	}

	return databases, nil
}

func generateGatewayID() string {
	var buf [20]byte
	_, _ = rand.Read(buf[:])
	id := strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf[:]))
	if len(id) > 32 {
		id = id[:32]
	}
	return id
}

func gatewayDocument(g model.Gateway) store.Document {
	dbDocs := make([]interface{}, 0, len(g.Databases))
	for _, d := range g.Databases {
		dbDocs = append(dbDocs, databaseDocument(d))
	}
	// id_set is kept as a plain []string, the same type lookupByIDSet uses
	// as its filter value: memstore compares the stored and filter values
	// by identical concrete type, so the two must match exactly.
	return store.Document{
		"id":         g.ID,
		"databases":  dbDocs,
		"id_set":     g.IDSet,
		"explicit":   g.Explicit,
		"created_at": g.CreatedAt,
	}
}

func gatewayFromDocument(doc store.Document) model.Gateway {
	g := model.Gateway{}
	if v, ok := doc["id"].(string); ok {
		g.ID = v
	}
	if v, ok := doc["explicit"].(bool); ok {
		g.Explicit = v
	}
	if v, ok := doc["created_at"].(time.Time); ok {
		g.CreatedAt = v
	}
	if raw, ok := doc["databases"].([]interface{}); ok {
		for _, item := range raw {
			if sub, ok := item.(store.Document); ok {
				g.Databases = append(g.Databases, databaseFromDocument(sub))
			} else if sub, ok := item.(map[string]interface{}); ok {
				g.Databases = append(g.Databases, databaseFromDocument(sub))
			}
		}
	}
	// memstore keeps id_set as the []string gatewayDocument stored; mongo and
	// redis round-trip it through serialisation and hand back []interface{}.
	if raw, ok := doc["id_set"].([]string); ok {
		g.IDSet = raw
	} else if raw, ok := doc["id_set"].([]interface{}); ok {
		for _, item := range raw {
			if s, ok := item.(string); ok {
				g.IDSet = append(g.IDSet, s)
			}
		}
	}
	return g
}

func databaseDocument(d model.Database) store.Document {
	return store.Document{
		"id":       d.ID,
		"name":     d.Name,
		"base_url": d.BaseURL,
		"version":  d.Version,
		"provider": d.Provider,
	}
}

func databaseFromDocument(doc store.Document) model.Database {
	d := model.Database{}
	if v, ok := doc["id"].(string); ok {
		d.ID = v
	}
	if v, ok := doc["name"].(string); ok {
		d.Name = v
	}
	if v, ok := doc["base_url"].(string); ok {
		d.BaseURL = v
	}
	if v, ok := doc["version"].(string); ok {
		d.Version = v
	}
	if v, ok := doc["provider"].(map[string]string); ok {
		d.Provider = v
	}
	return d
}
