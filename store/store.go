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

// Package store defines the document-store façade the gateway registry and
// query record store are built on, and the three backends that implement it.
package store

import (
	"context"
	"errors"
)

// Sentinel errors returned by Store implementations. Callers type-switch (or
// errors.Is) against these rather than backend-specific error types.
var (
	ErrNotFound   = errors.New("store: document not found")
	ErrIDConflict = errors.New("store: id conflict")
)

// Document is the opaque, JSON-shaped record the façade moves around. Every
// document MUST carry a string "id" field; backends key on it.
type Document = map[string]interface{}

// Store is the uniform lookup/insert/find interface a named collection of
// documents exposes, independent of what's actually holding the data.
//
// insert is atomic w.r.t. id: when two callers race to insert the same id
// (the gateway-interning race, §4.C of the spec), exactly one observes a nil
// error and the other observes ErrIDConflict.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	FindOne(ctx context.Context, collection string, filter Document) (Document, error)
	Insert(ctx context.Context, collection string, doc Document) error
	Update(ctx context.Context, collection, id string, patch Document) error
	List(ctx context.Context, collection string, filter Document, sort []string, skip, limit int) ([]Document, int, error)
	Close(ctx context.Context) error
}

// Config selects and parameterises a backend, mirroring the driver/dsn shape
// of the teacher's util.DbCfg for GORM dialectors.
type Config struct {
	Driver       string `ini:"driver"`
	MongoURI     string `ini:"mongo_uri"`
	DatabaseName string `ini:"database_name"`
	RedisAddr    string `ini:"redis_addr"`
}
