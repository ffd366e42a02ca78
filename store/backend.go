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

package store

import (
	"context"
	"fmt"

	"optimade-gateway-go/store/memstore"
	"optimade-gateway-go/store/mongostore"
	"optimade-gateway-go/store/redisstore"
)

// NewBackend picks the Store implementation named by cfg.Driver, the same
// way the teacher's util.GetDialector picks a GORM dialector by driver name.
func NewBackend(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return memstore.New(), nil
	case "mongo":
		return mongostore.Connect(ctx, cfg.MongoURI, cfg.DatabaseName)
	case "redis":
		return redisstore.Connect(ctx, cfg.RedisAddr)
	default:
		return nil, fmt.Errorf("store: unknown driver %q (supported: memory, mongo, redis)", cfg.Driver)
	}
}
