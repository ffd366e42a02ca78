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

import (
	"sort"
	"time"
)

// Gateway is an ordered-by-declaration set of databases exposed as one
// OPTIMADE endpoint. Never mutated after creation, never deleted in-band.
type Gateway struct {
	ID        string     `json:"id" bson:"id"`
	Databases []Database `json:"databases" bson:"databases"`
	// IDSet is the canonicalised (sorted, deduplicated) set of database ids,
	// stored alongside Databases so that interning lookups can run as a plain
	// equality query against the store instead of a set-comparison scan.
	IDSet     []string  `json:"-" bson:"id_set"`
	Explicit  bool      `json:"-" bson:"explicit"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// CanonicalIDSet sorts and deduplicates a list of database ids, the same
// canonicalisation the registry uses to intern a membership set.
func CanonicalIDSet(ids []string) []string {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// DatabaseIDs returns the declared-order list of member database ids.
func (g Gateway) DatabaseIDs() []string {
	ids := make([]string, len(g.Databases))
	for i, d := range g.Databases {
		ids[i] = d.ID
	}
	return ids
}
