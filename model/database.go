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

// Database is an upstream OPTIMADE-compatible service registered with the
// gateway. It is immutable after registration except via explicit re-register.
type Database struct {
	ID       string            `json:"id" bson:"id"`
	Name     string            `json:"name" bson:"name"`
	BaseURL  string            `json:"base_url" bson:"base_url"`
	Version  string            `json:"version,omitempty" bson:"version,omitempty"`
	Provider map[string]string `json:"provider,omitempty" bson:"provider,omitempty"`
}

// DatabaseRef is what a client may supply when describing a gateway's
// membership: either a full descriptor, or a bare {id} referring to an
// already-registered Database.
type DatabaseRef struct {
	ID       string            `json:"id"`
	Name     string            `json:"name,omitempty"`
	BaseURL  string            `json:"base_url,omitempty"`
	Version  string            `json:"version,omitempty"`
	Provider map[string]string `json:"provider,omitempty"`
}

// IsBareRef reports whether the ref has no base_url, meaning it must resolve
// by id against an already-registered Database.
func (r DatabaseRef) IsBareRef() bool {
	return r.BaseURL == ""
}

func (r DatabaseRef) ToDatabase() Database {
	return Database{
		ID:       r.ID,
		Name:     r.Name,
		BaseURL:  r.BaseURL,
		Version:  r.Version,
		Provider: r.Provider,
	}
}
