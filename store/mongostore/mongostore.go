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

// Package mongostore is the MongoDB-backed Store, one collection per logical
// document collection, with a unique index on "id" and an index on the
// flattened "id_set" field (the canonicalised database-id set) to support
// gateway interning as a plain equality query.
package mongostore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"optimade-gateway-go/store"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

func Connect(ctx context.Context, uri, databaseName string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	s := &Store{client: client, db: client.Database(databaseName)}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	gateways := s.db.Collection("gateways")
	_, err := gateways.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "id_set", Value: 1}}},
	})
	if err != nil {
		return err
	}
	for _, name := range []string{"queries", "databases"} {
		_, err = s.db.Collection(name).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// normalize rewrites the driver's bson.A/bson.D wrapper types into the plain
// []interface{}/map[string]interface{} shapes the rest of the codebase
// type-asserts against, so callers never need to know documents came from
// Mongo rather than memstore or redisstore.
func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case bson.A:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case bson.D:
		out := make(map[string]interface{}, len(x))
		for _, e := range x {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.M:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	default:
		return v
	}
}

func normalizeDoc(doc store.Document) store.Document {
	for k, v := range doc {
		doc[k] = normalize(v)
	}
	return doc
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	var doc store.Document
	err := s.db.Collection(collection).FindOne(ctx, bson.D{{Key: "id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	delete(doc, "_id")
	return normalizeDoc(doc), nil
}

func toBsonFilter(filter store.Document) bson.D {
	d := bson.D{}
	for k, v := range filter {
		d = append(d, bson.E{Key: k, Value: v})
	}
	return d
}

func (s *Store) FindOne(ctx context.Context, collection string, filter store.Document) (store.Document, error) {
	var doc store.Document
	err := s.db.Collection(collection).FindOne(ctx, toBsonFilter(filter)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	delete(doc, "_id")
	return normalizeDoc(doc), nil
}

func (s *Store) Insert(ctx context.Context, collection string, doc store.Document) error {
	_, err := s.db.Collection(collection).InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrIDConflict
	}
	return err
}

func (s *Store) Update(ctx context.Context, collection, id string, patch store.Document) error {
	res, err := s.db.Collection(collection).UpdateOne(ctx,
		bson.D{{Key: "id", Value: id}},
		bson.D{{Key: "$set", Value: patch}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context, collection string, filter store.Document, sortFields []string, skip, limit int) ([]store.Document, int, error) {
	coll := s.db.Collection(collection)
	bfilter := toBsonFilter(filter)

	total, err := coll.CountDocuments(ctx, bfilter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSkip(int64(skip))
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	if len(sortFields) > 0 {
		sortDoc := bson.D{}
		for _, f := range sortFields {
			sortDoc = append(sortDoc, bson.E{Key: f, Value: 1})
		}
		opts = opts.SetSort(sortDoc)
	}

	cur, err := coll.Find(ctx, bfilter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var docs []store.Document
	for cur.Next(ctx) {
		var doc store.Document
		if err := cur.Decode(&doc); err != nil {
			return nil, 0, err
		}
		delete(doc, "_id")
		docs = append(docs, normalizeDoc(doc))
	}
	return docs, int(total), cur.Err()
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
