package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// ExportedCollections lists what an admin export contains, parents before children.
var ExportedCollections = []string{
	UsersCollection,
	ProjectsCollection,
	TiersCollection,
	MembershipsCollection,
	ProductsCollection,
	OrdersCollection,
}

func exported(name string) bool {
	for _, c := range ExportedCollections {
		if c == name {
			return true
		}
	}
	return false
}

// PostgresDumper returns every row of a table as a JSON array.
func PostgresDumper(conn *sqlx.DB) func(ctx context.Context, table string) (json.RawMessage, error) {
	return func(ctx context.Context, table string) (json.RawMessage, error) {
		if !exported(table) {
			return nil, fmt.Errorf("table %q is not exported", table)
		}
		// table is one of the fixed names above, never user input.
		q := fmt.Sprintf("SELECT COALESCE(json_agg(t), '[]'::json) FROM (SELECT * FROM %s) t", table)
		var data json.RawMessage
		if err := conn.QueryRowxContext(ctx, q).Scan(&data); err != nil {
			return nil, fmt.Errorf("dump %s: %w", table, err)
		}
		return data, nil
	}
}

// MongoDumper returns every document of a collection as a relaxed extended JSON array.
func MongoDumper(database *mongo.Database) func(ctx context.Context, collection string) (json.RawMessage, error) {
	return func(ctx context.Context, collection string) (json.RawMessage, error) {
		if !exported(collection) {
			return nil, fmt.Errorf("collection %q is not exported", collection)
		}
		cur, err := database.Collection(collection).Find(ctx, bson.D{})
		if err != nil {
			return nil, fmt.Errorf("dump %s: %w", collection, err)
		}
		defer cur.Close(ctx)

		docs := []json.RawMessage{}
		for cur.Next(ctx) {
			b, err := bson.MarshalExtJSON(cur.Current, false, false)
			if err != nil {
				return nil, fmt.Errorf("dump %s: %w", collection, err)
			}
			docs = append(docs, b)
		}
		if err := cur.Err(); err != nil {
			return nil, fmt.Errorf("dump %s: %w", collection, err)
		}
		return json.Marshal(docs)
	}
}
