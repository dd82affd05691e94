// Package neo4j implements mask.GraphDB over the official Bolt driver. Each
// Read or Write call runs as one managed transaction.
package neo4j

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	mask "github.com/maskagent/mask"
)

// DB wraps a Neo4j driver.
type DB struct {
	driver neo4j.DriverWithContext
}

// New connects to uri with basic auth and verifies connectivity.
func New(ctx context.Context, uri, user, password string) (*DB, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, err
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, err
	}
	return &DB{driver: driver}, nil
}

// Close releases the driver's connection pool.
func (db *DB) Close(ctx context.Context) error {
	return db.driver.Close(ctx)
}

// Read runs query in a read transaction and returns its records.
func (db *DB) Read(ctx context.Context, query string, params map[string]any) ([]mask.GraphRecord, error) {
	session := db.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return collect(ctx, tx, query, params)
	})
	if err != nil {
		return nil, err
	}
	return out.([]mask.GraphRecord), nil
}

// Write runs query in a write transaction and returns its records.
func (db *DB) Write(ctx context.Context, query string, params map[string]any) ([]mask.GraphRecord, error) {
	session := db.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return collect(ctx, tx, query, params)
	})
	if err != nil {
		return nil, err
	}
	return out.([]mask.GraphRecord), nil
}

func collect(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]any) ([]mask.GraphRecord, error) {
	result, err := tx.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	var records []mask.GraphRecord
	for result.Next(ctx) {
		records = append(records, mask.GraphRecord(result.Record().AsMap()))
	}
	return records, result.Err()
}

var _ mask.GraphDB = (*DB)(nil)
