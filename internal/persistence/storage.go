package persistence

import (
	"context"
	"fmt"
)

// Driver identifies a concrete history store backend.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open selects a backend by driver name. An empty name means sqlite.
//
//	sqlite:   dir is the directory holding the three database files
//	postgres: dsn is the connection string
//	memory:   ephemeral, for tests
func Open(ctx context.Context, driver, dir, dsn string) (Stores, error) {
	if driver == "" {
		driver = string(DriverSQLite)
	}
	switch Driver(driver) {
	case DriverMemory:
		return NewMemoryStores(), nil
	case DriverSQLite:
		return NewSQLiteStores(dir)
	case DriverPostgres:
		return NewPostgresStores(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
