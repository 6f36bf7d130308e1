// Package sqlite implements the storage contracts on SQLite via the pure-Go
// modernc.org/sqlite driver.
//
// Layout:
//   - sqlite.go: Provider struct, New() constructor, factory registration
//   - schema.go: database schema definition
//   - codec.go: column encoding helpers (JSON documents, nanosecond times)
//   - datapoints.go: realtime and historical datapoint stores
//   - repositories.go: configuration repositories
//
// Datapoint values and all nested structures (inputs, nodes, paths,
// metadata) are stored as JSON text columns. Timestamps are stored as
// nanoseconds since the Unix epoch so range comparisons stay exact.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	_ "modernc.org/sqlite" // database/sql driver

	"unshub/internal/storage"
	"unshub/internal/storage/factory"
)

func init() {
	factory.RegisterBackend("sqlite", func(ctx context.Context, path string) (storage.Provider, error) {
		return New(ctx, path)
	})
}

// Provider is the SQLite-backed storage provider.
type Provider struct {
	db     *sql.DB
	dbPath string
	closed atomic.Bool
}

var _ storage.Provider = (*Provider)(nil)

// New opens (and if necessary creates) the database at path and initializes
// the schema. An empty path or ":memory:" opens a private in-memory
// database, used by tests.
func New(ctx context.Context, path string) (*Provider, error) {
	var connStr string
	inMemory := path == "" || path == ":memory:"
	if inMemory {
		// WAL does not apply to in-memory databases.
		connStr = "file::memory:?_pragma=busy_timeout(10000)&_pragma=foreign_keys(ON)"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		connStr = "file:" + path + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if inMemory {
		// In-memory databases are private per connection; the pool must not
		// hand out a second connection that sees an empty database.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		// WAL supports one writer plus concurrent readers. Bounding the pool
		// keeps goroutines from piling up on the write lock.
		db.SetMaxOpenConns(runtime.NumCPU() + 1)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(0)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Provider{db: db, dbPath: path}, nil
}

func (p *Provider) Realtime() storage.RealtimeStorage     { return &realtimeStore{db: p.db} }
func (p *Provider) Historical() storage.HistoricalStorage { return &historicalStore{db: p.db} }

func (p *Provider) ConnectionConfigurations() storage.ConnectionConfigurationRepository {
	return &connectionRepo{db: p.db}
}

func (p *Provider) HierarchyConfigurations() storage.HierarchyConfigurationRepository {
	return &hierarchyRepo{db: p.db}
}

func (p *Provider) NSTreeInstances() storage.NSTreeInstanceRepository {
	return &instanceRepo{db: p.db}
}

func (p *Provider) NamespaceConfigurations() storage.NamespaceConfigurationRepository {
	return &namespaceRepo{db: p.db}
}

func (p *Provider) TopicConfigurations() storage.TopicConfigurationRepository {
	return &topicRepo{db: p.db}
}

// Path returns the database file path the provider was opened with.
func (p *Provider) Path() string { return p.dbPath }

// Close checkpoints the WAL and closes the database. Writes left in the WAL
// would otherwise be stranded until the next open.
func (p *Provider) Close() error {
	p.closed.Store(true)
	_, _ = p.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return p.db.Close()
}
