package postgres

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Pool limits for the token table. It is read once per reload interval.
const (
	maxConns     = 5
	connLifetime = 30 * time.Minute
)

// DB hands out one *sql.DB per DSN and replaces it when the DSN changes.
type DB struct {
	mu  sync.Mutex
	dsn string
	db  *sql.DB
}

func NewDB() *DB {
	return &DB{}
}

// Get returns the pool for dsn, opening it on first use. sql.Open does not
// dial, so an unreachable server surfaces on the first query.
func (p *DB) Get(dsn string) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db != nil && p.dsn == dsn {
		return p.db, nil
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(connLifetime)

	if old := p.db; old != nil {
		_ = old.Close()
	}
	p.db, p.dsn = db, dsn
	return db, nil
}

// Close releases the current pool, if any.
func (p *DB) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	db := p.db
	p.db, p.dsn = nil, ""
	if db == nil {
		return nil
	}
	return db.Close()
}
