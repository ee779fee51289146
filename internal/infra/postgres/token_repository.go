package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"pdf-from-html/internal/tokens"
)

const (
	ddlTokens = `CREATE TABLE IF NOT EXISTS api_tokens (
		token TEXT PRIMARY KEY,
		rate_limit INTEGER NOT NULL DEFAULT 60,
		scope JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		comment TEXT
	);`
	ddlTokensIndex = `CREATE INDEX IF NOT EXISTS idx_api_tokens_created_at ON api_tokens (created_at);`
	selectTokens   = `SELECT token, rate_limit, scope FROM api_tokens;`
)

// VerifySchema creates the token table when missing.
func VerifySchema(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, ddlTokens); err != nil {
		return fmt.Errorf("create api_tokens: %w", err)
	}
	if _, err := db.ExecContext(ctx, ddlTokensIndex); err != nil {
		return fmt.Errorf("create api_tokens index: %w", err)
	}
	return nil
}

// TokenRepository reads API tokens from Postgres.
type TokenRepository struct {
	DB  *DB
	DSN string
}

func NewTokenRepository(db *DB, dsn string) *TokenRepository {
	return &TokenRepository{DB: db, DSN: dsn}
}

// LoadTokens returns every token with its rate limit and scope.
func (r *TokenRepository) LoadTokens(ctx context.Context) (map[string]tokens.Entry, error) {
	db, err := r.DB.Get(r.DSN)
	if err != nil {
		return nil, err
	}
	if err := VerifySchema(db); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := db.QueryContext(ctx, selectTokens)
	if err != nil {
		return nil, fmt.Errorf("query api_tokens: %w", err)
	}
	defer rows.Close()

	out := make(map[string]tokens.Entry)
	for rows.Next() {
		var (
			token    string
			limit    int
			rawScope []byte
		)
		if err := rows.Scan(&token, &limit, &rawScope); err != nil {
			return nil, err
		}
		scope := tokens.Scope{}
		if len(rawScope) > 0 {
			if err := json.Unmarshal(rawScope, &scope); err != nil {
				return nil, fmt.Errorf("decode scope of token %q: %w", mask(token), err)
			}
		}
		out[token] = tokens.Entry{RateLimit: limit, Scope: scope}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func mask(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return token[:4] + "****"
}
