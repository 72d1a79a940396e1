// Package store keeps a ledger of greetings in Postgres.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goldfish-inc/oceanid/sqs-worker/internal/hello"
)

// ErrNotFound is returned by Greeting when no row matches.
var ErrNotFound = errors.New("greeting not found")

const schema = `
CREATE TABLE IF NOT EXISTS greetings (
    command_id    TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    message       TEXT NOT NULL,
    message_id    TEXT NOT NULL DEFAULT '',
    receive_count INTEGER NOT NULL DEFAULT 1,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres is a pgx-backed greeting ledger.
type Postgres struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 25
	cfg.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// EnsureSchema creates the greetings table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("schema setup failed: %w", err)
	}
	return nil
}

// SaveGreeting inserts g. A second save for the same command ID is ignored.
func (p *Postgres) SaveGreeting(ctx context.Context, g hello.Greeting) error {
	_, err := p.pool.Exec(ctx,
		`insert into greetings(command_id, name, message, message_id, receive_count, created_at)
         values($1,$2,$3,$4,$5,$6)
         on conflict (command_id) do nothing`,
		g.CommandID, g.Name, g.Message, g.MessageID, g.ReceiveCount, g.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert greeting: %w", err)
	}
	return nil
}

// Greeting loads the greeting recorded for commandID.
func (p *Postgres) Greeting(ctx context.Context, commandID string) (hello.Greeting, error) {
	var g hello.Greeting
	err := p.pool.QueryRow(ctx,
		`select command_id, name, message, message_id, receive_count, created_at
         from greetings where command_id = $1`,
		commandID,
	).Scan(&g.CommandID, &g.Name, &g.Message, &g.MessageID, &g.ReceiveCount, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return hello.Greeting{}, ErrNotFound
	}
	if err != nil {
		return hello.Greeting{}, fmt.Errorf("query greeting: %w", err)
	}
	g.CreatedAt = g.CreatedAt.UTC()
	return g, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}
