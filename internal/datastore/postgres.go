package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores every collection in the documents table as jsonb.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) GetAll(ctx context.Context, collection string) ([]json.RawMessage, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT data FROM documents WHERE collection = $1 ORDER BY created_at, id`, collection)
	if err != nil {
		return nil, classify(fmt.Errorf("list %s: %w", collection, err))
	}
	defer rows.Close()

	records := make([]json.RawMessage, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan %s record: %w", collection, err)
		}
		records = append(records, json.RawMessage(data))
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return records, nil
}

func (p *Postgres) GetByID(ctx context.Context, collection string, id string) (json.RawMessage, error) {
	var data []byte
	err := p.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`, collection, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify(fmt.Errorf("get %s/%s: %w", collection, id, err))
	}
	return json.RawMessage(data), nil
}

func (p *Postgres) Add(ctx context.Context, collection string, id string, record json.RawMessage) (string, error) {
	id, encoded, err := withID(record, id)
	if err != nil {
		return "", err
	}

	tag, err := p.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, data, created_at, updated_at)
		 VALUES ($1, $2, $3::jsonb, now(), now())
		 ON CONFLICT (collection, id) DO NOTHING`,
		collection, id, string(encoded))
	if err != nil {
		return "", classify(fmt.Errorf("add %s/%s: %w", collection, id, err))
	}
	if tag.RowsAffected() == 0 {
		return "", fmt.Errorf("%s/%s: %w", collection, id, ErrExists)
	}
	return id, nil
}

func (p *Postgres) Update(ctx context.Context, collection string, id string, patch map[string]any, conds ...Condition) error {
	fields := make(map[string]any, len(patch))
	for key, value := range patch {
		if key != "id" {
			fields[key] = value
		}
	}
	encoded, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}

	where, args := conditionClause(conds, []any{collection, id, string(encoded)})
	tag, err := p.pool.Exec(ctx,
		`UPDATE documents SET data = data || $3::jsonb, updated_at = now()
		 WHERE collection = $1 AND id = $2`+where, args...)
	if err != nil {
		return classify(fmt.Errorf("update %s/%s: %w", collection, id, err))
	}
	if tag.RowsAffected() == 0 {
		return p.missOrConflict(ctx, collection, id, conds)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, collection string, id string, conds ...Condition) error {
	where, args := conditionClause(conds, []any{collection, id})
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`+where, args...)
	if err != nil {
		return classify(fmt.Errorf("delete %s/%s: %w", collection, id, err))
	}
	if tag.RowsAffected() == 0 {
		return p.missOrConflict(ctx, collection, id, conds)
	}
	return nil
}

func (p *Postgres) Status(ctx context.Context) (Status, error) {
	if err := p.pool.Ping(ctx); err != nil {
		return Status{Connected: false, Stores: []string{}}, nil
	}

	rows, err := p.pool.Query(ctx, `SELECT DISTINCT collection FROM documents ORDER BY collection`)
	if err != nil {
		return Status{}, classify(fmt.Errorf("list collections: %w", err))
	}
	defer rows.Close()

	stores := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return Status{}, fmt.Errorf("scan collection: %w", err)
		}
		stores = append(stores, name)
	}
	return Status{Connected: true, Stores: stores}, rows.Err()
}

func (p *Postgres) missOrConflict(ctx context.Context, collection string, id string, conds []Condition) error {
	if len(conds) == 0 {
		return ErrNotFound
	}

	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1 AND id = $2)`,
		collection, id).Scan(&exists)
	if err != nil {
		return classify(err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrPreconditionFailed
}

func conditionClause(conds []Condition, args []any) (string, []any) {
	if len(conds) == 0 {
		return "", args
	}

	parts := make([]string, 0, len(conds))
	for _, cond := range conds {
		args = append(args, cond.Field)
		fieldArg := len(args)
		if cond.Absent {
			parts = append(parts, fmt.Sprintf("(data ->> $%d) IS NULL", fieldArg))
			continue
		}
		args = append(args, cond.Value)
		parts = append(parts, fmt.Sprintf("(data ->> $%d) = $%d", fieldArg, len(args)))
	}

	return " AND " + strings.Join(parts, " AND "), args
}

func classify(err error) error {
	if err == nil {
		return nil
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
