package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared
// query helpers across pool and transaction callers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// checkIdempotencyKey returns the stored result of a previously completed
// operation with this key, or (nil, false) when the key is unseen. A repeated
// request with the same key short-circuits to the stored result instead of
// re-executing the mutation.
func checkIdempotencyKey(ctx context.Context, q pgxQuerier, key string) (json.RawMessage, bool, error) {
	var result json.RawMessage
	err := q.QueryRow(ctx,
		"SELECT result_json FROM idempotency_keys WHERE key = $1", key,
	).Scan(&result)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	return result, true, nil
}

// recordIdempotencyKey stores the result of a completed operation under its
// key. Written once per logical operation; a concurrent duplicate insert is a
// no-op thanks to ON CONFLICT DO NOTHING.
func recordIdempotencyKey(ctx context.Context, tx pgx.Tx, key, actionType string, entityID int64, result any) error {
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal idempotency result: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO idempotency_keys (key, action_type, entity_id, result_json, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (key) DO NOTHING
	`, key, actionType, entityID, b)
	if err != nil {
		return fmt.Errorf("failed to record idempotency key: %w", err)
	}
	return nil
}
