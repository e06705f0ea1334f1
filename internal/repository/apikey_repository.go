package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/iliyamo/theater-seat-booking/internal/model"
)

// APIKeyRepo persists API keys.  Plain keys never reach this layer.
type APIKeyRepo struct{ DB *sql.DB }

func NewAPIKeyRepo(db *sql.DB) *APIKeyRepo { return &APIKeyRepo{DB: db} }

// CreateKey inserts k.  A clash on id or hash yields ErrConflict.
func (r *APIKeyRepo) CreateKey(ctx context.Context, k *model.APIKey) error {
	perms, err := json.Marshal(k.Permissions)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO api_keys (id, key_prefix, key_hash, name, permissions, rate_limit, is_active, created_at) VALUES (?,?,?,?,?,?,?,?)",
		k.ID, k.Prefix, k.KeyHash, k.Name, string(perms), k.RateLimit, k.IsActive, dbTime(k.CreatedAt))
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// KeysByPrefix returns the active keys whose stored prefix matches.
func (r *APIKeyRepo) KeysByPrefix(ctx context.Context, prefix string) ([]model.APIKey, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, key_prefix, key_hash, name, permissions, rate_limit, is_active, last_used_at, created_at FROM api_keys WHERE key_prefix=? AND is_active=1",
		prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.APIKey
	for rows.Next() {
		var (
			k     model.APIKey
			perms []byte
			last  sql.NullTime
		)
		if err := rows.Scan(&k.ID, &k.Prefix, &k.KeyHash, &k.Name, &perms, &k.RateLimit, &k.IsActive, &last, &k.CreatedAt); err != nil {
			return nil, err
		}
		if len(perms) > 0 {
			if err := json.Unmarshal(perms, &k.Permissions); err != nil {
				return nil, err
			}
		}
		if last.Valid {
			t := last.Time
			k.LastUsedAt = &t
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// TouchKey records a successful verification.
func (r *APIKeyRepo) TouchKey(ctx context.Context, id string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE api_keys SET last_used_at=? WHERE id=?", dbTime(at), id)
	return err
}
