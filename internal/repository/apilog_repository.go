package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/theater-seat-booking/internal/model"
)

// APILogRepo appends to the API usage log.
type APILogRepo struct{ DB *sql.DB }

func NewAPILogRepo(db *sql.DB) *APILogRepo { return &APILogRepo{DB: db} }

// RecordUsage inserts one usage entry.
func (r *APILogRepo) RecordUsage(ctx context.Context, l model.APILog) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO api_logs (api_key_id, endpoint, method, status_code, response_time_ms, ip_address, user_agent, created_at) VALUES (?,?,?,?,?,?,?,?)",
		l.APIKeyID, l.Endpoint, l.Method, l.StatusCode, l.ResponseTimeMs, nullString(l.IPAddress), nullString(l.UserAgent), dbTime(l.CreatedAt))
	return err
}
