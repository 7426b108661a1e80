package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo implements Store on Postgres.
type Repo struct {
	Pool *pgxpool.Pool
}

func (r *Repo) InsertAuditLog(ctx context.Context, entry Entry) error {
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO audit_logs
		   (actor_kind, actor_user_id, action, resource_type, resource_id,
		    method, path, route, status, ip, user_agent, request_id, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		entry.ActorKind, entry.ActorUserID, entry.Action, entry.ResourceType, entry.ResourceID,
		entry.Method, entry.Path, entry.Route, entry.Status, entry.IP, entry.UserAgent,
		entry.RequestID, entry.Metadata)
	return err
}

func (r *Repo) ListAuditLogs(ctx context.Context, limit, offset int) ([]Entry, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT id, actor_kind, actor_user_id, action, resource_type, resource_id,
		        method, path, route, status, ip, user_agent, request_id, metadata, created_at
		   FROM audit_logs
		  ORDER BY created_at DESC
		  LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ActorKind, &e.ActorUserID, &e.Action, &e.ResourceType,
			&e.ResourceID, &e.Method, &e.Path, &e.Route, &e.Status, &e.IP, &e.UserAgent,
			&e.RequestID, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
