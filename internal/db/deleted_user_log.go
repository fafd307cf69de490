package db

import (
	"context"

	"meterboard/internal/types"
)

// DeletedUserLogRepository provides data access for the deleted_user_logs
// table. A row is appended every time a tenant user is removed, preserving
// the user's identity after the control plane has forgotten it.
type DeletedUserLogRepository struct {
	db DBTX
}

// NewDeletedUserLogRepository creates a repository backed by the given
// database connection (pool or transaction).
func NewDeletedUserLogRepository(db DBTX) *DeletedUserLogRepository {
	return &DeletedUserLogRepository{db: db}
}

// Append inserts a deletion record. The database assigns the row ID, and
// deleted_at defaults to the current epoch second when the entry's DeletedAt
// is zero. Both are scanned back into the entry.
func (r *DeletedUserLogRepository) Append(ctx context.Context, entry *types.DeletedUserLog) error {
	row := r.db.QueryRow(ctx,
		`INSERT INTO deleted_user_logs (tenant_id, user_id, email, deleted_at)
		 VALUES ($1, $2, $3, COALESCE(NULLIF($4, 0), EXTRACT(EPOCH FROM NOW())::bigint))
		 RETURNING id, deleted_at`,
		entry.TenantID,
		entry.UserID,
		entry.Email,
		entry.DeletedAt,
	)
	if err := row.Scan(&entry.ID, &entry.DeletedAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to append deleted user log", err)
	}
	return nil
}

// ListByTenant returns all deletion records for a tenant, newest first.
func (r *DeletedUserLogRepository) ListByTenant(ctx context.Context, tenantID string) ([]types.DeletedUserLog, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, tenant_id, user_id, email, deleted_at
		 FROM deleted_user_logs
		 WHERE tenant_id = $1
		 ORDER BY deleted_at DESC, id DESC`,
		tenantID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list deleted user logs", err)
	}
	defer rows.Close()

	logs := []types.DeletedUserLog{}
	for rows.Next() {
		var entry types.DeletedUserLog
		if err := rows.Scan(&entry.ID, &entry.TenantID, &entry.UserID, &entry.Email, &entry.DeletedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan deleted user log", err)
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read deleted user logs", err)
	}

	return logs, nil
}
