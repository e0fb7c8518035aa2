package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	domain "github.com/bryanwahyu/automaton-relay/internal/domain/droplog"
)

type DropLogRepository struct {
	db *sql.DB
}

func NewDropLogRepository(db *sql.DB) *DropLogRepository { return &DropLogRepository{db: db} }

func (r *DropLogRepository) Save(ctx context.Context, d *domain.DropRecord) error {
	const q = `
INSERT INTO dropped_writes
  (tenant_id, kind, ref_key, message, payload_json, created_at)
VALUES (?,?,?,?,?,?)
`
	tenant := stringOrDash(d.TenantID)
	kind := stringOrDash(string(d.Kind))
	ref := stringOrDash(d.RefKey)
	msg := d.Message
	if strings.TrimSpace(msg) == "" {
		msg = "-"
	}
	payload := d.PayloadJSON
	if strings.TrimSpace(payload) == "" {
		payload = "{}"
	} else {
		// ensure valid json; if invalid, wrap as string field
		var js any
		if json.Unmarshal([]byte(payload), &js) != nil {
			b, _ := json.Marshal(map[string]string{"raw": payload})
			payload = string(b)
		}
	}
	created := d.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q, tenant, kind, ref, msg, payload, created)
	return err
}

func (r *DropLogRepository) Recent(ctx context.Context, tenant string, limit int) ([]*domain.DropRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, kind, ref_key, message, payload_json, created_at
FROM dropped_writes
WHERE tenant_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, tenant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.DropRecord
	for rows.Next() {
		var d domain.DropRecord
		if err := rows.Scan(&d.ID, &d.TenantID, &d.Kind, &d.RefKey, &d.Message, &d.PayloadJSON, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}
