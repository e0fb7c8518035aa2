package mysql

import (
	"context"
	"database/sql"
	"fmt"

	domain "github.com/bryanwahyu/automaton-relay/internal/domain/services"
	"github.com/bryanwahyu/automaton-relay/internal/wire"
)

type ServiceRepository struct {
	db  *sql.DB
	enc *wire.Encoder
}

func NewServiceRepository(db *sql.DB, enc *wire.Encoder) *ServiceRepository {
	return &ServiceRepository{db: db, enc: enc}
}

// Upsert reconcile by service_key (unique per account+cluster)
func (r *ServiceRepository) Upsert(ctx context.Context, s *domain.ServiceInfo) error {
	const q = `
INSERT INTO services
(service_key, name, type, namespace, classification, cluster, account_id, deleted, update_time)
VALUES (?,?,?,?,?,?,?,?,NOW())
ON DUPLICATE KEY UPDATE
 classification=VALUES(classification),
 deleted=VALUES(deleted),
 update_time=NOW();
`
	rec := r.enc.Service(s)
	_, err := r.db.ExecContext(ctx, q,
		rec["service_key"], rec["name"], rec["type"], rec["namespace"],
		rec["classification"], rec["cluster"], rec["account_id"], rec["deleted"],
	)
	if err != nil {
		return fmt.Errorf("upsert service: %w", err)
	}
	return nil
}

// Active returns non-deleted services untuk tenant+cluster ini
func (r *ServiceRepository) Active(ctx context.Context) ([]*domain.ServiceInfo, error) {
	const q = `
SELECT name, type, namespace, classification
FROM services
WHERE account_id=? AND cluster=? AND deleted=0;
`
	rows, err := r.db.QueryContext(ctx, q, r.enc.AccountID, r.enc.Cluster)
	if err != nil {
		return nil, fmt.Errorf("query active services: %w", err)
	}
	defer rows.Close()

	var out []*domain.ServiceInfo
	for rows.Next() {
		var s domain.ServiceInfo
		if err := rows.Scan(&s.Name, &s.ServiceType, &s.Namespace, &s.Classification); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
