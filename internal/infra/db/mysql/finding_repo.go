package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/bryanwahyu/automaton-relay/internal/application"
	domain "github.com/bryanwahyu/automaton-relay/internal/domain/reporting"
	"github.com/bryanwahyu/automaton-relay/internal/wire"
)

// FindingRepository persists issues and evidence directly to MySQL for
// self-hosted deployments, mirroring the remote platform schema.
type FindingRepository struct {
	db    *sql.DB
	enc   *wire.Encoder
	clock application.Clock
}

func NewFindingRepository(db *sql.DB, enc *wire.Encoder, clock application.Clock) *FindingRepository {
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &FindingRepository{db: db, enc: enc, clock: clock}
}

// SaveFinding insert/update satu issue row, keyed (account_id, fingerprint)
func (r *FindingRepository) SaveFinding(ctx context.Context, f *domain.Finding) (domain.SaveResult, error) {
	rec := r.enc.Issue(f, r.clock.Now())

	var existing string
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM issues WHERE account_id=? AND fingerprint=? LIMIT 1;`,
		rec["account_id"], rec["fingerprint"],
	).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		id := uuid.New().String()
		const q = `
INSERT INTO issues
(id, name, account_id, priority, service_key, source, category, fingerprint,
 title, start_date, end_date, description, is_failure,
 subject_type, subject_name, subject_namespace, subject_cluster)
VALUES (?,?,?,?,?,?,?,?,?,?,NULL,?,?,?,?,?,?);
`
		_, err := r.db.ExecContext(ctx, q,
			id, rec["name"], rec["account_id"], rec["priority"], rec["service_key"],
			rec["source"], rec["category"], rec["fingerprint"],
			rec["title"], rec["start_date"], rec["description"], rec["is_failure"],
			rec["subject_type"], rec["subject_name"], rec["subject_namespace"], rec["subject_cluster"],
		)
		if err != nil {
			return domain.SaveResult{}, fmt.Errorf("insert issue: %w", err)
		}
		return domain.SaveResult{FindingID: id, Inserted: true}, nil
	case err != nil:
		return domain.SaveResult{}, fmt.Errorf("lookup issue: %w", err)
	}

	const q = `
UPDATE issues
SET name=?, priority=?, service_key=?, source=?, category=?,
    title=?, description=?, is_failure=?, end_date=NULL
WHERE id=?;
`
	if _, err := r.db.ExecContext(ctx, q,
		rec["name"], rec["priority"], rec["service_key"], rec["source"], rec["category"],
		rec["title"], rec["description"], rec["is_failure"], existing,
	); err != nil {
		return domain.SaveResult{}, fmt.Errorf("update issue: %w", err)
	}
	return domain.SaveResult{FindingID: existing, Inserted: false}, nil
}

// SaveEvidence insert satu evidence row untuk issue yang sudah ada
func (r *FindingRepository) SaveEvidence(ctx context.Context, findingID string, e *domain.Enrichment) error {
	structured := r.enc.Blocks(e.Blocks)
	data, err := json.Marshal(structured)
	if err != nil {
		return fmt.Errorf("marshal structured data: %w", err)
	}

	const q = `
INSERT INTO evidence (id, finding_id, account_id, category, data, created_at)
VALUES (?,?,?,?,?,?);
`
	var category any
	if e.Category != "" {
		category = e.Category
	}
	_, err = r.db.ExecContext(ctx, q,
		uuid.New().String(), findingID, r.enc.AccountID, category, string(data), r.clock.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}
	return nil
}
