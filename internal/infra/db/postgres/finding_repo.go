package postgres

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

// SaveFinding insert/update keyed (account_id, fingerprint); xmax=0 tells
// insert apart from update so callers can log "updated existing".
func (r *FindingRepository) SaveFinding(ctx context.Context, f *domain.Finding) (domain.SaveResult, error) {
	rec := r.enc.Issue(f, r.clock.Now())

	const q = `
INSERT INTO issues
(id, name, account_id, priority, service_key, source, category, fingerprint,
 title, start_date, end_date, description, is_failure,
 subject_type, subject_name, subject_namespace, subject_cluster)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NULL,$11,$12,$13,$14,$15,$16)
ON CONFLICT (account_id, fingerprint) DO UPDATE SET
 name = EXCLUDED.name,
 priority = EXCLUDED.priority,
 service_key = EXCLUDED.service_key,
 source = EXCLUDED.source,
 category = EXCLUDED.category,
 title = EXCLUDED.title,
 description = EXCLUDED.description,
 is_failure = EXCLUDED.is_failure,
 end_date = NULL
RETURNING id, (xmax = 0) AS inserted;`

	var res domain.SaveResult
	err := r.db.QueryRowContext(ctx, q,
		uuid.New().String(), rec["name"], rec["account_id"], rec["priority"], rec["service_key"],
		rec["source"], rec["category"], rec["fingerprint"],
		rec["title"], rec["start_date"], rec["description"], rec["is_failure"],
		rec["subject_type"], rec["subject_name"], rec["subject_namespace"], rec["subject_cluster"],
	).Scan(&res.FindingID, &res.Inserted)
	if err != nil {
		return domain.SaveResult{}, fmt.Errorf("upsert issue: %w", err)
	}
	return res, nil
}

func (r *FindingRepository) SaveEvidence(ctx context.Context, findingID string, e *domain.Enrichment) error {
	structured := r.enc.Blocks(e.Blocks)
	data, err := json.Marshal(structured)
	if err != nil {
		return fmt.Errorf("marshal structured data: %w", err)
	}

	const q = `
INSERT INTO evidence (id, finding_id, account_id, category, data, created_at)
VALUES ($1,$2,$3,$4,$5,$6);`

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
