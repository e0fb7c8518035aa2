package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bryanwahyu/automaton-relay/internal/application"
	"github.com/bryanwahyu/automaton-relay/internal/domain/reporting"
	"github.com/bryanwahyu/automaton-relay/internal/domain/services"
	"github.com/bryanwahyu/automaton-relay/internal/wire"
)

const servicesTable = "Services"

const (
	rpcInsertFinding    = "insert_finding_v1"
	rpcInsertEnrichment = "insert_enrichment_v1"
)

// Store implements the finding and service repository ports against the
// remote platform. It interprets response envelopes; the retry/drop policy
// lives with the caller.
type Store struct {
	client *Client
	enc    *wire.Encoder
	clock  application.Clock
}

func NewStore(client *Client, enc *wire.Encoder, clock application.Clock) *Store {
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &Store{client: client, enc: enc, clock: clock}
}

// SaveFinding inserts the Issue record and reports the backend row id plus
// whether a new row was created (false means an existing issue was updated).
func (s *Store) SaveFinding(ctx context.Context, f *reporting.Finding) (reporting.SaveResult, error) {
	env, err := s.client.RPC(ctx, rpcInsertFinding, s.enc.Issue(f, s.clock.Now()))
	if err != nil {
		return reporting.SaveResult{}, err
	}
	if !accepted(env.StatusCode) {
		return reporting.SaveResult{}, rejectionError(rpcInsertFinding, env)
	}

	var rows []struct {
		ID       string `json:"id"`
		Inserted bool   `json:"inserted"`
	}
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return reporting.SaveResult{}, fmt.Errorf("decode %s response: %w", rpcInsertFinding, err)
	}
	if len(rows) == 0 {
		return reporting.SaveResult{}, fmt.Errorf("%s returned no rows", rpcInsertFinding)
	}
	return reporting.SaveResult{FindingID: rows[0].ID, Inserted: rows[0].Inserted}, nil
}

// SaveEvidence inserts one Evidence record for an already-persisted finding.
func (s *Store) SaveEvidence(ctx context.Context, findingID string, e *reporting.Enrichment) error {
	rec, err := s.enc.Evidence(findingID, e)
	if err != nil {
		return err
	}
	env, err := s.client.RPC(ctx, rpcInsertEnrichment, rec)
	if err != nil {
		return err
	}
	if !accepted(env.StatusCode) {
		return rejectionError(rpcInsertEnrichment, env)
	}
	return nil
}

// Upsert reconciles a service row by service_key.
func (s *Store) Upsert(ctx context.Context, svc *services.ServiceInfo) error {
	env, err := s.client.Table(servicesTable).Insert(s.enc.Service(svc), true).Execute(ctx)
	if err != nil {
		return err
	}
	if !accepted(env.StatusCode) {
		return rejectionError("upsert "+servicesTable, env)
	}
	return nil
}

// Active queries the non-deleted services for this tenant's cluster.
func (s *Store) Active(ctx context.Context) ([]*services.ServiceInfo, error) {
	env, err := s.client.Table(servicesTable).
		Select("name", "type", "namespace", "classification").
		Filter("account_id", "eq", s.enc.AccountID).
		Filter("cluster", "eq", s.enc.Cluster).
		Filter("deleted", "eq", false).
		Execute(ctx)
	if err != nil {
		return nil, err
	}
	if env.StatusCode != 200 {
		return nil, rejectionError("select "+servicesTable, env)
	}

	var rows []struct {
		Name           string `json:"name"`
		Type           string `json:"type"`
		Namespace      string `json:"namespace"`
		Classification string `json:"classification"`
	}
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return nil, fmt.Errorf("decode %s rows: %w", servicesTable, err)
	}

	out := make([]*services.ServiceInfo, 0, len(rows))
	for _, r := range rows {
		out = append(out, &services.ServiceInfo{
			Name:           r.Name,
			ServiceType:    r.Type,
			Namespace:      r.Namespace,
			Classification: r.Classification,
		})
	}
	return out, nil
}

func accepted(status int) bool {
	return status == 200 || status == 201
}

func rejectionError(op string, env Envelope) error {
	return fmt.Errorf("%s rejected: status=%d body=%s", op, env.StatusCode, strings.TrimSpace(string(env.Data)))
}
