package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path"

	"github.com/bryanwahyu/automaton-relay/internal/domain/droplog"
	"github.com/bryanwahyu/automaton-relay/internal/domain/reporting"
	"github.com/bryanwahyu/automaton-relay/internal/domain/services"
)

// Recoverer is the session recovery path invoked after a rejected write.
type Recoverer interface {
	HandleError(ctx context.Context)
}

// Annotator produces an extra enrichment for a finding (AI summary).
type Annotator interface {
	Annotate(ctx context.Context, f *reporting.Finding) (*reporting.Enrichment, error)
}

// Service implements the persistence use-cases. Writes are best-effort,
// at-most-once: a rejected write is dropped with a log entry and never
// retried inside the same call, so the backend needs no duplicate
// detection. Reads fail loudly because the caller needs the data.
//
// Safe for concurrent use: all state lives in the injected collaborators.
type Service struct {
	Findings reporting.Repository
	Services services.Repository

	// Optional collaborators; nil disables the behavior.
	Auth      Recoverer
	Artifacts reporting.ArtifactStore
	DropLog   droplog.Repository
	Annotator Annotator
	Resolver  *services.Resolver

	TenantID string

	// OffloadThreshold is the file-block size in bytes above which contents
	// are uploaded to the artifact store instead of inlined. 0 disables.
	OffloadThreshold int
}

// PersistFinding encodes and sends the Issue record, then each Enrichment
// under it independently. Failures surface only as log entries.
func (s *Service) PersistFinding(ctx context.Context, f *reporting.Finding) {
	enrichments := s.prepareEnrichments(ctx, f)

	res, err := s.Findings.SaveFinding(ctx, f)
	if err != nil {
		log.Printf("failed to persist finding fingerprint=%s error: %v. Dropping finding", f.Fingerprint, err)
		s.recordDrop(ctx, droplog.KindFinding, f.Fingerprint, err, f)
		s.recover(ctx)
		return
	}
	if !res.Inserted {
		log.Printf("finding already exists; updating existing fingerprint=%s", f.Fingerprint)
	}

	// every enrichment is attempted exactly once, no short-circuit
	for i := range enrichments {
		if err := s.Findings.SaveEvidence(ctx, res.FindingID, &enrichments[i]); err != nil {
			log.Printf("failed to persist enrichment fingerprint=%s finding_id=%s error: %v. Dropping enrichment",
				f.Fingerprint, res.FindingID, err)
			s.recordDrop(ctx, droplog.KindEvidence, res.FindingID, err, enrichments[i])
		}
	}
}

// PersistService upserts one service record, reconciled by service key.
func (s *Service) PersistService(ctx context.Context, svc *services.ServiceInfo) {
	if err := s.Services.Upsert(ctx, svc); err != nil {
		log.Printf("failed to persist service service_key=%s error: %v", svc.ServiceKey(), err)
		s.recordDrop(ctx, droplog.KindService, svc.ServiceKey(), err, svc)
		s.recover(ctx)
		return
	}
	if s.Resolver != nil {
		s.Resolver.Record(*svc)
	}
}

// ActiveServices queries the live services for this tenant's cluster.
// Unlike the write paths, a failure here is returned to the caller.
func (s *Service) ActiveServices(ctx context.Context) ([]*services.ServiceInfo, error) {
	out, err := s.Services.Active(ctx)
	if err != nil {
		log.Printf("failed to get active services error: %v", err)
		s.recover(ctx)
		return nil, fmt.Errorf("get active services: %w", err)
	}
	if s.Resolver != nil {
		for _, svc := range out {
			s.Resolver.Record(*svc)
		}
	}
	return out, nil
}

// prepareEnrichments returns the enrichments to persist: the finding's own
// (with oversized file blocks offloaded to object storage) plus an optional
// AI annotation for failures. The finding itself is never mutated.
func (s *Service) prepareEnrichments(ctx context.Context, f *reporting.Finding) []reporting.Enrichment {
	out := make([]reporting.Enrichment, 0, len(f.Enrichments)+1)
	for _, e := range f.Enrichments {
		out = append(out, s.offloadFiles(ctx, f, e))
	}

	if s.Annotator != nil && f.Failure {
		annotation, err := s.Annotator.Annotate(ctx, f)
		if err != nil {
			log.Printf("ai annotation failed fingerprint=%s error: %v", f.Fingerprint, err)
		} else if annotation != nil {
			out = append(out, *annotation)
		}
	}
	return out
}

func (s *Service) offloadFiles(ctx context.Context, f *reporting.Finding, e reporting.Enrichment) reporting.Enrichment {
	if s.Artifacts == nil || s.OffloadThreshold <= 0 {
		return e
	}

	blocks := make([]reporting.Block, len(e.Blocks))
	copy(blocks, e.Blocks)
	for i, block := range blocks {
		file, ok := block.(reporting.FileBlock)
		if !ok || len(file.Contents) <= s.OffloadThreshold {
			continue
		}
		key := path.Join(s.TenantID, f.Fingerprint, file.Filename)
		url, err := s.Artifacts.Upload(ctx, key, file.Contents, "application/octet-stream")
		if err != nil {
			// keep the inline block, oversized beats lost
			log.Printf("failed to offload evidence file key=%s error: %v", key, err)
			continue
		}
		blocks[i] = reporting.MarkdownBlock{Text: fmt.Sprintf("[%s](%s)", file.Filename, url)}
	}
	return reporting.Enrichment{Blocks: blocks, Category: e.Category}
}

func (s *Service) recover(ctx context.Context) {
	if s.Auth != nil {
		s.Auth.HandleError(ctx)
	}
}

func (s *Service) recordDrop(ctx context.Context, kind droplog.Kind, refKey string, cause error, payload any) {
	if s.DropLog == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = nil
	}
	rec := &droplog.DropRecord{
		TenantID:    s.TenantID,
		Kind:        kind,
		RefKey:      refKey,
		Message:     cause.Error(),
		PayloadJSON: string(raw),
	}
	if err := s.DropLog.Save(ctx, rec); err != nil {
		log.Printf("failed to record dropped write kind=%s ref=%s error: %v", kind, refKey, err)
	}
}
