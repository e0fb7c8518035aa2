package persist

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-relay/internal/domain/droplog"
	"github.com/bryanwahyu/automaton-relay/internal/domain/reporting"
	"github.com/bryanwahyu/automaton-relay/internal/domain/services"
)

type stubFindings struct {
	saveErr      error
	inserted     bool
	evidenceErrs map[int]error // index → error
	evidenceSeen []reporting.Enrichment
	saveCalls    int
}

func (s *stubFindings) SaveFinding(ctx context.Context, f *reporting.Finding) (reporting.SaveResult, error) {
	s.saveCalls++
	if s.saveErr != nil {
		return reporting.SaveResult{}, s.saveErr
	}
	return reporting.SaveResult{FindingID: "f-1", Inserted: s.inserted}, nil
}

func (s *stubFindings) SaveEvidence(ctx context.Context, findingID string, e *reporting.Enrichment) error {
	idx := len(s.evidenceSeen)
	s.evidenceSeen = append(s.evidenceSeen, *e)
	return s.evidenceErrs[idx]
}

type stubServices struct {
	rows      map[string]*services.ServiceInfo
	upsertErr error
	activeErr error
}

func newStubServices() *stubServices {
	return &stubServices{rows: make(map[string]*services.ServiceInfo)}
}

func (s *stubServices) Upsert(ctx context.Context, svc *services.ServiceInfo) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	cp := *svc
	s.rows[svc.ServiceKey()] = &cp
	return nil
}

func (s *stubServices) Active(ctx context.Context) ([]*services.ServiceInfo, error) {
	if s.activeErr != nil {
		return nil, s.activeErr
	}
	var out []*services.ServiceInfo
	for _, v := range s.rows {
		if !v.Deleted {
			out = append(out, v)
		}
	}
	return out, nil
}

type stubRecoverer struct{ calls int }

func (r *stubRecoverer) HandleError(ctx context.Context) { r.calls++ }

type stubDropLog struct{ records []*droplog.DropRecord }

func (d *stubDropLog) Save(ctx context.Context, rec *droplog.DropRecord) error {
	d.records = append(d.records, rec)
	return nil
}

func (d *stubDropLog) Recent(ctx context.Context, tenant string, limit int) ([]*droplog.DropRecord, error) {
	return d.records, nil
}

type stubArtifacts struct{ uploads map[string][]byte }

func (a *stubArtifacts) Upload(ctx context.Context, key string, contents []byte, contentType string) (string, error) {
	if a.uploads == nil {
		a.uploads = make(map[string][]byte)
	}
	a.uploads[key] = contents
	return "https://files.example.com/" + key, nil
}

func finding(enrichments ...reporting.Enrichment) *reporting.Finding {
	return &reporting.Finding{
		Fingerprint:    "abc",
		AggregationKey: "CrashLoopBackoff",
		Severity:       reporting.SeverityHigh,
		Enrichments:    enrichments,
	}
}

func TestPersistFindingAttemptsEveryEnrichment(t *testing.T) {
	findings := &stubFindings{
		inserted:     true,
		evidenceErrs: map[int]error{0: errors.New("boom")},
	}
	svc := &Service{Findings: findings, Services: newStubServices(), TenantID: "t1"}

	svc.PersistFinding(context.Background(), finding(
		reporting.Enrichment{Category: "first"},
		reporting.Enrichment{Category: "second"},
		reporting.Enrichment{Category: "third"},
	))

	require.Len(t, findings.evidenceSeen, 3, "no short-circuit on enrichment failure")
	assert.Equal(t, "second", findings.evidenceSeen[1].Category)
}

func TestPersistFindingDropsOnRejectionAndRecovers(t *testing.T) {
	findings := &stubFindings{saveErr: errors.New("status=401")}
	rec := &stubRecoverer{}
	drops := &stubDropLog{}
	svc := &Service{Findings: findings, Services: newStubServices(), Auth: rec, DropLog: drops, TenantID: "t1"}

	svc.PersistFinding(context.Background(), finding(reporting.Enrichment{}))

	assert.Equal(t, 1, rec.calls, "rejected write invokes session recovery")
	assert.Empty(t, findings.evidenceSeen, "no enrichments after a dropped finding")
	require.Len(t, drops.records, 1)
	assert.Equal(t, droplog.KindFinding, drops.records[0].Kind)
	assert.Equal(t, "abc", drops.records[0].RefKey)
}

func TestPersistFindingExistingRowStillPersistsEvidence(t *testing.T) {
	findings := &stubFindings{inserted: false}
	rec := &stubRecoverer{}
	svc := &Service{Findings: findings, Services: newStubServices(), Auth: rec, TenantID: "t1"}

	svc.PersistFinding(context.Background(), finding(reporting.Enrichment{}))

	assert.Equal(t, 0, rec.calls, "an update is not an error")
	assert.Len(t, findings.evidenceSeen, 1)
}

func TestEnrichmentFailureDoesNotTriggerRecovery(t *testing.T) {
	findings := &stubFindings{inserted: true, evidenceErrs: map[int]error{0: errors.New("boom")}}
	rec := &stubRecoverer{}
	svc := &Service{Findings: findings, Services: newStubServices(), Auth: rec, TenantID: "t1"}

	svc.PersistFinding(context.Background(), finding(reporting.Enrichment{}))

	assert.Equal(t, 0, rec.calls)
}

func TestPersistServiceUpsertKeepsLatestClassification(t *testing.T) {
	store := newStubServices()
	svc := &Service{Findings: &stubFindings{}, Services: store, Resolver: services.NewResolver(), TenantID: "t1"}

	first := &services.ServiceInfo{Name: "web", Namespace: "default", ServiceType: "deployment", Classification: "frontend"}
	second := &services.ServiceInfo{Name: "web", Namespace: "default", ServiceType: "deployment", Classification: "backend"}
	svc.PersistService(context.Background(), first)
	svc.PersistService(context.Background(), second)

	require.Len(t, store.rows, 1, "same key upserts, no duplicate")
	assert.Equal(t, "backend", store.rows[first.ServiceKey()].Classification)
	assert.Equal(t, "default/deployment/web", svc.Resolver.GuessServiceKey("web-7d9f", "default"))
}

func TestPersistServiceRejectionRecovers(t *testing.T) {
	store := newStubServices()
	store.upsertErr = errors.New("status=500")
	rec := &stubRecoverer{}
	drops := &stubDropLog{}
	svc := &Service{Findings: &stubFindings{}, Services: store, Auth: rec, DropLog: drops, TenantID: "t1"}

	svc.PersistService(context.Background(), &services.ServiceInfo{Name: "web", Namespace: "default", ServiceType: "deployment"})

	assert.Equal(t, 1, rec.calls)
	require.Len(t, drops.records, 1)
	assert.Equal(t, droplog.KindService, drops.records[0].Kind)
}

func TestActiveServicesFailureIsReturned(t *testing.T) {
	store := newStubServices()
	store.activeErr = errors.New("status=500")
	rec := &stubRecoverer{}
	svc := &Service{Findings: &stubFindings{}, Services: store, Auth: rec, TenantID: "t1"}

	_, err := svc.ActiveServices(context.Background())

	require.Error(t, err, "read failures are explicit")
	assert.Equal(t, 1, rec.calls)
}

func TestActiveServicesFeedsResolver(t *testing.T) {
	store := newStubServices()
	store.rows["default/deployment/web"] = &services.ServiceInfo{
		Name: "web", Namespace: "default", ServiceType: "deployment",
	}
	svc := &Service{Findings: &stubFindings{}, Services: store, Resolver: services.NewResolver(), TenantID: "t1"}

	out, err := svc.ActiveServices(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "default/deployment/web", svc.Resolver.GuessServiceKey("web-abc123", "default"))
}

func TestOffloadReplacesLargeFileBlocks(t *testing.T) {
	findings := &stubFindings{inserted: true}
	artifacts := &stubArtifacts{}
	svc := &Service{
		Findings:         findings,
		Services:         newStubServices(),
		Artifacts:        artifacts,
		TenantID:         "t1",
		OffloadThreshold: 8,
	}

	big := reporting.FileBlock{Filename: "heap.bin", Contents: []byte("0123456789abcdef")}
	small := reporting.FileBlock{Filename: "note.txt", Contents: []byte("hi")}
	f := finding(reporting.Enrichment{Blocks: []reporting.Block{big, small}})

	svc.PersistFinding(context.Background(), f)

	require.Len(t, findings.evidenceSeen, 1)
	blocks := findings.evidenceSeen[0].Blocks
	require.Len(t, blocks, 2)

	md, ok := blocks[0].(reporting.MarkdownBlock)
	require.True(t, ok, "oversized file becomes a link block")
	assert.Contains(t, md.Text, "https://files.example.com/t1/abc/heap.bin")
	_, ok = blocks[1].(reporting.FileBlock)
	assert.True(t, ok, "small file stays inline")

	// caller's finding untouched
	_, ok = f.Enrichments[0].Blocks[0].(reporting.FileBlock)
	assert.True(t, ok)
}

type stubAnnotator struct{ err error }

func (a *stubAnnotator) Annotate(ctx context.Context, f *reporting.Finding) (*reporting.Enrichment, error) {
	if a.err != nil {
		return nil, a.err
	}
	return &reporting.Enrichment{
		Blocks:   []reporting.Block{reporting.MarkdownBlock{Text: fmt.Sprintf("summary of %s", f.Title)}},
		Category: "ai_summary",
	}, nil
}

func TestAnnotatorAppendsEnrichmentForFailures(t *testing.T) {
	findings := &stubFindings{inserted: true}
	svc := &Service{Findings: findings, Services: newStubServices(), Annotator: &stubAnnotator{}, TenantID: "t1"}

	f := finding(reporting.Enrichment{Category: "logs"})
	f.Failure = true
	svc.PersistFinding(context.Background(), f)

	require.Len(t, findings.evidenceSeen, 2)
	assert.Equal(t, "ai_summary", findings.evidenceSeen[1].Category)
}

func TestAnnotatorErrorIsNotFatal(t *testing.T) {
	findings := &stubFindings{inserted: true}
	svc := &Service{Findings: findings, Services: newStubServices(), Annotator: &stubAnnotator{err: errors.New("quota")}, TenantID: "t1"}

	f := finding(reporting.Enrichment{})
	f.Failure = true
	svc.PersistFinding(context.Background(), f)

	require.Len(t, findings.evidenceSeen, 1, "finding still persisted without annotation")
	assert.Equal(t, 1, findings.saveCalls)
}

func TestAnnotatorSkippedForNonFailures(t *testing.T) {
	findings := &stubFindings{inserted: true}
	svc := &Service{Findings: findings, Services: newStubServices(), Annotator: &stubAnnotator{}, TenantID: "t1"}

	svc.PersistFinding(context.Background(), finding(reporting.Enrichment{}))

	assert.Len(t, findings.evidenceSeen, 1)
}
