package reporting

import "context"

// SaveResult hasil dari SaveFinding: backend row id + apakah row baru
type SaveResult struct {
	FindingID string
	Inserted  bool
}

// Repository port (interface untuk persistence backend: platform REST atau SQL)
type Repository interface {
	SaveFinding(ctx context.Context, f *Finding) (SaveResult, error)
	SaveEvidence(ctx context.Context, findingID string, e *Enrichment) error
}

// ArtifactStore port for offloading large evidence files to object storage
type ArtifactStore interface {
	Upload(ctx context.Context, key string, contents []byte, contentType string) (string, error)
}
