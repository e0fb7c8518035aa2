package services

import "context"

// Repository port (interface untuk service persistence)
type Repository interface {
	// Upsert reconciles by ServiceKey: same key updates the existing row.
	Upsert(ctx context.Context, s *ServiceInfo) error
	// Active returns non-deleted services for this tenant's cluster.
	Active(ctx context.Context) ([]*ServiceInfo, error)
}
