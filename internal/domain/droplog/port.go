package droplog

import (
	"context"
)

// Repository defines persistence for dropped writes
type Repository interface {
	Save(ctx context.Context, d *DropRecord) error
	Recent(ctx context.Context, tenant string, limit int) ([]*DropRecord, error)
}
