package watch

import (
	"context"
)

// Repository defines the operations for persisting and retrieving watch Requests.
// The monitor cycle only uses ListActive; the rest serve the admin API.
type Repository interface {
	Create(ctx context.Context, req *Request) error
	GetByID(ctx context.Context, id int64) (*Request, error)
	ListAll(ctx context.Context) ([]*Request, error)
	ListActive(ctx context.Context) ([]*Request, error)
	Disable(ctx context.Context, id int64) error // Soft delete: clears IsActive
}
