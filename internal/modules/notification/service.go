// README: Notification service: recipient inbox reads and the opened flag.
package notification

import (
	"context"

	"ridehail/internal/types"
)

const defaultListLimit = 50

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) List(ctx context.Context, recipient types.ID, limit int) ([]Notification, error) {
	if recipient == "" {
		return nil, ErrNotFound
	}
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	return s.store.ListByRecipient(ctx, recipient, limit)
}

// Open marks a notification read. Only its recipient may do so; anyone else
// gets ErrNotFound.
func (s *Service) Open(ctx context.Context, id, recipient types.ID) error {
	if id == "" || recipient == "" {
		return ErrNotFound
	}
	return s.store.MarkOpened(ctx, id, recipient)
}
