// README: Driver availability pool: the set of online drivers not engaged in a ride.
package availability

import (
	"context"

	"ridehail/internal/types"
)

// Pool tracks idle drivers. Reserve is the only synchronization point that
// hands a driver to a ride: it removes the driver atomically and reports
// whether this caller was the one that removed it.
type Pool interface {
	Candidates(ctx context.Context) ([]types.ID, error)
	Reserve(ctx context.Context, id types.ID) (bool, error)
	Release(ctx context.Context, id types.ID) error
	Join(ctx context.Context, id types.ID) error
	Leave(ctx context.Context, id types.ID) error
	// Engage marks a driver as on a ride without reserving them, for rides
	// that are already ONGOING in durable state.
	Engage(ctx context.Context, id types.ID) error
}
