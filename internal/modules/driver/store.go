// README: Driver store backed by PostgreSQL.
package driver

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridehail/internal/infra"
	"ridehail/internal/modules/vehicle"
	"ridehail/internal/types"
)

type PgStore struct {
	db *pgxpool.Pool
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) Upsert(ctx context.Context, d Driver) error {
	_, err := infra.Conn(ctx, s.db).Exec(ctx, `
		INSERT INTO drivers (id, name, vehicle_model, vehicle_type, seats, pet_friendly, baby_friendly, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			vehicle_model = EXCLUDED.vehicle_model,
			vehicle_type = EXCLUDED.vehicle_type,
			seats = EXCLUDED.seats,
			pet_friendly = EXCLUDED.pet_friendly,
			baby_friendly = EXCLUDED.baby_friendly,
			updated_at = EXCLUDED.updated_at`,
		string(d.ID), d.Name, d.Vehicle.Model, string(d.Vehicle.Type), d.Vehicle.Seats,
		d.Vehicle.PetFriendly, d.Vehicle.BabyFriendly, d.UpdatedAt,
	)
	return err
}

func (s *PgStore) Get(ctx context.Context, id types.ID) (*Driver, error) {
	var d Driver
	err := infra.Conn(ctx, s.db).QueryRow(ctx, `
		SELECT id, name, vehicle_model, vehicle_type, seats, pet_friendly, baby_friendly, updated_at
		FROM drivers WHERE id = $1`, string(id),
	).Scan(&d.ID, &d.Name, &d.Vehicle.Model, &d.Vehicle.Type, &d.Vehicle.Seats,
		&d.Vehicle.PetFriendly, &d.Vehicle.BabyFriendly, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Vehicles returns the vehicle of every known driver among ids. Unknown
// drivers are absent from the map.
func (s *PgStore) Vehicles(ctx context.Context, ids []types.ID) (map[types.ID]vehicle.Specification, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = string(id)
	}
	rows, err := infra.Conn(ctx, s.db).Query(ctx, `
		SELECT id, vehicle_model, vehicle_type, seats, pet_friendly, baby_friendly
		FROM drivers WHERE id = ANY($1)`, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[types.ID]vehicle.Specification, len(ids))
	for rows.Next() {
		var id types.ID
		var v vehicle.Specification
		if err := rows.Scan(&id, &v.Model, &v.Type, &v.Seats, &v.PetFriendly, &v.BabyFriendly); err != nil {
			return nil, err
		}
		out[id] = v
	}
	return out, rows.Err()
}
