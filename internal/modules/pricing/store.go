// README: Pricing store backed by PostgreSQL.
package pricing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridehail/internal/infra"
	"ridehail/internal/modules/vehicle"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) GetRate(ctx context.Context, vehicleType vehicle.Type) (Rate, error) {
	var r Rate
	var vt string
	err := infra.Conn(ctx, s.db).QueryRow(ctx, `
		SELECT vehicle_type, base_fare, per_km, per_minute, currency
		FROM pricing_rates
		WHERE vehicle_type = $1`, string(vehicleType),
	).Scan(&vt, &r.BaseFare, &r.PerKm, &r.PerMinute, &r.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rate{}, ErrRateNotFound
	}
	if err != nil {
		return Rate{}, err
	}
	r.VehicleType = vehicle.Type(vt)
	return r, nil
}
