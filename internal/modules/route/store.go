// README: Route store backed by PostgreSQL.
package route

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridehail/internal/infra"
	"ridehail/internal/types"
)

type PgStore struct {
	db *pgxpool.Pool
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) Create(ctx context.Context, r *Route) error {
	stops, err := json.Marshal(r.Stops)
	if err != nil {
		return err
	}
	_, err = infra.Conn(ctx, s.db).Exec(ctx, `
		INSERT INTO routes (id, stops, distance_km, duration_seconds, geometry)
		VALUES ($1, $2, $3, $4, $5)`,
		string(r.ID), stops, r.DistanceKm, r.DurationSeconds, r.Geometry,
	)
	return err
}

func (s *PgStore) Get(ctx context.Context, id types.ID) (*Route, error) {
	row := infra.Conn(ctx, s.db).QueryRow(ctx, `
		SELECT id, stops, distance_km, duration_seconds, geometry
		FROM routes WHERE id = $1`, string(id))
	r, err := scanRoute(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (s *PgStore) AddFavorite(ctx context.Context, f Favorite) error {
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
		INSERT INTO favorite_routes (passenger_id, route_id, name, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (passenger_id, route_id) DO NOTHING`,
		string(f.PassengerID), string(f.RouteID), f.Name, f.CreatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrFavoriteExists
	}
	return nil
}

func (s *PgStore) RemoveFavorite(ctx context.Context, passengerID, routeID types.ID) error {
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
		DELETE FROM favorite_routes WHERE passenger_id = $1 AND route_id = $2`,
		string(passengerID), string(routeID),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) ListFavorites(ctx context.Context, passengerID types.ID) ([]FavoriteRoute, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx, `
		SELECT f.passenger_id, f.route_id, f.name, f.created_at,
		       r.id, r.stops, r.distance_km, r.duration_seconds, r.geometry
		FROM favorite_routes f
		JOIN routes r ON r.id = f.route_id
		WHERE f.passenger_id = $1
		ORDER BY f.created_at`, string(passengerID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FavoriteRoute
	for rows.Next() {
		var fr FavoriteRoute
		var stops []byte
		if err := rows.Scan(
			&fr.PassengerID, &fr.RouteID, &fr.Name, &fr.CreatedAt,
			&fr.Route.ID, &stops, &fr.Route.DistanceKm, &fr.Route.DurationSeconds, &fr.Route.Geometry,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(stops, &fr.Route.Stops); err != nil {
			return nil, err
		}
		out = append(out, fr)
	}
	return out, rows.Err()
}

func scanRoute(row pgx.Row) (*Route, error) {
	var r Route
	var stops []byte
	if err := row.Scan(&r.ID, &stops, &r.DistanceKm, &r.DurationSeconds, &r.Geometry); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(stops, &r.Stops); err != nil {
		return nil, err
	}
	return &r, nil
}
