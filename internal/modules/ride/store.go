// README: Ride store backed by PostgreSQL.
package ride

import (
	"context"
	"encoding/json"
	"errors"
	"time"

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

// Create writes the ride row and its passengers. The route row must exist.
func (s *PgStore) Create(ctx context.Context, r *Ride) error {
	conn := infra.Conn(ctx, s.db)
	_, err := conn.Exec(ctx, `
		INSERT INTO rides (
			id, status, status_version, driver_id, route_id,
			vehicle_model, vehicle_type, seats, pet_friendly, baby_friendly,
			price_amount, price_currency, scheduled_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14
		)`,
		string(r.ID), string(r.Status), r.StatusVersion, toStringPtr(r.DriverID), string(r.Route.ID),
		r.Vehicle.Model, string(r.Vehicle.Type), r.Vehicle.Seats, r.Vehicle.PetFriendly, r.Vehicle.BabyFriendly,
		r.Price.Amount, r.Price.Currency, r.ScheduledAt, r.CreatedAt,
	)
	if err != nil {
		return err
	}
	for i, p := range r.Passengers {
		if _, err := conn.Exec(ctx, `
			INSERT INTO ride_passengers (ride_id, passenger_id, main, position)
			VALUES ($1, $2, $3, $4)`,
			string(r.ID), string(p.ID), p.Main, i,
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *PgStore) Get(ctx context.Context, id types.ID) (*Ride, error) {
	return s.get(ctx, id, false)
}

// GetForUpdate locks the ride row until the surrounding transaction ends.
func (s *PgStore) GetForUpdate(ctx context.Context, id types.ID) (*Ride, error) {
	return s.get(ctx, id, true)
}

func (s *PgStore) get(ctx context.Context, id types.ID, lock bool) (*Ride, error) {
	query := `
		SELECT r.id, r.status, r.status_version, r.driver_id,
		       r.vehicle_model, r.vehicle_type, r.seats, r.pet_friendly, r.baby_friendly,
		       r.price_amount, r.price_currency, r.scheduled_at, r.created_at,
		       r.started_at, r.ended_at, r.end_reason,
		       rt.id, rt.stops, rt.distance_km, rt.duration_seconds, rt.geometry
		FROM rides r
		JOIN routes rt ON rt.id = r.route_id
		WHERE r.id = $1`
	if lock {
		query += " FOR UPDATE OF r"
	}

	conn := infra.Conn(ctx, s.db)
	var (
		rd          Ride
		rideID      string
		status      string
		driverID    *string
		vehicleType string
		routeID     string
		stops       []byte
	)
	err := conn.QueryRow(ctx, query, string(id)).Scan(
		&rideID, &status, &rd.StatusVersion, &driverID,
		&rd.Vehicle.Model, &vehicleType, &rd.Vehicle.Seats, &rd.Vehicle.PetFriendly, &rd.Vehicle.BabyFriendly,
		&rd.Price.Amount, &rd.Price.Currency, &rd.ScheduledAt, &rd.CreatedAt,
		&rd.StartedAt, &rd.EndedAt, &rd.EndReason,
		&routeID, &stops, &rd.Route.DistanceKm, &rd.Route.DurationSeconds, &rd.Route.Geometry,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rd.ID = types.ID(rideID)
	rd.Status = Status(status)
	rd.Vehicle.Type = vehicle.Type(vehicleType)
	rd.Route.ID = types.ID(routeID)
	if driverID != nil {
		d := types.ID(*driverID)
		rd.DriverID = &d
	}
	if err := json.Unmarshal(stops, &rd.Route.Stops); err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, `
		SELECT passenger_id, main
		FROM ride_passengers
		WHERE ride_id = $1
		ORDER BY position`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p Passenger
		var pid string
		if err := rows.Scan(&pid, &p.Main); err != nil {
			return nil, err
		}
		p.ID = types.ID(pid)
		rd.Passengers = append(rd.Passengers, p)
	}
	return &rd, rows.Err()
}

// UpdateStatus is a compare-and-swap on (status, status_version). It reports
// false when another writer got there first.
func (s *PgStore) UpdateStatus(ctx context.Context, u StatusUpdate) (bool, error) {
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
		UPDATE rides
		SET status = $1,
		    status_version = status_version + 1,
		    driver_id = COALESCE($2, driver_id),
		    started_at = CASE WHEN $1 = 'ONGOING' THEN $3 ELSE started_at END,
		    ended_at = CASE WHEN $1 <> 'ONGOING' THEN $3 ELSE ended_at END,
		    end_reason = CASE WHEN $1 <> 'ONGOING' THEN $4 ELSE end_reason END
		WHERE id = $5 AND status = $6 AND status_version = $7`,
		string(u.To),
		toStringPtr(u.DriverID),
		u.At,
		u.Reason,
		string(u.RideID),
		string(u.From),
		u.Version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) AppendEvent(ctx context.Context, e *Event) error {
	return infra.Conn(ctx, s.db).QueryRow(ctx, `
		INSERT INTO ride_state_events (
			ride_id, from_status, to_status, actor_type, actor_id, message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		string(e.RideID),
		string(e.From),
		string(e.To),
		e.ActorType,
		toStringPtr(e.ActorID),
		e.Message,
		e.CreatedAt,
	).Scan(&e.ID)
}

func (s *PgStore) ListEvents(ctx context.Context, rideID types.ID) ([]Event, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx, `
		SELECT id, ride_id, from_status, to_status, actor_type, actor_id, message, created_at
		FROM ride_state_events
		WHERE ride_id = $1
		ORDER BY id`, string(rideID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e             Event
			rid, from, to string
			actorID       *string
		)
		if err := rows.Scan(&e.ID, &rid, &from, &to, &e.ActorType, &actorID, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.RideID = types.ID(rid)
		e.From = Status(from)
		e.To = Status(to)
		if actorID != nil {
			a := types.ID(*actorID)
			e.ActorID = &a
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListDueScheduled returns scheduled rides whose departure time has come,
// oldest first.
func (s *PgStore) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]types.ID, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx, `
		SELECT id FROM rides
		WHERE status = 'SCHEDULED'
		  AND scheduled_at IS NOT NULL
		  AND scheduled_at <= $1
		ORDER BY scheduled_at, id
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []types.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, types.ID(id))
	}
	return ids, rows.Err()
}

func (s *PgStore) HasOngoingForDriver(ctx context.Context, driverID types.ID) (bool, error) {
	var exists bool
	err := infra.Conn(ctx, s.db).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM rides
			WHERE driver_id = $1 AND status = 'ONGOING'
		)`, string(driverID),
	).Scan(&exists)
	return exists, err
}

func (s *PgStore) HasActiveByPassenger(ctx context.Context, passengerID types.ID) (bool, error) {
	var exists bool
	err := infra.Conn(ctx, s.db).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM rides r
			JOIN ride_passengers p ON p.ride_id = r.id
			WHERE p.passenger_id = $1
			  AND r.status IN ('SCHEDULED', 'ONGOING')
		)`, string(passengerID),
	).Scan(&exists)
	return exists, err
}

func (s *PgStore) LockPassenger(ctx context.Context, passengerID types.ID) error {
	_, err := infra.Conn(ctx, s.db).Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext('ride_request:' || $1))`, string(passengerID))
	return err
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
