// README: Daily log store backed by PostgreSQL. Each mutation is one statement.
package worktime

import (
	"context"
	"errors"
	"time"

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

func (s *PgStore) Get(ctx context.Context, driverID types.ID, day time.Time) (DailyLog, error) {
	row := infra.Conn(ctx, s.db).QueryRow(ctx, `
		SELECT driver_id, day, active_seconds, active, active_since
		FROM driver_daily_logs
		WHERE driver_id = $1 AND day = $2`,
		string(driverID), day,
	)
	l, err := scanLog(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return DailyLog{DriverID: driverID, Day: day}, nil
	}
	return l, err
}

func (s *PgStore) List(ctx context.Context, driverIDs []types.ID, day time.Time) (map[types.ID]DailyLog, error) {
	ids := make([]string, len(driverIDs))
	for i, id := range driverIDs {
		ids[i] = string(id)
	}
	rows, err := infra.Conn(ctx, s.db).Query(ctx, `
		SELECT driver_id, day, active_seconds, active, active_since
		FROM driver_daily_logs
		WHERE driver_id = ANY($1) AND day = $2`,
		ids, day,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[types.ID]DailyLog, len(driverIDs))
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out[l.DriverID] = l
	}
	return out, rows.Err()
}

// Begin creates the row if needed and starts accrual at at. It reports false
// without changing anything when the row is already active.
func (s *PgStore) Begin(ctx context.Context, driverID types.ID, day, at time.Time) (bool, error) {
	var started bool
	err := infra.Conn(ctx, s.db).QueryRow(ctx, `
		INSERT INTO driver_daily_logs AS d (driver_id, day, active_seconds, active, active_since)
		VALUES ($1, $2, 0, TRUE, $3)
		ON CONFLICT (driver_id, day) DO UPDATE
		SET active = TRUE, active_since = $3
		WHERE NOT d.active
		RETURNING TRUE`,
		string(driverID), day, at,
	).Scan(&started)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return started, nil
}

// End credits the running interval and clears the active flag. ok is false
// when the row was not active.
func (s *PgStore) End(ctx context.Context, driverID types.ID, day, at time.Time) (int64, bool, error) {
	var added int64
	err := infra.Conn(ctx, s.db).QueryRow(ctx, `
		UPDATE driver_daily_logs d
		SET active_seconds = d.active_seconds + s.added,
			active = FALSE,
			active_since = NULL
		FROM (
			SELECT driver_id, day,
				GREATEST(0, FLOOR(EXTRACT(EPOCH FROM ($3::timestamptz - active_since))))::bigint AS added
			FROM driver_daily_logs
			WHERE driver_id = $1 AND day = $2 AND active AND active_since IS NOT NULL
			FOR UPDATE
		) s
		WHERE d.driver_id = s.driver_id AND d.day = s.day
		RETURNING s.added`,
		string(driverID), day, at,
	).Scan(&added)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return added, true, nil
}

func (s *PgStore) ListActive(ctx context.Context) ([]DailyLog, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx, `
		SELECT driver_id, day, active_seconds, active, active_since
		FROM driver_daily_logs
		WHERE active
		ORDER BY driver_id, day`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailyLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLog(row pgx.Row) (DailyLog, error) {
	var (
		l        DailyLog
		driverID string
	)
	if err := row.Scan(&driverID, &l.Day, &l.ActiveSeconds, &l.Active, &l.ActiveSince); err != nil {
		return DailyLog{}, err
	}
	l.DriverID = types.ID(driverID)
	l.Day = time.Date(l.Day.Year(), l.Day.Month(), l.Day.Day(), 0, 0, 0, 0, time.UTC)
	return l, nil
}
