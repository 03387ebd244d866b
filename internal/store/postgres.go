package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/fenceline/zonewatch/internal/geometry"
	"github.com/fenceline/zonewatch/internal/tracker"
	"github.com/fenceline/zonewatch/internal/zone"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock.PgxPoolIface
// satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS zones (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	vertices      JSONB NOT NULL,
	entities      JSONB NOT NULL,
	tolerance_deg DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS entity_states (
	id         TEXT PRIMARY KEY,
	zone_id    TEXT NOT NULL REFERENCES zones(id),
	entity_id  TEXT NOT NULL,
	lat        DOUBLE PRECISION,
	lon        DOUBLE PRECISION,
	accuracy_m DOUBLE PRECISION,
	in_zone    BOOLEAN NOT NULL DEFAULT false,
	distance_m DOUBLE PRECISION,
	available  BOOLEAN NOT NULL DEFAULT false,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(zone_id, entity_id)
);

CREATE INDEX IF NOT EXISTS idx_entity_states_zone_id ON entity_states(zone_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveZone(ctx context.Context, z zone.Zone) error {
	vertices, err := json.Marshal(z.Vertices)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal vertices")
	}
	entities, err := json.Marshal(z.Entities)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal entities")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO zones (id, name, vertices, entities, tolerance_deg, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			vertices = EXCLUDED.vertices,
			entities = EXCLUDED.entities,
			tolerance_deg = EXCLUDED.tolerance_deg,
			updated_at = now()`,
		z.ID, z.Name, vertices, entities, z.ToleranceDeg,
	)
	return eris.Wrapf(err, "postgres: save zone %s", z.ID)
}

func (s *PostgresStore) GetZone(ctx context.Context, zoneID string) (*zone.Zone, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, vertices, entities, tolerance_deg FROM zones WHERE id = $1`, zoneID)

	z, err := scanZonePgx(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrZoneNotFound, "%q", zoneID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get zone %s", zoneID)
	}
	return z, nil
}

func (s *PostgresStore) ListZones(ctx context.Context) ([]zone.Zone, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, vertices, entities, tolerance_deg FROM zones ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list zones")
	}
	defer rows.Close()

	var zones []zone.Zone
	for rows.Next() {
		z, err := scanZonePgx(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan zone")
		}
		zones = append(zones, *z)
	}
	return zones, eris.Wrap(rows.Err(), "postgres: iterate zones")
}

func (s *PostgresStore) DeleteZone(ctx context.Context, zoneID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM entity_states WHERE zone_id = $1`, zoneID); err != nil {
		return eris.Wrapf(err, "postgres: delete entity states for %s", zoneID)
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM zones WHERE id = $1`, zoneID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete zone %s", zoneID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrZoneNotFound, "%q", zoneID)
	}
	return nil
}

func (s *PostgresStore) SaveEntityState(ctx context.Context, zoneID, entityID string, st tracker.EntityState) error {
	var lat, lon *float64
	if st.LastPoint != nil {
		lat, lon = &st.LastPoint.Lat, &st.LastPoint.Lon
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO entity_states (id, zone_id, entity_id, lat, lon, accuracy_m, in_zone, distance_m, available, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (zone_id, entity_id) DO UPDATE SET
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			accuracy_m = EXCLUDED.accuracy_m,
			in_zone = EXCLUDED.in_zone,
			distance_m = EXCLUDED.distance_m,
			available = EXCLUDED.available,
			updated_at = now()`,
		uuid.New().String(), zoneID, entityID,
		lat, lon, st.LastAccuracyM, st.InZone, st.BoundaryDistanceM, st.Available,
	)
	return eris.Wrapf(err, "postgres: save entity state %s/%s", zoneID, entityID)
}

func (s *PostgresStore) ListEntityStates(ctx context.Context, zoneID string) (map[string]tracker.EntityState, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT entity_id, lat, lon, accuracy_m, in_zone, distance_m, available
		FROM entity_states WHERE zone_id = $1 ORDER BY entity_id`, zoneID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list entity states for %s", zoneID)
	}
	defer rows.Close()

	states := make(map[string]tracker.EntityState)
	for rows.Next() {
		var (
			entityID            string
			lat, lon, acc, dist *float64
			st                  tracker.EntityState
		)
		if err := rows.Scan(&entityID, &lat, &lon, &acc, &st.InZone, &dist, &st.Available); err != nil {
			return nil, eris.Wrap(err, "postgres: scan entity state")
		}
		if lat != nil && lon != nil {
			st.LastPoint = &geometry.Point{Lat: *lat, Lon: *lon}
		}
		st.LastAccuracyM = acc
		st.BoundaryDistanceM = dist
		states[entityID] = st
	}
	return states, eris.Wrap(rows.Err(), "postgres: iterate entity states")
}

// scanZonePgx decodes one zones row; vertices and entities arrive as JSONB
// byte slices under pgx.
func scanZonePgx(scan func(...any) error) (*zone.Zone, error) {
	var (
		z                  zone.Zone
		vertices, entities []byte
	)
	if err := scan(&z.ID, &z.Name, &vertices, &entities, &z.ToleranceDeg); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(vertices, &z.Vertices); err != nil {
		return nil, eris.Wrap(err, "store: decode vertices")
	}
	if err := json.Unmarshal(entities, &z.Entities); err != nil {
		return nil, eris.Wrap(err, "store: decode entities")
	}
	return &z, nil
}
