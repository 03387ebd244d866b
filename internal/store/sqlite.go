package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/fenceline/zonewatch/internal/geometry"
	"github.com/fenceline/zonewatch/internal/tracker"
	"github.com/fenceline/zonewatch/internal/zone"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS zones (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	vertices      TEXT NOT NULL,
	entities      TEXT NOT NULL,
	tolerance_deg REAL NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS entity_states (
	id         TEXT PRIMARY KEY,
	zone_id    TEXT NOT NULL REFERENCES zones(id),
	entity_id  TEXT NOT NULL,
	lat        REAL,
	lon        REAL,
	accuracy_m REAL,
	in_zone    INTEGER NOT NULL DEFAULT 0,
	distance_m REAL,
	available  INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE(zone_id, entity_id)
);

CREATE INDEX IF NOT EXISTS idx_entity_states_zone_id ON entity_states(zone_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveZone(ctx context.Context, z zone.Zone) error {
	vertices, err := json.Marshal(z.Vertices)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal vertices")
	}
	entities, err := json.Marshal(z.Entities)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal entities")
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO zones (id, name, vertices, entities, tolerance_deg, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			vertices = excluded.vertices,
			entities = excluded.entities,
			tolerance_deg = excluded.tolerance_deg,
			updated_at = excluded.updated_at`,
		z.ID, z.Name, string(vertices), string(entities), z.ToleranceDeg, now, now,
	)
	return eris.Wrapf(err, "sqlite: save zone %s", z.ID)
}

func (s *SQLiteStore) GetZone(ctx context.Context, zoneID string) (*zone.Zone, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, vertices, entities, tolerance_deg FROM zones WHERE id = ?`, zoneID)

	z, err := scanZone(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrZoneNotFound, "%q", zoneID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get zone %s", zoneID)
	}
	return z, nil
}

func (s *SQLiteStore) ListZones(ctx context.Context) ([]zone.Zone, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, vertices, entities, tolerance_deg FROM zones ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list zones")
	}
	defer rows.Close()

	var zones []zone.Zone
	for rows.Next() {
		z, err := scanZone(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan zone")
		}
		zones = append(zones, *z)
	}
	return zones, eris.Wrap(rows.Err(), "sqlite: iterate zones")
}

func (s *SQLiteStore) DeleteZone(ctx context.Context, zoneID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entity_states WHERE zone_id = ?`, zoneID); err != nil {
		return eris.Wrapf(err, "sqlite: delete entity states for %s", zoneID)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM zones WHERE id = ?`, zoneID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete zone %s", zoneID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrZoneNotFound, "%q", zoneID)
	}
	return nil
}

func (s *SQLiteStore) SaveEntityState(ctx context.Context, zoneID, entityID string, st tracker.EntityState) error {
	var lat, lon any
	if st.LastPoint != nil {
		lat, lon = st.LastPoint.Lat, st.LastPoint.Lon
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entity_states (id, zone_id, entity_id, lat, lon, accuracy_m, in_zone, distance_m, available, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(zone_id, entity_id) DO UPDATE SET
			lat = excluded.lat,
			lon = excluded.lon,
			accuracy_m = excluded.accuracy_m,
			in_zone = excluded.in_zone,
			distance_m = excluded.distance_m,
			available = excluded.available,
			updated_at = excluded.updated_at`,
		uuid.New().String(), zoneID, entityID,
		lat, lon, ptrValue(st.LastAccuracyM), st.InZone, ptrValue(st.BoundaryDistanceM), st.Available,
		time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save entity state %s/%s", zoneID, entityID)
}

func (s *SQLiteStore) ListEntityStates(ctx context.Context, zoneID string) (map[string]tracker.EntityState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, lat, lon, accuracy_m, in_zone, distance_m, available
		FROM entity_states WHERE zone_id = ? ORDER BY entity_id`, zoneID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list entity states for %s", zoneID)
	}
	defer rows.Close()

	states := make(map[string]tracker.EntityState)
	for rows.Next() {
		var (
			entityID            string
			lat, lon, acc, dist sql.NullFloat64
			st                  tracker.EntityState
		)
		if err := rows.Scan(&entityID, &lat, &lon, &acc, &st.InZone, &dist, &st.Available); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entity state")
		}
		if lat.Valid && lon.Valid {
			st.LastPoint = &geometry.Point{Lat: lat.Float64, Lon: lon.Float64}
		}
		if acc.Valid {
			st.LastAccuracyM = &acc.Float64
		}
		if dist.Valid {
			st.BoundaryDistanceM = &dist.Float64
		}
		states[entityID] = st
	}
	return states, eris.Wrap(rows.Err(), "sqlite: iterate entity states")
}

// scanZone decodes one zones row via the given scan function.
func scanZone(scan func(...any) error) (*zone.Zone, error) {
	var (
		z                  zone.Zone
		vertices, entities string
	)
	if err := scan(&z.ID, &z.Name, &vertices, &entities, &z.ToleranceDeg); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(vertices), &z.Vertices); err != nil {
		return nil, eris.Wrap(err, "store: decode vertices")
	}
	if err := json.Unmarshal([]byte(entities), &z.Entities); err != nil {
		return nil, eris.Wrap(err, "store: decode entities")
	}
	return &z, nil
}

func ptrValue(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
