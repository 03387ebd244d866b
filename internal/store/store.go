// Package store persists zone definitions and last-known entity states so a
// restarted host can rebuild its trackers. Two backends: SQLite for single
// node deployments, Postgres for shared ones.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/fenceline/zonewatch/internal/tracker"
	"github.com/fenceline/zonewatch/internal/zone"
)

// ErrZoneNotFound is returned when a zone id has no stored definition.
var ErrZoneNotFound = eris.New("store: zone not found")

// Store defines the persistence interface for zones and entity snapshots.
type Store interface {
	// Zones
	SaveZone(ctx context.Context, z zone.Zone) error
	GetZone(ctx context.Context, zoneID string) (*zone.Zone, error)
	ListZones(ctx context.Context) ([]zone.Zone, error)
	DeleteZone(ctx context.Context, zoneID string) error

	// Entity snapshots
	SaveEntityState(ctx context.Context, zoneID, entityID string, st tracker.EntityState) error
	ListEntityStates(ctx context.Context, zoneID string) (map[string]tracker.EntityState, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
