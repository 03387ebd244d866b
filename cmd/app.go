package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fenceline/zonewatch/internal/config"
	"github.com/fenceline/zonewatch/internal/store"
	"github.com/fenceline/zonewatch/internal/tracker"
	"github.com/fenceline/zonewatch/internal/zone"
)

// openStore builds the configured persistence backend.
func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.DatabaseURL)
	case "sqlite", "":
		return store.NewSQLite(cfg.Path)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// loadZones returns the zones to track: the store's if it has any, otherwise
// the configured zones file.
func loadZones(ctx context.Context, st store.Store, cfg *config.Config) ([]zone.Zone, error) {
	zones, err := st.ListZones(ctx)
	if err != nil {
		return nil, err
	}
	if len(zones) > 0 {
		return zones, nil
	}

	zones, err = zone.LoadFile(cfg.Tracking.ZonesFile)
	if err != nil {
		return nil, eris.Wrapf(err, "load zones file %s", cfg.Tracking.ZonesFile)
	}
	zap.L().Info("loaded zones from file",
		zap.String("path", cfg.Tracking.ZonesFile),
		zap.Int("zones", len(zones)),
	)
	return zones, nil
}

// buildRegistry creates one tracker per zone and re-seeds each from the
// store's last-known entity snapshots.
func buildRegistry(ctx context.Context, st store.Store, zones []zone.Zone, defaultTolerance float64) (*tracker.Registry, error) {
	reg := tracker.NewRegistry()

	for _, z := range zones {
		tol := z.Tolerance()
		if z.ToleranceDeg == 0 && defaultTolerance > 0 {
			tol = defaultTolerance
		}

		zt, err := tracker.New(z.Vertices, z.Entities, tracker.WithTolerance(tol))
		if err != nil {
			return nil, eris.Wrapf(err, "zone %s", z.ID)
		}

		states, err := st.ListEntityStates(ctx, z.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "zone %s", z.ID)
		}
		for entityID, state := range states {
			if err := zt.Restore(entityID, state); err != nil {
				// Entity was removed from the zone config; its snapshot
				// no longer has a slot.
				zap.L().Debug("skipping stale entity snapshot",
					zap.String("zone", z.ID),
					zap.String("entity", entityID),
				)
			}
		}

		reg.Add(z.ID, zt)
	}

	return reg, nil
}

// persistStates writes every entity's current state back to the store.
func persistStates(ctx context.Context, st store.Store, reg *tracker.Registry) error {
	for _, zoneID := range reg.Zones() {
		err := reg.Do(zoneID, func(zt *tracker.ZoneTracker) error {
			for _, entityID := range zt.EntityIDs() {
				state, err := zt.Entity(entityID)
				if err != nil {
					return err
				}
				if err := st.SaveEntityState(ctx, zoneID, entityID, state); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return eris.Wrapf(err, "persist states for zone %s", zoneID)
		}
	}
	return nil
}
