package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fenceline/zonewatch/internal/feed"
	"github.com/fenceline/zonewatch/internal/notify"
	"github.com/fenceline/zonewatch/internal/tracker"
)

var replayCmd = &cobra.Command{
	Use:   "replay [feed.ndjson]",
	Short: "Replay a recorded position feed through all configured zones",
	Long:  "Reads NDJSON position updates and applies them in order to every zone that tracks the entity, logging membership transitions and posting webhook events. Final entity states are persisted.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		zones, err := loadZones(ctx, st, cfg)
		if err != nil {
			return err
		}
		reg, err := buildRegistry(ctx, st, zones, cfg.Tracking.ToleranceDeg)
		if err != nil {
			return err
		}

		records, err := readFeed(args[0])
		if err != nil {
			return err
		}
		zap.L().Info("replaying feed", zap.String("path", args[0]), zap.Int("records", len(records)))

		notifier := notify.New(cfg.Notify)

		// Zones are independent: replay each on its own goroutine. Within a
		// zone, records apply strictly in feed order.
		g, gctx := errgroup.WithContext(ctx)
		for _, zoneID := range reg.Zones() {
			zoneID := zoneID
			g.Go(func() error {
				return replayZone(gctx, reg, notifier, zoneID, records)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if err := persistStates(ctx, st, reg); err != nil {
			return err
		}

		for _, zoneID := range reg.Zones() {
			s, err := reg.Summary(zoneID)
			if err != nil {
				return err
			}
			zap.L().Info("zone summary",
				zap.String("zone", zoneID),
				zap.Int("in_zone", s.CountInZone),
				zap.Strings("entities_in_zone", s.InZone),
			)
		}
		return nil
	},
}

// readFeed loads the whole NDJSON feed, skipping malformed lines with a
// warning. Each update fails independently; one bad line never aborts the
// replay.
func readFeed(path string) ([]feed.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open feed %s", path)
	}
	defer func() { _ = f.Close() }()

	var records []feed.Record
	d := feed.NewDecoder(f)
	for {
		rec, err := d.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if errors.Is(err, feed.ErrMalformedRecord) {
			zap.L().Warn("skipping malformed feed record", zap.Error(err))
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}

// replayZone applies the feed to one zone's tracker, in order, emitting
// transition events.
func replayZone(ctx context.Context, reg *tracker.Registry, notifier *notify.Notifier, zoneID string, records []feed.Record) error {
	log := zap.L().With(zap.String("zone", zoneID))

	for _, rec := range records {
		err := reg.Do(zoneID, func(zt *tracker.ZoneTracker) error {
			if !rec.HasFix() {
				out, err := zt.MarkUnavailable(rec.EntityID)
				if errors.Is(err, tracker.ErrUnknownEntity) {
					return nil // not tracked in this zone
				}
				if err != nil {
					return err
				}
				if out.Changed {
					log.Info("entity unavailable", zap.String("entity", rec.EntityID), zap.Bool("was_in_zone", out.WasInZone))
					return notifier.Send(ctx, notify.Event{
						Type:   notify.EventUnavailable,
						Zone:   zoneID,
						Entity: rec.EntityID,
					})
				}
				return nil
			}

			out, err := zt.UpdatePosition(rec.EntityID, *rec.Lat, *rec.Lon, rec.AccuracyM)
			if errors.Is(err, tracker.ErrUnknownEntity) {
				return nil
			}
			if errors.Is(err, tracker.ErrInvalidCoordinate) {
				log.Warn("invalid coordinates, state retained", zap.String("entity", rec.EntityID), zap.Error(err))
				return nil
			}
			if err != nil {
				return err
			}

			if out.MembershipChanged {
				evType := notify.EventExit
				if out.InZone {
					evType = notify.EventEnter
				}
				log.Info("membership changed",
					zap.String("entity", rec.EntityID),
					zap.String("event", string(evType)),
					zap.Float64("distance_m", out.DistanceM),
				)
				return notifier.Send(ctx, notify.Event{
					Type:      evType,
					Zone:      zoneID,
					Entity:    rec.EntityID,
					Lat:       rec.Lat,
					Lon:       rec.Lon,
					DistanceM: &out.DistanceM,
				})
			}
			return nil
		})
		if err != nil {
			return eris.Wrapf(err, "replay zone %s", zoneID)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(replayCmd)
}
