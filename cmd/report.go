package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/fenceline/zonewatch/internal/tracker"
)

var reportOut string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export an XLSX report of current zone occupancy",
	Long:  "Writes one workbook with a summary sheet (per-zone occupant counts) and one sheet per zone listing each entity's availability, membership and last known position.",
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

		if err := writeReport(reg, reportOut); err != nil {
			return err
		}
		zap.L().Info("report written", zap.String("path", reportOut), zap.Int("zones", len(zones)))
		return nil
	},
}

func writeReport(reg *tracker.Registry, path string) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}
	header := summary.AddRow()
	for _, h := range []string{"Zone", "Entities", "In Zone", "Out of Zone"} {
		header.AddCell().SetString(h)
	}

	for _, zoneID := range reg.Zones() {
		s, err := reg.Summary(zoneID)
		if err != nil {
			return err
		}
		row := summary.AddRow()
		row.AddCell().SetString(zoneID)
		row.AddCell().SetInt(len(s.InZone) + len(s.OutOfZone))
		row.AddCell().SetInt(s.CountInZone)
		row.AddCell().SetInt(len(s.OutOfZone))

		if err := addZoneSheet(f, reg, zoneID); err != nil {
			return err
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}

func addZoneSheet(f *xlsx.File, reg *tracker.Registry, zoneID string) error {
	sheet, err := f.AddSheet(zoneID)
	if err != nil {
		return eris.Wrapf(err, "report: add sheet %s", zoneID)
	}
	header := sheet.AddRow()
	for _, h := range []string{"Entity", "Available", "In Zone", "Lat", "Lon", "Accuracy (m)", "Boundary Distance (m)"} {
		header.AddCell().SetString(h)
	}

	return reg.Do(zoneID, func(zt *tracker.ZoneTracker) error {
		for _, entityID := range zt.EntityIDs() {
			state, err := zt.Entity(entityID)
			if err != nil {
				return err
			}
			row := sheet.AddRow()
			row.AddCell().SetString(entityID)
			row.AddCell().SetBool(state.Available)
			row.AddCell().SetBool(state.InZone)
			addFloatCell(row, pointLat(state))
			addFloatCell(row, pointLon(state))
			addFloatCell(row, state.LastAccuracyM)
			addFloatCell(row, state.BoundaryDistanceM)
		}
		return nil
	})
}

func addFloatCell(row *xlsx.Row, v *float64) {
	cell := row.AddCell()
	if v != nil {
		cell.SetFloat(*v)
	}
}

func pointLat(s tracker.EntityState) *float64 {
	if s.LastPoint == nil {
		return nil
	}
	return &s.LastPoint.Lat
}

func pointLon(s tracker.EntityState) *float64 {
	if s.LastPoint == nil {
		return nil
	}
	return &s.LastPoint.Lon
}

func init() {
	reportCmd.Flags().StringVar(&reportOut, "out", "zonewatch-report.xlsx", "output .xlsx path")
	rootCmd.AddCommand(reportCmd)
}
