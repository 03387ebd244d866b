package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fenceline/zonewatch/internal/geometry"
	"github.com/fenceline/zonewatch/internal/zone"
)

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Manage stored zone definitions",
}

var zonesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored zones",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		zones, err := st.ListZones(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		defer w.Flush()
		fmt.Fprintln(w, "ID\tNAME\tVERTICES\tENTITIES")
		for _, z := range zones {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", z.ID, z.Name, len(z.Vertices), len(z.Entities))
		}
		return nil
	},
}

var (
	addZoneID        string
	addZoneName      string
	addZoneEntities  []string
	addZoneGeoJSON   string
	addZoneShapefile string
	addZoneTolerance float64
)

var zonesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or replace one zone from a polygon file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var (
			poly geometry.Polygon
			err  error
		)
		switch {
		case addZoneGeoJSON != "":
			data, readErr := os.ReadFile(addZoneGeoJSON)
			if readErr != nil {
				return eris.Wrapf(readErr, "read %s", addZoneGeoJSON)
			}
			poly, err = zone.PolygonFromGeoJSON(data)
		case addZoneShapefile != "":
			poly, err = zone.PolygonFromShapefile(addZoneShapefile)
		default:
			return eris.New("zones add: one of --geojson or --shapefile is required")
		}
		if err != nil {
			return err
		}

		z := zone.Zone{
			ID:           addZoneID,
			Name:         addZoneName,
			Vertices:     poly,
			Entities:     addZoneEntities,
			ToleranceDeg: addZoneTolerance,
		}
		if err := z.Validate(); err != nil {
			return err
		}

		st, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		if err := st.SaveZone(ctx, z); err != nil {
			return err
		}
		zap.L().Info("zone saved", zap.String("zone", z.ID), zap.Int("vertices", len(z.Vertices)))
		return nil
	},
}

var zonesDeleteCmd = &cobra.Command{
	Use:   "delete [zone-id]",
	Short: "Delete a stored zone and its entity snapshots",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		if err := st.DeleteZone(ctx, args[0]); err != nil {
			return err
		}
		zap.L().Info("zone deleted", zap.String("zone", args[0]))
		return nil
	},
}

var zonesImportCmd = &cobra.Command{
	Use:   "import [zones.yaml]",
	Short: "Import all zones from a YAML definitions file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		zones, err := zone.LoadFile(args[0])
		if err != nil {
			return err
		}

		st, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		for _, z := range zones {
			if err := st.SaveZone(ctx, z); err != nil {
				return err
			}
		}
		zap.L().Info("zones imported", zap.String("path", args[0]), zap.Int("zones", len(zones)))
		return nil
	},
}

func init() {
	zonesAddCmd.Flags().StringVar(&addZoneID, "id", "", "zone id")
	zonesAddCmd.Flags().StringVar(&addZoneName, "name", "", "zone display name")
	zonesAddCmd.Flags().StringSliceVar(&addZoneEntities, "entities", nil, "entity ids tracked in this zone")
	zonesAddCmd.Flags().StringVar(&addZoneGeoJSON, "geojson", "", "GeoJSON file with the polygon")
	zonesAddCmd.Flags().StringVar(&addZoneShapefile, "shapefile", "", "shapefile with the polygon")
	zonesAddCmd.Flags().Float64Var(&addZoneTolerance, "tolerance", 0, "boundary tolerance in degrees")
	_ = zonesAddCmd.MarkFlagRequired("id")
	_ = zonesAddCmd.MarkFlagRequired("entities")

	zonesCmd.AddCommand(zonesListCmd, zonesAddCmd, zonesDeleteCmd, zonesImportCmd)
	rootCmd.AddCommand(zonesCmd)
}
