package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/fenceline/zonewatch/internal/geometry"
	"github.com/fenceline/zonewatch/internal/zone"
)

var (
	checkGeoJSON   string
	checkShapefile string
	checkZone      string
	checkLat       float64
	checkLon       float64
	checkTolerance float64
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Classify a single point against a polygon",
	Long:  "One-shot point location: reads a polygon from GeoJSON, a shapefile or a configured zone and prints the classification and boundary distance for --lat/--lon.",
	RunE: func(cmd *cobra.Command, args []string) error {
		poly, err := loadCheckPolygon()
		if err != nil {
			return err
		}

		tol := checkTolerance
		if tol == 0 {
			tol = cfg.Tracking.ToleranceDeg
		}

		p := geometry.Point{Lat: checkLat, Lon: checkLon}
		class := geometry.Classify(poly, p, tol)
		dist := geometry.BoundaryDistanceMeters(poly, p)

		pr := message.NewPrinter(language.English)
		pr.Fprintf(cmd.OutOrStdout(), "classification: %s\n", class)
		pr.Fprintf(cmd.OutOrStdout(), "boundary distance: %.0f m\n", dist)
		return nil
	},
}

// loadCheckPolygon reads the polygon from whichever source flag is set.
func loadCheckPolygon() (geometry.Polygon, error) {
	switch {
	case checkGeoJSON != "":
		data, err := os.ReadFile(checkGeoJSON)
		if err != nil {
			return nil, eris.Wrapf(err, "read %s", checkGeoJSON)
		}
		return zone.PolygonFromGeoJSON(data)
	case checkShapefile != "":
		return zone.PolygonFromShapefile(checkShapefile)
	case checkZone != "":
		zones, err := zone.LoadFile(cfg.Tracking.ZonesFile)
		if err != nil {
			return nil, err
		}
		for _, z := range zones {
			if z.ID == checkZone {
				return z.Vertices, nil
			}
		}
		return nil, eris.Errorf("check: zone %q not in %s", checkZone, cfg.Tracking.ZonesFile)
	default:
		return nil, eris.New("check: one of --geojson, --shapefile or --zone is required")
	}
}

func init() {
	checkCmd.Flags().StringVar(&checkGeoJSON, "geojson", "", "GeoJSON file with the polygon")
	checkCmd.Flags().StringVar(&checkShapefile, "shapefile", "", "shapefile with the polygon")
	checkCmd.Flags().StringVar(&checkZone, "zone", "", "zone id from the configured zones file")
	checkCmd.Flags().Float64Var(&checkLat, "lat", 0, "query point latitude")
	checkCmd.Flags().Float64Var(&checkLon, "lon", 0, "query point longitude")
	checkCmd.Flags().Float64Var(&checkTolerance, "tolerance", 0, "boundary tolerance in degrees (default from config)")
	_ = checkCmd.MarkFlagRequired("lat")
	_ = checkCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(checkCmd)
}
