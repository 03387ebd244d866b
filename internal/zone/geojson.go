package zone

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/fenceline/zonewatch/internal/geometry"
)

// ErrNoPolygon is returned when a GeoJSON document carries no usable polygon
// geometry.
var ErrNoPolygon = eris.New("zone: no polygon geometry found")

// PolygonFromGeoJSON extracts a vertex ring from a GeoJSON document. Accepts
// a bare Polygon or MultiPolygon geometry, a Feature, or a FeatureCollection
// (first polygon feature wins). Only the outer ring is used; holes and
// additional polygons are ignored. The GeoJSON closing vertex is dropped
// since the ring closes implicitly.
func PolygonFromGeoJSON(data []byte) (geometry.Polygon, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, eris.Wrap(err, "zone: decode geojson")
	}

	switch probe.Type {
	case "Feature":
		var f geojson.Feature
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, eris.Wrap(err, "zone: decode geojson feature")
		}
		return polygonFromGeom(f.Geometry)

	case "FeatureCollection":
		var fc geojson.FeatureCollection
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, eris.Wrap(err, "zone: decode geojson feature collection")
		}
		for _, f := range fc.Features {
			poly, err := polygonFromGeom(f.Geometry)
			if err == nil {
				return poly, nil
			}
		}
		return nil, ErrNoPolygon

	default:
		var g geom.T
		if err := geojson.Unmarshal(data, &g); err != nil {
			return nil, eris.Wrap(err, "zone: decode geojson geometry")
		}
		return polygonFromGeom(g)
	}
}

func polygonFromGeom(g geom.T) (geometry.Polygon, error) {
	var ring []geom.Coord

	switch t := g.(type) {
	case *geom.Polygon:
		if t.NumLinearRings() == 0 {
			return nil, ErrNoPolygon
		}
		ring = t.LinearRing(0).Coords()
	case *geom.MultiPolygon:
		if t.NumPolygons() == 0 || t.Polygon(0).NumLinearRings() == 0 {
			return nil, ErrNoPolygon
		}
		ring = t.Polygon(0).LinearRing(0).Coords()
	default:
		return nil, ErrNoPolygon
	}

	poly := make(geometry.Polygon, 0, len(ring))
	for _, c := range ring {
		// GeoJSON coordinate order is [lon, lat].
		poly = append(poly, geometry.Point{Lat: c.Y(), Lon: c.X()})
	}

	// Drop the GeoJSON closing vertex.
	if len(poly) > 1 && poly[0] == poly[len(poly)-1] {
		poly = poly[:len(poly)-1]
	}

	if len(poly) < 3 {
		return nil, eris.Wrapf(ErrDegeneratePolygon, "got %d vertices", len(poly))
	}
	return poly, nil
}
