package zone

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fenceline/zonewatch/internal/geometry"
)

// PolygonFromShapefile reads the first polygon record of a shapefile and
// returns its outer ring as a vertex list. Shapefile points are (X=lon,
// Y=lat); only the first part of the first polygon is used.
func PolygonFromShapefile(path string) (geometry.Polygon, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "zone: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()

		p, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}

		poly, ok := outerRing(p)
		if !ok {
			skipped++
			continue
		}

		if skipped > 0 {
			zap.L().Debug("zone: skipped shapefile records", zap.String("path", path), zap.Int("skipped", skipped))
		}
		return poly, nil
	}

	return nil, eris.Wrapf(ErrNoPolygon, "shapefile %s", path)
}

// outerRing extracts the first part of a shapefile polygon as a vertex list,
// dropping the closing duplicate vertex.
func outerRing(p *shp.Polygon) (geometry.Polygon, bool) {
	if p == nil || len(p.Points) == 0 {
		return nil, false
	}

	end := int32(len(p.Points))
	if p.NumParts > 1 && len(p.Parts) > 1 {
		end = p.Parts[1]
	}

	poly := make(geometry.Polygon, 0, end)
	for i := int32(0); i < end; i++ {
		poly = append(poly, geometry.Point{Lat: p.Points[i].Y, Lon: p.Points[i].X})
	}

	// Shapefile rings repeat the first vertex last.
	if len(poly) > 1 && poly[0] == poly[len(poly)-1] {
		poly = poly[:len(poly)-1]
	}

	return poly, len(poly) >= 3
}
