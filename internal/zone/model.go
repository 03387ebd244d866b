// Package zone defines geofence zone configuration and the loaders that
// translate external polygon formats (YAML, GeoJSON, shapefiles) into the
// vertex lists the tracker consumes.
package zone

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/fenceline/zonewatch/internal/geometry"
)

var (
	// ErrDegeneratePolygon flags a zone with fewer than three vertices.
	ErrDegeneratePolygon = eris.New("zone: polygon needs at least 3 vertices")
	// ErrNoEntities flags a zone with nothing to track.
	ErrNoEntities = eris.New("zone: no entities configured")
	// ErrInvalidVertex flags a non-finite or malformed vertex.
	ErrInvalidVertex = eris.New("zone: invalid vertex")
)

// Zone is one configured geofence: a polygon plus the entities tracked
// against it.
type Zone struct {
	ID           string           `json:"id" yaml:"id"`
	Name         string           `json:"name" yaml:"name"`
	Vertices     geometry.Polygon `json:"vertices" yaml:"-"`
	Entities     []string         `json:"entities" yaml:"entities"`
	ToleranceDeg float64          `json:"tolerance_deg,omitempty" yaml:"tolerance_deg"`
}

// Validate checks the zone is usable: at least three finite vertices and at
// least one entity. Polygon shape beyond that (winding, self-intersection,
// duplicate vertices) is accepted as-is.
func (z *Zone) Validate() error {
	if len(z.Vertices) < 3 {
		return eris.Wrapf(ErrDegeneratePolygon, "zone %q has %d vertices", z.ID, len(z.Vertices))
	}
	for i, v := range z.Vertices {
		if math.IsNaN(v.Lat) || math.IsInf(v.Lat, 0) || math.IsNaN(v.Lon) || math.IsInf(v.Lon, 0) {
			return eris.Wrapf(ErrInvalidVertex, "zone %q vertex %d: lat=%v lon=%v", z.ID, i, v.Lat, v.Lon)
		}
	}
	if len(z.Entities) == 0 {
		return eris.Wrapf(ErrNoEntities, "zone %q", z.ID)
	}
	return nil
}

// Tolerance returns the configured tolerance, or the kernel default.
func (z *Zone) Tolerance() float64 {
	if z.ToleranceDeg > 0 {
		return z.ToleranceDeg
	}
	return geometry.DefaultTolerance
}
