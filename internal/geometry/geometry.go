// Package geometry implements point-location and boundary-distance math for
// simple geographic polygons. All functions are pure: no state, no I/O.
package geometry

import "math"

// DefaultTolerance is the angular epsilon, in degrees, used for boundary
// detection. Roughly one meter at the equator. It is a fixed angular
// tolerance, not a metric one; it does not scale with latitude.
const DefaultTolerance = 1e-5

// metersPerDegreeLat is the local planar approximation constant. One degree
// of longitude spans metersPerDegreeLat*cos(lat) meters at latitude lat.
const metersPerDegreeLat = 111320.0

// Point is a geographic coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Polygon is an ordered ring of vertices. Vertex i connects to vertex i+1,
// and the last vertex closes back to the first. Callers guarantee at least
// three vertices; the kernel assumes it.
type Polygon []Point

// Classification is the result of locating a point relative to a polygon.
type Classification int

const (
	// Outside means the point is strictly outside the polygon.
	Outside Classification = iota
	// Inside means the point is strictly inside the polygon.
	Inside
	// OnBoundary means the point lies on, or within tolerance of, an edge
	// or vertex. Membership-equivalent to Inside.
	OnBoundary
)

func (c Classification) String() string {
	switch c {
	case Inside:
		return "inside"
	case OnBoundary:
		return "on_boundary"
	default:
		return "outside"
	}
}

// Classify locates p relative to poly. The boundary pass runs first and wins
// ties with the parity pass: a point on the line counts as OnBoundary even
// when the ray cast would call it outside. This keeps devices parked exactly
// on a zone edge from flickering between in and out.
func Classify(poly Polygon, p Point, tolerance float64) Classification {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	n := len(poly)

	// Pass 1: vertex and edge proximity.
	for i := 0; i < n; i++ {
		p1 := poly[i]
		p2 := poly[(i+1)%n]

		// Vertex coincidence subsumes exact-vertex hits.
		if math.Abs(p1.Lat-p.Lat) < tolerance && math.Abs(p1.Lon-p.Lon) < tolerance {
			return OnBoundary
		}

		// Bounding-box pre-check on both axes.
		if p.Lat < math.Min(p1.Lat, p2.Lat)-tolerance || p.Lat > math.Max(p1.Lat, p2.Lat)+tolerance {
			continue
		}
		if p.Lon < math.Min(p1.Lon, p2.Lon)-tolerance || p.Lon > math.Max(p1.Lon, p2.Lon)+tolerance {
			continue
		}

		// Collinearity: 2D cross product of (p - p1) and (p2 - p1).
		cross := (p.Lon-p1.Lon)*(p2.Lat-p1.Lat) - (p2.Lon-p1.Lon)*(p.Lat-p1.Lat)
		if math.Abs(cross) < tolerance {
			return OnBoundary
		}
	}

	// Pass 2: even-odd ray cast. Longitude is the x-axis, latitude the
	// y-axis. Half-open interval rule on latitude so shared vertices are
	// counted once.
	inside := false
	p1 := poly[n-1]
	for i := 0; i < n; i++ {
		p2 := poly[i]

		if p.Lat > math.Min(p1.Lat, p2.Lat) && p.Lat <= math.Max(p1.Lat, p2.Lat) {
			if p.Lon <= math.Max(p1.Lon, p2.Lon) && p1.Lat != p2.Lat {
				xint := (p.Lat-p1.Lat)*(p2.Lon-p1.Lon)/(p2.Lat-p1.Lat) + p1.Lon
				// Vertical edges always toggle.
				if p1.Lon == p2.Lon || p.Lon <= xint {
					inside = !inside
				}
			}
		}
		p1 = p2
	}

	if inside {
		return Inside
	}
	return Outside
}

// BoundaryDistanceMeters returns the shortest distance in meters from p to
// the polygon boundary, using a local planar approximation centered at p:
// one degree of latitude is 111320 m, one degree of longitude is
// 111320*cos(lat) m evaluated at the query point's latitude. Valid for the
// short ranges geofencing cares about; not a geodesic.
func BoundaryDistanceMeters(poly Polygon, p Point) float64 {
	lonScale := metersPerDegreeLat * math.Cos(p.Lat*math.Pi/180)

	n := len(poly)
	best := math.Inf(1)
	for i := 0; i < n; i++ {
		p1 := poly[i]
		p2 := poly[(i+1)%n]

		// Project into meters with the query point at the origin.
		d := segmentDistance(
			(p1.Lon-p.Lon)*lonScale, (p1.Lat-p.Lat)*metersPerDegreeLat,
			(p2.Lon-p.Lon)*lonScale, (p2.Lat-p.Lat)*metersPerDegreeLat,
		)
		if d < best {
			best = d
		}
	}
	return best
}

// segmentDistance returns the distance from the origin to the segment
// (x1,y1)-(x2,y2).
func segmentDistance(x1, y1, x2, y2 float64) float64 {
	ex, ey := x2-x1, y2-y1

	lenSq := ex*ex + ey*ey
	if lenSq == 0 {
		// Zero-length edge: distance to the single point.
		return math.Hypot(x1, y1)
	}

	// Projection parameter clamped to [0,1] so points beyond an endpoint
	// get distance to the nearest endpoint.
	t := -(x1*ex + y1*ey) / lenSq
	t = math.Max(0, math.Min(1, t))

	return math.Hypot(x1+t*ex, y1+t*ey)
}
