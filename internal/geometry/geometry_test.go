package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// square is the reference zone used throughout: a 10x10 degree ring with its
// south-west corner at the origin.
var square = Polygon{
	{Lat: 0, Lon: 0},
	{Lat: 0, Lon: 10},
	{Lat: 10, Lon: 10},
	{Lat: 10, Lon: 0},
}

func TestClassifySquare(t *testing.T) {
	tests := []struct {
		name     string
		point    Point
		expected Classification
	}{
		{name: "center", point: Point{Lat: 5, Lon: 5}, expected: Inside},
		{name: "west edge midpoint", point: Point{Lat: 5, Lon: 0}, expected: OnBoundary},
		{name: "south edge midpoint", point: Point{Lat: 0, Lon: 5}, expected: OnBoundary},
		{name: "origin vertex", point: Point{Lat: 0, Lon: 0}, expected: OnBoundary},
		{name: "far corner vertex", point: Point{Lat: 10, Lon: 10}, expected: OnBoundary},
		{name: "outside bbox", point: Point{Lat: 20, Lon: 20}, expected: Outside},
		{name: "outside south-west", point: Point{Lat: -1, Lon: -1}, expected: Outside},
		{name: "just inside edge", point: Point{Lat: 5, Lon: 0.001}, expected: Inside},
		{name: "just outside edge", point: Point{Lat: 5, Lon: -0.001}, expected: Outside},
		{name: "within tolerance of edge", point: Point{Lat: 5, Lon: 0.0000001}, expected: OnBoundary},
		{name: "near vertex within tolerance", point: Point{Lat: 0.000001, Lon: 0.000001}, expected: OnBoundary},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(square, tt.point, DefaultTolerance)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestClassifyEveryVertexOnBoundary(t *testing.T) {
	polys := []Polygon{
		square,
		{{Lat: 48.1, Lon: 11.5}, {Lat: 48.2, Lon: 11.6}, {Lat: 48.15, Lon: 11.7}},
		{{Lat: -33.9, Lon: 151.2}, {Lat: -33.8, Lon: 151.3}, {Lat: -33.7, Lon: 151.2}, {Lat: -33.8, Lon: 151.1}},
	}

	for _, poly := range polys {
		for i, v := range poly {
			got := Classify(poly, v, DefaultTolerance)
			assert.Equal(t, OnBoundary, got, "vertex %d of %v", i, poly)
		}
	}
}

func TestClassifyConvexCentroidInside(t *testing.T) {
	polys := []Polygon{
		square,
		{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 4}, {Lat: 3, Lon: 2}},
		{{Lat: 10, Lon: 10}, {Lat: 10, Lon: 20}, {Lat: 20, Lon: 25}, {Lat: 25, Lon: 15}, {Lat: 20, Lon: 5}},
	}

	for _, poly := range polys {
		var c Point
		for _, v := range poly {
			c.Lat += v.Lat
			c.Lon += v.Lon
		}
		c.Lat /= float64(len(poly))
		c.Lon /= float64(len(poly))

		got := Classify(poly, c, DefaultTolerance)
		assert.Equal(t, Inside, got, "centroid %v of %v", c, poly)
	}
}

func TestClassifyConcave(t *testing.T) {
	// A "C" shape: the notch cut from the east side.
	notched := Polygon{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 10},
		{Lat: 4, Lon: 10},
		{Lat: 4, Lon: 4},
		{Lat: 6, Lon: 4},
		{Lat: 6, Lon: 10},
		{Lat: 10, Lon: 10},
		{Lat: 10, Lon: 0},
	}

	assert.Equal(t, Outside, Classify(notched, Point{Lat: 5, Lon: 7}, DefaultTolerance), "inside the notch")
	assert.Equal(t, Inside, Classify(notched, Point{Lat: 5, Lon: 2}, DefaultTolerance), "west of the notch")
	assert.Equal(t, Inside, Classify(notched, Point{Lat: 2, Lon: 7}, DefaultTolerance), "south of the notch")
}

func TestClassifyIdempotent(t *testing.T) {
	p := Point{Lat: 3.14159, Lon: 2.71828}
	first := Classify(square, p, DefaultTolerance)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(square, p, DefaultTolerance))
	}
}

func TestClassifyZeroToleranceFallsBackToDefault(t *testing.T) {
	// On-edge point still detected when callers pass 0.
	assert.Equal(t, OnBoundary, Classify(square, Point{Lat: 0, Lon: 5}, 0))
}

func TestBoundaryDistanceZeroOnBoundary(t *testing.T) {
	points := []Point{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 5},
		{Lat: 5, Lon: 10},
		{Lat: 10, Lon: 10},
	}
	for _, p := range points {
		require.Equal(t, OnBoundary, Classify(square, p, DefaultTolerance))
		assert.InDelta(t, 0, BoundaryDistanceMeters(square, p), 1e-6)
	}
}

func TestBoundaryDistancePositiveOffBoundary(t *testing.T) {
	assert.Positive(t, BoundaryDistanceMeters(square, Point{Lat: 5, Lon: 5}))
	assert.Positive(t, BoundaryDistanceMeters(square, Point{Lat: 20, Lon: 20}))
}

func TestBoundaryDistanceDiagonal(t *testing.T) {
	// (-1,-1) is nearest to the origin vertex: one degree of latitude plus
	// one degree of longitude scaled by cos(lat) at the query point.
	p := Point{Lat: -1, Lon: -1}
	lonScale := 111320.0 * math.Cos(p.Lat*math.Pi/180)
	expected := math.Hypot(111320.0, lonScale)

	got := BoundaryDistanceMeters(square, p)
	assert.InDelta(t, expected, got, 1e-6)
	// Ballpark sanity check.
	assert.InDelta(t, 157000, got, 1000)
}

func TestBoundaryDistanceInsidePoint(t *testing.T) {
	// Center of the square: 5 degrees of latitude to the nearest horizontal
	// edge, 5 degrees of longitude (scaled) to the nearest vertical edge.
	p := Point{Lat: 5, Lon: 5}
	lonScale := 111320.0 * math.Cos(p.Lat*math.Pi/180)
	expected := math.Min(5*111320.0, 5*lonScale)

	assert.InDelta(t, expected, BoundaryDistanceMeters(square, p), 1e-6)
}

func TestBoundaryDistanceBeyondEndpointClamps(t *testing.T) {
	// Due south of the south-west vertex: the projection onto the west edge
	// falls outside [0,1], so the distance is to the vertex itself.
	p := Point{Lat: -2, Lon: 0}
	assert.InDelta(t, 2*111320.0, BoundaryDistanceMeters(square, p), 1e-6)
}

func TestBoundaryDistanceDegenerateEdge(t *testing.T) {
	// Duplicate vertex introduces a zero-length edge; distance falls back to
	// the single point and the minimum is unaffected.
	dup := Polygon{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 10},
		{Lat: 10, Lon: 10},
		{Lat: 10, Lon: 0},
	}
	p := Point{Lat: -1, Lon: 0}
	assert.InDelta(t, 111320.0, BoundaryDistanceMeters(dup, p), 1e-6)
}

func TestClassificationString(t *testing.T) {
	assert.Equal(t, "inside", Inside.String())
	assert.Equal(t, "on_boundary", OnBoundary.String())
	assert.Equal(t, "outside", Outside.String())
}
