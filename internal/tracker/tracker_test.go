package tracker

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenceline/zonewatch/internal/geometry"
)

var square = geometry.Polygon{
	{Lat: 0, Lon: 0},
	{Lat: 0, Lon: 10},
	{Lat: 10, Lon: 10},
	{Lat: 10, Lon: 0},
}

func newSquareTracker(t *testing.T, ids ...string) *ZoneTracker {
	t.Helper()
	zt, err := New(square, ids)
	require.NoError(t, err)
	return zt
}

func TestNewValidation(t *testing.T) {
	_, err := New(geometry.Polygon{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}}, []string{"a"})
	assert.ErrorIs(t, err, ErrDegeneratePolygon)

	_, err = New(square, nil)
	assert.ErrorIs(t, err, ErrEmptyTrackerSet)

	zt, err := New(square, []string{"a", "b", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, zt.EntityIDs())
}

func TestUpdatePositionMembershipFlip(t *testing.T) {
	zt := newSquareTracker(t, "phone")

	// First fix: outside the zone, entity becomes available.
	out, err := zt.UpdatePosition("phone", 20, 20, nil)
	require.NoError(t, err)
	assert.Equal(t, geometry.Outside, out.Classification)
	assert.False(t, out.InZone)
	assert.False(t, out.MembershipChanged)
	assert.True(t, out.AvailabilityChanged)
	assert.True(t, out.Moved)

	// Move inside: membership flips exactly once.
	out, err = zt.UpdatePosition("phone", 5, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, geometry.Inside, out.Classification)
	assert.True(t, out.InZone)
	assert.True(t, out.MembershipChanged)
	assert.False(t, out.AvailabilityChanged)
	assert.True(t, out.Moved)

	// Same point again: nothing changed, nothing moved.
	out, err = zt.UpdatePosition("phone", 5, 5, nil)
	require.NoError(t, err)
	assert.False(t, out.MembershipChanged)
	assert.False(t, out.Moved)
	assert.True(t, out.InZone)
}

func TestUpdatePositionBoundaryCountsAsInside(t *testing.T) {
	zt := newSquareTracker(t, "phone")

	out, err := zt.UpdatePosition("phone", 0, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, geometry.OnBoundary, out.Classification)
	assert.True(t, out.InZone)
	assert.InDelta(t, 0, out.DistanceM, 1e-6)
	assert.True(t, zt.IsInside())
}

func TestUpdatePositionRecordsAccuracy(t *testing.T) {
	zt := newSquareTracker(t, "phone")
	acc := 12.5

	// Accuracy is observability only: a huge radius on an inside point must
	// not change the membership decision.
	_, err := zt.UpdatePosition("phone", 5, 5, &acc)
	require.NoError(t, err)

	st, err := zt.Entity("phone")
	require.NoError(t, err)
	require.NotNil(t, st.LastAccuracyM)
	assert.Equal(t, 12.5, *st.LastAccuracyM)
	assert.True(t, st.InZone)
}

func TestUpdatePositionUnknownEntity(t *testing.T) {
	zt := newSquareTracker(t, "phone")

	_, err := zt.UpdatePosition("watch", 5, 5, nil)
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestUpdatePositionInvalidCoordinateRetainsState(t *testing.T) {
	zt := newSquareTracker(t, "phone")

	_, err := zt.UpdatePosition("phone", 5, 5, nil)
	require.NoError(t, err)

	for _, bad := range [][2]float64{
		{math.NaN(), 5},
		{5, math.NaN()},
		{math.Inf(1), 5},
		{5, math.Inf(-1)},
	} {
		_, err := zt.UpdatePosition("phone", bad[0], bad[1], nil)
		assert.ErrorIs(t, err, ErrInvalidCoordinate)
	}

	// Prior state survives: still available, still inside.
	st, err := zt.Entity("phone")
	require.NoError(t, err)
	assert.True(t, st.Available)
	assert.True(t, st.InZone)
	require.NotNil(t, st.LastPoint)
	assert.Equal(t, geometry.Point{Lat: 5, Lon: 5}, *st.LastPoint)
}

func TestMarkUnavailable(t *testing.T) {
	zt := newSquareTracker(t, "phone")

	_, err := zt.UpdatePosition("phone", 5, 5, nil)
	require.NoError(t, err)

	out, err := zt.MarkUnavailable("phone")
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.True(t, out.WasInZone)

	st, err := zt.Entity("phone")
	require.NoError(t, err)
	assert.False(t, st.Available)
	assert.False(t, st.InZone)
	assert.Nil(t, st.LastPoint)
	assert.Nil(t, st.BoundaryDistanceM)

	// Second call while already unavailable is not a transition.
	out, err = zt.MarkUnavailable("phone")
	require.NoError(t, err)
	assert.False(t, out.Changed)
	assert.False(t, out.WasInZone)

	_, err = zt.MarkUnavailable("watch")
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestSummaryPartition(t *testing.T) {
	zt := newSquareTracker(t, "zulu", "alpha")

	_, err := zt.UpdatePosition("zulu", 5, 5, nil)
	require.NoError(t, err)
	_, err = zt.UpdatePosition("alpha", 20, 20, nil)
	require.NoError(t, err)

	s := zt.Summary()
	assert.Equal(t, 1, s.CountInZone)
	assert.Equal(t, []string{"zulu"}, s.InZone)
	assert.Equal(t, []string{"alpha"}, s.OutOfZone)

	// Sorted output regardless of registration or update order.
	_, err = zt.UpdatePosition("alpha", 6, 6, nil)
	require.NoError(t, err)
	s = zt.Summary()
	assert.Equal(t, []string{"alpha", "zulu"}, s.InZone)
	assert.Equal(t, 2, s.CountInZone)
	assert.Empty(t, s.OutOfZone)
}

func TestRestore(t *testing.T) {
	zt := newSquareTracker(t, "phone")

	p := geometry.Point{Lat: 5, Lon: 5}
	d := 0.0
	require.NoError(t, zt.Restore("phone", EntityState{
		LastPoint:         &p,
		InZone:            true,
		BoundaryDistanceM: &d,
		Available:         true,
	}))
	assert.True(t, zt.IsInside())

	err := zt.Restore("watch", EntityState{})
	assert.ErrorIs(t, err, ErrUnknownEntity)

	// An update after restore sees the seeded state: no membership change.
	out, err := zt.UpdatePosition("phone", 5, 5, nil)
	require.NoError(t, err)
	assert.False(t, out.MembershipChanged)
	assert.False(t, out.Moved)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Add("office", newSquareTracker(t, "phone"))
	r.Add("home", newSquareTracker(t, "phone"))

	assert.Equal(t, []string{"home", "office"}, r.Zones())

	err := r.Do("office", func(zt *ZoneTracker) error {
		_, err := zt.UpdatePosition("phone", 5, 5, nil)
		return err
	})
	require.NoError(t, err)

	s, err := r.Summary("office")
	require.NoError(t, err)
	assert.Equal(t, 1, s.CountInZone)

	s, err = r.Summary("home")
	require.NoError(t, err)
	assert.Equal(t, 0, s.CountInZone)

	err = r.Do("garage", func(*ZoneTracker) error { return nil })
	assert.ErrorIs(t, err, ErrZoneNotFound)
}

func TestRegistrySerializesUpdates(t *testing.T) {
	r := NewRegistry()
	r.Add("office", newSquareTracker(t, "phone"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = r.Do("office", func(zt *ZoneTracker) error {
				lat := float64(i%20) - 5
				_, err := zt.UpdatePosition("phone", lat, 5, nil)
				return err
			})
		}(i)
	}
	wg.Wait()

	s, err := r.Summary("office")
	require.NoError(t, err)
	assert.Len(t, s.InZone, s.CountInZone)
}

func TestSentinelErrorsDistinguishable(t *testing.T) {
	zt := newSquareTracker(t, "phone")

	_, err := zt.UpdatePosition("phone", math.NaN(), 0, nil)
	assert.True(t, errors.Is(err, ErrInvalidCoordinate))
	assert.False(t, errors.Is(err, ErrUnknownEntity))
}
