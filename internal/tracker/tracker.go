// Package tracker maintains zone-membership state for a set of tracked
// entities against a single polygon. It is synchronous and does no locking of
// its own; hosts serialize access per tracker (see Registry).
package tracker

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/fenceline/zonewatch/internal/geometry"
)

var (
	// ErrDegeneratePolygon is returned at construction when fewer than three
	// vertices are supplied.
	ErrDegeneratePolygon = eris.New("tracker: polygon needs at least 3 vertices")
	// ErrEmptyTrackerSet is returned at construction when no entity ids are
	// supplied.
	ErrEmptyTrackerSet = eris.New("tracker: no entities to track")
	// ErrUnknownEntity is returned when an update references an id that was
	// not part of the tracked set.
	ErrUnknownEntity = eris.New("tracker: unknown entity")
	// ErrInvalidCoordinate is returned for non-finite latitude or longitude.
	// The entity's prior state is left untouched.
	ErrInvalidCoordinate = eris.New("tracker: invalid coordinate")
)

// EntityState is the last-known state of one tracked entity. The slot
// persists for the tracker's lifetime; unavailable entities keep their slot
// with the position fields cleared.
type EntityState struct {
	LastPoint         *geometry.Point `json:"last_point,omitempty"`
	LastAccuracyM     *float64        `json:"last_accuracy_m,omitempty"`
	InZone            bool            `json:"in_zone"`
	BoundaryDistanceM *float64        `json:"boundary_distance_m,omitempty"`
	Available         bool            `json:"available"`
}

// PositionUpdateOutcome describes what an UpdatePosition call changed.
type PositionUpdateOutcome struct {
	Classification      geometry.Classification `json:"classification"`
	DistanceM           float64                 `json:"distance_m"`
	InZone              bool                    `json:"in_zone"`
	MembershipChanged   bool                    `json:"membership_changed"`
	AvailabilityChanged bool                    `json:"availability_changed"`
	// Moved reports whether the coordinates differ from the previous known
	// point. Callers use it to refresh state even without a membership flip.
	Moved bool `json:"moved"`
}

// AvailabilityOutcome describes what a MarkUnavailable call changed.
type AvailabilityOutcome struct {
	// Changed is true only for the transition into unavailable; repeated
	// calls while already unavailable report false.
	Changed bool `json:"changed"`
	// WasInZone is true when the entity was in the zone before the call,
	// meaning the membership flag flipped as part of it.
	WasInZone bool `json:"was_in_zone"`
}

// ZoneSummary partitions the tracked set by current membership. Both lists
// are sorted by entity id for deterministic output.
type ZoneSummary struct {
	InZone      []string `json:"in_zone"`
	OutOfZone   []string `json:"out_of_zone"`
	CountInZone int      `json:"count_in_zone"`
}

// Option configures a ZoneTracker.
type Option func(*ZoneTracker)

// WithTolerance overrides the boundary tolerance in degrees.
func WithTolerance(deg float64) Option {
	return func(zt *ZoneTracker) {
		if deg > 0 {
			zt.tolerance = deg
		}
	}
}

// ZoneTracker owns one polygon and the membership state of its tracked
// entities.
type ZoneTracker struct {
	poly      geometry.Polygon
	tolerance float64
	order     []string
	entities  map[string]*EntityState
}

// New builds a tracker for the given polygon and entity ids. The polygon is
// copied and immutable thereafter. Duplicate ids collapse into one slot.
func New(poly geometry.Polygon, entityIDs []string, opts ...Option) (*ZoneTracker, error) {
	if len(poly) < 3 {
		return nil, eris.Wrapf(ErrDegeneratePolygon, "got %d vertices", len(poly))
	}
	if len(entityIDs) == 0 {
		return nil, ErrEmptyTrackerSet
	}

	zt := &ZoneTracker{
		poly:      append(geometry.Polygon(nil), poly...),
		tolerance: geometry.DefaultTolerance,
		entities:  make(map[string]*EntityState, len(entityIDs)),
	}
	for _, opt := range opts {
		opt(zt)
	}

	for _, id := range entityIDs {
		if _, ok := zt.entities[id]; ok {
			continue
		}
		zt.entities[id] = &EntityState{}
		zt.order = append(zt.order, id)
	}

	return zt, nil
}

// UpdatePosition records a new position for an entity, classifies it against
// the polygon and recomputes membership. Accuracy is recorded for
// observability only; it never influences classification.
func (zt *ZoneTracker) UpdatePosition(entityID string, lat, lon float64, accuracyM *float64) (PositionUpdateOutcome, error) {
	st, ok := zt.entities[entityID]
	if !ok {
		return PositionUpdateOutcome{}, eris.Wrapf(ErrUnknownEntity, "%q", entityID)
	}

	if !isFinite(lat) || !isFinite(lon) {
		return PositionUpdateOutcome{}, eris.Wrapf(ErrInvalidCoordinate, "entity %q: lat=%v lon=%v", entityID, lat, lon)
	}

	p := geometry.Point{Lat: lat, Lon: lon}
	class := geometry.Classify(zt.poly, p, zt.tolerance)
	dist := geometry.BoundaryDistanceMeters(zt.poly, p)

	// OnBoundary counts as inside: edge-sitting devices must not flicker.
	inZone := class == geometry.Inside || class == geometry.OnBoundary

	out := PositionUpdateOutcome{
		Classification:      class,
		DistanceM:           dist,
		InZone:              inZone,
		MembershipChanged:   st.InZone != inZone,
		AvailabilityChanged: !st.Available,
		Moved:               st.LastPoint == nil || *st.LastPoint != p,
	}

	st.LastPoint = &p
	st.LastAccuracyM = accuracyM
	st.InZone = inZone
	st.BoundaryDistanceM = &dist
	st.Available = true

	return out, nil
}

// MarkUnavailable records that the upstream source lost the entity: the
// position and distance are cleared and membership is forced off. Distinct
// from InvalidCoordinate failures, which retain the prior state.
func (zt *ZoneTracker) MarkUnavailable(entityID string) (AvailabilityOutcome, error) {
	st, ok := zt.entities[entityID]
	if !ok {
		return AvailabilityOutcome{}, eris.Wrapf(ErrUnknownEntity, "%q", entityID)
	}

	out := AvailabilityOutcome{
		Changed:   st.Available,
		WasInZone: st.InZone,
	}

	st.LastPoint = nil
	st.LastAccuracyM = nil
	st.BoundaryDistanceM = nil
	st.InZone = false
	st.Available = false

	return out, nil
}

// Summary partitions the tracked set by membership, sorted by id.
func (zt *ZoneTracker) Summary() ZoneSummary {
	s := ZoneSummary{InZone: []string{}, OutOfZone: []string{}}
	for id, st := range zt.entities {
		if st.InZone {
			s.InZone = append(s.InZone, id)
		} else {
			s.OutOfZone = append(s.OutOfZone, id)
		}
	}
	sort.Strings(s.InZone)
	sort.Strings(s.OutOfZone)
	s.CountInZone = len(s.InZone)
	return s
}

// IsInside is the single-entity convenience view: with one tracked entity it
// reports that entity's membership, otherwise whether any entity is in zone.
func (zt *ZoneTracker) IsInside() bool {
	if len(zt.order) == 1 {
		return zt.entities[zt.order[0]].InZone
	}
	for _, st := range zt.entities {
		if st.InZone {
			return true
		}
	}
	return false
}

// Entity returns a copy of the entity's current state.
func (zt *ZoneTracker) Entity(entityID string) (EntityState, error) {
	st, ok := zt.entities[entityID]
	if !ok {
		return EntityState{}, eris.Wrapf(ErrUnknownEntity, "%q", entityID)
	}
	return *st, nil
}

// EntityIDs returns the tracked ids in registration order.
func (zt *ZoneTracker) EntityIDs() []string {
	return append([]string(nil), zt.order...)
}

// Restore overwrites an entity's slot with a previously persisted state,
// used to re-seed trackers after a host restart.
func (zt *ZoneTracker) Restore(entityID string, state EntityState) error {
	st, ok := zt.entities[entityID]
	if !ok {
		return eris.Wrapf(ErrUnknownEntity, "%q", entityID)
	}
	*st = state
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
