package tracker

import (
	"sort"
	"sync"

	"github.com/rotisserie/eris"
)

// ErrZoneNotFound is returned when a registry lookup references an
// unregistered zone.
var ErrZoneNotFound = eris.New("tracker: zone not found")

// Registry holds one tracker per zone and serializes access to each, giving
// concurrent hosts the at-most-one-in-flight-mutation-per-tracker guarantee
// the trackers require. Independent zones proceed concurrently.
type Registry struct {
	mu    sync.RWMutex
	zones map[string]*zoneEntry
}

type zoneEntry struct {
	mu sync.Mutex
	zt *ZoneTracker
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{zones: make(map[string]*zoneEntry)}
}

// Add registers a tracker under a zone id, replacing any existing one.
func (r *Registry) Add(zoneID string, zt *ZoneTracker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.zones[zoneID] = &zoneEntry{zt: zt}
}

// Do runs fn with exclusive access to the zone's tracker.
func (r *Registry) Do(zoneID string, fn func(*ZoneTracker) error) error {
	r.mu.RLock()
	e, ok := r.zones[zoneID]
	r.mu.RUnlock()
	if !ok {
		return eris.Wrapf(ErrZoneNotFound, "%q", zoneID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.zt)
}

// Summary returns the zone's membership summary.
func (r *Registry) Summary(zoneID string) (ZoneSummary, error) {
	var s ZoneSummary
	err := r.Do(zoneID, func(zt *ZoneTracker) error {
		s = zt.Summary()
		return nil
	})
	return s, err
}

// Zones returns the registered zone ids, sorted.
func (r *Registry) Zones() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.zones))
	for id := range r.zones {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
