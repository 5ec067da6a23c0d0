package registry

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seisview/markermap/internal/geo"
	"github.com/seisview/markermap/internal/marker"
)

// recordingSink collects notifications for assertions.
type recordingSink struct {
	mu      sync.Mutex
	added   []marker.Marker
	changes []Change
}

func (s *recordingSink) MarkerAdded(m marker.Marker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = append(s.added, m)
}

func (s *recordingSink) StyleApplied(c Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = append(s.changes, c)
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = nil
	s.changes = nil
}

func station(id string) marker.Marker {
	return marker.NewStation(id, geo.Position{Latitude: 1, Longitude: 2}, "")
}

func event(id string) marker.Marker {
	return marker.NewEvent(id, "catalog", 0, geo.Position{}, "Red", "Blue")
}

func newStations(t *testing.T, ids ...string) (*Registry, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	r := New(marker.KindStation, WithSink(sink))
	for _, id := range ids {
		_, err := r.Register(station(id))
		require.NoError(t, err)
	}
	sink.reset()
	return r, sink
}

func statusOf(t *testing.T, r *Registry, id string) marker.Status {
	t.Helper()
	m, ok := r.Get(id)
	require.True(t, ok, "missing %s", id)
	return m.Status
}

func TestRegister_DefaultsToPassive(t *testing.T) {
	sink := &recordingSink{}
	r := New(marker.KindStation, WithSink(sink))

	replaced, err := r.Register(station("A"))
	require.NoError(t, err)
	assert.False(t, replaced)

	assert.Equal(t, marker.StatusPassive, statusOf(t, r, "A"))
	require.Len(t, sink.added, 1)
	assert.Equal(t, "A", sink.added[0].ID)
	require.Len(t, sink.changes, 1)
	assert.Equal(t, marker.StatusPassive, sink.changes[0].Status)
	assert.NotNil(t, sink.changes[0].Style.Icon)
}

func TestRegister_DuplicateOverwrites(t *testing.T) {
	r := New(marker.KindEvent)

	_, err := r.Register(marker.NewEvent("ev", "first", 1, geo.Position{}, "Red", "Blue"))
	require.NoError(t, err)
	require.True(t, r.Activate("ev"))

	replaced, err := r.Register(marker.NewEvent("ev", "second", 2, geo.Position{}, "Green", "Gray"))
	require.NoError(t, err)
	assert.True(t, replaced)

	m, ok := r.Get("ev")
	require.True(t, ok)
	assert.Equal(t, "second", m.SourceID)
	assert.Equal(t, 2, m.RowIndex)
	assert.Equal(t, "Green", m.Colors.ActiveColor)
	assert.Equal(t, marker.StatusPassive, m.Status)
	assert.Equal(t, 1, r.Len())
}

func TestRegister_KindMismatch(t *testing.T) {
	r := New(marker.KindStation)
	_, err := r.Register(event("ev"))
	assert.ErrorIs(t, err, ErrKindMismatch)
	assert.Equal(t, 0, r.Len())
}

func TestRegister_CopiesInput(t *testing.T) {
	r := New(marker.KindEvent)
	m := event("ev")
	_, err := r.Register(m)
	require.NoError(t, err)

	m.Colors.ActiveColor = "changed"
	got, _ := r.Get("ev")
	assert.Equal(t, "Red", got.Colors.ActiveColor)
}

func TestActivate_NoOpWhenAlreadyActive(t *testing.T) {
	r, sink := newStations(t, "A")

	assert.True(t, r.Activate("A"))
	assert.True(t, r.Activate("A"))

	assert.Len(t, sink.changes, 1)
	assert.Equal(t, marker.StatusActive, statusOf(t, r, "A"))
}

func TestDeactivate_NoOpWhenAlreadyPassive(t *testing.T) {
	r, sink := newStations(t, "A")

	assert.True(t, r.Deactivate("A"))
	assert.Empty(t, sink.changes)

	r.Activate("A")
	r.Deactivate("A")
	assert.Len(t, sink.changes, 2)
	assert.Equal(t, marker.StatusPassive, statusOf(t, r, "A"))
}

func TestActivate_UnknownIsNoOp(t *testing.T) {
	r, sink := newStations(t, "A")

	assert.False(t, r.Activate("missing"))
	assert.False(t, r.Deactivate("missing"))
	assert.Empty(t, sink.changes)
}

func TestSetAllInactiveThenAllActive(t *testing.T) {
	r, _ := newStations(t, "A", "B", "C")
	r.Activate("B")

	r.SetAllInactive()
	assert.Empty(t, r.ActiveIDs())

	r.SetAllActive()
	assert.Equal(t, []string{"A", "B", "C"}, r.ActiveIDs())
}

func TestHighlight_Example(t *testing.T) {
	r, _ := newStations(t, "A", "B")

	assert.True(t, r.Highlight("B"))
	assert.Equal(t, []string{"B"}, r.ActiveIDs())

	assert.True(t, r.Highlight("A"))
	assert.Equal(t, []string{"A"}, r.ActiveIDs())
}

func TestHighlight_Idempotent(t *testing.T) {
	r, sink := newStations(t, "A", "B")

	r.Highlight("A")
	first := len(sink.changes)
	r.Highlight("A")

	assert.Equal(t, []string{"A"}, r.ActiveIDs())
	assert.Equal(t, first, len(sink.changes), "second highlight should not restyle")
}

func TestHighlight_UnknownLeavesNothingActive(t *testing.T) {
	r, _ := newStations(t, "A", "B")
	r.SetAllActive()

	assert.False(t, r.Highlight("missing"))
	assert.Empty(t, r.ActiveIDs())
}

func TestHighlight_AfterAllActive(t *testing.T) {
	r, _ := newStations(t, "A", "B", "C")
	r.SetAllActive()

	r.Highlight("C")
	assert.Equal(t, []string{"C"}, r.ActiveIDs())
}

func TestHighlight_AtMostOneActiveForRandomSequences(t *testing.T) {
	ids := []string{"A", "B", "C", "D", "E"}
	r, _ := newStations(t, ids...)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		id := ids[rng.Intn(len(ids))]
		switch rng.Intn(5) {
		case 0:
			r.Activate(id)
		case 1:
			r.Deactivate(id)
		case 2:
			r.SetAllActive()
		case 3:
			r.SetAllInactive()
		case 4:
			r.Highlight(id)
			assert.Equal(t, []string{id}, r.ActiveIDs())
		}
	}

	r.Highlight("Z")
	assert.LessOrEqual(t, len(r.ActiveIDs()), 1)
}

func TestHighlight_Concurrent(t *testing.T) {
	ids := []string{"A", "B", "C", "D"}
	r, _ := newStations(t, ids...)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Highlight(ids[i%len(ids)])
		}(i)
	}
	wg.Wait()

	assert.Len(t, r.ActiveIDs(), 1)
}

func TestResetRadius(t *testing.T) {
	sink := &recordingSink{}
	r := New(marker.KindEvent, WithSink(sink))
	m := event("ev")
	m.Colors.Radius = 25
	_, err := r.Register(m)
	require.NoError(t, err)
	sink.reset()

	r.ResetRadius()

	got, _ := r.Get("ev")
	assert.Equal(t, marker.DefaultEventRadius, got.Colors.Radius)
	require.Len(t, sink.changes, 1)
	assert.Equal(t, marker.DefaultEventRadius, sink.changes[0].Style.Path.Radius)
	assert.Equal(t, marker.StatusPassive, sink.changes[0].Status)
}

func TestResetRadius_IgnoresStations(t *testing.T) {
	r, sink := newStations(t, "A")
	r.ResetRadius()
	assert.Empty(t, sink.changes)
}

func TestListAndEntries_Sorted(t *testing.T) {
	r, _ := newStations(t, "C", "A", "B")
	r.Activate("B")

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "A", list[0].ID)
	assert.Equal(t, "C", list[2].ID)

	entries := r.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "B", entries[1].Marker.ID)
	assert.Equal(t, marker.StatusActive, entries[1].Marker.Status)
	require.NotNil(t, entries[1].Style.Icon)
	assert.Contains(t, entries[1].Style.Icon.HTML, "fill:Red")
}

func TestWithZoom_AffectsStationOrdering(t *testing.T) {
	sink0 := &recordingSink{}
	sink1 := &recordingSink{}
	r0 := New(marker.KindStation, WithSink(sink0))
	r1 := New(marker.KindStation, WithZoom(1), WithSink(sink1))

	m := marker.NewStation("A", geo.Position{}, "")
	_, _ = r0.Register(m)
	_, _ = r1.Register(m)

	assert.Equal(t, 100-128, sink0.changes[0].Style.ZIndexOffset)
	assert.Equal(t, 100-256, sink1.changes[0].Style.ZIndexOffset)
}

func TestMultiSink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	r := New(marker.KindStation, WithSink(NewMultiSink(a, nil, b)))

	_, err := r.Register(station("A"))
	require.NoError(t, err)

	assert.Len(t, a.added, 1)
	assert.Len(t, b.added, 1)
	assert.Len(t, a.changes, 1)
	assert.Len(t, b.changes, 1)
}

func TestAddSink(t *testing.T) {
	r := New(marker.KindStation)
	sink := &recordingSink{}
	r.AddSink(sink)
	r.AddSink(nil)

	_, _ = r.Register(station("A"))
	assert.Len(t, sink.added, 1)
}
