// internal/geo/index.go
package geo

import (
	"fmt"
	"iter"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"

	"github.com/javajoker/nearby-market/internal/apperror"
)

// Neighbor is one radius query hit.
type Neighbor struct {
	EntityID       uuid.UUID `json:"entity_id"`
	DistanceMeters float64   `json:"distance_meters"`
}

type location struct {
	id    uuid.UUID
	point Point
}

func (l *location) Point() orb.Point {
	return l.point.Orb()
}

// Index answers radius queries over entity locations. The quadtree narrows
// candidates to the bounding boxes of the query circle and haversine decides
// membership.
type Index struct {
	mu      sync.RWMutex
	tree    *quadtree.Quadtree
	entries map[uuid.UUID]*location
}

func NewIndex() *Index {
	return &Index{
		tree:    quadtree.New(worldBound),
		entries: make(map[uuid.UUID]*location),
	}
}

// IndexLocation stores or replaces the location of entityID.
func (idx *Index) IndexLocation(entityID uuid.UUID, lat, long float64) error {
	point, err := NewPoint(lat, long)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if existing, ok := idx.entries[entityID]; ok {
		idx.removeLocked(existing)
	}

	loc := &location{id: entityID, point: point}
	if err := idx.tree.Add(loc); err != nil {
		return fmt.Errorf("indexing %s: %w", entityID, err)
	}
	idx.entries[entityID] = loc
	return nil
}

// Remove drops entityID from the index and reports whether it was present.
func (idx *Index) Remove(entityID uuid.UUID) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	existing, ok := idx.entries[entityID]
	if !ok {
		return false
	}
	idx.removeLocked(existing)
	return true
}

func (idx *Index) removeLocked(loc *location) {
	idx.tree.Remove(loc, func(p orb.Pointer) bool {
		other, ok := p.(*location)
		return ok && other.id == loc.id
	})
	delete(idx.entries, loc.id)
}

// Location returns the indexed point of entityID.
func (idx *Index) Location(entityID uuid.UUID) (Point, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	loc, ok := idx.entries[entityID]
	if !ok {
		return Point{}, false
	}
	return loc.point, true
}

func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// WithinRadius returns the entities within radiusMeters of center ordered by
// ascending distance, ties broken by id. The result is computed from a
// snapshot taken at call time; later mutations are not reflected.
func (idx *Index) WithinRadius(center Point, radiusMeters float64) (iter.Seq[Neighbor], error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}
	if math.IsNaN(radiusMeters) || math.IsInf(radiusMeters, 0) || radiusMeters < 0 {
		return nil, apperror.Validation(apperror.CodeInvalidRadius, "radius %v must be a non-negative number of meters", radiusMeters)
	}

	hits := idx.collect(center, radiusMeters)

	return func(yield func(Neighbor) bool) {
		for _, hit := range hits {
			if !yield(hit) {
				return
			}
		}
	}, nil
}

func (idx *Index) collect(center Point, radiusMeters float64) []Neighbor {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var (
		hits []Neighbor
		buf  []orb.Pointer
	)
	for _, bound := range boundsAround(center, radiusMeters) {
		buf = idx.tree.InBound(buf[:0], bound)
		for _, candidate := range buf {
			loc := candidate.(*location)
			d := Distance(center, loc.point)
			if d <= radiusMeters {
				hits = append(hits, Neighbor{EntityID: loc.id, DistanceMeters: d})
			}
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].DistanceMeters != hits[j].DistanceMeters {
			return hits[i].DistanceMeters < hits[j].DistanceMeters
		}
		return hits[i].EntityID.String() < hits[j].EntityID.String()
	})
	return hits
}
