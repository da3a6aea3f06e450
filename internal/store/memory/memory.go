// Package memory provides a mutex-serialized, process-local Store
// implementation.  It backs unit tests and local development; the
// MySQL store is the production driver.  Atomicity comes from cloning
// the whole state before each Within call and restoring the clone when
// the closure fails, so a failed operation never leaves partial
// writes behind.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/openlims/sample-storage/internal/hierarchy"
	"github.com/openlims/sample-storage/internal/model"
	"github.com/openlims/sample-storage/internal/store"
)

type state struct {
	locations   map[uint64]model.LocationNode
	items       map[uint64]model.SampleItem
	assignments map[uint64]model.Assignment
	movements   []model.Movement
	disposals   map[uint64]model.Disposal

	locationSeq   uint64
	itemSeq       uint64
	assignmentSeq uint64
	movementSeq   uint64
	disposalSeq   uint64
}

func newState() state {
	return state{
		locations:   make(map[uint64]model.LocationNode),
		items:       make(map[uint64]model.SampleItem),
		assignments: make(map[uint64]model.Assignment),
		disposals:   make(map[uint64]model.Disposal),
	}
}

func (s state) clone() state {
	c := state{
		locations:     make(map[uint64]model.LocationNode, len(s.locations)),
		items:         make(map[uint64]model.SampleItem, len(s.items)),
		assignments:   make(map[uint64]model.Assignment, len(s.assignments)),
		movements:     append([]model.Movement(nil), s.movements...),
		disposals:     make(map[uint64]model.Disposal, len(s.disposals)),
		locationSeq:   s.locationSeq,
		itemSeq:       s.itemSeq,
		assignmentSeq: s.assignmentSeq,
		movementSeq:   s.movementSeq,
		disposalSeq:   s.disposalSeq,
	}
	for k, v := range s.locations {
		c.locations[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.assignments {
		c.assignments[k] = v
	}
	for k, v := range s.disposals {
		c.disposals[k] = v
	}
	return c
}

// Store holds all state behind a single mutex.  Serializing every
// atomic unit through the mutex gives the same one-winner guarantee
// for contended slots that the MySQL driver gets from row locks and
// its unique key.
type Store struct {
	mu sync.Mutex
	st state
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{st: newState()}
}

// Within runs fn as one atomic unit.  On error the pre-call state is
// restored in full.
func (s *Store) Within(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(&tx{st: &s.st}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// View runs fn read-only under the same lock.
func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	return s.Within(ctx, fn)
}

type tx struct {
	st *state
}

func (t *tx) InsertLocation(n *model.LocationNode) error {
	t.st.locationSeq++
	n.ID = t.st.locationSeq
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now
	t.st.locations[n.ID] = *n
	return nil
}

func (t *tx) UpdateLocation(n *model.LocationNode) error {
	cur, ok := t.st.locations[n.ID]
	if !ok {
		return store.ErrLocationNotFound
	}
	n.CreatedAt = cur.CreatedAt
	n.UpdatedAt = time.Now().UTC()
	t.st.locations[n.ID] = *n
	return nil
}

func (t *tx) DeleteLocation(id uint64) error {
	if _, ok := t.st.locations[id]; !ok {
		return store.ErrLocationNotFound
	}
	delete(t.st.locations, id)
	return nil
}

func (t *tx) LocationByID(id uint64) (*model.LocationNode, error) {
	n, ok := t.st.locations[id]
	if !ok {
		return nil, store.ErrLocationNotFound
	}
	cp := n
	return &cp, nil
}

func (t *tx) ChildLocations(parentID uint64) ([]*model.LocationNode, error) {
	var out []*model.LocationNode
	for _, n := range t.st.locations {
		if n.ParentID != nil && *n.ParentID == parentID {
			cp := n
			out = append(out, &cp)
		}
	}
	sortLocations(out)
	return out, nil
}

func (t *tx) ListLocations(f store.LocationFilter) ([]*model.LocationNode, error) {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	var out []*model.LocationNode
	for _, n := range t.st.locations {
		if f.Type != "" && n.Type != f.Type {
			continue
		}
		if !f.IncludeInactive && !n.Active {
			continue
		}
		if f.ParentID != nil && (n.ParentID == nil || *n.ParentID != *f.ParentID) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(n.Name), search) &&
			!strings.Contains(strings.ToLower(n.Code), search) {
			continue
		}
		cp := n
		out = append(out, &cp)
	}
	sortLocations(out)
	return out, nil
}

func (t *tx) InsertSampleItem(it *model.SampleItem) error {
	t.st.itemSeq++
	it.ID = t.st.itemSeq
	now := time.Now().UTC()
	it.CreatedAt = now
	it.UpdatedAt = now
	if it.Status == "" {
		it.Status = model.StatusUnassigned
	}
	t.st.items[it.ID] = *it
	return nil
}

func (t *tx) SampleItemByID(id uint64) (*model.SampleItem, error) {
	it, ok := t.st.items[id]
	if !ok {
		return nil, store.ErrSampleItemNotFound
	}
	cp := it
	return &cp, nil
}

func (t *tx) SampleItemByAccession(accession string) (*model.SampleItem, error) {
	for _, it := range t.st.items {
		if strings.EqualFold(it.AccessionNumber, accession) {
			cp := it
			return &cp, nil
		}
	}
	return nil, store.ErrSampleItemNotFound
}

func (t *tx) ListSampleItems(f store.SampleItemFilter) ([]*model.SampleItem, error) {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	var out []*model.SampleItem
	for _, it := range t.st.items {
		if f.Status != "" && it.Status != f.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(it.AccessionNumber), search) {
			continue
		}
		cp := it
		out = append(out, &cp)
	}
	sortSampleItems(out)
	return out, nil
}

func (t *tx) UpdateSampleItemStatus(id uint64, status string) error {
	it, ok := t.st.items[id]
	if !ok {
		return store.ErrSampleItemNotFound
	}
	it.Status = status
	it.UpdatedAt = time.Now().UTC()
	t.st.items[id] = it
	return nil
}

func (t *tx) ActiveAssignmentForItem(sampleItemID uint64) (*model.Assignment, error) {
	for _, a := range t.st.assignments {
		if a.Active && a.SampleItemID == sampleItemID {
			cp := a
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *tx) ActiveAssignmentAtSlot(locationID uint64, coordinate string) (*model.Assignment, error) {
	if strings.TrimSpace(coordinate) == "" {
		return nil, nil
	}
	for _, a := range t.st.assignments {
		if a.Active && a.LocationID == locationID && strings.EqualFold(a.PositionCoordinate, coordinate) {
			cp := a
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *tx) ActiveAssignments() ([]*model.Assignment, error) {
	var out []*model.Assignment
	for _, a := range t.st.assignments {
		if a.Active {
			cp := a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (t *tx) CountActiveAssignmentsAt(locationIDs []uint64) (int, error) {
	in := make(map[uint64]struct{}, len(locationIDs))
	for _, id := range locationIDs {
		in[id] = struct{}{}
	}
	n := 0
	for _, a := range t.st.assignments {
		if !a.Active {
			continue
		}
		if _, ok := in[a.LocationID]; ok {
			n++
		}
	}
	return n, nil
}

func (t *tx) InsertAssignment(a *model.Assignment) error {
	// Mirror the MySQL unique keys on live rows.
	if existing, _ := t.ActiveAssignmentForItem(a.SampleItemID); existing != nil {
		return store.ErrAlreadyAssigned
	}
	if occupant, _ := t.ActiveAssignmentAtSlot(a.LocationID, a.PositionCoordinate); occupant != nil {
		return store.ErrOccupied
	}
	t.st.assignmentSeq++
	a.ID = t.st.assignmentSeq
	a.Active = true
	if a.AssignedDate.IsZero() {
		a.AssignedDate = time.Now().UTC()
	}
	t.st.assignments[a.ID] = *a
	return nil
}

func (t *tx) EndAssignment(id uint64, at time.Time) error {
	a, ok := t.st.assignments[id]
	if !ok || !a.Active {
		return store.ErrAssignmentNotFound
	}
	a.Active = false
	ended := at.UTC()
	a.EndedDate = &ended
	t.st.assignments[id] = a
	return nil
}

func (t *tx) UpdateAssignmentMetadata(id uint64, coordinate, notes string) error {
	a, ok := t.st.assignments[id]
	if !ok || !a.Active {
		return store.ErrAssignmentNotFound
	}
	if occupant, _ := t.ActiveAssignmentAtSlot(a.LocationID, coordinate); occupant != nil && occupant.ID != id {
		return store.ErrOccupied
	}
	a.PositionCoordinate = coordinate
	a.Notes = notes
	t.st.assignments[id] = a
	return nil
}

func (t *tx) InsertMovement(m *model.Movement) error {
	t.st.movementSeq++
	m.ID = t.st.movementSeq
	if m.MovedDate.IsZero() {
		m.MovedDate = time.Now().UTC()
	}
	t.st.movements = append(t.st.movements, *m)
	return nil
}

func (t *tx) MovementsForItem(sampleItemID uint64) ([]*model.Movement, error) {
	var out []*model.Movement
	// Newest first.
	for i := len(t.st.movements) - 1; i >= 0; i-- {
		if t.st.movements[i].SampleItemID == sampleItemID {
			cp := t.st.movements[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (t *tx) InsertDisposal(d *model.Disposal) error {
	for _, existing := range t.st.disposals {
		if existing.SampleItemID == d.SampleItemID {
			return store.ErrAlreadyDisposed
		}
	}
	t.st.disposalSeq++
	d.ID = t.st.disposalSeq
	if d.DisposedDate.IsZero() {
		d.DisposedDate = time.Now().UTC()
	}
	t.st.disposals[d.ID] = *d
	return nil
}

func (t *tx) DisposalForItem(sampleItemID uint64) (*model.Disposal, error) {
	for _, d := range t.st.disposals {
		if d.SampleItemID == sampleItemID {
			cp := d
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *tx) CountSampleItemsByStatus() (map[string]int, error) {
	counts := make(map[string]int)
	for _, it := range t.st.items {
		counts[it.Status]++
	}
	return counts, nil
}

func (t *tx) CountActiveLocationsByType() (map[hierarchy.LocationType]int, error) {
	counts := make(map[hierarchy.LocationType]int)
	for _, n := range t.st.locations {
		if n.Active {
			counts[n.Type]++
		}
	}
	return counts, nil
}

func sortLocations(ns []*model.LocationNode) {
	sort.Slice(ns, func(i, j int) bool { return ns[i].ID < ns[j].ID })
}

func sortSampleItems(its []*model.SampleItem) {
	sort.Slice(its, func(i, j int) bool { return its[i].ID < its[j].ID })
}
