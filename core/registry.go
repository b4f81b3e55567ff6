package core

import (
	"sort"
	"sync"
)

// Registry tracks the metadata of every managed task and the group index over it.
//
// The registry may hold stale dead entries between sweeps: a task that exits on
// its own removes its record, but a killed task never runs its exit path and is
// only reclaimed by Sweep. Callers that need accurate counts sweep first.
type Registry struct {
	mu      sync.Mutex
	nextID  TaskID
	records map[TaskID]*TaskRecord
	groups  map[string][]*TaskRecord // non-owning; records own nothing here
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[TaskID]*TaskRecord),
		groups:  make(map[string][]*TaskRecord),
	}
}

// nextTaskID reserves an id. IDs increase monotonically, so they double as
// registration order.
func (r *Registry) nextTaskID() TaskID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	return r.nextID
}

// Insert adds rec and indexes it under rec.Group.
func (r *Registry) Insert(rec *TaskRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = rec
	if rec.Group != "" {
		r.groups[rec.Group] = append(r.groups[rec.Group], rec)
	}
}

// EnsureGroup creates an empty group if it does not exist yet.
func (r *Registry) EnsureGroup(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[name]; !ok {
		r.groups[name] = nil
	}
}

// Remove deletes the record with id from the registry and its group.
func (r *Registry) Remove(id TaskID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(id)
}

func (r *Registry) removeLocked(id TaskID) bool {
	rec, ok := r.records[id]
	if !ok {
		return false
	}
	delete(r.records, id)
	if rec.Group != "" {
		r.unlinkLocked(rec)
	}
	return true
}

func (r *Registry) unlinkLocked(rec *TaskRecord) {
	members, ok := r.groups[rec.Group]
	if !ok {
		return
	}
	for i, m := range members {
		if m == rec {
			copy(members[i:], members[i+1:])
			members[len(members)-1] = nil
			r.groups[rec.Group] = members[:len(members)-1]
			return
		}
	}
}

// Get returns a copy of the record with id.
func (r *Registry) Get(id TaskID) (TaskRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return TaskRecord{}, false
	}
	return *rec, true
}

// Len returns the number of records, stale ones included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Each calls fn for every record in registration order.
// fn must not call back into the registry.
func (r *Registry) Each(fn func(rec *TaskRecord)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.orderedLocked() {
		fn(rec)
	}
}

func (r *Registry) orderedLocked() []*TaskRecord {
	out := make([]*TaskRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Sweep removes every record whose handle is dead and returns how many were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked()
}

func (r *Registry) sweepLocked() int {
	removed := 0
	for id, rec := range r.records {
		if !rec.alive() {
			if rec.Status == RecordRunning {
				rec.Status = RecordDead
			}
			r.removeLocked(id)
			removed++
		}
	}
	return removed
}

// =============================================================================
// Group index
// =============================================================================

// KillGroup kills every live member of name and clears the membership list.
// It returns false when the group was never created.
func (r *Registry) KillGroup(name string) bool {
	r.mu.Lock()
	members, ok := r.groups[name]
	if !ok {
		r.mu.Unlock()
		return false
	}
	r.groups[name] = nil
	r.mu.Unlock()

	// Kill outside the lock; handles may be user supplied.
	for _, rec := range members {
		if rec.alive() {
			rec.Handle.Kill()
		}
	}
	return true
}

// GroupMembers returns a snapshot of the records indexed under name.
func (r *Registry) GroupMembers(name string) ([]TaskRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.groups[name]
	if !ok {
		return nil, false
	}
	out := make([]TaskRecord, len(members))
	for i, m := range members {
		out[i] = *m
	}
	return out, true
}

// Groups returns the sorted names of every group ever created.
func (r *Registry) Groups() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.groups))
	for name := range r.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// groupStatsLocked counts members and live members per group.
func (r *Registry) groupStatsLocked() map[string]GroupStats {
	out := make(map[string]GroupStats, len(r.groups))
	for name, members := range r.groups {
		gs := GroupStats{Total: len(members)}
		for _, m := range members {
			if m.alive() {
				gs.Active++
			}
		}
		out[name] = gs
	}
	return out
}
