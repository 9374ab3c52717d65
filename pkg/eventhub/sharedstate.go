package eventhub

import (
	"math"
	"sort"
)

// StateKind distinguishes the two shared-state families an extension owns.
type StateKind int

const (
	// StateKindStandard is the default shared-state family.
	StateKindStandard StateKind = iota

	// StateKindXDM is the XDM-formatted shared-state family.
	StateKindXDM
)

// String returns a printable name for the kind.
func (k StateKind) String() string {
	if k == StateKindXDM {
		return "xdm"
	}
	return "standard"
}

// StateStatus describes a shared-state query result.
type StateStatus int

const (
	// StateNone indicates no snapshot exists at or below the query version.
	StateNone StateStatus = iota

	// StatePending indicates a snapshot is reserved but its data has not
	// been resolved yet.
	StatePending

	// StateSet indicates a snapshot with resolved data.
	StateSet
)

// String returns a printable name for the status.
func (s StateStatus) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSet:
		return "set"
	default:
		return "none"
	}
}

// SharedStateResolution selects which snapshots a read considers.
type SharedStateResolution int

const (
	// ResolutionAny resolves to the newest snapshot at or below the query
	// version, pending or set.
	ResolutionAny SharedStateResolution = iota

	// ResolutionLastSet resolves to the newest set snapshot at or below the
	// query version, skipping pending ones.
	ResolutionLastSet
)

// VersionLatest is the sentinel query version meaning "newest available".
const VersionLatest int64 = math.MaxInt64

// SharedStateResult is the outcome of a shared-state read. Value is nil
// unless Status is StateSet, with one exception: a barrier read downgraded
// to StatePending carries the set value it would otherwise have returned.
type SharedStateResult struct {
	Status StateStatus
	Value  map[string]any
}

type sharedState struct {
	version int64
	status  StateStatus
	data    map[string]any
}

// SharedStateManager holds the ordered, versioned snapshots for one
// (extension, kind) pair. It is not safe for concurrent use; the hub writer
// owns every manager and serializes all access.
type SharedStateManager struct {
	name   string
	states []sharedState // ascending by version
}

// NewSharedStateManager creates an empty manager for the named extension.
func NewSharedStateManager(name string) *SharedStateManager {
	return &SharedStateManager{name: name}
}

// Name returns the owning extension's canonical name.
func (m *SharedStateManager) Name() string {
	return m.name
}

// SetState appends a set snapshot at the given version. The data is
// deep-copied. Returns false if a non-pending snapshot already exists at
// that version or the version is not greater than the last appended one;
// setting at the version of the newest snapshot while it is pending
// resolves it in place.
func (m *SharedStateManager) SetState(version int64, data map[string]any) bool {
	if len(m.states) == 0 {
		m.states = append(m.states, sharedState{version: version, status: StateSet, data: cloneDataMap(data)})
		return true
	}
	last := &m.states[len(m.states)-1]
	switch {
	case version > last.version:
		m.states = append(m.states, sharedState{version: version, status: StateSet, data: cloneDataMap(data)})
		return true
	case version == last.version && last.status == StatePending:
		last.status = StateSet
		last.data = cloneDataMap(data)
		return true
	default:
		return false
	}
}

// SetPendingState reserves a pending snapshot at the given version.
// Returns false unless the version is strictly greater than the last
// appended one (or the manager is empty).
func (m *SharedStateManager) SetPendingState(version int64) bool {
	if len(m.states) > 0 && version <= m.states[len(m.states)-1].version {
		return false
	}
	m.states = append(m.states, sharedState{version: version, status: StatePending})
	return true
}

// UpdatePendingState resolves the pending snapshot at exactly the given
// version to set. Returns false if no snapshot exists at that version or it
// is already set.
func (m *SharedStateManager) UpdatePendingState(version int64, data map[string]any) bool {
	i := m.indexAtOrBelow(version)
	if i < 0 || m.states[i].version != version || m.states[i].status != StatePending {
		return false
	}
	m.states[i].status = StateSet
	m.states[i].data = cloneDataMap(data)
	return true
}

// Resolve returns the newest snapshot with version <= the query version,
// pending or set.
func (m *SharedStateManager) Resolve(version int64) SharedStateResult {
	i := m.indexAtOrBelow(version)
	if i < 0 {
		return SharedStateResult{Status: StateNone}
	}
	s := m.states[i]
	if s.status == StatePending {
		return SharedStateResult{Status: StatePending}
	}
	return SharedStateResult{Status: StateSet, Value: cloneDataMap(s.data)}
}

// ResolveLastSet returns the newest set snapshot with version <= the query
// version, skipping pending ones.
func (m *SharedStateManager) ResolveLastSet(version int64) SharedStateResult {
	for i := m.indexAtOrBelow(version); i >= 0; i-- {
		if m.states[i].status == StateSet {
			return SharedStateResult{Status: StateSet, Value: cloneDataMap(m.states[i].data)}
		}
	}
	return SharedStateResult{Status: StateNone}
}

// IsEmpty reports whether no snapshots have been appended.
func (m *SharedStateManager) IsEmpty() bool {
	return len(m.states) == 0
}

// Clear removes all snapshots.
func (m *SharedStateManager) Clear() {
	m.states = nil
}

// indexAtOrBelow returns the index of the newest snapshot with
// version <= v, or -1.
func (m *SharedStateManager) indexAtOrBelow(v int64) int {
	return sort.Search(len(m.states), func(i int) bool {
		return m.states[i].version > v
	}) - 1
}
