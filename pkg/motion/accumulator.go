package motion

import "sync"

// PendingSet is the per-session mapping from source name to accumulated
// (dx, dy) sum since the last motion-loop tick (spec.md §4.8). Insertion
// order is preserved because Fusion's primary-selection fallback ("first by
// insertion order" when no source matches the priority list) depends on it.
type PendingSet struct {
	order  []string
	values map[string][2]float64
}

func newPendingSet() *PendingSet {
	return &PendingSet{values: make(map[string][2]float64)}
}

// add accumulates a delta under source, component-wise. A (0,0) delta is a
// no-op (spec.md §4.8: "identity for (0,0) inputs is skipped").
func (p *PendingSet) add(source string, dx, dy float64) {
	if dx == 0 && dy == 0 {
		return
	}
	if _, ok := p.values[source]; !ok {
		p.order = append(p.order, source)
	}
	prev := p.values[source]
	p.values[source] = [2]float64{prev[0] + dx, prev[1] + dy}
}

// snapshot returns a plain map view plus the recorded insertion order.
func (p *PendingSet) snapshot() (map[string][2]float64, []string) {
	return p.values, p.order
}

// Accumulator is the thread-safe coalescing queue between message handlers
// (writers) and the motion loop (the single reader/drainer). See spec.md
// §4.8 and §5.
type Accumulator struct {
	mu      sync.Mutex
	pending *PendingSet
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{pending: newPendingSet()}
}

// Add accumulates a delta under source. Safe for concurrent callers.
func (a *Accumulator) Add(source string, dx, dy float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending.add(source, dx, dy)
}

// Drain atomically swaps out the pending set for an empty one and returns
// the drained values plus their insertion order. Safe for concurrent
// callers, though in practice only the motion loop calls this.
func (a *Accumulator) Drain() (map[string][2]float64, []string) {
	a.mu.Lock()
	drained := a.pending
	a.pending = newPendingSet()
	a.mu.Unlock()
	return drained.snapshot()
}
