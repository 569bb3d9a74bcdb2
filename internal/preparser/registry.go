package preparser

import "sync"

// registry maps request ids to live requests. One mutex serializes every
// operation; ids are never reused.
type registry struct {
	mu   sync.Mutex
	last RequestID
	reqs map[RequestID]*request
}

func newRegistry() *registry {
	return &registry{reqs: make(map[RequestID]*request)}
}

func (g *registry) register(r *request) RequestID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last++
	r.id = g.last
	g.reqs[r.id] = r
	return r.id
}

func (g *registry) lookup(id RequestID) (*request, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.reqs[id]
	return r, ok
}

func (g *registry) remove(id RequestID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.reqs[id]; !ok {
		return false
	}
	delete(g.reqs, id)
	return true
}

// forEach calls fn on a snapshot, outside the lock, so fn may remove.
func (g *registry) forEach(fn func(*request)) {
	g.mu.Lock()
	snapshot := make([]*request, 0, len(g.reqs))
	for _, r := range g.reqs {
		snapshot = append(snapshot, r)
	}
	g.mu.Unlock()

	for _, r := range snapshot {
		fn(r)
	}
}

func (g *registry) len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.reqs)
}
