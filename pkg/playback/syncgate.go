package playback

import "sync"

// syncGate is a manual-reset event. Wait blocks while the gate is reset and
// returns as soon as it is set.
type syncGate struct {
	mu   sync.Mutex
	cond *sync.Cond
	set  bool
}

func newSyncGate(set bool) *syncGate {
	g := &syncGate{set: set}
	g.cond = sync.NewCond(&g.mu)
	return g
}

func (g *syncGate) Set() {
	g.mu.Lock()
	g.set = true
	g.mu.Unlock()
	g.cond.Broadcast()
}

func (g *syncGate) Reset() {
	g.mu.Lock()
	g.set = false
	g.mu.Unlock()
}

func (g *syncGate) Wait() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for !g.set {
		g.cond.Wait()
	}
}

func (g *syncGate) IsSet() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.set
}
