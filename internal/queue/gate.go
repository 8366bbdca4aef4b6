package queue

import (
	"sync"

	"jobq/internal/store"
)

type phase int

const (
	phaseOpen phase = iota
	phaseDraining
)

// sessionGate is the in-process admission state of one session.
type sessionGate struct {
	phase    phase
	refs     int
	inflight int
	leaseMu  sync.Mutex
}

// gate admits queue calls per session. A draining session rejects submit and
// lease but still admits renew and complete so outstanding leases can finish.
type gate struct {
	mu       sync.Mutex
	sessions map[string]*sessionGate
}

func newGate() *gate {
	return &gate{sessions: make(map[string]*sessionGate)}
}

func (g *gate) get(sessionID string) *sessionGate {
	sg, ok := g.sessions[sessionID]
	if !ok {
		sg = &sessionGate{}
		g.sessions[sessionID] = sg
	}
	return sg
}

// enter registers one call against sessionID. Every admitted call is
// in-flight work the reaper waits for, including a submit or lease that got
// in just before the drain began. release is idempotent.
func (g *gate) enter(sessionID string, allowDraining bool) (*sessionGate, func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	sg := g.get(sessionID)
	if sg.phase == phaseDraining && !allowDraining {
		g.dropIfIdle(sessionID, sg)
		return nil, nil, store.ErrUnknownSession
	}
	sg.refs++
	sg.inflight++

	var once sync.Once
	release := func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			sg.refs--
			sg.inflight--
			g.dropIfIdle(sessionID, sg)
		})
	}
	return sg, release, nil
}

// beginDrain moves an open session to draining. A session already draining
// is being reaped by another caller.
func (g *gate) beginDrain(sessionID string) (*sessionGate, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	sg := g.get(sessionID)
	if sg.phase == phaseDraining {
		return nil, store.ErrUnknownSession
	}
	sg.phase = phaseDraining
	sg.refs++
	return sg, nil
}

// endDrain reopens the session, or forgets it once it has been reaped.
func (g *gate) endDrain(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	sg, ok := g.sessions[sessionID]
	if !ok {
		return
	}
	sg.phase = phaseOpen
	sg.refs--
	g.dropIfIdle(sessionID, sg)
}

func (g *gate) inflight(sessionID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if sg, ok := g.sessions[sessionID]; ok {
		return sg.inflight
	}
	return 0
}

func (g *gate) draining(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	sg, ok := g.sessions[sessionID]
	return ok && sg.phase == phaseDraining
}

func (g *gate) dropIfIdle(sessionID string, sg *sessionGate) {
	if sg.refs == 0 && sg.phase == phaseOpen {
		delete(g.sessions, sessionID)
	}
}
