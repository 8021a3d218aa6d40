package projection

import (
	"sync"

	"courtline/internal/domain"
	"courtline/internal/events"
)

// Projector caches the last projected state keyed by the id of the last event
// folded into it. When the log only grew, just the new tail is folded.
type Projector struct {
	mu     sync.Mutex
	lastID string
	count  int
	state  domain.CaseState
	hits   int
}

// State returns the projection of evts. The result is a clone and may be
// modified freely.
func (p *Projector) State(evts []events.Event) (domain.CaseState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(evts) == 0 {
		p.reset()
		return domain.NewCaseState(), nil
	}
	if p.count > 0 && p.count <= len(evts) && evts[p.count-1].ID == p.lastID {
		if p.count == len(evts) {
			p.hits++
			return p.state.Clone(), nil
		}
		next := p.state.Clone()
		for _, e := range evts[p.count:] {
			if err := Apply(&next, e); err != nil {
				p.reset()
				return domain.CaseState{}, err
			}
		}
		p.store(next, evts)
		return next.Clone(), nil
	}
	s, err := Project(evts)
	if err != nil {
		p.reset()
		return domain.CaseState{}, err
	}
	p.store(s, evts)
	return s.Clone(), nil
}

// Invalidate drops the cached state; the next call folds from scratch.
func (p *Projector) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}

// Hits counts calls answered from the cache without folding.
func (p *Projector) Hits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits
}

func (p *Projector) store(s domain.CaseState, evts []events.Event) {
	p.state = s
	p.count = len(evts)
	p.lastID = evts[len(evts)-1].ID
}

func (p *Projector) reset() {
	p.state = domain.CaseState{}
	p.count = 0
	p.lastID = ""
}
