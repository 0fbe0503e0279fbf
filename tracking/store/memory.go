// Package store provides tracking.Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/readiness-engine/tracking"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	personnel   map[tracking.PersonnelID]tracking.Personnel
	links       map[tracking.TelegramID]tracking.Link
	completions map[scopedKey]tracking.Completion
	deferments  map[scopedKey]tracking.Deferment
}

type scopedKey struct {
	PersonnelID tracking.PersonnelID
	WindowYear  int
}

func NewMemory() *Memory {
	return &Memory{
		personnel:   make(map[tracking.PersonnelID]tracking.Personnel),
		links:       make(map[tracking.TelegramID]tracking.Link),
		completions: make(map[scopedKey]tracking.Completion),
		deferments:  make(map[scopedKey]tracking.Deferment),
	}
}

// Personnel

func (m *Memory) GetPersonnel(_ context.Context, id tracking.PersonnelID) (*tracking.Personnel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.personnel[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (m *Memory) UpsertPersonnel(_ context.Context, p tracking.Personnel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.personnel[p.ID] = p
	return nil
}

func (m *Memory) ListPersonnel(_ context.Context) ([]tracking.Personnel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]tracking.Personnel, 0, len(m.personnel))
	for _, p := range m.personnel {
		out = append(out, p)
	}
	return out, nil
}

// DeletePersonnel cascades to links, completions and deferments atomically
// under the single store lock.
func (m *Memory) DeletePersonnel(_ context.Context, id tracking.PersonnelID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.personnel, id)
	for tid, l := range m.links {
		if l.PersonnelID == id {
			delete(m.links, tid)
		}
	}
	for k := range m.completions {
		if k.PersonnelID == id {
			delete(m.completions, k)
		}
	}
	for k := range m.deferments {
		if k.PersonnelID == id {
			delete(m.deferments, k)
		}
	}
	return nil
}

// Links

func (m *Memory) GetLink(_ context.Context, id tracking.TelegramID) (*tracking.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if l, ok := m.links[id]; ok {
		return &l, nil
	}
	return nil, nil
}

func (m *Memory) GetLinkByPersonnel(_ context.Context, id tracking.PersonnelID) (*tracking.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.links {
		if l.PersonnelID == id {
			out := l
			return &out, nil
		}
	}
	return nil, nil
}

func (m *Memory) UpsertLink(_ context.Context, l tracking.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// One personnel per chat identity in each direction: drop any other
	// link already bound to the same personnel before writing.
	for tid, existing := range m.links {
		if existing.PersonnelID == l.PersonnelID && tid != l.TelegramID {
			delete(m.links, tid)
		}
	}
	m.links[l.TelegramID] = l
	return nil
}

func (m *Memory) DeleteLink(_ context.Context, id tracking.TelegramID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.links, id)
	return nil
}

func (m *Memory) ListLinks(_ context.Context) ([]tracking.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]tracking.Link, 0, len(m.links))
	for _, l := range m.links {
		out = append(out, l)
	}
	return out, nil
}

// Completions

func (m *Memory) GetCompletion(_ context.Context, id tracking.PersonnelID, windowYear int) (*tracking.Completion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.completions[scopedKey{id, windowYear}]; ok {
		return &c, nil
	}
	return nil, nil
}

func (m *Memory) UpsertCompletion(_ context.Context, c tracking.Completion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completions[scopedKey{c.PersonnelID, c.WindowYear}] = c
	return nil
}

func (m *Memory) DeleteCompletion(_ context.Context, id tracking.PersonnelID, windowYear int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.completions, scopedKey{id, windowYear})
	return nil
}

func (m *Memory) ListCompletions(_ context.Context, id tracking.PersonnelID) ([]tracking.Completion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []tracking.Completion
	for k, c := range m.completions {
		if k.PersonnelID == id {
			out = append(out, c)
		}
	}
	return out, nil
}

// Deferments

func (m *Memory) GetDeferment(_ context.Context, id tracking.PersonnelID, windowYear int) (*tracking.Deferment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.deferments[scopedKey{id, windowYear}]; ok {
		return &d, nil
	}
	return nil, nil
}

func (m *Memory) UpsertDeferment(_ context.Context, d tracking.Deferment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deferments[scopedKey{d.PersonnelID, d.WindowYear}] = d
	return nil
}

func (m *Memory) DeleteDeferment(_ context.Context, id tracking.PersonnelID, windowYear int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.deferments, scopedKey{id, windowYear})
	return nil
}

func (m *Memory) ListDeferments(_ context.Context, id tracking.PersonnelID) ([]tracking.Deferment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []tracking.Deferment
	for k, d := range m.deferments {
		if k.PersonnelID == id {
			out = append(out, d)
		}
	}
	return out, nil
}
