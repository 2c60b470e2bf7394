package roster

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/fieldofplay/go/internal/models"
)

// Memory keeps groups in process. Loaded groups are copies, so the field of
// play never shares athletes with the store.
type Memory struct {
	mu     sync.RWMutex
	groups map[uuid.UUID]*models.Group
}

func NewMemory() *Memory {
	return &Memory{groups: make(map[uuid.UUID]*models.Group)}
}

func (m *Memory) Migrate(context.Context) error { return nil }

func (m *Memory) SaveGroup(_ context.Context, g *models.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := g.Clone()
	for _, a := range c.Athletes {
		a.GroupID = c.ID
	}
	m.groups[g.ID] = c
	return nil
}

func (m *Memory) LoadGroup(_ context.Context, id uuid.UUID) (*models.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, id)
	}
	c := g.Clone()
	sort.SliceStable(c.Athletes, func(i, j int) bool {
		return c.Athletes[i].LotNumber < c.Athletes[j].LotNumber
	})
	return c, nil
}

func (m *Memory) ListGroups(context.Context) ([]*models.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Group, 0, len(m.groups))
	for _, g := range m.groups {
		c := *g
		c.Athletes = nil
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Platform != out[j].Platform {
			return out[i].Platform < out[j].Platform
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *Memory) PersistAttemptResult(_ context.Context, a *models.Athlete) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.groups {
		for i, stored := range g.Athletes {
			if stored.ID == a.ID {
				g.Athletes[i] = a.Clone()
				g.Athletes[i].GroupID = g.ID
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s", ErrAthleteNotFound, a.ID)
}
