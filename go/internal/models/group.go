package models

import (
	"time"

	"github.com/google/uuid"
)

// Group represents a session: the athletes lifting together on one platform.
type Group struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Platform        string     `json:"platform"`
	WeighInTime     *time.Time `json:"weigh_in_time,omitempty"`
	CompetitionTime *time.Time `json:"competition_time,omitempty"`
	Athletes        []*Athlete `json:"athletes"`
}

// Athlete returns the athlete with the given id.
func (g *Group) Athlete(id uuid.UUID) (*Athlete, bool) {
	for _, a := range g.Athletes {
		if a.ID == id {
			return a, true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the group and its athletes.
func (g *Group) Clone() *Group {
	c := *g
	c.Athletes = make([]*Athlete, len(g.Athletes))
	for i, a := range g.Athletes {
		c.Athletes[i] = a.Clone()
	}
	return &c
}

// Platform identifies one physical competition area.
type Platform struct {
	Name string `json:"name"`
}
