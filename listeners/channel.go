package listeners

import (
	"sync/atomic"

	"superparty/models"
)

type EventType string

const (
	EventHeroes EventType = "heroes"
	EventTeams  EventType = "teams"
	EventRoster EventType = "roster"
)

// Event is the value a ChannelListener emits for each callback.
type Event struct {
	Type   EventType     `json:"type"`
	Change ChangeKind    `json:"change"`
	Heroes []models.Hero `json:"heroes,omitempty"`
	Teams  []models.Team `json:"teams,omitempty"`
	Team   *models.Team  `json:"team,omitempty"`
}

// ChannelListener turns callbacks into Events on a buffered channel.
// Sends never block; when the buffer is full the event is dropped.
type ChannelListener struct {
	ch      chan Event
	dropped atomic.Uint64
}

func NewChannelListener(buffer int) *ChannelListener {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelListener{ch: make(chan Event, buffer)}
}

// C returns the event channel. It is never closed.
func (c *ChannelListener) C() <-chan Event {
	return c.ch
}

// Dropped returns how many events were discarded on a full buffer.
func (c *ChannelListener) Dropped() uint64 {
	return c.dropped.Load()
}

func (c *ChannelListener) send(ev Event) {
	select {
	case c.ch <- ev:
	default:
		c.dropped.Add(1)
	}
}

func (c *ChannelListener) OnHeroesChanged(change ChangeKind, heroes []models.Hero) {
	c.send(Event{Type: EventHeroes, Change: change, Heroes: heroes})
}

func (c *ChannelListener) OnTeamsChanged(change ChangeKind, teams []models.Team) {
	c.send(Event{Type: EventTeams, Change: change, Teams: teams})
}

func (c *ChannelListener) OnTeamRosterChanged(change ChangeKind, team models.Team, heroes []models.Hero) {
	c.send(Event{Type: EventRoster, Change: change, Team: &team, Heroes: heroes})
}
