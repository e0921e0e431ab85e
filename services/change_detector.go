package services

import (
	"errors"
	"fmt"
	"sync/atomic"

	"superparty/listeners"
	"superparty/models"
)

// Snapshot is the current state of one scope, read back from the store
// right after a mutation committed.
type Snapshot struct {
	Scope   listeners.Scope
	Version uint64
	Heroes  []models.Hero
	Teams   []models.Team
	// Team is set for team scopes. A deleted team keeps its id and an
	// empty roster.
	Team models.Team
}

// ChangeDetector recomputes scope snapshots from the store. Every call
// reads committed state, so a snapshot is never older than the mutation
// that triggered it.
type ChangeDetector struct {
	store   *EntityStore
	version atomic.Uint64
}

func NewChangeDetector(store *EntityStore) *ChangeDetector {
	return &ChangeDetector{store: store}
}

// Version returns the last version handed out.
func (d *ChangeDetector) Version() uint64 {
	return d.version.Load()
}

// OnMutation recomputes the data for scope.
func (d *ChangeDetector) OnMutation(scope listeners.Scope) (Snapshot, error) {
	snap := Snapshot{Scope: scope}

	switch scope.Kind {
	case listeners.ScopeHeroes:
		heroes, err := d.store.FetchAllHeroes()
		if err != nil {
			return Snapshot{}, err
		}
		snap.Heroes = heroes

	case listeners.ScopeTeams:
		teams, err := d.store.FetchAllTeams()
		if err != nil {
			return Snapshot{}, err
		}
		snap.Teams = teams

	case listeners.ScopeTeam:
		team, err := d.store.FetchTeam(scope.TeamID)
		switch {
		case errors.Is(err, ErrTeamNotFound):
			snap.Team = models.Team{ID: scope.TeamID}
			snap.Heroes = []models.Hero{}
		case err != nil:
			return Snapshot{}, err
		default:
			heroes, err := d.store.FetchTeamHeroes(scope.TeamID)
			if err != nil {
				return Snapshot{}, err
			}
			snap.Team = *team
			snap.Team.Heroes = heroes
			snap.Heroes = heroes
		}

	default:
		return Snapshot{}, fmt.Errorf("unknown scope %v", scope)
	}

	snap.Version = d.version.Add(1)
	return snap, nil
}

// Deliver hands the snapshot to l through the callback matching its scope.
func (s Snapshot) Deliver(l listeners.Listener, change listeners.ChangeKind) {
	switch s.Scope.Kind {
	case listeners.ScopeHeroes:
		l.OnHeroesChanged(change, s.Heroes)
	case listeners.ScopeTeams:
		l.OnTeamsChanged(change, s.Teams)
	case listeners.ScopeTeam:
		l.OnTeamRosterChanged(change, s.Team, s.Heroes)
	}
}
