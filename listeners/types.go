package listeners

import (
	"fmt"
	"strings"

	"superparty/models"
)

// ChangeKind says what happened to the data a callback carries.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeRemoved
	ChangeUpdated
)

func (c ChangeKind) String() string {
	switch c {
	case ChangeAdded:
		return "added"
	case ChangeRemoved:
		return "removed"
	case ChangeUpdated:
		return "updated"
	default:
		return fmt.Sprintf("change(%d)", int(c))
	}
}

func (c ChangeKind) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Interest is the slice of data a subscription wants to hear about.
type Interest int

const (
	InterestHeroes Interest = iota
	InterestTeam
	InterestTeams
	InterestAll
)

func (i Interest) String() string {
	switch i {
	case InterestHeroes:
		return "heroes"
	case InterestTeam:
		return "team"
	case InterestTeams:
		return "teams"
	case InterestAll:
		return "all"
	default:
		return fmt.Sprintf("interest(%d)", int(i))
	}
}

func (i Interest) valid() bool {
	return i >= InterestHeroes && i <= InterestAll
}

// ParseInterest maps "heroes", "team", "teams" or "all" to an Interest.
func ParseInterest(s string) (Interest, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "heroes":
		return InterestHeroes, nil
	case "team":
		return InterestTeam, nil
	case "teams":
		return InterestTeams, nil
	case "all":
		return InterestAll, nil
	}
	return 0, fmt.Errorf("unknown interest %q", s)
}

// ScopeKind is the category a change notification belongs to.
type ScopeKind int

const (
	ScopeHeroes ScopeKind = iota
	ScopeTeam
	ScopeTeams
)

// Scope identifies a stream of changes. TeamID is only set for ScopeTeam.
type Scope struct {
	Kind   ScopeKind
	TeamID uint
}

func HeroesScope() Scope {
	return Scope{Kind: ScopeHeroes}
}

func TeamsScope() Scope {
	return Scope{Kind: ScopeTeams}
}

func TeamScope(teamID uint) Scope {
	return Scope{Kind: ScopeTeam, TeamID: teamID}
}

func (s Scope) String() string {
	switch s.Kind {
	case ScopeHeroes:
		return "heroes"
	case ScopeTeams:
		return "teams"
	case ScopeTeam:
		return fmt.Sprintf("team/%d", s.TeamID)
	default:
		return fmt.Sprintf("scope(%d)", int(s.Kind))
	}
}

// Matches reports whether a subscription with this interest, tracking
// trackedTeam, should receive changes for scope.
func (i Interest) Matches(scope Scope, trackedTeam uint) bool {
	switch scope.Kind {
	case ScopeHeroes:
		return i == InterestHeroes || i == InterestAll
	case ScopeTeams:
		return i == InterestTeams || i == InterestAll
	case ScopeTeam:
		return i == InterestTeam && trackedTeam != 0 && trackedTeam == scope.TeamID
	}
	return false
}

// Listener is implemented by anything that wants change callbacks.
// Callbacks run on the goroutine that performed the mutation and must
// not block for long.
type Listener interface {
	OnHeroesChanged(change ChangeKind, heroes []models.Hero)
	OnTeamsChanged(change ChangeKind, teams []models.Team)
	OnTeamRosterChanged(change ChangeKind, team models.Team, heroes []models.Hero)
}

// Funcs adapts plain functions to Listener. Nil fields are ignored.
type Funcs struct {
	Heroes func(ChangeKind, []models.Hero)
	Teams  func(ChangeKind, []models.Team)
	Roster func(ChangeKind, models.Team, []models.Hero)
}

func (f *Funcs) OnHeroesChanged(change ChangeKind, heroes []models.Hero) {
	if f.Heroes != nil {
		f.Heroes(change, heroes)
	}
}

func (f *Funcs) OnTeamsChanged(change ChangeKind, teams []models.Team) {
	if f.Teams != nil {
		f.Teams(change, teams)
	}
}

func (f *Funcs) OnTeamRosterChanged(change ChangeKind, team models.Team, heroes []models.Hero) {
	if f.Roster != nil {
		f.Roster(change, team, heroes)
	}
}
