// services/database_controller.go - Public surface over the store and listeners
package services

import (
	"errors"
	"log/slog"
	"sync"

	"superparty/listeners"
	"superparty/logging"
	"superparty/models"
)

// DatabaseController is the one entrypoint callers use. Each mutation
// commits through the EntityStore, recomputes the affected snapshots and
// notifies matching subscriptions.
type DatabaseController struct {
	store    *EntityStore
	detector *ChangeDetector
	registry *listeners.Registry
	logger   *slog.Logger

	// mu serializes mutate-and-recompute. Broadcasts run after it is
	// released so callbacks may call back into the controller.
	mu sync.Mutex
}

type pendingNotice struct {
	snap   Snapshot
	change listeners.ChangeKind
}

func NewDatabaseController(store *EntityStore, registry *listeners.Registry, logger *slog.Logger) *DatabaseController {
	if registry == nil {
		registry = listeners.NewRegistry(logger)
	}
	return &DatabaseController{
		store:    store,
		detector: NewChangeDetector(store),
		registry: registry,
		logger:   logging.Default(logger).With("component", "controller"),
	}
}

// Store exposes the underlying entity store.
func (c *DatabaseController) Store() *EntityStore {
	return c.store
}

// Registry exposes the listener registry.
func (c *DatabaseController) Registry() *listeners.Registry {
	return c.registry
}

// ================== SUBSCRIPTIONS ==================

// Subscribe registers l and immediately delivers the current state for
// its interest. A team-interest subscription with no TeamID tracks the
// default team.
func (c *DatabaseController) Subscribe(l listeners.Listener, opts listeners.Options) (*listeners.Subscription, error) {
	if opts.Interest == listeners.InterestTeam && opts.TeamID == 0 {
		team, err := c.DefaultTeam()
		if err != nil {
			return nil, err
		}
		opts.TeamID = team.ID
	}
	return c.registry.Register(l, opts, c.prime)
}

// Unsubscribe stops all deliveries to sub.
func (c *DatabaseController) Unsubscribe(sub *listeners.Subscription) {
	c.registry.Unregister(sub)
}

// Track retargets a team-interest subscription and delivers that team's
// current roster to it.
func (c *DatabaseController) Track(sub *listeners.Subscription, teamID uint) error {
	if _, err := c.store.FetchTeam(teamID); err != nil {
		return err
	}
	sub.Track(teamID)
	if sub.Interest() != listeners.InterestTeam {
		return nil
	}
	snap, err := c.snapshot(listeners.TeamScope(teamID))
	if err != nil {
		return err
	}
	c.registry.Deliver(sub, snap.Scope, snap.Version, func(l listeners.Listener) {
		snap.Deliver(l, listeners.ChangeUpdated)
	})
	return nil
}

func (c *DatabaseController) prime(sub *listeners.Subscription) {
	var scopes []listeners.Scope
	switch sub.Interest() {
	case listeners.InterestHeroes:
		scopes = []listeners.Scope{listeners.HeroesScope()}
	case listeners.InterestTeams:
		scopes = []listeners.Scope{listeners.TeamsScope()}
	case listeners.InterestAll:
		scopes = []listeners.Scope{listeners.HeroesScope(), listeners.TeamsScope()}
	case listeners.InterestTeam:
		scopes = []listeners.Scope{listeners.TeamScope(sub.TrackedTeam())}
	}

	// Every scope is captured before any delivery, so a mutation made from
	// inside an initial callback produces a newer version and the older
	// initial snapshot for that scope is dropped.
	snaps := make([]Snapshot, 0, len(scopes))
	c.mu.Lock()
	for _, scope := range scopes {
		snap, err := c.detector.OnMutation(scope)
		if err != nil {
			c.logger.Warn("initial state unavailable", "subscription", sub.ID(), "scope", scope, "error", err)
			continue
		}
		snaps = append(snaps, snap)
	}
	c.mu.Unlock()

	for _, snap := range snaps {
		c.registry.Deliver(sub, snap.Scope, snap.Version, func(l listeners.Listener) {
			snap.Deliver(l, listeners.ChangeUpdated)
		})
	}
}

func (c *DatabaseController) snapshot(scope listeners.Scope) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detector.OnMutation(scope)
}

// recompute builds notices for each scope. It must be called with mu held.
// A scope that cannot be read is logged and skipped; the mutation itself
// already committed.
func (c *DatabaseController) recompute(change listeners.ChangeKind, scopes ...listeners.Scope) []pendingNotice {
	notices := make([]pendingNotice, 0, len(scopes))
	for _, scope := range scopes {
		snap, err := c.detector.OnMutation(scope)
		if err != nil {
			c.logger.Error("recompute failed", "scope", scope, "error", err)
			continue
		}
		notices = append(notices, pendingNotice{snap: snap, change: change})
	}
	return notices
}

func (c *DatabaseController) notify(notices []pendingNotice) {
	for _, n := range notices {
		c.registry.Broadcast(n.snap.Scope, n.snap.Version, func(l listeners.Listener) {
			n.snap.Deliver(l, n.change)
		})
	}
}

// ================== HEROES ==================

func (c *DatabaseController) CreateHero(name, abilities string, universe models.Universe) (*models.Hero, error) {
	c.mu.Lock()
	hero, err := c.store.CreateHero(name, abilities, universe)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	notices := c.recompute(listeners.ChangeAdded, listeners.HeroesScope())
	c.mu.Unlock()

	c.notify(notices)
	return hero, nil
}

func (c *DatabaseController) UpdateHero(id uint, name, abilities string, universe models.Universe) (*models.Hero, error) {
	c.mu.Lock()
	hero, err := c.store.UpdateHero(id, name, abilities, universe)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	scopes := []listeners.Scope{listeners.HeroesScope()}
	if teamIDs, err := c.store.TeamsForHero(id); err != nil {
		c.logger.Error("lookup hero teams", "hero", id, "error", err)
	} else {
		for _, teamID := range teamIDs {
			scopes = append(scopes, listeners.TeamScope(teamID))
		}
	}
	notices := c.recompute(listeners.ChangeUpdated, scopes...)
	c.mu.Unlock()

	c.notify(notices)
	return hero, nil
}

// DeleteHero removes a hero everywhere. Each team that lost the hero gets
// its own roster notification.
func (c *DatabaseController) DeleteHero(id uint) error {
	c.mu.Lock()
	teamIDs, deleted, err := c.store.DeleteHero(id)
	if err != nil || !deleted {
		c.mu.Unlock()
		return err
	}
	scopes := []listeners.Scope{listeners.HeroesScope()}
	for _, teamID := range teamIDs {
		scopes = append(scopes, listeners.TeamScope(teamID))
	}
	notices := c.recompute(listeners.ChangeRemoved, scopes...)
	c.mu.Unlock()

	c.notify(notices)
	return nil
}

// ImportHeroes stores heroes in bulk and notifies heroes listeners once.
func (c *DatabaseController) ImportHeroes(heroes []models.Hero) (int, error) {
	c.mu.Lock()
	n, err := c.store.ImportHeroes(heroes, 0)
	if err != nil || n == 0 {
		c.mu.Unlock()
		return n, err
	}
	notices := c.recompute(listeners.ChangeAdded, listeners.HeroesScope())
	c.mu.Unlock()

	c.notify(notices)
	return n, nil
}

func (c *DatabaseController) Heroes() ([]models.Hero, error) {
	return c.store.FetchAllHeroes()
}

func (c *DatabaseController) Hero(id uint) (*models.Hero, error) {
	return c.store.FetchHero(id)
}

// ================== TEAMS ==================

func (c *DatabaseController) CreateTeam(name string) (*models.Team, error) {
	c.mu.Lock()
	team, err := c.store.CreateTeam(name)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	notices := c.recompute(listeners.ChangeAdded, listeners.TeamsScope())
	c.mu.Unlock()

	c.notify(notices)
	return team, nil
}

// DeleteTeam removes a team. Subscriptions tracking it receive a final
// roster notification with an empty roster.
func (c *DatabaseController) DeleteTeam(id uint) error {
	c.mu.Lock()
	deleted, err := c.store.DeleteTeam(id)
	if err != nil || !deleted {
		c.mu.Unlock()
		return err
	}
	notices := c.recompute(listeners.ChangeRemoved, listeners.TeamsScope(), listeners.TeamScope(id))
	c.mu.Unlock()

	c.notify(notices)
	return nil
}

func (c *DatabaseController) Teams() ([]models.Team, error) {
	return c.store.FetchAllTeams()
}

// Team returns a team with its roster filled in.
func (c *DatabaseController) Team(id uint) (*models.Team, error) {
	team, err := c.store.FetchTeam(id)
	if err != nil {
		return nil, err
	}
	if team.Heroes, err = c.store.FetchTeamHeroes(id); err != nil {
		return nil, err
	}
	return team, nil
}

func (c *DatabaseController) TeamHeroes(teamID uint) ([]models.Hero, error) {
	if _, err := c.store.FetchTeam(teamID); err != nil {
		return nil, err
	}
	return c.store.FetchTeamHeroes(teamID)
}

// DefaultTeam returns the default party, creating it on first use. The
// creation is announced to teams listeners like any other new team.
func (c *DatabaseController) DefaultTeam() (*models.Team, error) {
	c.mu.Lock()
	team, created, err := c.store.ResolveDefaultTeam()
	if err != nil || !created {
		c.mu.Unlock()
		return team, err
	}
	notices := c.recompute(listeners.ChangeAdded, listeners.TeamsScope())
	c.mu.Unlock()

	c.notify(notices)
	return team, nil
}

// ================== ROSTERS ==================

// AddHeroToTeam reports false when the party is full or already has the
// hero. That is a normal outcome, not an error.
func (c *DatabaseController) AddHeroToTeam(heroID, teamID uint) (bool, error) {
	c.mu.Lock()
	added, err := c.store.AddHeroToTeam(heroID, teamID)
	if err != nil || !added {
		c.mu.Unlock()
		return false, err
	}
	notices := c.recompute(listeners.ChangeAdded, listeners.TeamScope(teamID))
	c.mu.Unlock()

	c.notify(notices)
	return true, nil
}

func (c *DatabaseController) RemoveHeroFromTeam(heroID, teamID uint) error {
	c.mu.Lock()
	removed, err := c.store.RemoveHeroFromTeam(heroID, teamID)
	if err != nil || !removed {
		c.mu.Unlock()
		return err
	}
	notices := c.recompute(listeners.ChangeRemoved, listeners.TeamScope(teamID))
	c.mu.Unlock()

	c.notify(notices)
	return nil
}

// PruneOrphans removes roster slots left behind by rows deleted outside
// the store. Teams that lost heroes are notified.
func (c *DatabaseController) PruneOrphans() (int64, error) {
	c.mu.Lock()
	teamIDs, removed, err := c.store.PruneOrphanMemberships()
	if err != nil || removed == 0 {
		c.mu.Unlock()
		return removed, err
	}
	scopes := make([]listeners.Scope, 0, len(teamIDs))
	for _, teamID := range teamIDs {
		scopes = append(scopes, listeners.TeamScope(teamID))
	}
	notices := c.recompute(listeners.ChangeRemoved, scopes...)
	c.mu.Unlock()

	c.notify(notices)
	return removed, nil
}

// AddHeroToDefaultTeam is the "add to current party" shortcut.
func (c *DatabaseController) AddHeroToDefaultTeam(heroID uint) (bool, error) {
	team, err := c.DefaultTeam()
	if err != nil {
		return false, err
	}
	return c.AddHeroToTeam(heroID, team.ID)
}

// Bootstrap resolves the default team and, when seed is set, fills an
// empty hero table with the stock heroes.
func (c *DatabaseController) Bootstrap(seed bool) error {
	if _, err := c.DefaultTeam(); err != nil {
		return err
	}
	if !seed {
		return nil
	}
	c.mu.Lock()
	n, err := c.store.SeedDefaultHeroes()
	if err != nil || n == 0 {
		c.mu.Unlock()
		return err
	}
	notices := c.recompute(listeners.ChangeAdded, listeners.HeroesScope())
	c.mu.Unlock()

	c.notify(notices)
	return nil
}

// IsNotFound reports whether err means a hero or team does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrHeroNotFound) || errors.Is(err, ErrTeamNotFound)
}
