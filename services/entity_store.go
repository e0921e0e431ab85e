// services/entity_store.go - Hero and team persistence
package services

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"superparty/logging"
	"superparty/models"

	"gorm.io/gorm"
)

// StoreOptions are the limits and names the store enforces.
type StoreOptions struct {
	MaxPartySize    int
	MaxTeams        int // 0 means unlimited
	DefaultTeamName string
}

// EntityStore owns hero, team and roster records. Every mutation commits
// in its own transaction before returning.
type EntityStore struct {
	db     *gorm.DB
	opts   StoreOptions
	logger *slog.Logger

	// writeMu serializes mutations so roster capacity checks and inserts
	// are not interleaved.
	writeMu sync.Mutex

	defaultMu     sync.Mutex
	defaultTeamID uint
}

func NewEntityStore(db *gorm.DB, opts StoreOptions, logger *slog.Logger) *EntityStore {
	if opts.MaxPartySize <= 0 {
		opts.MaxPartySize = 6
	}
	if opts.DefaultTeamName == "" {
		opts.DefaultTeamName = "Default Team"
	}
	return &EntityStore{
		db:     db,
		opts:   opts,
		logger: logging.Default(logger).With("component", "store"),
	}
}

// Options returns the limits the store was built with.
func (s *EntityStore) Options() StoreOptions {
	return s.opts
}

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, ErrHeroNotFound) || errors.Is(err, ErrTeamNotFound) ||
		errors.Is(err, ErrTeamLimitReached) || errors.Is(err, ErrDefaultTeamProtected) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func validateHero(name string, universe models.Universe) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidHero)
	}
	if !universe.Valid() {
		return "", fmt.Errorf("%w: unknown universe %d", ErrInvalidHero, int32(universe))
	}
	return name, nil
}

// ================== HERO OPERATIONS ==================

// CreateHero inserts a new hero.
func (s *EntityStore) CreateHero(name, abilities string, universe models.Universe) (*models.Hero, error) {
	name, err := validateHero(name, universe)
	if err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	hero := &models.Hero{
		Name:      name,
		Abilities: abilities,
		Universe:  universe,
	}
	if err := s.db.Create(hero).Error; err != nil {
		return nil, persistErr("create hero", err)
	}

	s.logger.Debug("hero created", "hero", hero.ID, "name", hero.Name)
	return hero, nil
}

// UpdateHero replaces the mutable fields of a hero.
func (s *EntityStore) UpdateHero(id uint, name, abilities string, universe models.Universe) (*models.Hero, error) {
	name, err := validateHero(name, universe)
	if err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var hero models.Hero
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&hero, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrHeroNotFound
			}
			return err
		}
		hero.Name = name
		hero.Abilities = abilities
		hero.Universe = universe
		return tx.Save(&hero).Error
	})
	if err != nil {
		return nil, persistErr("update hero", err)
	}
	return &hero, nil
}

// DeleteHero removes a hero and every roster slot it holds. It returns the
// teams the hero was removed from. An absent hero is not an error.
func (s *EntityStore) DeleteHero(id uint) (teamIDs []uint, deleted bool, err error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var hero models.Hero
		if err := tx.First(&hero, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		if err := tx.Model(&models.TeamHero{}).
			Where("hero_id = ?", id).
			Order("team_id ASC").
			Pluck("team_id", &teamIDs).Error; err != nil {
			return err
		}

		if err := tx.Where("hero_id = ?", id).Delete(&models.TeamHero{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&hero).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return nil, false, persistErr("delete hero", err)
	}
	if deleted {
		s.logger.Debug("hero deleted", "hero", id, "teams", len(teamIDs))
	}
	return teamIDs, deleted, nil
}

// FetchHero returns one hero.
func (s *EntityStore) FetchHero(id uint) (*models.Hero, error) {
	var hero models.Hero
	if err := s.db.First(&hero, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHeroNotFound
		}
		return nil, persistErr("fetch hero", err)
	}
	return &hero, nil
}

// FetchAllHeroes returns every hero sorted by name, case-insensitively.
func (s *EntityStore) FetchAllHeroes() ([]models.Hero, error) {
	heroes := []models.Hero{}
	if err := s.db.Order("LOWER(name) ASC, id ASC").Find(&heroes).Error; err != nil {
		return nil, persistErr("fetch heroes", err)
	}
	return heroes, nil
}

// CountHeroes returns the number of stored heroes.
func (s *EntityStore) CountHeroes() (int64, error) {
	var count int64
	if err := s.db.Model(&models.Hero{}).Count(&count).Error; err != nil {
		return 0, persistErr("count heroes", err)
	}
	return count, nil
}

// TeamsForHero returns the ids of teams whose roster holds the hero.
func (s *EntityStore) TeamsForHero(heroID uint) ([]uint, error) {
	ids := []uint{}
	if err := s.db.Model(&models.TeamHero{}).
		Where("hero_id = ?", heroID).
		Order("team_id ASC").
		Pluck("team_id", &ids).Error; err != nil {
		return nil, persistErr("fetch hero teams", err)
	}
	return ids, nil
}

// ================== TEAM OPERATIONS ==================

// CreateTeam inserts a new, empty team. The default team's name is
// reserved, and the default team does not count against MaxTeams.
func (s *EntityStore) CreateTeam(name string) (*models.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidTeam)
	}
	if strings.EqualFold(name, s.opts.DefaultTeamName) {
		return nil, fmt.Errorf("%w: %q is reserved for the default team", ErrInvalidTeam, name)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	team := &models.Team{Name: name}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if s.opts.MaxTeams > 0 {
			var count int64
			if err := tx.Model(&models.Team{}).Where("name <> ?", s.opts.DefaultTeamName).Count(&count).Error; err != nil {
				return err
			}
			if count >= int64(s.opts.MaxTeams) {
				return ErrTeamLimitReached
			}
		}
		return tx.Create(team).Error
	})
	if err != nil {
		return nil, persistErr("create team", err)
	}

	s.logger.Debug("team created", "team", team.ID, "name", team.Name)
	return team, nil
}

// DeleteTeam removes a team and its roster slots; the heroes stay.
// An absent team is not an error.
func (s *EntityStore) DeleteTeam(id uint) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deleted := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var team models.Team
		if err := tx.First(&team, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		defaultID, err := s.defaultTeamIDTx(tx)
		if err != nil {
			return err
		}
		if team.ID == defaultID {
			return ErrDefaultTeamProtected
		}
		if err := tx.Where("team_id = ?", id).Delete(&models.TeamHero{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&team).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, persistErr("delete team", err)
	}
	return deleted, nil
}

// defaultTeamIDTx returns the id ResolveDefaultTeam settles on: the
// oldest team carrying the default name. It is 0 when there is none.
func (s *EntityStore) defaultTeamIDTx(tx *gorm.DB) (uint, error) {
	var ids []uint
	err := tx.Model(&models.Team{}).
		Where("name = ?", s.opts.DefaultTeamName).
		Order("id ASC").
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return 0, err
	}
	return ids[0], nil
}

// FetchTeam returns one team without its roster.
func (s *EntityStore) FetchTeam(id uint) (*models.Team, error) {
	var team models.Team
	if err := s.db.First(&team, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, persistErr("fetch team", err)
	}
	return &team, nil
}

// FetchAllTeams returns every team sorted by name, case-insensitively.
func (s *EntityStore) FetchAllTeams() ([]models.Team, error) {
	teams := []models.Team{}
	if err := s.db.Order("LOWER(name) ASC, id ASC").Find(&teams).Error; err != nil {
		return nil, persistErr("fetch teams", err)
	}
	return teams, nil
}

// CountTeams returns the number of stored teams.
func (s *EntityStore) CountTeams() (int64, error) {
	var count int64
	if err := s.db.Model(&models.Team{}).Count(&count).Error; err != nil {
		return 0, persistErr("count teams", err)
	}
	return count, nil
}

// FetchTeamHeroes returns a team's roster sorted by name.
func (s *EntityStore) FetchTeamHeroes(teamID uint) ([]models.Hero, error) {
	heroes := []models.Hero{}
	err := s.db.
		Joins("JOIN team_heroes ON team_heroes.hero_id = heroes.id").
		Where("team_heroes.team_id = ?", teamID).
		Order("LOWER(heroes.name) ASC, heroes.id ASC").
		Find(&heroes).Error
	if err != nil {
		return nil, persistErr("fetch roster", err)
	}
	return heroes, nil
}

// ================== ROSTER OPERATIONS ==================

// AddHeroToTeam puts a hero on a team's roster. It returns false, without
// error, when the hero is already there or the roster is full.
func (s *EntityStore) AddHeroToTeam(heroID, teamID uint) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	added := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &models.Hero{}, heroID, ErrHeroNotFound); err != nil {
			return err
		}
		if err := exists(tx, &models.Team{}, teamID, ErrTeamNotFound); err != nil {
			return err
		}

		var present int64
		if err := tx.Model(&models.TeamHero{}).
			Where("team_id = ? AND hero_id = ?", teamID, heroID).
			Count(&present).Error; err != nil {
			return err
		}
		if present > 0 {
			return nil
		}

		var size int64
		if err := tx.Model(&models.TeamHero{}).Where("team_id = ?", teamID).Count(&size).Error; err != nil {
			return err
		}
		if size >= int64(s.opts.MaxPartySize) {
			return nil
		}

		if err := tx.Create(&models.TeamHero{TeamID: teamID, HeroID: heroID}).Error; err != nil {
			return err
		}
		added = true
		return nil
	})
	if err != nil {
		return false, persistErr("add hero to team", err)
	}
	return added, nil
}

// RemoveHeroFromTeam drops a hero from a roster. It reports whether a
// slot was actually removed.
func (s *EntityStore) RemoveHeroFromTeam(heroID, teamID uint) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res := s.db.Where("team_id = ? AND hero_id = ?", teamID, heroID).Delete(&models.TeamHero{})
	if res.Error != nil {
		return false, persistErr("remove hero from team", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// orphanMembership matches roster slots whose hero or team row is gone.
const orphanMembership = "hero_id NOT IN (SELECT id FROM heroes) OR team_id NOT IN (SELECT id FROM teams)"

// PruneOrphanMemberships deletes roster slots that point at a missing hero
// or team. It returns the surviving teams that lost heroes.
func (s *EntityStore) PruneOrphanMemberships() (teamIDs []uint, removed int64, err error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.TeamHero{}).
			Where("hero_id NOT IN (SELECT id FROM heroes)").
			Where("team_id IN (SELECT id FROM teams)").
			Order("team_id ASC").
			Pluck("team_id", &teamIDs).Error; err != nil {
			return err
		}
		res := tx.Where(orphanMembership).Delete(&models.TeamHero{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		return nil
	})
	if err != nil {
		return nil, 0, persistErr("prune memberships", err)
	}
	if removed > 0 {
		s.logger.Info("pruned orphaned roster slots", "removed", removed, "teams", len(teamIDs))
	}
	return slices.Compact(teamIDs), removed, nil
}

// ================== DEFAULT TEAM ==================

// DefaultTeam returns the team named DefaultTeamName, creating it on
// first use. Concurrent callers always get the same team.
func (s *EntityStore) DefaultTeam() (*models.Team, error) {
	team, _, err := s.ResolveDefaultTeam()
	return team, err
}

// ResolveDefaultTeam is DefaultTeam that also reports whether this call
// created the team.
func (s *EntityStore) ResolveDefaultTeam() (*models.Team, bool, error) {
	s.defaultMu.Lock()
	defer s.defaultMu.Unlock()

	if s.defaultTeamID != 0 {
		team, err := s.FetchTeam(s.defaultTeamID)
		if err == nil {
			return team, false, nil
		}
		if !errors.Is(err, ErrTeamNotFound) {
			return nil, false, err
		}
		s.defaultTeamID = 0
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var team models.Team
	created := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("name = ?", s.opts.DefaultTeamName).Order("id ASC").First(&team).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		// The default team does not count against MaxTeams.
		team = models.Team{Name: s.opts.DefaultTeamName}
		if err := tx.Create(&team).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, persistErr("resolve default team", err)
	}
	if created {
		s.logger.Info("default team created", "team", team.ID, "name", team.Name)
	}

	s.defaultTeamID = team.ID
	return &team, created, nil
}

// ImportHeroes validates and inserts heroes in batches inside a single
// transaction. Either every hero is stored or none is.
func (s *EntityStore) ImportHeroes(heroes []models.Hero, batchSize int) (int, error) {
	if len(heroes) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = 500
	}

	batch := make([]models.Hero, len(heroes))
	for i, h := range heroes {
		name, err := validateHero(h.Name, h.Universe)
		if err != nil {
			return 0, fmt.Errorf("hero %d: %w", i+1, err)
		}
		batch[i] = models.Hero{Name: name, Abilities: h.Abilities, Universe: h.Universe}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&batch, batchSize).Error
	}); err != nil {
		return 0, persistErr("import heroes", err)
	}
	s.logger.Info("imported heroes", "count", len(batch))
	return len(batch), nil
}

// ================== SEEDING ==================

var defaultHeroes = []models.Hero{
	{Name: "Bruce Wayne", Abilities: "Money", Universe: models.UniverseDC},
	{Name: "Superman", Abilities: "Super Powered Alien", Universe: models.UniverseDC},
	{Name: "Wonder Woman", Abilities: "Goddess", Universe: models.UniverseDC},
	{Name: "The Flash", Abilities: "Speed", Universe: models.UniverseDC},
	{Name: "Green Lantern", Abilities: "Power Ring", Universe: models.UniverseDC},
	{Name: "Cyborg", Abilities: "Robot Beep Beep", Universe: models.UniverseDC},
	{Name: "Aquaman", Abilities: "Atlantian", Universe: models.UniverseDC},
	{Name: "Captain Marvel", Abilities: "Superhuman Strength", Universe: models.UniverseMarvel},
	{Name: "Spider-Man", Abilities: "Spider Sense", Universe: models.UniverseMarvel},
}

// SeedDefaultHeroes fills an empty hero table with the stock roster and
// returns how many heroes were inserted.
func (s *EntityStore) SeedDefaultHeroes() (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	inserted := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Hero{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		heroes := make([]models.Hero, len(defaultHeroes))
		copy(heroes, defaultHeroes)
		if err := tx.Create(&heroes).Error; err != nil {
			return err
		}
		inserted = len(heroes)
		return nil
	})
	if err != nil {
		return 0, persistErr("seed heroes", err)
	}
	if inserted > 0 {
		s.logger.Info("seeded default heroes", "count", inserted)
	}
	return inserted, nil
}

// ================== HELPER FUNCTIONS ==================

func exists(tx *gorm.DB, model any, id uint, notFound error) error {
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return notFound
	}
	return nil
}
