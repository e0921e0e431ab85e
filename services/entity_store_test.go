package services

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"superparty/config"
	"superparty/database"
	"superparty/models"
)

func openTestDB(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DBDriver:        config.DriverSQLite,
		DBPath:          filepath.Join(t.TempDir(), "party.db"),
		LogFormat:       "text",
		MaxPartySize:    6,
		MaxTeams:        10,
		DefaultTeamName: config.DefaultTeamName,
	}
}

func newTestStore(t *testing.T, opts StoreOptions) *EntityStore {
	t.Helper()
	db, err := database.Open(openTestDB(t), nil)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close(db) })
	return NewEntityStore(db, opts, nil)
}

func mustHero(t *testing.T, s *EntityStore, name string) *models.Hero {
	t.Helper()
	h, err := s.CreateHero(name, "powers", models.UniverseMarvel)
	if err != nil {
		t.Fatalf("CreateHero(%q): %v", name, err)
	}
	return h
}

func mustTeam(t *testing.T, s *EntityStore, name string) *models.Team {
	t.Helper()
	team, err := s.CreateTeam(name)
	if err != nil {
		t.Fatalf("CreateTeam(%q): %v", name, err)
	}
	return team
}

func heroNames(heroes []models.Hero) []string {
	names := make([]string, len(heroes))
	for i, h := range heroes {
		names[i] = h.Name
	}
	return names
}

func TestFetchAllHeroesSortedCaseInsensitive(t *testing.T) {
	s := newTestStore(t, StoreOptions{})
	for _, n := range []string{"superman", "Aquaman", "batman", "Cyborg"} {
		mustHero(t, s, n)
	}

	heroes, err := s.FetchAllHeroes()
	if err != nil {
		t.Fatalf("FetchAllHeroes: %v", err)
	}
	want := []string{"Aquaman", "batman", "Cyborg", "superman"}
	got := heroNames(heroes)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestCreateDeleteHeroSequence(t *testing.T) {
	s := newTestStore(t, StoreOptions{})
	a := mustHero(t, s, "Alpha")
	b := mustHero(t, s, "Bravo")
	mustHero(t, s, "Charlie")

	if _, deleted, err := s.DeleteHero(b.ID); err != nil || !deleted {
		t.Fatalf("DeleteHero: deleted=%v err=%v", deleted, err)
	}
	if _, deleted, err := s.DeleteHero(b.ID); err != nil || deleted {
		t.Fatalf("second DeleteHero should be a no-op: deleted=%v err=%v", deleted, err)
	}
	mustHero(t, s, "Delta")
	if _, _, err := s.DeleteHero(a.ID); err != nil {
		t.Fatalf("DeleteHero: %v", err)
	}

	heroes, _ := s.FetchAllHeroes()
	got := heroNames(heroes)
	if len(got) != 2 || got[0] != "Charlie" || got[1] != "Delta" {
		t.Errorf("survivors = %v", got)
	}
}

func TestCreateHeroValidation(t *testing.T) {
	s := newTestStore(t, StoreOptions{})
	if _, err := s.CreateHero("   ", "x", models.UniverseDC); !errors.Is(err, ErrInvalidHero) {
		t.Errorf("blank name err = %v", err)
	}
	if _, err := s.CreateHero("Storm", "x", models.Universe(9)); !errors.Is(err, ErrInvalidHero) {
		t.Errorf("bad universe err = %v", err)
	}
	h, err := s.CreateHero("  Storm ", "Weather", models.UniverseMarvel)
	if err != nil {
		t.Fatalf("CreateHero: %v", err)
	}
	if h.Name != "Storm" || h.ID == 0 {
		t.Errorf("hero = %+v", h)
	}
}

func TestUpdateHero(t *testing.T) {
	s := newTestStore(t, StoreOptions{})
	h := mustHero(t, s, "Peter Parker")

	updated, err := s.UpdateHero(h.ID, "Spider-Man", "Spider Sense", models.UniverseMarvel)
	if err != nil {
		t.Fatalf("UpdateHero: %v", err)
	}
	if updated.Name != "Spider-Man" || updated.Abilities != "Spider Sense" {
		t.Errorf("updated = %+v", updated)
	}
	got, _ := s.FetchHero(h.ID)
	if got.Name != "Spider-Man" {
		t.Errorf("stored name = %q", got.Name)
	}
	if _, err := s.UpdateHero(9999, "Nobody", "", models.UniverseDC); !errors.Is(err, ErrHeroNotFound) {
		t.Errorf("missing hero err = %v", err)
	}
}

func TestAddHeroToTeamCapacityAndDuplicates(t *testing.T) {
	s := newTestStore(t, StoreOptions{MaxPartySize: 6})
	team := mustTeam(t, s, "Avengers")

	var heroes []*models.Hero
	for _, n := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		heroes = append(heroes, mustHero(t, s, n))
	}

	for i := 0; i < 6; i++ {
		before, _ := s.FetchTeamHeroes(team.ID)
		added, err := s.AddHeroToTeam(heroes[i].ID, team.ID)
		if err != nil || !added {
			t.Fatalf("add %d: added=%v err=%v", i, added, err)
		}
		after, _ := s.FetchTeamHeroes(team.ID)
		if len(after) != len(before)+1 {
			t.Fatalf("roster grew from %d to %d", len(before), len(after))
		}
	}

	added, err := s.AddHeroToTeam(heroes[6].ID, team.ID)
	if err != nil || added {
		t.Fatalf("7th add: added=%v err=%v, want false nil", added, err)
	}
	added, _ = s.AddHeroToTeam(heroes[6].ID, team.ID)
	if added {
		t.Fatal("repeated 7th add should keep failing")
	}

	roster, _ := s.FetchTeamHeroes(team.ID)
	if len(roster) != 6 {
		t.Fatalf("roster size = %d, want 6", len(roster))
	}

	if added, _ := s.AddHeroToTeam(heroes[0].ID, team.ID); added {
		t.Error("duplicate add should return false")
	}
}

func TestDuplicateAddOnNonFullTeam(t *testing.T) {
	s := newTestStore(t, StoreOptions{})
	team := mustTeam(t, s, "Justice League")
	h := mustHero(t, s, "Superman")

	if added, _ := s.AddHeroToTeam(h.ID, team.ID); !added {
		t.Fatal("first add should succeed")
	}
	if added, err := s.AddHeroToTeam(h.ID, team.ID); added || err != nil {
		t.Fatalf("duplicate add: added=%v err=%v", added, err)
	}
	roster, _ := s.FetchTeamHeroes(team.ID)
	if len(roster) != 1 {
		t.Errorf("roster size = %d, want 1", len(roster))
	}
}

func TestAddHeroToTeamUnknownIDs(t *testing.T) {
	s := newTestStore(t, StoreOptions{})
	team := mustTeam(t, s, "X-Men")
	h := mustHero(t, s, "Wolverine")

	if _, err := s.AddHeroToTeam(404, team.ID); !errors.Is(err, ErrHeroNotFound) {
		t.Errorf("unknown hero err = %v", err)
	}
	if _, err := s.AddHeroToTeam(h.ID, 404); !errors.Is(err, ErrTeamNotFound) {
		t.Errorf("unknown team err = %v", err)
	}
}

func TestRemoveThenAddRoundTrip(t *testing.T) {
	s := newTestStore(t, StoreOptions{})
	team := mustTeam(t, s, "Titans")
	h := mustHero(t, s, "Cyborg")
	s.AddHeroToTeam(h.ID, team.ID)

	removed, err := s.RemoveHeroFromTeam(h.ID, team.ID)
	if err != nil || !removed {
		t.Fatalf("remove: removed=%v err=%v", removed, err)
	}
	if removed, _ := s.RemoveHeroFromTeam(h.ID, team.ID); removed {
		t.Error("removing an absent hero should report false")
	}
	if added, _ := s.AddHeroToTeam(h.ID, team.ID); !added {
		t.Fatal("re-add should succeed")
	}
	roster, _ := s.FetchTeamHeroes(team.ID)
	if len(roster) != 1 || roster[0].ID != h.ID {
		t.Errorf("roster = %v", heroNames(roster))
	}
}

func TestDeleteHeroSeversMemberships(t *testing.T) {
	s := newTestStore(t, StoreOptions{})
	x := mustTeam(t, s, "X")
	y := mustTeam(t, s, "Y")
	z := mustTeam(t, s, "Z")
	h := mustHero(t, s, "Flash")
	other := mustHero(t, s, "Aquaman")
	s.AddHeroToTeam(h.ID, x.ID)
	s.AddHeroToTeam(h.ID, y.ID)
	s.AddHeroToTeam(other.ID, z.ID)

	teamIDs, deleted, err := s.DeleteHero(h.ID)
	if err != nil || !deleted {
		t.Fatalf("DeleteHero: %v", err)
	}
	if len(teamIDs) != 2 || teamIDs[0] != x.ID || teamIDs[1] != y.ID {
		t.Errorf("affected teams = %v", teamIDs)
	}
	for _, team := range []*models.Team{x, y} {
		roster, _ := s.FetchTeamHeroes(team.ID)
		if len(roster) != 0 {
			t.Errorf("team %s still has %v", team.Name, heroNames(roster))
		}
	}
	if roster, _ := s.FetchTeamHeroes(z.ID); len(roster) != 1 {
		t.Error("unrelated roster changed")
	}
}

func TestDeleteTeamKeepsHeroes(t *testing.T) {
	s := newTestStore(t, StoreOptions{})
	team := mustTeam(t, s, "Defenders")
	h := mustHero(t, s, "Daredevil")
	s.AddHeroToTeam(h.ID, team.ID)

	deleted, err := s.DeleteTeam(team.ID)
	if err != nil || !deleted {
		t.Fatalf("DeleteTeam: deleted=%v err=%v", deleted, err)
	}
	if _, err := s.FetchHero(h.ID); err != nil {
		t.Errorf("hero should survive team deletion: %v", err)
	}
	if ids, _ := s.TeamsForHero(h.ID); len(ids) != 0 {
		t.Errorf("membership rows left: %v", ids)
	}
	if deleted, err := s.DeleteTeam(team.ID); err != nil || deleted {
		t.Errorf("second DeleteTeam: deleted=%v err=%v", deleted, err)
	}
}

func TestTeamLimit(t *testing.T) {
	s := newTestStore(t, StoreOptions{MaxTeams: 2})
	mustTeam(t, s, "One")
	mustTeam(t, s, "Two")
	if _, err := s.CreateTeam("Three"); !errors.Is(err, ErrTeamLimitReached) {
		t.Fatalf("err = %v, want ErrTeamLimitReached", err)
	}
	if _, err := s.CreateTeam("  "); !errors.Is(err, ErrInvalidTeam) {
		t.Errorf("blank team err = %v", err)
	}
}

func TestDefaultTeamResolvedOnce(t *testing.T) {
	s := newTestStore(t, StoreOptions{DefaultTeamName: "Current Party"})

	first, err := s.DefaultTeam()
	if err != nil {
		t.Fatalf("DefaultTeam: %v", err)
	}
	second, err := s.DefaultTeam()
	if err != nil {
		t.Fatalf("DefaultTeam: %v", err)
	}
	if first.ID != second.ID || first.Name != "Current Party" {
		t.Errorf("first=%+v second=%+v", first, second)
	}
	if n, _ := s.CountTeams(); n != 1 {
		t.Errorf("CountTeams = %d, want 1", n)
	}
}

func TestDefaultTeamConcurrentResolution(t *testing.T) {
	s := newTestStore(t, StoreOptions{})

	const callers = 16
	ids := make([]uint, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			team, err := s.DefaultTeam()
			if err != nil {
				t.Errorf("DefaultTeam: %v", err)
				return
			}
			ids[i] = team.ID
		}()
	}
	wg.Wait()

	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("callers saw different default teams: %v", ids)
		}
	}
	if n, _ := s.CountTeams(); n != 1 {
		t.Errorf("CountTeams = %d, want 1", n)
	}
}

func TestDefaultTeamFoundByNameInFreshStore(t *testing.T) {
	s := newTestStore(t, StoreOptions{})
	existing, err := s.DefaultTeam()
	if err != nil {
		t.Fatal(err)
	}

	again := NewEntityStore(s.db, StoreOptions{}, nil)
	team, created, err := again.ResolveDefaultTeam()
	if err != nil {
		t.Fatalf("ResolveDefaultTeam: %v", err)
	}
	if created || team.ID != existing.ID {
		t.Errorf("created=%v id=%d, want existing %d", created, team.ID, existing.ID)
	}
}

func TestDefaultTeamDoesNotCountTowardLimit(t *testing.T) {
	s := newTestStore(t, StoreOptions{MaxTeams: 2})
	if _, err := s.DefaultTeam(); err != nil {
		t.Fatal(err)
	}
	mustTeam(t, s, "One")
	mustTeam(t, s, "Two")
	if _, err := s.CreateTeam("Three"); !errors.Is(err, ErrTeamLimitReached) {
		t.Fatalf("err = %v, want ErrTeamLimitReached", err)
	}
	if n, _ := s.CountTeams(); n != 3 {
		t.Errorf("CountTeams = %d, want 3", n)
	}
}

func TestDefaultTeamNameIsReserved(t *testing.T) {
	s := newTestStore(t, StoreOptions{})
	def, err := s.DefaultTeam()
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{def.Name, "  default team "} {
		if _, err := s.CreateTeam(name); !errors.Is(err, ErrInvalidTeam) {
			t.Errorf("CreateTeam(%q) err = %v, want ErrInvalidTeam", name, err)
		}
	}
	if n, _ := s.CountTeams(); n != 1 {
		t.Errorf("CountTeams = %d, want 1", n)
	}
}

func TestDeleteProtectsOnlyTheDefaultTeam(t *testing.T) {
	s := newTestStore(t, StoreOptions{})
	def, err := s.DefaultTeam()
	if err != nil {
		t.Fatal(err)
	}
	// A duplicate written behind the store's back is an ordinary team.
	dup := &models.Team{Name: def.Name}
	if err := s.db.Create(dup).Error; err != nil {
		t.Fatal(err)
	}

	if _, err := s.DeleteTeam(def.ID); !errors.Is(err, ErrDefaultTeamProtected) {
		t.Errorf("delete default: err = %v, want ErrDefaultTeamProtected", err)
	}
	if deleted, err := s.DeleteTeam(dup.ID); err != nil || !deleted {
		t.Errorf("delete duplicate: deleted=%v err=%v", deleted, err)
	}
	if again, _ := s.DefaultTeam(); again.ID != def.ID {
		t.Errorf("default team moved to %d, want %d", again.ID, def.ID)
	}
}

func TestDefaultTeamCannotBeDeleted(t *testing.T) {
	s := newTestStore(t, StoreOptions{})
	team, _ := s.DefaultTeam()
	if _, err := s.DeleteTeam(team.ID); !errors.Is(err, ErrDefaultTeamProtected) {
		t.Fatalf("err = %v, want ErrDefaultTeamProtected", err)
	}
}

func TestConcurrentAddsRespectCapacity(t *testing.T) {
	s := newTestStore(t, StoreOptions{MaxPartySize: 6})
	team := mustTeam(t, s, "Crowded")
	var heroes []*models.Hero
	for i := range 20 {
		heroes = append(heroes, mustHero(t, s, string(rune('A'+i))))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for _, h := range heroes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			added, err := s.AddHeroToTeam(h.ID, team.ID)
			if err != nil {
				t.Errorf("AddHeroToTeam: %v", err)
				return
			}
			if added {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 6 {
		t.Errorf("accepted = %d, want 6", accepted)
	}
	roster, _ := s.FetchTeamHeroes(team.ID)
	if len(roster) != 6 {
		t.Errorf("roster size = %d, want 6", len(roster))
	}
}

func TestSeedDefaultHeroes(t *testing.T) {
	s := newTestStore(t, StoreOptions{})
	n, err := s.SeedDefaultHeroes()
	if err != nil {
		t.Fatalf("SeedDefaultHeroes: %v", err)
	}
	if n != len(defaultHeroes) {
		t.Errorf("inserted %d, want %d", n, len(defaultHeroes))
	}
	if n, _ := s.SeedDefaultHeroes(); n != 0 {
		t.Errorf("second seed inserted %d, want 0", n)
	}
	if count, _ := s.CountHeroes(); count != int64(len(defaultHeroes)) {
		t.Errorf("CountHeroes = %d", count)
	}
}

func TestPersistenceErrorOnClosedDatabase(t *testing.T) {
	s := newTestStore(t, StoreOptions{})
	database.Close(s.db)

	_, err := s.CreateHero("Ghost", "Phasing", models.UniverseMarvel)
	if !IsPersistenceError(err) {
		t.Fatalf("err = %v, want PersistenceError", err)
	}
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Op != "create hero" {
		t.Errorf("pe = %+v", pe)
	}
}

func TestImportHeroes(t *testing.T) {
	s := newTestStore(t, StoreOptions{})
	heroes := []models.Hero{
		{Name: "Iron Man", Abilities: "Armor", Universe: models.UniverseMarvel},
		{Name: " Batgirl ", Abilities: "Hacking", Universe: models.UniverseDC},
		{Name: "Hulk", Universe: models.UniverseMarvel},
	}

	n, err := s.ImportHeroes(heroes, 2)
	if err != nil || n != 3 {
		t.Fatalf("ImportHeroes: n=%d err=%v", n, err)
	}
	all, _ := s.FetchAllHeroes()
	got := heroNames(all)
	if len(got) != 3 || got[0] != "Batgirl" {
		t.Errorf("heroes = %v", got)
	}

	bad := []models.Hero{{Name: "Valid", Universe: models.UniverseDC}, {Name: ""}}
	if _, err := s.ImportHeroes(bad, 0); !errors.Is(err, ErrInvalidHero) {
		t.Fatalf("err = %v, want ErrInvalidHero", err)
	}
	if count, _ := s.CountHeroes(); count != 3 {
		t.Errorf("partial import stored heroes: count %d", count)
	}
}
