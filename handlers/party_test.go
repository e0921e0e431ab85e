package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"superparty/config"
	"superparty/database"
	"superparty/listeners"
	"superparty/middleware"
	"superparty/services"

	"github.com/gofiber/fiber/v2"
)

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Added   *bool           `json:"added"`
	Count   int             `json:"count"`
	Removed *int64          `json:"removed"`
	Hero    json.RawMessage `json:"hero"`
	Team    json.RawMessage `json:"team"`
	Heroes  []struct {
		ID   uint   `json:"id"`
		Name string `json:"name"`
	} `json:"heroes"`
}

func newTestApp(t *testing.T, limiter *middleware.RateLimiter) (*fiber.App, *services.DatabaseController) {
	t.Helper()
	cfg := &config.Config{
		DBDriver:        config.DriverSQLite,
		DBPath:          filepath.Join(t.TempDir(), "party.db"),
		LogFormat:       "text",
		MaxPartySize:    6,
		MaxTeams:        3,
		DefaultTeamName: config.DefaultTeamName,
	}
	db, err := database.Open(cfg, nil)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close(db) })

	store := services.NewEntityStore(db, services.StoreOptions{
		MaxPartySize:    cfg.MaxPartySize,
		MaxTeams:        cfg.MaxTeams,
		DefaultTeamName: cfg.DefaultTeamName,
	}, nil)
	ctrl := services.NewDatabaseController(store, nil, nil)
	cleanup := services.NewCleanupService(ctrl, 0, nil)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(false)})
	NewPartyHandler(ctrl, cleanup, nil, false).Routes(app, limiter)
	return app, ctrl
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, env
}

func createHero(t *testing.T, app *fiber.App, name string) uint {
	t.Helper()
	status, env := do(t, app, fiber.MethodPost, "/api/heroes",
		fmt.Sprintf(`{"name":%q,"abilities":"powers","universe":"marvel"}`, name))
	if status != fiber.StatusCreated {
		t.Fatalf("create hero %q: status %d (%s)", name, status, env.Error)
	}
	var hero struct {
		ID uint `json:"id"`
	}
	json.Unmarshal(env.Hero, &hero)
	return hero.ID
}

func createTeam(t *testing.T, app *fiber.App, name string) uint {
	t.Helper()
	status, env := do(t, app, fiber.MethodPost, "/api/teams", fmt.Sprintf(`{"name":%q}`, name))
	if status != fiber.StatusCreated {
		t.Fatalf("create team %q: status %d (%s)", name, status, env.Error)
	}
	var team struct {
		ID uint `json:"id"`
	}
	json.Unmarshal(env.Team, &team)
	return team.ID
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t, nil)
	status, _ := do(t, app, fiber.MethodGet, "/health", "")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
}

func TestHeroLifecycle(t *testing.T) {
	app, _ := newTestApp(t, nil)

	createHero(t, app, "wolverine")
	id := createHero(t, app, "Beast")

	status, env := do(t, app, fiber.MethodGet, "/api/heroes", "")
	if status != fiber.StatusOK || env.Count != 2 {
		t.Fatalf("list: status %d count %d", status, env.Count)
	}
	if env.Heroes[0].Name != "Beast" {
		t.Errorf("heroes not sorted: %+v", env.Heroes)
	}

	status, _ = do(t, app, fiber.MethodPut, fmt.Sprintf("/api/heroes/%d", id),
		`{"name":"Hank McCoy","abilities":"Genius","universe":"marvel"}`)
	if status != fiber.StatusOK {
		t.Fatalf("update: status %d", status)
	}

	status, _ = do(t, app, fiber.MethodDelete, fmt.Sprintf("/api/heroes/%d", id), "")
	if status != fiber.StatusOK {
		t.Fatalf("delete: status %d", status)
	}
	status, _ = do(t, app, fiber.MethodGet, fmt.Sprintf("/api/heroes/%d", id), "")
	if status != fiber.StatusNotFound {
		t.Errorf("get deleted hero: status %d", status)
	}
}

func TestHeroValidationErrors(t *testing.T) {
	app, _ := newTestApp(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"missing name", fiber.MethodPost, "/api/heroes", `{"name":"","universe":"dc"}`, fiber.StatusBadRequest},
		{"bad universe", fiber.MethodPost, "/api/heroes", `{"name":"Nova","universe":"image"}`, fiber.StatusBadRequest},
		{"bad body", fiber.MethodPost, "/api/heroes", `{`, fiber.StatusBadRequest},
		{"bad id", fiber.MethodGet, "/api/heroes/abc", "", fiber.StatusBadRequest},
		{"unknown hero", fiber.MethodPut, "/api/heroes/99", `{"name":"X","universe":"dc"}`, fiber.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := do(t, app, tt.method, tt.path, tt.body)
			if status != tt.want {
				t.Errorf("status %d, want %d", status, tt.want)
			}
			if env.Success {
				t.Error("expected success=false")
			}
		})
	}
}

func TestRosterAdmission(t *testing.T) {
	app, _ := newTestApp(t, nil)
	teamID := createTeam(t, app, "Avengers")

	var heroes []uint
	for i := range 7 {
		heroes = append(heroes, createHero(t, app, fmt.Sprintf("Hero %d", i)))
	}

	for _, id := range heroes[:6] {
		status, env := do(t, app, fiber.MethodPost, fmt.Sprintf("/api/teams/%d/heroes/%d", teamID, id), "")
		if status != fiber.StatusOK || env.Added == nil || !*env.Added {
			t.Fatalf("add %d: status %d added %v", id, status, env.Added)
		}
	}

	status, env := do(t, app, fiber.MethodPost, fmt.Sprintf("/api/teams/%d/heroes/%d", teamID, heroes[6]), "")
	if status != fiber.StatusOK || env.Added == nil || *env.Added {
		t.Fatalf("7th add: status %d added %v", status, env.Added)
	}

	status, env = do(t, app, fiber.MethodGet, fmt.Sprintf("/api/teams/%d/heroes", teamID), "")
	if status != fiber.StatusOK || env.Count != 6 {
		t.Fatalf("roster: status %d count %d", status, env.Count)
	}

	status, _ = do(t, app, fiber.MethodDelete, fmt.Sprintf("/api/teams/%d/heroes/%d", teamID, heroes[0]), "")
	if status != fiber.StatusOK {
		t.Fatalf("remove: status %d", status)
	}
	_, env = do(t, app, fiber.MethodPost, fmt.Sprintf("/api/teams/%d/heroes/%d", teamID, heroes[6]), "")
	if env.Added == nil || !*env.Added {
		t.Error("add after remove should succeed")
	}

	status, _ = do(t, app, fiber.MethodPost, fmt.Sprintf("/api/teams/%d/heroes/999", teamID), "")
	if status != fiber.StatusNotFound {
		t.Errorf("unknown hero: status %d", status)
	}
}

func TestDefaultTeamEndpoints(t *testing.T) {
	app, _ := newTestApp(t, nil)
	heroID := createHero(t, app, "Jubilee")

	status, env := do(t, app, fiber.MethodPost, fmt.Sprintf("/api/teams/default/heroes/%d", heroID), "")
	if status != fiber.StatusOK || env.Added == nil || !*env.Added {
		t.Fatalf("add to default: status %d added %v", status, env.Added)
	}

	status, env = do(t, app, fiber.MethodGet, "/api/teams/default", "")
	if status != fiber.StatusOK {
		t.Fatalf("get default: status %d", status)
	}
	var team struct {
		ID     uint   `json:"id"`
		Name   string `json:"name"`
		Heroes []struct {
			Name string `json:"name"`
		} `json:"heroes"`
	}
	json.Unmarshal(env.Team, &team)
	if team.Name != config.DefaultTeamName || len(team.Heroes) != 1 {
		t.Errorf("default team = %+v", team)
	}

	status, _ = do(t, app, fiber.MethodDelete, fmt.Sprintf("/api/teams/%d", team.ID), "")
	if status != fiber.StatusConflict {
		t.Errorf("delete default team: status %d, want 409", status)
	}
}

func TestTeamLimitAndDelete(t *testing.T) {
	app, _ := newTestApp(t, nil)
	if status, _ := do(t, app, fiber.MethodGet, "/api/teams/default", ""); status != fiber.StatusOK {
		t.Fatalf("get default: status %d", status)
	}
	first := createTeam(t, app, "One")
	createTeam(t, app, "Two")
	createTeam(t, app, "Three")

	status, _ := do(t, app, fiber.MethodPost, "/api/teams", `{"name":"Four"}`)
	if status != fiber.StatusConflict {
		t.Fatalf("team cap: status %d, want 409", status)
	}

	status, _ = do(t, app, fiber.MethodDelete, fmt.Sprintf("/api/teams/%d", first), "")
	if status != fiber.StatusOK {
		t.Fatalf("delete: status %d", status)
	}
	status, _ = do(t, app, fiber.MethodGet, fmt.Sprintf("/api/teams/%d", first), "")
	if status != fiber.StatusNotFound {
		t.Errorf("get deleted team: status %d", status)
	}
	createTeam(t, app, "Four")
}

func TestDefaultTeamNameIsReserved(t *testing.T) {
	app, _ := newTestApp(t, nil)
	status, env := do(t, app, fiber.MethodPost, "/api/teams", fmt.Sprintf(`{"name":%q}`, config.DefaultTeamName))
	if status != fiber.StatusBadRequest || env.Success {
		t.Fatalf("reserved name: status %d success %v", status, env.Success)
	}

	status, env = do(t, app, fiber.MethodGet, "/api/teams", "")
	if status != fiber.StatusOK {
		t.Fatalf("list teams: status %d", status)
	}
	if env.Count != 0 {
		t.Errorf("team count = %d, want 0", env.Count)
	}
}

func TestMutationsReachSubscribers(t *testing.T) {
	app, ctrl := newTestApp(t, nil)
	feed := listeners.NewChannelListener(16)
	if _, err := ctrl.Subscribe(feed, listeners.Options{Interest: listeners.InterestHeroes}); err != nil {
		t.Fatal(err)
	}
	<-feed.C()

	createHero(t, app, "Nightcrawler")

	select {
	case ev := <-feed.C():
		if ev.Type != listeners.EventHeroes || ev.Change != listeners.ChangeAdded || len(ev.Heroes) != 1 {
			t.Errorf("event = %+v", ev)
		}
	default:
		t.Fatal("no event after POST /api/heroes")
	}
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	app, _ := newTestApp(t, nil)
	status, env := do(t, app, fiber.MethodGet, "/ws?interest=heroes", "")
	if status != fiber.StatusUpgradeRequired {
		t.Fatalf("expected 426, got %d", status)
	}
	if env.Success {
		t.Error("expected success=false")
	}
}

func TestChangeOptions(t *testing.T) {
	tests := []struct {
		interest, team string
		want           listeners.Options
		wantErr        bool
	}{
		{"", "", listeners.Options{Interest: listeners.InterestAll}, false},
		{"heroes", "", listeners.Options{Interest: listeners.InterestHeroes}, false},
		{"team", "4", listeners.Options{Interest: listeners.InterestTeam, TeamID: 4}, false},
		{"team", "zero", listeners.Options{}, true},
		{"villains", "", listeners.Options{}, true},
	}
	for _, tt := range tests {
		got, err := changeOptions(tt.interest, tt.team)
		if (err != nil) != tt.wantErr {
			t.Errorf("changeOptions(%q, %q) err = %v", tt.interest, tt.team, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("changeOptions(%q, %q) = %+v, want %+v", tt.interest, tt.team, got, tt.want)
		}
	}
}

func TestRateLimitedWrites(t *testing.T) {
	app, _ := newTestApp(t, middleware.NewRateLimiter(0.001, 1))
	createHero(t, app, "Quicksilver")

	status, _ := do(t, app, fiber.MethodPost, "/api/heroes", `{"name":"Scarlet Witch","universe":"marvel"}`)
	if status != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", status)
	}
	status, _ = do(t, app, fiber.MethodGet, "/api/heroes", "")
	if status != fiber.StatusOK {
		t.Errorf("reads should not be limited, got %d", status)
	}
}

func TestManualCleanup(t *testing.T) {
	app, _ := newTestApp(t, nil)

	status, env := do(t, app, fiber.MethodPost, "/api/maintenance/cleanup", "")
	if status != fiber.StatusOK || env.Removed == nil || *env.Removed != 0 {
		t.Fatalf("cleanup: status %d removed %v", status, env.Removed)
	}
	status, _ = do(t, app, fiber.MethodGet, "/api/maintenance/cleanup/stats", "")
	if status != fiber.StatusOK {
		t.Errorf("stats: status %d", status)
	}
}
