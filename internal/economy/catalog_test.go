package economy

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestSetPricesIsAtomic(t *testing.T) {
	s := newTestState()

	err := s.SetPrices("Genoa", map[string]int{"Wine": 30, "Machinery": -1})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "Machinery" {
		t.Fatalf("expected validation error on Machinery, got %v", err)
	}
	if s.Market["Genoa"]["Wine"] != 28 {
		t.Fatalf("partial update applied: %v", s.Market["Genoa"])
	}

	if err := s.SetPrices("Genoa", map[string]int{"Coffee": 5}); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown item should fail validation, got %v", err)
	}
	if err := s.SetPrices("Atlantis", map[string]int{"Wine": 5}); !errors.Is(err, ErrCityNotFound) {
		t.Fatalf("expected city not found, got %v", err)
	}

	if err := s.SetPrices("Genoa", map[string]int{"Wine": 0}); err != nil {
		t.Fatal(err)
	}
	if got := s.Market["Genoa"]; got["Wine"] != 0 || got["Machinery"] != 57 {
		t.Fatalf("prices=%v", got)
	}
}

func TestParsePrices(t *testing.T) {
	got, err := ParsePrices(map[string]string{"Wine": " 31 ", "Machinery": "0"})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, map[string]int{"Wine": 31, "Machinery": 0}) {
		t.Fatalf("got %v", got)
	}
	if _, err := ParsePrices(map[string]string{"Wine": "12.5"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSetClosedCities(t *testing.T) {
	s := newTestState()
	s.SetClosedCities([]string{"Hamburg", DefaultDepotCity, "Atlantis", "Genoa", "Hamburg"})
	if want := []string{"Genoa", "Hamburg"}; !reflect.DeepEqual(s.ClosedCities, want) {
		t.Fatalf("closed=%v, want %v", s.ClosedCities, want)
	}
	if s.IsOpen("Genoa") || !s.IsOpen("Antwerp") || !s.IsOpen(DefaultDepotCity) {
		t.Fatalf("unexpected open state")
	}
	s.SetClosedCities(nil)
	if len(s.ClosedCities) != 0 || !s.IsOpen("Genoa") {
		t.Fatalf("reopen failed: %v", s.ClosedCities)
	}
}

func TestSelectionSetters(t *testing.T) {
	s := newTestState()
	if err := s.SetSelectedCity("Hamburg"); err != nil || s.SelectedCity != "Hamburg" {
		t.Fatalf("err=%v city=%q", err, s.SelectedCity)
	}
	if err := s.SetSelectedCity("Atlantis"); !errors.Is(err, ErrCityNotFound) || s.SelectedCity != "Hamburg" {
		t.Fatalf("err=%v city=%q", err, s.SelectedCity)
	}
	if err := s.SetSelectedPlayer("Ghost"); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("got %v", err)
	}
}

func TestSetUpgradePricing(t *testing.T) {
	s := newTestState()
	if err := s.SetUpgradePricing(-1, 10); !errors.Is(err, ErrValidation) {
		t.Fatalf("got %v", err)
	}
	if err := s.SetUpgradePricing(10, -1); !errors.Is(err, ErrValidation) {
		t.Fatalf("got %v", err)
	}
	if err := s.SetUpgradePricing(50, 75); err != nil {
		t.Fatal(err)
	}
	if s.UpgradePricing != (UpgradePricing{StartCost: 50, UpgradeStep: 75}) {
		t.Fatalf("pricing=%+v", s.UpgradePricing)
	}
}

func TestRoster(t *testing.T) {
	s := newTestState()

	if s.AddPlayer("   ", t0) || s.AddPlayer("Player 1", t0) {
		t.Fatalf("blank and taken names must be ignored")
	}
	if !s.AddPlayer(" Zed ", t0) {
		t.Fatalf("AddPlayer should succeed")
	}
	z := s.Players["Zed"]
	if z == nil || z.Balance != 100 || z.Capacity != 2 || len(z.Cargo) != 2 {
		t.Fatalf("new player=%+v", z)
	}
	if len(z.Log) != 1 || z.Log[0].Kind != EntrySnapshot || z.Log[0].Balance != 100 {
		t.Fatalf("new player should carry one seed snapshot, got %+v", z.Log)
	}

	if !s.RenamePlayer("Player 2", "Bea") || s.SelectedPlayer != "Player 1" {
		t.Fatalf("renaming an unselected player must not move selection")
	}
	if !s.RenamePlayer("Player 1", "Ada") || s.SelectedPlayer != "Ada" {
		t.Fatalf("selection should follow rename, got %q", s.SelectedPlayer)
	}
	if s.RenamePlayer("Ada", "Bea") || s.RenamePlayer("Ghost", "X") || s.RenamePlayer("Ada", " ") {
		t.Fatalf("invalid renames must be no-ops")
	}

	if !s.DeletePlayer("Ada") || s.SelectedPlayer != "Bea" {
		t.Fatalf("selection should fall back to first sorted name, got %q", s.SelectedPlayer)
	}
	if s.DeletePlayer("Ada") {
		t.Fatalf("second delete should be a no-op")
	}
	s.DeletePlayer("Bea")
	s.DeletePlayer("Zed")
	if s.SelectedPlayer != "" || len(s.Players) != 0 {
		t.Fatalf("selected=%q players=%d", s.SelectedPlayer, len(s.Players))
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := newTestState()
	cp := s.Clone()
	cp.Players["Player 1"].Cargo[0] = "Wine"
	cp.Market["Genoa"]["Wine"] = 1
	cp.ClosedCities = append(cp.ClosedCities, "Genoa")

	if s.Players["Player 1"].Cargo[0] != "" || s.Market["Genoa"]["Wine"] != 28 || len(s.ClosedCities) != 0 {
		t.Fatalf("clone shares memory with the original")
	}
}

func TestLogEntryJSON(t *testing.T) {
	raw := `["Sold Wine for €28 in Genoa.",{"ts":"2026-03-01T12:00:00Z","money":128},{"ts":"garbage","money":1},{"timestamp":"2026-03-01T12:01:00Z","balance":5},7]`
	var log []LogEntry
	if err := json.Unmarshal([]byte(raw), &log); err != nil {
		t.Fatal(err)
	}
	kinds := []EntryKind{EntryNarrative, EntrySnapshot, EntryOpaque, EntrySnapshot, EntryOpaque}
	for i, k := range kinds {
		if log[i].Kind != k {
			t.Fatalf("entry %d kind=%d, want %d", i, log[i].Kind, k)
		}
	}
	if !log[1].At.Equal(t0) || log[1].Balance != 128 {
		t.Fatalf("snapshot=%+v", log[1])
	}

	out, err := json.Marshal(log)
	if err != nil {
		t.Fatal(err)
	}
	want := `["Sold Wine for €28 in Genoa.",{"ts":"2026-03-01T12:00:00Z","money":128},{"ts":"garbage","money":1},{"ts":"2026-03-01T12:01:00Z","money":5},7]`
	if string(out) != want {
		t.Fatalf("re-encoded log:\n got %s\nwant %s", out, want)
	}
}

func TestNewGameStateAddsDepot(t *testing.T) {
	s := Defaults{Market: Market{"Genoa": {"Wine": 1}}, Players: []string{"A"}}.NewGameState()
	if _, ok := s.Market[DefaultDepotCity]; !ok {
		t.Fatalf("depot missing from %v", s.Market.Cities())
	}
	if s.Rules.DepotCity != DefaultDepotCity {
		t.Fatalf("rules=%+v", s.Rules)
	}
	if got := s.Market.Cities(); !reflect.DeepEqual(got, []string{"Genoa", DefaultDepotCity}) {
		t.Fatalf("cities=%v", got)
	}
}
