// Package economy holds the authoritative trading state: the market catalog,
// the players with their cargo and balances, and the append-only ledger each
// player carries.
//
// Nothing in this package locks. Every method on GameState expects the caller
// to hold whatever lock guards the state (see internal/game).
package economy

import (
	"sort"
	"strings"
	"time"
)

const (
	// DefaultCapacity is the cargo size every new player starts with and the
	// floor applied to repaired snapshots.
	DefaultCapacity = 2
	// DefaultDepotCity is the city with no priced goods where trucks are upgraded.
	DefaultDepotCity = "Truck Store"
	// DefaultStartingBalance is credited to players created without configuration.
	DefaultStartingBalance = 100
)

// Market maps city -> item -> price.
type Market map[string]map[string]int

// Price returns the price of item in city and whether the city sells it.
func (m Market) Price(city, item string) (int, bool) {
	items, ok := m[city]
	if !ok {
		return 0, false
	}
	price, ok := items[item]
	return price, ok
}

// Cities returns the city names in sorted order.
func (m Market) Cities() []string {
	out := make([]string, 0, len(m))
	for city := range m {
		out = append(out, city)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy of the market.
func (m Market) Clone() Market {
	if m == nil {
		return nil
	}
	out := make(Market, len(m))
	for city, items := range m {
		cp := make(map[string]int, len(items))
		for item, price := range items {
			cp[item] = price
		}
		out[city] = cp
	}
	return out
}

// UpgradePricing configures the truck upgrade cost step function.
type UpgradePricing struct {
	StartCost   int `json:"start_cost" yaml:"start_cost"`
	UpgradeStep int `json:"upgrade_step" yaml:"upgrade_step"`
}

// Cost is the price of going from capacity to capacity+1. It depends only on
// the current capacity, never on how many upgrades were bought before.
func (p UpgradePricing) Cost(capacity int) int {
	if capacity < DefaultCapacity {
		return p.StartCost
	}
	return p.StartCost + p.UpgradeStep*(capacity-DefaultCapacity)
}

// Rules are the session constants that are configured rather than persisted.
type Rules struct {
	DepotCity       string `json:"depot_city"`
	StartingBalance int    `json:"starting_balance"`
}

// Player is the economic state of one trader. The player's name is the key
// in GameState.Players and is not stored on the value.
type Player struct {
	Balance  int        `json:"money"`
	Capacity int        `json:"capacity"`
	Cargo    []string   `json:"cargo"`
	Log      []LogEntry `json:"transaction_log"`
}

// NewPlayer returns a player with DefaultCapacity empty slots.
func NewPlayer(balance int) *Player {
	return &Player{
		Balance:  balance,
		Capacity: DefaultCapacity,
		Cargo:    make([]string, DefaultCapacity),
		Log:      []LogEntry{},
	}
}

// Clone returns a deep copy of the player.
func (p *Player) Clone() *Player {
	cp := *p
	cp.Cargo = make([]string, len(p.Cargo))
	copy(cp.Cargo, p.Cargo)
	cp.Log = make([]LogEntry, len(p.Log))
	copy(cp.Log, p.Log)
	return &cp
}

func (p *Player) firstEmptySlot() int {
	for i, item := range p.Cargo {
		if item == "" {
			return i
		}
	}
	return -1
}

// slotIndex converts a 1-based cargo space to a slice index.
func (p *Player) slotIndex(space int) (int, bool) {
	idx := space - 1
	if idx < 0 || idx >= len(p.Cargo) {
		return 0, false
	}
	return idx, true
}

// record appends the narrative/snapshot pair every balance change produces.
func (p *Player) record(narrative string, now time.Time) {
	p.Log = append(p.Log, Narrative(narrative))
	p.recordBalance(now)
}

func (p *Player) recordBalance(now time.Time) {
	at := now.UTC().Truncate(time.Second)
	if last, ok := p.lastSnapshotAt(); ok && at.Before(last) {
		at = last
	}
	p.Log = append(p.Log, BalanceSnapshot(at, p.Balance))
}

func (p *Player) lastSnapshotAt() (time.Time, bool) {
	for i := len(p.Log) - 1; i >= 0; i-- {
		if p.Log[i].Kind == EntrySnapshot {
			return p.Log[i].At, true
		}
	}
	return time.Time{}, false
}

// GameState is the root aggregate and the unit of snapshot persistence.
type GameState struct {
	Players        map[string]*Player `json:"players"`
	SelectedCity   string             `json:"selected_city"`
	SelectedPlayer string             `json:"selected_player"`
	Market         Market             `json:"city_prices"`
	BreakingNews   string             `json:"breaking_news"`
	ClosedCities   []string           `json:"closed_cities"`
	UpgradePricing UpgradePricing     `json:"upgrade_pricing"`
	Rules          Rules              `json:"-"`
}

// Clone returns a deep copy safe to read while the original keeps mutating.
func (s *GameState) Clone() *GameState {
	cp := *s
	cp.Players = make(map[string]*Player, len(s.Players))
	for name, p := range s.Players {
		cp.Players[name] = p.Clone()
	}
	cp.Market = s.Market.Clone()
	cp.ClosedCities = make([]string, len(s.ClosedCities))
	copy(cp.ClosedCities, s.ClosedCities)
	return &cp
}

// PlayerNames returns the player keys in sorted order.
func (s *GameState) PlayerNames() []string {
	out := make([]string, 0, len(s.Players))
	for name := range s.Players {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Player returns the named player or ErrPlayerNotFound.
func (s *GameState) Player(name string) (*Player, error) {
	p, ok := s.Players[name]
	if !ok || p == nil {
		return nil, notFound(ErrPlayerNotFound, name)
	}
	return p, nil
}

// Defaults describes a fresh game. It is built from configuration.
type Defaults struct {
	Market          Market
	Players         []string
	StartingBalance int
	SelectedCity    string
	SelectedPlayer  string
	DepotCity       string
	UpgradePricing  UpgradePricing
}

// Rules returns the session constants carried by every state built from d.
func (d Defaults) Rules() Rules {
	r := Rules{DepotCity: d.DepotCity, StartingBalance: d.StartingBalance}
	if strings.TrimSpace(r.DepotCity) == "" {
		r.DepotCity = DefaultDepotCity
	}
	return r
}

// NewGameState builds the state a reset or an empty store starts from.
// Default players start with an empty ledger.
func (d Defaults) NewGameState() *GameState {
	rules := d.Rules()
	s := &GameState{
		Players:        make(map[string]*Player, len(d.Players)),
		SelectedCity:   d.SelectedCity,
		SelectedPlayer: d.SelectedPlayer,
		Market:         d.Market.Clone(),
		ClosedCities:   []string{},
		UpgradePricing: d.UpgradePricing,
		Rules:          rules,
	}
	if s.Market == nil {
		s.Market = Market{}
	}
	if _, ok := s.Market[rules.DepotCity]; !ok {
		s.Market[rules.DepotCity] = map[string]int{}
	}
	for _, name := range d.Players {
		s.Players[name] = NewPlayer(rules.StartingBalance)
	}
	return s
}
