// Package snapshot persists a whole GameState as one JSON document and reads
// documents written by any earlier version back into the current shape.
package snapshot

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"cargo-market/internal/economy"
)

// CurrentVersion is written into every encoded document.
const CurrentVersion = 3

//go:embed schema.json
var schemaJSON string

var documentSchema = jsonschema.MustCompileString("schema.json", schemaJSON)

type playerDoc struct {
	Money    *int               `json:"money"`
	Capacity *int               `json:"capacity"`
	Cargo    []*string          `json:"cargo"`
	Log      []economy.LogEntry `json:"transaction_log"`
}

type pricingDoc struct {
	StartCost   *int `json:"start_cost"`
	UpgradeStep *int `json:"upgrade_step"`
}

// document mirrors the stored JSON with pointers so absent fields can be
// told apart from zero values.
type document struct {
	SchemaVersion  *int                  `json:"schema_version"`
	Players        map[string]*playerDoc `json:"players"`
	SelectedCity   *string               `json:"selected_city"`
	SelectedPlayer *string               `json:"selected_player"`
	CityPrices     economy.Market        `json:"city_prices"`
	Market         economy.Market        `json:"market"`
	BreakingNews   *string               `json:"breaking_news"`
	ClosedCities   *[]string             `json:"closed_cities"`
	UpgradePricing *pricingDoc           `json:"upgrade_pricing"`
}

// Each step fills the fields introduced by one schema version. Steps only
// fill what is absent, so all of them run on every load.
var migrations = []func(doc *document, d economy.Defaults){
	// v1: the original document
	func(doc *document, d economy.Defaults) {
		if doc.CityPrices == nil {
			doc.CityPrices = doc.Market
		}
		if doc.CityPrices == nil {
			doc.CityPrices = d.Market.Clone()
		}
		if doc.Players == nil {
			doc.Players = make(map[string]*playerDoc, len(d.Players))
			for _, name := range d.Players {
				doc.Players[name] = &playerDoc{}
			}
		}
		if doc.SelectedCity == nil {
			doc.SelectedCity = &d.SelectedCity
		}
		if doc.SelectedPlayer == nil {
			doc.SelectedPlayer = &d.SelectedPlayer
		}
		if doc.BreakingNews == nil {
			empty := ""
			doc.BreakingNews = &empty
		}
	},
	// v2: closed cities and the depot
	func(doc *document, d economy.Defaults) {
		if doc.ClosedCities == nil {
			doc.ClosedCities = &[]string{}
		}
		depot := d.Rules().DepotCity
		if _, ok := doc.CityPrices[depot]; !ok {
			doc.CityPrices[depot] = map[string]int{}
		}
	},
	// v3: configurable upgrade pricing
	func(doc *document, d economy.Defaults) {
		if doc.UpgradePricing == nil {
			doc.UpgradePricing = &pricingDoc{}
		}
		if doc.UpgradePricing.StartCost == nil {
			doc.UpgradePricing.StartCost = &d.UpgradePricing.StartCost
		}
		if doc.UpgradePricing.UpgradeStep == nil {
			doc.UpgradePricing.UpgradeStep = &d.UpgradePricing.UpgradeStep
		}
	},
}

// Decode validates raw against the document schema and builds a GameState,
// filling anything missing from d and repairing players saved by older
// versions. Present fields are never overwritten.
func Decode(raw []byte, d economy.Defaults) (*economy.GameState, error) {
	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if err := documentSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("validate snapshot: %w", err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if doc.SchemaVersion != nil && *doc.SchemaVersion > CurrentVersion {
		return nil, fmt.Errorf("snapshot schema_version %d is newer than supported %d", *doc.SchemaVersion, CurrentVersion)
	}
	for _, step := range migrations {
		step(&doc, d)
	}

	rules := d.Rules()
	s := &economy.GameState{
		Players:        make(map[string]*economy.Player, len(doc.Players)),
		SelectedCity:   *doc.SelectedCity,
		SelectedPlayer: *doc.SelectedPlayer,
		Market:         doc.CityPrices,
		BreakingNews:   *doc.BreakingNews,
		UpgradePricing: economy.UpgradePricing{
			StartCost:   *doc.UpgradePricing.StartCost,
			UpgradeStep: *doc.UpgradePricing.UpgradeStep,
		},
		Rules: rules,
	}
	for name, pd := range doc.Players {
		s.Players[name] = repairPlayer(pd, rules)
	}
	s.SetClosedCities(*doc.ClosedCities)
	repairSelection(s, d)
	return s, nil
}

func repairPlayer(pd *playerDoc, rules economy.Rules) *economy.Player {
	if pd == nil {
		pd = &playerDoc{}
	}
	p := economy.NewPlayer(rules.StartingBalance)
	if pd.Money != nil {
		p.Balance = *pd.Money
	}
	if pd.Capacity != nil && *pd.Capacity > p.Capacity {
		p.Capacity = *pd.Capacity
	}
	if len(pd.Cargo) > p.Capacity {
		p.Capacity = len(pd.Cargo)
	}
	p.Cargo = make([]string, p.Capacity)
	for i, item := range pd.Cargo {
		if item != nil {
			p.Cargo[i] = *item
		}
	}
	if pd.Log != nil {
		p.Log = pd.Log
	}
	return p
}

func repairSelection(s *economy.GameState, d economy.Defaults) {
	if _, ok := s.Players[s.SelectedPlayer]; !ok {
		s.SelectedPlayer = ""
		if names := s.PlayerNames(); len(names) > 0 {
			s.SelectedPlayer = names[0]
		}
	}
	if _, ok := s.Market[s.SelectedCity]; ok {
		return
	}
	if _, ok := s.Market[d.SelectedCity]; ok {
		s.SelectedCity = d.SelectedCity
		return
	}
	cities := s.Market.Cities()
	s.SelectedCity = ""
	if len(cities) > 0 {
		s.SelectedCity = cities[0]
	}
}

type encoded struct {
	SchemaVersion int `json:"schema_version"`
	*economy.GameState
}

// Encode renders the canonical document for s.
func Encode(s *economy.GameState) ([]byte, error) {
	cp := *s
	if cp.ClosedCities == nil {
		cp.ClosedCities = []string{}
	}
	if cp.Players == nil {
		cp.Players = map[string]*economy.Player{}
	}
	out, err := json.MarshalIndent(encoded{SchemaVersion: CurrentVersion, GameState: &cp}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return out, nil
}
